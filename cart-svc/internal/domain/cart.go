package domain

import (
	"github.com/leekchan/accounting"
	"github.com/shopspring/decimal"
)

var priceFormat = accounting.NewAccounting("₫", 0, ".", ",", "%v %s", "-%v %s", "%v %s")

// Total folds price × quantity over the lines. Nothing is cached.
func Total(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(decimal.NewFromFloat(line.Price).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

func Count(lines []CartLine) int {
	count := 0
	for _, line := range lines {
		count += line.Quantity
	}
	return count
}

func FormatPrice(amount decimal.Decimal) string {
	return priceFormat.FormatMoneyDecimal(amount)
}

func NewView(source CartSource, lines []CartLine) CartView {
	if lines == nil {
		lines = []CartLine{}
	}
	total := Total(lines)
	return CartView{
		Source:         source,
		Lines:          lines,
		Count:          Count(lines),
		Total:          total.InexactFloat64(),
		FormattedTotal: FormatPrice(total),
	}
}

// MergeDish adds quantity of dish into lines keyed by dish id. A new line
// takes the dish id as its line id and is available unless the dish says
// otherwise.
func MergeDish(lines []CartLine, dish Dish, quantity int) []CartLine {
	for i := range lines {
		if lines[i].DishID == dish.ID {
			lines[i].Quantity += quantity
			return lines
		}
	}

	available := true
	if dish.Available != nil {
		available = *dish.Available
	}

	return append(lines, CartLine{
		ID:           dish.ID,
		DishID:       dish.ID,
		Name:         dish.Name,
		ImageURL:     dish.ImageURL,
		CategoryName: dish.CategoryName,
		Price:        dish.Price,
		Quantity:     quantity,
		Available:    available,
	})
}

// Step returns the quantity after applying direction and whether the change
// is allowed. Decreasing a quantity-1 line is refused rather than clamped.
func Step(quantity int, direction Direction) (int, bool) {
	switch direction {
	case DirectionIncrease:
		return quantity + 1, true
	case DirectionDecrease:
		if quantity <= 1 {
			return quantity, false
		}
		return quantity - 1, true
	}
	return quantity, false
}

func FindLine(lines []CartLine, lineID string) (int, bool) {
	for i := range lines {
		if lines[i].ID == lineID {
			return i, true
		}
	}
	return -1, false
}

// WithoutLine filters lineID out; the second result reports whether anything
// was removed.
func WithoutLine(lines []CartLine, lineID string) ([]CartLine, bool) {
	kept := make([]CartLine, 0, len(lines))
	removed := false
	for _, line := range lines {
		if line.ID == lineID {
			removed = true
			continue
		}
		kept = append(kept, line)
	}
	return kept, removed
}
