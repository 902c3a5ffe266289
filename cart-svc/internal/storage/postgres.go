package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"overcooked-storefront/cart-svc/internal/domain"
	"overcooked-storefront/cart-svc/internal/service"
)

// PostgresCatalog resolves dish ids posted by menu surfaces into the fields a
// cart line copies.
type PostgresCatalog struct {
	DB *sql.DB
}

func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{DB: db}
}

var _ service.DishCatalog = (*PostgresCatalog)(nil)

func (r *PostgresCatalog) GetDish(ctx context.Context, dishID string) (*domain.Dish, error) {
	id, err := strconv.Atoi(dishID)
	if err != nil {
		return nil, service.ErrDishNotFound
	}

	var (
		dish      domain.Dish
		dbID      int
		available bool
	)
	err = r.DB.QueryRowContext(ctx, `
		SELECT id, name, price, COALESCE(image_url, ''), COALESCE(category_name, ''), COALESCE(is_available, TRUE)
		FROM dishes
		WHERE id = $1`, id).
		Scan(&dbID, &dish.Name, &dish.Price, &dish.ImageURL, &dish.CategoryName, &available)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, service.ErrDishNotFound
	}
	if err != nil {
		return nil, err
	}

	dish.ID = strconv.Itoa(dbID)
	dish.Available = &available
	return &dish, nil
}

func EnsureSchema(db *sql.DB) error {
	statements := []string{
		"ALTER TABLE IF EXISTS dishes ADD COLUMN IF NOT EXISTS category_name TEXT",
		"ALTER TABLE IF EXISTS dishes ADD COLUMN IF NOT EXISTS is_available BOOLEAN DEFAULT TRUE",
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema `%s`: %w", stmt, err)
		}
	}

	return nil
}
