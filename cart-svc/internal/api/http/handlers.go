package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"reflect"
	"strings"
	"time"

	"overcooked-storefront/cart-svc/internal/domain"
	"overcooked-storefront/cart-svc/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type Notifications interface {
	Drain(owner string) []domain.Notification
	Watch(owner string, buffer int) (<-chan domain.Notification, func())
}

type EventSource interface {
	Subscribe(buffer int) (<-chan domain.CartEvent, func())
}

type Handler struct {
	Cart     service.CartServiceInterface
	Dishes   service.DishCatalog
	Notices  Notifications
	Events   EventSource
	Sessions *GuestSessions

	// AllowedOrigins limits websocket upgrades. Empty means same host only.
	AllowedOrigins []string

	validate *validator.Validate
}

func NewHandler(cartSvc service.CartServiceInterface, dishes service.DishCatalog, notices Notifications, events EventSource, sessions *GuestSessions) *Handler {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Handler{
		Cart:     cartSvc,
		Dishes:   dishes,
		Notices:  notices,
		Events:   events,
		Sessions: sessions,
		validate: validate,
	}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.healthCheck).Methods("GET")

	r.HandleFunc("/api/cart", h.getCart).Methods("GET")
	r.HandleFunc("/api/cart/count", h.getCount).Methods("GET")
	r.HandleFunc("/api/cart/items", h.addItem).Methods("POST")
	r.HandleFunc("/api/cart/items/{lineId}", h.updateItem).Methods("PUT")
	r.HandleFunc("/api/cart/items/{lineId}", h.removeItem).Methods("DELETE")
	r.HandleFunc("/api/cart/events", h.cartEvents).Methods("GET")
}

type addItemRequest struct {
	DishID   string `json:"dishId" validate:"required"`
	Quantity int    `json:"quantity" validate:"omitempty,min=1,max=99"`
}

type updateItemRequest struct {
	Action string `json:"action" validate:"required,oneof=increase decrease"`
}

type cartResponse struct {
	Cart          domain.CartView       `json:"cart"`
	Line          *domain.CartLine      `json:"line,omitempty"`
	Notifications []domain.Notification `json:"notifications"`
	Error         string                `json:"error,omitempty"`
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"service":   "cart-svc",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	session, err := h.session(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, h.Cart.Load(r.Context(), session))
}

func (h *Handler) getCount(w http.ResponseWriter, r *http.Request) {
	session, err := h.session(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	view := h.Cart.Load(r.Context(), session)
	writeJSON(w, http.StatusOK, map[string]int{"count": view.Count})
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !h.valid(w, req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	session, err := h.session(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	dish, err := h.Dishes.GetDish(r.Context(), req.DishID)
	if err != nil {
		if errors.Is(err, service.ErrDishNotFound) {
			http.Error(w, "Dish not found", http.StatusNotFound)
			return
		}
		log.Printf("[cart-svc] catalog lookup %s: %v", req.DishID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err = h.Cart.Add(r.Context(), session, *dish, req.Quantity)
	h.respond(w, r, session, nil, err)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	lineID := mux.Vars(r)["lineId"]

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !h.valid(w, req) {
		return
	}

	session, err := h.session(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	line, err := h.Cart.UpdateQuantity(r.Context(), session, lineID, domain.Direction(req.Action))
	if err != nil && errors.Is(err, service.ErrLineNotFound) {
		http.Error(w, "Cart item not found", http.StatusNotFound)
		return
	}
	h.respond(w, r, session, &line, err)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	lineID := mux.Vars(r)["lineId"]

	session, err := h.session(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err = h.Cart.Remove(r.Context(), session, lineID)
	h.respond(w, r, session, nil, err)
}

// respond re-reads the cart after a mutation and attaches pending notifications.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, session domain.Session, line *domain.CartLine, opErr error) {
	resp := cartResponse{
		Cart:          h.Cart.Load(r.Context(), session),
		Notifications: []domain.Notification{},
	}
	owner, _ := h.Cart.Resolve(session)
	resp.Notifications = h.Notices.Drain(owner.Key())

	status := http.StatusOK
	if opErr != nil {
		resp.Error = opErr.Error()
		status = statusFor(opErr)
	} else if line != nil && line.ID != "" {
		resp.Line = line
	}
	writeJSON(w, status, resp)
}

func (h *Handler) valid(w http.ResponseWriter, req interface{}) bool {
	if err := h.validate.Struct(req); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":  "validation failed",
				"fields": FormatValidationErrors(errs),
			})
			return false
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrDecode):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrNetwork):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrLineNotFound), errors.Is(err, service.ErrDishNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
