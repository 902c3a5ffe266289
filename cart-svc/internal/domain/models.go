package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type CartSource string

const (
	SourceRemote CartSource = "remote"
	SourceLocal  CartSource = "local"
)

type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

func (d Direction) Valid() bool {
	return d == DirectionIncrease || d == DirectionDecrease
}

type CartLine struct {
	ID           string  `json:"id"`
	DishID       string  `json:"dishId"`
	Name         string  `json:"name"`
	ImageURL     string  `json:"imageUrl"`
	CategoryName string  `json:"categoryName"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
	Available    bool    `json:"available"`
}

// Dish is what a menu surface hands to the cart when the user taps "add".
type Dish struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	ImageURL     string  `json:"imageUrl"`
	CategoryName string  `json:"categoryName"`
	Price        float64 `json:"price"`
	Available    *bool   `json:"available,omitempty"`
}

// Owner identifies whose cart an operation acts on. Token is only set for
// remote owners and is forwarded to the backend as-is.
type Owner struct {
	Source CartSource `json:"source"`
	ID     string     `json:"id"`
	Token  string     `json:"-"`
}

// Key names the owner for events and notifications. A remote owner whose
// token could not be decoded is keyed by a digest of that token instead.
func (o Owner) Key() string {
	if o.Source == SourceRemote {
		if o.ID == "" {
			sum := sha256.Sum256([]byte(o.Token))
			return "token:" + hex.EncodeToString(sum[:12])
		}
		return "user:" + o.ID
	}
	return "guest:" + o.ID
}

// Session is the per-request input to source selection.
type Session struct {
	Token   string
	GuestID string
}

type CartView struct {
	Source         CartSource `json:"source"`
	Lines          []CartLine `json:"lines"`
	Count          int        `json:"count"`
	Total          float64    `json:"total"`
	FormattedTotal string     `json:"formattedTotal"`
}

type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
	LevelInfo    NotificationLevel = "info"
)

type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
	Owner   string            `json:"-"`
	At      time.Time         `json:"at"`
}

type EventKind string

const EventCartUpdated EventKind = "cart_updated"

type CartEvent struct {
	Kind   EventKind  `json:"type"`
	Owner  string     `json:"owner"`
	Source CartSource `json:"source"`
	Origin string     `json:"origin"`
	At     time.Time  `json:"at"`
}
