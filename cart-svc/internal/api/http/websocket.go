package httpapi

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"overcooked-storefront/cart-svc/internal/domain"

	"github.com/gorilla/websocket"
)

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// checkOrigin admits upgrades from the configured origins. With none
// configured it falls back to requiring the same host, as the websocket
// package does by default.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.AllowedOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range h.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

type pushMessage struct {
	Type         string               `json:"type"`
	Cart         *domain.CartView     `json:"cart,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

// cartEvents keeps one surface in sync: it re-reads the surface's own cart
// whenever an update for its owner is broadcast and forwards toasts.
func (h *Handler) cartEvents(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		log.Printf("[cart-svc] websocket origin %q rejected", r.Header.Get("Origin"))
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	session, err := h.sessionWith(w, r, streamToken(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	owner, _ := h.Cart.Resolve(session)

	header := http.Header{}
	if cookies := w.Header().Values("Set-Cookie"); len(cookies) > 0 {
		header["Set-Cookie"] = cookies
	}

	upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		log.Printf("[cart-svc] websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, unsubscribe := h.Events.Subscribe(8)
	defer unsubscribe()
	notices, unwatch := h.Notices.Watch(owner.Key(), 8)
	defer unwatch()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	push := func(msg pushMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("[cart-svc] websocket write for %s: %v", owner.Key(), err)
			return false
		}
		return true
	}

	view := h.Cart.Load(ctx, session)
	if !push(pushMessage{Type: string(domain.EventCartUpdated), Cart: &view}) {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-updates:
			if !ok {
				return
			}
			if evt.Owner != owner.Key() {
				continue
			}
			view := h.Cart.Load(ctx, session)
			if !push(pushMessage{Type: string(evt.Kind), Cart: &view}) {
				return
			}
		case n, ok := <-notices:
			if !ok {
				return
			}
			if !push(pushMessage{Type: "notification", Notification: &n}) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
