package httpapi

import (
	"log"
	"net/http"
	"strings"

	"overcooked-storefront/cart-svc/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	SessionGuestKey = "guest_session"
	GuestIDKey      = "guest_id"
)

// GuestSessions hands every anonymous browser a stable id in a signed
// cookie. The id scopes that browser's local cart entry.
type GuestSessions struct {
	store sessions.Store
}

func NewGuestSessions(secure bool, keyPairs ...[]byte) *GuestSessions {
	store := sessions.NewCookieStore(keyPairs...)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &GuestSessions{store: store}
}

func (g *GuestSessions) GuestID(w http.ResponseWriter, r *http.Request) (string, error) {
	session, err := g.store.Get(r, SessionGuestKey)
	if err != nil {
		log.Printf("[cart-svc] guest session unreadable, issuing a new one: %v", err)
	}

	if guestID, ok := session.Values[GuestIDKey].(string); ok && guestID != "" {
		return guestID, nil
	}

	newID := uuid.New().String()
	session.Values[GuestIDKey] = newID
	if err := session.Save(r, w); err != nil {
		return "", err
	}
	return newID, nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// streamToken also accepts a token query parameter, since browsers cannot
// set headers on a websocket upgrade.
func streamToken(r *http.Request) string {
	if r.Header.Get("Authorization") != "" {
		return bearerToken(r)
	}
	return r.URL.Query().Get("token")
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (domain.Session, error) {
	return h.sessionWith(w, r, bearerToken(r))
}

func (h *Handler) sessionWith(w http.ResponseWriter, r *http.Request, token string) (domain.Session, error) {
	if token != "" {
		return domain.Session{Token: token}, nil
	}

	guestID, err := h.Sessions.GuestID(w, r)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{GuestID: guestID}, nil
}
