package cart

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	// SessionName is the cookie session identifying a guest.
	SessionName = "race-kart"

	sessionIDKey = "sid"
)

// Session is the signed cookie session of one request/response pair. It only
// carries the guest session id; guest carts are stored server-side under it.
type Session struct {
	store sessions.Store
	w     http.ResponseWriter
	r     *http.Request
}

// NewSession opens the guest session of the request.
func NewSession(store sessions.Store, w http.ResponseWriter, r *http.Request) *Session {
	return &Session{store: store, w: w, r: r}
}

// ID returns the guest session id, creating and persisting one on first use.
func (s *Session) ID() (string, error) {
	// a cookie that no longer decodes still yields a fresh session
	session, err := s.store.Get(s.r, SessionName)
	if session == nil {
		return "", fmt.Errorf("failed to open guest session: %w", err)
	}

	if id, ok := session.Values[sessionIDKey].(string); ok && id != "" {
		return id, nil
	}

	id := uuid.NewString()
	session.Values = map[interface{}]interface{}{sessionIDKey: id}
	if err := session.Save(s.r, s.w); err != nil {
		return "", fmt.Errorf("failed to save guest session: %w", err)
	}
	return id, nil
}

// NewCookieStore creates the signed cookie store used for guest sessions.
func NewCookieStore(secret string, secure bool, maxAge int) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}
