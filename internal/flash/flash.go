// Package flash carries one-shot user messages across a redirect in a
// signed cookie.
package flash

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const cookieName = "exam_flash"

// Message categories.
const (
	Error = "error"
	Info  = "info"
)

// Store reads and writes flash messages.
type Store struct {
	store *sessions.CookieStore
}

// NewStore creates a flash store signed with secret.
func NewStore(secret string, secure bool) *Store {
	cs := sessions.NewCookieStore([]byte(secret))
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Store{store: cs}
}

// Add queues msg under category. Must be called before the response body is written.
func (s *Store) Add(c *gin.Context, category, msg string) error {
	session, _ := s.store.Get(c.Request, cookieName)
	session.AddFlash(msg, category)
	return session.Save(c.Request, c.Writer)
}

// Pop returns and clears every message queued under category.
func (s *Store) Pop(c *gin.Context, category string) []string {
	session, err := s.store.Get(c.Request, cookieName)
	if err != nil {
		return nil
	}

	flashes := session.Flashes(category)
	if len(flashes) == 0 {
		return nil
	}
	_ = session.Save(c.Request, c.Writer)

	out := make([]string, 0, len(flashes))
	for _, f := range flashes {
		if msg, ok := f.(string); ok {
			out = append(out, msg)
		}
	}
	return out
}
