package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// ContextKeySession is the Gin context key for the loaded exam session.
const ContextKeySession = "exam_session"

// LoadSession resolves the session cookie into the stored session record.
// Requests without a usable session continue anonymously; a stale cookie is
// cleared on the way.
func LoadSession(auth *service.AuthService, sessions *service.ExamSessionService, cookie SessionCookie, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractToken(c, cookie.Name)
		if tokenStr == "" {
			c.Next()
			return
		}

		claims, err := auth.ValidateToken(tokenStr)
		if err != nil {
			cookie.Clear(c)
			c.Next()
			return
		}

		sess, err := sessions.Get(c.Request.Context(), claims.ID)
		if err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				cookie.Clear(c)
				c.Next()
				return
			}
			log.Error().Err(err).Str("session_id", claims.ID).Msg("Failed to load session")
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeySession, sess)
		c.Next()
	}
}

// RequireLogin redirects page requests without an authenticated session to the login page.
func RequireLogin(loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := GetSession(c)
		if sess == nil || !sess.Authenticated {
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireSession rejects API and WebSocket calls that carry no authenticated session.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := GetSession(c)
		if sess == nil || !sess.Authenticated {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrUnauthenticated)
			return
		}
		c.Next()
	}
}

// GetSession retrieves the loaded session, or nil for anonymous requests.
func GetSession(c *gin.Context) *model.ExamSession {
	val, exists := c.Get(ContextKeySession)
	if !exists {
		return nil
	}
	sess, ok := val.(*model.ExamSession)
	if !ok {
		return nil
	}
	return sess
}
