package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/exam"
	"github.com/stemsi/exstem-proctor/internal/flash"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/monitoring"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

const (
	msgInvalidCredentials = "Invalid credentials. Please try again."
	msgTooManyAttempts    = "Too many login attempts. Please wait a minute and try again."
)

// AuthHandler handles login and logout.
type AuthHandler struct {
	authService    *service.AuthService
	sessionService *service.ExamSessionService
	flash          *flash.Store
	cookie         middleware.SessionCookie
	log            zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(
	authService *service.AuthService,
	sessionService *service.ExamSessionService,
	flashStore *flash.Store,
	cookie middleware.SessionCookie,
	log zerolog.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		sessionService: sessionService,
		flash:          flashStore,
		cookie:         cookie,
		log:            log.With().Str("component", "auth_handler").Logger(),
	}
}

// LoginPage godoc
// GET /login
func (h *AuthHandler) LoginPage(c *gin.Context) {
	if d := exam.Gate(exam.PageLogin, middleware.GetSession(c)); !d.Render {
		c.Redirect(http.StatusFound, d.RedirectTo.Path())
		return
	}

	response.Page(c, http.StatusOK, "login.html", gin.H{
		"page":           exam.PageLogin,
		"login_username": "",
		"errors":         h.flash.Pop(c, flash.Error),
		"info":           h.flash.Pop(c, flash.Info),
	})
}

// Login godoc
// POST /login
// Verifies the form credentials and opens a fresh exam session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.BindForm(c, &req); fields != nil {
		monitoring.LoginCounter.WithLabelValues("failure").Inc()
		h.loginFailed(c, req.Username, fields)
		return
	}

	ctx := c.Request.Context()
	if err := h.authService.Authenticate(ctx, req.Username, req.Password); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			monitoring.LoginCounter.WithLabelValues("failure").Inc()
			h.log.Info().Str("username", req.Username).Str("ip", c.ClientIP()).Msg("Login rejected")
			h.loginFailed(c, req.Username, nil)
			return
		}
		monitoring.LoginCounter.WithLabelValues("error").Inc()
		h.log.Error().Err(err).Msg("Credential lookup failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	var previousID string
	if prev := middleware.GetSession(c); prev != nil {
		previousID = prev.ID
	}

	sess, err := h.sessionService.Start(ctx, previousID, req.Username)
	if err != nil {
		monitoring.LoginCounter.WithLabelValues("error").Inc()
		h.log.Error().Err(err).Msg("Failed to start session")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	token, err := h.authService.IssueToken(sess.ID, sess.Username)
	if err != nil {
		monitoring.LoginCounter.WithLabelValues("error").Inc()
		h.log.Error().Err(err).Msg("Failed to sign session token")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	monitoring.LoginCounter.WithLabelValues("success").Inc()
	h.cookie.Set(c, token)
	c.Redirect(http.StatusSeeOther, exam.PageInstructions.Path())
}

// Logout godoc
// GET /logout
// Deletes the session record and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	if sess := middleware.GetSession(c); sess != nil {
		if err := h.sessionService.End(c.Request.Context(), sess.ID); err != nil {
			h.log.Error().Err(err).Str("session_id", sess.ID).Msg("Failed to delete session")
		}
	}

	h.cookie.Clear(c)
	_ = h.flash.Add(c, flash.Info, "You have been logged out.")
	c.Redirect(http.StatusFound, exam.PageLogin.Path())
}

// LoginThrottled answers a login post rejected by the rate limiter.
func (h *AuthHandler) LoginThrottled(c *gin.Context) {
	monitoring.LoginCounter.WithLabelValues("throttled").Inc()
	h.log.Warn().Str("ip", c.ClientIP()).Msg("Login rate limit exceeded")

	if response.WantsJSON(c) {
		response.Fail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
		return
	}

	response.Page(c, http.StatusTooManyRequests, "login.html", gin.H{
		"page":           exam.PageLogin,
		"errors":         []string{msgTooManyAttempts},
		"login_username": c.PostForm("username"),
	})
}

// loginFailed re-renders the login form with the error. JSON clients get the
// error envelope instead.
func (h *AuthHandler) loginFailed(c *gin.Context, username string, fields map[string]string) {
	if response.WantsJSON(c) {
		if fields != nil {
			response.FailWithFields(c, http.StatusUnauthorized, response.ErrValidation, fields)
			return
		}
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	response.Page(c, http.StatusUnauthorized, "login.html", gin.H{
		"page":           exam.PageLogin,
		"errors":         []string{msgInvalidCredentials},
		"login_username": username,
	})
}
