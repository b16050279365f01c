package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/exam"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/monitoring"
	"github.com/stemsi/exstem-proctor/internal/service"
	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler serves the exam autosave channel.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// ExamStream godoc
// WS /ws/exam
// Upgrades to WebSocket for autosave and timer queries during the exam.
func (h *WSHandler) ExamStream(c *gin.Context) {
	sess := middleware.GetSession(c)

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw, h.sessionService.Duration())
	defer conn.Close()

	monitoring.ActiveSockets.Inc()
	defer monitoring.ActiveSockets.Dec()

	wsLog := h.log.With().
		Str("username", sess.Username).
		Str("session_id", sess.ID).
		Logger()

	wsLog.Info().Dur("idle_timeout", conn.IdleTimeout()).Msg("Student connected")

	for {
		msg, err := conn.ReadRequest()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var werr error
		switch msg.Action {
		case ws.ActionAutosave:
			werr = h.handleAutosave(c, conn, wsLog, sess.ID, &msg)
		case ws.ActionTime:
			werr = h.handleTime(c, conn, sess.ID)
		case ws.ActionPing:
			werr = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			werr = conn.WriteError("unknown action: " + string(msg.Action))
		}
		if werr != nil {
			wsLog.Debug().Err(werr).Msg("Write failed, closing")
			return
		}
	}
}

// handleAutosave stores one selection on the session record.
func (h *WSHandler) handleAutosave(c *gin.Context, conn *ws.Conn, wsLog zerolog.Logger, sessionID string, msg *ws.Request) error {
	if msg.QuestionID <= 0 || msg.Option == nil {
		return conn.WriteError("question_id and option are required")
	}

	_, err := h.sessionService.Autosave(c.Request.Context(), sessionID, msg.QuestionID, *msg.Option)
	switch {
	case err == nil:
		return conn.WriteTyped(ws.SavedResponse{
			Event:      ws.EventSaved,
			QuestionID: msg.QuestionID,
			Option:     *msg.Option,
		})
	case errors.Is(err, exam.ErrExamExpired), errors.Is(err, exam.ErrAlreadySubmitted):
		return conn.WriteTyped(ws.ExpiredResponse{
			Event:    ws.EventExpired,
			Redirect: exam.PageResult.Path(),
		})
	default:
		status, code := autosaveError(err)
		if status == http.StatusInternalServerError {
			wsLog.Error().Err(err).Msg("Autosave failed")
		}
		return conn.WriteError(string(code))
	}
}

// handleTime answers a timer query over the socket.
func (h *WSHandler) handleTime(c *gin.Context, conn *ws.Conn, sessionID string) error {
	status, err := h.sessionService.Timer(c.Request.Context(), sessionID)
	if err != nil {
		return conn.WriteError("timer unavailable")
	}

	t := newTimerResponse(status)
	return conn.WriteTyped(ws.TimerResponse{
		Event:            ws.EventTimer,
		Active:           t.Active,
		RemainingSeconds: t.RemainingSeconds,
	})
}
