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
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

const (
	msgCheckFailed    = "Environment check failed. Enable camera, microphone, fullscreen and network access, then try again."
	msgCheckFirst     = "Complete system checks first."
	msgExamTimeIsOver = "Time is up. Your saved answers were submitted automatically."
)

// ExamPortalHandler serves the gated exam pages and the workflow endpoints.
type ExamPortalHandler struct {
	sessionService *service.ExamSessionService
	flash          *flash.Store
	log            zerolog.Logger
}

// NewExamPortalHandler creates a new ExamPortalHandler.
func NewExamPortalHandler(sessionService *service.ExamSessionService, flashStore *flash.Store, log zerolog.Logger) *ExamPortalHandler {
	return &ExamPortalHandler{
		sessionService: sessionService,
		flash:          flashStore,
		log:            log.With().Str("component", "exam_portal_handler").Logger(),
	}
}

// timerResponse is the body of GET /api/exam/time. RemainingSeconds is
// omitted while the timer is inactive.
type timerResponse struct {
	Active           bool `json:"active"`
	RemainingSeconds *int `json:"remaining_seconds,omitempty"`
}

func newTimerResponse(t exam.TimerStatus) timerResponse {
	if !t.Active {
		return timerResponse{}
	}
	remaining := t.RemainingSeconds
	return timerResponse{Active: true, RemainingSeconds: &remaining}
}

// gate applies the page rules and redirects when the page may not be shown.
func (h *ExamPortalHandler) gate(c *gin.Context, page exam.Page) (*model.ExamSession, bool) {
	sess := middleware.GetSession(c)
	d := exam.Gate(page, sess)
	if d.Render {
		return sess, true
	}

	if page == exam.PageExam && d.RedirectTo == exam.PageChecking {
		_ = h.flash.Add(c, flash.Error, msgCheckFirst)
	}
	c.Redirect(http.StatusFound, d.RedirectTo.Path())
	return nil, false
}

// Instructions godoc
// GET /instructions
func (h *ExamPortalHandler) Instructions(c *gin.Context) {
	sess, ok := h.gate(c, exam.PageInstructions)
	if !ok {
		return
	}

	response.Page(c, http.StatusOK, "instructions.html", gin.H{
		"page":             exam.PageInstructions,
		"username":         sess.Username,
		"duration_minutes": int(h.sessionService.Duration().Minutes()),
		"question_count":   len(h.sessionService.Questions()),
		"info":             h.flash.Pop(c, flash.Info),
	})
}

// Checking godoc
// GET /checking
func (h *ExamPortalHandler) Checking(c *gin.Context) {
	sess, ok := h.gate(c, exam.PageChecking)
	if !ok {
		return
	}

	response.Page(c, http.StatusOK, "checking.html", gin.H{
		"page":           exam.PageChecking,
		"username":       sess.Username,
		"stage":          exam.StageOf(sess),
		"check_attempts": sess.CheckAttempts,
		"exam_started":   sess.ExamStarted,
		"errors":         h.flash.Pop(c, flash.Error),
	})
}

// Exam godoc
// GET /exam
// Renders the question list without the answer key.
func (h *ExamPortalHandler) Exam(c *gin.Context) {
	sess, ok := h.gate(c, exam.PageExam)
	if !ok {
		return
	}

	answers := sess.Answers
	if answers == nil {
		answers = map[int]int{}
	}

	response.Page(c, http.StatusOK, "exam.html", gin.H{
		"page":           exam.PageExam,
		"username":       sess.Username,
		"questions":      h.sessionService.Questions(),
		"answers":        answers,
		"exam_end_time":  sess.ExamEndTime,
		"timer":          newTimerResponse(h.sessionService.TimerOf(sess)),
		"exam_submitted": false,
	})
}

// Result godoc
// GET /result
func (h *ExamPortalHandler) Result(c *gin.Context) {
	sess, ok := h.gate(c, exam.PageResult)
	if !ok {
		return
	}

	response.Page(c, http.StatusOK, "result.html", gin.H{
		"page":           exam.PageResult,
		"username":       sess.Username,
		"result":         sess.Result,
		"auto_submitted": sess.AutoSubmitted,
		"submitted_at":   sess.SubmittedAt,
		"info":           h.flash.Pop(c, flash.Info),
	})
}

// SubmitCheck godoc
// POST /api/checking/submit
// A malformed body counts as every capability missing.
func (h *ExamPortalHandler) SubmitCheck(c *gin.Context) {
	sess := middleware.GetSession(c)

	var report model.CapabilityReport
	if err := c.ShouldBindJSON(&report); err != nil {
		report = model.CapabilityReport{}
	}

	_, missing, err := h.sessionService.CheckEnvironment(c.Request.Context(), sess.ID, report)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "passed"})
	case errors.Is(err, exam.ErrInvalidCapability):
		_ = h.flash.Add(c, flash.Error, msgCheckFailed)
		c.JSON(http.StatusForbidden, gin.H{"status": "failed", "missing": missing})
	case errors.Is(err, repository.ErrSessionNotFound), errors.Is(err, exam.ErrNotAuthenticated):
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthenticated)
	default:
		h.log.Error().Err(err).Str("session_id", sess.ID).Msg("Environment check failed to store")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// SubmitExam godoc
// POST /submit_exam
// Grades the form answers once; every later call just lands on the result.
func (h *ExamPortalHandler) SubmitExam(c *gin.Context) {
	sess := middleware.GetSession(c)

	if err := c.Request.ParseForm(); err != nil {
		h.log.Warn().Err(err).Str("session_id", sess.ID).Msg("Unreadable exam form, grading as empty")
	}
	answers := exam.ParseAnswers(c.Request.PostForm)

	updated, err := h.sessionService.Submit(c.Request.Context(), sess.ID, answers)
	switch {
	case err == nil:
		if updated.AutoSubmitted {
			_ = h.flash.Add(c, flash.Info, msgExamTimeIsOver)
		}
		c.Redirect(http.StatusSeeOther, exam.PageResult.Path())
	case errors.Is(err, exam.ErrAlreadySubmitted):
		c.Redirect(http.StatusSeeOther, exam.PageResult.Path())
	case errors.Is(err, exam.ErrExamNotStarted):
		c.Redirect(http.StatusSeeOther, exam.PageInstructions.Path())
	case errors.Is(err, exam.ErrCheckNotPassed):
		c.Redirect(http.StatusSeeOther, exam.PageChecking.Path())
	case errors.Is(err, repository.ErrSessionNotFound), errors.Is(err, exam.ErrNotAuthenticated):
		c.Redirect(http.StatusSeeOther, exam.PageLogin.Path())
	default:
		h.log.Error().Err(err).Str("session_id", sess.ID).Msg("Exam submission failed to store")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// ExamTime godoc
// GET /api/exam/time
func (h *ExamPortalHandler) ExamTime(c *gin.Context) {
	sess := middleware.GetSession(c)

	status, err := h.sessionService.Timer(c.Request.Context(), sess.ID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			response.Fail(c, http.StatusUnauthorized, response.ErrUnauthenticated)
			return
		}
		h.log.Error().Err(err).Str("session_id", sess.ID).Msg("Timer query failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	c.JSON(http.StatusOK, newTimerResponse(status))
}

// Autosave godoc
// POST /api/exam/answers
// Stores one selection so it survives reloads and counts on expiry.
func (h *ExamPortalHandler) Autosave(c *gin.Context) {
	sess := middleware.GetSession(c)

	var req model.AutosaveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	_, err := h.sessionService.Autosave(c.Request.Context(), sess.ID, req.QuestionID, *req.Option)
	if err != nil {
		status, code := autosaveError(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("session_id", sess.ID).Msg("Autosave failed")
		}
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question_id": req.QuestionID, "option": *req.Option})
}

// autosaveError maps a workflow error to an HTTP status and error code.
func autosaveError(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, exam.ErrUnknownQuestion):
		return http.StatusBadRequest, response.ErrUnknownQuestion
	case errors.Is(err, exam.ErrInvalidOption):
		return http.StatusBadRequest, response.ErrInvalidOption
	case errors.Is(err, exam.ErrExamNotStarted):
		return http.StatusConflict, response.ErrExamNotStarted
	case errors.Is(err, exam.ErrAlreadySubmitted):
		return http.StatusConflict, response.ErrAlreadySubmitted
	case errors.Is(err, exam.ErrExamExpired):
		return http.StatusConflict, response.ErrExamExpired
	case errors.Is(err, repository.ErrSessionNotFound), errors.Is(err, exam.ErrNotAuthenticated):
		return http.StatusUnauthorized, response.ErrUnauthenticated
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
