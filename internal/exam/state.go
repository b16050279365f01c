// Package exam holds the exam workflow rules: session transitions, the page
// gate, grading and the timer. Everything here is a pure function of its
// inputs; persistence happens in the service layer.
package exam

import (
	"errors"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

var (
	ErrNotAuthenticated  = errors.New("session is not authenticated")
	ErrAlreadySubmitted  = errors.New("exam already submitted")
	ErrExamNotStarted    = errors.New("exam has not started")
	ErrCheckNotPassed    = errors.New("environment check not passed")
	ErrExamExpired       = errors.New("exam time is over")
	ErrUnknownQuestion   = errors.New("question is not part of the bank")
	ErrInvalidOption     = errors.New("option index out of range")
	ErrInvalidCapability = errors.New("environment check failed")
)

// Stage is the workflow position derived from a session's flags.
type Stage string

const (
	StageAnonymous     Stage = "ANONYMOUS"
	StageAuthenticated Stage = "AUTHENTICATED"
	StageAwaitingCheck Stage = "AWAITING_CHECK"
	StageInExam        Stage = "IN_EXAM"
	StageSubmitted     Stage = "SUBMITTED"
)

// Policy carries the timing rules applied by the transitions.
type Policy struct {
	Duration time.Duration
	// SubmitGrace tolerates form posts that race the deadline.
	SubmitGrace time.Duration
	// AutoSubmit grades the autosaved answers once the deadline plus grace has passed.
	AutoSubmit bool
}

// NewSession returns a freshly authenticated session with every exam flag at its default.
func NewSession(id, username string, now time.Time) model.ExamSession {
	return model.ExamSession{
		ID:            id,
		Authenticated: true,
		Username:      username,
		CreatedAt:     now.UTC(),
	}
}

// StageOf derives the workflow stage. A passed check starts the exam in the
// same transition, so there is no separate "checked" stage to observe.
func StageOf(s *model.ExamSession) Stage {
	switch {
	case s == nil || !s.Authenticated:
		return StageAnonymous
	case s.ExamSubmitted:
		return StageSubmitted
	case s.ExamStarted:
		return StageInExam
	case s.CheckAttempts > 0:
		return StageAwaitingCheck
	default:
		return StageAuthenticated
	}
}

// Missing lists the capabilities the report does not have.
func Missing(r model.CapabilityReport) []string {
	var out []string
	if !r.Camera {
		out = append(out, "camera")
	}
	if !r.Microphone {
		out = append(out, "microphone")
	}
	if !r.Fullscreen {
		out = append(out, "fullscreen")
	}
	if !r.Network {
		out = append(out, "network")
	}
	return out
}

// CheckEnvironment applies an environment check submission. On success the
// exam timer starts at now. On failure the session stays before the exam and
// ErrInvalidCapability is returned together with the state to store.
//
// Once the exam has started the timer is anchored and the session is returned
// unchanged, whatever the report says.
func CheckEnvironment(s model.ExamSession, report model.CapabilityReport, now time.Time, p Policy) (model.ExamSession, error) {
	if !s.Authenticated {
		return s, ErrNotAuthenticated
	}

	passed := len(Missing(report)) == 0

	if s.ExamStarted || s.ExamSubmitted {
		if !passed {
			return s, ErrInvalidCapability
		}
		return s, nil
	}

	next := clone(s)
	if !passed {
		next.EnvironmentCheckPassed = false
		next.CheckAttempts++
		return next, ErrInvalidCapability
	}

	start := now.UTC()
	end := start.Add(p.Duration)
	next.EnvironmentCheckPassed = true
	next.ExamStarted = true
	next.ExamStartTime = &start
	next.ExamEndTime = &end
	return next, nil
}

// Expired reports whether the deadline plus grace has passed for a running exam.
func Expired(s *model.ExamSession, now time.Time, p Policy) bool {
	if s == nil || !s.ExamStarted || s.ExamSubmitted || s.ExamEndTime == nil {
		return false
	}
	return now.After(s.ExamEndTime.Add(p.SubmitGrace))
}

// Expire force-submits a running exam whose time is over, grading whatever
// was autosaved. The second return value is false when nothing changed.
func Expire(s model.ExamSession, bank []model.Question, now time.Time, p Policy) (model.ExamSession, bool) {
	if !p.AutoSubmit || !Expired(&s, now, p) {
		return s, false
	}
	next := finish(s, bank, s.Answers, now)
	next.AutoSubmitted = true
	return next, true
}

// Submit grades the submitted answers and moves the session to SUBMITTED.
// It fires at most once: a replay returns ErrAlreadySubmitted and the caller
// must keep the stored result. A late post is graded like an expiry.
func Submit(s model.ExamSession, bank []model.Question, answers Answers, now time.Time, p Policy) (model.ExamSession, error) {
	if !s.Authenticated {
		return s, ErrNotAuthenticated
	}
	if s.ExamSubmitted {
		return s, ErrAlreadySubmitted
	}
	if !s.ExamStarted {
		return s, ErrExamNotStarted
	}
	if !s.EnvironmentCheckPassed {
		return s, ErrCheckNotPassed
	}

	if next, expired := Expire(s, bank, now, p); expired {
		return next, nil
	}
	return finish(s, bank, answers, now), nil
}

// Autosave records one selection while the exam is running.
func Autosave(s model.ExamSession, bank []model.Question, questionID, option int, now time.Time, p Policy) (model.ExamSession, error) {
	if !s.Authenticated {
		return s, ErrNotAuthenticated
	}
	if s.ExamSubmitted {
		return s, ErrAlreadySubmitted
	}
	if !s.ExamStarted {
		return s, ErrExamNotStarted
	}
	if Expired(&s, now, p) {
		return s, ErrExamExpired
	}

	q, ok := find(bank, questionID)
	if !ok {
		return s, ErrUnknownQuestion
	}
	if option < 0 || option >= len(q.Options) {
		return s, ErrInvalidOption
	}

	next := clone(s)
	if next.Answers == nil {
		next.Answers = make(map[int]int)
	}
	next.Answers[questionID] = option
	return next, nil
}

func finish(s model.ExamSession, bank []model.Question, answers Answers, now time.Time) model.ExamSession {
	next := clone(s)
	result := Grade(bank, answers)
	at := now.UTC()
	next.Result = &result
	next.ExamSubmitted = true
	next.SubmittedAt = &at
	return next
}

func find(bank []model.Question, id int) (model.Question, bool) {
	for _, q := range bank {
		if q.ID == id {
			return q, true
		}
	}
	return model.Question{}, false
}

// clone copies s deeply enough that transitions never alias the caller's record.
func clone(s model.ExamSession) model.ExamSession {
	out := s
	if s.ExamStartTime != nil {
		t := *s.ExamStartTime
		out.ExamStartTime = &t
	}
	if s.ExamEndTime != nil {
		t := *s.ExamEndTime
		out.ExamEndTime = &t
	}
	if s.SubmittedAt != nil {
		t := *s.SubmittedAt
		out.SubmittedAt = &t
	}
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	if s.Answers != nil {
		out.Answers = make(map[int]int, len(s.Answers))
		for k, v := range s.Answers {
			out.Answers[k] = v
		}
	}
	return out
}
