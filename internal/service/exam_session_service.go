package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/exam"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/monitoring"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// errUnchanged aborts a store update that turned out to be a no-op.
var errUnchanged = errors.New("session unchanged")

// ResultPublisher hands graded results to durable storage.
type ResultPublisher interface {
	Publish(ctx context.Context, rec model.ResultRecord) error
}

// ExamSessionService drives one session through the exam workflow. Every
// write goes through SessionStore.Update so concurrent requests on the same
// session see each transition exactly once.
type ExamSessionService struct {
	store   repository.SessionStore
	bank    *repository.QuestionBank
	policy  exam.Policy
	ttl     time.Duration
	results ResultPublisher
	log     zerolog.Logger
	now     func() time.Time
}

// Option configures an ExamSessionService.
type Option func(*ExamSessionService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *ExamSessionService) { s.now = now }
}

// WithResultPublisher sends every committed result to p.
func WithResultPublisher(p ResultPublisher) Option {
	return func(s *ExamSessionService) { s.results = p }
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	store repository.SessionStore,
	bank *repository.QuestionBank,
	policy exam.Policy,
	ttl time.Duration,
	log zerolog.Logger,
	opts ...Option,
) *ExamSessionService {
	s := &ExamSessionService{
		store:  store,
		bank:   bank,
		policy: policy,
		ttl:    ttl,
		log:    log.With().Str("component", "exam_session").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Questions returns the bank without the answer key.
func (s *ExamSessionService) Questions() []model.SafeQuestion {
	return s.bank.Safe()
}

// Duration is the configured exam length.
func (s *ExamSessionService) Duration() time.Duration {
	return s.policy.Duration
}

// Start opens a fresh session for username. A previous session carried by the
// same browser is discarded so no workflow flags leak into the new login.
func (s *ExamSessionService) Start(ctx context.Context, previousID, username string) (*model.ExamSession, error) {
	if previousID != "" {
		if err := s.store.Delete(ctx, previousID); err != nil {
			s.log.Warn().Err(err).Str("session_id", previousID).Msg("Failed to drop previous session")
		}
	}

	sess := exam.NewSession(uuid.NewString(), username, s.now())
	if err := s.store.Create(ctx, &sess, s.ttl); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().Str("username", username).Str("session_id", sess.ID).Msg("Session started")
	return &sess, nil
}

// End deletes the session record.
func (s *ExamSessionService) End(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.log.Info().Str("session_id", id).Msg("Session ended")
	return nil
}

// Get loads a session, force-submitting it first if its time ran out.
func (s *ExamSessionService) Get(ctx context.Context, id string) (*model.ExamSession, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, sess)
}

// CheckEnvironment records a capability report. The returned error is
// exam.ErrInvalidCapability when any capability is missing; the session
// (with its incremented attempt count) is still returned.
func (s *ExamSessionService) CheckEnvironment(ctx context.Context, id string, report model.CapabilityReport) (*model.ExamSession, []string, error) {
	var checkErr error
	sess, err := s.store.Update(ctx, id, func(cur *model.ExamSession) error {
		next, err := exam.CheckEnvironment(*cur, report, s.now(), s.policy)
		if err != nil && !errors.Is(err, exam.ErrInvalidCapability) {
			return err
		}
		checkErr = err
		*cur = next
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	missing := exam.Missing(report)
	if checkErr != nil {
		monitoring.EnvironmentCheckCounter.WithLabelValues("failed").Inc()
		s.log.Info().
			Str("username", sess.Username).
			Str("session_id", sess.ID).
			Strs("missing", missing).
			Int("attempts", sess.CheckAttempts).
			Msg("Environment check failed")
		return sess, missing, checkErr
	}

	monitoring.EnvironmentCheckCounter.WithLabelValues("passed").Inc()
	s.log.Info().
		Str("username", sess.Username).
		Str("session_id", sess.ID).
		Time("exam_end_time", derefTime(sess.ExamEndTime)).
		Msg("Environment check passed")
	return sess, nil, nil
}

// Submit grades answers and commits the submission. Only the first call
// commits; later calls get exam.ErrAlreadySubmitted along with the stored
// session, whose result is never recomputed.
func (s *ExamSessionService) Submit(ctx context.Context, id string, answers exam.Answers) (*model.ExamSession, error) {
	sess, err := s.store.Update(ctx, id, func(cur *model.ExamSession) error {
		next, err := exam.Submit(*cur, s.bank.All(), answers, s.now(), s.policy)
		if err != nil {
			return err
		}
		*cur = next
		return nil
	})
	if err != nil {
		if errors.Is(err, exam.ErrAlreadySubmitted) {
			monitoring.SubmissionCounter.WithLabelValues("duplicate").Inc()
			stored, getErr := s.store.Get(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			return stored, err
		}
		return nil, err
	}

	s.committed(ctx, sess)
	return sess, nil
}

// Autosave stores one selection. When the exam has run out, the session is
// force-submitted and exam.ErrExamExpired is returned.
func (s *ExamSessionService) Autosave(ctx context.Context, id string, questionID, option int) (*model.ExamSession, error) {
	sess, err := s.store.Update(ctx, id, func(cur *model.ExamSession) error {
		next, err := exam.Autosave(*cur, s.bank.All(), questionID, option, s.now(), s.policy)
		if err != nil {
			return err
		}
		*cur = next
		return nil
	})
	if errors.Is(err, exam.ErrExamExpired) {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
	}
	return sess, err
}

// Timer answers the remaining-time query for a session.
func (s *ExamSessionService) Timer(ctx context.Context, id string) (exam.TimerStatus, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return exam.TimerStatus{}, err
	}
	return exam.Timer(sess, s.now()), nil
}

// TimerOf computes the timer for an already loaded session.
func (s *ExamSessionService) TimerOf(sess *model.ExamSession) exam.TimerStatus {
	return exam.Timer(sess, s.now())
}

// settle applies the expiry transition when a running exam is past its
// deadline plus grace.
func (s *ExamSessionService) settle(ctx context.Context, sess *model.ExamSession) (*model.ExamSession, error) {
	if !s.policy.AutoSubmit || !exam.Expired(sess, s.now(), s.policy) {
		return sess, nil
	}

	next, err := s.store.Update(ctx, sess.ID, func(cur *model.ExamSession) error {
		expired, changed := exam.Expire(*cur, s.bank.All(), s.now(), s.policy)
		if !changed {
			return errUnchanged
		}
		*cur = expired
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return s.store.Get(ctx, sess.ID)
	}
	if err != nil {
		return nil, err
	}

	s.committed(ctx, next)
	return next, nil
}

// committed runs after a submission was written by this caller.
func (s *ExamSessionService) committed(ctx context.Context, sess *model.ExamSession) {
	mode := "manual"
	if sess.AutoSubmitted {
		mode = "auto"
	}
	monitoring.SubmissionCounter.WithLabelValues(mode).Inc()
	monitoring.ScoreHistogram.Observe(float64(sess.Result.Score))

	s.log.Info().
		Str("username", sess.Username).
		Str("session_id", sess.ID).
		Str("mode", mode).
		Int("correct", sess.Result.Correct).
		Int("total", sess.Result.Total).
		Msg("Exam submitted")

	if s.results == nil {
		return
	}

	rec := model.ResultRecord{
		SessionID:     sess.ID,
		Username:      sess.Username,
		Total:         sess.Result.Total,
		Correct:       sess.Result.Correct,
		Wrong:         sess.Result.Wrong,
		Unanswered:    sess.Result.Unanswered,
		Score:         sess.Result.Score,
		AutoSubmitted: sess.AutoSubmitted,
		StartedAt:     derefTime(sess.ExamStartTime),
		SubmittedAt:   derefTime(sess.SubmittedAt),
	}
	if err := s.results.Publish(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("session_id", sess.ID).Msg("Failed to publish exam result")
	}
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
