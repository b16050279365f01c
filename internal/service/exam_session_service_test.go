package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/exam"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

var allPresent = model.CapabilityReport{Camera: true, Microphone: true, Fullscreen: true, Network: true}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memPublisher struct {
	mu   sync.Mutex
	recs []model.ResultRecord
	err  error
}

func (p *memPublisher) Publish(_ context.Context, rec model.ResultRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recs = append(p.recs, rec)
	return p.err
}

func (p *memPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.recs)
}

func newTestService(t *testing.T, store repository.SessionStore) (*ExamSessionService, *fakeClock, *memPublisher) {
	t.Helper()
	bank, err := repository.LoadQuestionBank("")
	if err != nil {
		t.Fatalf("LoadQuestionBank: %v", err)
	}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	pub := &memPublisher{}
	policy := exam.Policy{Duration: 45 * time.Minute, SubmitGrace: 10 * time.Second, AutoSubmit: true}
	svc := NewExamSessionService(store, bank, policy, time.Hour, zerolog.Nop(),
		WithClock(clock.Now),
		WithResultPublisher(pub),
	)
	return svc, clock, pub
}

func stores(t *testing.T) map[string]repository.SessionStore {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return map[string]repository.SessionStore{
		"memory": repository.NewMemorySessionStore(),
		"redis":  repository.NewRedisSessionStore(rdb),
	}
}

func TestExamSessionLifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc, clock, pub := newTestService(t, store)

			sess, err := svc.Start(ctx, "", "kavi")
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			if exam.StageOf(sess) != exam.StageAuthenticated {
				t.Fatalf("stage = %s", exam.StageOf(sess))
			}

			got, missing, err := svc.CheckEnvironment(ctx, sess.ID, model.CapabilityReport{Camera: true})
			if !errors.Is(err, exam.ErrInvalidCapability) {
				t.Fatalf("err = %v, want ErrInvalidCapability", err)
			}
			if len(missing) != 3 || got.CheckAttempts != 1 || got.ExamStarted {
				t.Fatalf("after failed check: missing=%v session=%+v", missing, got)
			}

			got, _, err = svc.CheckEnvironment(ctx, sess.ID, allPresent)
			if err != nil {
				t.Fatalf("CheckEnvironment: %v", err)
			}
			if !got.ExamStarted || !got.ExamEndTime.Equal(clock.Now().Add(45*time.Minute)) {
				t.Fatalf("after passed check: %+v", got)
			}

			clock.Advance(time.Minute)
			if _, err := svc.Autosave(ctx, sess.ID, 4, 3); err != nil {
				t.Fatalf("Autosave: %v", err)
			}
			if status, _ := svc.Timer(ctx, sess.ID); !status.Active || status.RemainingSeconds != 44*60 {
				t.Fatalf("timer = %+v", status)
			}

			done, err := svc.Submit(ctx, sess.ID, exam.Answers{1: 2, 2: 1})
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if done.Result.Correct != 2 || done.Result.Unanswered != 3 {
				t.Fatalf("result = %+v", done.Result)
			}

			again, err := svc.Submit(ctx, sess.ID, exam.Answers{1: 2, 2: 1, 3: 0, 4: 3, 5: 1})
			if !errors.Is(err, exam.ErrAlreadySubmitted) {
				t.Fatalf("err = %v, want ErrAlreadySubmitted", err)
			}
			if again.Result.Correct != 2 {
				t.Fatalf("replay changed the result: %+v", again.Result)
			}
			if pub.count() != 1 {
				t.Fatalf("published = %d, want 1", pub.count())
			}

			if err := svc.End(ctx, sess.ID); err != nil {
				t.Fatalf("End: %v", err)
			}
			if _, err := svc.Get(ctx, sess.ID); !errors.Is(err, repository.ErrSessionNotFound) {
				t.Fatalf("err = %v, want ErrSessionNotFound", err)
			}
		})
	}
}

func TestStartDropsPreviousSession(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, repository.NewMemorySessionStore())

	first, _ := svc.Start(ctx, "", "kavi")
	if _, _, err := svc.CheckEnvironment(ctx, first.ID, allPresent); err != nil {
		t.Fatalf("CheckEnvironment: %v", err)
	}

	second, err := svc.Start(ctx, first.ID, "kavi")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if second.ID == first.ID || second.ExamStarted {
		t.Fatalf("second session = %+v", second)
	}
	if _, err := svc.Get(ctx, first.ID); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("previous session still present: %v", err)
	}
}

func TestSubmitRaceCommitsOnce(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc, _, pub := newTestService(t, store)

			sess, _ := svc.Start(ctx, "", "kushi")
			if _, _, err := svc.CheckEnvironment(ctx, sess.ID, allPresent); err != nil {
				t.Fatalf("CheckEnvironment: %v", err)
			}

			const workers = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				committed int
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := svc.Submit(ctx, sess.ID, exam.Answers{1: i % 4})
					switch {
					case err == nil:
						mu.Lock()
						committed++
						mu.Unlock()
					case errors.Is(err, exam.ErrAlreadySubmitted):
					default:
						t.Errorf("Submit: %v", err)
					}
				}(i)
			}
			wg.Wait()

			if committed != 1 || pub.count() != 1 {
				t.Fatalf("committed = %d, published = %d, want 1 and 1", committed, pub.count())
			}
		})
	}
}

func TestExpiryIsSettledOnRead(t *testing.T) {
	ctx := context.Background()
	svc, clock, pub := newTestService(t, repository.NewMemorySessionStore())

	sess, _ := svc.Start(ctx, "", "kavi")
	_, _, _ = svc.CheckEnvironment(ctx, sess.ID, allPresent)
	_, _ = svc.Autosave(ctx, sess.ID, 1, 2)

	clock.Advance(45*time.Minute + 10*time.Second)
	got, err := svc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ExamSubmitted {
		t.Fatal("session submitted inside the grace window")
	}

	clock.Advance(time.Second)
	got, err = svc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.ExamSubmitted || !got.AutoSubmitted || got.Result.Correct != 1 {
		t.Fatalf("after expiry: %+v", got)
	}

	if _, err := svc.Get(ctx, sess.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if pub.count() != 1 || !pub.recs[0].AutoSubmitted {
		t.Fatalf("published = %+v", pub.recs)
	}
}

func TestAutosaveAfterExpiry(t *testing.T) {
	ctx := context.Background()
	svc, clock, pub := newTestService(t, repository.NewMemorySessionStore())

	sess, _ := svc.Start(ctx, "", "kavi")
	_, _, _ = svc.CheckEnvironment(ctx, sess.ID, allPresent)

	clock.Advance(time.Hour)
	if _, err := svc.Autosave(ctx, sess.ID, 1, 2); !errors.Is(err, exam.ErrExamExpired) {
		t.Fatalf("err = %v, want ErrExamExpired", err)
	}
	if pub.count() != 1 {
		t.Fatalf("published = %d, want 1", pub.count())
	}

	got, _ := svc.Get(ctx, sess.ID)
	if !got.AutoSubmitted || got.Result.Unanswered != 5 {
		t.Fatalf("after expired autosave: %+v", got)
	}
}

func TestPublishFailureDoesNotUndoSubmission(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService(t, repository.NewMemorySessionStore())
	pub.err = errors.New("queue down")

	sess, _ := svc.Start(ctx, "", "kavi")
	_, _, _ = svc.CheckEnvironment(ctx, sess.ID, allPresent)

	got, err := svc.Submit(ctx, sess.ID, exam.Answers{1: 2})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !got.ExamSubmitted {
		t.Fatal("submission was not committed")
	}
}
