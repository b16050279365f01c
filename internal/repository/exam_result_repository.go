package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ExamResultRepository persists graded submissions.
type ExamResultRepository struct {
	pool *pgxpool.Pool
}

// NewExamResultRepository creates a new ExamResultRepository.
func NewExamResultRepository(pool *pgxpool.Pool) *ExamResultRepository {
	return &ExamResultRepository{pool: pool}
}

// InsertBatch writes many results in one statement using UNNEST.
// A session id is stored at most once; replays are ignored.
func (r *ExamResultRepository) InsertBatch(ctx context.Context, batch []model.ResultRecord) error {
	n := len(batch)
	if n == 0 {
		return nil
	}

	sessionIDs := make([]string, n)
	usernames := make([]string, n)
	totals := make([]int, n)
	corrects := make([]int, n)
	wrongs := make([]int, n)
	unanswered := make([]int, n)
	scores := make([]int, n)
	autos := make([]bool, n)
	startedAts := make([]time.Time, n)
	submittedAts := make([]time.Time, n)

	for i, rec := range batch {
		sessionIDs[i] = rec.SessionID
		usernames[i] = rec.Username
		totals[i] = rec.Total
		corrects[i] = rec.Correct
		wrongs[i] = rec.Wrong
		unanswered[i] = rec.Unanswered
		scores[i] = rec.Score
		autos[i] = rec.AutoSubmitted
		startedAts[i] = rec.StartedAt
		submittedAts[i] = rec.SubmittedAt
	}

	query := `
		INSERT INTO exam_results (
			session_id, username, total, correct, wrong, unanswered, score,
			auto_submitted, started_at, submitted_at
		)
		SELECT * FROM UNNEST(
			$1::text[], $2::text[], $3::int[], $4::int[], $5::int[], $6::int[], $7::int[],
			$8::bool[], $9::timestamptz[], $10::timestamptz[]
		)
		ON CONFLICT (session_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		sessionIDs, usernames, totals, corrects, wrongs, unanswered, scores,
		autos, startedAts, submittedAts,
	)
	return err
}

// Insert writes a single result. Used as the fallback when a batch fails.
func (r *ExamResultRepository) Insert(ctx context.Context, rec model.ResultRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_results (
			session_id, username, total, correct, wrong, unanswered, score,
			auto_submitted, started_at, submitted_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (session_id) DO NOTHING`,
		rec.SessionID, rec.Username, rec.Total, rec.Correct, rec.Wrong, rec.Unanswered, rec.Score,
		rec.AutoSubmitted, rec.StartedAt, rec.SubmittedAt,
	)
	return err
}
