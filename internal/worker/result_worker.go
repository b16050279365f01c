package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/monitoring"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
	// ResultMaxAttempts is how many failed single-row inserts a result gets
	// before it moves to the dead-letter queue.
	ResultMaxAttempts = 5
)

// queuedResult is the queue payload. The record's fields stay at the top
// level; Attempts counts failed inserts so far.
type queuedResult struct {
	model.ResultRecord
	Attempts int `json:"attempts,omitempty"`
}

// ResultWriter persists graded results.
type ResultWriter interface {
	InsertBatch(ctx context.Context, batch []model.ResultRecord) error
	Insert(ctx context.Context, rec model.ResultRecord) error
}

// ResultQueue publishes results onto the Redis persistence queue.
type ResultQueue struct {
	rdb *redis.Client
}

// NewResultQueue creates a new ResultQueue.
func NewResultQueue(rdb *redis.Client) *ResultQueue {
	return &ResultQueue{rdb: rdb}
}

// Publish appends rec to the persistence queue.
func (q *ResultQueue) Publish(ctx context.Context, rec model.ResultRecord) error {
	return pushResult(ctx, q.rdb, config.WorkerKey.PersistResultsQueue, queuedResult{ResultRecord: rec})
}

func pushResult(ctx context.Context, rdb *redis.Client, queue string, item queuedResult) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := rdb.RPush(ctx, queue, raw).Err(); err != nil {
		return fmt.Errorf("push %s: %w", queue, err)
	}
	return nil
}

// InlinePublisher writes results straight to the database. Used when no
// Redis queue is available.
type InlinePublisher struct {
	writer ResultWriter
}

// NewInlinePublisher creates a new InlinePublisher.
func NewInlinePublisher(writer ResultWriter) *InlinePublisher {
	return &InlinePublisher{writer: writer}
}

// Publish writes rec immediately.
func (p *InlinePublisher) Publish(ctx context.Context, rec model.ResultRecord) error {
	return p.writer.Insert(ctx, rec)
}

// ResultWorker drains the persistence queue into the database in batches.
type ResultWorker struct {
	writer ResultWriter
	rdb    *redis.Client
	log    zerolog.Logger

	batchSize    int
	batchTimeout time.Duration
	pollTimeout  time.Duration
}

// NewResultWorker creates a new ResultWorker.
func NewResultWorker(writer ResultWriter, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		writer:       writer,
		rdb:          rdb,
		log:          log.With().Str("component", "result_worker").Logger(),
		batchSize:    ResultBatchSize,
		batchTimeout: ResultBatchTimeout,
		pollTimeout:  ResultPollTimeout,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start runs until ctx is cancelled, then flushes what it holds. Call in a goroutine.
func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]queuedResult, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, w.pollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					time.Sleep(w.pollTimeout)
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var queued queuedResult
			if err := json.Unmarshal([]byte(item[1]), &queued); err != nil {
				w.log.Error().Err(err).Str("payload", item[1]).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, queued)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert with per-row fallback
// ----------------------------------------------------------------

func (w *ResultWorker) flushSafe(ctx context.Context, batch []queuedResult) {
	if len(batch) == 0 {
		return
	}

	records := make([]model.ResultRecord, len(batch))
	for i, item := range batch {
		records[i] = item.ResultRecord
	}

	err := w.writer.InsertBatch(ctx, records)
	if err == nil {
		monitoring.ResultsPersisted.WithLabelValues("batch").Add(float64(len(batch)))
		return
	}
	w.log.Warn().Err(err).Int("size", len(batch)).Msg("Batch insert failed, using fallback")

	for _, item := range batch {
		err := w.writer.Insert(ctx, item.ResultRecord)
		if err == nil {
			monitoring.ResultsPersisted.WithLabelValues("single").Inc()
			continue
		}
		w.retry(ctx, item, err)
	}
}

// retry requeues a result whose insert failed, or dead-letters it when the
// failure is permanent or the attempts are used up.
func (w *ResultWorker) retry(ctx context.Context, item queuedResult, cause error) {
	item.Attempts++
	evt := func(e *zerolog.Event) *zerolog.Event {
		return e.Err(cause).Str("session_id", item.SessionID).Int("attempts", item.Attempts)
	}

	queue, outcome := config.WorkerKey.PersistResultsQueue, "requeued"
	if permanentError(cause) || item.Attempts >= ResultMaxAttempts {
		queue, outcome = config.WorkerKey.DeadResultsQueue, "dead_lettered"
		evt(w.log.Error()).Msg("Insert failed, moving result to dead-letter queue")
	} else {
		evt(w.log.Warn()).Msg("Insert failed, requeueing")
	}

	if err := pushResult(ctx, w.rdb, queue, item); err != nil {
		monitoring.ResultsPersisted.WithLabelValues("lost").Inc()
		evt(w.log.Error()).AnErr("push_error", err).
			Interface("result", item.ResultRecord).
			Msg("Result could not be queued and is lost")
		return
	}
	monitoring.ResultsPersisted.WithLabelValues(outcome).Inc()
}

// permanentError reports database errors that retrying cannot fix: data
// exceptions (class 22) and integrity violations (class 23).
func permanentError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || len(pgErr.Code) < 2 {
		return false
	}
	switch pgErr.Code[:2] {
	case "22", "23":
		return true
	}
	return false
}
