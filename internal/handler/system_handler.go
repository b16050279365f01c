package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/response"
)

const healthTimeout = 2 * time.Second

// SystemHandler reports liveness and dependency health. Either client may be nil.
type SystemHandler struct {
	rdb       *redis.Client
	pool      *pgxpool.Pool
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(rdb *redis.Client, pool *pgxpool.Pool, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		rdb:       rdb,
		pool:      pool,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthStatus struct {
	Status       string            `json:"status"`
	Uptime       string            `json:"uptime"`
	Goroutines   int               `json:"goroutines"`
	Dependencies map[string]string `json:"dependencies"`
	QueueResults *int64            `json:"queue_results,omitempty"`
}

// Health godoc
// GET /health
// 200 when every configured dependency answers, 503 otherwise.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	st := healthStatus{
		Status:       "ok",
		Uptime:       formatDuration(time.Since(h.startTime)),
		Goroutines:   runtime.NumGoroutine(),
		Dependencies: map[string]string{},
	}

	if h.rdb != nil {
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			h.log.Warn().Err(err).Msg("Redis health check failed")
			st.Dependencies["redis"] = "down"
			st.Status = "degraded"
		} else {
			st.Dependencies["redis"] = "up"
			if n, err := h.rdb.LLen(ctx, config.WorkerKey.PersistResultsQueue).Result(); err == nil {
				st.QueueResults = &n
			}
		}
	}

	if h.pool != nil {
		if err := h.pool.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Msg("PostgreSQL health check failed")
			st.Dependencies["postgres"] = "down"
			st.Status = "degraded"
		} else {
			st.Dependencies["postgres"] = "up"
		}
	}

	code := http.StatusOK
	if st.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	response.Success(c, code, st)
}

// ---------- Helpers ----------

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
