// internal/pkg/outbox/relay.go
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"

	"shopflow/internal/pkg/logger"
	"shopflow/internal/pkg/metrics"
)

type RelayConfig struct {
	BatchSize   int
	Interval    time.Duration
	Lease       time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
}

// Relay 周期性地认领出站记录并投递，失败时按指数退避重试，超过上限标记为 FAILED。
type Relay struct {
	store     Store
	publisher Publisher
	cfg       RelayConfig
	relayID   string
	now       func() time.Time
}

func NewRelay(store Store, publisher Publisher, cfg RelayConfig) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		relayID:   "relay-" + uuid.NewString()[:8],
		now:       time.Now,
	}
}

// Run 阻塞直到 ctx 被取消。
func (r *Relay) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Str("relay_id", r.relayID).Dur("interval", r.cfg.Interval).Msg("✅ Outbox relay started")
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Str("relay_id", r.relayID).Msg("🛑 Outbox relay stopping")
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				logger.Ctx(ctx).Error().Err(err).Str("relay_id", r.relayID).Msg("outbox relay tick failed")
			}
		}
	}
}

// RunOnce 处理一批记录，返回成功投递的条数。
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	records, err := r.store.LockBatch(ctx, r.relayID, r.cfg.BatchSize, r.cfg.Lease)
	if err != nil {
		return 0, err
	}
	metrics.OutboxBatchSize.Observe(float64(len(records)))
	if len(records) == 0 {
		return 0, nil
	}

	sent := make([]uint64, 0, len(records))
	for _, rec := range records {
		if err := r.publisher.Publish(ctx, rec); err != nil {
			metrics.OutboxPublished.WithLabelValues(rec.Topic, metrics.ResultFailure).Inc()
			r.fail(ctx, rec, err)
			continue
		}
		metrics.OutboxPublished.WithLabelValues(rec.Topic, metrics.ResultSuccess).Inc()
		sent = append(sent, rec.ID)
	}

	if err := r.store.MarkSent(ctx, sent); err != nil {
		// 记录会在租约到期后被重新投递，消费端需要按 eventId 去重
		return 0, err
	}
	return len(sent), nil
}

func (r *Relay) fail(ctx context.Context, rec Record, cause error) {
	attempts := rec.Attempts + 1
	l := logger.Ctx(ctx).With().
		Str("event_id", rec.EventID).
		Str("event_type", rec.EventType).
		Int("attempts", attempts).
		Logger()

	if attempts >= r.cfg.MaxAttempts {
		l.Error().Err(cause).Msg("outbox record exhausted retries, marking FAILED")
		if err := r.store.MarkFailed(ctx, rec.ID, attempts, cause.Error()); err != nil {
			l.Error().Err(err).Msg("failed to mark outbox record FAILED")
		}
		return
	}

	next := r.now().UTC().Add(r.backoff(attempts))
	l.Warn().Err(cause).Time("next_attempt_at", next).Msg("outbox publish failed, rescheduled")
	if err := r.store.Reschedule(ctx, rec.ID, attempts, next, cause.Error()); err != nil {
		l.Error().Err(err).Msg("failed to reschedule outbox record")
	}
}

func (r *Relay) backoff(attempts int) time.Duration {
	d := r.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d > 5*time.Minute {
			return 5 * time.Minute
		}
	}
	return d
}
