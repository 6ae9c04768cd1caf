// internal/pkg/outbox/store.go
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopflow/internal/pkg/event"
)

// Store 是 relay 使用的出站表访问接口。
type Store interface {
	// LockBatch 认领一批到期的 PENDING 记录，认领期间其他 relay 实例不会再拿到它们。
	LockBatch(ctx context.Context, owner string, batchSize int, lease time.Duration) ([]Record, error)
	MarkSent(ctx context.Context, ids []uint64) error
	Reschedule(ctx context.Context, id uint64, attempts int, next time.Time, lastErr string) error
	MarkFailed(ctx context.Context, id uint64, attempts int, lastErr string) error
}

// Append 在调用方的事务 tx 中写入事件，事件与业务状态同生共死。
// 当前的追踪上下文被序列化进 Headers，relay 发送时再还原。
func Append(ctx context.Context, tx *gorm.DB, envs ...event.Envelope) error {
	if len(envs) == 0 {
		return nil
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers, err := json.Marshal(carrier)
	if err != nil {
		return errors.Wrap(err, "marshal outbox headers")
	}

	now := time.Now().UTC()
	records := make([]Record, 0, len(envs))
	for _, env := range envs {
		body, err := json.Marshal(env)
		if err != nil {
			return errors.Wrapf(err, "marshal event %s", env.EventType)
		}
		records = append(records, Record{
			EventID:       env.EventID,
			EventType:     string(env.EventType),
			Topic:         env.Topic(),
			MsgKey:        env.Key,
			Payload:       body,
			Headers:       headers,
			Status:        StatusPending,
			NextAttemptAt: now,
			CreatedAt:     now,
		})
	}
	if err := tx.WithContext(ctx).Create(&records).Error; err != nil {
		return errors.Wrap(err, "append outbox events")
	}
	return nil
}

// GormStore 基于 MySQL 8 的 FOR UPDATE SKIP LOCKED 实现批量认领。
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) LockBatch(ctx context.Context, owner string, batchSize int, lease time.Duration) ([]Record, error) {
	var records []Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND next_attempt_at <= ?", StatusPending, now).
			Where("lease_until IS NULL OR lease_until < ?", now).
			Order("id").
			Limit(batchSize).
			Find(&records).Error
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		ids := make([]uint64, 0, len(records))
		for _, r := range records {
			ids = append(ids, r.ID)
		}
		until := now.Add(lease)
		return tx.Model(&Record{}).Where("id IN ?", ids).
			Updates(map[string]any{"lease_owner": owner, "lease_until": until}).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "lock outbox batch")
	}
	return records, nil
}

func (s *GormStore) MarkSent(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Model(&Record{}).Where("id IN ?", ids).
		Updates(map[string]any{"status": StatusSent, "sent_at": now, "lease_until": nil, "last_error": ""}).Error
}

func (s *GormStore) Reschedule(ctx context.Context, id uint64, attempts int, next time.Time, lastErr string) error {
	return s.db.WithContext(ctx).Model(&Record{}).Where("id = ?", id).
		Updates(map[string]any{
			"attempts":        attempts,
			"next_attempt_at": next,
			"lease_until":     nil,
			"last_error":      lastErr,
		}).Error
}

func (s *GormStore) MarkFailed(ctx context.Context, id uint64, attempts int, lastErr string) error {
	return s.db.WithContext(ctx).Model(&Record{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":      StatusFailed,
			"attempts":    attempts,
			"lease_until": nil,
			"last_error":  lastErr,
		}).Error
}
