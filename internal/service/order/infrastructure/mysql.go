package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"shopflow/internal/pkg/database"
	"shopflow/internal/pkg/event"
	"shopflow/internal/pkg/outbox"
	"shopflow/internal/service/order/domain"
)

// MysqlRepository 是 domain.OrderRepository 的 gorm 实现。
// 订单、订单行、历史和 outbox 事件总在同一个事务里写入。
type MysqlRepository struct {
	db *gorm.DB
}

func NewMysqlRepository(db *gorm.DB) *MysqlRepository {
	return &MysqlRepository{db: db}
}

func (r *MysqlRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&OrderModel{}, &OrderItemModel{}, &StatusHistoryModel{}, &outbox.Record{})
}

func (r *MysqlRepository) Create(ctx context.Context, order *domain.Order, events ...event.Envelope) error {
	m := fromDomainOrder(order)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 关联的 items 与 history 由 gorm 级联插入
		if err := tx.Create(m).Error; err != nil {
			if database.IsDuplicateKey(err) {
				return errors.Wrapf(domain.ErrDuplicateOrderNumber, "%s", order.OrderNumber)
			}
			return errors.Wrap(err, "insert order")
		}
		return outbox.Append(ctx, tx, events...)
	})
	if err != nil {
		return err
	}
	order.ID = m.ID
	return nil
}

func (r *MysqlRepository) UpdateStatus(ctx context.Context, order *domain.Order, from domain.State, events ...event.Envelope) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&OrderModel{}).
			Where("id = ? AND status = ?", order.ID, string(from)).
			Updates(map[string]interface{}{
				"status":           string(order.Status),
				"cancelled_reason": order.CancelledReason,
				"updated_at":       order.UpdatedAt,
			})
		if res.Error != nil {
			return errors.Wrapf(res.Error, "update order %s", order.OrderNumber)
		}
		if res.RowsAffected == 0 {
			return errors.Wrapf(domain.ErrConcurrentUpdate, "order %s is no longer %s", order.OrderNumber, from)
		}
		h := fromDomainChange(order.ID, order.LastChange())
		if err := tx.Create(&h).Error; err != nil {
			return errors.Wrap(err, "append status history")
		}
		return outbox.Append(ctx, tx, events...)
	})
}

func (r *MysqlRepository) FindByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	var m OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("order_number = ?", orderNumber).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(domain.ErrOrderNotFound, "order %s", orderNumber)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find order %s", orderNumber)
	}
	return toDomainOrder(&m), nil
}

// CountCreatedOn 统计 day 所在 UTC 日内创建的订单数
func (r *MysqlRepository) CountCreatedOn(ctx context.Context, day time.Time) (int64, error) {
	y, mo, d := day.UTC().Date()
	start := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	var n int64
	err := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("created_at >= ? AND created_at < ?", start, start.AddDate(0, 0, 1)).
		Count(&n).Error
	return n, errors.Wrap(err, "count orders")
}

func (r *MysqlRepository) ListByUser(ctx context.Context, userID string, page domain.Page) ([]*domain.Order, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("user_id = ?", userID), page)
}

func (r *MysqlRepository) ListByStatus(ctx context.Context, status domain.State, page domain.Page) ([]*domain.Order, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("status = ?", string(status)), page)
}

func (r *MysqlRepository) list(ctx context.Context, scope *gorm.DB, page domain.Page) ([]*domain.Order, int64, error) {
	var total int64
	if err := scope.Session(&gorm.Session{}).Model(&OrderModel{}).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}
	var models []OrderModel
	err := scope.Session(&gorm.Session{}).
		Preload("Items").
		Order("created_at DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&models).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	out := make([]*domain.Order, 0, len(models))
	for i := range models {
		out = append(out, toDomainOrder(&models[i]))
	}
	return out, total, nil
}
