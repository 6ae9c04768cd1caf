package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopflow/internal/pkg/database"
	"shopflow/internal/pkg/event"
	"shopflow/internal/pkg/outbox"
	"shopflow/internal/service/inventory/domain"
)

// GormRepository 是 domain.Repository 的 MySQL 实现
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// AutoMigrate 建表，包括 outbox
func (r *GormRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&InventoryModel{}, &ReservationModel{}, &outbox.Record{})
}

func (r *GormRepository) Atomic(ctx context.Context, fn func(ctx context.Context, tx domain.TxRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormTx{db: tx})
	})
}

func (r *GormRepository) FindInventory(ctx context.Context, productID int64) (*domain.Inventory, error) {
	var m InventoryModel
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&m).Error
	if err != nil {
		return nil, notFound(err, domain.ErrInventoryNotFound, "product %d", productID)
	}
	return toDomainInventory(&m), nil
}

func (r *GormRepository) ListByStatus(ctx context.Context, statuses ...domain.StockStatus) ([]*domain.Inventory, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	var models []InventoryModel
	if err := r.db.WithContext(ctx).Where("stock_status IN ?", names).Order("product_id").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list inventory by status")
	}
	out := make([]*domain.Inventory, 0, len(models))
	for i := range models {
		out = append(out, toDomainInventory(&models[i]))
	}
	return out, nil
}

// FindExpiredReservations 走 (status, expires_at) 索引，不加锁，结果只是候选
func (r *GormRepository) FindExpiredReservations(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	var models []ReservationModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", string(domain.ReservationPending), now.UTC()).
		Order("expires_at").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "scan expired reservations")
	}
	out := make([]*domain.Reservation, 0, len(models))
	for i := range models {
		out = append(out, toDomainReservation(&models[i]))
	}
	return out, nil
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) forUpdate() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *gormTx) LockInventory(ctx context.Context, productID int64) (*domain.Inventory, error) {
	var m InventoryModel
	if err := t.forUpdate().WithContext(ctx).Where("product_id = ?", productID).First(&m).Error; err != nil {
		return nil, notFound(err, domain.ErrInventoryNotFound, "product %d", productID)
	}
	return toDomainInventory(&m), nil
}

func (t *gormTx) CreateInventory(ctx context.Context, inv *domain.Inventory) error {
	m := fromDomainInventory(inv)
	if err := t.db.WithContext(ctx).Create(m).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return errors.Wrapf(domain.ErrInventoryExists, "product %d", inv.ProductID)
		}
		return errors.Wrap(err, "create inventory")
	}
	inv.ID, inv.CreatedAt, inv.UpdatedAt = m.ID, m.CreatedAt, m.UpdatedAt
	return nil
}

func (t *gormTx) SaveInventory(ctx context.Context, inv *domain.Inventory) error {
	err := t.db.WithContext(ctx).Model(&InventoryModel{}).Where("id = ?", inv.ID).Updates(map[string]interface{}{
		"quantity":            inv.Quantity,
		"reserved_quantity":   inv.ReservedQuantity,
		"low_stock_threshold": inv.LowStockThreshold,
		"stock_status":        string(inv.Status()),
	}).Error
	return errors.Wrapf(err, "save inventory %d", inv.ProductID)
}

func (t *gormTx) DeleteInventory(ctx context.Context, productID int64) error {
	res := t.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&InventoryModel{})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "delete inventory %d", productID)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(domain.ErrInventoryNotFound, "product %d", productID)
	}
	return nil
}

func (t *gormTx) LockReservationFor(ctx context.Context, orderID string, productID int64) (*domain.Reservation, error) {
	var m ReservationModel
	// PENDING 排在最前，其次是最新的一条
	err := t.forUpdate().WithContext(ctx).
		Where("order_id = ? AND product_id = ?", orderID, productID).
		Order("CASE WHEN status = 'PENDING' THEN 0 ELSE 1 END, id DESC").
		First(&m).Error
	if err != nil {
		return nil, notFound(err, domain.ErrReservationNotFound, "order %s product %d", orderID, productID)
	}
	return toDomainReservation(&m), nil
}

func (t *gormTx) LockReservation(ctx context.Context, id int64) (*domain.Reservation, error) {
	var m ReservationModel
	if err := t.forUpdate().WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, domain.ErrReservationNotFound, "reservation %d", id)
	}
	return toDomainReservation(&m), nil
}

func (t *gormTx) CreateReservation(ctx context.Context, r *domain.Reservation) error {
	m := fromDomainReservation(r)
	if err := t.db.WithContext(ctx).Create(m).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return errors.Wrapf(domain.ErrReservationExists, "order %s product %d", r.OrderID, r.ProductID)
		}
		return errors.Wrap(err, "create reservation")
	}
	r.ID, r.CreatedAt, r.UpdatedAt = m.ID, m.CreatedAt, m.UpdatedAt
	return nil
}

func (t *gormTx) SaveReservation(ctx context.Context, r *domain.Reservation) error {
	m := fromDomainReservation(r)
	err := t.db.WithContext(ctx).Model(&ReservationModel{}).Where("id = ?", r.ID).Updates(map[string]interface{}{
		"status":      m.Status,
		"pending_key": m.PendingKey,
	}).Error
	return errors.Wrapf(err, "save reservation %d", r.ID)
}

func (t *gormTx) Publish(ctx context.Context, events ...event.Envelope) error {
	return outbox.Append(ctx, t.db, events...)
}

func notFound(err error, sentinel error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrapf(sentinel, format, args...)
	}
	return errors.Wrap(err, "query")
}
