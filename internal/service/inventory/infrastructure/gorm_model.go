package infrastructure

import (
	"time"
)

// InventoryModel 对应 inventory 表。stock_status 每次保存时由 quantity 与阈值重新计算。
type InventoryModel struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	ProductID         int64  `gorm:"uniqueIndex;not null"`
	Quantity          int    `gorm:"not null;default:0"`
	ReservedQuantity  int    `gorm:"not null;default:0"`
	LowStockThreshold int    `gorm:"not null;default:10"`
	StockStatus       string `gorm:"size:16;not null;index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (InventoryModel) TableName() string {
	return "inventory"
}

// ReservationModel 对应 stock_reservations 表。
// PendingKey 只在 PENDING 时有值，唯一索引保证同一 (order_id, product_id) 最多一个 PENDING；
// 终态时置为 NULL，MySQL 唯一索引允许多个 NULL。
type ReservationModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	OrderID    string    `gorm:"size:64;not null;index:idx_reservation_order_product,priority:1"`
	ProductID  int64     `gorm:"not null;index:idx_reservation_order_product,priority:2"`
	Quantity   int       `gorm:"not null"`
	Status     string    `gorm:"size:16;not null;index:idx_reservation_status_expires,priority:1"`
	ExpiresAt  time.Time `gorm:"not null;index:idx_reservation_status_expires,priority:2"`
	PendingKey *string   `gorm:"size:96;uniqueIndex"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (ReservationModel) TableName() string {
	return "stock_reservations"
}
