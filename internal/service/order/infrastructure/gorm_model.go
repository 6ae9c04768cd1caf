package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderModel 对应 orders 表，金额用 decimal(12,2)
type OrderModel struct {
	ID              int64           `gorm:"primaryKey;autoIncrement"`
	OrderNumber     string          `gorm:"size:32;uniqueIndex;not null"`
	UserID          string          `gorm:"size:64;not null;index"`
	Status          string          `gorm:"size:16;not null;index"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	FinalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	AddressLine1    string          `gorm:"size:255"`
	AddressLine2    string          `gorm:"size:255"`
	City            string          `gorm:"size:64"`
	State           string          `gorm:"size:64"`
	PostalCode      string          `gorm:"size:16"`
	Country         string          `gorm:"size:64"`
	Notes           string          `gorm:"type:text"`
	CancelledReason string          `gorm:"size:255"`
	CreatedAt       time.Time       `gorm:"index"`
	UpdatedAt       time.Time

	Items   []OrderItemModel     `gorm:"foreignKey:OrderID"`
	History []StatusHistoryModel `gorm:"foreignKey:OrderID"`
}

func (OrderModel) TableName() string {
	return "orders"
}

type OrderItemModel struct {
	ID              int64           `gorm:"primaryKey;autoIncrement"`
	OrderID         int64           `gorm:"not null;index"`
	ProductID       int64           `gorm:"not null"`
	ProductName     string          `gorm:"size:255"`
	ProductImageURL string          `gorm:"size:512"`
	SKU             string          `gorm:"size:64"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity        int             `gorm:"not null"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}

// StatusHistoryModel 只追加，不更新
type StatusHistoryModel struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	OrderID        int64     `gorm:"not null;index"`
	PreviousStatus string    `gorm:"size:16"`
	NewStatus      string    `gorm:"size:16;not null"`
	ChangedBy      string    `gorm:"size:64"`
	Reason         string    `gorm:"size:255"`
	ChangedAt      time.Time `gorm:"not null"`
}

func (StatusHistoryModel) TableName() string {
	return "order_status_history"
}
