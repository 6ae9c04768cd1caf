package domain

import (
	"time"

	"github.com/pkg/errors"
)

// StockStatus 由 quantity 与阈值推导，不作为独立事实存储。
type StockStatus string

const (
	StockAvailable  StockStatus = "AVAILABLE"
	StockLow        StockStatus = "LOW_STOCK"
	StockOutOfStock StockStatus = "OUT_OF_STOCK"
)

// DefaultLowStockThreshold 新建库存时使用的阈值
const DefaultLowStockThreshold = 10

// DeriveStatus 计算库存状态
func DeriveStatus(quantity, threshold int) StockStatus {
	switch {
	case quantity <= 0:
		return StockOutOfStock
	case quantity <= threshold:
		return StockLow
	default:
		return StockAvailable
	}
}

// Inventory 是单个商品的库存账本。
// 不变式：0 <= ReservedQuantity <= Quantity。
type Inventory struct {
	ID                int64
	ProductID         int64
	Quantity          int
	ReservedQuantity  int
	LowStockThreshold int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewInventory 创建账本，quantity 不能为负
func NewInventory(productID int64, quantity, threshold int) (*Inventory, error) {
	if quantity < 0 {
		return nil, errors.Wrapf(ErrInvalidQuantity, "initial stock %d", quantity)
	}
	if threshold < 0 {
		threshold = DefaultLowStockThreshold
	}
	return &Inventory{ProductID: productID, Quantity: quantity, LowStockThreshold: threshold}, nil
}

func (i *Inventory) Status() StockStatus {
	return DeriveStatus(i.Quantity, i.LowStockThreshold)
}

// Available 可承诺量 (ATP)
func (i *Inventory) Available() int {
	return i.Quantity - i.ReservedQuantity
}

// Hold 为一次预留占用库存
func (i *Inventory) Hold(qty int) error {
	if qty <= 0 {
		return errors.Wrapf(ErrInvalidQuantity, "reserve %d", qty)
	}
	if i.Available() < qty {
		return errors.Wrapf(ErrInsufficientStock, "product %d: available %d, requested %d", i.ProductID, i.Available(), qty)
	}
	i.ReservedQuantity += qty
	return nil
}

// Deduct 确认预留：同时扣减在手量和预留量
func (i *Inventory) Deduct(qty int) error {
	if qty <= 0 || qty > i.ReservedQuantity || qty > i.Quantity {
		return errors.Errorf("inventory %d: cannot deduct %d (quantity %d, reserved %d)", i.ProductID, qty, i.Quantity, i.ReservedQuantity)
	}
	i.Quantity -= qty
	i.ReservedQuantity -= qty
	return nil
}

// Unhold 释放或过期时归还预留量
func (i *Inventory) Unhold(qty int) error {
	if qty <= 0 || qty > i.ReservedQuantity {
		return errors.Errorf("inventory %d: cannot release %d (reserved %d)", i.ProductID, qty, i.ReservedQuantity)
	}
	i.ReservedQuantity -= qty
	return nil
}

// SetQuantity 管理端直接设置在手量，不能低于已预留量
func (i *Inventory) SetQuantity(qty int) error {
	if qty < 0 {
		return errors.Wrapf(ErrInvalidQuantity, "quantity %d", qty)
	}
	if qty < i.ReservedQuantity {
		return errors.Wrapf(ErrInvalidQuantity, "quantity %d below reserved %d", qty, i.ReservedQuantity)
	}
	i.Quantity = qty
	return nil
}

func (i *Inventory) SetThreshold(threshold int) error {
	if threshold < 0 {
		return errors.Wrapf(ErrInvalidQuantity, "threshold %d", threshold)
	}
	i.LowStockThreshold = threshold
	return nil
}
