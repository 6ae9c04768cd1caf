package application

import (
	"time"

	"shopflow/internal/service/inventory/domain"
)

// StockInfo 是库存账本的完整快照，也是缓存里存放的结构。
type StockInfo struct {
	ProductID         int64     `json:"productId"`
	Quantity          int       `json:"quantity"`
	ReservedQuantity  int       `json:"reservedQuantity"`
	AvailableQuantity int       `json:"availableQuantity"`
	LowStockThreshold int       `json:"lowStockThreshold"`
	StockStatus       string    `json:"stockStatus"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func toStockInfo(inv *domain.Inventory) *StockInfo {
	return &StockInfo{
		ProductID:         inv.ProductID,
		Quantity:          inv.Quantity,
		ReservedQuantity:  inv.ReservedQuantity,
		AvailableQuantity: inv.Available(),
		LowStockThreshold: inv.LowStockThreshold,
		StockStatus:       string(inv.Status()),
		UpdatedAt:         inv.UpdatedAt,
	}
}

type CheckResult struct {
	ProductID         int64 `json:"productId"`
	IsAvailable       bool  `json:"isAvailable"`
	AvailableQuantity int   `json:"availableQuantity"`
}

type StockStatusView struct {
	ProductID         int64  `json:"productId"`
	StockStatus       string `json:"stockStatus"`
	AvailableQuantity int    `json:"availableQuantity"`
}

// UpdateStockCommand 中为 nil 的字段保持不变
type UpdateStockCommand struct {
	Quantity          *int `json:"quantity,omitempty"`
	LowStockThreshold *int `json:"lowStockThreshold,omitempty"`
}
