package event

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// ReleaseReason 区分主动释放与过期回收，两者共用 stock-released 事件。
type ReleaseReason string

const (
	ReleaseReasonReleased ReleaseReason = "RELEASED"
	ReleaseReasonExpired  ReleaseReason = "EXPIRED"
)

type StockReservedPayload struct {
	ProductID         int64  `json:"productId"`
	OrderID           string `json:"orderId"`
	ReservedQuantity  int    `json:"reservedQuantity"`
	AvailableQuantity int    `json:"availableQuantity"`
	StockStatus       string `json:"stockStatus"`
}

func (StockReservedPayload) EventType() Type    { return StockReserved }
func (p StockReservedPayload) EventKey() string { return strconv.FormatInt(p.ProductID, 10) }

type StockConfirmedPayload struct {
	ProductID         int64  `json:"productId"`
	OrderID           string `json:"orderId"`
	ConfirmedQuantity int    `json:"confirmedQuantity"`
	RemainingQuantity int    `json:"remainingQuantity"`
	StockStatus       string `json:"stockStatus"`
}

func (StockConfirmedPayload) EventType() Type    { return StockConfirmed }
func (p StockConfirmedPayload) EventKey() string { return strconv.FormatInt(p.ProductID, 10) }

type StockReleasedPayload struct {
	ProductID         int64         `json:"productId"`
	OrderID           string        `json:"orderId"`
	ReleasedQuantity  int           `json:"releasedQuantity"`
	AvailableQuantity int           `json:"availableQuantity"`
	StockStatus       string        `json:"stockStatus"`
	Reason            ReleaseReason `json:"reason"`
}

func (StockReleasedPayload) EventType() Type    { return StockReleased }
func (p StockReleasedPayload) EventKey() string { return strconv.FormatInt(p.ProductID, 10) }

type StockUpdatedPayload struct {
	ProductID   int64  `json:"productId"`
	Quantity    int    `json:"quantity"`
	StockStatus string `json:"stockStatus"`
}

func (StockUpdatedPayload) EventType() Type    { return StockUpdated }
func (p StockUpdatedPayload) EventKey() string { return strconv.FormatInt(p.ProductID, 10) }

type OrderItemPayload struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type OrderCreatedPayload struct {
	OrderNumber string             `json:"orderNumber"`
	UserID      string             `json:"userId"`
	Items       []OrderItemPayload `json:"items"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	FinalAmount decimal.Decimal    `json:"finalAmount"`
	Status      string             `json:"status"`
}

func (OrderCreatedPayload) EventType() Type    { return OrderCreated }
func (p OrderCreatedPayload) EventKey() string { return p.OrderNumber }

type OrderConfirmedPayload struct {
	OrderNumber string `json:"orderNumber"`
	UserID      string `json:"userId"`
}

func (OrderConfirmedPayload) EventType() Type    { return OrderConfirmed }
func (p OrderConfirmedPayload) EventKey() string { return p.OrderNumber }

type OrderCancelledPayload struct {
	OrderNumber string `json:"orderNumber"`
	UserID      string `json:"userId"`
	Reason      string `json:"reason"`
}

func (OrderCancelledPayload) EventType() Type    { return OrderCancelled }
func (p OrderCancelledPayload) EventKey() string { return p.OrderNumber }

type OrderShippedPayload struct {
	OrderNumber string `json:"orderNumber"`
	UserID      string `json:"userId"`
}

func (OrderShippedPayload) EventType() Type    { return OrderShipped }
func (p OrderShippedPayload) EventKey() string { return p.OrderNumber }

type OrderDeliveredPayload struct {
	OrderNumber string `json:"orderNumber"`
	UserID      string `json:"userId"`
}

func (OrderDeliveredPayload) EventType() Type    { return OrderDelivered }
func (p OrderDeliveredPayload) EventKey() string { return p.OrderNumber }

// ProductCreatedPayload 由 product-service 发布，库存服务据此建立台账。
type ProductCreatedPayload struct {
	ProductID    int64 `json:"productId"`
	InitialStock int   `json:"initialStock"`
}

func (ProductCreatedPayload) EventType() Type    { return ProductCreated }
func (p ProductCreatedPayload) EventKey() string { return strconv.FormatInt(p.ProductID, 10) }

type ProductDeletedPayload struct {
	ProductID int64 `json:"productId"`
}

func (ProductDeletedPayload) EventType() Type    { return ProductDeleted }
func (p ProductDeletedPayload) EventKey() string { return strconv.FormatInt(p.ProductID, 10) }
