package application

import (
	"time"

	"github.com/shopspring/decimal"

	"shopflow/internal/service/order/domain"
)

// CreateOrderRequest 是下单请求，商品与数量来自购物车
type CreateOrderRequest struct {
	Shipping ShippingAddressDTO `json:"shippingAddress"`
	Notes    string             `json:"notes,omitempty"`
}

type ShippingAddressDTO struct {
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
}

func (a ShippingAddressDTO) toDomain() domain.ShippingAddress {
	return domain.ShippingAddress{
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
	}
}

type OrderItemView struct {
	ProductID       int64           `json:"productId"`
	ProductName     string          `json:"productName"`
	ProductImageURL string          `json:"productImageUrl,omitempty"`
	SKU             string          `json:"sku"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	Quantity        int             `json:"quantity"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

type StatusChangeView struct {
	PreviousStatus string    `json:"previousStatus,omitempty"`
	NewStatus      string    `json:"newStatus"`
	ChangedBy      string    `json:"changedBy"`
	Reason         string    `json:"reason"`
	ChangedAt      time.Time `json:"changedAt"`
}

type OrderView struct {
	OrderNumber     string             `json:"orderNumber"`
	UserID          string             `json:"userId"`
	Status          string             `json:"status"`
	Items           []OrderItemView    `json:"items"`
	TotalAmount     decimal.Decimal    `json:"totalAmount"`
	DiscountAmount  decimal.Decimal    `json:"discountAmount"`
	FinalAmount     decimal.Decimal    `json:"finalAmount"`
	ShippingAddress ShippingAddressDTO `json:"shippingAddress"`
	Notes           string             `json:"notes,omitempty"`
	CancelledReason string             `json:"cancelledReason,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

type OrderPage struct {
	Orders []*OrderView `json:"orders"`
	Total  int64        `json:"total"`
	Page   int          `json:"page"`
	Size   int          `json:"size"`
}

func toOrderView(o *domain.Order) *OrderView {
	items := make([]OrderItemView, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemView{
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			ProductImageURL: it.ProductImageURL,
			SKU:             it.SKU,
			UnitPrice:       it.UnitPrice,
			Quantity:        it.Quantity,
			Subtotal:        it.Subtotal,
		})
	}
	s := o.Shipping
	return &OrderView{
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		Status:         string(o.Status),
		Items:          items,
		TotalAmount:    o.TotalAmount,
		DiscountAmount: o.DiscountAmount,
		FinalAmount:    o.FinalAmount,
		ShippingAddress: ShippingAddressDTO{
			AddressLine1: s.AddressLine1, AddressLine2: s.AddressLine2,
			City: s.City, State: s.State, PostalCode: s.PostalCode, Country: s.Country,
		},
		Notes:           o.Notes,
		CancelledReason: o.CancelledReason,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toHistoryView(h []domain.StatusChange) []StatusChangeView {
	out := make([]StatusChangeView, 0, len(h))
	for _, c := range h {
		out = append(out, StatusChangeView{
			PreviousStatus: string(c.PreviousStatus),
			NewStatus:      string(c.NewStatus),
			ChangedBy:      c.ChangedBy,
			Reason:         c.Reason,
			ChangedAt:      c.ChangedAt,
		})
	}
	return out
}
