package port

import "context"

// Credentials 是调用购物车服务时转发的用户身份
type Credentials struct {
	UserID string
	Token  string
}

type CartItem struct {
	ProductID int64
	Quantity  int
}

type Cart struct {
	UserID string
	Items  []CartItem
}

type CartValidation struct {
	Valid  bool
	Errors []string
}

// CartService 是购物车服务的出站端口。
type CartService interface {
	GetCart(ctx context.Context, creds Credentials) (*Cart, error)
	ValidateCart(ctx context.Context, creds Credentials) (*CartValidation, error)
	// ClearCart 下单成功后清空购物车，失败不影响订单
	ClearCart(ctx context.Context, creds Credentials) error
}
