package adapter

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"shopflow/internal/pkg/httpclient"
	"shopflow/internal/service/order/domain/port"
)

const (
	CartService = "cart-service"

	cartPath         = "/cart"
	cartValidatePath = "/cart/validate"
)

type cartResponse struct {
	UserID string `json:"userId"`
	Items  []struct {
		ProductID int64 `json:"productId"`
		Quantity  int   `json:"quantity"`
	} `json:"items"`
}

type cartValidationResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// CartHTTPAdapter 调用购物车服务，转发用户的 Authorization 与 X-User-ID
type CartHTTPAdapter struct {
	client   *httpclient.Client
	resolver httpclient.Resolver
	service  string
}

func NewCartHTTPAdapter(client *httpclient.Client, resolver httpclient.Resolver, service string) *CartHTTPAdapter {
	if service == "" {
		service = CartService
	}
	return &CartHTTPAdapter{client: client, resolver: resolver, service: service}
}

func (a *CartHTTPAdapter) do(ctx context.Context, method, path string, creds port.Credentials, out any) error {
	base, err := a.resolver.Resolve(ctx, a.service)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", a.service)
	}
	header := http.Header{}
	if creds.Token != "" {
		header.Set("Authorization", creds.Token)
	}
	header.Set("X-User-ID", creds.UserID)
	return a.client.DoJSON(ctx, method, base+path, header, nil, out)
}

func (a *CartHTTPAdapter) GetCart(ctx context.Context, creds port.Credentials) (*port.Cart, error) {
	var resp cartResponse
	if err := a.do(ctx, http.MethodGet, cartPath, creds, &resp); err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	cart := &port.Cart{UserID: resp.UserID, Items: make([]port.CartItem, 0, len(resp.Items))}
	for _, it := range resp.Items {
		cart.Items = append(cart.Items, port.CartItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return cart, nil
}

func (a *CartHTTPAdapter) ValidateCart(ctx context.Context, creds port.Credentials) (*port.CartValidation, error) {
	var resp cartValidationResponse
	if err := a.do(ctx, http.MethodPost, cartValidatePath, creds, &resp); err != nil {
		return nil, errors.Wrap(err, "validate cart")
	}
	return &port.CartValidation{Valid: resp.Valid, Errors: resp.Errors}, nil
}

func (a *CartHTTPAdapter) ClearCart(ctx context.Context, creds port.Credentials) error {
	return errors.Wrap(a.do(ctx, http.MethodDelete, cartPath, creds, nil), "clear cart")
}
