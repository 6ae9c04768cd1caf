package adapter

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"shopflow/internal/pkg/httpclient"
	"shopflow/internal/service/order/domain/port"
)

const (
	InventoryService = "inventory-service"

	inventoryReservePath = "/rpc/inventory/reserve"
	inventoryConfirmPath = "/rpc/inventory/confirm"
	inventoryReleasePath = "/rpc/inventory/release"
)

type stockRequest struct {
	OrderID   string `json:"orderId"`
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity,omitempty"`
}

type rpcResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// InventoryHTTPAdapter 实现了 port.InventoryService 接口。
// 任何传输错误或 success=false 都按失败返回，不会被当作成功。
type InventoryHTTPAdapter struct {
	client   *httpclient.Client
	resolver httpclient.Resolver
	service  string
}

// NewInventoryHTTPAdapter 创建一个新的库存服务适配器。
func NewInventoryHTTPAdapter(client *httpclient.Client, resolver httpclient.Resolver, service string) *InventoryHTTPAdapter {
	if service == "" {
		service = InventoryService
	}
	return &InventoryHTTPAdapter{client: client, resolver: resolver, service: service}
}

func (a *InventoryHTTPAdapter) url(ctx context.Context, path string) (string, error) {
	base, err := a.resolver.Resolve(ctx, a.service)
	if err != nil {
		return "", errors.Wrapf(err, "resolve %s", a.service)
	}
	return base + path, nil
}

// ReserveStock 实现了预占库存的HTTP调用逻辑。
func (a *InventoryHTTPAdapter) ReserveStock(ctx context.Context, orderNumber string, productID int64, qty int) error {
	return a.call(ctx, inventoryReservePath, stockRequest{OrderID: orderNumber, ProductID: productID, Quantity: qty})
}

func (a *InventoryHTTPAdapter) ConfirmStock(ctx context.Context, orderNumber string, productID int64) error {
	return a.call(ctx, inventoryConfirmPath, stockRequest{OrderID: orderNumber, ProductID: productID})
}

// ReleaseStock 实现了释放库存的补偿逻辑。
func (a *InventoryHTTPAdapter) ReleaseStock(ctx context.Context, orderNumber string, productID int64) error {
	return a.call(ctx, inventoryReleasePath, stockRequest{OrderID: orderNumber, ProductID: productID})
}

func (a *InventoryHTTPAdapter) call(ctx context.Context, path string, req stockRequest) error {
	u, err := a.url(ctx, path)
	if err != nil {
		return err
	}
	var resp rpcResponse
	if err := a.client.DoJSON(ctx, http.MethodPost, u, nil, req, &resp); err != nil {
		return errors.Wrapf(err, "%s order %s product %d", path, req.OrderID, req.ProductID)
	}
	if resp.Success {
		return nil
	}
	switch resp.Code {
	case "INSUFFICIENT_STOCK":
		return errors.Wrap(port.ErrInsufficientStock, resp.Message)
	case "ALREADY_CONFIRMED":
		return errors.Wrap(port.ErrAlreadyConfirmed, resp.Message)
	default:
		return errors.Wrapf(port.ErrRejected, "%s: %s", resp.Code, resp.Message)
	}
}
