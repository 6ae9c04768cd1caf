package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"shopflow/internal/pkg/logger"
	"shopflow/internal/service/inventory/application"
	"shopflow/internal/service/inventory/domain"
)

// StockService 是 HTTP 层依赖的应用服务能力
type StockService interface {
	CheckStock(ctx context.Context, productID int64, qty int) (*application.CheckResult, error)
	ReserveStock(ctx context.Context, orderID string, productID int64, qty int) error
	ConfirmStock(ctx context.Context, orderID string, productID int64) error
	ReleaseStock(ctx context.Context, orderID string, productID int64) error
	GetStockInfo(ctx context.Context, productID int64) (*application.StockInfo, error)
	GetStockStatus(ctx context.Context, productID int64) (*application.StockStatusView, error)
	UpdateStock(ctx context.Context, productID int64, cmd application.UpdateStockCommand) (*application.StockInfo, error)
	ListLowStock(ctx context.Context) ([]*application.StockInfo, error)
}

// RPC 应答中的业务错误码
const (
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidState      = "INVALID_STATE"
	CodeAlreadyConfirmed  = "ALREADY_CONFIRMED"
	CodeReservationExists = "RESERVATION_EXISTS"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeInternal          = "INTERNAL"
)

// StockRequest 是 reserve/confirm/release/check 共用的请求体
type StockRequest struct {
	OrderID   string `json:"orderId"`
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// RPCResponse 业务失败也返回 200，调用方根据 success 判断
type RPCResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// InventoryHandler 暴露预留 RPC 与库存管理接口
type InventoryHandler struct {
	service StockService
}

func NewInventoryHandler(service StockService) *InventoryHandler {
	return &InventoryHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /rpc/inventory/check", h.handleCheck)
	mux.HandleFunc("POST /rpc/inventory/reserve", h.handleReserve)
	mux.HandleFunc("POST /rpc/inventory/confirm", h.handleConfirm)
	mux.HandleFunc("POST /rpc/inventory/release", h.handleRelease)
	mux.HandleFunc("GET /rpc/inventory/stock-info", h.handleStockInfo)

	mux.HandleFunc("GET /inventory/low-stock", h.handleLowStock)
	mux.HandleFunc("GET /inventory/{productId}", h.handleGetInventory)
	mux.HandleFunc("GET /inventory/{productId}/status", h.handleGetStatus)
	mux.HandleFunc("PUT /inventory/{productId}/stock", h.handleUpdateStock)
}

func extract(r *http.Request) context.Context {
	return otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

func (h *InventoryHandler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	var req StockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID <= 0 || req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, RPCResponse{Message: "invalid request body", Code: CodeInvalidRequest})
		return
	}
	res, err := h.service.CheckStock(ctx, req.ProductID, req.Quantity)
	if err != nil {
		if errors.Is(err, domain.ErrInventoryNotFound) {
			writeJSON(w, http.StatusOK, application.CheckResult{ProductID: req.ProductID})
			return
		}
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *InventoryHandler) handleReserve(w http.ResponseWriter, r *http.Request) {
	h.rpc(w, r, true, func(ctx context.Context, req StockRequest) error {
		return h.service.ReserveStock(ctx, req.OrderID, req.ProductID, req.Quantity)
	}, "Stock reserved successfully")
}

func (h *InventoryHandler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	h.rpc(w, r, false, func(ctx context.Context, req StockRequest) error {
		return h.service.ConfirmStock(ctx, req.OrderID, req.ProductID)
	}, "Stock confirmed successfully")
}

func (h *InventoryHandler) handleRelease(w http.ResponseWriter, r *http.Request) {
	h.rpc(w, r, false, func(ctx context.Context, req StockRequest) error {
		return h.service.ReleaseStock(ctx, req.OrderID, req.ProductID)
	}, "Stock released successfully")
}

// rpc 统一处理 reserve/confirm/release：业务失败映射为 success=false 加错误码
func (h *InventoryHandler) rpc(w http.ResponseWriter, r *http.Request, needQty bool, call func(context.Context, StockRequest) error, okMsg string) {
	ctx := extract(r)
	var req StockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.OrderID == "" || req.ProductID <= 0 || (needQty && req.Quantity <= 0) {
		writeJSON(w, http.StatusBadRequest, RPCResponse{Message: "invalid request body", Code: CodeInvalidRequest})
		return
	}
	if err := call(ctx, req); err != nil {
		code := rpcCode(err)
		if code == CodeInternal {
			logger.Ctx(ctx).Error().Err(err).Str("order_id", req.OrderID).Int64("product_id", req.ProductID).Msg("inventory rpc failed")
		}
		writeJSON(w, http.StatusOK, RPCResponse{Success: false, Message: err.Error(), Code: code})
		return
	}
	writeJSON(w, http.StatusOK, RPCResponse{Success: true, Message: okMsg})
}

func rpcCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return CodeInsufficientStock
	case errors.Is(err, domain.ErrInventoryNotFound), errors.Is(err, domain.ErrReservationNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrAlreadyConfirmed):
		return CodeAlreadyConfirmed
	case errors.Is(err, domain.ErrInvalidReservationState):
		return CodeInvalidState
	case errors.Is(err, domain.ErrReservationExists):
		return CodeReservationExists
	case errors.Is(err, domain.ErrInvalidQuantity):
		return CodeInvalidRequest
	default:
		return CodeInternal
	}
}

func (h *InventoryHandler) handleStockInfo(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	productID, err := strconv.ParseInt(r.URL.Query().Get("productId"), 10, 64)
	if err != nil {
		http.Error(w, "invalid productId", http.StatusBadRequest)
		return
	}
	info, err := h.service.GetStockInfo(ctx, productID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *InventoryHandler) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	productID, ok := pathProductID(w, r)
	if !ok {
		return
	}
	info, err := h.service.GetStockInfo(ctx, productID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *InventoryHandler) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	productID, ok := pathProductID(w, r)
	if !ok {
		return
	}
	view, err := h.service.GetStockStatus(ctx, productID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *InventoryHandler) handleUpdateStock(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	productID, ok := pathProductID(w, r)
	if !ok {
		return
	}
	var cmd application.UpdateStockCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	info, err := h.service.UpdateStock(ctx, productID, cmd)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *InventoryHandler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	list, err := h.service.ListLowStock(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func pathProductID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("productId"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid productId", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeError 根据错误类型返回不同的 HTTP 状态码
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrInventoryNotFound), errors.Is(err, domain.ErrReservationNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidQuantity):
		statusCode = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrInvalidReservationState):
		statusCode = http.StatusConflict
	default:
		statusCode = http.StatusInternalServerError
		logger.Ctx(ctx).Error().Err(err).Msg("inventory request failed")
	}
	http.Error(w, err.Error(), statusCode)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
