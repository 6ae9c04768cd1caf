package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"shopflow/internal/pkg/logger"
	"shopflow/internal/service/order/application"
	"shopflow/internal/service/order/domain"
	"shopflow/internal/service/order/domain/port"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// OrderService 是 HTTP 层依赖的应用服务
type OrderService interface {
	CreateOrder(ctx context.Context, creds port.Credentials, req application.CreateOrderRequest) (*application.OrderView, error)
	ConfirmOrder(ctx context.Context, orderNumber string, actor domain.Actor) (*application.OrderView, error)
	ProcessOrder(ctx context.Context, orderNumber string, actor domain.Actor) (*application.OrderView, error)
	ShipOrder(ctx context.Context, orderNumber string, actor domain.Actor) (*application.OrderView, error)
	DeliverOrder(ctx context.Context, orderNumber string, actor domain.Actor) (*application.OrderView, error)
	RefundOrder(ctx context.Context, orderNumber string, actor domain.Actor) (*application.OrderView, error)
	CancelOrder(ctx context.Context, orderNumber string, actor domain.Actor, reason string) (*application.OrderView, error)
	GetOrder(ctx context.Context, orderNumber string, actor domain.Actor) (*application.OrderView, error)
	GetOrderHistory(ctx context.Context, orderNumber string, actor domain.Actor) ([]application.StatusChangeView, error)
	ListOrdersByUser(ctx context.Context, userID string, page domain.Page) (*application.OrderPage, error)
	ListOrdersByStatus(ctx context.Context, status domain.State, page domain.Page, actor domain.Actor) (*application.OrderPage, error)
}

// OrderHandler 封装了 order 服务的 HTTP 处理器
type OrderHandler struct {
	service OrderService
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Reasons []string `json:"reasons,omitempty"`
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.handleCreate)
	mux.HandleFunc("GET /orders", h.handleListMine)
	mux.HandleFunc("GET /orders/{orderNumber}", h.handleGet)
	// /orders/status/{status} 与 /orders/{orderNumber}/history 在 ServeMux 中互相冲突，合并为一个路由
	mux.HandleFunc("GET /orders/{first}/{second}", h.handleSubResource)
	mux.HandleFunc("POST /orders/{orderNumber}/confirm", h.transition(OrderService.ConfirmOrder))
	mux.HandleFunc("POST /orders/{orderNumber}/process", h.transition(OrderService.ProcessOrder))
	mux.HandleFunc("POST /orders/{orderNumber}/ship", h.transition(OrderService.ShipOrder))
	mux.HandleFunc("POST /orders/{orderNumber}/deliver", h.transition(OrderService.DeliverOrder))
	mux.HandleFunc("POST /orders/{orderNumber}/refund", h.transition(OrderService.RefundOrder))
	mux.HandleFunc("POST /orders/{orderNumber}/cancel", h.handleCancel)
}

func extract(r *http.Request) context.Context {
	return otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

// actorFrom 读取网关注入的身份头，缺省角色为 CUSTOMER
func actorFrom(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing " + HeaderUserID})
		return domain.Actor{}, false
	}
	role := domain.Role(strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderUserRole))))
	switch role {
	case "":
		role = domain.RoleCustomer
	case domain.RoleCustomer, domain.RoleStaff, domain.RoleAdmin:
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown role " + string(role)})
		return domain.Actor{}, false
	}
	return domain.Actor{UserID: userID, Role: role}, true
}

func pageFrom(r *http.Request) domain.Page {
	number, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	return domain.Page{Number: number, Size: size}.Normalize()
}

func (h *OrderHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req application.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	creds := port.Credentials{UserID: actor.UserID, Token: r.Header.Get("Authorization")}
	view, err := h.service.CreateOrder(ctx, creds, req)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *OrderHandler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	page, err := h.service.ListOrdersByUser(ctx, actor.UserID, pageFrom(r))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *OrderHandler) handleSubResource(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.PathValue("first") == "status":
		h.handleListByStatus(w, r, r.PathValue("second"))
	case r.PathValue("second") == "history":
		h.handleHistory(w, r, r.PathValue("first"))
	default:
		http.NotFound(w, r)
	}
}

func (h *OrderHandler) handleListByStatus(w http.ResponseWriter, r *http.Request, rawStatus string) {
	ctx := extract(r)
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	status, err := domain.ParseState(strings.ToUpper(rawStatus))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	page, err := h.service.ListOrdersByStatus(ctx, status, pageFrom(r), actor)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *OrderHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	view, err := h.service.GetOrder(ctx, r.PathValue("orderNumber"), actor)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *OrderHandler) handleHistory(w http.ResponseWriter, r *http.Request, orderNumber string) {
	ctx := extract(r)
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	history, err := h.service.GetOrderHistory(ctx, orderNumber, actor)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

type transitionFunc func(OrderService, context.Context, string, domain.Actor) (*application.OrderView, error)

func (h *OrderHandler) transition(call transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := extract(r)
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		view, err := call(h.service, ctx, r.PathValue("orderNumber"), actor)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (h *OrderHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	// body 可以为空
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
	}
	view, err := h.service.CancelOrder(ctx, r.PathValue("orderNumber"), actor, req.Reason)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// writeError 根据错误类型返回不同的 HTTP 状态码
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var validation *domain.CartValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "cart validation failed", Reasons: validation.Reasons})
		return
	}

	var statusCode int
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		statusCode = http.StatusForbidden
	case errors.Is(err, domain.ErrCartEmpty), errors.Is(err, domain.ErrUnknownStatus):
		statusCode = http.StatusBadRequest
	case errors.Is(err, domain.ErrProductUnavailable):
		statusCode = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrCancellationNotAllowed),
		errors.Is(err, domain.ErrConcurrentUpdate),
		errors.Is(err, domain.ErrDuplicateOrderNumber):
		statusCode = http.StatusConflict
	case errors.Is(err, domain.ErrStockReservationFailed), errors.Is(err, domain.ErrStockConfirmationFailed):
		statusCode = http.StatusBadGateway
		logger.Ctx(ctx).Warn().Err(err).Msg("inventory call failed")
	default:
		statusCode = http.StatusInternalServerError
		logger.Ctx(ctx).Error().Err(err).Msg("order request failed")
	}
	writeJSON(w, statusCode, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
