package handler

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
	"github.com/rl1809/salespoint-inventory/internal/core/service"
)

type GRPCHandler struct {
	orders    *service.OrderService
	inventory *service.InventoryService
	logger    *zap.Logger
}

func NewGRPCHandler(orders *service.OrderService, inventory *service.InventoryService, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{orders: orders, inventory: inventory, logger: logger}
}

func (h *GRPCHandler) CompleteOrder(ctx context.Context, req *OrderRequest) (*CompleteOrderResponse, error) {
	if req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	order, report, err := h.orders.Complete(ctx, domain.OrderIdentifier(req.OrderID))
	if err != nil {
		var failure *domain.CompletionFailure
		if errors.As(err, &failure) {
			return &CompleteOrderResponse{
				Success: false,
				Message: failure.Error(),
				Report:  &failure.Report,
			}, nil
		}
		return nil, h.toStatus(err)
	}

	return &CompleteOrderResponse{
		Success: true,
		Message: "order completed",
		Order:   &order,
		Report:  &report,
	}, nil
}

func (h *GRPCHandler) CancelOrder(ctx context.Context, req *OrderRequest) (*CancelOrderResponse, error) {
	if req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	order, err := h.orders.Cancel(ctx, domain.OrderIdentifier(req.OrderID))
	if err != nil {
		return nil, h.toStatus(err)
	}

	return &CancelOrderResponse{
		Success: true,
		Message: "order cancelled",
		Order:   &order,
	}, nil
}

func (h *GRPCHandler) FindStock(ctx context.Context, req *FindStockRequest) (*FindStockResponse, error) {
	if req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}

	stock, err := h.inventory.StockFor(ctx, domain.ProductIdentifier(req.ProductID))
	if err != nil {
		return nil, h.toStatus(err)
	}
	total, err := stock.TotalQuantity()
	if err != nil {
		return nil, h.toStatus(err)
	}

	items := make([]StockItem, 0, len(stock.Items()))
	for _, it := range stock.Items() {
		items = append(items, StockItem{ID: string(it.ID), Quantity: it.Quantity, Unique: it.Unique})
	}
	return &FindStockResponse{
		ProductID: req.ProductID,
		Kind:      stock.Kind().String(),
		Total:     total,
		Items:     items,
	}, nil
}

func (h *GRPCHandler) toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrIncompatibleMetric):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrInventoryConsistency), errors.Is(err, domain.ErrInconsistentStock):
		h.logger.Error("inventory inconsistent", zap.Error(err))
		return status.Error(codes.DataLoss, err.Error())
	default:
		h.logger.Error("grpc request failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}
