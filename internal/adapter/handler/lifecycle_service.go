package handler

import (
	"context"

	"google.golang.org/grpc"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
)

const lifecycleServiceName = "salespoint.inventory.v1.OrderLifecycle"

type OrderRequest struct {
	OrderID string `json:"order_id"`
}

type CompleteOrderResponse struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
	Order   *domain.Order            `json:"order,omitempty"`
	Report  *domain.CompletionReport `json:"report,omitempty"`
}

type CancelOrderResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Order   *domain.Order `json:"order,omitempty"`
}

type FindStockRequest struct {
	ProductID string `json:"product_id"`
}

type StockItem struct {
	ID       string          `json:"id"`
	Quantity domain.Quantity `json:"quantity"`
	Unique   bool            `json:"unique"`
}

type FindStockResponse struct {
	ProductID string          `json:"product_id"`
	Kind      string          `json:"kind"`
	Total     domain.Quantity `json:"total"`
	Items     []StockItem     `json:"items"`
}

type OrderLifecycleServer interface {
	CompleteOrder(context.Context, *OrderRequest) (*CompleteOrderResponse, error)
	CancelOrder(context.Context, *OrderRequest) (*CancelOrderResponse, error)
	FindStock(context.Context, *FindStockRequest) (*FindStockResponse, error)
}

func RegisterOrderLifecycleServer(s grpc.ServiceRegistrar, srv OrderLifecycleServer) {
	s.RegisterService(&orderLifecycleServiceDesc, srv)
}

var orderLifecycleServiceDesc = grpc.ServiceDesc{
	ServiceName: lifecycleServiceName,
	HandlerType: (*OrderLifecycleServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CompleteOrder", Handler: completeOrderHandler},
		{MethodName: "CancelOrder", Handler: cancelOrderHandler},
		{MethodName: "FindStock", Handler: findStockHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "salespoint/inventory/v1/lifecycle",
}

func unary[Req any, Resp any](
	method string,
	call func(OrderLifecycleServer, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderLifecycleServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + lifecycleServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderLifecycleServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var (
	completeOrderHandler = unary("CompleteOrder", OrderLifecycleServer.CompleteOrder)
	cancelOrderHandler   = unary("CancelOrder", OrderLifecycleServer.CancelOrder)
	findStockHandler     = unary("FindStock", OrderLifecycleServer.FindStock)
)

// OrderLifecycleClient calls the lifecycle service with the JSON codec.
type OrderLifecycleClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderLifecycleClient(cc grpc.ClientConnInterface) *OrderLifecycleClient {
	return &OrderLifecycleClient{cc: cc}
}

func (c *OrderLifecycleClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+lifecycleServiceName+"/"+method, in, out, opts...)
}

func (c *OrderLifecycleClient) CompleteOrder(ctx context.Context, in *OrderRequest, opts ...grpc.CallOption) (*CompleteOrderResponse, error) {
	out := new(CompleteOrderResponse)
	if err := c.invoke(ctx, "CompleteOrder", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderLifecycleClient) CancelOrder(ctx context.Context, in *OrderRequest, opts ...grpc.CallOption) (*CancelOrderResponse, error) {
	out := new(CancelOrderResponse)
	if err := c.invoke(ctx, "CancelOrder", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderLifecycleClient) FindStock(ctx context.Context, in *FindStockRequest, opts ...grpc.CallOption) (*FindStockResponse, error) {
	out := new(FindStockResponse)
	if err := c.invoke(ctx, "FindStock", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
