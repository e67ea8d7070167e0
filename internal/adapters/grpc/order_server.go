package grpc

import (
	"context"
	"errors"
	"time"

	"ordergate/internal/orders"

	grpcpkg "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	orderServiceName = "ordergate.orders.OrderService"

	methodCreateOrder = "/" + orderServiceName + "/CreateOrder"
	methodGetOrder    = "/" + orderServiceName + "/GetOrder"
	methodListOrders  = "/" + orderServiceName + "/ListOrders"
)

// CreateOrderRequest creates an order for the authenticated owner. The owner
// reference is set by the authentication layer, never by the end client.
type CreateOrderRequest struct {
	OwnerRef       string            `json:"owner_ref"`
	IdempotencyKey string            `json:"idempotency_key"`
	Items          []CreateOrderItem `json:"items"`
}

// CreateOrderItem is one requested order line.
type CreateOrderItem struct {
	ItemRef  string `json:"item_ref"`
	Quantity int    `json:"quantity"`
}

// GetOrderRequest fetches one of the owner's orders.
type GetOrderRequest struct {
	OwnerRef string `json:"owner_ref"`
	OrderID  string `json:"order_id"`
}

// ListOrdersRequest lists the owner's orders.
type ListOrdersRequest struct {
	OwnerRef string `json:"owner_ref"`
}

// OrderResponse is the wire form of a committed order.
type OrderResponse struct {
	OrderID   string              `json:"order_id"`
	OwnerRef  string              `json:"owner_ref"`
	Total     string              `json:"total_amount"`
	Status    string              `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
	Lines     []OrderLineResponse `json:"items"`
}

// OrderLineResponse is the wire form of one order line.
type OrderLineResponse struct {
	ItemRef   string `json:"item_ref"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"price_at_validation"`
	Subtotal  string `json:"subtotal"`
}

// ListOrdersResponse carries the owner's orders, newest first.
type ListOrdersResponse struct {
	Orders []OrderResponse `json:"orders"`
}

// OrderService defines the behavior needed by the gRPC adapter.
type OrderService interface {
	CreateOrder(ctx context.Context, ownerRef string, items []orders.LineItemRequest, idemKey string) (orders.Order, error)
	GetOrder(ctx context.Context, ownerRef, orderID string) (orders.Order, error)
	ListOrders(ctx context.Context, ownerRef string) ([]orders.Order, error)
}

// OrderServer adapts OrderService to gRPC.
type OrderServer struct {
	service OrderService
}

// NewOrderServer constructs an OrderServer.
func NewOrderServer(svc OrderService) *OrderServer {
	return &OrderServer{service: svc}
}

// RegisterOrderServer registers the order service on a gRPC server.
func RegisterOrderServer(s grpcpkg.ServiceRegistrar, srv *OrderServer) {
	s.RegisterService(&orderServiceDesc, srv)
}

// OrderServiceName is the registered gRPC service name (health checks).
const OrderServiceName = orderServiceName

// CreateOrder handles the gRPC request and maps domain errors to status codes.
func (s *OrderServer) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	items := make([]orders.LineItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orders.LineItemRequest{ItemRef: item.ItemRef, Quantity: item.Quantity})
	}

	order, err := s.service.CreateOrder(ctx, req.OwnerRef, items, req.IdempotencyKey)
	if err != nil {
		return nil, mapOrderError(err)
	}
	return orderResponse(order), nil
}

// GetOrder returns one of the owner's orders.
func (s *OrderServer) GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error) {
	order, err := s.service.GetOrder(ctx, req.OwnerRef, req.OrderID)
	if err != nil {
		return nil, mapOrderError(err)
	}
	return orderResponse(order), nil
}

// ListOrders returns the owner's orders, newest first.
func (s *OrderServer) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	list, err := s.service.ListOrders(ctx, req.OwnerRef)
	if err != nil {
		return nil, mapOrderError(err)
	}
	resp := &ListOrdersResponse{Orders: make([]OrderResponse, 0, len(list))}
	for _, order := range list {
		resp.Orders = append(resp.Orders, *orderResponse(order))
	}
	return resp, nil
}

func orderResponse(order orders.Order) *OrderResponse {
	resp := &OrderResponse{
		OrderID:   order.ID,
		OwnerRef:  order.OwnerRef,
		Total:     order.Total.StringFixed(2),
		Status:    string(order.Status),
		CreatedAt: order.CreatedAt,
		Lines:     make([]OrderLineResponse, 0, len(order.Lines)),
	}
	for _, line := range order.Lines {
		resp.Lines = append(resp.Lines, OrderLineResponse{
			ItemRef:   line.ItemRef,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.StringFixed(2),
			Subtotal:  line.Subtotal().StringFixed(2),
		})
	}
	return resp
}

// mapOrderError keeps the reject / temporarily-unavailable / internal split
// visible to callers: rejections must never look like outages.
func mapOrderError(err error) error {
	var rejection *orders.RejectionError
	var unavailable *orders.UnavailableError

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, orders.ErrNoItems),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrOwnerRequired):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, orders.ErrOrderNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &rejection):
		return status.Error(codes.FailedPrecondition, rejection.Reason)
	case errors.As(err, &unavailable):
		return status.Error(codes.Unavailable, unavailable.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

var orderServiceDesc = grpcpkg.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*orderServiceServer)(nil),
	Methods: []grpcpkg.MethodDesc{
		{MethodName: "CreateOrder", Handler: createOrderHandler},
		{MethodName: "GetOrder", Handler: getOrderHandler},
		{MethodName: "ListOrders", Handler: listOrdersHandler},
	},
	Streams:  []grpcpkg.StreamDesc{},
	Metadata: "order.proto",
}

type orderServiceServer interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error)
	GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error)
	ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error)
}

func createOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpcpkg.UnaryServerInterceptor) (any, error) {
	in := new(CreateOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(orderServiceServer).CreateOrder(ctx, in)
	}
	info := &grpcpkg.UnaryServerInfo{Server: srv, FullMethod: methodCreateOrder}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(orderServiceServer).CreateOrder(ctx, req.(*CreateOrderRequest))
	})
}

func getOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpcpkg.UnaryServerInterceptor) (any, error) {
	in := new(GetOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(orderServiceServer).GetOrder(ctx, in)
	}
	info := &grpcpkg.UnaryServerInfo{Server: srv, FullMethod: methodGetOrder}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(orderServiceServer).GetOrder(ctx, req.(*GetOrderRequest))
	})
}

func listOrdersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpcpkg.UnaryServerInterceptor) (any, error) {
	in := new(ListOrdersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(orderServiceServer).ListOrders(ctx, in)
	}
	info := &grpcpkg.UnaryServerInfo{Server: srv, FullMethod: methodListOrders}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(orderServiceServer).ListOrders(ctx, req.(*ListOrdersRequest))
	})
}
