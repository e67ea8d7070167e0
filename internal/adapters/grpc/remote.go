package grpc

import (
	"context"
	"time"

	"ordergate/internal/remote"
	"ordergate/internal/resilience"

	grpcpkg "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Service and method names follow the remote services' RPC contracts.
const (
	identityServiceName = "ordergate.identity.IdentityService"
	catalogServiceName  = "ordergate.catalog.CatalogService"

	methodValidateOwner     = "/" + identityServiceName + "/ValidateOwner"
	methodGetItemInfo       = "/" + catalogServiceName + "/GetItemInfo"
	methodCheckAvailability = "/" + catalogServiceName + "/CheckAvailability"

	requestingService = "order-service"
)

// ValidateOwnerRequest asks the identity service about one owner reference.
type ValidateOwnerRequest struct {
	OwnerRef          string `json:"owner_ref"`
	RequestingService string `json:"requesting_service"`
}

// ItemInfoRequest asks the catalog service about one item reference.
type ItemInfoRequest struct {
	ItemRef           string `json:"item_ref"`
	RequestingService string `json:"requesting_service"`
}

// AvailabilityRequest asks the catalog service whether a quantity is in stock.
type AvailabilityRequest struct {
	ItemRef           string `json:"item_ref"`
	Quantity          int    `json:"quantity"`
	RequestingService string `json:"requesting_service"`
}

// RemoteConfig carries the resilience wiring shared by the remote clients.
type RemoteConfig struct {
	Breaker *resilience.CircuitBreaker
	Retry   resilience.RetryPolicy
	Timeout time.Duration
	Logf    func(format string, args ...any)
}

// IdentityClient is the resilient gRPC client for the identity service.
type IdentityClient struct {
	caller *remote.Caller[ValidateOwnerRequest, remote.OwnerCheck]
}

// NewIdentityClient constructs an IdentityClient on an established connection.
func NewIdentityClient(conn grpcpkg.ClientConnInterface, cfg RemoteConfig) *IdentityClient {
	return &IdentityClient{
		caller: &remote.Caller[ValidateOwnerRequest, remote.OwnerCheck]{
			Name: "identity",
			Transport: func(ctx context.Context, req ValidateOwnerRequest) (remote.OwnerCheck, error) {
				var resp remote.OwnerCheck
				err := conn.Invoke(ctx, methodValidateOwner, &req, &resp, grpcpkg.CallContentSubtype(CodecName))
				return resp, err
			},
			Reject: func(resp remote.OwnerCheck) (string, bool) {
				if resp.Valid {
					return "", false
				}
				return rejectionMessage(resp.ErrorMessage, "owner not recognized"), true
			},
			TerminalErr: terminalStatus,
			Breaker:     cfg.Breaker,
			Retry:       cfg.Retry,
			Timeout:     cfg.Timeout,
			Logf:        cfg.Logf,
		},
	}
}

// ValidateOwner checks that the owner exists and is active.
func (c *IdentityClient) ValidateOwner(ctx context.Context, ownerRef string) remote.Outcome[remote.OwnerCheck] {
	return c.caller.Call(ctx, ValidateOwnerRequest{
		OwnerRef:          ownerRef,
		RequestingService: requestingService,
	})
}

// CatalogClient is the resilient gRPC client for the catalog service. Both
// operations share one breaker: they target the same remote process.
type CatalogClient struct {
	info  *remote.Caller[ItemInfoRequest, remote.ItemCheck]
	avail *remote.Caller[AvailabilityRequest, remote.AvailabilityCheck]
}

// NewCatalogClient constructs a CatalogClient on an established connection.
func NewCatalogClient(conn grpcpkg.ClientConnInterface, cfg RemoteConfig) *CatalogClient {
	return &CatalogClient{
		info: &remote.Caller[ItemInfoRequest, remote.ItemCheck]{
			Name: "catalog",
			Transport: func(ctx context.Context, req ItemInfoRequest) (remote.ItemCheck, error) {
				var resp remote.ItemCheck
				err := conn.Invoke(ctx, methodGetItemInfo, &req, &resp, grpcpkg.CallContentSubtype(CodecName))
				return resp, err
			},
			Reject: func(resp remote.ItemCheck) (string, bool) {
				if resp.Exists {
					return "", false
				}
				return rejectionMessage(resp.ErrorMessage, "item not found"), true
			},
			TerminalErr: terminalStatus,
			Breaker:     cfg.Breaker,
			Retry:       cfg.Retry,
			Timeout:     cfg.Timeout,
			Logf:        cfg.Logf,
		},
		avail: &remote.Caller[AvailabilityRequest, remote.AvailabilityCheck]{
			Name: "catalog",
			Transport: func(ctx context.Context, req AvailabilityRequest) (remote.AvailabilityCheck, error) {
				var resp remote.AvailabilityCheck
				err := conn.Invoke(ctx, methodCheckAvailability, &req, &resp, grpcpkg.CallContentSubtype(CodecName))
				return resp, err
			},
			Reject: func(resp remote.AvailabilityCheck) (string, bool) {
				if resp.Available {
					return "", false
				}
				return rejectionMessage(resp.ErrorMessage, "insufficient inventory"), true
			},
			TerminalErr: terminalStatus,
			Breaker:     cfg.Breaker,
			Retry:       cfg.Retry,
			Timeout:     cfg.Timeout,
			Logf:        cfg.Logf,
		},
	}
}

// GetItemInfo fetches existence, price and inventory for an item.
func (c *CatalogClient) GetItemInfo(ctx context.Context, itemRef string) remote.Outcome[remote.ItemCheck] {
	return c.info.Call(ctx, ItemInfoRequest{
		ItemRef:           itemRef,
		RequestingService: requestingService,
	})
}

// CheckAvailability confirms the requested quantity is in stock.
func (c *CatalogClient) CheckAvailability(ctx context.Context, itemRef string, quantity int) remote.Outcome[remote.AvailabilityCheck] {
	return c.avail.Call(ctx, AvailabilityRequest{
		ItemRef:           itemRef,
		Quantity:          quantity,
		RequestingService: requestingService,
	})
}

// terminalStatus marks status codes a healthy server returns for a bad
// request; retrying cannot change the answer. Everything else on the wire
// (Unavailable, DeadlineExceeded, connection resets) stays transient.
func terminalStatus(err error) (string, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return "", false
	}
	switch st.Code() {
	case codes.InvalidArgument, codes.NotFound, codes.Unauthenticated, codes.PermissionDenied:
		return st.Message(), true
	}
	return "", false
}

func rejectionMessage(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

// IdentityServer is the server side of the identity contract, implemented by
// the real identity service and by in-process stubs in tests.
type IdentityServer interface {
	ValidateOwner(ctx context.Context, req *ValidateOwnerRequest) (*remote.OwnerCheck, error)
}

// CatalogServer is the server side of the catalog contract.
type CatalogServer interface {
	GetItemInfo(ctx context.Context, req *ItemInfoRequest) (*remote.ItemCheck, error)
	CheckAvailability(ctx context.Context, req *AvailabilityRequest) (*remote.AvailabilityCheck, error)
}

// RegisterIdentityServer registers an identity implementation on a server.
func RegisterIdentityServer(s grpcpkg.ServiceRegistrar, srv IdentityServer) {
	s.RegisterService(&identityServiceDesc, srv)
}

// RegisterCatalogServer registers a catalog implementation on a server.
func RegisterCatalogServer(s grpcpkg.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&catalogServiceDesc, srv)
}

var identityServiceDesc = grpcpkg.ServiceDesc{
	ServiceName: identityServiceName,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpcpkg.MethodDesc{
		{MethodName: "ValidateOwner", Handler: validateOwnerHandler},
	},
	Streams:  []grpcpkg.StreamDesc{},
	Metadata: "identity.proto",
}

var catalogServiceDesc = grpcpkg.ServiceDesc{
	ServiceName: catalogServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpcpkg.MethodDesc{
		{MethodName: "GetItemInfo", Handler: getItemInfoHandler},
		{MethodName: "CheckAvailability", Handler: checkAvailabilityHandler},
	},
	Streams:  []grpcpkg.StreamDesc{},
	Metadata: "catalog.proto",
}

func validateOwnerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpcpkg.UnaryServerInterceptor) (any, error) {
	in := new(ValidateOwnerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityServer).ValidateOwner(ctx, in)
	}
	info := &grpcpkg.UnaryServerInfo{Server: srv, FullMethod: methodValidateOwner}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(IdentityServer).ValidateOwner(ctx, req.(*ValidateOwnerRequest))
	})
}

func getItemInfoHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpcpkg.UnaryServerInterceptor) (any, error) {
	in := new(ItemInfoRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).GetItemInfo(ctx, in)
	}
	info := &grpcpkg.UnaryServerInfo{Server: srv, FullMethod: methodGetItemInfo}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).GetItemInfo(ctx, req.(*ItemInfoRequest))
	})
}

func checkAvailabilityHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpcpkg.UnaryServerInterceptor) (any, error) {
	in := new(AvailabilityRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).CheckAvailability(ctx, in)
	}
	info := &grpcpkg.UnaryServerInfo{Server: srv, FullMethod: methodCheckAvailability}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).CheckAvailability(ctx, req.(*AvailabilityRequest))
	})
}
