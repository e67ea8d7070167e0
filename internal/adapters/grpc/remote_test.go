package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"ordergate/internal/remote"
	"ordergate/internal/resilience"

	grpcpkg "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type scriptedIdentity struct {
	fn func(req *ValidateOwnerRequest) (*remote.OwnerCheck, error)
}

func (s *scriptedIdentity) ValidateOwner(_ context.Context, req *ValidateOwnerRequest) (*remote.OwnerCheck, error) {
	return s.fn(req)
}

type scriptedCatalog struct {
	info  func(req *ItemInfoRequest) (*remote.ItemCheck, error)
	avail func(req *AvailabilityRequest) (*remote.AvailabilityCheck, error)
}

func (s *scriptedCatalog) GetItemInfo(_ context.Context, req *ItemInfoRequest) (*remote.ItemCheck, error) {
	return s.info(req)
}

func (s *scriptedCatalog) CheckAvailability(_ context.Context, req *AvailabilityRequest) (*remote.AvailabilityCheck, error) {
	return s.avail(req)
}

func bufDialer(lis *bufconn.Listener) func(context.Context, string) (net.Conn, error) {
	return func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.Dial()
	}
}

func startRemoteServer(t *testing.T, register func(*grpcpkg.Server)) grpcpkg.ClientConnInterface {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpcpkg.NewServer()
	register(srv)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpcpkg.NewClient("passthrough:///bufnet",
		grpcpkg.WithContextDialer(bufDialer(lis)),
		grpcpkg.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}
	t.Cleanup(func() {
		if err := conn.Close(); err != nil {
			t.Fatalf("close conn: %v", err)
		}
	})
	return conn
}

func fastRemoteConfig(failMax int) RemoteConfig {
	return RemoteConfig{
		Breaker: resilience.NewCircuitBreaker(resilience.BreakerConfig{
			Name:         "test",
			FailMax:      failMax,
			ResetTimeout: 30 * time.Second,
		}),
		Retry: resilience.RetryPolicy{
			MaxAttempts: 3,
			MinWait:     time.Millisecond,
			MaxWait:     10 * time.Millisecond,
		},
		Timeout: time.Second,
	}
}

func TestIdentityClient_ValidateOwner_Success(t *testing.T) {
	t.Parallel()

	server := &scriptedIdentity{fn: func(req *ValidateOwnerRequest) (*remote.OwnerCheck, error) {
		if req.OwnerRef != "owner-1" {
			t.Errorf("unexpected owner ref %q", req.OwnerRef)
		}
		if req.RequestingService != "order-service" {
			t.Errorf("unexpected requesting service %q", req.RequestingService)
		}
		return &remote.OwnerCheck{Valid: true, Owner: remote.OwnerInfo{ID: "owner-1", Active: true}}, nil
	}}
	conn := startRemoteServer(t, func(srv *grpcpkg.Server) {
		RegisterIdentityServer(srv, server)
	})

	client := NewIdentityClient(conn, fastRemoteConfig(5))
	outcome := client.ValidateOwner(context.Background(), "owner-1")
	if outcome.Kind != remote.Success {
		t.Fatalf("expected success, got %v (%v)", outcome.Kind, outcome.Err)
	}
	if outcome.Payload.Owner.ID != "owner-1" {
		t.Fatalf("unexpected payload: %+v", outcome.Payload)
	}
}

func TestIdentityClient_ValidateOwner_Rejection(t *testing.T) {
	t.Parallel()

	calls := 0
	server := &scriptedIdentity{fn: func(_ *ValidateOwnerRequest) (*remote.OwnerCheck, error) {
		calls++
		return &remote.OwnerCheck{Valid: false, ErrorMessage: "owner is inactive"}, nil
	}}
	conn := startRemoteServer(t, func(srv *grpcpkg.Server) {
		RegisterIdentityServer(srv, server)
	})

	client := NewIdentityClient(conn, fastRemoteConfig(5))
	outcome := client.ValidateOwner(context.Background(), "owner-1")
	if outcome.Kind != remote.TerminalRejection {
		t.Fatalf("expected rejection, got %v", outcome.Kind)
	}
	if outcome.Reason != "owner is inactive" {
		t.Fatalf("unexpected reason %q", outcome.Reason)
	}
	if calls != 1 {
		t.Fatalf("expected a single call for a rejection, got %d", calls)
	}
}

func TestCatalogClient_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	calls := 0
	server := &scriptedCatalog{
		info: func(_ *ItemInfoRequest) (*remote.ItemCheck, error) {
			calls++
			if calls < 3 {
				return nil, status.Error(codes.Unavailable, "catalog warming up")
			}
			return &remote.ItemCheck{Exists: true, Item: remote.ItemInfo{ID: "sku-1", Price: "25.00", Available: true}}, nil
		},
		avail: func(_ *AvailabilityRequest) (*remote.AvailabilityCheck, error) {
			return &remote.AvailabilityCheck{Available: true}, nil
		},
	}
	conn := startRemoteServer(t, func(srv *grpcpkg.Server) {
		RegisterCatalogServer(srv, server)
	})

	client := NewCatalogClient(conn, fastRemoteConfig(5))
	outcome := client.GetItemInfo(context.Background(), "sku-1")
	if outcome.Kind != remote.Success {
		t.Fatalf("expected success, got %v (%v)", outcome.Kind, outcome.Err)
	}
	if calls != 3 {
		t.Fatalf("expected three calls, got %d", calls)
	}
	if outcome.Payload.Item.Price != "25.00" {
		t.Fatalf("unexpected payload: %+v", outcome.Payload)
	}
}

func TestCatalogClient_TerminalStatusNotRetried(t *testing.T) {
	t.Parallel()

	calls := 0
	server := &scriptedCatalog{
		info: func(_ *ItemInfoRequest) (*remote.ItemCheck, error) {
			calls++
			return nil, status.Error(codes.NotFound, "no such item")
		},
		avail: func(_ *AvailabilityRequest) (*remote.AvailabilityCheck, error) {
			return &remote.AvailabilityCheck{Available: true}, nil
		},
	}
	conn := startRemoteServer(t, func(srv *grpcpkg.Server) {
		RegisterCatalogServer(srv, server)
	})

	cfg := fastRemoteConfig(5)
	client := NewCatalogClient(conn, cfg)
	outcome := client.GetItemInfo(context.Background(), "sku-404")
	if outcome.Kind != remote.TerminalRejection {
		t.Fatalf("expected rejection, got %v (%v)", outcome.Kind, outcome.Err)
	}
	if outcome.Reason != "no such item" {
		t.Fatalf("unexpected reason %q", outcome.Reason)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
	if cfg.Breaker.Failures() != 0 {
		t.Fatalf("expected no breaker failures, got %d", cfg.Breaker.Failures())
	}
}

func TestCatalogClient_AvailabilityRejection(t *testing.T) {
	t.Parallel()

	server := &scriptedCatalog{
		info: func(_ *ItemInfoRequest) (*remote.ItemCheck, error) {
			return &remote.ItemCheck{Exists: true}, nil
		},
		avail: func(req *AvailabilityRequest) (*remote.AvailabilityCheck, error) {
			return &remote.AvailabilityCheck{Available: false, AvailableQuantity: 1, ErrorMessage: "only 1 left"}, nil
		},
	}
	conn := startRemoteServer(t, func(srv *grpcpkg.Server) {
		RegisterCatalogServer(srv, server)
	})

	client := NewCatalogClient(conn, fastRemoteConfig(5))
	outcome := client.CheckAvailability(context.Background(), "sku-1", 4)
	if outcome.Kind != remote.TerminalRejection {
		t.Fatalf("expected rejection, got %v", outcome.Kind)
	}
	if outcome.Reason != "only 1 left" {
		t.Fatalf("unexpected reason %q", outcome.Reason)
	}
}

func TestTerminalStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		terminal bool
	}{
		{"not_found", status.Error(codes.NotFound, "x"), true},
		{"invalid_argument", status.Error(codes.InvalidArgument, "x"), true},
		{"unauthenticated", status.Error(codes.Unauthenticated, "x"), true},
		{"permission_denied", status.Error(codes.PermissionDenied, "x"), true},
		{"unavailable", status.Error(codes.Unavailable, "x"), false},
		{"deadline", status.Error(codes.DeadlineExceeded, "x"), false},
		{"internal", status.Error(codes.Internal, "x"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, terminal := terminalStatus(tc.err); terminal != tc.terminal {
				t.Fatalf("expected terminal=%v for %v", tc.terminal, tc.err)
			}
		})
	}
}
