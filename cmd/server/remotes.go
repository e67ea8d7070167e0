package main

import (
	"log"
	"time"

	"ordergate/cmd/server/config"
	grpcadapter "ordergate/internal/adapters/grpc"
	"ordergate/internal/observability"
	"ordergate/internal/resilience"

	grpcpkg "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// buildRemoteClients dials the identity and catalog services and wraps each
// connection in its own breaker and retry policy. The registry keeps breaker
// state shared across all requests for the lifetime of the process.
func buildRemoteClients(cfg config.RemotesConfig, registry *resilience.Registry, metrics *observability.Metrics) (*grpcadapter.IdentityClient, *grpcadapter.CatalogClient, func(), error) {
	onTransition := func(name string, state resilience.State) {
		metrics.SetBreakerState(name, state.String())
	}

	identityConn, err := grpcpkg.NewClient(cfg.IdentityAddr, grpcpkg.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, nil, err
	}
	catalogConn, err := grpcpkg.NewClient(cfg.CatalogAddr, grpcpkg.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		_ = identityConn.Close()
		return nil, nil, nil, err
	}

	identityBreaker := registry.Add("identity", resilience.BreakerConfig{
		FailMax:      cfg.Identity.FailMax,
		ResetTimeout: cfg.Identity.ResetTimeout,
		Logf:         log.Printf,
		OnTransition: onTransition,
	})
	catalogBreaker := registry.Add("catalog", resilience.BreakerConfig{
		FailMax:      cfg.Catalog.FailMax,
		ResetTimeout: cfg.Catalog.ResetTimeout,
		Logf:         log.Printf,
		OnTransition: onTransition,
	})

	identity := grpcadapter.NewIdentityClient(identityConn, grpcadapter.RemoteConfig{
		Breaker: identityBreaker,
		Retry:   retryPolicy(cfg.Identity, metrics),
		Timeout: cfg.Identity.CallTimeout,
		Logf:    log.Printf,
	})
	catalog := grpcadapter.NewCatalogClient(catalogConn, grpcadapter.RemoteConfig{
		Breaker: catalogBreaker,
		Retry:   retryPolicy(cfg.Catalog, metrics),
		Timeout: cfg.Catalog.CallTimeout,
		Logf:    log.Printf,
	})

	cleanup := func() {
		if err := identityConn.Close(); err != nil {
			log.Printf("close identity conn: %v", err)
		}
		if err := catalogConn.Close(); err != nil {
			log.Printf("close catalog conn: %v", err)
		}
	}
	return identity, catalog, cleanup, nil
}

func retryPolicy(cfg config.ResilienceConfig, metrics *observability.Metrics) resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		MinWait:     cfg.MinWait,
		MaxWait:     cfg.MaxWait,
		OnWait: func(attempt int, d time.Duration) {
			metrics.AddRetryWait(d)
		},
	}
}
