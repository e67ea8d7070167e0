package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"strings"

	ordersdb "ordergate/internal/db/orders"
	"ordergate/internal/orders"
)

var openOrderDB = func(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

// buildOrderStore returns the Postgres-backed store when DATABASE_URL is set,
// otherwise an in-memory store for local development.
func buildOrderStore(ctx context.Context) (orders.OrderStore, func(), error) {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		log.Println("DATABASE_URL not set; orders are held in memory only")
		return orders.NewInMemoryOrderStore(), func() {}, nil
	}

	db, err := openOrderDB("pgx", databaseURL)
	if err != nil {
		return nil, nil, err
	}

	store, err := ordersdb.NewPostgresOrderStoreWithSchema(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Printf("close orders db: %v", err)
		}
	}
	return store, cleanup, nil
}
