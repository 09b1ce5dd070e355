package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Shutdown returns a function that gracefully closes the database connection pool.
// Call it from main's shutdown sequence alongside the other resource closers.
//
// Example:
//
//	closeDB := db.Shutdown(pool)
//	defer closeDB(ctx)
func Shutdown(pool *pgxpool.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		pool.Close()
		return nil
	}
}
