package redis

import (
	"context"
	"io"
)

// Shutdown returns a function that gracefully closes the Redis client.
// Call it from main's shutdown sequence alongside the other resource closers.
//
// Example:
//
//	closeRedis := redis.Shutdown(client)
//	defer closeRedis(ctx)
func Shutdown(client io.Closer) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Close()
	}
}
