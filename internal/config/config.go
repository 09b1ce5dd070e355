// Package config loads the composition root's single Config struct from
// the process environment via caarlos0/env, the same tag-driven
// convention pkg/db, pkg/redis and pkg/mailer/resend document without
// importing the parser themselves.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/enrichloop/core/pkg/mailer/resend"
)

// Config is the single source of environment-derived configuration for
// cmd/server.
type Config struct {
	// EncryptionKey must be exactly 32 bytes long (AES-256), used as-is
	// with no decoding step; the process
	// refuses to start without it (§6).
	EncryptionKey string `env:"ENCRYPTION_KEY,required"`

	// WorkerConcurrency is River's MaxWorkers for the enrichment:run queue.
	WorkerConcurrency int `env:"WORKER_CONCURRENCY" envDefault:"5"`

	DatabaseURL string `env:"DATABASE_CONN_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`

	Resend resend.Config

	SentryDSN string `env:"SENTRY_DSN"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// RateLimitWindowMS/RateLimitMaxRequests are the settings for an
	// edge-level global throttle. Out of the core's scope (§1); they are
	// parsed here for completeness, but cmd/server wires no throttle
	// middleware that reads them.
	RateLimitWindowMS    int `env:"RATE_LIMIT_WINDOW_MS" envDefault:"60000"`
	RateLimitMaxRequests int `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"100"`

	Blob BlobConfig
}

// BlobConfig configures the optional object-storage backend large bulk job
// outputs are offloaded to. Bucket empty (the default) disables
// offloading entirely; every output then stays inline in the Job Store.
type BlobConfig struct {
	Bucket    string `env:"BLOB_BUCKET"`
	AccessKey string `env:"BLOB_ACCESS_KEY"`
	SecretKey string `env:"BLOB_SECRET_KEY"`
	Endpoint  string `env:"BLOB_ENDPOINT"`
	Region    string `env:"BLOB_REGION" envDefault:"us-east-1"`
	PathStyle bool   `env:"BLOB_PATH_STYLE" envDefault:"false"`
}

// RateLimitWindow returns RateLimitWindowMS as a time.Duration.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMS) * time.Millisecond
}

// Load parses Config from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if len(cfg.EncryptionKey) != 32 {
		return nil, fmt.Errorf("config: ENCRYPTION_KEY must be exactly 32 bytes, got %d", len(cfg.EncryptionKey))
	}
	return &cfg, nil
}
