// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package redistream

import (
	"fmt"
	"time"

	jms "github.com/GwynCerbin/go_jms"
)

// Config for the Redis Streams session.
type Config struct {
	// Client options
	Addr     string `env:"REDIS_ADDR" yaml:"addr"`
	Username string `env:"REDIS_USERNAME" yaml:"-"`
	Password string `env:"REDIS_PASSWORD" yaml:"-"`
	DB       int    `env:"REDIS_DB" yaml:"db"`

	// Namespace prefixes every stream key as <namespace>:<qualified destination>.
	Namespace string `env:"REDIS_NAMESPACE" yaml:"namespace"`

	// BatchSize is the XRANGE page and XREAD count.
	BatchSize int `env:"REDIS_BATCH_SIZE" yaml:"batch_size"`
	// Block bounds one XREAD call. Closing a consumer may wait that long.
	Block time.Duration `env:"REDIS_BLOCK" yaml:"block"`
	// MaxLenApprox trims streams with MAXLEN ~ when positive.
	MaxLenApprox int64 `env:"REDIS_MAX_LEN" yaml:"max_len_approx"`

	Prefixes jms.Prefixes `yaml:"prefixes"`
}

// Defaults returns a Config with production-safe defaults.
func Defaults() Config {
	return Config{
		Addr:      "127.0.0.1:6379",
		Namespace: "jms",
		BatchSize: 128,
		Block:     time.Second,
		Prefixes:  jms.DefaultPrefixes(),
	}
}

// Validate checks Config for production readiness.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr required")
	}
	if c.Namespace == "" {
		return fmt.Errorf("config: namespace required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch_size must be >= 1, got %d", c.BatchSize)
	}
	if c.Block <= 0 {
		return fmt.Errorf("config: block must be > 0, got %v", c.Block)
	}
	if c.MaxLenApprox < 0 {
		return fmt.Errorf("config: max_len_approx must be >= 0, got %d", c.MaxLenApprox)
	}
	if c.Prefixes == (jms.Prefixes{}) {
		return fmt.Errorf("config: prefixes required")
	}
	return nil
}
