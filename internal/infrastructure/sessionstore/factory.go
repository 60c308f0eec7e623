package sessionstore

import (
	"fmt"

	"go.uber.org/zap"
)

// Factory creates session stores based on configuration.
type Factory struct {
	redisConfig           RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory.
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory.
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory store
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new session store factory.
func NewFactory(cfg RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore creates a Redis-backed store, falling back to the in-memory
// store when Redis is unavailable and fallback is allowed. An in-memory
// store does not share state across instances, so a checkout that returns
// to a different instance would lose its pending cart id.
func (f *Factory) CreateStore() (Store, error) {
	store, err := NewRedisStore(f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis session store",
			zap.String("host", f.redisConfig.Host),
			zap.Int("port", f.redisConfig.Port),
		)
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("failed to create Redis session store: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory session store",
		zap.Error(err),
	)
	return NewMemoryStore(), nil
}
