package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/Dongkey-Dev/chat-app/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Config holds the presence module settings.
type Config struct {
	// RedisAddr selects the Redis store. Empty means in-memory presence.
	RedisAddr     string
	RedisPassword string
	KeyPrefix     string
	Window        time.Duration
}

// Module provides the presence tracker as a mono module.
type Module struct {
	cfg     Config
	logger  types.Logger
	client  *redis.Client
	tracker *Tracker
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new presence module.
func NewModule(cfg Config, logger types.Logger) *Module {
	return &Module{
		cfg:    cfg,
		logger: logger.WithModule("presence"),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "presence"
}

// Tracker returns the presence tracker. Valid after Start.
func (m *Module) Tracker() *Tracker {
	return m.tracker
}

// Client returns the Redis client, or nil when running in memory.
func (m *Module) Client() *redis.Client {
	return m.client
}

// Start connects to Redis when configured and builds the tracker.
func (m *Module) Start(ctx context.Context) error {
	window := m.cfg.Window
	if window <= 0 {
		window = chat.ActiveWindow
	}

	var store Store
	if m.cfg.RedisAddr == "" {
		store = NewMemoryStore()
		m.logger.Info("Using in-memory presence store")
	} else {
		m.client = redis.NewClient(&redis.Options{
			Addr:     m.cfg.RedisAddr,
			Password: m.cfg.RedisPassword,
		})
		if err := m.client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		store = NewRedisStore(m.client, m.cfg.KeyPrefix, window)
		m.logger.Info("Connected to Redis", "addr", m.cfg.RedisAddr)
	}

	m.tracker = NewTracker(store, m.logger, WithWindow(window))
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.client == nil {
		return nil
	}
	if err := m.client.Close(); err != nil {
		m.logger.Error("Error closing Redis connection", "error", err)
	}
	m.logger.Info("Module stopped")
	return nil
}

// Health reports the store backend and the last published room counts.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.tracker == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "not started",
		}
	}

	details := map[string]any{"backend": "memory"}
	if m.client != nil {
		details["backend"] = "redis"
		details["addr"] = m.cfg.RedisAddr
		if err := m.client.Ping(ctx).Err(); err != nil {
			return mono.HealthStatus{
				Healthy: false,
				Message: fmt.Sprintf("redis ping failed: %v", err),
				Details: details,
			}
		}
	}

	counts, err := m.tracker.CachedCounts(ctx)
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: err.Error(),
			Details: details,
		}
	}
	details["room_counts"] = counts

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}
