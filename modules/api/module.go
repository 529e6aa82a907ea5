package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Dongkey-Dev/chat-app/events"
	"github.com/Dongkey-Dev/chat-app/modules/broadcast"
	"github.com/Dongkey-Dev/chat-app/modules/fanout"
	"github.com/Dongkey-Dev/chat-app/modules/presence"
	"github.com/Dongkey-Dev/chat-app/modules/registry"
	"github.com/Dongkey-Dev/chat-app/modules/router"
	"github.com/Dongkey-Dev/chat-app/modules/store"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Fanout backends.
const (
	// FanoutBus publishes chat events on the mono event bus, consumed by the
	// broadcast module of every process in the NATS cluster.
	FanoutBus = "bus"
	// FanoutRedis delivers locally and relays through Redis pub/sub.
	FanoutRedis = "redis"
	// FanoutLocal delivers to this process only.
	FanoutLocal = "local"
)

// Config holds the HTTP server settings.
type Config struct {
	Port           string
	AllowedOrigins string
	// Fanout selects how notifications reach other connections. Empty means
	// FanoutBus.
	Fanout string
	Router router.Config
}

// APIModule is the HTTP API module with WebSocket support. It owns the
// router and publishes chat events for the broadcast module.
type APIModule struct {
	cfg       Config
	logger    types.Logger
	store     *store.Module
	presence  *presence.Module
	broadcast *broadcast.Module
	eventBus  mono.EventBus

	app      *fiber.App
	registry *registry.Registry
	router   *router.Router

	cancelFanout context.CancelFunc
	fanoutDone   sync.WaitGroup
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*APIModule)(nil)
	_ mono.DependentModule       = (*APIModule)(nil)
	_ mono.EventBusAwareModule   = (*APIModule)(nil)
	_ mono.EventEmitterModule    = (*APIModule)(nil)
	_ mono.HealthCheckableModule = (*APIModule)(nil)
)

// NewModule creates a new APIModule.
func NewModule(cfg Config, storeModule *store.Module, presenceModule *presence.Module, broadcastModule *broadcast.Module, logger types.Logger) *APIModule {
	if cfg.Port == "" {
		cfg.Port = "3000"
	}
	if cfg.Fanout == "" {
		cfg.Fanout = FanoutBus
	}
	return &APIModule{
		cfg:       cfg,
		logger:    logger.WithModule("api"),
		store:     storeModule,
		presence:  presenceModule,
		broadcast: broadcastModule,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the modules that must start before, and stop after,
// the API.
func (m *APIModule) Dependencies() []string {
	return []string{"store", "presence", "broadcast"}
}

// SetDependencyServiceContainer is called by the framework for each
// dependency. The dependencies register no services; they are used directly.
func (m *APIModule) SetDependencyServiceContainer(dependency string, _ mono.ServiceContainer) {
	m.logger.Debug("Dependency ready", "dependency", dependency)
}

// SetEventBus is called by the framework to inject the event bus.
func (m *APIModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents returns the events published by the router.
func (m *APIModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageSentV1.ToBase(),
		events.UserJoinedV1.ToBase(),
		events.UserLeftV1.ToBase(),
		events.RoomCreatedV1.ToBase(),
	}
}

// Start wires the router and starts the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.store.Directory() == nil || m.store.History() == nil {
		return fmt.Errorf("store module not started")
	}
	if m.presence.Tracker() == nil {
		return fmt.Errorf("presence module not started")
	}

	m.registry = m.broadcast.Registry()
	notifier, err := m.notifier()
	if err != nil {
		return err
	}

	tracker := m.presence.Tracker()
	m.router = router.New(router.Deps{
		Presence:    tracker,
		Rooms:       m.store.Directory(),
		Messages:    m.store.History(),
		Connections: m.registry,
		Notifier:    notifier,
		Logger:      m.logger,
		Clock:       tracker.Now,
	}, m.cfg.Router)

	m.app = newApp(m.cfg, m.logger)
	NewHandlers(m.router, m.registry, m.logger).Register(m.app)

	go func() {
		if err := m.app.Listen(":" + m.cfg.Port); err != nil {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.logger.Info("HTTP server started", "port", m.cfg.Port, "fanout", m.cfg.Fanout)
	return nil
}

func (m *APIModule) notifier() (router.Notifier, error) {
	switch m.cfg.Fanout {
	case FanoutBus:
		if m.eventBus == nil {
			return nil, fmt.Errorf("event bus not set")
		}
		return fanout.NewBus(m.eventBus), nil
	case FanoutRedis:
		client := m.presence.Client()
		if client == nil {
			return nil, fmt.Errorf("redis fanout needs the Redis presence store")
		}
		redisFanout := fanout.NewRedis(m.registry, client, fanout.DefaultChannel, m.logger.With("component", "fanout"))
		ctx, cancel := context.WithCancel(context.Background())
		m.cancelFanout = cancel
		m.fanoutDone.Add(1)
		go func() {
			defer m.fanoutDone.Done()
			if err := redisFanout.Run(ctx); err != nil {
				m.logger.Error("Fanout subscriber stopped", "error", err)
			}
		}()
		return fanout.NewDispatcher(redisFanout), nil
	case FanoutLocal:
		return fanout.NewDispatcher(fanout.NewLocal(m.registry)), nil
	default:
		return nil, fmt.Errorf("unknown fanout %q", m.cfg.Fanout)
	}
}

// Stop closes every connection and shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("Shutting down HTTP server")

	m.registry.Close()
	if m.cancelFanout != nil {
		m.cancelFanout()
		m.fanoutDone.Wait()
	}
	return m.app.ShutdownWithContext(ctx)
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	if m.app == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "not started",
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"port":              m.cfg.Port,
			"fanout":            m.cfg.Fanout,
			"connected_clients": m.registry.Count(),
		},
	}
}

// newApp creates the Fiber app with the common middleware.
func newApp(cfg Config, logger types.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	if cfg.AllowedOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.AllowedOrigins,
		}))
	}
	app.Use(loggerMiddleware(logger))
	return app
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

// loggerMiddleware returns a Fiber middleware for request logging.
func loggerMiddleware(logger types.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip logging for WebSocket upgrade requests
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()
		logger.Info("Request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start),
		)
		return err
	}
}
