package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Dongkey-Dev/chat-app/domain/chat"
	"github.com/Dongkey-Dev/chat-app/modules/api"
	"github.com/Dongkey-Dev/chat-app/modules/broadcast"
	"github.com/Dongkey-Dev/chat-app/modules/presence"
	"github.com/Dongkey-Dev/chat-app/modules/router"
	"github.com/Dongkey-Dev/chat-app/modules/store"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"golang.org/x/time/rate"
)

func main() {
	// Load configuration from environment
	httpPort := getEnv("HTTP_PORT", "3000")
	redisAddr := getEnv("REDIS_ADDR", "")
	redisPassword := getEnv("REDIS_PASSWORD", "")
	keyPrefix := getEnv("REDIS_KEY_PREFIX", "")
	dbPath := getEnv("DB_PATH", "./chat.db")
	dbDebug := getEnvBool("DB_DEBUG", false)
	allowedOrigins := getEnv("CORS_ALLOWED_ORIGINS", "")
	shutdownTimeout := getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	fanoutBackend := getEnv("FANOUT", api.FanoutBus)
	natsClusterName := getEnv("NATS_CLUSTER_NAME", "")
	natsClusterHost := getEnv("NATS_CLUSTER_HOST", "0.0.0.0")
	natsClusterPort := getEnvInt("NATS_CLUSTER_PORT", 6222)
	natsClusterRoutes := getEnvList("NATS_CLUSTER_ROUTES")

	routerCfg := router.DefaultConfig()
	routerCfg.SendTimeout = getEnvDuration("SEND_TIMEOUT", routerCfg.SendTimeout)
	routerCfg.OpTimeout = getEnvDuration("OP_TIMEOUT", routerCfg.OpTimeout)
	routerCfg.HistoryLimit = getEnvInt("HISTORY_LIMIT", routerCfg.HistoryLimit)
	routerCfg.MessageRate = rate.Limit(getEnvInt("MESSAGE_RATE", int(routerCfg.MessageRate)))
	routerCfg.MessageBurst = getEnvInt("MESSAGE_BURST", routerCfg.MessageBurst)

	activeWindow := getEnvDuration("ACTIVE_WINDOW", chat.ActiveWindow)

	log.Println("=== Chat Server - Fiber + WebSocket Presence ===")

	opts := []mono.MonoFrameworkOption{
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	}
	// Processes joined in one NATS cluster see each other's chat events
	if natsClusterName != "" {
		opts = append(opts, mono.WithNATSClustering(natsClusterName, natsClusterHost, natsClusterPort, natsClusterRoutes))
	}

	// Create mono application
	app, err := mono.NewMonoApplication(opts...)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	logger := app.Logger()

	// Create modules
	storeModule := store.NewModule(store.Config{
		Path:  dbPath,
		Debug: dbDebug,
	}, logger)
	presenceModule := presence.NewModule(presence.Config{
		RedisAddr:     redisAddr,
		RedisPassword: redisPassword,
		KeyPrefix:     keyPrefix,
		Window:        activeWindow,
	}, logger)
	broadcastModule := broadcast.NewModule(routerCfg.SendTimeout, logger)
	apiModule := api.NewModule(api.Config{
		Port:           httpPort,
		AllowedOrigins: allowedOrigins,
		Fanout:         fanoutBackend,
		Router:         routerCfg,
	}, storeModule, presenceModule, broadcastModule, logger)

	// Register modules with the framework.
	// Start order follows api's declared dependencies.
	for _, m := range []mono.Module{
		storeModule,     // SQLite rooms, participants, messages
		presenceModule,  // Active-user windows (Redis or memory)
		broadcastModule, // Chat events to local WebSocket clients
		apiModule,       // HTTP/WebSocket API
	} {
		if err := app.Register(m); err != nil {
			log.Fatalf("Failed to register module %s: %v", m.Name(), err)
		}
	}

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(httpPort, dbPath, redisAddr, fanoutBackend, natsClusterName, activeWindow)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(port, dbPath, redisAddr, fanoutBackend, cluster string, window time.Duration) {
	presenceBackend := "in-memory (single process)"
	if redisAddr != "" {
		presenceBackend = "redis " + redisAddr
	}
	if cluster == "" {
		cluster = "standalone"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Printf("  - Database: SQLite %s", dbPath)
	log.Printf("  - Presence: %s", presenceBackend)
	log.Printf("  - Active window: %s", window)
	log.Printf("  - Fanout: %s (NATS cluster: %s)", fanoutBackend, cluster)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                   - Health check")
	log.Println("  GET    /chatrooms                - List rooms ranked by active users")
	log.Println("  POST   /chatrooms                - Create a new room")
	log.Println("  GET    /chatrooms/:id/messages   - Get message history")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws/:user_id):", port)
	log.Printf("  Connect with: ws://localhost:%s/ws/alice", port)
	log.Println("  Frame types: join_room, message, create_room")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvBool returns environment variable as bool or default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: invalid bool value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable as a list.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
