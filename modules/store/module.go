package store

import (
	"context"
	"fmt"

	"github.com/Dongkey-Dev/chat-app/modules/directory"
	"github.com/Dongkey-Dev/chat-app/modules/history"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds the database settings.
type Config struct {
	// Path is the SQLite database file, or ":memory:".
	Path  string
	Debug bool
}

// Module owns the SQLite database backing the room directory and the
// message history.
type Module struct {
	cfg    Config
	logger types.Logger

	db        *gorm.DB
	directory *directory.Directory
	history   *history.Store
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new store module.
func NewModule(cfg Config, logger types.Logger) *Module {
	return &Module{
		cfg:    cfg,
		logger: logger.WithModule("store"),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Directory returns the room directory. Valid after Start.
func (m *Module) Directory() *directory.Directory {
	return m.directory
}

// History returns the message store. Valid after Start.
func (m *Module) History() *history.Store {
	return m.history
}

// Start opens the database and runs migrations.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Connecting to SQLite database", "path", m.cfg.Path)

	logLevel := logger.Silent
	if m.cfg.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(dsn(m.cfg.Path)), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if m.cfg.Path == ":memory:" {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to get sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	m.db = db

	if err := directory.Migrate(db); err != nil {
		return err
	}
	if err := history.Migrate(db); err != nil {
		return err
	}

	m.directory, err = directory.New(db)
	if err != nil {
		return err
	}
	m.history = history.NewStore(db)

	m.logger.Info("Module started")
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	m.logger.Info("Database connection closed")
	return nil
}

// Health pings the database.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": "sqlite",
			"path":   m.cfg.Path,
		},
	}
}

// dsn enables WAL and a busy timeout for file databases.
func dsn(path string) string {
	if path == ":memory:" {
		return path
	}
	return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
}
