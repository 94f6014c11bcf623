package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// DBConfig holds database connection configuration
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns the lib/pq connection string
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// NewDBConnection creates a new database connection pool
func NewDBConnection(cfg DBConfig, logger *zap.SugaredLogger) (*sql.DB, error) {
	// Open database connection
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Infow("Connected to database",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Name,
		"user", cfg.User,
	)

	return db, nil
}

// CreateTablesIfNotExist creates the necessary database tables if they don't exist
func CreateTablesIfNotExist(ctx context.Context, db *sql.DB, logger *zap.SugaredLogger) error {
	statements := []struct {
		name string
		sql  string
	}{
		{"wfm_users table", `
			CREATE TABLE IF NOT EXISTS wfm_users (
				id              TEXT PRIMARY KEY,
				username        TEXT UNIQUE NOT NULL,
				name            TEXT NOT NULL DEFAULT '',
				email           TEXT NOT NULL DEFAULT '',
				position        TEXT NOT NULL DEFAULT '',
				phone           TEXT NOT NULL DEFAULT '',
				avatar          TEXT NOT NULL DEFAULT '',
				password_hash   TEXT NOT NULL,
				created_at      TIMESTAMPTZ DEFAULT now(),
				updated_at      TIMESTAMPTZ DEFAULT now()
			)
		`},
		{"mbaas_data table", `
			CREATE TABLE IF NOT EXISTS mbaas_data (
				guid            UUID PRIMARY KEY,
				collection      TEXT NOT NULL,
				fields          JSONB NOT NULL DEFAULT '{}'::jsonb,
				created_at      TIMESTAMPTZ DEFAULT now(),
				updated_at      TIMESTAMPTZ DEFAULT now()
			)
		`},
		{"index on mbaas_data.collection", `
			CREATE INDEX IF NOT EXISTS idx_mbaas_data_collection ON mbaas_data(collection)
		`},
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}

	logger.Info("Database tables created or verified")
	return nil
}

// CloseDB gracefully closes the database connection
func CloseDB(db *sql.DB, logger *zap.SugaredLogger) {
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Errorw("Error closing database connection", "error", err)
		} else {
			logger.Info("Database connection closed")
		}
	}
}
