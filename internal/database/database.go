package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"playchrono/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

type DB struct {
	*sql.DB
	logger *zerolog.Logger

	mu          sync.RWMutex
	groundCache map[string]models.Ground
	groundOrder []string
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path+dsnOptions(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers; it also keeps an in-memory database alive.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return newDB(sqlDB, logger), nil
}

// newDB wraps an open handle without touching the schema.
func newDB(sqlDB *sql.DB, logger *zerolog.Logger) *DB {
	return &DB{
		DB:          sqlDB,
		logger:      logger,
		groundCache: make(map[string]models.Ground),
	}
}

func dsnOptions(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return sep + "_busy_timeout=5000&_foreign_keys=on"
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS grounds (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            sports TEXT NOT NULL,
            slots TEXT NOT NULL,
            closed_weekdays TEXT NOT NULL DEFAULT '[]',
            sort_order INTEGER NOT NULL DEFAULT 0,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            username TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE COLLATE NOCASE,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL,
            sport_type TEXT NOT NULL DEFAULT '',
            team_name TEXT NOT NULL DEFAULT '',
            profile_image TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            captain_id TEXT NOT NULL,
            captain_name TEXT NOT NULL,
            team_name TEXT NOT NULL DEFAULT '',
            sport_type TEXT NOT NULL,
            ground_id TEXT NOT NULL,
            ground_name TEXT NOT NULL,
            date TEXT NOT NULL,
            selected_slots TEXT NOT NULL,
            purpose TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'confirmed',
            created_at DATETIME NOT NULL
        )`,
		// One row per claimed slot; the unique key is the double-booking guard.
		`CREATE TABLE IF NOT EXISTS booking_slots (
            booking_id TEXT NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
            ground_id TEXT NOT NULL,
            date TEXT NOT NULL,
            slot_id TEXT NOT NULL,
            UNIQUE (ground_id, date, slot_id)
        )`,
		`CREATE TABLE IF NOT EXISTS notices (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            message TEXT NOT NULL,
            created_by_id TEXT NOT NULL DEFAULT '',
            created_by_name TEXT NOT NULL,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            booking_id TEXT NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_captain_id ON bookings(captain_id)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_slots_booking_id ON booking_slots(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notices_created_at ON notices(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Ready pings the database.
func (db *DB) Ready(ctx context.Context) error {
	return db.PingContext(ctx)
}
