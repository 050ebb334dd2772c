package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a reservation, assignment or payment id
	// does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidDateRange is returned when a reservation's start date is
	// after its end date.
	ErrInvalidDateRange = errors.New("start date is after end date")
)

// DB is the durable persistence gateway for reservations, room assignments,
// discount applications and payments. Holds live in their own store.
type DB struct {
	*sql.DB
	log zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "database").Logger()
	}
	log.Info().Str("path", path).Msg("database initialized")

	return &DB{DB: db, log: log}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS reservations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER,
            external_user_id INTEGER,
            total_cost REAL NOT NULL DEFAULT 0,
            registered_at DATETIME NOT NULL,
            start_date TEXT NOT NULL,
            end_date TEXT NOT NULL,
            overall_status TEXT NOT NULL DEFAULT 'ACTIVA',
            active BOOLEAN NOT NULL DEFAULT 1,
            updated_at DATETIME NOT NULL
        )`,

		`CREATE TABLE IF NOT EXISTS room_assignments (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            room_id TEXT NOT NULL,
            reservation_id INTEGER NOT NULL,
            capacity INTEGER NOT NULL DEFAULT 0,
            computed_cost REAL NOT NULL DEFAULT 0,
            discount REAL NOT NULL DEFAULT 0,
            taxes REAL NOT NULL DEFAULT 0,
            active BOOLEAN NOT NULL DEFAULT 1,
            updated_at DATETIME NOT NULL,
            UNIQUE(room_id, reservation_id)
        )`,

		`CREATE TABLE IF NOT EXISTS discount_applications (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            assignment_id INTEGER NOT NULL,
            discount_id INTEGER NOT NULL,
            amount REAL NOT NULL DEFAULT 0,
            active BOOLEAN NOT NULL DEFAULT 1
        )`,

		`CREATE TABLE IF NOT EXISTS payments (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            reservation_id INTEGER NOT NULL,
            hold_id TEXT,
            payer_reference TEXT,
            method_id INTEGER NOT NULL,
            total_amount REAL NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(overall_status)`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_reservation ON room_assignments(reservation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_room ON room_assignments(room_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_reservation ON payments(reservation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_hold ON payments(hold_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}
