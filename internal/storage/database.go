package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/studyset/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

var (
	// ErrNotFound is returned by updates and deletes that match no row.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate is returned when a user adds the same source twice.
	ErrDuplicate = errors.New("storage: already exists")
	// ErrInvalidScore is returned for keyword scores outside 1..5.
	ErrInvalidScore = errors.New("storage: keyword score must be between 1 and 5")
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn  *sql.DB
	clock func() time.Time
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one connection keeps transactions serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db, clock: time.Now}, nil
}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) now() time.Time {
	return db.clock().UTC()
}

// UpsertUser records the latest profile seen for a user.
func (db *DB) UpsertUser(ctx context.Context, u domain.User) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			email = excluded.email,
			updated_at = excluded.updated_at
	`, u.ID, u.DisplayName, u.Email, db.now())
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}
	return nil
}

// GetUser retrieves a user by id. It returns (nil, nil) if the user is unknown.
func (db *DB) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, display_name, email FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.DisplayName, &u.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user %s: %w", id, err)
	}
	return &u, nil
}

// expectOne turns an update that matched nothing into ErrNotFound.
func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count updated %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
