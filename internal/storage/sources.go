package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Source types.
const (
	SourceLocal = "local"
	SourceGit   = "git"
)

// Source is a folder or git repository a user ingests material from.
type Source struct {
	ID          int64        `json:"id"`
	UserID      string       `json:"user_id"`
	Path        string       `json:"path"`
	Type        string       `json:"type"`
	LastScanned sql.NullTime `json:"-"`
}

// InsertSource inserts a new source path for a user and returns its ID.
func (db *DB) InsertSource(ctx context.Context, userID, path, sourceType string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (user_id, path, type)
		VALUES (?, ?, ?)
	`, userID, path, sourceType)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, fmt.Errorf("source %s: %w", path, ErrDuplicate)
		}
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// GetSourcesForUser retrieves the sources registered by a user.
func (db *DB) GetSourcesForUser(ctx context.Context, userID string) ([]Source, error) {
	return db.querySources(ctx, `
		SELECT id, user_id, path, type, last_scanned
		FROM sources WHERE user_id = ? ORDER BY id
	`, userID)
}

// GetAllSources retrieves all stored sources from the database.
func (db *DB) GetAllSources(ctx context.Context) ([]Source, error) {
	return db.querySources(ctx, `
		SELECT id, user_id, path, type, last_scanned
		FROM sources ORDER BY id
	`)
}

func (db *DB) querySources(ctx context.Context, query string, args ...any) ([]Source, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}
	defer rows.Close()

	sources := []Source{}
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.UserID, &s.Path, &s.Type, &s.LastScanned); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sources: %w", err)
	}
	return sources, nil
}

// DeleteSource removes a user's source. Study sets already generated from it stay.
func (db *DB) DeleteSource(ctx context.Context, id int64, userID string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM sources WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete source %d: %w", id, err)
	}
	return expectOne(res, fmt.Sprintf("source %d", id))
}

// UpdateSourceLastScanned updates the last_scanned timestamp for a source.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, sourceID int64) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE sources
		SET last_scanned = ?
		WHERE id = ?
	`, db.now(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
	}
	return nil
}

// Material records a file of a source that has already become a study set.
type Material struct {
	Hash       string
	SourceID   int64
	StudySetID string
	Path       string
}

// FindMaterial looks up ingested material by content hash within a source.
// It returns (nil, nil) if the material is new.
func (db *DB) FindMaterial(ctx context.Context, sourceID int64, hash string) (*Material, error) {
	var m Material
	err := db.conn.QueryRowContext(ctx, `
		SELECT hash, source_id, study_set_id, path
		FROM materials WHERE source_id = ? AND hash = ?
	`, sourceID, hash).Scan(&m.Hash, &m.SourceID, &m.StudySetID, &m.Path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find material %s: %w", hash, err)
	}
	return &m, nil
}
