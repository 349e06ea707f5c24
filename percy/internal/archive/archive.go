// Package archive keeps a local SQLite copy of every snapshot taken, so a
// serialized document can be inspected or re-posted without the agent.
package archive

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domsnap/dbopen"
	"github.com/hazyhaar/domsnap/idgen"
)

// Schema for the snapshots table.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	url         TEXT NOT NULL,
	html        TEXT NOT NULL,
	html_hash   TEXT NOT NULL,
	widths      TEXT NOT NULL DEFAULT '[]',
	min_height  INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_name ON snapshots(name, created_at);
`

// Snapshot is one archived serialization.
type Snapshot struct {
	ID        string `json:"id"` // UUIDv7
	Name      string `json:"name"`
	URL       string `json:"url"`
	HTML      string `json:"html,omitempty"`
	HTMLHash  string `json:"html_hash"` // SHA-256 hex
	Widths    []int  `json:"widths"`
	MinHeight int    `json:"min_height"`
	CreatedAt int64  `json:"created_at"` // epoch milliseconds
}

// Archive is the snapshot database handle.
type Archive struct {
	DB   *sql.DB
	keep int
}

// Open opens (or creates) the archive at path. keep bounds how many
// snapshots are retained per name; 0 keeps everything.
func Open(path string, keep int, opts ...dbopen.Option) (*Archive, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	return &Archive{DB: db, keep: keep}, nil
}

// New wraps an open database that already carries Schema.
func New(db *sql.DB, keep int) *Archive {
	return &Archive{DB: db, keep: keep}
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.DB.Close()
}

// HashHTML returns the SHA-256 hex digest of a serialized document.
func HashHTML(html string) string {
	sum := sha256.Sum256([]byte(html))
	return hex.EncodeToString(sum[:])
}

// Store inserts a snapshot, filling ID, HTMLHash and CreatedAt when unset,
// then drops the oldest rows for the same name beyond the retention limit.
func (a *Archive) Store(ctx context.Context, s *Snapshot) error {
	if s.ID == "" {
		s.ID = idgen.Default()
	}
	if s.HTMLHash == "" {
		s.HTMLHash = HashHTML(s.HTML)
	}
	if s.CreatedAt == 0 {
		s.CreatedAt = time.Now().UnixMilli()
	}
	widths, err := json.Marshal(s.Widths)
	if err != nil {
		return fmt.Errorf("archive: widths: %w", err)
	}

	return dbopen.RunTx(ctx, a.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots (id, name, url, html, html_hash, widths, min_height, created_at)
			VALUES (?,?,?,?,?,?,?,?)`,
			s.ID, s.Name, s.URL, s.HTML, s.HTMLHash, string(widths), s.MinHeight, s.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("archive: insert: %w", err)
		}
		if a.keep <= 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			DELETE FROM snapshots
			WHERE name = ? AND id NOT IN (
				SELECT id FROM snapshots WHERE name = ?
				ORDER BY created_at DESC, id DESC LIMIT ?
			)`, s.Name, s.Name, a.keep)
		if err != nil {
			return fmt.Errorf("archive: prune: %w", err)
		}
		return nil
	})
}

// Get retrieves a snapshot by ID, or nil if there is none.
func (a *Archive) Get(ctx context.Context, id string) (*Snapshot, error) {
	s := &Snapshot{}
	var widths string
	err := a.DB.QueryRowContext(ctx, `
		SELECT id, name, url, html, html_hash, widths, min_height, created_at
		FROM snapshots WHERE id = ?`, id).Scan(
		&s.ID, &s.Name, &s.URL, &s.HTML, &s.HTMLHash, &widths, &s.MinHeight, &s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("archive: get: %w", err)
	}
	json.Unmarshal([]byte(widths), &s.Widths)
	return s, nil
}

// List returns snapshots newest first, without their HTML. An empty name
// lists every name; limit <= 0 means 50.
func (a *Archive) List(ctx context.Context, name string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.DB.QueryContext(ctx, `
		SELECT id, name, url, html_hash, widths, min_height, created_at
		FROM snapshots
		WHERE ? = '' OR name = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, name, name, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		var widths string
		if err := rows.Scan(&s.ID, &s.Name, &s.URL, &s.HTMLHash, &widths, &s.MinHeight, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		json.Unmarshal([]byte(widths), &s.Widths)
		out = append(out, s)
	}
	return out, rows.Err()
}
