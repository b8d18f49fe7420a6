// Package sqlite implements core.Repository on an SQLite database, optionally
// encrypted with SQLCipher. Annotations reference their document with a
// foreign key declared ON DELETE CASCADE.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/academiaflow/annotengine/pkg/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL DEFAULT '',
    path        TEXT NOT NULL DEFAULT '',
    page_count  INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS annotations (
    id            TEXT PRIMARY KEY,
    document_id   TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    page          INTEGER NOT NULL,
    kind          TEXT NOT NULL,
    color         TEXT NOT NULL DEFAULT '',
    contents      TEXT NOT NULL DEFAULT '',
    x             REAL NOT NULL,
    y             REAL NOT NULL,
    width         REAL NOT NULL,
    height        REAL NOT NULL,
    created_at    INTEGER NOT NULL,
    last_modified INTEGER NOT NULL,
    category      TEXT NOT NULL DEFAULT '',
    tags          TEXT NOT NULL DEFAULT '[]',
    hidden        INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_annotations_document ON annotations(document_id);
`

// Config holds the configuration for the SQLite repository.
type Config struct {
	Path     string // database file
	Key      string // SQLCipher passphrase; empty opens an unencrypted database
	ReadOnly bool
	Logger   *slog.Logger
}

// Repository is a core.Repository backed by database/sql.
type Repository struct {
	db     *sql.DB
	config Config
}

// querier is the subset shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (creating if needed) the database at config.Path.
func Open(config Config) (*Repository, error) {
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if !config.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	if config.Key != "" {
		params.Set("_pragma_key", config.Key)
	}
	if config.ReadOnly {
		params.Set("mode", "ro")
	}
	dsn := fmt.Sprintf("file:%s?%s", config.Path, params.Encode())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps per-connection pragmas in force for every query.
	db.SetMaxOpenConns(1)

	if config.Key != "" {
		var version string
		if err := db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
			db.Close()
			return nil, fmt.Errorf("invalid passphrase or corrupted database: %w", err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &Repository{db: db, config: config}, nil
}

// Close releases the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Initialize creates the schema if it does not exist.
func (r *Repository) Initialize(ctx context.Context) error {
	if r.config.ReadOnly {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (r *Repository) writable(op, id string) error {
	if r.config.ReadOnly {
		return fmt.Errorf("%s %s: %w", op, id, core.ErrReadOnly)
	}
	return nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func (r *Repository) PutDocument(ctx context.Context, doc core.Document) error {
	if err := r.writable("put document", doc.ID); err != nil {
		return err
	}
	if err := core.ValidateID(doc.ID); err != nil {
		return err
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	// created_at is kept on conflict.
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (id, title, path, page_count, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    path = excluded.path,
    page_count = excluded.page_count`,
		doc.ID, doc.Title, doc.Path, doc.PageCount, toUnix(doc.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to put document %s: %w", doc.ID, err)
	}
	return nil
}

func (r *Repository) GetDocument(ctx context.Context, id string) (core.Document, error) {
	var (
		doc     core.Document
		created int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, path, page_count, created_at FROM documents WHERE id = ?`, id).
		Scan(&doc.ID, &doc.Title, &doc.Path, &doc.PageCount, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Document{}, fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Document{}, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	doc.CreatedAt = fromUnix(created)
	return doc, nil
}

func (r *Repository) ListDocuments(ctx context.Context) ([]core.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, path, page_count, created_at FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []core.Document
	for rows.Next() {
		var (
			doc     core.Document
			created int64
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Path, &doc.PageCount, &created); err != nil {
			return nil, err
		}
		doc.CreatedAt = fromUnix(created)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes the document row; the foreign key removes its annotations.
func (r *Repository) DeleteDocument(ctx context.Context, id string) error {
	if err := r.writable("delete document", id); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

func (r *Repository) Save(ctx context.Context, docID string, s core.Snapshot) error {
	if err := r.writable("save", s.ID); err != nil {
		return err
	}
	return r.inTx(ctx, func(tx core.Transaction) error { return tx.Save(ctx, docID, s) })
}

// inTx runs fn in its own transaction, so the document check and the write
// of a save see the same state.
func (r *Repository) inTx(ctx context.Context, fn func(tx core.Transaction) error) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx, ""); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func save(ctx context.Context, q querier, docID string, s core.Snapshot) error {
	if err := core.ValidateID(s.ID); err != nil {
		return err
	}

	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, docID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("document %s: %w", docID, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check document %s: %w", docID, err)
	}

	tags, err := json.Marshal([]string(s.Tags.Clone()))
	if err != nil {
		return err
	}
	if s.Tags == nil {
		tags = []byte("[]")
	}

	_, err = q.ExecContext(ctx, `
INSERT INTO annotations (id, document_id, page, kind, color, contents, x, y, width, height,
    created_at, last_modified, category, tags, hidden)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    document_id = excluded.document_id,
    page = excluded.page,
    kind = excluded.kind,
    color = excluded.color,
    contents = excluded.contents,
    x = excluded.x,
    y = excluded.y,
    width = excluded.width,
    height = excluded.height,
    created_at = excluded.created_at,
    last_modified = excluded.last_modified,
    category = excluded.category,
    tags = excluded.tags,
    hidden = excluded.hidden`,
		s.ID, docID, s.Page, string(s.Kind), s.Color, s.Contents, s.X, s.Y, s.Width, s.Height,
		toUnix(s.CreatedAt), toUnix(s.LastModified), s.Category, string(tags), s.Hidden)
	if err != nil {
		return fmt.Errorf("failed to save annotation %s: %w", s.ID, err)
	}
	return nil
}

const annotationColumns = `id, document_id, page, kind, color, contents, x, y, width, height,
    created_at, last_modified, category, tags, hidden`

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (core.Snapshot, error) {
	var (
		s                 core.Snapshot
		kind, tags        string
		created, modified int64
	)
	err := row.Scan(&s.ID, &s.DocumentID, &s.Page, &kind, &s.Color, &s.Contents,
		&s.X, &s.Y, &s.Width, &s.Height, &created, &modified, &s.Category, &tags, &s.Hidden)
	if err != nil {
		return core.Snapshot{}, err
	}
	s.Kind = core.Kind(kind)
	s.CreatedAt = fromUnix(created)
	s.LastModified = fromUnix(modified)

	var labels []string
	if err := json.Unmarshal([]byte(tags), &labels); err != nil {
		return core.Snapshot{}, fmt.Errorf("annotation %s has malformed tags: %w", s.ID, err)
	}
	if len(labels) > 0 {
		s.Tags = core.Tags(labels)
	}
	return s, nil
}

func (r *Repository) Get(ctx context.Context, id string) (core.Snapshot, error) {
	s, err := scanSnapshot(r.db.QueryRowContext(ctx,
		`SELECT `+annotationColumns+` FROM annotations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, fmt.Errorf("annotation %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to get annotation %s: %w", id, err)
	}
	return s, nil
}

func (r *Repository) List(ctx context.Context, docID string) ([]core.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+annotationColumns+` FROM annotations WHERE document_id = ?`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations of %s: %w", docID, err)
	}
	defer rows.Close()

	var out []core.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.writable("delete", id); err != nil {
		return err
	}
	return r.inTx(ctx, func(tx core.Transaction) error { return tx.Delete(ctx, id) })
}

func remove(ctx context.Context, q querier, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM annotations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete annotation %s: %w", id, err)
	}
	return nil
}

var (
	_ core.Repository    = (*Repository)(nil)
	_ core.Transactional = (*Repository)(nil)
)
