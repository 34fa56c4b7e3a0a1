package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/quizbank/internal/docstore"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB is a document store backed by a single SQLite table.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

var _ docstore.Store = (*DB)(nil)

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db, now: time.Now}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Read returns the content of the document at p.
func (db *DB) Read(ctx context.Context, p string) (string, error) {
	c, err := docstore.CleanPath(p)
	if err != nil {
		return "", err
	}
	var content string
	err = db.conn.QueryRowContext(ctx, `SELECT content FROM documents WHERE path = ?`, c).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", docstore.ErrNotFound, c)
		}
		return "", fmt.Errorf("failed to read document %s: %w", c, err)
	}
	return content, nil
}

// Create inserts a new document. It fails when the path is taken.
func (db *DB) Create(ctx context.Context, p, content string) error {
	c, err := docstore.CleanPath(p)
	if err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO documents (path, content, mod_time)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO NOTHING
	`, c, content, db.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create document %s: %w", c, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", docstore.ErrExists, c)
	}
	return nil
}

// Modify replaces the content of an existing document.
func (db *DB) Modify(ctx context.Context, p, content string) error {
	c, err := docstore.CleanPath(p)
	if err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE documents
		SET content = ?, mod_time = ?
		WHERE path = ?
	`, content, db.now().UTC(), c)
	if err != nil {
		return fmt.Errorf("failed to modify document %s: %w", c, err)
	}
	return expectOneRow(res, c)
}

// Delete removes a document by its path.
func (db *DB) Delete(ctx context.Context, p string) error {
	c, err := docstore.CleanPath(p)
	if err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, c)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", c, err)
	}
	return expectOneRow(res, c)
}

// Stat returns the path and modification time of a document.
func (db *DB) Stat(ctx context.Context, p string) (docstore.Info, error) {
	c, err := docstore.CleanPath(p)
	if err != nil {
		return docstore.Info{}, err
	}
	info := docstore.Info{Path: c}
	err = db.conn.QueryRowContext(ctx, `SELECT mod_time FROM documents WHERE path = ?`, c).Scan(&info.ModTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return docstore.Info{}, fmt.Errorf("%w: %s", docstore.ErrNotFound, c)
		}
		return docstore.Info{}, fmt.Errorf("failed to stat document %s: %w", c, err)
	}
	return info, nil
}

// List retrieves every document stored under prefix.
func (db *DB) List(ctx context.Context, prefix string) ([]docstore.Info, error) {
	prefix = strings.Trim(prefix, "/")
	query := `SELECT path, mod_time FROM documents ORDER BY path`
	var args []any
	if prefix != "" && prefix != "." {
		query = `SELECT path, mod_time FROM documents WHERE path = ? OR substr(path, 1, ?) = ? ORDER BY path`
		args = []any{prefix, len(prefix) + 1, prefix + "/"}
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents under %s: %w", prefix, err)
	}
	defer rows.Close()

	var out []docstore.Info
	for rows.Next() {
		var info docstore.Info
		if err := rows.Scan(&info.Path, &info.ModTime); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func expectOneRow(res sql.Result, path string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for %s: %w", path, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", docstore.ErrNotFound, path)
	}
	return nil
}
