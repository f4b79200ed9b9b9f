package blob

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLite keeps objects in a single table of a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys, goose.WithLogger(goose.NopLogger()))
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, container, key string) (Object, error) {
	var obj Object
	err := s.db.QueryRowContext(ctx,
		`SELECT data, etag FROM blobs WHERE container = ? AND key = ?`,
		container, key,
	).Scan(&obj.Data, &obj.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return Object{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Object{}, fmt.Errorf("%w: get %s: %w", ErrTransport, key, err)
	}
	return obj, nil
}

func (s *SQLite) Head(ctx context.Context, container, key string) (string, error) {
	var etag string
	err := s.db.QueryRowContext(ctx,
		`SELECT etag FROM blobs WHERE container = ? AND key = ?`,
		container, key,
	).Scan(&etag)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("%w: head %s: %w", ErrTransport, key, err)
	}
	return etag, nil
}

// Put runs each condition as one guarded statement.
func (s *SQLite) Put(ctx context.Context, container, key string, data []byte, cond Condition) (string, error) {
	etag := `"` + uuid.NewString() + `"`
	now := time.Now().UnixMilli()

	var (
		res sql.Result
		err error
	)
	switch {
	case cond.IfNoneMatch:
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO blobs (container, key, data, etag, updated_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (container, key) DO NOTHING`,
			container, key, data, etag, now)
	case cond.IfMatch != "":
		res, err = s.db.ExecContext(ctx,
			`UPDATE blobs SET data = ?, etag = ?, updated_at = ? WHERE container = ? AND key = ? AND etag = ?`,
			data, etag, now, container, key, cond.IfMatch)
	default:
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO blobs (container, key, data, etag, updated_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (container, key) DO UPDATE SET data = excluded.data, etag = excluded.etag, updated_at = excluded.updated_at`,
			container, key, data, etag, now)
	}
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %w", ErrTransport, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %w", ErrTransport, key, err)
	}
	if n == 0 {
		return "", fmt.Errorf("%w: put %s", ErrPrecondition, key)
	}
	return etag, nil
}

func (s *SQLite) Delete(ctx context.Context, container, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE container = ? AND key = ?`, container, key)
	if err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrTransport, key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}
