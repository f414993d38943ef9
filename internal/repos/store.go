package repos

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"github.com/lightspeed/jobforge/internal/jferr"
)

// Store persists the registry's non-derived repository fields. Derived
// fields (branch, head commit, size, dirty, ahead/behind) are never stored;
// they are recomputed from the on-disk clone on every read.
type Store struct {
	conn *sql.DB
}

// OpenStore opens databaseURL, picking the libsql driver for remote
// turso-style URLs and the pure-Go sqlite driver for local files. Local opens are
// retried with backoff to tolerate a concurrently-starting sibling process.
func OpenStore(databaseURL string) (*Store, error) {
	isRemote := strings.HasPrefix(databaseURL, "libsql://") ||
		strings.HasPrefix(databaseURL, "http://") ||
		strings.HasPrefix(databaseURL, "https://")

	if isRemote {
		conn, err := sql.Open("libsql", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("open libsql registry database: %w", err)
		}
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(10)
		conn.SetConnMaxLifetime(5 * time.Minute)
		if err := conn.Ping(); err != nil {
			return nil, fmt.Errorf("ping libsql registry database: %w", err)
		}
		s := &Store{conn: conn}
		if err := s.migrate(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if dir := filepath.Dir(databaseURL); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create registry database directory %s: %w", dir, err)
		}
	}

	var conn *sql.DB
	var err error
	const maxRetries = 5
	baseDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		conn, err = sql.Open("sqlite", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("open registry database: %w", err)
		}
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(5)

		if pingErr := conn.Ping(); pingErr != nil {
			if attempt == maxRetries-1 {
				return nil, fmt.Errorf("ping registry database after %d attempts: %w", maxRetries, pingErr)
			}
			conn.Close()
			time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
			continue
		}
		break
	}

	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 30000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := conn.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		return nil, fmt.Errorf("set synchronous mode: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
	CREATE TABLE IF NOT EXISTS repositories (
		name          TEXT PRIMARY KEY,
		name_lower    TEXT NOT NULL UNIQUE,
		origin_url    TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		index_aware   BOOLEAN NOT NULL DEFAULT 0,
		clone_state   TEXT NOT NULL,
		registered_at DATETIME NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("migrate repositories table: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) Insert(ctx context.Context, r *Repository) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO repositories (name, name_lower, origin_url, description, index_aware, clone_state, registered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Name, strings.ToLower(r.Name), r.OriginURL, r.Description, r.IndexAware, string(r.CloneState), r.RegisteredAt)
	if err != nil {
		return jferr.Wrap(jferr.System, "insert repository record", err)
	}
	return nil
}

func (s *Store) UpdateCloneState(ctx context.Context, name string, state CloneState) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE repositories SET clone_state = ? WHERE name_lower = ?`,
		string(state), strings.ToLower(name))
	if err != nil {
		return jferr.Wrap(jferr.System, "update clone state", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM repositories WHERE name_lower = ?`, strings.ToLower(name))
	if err != nil {
		return jferr.Wrap(jferr.System, "delete repository record", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, name string) (*Repository, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT name, origin_url, description, index_aware, clone_state, registered_at
		 FROM repositories WHERE name_lower = ?`, strings.ToLower(name))
	r, err := scanRepository(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, jferr.New(jferr.NotFound, fmt.Sprintf("repository %q is not registered", name))
		}
		return nil, jferr.Wrap(jferr.System, "query repository record", err)
	}
	return r, nil
}

func (s *Store) List(ctx context.Context) ([]*Repository, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT name, origin_url, description, index_aware, clone_state, registered_at
		 FROM repositories ORDER BY name_lower`)
	if err != nil {
		return nil, jferr.Wrap(jferr.System, "list repository records", err)
	}
	defer rows.Close()

	var out []*Repository
	for rows.Next() {
		r, err := scanRepositoryRows(rows)
		if err != nil {
			return nil, jferr.Wrap(jferr.System, "scan repository record", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRepository(row rowScanner) (*Repository, error) {
	return scanInto(row)
}

func scanRepositoryRows(rows *sql.Rows) (*Repository, error) {
	return scanInto(rows)
}

func scanInto(row rowScanner) (*Repository, error) {
	var r Repository
	var cloneState string
	var indexAware bool
	if err := row.Scan(&r.Name, &r.OriginURL, &r.Description, &indexAware, &cloneState, &r.RegisteredAt); err != nil {
		return nil, err
	}
	r.IndexAware = indexAware
	r.CloneState = CloneState(cloneState)
	return &r, nil
}
