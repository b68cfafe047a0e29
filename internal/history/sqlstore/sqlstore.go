// Package sqlstore provides a history.Medium backed by a SQL database.
//
// The artifact lives in one row of the benchtrail_documents table, keyed by
// document name, next to an integer revision column. Writes are optimistic:
//
//	UPDATE benchtrail_documents SET content = ?, revision = revision + 1
//	 WHERE name = ? AND revision = ?
//
// affects zero rows when another writer got there first, which the medium
// reports as history.ErrRevisionConflict.
//
// Two drivers are supported:
//   - sqlite: embedded SQLite via ncruces/go-sqlite3, WAL mode
//   - postgres: lib/pq
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/benchtrail/benchtrail/internal/history"
)

// Backend names accepted by Open.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// DefaultDocument is the row key used when none is configured.
const DefaultDocument = "default"

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown sql backend")

const schema = `
CREATE TABLE IF NOT EXISTS benchtrail_documents (
	name TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	revision BIGINT NOT NULL,
	updated_at TEXT NOT NULL
)`

// Medium stores the artifact in a database row.
type Medium struct {
	conn     *sql.DB
	backend  string
	document string
	label    string
}

// Open connects to the database and creates the schema if needed. For
// sqlite, dsn is a file path; for postgres, a lib/pq connection string.
//
// The caller MUST call Close() when done.
func Open(ctx context.Context, backend, dsn, document string) (*Medium, error) {
	if document == "" {
		document = DefaultDocument
	}

	var (
		driver  string
		connStr string
		label   string
	)
	switch backend {
	case BackendSQLite:
		if dsn == "" {
			return nil, fmt.Errorf("sqlite backend needs a database path")
		}
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// Pragmas in the DSN apply to every pooled connection.
		q := url.Values{}
		q.Add("_pragma", "busy_timeout(5000)")
		q.Add("_pragma", "journal_mode(wal)")
		driver, connStr, label = "sqlite3", "file:"+dsn+"?"+q.Encode(), "sqlite "+dsn
	case BackendPostgres:
		driver, connStr, label = "postgres", dsn, "postgres"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}

	conn, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	m := &Medium{
		conn:     conn,
		backend:  backend,
		document: document,
		label:    fmt.Sprintf("%s (document %q)", label, document),
	}
	if err := m.InitSchemaContext(ctx); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

// InitSchemaContext creates the documents table. It is idempotent.
func (m *Medium) InitSchemaContext(ctx context.Context) error {
	if _, err := m.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (m *Medium) Load(ctx context.Context) ([]byte, history.Revision, error) {
	var (
		content  string
		revision int64
	)
	err := m.conn.QueryRowContext(ctx,
		m.rebind(`SELECT content, revision FROM benchtrail_documents WHERE name = ?`),
		m.document).Scan(&content, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to query document: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, formatRevision(revision), nil
	}
	return []byte(content), formatRevision(revision), nil
}

func (m *Medium) Store(ctx context.Context, content []byte, expected history.Revision) (history.Revision, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	if expected == "" {
		res, err := m.conn.ExecContext(ctx,
			m.rebind(`INSERT INTO benchtrail_documents (name, content, revision, updated_at)
				VALUES (?, ?, 1, ?) ON CONFLICT (name) DO NOTHING`),
			m.document, string(content), now)
		if err != nil {
			return "", fmt.Errorf("failed to insert document: %w", err)
		}
		if err := requireOneRow(res); err != nil {
			return "", err
		}
		return formatRevision(1), nil
	}

	rev, err := parseRevision(expected)
	if err != nil {
		return "", err
	}
	res, err := m.conn.ExecContext(ctx,
		m.rebind(`UPDATE benchtrail_documents
			SET content = ?, revision = revision + 1, updated_at = ?
			WHERE name = ? AND revision = ?`),
		string(content), now, m.document, rev)
	if err != nil {
		return "", fmt.Errorf("failed to update document: %w", err)
	}
	if err := requireOneRow(res); err != nil {
		return "", err
	}
	return formatRevision(rev + 1), nil
}

func (m *Medium) String() string { return m.label }

// Close closes the connection pool. For sqlite the WAL is checkpointed
// first.
func (m *Medium) Close() error {
	if m.conn == nil {
		return nil
	}
	if m.backend == BackendSQLite {
		if _, err := m.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
		}
	}
	if err := m.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	m.conn = nil
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (m *Medium) rebind(query string) string {
	if m.backend != BackendPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return history.ErrRevisionConflict
	}
	return nil
}

func formatRevision(rev int64) history.Revision {
	return history.Revision(strconv.FormatInt(rev, 10))
}

func parseRevision(rev history.Revision) (int64, error) {
	n, err := strconv.ParseInt(string(rev), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: revision %q is not a row version", history.ErrRevisionConflict, rev)
	}
	return n, nil
}
