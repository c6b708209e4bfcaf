package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Mindburn-Labs/eventgate/pkg/eventtype"
)

// Dialect selects placeholder style and DDL for SQLStore.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQLStore implements Store on Postgres or SQLite. The current snapshot lives in event_types and
// every accepted write is appended to event_type_history in the same transaction.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// OpenSQLStore opens driver ("postgres" or "sqlite") at dsn and creates the tables.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var dialect Dialect
	switch driver {
	case "postgres":
		dialect = DialectPostgres
	case "sqlite":
		dialect = DialectSQLite
	default:
		return nil, fmt.Errorf("unsupported sql driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	if dialect == DialectSQLite {
		// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	s := NewSQLStore(db, dialect)
	if err := s.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

var sqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS event_types (
	name TEXT PRIMARY KEY,
	revision BIGINT NOT NULL,
	version TEXT NOT NULL,
	snapshot TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS event_type_history (
	name TEXT NOT NULL,
	revision BIGINT NOT NULL,
	version TEXT NOT NULL,
	snapshot TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (name, revision)
)`,
}

// Init creates the tables if they do not exist.
func (s *SQLStore) Init(ctx context.Context) error {
	for _, stmt := range sqlSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate event type tables: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Get(ctx context.Context, name string) (*eventtype.EventType, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT snapshot FROM event_types WHERE name = ?"), name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event type %s: %w", name, err)
	}
	return decodeSnapshot([]byte(raw))
}

func (s *SQLStore) Create(ctx context.Context, et *eventtype.EventType) error {
	if err := checkWrite(et, 0); err != nil {
		return err
	}
	snapshot, err := encodeSnapshot(et)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		s.rebind("INSERT INTO event_types (name, revision, version, snapshot, updated_at) VALUES (?, ?, ?, ?, ?)"),
		et.Name, et.Revision, et.Version().String(), string(snapshot), writeTime(et),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert event type %s: %w", et.Name, err)
	}
	if err := s.appendHistory(ctx, tx, et, snapshot); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) CompareAndSwap(ctx context.Context, expected int64, et *eventtype.EventType) error {
	if err := checkWrite(et, expected); err != nil {
		return err
	}
	snapshot, err := encodeSnapshot(et)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		s.rebind("UPDATE event_types SET revision = ?, version = ?, snapshot = ?, updated_at = ? WHERE name = ? AND revision = ?"),
		et.Revision, et.Version().String(), string(snapshot), writeTime(et), et.Name, expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update event type %s: %w", et.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update event type %s: %w", et.Name, err)
	}
	if n == 0 {
		var current int64
		err := tx.QueryRowContext(ctx, s.rebind("SELECT revision FROM event_types WHERE name = ?"), et.Name).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load event type %s: %w", et.Name, err)
		}
		return ErrVersionConflict
	}
	if err := s.appendHistory(ctx, tx, et, snapshot); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) appendHistory(ctx context.Context, tx *sql.Tx, et *eventtype.EventType, snapshot []byte) error {
	_, err := tx.ExecContext(ctx,
		s.rebind("INSERT INTO event_type_history (name, revision, version, snapshot, created_at) VALUES (?, ?, ?, ?, ?)"),
		et.Name, et.Revision, et.Version().String(), string(snapshot), writeTime(et),
	)
	if err != nil {
		return fmt.Errorf("failed to record history of %s: %w", et.Name, err)
	}
	return nil
}

func (s *SQLStore) History(ctx context.Context, name string) ([]*eventtype.EventType, error) {
	out, err := s.querySnapshots(ctx, "SELECT snapshot FROM event_type_history WHERE name = ? ORDER BY revision ASC", name)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *SQLStore) List(ctx context.Context) ([]*eventtype.EventType, error) {
	return s.querySnapshots(ctx, "SELECT snapshot FROM event_types ORDER BY name ASC")
}

func (s *SQLStore) querySnapshots(ctx context.Context, query string, args ...any) ([]*eventtype.EventType, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query event types: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*eventtype.EventType
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		et, err := decodeSnapshot([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, et)
	}
	return out, rows.Err()
}

func writeTime(et *eventtype.EventType) time.Time {
	if !et.UpdatedAt.IsZero() {
		return et.UpdatedAt.UTC()
	}
	return time.Now().UTC()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
