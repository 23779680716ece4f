package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite is an Engine backed by a single SQLite database file. Use
// ":memory:" for an ephemeral database.
//
// Stores map to tables: the key path becomes the TEXT primary key column,
// the document is kept verbatim in a data column, and each secondary index
// is a generated column over json_extract plus an index on it. The schema
// version lives in PRAGMA user_version, and the upgrade hook runs in the
// same transaction that bumps it.
type SQLite struct {
	path string
}

// NewSQLite creates an engine for the database at path. Nothing is opened
// until Open is called.
func NewSQLite(path string) *SQLite {
	return &SQLite{path: path}
}

// Open implements Engine.
func (e *SQLite) Open(ctx context.Context, version int, upgrade UpgradeFunc) (Conn, error) {
	db, err := sql.Open("sqlite", e.path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", e.path, err)
	}

	// A single underlying connection keeps transactions serialized and
	// makes ":memory:" databases coherent across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		db.Close()
		return nil, fmt.Errorf("read schema version: %w", err)
	}

	switch {
	case current > version:
		db.Close()
		return nil, fmt.Errorf("%w: stored %d, requested %d", ErrVersionTooOld, current, version)
	case current < version:
		if err := e.upgrade(ctx, db, current, version, upgrade); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &sqliteConn{db: db, keys: make(map[string]string)}, nil
}

// upgrade runs the caller's upgrade hook and the version bump in one
// transaction.
func (e *SQLite) upgrade(ctx context.Context, db *sql.DB, oldVersion, newVersion int, fn UpgradeFunc) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upgrade: %w", err)
	}

	if fn != nil {
		if err := fn(ctx, &sqliteSchemaTx{tx: tx}, oldVersion, newVersion); err != nil {
			tx.Rollback()
			return fmt.Errorf("upgrade %d -> %d: %w", oldVersion, newVersion, err)
		}
	}

	// PRAGMA values cannot be bound as parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", newVersion)); err != nil {
		tx.Rollback()
		return fmt.Errorf("set schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upgrade: %w", err)
	}
	return nil
}

type sqliteSchemaTx struct {
	tx *sql.Tx
}

// CreateStore implements SchemaTx. All statements use IF NOT EXISTS so the
// hook stays idempotent across upgrades.
func (s *sqliteSchemaTx) CreateStore(spec StoreSpec) error {
	if spec.Name == "" || spec.KeyPath == "" {
		return fmt.Errorf("store spec needs a name and a key path")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", quoteIdent(spec.Name))
	fmt.Fprintf(&b, "\t%s TEXT PRIMARY KEY NOT NULL,\n", quoteIdent(spec.KeyPath))
	b.WriteString("\tdata TEXT NOT NULL")
	for _, idx := range spec.Indexes {
		if idx.KeyPath == spec.KeyPath {
			continue // already the primary key column
		}
		fmt.Fprintf(&b, ",\n\t%s GENERATED ALWAYS AS (json_extract(data, %s)) VIRTUAL",
			quoteIdent(idx.KeyPath), quoteText(jsonPath(idx.KeyPath)))
	}
	b.WriteString("\n)")

	if _, err := s.tx.Exec(b.String()); err != nil {
		return fmt.Errorf("create store %q: %w", spec.Name, err)
	}

	for _, idx := range spec.Indexes {
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		stmt := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
			unique,
			quoteIdent(spec.Name+"_"+idx.Name+"_idx"),
			quoteIdent(spec.Name),
			quoteIdent(idx.KeyPath))
		if _, err := s.tx.Exec(stmt); err != nil {
			return fmt.Errorf("create index %q on %q: %w", idx.Name, spec.Name, err)
		}
	}
	return nil
}

type sqliteConn struct {
	db *sql.DB

	mu   sync.Mutex
	keys map[string]string // store name -> primary key column
}

// Begin implements Conn. The store's key column is resolved before the
// transaction starts: the pool holds a single connection, so issuing
// catalog queries mid-transaction would deadlock.
func (c *sqliteConn) Begin(ctx context.Context, mode Mode, store string) (Tx, error) {
	key, err := c.keyColumn(ctx, store)
	if err != nil {
		return nil, err
	}

	// No explicit read-only option either way: SQLite escalates to a
	// write lock on the first write, and drivers handle explicit
	// read-only tokens inconsistently. Mode is enforced in code instead.
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin %s transaction on %q: %w", mode, store, err)
	}

	return &sqliteTx{
		tx: tx,
		store: &sqliteStore{
			tx:    tx,
			table: store,
			key:   key,
			mode:  mode,
		},
	}, nil
}

func (c *sqliteConn) Close() error {
	return c.db.Close()
}

// keyColumn looks up (and caches) the primary key column of a store.
func (c *sqliteConn) keyColumn(ctx context.Context, store string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key, ok := c.keys[store]; ok {
		return key, nil
	}

	var key string
	err := c.db.QueryRowContext(ctx,
		"SELECT name FROM pragma_table_info(?) WHERE pk = 1", store,
	).Scan(&key)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %q", ErrUnknownStore, store)
	}
	if err != nil {
		return "", fmt.Errorf("inspect store %q: %w", store, err)
	}

	c.keys[store] = key
	return key, nil
}

type sqliteTx struct {
	tx    *sql.Tx
	store *sqliteStore
}

func (t *sqliteTx) Store() Store { return t.store }

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

type sqliteStore struct {
	tx    *sql.Tx
	table string
	key   string
	mode  Mode
}

func (s *sqliteStore) writable() error {
	if s.mode != ReadWrite {
		return fmt.Errorf("%w: store %q", ErrReadOnly, s.table)
	}
	return nil
}

func (s *sqliteStore) Add(ctx context.Context, doc Document) error {
	if err := s.writable(); err != nil {
		return err
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s, data) VALUES (json_extract(?1, %s), ?1)",
		quoteIdent(s.table), quoteIdent(s.key), quoteText(jsonPath(s.key)))
	if _, err := s.tx.ExecContext(ctx, stmt, string(doc)); err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: %v", ErrKeyExists, err)
		}
		return fmt.Errorf("add into %q: %w", s.table, err)
	}
	return nil
}

func (s *sqliteStore) Put(ctx context.Context, doc Document) error {
	if err := s.writable(); err != nil {
		return err
	}
	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s, data) VALUES (json_extract(?1, %s), ?1) ON CONFLICT(%s) DO UPDATE SET data = excluded.data",
		quoteIdent(s.table), quoteIdent(s.key), quoteText(jsonPath(s.key)), quoteIdent(s.key))
	if _, err := s.tx.ExecContext(ctx, stmt, string(doc)); err != nil {
		return fmt.Errorf("put into %q: %w", s.table, err)
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, key string) (Document, bool, error) {
	stmt := fmt.Sprintf("SELECT data FROM %s WHERE %s = ?", quoteIdent(s.table), quoteIdent(s.key))
	var data string
	err := s.tx.QueryRowContext(ctx, stmt, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q from %q: %w", key, s.table, err)
	}
	return Document(data), true, nil
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	if err := s.writable(); err != nil {
		return err
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(s.table), quoteIdent(s.key))
	if _, err := s.tx.ExecContext(ctx, stmt, key); err != nil {
		return fmt.Errorf("delete %q from %q: %w", key, s.table, err)
	}
	return nil
}

func (s *sqliteStore) Clear(ctx context.Context) error {
	if err := s.writable(); err != nil {
		return err
	}
	if _, err := s.tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", quoteIdent(s.table))); err != nil {
		return fmt.Errorf("clear %q: %w", s.table, err)
	}
	return nil
}

func (s *sqliteStore) Cursor(ctx context.Context) (Cursor, error) {
	stmt := fmt.Sprintf("SELECT data FROM %s ORDER BY %s ASC", quoteIdent(s.table), quoteIdent(s.key))
	rows, err := s.tx.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("cursor over %q: %w", s.table, err)
	}
	return &sqliteCursor{rows: rows}, nil
}

type sqliteCursor struct {
	rows *sql.Rows
	doc  Document
	err  error
}

func (c *sqliteCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	var data string
	if err := c.rows.Scan(&data); err != nil {
		c.err = err
		return false
	}
	c.doc = Document(data)
	return true
}

func (c *sqliteCursor) Document() Document { return c.doc }

func (c *sqliteCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *sqliteCursor) Close() error { return c.rows.Close() }

// isConstraintError reports whether err carries SQLite's constraint
// primary result code (unique, primary key, not null).
func isConstraintError(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

// quoteIdent quotes an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteText quotes an SQL text literal.
func quoteText(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// jsonPath builds the json_extract path for a top-level field.
func jsonPath(field string) string {
	return "$." + field
}
