// Package engine defines the transactional storage engine the record
// adapter runs on, plus the default SQLite implementation.
//
// The contract mirrors what any versioned, transactional object-store
// engine provides: open-with-version (with an upgrade hook that creates
// stores and indexes), named stores with a declared key path and secondary
// indexes, transactions scoped to one store with a declared mode, per-store
// operations (add/put/get/delete/clear/cursor), and a transaction-level
// commit that is distinct from per-request success.
//
// SQLite is the engine shipped here; the interfaces allow swapping to
// another embedded engine without touching the adapter.
package engine

import (
	"context"
	"encoding/json"
	"errors"
)

// Document is an opaque JSON-encoded record. The engine never interprets
// its contents beyond extracting key-path and index values.
type Document = json.RawMessage

// Mode declares a transaction's intent.
type Mode int

const (
	// ReadOnly transactions may only read. No explicit read-only token is
	// passed to the underlying driver: drivers treat "no mode" and
	// "read-only" as equivalent but disagree on explicit read-only options.
	ReadOnly Mode = iota

	// ReadWrite transactions may read and write.
	ReadWrite
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "readonly"
	case ReadWrite:
		return "readwrite"
	default:
		return "unknown"
	}
}

// IndexSpec declares a secondary index over a top-level document field.
type IndexSpec struct {
	Name    string
	KeyPath string
	Unique  bool
}

// StoreSpec declares a named store keyed by a top-level document field.
type StoreSpec struct {
	Name    string
	KeyPath string
	Indexes []IndexSpec
}

// UpgradeFunc runs inside the schema-upgrade transaction when the stored
// schema version is below the requested one. It receives the version being
// upgraded from and to; the version bump and the schema changes commit
// atomically.
type UpgradeFunc func(ctx context.Context, tx SchemaTx, oldVersion, newVersion int) error

// SchemaTx is the handle an UpgradeFunc uses to create stores.
type SchemaTx interface {
	// CreateStore creates a store and its indexes if they do not exist.
	CreateStore(spec StoreSpec) error
}

// Engine opens versioned connections.
type Engine interface {
	// Open establishes a connection at the given schema version, invoking
	// upgrade first when the persisted version is older. Opening at a
	// version below the persisted one is an error.
	Open(ctx context.Context, version int, upgrade UpgradeFunc) (Conn, error)
}

// Conn is one open session. It is not safe to share across adapter
// instances; each adapter owns exactly one.
type Conn interface {
	// Begin starts a transaction scoped to one named store.
	Begin(ctx context.Context, mode Mode, store string) (Tx, error)

	// Close releases the session. Idempotence is the caller's concern.
	Close() error
}

// Tx is a single transaction. Commit is the only success signal: a request
// that succeeded individually is not durable until Commit returns nil.
type Tx interface {
	Store() Store
	Commit() error
	Rollback() error
}

// Store exposes the per-store operations within a transaction.
type Store interface {
	// Add inserts a document whose key (extracted from the store's key
	// path) must not already exist. Returns ErrKeyExists on collision.
	Add(ctx context.Context, doc Document) error

	// Put inserts or overwrites by key.
	Put(ctx context.Context, doc Document) error

	// Get returns the document for key, reporting whether it exists.
	Get(ctx context.Context, key string) (Document, bool, error)

	// Delete removes the document for key. Missing keys are a no-op.
	Delete(ctx context.Context, key string) error

	// Clear removes every document in the store.
	Clear(ctx context.Context) error

	// Cursor iterates the whole store in ascending key order.
	Cursor(ctx context.Context) (Cursor, error)
}

// Cursor is a forward iterator over a store's documents.
//
// Usage follows the sql.Rows protocol: Next advances and reports whether a
// row is available, Document returns the current row, Err reports the
// first iteration error, Close releases the iterator.
type Cursor interface {
	Next() bool
	Document() Document
	Err() error
	Close() error
}

var (
	// ErrKeyExists is returned by Add when the extracted key collides
	// with an existing document.
	ErrKeyExists = errors.New("key already exists")

	// ErrUnknownStore is returned when a transaction names a store that
	// was never created.
	ErrUnknownStore = errors.New("unknown store")

	// ErrReadOnly is returned by write operations inside a ReadOnly
	// transaction.
	ErrReadOnly = errors.New("write in read-only transaction")

	// ErrVersionTooOld is returned by Open when the requested schema
	// version is below the persisted one.
	ErrVersionTooOld = errors.New("requested schema version is older than the stored one")
)
