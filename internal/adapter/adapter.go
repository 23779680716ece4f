// Package adapter maps CRUD, bulk-list, and sync-metadata operations for a
// single named record collection onto a transactional storage engine.
//
// Every operation follows the same protocol: ensure the connection is open,
// run exactly one transaction, treat transaction commit (not individual
// request success) as the success signal, and wrap any failure in an
// OpError naming the operation. Higher-level synchronization logic gets a
// uniform record store regardless of the engine underneath.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/syncstore/syncstore/internal/engine"
	"github.com/syncstore/syncstore/internal/observability"
)

const (
	// schemaVersion is the single supported schema version. Migrations
	// beyond it are out of scope.
	schemaVersion = 1

	// metaStore is the shared key-value store for adapter-level metadata.
	metaStore = "__meta__"

	// lastModifiedKey is the one metadata slot currently in use.
	lastModifiedKey = "lastModified"
)

// Adapter owns one lazily-established connection to the engine and exposes
// the record-store interface for one collection. Instances must not share
// connections; create one adapter per collection.
type Adapter struct {
	eng        engine.Engine
	collection string
	log        *observability.Logger
	metrics    *observability.Metrics

	mu   sync.Mutex
	conn engine.Conn
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger routes the adapter's structured logs to l.
func WithLogger(l *observability.Logger) Option {
	return func(a *Adapter) { a.log = l }
}

// WithMetrics records per-operation counters and latencies into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

// New creates an adapter for the named collection on top of eng. Nothing
// touches the engine until the first operation (or an explicit Open).
func New(eng engine.Engine, collection string, opts ...Option) *Adapter {
	a := &Adapter{
		eng:        eng,
		collection: collection,
		log:        observability.NewLogger(collection, io.Discard),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Collection returns the adapter's collection name.
func (a *Adapter) Collection() string { return a.collection }

// Open establishes the connection, creating the collection store and the
// metadata store on first-ever creation of the database. It is idempotent:
// with a live connection it returns immediately, and concurrent callers
// trigger a single engine open.
func (a *Adapter) Open(ctx context.Context) error {
	if _, err := a.ensureOpen(ctx); err != nil {
		return &OpError{Op: "open", Err: err}
	}
	return nil
}

// Close releases the connection if one exists; closing a closed adapter is
// a no-op. Any later operation transparently re-opens.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	if err != nil {
		return &OpError{Op: "close", Err: err}
	}
	a.log.Debug("connection closed")
	return nil
}

// Create adds a record whose ID must not already exist. A collision fails
// with ErrConstraint in the error chain; the existing record is untouched.
func (a *Adapter) Create(ctx context.Context, rec Record) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return &OpError{Op: "create", Err: err}
	}
	return a.run(ctx, "create", engine.ReadWrite, a.collection, func(s engine.Store) error {
		if err := s.Add(ctx, doc); err != nil {
			if errors.Is(err, engine.ErrKeyExists) {
				return fmt.Errorf("%w: %w", ErrConstraint, err)
			}
			return err
		}
		return nil
	})
}

// Update inserts or overwrites by ID (upsert).
func (a *Adapter) Update(ctx context.Context, rec Record) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return &OpError{Op: "update", Err: err}
	}
	return a.run(ctx, "update", engine.ReadWrite, a.collection, func(s engine.Store) error {
		return s.Put(ctx, doc)
	})
}

// Get returns the record for id, or nil when absent. A missing record is
// not an error.
func (a *Adapter) Get(ctx context.Context, id string) (*Record, error) {
	var rec *Record
	err := a.run(ctx, "get", engine.ReadOnly, a.collection, func(s engine.Store) error {
		doc, ok, err := s.Get(ctx, id)
		if err != nil || !ok {
			return err
		}
		r := new(Record)
		if err := json.Unmarshal(doc, r); err != nil {
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes the record for id. Deleting a missing record is a no-op.
func (a *Adapter) Delete(ctx context.Context, id string) error {
	return a.run(ctx, "delete", engine.ReadWrite, a.collection, func(s engine.Store) error {
		return s.Delete(ctx, id)
	})
}

// List returns every record in ascending ID order. An empty store yields
// an empty, non-nil slice.
func (a *Adapter) List(ctx context.Context) ([]Record, error) {
	records := make([]Record, 0)
	err := a.run(ctx, "list", engine.ReadOnly, a.collection, func(s engine.Store) error {
		cur, err := s.Cursor(ctx)
		if err != nil {
			return err
		}
		defer cur.Close()

		for cur.Next() {
			var r Record
			if err := json.Unmarshal(cur.Document(), &r); err != nil {
				return err
			}
			records = append(records, r)
		}
		return cur.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Clear removes every record from the collection store.
func (a *Adapter) Clear(ctx context.Context) error {
	err := a.run(ctx, "clear", engine.ReadWrite, a.collection, func(s engine.Store) error {
		return s.Clear(ctx)
	})
	if err != nil {
		return err
	}
	a.log.Info("collection cleared")
	return nil
}

// metaEntry is the persisted shape of one metadata slot.
type metaEntry struct {
	Name  string `json:"name"`
	Value *int64 `json:"value"`
}

// SaveLastModified stores value as the collection's last-modified marker
// and returns the normalized value. Anything that does not coerce to a
// positive integer (zero, NaN, non-numeric input) normalizes to nil; zero
// is deliberately conflated with "unset" for compatibility with existing
// stores.
func (a *Adapter) SaveLastModified(ctx context.Context, value any) (*int64, error) {
	normalized := coerceTimestamp(value)
	doc, err := json.Marshal(metaEntry{Name: lastModifiedKey, Value: normalized})
	if err != nil {
		return nil, &OpError{Op: "saveLastModified", Err: err}
	}
	err = a.run(ctx, "saveLastModified", engine.ReadWrite, metaStore, func(s engine.Store) error {
		return s.Put(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

// GetLastModified returns the stored last-modified marker, or nil when the
// slot was never written or holds a non-truthy value. It never fails on a
// fresh store.
func (a *Adapter) GetLastModified(ctx context.Context) (*int64, error) {
	var value *int64
	err := a.run(ctx, "getLastModified", engine.ReadOnly, metaStore, func(s engine.Store) error {
		doc, ok, err := s.Get(ctx, lastModifiedKey)
		if err != nil || !ok {
			return err
		}
		var entry metaEntry
		if err := json.Unmarshal(doc, &entry); err != nil {
			return err
		}
		if entry.Value != nil && *entry.Value != 0 {
			value = entry.Value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// run is the shared operation wrapper: ensure open, one transaction on one
// store, commit as the success signal, metrics, OpError tagging.
func (a *Adapter) run(ctx context.Context, op string, mode engine.Mode, store string, fn func(engine.Store) error) error {
	start := time.Now()
	err := a.transact(ctx, mode, store, fn)
	if a.metrics != nil {
		a.metrics.RecordOp(op, time.Since(start), err)
	}
	if err != nil {
		a.log.Error("operation failed", "op", op, "error", err)
		return &OpError{Op: op, Err: err}
	}
	return nil
}

func (a *Adapter) transact(ctx context.Context, mode engine.Mode, store string, fn func(engine.Store) error) error {
	conn, err := a.ensureOpen(ctx)
	if err != nil {
		return err
	}

	tx, err := conn.Begin(ctx, mode, store)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransaction, err)
	}
	if err := fn(tx.Store()); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrTransaction, err)
	}
	return nil
}

// ensureOpen returns the live connection, opening one if needed. The mutex
// guarantees concurrent first operations issue a single engine open.
func (a *Adapter) ensureOpen(ctx context.Context) (engine.Conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn != nil {
		return a.conn, nil
	}
	conn, err := a.eng.Open(ctx, schemaVersion, a.createSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	a.conn = conn
	a.log.Debug("connection opened", "schema_version", schemaVersion)
	return conn, nil
}

// createSchema is the upgrade hook: it creates the collection store with
// its three indexes and the shared metadata store.
func (a *Adapter) createSchema(ctx context.Context, tx engine.SchemaTx, oldVersion, newVersion int) error {
	a.log.Info("creating stores", "from_version", oldVersion, "to_version", newVersion)

	if err := tx.CreateStore(engine.StoreSpec{
		Name:    a.collection,
		KeyPath: "id",
		Indexes: []engine.IndexSpec{
			{Name: "id", KeyPath: "id", Unique: true},
			{Name: "_status", KeyPath: "_status"},
			{Name: "last_modified", KeyPath: "last_modified"},
		},
	}); err != nil {
		return err
	}

	return tx.CreateStore(engine.StoreSpec{
		Name:    metaStore,
		KeyPath: "name",
		Indexes: []engine.IndexSpec{
			{Name: "name", KeyPath: "name", Unique: true},
		},
	})
}

// coerceTimestamp normalizes a last-modified input to a positive integer,
// or nil for anything falsy or non-numeric (0, NaN, unparseable strings).
func coerceTimestamp(v any) *int64 {
	var n int64
	switch t := v.(type) {
	case nil:
		return nil
	case int:
		n = int64(t)
	case int32:
		n = int64(t)
	case int64:
		n = t
	case uint:
		n = int64(t)
	case uint32:
		n = int64(t)
	case uint64:
		n = int64(t)
	case float32:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		n = int64(f)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		n = int64(t)
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return nil
		}
		n = i
	case string:
		i, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(t, 64)
			if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return nil
			}
			i = int64(f)
		}
		n = i
	default:
		return nil
	}
	if n <= 0 {
		return nil
	}
	return &n
}
