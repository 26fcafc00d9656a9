// Package collection stores documents in SQLite and publishes them to
// subscribers.
//
// Store is the server side: documents grouped by collection name, persisted
// with modernc.org/sqlite and migrated with goose. Its publications stream a
// collection into a pubsub.Server. Cache is the client side: a pubsub.Sink
// whose queries are reactive.
package collection

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/livefir/blaze/errs"
	"github.com/livefir/blaze/pubsub"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("collection: document not found")

// Document is one stored document.
type Document struct {
	ID         string
	Collection string
	Fields     map[string]any
}

type changeKind int

const (
	changeAdded changeKind = iota
	changeChanged
	changeRemoved
)

type change struct {
	kind changeKind
	doc  Document
}

// Store is a SQLite-backed document store.
type Store struct {
	db *sql.DB

	mu       sync.Mutex
	watchers map[int]watcher
	nextID   int
}

type watcher struct {
	collection string
	fn         func(change)
}

type collectionRef struct {
	Collection string `validate:"required,printascii,max=64"`
}

// Open opens the database at path (":memory:" for a private in-memory
// database) and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps an in-memory database shared and serializes writes.
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration up failed: %w", err)
	}

	log.Printf("collection: opened store at %s", path)
	return &Store{db: db, watchers: make(map[int]watcher)}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Insert stores fields as a new document in coll and returns its id.
func (s *Store) Insert(ctx context.Context, coll string, fields map[string]any) (string, error) {
	if err := errs.Validate("collection.Insert", collectionRef{Collection: coll}); err != nil {
		return "", err
	}
	encoded, err := encodeFields(fields)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, collection, fields) VALUES (?, ?, ?)`,
		id, coll, encoded)
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", coll, err)
	}

	s.notify(change{kind: changeAdded, doc: Document{ID: id, Collection: coll, Fields: roundTrip(encoded)}})
	return id, nil
}

// Update replaces the fields of a document.
func (s *Store) Update(ctx context.Context, coll, id string, fields map[string]any) error {
	if err := errs.Validate("collection.Update", collectionRef{Collection: coll}); err != nil {
		return err
	}
	encoded, err := encodeFields(fields)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET fields = ?, updated_at = CURRENT_TIMESTAMP WHERE collection = ? AND id = ?`,
		encoded, coll, id)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", coll, id, err)
	}
	if err := requireRow(res, coll, id); err != nil {
		return err
	}

	s.notify(change{kind: changeChanged, doc: Document{ID: id, Collection: coll, Fields: roundTrip(encoded)}})
	return nil
}

// Remove deletes a document.
func (s *Store) Remove(ctx context.Context, coll, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, coll, id)
	if err != nil {
		return fmt.Errorf("remove %s/%s: %w", coll, id, err)
	}
	if err := requireRow(res, coll, id); err != nil {
		return err
	}

	s.notify(change{kind: changeRemoved, doc: Document{ID: id, Collection: coll}})
	return nil
}

// Get returns one document.
func (s *Store) Get(ctx context.Context, coll, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = ? AND id = ?`, coll, id)

	var encoded string
	if err := row.Scan(&encoded); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, fmt.Errorf("%w: %s/%s", ErrNotFound, coll, id)
		}
		return Document{}, fmt.Errorf("get %s/%s: %w", coll, id, err)
	}
	fields, err := decodeFields(encoded)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Collection: coll, Fields: fields}, nil
}

// Find returns the documents of coll in insertion order.
func (s *Store) Find(ctx context.Context, coll string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fields FROM documents WHERE collection = ? ORDER BY seq`, coll)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id, encoded string
		if err := rows.Scan(&id, &encoded); err != nil {
			return nil, fmt.Errorf("scan %s: %w", coll, err)
		}
		fields, err := decodeFields(encoded)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: id, Collection: coll, Fields: fields})
	}
	return docs, rows.Err()
}

// Count returns the number of documents in coll.
func (s *Store) Count(ctx context.Context, coll string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, coll).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", coll, err)
	}
	return n, nil
}

// Publication returns a publish function that sends every document of coll
// once, marks the subscription ready and returns.
func (s *Store) Publication(coll string) pubsub.PublishFunc {
	return func(ctx context.Context, pub *pubsub.Publication) error {
		docs, err := s.Find(ctx, coll)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			pub.Added(coll, doc.ID, doc.Fields)
		}
		pub.Ready()
		return nil
	}
}

// LivePublication returns a publish function that sends the documents of
// coll, marks the subscription ready and then streams later writes until
// the subscription stops.
func (s *Store) LivePublication(coll string) pubsub.PublishFunc {
	return func(ctx context.Context, pub *pubsub.Publication) error {
		unwatch := s.watch(coll, func(c change) {
			switch c.kind {
			case changeAdded:
				pub.Added(coll, c.doc.ID, c.doc.Fields)
			case changeChanged:
				pub.Changed(coll, c.doc.ID, c.doc.Fields)
			case changeRemoved:
				pub.Removed(coll, c.doc.ID)
			}
		})
		defer unwatch()

		docs, err := s.Find(ctx, coll)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			pub.Added(coll, doc.ID, doc.Fields)
		}
		pub.Ready()

		<-ctx.Done()
		return ctx.Err()
	}
}

func (s *Store) watch(coll string, fn func(change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.watchers[id] = watcher{collection: coll, fn: fn}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

func (s *Store) notify(c change) {
	s.mu.Lock()
	var fns []func(change)
	for _, w := range s.watchers {
		if w.collection == c.doc.Collection {
			fns = append(fns, w.fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

func requireRow(res sql.Result, coll, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s/%s: %w", coll, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, coll, id)
	}
	return nil
}

func encodeFields(fields map[string]any) (string, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", errs.InvalidArgument("collection.encode", "fields are not JSON encodable: %v", err)
	}
	return string(data), nil
}

func decodeFields(encoded string) (map[string]any, error) {
	fields := map[string]any{}
	if err := json.Unmarshal([]byte(encoded), &fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return fields, nil
}

// roundTrip decodes freshly encoded fields so watchers see the same value
// types a later Find returns.
func roundTrip(encoded string) map[string]any {
	fields, err := decodeFields(encoded)
	if err != nil {
		return map[string]any{}
	}
	return fields
}
