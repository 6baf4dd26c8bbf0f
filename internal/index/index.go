// Package index persists extracted machines to a SQLite database together
// with a token index over them. Every named event and implementation
// source id maps to a roaring bitmap of machine rows, so answering "which
// machines handle EVENT" is one bitmap fetch instead of a table scan.
package index

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
	_ "modernc.org/sqlite"

	"github.com/stategraph/stategraph/api"
)

var ErrNotIndexed = errors.New("machine not indexed")

const schema = `
CREATE TABLE IF NOT EXISTS machines (
	id INTEGER PRIMARY KEY,
	path TEXT NOT NULL,
	ordinal INTEGER NOT NULL,
	machine_id TEXT,
	digraph JSON,
	UNIQUE (path, ordinal)
);

CREATE TABLE IF NOT EXISTS refs (
	token TEXT PRIMARY KEY,
	bitmap BLOB
) WITHOUT ROWID;
`

// Writer builds an index in one pass. Machine rows go through a prepared
// statement inside a single transaction; token bitmaps accumulate in
// memory and are written once on Close, which turns N*M ref writes into
// len(pending) inserts.
type Writer struct {
	db   *sql.DB
	tx   *sql.Tx
	stmt *sql.Stmt

	mu      sync.Mutex
	pending map[string]*roaring.Bitmap
	nextID  uint32
}

// NewWriter opens (or creates) the database at dbPath, resets its
// contents, and prepares it for bulk insertion.
func NewWriter(dbPath string) (*Writer, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Performance tuning for bulk insert
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.Exec("DELETE FROM machines; DELETE FROM refs"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("reset index: %w", err)
	}

	w := &Writer{
		db:      db,
		pending: make(map[string]*roaring.Bitmap),
	}
	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return err
	}
	w.stmt, err = w.tx.Prepare(`
		INSERT OR REPLACE INTO machines (id, path, ordinal, machine_id, digraph)
		VALUES (?, ?, ?, ?, ?)
	`)
	return err
}

func (w *Writer) commitTx() error {
	if w.stmt != nil {
		_ = w.stmt.Close()
	}
	return w.tx.Commit()
}

// Add writes one machine row and accumulates its tokens. Tokens carry a
// kind prefix so an event named "fetch" and an actor named "fetch" stay
// distinct.
func (w *Writer) Add(path string, ordinal int, dg *api.Digraph) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++

	var machineID string
	if root := dg.Nodes[dg.RootID]; root != nil {
		machineID = root.Data.Key
	}
	raw, err := json.Marshal(dg)
	if err != nil {
		return fmt.Errorf("encode digraph: %w", err)
	}
	if _, err := w.stmt.Exec(id, path, ordinal, machineID, raw); err != nil {
		return fmt.Errorf("insert machine %s[%d]: %w", path, ordinal, err)
	}

	for _, e := range dg.Edges {
		switch e.Data.Event.Kind {
		case api.EventNamed:
			w.ref("event:"+e.Data.Event.EventType, id)
		case api.EventWildcard:
			w.ref("event:*", id)
		}
	}
	for token := range dg.Implementations.Actions {
		w.ref("action:"+token, id)
	}
	for token := range dg.Implementations.Actors {
		w.ref("actor:"+token, id)
	}
	for token := range dg.Implementations.Guards {
		w.ref("guard:"+token, id)
	}
	return nil
}

func (w *Writer) ref(token string, id uint32) {
	bm, ok := w.pending[token]
	if !ok {
		bm = roaring.New()
		w.pending[token] = bm
	}
	bm.Add(id)
}

// Close commits machine rows, writes the accumulated bitmaps in a single
// transaction, and closes the database.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return err
	}
	if err := w.flushRefs(); err != nil {
		_ = w.db.Close()
		return err
	}
	return w.db.Close()
}

func (w *Writer) flushRefs() error {
	if len(w.pending) == 0 {
		return nil
	}
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin refs flush: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // safe to ignore

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO refs (token, bitmap) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare refs insert: %w", err)
	}
	defer func() { _ = stmt.Close() }() // safe to ignore

	var buf bytes.Buffer
	for token, bm := range w.pending {
		buf.Reset()
		if _, err := bm.WriteTo(&buf); err != nil {
			return fmt.Errorf("serialize bitmap for %s: %w", token, err)
		}
		if _, err := stmt.Exec(token, buf.Bytes()); err != nil {
			return fmt.Errorf("insert ref %s: %w", token, err)
		}
	}
	return tx.Commit()
}

// Entry identifies one indexed machine.
type Entry struct {
	Path      string
	Ordinal   int
	MachineID string
}

// Reader answers queries against a built index.
type Reader struct {
	db *sql.DB
}

func Open(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error {
	return r.db.Close()
}

// Machines lists every indexed machine.
func (r *Reader) Machines() ([]Entry, error) {
	rows, err := r.db.Query("SELECT path, ordinal, machine_id FROM machines ORDER BY path, ordinal")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }() // safe to ignore
	return scanEntries(rows)
}

// MachinesForEvent returns the machines with a transition on the given
// event type.
func (r *Reader) MachinesForEvent(event string) ([]Entry, error) {
	return r.machinesForToken("event:" + event)
}

// MachinesForImplementation returns the machines referencing the given
// action, actor, or guard source id.
func (r *Reader) MachinesForImplementation(kind api.BlockKind, sourceID string) ([]Entry, error) {
	return r.machinesForToken(string(kind) + ":" + sourceID)
}

func (r *Reader) machinesForToken(token string) ([]Entry, error) {
	var blob []byte
	err := r.db.QueryRow("SELECT bitmap FROM refs WHERE token = ?", token).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	bm := roaring.New()
	if err := bm.UnmarshalBinary(blob); err != nil {
		return nil, fmt.Errorf("unmarshal bitmap: %w", err)
	}
	var ids []uint32
	it := bm.Iterator()
	for it.HasNext() {
		ids = append(ids, it.Next())
	}
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id
		placeholders[i] = "?"
	}
	query := fmt.Sprintf(
		"SELECT path, ordinal, machine_id FROM machines WHERE id IN (%s) ORDER BY path, ordinal",
		strings.Join(placeholders, ","))
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }() // safe to ignore
	return scanEntries(rows)
}

// Digraph loads the stored digraph for one machine.
func (r *Reader) Digraph(path string, ordinal int) (*api.Digraph, error) {
	var raw []byte
	err := r.db.QueryRow(
		"SELECT digraph FROM machines WHERE path = ? AND ordinal = ?",
		path, ordinal).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s[%d]: %w", path, ordinal, ErrNotIndexed)
	}
	if err != nil {
		return nil, err
	}
	var dg api.Digraph
	if err := json.Unmarshal(raw, &dg); err != nil {
		return nil, fmt.Errorf("decode digraph: %w", err)
	}
	return &dg, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var machineID sql.NullString
		if err := rows.Scan(&e.Path, &e.Ordinal, &machineID); err != nil {
			return nil, err
		}
		e.MachineID = machineID.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
