package history

import (
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
)

// Store keeps the exchanges the way the tool saw them,
// i.e. after inbound conversion and before outbound restoration.
//
// Implementations must be thread-safe!
type Store interface {
	// Put stores the given entry, replacing any entry with the same ID.
	Put(Entry) error
	// Get returns the entry with the given ID.
	// The boolean is false if there is no such entry.
	Get(id string) (Entry, bool, error)
	// All returns the entries whose URL starts with prefix, newest first.
	// Request and response bytes are not loaded.
	All(prefix string) ([]Entry, error)
	// Purge removes the entry with the given ID.
	Purge(id string) error
}

type Entry struct {
	ID              string
	Method          string
	URL             string
	Status          int
	OriginalCharset string
	RecordedAt      time.Time
	Request         []byte
	Response        []byte
}

// NewEntry returns an entry with a fresh ID, recorded now.
func NewEntry(method, url string, status int) Entry {
	return Entry{
		ID:         uuid.NewString(),
		Method:     method,
		URL:        url,
		Status:     status,
		RecordedAt: time.Now(),
	}
}

type SQLiteStore struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteStore creates a new store with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteStore(filename string) (SQLiteStore, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return SQLiteStore{}, err
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS history (
			id TEXT PRIMARY KEY,
			method TEXT,
			url TEXT,
			status INTEGER,
			original_charset TEXT,
			recorded_at INTEGER,
			request BLOB,
			response BLOB
		)`,
		"CREATE INDEX IF NOT EXISTS recorded_at_idx ON history (recorded_at)",
		"PRAGMA journal_mode=WAL",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return SQLiteStore{}, err
		}
	}
	return SQLiteStore{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s SQLiteStore) Put(e Entry) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO history
		(id, method, url, status, original_charset, recorded_at, request, response) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Method, e.URL, e.Status, e.OriginalCharset, e.RecordedAt.UnixNano(), e.Request, e.Response)
	return err
}

func (s SQLiteStore) Get(id string) (Entry, bool, error) {
	var e Entry
	var recorded int64
	err := s.db.QueryRow(`SELECT
		id, method, url, status, original_charset, recorded_at, request, response
		FROM history WHERE id = ?`, id).
		Scan(&e.ID, &e.Method, &e.URL, &e.Status, &e.OriginalCharset, &recorded, &e.Request, &e.Response)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	e.RecordedAt = time.Unix(0, recorded)
	return e, true, nil
}

func (s SQLiteStore) All(prefix string) ([]Entry, error) {
	entries := make([]Entry, 0)
	rows, err := s.db.Query(`SELECT
		id, method, url, status, original_charset, recorded_at
		FROM history WHERE url LIKE ? ORDER BY recorded_at DESC`, prefix+"%")
	if err != nil {
		return entries, err
	}
	defer rows.Close()
	for rows.Next() {
		var e Entry
		var recorded int64
		if err := rows.Scan(&e.ID, &e.Method, &e.URL, &e.Status, &e.OriginalCharset, &recorded); err != nil {
			return entries, err
		}
		e.RecordedAt = time.Unix(0, recorded)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s SQLiteStore) Purge(id string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM history WHERE id = ?", id)
	return err
}

// Close closes the underlying db.
func (s SQLiteStore) Close() error {
	return s.db.Close()
}

type MemStore struct {
	mutex *sync.RWMutex
	db    map[string]Entry
}

func NewMemStore() MemStore {
	return MemStore{
		mutex: &sync.RWMutex{},
		db:    make(map[string]Entry),
	}
}

func (m MemStore) Put(e Entry) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.db[e.ID] = e
	return nil
}

func (m MemStore) Get(id string) (Entry, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	e, ok := m.db[id]
	return e, ok, nil
}

func (m MemStore) All(prefix string) ([]Entry, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entries := make([]Entry, 0)
	for _, e := range m.db {
		if strings.HasPrefix(e.URL, prefix) {
			e.Request, e.Response = nil, nil
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RecordedAt.After(entries[j].RecordedAt)
	})
	return entries, nil
}

func (m MemStore) Purge(id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, id)
	return nil
}
