package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure Go driver, no CGO

	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
)

// SQLiteRecordStore persists collection records and small key/value state
// in one SQLite database. WAL mode lets a CLI search run while another
// process builds.
type SQLiteRecordStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

const recordSchema = `
CREATE TABLE IF NOT EXISTS records (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	document   TEXT NOT NULL,
	metadata   TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	PRIMARY KEY (collection, id)
);

CREATE TABLE IF NOT EXISTS state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// OpenRecordStore opens or creates the database at path. An empty path
// opens a private in-memory database.
func OpenRecordStore(path string) (*SQLiteRecordStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, ragerrors.New(ragerrors.ErrCodeStoreFailed,
				fmt.Sprintf("failed to create directory for %s", path), err)
		}
		if err := checkIntegrity(path); err != nil {
			return nil, ragerrors.New(ragerrors.ErrCodeCorruptIndex,
				fmt.Sprintf("record store %s is corrupted", path), err).
				WithSuggestion("Run: claimrag index --rebuild <file>")
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeStoreFailed, "failed to open record store", err)
	}
	// One connection: SQLite has a single writer, and an in-memory
	// database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	if path != "" {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, ragerrors.New(ragerrors.ErrCodeStoreFailed, "failed to configure record store", err)
		}
	}
	if _, err := db.Exec(recordSchema); err != nil {
		_ = db.Close()
		return nil, ragerrors.New(ragerrors.ErrCodeStoreFailed, "failed to initialize record store schema", err)
	}

	return &SQLiteRecordStore{db: db, path: path}, nil
}

// checkIntegrity runs a quick integrity check on an existing database file.
func checkIntegrity(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("quick_check: %s", result)
	}
	return nil
}

// Path is the database file, or "" for an in-memory store.
func (s *SQLiteRecordStore) Path() string { return s.path }

// Upsert writes records into collection in one transaction.
func (s *SQLiteRecordStore) Upsert(ctx context.Context, collection string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("record store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ragerrors.New(ragerrors.ErrCodeStoreFailed, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (collection, id, document, metadata, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			document = excluded.document,
			metadata = excluded.metadata,
			embedding = excluded.embedding`)
	if err != nil {
		return ragerrors.New(ragerrors.ErrCodeStoreFailed, "failed to prepare upsert", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return ragerrors.New(ragerrors.ErrCodeInvalidMetadata,
				fmt.Sprintf("metadata of %s is not serializable", r.ID), err)
		}
		if _, err := stmt.ExecContext(ctx, collection, r.ID, r.Document, string(meta), encodeVector(r.Embedding)); err != nil {
			return ragerrors.New(ragerrors.ErrCodeStoreFailed, fmt.Sprintf("failed to store %s", r.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ragerrors.New(ragerrors.ErrCodeStoreFailed, "failed to commit records", err)
	}
	return nil
}

// Load reads every record of collection in insertion order.
func (s *SQLiteRecordStore) Load(ctx context.Context, collection string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("record store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document, metadata, embedding FROM records WHERE collection = ? ORDER BY rowid`, collection)
	if err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeStoreFailed, "failed to load records", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var (
			r    Record
			meta string
			blob []byte
		)
		if err := rows.Scan(&r.ID, &r.Document, &meta, &blob); err != nil {
			return nil, ragerrors.New(ragerrors.ErrCodeStoreFailed, "failed to scan record", err)
		}
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return nil, ragerrors.New(ragerrors.ErrCodeCorruptIndex,
				fmt.Sprintf("metadata of %s is corrupted", r.ID), err)
		}
		if r.Embedding, err = decodeVector(blob); err != nil {
			return nil, ragerrors.New(ragerrors.ErrCodeCorruptIndex,
				fmt.Sprintf("embedding of %s is corrupted", r.ID), err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of records in collection.
func (s *SQLiteRecordStore) Count(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection = ?`, collection).Scan(&n)
	return n, err
}

// DeleteCollection removes every record of collection.
func (s *SQLiteRecordStore) DeleteCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("record store is closed")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, collection); err != nil {
		return ragerrors.New(ragerrors.ErrCodeStoreFailed, fmt.Sprintf("failed to reset %s", collection), err)
	}
	return nil
}

// GetState returns the value stored under key, or "" when unset.
func (s *SQLiteRecordStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (s *SQLiteRecordStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteRecordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
