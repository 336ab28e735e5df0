package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for rooms with no persisted snapshot
var ErrNotFound = errors.New("room snapshot not found")

type Config struct {
	// RetryAttempts bounds how often a failing write is retried before
	// the error is reported to the caller
	RetryAttempts int
	RetryDelay    time.Duration
	Clock         clock.Clock
}

func DefaultConfig() Config {
	return Config{
		RetryAttempts: 3,
		RetryDelay:    250 * time.Millisecond,
		Clock:         clock.WallClock,
	}
}

// Store is the durable, encrypted room snapshot store. Snapshots are
// sealed with the room's key before they touch disk.
type Store struct {
	db  *sql.DB
	cfg Config
}

// Snapshot is one room's decrypted persisted content
type Snapshot struct {
	RoomID      string
	Content     []byte
	PersistedAt time.Time
}

func New(dbPath string, cfg Config) (*Store, error) {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	return &Store{db: db, cfg: cfg}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS room_snapshots (
		room_id TEXT PRIMARY KEY,
		sealed_data BLOB NOT NULL,
		persisted_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRoom registers a room id; safe to call for an existing room
func (s *Store) CreateRoom(id string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO rooms (id) VALUES (?)", id)
	return err
}

// Get returns the room's decrypted snapshot, or ErrNotFound if the room
// has never been persisted
func (s *Store) Get(roomID string, key Key) (*Snapshot, error) {
	var sealed []byte
	var persistedAt time.Time
	err := s.db.QueryRow(
		"SELECT sealed_data, persisted_at FROM room_snapshots WHERE room_id = ?",
		roomID,
	).Scan(&sealed, &persistedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	content, err := Open(key, sealed)
	if err != nil {
		return nil, err
	}

	return &Snapshot{RoomID: roomID, Content: content, PersistedAt: persistedAt}, nil
}

// LastPersistedAt reports when the room's snapshot was last written,
// or the zero time if it never was
func (s *Store) LastPersistedAt(roomID string) (time.Time, error) {
	var persistedAt time.Time
	err := s.db.QueryRow(
		"SELECT persisted_at FROM room_snapshots WHERE room_id = ?",
		roomID,
	).Scan(&persistedAt)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	return persistedAt, err
}

// FlushNow seals and writes content immediately, bypassing any debounce.
// Used for the final leave-triggered save. Transient failures retry with
// bounded backoff; a persistent failure is returned, not dropped.
func (s *Store) FlushNow(roomID string, key Key, content []byte) error {
	sealed, err := Seal(key, content)
	if err != nil {
		return err
	}

	return retry.Call(retry.CallArgs{
		Func: func() error {
			return s.putSnapshot(roomID, sealed)
		},
		Attempts: s.cfg.RetryAttempts,
		Delay:    s.cfg.RetryDelay,
		Clock:    s.cfg.Clock,
	})
}

func (s *Store) putSnapshot(roomID string, sealed []byte) error {
	if err := s.CreateRoom(roomID); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO room_snapshots (room_id, sealed_data, persisted_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(room_id) DO UPDATE SET
			sealed_data = excluded.sealed_data,
			persisted_at = CURRENT_TIMESTAMP
	`, roomID, sealed)
	if err != nil {
		return fmt.Errorf("persist snapshot for room %s: %w", roomID, err)
	}
	_, err = s.db.Exec("UPDATE rooms SET updated_at = CURRENT_TIMESTAMP WHERE id = ?", roomID)
	return err
}

// Stats

func (s *Store) RoomCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM rooms").Scan(&count)
	return count, err
}
