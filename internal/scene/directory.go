package scene

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/hkdf"
	_ "modernc.org/sqlite"

	"github.com/easelhq/easel/internal/store"
)

// HKDF info string for the key-wrapping derivation. Changing it
// invalidates every wrapped key in the directory.
var hkdfInfoKeyWrap = []byte("easel.directory.keywrap.v1")

// RoomRef is a scene's room association: the room id plus the key that
// decrypts its snapshots
type RoomRef struct {
	RoomID string
	Key    store.Key
}

// Directory is the client-local scene-to-room registry. Room keys are
// stored wrapped under a key derived from the device secret, never in
// plaintext next to anything persisted.
type Directory struct {
	db      *sql.DB
	wrapKey store.Key
}

func OpenDirectory(dbPath string, deviceSecret []byte) (*Directory, error) {
	if len(deviceSecret) == 0 {
		return nil, fmt.Errorf("device secret required")
	}

	var wrapKey store.Key
	kdf := hkdf.New(sha256.New, deviceSecret, nil, hkdfInfoKeyWrap)
	if _, err := io.ReadFull(kdf, wrapKey[:]); err != nil {
		return nil, fmt.Errorf("derive key-wrap key: %w", err)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS scene_rooms (
		scene_id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		wrapped_key BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	return &Directory{db: db, wrapKey: wrapKey}, nil
}

func (d *Directory) Close() error {
	return d.db.Close()
}

// Bind persists the scene's room association
func (d *Directory) Bind(sceneID string, ref RoomRef) error {
	wrapped, err := store.Seal(d.wrapKey, ref.Key[:])
	if err != nil {
		return fmt.Errorf("wrap room key: %w", err)
	}

	_, err = d.db.Exec(`
		INSERT INTO scene_rooms (scene_id, room_id, wrapped_key)
		VALUES (?, ?, ?)
		ON CONFLICT(scene_id) DO UPDATE SET
			room_id = excluded.room_id,
			wrapped_key = excluded.wrapped_key
	`, sceneID, ref.RoomID, wrapped)
	return err
}

// Lookup returns the scene's room association, if any
func (d *Directory) Lookup(sceneID string) (RoomRef, bool, error) {
	var roomID string
	var wrapped []byte
	err := d.db.QueryRow(
		"SELECT room_id, wrapped_key FROM scene_rooms WHERE scene_id = ?",
		sceneID,
	).Scan(&roomID, &wrapped)
	if err == sql.ErrNoRows {
		return RoomRef{}, false, nil
	}
	if err != nil {
		return RoomRef{}, false, err
	}

	raw, err := store.Open(d.wrapKey, wrapped)
	if err != nil {
		return RoomRef{}, false, fmt.Errorf("unwrap room key for scene %s: %w", sceneID, err)
	}
	if len(raw) != store.KeySize {
		return RoomRef{}, false, fmt.Errorf("wrapped key has wrong size %d", len(raw))
	}

	ref := RoomRef{RoomID: roomID}
	copy(ref.Key[:], raw)
	return ref, true, nil
}
