// Package storage implements the gateway's persistence layer: a
// schema-versioned key-value namespace backed by SQLite, standing in for
// the embedded target's NVS partition. It is grounded on
// pkg/db (database/sql over modernc.org/sqlite, explicit Tx helper) and
// on original_source's storage_kv / storage_schema contract: typed
// get/set for i32/u32/string/blob, explicit commit, whole-namespace
// erase.
package storage

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Namespace names, mirroring the embedded target's partition labels.
const (
	NamespaceStorage = "storage"
	NamespaceZbData  = "zb_storage"
	NamespaceZbFct   = "zb_fct"
)

// KV wraps a SQLite connection with the gateway's typed key-value
// operations. Each namespace is a logical partition stored in the same
// table, keyed by (namespace, key). A single mutex serializes writes so
// concurrent HTTP handlers and the radio task cannot interleave partial
// writes, matching the rule that each repository serializes its own
// operations.
type KV struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the SQLite-backed KV store at path. If path is
// empty, a default location under the user's config directory is used,
// exactly as pkg/db's Open resolves ~/.config/homai/homai.db.
func Open(path string) (*KV, error) {
	if path == "" {
		var err error
		path, err = defaultPath()
		if err != nil {
			return nil, fmt.Errorf("determine storage path: %w", err)
		}
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("expand home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to storage: %w", err)
	}

	kv := &KV{db: db}
	if err := kv.ensureTable(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return kv, nil
}

func defaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "zigbee-gw", "gateway.db"), nil
	}
	return filepath.Join(home, ".config", "zigbee-gw", "gateway.db"), nil
}

func (k *KV) ensureTable() error {
	_, err := k.db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			ns  TEXT NOT NULL,
			key TEXT NOT NULL,
			val TEXT NOT NULL,
			PRIMARY KEY (ns, key)
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (k *KV) Close() error { return k.db.Close() }

// GetI32 reads an int32 value. found is false if the key is absent.
func (k *KV) GetI32(ns, key string) (value int32, found bool, err error) {
	s, found, err := k.getRaw(ns, key)
	if err != nil || !found {
		return 0, found, err
	}
	var v int32
	_, err = fmt.Sscanf(s, "%d", &v)
	return v, true, err
}

// SetI32 writes an int32 value. Commit is explicit via Commit(); this
// call stages the write in the same transactional sense as the embedded
// NVS API (set, then commit).
func (k *KV) SetI32(ns, key string, value int32) error {
	return k.setRaw(ns, key, fmt.Sprintf("%d", value))
}

// GetU32 reads a uint32 value.
func (k *KV) GetU32(ns, key string) (value uint32, found bool, err error) {
	s, found, err := k.getRaw(ns, key)
	if err != nil || !found {
		return 0, found, err
	}
	var v uint32
	_, err = fmt.Sscanf(s, "%d", &v)
	return v, true, err
}

// SetU32 writes a uint32 value.
func (k *KV) SetU32(ns, key string, value uint32) error {
	return k.setRaw(ns, key, fmt.Sprintf("%d", value))
}

// GetStr reads a string value.
func (k *KV) GetStr(ns, key string) (value string, found bool, err error) {
	return k.getRaw(ns, key)
}

// SetStr writes a string value.
func (k *KV) SetStr(ns, key, value string) error {
	return k.setRaw(ns, key, value)
}

// GetBlob reads a binary value, base64-decoded from storage.
func (k *KV) GetBlob(ns, key string) (value []byte, found bool, err error) {
	s, found, err := k.getRaw(ns, key)
	if err != nil || !found {
		return nil, found, err
	}
	b, err := base64.StdEncoding.DecodeString(s)
	return b, true, err
}

// SetBlob writes a binary value, base64-encoded for storage.
func (k *KV) SetBlob(ns, key string, value []byte) error {
	return k.setRaw(ns, key, base64.StdEncoding.EncodeToString(value))
}

// EraseKey deletes a single key. existed reports whether it was present.
func (k *KV) EraseKey(ns, key string) (existed bool, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	res, err := k.db.Exec(`DELETE FROM kv WHERE ns = ? AND key = ?`, ns, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ErasePartition deletes every key in a namespace, standing in for a
// whole-partition NVS erase. found reports whether any keys existed.
func (k *KV) ErasePartition(ns string) (found bool, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	res, err := k.db.Exec(`DELETE FROM kv WHERE ns = ?`, ns)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (k *KV) getRaw(ns, key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	var v string
	err := k.db.QueryRow(`SELECT val FROM kv WHERE ns = ? AND key = ?`, ns, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (k *KV) setRaw(ns, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, err := k.db.Exec(`
		INSERT INTO kv (ns, key, val) VALUES (?, ?, ?)
		ON CONFLICT(ns, key) DO UPDATE SET val = excluded.val
	`, ns, key, value)
	return err
}

// Tx runs fn within a batch that either fully commits or makes no
// changes: every SetXxx/EraseKey call inside fn must succeed, or the
// caller's accumulated writes are rolled back. This mirrors the embedded
// target's "set both keys, then a single commit" pattern used by the
// config and device repositories.
func (k *KV) Tx(ctx context.Context, fn func(tx *Tx) error) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	sqlTx, err := k.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin storage transaction: %w", err)
	}
	tx := &Tx{sqlTx: sqlTx}
	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit storage transaction: %w", err)
	}
	return nil
}

// Tx is a batch of KV writes that commit atomically.
type Tx struct {
	sqlTx *sql.Tx
}

func (t *Tx) SetStr(ns, key, value string) error {
	_, err := t.sqlTx.Exec(`
		INSERT INTO kv (ns, key, val) VALUES (?, ?, ?)
		ON CONFLICT(ns, key) DO UPDATE SET val = excluded.val
	`, ns, key, value)
	return err
}

func (t *Tx) SetI32(ns, key string, value int32) error {
	return t.SetStr(ns, key, fmt.Sprintf("%d", value))
}

func (t *Tx) SetBlob(ns, key string, value []byte) error {
	return t.SetStr(ns, key, base64.StdEncoding.EncodeToString(value))
}

func (t *Tx) EraseKey(ns, key string) error {
	_, err := t.sqlTx.Exec(`DELETE FROM kv WHERE ns = ? AND key = ?`, ns, key)
	return err
}
