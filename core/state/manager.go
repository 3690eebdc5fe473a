package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"yieldpool/storage"
)

var (
	// ErrTxActive is returned when Begin is called while a transaction is
	// already open.
	ErrTxActive = errors.New("state: transaction already active")
	// ErrNoTx is returned when Commit is called without an open transaction.
	ErrNoTx = errors.New("state: no active transaction")
)

type pendingEntry struct {
	value   []byte
	deleted bool
}

// Manager layers a write journal over the backing database. Writes made
// between Begin and Commit are only visible through the manager until Commit
// flushes them in a single storage batch. Rollback discards them.
type Manager struct {
	mu      sync.Mutex
	db      storage.Database
	pending map[string]pendingEntry
	order   []string
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a transaction.
func (m *Manager) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		return ErrTxActive
	}
	m.pending = make(map[string]pendingEntry)
	m.order = nil
	return nil
}

// InTx reports whether a transaction is open.
func (m *Manager) InTx() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// Commit writes every journaled change in one batch and closes the
// transaction. It returns the number of keys written.
func (m *Manager) Commit() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return 0, ErrNoTx
	}
	batch := m.db.NewBatch()
	for _, key := range m.order {
		entry := m.pending[key]
		if entry.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), entry.value)
	}
	written := batch.Len()
	if err := batch.Write(); err != nil {
		// The journal is kept so the caller can decide to roll back.
		return 0, fmt.Errorf("state: commit: %w", err)
	}
	m.pending = nil
	m.order = nil
	return written, nil
}

// Rollback discards the open transaction, if any.
func (m *Manager) Rollback() {
	m.mu.Lock()
	m.pending = nil
	m.order = nil
	m.mu.Unlock()
}

func (m *Manager) get(key []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		if entry, ok := m.pending[string(key)]; ok {
			if entry.deleted {
				return nil, nil
			}
			return entry.value, nil
		}
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (m *Manager) put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return m.db.Put(key, value)
	}
	k := string(key)
	if _, seen := m.pending[k]; !seen {
		m.order = append(m.order, k)
	}
	m.pending[k] = pendingEntry{value: append([]byte(nil), value...)}
	return nil
}

func (m *Manager) delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		err := m.db.Delete(key)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	k := string(key)
	if _, seen := m.pending[k]; !seen {
		m.order = append(m.order, k)
	}
	m.pending[k] = pendingEntry{deleted: true}
	return nil
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key. Missing keys are ignored.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.delete(kvKey(key))
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}

// KVGetList decodes the RLP-encoded slice stored under key into out. When no
// value is present the destination is set to an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("kv: destination must be a non-nil pointer")
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Slice {
		return fmt.Errorf("kv: destination must point to a slice")
	}
	ok, err := m.KVGet(key, out)
	if err != nil {
		return err
	}
	if !ok {
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
	}
	return nil
}
