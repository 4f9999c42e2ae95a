package state

import (
	"errors"
	"fmt"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"dexther/storage"
)

var (
	// ErrReadOnly is returned when a write is attempted through a View.
	ErrReadOnly = errors.New("state: read-only view")
	errNilDB    = errors.New("state: database not configured")
)

// KV is the key-value view handed to state transitions. Values are RLP
// encoded; keys are hashed before they reach the database.
type KV interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Manager serialises state transitions over a storage backend. Update runs
// one transition at a time and commits its writes as a single batch, or
// discards them all.
type Manager struct {
	mu sync.RWMutex
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// Update executes fn against a write journal while holding the exclusive
// lock. The journal is committed iff fn returns nil. A panic inside fn is
// converted into an error and the journal is discarded.
func (m *Manager) Update(fn func(KV) error) (err error) {
	if m == nil || m.db == nil {
		return errNilDB
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	j := newJournal(m.db)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("state: transition panicked: %v", r)
		}
	}()
	if err := fn(j); err != nil {
		return err
	}
	return j.commit()
}

// View executes fn against the committed state. Writes are rejected.
func (m *Manager) View(fn func(KV) error) error {
	if m == nil || m.db == nil {
		return errNilDB
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(readView{db: m.db})
}

type readView struct {
	db storage.Database
}

func (v readView) KVGet(key []byte, out interface{}) (bool, error) {
	return decodeFrom(v.db, kvKey(key), out)
}

func (readView) KVPut([]byte, interface{}) error { return ErrReadOnly }

func (readView) KVDelete([]byte) error { return ErrReadOnly }

func decodeFrom(db storage.Database, hashed []byte, out interface{}) (bool, error) {
	data, err := db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode: %w", err)
	}
	return true, nil
}

// journal buffers writes of a single transition. Reads observe the buffered
// writes before falling through to the database.
type journal struct {
	db      storage.Database
	writes  map[string][]byte
	deletes map[string]struct{}
	order   []string
}

func newJournal(db storage.Database) *journal {
	return &journal{
		db:      db,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (j *journal) KVGet(key []byte, out interface{}) (bool, error) {
	hashed := string(kvKey(key))
	if _, deleted := j.deletes[hashed]; deleted {
		return false, nil
	}
	if data, ok := j.writes[hashed]; ok {
		if out == nil {
			return true, nil
		}
		if err := rlp.DecodeBytes(data, out); err != nil {
			return false, fmt.Errorf("state: decode: %w", err)
		}
		return true, nil
	}
	return decodeFrom(j.db, []byte(hashed), out)
}

func (j *journal) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	hashed := string(kvKey(key))
	delete(j.deletes, hashed)
	if _, seen := j.writes[hashed]; !seen {
		j.order = append(j.order, hashed)
	}
	j.writes[hashed] = encoded
	return nil
}

func (j *journal) KVDelete(key []byte) error {
	hashed := string(kvKey(key))
	if _, seen := j.writes[hashed]; seen {
		delete(j.writes, hashed)
	} else {
		j.order = append(j.order, hashed)
	}
	j.deletes[hashed] = struct{}{}
	return nil
}

func (j *journal) commit() error {
	if len(j.order) == 0 {
		return nil
	}
	batch := j.db.NewBatch()
	for _, hashed := range j.order {
		if _, deleted := j.deletes[hashed]; deleted {
			batch.Delete([]byte(hashed))
			continue
		}
		if data, ok := j.writes[hashed]; ok {
			batch.Put([]byte(hashed), data)
		}
	}
	return batch.Write()
}
