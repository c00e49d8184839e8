package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"swapd/core/types"
	"swapd/crypto"
	"swapd/storage"
)

// Manager provides account-level reads and writes over the backing store.
// Mutations accumulate in a write buffer and reach the store only on Commit;
// Discard drops the buffer, leaving the store untouched. This is what gives
// instruction execution its all-or-nothing behaviour.
//
// Manager is not safe for concurrent use; the node serializes executions.
type Manager struct {
	db    storage.Database
	dirty map[string]dirtyEntry
}

type dirtyEntry struct {
	value   []byte
	deleted bool
}

// NewManager creates a state manager operating on the provided store.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:    db,
		dirty: make(map[string]dirtyEntry),
	}
}

// GetAccount loads the account stored at addr, or nil when the address has
// never been allocated (or has been reclaimed).
func (m *Manager) GetAccount(addr crypto.Address) (*types.Account, error) {
	key := accountKey(addr)
	if entry, ok := m.dirty[string(key)]; ok {
		if entry.deleted {
			return nil, nil
		}
		return decodeAccount(entry.value)
	}
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeAccount(raw)
}

// PutAccount stages the account for storage at addr.
func (m *Manager) PutAccount(addr crypto.Address, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: refusing to store nil account")
	}
	encoded, err := rlp.EncodeToBytes(account)
	if err != nil {
		return fmt.Errorf("state: encode account: %w", err)
	}
	m.dirty[string(accountKey(addr))] = dirtyEntry{value: encoded}
	return nil
}

// DeleteAccount stages removal of the account at addr. Reclaiming an address
// that was never allocated is not an error.
func (m *Manager) DeleteAccount(addr crypto.Address) error {
	m.dirty[string(accountKey(addr))] = dirtyEntry{deleted: true}
	return nil
}

// Commit flushes the write buffer to the backing store and resets it.
func (m *Manager) Commit() error {
	for key, entry := range m.dirty {
		if entry.deleted {
			if err := m.db.Delete([]byte(key)); err != nil {
				return fmt.Errorf("state: commit delete: %w", err)
			}
			continue
		}
		if err := m.db.Put([]byte(key), entry.value); err != nil {
			return fmt.Errorf("state: commit put: %w", err)
		}
	}
	m.dirty = make(map[string]dirtyEntry)
	return nil
}

// Discard drops all staged mutations.
func (m *Manager) Discard() {
	m.dirty = make(map[string]dirtyEntry)
}

// Pending reports whether the write buffer holds uncommitted mutations.
func (m *Manager) Pending() bool {
	return len(m.dirty) > 0
}

func decodeAccount(raw []byte) (*types.Account, error) {
	account := new(types.Account)
	if err := rlp.DecodeBytes(raw, account); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	return account, nil
}
