package state

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"swapd/core/types"
	"swapd/crypto"
	"swapd/storage"
)

func testAddr(fill byte) crypto.Address {
	var addr crypto.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, crypto.AddressLen))
	return addr
}

func TestManagerRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	addr := testAddr(0x01)
	owner := crypto.ModuleAddress("test")

	account, err := manager.GetAccount(addr)
	require.NoError(t, err)
	require.Nil(t, account)

	stored := &types.Account{Owner: owner, Balance: 42, Data: []byte{0xAA, 0xBB}}
	require.NoError(t, manager.PutAccount(addr, stored))

	loaded, err := manager.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, owner, loaded.Owner)
	require.Equal(t, uint64(42), loaded.Balance)
	require.Equal(t, []byte{0xAA, 0xBB}, loaded.Data)
}

func TestManagerDiscardLeavesStoreUntouched(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)
	addr := testAddr(0x02)

	require.NoError(t, manager.PutAccount(addr, &types.Account{Balance: 7}))
	require.True(t, manager.Pending())
	manager.Discard()
	require.False(t, manager.Pending())

	loaded, err := manager.GetAccount(addr)
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestManagerCommitPersists(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)
	addr := testAddr(0x03)

	require.NoError(t, manager.PutAccount(addr, &types.Account{Balance: 9}))
	require.NoError(t, manager.Commit())

	// A fresh manager over the same store sees the committed account.
	reopened := NewManager(db)
	loaded, err := reopened.GetAccount(addr)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, uint64(9), loaded.Balance)
}

func TestManagerDeleteAccount(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)
	addr := testAddr(0x04)

	require.NoError(t, manager.PutAccount(addr, &types.Account{Balance: 1, Data: []byte{1}}))
	require.NoError(t, manager.Commit())

	require.NoError(t, manager.DeleteAccount(addr))
	loaded, err := manager.GetAccount(addr)
	require.NoError(t, err)
	require.Nil(t, loaded)

	require.NoError(t, manager.Commit())
	reopened := NewManager(db)
	loaded, err = reopened.GetAccount(addr)
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestManagerOverlayShadowsStore(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)
	addr := testAddr(0x05)

	require.NoError(t, manager.PutAccount(addr, &types.Account{Balance: 10}))
	require.NoError(t, manager.Commit())

	require.NoError(t, manager.PutAccount(addr, &types.Account{Balance: 20}))
	loaded, err := manager.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(20), loaded.Balance)

	manager.Discard()
	loaded, err = manager.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(10), loaded.Balance)
}

func TestRentMinimumScalesWithSize(t *testing.T) {
	require.Greater(t, types.RentMinimum(105), types.RentMinimum(0))
	require.Equal(t, types.RentMinimum(64), types.RentMinimum(64))
}
