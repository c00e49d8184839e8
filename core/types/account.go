package types

import (
	"swapd/crypto"
)

// Rent parameters for account storage. An account must be funded with at
// least the exemption minimum for its data size when it is allocated; the
// full balance is returned to the reclaim destination when the account is
// closed.
const (
	rentOverheadBytes  = 128
	rentLamportPerByte = 6960
)

// RentMinimum returns the native balance an account of the given data size
// must carry to stay allocated.
func RentMinimum(dataLen int) uint64 {
	if dataLen < 0 {
		dataLen = 0
	}
	return uint64(rentOverheadBytes+dataLen) * rentLamportPerByte
}

// Account is the ledger-level envelope every address resolves to: the module
// that owns (and may mutate) its data, its native funding balance, and an
// opaque data payload whose layout is defined by the owning module.
type Account struct {
	Owner   crypto.Address
	Balance uint64
	Data    []byte
}

// Clone returns a deep copy so callers can mutate the result without
// affecting the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Data = append([]byte(nil), a.Data...)
	return &clone
}

// IsEmpty reports whether the account holds no module data. Existence checks
// throughout the escrow program treat an empty account the same as a missing
// one.
func (a *Account) IsEmpty() bool {
	return a == nil || len(a.Data) == 0
}
