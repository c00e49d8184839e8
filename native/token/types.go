package token

import (
	"encoding/binary"
	"fmt"

	"swapd/crypto"
)

// ModuleID is the token ledger's program identity; every mint and holding
// account is owned by it.
var ModuleID = crypto.ModuleAddress("token")

// AssociatedModuleID namespaces the canonical wallet-to-holding-account
// association rule.
var AssociatedModuleID = crypto.ModuleAddress("token/associated")

const (
	// MintLen is the exact serialized size of a Mint record.
	MintLen = crypto.AddressLen + 8 + 1
	// AccountLen is the exact serialized size of a holding Account record.
	AccountLen = crypto.AddressLen + crypto.AddressLen + 8
)

// Mint describes one asset class: who may issue it, how much exists, and its
// display precision.
type Mint struct {
	Authority crypto.Address
	Supply    uint64
	Decimals  uint8
}

// MarshalBinary encodes the mint into its fixed layout. Amounts are
// little-endian.
func (m *Mint) MarshalBinary() ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("token: nil mint")
	}
	buf := make([]byte, MintLen)
	copy(buf[0:32], m.Authority[:])
	binary.LittleEndian.PutUint64(buf[32:40], m.Supply)
	buf[40] = m.Decimals
	return buf, nil
}

// UnmarshalBinary decodes a mint from its fixed layout.
func (m *Mint) UnmarshalBinary(data []byte) error {
	if len(data) != MintLen {
		return fmt.Errorf("token: mint record must be %d bytes, got %d", MintLen, len(data))
	}
	copy(m.Authority[:], data[0:32])
	m.Supply = binary.LittleEndian.Uint64(data[32:40])
	m.Decimals = data[40]
	return nil
}

// Account is a holding account for one asset class. Authority is the only
// identity allowed to move or close the balance; for custody accounts it is a
// derived address with no private key.
type Account struct {
	Mint      crypto.Address
	Authority crypto.Address
	Amount    uint64
}

// MarshalBinary encodes the holding account into its fixed layout.
func (a *Account) MarshalBinary() ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("token: nil account")
	}
	buf := make([]byte, AccountLen)
	copy(buf[0:32], a.Mint[:])
	copy(buf[32:64], a.Authority[:])
	binary.LittleEndian.PutUint64(buf[64:72], a.Amount)
	return buf, nil
}

// UnmarshalBinary decodes a holding account from its fixed layout.
func (a *Account) UnmarshalBinary(data []byte) error {
	if len(data) != AccountLen {
		return fmt.Errorf("token: holding account must be %d bytes, got %d", AccountLen, len(data))
	}
	copy(a.Mint[:], data[0:32])
	copy(a.Authority[:], data[32:64])
	a.Amount = binary.LittleEndian.Uint64(data[64:72])
	return nil
}

// AssociatedAddress applies the canonical association rule mapping a wallet
// and an asset class to the wallet's holding account address. The rule is a
// derived-address computation, so holding accounts have no private key of
// their own; the wallet stays the transfer authority.
func AssociatedAddress(wallet, mint crypto.Address) (crypto.Address, error) {
	addr, _, err := crypto.FindAddress(
		[][]byte{wallet[:], ModuleID[:], mint[:]},
		AssociatedModuleID,
	)
	return addr, err
}
