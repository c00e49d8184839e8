package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressPrefix is the human-readable part used when rendering addresses.
type AddressPrefix = string

const (
	// Bech32Prefix is the canonical prefix for swapd addresses.
	Bech32Prefix AddressPrefix = "swp"
)

// AddressLen is the size of every on-ledger identifier: wallets, asset
// classes, module identities and derived record addresses all share it.
const AddressLen = 32

// Address is a 32-byte ledger identifier. The zero value is never a valid
// account address.
type Address [AddressLen]byte

// AddressFromBytes copies b into an Address and rejects malformed input.
func AddressFromBytes(b []byte) (Address, error) {
	var addr Address
	if len(b) != AddressLen {
		return addr, fmt.Errorf("address must be %d bytes long, got %d", AddressLen, len(b))
	}
	copy(addr[:], b)
	return addr, nil
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLen)
	copy(out, a[:])
	return out
}

// IsZero reports whether the address is the all-zero identifier.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Hex returns the lowercase hex encoding of the address without a prefix.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// String renders the address in bech32 with the canonical prefix.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(Bech32Prefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// DecodeAddress parses a bech32 address string produced by Address.String.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != Bech32Prefix {
		return Address{}, fmt.Errorf("unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return AddressFromBytes(conv)
}

// ModuleAddress derives the fixed identity of a built-in module from its
// canonical name. Module identities are stable across networks.
func ModuleAddress(name string) Address {
	var addr Address
	sum := sha256.Sum256(append([]byte("swapd/module/"), []byte(name)...))
	copy(addr[:], sum[:])
	return addr
}

// Equal reports byte equality with another address.
func (a Address) Equal(other Address) bool {
	return bytes.Equal(a[:], other[:])
}
