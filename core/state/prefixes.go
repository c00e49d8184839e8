package state

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"swapd/crypto"
)

var accountPrefix = []byte("account:")

// accountKey hashes the prefixed address into the fixed-width storage key
// used by the backing store.
func accountKey(addr crypto.Address) []byte {
	buf := make([]byte, len(accountPrefix)+crypto.AddressLen)
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}
