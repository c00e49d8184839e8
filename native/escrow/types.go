package escrow

import (
	"encoding/binary"
	"fmt"

	"swapd/crypto"
	"swapd/native/token"
)

// ProgramID is the escrow program's identity. Record accounts are owned by
// it, and record addresses are derived under it.
var ProgramID = crypto.ModuleAddress("escrow")

// recordSeed is the fixed literal tag leading every record derivation tuple.
var recordSeed = []byte("escrow")

// RecordLen is the exact serialized size of a Record: maker, both asset
// classes, the receive amount and the derivation bump, packed with no
// padding.
const RecordLen = crypto.AddressLen*3 + 8 + 1

// Record is the persistent description of one open trade. It is written once
// by Make, read by Accept and Refund, and destroyed when the trade settles or
// is cancelled. A record exists in storage iff its trade is open.
type Record struct {
	Maker   crypto.Address
	AssetX  crypto.Address
	AssetY  crypto.Address
	Receive uint64
	Bump    uint8
}

// MarshalBinary encodes the record into its fixed layout. The receive amount
// is little-endian.
func (r *Record) MarshalBinary() ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("escrow: nil record")
	}
	buf := make([]byte, RecordLen)
	copy(buf[0:32], r.Maker[:])
	copy(buf[32:64], r.AssetX[:])
	copy(buf[64:96], r.AssetY[:])
	binary.LittleEndian.PutUint64(buf[96:104], r.Receive)
	buf[104] = r.Bump
	return buf, nil
}

// UnmarshalBinary decodes a record from its fixed layout, rejecting any other
// size.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) != RecordLen {
		return fmt.Errorf("%w: record must be %d bytes, got %d", ErrWrongDataSize, RecordLen, len(data))
	}
	copy(r.Maker[:], data[0:32])
	copy(r.AssetX[:], data[32:64])
	copy(r.AssetY[:], data[64:96])
	r.Receive = binary.LittleEndian.Uint64(data[96:104])
	r.Bump = data[104]
	return nil
}

// RecordAddress derives the record address for the (maker, asset-X class)
// namespace. Exactly one open record may exist per namespace at a time.
// Callers never trust a supplied record address; they recompute it here and
// compare.
func RecordAddress(maker, assetX crypto.Address) (crypto.Address, uint8, error) {
	return crypto.FindAddress([][]byte{recordSeed, maker[:], assetX[:]}, ProgramID)
}

// CustodyAddress derives the custody account for a record by composing the
// token ledger's association rule with the record address: the custody is the
// record's own holding account for asset X, so the record address is its
// transfer authority.
func CustodyAddress(record, assetX crypto.Address) (crypto.Address, error) {
	return token.AssociatedAddress(record, assetX)
}

// recordSigner reconstructs the record's signing capability from the seed
// tuple and the stored bump. It is built fresh at every use; the capability
// is never persisted.
func recordSigner(maker, assetX crypto.Address, bump uint8) crypto.DerivedSigner {
	return crypto.NewDerivedSigner(ProgramID, bump, recordSeed, maker[:], assetX[:])
}
