package escrow

import (
	"encoding/binary"
	"fmt"

	"swapd/crypto"
)

// OpCode is the one-byte operation selector leading every instruction
// payload.
type OpCode byte

const (
	// OpMake opens an offer: locks asset X in custody and records the
	// asset-Y amount expected in return.
	OpMake OpCode = 0
	// OpAccept settles an offer atomically in favour of the taker.
	OpAccept OpCode = 1
	// OpRefund cancels an offer and returns the locked asset to the maker.
	OpRefund OpCode = 2
)

// AccountMeta is one entry of an instruction's ordered, positional account
// list.
type AccountMeta struct {
	Address crypto.Address
	Signer  bool
}

// Instruction is the outer envelope handed to the program: the ordered
// account list plus the selector-prefixed argument payload.
type Instruction struct {
	Accounts []AccountMeta
	Data     []byte
}

// Positional account layouts per operation.
const (
	makeAccountLen   = 6
	acceptAccountLen = 9
	refundAccountLen = 5
)

const (
	makeIdxMaker = iota
	makeIdxRecord
	makeIdxAssetX
	makeIdxAssetY
	makeIdxMakerHoldingX
	makeIdxCustody
)

const (
	acceptIdxTaker = iota
	acceptIdxMaker
	acceptIdxRecord
	acceptIdxAssetX
	acceptIdxAssetY
	acceptIdxCustody
	acceptIdxTakerHoldingX
	acceptIdxTakerHoldingY
	acceptIdxMakerHoldingY
)

const (
	refundIdxMaker = iota
	refundIdxAssetX
	refundIdxMakerHoldingX
	refundIdxRecord
	refundIdxCustody
)

// MakeArgs carries the two amounts of a Make instruction.
type MakeArgs struct {
	Deposit uint64
	Receive uint64
}

const makeArgsLen = 16

// EncodeMakeArgs serializes Make arguments: deposit then receive, both
// unsigned 64-bit little-endian.
func EncodeMakeArgs(args MakeArgs) []byte {
	buf := make([]byte, makeArgsLen)
	binary.LittleEndian.PutUint64(buf[0:8], args.Deposit)
	binary.LittleEndian.PutUint64(buf[8:16], args.Receive)
	return buf
}

// DecodeMakeArgs parses and validates a Make payload. A zero deposit is
// rejected before any state is touched.
func DecodeMakeArgs(data []byte) (MakeArgs, error) {
	if len(data) != makeArgsLen {
		return MakeArgs{}, fmt.Errorf("%w: make payload must be %d bytes, got %d", ErrInvalidArgument, makeArgsLen, len(data))
	}
	args := MakeArgs{
		Deposit: binary.LittleEndian.Uint64(data[0:8]),
		Receive: binary.LittleEndian.Uint64(data[8:16]),
	}
	if args.Deposit == 0 {
		return MakeArgs{}, ErrZeroAmount
	}
	return args, nil
}

// MakeInstruction assembles the complete envelope for opening an offer.
func MakeInstruction(maker, record, assetX, assetY, makerHoldingX, custody crypto.Address, args MakeArgs) Instruction {
	data := append([]byte{byte(OpMake)}, EncodeMakeArgs(args)...)
	return Instruction{
		Accounts: []AccountMeta{
			{Address: maker, Signer: true},
			{Address: record},
			{Address: assetX},
			{Address: assetY},
			{Address: makerHoldingX},
			{Address: custody},
		},
		Data: data,
	}
}

// AcceptInstruction assembles the complete envelope for settling an offer.
func AcceptInstruction(taker, maker, record, assetX, assetY, custody, takerHoldingX, takerHoldingY, makerHoldingY crypto.Address) Instruction {
	return Instruction{
		Accounts: []AccountMeta{
			{Address: taker, Signer: true},
			{Address: maker},
			{Address: record},
			{Address: assetX},
			{Address: assetY},
			{Address: custody},
			{Address: takerHoldingX},
			{Address: takerHoldingY},
			{Address: makerHoldingY},
		},
		Data: []byte{byte(OpAccept)},
	}
}

// RefundInstruction assembles the complete envelope for cancelling an offer.
func RefundInstruction(maker, assetX, makerHoldingX, record, custody crypto.Address) Instruction {
	return Instruction{
		Accounts: []AccountMeta{
			{Address: maker, Signer: true},
			{Address: assetX},
			{Address: makerHoldingX},
			{Address: record},
			{Address: custody},
		},
		Data: []byte{byte(OpRefund)},
	}
}
