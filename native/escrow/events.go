package escrow

import (
	"strconv"

	"swapd/core/types"
	"swapd/crypto"
)

const (
	EventTypeMade     = "escrow.made"
	EventTypeAccepted = "escrow.accepted"
	EventTypeRefunded = "escrow.refunded"
)

// NewMadeEvent returns the canonical event payload for a newly opened offer.
func NewMadeEvent(recordAddr crypto.Address, record *Record, deposit uint64) *types.Event {
	attrs := recordAttributes(recordAddr, record)
	attrs["deposit"] = strconv.FormatUint(deposit, 10)
	return &types.Event{Type: EventTypeMade, Attributes: attrs}
}

// NewAcceptedEvent returns the canonical event payload emitted when an offer
// settles in favour of a taker.
func NewAcceptedEvent(recordAddr crypto.Address, record *Record, taker crypto.Address, released uint64) *types.Event {
	attrs := recordAttributes(recordAddr, record)
	attrs["taker"] = taker.Hex()
	attrs["released"] = strconv.FormatUint(released, 10)
	return &types.Event{Type: EventTypeAccepted, Attributes: attrs}
}

// NewRefundedEvent returns the canonical event payload emitted when a maker
// cancels an offer and reclaims the locked asset.
func NewRefundedEvent(recordAddr crypto.Address, record *Record, released uint64) *types.Event {
	attrs := recordAttributes(recordAddr, record)
	attrs["released"] = strconv.FormatUint(released, 10)
	return &types.Event{Type: EventTypeRefunded, Attributes: attrs}
}

func recordAttributes(recordAddr crypto.Address, record *Record) map[string]string {
	attrs := make(map[string]string)
	attrs["record"] = recordAddr.Hex()
	if record == nil {
		return attrs
	}
	attrs["maker"] = record.Maker.Hex()
	attrs["assetX"] = record.AssetX.Hex()
	attrs["assetY"] = record.AssetY.Hex()
	attrs["receive"] = strconv.FormatUint(record.Receive, 10)
	return attrs
}
