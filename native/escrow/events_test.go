package escrow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMadeEventAttributes(t *testing.T) {
	recordAddr := testAddr(0x71)
	record := &Record{
		Maker:   testAddr(0x72),
		AssetX:  testAddr(0x73),
		AssetY:  testAddr(0x74),
		Receive: 50,
		Bump:    254,
	}
	evt := NewMadeEvent(recordAddr, record, 100)
	require.Equal(t, EventTypeMade, evt.Type)
	require.Equal(t, recordAddr.Hex(), evt.Attributes["record"])
	require.Equal(t, record.Maker.Hex(), evt.Attributes["maker"])
	require.Equal(t, "50", evt.Attributes["receive"])
	require.Equal(t, "100", evt.Attributes["deposit"])
}

func TestAcceptedEventAttributes(t *testing.T) {
	taker := testAddr(0x75)
	evt := NewAcceptedEvent(testAddr(0x76), &Record{Receive: 7}, taker, 100)
	require.Equal(t, EventTypeAccepted, evt.Type)
	require.Equal(t, taker.Hex(), evt.Attributes["taker"])
	require.Equal(t, "100", evt.Attributes["released"])
}

func TestRefundedEventAttributes(t *testing.T) {
	evt := NewRefundedEvent(testAddr(0x77), nil, 9)
	require.Equal(t, EventTypeRefunded, evt.Type)
	require.Equal(t, "9", evt.Attributes["released"])
	require.NotContains(t, evt.Attributes, "maker")
}
