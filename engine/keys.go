package engine

import (
	"fmt"

	"github.com/luxfi/ids"
)

// Message type discriminants for /block_messages/.../type/{type}/....
const (
	messageTypeAck     = "ack"
	messageTypeLateAck = "late_ack"
)

func blockKey(round uint64, peer ids.NodeID) []byte {
	return []byte(fmt.Sprintf("/blocks/round/%d/peer/%s", round, peer))
}

func blockRoundPrefix(round uint64) []byte {
	return []byte(fmt.Sprintf("/blocks/round/%d/peer/", round))
}

func messageKey(round uint64, msgType string, peer ids.NodeID) []byte {
	return []byte(fmt.Sprintf("/block_messages/round/%d/type/%s/peer/%s", round, msgType, peer))
}

func roundRecordKey(round uint64) []byte {
	return []byte(fmt.Sprintf("/consensus/round/%d", round))
}
