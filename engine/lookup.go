package engine

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/modality/crypto/signer"
	"github.com/luxfi/modality/validators"
)

// committeeLookup adapts a validators.Set to the unexported public-key
// lookup shape block.Block's ack/cert validation methods require
// (PublicKeyOf(ids.NodeID) (signer.PublicKey, bool)). Go interface
// satisfaction is structural: this type need not, and cannot, name
// block's unexported interface to satisfy it.
type committeeLookup struct {
	set *validators.Set
}

func (c committeeLookup) PublicKeyOf(peer ids.NodeID) (signer.PublicKey, bool) {
	v, err := c.set.Get(peer)
	if err != nil {
		return nil, false
	}
	return v.PublicKey, true
}

// otherPeers returns set's members excluding self, the broadcast fan-out
// list for a draft or certified block's proposer.
func otherPeers(set *validators.Set, self ids.NodeID) []ids.NodeID {
	all := set.List()
	out := make([]ids.NodeID, 0, len(all))
	for _, v := range all {
		if v.NodeID != self {
			out = append(out, v.NodeID)
		}
	}
	return out
}
