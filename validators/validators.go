// Package validators describes committee membership: the set of peers
// eligible to participate in a given round, keyed by ids.NodeID.
//
// Membership itself is tracked on top of github.com/luxfi/validators, the
// same weighted validator-set package the teacher's own validator package
// re-exports (validator/validators.go, validator/new.go) and that backs
// warp/BLS-aggregation elsewhere in the teacher tree (validator/
// warp_ordering.go). This module's committees are unweighted (every scribe
// counts once toward quorum), so every member is registered at weight 1;
// the extvalidators.Set still gives this package a real BLS-keyed
// membership store instead of a hand-rolled one, and leaves room for a
// future Manager built on stake-weighted committees without a second
// membership representation.
package validators

import (
	"errors"
	"fmt"
	"sort"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/ids"
	extvalidators "github.com/luxfi/validators"

	"github.com/luxfi/modality/crypto/signer"
)

// ErrUnknownValidator is returned when looking up a peer not in the set.
var ErrUnknownValidator = errors.New("validators: unknown validator")

// Validator is one committee member's durable identity.
type Validator struct {
	NodeID    ids.NodeID
	PublicKey signer.PublicKey
}

// Set is an ordered, immutable list of validators, the "scribes" of a
// round. Order is significant: sequencing.Oracle.Anchor indexes into it.
// Membership tests and weight bookkeeping are delegated to an underlying
// extvalidators.Set; ordered/byNode remain the authoritative typed storage
// so Get/List/At can hand back this package's Validator type directly.
type Set struct {
	ordered  []Validator
	byNode   map[ids.NodeID]Validator
	weighted extvalidators.Set
}

// NewSet builds a Set from validators, sorted by NodeID so that two callers
// constructing the same membership always agree on order regardless of
// insertion sequence. Each member is also registered, at weight 1, into an
// underlying extvalidators.Set keyed by its BLS public key.
func NewSet(vs []Validator) (*Set, error) {
	ordered := make([]Validator, len(vs))
	copy(ordered, vs)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].NodeID.String() < ordered[j].NodeID.String()
	})

	byNode := make(map[ids.NodeID]Validator, len(ordered))
	weighted := extvalidators.NewSet()
	for _, v := range ordered {
		byNode[v.NodeID] = v

		pk, err := bls.PublicKeyFromCompressedBytes([]byte(v.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("validators: register %s: malformed public key: %w", v.NodeID, err)
		}
		if err := weighted.Add(v.NodeID, pk, ids.Empty, 1); err != nil {
			return nil, fmt.Errorf("validators: register %s: %w", v.NodeID, err)
		}
	}
	return &Set{ordered: ordered, byNode: byNode, weighted: weighted}, nil
}

// Len returns the committee size N.
func (s *Set) Len() int {
	return s.weighted.Len()
}

// At returns the i-th validator in order, for round-robin anchor indexing.
func (s *Set) At(i int) Validator {
	return s.ordered[i%len(s.ordered)]
}

// Contains reports whether peer is a member of this set.
func (s *Set) Contains(peer ids.NodeID) bool {
	return s.weighted.Contains(peer)
}

// Get returns the Validator entry for peer.
func (s *Set) Get(peer ids.NodeID) (Validator, error) {
	v, ok := s.byNode[peer]
	if !ok {
		return Validator{}, ErrUnknownValidator
	}
	return v, nil
}

// List returns the ordered membership, a defensive copy.
func (s *Set) List() []Validator {
	out := make([]Validator, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Weighted exposes the underlying extvalidators.Set, for components (warp
// message verification, BLS signature aggregation) that need the wider
// validator-set contract rather than this package's narrower Validator type.
func (s *Set) Weighted() extvalidators.Set {
	return s.weighted
}

// Manager resolves the committee membership for arbitrary epochs/heights,
// the layer sequencing.Oracle implementations sit on top of. A single
// Manager typically serves an entire network; Set is the per-round
// resolution of it. This module only ever runs fixed-authority committees,
// so it keeps its own narrow interface rather than taking on
// extvalidators.Manager's subnet-keyed, stake-churn-tracking contract;
// sequencing.MiningDerived.NominationSource is the seam where a
// stake-weighted Manager would plug in if this module grew validator churn.
type Manager interface {
	// Committee returns the validator Set active at the given epoch.
	Committee(epoch uint64) (*Set, error)
}

// StaticManager serves the same Set for every epoch, the committee shape
// used by fixed-authority networks and the in-process devnet.
type StaticManager struct {
	set *Set
}

// NewStaticManager returns a Manager that always resolves to set.
func NewStaticManager(set *Set) *StaticManager {
	return &StaticManager{set: set}
}

func (m *StaticManager) Committee(uint64) (*Set, error) {
	return m.set, nil
}
