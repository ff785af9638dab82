// Package block defines the signed block, ack, and certificate objects
// that make up a round's DAG vertex: their wire/at-rest shape, id
// derivation, and the cryptographic invariants every proposer and acker
// must uphold.
package block

import (
	"errors"
	"fmt"
	"sort"

	"github.com/luxfi/modality/codec"
	"github.com/luxfi/modality/crypto/signer"
	idsutil "github.com/luxfi/modality/utils/ids"
)

var (
	// ErrBadSignature is returned when a cryptographic check fails.
	ErrBadSignature = errors.New("block: bad signature")
	// ErrDuplicateAck is returned when a conflicting ack arrives from an
	// acker already present in the ack set.
	ErrDuplicateAck = errors.New("block: duplicate ack")
	// ErrInsufficientAcks is returned when certifying below quorum.
	ErrInsufficientAcks = errors.New("block: insufficient acks")
	// ErrAlreadyCertified is returned by GenerateCert once Cert is set.
	ErrAlreadyCertified = errors.New("block: already certified")
	// ErrAlreadyOpened is returned by AddEvent and GenerateOpeningSig once
	// OpeningSig is set.
	ErrAlreadyOpened = errors.New("block: opening signature already generated")
	// ErrNotOpened is returned by operations that require OpeningSig first.
	ErrNotOpened = errors.New("block: opening signature not yet generated")
	// ErrUnknownAcker is returned when validating an ack/cert against a
	// committee that does not include the signer.
	ErrUnknownAcker = errors.New("block: acker not in committee")
)

// CertRef is a reference to a round r-1 certificate a proposer observed,
// carried in prev_round_certs. It is not the whole certified block, only
// enough to prove the certificate existed: the proposer and its cert
// signature.
type CertRef struct {
	PeerID  idsutil.NodeID       `json:"peer_id"`
	RoundID uint64           `json:"round_id"`
	Cert    signer.Signature `json:"cert"`
}

// Ack is a single acker's acknowledgement of a draft block.
type Ack struct {
	PeerID     idsutil.NodeID       `json:"peer_id"`
	RoundID    uint64           `json:"round_id"`
	Acker      idsutil.NodeID       `json:"acker"`
	ClosingSig signer.Signature `json:"closing_sig"`
	AckerSig   signer.Signature `json:"acker_sig"`
}

// closingPayload is what ClosingSig signs: the acker's attestation that it
// saw this exact draft.
type closingPayload struct {
	PeerID  idsutil.NodeID `json:"peer_id"`
	RoundID uint64     `json:"round_id"`
	Draft   []byte     `json:"draft"`
}

// envelopePayload is what AckerSig signs: the ack envelope itself, binding
// the closing signature to the acker's identity.
type envelopePayload struct {
	PeerID     idsutil.NodeID       `json:"peer_id"`
	RoundID    uint64           `json:"round_id"`
	Acker      idsutil.NodeID       `json:"acker"`
	ClosingSig signer.Signature `json:"closing_sig"`
}

// Header is the compact persisted view of a block that omits the full
// event payload: /block_headers/round/{round_id}/peer/{peer_id}.
type Header struct {
	PeerID         idsutil.NodeID          `json:"peer_id"`
	RoundID        uint64              `json:"round_id"`
	PrevRoundCerts map[string]CertRef  `json:"prev_round_certs"`
	OpeningSig     signer.Signature    `json:"opening_sig"`
	Cert           signer.Signature    `json:"cert,omitempty"`
}

// Block is the proposal unit for one (round, proposer).
type Block struct {
	PeerID         idsutil.NodeID         `json:"peer_id"`
	RoundID        uint64             `json:"round_id"`
	Events         [][]byte           `json:"events"`
	PrevRoundCerts map[string]CertRef `json:"prev_round_certs"`
	OpeningSig     signer.Signature   `json:"opening_sig,omitempty"`
	Acks           map[string]Ack     `json:"acks"`
	Cert           signer.Signature   `json:"cert,omitempty"`
}

// New constructs a draft block; OpeningSig is absent until
// GenerateOpeningSig is called.
func New(peerID idsutil.NodeID, roundID uint64, events [][]byte, prevRoundCerts map[string]CertRef) *Block {
	if prevRoundCerts == nil {
		prevRoundCerts = make(map[string]CertRef)
	}
	evs := make([][]byte, len(events))
	copy(evs, events)
	return &Block{
		PeerID:         peerID,
		RoundID:        roundID,
		Events:         evs,
		PrevRoundCerts: prevRoundCerts,
		Acks:           make(map[string]Ack),
	}
}

// Header returns the compact header view of the block.
func (b *Block) Header() Header {
	return Header{
		PeerID:         b.PeerID,
		RoundID:        b.RoundID,
		PrevRoundCerts: b.PrevRoundCerts,
		OpeningSig:     b.OpeningSig,
		Cert:           b.Cert,
	}
}

// openingPayload is what OpeningSig signs.
type openingPayload struct {
	PeerID         idsutil.NodeID         `json:"peer_id"`
	RoundID        uint64             `json:"round_id"`
	PrevRoundCerts map[string]CertRef `json:"prev_round_certs"`
	Events         [][]byte           `json:"events"`
}

func (b *Block) openingCanonical() ([]byte, error) {
	return codec.Canonical(openingPayload{
		PeerID:         b.PeerID,
		RoundID:        b.RoundID,
		PrevRoundCerts: b.PrevRoundCerts,
		Events:         b.Events,
	})
}

// AddEvent appends payload to Events. Only permitted before OpeningSig is
// generated.
func (b *Block) AddEvent(payload []byte) error {
	if len(b.OpeningSig) > 0 {
		return ErrAlreadyOpened
	}
	b.Events = append(b.Events, payload)
	return nil
}

// GenerateOpeningSig signs (peer_id, round_id, prev_round_certs, events)
// under kp and stores the result as OpeningSig. kp must belong to PeerID.
func (b *Block) GenerateOpeningSig(kp *signer.KeyPair) error {
	if len(b.OpeningSig) > 0 {
		return ErrAlreadyOpened
	}
	payload, err := b.openingCanonical()
	if err != nil {
		return err
	}
	sig, err := kp.Sign(payload)
	if err != nil {
		return fmt.Errorf("block: sign opening: %w", err)
	}
	b.OpeningSig = sig
	return nil
}

// ValidateOpeningSig verifies OpeningSig under proposerPub.
func (b *Block) ValidateOpeningSig(proposerPub signer.PublicKey) error {
	if len(b.OpeningSig) == 0 {
		return ErrNotOpened
	}
	payload, err := b.openingCanonical()
	if err != nil {
		return err
	}
	if err := signer.Verify(proposerPub, payload, b.OpeningSig); err != nil {
		return fmt.Errorf("%w: opening_sig: %w", ErrBadSignature, err)
	}
	return nil
}

// draftCanonical is the bytes an acker's ClosingSig signs over: the draft
// as the proposer sent it (peer_id, round_id, prev_round_certs, events,
// opening_sig).
func (b *Block) draftCanonical() ([]byte, error) {
	return codec.Canonical(struct {
		PeerID         idsutil.NodeID         `json:"peer_id"`
		RoundID        uint64             `json:"round_id"`
		PrevRoundCerts map[string]CertRef `json:"prev_round_certs"`
		Events         [][]byte           `json:"events"`
		OpeningSig     signer.Signature   `json:"opening_sig"`
	}{b.PeerID, b.RoundID, b.PrevRoundCerts, b.Events, b.OpeningSig})
}

// GenerateAck constructs an ack for this draft under acker's key kp.
func (b *Block) GenerateAck(kp *signer.KeyPair) (*Ack, error) {
	if len(b.OpeningSig) == 0 {
		return nil, ErrNotOpened
	}
	ackerID, err := kp.NodeID()
	if err != nil {
		return nil, err
	}

	draft, err := b.draftCanonical()
	if err != nil {
		return nil, err
	}
	closing, err := codec.Canonical(closingPayload{PeerID: b.PeerID, RoundID: b.RoundID, Draft: draft})
	if err != nil {
		return nil, err
	}
	closingSig, err := kp.Sign(closing)
	if err != nil {
		return nil, fmt.Errorf("block: sign closing: %w", err)
	}

	envelope, err := codec.Canonical(envelopePayload{
		PeerID:     b.PeerID,
		RoundID:    b.RoundID,
		Acker:      ackerID,
		ClosingSig: closingSig,
	})
	if err != nil {
		return nil, err
	}
	ackerSig, err := kp.Sign(envelope)
	if err != nil {
		return nil, fmt.Errorf("block: sign envelope: %w", err)
	}

	return &Ack{
		PeerID:     b.PeerID,
		RoundID:    b.RoundID,
		Acker:      ackerID,
		ClosingSig: closingSig,
		AckerSig:   ackerSig,
	}, nil
}

// AddAck inserts ack into the ack map. Idempotent on exact re-add; fails
// with ErrDuplicateAck if Acker is already present with a different
// signature. Performs no cryptographic verification — callers validate
// before add (the runner calls VerifyInboundAck first).
func (b *Block) AddAck(ack Ack) error {
	key := ack.Acker.String()
	if existing, ok := b.Acks[key]; ok {
		if string(existing.ClosingSig) == string(ack.ClosingSig) && string(existing.AckerSig) == string(ack.AckerSig) {
			return nil
		}
		return ErrDuplicateAck
	}
	b.Acks[key] = ack
	return nil
}

// VerifyInboundAck checks ack's signatures against this block's canonical
// draft under ackerPub without mutating the block. Callers must call this
// before AddAck; AddAck itself performs no cryptographic verification.
func (b *Block) VerifyInboundAck(ack Ack, ackerPub signer.PublicKey) error {
	draft, err := b.draftCanonical()
	if err != nil {
		return err
	}
	return VerifyAck(ack, ackerPub, draft)
}

// ackerLookup resolves an acker's public key, the shape both
// CountValidAcks and ValidateAcks need from a committee.
type ackerLookup interface {
	PublicKeyOf(idsutil.NodeID) (signer.PublicKey, bool)
}

// CountValidAcks returns the number of acks in the ack map whose
// signatures verify against lookup.
func (b *Block) CountValidAcks(lookup ackerLookup) int {
	draft, err := b.draftCanonical()
	if err != nil {
		return 0
	}
	count := 0
	for _, ack := range b.Acks {
		pub, ok := lookup.PublicKeyOf(ack.Acker)
		if !ok {
			continue
		}
		if VerifyAck(ack, pub, draft) == nil {
			count++
		}
	}
	return count
}

// ValidateAcks requires that every present ack verifies.
func (b *Block) ValidateAcks(lookup ackerLookup) error {
	draft, err := b.draftCanonical()
	if err != nil {
		return err
	}
	for _, ack := range b.Acks {
		pub, ok := lookup.PublicKeyOf(ack.Acker)
		if !ok {
			return ErrUnknownAcker
		}
		if err := VerifyAck(ack, pub, draft); err != nil {
			return err
		}
	}
	return nil
}

// VerifyAck checks both of ack's signatures under ackerPub against the
// canonical draft bytes. Used by a proposer validating an inbound ack
// before calling AddAck.
func VerifyAck(ack Ack, ackerPub signer.PublicKey, draftCanonical []byte) error {
	closing, err := codec.Canonical(closingPayload{PeerID: ack.PeerID, RoundID: ack.RoundID, Draft: draftCanonical})
	if err != nil {
		return err
	}
	if err := signer.Verify(ackerPub, closing, ack.ClosingSig); err != nil {
		return fmt.Errorf("%w: closing_sig: %w", ErrBadSignature, err)
	}
	envelope, err := codec.Canonical(envelopePayload{
		PeerID:     ack.PeerID,
		RoundID:    ack.RoundID,
		Acker:      ack.Acker,
		ClosingSig: ack.ClosingSig,
	})
	if err != nil {
		return err
	}
	if err := signer.Verify(ackerPub, envelope, ack.AckerSig); err != nil {
		return fmt.Errorf("%w: acker_sig: %w", ErrBadSignature, err)
	}
	return nil
}

// certPayload is what Cert signs: the closed block including its
// (sorted-by-key-via-canonicalization) ack set.
type certPayload struct {
	PeerID         idsutil.NodeID         `json:"peer_id"`
	RoundID        uint64             `json:"round_id"`
	PrevRoundCerts map[string]CertRef `json:"prev_round_certs"`
	Events         [][]byte           `json:"events"`
	OpeningSig     signer.Signature   `json:"opening_sig"`
	Acks           map[string]Ack     `json:"acks"`
}

func (b *Block) certCanonical() ([]byte, error) {
	return codec.Canonical(certPayload{
		PeerID:         b.PeerID,
		RoundID:        b.RoundID,
		PrevRoundCerts: b.PrevRoundCerts,
		Events:         b.Events,
		OpeningSig:     b.OpeningSig,
		Acks:           b.Acks,
	})
}

// GenerateCert requires at least quorum valid acks (including the
// proposer's own self-ack) and produces Cert, signing the canonical
// block-with-acks under kp. At-most-once: fails with ErrAlreadyCertified
// on a second call.
func (b *Block) GenerateCert(kp *signer.KeyPair, lookup ackerLookup, quorum int) error {
	if len(b.Cert) > 0 {
		return ErrAlreadyCertified
	}
	if b.CountValidAcks(lookup) < quorum {
		return ErrInsufficientAcks
	}
	payload, err := b.certCanonical()
	if err != nil {
		return err
	}
	sig, err := kp.Sign(payload)
	if err != nil {
		return fmt.Errorf("block: sign cert: %w", err)
	}
	b.Cert = sig
	return nil
}

// ValidateCert verifies Cert under proposerPub and confirms at least
// quorum valid, distinct acks are present, all from lookup's committee.
func (b *Block) ValidateCert(proposerPub signer.PublicKey, lookup ackerLookup, quorum int) error {
	if len(b.Cert) == 0 {
		return ErrInsufficientAcks
	}
	payload, err := b.certCanonical()
	if err != nil {
		return err
	}
	if err := signer.Verify(proposerPub, payload, b.Cert); err != nil {
		return fmt.Errorf("%w: cert: %w", ErrBadSignature, err)
	}
	if b.CountValidAcks(lookup) < quorum {
		return ErrInsufficientAcks
	}
	return nil
}

// SortedPrevCertPeers returns the prev_round_certs keys in lexicographic
// order, the order DAG ancestor linearization walks them in.
func (b *Block) SortedPrevCertPeers() []string {
	keys := make([]string, 0, len(b.PrevRoundCerts))
	for k := range b.PrevRoundCerts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
