package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"

	"github.com/luxfi/modality/crypto/signer"
)

type fakeLookup struct {
	keys map[ids.NodeID]signer.PublicKey
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{keys: make(map[ids.NodeID]signer.PublicKey)}
}

func (f *fakeLookup) add(kp *signer.KeyPair) ids.NodeID {
	id, err := kp.NodeID()
	if err != nil {
		panic(err)
	}
	f.keys[id] = kp.PublicKey()
	return id
}

func (f *fakeLookup) PublicKeyOf(id ids.NodeID) (signer.PublicKey, bool) {
	pub, ok := f.keys[id]
	return pub, ok
}

func genKey(t *testing.T) *signer.KeyPair {
	t.Helper()
	kp, err := signer.Generate()
	require.NoError(t, err)
	return kp
}

// TestThreeNodeHappyPath mirrors the three-node happy-path round scenario:
// committee {A, B, C}, quorum 2, A proposes, B and C ack, A self-acks and
// certifies.
func TestThreeNodeHappyPath(t *testing.T) {
	lookup := newFakeLookup()
	a, b, c := genKey(t), genKey(t), genKey(t)
	aID := lookup.add(a)
	lookup.add(b)
	lookup.add(c)

	blk := New(aID, 2, nil, nil)
	require.NoError(t, blk.GenerateOpeningSig(a))
	require.NoError(t, blk.ValidateOpeningSig(a.PublicKey()))

	selfAck, err := blk.GenerateAck(a)
	require.NoError(t, err)
	require.NoError(t, blk.AddAck(*selfAck))

	bAck, err := blk.GenerateAck(b)
	require.NoError(t, err)
	require.NoError(t, blk.AddAck(*bAck))

	cAck, err := blk.GenerateAck(c)
	require.NoError(t, err)
	require.NoError(t, blk.AddAck(*cAck))

	require.Equal(t, 3, blk.CountValidAcks(lookup))
	require.NoError(t, blk.ValidateAcks(lookup))

	require.NoError(t, blk.GenerateCert(a, lookup, 2))
	require.NoError(t, blk.ValidateCert(a.PublicKey(), lookup, 2))
	require.Len(t, blk.Acks, 3)
}

// TestDuplicateAckRejection mirrors the duplicate-ack scenario: a second,
// differently-signed ack from an acker already present is rejected and
// does not inflate the count.
func TestDuplicateAckRejection(t *testing.T) {
	lookup := newFakeLookup()
	a, b := genKey(t), genKey(t)
	aID := lookup.add(a)
	lookup.add(b)

	blk := New(aID, 2, nil, nil)
	require.NoError(t, blk.GenerateOpeningSig(a))

	firstAck, err := blk.GenerateAck(b)
	require.NoError(t, err)
	require.NoError(t, blk.AddAck(*firstAck))

	secondAck := *firstAck
	secondAck.ClosingSig = append(signer.Signature{}, firstAck.ClosingSig...)
	secondAck.ClosingSig[0] ^= 0xff

	err = blk.AddAck(secondAck)
	require.ErrorIs(t, err, ErrDuplicateAck)
	require.Len(t, blk.Acks, 1)
}

// TestAddAckIdempotentOnExactReplay re-delivery of the exact same ack is a
// no-op, matching on_receive_draft's idempotency requirement.
func TestAddAckIdempotentOnExactReplay(t *testing.T) {
	lookup := newFakeLookup()
	a, b := genKey(t), genKey(t)
	aID := lookup.add(a)
	lookup.add(b)

	blk := New(aID, 1, nil, nil)
	require.NoError(t, blk.GenerateOpeningSig(a))

	ack, err := blk.GenerateAck(b)
	require.NoError(t, err)
	require.NoError(t, blk.AddAck(*ack))
	require.NoError(t, blk.AddAck(*ack))
	require.Len(t, blk.Acks, 1)
}

// TestInvalidCertNotPersistable mirrors the invalid-cert-on-receipt
// scenario: a cert that does not verify fails ValidateCert so the receiver
// never treats the block as certified.
func TestInvalidCertNotPersistable(t *testing.T) {
	lookup := newFakeLookup()
	a, b := genKey(t), genKey(t)
	aID := lookup.add(a)
	lookup.add(b)

	blk := New(aID, 1, nil, nil)
	require.NoError(t, blk.GenerateOpeningSig(a))

	selfAck, err := blk.GenerateAck(a)
	require.NoError(t, err)
	require.NoError(t, blk.AddAck(*selfAck))
	bAck, err := blk.GenerateAck(b)
	require.NoError(t, err)
	require.NoError(t, blk.AddAck(*bAck))

	require.NoError(t, blk.GenerateCert(a, lookup, 2))
	blk.Cert = signer.Signature{}

	err = blk.ValidateCert(a.PublicKey(), lookup, 2)
	require.Error(t, err)
}

func TestAddEventRejectedAfterOpening(t *testing.T) {
	a := genKey(t)
	aID, err := a.NodeID()
	require.NoError(t, err)

	blk := New(aID, 1, nil, nil)
	require.NoError(t, blk.AddEvent([]byte("tx-1")))
	require.NoError(t, blk.GenerateOpeningSig(a))

	err = blk.AddEvent([]byte("tx-2"))
	require.ErrorIs(t, err, ErrAlreadyOpened)
}

func TestGenerateCertBelowQuorumFails(t *testing.T) {
	lookup := newFakeLookup()
	a := genKey(t)
	aID := lookup.add(a)

	blk := New(aID, 1, nil, nil)
	require.NoError(t, blk.GenerateOpeningSig(a))

	selfAck, err := blk.GenerateAck(a)
	require.NoError(t, err)
	require.NoError(t, blk.AddAck(*selfAck))

	err = blk.GenerateCert(a, lookup, 2)
	require.ErrorIs(t, err, ErrInsufficientAcks)
}
