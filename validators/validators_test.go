package validators

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"

	"github.com/luxfi/modality/crypto/signer"
)

func testValidator(t *testing.T, seed byte) Validator {
	t.Helper()
	kp, err := signer.Generate()
	require.NoError(t, err)
	nodeID, err := kp.NodeID()
	require.NoError(t, err)
	return Validator{NodeID: nodeID, PublicKey: kp.PublicKey()}
}

func TestSetOrderingIsDeterministic(t *testing.T) {
	a := testValidator(t, 1)
	b := testValidator(t, 2)
	c := testValidator(t, 3)

	s1, err := NewSet([]Validator{a, b, c})
	require.NoError(t, err)
	s2, err := NewSet([]Validator{c, a, b})
	require.NoError(t, err)

	require.Equal(t, s1.List(), s2.List())
	require.Equal(t, 3, s1.Len())
}

func TestSetContainsAndGet(t *testing.T) {
	a := testValidator(t, 1)
	b := testValidator(t, 2)
	s, err := NewSet([]Validator{a, b})
	require.NoError(t, err)

	require.True(t, s.Contains(a.NodeID))
	v, err := s.Get(a.NodeID)
	require.NoError(t, err)
	require.Equal(t, a, v)

	_, err = s.Get(ids.NodeID{0xff})
	require.ErrorIs(t, err, ErrUnknownValidator)
}

func TestStaticManager(t *testing.T) {
	a := testValidator(t, 1)
	set, err := NewSet([]Validator{a})
	require.NoError(t, err)
	m := NewStaticManager(set)

	got, err := m.Committee(7)
	require.NoError(t, err)
	require.Same(t, set, got)
}
