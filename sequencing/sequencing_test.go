package sequencing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/modality/crypto/signer"
	"github.com/luxfi/modality/validators"
)

func committee(t *testing.T, n int) *validators.Set {
	t.Helper()
	vs := make([]validators.Validator, n)
	for i := 0; i < n; i++ {
		kp, err := signer.Generate()
		require.NoError(t, err)
		nodeID, err := kp.NodeID()
		require.NoError(t, err)
		vs[i] = validators.Validator{NodeID: nodeID, PublicKey: kp.PublicKey()}
	}
	set, err := validators.NewSet(vs)
	require.NoError(t, err)
	return set
}

func TestQuorumFormula(t *testing.T) {
	require.Equal(t, 3, Quorum(4))
	require.Equal(t, 3, Quorum(3))
	require.Equal(t, 5, Quorum(6))
}

func TestStaticOracleIsDeterministic(t *testing.T) {
	set := committee(t, 4)
	o := NewStatic(set)

	q, err := o.Quorum(1)
	require.NoError(t, err)
	require.Equal(t, 3, q)

	a1, err := o.Anchor(1)
	require.NoError(t, err)
	a2, err := o.Anchor(1)
	require.NoError(t, err)
	require.Equal(t, a1, a2)

	a5, err := o.Anchor(5)
	require.NoError(t, err)
	require.Equal(t, set.At(5%set.Len()).NodeID, a5)
}

func TestStaticOracleMembership(t *testing.T) {
	set := committee(t, 3)
	o := NewStatic(set)

	for _, v := range set.List() {
		member, err := o.IsMember(1, v.NodeID)
		require.NoError(t, err)
		require.True(t, member)
	}
}
