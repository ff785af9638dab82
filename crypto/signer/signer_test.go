package signer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	msg := []byte("block draft payload")
	sig, err := kp.Sign(msg)
	require.NoError(t, err)

	require.NoError(t, Verify(kp.PublicKey(), msg, sig))
}

func TestVerifyRejectsWrongMessage(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	sig, err := kp.Sign([]byte("original"))
	require.NoError(t, err)

	err = Verify(kp.PublicKey(), []byte("tampered"), sig)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	kp1, err := Generate()
	require.NoError(t, err)
	kp2, err := Generate()
	require.NoError(t, err)

	msg := []byte("block draft payload")
	sig, err := kp1.Sign(msg)
	require.NoError(t, err)

	err = Verify(kp2.PublicKey(), msg, sig)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestFromSeedIsDeterministic(t *testing.T) {
	seed, err := RandomSeed()
	require.NoError(t, err)

	kp1, err := FromSeed(seed)
	require.NoError(t, err)
	kp2, err := FromSeed(seed)
	require.NoError(t, err)

	require.Equal(t, kp1.PublicKey(), kp2.PublicKey())

	id1, err := kp1.NodeID()
	require.NoError(t, err)
	id2, err := kp2.NodeID()
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}
