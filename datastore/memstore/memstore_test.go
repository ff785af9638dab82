package memstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/modality/datastore"
)

func TestGetPutDelete(t *testing.T) {
	s := New()

	_, err := s.Get([]byte("/a"))
	require.ErrorIs(t, err, datastore.ErrNotFound)

	require.NoError(t, s.Put([]byte("/a"), []byte("1")))
	v, err := s.Get([]byte("/a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	has, err := s.Has([]byte("/a"))
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, s.Delete([]byte("/a")))
	_, err = s.Get([]byte("/a"))
	require.ErrorIs(t, err, datastore.ErrNotFound)
}

func TestIteratorPrefixRange(t *testing.T) {
	s := New()
	require.NoError(t, s.Put([]byte("/blocks/round/1/peer/a"), []byte("a")))
	require.NoError(t, s.Put([]byte("/blocks/round/1/peer/b"), []byte("b")))
	require.NoError(t, s.Put([]byte("/blocks/round/2/peer/a"), []byte("wrong-round")))
	require.NoError(t, s.Put([]byte("/other"), []byte("wrong-prefix")))

	it, err := s.NewIterator([]byte("/blocks/round/1/"))
	require.NoError(t, err)
	defer it.Close()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{
		"/blocks/round/1/peer/a",
		"/blocks/round/1/peer/b",
	}, keys)
}

func TestCurrentRoundBump(t *testing.T) {
	s := New()

	r, err := s.CurrentRound()
	require.NoError(t, err)
	require.Equal(t, uint64(0), r)

	next, err := s.BumpCurrentRound()
	require.NoError(t, err)
	require.Equal(t, uint64(1), next)

	require.NoError(t, s.SetCurrentRound(41))
	next, err = s.BumpCurrentRound()
	require.NoError(t, err)
	require.Equal(t, uint64(42), next)
}

func TestFindMaxIntKey(t *testing.T) {
	s := New()
	prefix := []byte("/rounds/")
	require.NoError(t, s.Put([]byte("/rounds/3"), []byte{}))
	require.NoError(t, s.Put([]byte("/rounds/10"), []byte{}))
	require.NoError(t, s.Put([]byte("/rounds/7"), []byte{}))

	max, found, err := s.FindMaxIntKey(prefix)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(10), max)

	_, found, err = s.FindMaxIntKey([]byte("/nothing/"))
	require.NoError(t, err)
	require.False(t, found)
}
