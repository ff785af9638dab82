package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"

	"github.com/luxfi/modality/block"
	"github.com/luxfi/modality/crypto/signer"
	"github.com/luxfi/modality/datastore/memstore"
)

func testPeer(t *testing.T) (ids.NodeID, *signer.KeyPair) {
	t.Helper()
	kp, err := signer.Generate()
	require.NoError(t, err)
	id, err := kp.NodeID()
	require.NoError(t, err)
	return id, kp
}

func TestStoreBlockNeverWritesBlockHeaders(t *testing.T) {
	store := memstore.New()
	peer, kp := testPeer(t)
	blk := block.New(peer, 1, nil, nil)
	require.NoError(t, blk.GenerateOpeningSig(kp))
	require.NoError(t, storeBlock(store, blk))

	it, err := store.NewIterator([]byte("/block_headers/"))
	require.NoError(t, err)
	defer it.Close()
	require.False(t, it.Next(), "storeBlock must never write a /block_headers/... key directly")
}

func TestLoadHeaderDerivesFromStoredBlock(t *testing.T) {
	store := memstore.New()
	peer, kp := testPeer(t)
	blk := block.New(peer, 1, nil, nil)
	require.NoError(t, blk.GenerateOpeningSig(kp))
	require.NoError(t, storeBlock(store, blk))

	h, err := loadHeader(store, 1, peer)
	require.NoError(t, err)
	require.NotNil(t, h)
	require.Equal(t, blk.Header(), *h)

	missing, err := loadHeader(store, 1, ids.NodeID{0xff})
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestHeadersInRoundDerivesEveryPeer(t *testing.T) {
	store := memstore.New()
	round := uint64(1)

	peerA, kpA := testPeer(t)
	blkA := block.New(peerA, round, nil, nil)
	require.NoError(t, blkA.GenerateOpeningSig(kpA))
	require.NoError(t, storeBlock(store, blkA))

	peerB, kpB := testPeer(t)
	blkB := block.New(peerB, round, nil, nil)
	require.NoError(t, blkB.GenerateOpeningSig(kpB))
	require.NoError(t, storeBlock(store, blkB))

	headers, err := headersInRound(store, round)
	require.NoError(t, err)
	require.Len(t, headers, 2)
	require.Equal(t, blkA.Header(), *headers[peerA])
	require.Equal(t, blkB.Header(), *headers[peerB])

	empty, err := headersInRound(store, round+1)
	require.NoError(t, err)
	require.Empty(t, empty)
}
