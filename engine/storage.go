package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/modality/block"
	"github.com/luxfi/modality/codec"
	"github.com/luxfi/modality/datastore"
)

// RoundRecord is the persisted snapshot of a round's committee, quorum
// threshold, and anchor: /consensus/round/{round_id}. Committee and
// threshold are fixed for the round once written.
type RoundRecord struct {
	RoundID   uint64       `json:"round_id"`
	Committee []ids.NodeID `json:"committee"`
	Quorum    int          `json:"quorum"`
	Anchor    ids.NodeID   `json:"anchor"`
}

func putCanonical(store datastore.Store, key []byte, v interface{}) error {
	data, err := codec.Canonical(v)
	if err != nil {
		return fmt.Errorf("engine: canonicalize: %w", err)
	}
	return store.Put(key, data)
}

func storeBlock(store datastore.Store, blk *block.Block) error {
	return putCanonical(store, blockKey(blk.RoundID, blk.PeerID), blk)
}

// loadHeader derives the compact header view for (round, peer) on demand
// from the full persisted block, rather than reading back a separately
// stored /block_headers/... value: this module never writes that key
// directly, following the header-derivability resolution in DESIGN.md.
// Returns (nil, nil) if the block is absent, mirroring loadBlock.
func loadHeader(store datastore.Store, round uint64, peer ids.NodeID) (*block.Header, error) {
	blk, err := loadBlock(store, round, peer)
	if err != nil {
		return nil, err
	}
	if blk == nil {
		return nil, nil
	}
	h := blk.Header()
	return &h, nil
}

// headersInRound derives every peer's header view for round in one pass,
// mirroring the original implementation's
// BlockHeader::create_from_datastore (collect every block persisted for
// the round and derive each peer's header), keyed by peer ID.
func headersInRound(store datastore.Store, round uint64) (map[ids.NodeID]*block.Header, error) {
	it, err := store.NewIterator(blockRoundPrefix(round))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", datastore.ErrStorage, err)
	}
	defer it.Close()

	headers := make(map[ids.NodeID]*block.Header)
	for it.Next() {
		blk, err := decodeBlock(it.Value())
		if err != nil {
			continue
		}
		h := blk.Header()
		headers[blk.PeerID] = &h
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", datastore.ErrStorage, err)
	}
	return headers, nil
}

// loadBlock reads the full block persisted for (round, peer). Returns
// (nil, nil) if absent, mirroring the explicit optional-empty response the
// spec requires for fetch misses.
func loadBlock(store datastore.Store, round uint64, peer ids.NodeID) (*block.Block, error) {
	data, err := store.Get(blockKey(round, peer))
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var blk block.Block
	if err := json.Unmarshal(data, &blk); err != nil {
		return nil, fmt.Errorf("engine: decode block: %w", err)
	}
	return &blk, nil
}

func storeRoundRecord(store datastore.Store, rec RoundRecord) error {
	return putCanonical(store, roundRecordKey(rec.RoundID), rec)
}

func storeAck(store datastore.Store, ack *block.Ack, msgType string) error {
	return putCanonical(store, messageKey(ack.RoundID, msgType, ack.Acker), ack)
}

// decodeBlock unmarshals a raw stored block value, used by iterator scans
// that cannot go through loadBlock's key construction.
func decodeBlock(data []byte) (*block.Block, error) {
	var blk block.Block
	if err := json.Unmarshal(data, &blk); err != nil {
		return nil, fmt.Errorf("engine: decode block: %w", err)
	}
	return &blk, nil
}
