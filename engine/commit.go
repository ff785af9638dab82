package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/luxfi/ids"

	"github.com/luxfi/modality/block"
	"github.com/luxfi/modality/datastore"
)

// CommitEntry is one linearized, committed DAG vertex delivered to the
// application through CommitStream, in commit order.
type CommitEntry struct {
	Round  uint64
	PeerID ids.NodeID
	Events [][]byte
	// Anchor reports whether this vertex is the anchor that triggered the
	// commit, the last entry emitted for its round.
	Anchor bool
}

func vertexID(round uint64, peer ids.NodeID) string {
	return fmt.Sprintf("%d/%s", round, peer)
}

// evaluateAnchorCommits resolves every anchor round made decidable by round
// just having reached quorum, in strictly increasing order: the "simplest
// realization" of the commit rule is only safe to apply once, per round,
// and never out of order.
func (r *Runner) evaluateAnchorCommits(round uint64) {
	if round < r.cfg.CommitEvaluationLag {
		return
	}
	decidable := round - r.cfg.CommitEvaluationLag
	for next := r.commitCursor + 1; next <= decidable; next++ {
		r.evaluateAnchorCommit(next)
	}
}

// evaluateAnchorCommit decides round's anchor: committed if at least
// quorum(round+1) blocks in round+1 cite it in prev_round_certs, skipped
// otherwise. Either way commitCursor advances; an anchor round is decided
// exactly once.
func (r *Runner) evaluateAnchorCommit(round uint64) {
	r.commitCursor = round

	anchorID, err := r.oracle.Anchor(round)
	if err != nil {
		r.log.Warn("anchor resolution failed", "round", round, "err", err)
		r.metrics.anchorsSkipped.Inc()
		return
	}

	quorum, err := r.oracle.Quorum(round + 1)
	if err != nil {
		r.log.Warn("quorum resolution failed", "round", round+1, "err", err)
		r.metrics.anchorsSkipped.Inc()
		return
	}

	citing, err := r.countCitations(round+1, anchorID)
	if err != nil {
		r.log.Warn("citation scan failed", "round", round+1, "err", err)
		r.metrics.anchorsSkipped.Inc()
		return
	}
	if citing < quorum {
		r.metrics.anchorsSkipped.Inc()
		return
	}

	anchorBlk, err := r.fetchAnchor(round, anchorID)
	if err != nil || anchorBlk == nil {
		r.log.Warn("anchor unavailable after retries, skipping", "round", round, "anchor", anchorID)
		r.metrics.anchorsSkipped.Inc()
		return
	}

	if err := r.commitAnchor(anchorBlk); err != nil {
		r.log.Warn("commit linearization failed", "round", round, "err", err)
		return
	}
	r.metrics.anchorsCommitted.Inc()
}

// countCitations counts the blocks persisted for round whose
// prev_round_certs names anchorID.
func (r *Runner) countCitations(round uint64, anchorID ids.NodeID) (int, error) {
	it, err := r.store.NewIterator(blockRoundPrefix(round))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", datastore.ErrStorage, err)
	}
	defer it.Close()

	key := anchorID.String()
	count := 0
	for it.Next() {
		blk, err := decodeBlock(it.Value())
		if err != nil {
			continue
		}
		if _, ok := blk.PrevRoundCerts[key]; ok {
			count++
		}
	}
	if err := it.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", datastore.ErrStorage, err)
	}
	return count, nil
}

// fetchAnchor resolves the anchor's certified block: locally if already
// durable, otherwise over the port with exponential backoff across the
// rest of the committee, bounded by cfg.FetchRetryMax. Returns (nil, nil)
// once retries are exhausted, the explicit-optional-empty outcome that
// tells the caller to skip this anchor rather than block forever.
func (r *Runner) fetchAnchor(round uint64, anchorID ids.NodeID) (*block.Block, error) {
	local, err := loadBlock(r.store, round, anchorID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", datastore.ErrStorage, err)
	}
	if local != nil {
		return local, nil
	}

	committee, err := r.oracle.Scribes(round)
	if err != nil {
		return nil, err
	}
	peers := otherPeers(committee, r.nodeID)

	backoff := r.cfg.FetchTimeout
	for attempt := 0; attempt < r.cfg.FetchRetryMax; attempt++ {
		for _, peer := range peers {
			ctx, cancel := context.WithTimeout(context.Background(), r.cfg.FetchTimeout)
			blk, err := r.port.FetchCertified(ctx, r.nodeID, peer, anchorID, round)
			cancel()
			if err != nil {
				continue
			}
			if blk != nil {
				if err := storeBlock(r.store, blk); err != nil {
					return nil, fmt.Errorf("%w: %w", datastore.ErrStorage, err)
				}
				return blk, nil
			}
		}
		if attempt < r.cfg.FetchRetryMax-1 {
			time.Sleep(backoff)
			backoff *= 2
			if backoff > r.cfg.FetchBackoffCap {
				backoff = r.cfg.FetchBackoffCap
			}
		}
	}
	return nil, nil
}

// commitAnchor walks anchorBlk's prev_round_certs ancestry back to already
// committed vertices, linearizes the newly reachable set (round ascending,
// peer lexicographic ascending within a round, the anchor's own vertex
// ordered last within its round), and emits each as a CommitEntry.
func (r *Runner) commitAnchor(anchorBlk *block.Block) error {
	visited := make(map[string]*block.Block)
	var order []string

	var walk func(blk *block.Block) error
	walk = func(blk *block.Block) error {
		id := vertexID(blk.RoundID, blk.PeerID)
		if r.committedVertices.Contains(id) {
			return nil
		}
		if _, ok := visited[id]; ok {
			return nil
		}
		visited[id] = blk

		for _, peerKey := range blk.SortedPrevCertPeers() {
			ref := blk.PrevRoundCerts[peerKey]
			ancestor, err := loadBlock(r.store, ref.RoundID, ref.PeerID)
			if err != nil {
				return fmt.Errorf("%w: %w", datastore.ErrStorage, err)
			}
			if ancestor == nil {
				continue
			}
			if err := walk(ancestor); err != nil {
				return err
			}
		}
		order = append(order, id)
		return nil
	}
	if err := walk(anchorBlk); err != nil {
		return err
	}

	anchorIDKey := vertexID(anchorBlk.RoundID, anchorBlk.PeerID)
	sort.Slice(order, func(i, j int) bool {
		a, b := visited[order[i]], visited[order[j]]
		if a.RoundID != b.RoundID {
			return a.RoundID < b.RoundID
		}
		aIsAnchor := order[i] == anchorIDKey
		bIsAnchor := order[j] == anchorIDKey
		if aIsAnchor != bIsAnchor {
			return bIsAnchor
		}
		return a.PeerID.String() < b.PeerID.String()
	})

	for _, id := range order {
		blk := visited[id]
		r.committedVertices.Add(id)
		entry := CommitEntry{
			Round:  blk.RoundID,
			PeerID: blk.PeerID,
			Events: blk.Events,
			Anchor: id == anchorIDKey,
		}
		select {
		case r.commitCh <- entry:
		default:
			r.log.Warn("commit stream full, dropping entry", "round", entry.Round, "peer", entry.PeerID)
		}
	}
	return nil
}
