package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRoundAdvancesWithQuorumDespiteOfflineNode mirrors the
// round-advancement-requires-quorum scenario: with one of four validators
// offline, the remaining three still reach quorum (3 of 4) every round and
// keep advancing.
func TestRoundAdvancesWithQuorumDespiteOfflineNode(t *testing.T) {
	d := newDevnet(t, 4)
	d.setOffline(d.ids[3])

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.startAll(ctx)
	defer d.stopAll()

	require.True(t, d.awaitRound(3, 5*time.Second), "online validators should keep advancing rounds despite one offline peer")

	for i := 0; i < 3; i++ {
		require.GreaterOrEqual(t, d.runners[i].CurrentRound(), uint64(3))
	}
}

// TestRoundDoesNotAdvanceBelowQuorum: with two of four validators offline,
// the two remaining can never gather quorum (3) acks for their own drafts,
// so no certificate is ever produced and r_curr stays at round 1.
func TestRoundDoesNotAdvanceBelowQuorum(t *testing.T) {
	d := newDevnet(t, 4)
	d.setOffline(d.ids[2])
	d.setOffline(d.ids[3])

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.startAll(ctx)
	defer d.stopAll()

	require.False(t, d.awaitRound(2, 500*time.Millisecond), "round must not advance without quorum certified blocks")
	for i := 0; i < 2; i++ {
		require.Equal(t, uint64(1), d.runners[i].CurrentRound())
	}
}

// TestDeterministicCommitOrdering mirrors the deterministic-commit-ordering
// scenario on one validator: the first few entries of runner 0's
// CommitStream are non-decreasing in round and include at least one anchor
// vertex.
func TestDeterministicCommitOrdering(t *testing.T) {
	d := newDevnet(t, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.startAll(ctx)
	defer d.stopAll()

	require.True(t, d.awaitRound(6, 5*time.Second))

	r := d.runners[0]
	deadline := time.After(2 * time.Second)
	var entries []CommitEntry
collect:
	for len(entries) < 4 {
		select {
		case e := <-r.CommitStream():
			entries = append(entries, e)
		case <-deadline:
			break collect
		}
	}
	require.NotEmpty(t, entries)

	var lastRound uint64
	roundHasAnchor := make(map[uint64]bool)
	for _, e := range entries {
		require.GreaterOrEqual(t, e.Round, lastRound)
		if e.Round > lastRound {
			lastRound = e.Round
		}
		if e.Anchor {
			roundHasAnchor[e.Round] = true
		}
	}
	require.NotEmpty(t, roundHasAnchor)
}

// collectCommits drains up to n entries from r's CommitStream, giving up
// once timeout elapses with however many it has gathered.
func collectCommits(t *testing.T, r *Runner, n int, timeout time.Duration) []CommitEntry {
	t.Helper()
	deadline := time.After(timeout)
	var entries []CommitEntry
	for len(entries) < n {
		select {
		case e := <-r.CommitStream():
			entries = append(entries, e)
		case <-deadline:
			return entries
		}
	}
	return entries
}

// TestDeterministicCommitOrderingAcrossValidators mirrors spec.md §8 seed
// scenario 5: two honest validators, each observing the DAG's edges in
// whatever order broadcasts happen to race in under this harness's
// concurrent delivery goroutines, must still commit byte-identical
// linearizations.
func TestDeterministicCommitOrderingAcrossValidators(t *testing.T) {
	d := newDevnet(t, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.startAll(ctx)
	defer d.stopAll()

	require.True(t, d.awaitRound(6, 5*time.Second))

	const want = 4
	entriesA := collectCommits(t, d.runners[0], want, 2*time.Second)
	entriesB := collectCommits(t, d.runners[1], want, 2*time.Second)
	require.NotEmpty(t, entriesA)
	require.Equal(t, entriesA, entriesB,
		"two honest validators must linearize identical commit entries despite observing DAG edges in different orders")
}
