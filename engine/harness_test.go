package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"

	"github.com/luxfi/modality/comm"
	"github.com/luxfi/modality/config"
	"github.com/luxfi/modality/crypto/signer"
	"github.com/luxfi/modality/datastore/memstore"
	"github.com/luxfi/modality/sequencing"
	"github.com/luxfi/modality/validators"
)

// devnet wires N in-process runners sharing one comm.InProcess port, the
// harness every scenario test builds on.
type devnet struct {
	t       *testing.T
	port    *comm.InProcess
	oracle  sequencing.Oracle
	runners []*Runner
	ids     []ids.NodeID
	offline map[ids.NodeID]bool
}

func newDevnet(t *testing.T, n int) *devnet {
	t.Helper()

	var vs []validators.Validator
	var keys []*signer.KeyPair
	for i := 0; i < n; i++ {
		kp, err := signer.Generate()
		require.NoError(t, err)
		id, err := kp.NodeID()
		require.NoError(t, err)
		vs = append(vs, validators.Validator{NodeID: id, PublicKey: kp.PublicKey()})
		keys = append(keys, kp)
	}
	set, err := validators.NewSet(vs)
	require.NoError(t, err)
	oracle := sequencing.NewStatic(set)
	port := comm.NewInProcess(nil)

	d := &devnet{t: t, port: port, oracle: oracle, offline: make(map[ids.NodeID]bool)}
	for _, kp := range keys {
		id, err := kp.NodeID()
		require.NoError(t, err)
		r, err := NewRunner(id, kp, memstore.New(), port, oracle, config.LocalConfig, nil, nil)
		require.NoError(t, err)
		port.Register(r)
		d.runners = append(d.runners, r)
		d.ids = append(d.ids, id)
	}
	return d
}

func (d *devnet) startAll(ctx context.Context) {
	for _, r := range d.runners {
		require.NoError(d.t, r.Start(ctx))
	}
}

func (d *devnet) stopAll() {
	for _, r := range d.runners {
		r.Stop()
	}
}

// setOffline partitions id away through the shared port and excludes its
// runner from awaitRound, since a partitioned runner can never advance.
func (d *devnet) setOffline(id ids.NodeID) {
	d.port.SetOffline(id, true)
	d.offline[id] = true
}

// awaitRound blocks until every runner not taken offline with setOffline
// reports r_curr >= round or the deadline elapses.
func (d *devnet) awaitRound(round uint64, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		allThere := true
		for i, r := range d.runners {
			if d.offline[d.ids[i]] {
				continue
			}
			if r.CurrentRound() < round {
				allThere = false
				break
			}
		}
		if allThere {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
