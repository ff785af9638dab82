// Package comm defines the four-verb communication port the runner sends
// and receives consensus messages through, and an in-process
// implementation used by tests and the devnet.
package comm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gethlog "github.com/luxfi/log"

	"github.com/luxfi/ids"

	"github.com/luxfi/modality/block"
	nolog "github.com/luxfi/modality/log"
)

// ErrTransport wraps a transport-layer failure. The runner retries on this
// with backoff; it never tears down the round because of it.
var ErrTransport = errors.New("comm: transport error")

// Node is the inbound side a Port implementation delivers to: one per
// local validator, or a remote stub forwarding over the wire.
type Node interface {
	NodeID() ids.NodeID
	OnReceiveDraft(ctx context.Context, blk *block.Block) error
	OnReceiveAck(ctx context.Context, ack *block.Ack) error
	OnReceiveLateAck(ctx context.Context, ack *block.Ack) error
	OnReceiveCertified(ctx context.Context, blk *block.Block) error
	OnFetchCertified(ctx context.Context, proposer ids.NodeID, round uint64) (*block.Block, error)
}

// Port is the transport-agnostic contract the runner depends on. Delivery
// is best-effort, unordered, and duplicate-tolerant; callers must make
// every verb safe to cancel mid-flight with no half-delivery.
type Port interface {
	BroadcastDraft(ctx context.Context, from ids.NodeID, blk *block.Block, to []ids.NodeID) error
	SendAck(ctx context.Context, from, to ids.NodeID, ack *block.Ack) error
	BroadcastCertified(ctx context.Context, from ids.NodeID, blk *block.Block, to []ids.NodeID) error
	FetchCertified(ctx context.Context, from, to ids.NodeID, proposer ids.NodeID, round uint64) (*block.Block, error)
}

// InProcess delivers messages by calling directly into registered Nodes'
// handlers, the same-process transport used by tests and the devnet
// command. Offline peers are dropped silently, modeling best-effort
// delivery without a real network.
type InProcess struct {
	mu      sync.RWMutex
	nodes   map[ids.NodeID]Node
	offline map[ids.NodeID]bool
	log     gethlog.Logger
}

// NewInProcess returns an empty InProcess port; Register nodes before use.
// logger may be nil, in which case delivery failures are logged nowhere
// (a no-op logger is used).
func NewInProcess(logger gethlog.Logger) *InProcess {
	if logger == nil {
		logger = nolog.NewNoOpLogger()
	}
	return &InProcess{
		nodes:   make(map[ids.NodeID]Node),
		offline: make(map[ids.NodeID]bool),
		log:     logger,
	}
}

// Register adds a node that can send and receive through this port.
func (p *InProcess) Register(n Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes[n.NodeID()] = n
}

// SetOffline simulates a network partition: messages to/from peer are
// dropped until SetOffline(peer, false).
func (p *InProcess) SetOffline(peer ids.NodeID, offline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if offline {
		p.offline[peer] = true
	} else {
		delete(p.offline, peer)
	}
}

func (p *InProcess) isOffline(id ids.NodeID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.offline[id]
}

func (p *InProcess) node(id ids.NodeID) (Node, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.nodes[id]
	return n, ok
}

// BroadcastDraft delivers blk to every reachable peer in to independently:
// one peer's handler error (a slow or stopped validator returning
// ErrCancelled/ErrStopped, say) is logged and does not stop delivery to the
// peers ordered after it, matching spec.md's per-recipient "may drop"
// delivery semantics. Only ctx cancellation aborts the whole call.
func (p *InProcess) BroadcastDraft(ctx context.Context, from ids.NodeID, blk *block.Block, to []ids.NodeID) error {
	if p.isOffline(from) {
		return nil
	}
	for _, peer := range to {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}
		if p.isOffline(peer) {
			continue
		}
		n, ok := p.node(peer)
		if !ok {
			continue
		}
		if err := n.OnReceiveDraft(ctx, blk); err != nil {
			p.log.Warn("deliver draft failed", "peer", peer, "round", blk.RoundID, "err", err)
		}
	}
	return nil
}

func (p *InProcess) SendAck(ctx context.Context, from, to ids.NodeID, ack *block.Ack) error {
	if p.isOffline(from) || p.isOffline(to) {
		return nil
	}
	n, ok := p.node(to)
	if !ok {
		return nil
	}
	if err := n.OnReceiveAck(ctx, ack); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// BroadcastCertified mirrors BroadcastDraft's per-recipient independence:
// a single peer's delivery error is logged and skipped, never aborting
// delivery to the remaining peers in to.
func (p *InProcess) BroadcastCertified(ctx context.Context, from ids.NodeID, blk *block.Block, to []ids.NodeID) error {
	if p.isOffline(from) {
		return nil
	}
	for _, peer := range to {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}
		if p.isOffline(peer) {
			continue
		}
		n, ok := p.node(peer)
		if !ok {
			continue
		}
		if err := n.OnReceiveCertified(ctx, blk); err != nil {
			p.log.Warn("deliver certified block failed", "peer", peer, "round", blk.RoundID, "err", err)
		}
	}
	return nil
}

func (p *InProcess) FetchCertified(ctx context.Context, from, to ids.NodeID, proposer ids.NodeID, round uint64) (*block.Block, error) {
	if p.isOffline(from) || p.isOffline(to) {
		return nil, nil
	}
	n, ok := p.node(to)
	if !ok {
		return nil, nil
	}
	blk, err := n.OnFetchCertified(ctx, proposer, round)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return blk, nil
}
