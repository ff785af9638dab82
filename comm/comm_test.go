package comm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"

	"github.com/luxfi/modality/block"
)

type stubNode struct {
	id       ids.NodeID
	drafts   []*block.Block
	acks     []*block.Ack
	certs    []*block.Block
	draftErr error
	certErr  error
}

func (s *stubNode) NodeID() ids.NodeID { return s.id }

func (s *stubNode) OnReceiveDraft(_ context.Context, blk *block.Block) error {
	if s.draftErr != nil {
		return s.draftErr
	}
	s.drafts = append(s.drafts, blk)
	return nil
}

func (s *stubNode) OnReceiveAck(_ context.Context, ack *block.Ack) error {
	s.acks = append(s.acks, ack)
	return nil
}

func (s *stubNode) OnReceiveLateAck(_ context.Context, ack *block.Ack) error {
	s.acks = append(s.acks, ack)
	return nil
}

func (s *stubNode) OnReceiveCertified(_ context.Context, blk *block.Block) error {
	if s.certErr != nil {
		return s.certErr
	}
	s.certs = append(s.certs, blk)
	return nil
}

func (s *stubNode) OnFetchCertified(_ context.Context, _ ids.NodeID, _ uint64) (*block.Block, error) {
	if len(s.certs) == 0 {
		return nil, nil
	}
	return s.certs[0], nil
}

func nodeID(t *testing.T, b byte) ids.NodeID {
	t.Helper()
	var raw [20]byte
	raw[0] = b
	id, err := ids.ToNodeID(raw[:])
	require.NoError(t, err)
	return id
}

func TestInProcessBroadcastDraftDeliversToAll(t *testing.T) {
	port := NewInProcess(nil)
	a := &stubNode{id: nodeID(t, 1)}
	b := &stubNode{id: nodeID(t, 2)}
	c := &stubNode{id: nodeID(t, 3)}
	port.Register(a)
	port.Register(b)
	port.Register(c)

	blk := block.New(a.id, 1, nil, nil)
	err := port.BroadcastDraft(context.Background(), a.id, blk, []ids.NodeID{a.id, b.id, c.id})
	require.NoError(t, err)

	require.Len(t, a.drafts, 1)
	require.Len(t, b.drafts, 1)
	require.Len(t, c.drafts, 1)
}

func TestInProcessOfflinePeerDropsDelivery(t *testing.T) {
	port := NewInProcess(nil)
	a := &stubNode{id: nodeID(t, 1)}
	b := &stubNode{id: nodeID(t, 2)}
	port.Register(a)
	port.Register(b)
	port.SetOffline(b.id, true)

	blk := block.New(a.id, 1, nil, nil)
	err := port.BroadcastDraft(context.Background(), a.id, blk, []ids.NodeID{b.id})
	require.NoError(t, err)
	require.Empty(t, b.drafts)
}

func TestInProcessBroadcastDraftSkipsFailingPeerButDeliversRest(t *testing.T) {
	port := NewInProcess(nil)
	a := &stubNode{id: nodeID(t, 1)}
	b := &stubNode{id: nodeID(t, 2), draftErr: errors.New("busy")}
	c := &stubNode{id: nodeID(t, 3)}
	port.Register(a)
	port.Register(b)
	port.Register(c)

	blk := block.New(a.id, 1, nil, nil)
	err := port.BroadcastDraft(context.Background(), a.id, blk, []ids.NodeID{b.id, c.id})
	require.NoError(t, err)

	require.Empty(t, b.drafts)
	require.Len(t, c.drafts, 1)
}

func TestInProcessBroadcastCertifiedSkipsFailingPeerButDeliversRest(t *testing.T) {
	port := NewInProcess(nil)
	a := &stubNode{id: nodeID(t, 1)}
	b := &stubNode{id: nodeID(t, 2), certErr: errors.New("stopped")}
	c := &stubNode{id: nodeID(t, 3)}
	port.Register(a)
	port.Register(b)
	port.Register(c)

	blk := block.New(a.id, 1, nil, nil)
	err := port.BroadcastCertified(context.Background(), a.id, blk, []ids.NodeID{b.id, c.id})
	require.NoError(t, err)

	require.Empty(t, b.certs)
	require.Len(t, c.certs, 1)
}

func TestInProcessSendAckUnicasts(t *testing.T) {
	port := NewInProcess(nil)
	a := &stubNode{id: nodeID(t, 1)}
	b := &stubNode{id: nodeID(t, 2)}
	port.Register(a)
	port.Register(b)

	ack := &block.Ack{PeerID: a.id, RoundID: 1, Acker: b.id}
	require.NoError(t, port.SendAck(context.Background(), b.id, a.id, ack))
	require.Len(t, a.acks, 1)
	require.Empty(t, b.acks)
}
