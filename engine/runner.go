package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	gethlog "github.com/luxfi/log"

	"github.com/luxfi/ids"

	"github.com/luxfi/modality/block"
	"github.com/luxfi/modality/comm"
	"github.com/luxfi/modality/config"
	"github.com/luxfi/modality/crypto/signer"
	"github.com/luxfi/modality/datastore"
	nolog "github.com/luxfi/modality/log"
	"github.com/luxfi/modality/metrics"
	"github.com/luxfi/modality/sequencing"
	"github.com/luxfi/modality/utils/set"
)

// Runner is the per-validator state machine: it drives a round from
// prev-round certs through proposal, ack collection, and certification,
// elects and commits anchors, and implements comm.Node so a Port can
// deliver inbound messages into it.
//
// All mutable state below commitCh is owned by the single goroutine
// started by Start; every inbound handler and round-advancing action
// reaches it as a command on cmdCh rather than through a lock, per the
// actor/mailbox model: a mailbox, not a shared lock, serializes access.
// commitCursor/committedVertices are the exception: they belong to the
// separate anchorWorker goroutine (also started by Start), which is the
// only thing that ever touches them, so anchor-commit evaluation —
// including fetchAnchor's network round trips and retry backoff — never
// runs inside the mailbox's command closure and so never blocks draft/ack/
// certified-message processing.
type Runner struct {
	nodeID  ids.NodeID
	keyPair *signer.KeyPair
	store   datastore.Store
	port    comm.Port
	oracle  sequencing.Oracle
	cfg     config.Config
	log     gethlog.Logger
	metrics *runnerMetrics

	rCurr atomic.Uint64

	cmdCh    chan func()
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	commitCh chan CommitEntry

	// actor-owned state, touched only inside loop().
	pendingEvents [][]byte
	ownDrafts     map[uint64]*block.Block
	certRefs      map[uint64]map[ids.NodeID]block.CertRef

	// anchorWorker-owned state, touched only inside anchorWorker's goroutine.
	anchorCh          chan uint64
	commitCursor      uint64
	committedVertices set.Set[string]
}

// NewRunner constructs a Runner and restores r_curr from store. logger and
// reg may be nil; a no-op logger and a fresh metrics.Registry are used in
// that case.
func NewRunner(
	nodeID ids.NodeID,
	kp *signer.KeyPair,
	store datastore.Store,
	port comm.Port,
	oracle sequencing.Oracle,
	cfg config.Config,
	logger gethlog.Logger,
	reg metrics.Registry,
) (*Runner, error) {
	if logger == nil {
		logger = nolog.NewNoOpLogger()
	}
	current, err := store.CurrentRound()
	if err != nil {
		return nil, fmt.Errorf("%w: read current round: %w", datastore.ErrStorage, err)
	}

	r := &Runner{
		nodeID:            nodeID,
		keyPair:           kp,
		store:             store,
		port:              port,
		oracle:            oracle,
		cfg:               cfg,
		log:               logger,
		metrics:           newRunnerMetrics(reg),
		cmdCh:             make(chan func()),
		stopCh:            make(chan struct{}),
		commitCh:          make(chan CommitEntry, 256),
		ownDrafts:         make(map[uint64]*block.Block),
		certRefs:          make(map[uint64]map[ids.NodeID]block.CertRef),
		anchorCh:          make(chan uint64, 64),
		committedVertices: set.NewSet[string](0),
	}
	r.rCurr.Store(current)
	return r, nil
}

// NodeID returns the validator identity this Runner acts as.
func (r *Runner) NodeID() ids.NodeID { return r.nodeID }

// CurrentRound returns r_curr. Safe for concurrent use; reflects the last
// value the actor goroutine durably advanced to.
func (r *Runner) CurrentRound() uint64 { return r.rCurr.Load() }

// CommitStream exposes the linearized commit log to the external
// application. Entries are emitted in the order commitAnchor flattens them.
func (r *Runner) CommitStream() <-chan CommitEntry { return r.commitCh }

// SubmitEvent queues payload for inclusion in this validator's next
// proposed draft.
func (r *Runner) SubmitEvent(ctx context.Context, payload []byte) error {
	return r.do(ctx, func() error {
		r.pendingEvents = append(r.pendingEvents, payload)
		return nil
	})
}

// Start launches the actor goroutine and the anchor-commit worker, then
// resumes or begins round 1.
func (r *Runner) Start(ctx context.Context) error {
	r.wg.Add(2)
	go r.loop(ctx)
	go r.anchorWorker(ctx)
	return r.do(ctx, r.resumeOrPropose)
}

// Stop signals the actor and anchor-worker goroutines to exit and waits
// for both.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case cmd := <-r.cmdCh:
			cmd()
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		}
	}
}

// anchorWorker runs anchor-commit evaluation — including fetchAnchor's
// sequential fetch-and-backoff retries — on its own goroutine, independent
// of the mailbox loop() serializes draft/ack/certified processing through.
// A full anchorCh silently drops a trigger round rather than blocking
// recordCertified, which is safe: evaluateAnchorCommits always catches up
// every decidable round since commitCursor on its next run.
func (r *Runner) anchorWorker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case round := <-r.anchorCh:
			r.evaluateAnchorCommits(round)
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		}
	}
}

// do enqueues fn onto the actor's mailbox and waits for its result.
func (r *Runner) do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	select {
	case r.cmdCh <- func() { result <- fn() }:
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	case <-r.stopCh:
		return ErrStopped
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
}

// --- comm.Node ---

func (r *Runner) OnReceiveDraft(ctx context.Context, blk *block.Block) error {
	return r.do(ctx, func() error { return r.handleDraft(blk) })
}

func (r *Runner) OnReceiveAck(ctx context.Context, ack *block.Ack) error {
	return r.do(ctx, func() error { return r.handleAck(ack) })
}

func (r *Runner) OnReceiveLateAck(ctx context.Context, ack *block.Ack) error {
	return r.do(ctx, func() error { return r.handleLateAck(ack) })
}

func (r *Runner) OnReceiveCertified(ctx context.Context, blk *block.Block) error {
	return r.do(ctx, func() error { return r.handleCertified(blk) })
}

// OnFetchCertified answers from local storage directly; it touches no
// actor-owned state, so it bypasses the mailbox.
func (r *Runner) OnFetchCertified(_ context.Context, proposer ids.NodeID, round uint64) (*block.Block, error) {
	return loadBlock(r.store, round, proposer)
}

// --- S0/S1: resume-on-restart and propose ---

// resumeOrPropose implements current-round-counter recovery: if this
// validator's own draft for r_curr is already durable, it rejoins S2/S3/S4
// for that round; otherwise it proposes r_curr (or round 1 on a cold
// start), satisfying "r_curr equals the maximum round for which the
// validator persisted S1 completion."
func (r *Runner) resumeOrPropose() error {
	target := r.rCurr.Load()
	if target == 0 {
		target = 1
		if err := r.store.SetCurrentRound(target); err != nil {
			return fmt.Errorf("%w: %w", datastore.ErrStorage, err)
		}
		r.rCurr.Store(target)
	}

	existing, err := loadBlock(r.store, target, r.nodeID)
	if err != nil {
		return fmt.Errorf("%w: %w", datastore.ErrStorage, err)
	}
	if existing == nil {
		return r.proposeRound(target)
	}

	r.ownDrafts[target] = existing
	if len(existing.Cert) == 0 {
		return nil
	}
	return r.recordCertified(existing)
}

// rebuildCertRefs repopulates certRefs[round] from durable storage, the
// path a restarted validator uses to recover the certificates it needs to
// cite as prev_round_certs.
func (r *Runner) rebuildCertRefs(round uint64) error {
	if round == 0 || r.certRefs[round] != nil {
		return nil
	}
	it, err := r.store.NewIterator(blockRoundPrefix(round))
	if err != nil {
		return fmt.Errorf("%w: %w", datastore.ErrStorage, err)
	}
	defer it.Close()

	refs := make(map[ids.NodeID]block.CertRef)
	for it.Next() {
		blk, err := decodeBlock(it.Value())
		if err != nil {
			continue
		}
		if len(blk.Cert) == 0 {
			continue
		}
		refs[blk.PeerID] = block.CertRef{PeerID: blk.PeerID, RoundID: blk.RoundID, Cert: blk.Cert}
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("%w: %w", datastore.ErrStorage, err)
	}
	if len(refs) > 0 {
		r.certRefs[round] = refs
	}
	return nil
}

// proposeRound is S1: build a draft citing round-1's quorum certs, sign,
// persist, self-ack, and broadcast.
func (r *Runner) proposeRound(round uint64) error {
	var prevCerts map[string]block.CertRef
	if round > 1 {
		if err := r.rebuildCertRefs(round - 1); err != nil {
			return err
		}
		refs := r.certRefs[round-1]
		quorum, err := r.oracle.Quorum(round - 1)
		if err != nil {
			return err
		}
		if len(refs) < quorum {
			return fmt.Errorf("%w: round %d has %d, need %d", ErrMissingPrevCerts, round, len(refs), quorum)
		}
		prevCerts = make(map[string]block.CertRef, len(refs))
		for peer, ref := range refs {
			prevCerts[peer.String()] = ref
		}
	}

	events := r.pendingEvents
	r.pendingEvents = nil

	blk := block.New(r.nodeID, round, events, prevCerts)
	if err := blk.GenerateOpeningSig(r.keyPair); err != nil {
		return err
	}
	if err := storeBlock(r.store, blk); err != nil {
		return fmt.Errorf("%w: %w", datastore.ErrStorage, err)
	}
	r.ownDrafts[round] = blk

	selfAck, err := blk.GenerateAck(r.keyPair)
	if err != nil {
		return err
	}
	if err := blk.AddAck(*selfAck); err != nil {
		return err
	}

	committee, err := r.oracle.Scribes(round)
	if err != nil {
		return err
	}
	r.broadcastDraftAsync(blk, otherPeers(committee, r.nodeID))

	return r.tryCertify(round)
}

// tryCertify is S2→S3: certify once self plus observed acks reach quorum.
func (r *Runner) tryCertify(round uint64) error {
	blk, ok := r.ownDrafts[round]
	if !ok || len(blk.Cert) > 0 {
		return nil
	}

	committee, err := r.oracle.Scribes(round)
	if err != nil {
		return err
	}
	quorum, err := r.oracle.Quorum(round)
	if err != nil {
		return err
	}
	lookup := committeeLookup{committee}
	if blk.CountValidAcks(lookup) < quorum {
		return nil
	}

	if err := blk.GenerateCert(r.keyPair, lookup, quorum); err != nil {
		if errors.Is(err, block.ErrAlreadyCertified) {
			return nil
		}
		return err
	}
	if err := storeBlock(r.store, blk); err != nil {
		return fmt.Errorf("%w: %w", datastore.ErrStorage, err)
	}
	r.metrics.certsFormed.Inc()

	r.broadcastCertifiedAsync(blk, otherPeers(committee, r.nodeID))

	return r.recordCertified(blk)
}

// recordCertified accounts blk toward round advancement, advancing r_curr
// and proposing the next round exactly once quorum(round) distinct
// certified blocks are observed for round. Applies equally whether blk was
// just self-certified or received from a peer.
func (r *Runner) recordCertified(blk *block.Block) error {
	round := blk.RoundID
	if r.certRefs[round] == nil {
		r.certRefs[round] = make(map[ids.NodeID]block.CertRef)
	}
	r.certRefs[round][blk.PeerID] = block.CertRef{PeerID: blk.PeerID, RoundID: round, Cert: blk.Cert}

	quorum, err := r.oracle.Quorum(round)
	if err != nil {
		return err
	}
	if round != r.rCurr.Load() || len(r.certRefs[round]) < quorum {
		return nil
	}

	next := round + 1
	if err := r.store.SetCurrentRound(next); err != nil {
		return fmt.Errorf("%w: %w", datastore.ErrStorage, err)
	}
	r.rCurr.Store(next)
	r.metrics.roundsAdvanced.Inc()
	r.metrics.currentRound.Set(float64(next))

	select {
	case r.anchorCh <- round:
	default:
		r.log.Warn("anchor worker queue full, dropping trigger", "round", round)
	}

	return r.proposeRound(next)
}

// --- inbound handlers ---

func (r *Runner) handleDraft(blk *block.Block) error {
	round := blk.RoundID
	committee, err := r.oracle.Scribes(round)
	if err != nil {
		return err
	}

	proposer, perr := committee.Get(blk.PeerID)
	if perr != nil {
		r.log.Debug("drop draft: not committee member", "round", round, "peer", blk.PeerID)
		return nil
	}
	if err := blk.ValidateOpeningSig(proposer.PublicKey); err != nil {
		r.log.Debug("drop draft: bad opening signature", "round", round, "peer", blk.PeerID, "err", err)
		return nil
	}
	if round < r.rCurr.Load() {
		r.log.Debug("drop draft: stale round", "round", round, "r_curr", r.rCurr.Load())
		return nil
	}
	if !committee.Contains(r.nodeID) {
		return nil
	}

	ack, err := blk.GenerateAck(r.keyPair)
	if err != nil {
		return err
	}
	if err := storeAck(r.store, ack, messageTypeAck); err != nil {
		return fmt.Errorf("%w: %w", datastore.ErrStorage, err)
	}
	r.sendAckAsync(ack)
	return nil
}

func (r *Runner) handleAck(ack *block.Ack) error {
	if ack.PeerID != r.nodeID {
		return nil
	}
	blk, ok := r.ownDrafts[ack.RoundID]
	if !ok || len(blk.Cert) > 0 {
		return nil
	}

	committee, err := r.oracle.Scribes(ack.RoundID)
	if err != nil {
		return err
	}
	acker, perr := committee.Get(ack.Acker)
	if perr != nil {
		r.log.Debug("drop ack: not committee member", "acker", ack.Acker)
		return nil
	}
	if err := blk.VerifyInboundAck(*ack, acker.PublicKey); err != nil {
		r.log.Debug("drop ack: bad signature", "acker", ack.Acker, "err", err)
		return nil
	}
	if err := blk.AddAck(*ack); err != nil {
		if errors.Is(err, block.ErrDuplicateAck) {
			r.log.Debug("drop ack: conflicting duplicate", "acker", ack.Acker)
			return nil
		}
		return err
	}
	return r.tryCertify(ack.RoundID)
}

func (r *Runner) handleCertified(blk *block.Block) error {
	round := blk.RoundID
	committee, err := r.oracle.Scribes(round)
	if err != nil {
		return err
	}
	proposer, perr := committee.Get(blk.PeerID)
	if perr != nil {
		r.log.Debug("drop certified block: not committee member", "round", round, "peer", blk.PeerID)
		return nil
	}
	quorum, err := r.oracle.Quorum(round)
	if err != nil {
		return err
	}
	lookup := committeeLookup{committee}
	if err := blk.ValidateCert(proposer.PublicKey, lookup, quorum); err != nil {
		r.log.Debug("drop certified block: invalid cert", "round", round, "peer", blk.PeerID, "err", err)
		return nil
	}
	if err := storeBlock(r.store, blk); err != nil {
		return fmt.Errorf("%w: %w", datastore.ErrStorage, err)
	}
	return r.recordCertified(blk)
}

// handleLateAck never re-opens certification: it only accumulates the ack
// into the already-certified block's ack set for audit/reputation.
func (r *Runner) handleLateAck(ack *block.Ack) error {
	if err := storeAck(r.store, ack, messageTypeLateAck); err != nil {
		return fmt.Errorf("%w: %w", datastore.ErrStorage, err)
	}
	if ack.PeerID != r.nodeID {
		return nil
	}
	blk, err := loadBlock(r.store, ack.RoundID, r.nodeID)
	if err != nil {
		return fmt.Errorf("%w: %w", datastore.ErrStorage, err)
	}
	if blk == nil || len(blk.Cert) == 0 {
		return nil
	}
	if err := blk.AddAck(*ack); err != nil {
		return nil
	}
	return storeBlock(r.store, blk)
}

// --- async send helpers ---

func (r *Runner) broadcastDraftAsync(blk *block.Block, peers []ids.NodeID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.AckCollectionTimeout)
		defer cancel()
		if err := r.port.BroadcastDraft(ctx, r.nodeID, blk, peers); err != nil {
			r.log.Warn("broadcast draft failed", "round", blk.RoundID, "err", err)
		}
	}()
}

func (r *Runner) broadcastCertifiedAsync(blk *block.Block, peers []ids.NodeID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.AckCollectionTimeout)
		defer cancel()
		if err := r.port.BroadcastCertified(ctx, r.nodeID, blk, peers); err != nil {
			r.log.Warn("broadcast certified failed", "round", blk.RoundID, "err", err)
		}
	}()
}

func (r *Runner) sendAckAsync(ack *block.Ack) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.AckCollectionTimeout)
		defer cancel()
		if err := r.port.SendAck(ctx, r.nodeID, ack.PeerID, ack); err != nil {
			r.log.Warn("send ack failed", "round", ack.RoundID, "proposer", ack.PeerID, "err", err)
		}
	}()
}
