// Package engine implements the Consensus Runner: the per-validator state
// machine that drives a round from prev-round certs through proposal, ack
// collection, and certification, elects and commits anchors, and exposes
// the inbound handlers the communication port delivers into.
package engine

import "errors"

// Sentinel errors for failure kinds the block, datastore, and comm packages
// do not already name. BadSignature, DuplicateAck, and InsufficientAcks
// live in package block; StorageError and NotFound live in package
// datastore; TransportError lives in package comm. The runner reuses those
// rather than redeclaring them.
var (
	// ErrNotCommitteeMember is returned when a message's sender or acker is
	// not a scribe of the round it claims.
	ErrNotCommitteeMember = errors.New("engine: not a committee member")
	// ErrWrongRound is returned when a message's round disagrees with the
	// runner's expectation.
	ErrWrongRound = errors.New("engine: wrong round")
	// ErrMissingPrevCerts is returned when a round would be proposed without
	// quorum certificates from the previous round.
	ErrMissingPrevCerts = errors.New("engine: missing prev-round quorum certificates")
	// ErrCancelled is returned when cooperative cancellation is observed.
	ErrCancelled = errors.New("engine: cancelled")
	// ErrStopped is returned by inbound handlers once the runner has been
	// stopped.
	ErrStopped = errors.New("engine: runner stopped")
)
