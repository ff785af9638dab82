// Package datastore provides the narrow key/value contract the rest of the
// core depends on: individual key access, prefix-ordered iteration, and a
// durable current-round counter. The engine never assumes more than this,
// so any embedded KV with ordered iteration can back it.
package datastore

import (
	"errors"
	"fmt"
)

// ErrStorage wraps an opaque storage failure. The core treats every such
// error as fatal for the affected request and expects retry at a higher
// layer, never inspecting the underlying cause.
var ErrStorage = errors.New("datastore: storage error")

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("datastore: not found")

// KV is a single key/value pair yielded by an Iterator, in lexicographic
// key order.
type KV struct {
	Key   []byte
	Value []byte
}

// Iterator walks a half-open lexicographic key range. Callers must call
// Close when done; a non-nil Err after Next returns false indicates the
// scan stopped early on a storage error rather than exhaustion.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// Store is the durable key/value contract. All operations fail only with
// an error wrapping ErrStorage (or ErrNotFound for absent Get keys); the
// core never inspects the underlying cause beyond that.
type Store interface {
	// Get returns ErrNotFound if key is absent.
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)

	// NewIterator yields every (key, value) pair whose key starts with
	// prefix, in lexicographic order, using a half-open range bounded by
	// the ASCII-successor of prefix.
	NewIterator(prefix []byte) (Iterator, error)

	// CurrentRound reads the durable "round this validator is currently
	// proposing in" counter. Returns 0, nil if never set.
	CurrentRound() (uint64, error)
	// SetCurrentRound durably sets the counter. Callers are responsible
	// for only ever moving it forward.
	SetCurrentRound(round uint64) error
	// BumpCurrentRound atomically reads, increments, and persists the
	// counter, returning the new value.
	BumpCurrentRound() (uint64, error)

	// FindMaxIntKey scans keys under prefix and returns the greatest
	// integer-valued suffix (interpreted as a base-10 unsigned integer),
	// and false if no such key exists.
	FindMaxIntKey(prefix []byte) (uint64, bool, error)

	Close() error
}

// PrefixUpperBound returns the smallest byte string greater than every
// string with the given prefix, i.e. the ASCII-successor half-open range
// bound. Returns nil if prefix consists entirely of 0xff bytes (open-ended
// range, no upper bound).
func PrefixUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] == 0xff {
			continue
		}
		bound[i]++
		return bound[:i+1]
	}
	return nil
}

func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
