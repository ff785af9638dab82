// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the tunable timing parameters of the Consensus
// Runner: everything that is not committee membership or cryptographic
// identity.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/modality/utils/constants"
)

// Sentinel validation errors, checked with errors.Is.
var (
	ErrInvalidTimeout        = errors.New("config: timeout must be positive")
	ErrInvalidBackoffCap     = errors.New("config: fetch backoff cap must be >= fetch timeout")
	ErrInvalidRetryMax       = errors.New("config: fetch retry max must be >= 1")
	ErrInvalidCommitLag      = errors.New("config: commit evaluation lag must be >= 2")
	ErrInvalidMinRoundInterval = errors.New("config: min round interval must be >= 0")
)

// NetworkType selects a named parameter preset.
type NetworkType string

const (
	MainnetNetwork NetworkType = "mainnet"
	TestnetNetwork NetworkType = "testnet"
	LocalNetwork   NetworkType = "local"
)

// Config holds the Consensus Runner's timing parameters. Committee size
// and cryptographic material live in validators.Set and crypto/signer;
// this type covers only how long the runner waits and retries.
type Config struct {
	// AckCollectionTimeout is the deadline given to each outgoing draft
	// broadcast, ack send, and certified-block broadcast. A draft that does
	// not reach quorum acks is not re-broadcast.
	AckCollectionTimeout time.Duration `json:"ackCollectionTimeout"`
	// FetchTimeout bounds a single fetch_certified round trip.
	FetchTimeout time.Duration `json:"fetchTimeout"`
	// FetchBackoffCap caps the exponential backoff between fetch retries.
	FetchBackoffCap time.Duration `json:"fetchBackoffCap"`
	// FetchRetryMax is the number of fetch attempts before an anchor is
	// skipped as uncommitted.
	FetchRetryMax int `json:"fetchRetryMax"`
	// MinRoundInterval is a minimum wall-clock spacing between successive
	// S1 proposals. It is validated and reported, but the runner does not
	// read it: proposals are not delayed by it.
	MinRoundInterval time.Duration `json:"minRoundInterval"`
	// CommitEvaluationLag is how many rounds past an anchor's round the
	// runner waits before evaluating its commit rule (>=2, per spec.md
	// §4.5's "round r+2 reaches quorum" realization).
	CommitEvaluationLag uint64 `json:"commitEvaluationLag"`
}

// Valid reports whether c's parameters are internally consistent.
func (c Config) Valid() error {
	if c.AckCollectionTimeout <= 0 {
		return fmt.Errorf("%w: ack collection timeout", ErrInvalidTimeout)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("%w: fetch timeout", ErrInvalidTimeout)
	}
	if c.FetchBackoffCap < c.FetchTimeout {
		return ErrInvalidBackoffCap
	}
	if c.FetchRetryMax < 1 {
		return ErrInvalidRetryMax
	}
	if c.CommitEvaluationLag < 2 {
		return ErrInvalidCommitLag
	}
	if c.MinRoundInterval < 0 {
		return ErrInvalidMinRoundInterval
	}
	return nil
}

// MainnetConfig is the production preset: conservative timeouts tolerant
// of wide-area network latency.
var MainnetConfig = Config{
	AckCollectionTimeout: 2 * time.Second,
	FetchTimeout:         1 * time.Second,
	FetchBackoffCap:      10 * time.Second,
	FetchRetryMax:        5,
	MinRoundInterval:     200 * time.Millisecond,
	CommitEvaluationLag:  2,
}

// TestnetConfig relaxes mainnet's timeouts somewhat for a smaller, less
// geographically spread committee.
var TestnetConfig = Config{
	AckCollectionTimeout: 1 * time.Second,
	FetchTimeout:         500 * time.Millisecond,
	FetchBackoffCap:      5 * time.Second,
	FetchRetryMax:        5,
	MinRoundInterval:     100 * time.Millisecond,
	CommitEvaluationLag:  2,
}

// LocalConfig is tuned for same-host devnets and tests: short timeouts so
// test suites run fast, still long enough for goroutine scheduling.
var LocalConfig = Config{
	AckCollectionTimeout: 200 * time.Millisecond,
	FetchTimeout:         100 * time.Millisecond,
	FetchBackoffCap:      1 * time.Second,
	FetchRetryMax:        3,
	MinRoundInterval:     10 * time.Millisecond,
	CommitEvaluationLag:  2,
}

// NetworkID returns the numeric network identifier logged and exported in
// metrics labels alongside this NetworkType, mirroring how the wider pack
// keys on a numeric network ID rather than its string name.
func (n NetworkType) NetworkID() uint32 {
	switch n {
	case MainnetNetwork:
		return constants.MainnetID
	case TestnetNetwork:
		return constants.TestnetID
	case LocalNetwork:
		return constants.LocalID
	default:
		return 0
	}
}

// Preset resolves a NetworkType to its Config value.
func Preset(network NetworkType) (Config, error) {
	switch network {
	case MainnetNetwork:
		return MainnetConfig, nil
	case TestnetNetwork:
		return TestnetConfig, nil
	case LocalNetwork:
		return LocalConfig, nil
	default:
		return Config{}, fmt.Errorf("config: unknown network preset %q", network)
	}
}
