// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"time"
)

// Builder provides a fluent interface for constructing a runner Config.
// Each With* method short-circuits once b.err is set; Build performs final
// validation and surfaces the first error encountered.
type Builder struct {
	config Config
	err    error
}

// NewBuilder starts from LocalConfig's defaults.
func NewBuilder() *Builder {
	return &Builder{config: LocalConfig}
}

// FromPreset loads a named preset as the starting point.
func (b *Builder) FromPreset(network NetworkType) *Builder {
	if b.err != nil {
		return b
	}
	cfg, err := Preset(network)
	if err != nil {
		b.err = err
		return b
	}
	b.config = cfg
	return b
}

// WithAckCollectionTimeout overrides AckCollectionTimeout, the deadline for
// each outgoing draft, ack, and certified-block send.
func (b *Builder) WithAckCollectionTimeout(d time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	if d <= 0 {
		b.err = fmt.Errorf("%w: ack collection timeout %s", ErrInvalidTimeout, d)
		return b
	}
	b.config.AckCollectionTimeout = d
	return b
}

// WithFetchTimeout overrides the fetch_certified round-trip timeout, and
// raises FetchBackoffCap to match if it would otherwise fall below it.
func (b *Builder) WithFetchTimeout(d time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	if d <= 0 {
		b.err = fmt.Errorf("%w: fetch timeout %s", ErrInvalidTimeout, d)
		return b
	}
	b.config.FetchTimeout = d
	if b.config.FetchBackoffCap < d {
		b.config.FetchBackoffCap = d
	}
	return b
}

// WithFetchRetryMax overrides how many fetch attempts precede an anchor
// skip.
func (b *Builder) WithFetchRetryMax(n int) *Builder {
	if b.err != nil {
		return b
	}
	if n < 1 {
		b.err = fmt.Errorf("%w: got %d", ErrInvalidRetryMax, n)
		return b
	}
	b.config.FetchRetryMax = n
	return b
}

// WithMinRoundInterval overrides MinRoundInterval.
func (b *Builder) WithMinRoundInterval(d time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	if d < 0 {
		b.err = fmt.Errorf("%w: got %s", ErrInvalidMinRoundInterval, d)
		return b
	}
	b.config.MinRoundInterval = d
	return b
}

// WithCommitEvaluationLag overrides how many rounds past an anchor's round
// the runner waits before evaluating its commit rule.
func (b *Builder) WithCommitEvaluationLag(lag uint64) *Builder {
	if b.err != nil {
		return b
	}
	if lag < 2 {
		b.err = fmt.Errorf("%w: got %d", ErrInvalidCommitLag, lag)
		return b
	}
	b.config.CommitEvaluationLag = lag
	return b
}

// Build runs final validation and returns the assembled Config.
func (b *Builder) Build() (Config, error) {
	if b.err != nil {
		return Config{}, b.err
	}
	if err := b.config.Valid(); err != nil {
		return Config{}, err
	}
	return b.config, nil
}
