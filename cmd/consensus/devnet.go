// Copyright (C) 2024-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxfi/ids"

	"github.com/luxfi/modality/comm"
	"github.com/luxfi/modality/config"
	"github.com/luxfi/modality/crypto/signer"
	"github.com/luxfi/modality/datastore/memstore"
	"github.com/luxfi/modality/engine"
	"github.com/luxfi/modality/sequencing"
	"github.com/luxfi/modality/utils/bag"
	"github.com/luxfi/modality/validators"
)

func devnetCmd() *cobra.Command {
	var (
		numValidators int
		targetRound   uint64
		network       string
		submitEvents  int
		pollInterval  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "devnet",
		Short: "Run an in-process committee and report round advancement",
		Long: `devnet builds a fixed committee of validators sharing an in-process
transport, each with its own in-memory datastore, submits synthetic events
to each, and runs until
every validator reaches the target round or the command is interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevnet(cmd.Context(), devnetOptions{
				numValidators: numValidators,
				targetRound:   targetRound,
				network:       network,
				submitEvents:  submitEvents,
				pollInterval:  pollInterval,
			})
		},
	}

	cmd.Flags().IntVar(&numValidators, "validators", 4, "Number of validators in the committee")
	cmd.Flags().Uint64Var(&targetRound, "rounds", 5, "Number of rounds to run before reporting and stopping")
	cmd.Flags().StringVar(&network, "network", "local", "Network preset: mainnet, testnet, or local")
	cmd.Flags().IntVar(&submitEvents, "events-per-round", 1, "Synthetic events submitted to each validator before it proposes")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 20*time.Millisecond, "How often to poll validators for round advancement")

	return cmd
}

type devnetOptions struct {
	numValidators int
	targetRound   uint64
	network       string
	submitEvents  int
	pollInterval  time.Duration
}

type devnetValidator struct {
	nodeID ids.NodeID
	runner *engine.Runner
}

func runDevnet(ctx context.Context, opts devnetOptions) error {
	if opts.numValidators < 1 {
		return fmt.Errorf("devnet: --validators must be >= 1")
	}

	cfg, err := config.Preset(config.NetworkType(opts.network))
	if err != nil {
		return err
	}

	port := comm.NewInProcess(nil)
	var committeeMembers []validators.Validator
	keys := make(map[ids.NodeID]*signer.KeyPair, opts.numValidators)

	for i := 0; i < opts.numValidators; i++ {
		seed := make([]byte, 32)
		seed[0] = byte(i + 1)
		kp, err := signer.FromSeed(seed)
		if err != nil {
			return fmt.Errorf("devnet: derive validator %d key: %w", i, err)
		}
		nodeID, err := kp.NodeID()
		if err != nil {
			return fmt.Errorf("devnet: derive validator %d node ID: %w", i, err)
		}
		keys[nodeID] = kp
		committeeMembers = append(committeeMembers, validators.Validator{
			NodeID:    nodeID,
			PublicKey: kp.PublicKey(),
		})
	}

	set, err := validators.NewSet(committeeMembers)
	if err != nil {
		return fmt.Errorf("devnet: build validator set: %w", err)
	}
	oracle := sequencing.NewStatic(set)

	validatorsList := make([]devnetValidator, 0, opts.numValidators)
	for _, v := range set.List() {
		store := memstore.New()
		runner, err := engine.NewRunner(v.NodeID, keys[v.NodeID], store, port, oracle, cfg, nil, nil)
		if err != nil {
			return fmt.Errorf("devnet: construct runner for %s: %w", v.NodeID, err)
		}
		port.Register(runner)
		validatorsList = append(validatorsList, devnetValidator{nodeID: v.NodeID, runner: runner})
	}

	for _, dv := range validatorsList {
		if err := dv.runner.Start(ctx); err != nil {
			return fmt.Errorf("devnet: start %s: %w", dv.nodeID, err)
		}
	}
	defer func() {
		for _, dv := range validatorsList {
			dv.runner.Stop()
		}
	}()

	for round := uint64(0); round < opts.targetRound; round++ {
		for _, dv := range validatorsList {
			for i := 0; i < opts.submitEvents; i++ {
				payload := []byte(fmt.Sprintf("%s/round-%d/event-%d", dv.nodeID, round, i))
				if err := dv.runner.SubmitEvent(ctx, payload); err != nil {
					return fmt.Errorf("devnet: submit event to %s: %w", dv.nodeID, err)
				}
			}
		}
	}

	if err := awaitRound(ctx, validatorsList, opts.targetRound, opts.pollInterval); err != nil {
		return err
	}

	committed := bag.New[ids.NodeID]()
	for _, dv := range validatorsList {
	drain:
		for {
			select {
			case entry := <-dv.runner.CommitStream():
				if entry.Anchor {
					committed.Add(entry.PeerID)
				}
			default:
				break drain
			}
		}
	}

	fmt.Printf("\n=== Devnet: %d validators, network %q ===\n", opts.numValidators, opts.network)
	for _, dv := range validatorsList {
		fmt.Printf("  %s  current_round=%d\n", dv.nodeID, dv.runner.CurrentRound())
	}
	fmt.Printf("\nAnchors committed by proposer (this process's view):\n")
	for _, peer := range committed.List() {
		fmt.Printf("  %s  %d\n", peer, committed.Count(peer))
	}
	return nil
}

// awaitRound blocks until every validator's current round reaches target,
// or ctx is cancelled.
func awaitRound(ctx context.Context, validatorsList []devnetValidator, target uint64, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		allReady := true
		for _, dv := range validatorsList {
			if dv.runner.CurrentRound() < target {
				allReady = false
				break
			}
		}
		if allReady {
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("devnet: %w waiting for round %d", ctx.Err(), target)
		}
	}
}
