// Copyright (C) 2024-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxfi/modality/config"
)

func checkCmd() *cobra.Command {
	var (
		network          string
		ackTimeout       time.Duration
		fetchTimeout     time.Duration
		fetchRetryMax    int
		minRoundInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a network preset's consensus timing parameters",
		Long: `Resolve a named network preset (mainnet, testnet, local), apply any
flag overrides, and report whether the resulting Config is internally
consistent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Preset(config.NetworkType(network))
			if err != nil {
				return err
			}

			if ackTimeout > 0 {
				cfg.AckCollectionTimeout = ackTimeout
			}
			if fetchTimeout > 0 {
				cfg.FetchTimeout = fetchTimeout
			}
			if fetchRetryMax > 0 {
				cfg.FetchRetryMax = fetchRetryMax
			}
			if minRoundInterval > 0 {
				cfg.MinRoundInterval = minRoundInterval
			}

			fmt.Printf("\n=== Consensus Parameter Check for %s (network ID %d) ===\n",
				network, config.NetworkType(network).NetworkID())
			fmt.Printf("\nConfiguration:\n")
			fmt.Printf("  Ack Collection Timeout:  %s\n", cfg.AckCollectionTimeout)
			fmt.Printf("  Fetch Timeout:           %s\n", cfg.FetchTimeout)
			fmt.Printf("  Fetch Backoff Cap:       %s\n", cfg.FetchBackoffCap)
			fmt.Printf("  Fetch Retry Max:         %d\n", cfg.FetchRetryMax)
			fmt.Printf("  Min Round Interval:      %s\n", cfg.MinRoundInterval)
			fmt.Printf("  Commit Evaluation Lag:   %d\n", cfg.CommitEvaluationLag)

			if err := cfg.Valid(); err != nil {
				fmt.Printf("\nRESULT: INVALID - %v\n", err)
				return err
			}
			fmt.Printf("\nRESULT: valid\n")
			return nil
		},
	}

	cmd.Flags().StringVar(&network, "network", "local", "Network preset: mainnet, testnet, or local")
	cmd.Flags().DurationVar(&ackTimeout, "ack-timeout", 0, "Override ack collection timeout (0 to use preset default)")
	cmd.Flags().DurationVar(&fetchTimeout, "fetch-timeout", 0, "Override fetch_certified timeout (0 to use preset default)")
	cmd.Flags().IntVar(&fetchRetryMax, "fetch-retry-max", 0, "Override fetch retry max (0 to use preset default)")
	cmd.Flags().DurationVar(&minRoundInterval, "min-round-interval", 0, "Override minimum round interval (0 to use preset default)")

	return cmd
}
