// Copyright (C) 2024-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command consensus runs and inspects the DAG-BFT Consensus Runner: a
// devnet subcommand drives an in-process committee through real rounds,
// and a check subcommand validates a named network's timing parameters.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "consensus",
	Short: "Run and inspect the DAG-BFT consensus engine",
	Long: `The consensus command drives and inspects the Consensus Runner:

- devnet spins up an in-process committee of validators, submits
  synthetic events, and reports round advancement and anchor commits.
- check validates a named network preset's timing parameters.`,
}

func main() {
	rootCmd.AddCommand(
		devnetCmd(),
		checkCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
