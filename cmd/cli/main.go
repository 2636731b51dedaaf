package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	baseURL string
	timeout time.Duration
	userID  string
	format  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "estateledger-cli",
		Short:         "EstateLedger CLI tool",
		Long:          `Aggregate insolvency ledger snapshots offline or talk to a running EstateLedger API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the EstateLedger API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&opts.userID, "user", "", "User ID sent with mutating requests")
	rootCmd.PersistentFlags().StringVarP(&opts.format, "output", "o", "json", "Output format: json or table")

	// Offline commands work on a snapshot file.
	rootCmd.AddCommand(
		newAggregateCmd(opts),
		newEstateSummaryCmd(opts),
		newBalancesCmd(opts),
		newClassifyCmd(opts),
	)

	// Remote commands
	caseCmd := &cobra.Command{
		Use:   "case",
		Short: "Operations against a case on the server",
	}
	caseCmd.AddCommand(newStatusCmd(opts), newRebuildCmd(opts))
	rootCmd.AddCommand(caseCmd)

	return rootCmd
}
