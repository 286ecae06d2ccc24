package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ticketctl",
		Short:         "Inspect support transcripts and run ingestion from the shell",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("file", "f", "", "Read input from file instead of stdin")
	rootCmd.PersistentFlags().String("rules", "", "Extra transcript rule file (yaml)")

	rootCmd.AddCommand(customerCmd())
	rootCmd.AddCommand(cleanCmd())
	rootCmd.AddCommand(phrasesCmd())
	rootCmd.AddCommand(keywordsCmd())
	rootCmd.AddCommand(tagCmd())
	rootCmd.AddCommand(ingestCmd())

	return rootCmd
}
