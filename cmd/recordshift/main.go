// Package main provides the recordshift binary for migrating records
// between the attribute store and the row tables.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/recordshift/pkg/recordshift"
)

var version = "dev"

const (
	exitFailure    = 1
	exitStructural = 2
)

// cli holds the global flags.
type cli struct {
	configPath string
	logLevel   string
	out        io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	rootCmd := &cobra.Command{
		Use:   "recordshift",
		Short: "Move order and refund records between the attribute store and row tables",
		Long: `recordshift migrates records stored as attributes into per-kind row tables,
restores rows back into attributes, and inspects the state of single records.

Records that fail during a run are skipped and reported; a run only aborts
when the candidate query stops making progress.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "recordshift.yaml", "Path to the YAML or JSON configuration file")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(c.newMigrateCmd())
	rootCmd.AddCommand(c.newBackfillCmd())
	rootCmd.AddCommand(c.newPendingCmd())
	rootCmd.AddCommand(c.newReadCmd())
	rootCmd.AddCommand(c.newVerifyCmd())
	rootCmd.AddCommand(c.newJournalCmd())

	return rootCmd
}

// open loads the configuration and connects. Callers close the client.
func (c *cli) open(ctx context.Context) (recordshift.Client, error) {
	config, err := recordshift.LoadConfig(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		config.Log.Level = c.logLevel
	}
	client, err := recordshift.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

func exitCode(err error) int {
	if recordshift.IsStructural(err) {
		return exitStructural
	}
	return exitFailure
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	if err == nil {
		return
	}

	if recordshift.IsStructural(err) {
		fmt.Fprintf(os.Stderr, "FATAL: run aborted, no progress is possible: %v\n", err)
	} else if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Interrupted")
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	stop()
	os.Exit(exitCode(err))
}
