package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/recordshift/pkg/recordshift"
)

func kindArg(args []string) (recordshift.Kind, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("a kind is required (order or refund)")
	}
	return recordshift.ParseKind(args[0])
}

func (c *cli) newMigrateCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "migrate <kind>",
		Short: "Migrate pending records of a kind into its row table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindArg(args)
			if err != nil {
				return err
			}
			client, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			result, err := client.MigrateBatch(cmd.Context(), kind, batchSize)
			if result != nil {
				fmt.Fprintf(c.out, "Migrated %d %s records (%d pending at start)\n", result.Processed, kind, result.PendingBefore)
				if len(result.Skipped) > 0 {
					fmt.Fprintf(c.out, "Skipped %d: %s\n", len(result.Skipped), joinIDs(result.Skipped))
				}
				if len(result.PartialCleanup) > 0 {
					fmt.Fprintf(c.out, "Attributes left behind for %d: %s\n", len(result.PartialCleanup), joinIDs(result.PartialCleanup))
				}
				if result.Truncated {
					fmt.Fprintln(c.out, "Stopped at the record limit")
				}
			}
			return err
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "IDs fetched per batch (default from config)")
	return cmd
}

func (c *cli) newBackfillCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "backfill <kind>",
		Short: "Restore the rows of a kind back into attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindArg(args)
			if err != nil {
				return err
			}
			client, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			result, err := client.BackfillBatch(cmd.Context(), kind, batchSize)
			if result != nil {
				fmt.Fprintf(c.out, "Restored %d %s records\n", result.Processed, kind)
				if len(result.Failed) > 0 {
					fmt.Fprintf(c.out, "Failed %d: %s\n", len(result.Failed), joinIDs(result.Failed))
				}
				if result.Truncated {
					fmt.Fprintln(c.out, "Stopped at the record limit")
				}
			}
			return err
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Rows fetched per page (default from config)")
	return cmd
}

func (c *cli) newPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending [kind]",
		Short: "Count records without a row, for one kind or all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			kinds := client.Kinds()
			if len(args) == 1 {
				kind, err := kindArg(args)
				if err != nil {
					return err
				}
				kinds = []recordshift.Kind{kind}
			}
			for _, kind := range kinds {
				n, err := client.CountPending(cmd.Context(), kind)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "%s\t%d\n", kind, n)
			}
			return nil
		},
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
