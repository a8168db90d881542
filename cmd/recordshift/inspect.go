package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func recordArgs(args []string) (string, int64, error) {
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("invalid record id %q", args[1])
	}
	return args[0], id, nil
}

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) newReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <kind> <id>",
		Short: "Print the row of a record, migrating it first if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, id, err := recordArgs(args)
			if err != nil {
				return err
			}
			kind, err := kindArg([]string{name})
			if err != nil {
				return err
			}
			client, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := client.Read(cmd.Context(), kind, id)
			if err != nil {
				return err
			}
			return c.printJSON(map[string]interface{}{
				"healed": res.Healed,
				"row":    res.Row.Map(),
			})
		},
	}
}

func (c *cli) newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <kind> <id>",
		Short: "Compare the attributes of a record with its row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, id, err := recordArgs(args)
			if err != nil {
				return err
			}
			kind, err := kindArg([]string{name})
			if err != nil {
				return err
			}
			client, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			report, err := client.Verify(cmd.Context(), kind, id)
			if err != nil {
				return err
			}
			if err := c.printJSON(report); err != nil {
				return err
			}
			if !report.Consistent() {
				return fmt.Errorf("%s %d has %d mismatched columns", kind, id, len(report.Mismatches))
			}
			return nil
		},
	}
}

func (c *cli) newJournalCmd() *cobra.Command {
	var max int

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Drain and print outcome journal entries",
		Long: `Drain removes entries from the journal as it prints them. The memory journal
only holds entries of the current process, so this is useful with the redis
and kafka journals.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			entries, err := client.DrainJournal(cmd.Context(), max)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.out)
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&max, "max", 100, "Maximum number of entries to drain")
	return cmd
}
