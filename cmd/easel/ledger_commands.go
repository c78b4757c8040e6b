package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"easel/internal/ledger"
	"easel/internal/textutil"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the publish ledger",
	}

	ledgerCmd.AddCommand(newLedgerListCommand(ctx))
	ledgerCmd.AddCommand(newLedgerShowCommand(ctx))

	return ledgerCmd
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded publishes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *ledger.Store) error {
				records, err := store.Records(cmd.Context())
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Ledger is empty")
					return nil
				}

				rows := make([][]string, 0, len(records))
				for _, record := range records {
					rows = append(rows, []string{
						record.TopicID,
						record.PostID,
						fmt.Sprintf("%d", record.SlideCount),
						record.PublishedAt.Local().Format("2006-01-02 15:04"),
						textutil.Truncate(record.Permalink, 60),
					})
				}
				table := renderTable(
					[]string{"Topic", "Post", "Slides", "Published", "Permalink"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newLedgerShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <topic>",
		Short: "Show the publish record for one topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *ledger.Store) error {
				slug := textutil.Slugify(args[0])
				record, err := store.Record(cmd.Context(), slug)
				if err != nil {
					return err
				}
				if record == nil {
					return fmt.Errorf("no publish record for %s", slug)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Topic:      %s\n", record.TopicID)
				fmt.Fprintf(out, "Run:        %s\n", record.RunID)
				fmt.Fprintf(out, "Post:       %s\n", record.PostID)
				fmt.Fprintf(out, "Permalink:  %s\n", record.Permalink)
				fmt.Fprintf(out, "Slides:     %d\n", record.SlideCount)
				fmt.Fprintf(out, "Published:  %s\n", record.PublishedAt.Local().Format("2006-01-02 15:04:05"))
				return nil
			})
		},
	}
}
