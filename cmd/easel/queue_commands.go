package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"easel/internal/ledger"
	"easel/internal/textutil"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the topic queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var sourceURL string

	cmd := &cobra.Command{
		Use:   "add <topic>",
		Short: "Queue a topic for the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *ledger.Store) error {
				slug := textutil.Slugify(args[0])
				if slug == "" {
					return fmt.Errorf("topic %q produces an empty slug", args[0])
				}
				topic, err := store.Enqueue(cmd.Context(), slug, strings.TrimSpace(sourceURL))
				if err != nil {
					return err
				}
				if topic.Status != ledger.StatusPending {
					fmt.Fprintf(cmd.OutOrStdout(), "Topic %s already queued with status %s\n", topic.Slug, topic.Status)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s\n", topic.Slug)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sourceURL, "url", "", "Source page URL for the topic")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *ledger.Store) error {
				var statuses []ledger.Status
				for _, raw := range listStatuses {
					status, ok := ledger.ParseStatus(raw)
					if !ok {
						return fmt.Errorf("unknown status %q (valid: %s)", raw, statusNames())
					}
					statuses = append(statuses, status)
				}

				topics, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(topics) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(topics))
				for _, topic := range topics {
					detail := topic.ErrorMessage
					if topic.FailureStage != "" {
						detail = fmt.Sprintf("%s: %s", topic.FailureStage, topic.ErrorMessage)
					}
					rows = append(rows, []string{
						topic.Slug,
						string(topic.Status),
						fmt.Sprintf("%d", topic.Attempts),
						topic.UpdatedAt.Local().Format("2006-01-02 15:04"),
						textutil.Truncate(detail, 60),
					})
				}
				table := renderTable(
					[]string{"Topic", "Status", "Attempts", "Updated", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (repeatable): "+statusNames())
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [topic...]",
		Short: "Reset failed topics to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *ledger.Store) error {
				slugs := make([]string, 0, len(args))
				for _, arg := range args {
					slugs = append(slugs, textutil.Slugify(arg))
				}
				updated, err := store.RetryFailed(cmd.Context(), slugs...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d topic(s) to pending\n", updated)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <topic>",
		Short: "Remove a topic from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *ledger.Store) error {
				slug := textutil.Slugify(args[0])
				removed, err := store.Remove(cmd.Context(), slug)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Topic %s not found\n", slug)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", slug)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearStatuses []string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove topics from the queue",
		Long: `Clear removes queue entries. With no flags every topic is removed; with
--status only topics in the named statuses are. Publish records are kept
either way, so cleared topics still skip as duplicates when re-run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *ledger.Store) error {
				var statuses []ledger.Status
				for _, raw := range clearStatuses {
					status, ok := ledger.ParseStatus(raw)
					if !ok {
						return fmt.Errorf("unknown status %q (valid: %s)", raw, statusNames())
					}
					statuses = append(statuses, status)
				}
				removed, err := store.Clear(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d topic(s)\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&clearStatuses, "status", nil, "Only clear these statuses (repeatable): "+statusNames())
	return cmd
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Return processing topics to pending",
		Long: `Reset reclaims topics stuck in processing, regardless of claim age. Use it
after a daemon crash; a running daemon reclaims stale claims on its own.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *ledger.Store) error {
				updated, err := store.ResetStuckProcessing(cmd.Context(), 0)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d topic(s) to pending\n", updated)
				return nil
			})
		},
	}
}

func statusNames() string {
	statuses := ledger.AllStatuses()
	names := make([]string, len(statuses))
	for i, status := range statuses {
		names[i] = string(status)
	}
	return strings.Join(names, ", ")
}
