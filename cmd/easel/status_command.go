package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"easel/internal/ledger"
	"easel/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue, and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, daemonStatusLine(cfg.Paths.LogDir, colorize))
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			fmt.Fprintln(out)

			return ctx.withStore(func(store *ledger.Store) error {
				for _, line := range renderSectionHeader("Queue", colorize) {
					fmt.Fprintln(out, line)
				}
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if stats.Total == 0 {
					fmt.Fprintln(out, statusIndent+"Queue is empty")
				} else {
					rows := make([][]string, 0, len(stats.ByStatus))
					for _, status := range ledger.AllStatuses() {
						if count := stats.ByStatus[status]; count > 0 {
							rows = append(rows, []string{string(status), fmt.Sprintf("%d", count)})
						}
					}
					fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				}
				fmt.Fprintf(out, "%sPublish records: %d\n", statusIndent, stats.Records)
				fmt.Fprintln(out)

				for _, line := range renderSectionHeader("Ledger", colorize) {
					fmt.Fprintln(out, line)
				}
				health := store.CheckHealth(cmd.Context())
				kind := statusOK
				if !health.Healthy {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine("Database", kind, health.Summary(), colorize))
				return nil
			})
		},
	}
}

// daemonStatusLine probes the daemon lock. Acquiring it means no daemon holds
// it; failing to acquire means one is running.
func daemonStatusLine(logDir string, colorize bool) string {
	lockPath := filepath.Join(logDir, "easeld.lock")
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		return renderStatusLine("Daemon", statusInfo, "Not running", colorize)
	}
	probe := flock.New(lockPath)
	acquired, err := probe.TryLock()
	if err != nil {
		return renderStatusLine("Daemon", statusWarn, fmt.Sprintf("Lock probe failed: %v", err), colorize)
	}
	if acquired {
		_ = probe.Unlock()
		return renderStatusLine("Daemon", statusInfo, "Not running", colorize)
	}
	return renderStatusLine("Daemon", statusOK, "Running", colorize)
}
