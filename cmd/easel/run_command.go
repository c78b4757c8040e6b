package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"easel/internal/generate"
	"easel/internal/ledger"
	"easel/internal/logging"
	"easel/internal/pipeline"
	"easel/internal/publish"
	"easel/internal/render"
	"easel/internal/scrape"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var sourceURL string
	var kindFlag string

	cmd := &cobra.Command{
		Use:   "run <topic>",
		Short: "Run the pipeline for one topic",
		Long: `Run scrapes material for the topic, generates slide content, renders the
slide images, and publishes the carousel. Topics already in the publish
ledger are skipped without any network or model calls.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			kind, ok := pipeline.ParseKind(strings.TrimSpace(kindFlag))
			if !ok {
				return fmt.Errorf("unknown content kind %q (valid: %s)", kindFlag, kindNames())
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := ledger.Open(cfg)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer store.Close()

			renderer, err := render.NewService(cfg, logger)
			if err != nil {
				return fmt.Errorf("init renderer: %w", err)
			}
			orchestrator := pipeline.New(cfg, logger, store,
				scrape.NewService(cfg, logger),
				generate.NewService(cfg, logger),
				renderer,
				publish.NewService(cfg, logger),
			)

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			outcome := orchestrator.Run(signalCtx, pipeline.Request{
				Topic:     args[0],
				SourceURL: strings.TrimSpace(sourceURL),
				Kind:      kind,
			})

			printOutcome(cmd, store, outcome)
			if code := outcome.ExitCode(); code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceURL, "url", "", "Source page URL (overrides the constructed search query)")
	cmd.Flags().StringVar(&kindFlag, "kind", "", "Content kind: "+kindNames())
	return cmd
}

func printOutcome(cmd *cobra.Command, store *ledger.Store, outcome pipeline.RunOutcome) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Topic:    %s\n", outcome.Topic)
	fmt.Fprintf(out, "Run:      %s\n", outcome.RunID)

	switch outcome.State {
	case pipeline.StatePublished:
		fmt.Fprintln(out, "State:    published")
		if outcome.Record != nil {
			fmt.Fprintf(out, "Post:     %s (%d slides)\n", outcome.Record.Permalink, outcome.Record.SlideCount)
		}
	case pipeline.StateSkippedDuplicate:
		fmt.Fprintln(out, "State:    skipped (already published)")
		if record, err := store.Record(cmd.Context(), outcome.Topic); err == nil && record != nil {
			fmt.Fprintf(out, "Post:     %s (published %s)\n", record.Permalink, record.PublishedAt.Format("2006-01-02"))
		}
	case pipeline.StateCancelled:
		fmt.Fprintln(out, "State:    cancelled")
	case pipeline.StatePublishedUnrecorded:
		fmt.Fprintln(out, "State:    published, but the ledger write failed")
		if outcome.Record != nil {
			fmt.Fprintf(out, "Post:     %s\n", outcome.Record.Permalink)
		}
		fmt.Fprintln(out, "Warning:  do not re-run this topic until the ledger is reconciled; the post exists on the platform")
	default:
		fmt.Fprintf(out, "State:    failed (%s)\n", outcome.FailedStage)
		if outcome.Err != nil {
			fmt.Fprintf(out, "Error:    %v\n", outcome.Err)
		}
	}

	if attempts := formatAttempts(outcome.Attempts); attempts != "" {
		fmt.Fprintf(out, "Attempts: %s\n", attempts)
	}
	if outcome.StagingDir != "" {
		fmt.Fprintf(out, "Staging:  %s\n", outcome.StagingDir)
	}
	fmt.Fprintf(out, "Duration: %s\n", outcome.Duration.Round(time.Millisecond))
}

func formatAttempts(attempts map[string]int) string {
	if len(attempts) == 0 {
		return ""
	}
	parts := make([]string, 0, 4)
	for _, stage := range []string{pipeline.StageScrape, pipeline.StageGenerate, pipeline.StageRender, pipeline.StagePublish} {
		if count, ok := attempts[stage]; ok && count > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", stage, count))
		}
	}
	return strings.Join(parts, " ")
}

func kindNames() string {
	kinds := pipeline.AllKinds()
	names := make([]string, len(kinds))
	for i, kind := range kinds {
		names[i] = string(kind)
	}
	return strings.Join(names, ", ")
}
