package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"easel/internal/config"
	"easel/internal/preview"
	"easel/internal/textutil"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var runDir string

	cmd := &cobra.Command{
		Use:   "preview <topic>",
		Short: "Build an HTML review page for a topic's latest run",
		Long: `Preview locates the most recent staging directory for the topic and renders
its generated content and slide images into a standalone HTML page. Use
--dir to preview a specific run directory instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			dir := strings.TrimSpace(runDir)
			if dir == "" {
				if len(args) == 0 {
					return fmt.Errorf("a topic or --dir is required")
				}
				slug := textutil.Slugify(args[0])
				dir, err = preview.LatestRunDir(cfg.Paths.WorkspaceDir, slug)
				if err != nil {
					return err
				}
			} else {
				dir, err = config.ExpandPath(dir)
				if err != nil {
					return err
				}
			}

			path, err := preview.Build(dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Preview written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&runDir, "dir", "", "Run directory to preview instead of the topic's latest run")
	return cmd
}
