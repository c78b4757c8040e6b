package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"easel/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set generator.api_key (or export OPENAI_API_KEY) before running Easel.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Show the effective configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(configFlagValue(ctx))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path:     %s", path)
			if !exists {
				fmt.Fprint(out, " (missing; defaults shown)")
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Workspace:       %s\n", cfg.Paths.WorkspaceDir)
			fmt.Fprintf(out, "Inbox:           %s\n", cfg.Paths.InboxDir)
			fmt.Fprintf(out, "Logs:            %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "Ledger:          %s\n", cfg.Paths.LedgerPath)
			fmt.Fprintf(out, "Generator model: %s\n", cfg.Generator.Model)
			fmt.Fprintf(out, "Generator key:   %s\n", setUnset(cfg.Generator.APIKey))
			fmt.Fprintf(out, "Render profile:  %s (%s theme)\n", cfg.Renderer.Profile, cfg.Renderer.Theme)
			fmt.Fprintf(out, "Publish dry-run: %s\n", yesNo(cfg.Publisher.DryRun))
			fmt.Fprintf(out, "Publish token:   %s\n", setUnset(cfg.Publisher.AccessToken))
			fmt.Fprintf(out, "Hosting repo:    %s\n", hostingLabel(cfg))
			fmt.Fprintf(out, "Poll interval:   %ds\n", cfg.Daemon.PollInterval)
			fmt.Fprintf(out, "Notifications:   %s\n", ntfyLabel(cfg))
			fmt.Fprintf(out, "Log format:      %s (%s)\n", cfg.Logging.Format, cfg.Logging.Level)
			return nil
		},
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(configFlagValue(ctx))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func configFlagValue(ctx *commandContext) string {
	if ctx == nil || ctx.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*ctx.configFlag)
}

func setUnset(secret string) string {
	if strings.TrimSpace(secret) == "" {
		return "unset"
	}
	return "set"
}

func hostingLabel(cfg *config.Config) string {
	owner := strings.TrimSpace(cfg.Publisher.HostingOwner)
	repo := strings.TrimSpace(cfg.Publisher.HostingRepo)
	if owner == "" || repo == "" {
		return "unset"
	}
	return owner + "/" + repo + "@" + cfg.Publisher.HostingBranch
}

func ntfyLabel(cfg *config.Config) string {
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return "disabled"
	}
	return "ntfy topic " + cfg.Notifications.NtfyTopic
}
