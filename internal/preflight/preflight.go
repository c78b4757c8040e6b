package preflight

import (
	"context"

	"easel/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// AllPassed reports whether every result in the set passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// RunAll executes all applicable preflight checks for the given config.
// Platform checks are skipped in dry-run mode since no publish will
// reach the network.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Workspace directory", cfg.Paths.WorkspaceDir))
	results = append(results, CheckDirectoryAccess("Inbox directory", cfg.Paths.InboxDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if cfg.Generator.APIKey == "" {
		results = append(results, Result{Name: "Generator API", Detail: "API key missing"})
	} else {
		results = append(results, CheckGenerator(ctx, cfg.Generator.BaseURL, cfg.Generator.APIKey))
	}

	if cfg.Publisher.DryRun {
		results = append(results,
			Result{Name: "Publisher token", Passed: true, Detail: "dry-run (skipped)"},
			Result{Name: "Hosting repository", Passed: true, Detail: "dry-run (skipped)"},
		)
		return results
	}

	results = append(results, CheckPublisherToken(ctx, cfg.Publisher.GraphBaseURL, cfg.Publisher.AccessToken))
	results = append(results, CheckHostingRepo(ctx, "",
		cfg.Publisher.HostingOwner, cfg.Publisher.HostingRepo, cfg.Publisher.HostingToken))
	return results
}
