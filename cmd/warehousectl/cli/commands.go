// Package cli implements the warehousectl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/DQHuy2112/BE-QLKH-sub001/jobs"
)

// JobRunner triggers and inspects background jobs.
type JobRunner interface {
	Trigger(ctx context.Context, name string, retention time.Duration) (string, error)
	Stats(ctx context.Context) (jobs.QueueStats, error)
}

// CodeIssuer issues document codes.
type CodeIssuer interface {
	NextCode(ctx context.Context, prefix string) (string, error)
}

// Deps opens collaborators lazily so each command only connects to what it
// uses. The returned close func may be nil.
type Deps struct {
	Jobs  func(ctx context.Context) (JobRunner, func() error, error)
	Codes func(ctx context.Context) (CodeIssuer, func() error, error)
}

// documentPrefixes are the code prefixes issued by the movement service.
var documentPrefixes = []string{"PN", "PX", "KK"}

// NewRootCommand assembles the warehousectl command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "warehousectl",
		Short:         "Operator tooling for the warehouse movement service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(jobsCommand(deps), codesCommand(deps))
	return root
}

func jobsCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Manage housekeeping jobs"}

	var retention time.Duration
	trigger := &cobra.Command{
		Use:       "trigger <task>",
		Short:     "Enqueue a housekeeping task now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobs.TaskTypes(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(jobs.TaskTypes(), args[0]) {
				return fmt.Errorf("unknown task %q, expected one of: %s", args[0], strings.Join(jobs.TaskTypes(), ", "))
			}
			runner, closeFn, err := deps.Jobs(cmd.Context())
			if err != nil {
				return err
			}
			defer closeQuietly(closeFn)
			id, err := runner.Trigger(cmd.Context(), args[0], retention)
			if err != nil {
				return fmt.Errorf("enqueue %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s\n", args[0], id)
			return nil
		},
	}
	trigger.Flags().DurationVar(&retention, "retention", 0, "override the worker's retention (rounded down to hours)")

	var asJSON bool
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show default queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, closeFn, err := deps.Jobs(cmd.Context())
			if err != nil {
				return err
			}
			defer closeQuietly(closeFn)
			s, err := runner.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("queue stats: %w", err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			fmt.Fprintf(out, "queue=%s pending=%d active=%d retry=%d archived=%d processed=%d failed=%d\n",
				s.Queue, s.Pending, s.Active, s.Retry, s.Archived, s.Processed, s.Failed)
			return nil
		},
	}
	stats.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	cmd.AddCommand(trigger, stats)
	return cmd
}

func codesCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "codes", Short: "Inspect document codes"}
	next := &cobra.Command{
		Use:   "next <prefix>",
		Short: "Issue the next code for a prefix (PN, PX, KK)",
		Long: `Issue the next code for a prefix. The code is consumed: the sequence
advances exactly as if a document had been created.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: documentPrefixes,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := strings.ToUpper(strings.TrimSpace(args[0]))
			if !slices.Contains(documentPrefixes, prefix) {
				return fmt.Errorf("unknown prefix %q, expected one of: %s", args[0], strings.Join(documentPrefixes, ", "))
			}
			issuer, closeFn, err := deps.Codes(cmd.Context())
			if err != nil {
				return err
			}
			defer closeQuietly(closeFn)
			code, err := issuer.NextCode(cmd.Context(), prefix)
			if err != nil {
				return fmt.Errorf("next code: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}
	cmd.AddCommand(next)
	return cmd
}

func closeQuietly(fn func() error) {
	if fn != nil {
		_ = fn()
	}
}
