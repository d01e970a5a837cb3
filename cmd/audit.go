package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/reelkit/config"
	"github.com/otherjamesbrown/reelkit/pkg/audit"
)

// AuditHistory reads the command audit log.
type AuditHistory interface {
	History(ctx context.Context, agent string, limit int) ([]audit.Entry, error)
	Close() error
}

// AuditCommandDeps holds the dependencies for audit commands.
type AuditCommandDeps struct {
	Config     *config.CLIConfig
	LoadConfig func() (*config.CLIConfig, error)
	OpenAudit  func(*config.AuditConfig) (AuditHistory, error)
}

// DefaultAuditDeps returns the default dependencies for production use.
func DefaultAuditDeps() *AuditCommandDeps {
	return &AuditCommandDeps{
		LoadConfig: config.LoadConfig,
		OpenAudit: func(cfg *config.AuditConfig) (AuditHistory, error) {
			return audit.Open(cfg)
		},
	}
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(deps *AuditCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultAuditDeps()
	}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the command audit log",
		Long: `Inspect the command audit log.

When the audit block is configured, every reelkit invocation is recorded
with its arguments, duration and outcome.`,
	}
	cmd.AddCommand(newAuditHistoryCommand(deps))
	return cmd
}

func newAuditHistoryCommand(deps *AuditCommandDeps) *cobra.Command {
	var (
		agent  string
		all    bool
		limit  int
		output string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := deps.Config
			if cfg == nil {
				var err error
				if cfg, err = deps.LoadConfig(); err != nil {
					return fmt.Errorf("loading configuration: %w", err)
				}
			}
			if !cfg.Audit.IsConfigured() {
				return fmt.Errorf("audit log is not configured")
			}
			if agent == "" && !all {
				agent = cfg.Audit.GetAgent()
			}
			log, err := deps.OpenAudit(cfg.Audit)
			if err != nil {
				return fmt.Errorf("opening audit log: %w", err)
			}
			defer log.Close()

			entries, err := log.History(cmd.Context(), agent, limit)
			if err != nil {
				return err
			}
			if done, err := writeStructured(cmd.OutOrStdout(), outputFormat(cfg, output), entries); done {
				return err
			}
			return outputAuditText(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "Agent to show (default: this agent)")
	cmd.Flags().BoolVar(&all, "all", false, "Show commands from every agent")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of entries")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func outputAuditText(w io.Writer, entries []audit.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No commands recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tCOMMAND\tDURATION\tRESULT")
	for _, e := range entries {
		result := "ok"
		if !e.Success {
			result = "failed"
			if e.ErrorMessage != "" {
				result += ": " + truncateString(e.ErrorMessage, 40)
			}
		}
		command := e.Command
		if len(e.Args) > 0 {
			command += " " + strings.Join(e.Args, " ")
		}
		fmt.Fprintf(tw, "%s\t%s\t%dms\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), truncateString(command, 50), e.DurationMs, result)
	}
	return tw.Flush()
}
