package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/reelkit/client"
	"github.com/otherjamesbrown/reelkit/config"
	"github.com/otherjamesbrown/reelkit/pkg/db"
	"github.com/otherjamesbrown/reelkit/pkg/events"
)

// Service states reported by the health command.
const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"
	healthStatusSkipped   = "not configured"
)

// ServiceHealth is the probe result of one dependency.
type ServiceHealth struct {
	Status  string `json:"status" yaml:"status"`
	Target  string `json:"target,omitempty" yaml:"target,omitempty"`
	Latency string `json:"latency,omitempty" yaml:"latency,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
	Details string `json:"details,omitempty" yaml:"details,omitempty"`
}

// HealthReport is the output of the health command.
type HealthReport struct {
	Overall   string                   `json:"overall" yaml:"overall"`
	Timestamp time.Time                `json:"timestamp" yaml:"timestamp"`
	Services  map[string]ServiceHealth `json:"services" yaml:"services"`
}

// HealthCommandDeps holds the dependencies for the health command.
type HealthCommandDeps struct {
	Config        *config.CLIConfig
	LoadConfig    func() (*config.CLIConfig, error)
	APIKey        func(*config.CLIConfig) (string, error)
	NewSubmitter  func(context.Context, *config.CLIConfig, string) (client.Submitter, client.Health, client.Closer, error)
	CheckDatabase func(context.Context, *config.CLIConfig) ServiceHealth
	CheckBroker   func(context.Context, *config.CLIConfig) ServiceHealth
}

// DefaultHealthDeps returns the default dependencies for production use.
func DefaultHealthDeps() *HealthCommandDeps {
	return &HealthCommandDeps{
		LoadConfig:    config.LoadConfig,
		APIKey:        loadAPIKey,
		NewSubmitter:  client.NewSubmitter,
		CheckDatabase: checkDatabase,
		CheckBroker:   checkBroker,
	}
}

// NewHealthCommand creates the health command.
func NewHealthCommand(deps *HealthCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultHealthDeps()
	}
	var (
		timeout time.Duration
		output  string
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the render service and the configured backends",
		Long: `Check the health of the services reelkit talks to:

  - render:   the render service over the configured transport
  - database: the project store, when configured
  - events:   the Redis event bus, when configured

The command exits with an error when any configured service is unhealthy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := deps.Config
			if cfg == nil {
				var err error
				if cfg, err = deps.LoadConfig(); err != nil {
					return fmt.Errorf("loading configuration: %w", err)
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			report := HealthReport{
				Timestamp: time.Now(),
				Services: map[string]ServiceHealth{
					"render":   checkRender(ctx, deps, cfg),
					"database": deps.CheckDatabase(ctx, cfg),
					"events":   deps.CheckBroker(ctx, cfg),
				},
			}
			report.Overall = healthStatusHealthy
			for _, s := range report.Services {
				if s.Status == healthStatusUnhealthy {
					report.Overall = healthStatusUnhealthy
				}
			}

			done, err := writeStructured(cmd.OutOrStdout(), outputFormat(cfg, output), report)
			if !done {
				err = outputHealthText(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}
			if report.Overall != healthStatusHealthy {
				return fmt.Errorf("one or more services are unhealthy")
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Timeout for all checks")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func checkRender(ctx context.Context, deps *HealthCommandDeps, cfg *config.CLIConfig) ServiceHealth {
	s := ServiceHealth{Target: renderTarget(cfg)}
	apiKey, _ := deps.APIKey(cfg)
	_, health, closeSubmitter, err := deps.NewSubmitter(ctx, cfg, apiKey)
	if err != nil {
		s.Status = healthStatusUnhealthy
		s.Error = err.Error()
		return s
	}
	defer closeSubmitter()

	hs, err := health.CheckHealth(ctx)
	if err != nil {
		s.Status = healthStatusUnhealthy
		s.Error = err.Error()
		return s
	}
	s.Latency = hs.Latency.Round(time.Millisecond).String()
	s.Details = fmt.Sprintf("%s %s", hs.Transport, hs.Status)
	s.Status = healthStatusHealthy
	if !hs.Healthy {
		s.Status = healthStatusUnhealthy
	}
	return s
}

func checkDatabase(ctx context.Context, cfg *config.CLIConfig) ServiceHealth {
	if !cfg.Database.IsConfigured() {
		return ServiceHealth{Status: healthStatusSkipped}
	}
	s := ServiceHealth{Target: fmt.Sprintf("%s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)}
	pool, err := connectToDatabase(ctx, cfg)
	if err != nil {
		s.Status = healthStatusUnhealthy
		s.Error = err.Error()
		return s
	}
	defer pool.Close()

	hs := db.Check(ctx, pool)
	s.Latency = hs.Latency.Round(time.Millisecond).String()
	if !hs.Healthy {
		s.Status = healthStatusUnhealthy
		if hs.Error != nil {
			s.Error = hs.Error.Error()
		}
		return s
	}
	s.Status = healthStatusHealthy
	s.Details = fmt.Sprintf("%d conns (%d idle)", hs.TotalConns, hs.IdleConns)
	return s
}

func checkBroker(ctx context.Context, cfg *config.CLIConfig) ServiceHealth {
	if !cfg.Redis.IsConfigured() {
		return ServiceHealth{Status: healthStatusSkipped}
	}
	s := ServiceHealth{Target: cfg.Redis.Addr}
	start := time.Now()
	rc, err := events.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		s.Status = healthStatusUnhealthy
		s.Error = err.Error()
		return s
	}
	defer rc.Close()
	s.Latency = time.Since(start).Round(time.Millisecond).String()
	s.Status = healthStatusHealthy
	return s
}

func outputHealthText(w io.Writer, report HealthReport) error {
	names := make([]string, 0, len(report.Services))
	for name := range report.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "Overall: %s\n\n", report.Overall)
	for _, name := range names {
		s := report.Services[name]
		icon := "\033[32m✓\033[0m"
		switch s.Status {
		case healthStatusUnhealthy:
			icon = "\033[31m✗\033[0m"
		case healthStatusSkipped:
			icon = "-"
		}
		fmt.Fprintf(w, "  %s %-9s %s", icon, name, s.Status)
		if s.Target != "" {
			fmt.Fprintf(w, "  %s", s.Target)
		}
		if s.Latency != "" {
			fmt.Fprintf(w, "  (%s)", s.Latency)
		}
		fmt.Fprintln(w)
		if s.Details != "" {
			fmt.Fprintf(w, "      %s\n", s.Details)
		}
		if s.Error != "" {
			fmt.Fprintf(w, "      error: %s\n", s.Error)
		}
	}
	return nil
}
