// Package main provides the reelkit CLI entry point.
// reelkit builds subtitled video reels from transcripts and hands them to a
// render service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/reelkit/cmd"
	"github.com/otherjamesbrown/reelkit/config"
	"github.com/otherjamesbrown/reelkit/pkg/audit"
	"github.com/otherjamesbrown/reelkit/pkg/buildinfo"
	"github.com/otherjamesbrown/reelkit/pkg/layout"
	"github.com/otherjamesbrown/reelkit/pkg/logging"
)

// Global flags and state.
var (
	transport    string
	renderAddr   string
	renderURL    string
	timeout      time.Duration
	outputFormat string
	debug        bool
	insecure     bool

	// cfg holds the loaded configuration with flag overrides applied.
	cfg *config.CLIConfig

	cmdStartTime time.Time
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "reelkit",
	Short: "reelkit - build subtitled video reels from transcripts",
	Long: `reelkit is the command-line interface for the reel editor.

It turns a word-timed transcript into subtitle chunks, lays the video,
images, title and subtitles out on a preset canvas, and exports the
result as a render document for the render service.

COMMON WORKFLOWS:
  Inspect a transcript:  reelkit transcript show talk.json
  Subtitle track:        reelkit transcript srt talk.json --out talk.srt
  Preview highlighting:  reelkit preview talk.json --from 0 --to 10
  Save a project:        reelkit project save "launch" talk.json --video talk.mp4
  Render a reel:         reelkit export talk.json --project launch --submit

DISCOVERY:
  reelkit <command> --help    Subcommands, flags and examples for any command
  reelkit layout              List canvas presets
  reelkit health              Render service and backend status`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cmdStartTime = time.Now()

		if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		loaded, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if err := applyFlagOverrides(loaded); err != nil {
			return err
		}
		cfg = loaded

		level := logging.LevelWarn
		if cfg.Debug {
			level = logging.LevelDebug
		}
		logging.SetGlobal(logging.NewLogger(&logging.Config{
			Level:     level,
			Component: "reelkit",
			Output:    os.Stderr,
		}))
		return nil
	},
}

// applyFlagOverrides copies global flags onto c and revalidates it.
func applyFlagOverrides(c *config.CLIConfig) error {
	if transport != "" {
		c.Transport = config.Transport(transport)
	}
	if renderAddr != "" {
		c.RenderAddress = renderAddr
	}
	if renderURL != "" {
		c.RenderURL = renderURL
	}
	if timeout != 0 {
		c.Timeout = timeout
	}
	if outputFormat != "" {
		c.OutputFormat = config.OutputFormat(outputFormat)
	}
	if debug {
		c.Debug = true
	}
	if insecure {
		c.Insecure = true
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// loadedConfig hands subcommands the configuration prepared by the root
// command, falling back to a fresh load when they run standalone.
func loadedConfig() (*config.CLIConfig, error) {
	if cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig()
}

var versionOutput string

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash and build time of the reelkit CLI.

Examples:
  reelkit version
  reelkit version --output json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Get("reelkit")
		out := cmd.OutOrStdout()
		switch config.OutputFormat(versionOutput) {
		case config.OutputFormatJSON, config.OutputFormatYAML:
			return writeVersion(out, config.OutputFormat(versionOutput), info)
		}
		fmt.Fprintf(out, "reelkit version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  go:         %s (%s)\n", info.GoVersion, info.Platform)
		return nil
	},
}

// configCmd manages CLI configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `View and modify the reelkit configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		configPath, _ := config.ConfigPath()
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintf(out, "  Config file:     %s\n", configPath)
		fmt.Fprintf(out, "  Transport:       %s\n", c.Transport)
		fmt.Fprintf(out, "  Render address:  %s\n", c.RenderAddress)
		fmt.Fprintf(out, "  Render URL:      %s\n", c.RenderURL)
		fmt.Fprintf(out, "  Timeout:         %s\n", c.Timeout)
		fmt.Fprintf(out, "  Output format:   %s\n", c.OutputFormat)
		fmt.Fprintf(out, "  Debug:           %t\n", c.Debug)
		fmt.Fprintf(out, "  Insecure:        %t\n", c.Insecure)
		fmt.Fprintln(out, "\nEditor:")
		fmt.Fprintf(out, "  Default preset:  %s\n", c.Editor.DefaultPreset)
		fmt.Fprintf(out, "  Max box:         %gx%g\n", c.Editor.MaxWidth, c.Editor.MaxHeight)
		fmt.Fprintf(out, "  Epsilon:         %g\n", c.Editor.Epsilon)
		fmt.Fprintf(out, "  SRT mode:        %s\n", c.Editor.SRTMode)
		fmt.Fprintln(out, "\nBackends:")
		fmt.Fprintf(out, "  Project store:   %s\n", configuredOrNot(c.Database.IsConfigured()))
		fmt.Fprintf(out, "  Event bus:       %s\n", configuredOrNot(c.Redis.IsConfigured()))
		fmt.Fprintf(out, "  Audit log:       %s\n", configuredOrNot(c.Audit.IsConfigured()))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}
		out := cmd.OutOrStdout()
		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", configPath)
			fmt.Fprintln(out, "Use 'reelkit config show' to view current settings.")
			return nil
		}

		defaultCfg := config.DefaultConfig()
		if err := config.SaveConfig(defaultCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}
		fmt.Fprintf(out, "Created configuration file: %s\n", configPath)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Available keys:
  transport              - grpc or http
  render_address         - gRPC render service address (host:port)
  render_url             - HTTP render endpoint base URL
  timeout                - Request timeout (e.g., 30s, 1m)
  output_format          - Default output format (text, json, yaml)
  debug                  - Enable debug logging (true/false)
  insecure               - Disable TLS verification (true/false)
  editor.default_preset  - Canvas preset (e.g., 16:9)
  editor.srt_mode        - standard or legacy-hundredths

Examples:
  reelkit config set transport http
  reelkit config set render_url https://render.example.com
  reelkit config set editor.default_preset 9:16`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		current, err := config.LoadConfig()
		if err != nil {
			current = config.DefaultConfig()
		}
		if err := setConfigValue(current, args[0], args[1]); err != nil {
			return err
		}
		if err := current.Validate(); err != nil {
			return err
		}
		if err := config.SaveConfig(current); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
		return nil
	},
}

// setConfigValue assigns value to the dotted key in c.
func setConfigValue(c *config.CLIConfig, key, value string) error {
	switch key {
	case "transport":
		c.Transport = config.Transport(value)
	case "render_address":
		c.RenderAddress = value
	case "render_url":
		c.RenderURL = value
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		c.Timeout = d
	case "output_format":
		f := config.OutputFormat(value)
		if !f.IsValid() {
			return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", value)
		}
		c.OutputFormat = f
	case "debug", "insecure":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s value: %s (must be true or false)", key, value)
		}
		if key == "debug" {
			c.Debug = b
		} else {
			c.Insecure = b
		}
	case "editor.default_preset":
		if _, err := layout.ParsePreset(value); err != nil {
			return err
		}
		c.Editor.DefaultPreset = value
	case "editor.srt_mode":
		c.Editor.SRTMode = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func writeVersion(w io.Writer, format config.OutputFormat, info buildinfo.Info) error {
	if format == config.OutputFormatYAML {
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(info)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func configuredOrNot(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for reelkit.

Bash:
  $ source <(reelkit completion bash)

Zsh:
  $ reelkit completion zsh > "${fpath[1]}/_reelkit"

Fish:
  $ reelkit completion fish | source

PowerShell:
  PS> reelkit completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "", "render transport: grpc or http")
	rootCmd.PersistentFlags().StringVar(&renderAddr, "render-address", "", "gRPC render service address (host:port)")
	rootCmd.PersistentFlags().StringVar(&renderURL, "render-url", "", "HTTP render endpoint base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "request timeout (e.g., 30s, 1m)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "", "output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&insecure, "insecure", false, "disable TLS verification")

	rootCmd.AddGroup(
		&cobra.Group{ID: "edit", Title: "Editing:"},
		&cobra.Group{ID: "projects", Title: "Projects & Rendering:"},
		&cobra.Group{ID: "ops", Title: "Operations:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	// Editing
	transcriptDeps := cmd.DefaultTranscriptDeps()
	transcriptDeps.LoadConfig = loadedConfig
	transcriptCmd := cmd.NewTranscriptCommand(transcriptDeps)
	transcriptCmd.GroupID = "edit"
	rootCmd.AddCommand(transcriptCmd)

	layoutDeps := cmd.DefaultLayoutDeps()
	layoutDeps.LoadConfig = loadedConfig
	layoutCmd := cmd.NewLayoutCommand(layoutDeps)
	layoutCmd.GroupID = "edit"
	rootCmd.AddCommand(layoutCmd)

	previewDeps := cmd.DefaultPreviewDeps()
	previewDeps.LoadConfig = loadedConfig
	previewCmd := cmd.NewPreviewCommand(previewDeps)
	previewCmd.GroupID = "edit"
	rootCmd.AddCommand(previewCmd)

	// Projects & Rendering
	projectDeps := cmd.DefaultProjectDeps()
	projectDeps.LoadConfig = loadedConfig
	projectCmd := cmd.NewProjectCommand(projectDeps)
	projectCmd.GroupID = "projects"
	rootCmd.AddCommand(projectCmd)

	exportDeps := cmd.DefaultExportDeps()
	exportDeps.LoadConfig = loadedConfig
	exportCmd := cmd.NewExportCommand(exportDeps)
	exportCmd.GroupID = "projects"
	rootCmd.AddCommand(exportCmd)

	// Operations
	healthDeps := cmd.DefaultHealthDeps()
	healthDeps.LoadConfig = loadedConfig
	healthCmd := cmd.NewHealthCommand(healthDeps)
	healthCmd.GroupID = "ops"
	rootCmd.AddCommand(healthCmd)

	dbDeps := cmd.DefaultDbDeps()
	dbDeps.LoadConfig = loadedConfig
	dbCmd := cmd.NewDbCommand(dbDeps)
	dbCmd.GroupID = "ops"
	rootCmd.AddCommand(dbCmd)

	auditDeps := cmd.DefaultAuditDeps()
	auditDeps.LoadConfig = loadedConfig
	auditCmd := cmd.NewAuditCommand(auditDeps)
	auditCmd.GroupID = "ops"
	rootCmd.AddCommand(auditCmd)

	// Setup
	authDeps := cmd.DefaultAuthDeps()
	authDeps.LoadConfig = loadedConfig
	authCmd := cmd.NewAuthCommand(authDeps)
	authCmd.GroupID = "setup"
	rootCmd.AddCommand(authCmd)

	configCmd.GroupID = "setup"
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)

	completionCmd.GroupID = "setup"
	rootCmd.AddCommand(completionCmd)

	versionCmd.GroupID = "setup"
	versionCmd.Flags().StringVarP(&versionOutput, "output", "o", "", "Output format: text, json, yaml")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmdErr := rootCmd.ExecuteContext(ctx)

	// Recorded here so both success and failure reach the audit log.
	logCommandExecution(os.Args, cmdErr)

	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", cmdErr)
		os.Exit(1)
	}
}

// logCommandExecution writes the invocation to the audit log when one is
// configured. Failures are reported in debug mode only.
func logCommandExecution(args []string, cmdErr error) {
	if cfg == nil || !cfg.Audit.IsConfigured() {
		return
	}
	if len(args) > 1 {
		switch args[1] {
		case "version", "help", "completion", "audit":
			return
		}
	}

	entry := &audit.Entry{
		Command:     getCommandName(args),
		Args:        getCommandArgs(args),
		FullCommand: strings.Join(args, " "),
		DurationMs:  int(time.Since(cmdStartTime).Milliseconds()),
		Success:     cmdErr == nil,
	}
	if cmdErr != nil {
		entry.ErrorMessage = cmdErr.Error()
	}

	log, err := audit.Open(cfg.Audit)
	if err != nil {
		if cfg.Debug {
			fmt.Fprintf(os.Stderr, "Warning: failed to open audit log: %v\n", err)
		}
		return
	}
	defer log.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := log.Record(ctx, entry); err != nil && cfg.Debug {
		fmt.Fprintf(os.Stderr, "Warning: failed to record command: %v\n", err)
	}
}

// getCommandName extracts the command name from args (e.g., "export" from ["reelkit", "export", "talk.json"]).
func getCommandName(args []string) string {
	for i := 1; i < len(args); i++ {
		if !strings.HasPrefix(args[i], "-") {
			return args[i]
		}
	}
	return "reelkit"
}

// getCommandArgs extracts the arguments after the command name.
func getCommandArgs(args []string) []string {
	for i := 1; i < len(args); i++ {
		if !strings.HasPrefix(args[i], "-") {
			if i+1 >= len(args) {
				return nil
			}
			return args[i+1:]
		}
	}
	return nil
}
