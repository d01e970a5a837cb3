package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/reelkit/config"
	"github.com/otherjamesbrown/reelkit/credentials"
)

// AuthCommandDeps holds the dependencies for auth commands.
type AuthCommandDeps struct {
	Config     *config.CLIConfig
	LoadConfig func() (*config.CLIConfig, error)
	OpenStore  func() (*credentials.Store, error)
	// ReadSecret prompts for the API key without echo.
	ReadSecret func(prompt string) (string, error)
}

// DefaultAuthDeps returns the default dependencies for production use.
func DefaultAuthDeps() *AuthCommandDeps {
	return &AuthCommandDeps{
		LoadConfig: config.LoadConfig,
		OpenStore:  credentials.NewStore,
		ReadSecret: readSecret,
	}
}

func (d *AuthCommandDeps) config() (*config.CLIConfig, error) {
	if d.Config != nil {
		return d.Config, nil
	}
	cfg, err := d.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	d.Config = cfg
	return cfg, nil
}

// NewAuthCommand creates the auth command group.
func NewAuthCommand(deps *AuthCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultAuthDeps()
	}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage render service credentials",
		Long: `Manage API keys for the render service.

Keys are stored per render target (the gRPC address or HTTP URL) in
~/.reelkit/credentials.yaml, encrypted with a key from the system keyring,
REELKIT_ENCRYPTION_KEY or a passphrase (REELKIT_PASSPHRASE).

REELKIT_API_KEY takes precedence over stored credentials.`,
	}

	cmd.AddCommand(newAuthLoginCommand(deps))
	cmd.AddCommand(newAuthLogoutCommand(deps))
	cmd.AddCommand(newAuthStatusCommand(deps))
	return cmd
}

func newAuthLoginCommand(deps *AuthCommandDeps) *cobra.Command {
	var (
		apiKey         string
		target         string
		nonInteractive bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key for the render service",
		Long: `Store an API key for the render service.

Examples:
  # Interactive login (prompts for the key)
  reelkit auth login

  # Login with a key for a specific renderer
  reelkit auth login --api-key rk-abc123... --target render.example.com:443`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return err
			}
			if target == "" {
				target = renderTarget(cfg)
			}
			out := cmd.OutOrStdout()

			if apiKey == "" {
				if env := os.Getenv(credentials.EnvAPIKey); env != "" {
					apiKey = env
					fmt.Fprintf(out, "Using API key from %s environment variable\n", credentials.EnvAPIKey)
				}
			}
			if apiKey == "" {
				if nonInteractive {
					return fmt.Errorf("no API key provided and --non-interactive flag set")
				}
				if apiKey, err = deps.ReadSecret(fmt.Sprintf("API key for %s: ", target)); err != nil {
					return fmt.Errorf("reading API key: %w", err)
				}
			}
			if err := validateAPIKey(apiKey); err != nil {
				return fmt.Errorf("invalid credentials: %w", err)
			}

			store, err := deps.OpenStore()
			if err != nil {
				return fmt.Errorf("initializing credential store: %w", err)
			}
			if err := store.Save(target, credentials.Entry{APIKey: apiKey, Transport: string(cfg.Transport)}); err != nil {
				return fmt.Errorf("saving credentials: %w", err)
			}

			fmt.Fprintln(out, "Login successful!")
			fmt.Fprintf(out, "  Target:  %s\n", target)
			fmt.Fprintf(out, "  API Key: %s\n", credentials.MaskAPIKey(apiKey))
			fmt.Fprintf(out, "\nCredentials stored in: %s (key: %s)\n", store.Path(), store.KeyStorage())
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for the render service")
	cmd.Flags().StringVar(&target, "target", "", "Render target (default: the configured renderer)")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Fail instead of prompting for input")
	return cmd
}

func newAuthLogoutCommand(deps *AuthCommandDeps) *cobra.Command {
	var (
		target string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return err
			}
			store, err := deps.OpenStore()
			if err != nil {
				return fmt.Errorf("initializing credential store: %w", err)
			}
			out := cmd.OutOrStdout()

			targets := []string{target}
			if target == "" {
				targets = []string{renderTarget(cfg)}
			}
			if all {
				if targets, err = store.Targets(); err != nil {
					return err
				}
			}
			if len(targets) == 0 {
				fmt.Fprintln(out, "No stored credentials found.")
				return nil
			}
			for _, t := range targets {
				if err := store.Delete(t); err != nil {
					return fmt.Errorf("removing credentials for %s: %w", t, err)
				}
				fmt.Fprintf(out, "Logged out of %s\n", t)
			}
			if os.Getenv(credentials.EnvAPIKey) != "" {
				fmt.Fprintf(out, "\nNote: %s environment variable is still set.\n", credentials.EnvAPIKey)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Render target (default: the configured renderer)")
	cmd.Flags().BoolVar(&all, "all", false, "Remove credentials for every target")
	return cmd
}

func newAuthStatusCommand(deps *AuthCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return err
			}
			store, err := deps.OpenStore()
			if err != nil {
				return fmt.Errorf("initializing credential store: %w", err)
			}
			out := cmd.OutOrStdout()

			current := renderTarget(cfg)
			fmt.Fprintf(out, "Render target: %s (%s)\n", current, cfg.Transport)
			if env := os.Getenv(credentials.EnvAPIKey); env != "" {
				fmt.Fprintf(out, "Source:        %s (%s)\n", credentials.EnvAPIKey, credentials.MaskAPIKey(env))
			}

			targets, err := store.Targets()
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				fmt.Fprintln(out, "No stored credentials.")
				return nil
			}
			fmt.Fprintln(out, "\nStored credentials:")
			for _, t := range targets {
				e, err := store.Load(t)
				if err != nil {
					if errors.Is(err, credentials.ErrNoCredentials) {
						continue
					}
					fmt.Fprintf(out, "  %s  (unreadable: %v)\n", t, err)
					continue
				}
				marker := " "
				if t == current {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-40s %s  updated %s\n", marker, t, credentials.MaskAPIKey(e.APIKey),
					e.LastUpdated.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

// validateAPIKey performs basic validation on an API key.
func validateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("API key is empty")
	}
	if len(key) < 8 {
		return fmt.Errorf("API key is too short")
	}
	if strings.ContainsAny(key, " \t\r\n") {
		return fmt.Errorf("API key contains whitespace")
	}
	return nil
}

// readSecret prompts on stderr and reads without echo, falling back to a
// plain line read when stdin is not a terminal.
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
	return strings.TrimSpace(string(b)), nil
}
