package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/reelkit/config"
	"github.com/otherjamesbrown/reelkit/pkg/events"
	"github.com/otherjamesbrown/reelkit/pkg/export"
	"github.com/otherjamesbrown/reelkit/pkg/logging"
	"github.com/otherjamesbrown/reelkit/pkg/observability"
	"github.com/otherjamesbrown/reelkit/pkg/projects"
)

// ProjectStore is the project persistence used by the CLI.
type ProjectStore interface {
	Save(ctx context.Context, doc *export.SaveDocument) (*projects.Project, error)
	Get(ctx context.Context, idOrName string) (*projects.Project, error)
	Delete(ctx context.Context, idOrName string) error
	List(ctx context.Context, filter projects.Filter) ([]*projects.Project, error)
	RecordRenderJob(ctx context.Context, job projects.RenderJob) error
}

// ProjectCommandDeps holds the dependencies for project commands.
type ProjectCommandDeps struct {
	Config        *config.CLIConfig
	LoadConfig    func() (*config.CLIConfig, error)
	OpenProjects  func(context.Context, *config.CLIConfig, logging.Logger) (ProjectStore, func(), error)
	ConnectBroker func(context.Context, *config.CLIConfig) (events.Broker, func(), error)
}

// DefaultProjectDeps returns the default dependencies for production use.
func DefaultProjectDeps() *ProjectCommandDeps {
	return &ProjectCommandDeps{
		LoadConfig:    config.LoadConfig,
		OpenProjects:  openProjectStore,
		ConnectBroker: connectToBroker,
	}
}

// openProjectStore connects to the database and returns the repository.
func openProjectStore(ctx context.Context, cfg *config.CLIConfig, logger logging.Logger) (ProjectStore, func(), error) {
	pool, err := connectToDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	return projects.NewRepository(pool, logger), pool.Close, nil
}

func (d *ProjectCommandDeps) config() (*config.CLIConfig, error) {
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

// NewProjectCommand creates the root project command with all subcommands.
func NewProjectCommand(deps *ProjectCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultProjectDeps()
	}

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Save and manage editor projects",
		Long: `Save and manage editor projects.

A project is the saved state of the editor canvas: aspect ratio, background,
the title, subtitle and video layers and the image overlays. Projects are
stored in the reelkit database (database block of the config file or
REELKIT_DB_* variables) and can be restored with 'reelkit export --project'.

When an event bus is configured (redis.addr), saving a project publishes a
project saved event.

Examples:
  # Save a portrait project with a title
  reelkit project save launch interview.json --preset 9:16 --title "Launch day"

  # List projects
  reelkit project list

  # Show one project as JSON
  reelkit project show launch -o json`,
		Aliases: []string{"proj", "projects"},
	}

	cmd.AddCommand(newProjectSaveCommand(deps))
	cmd.AddCommand(newProjectListCommand(deps))
	cmd.AddCommand(newProjectShowCommand(deps))
	cmd.AddCommand(newProjectDeleteCommand(deps))

	return cmd
}

func newProjectSaveCommand(deps *ProjectCommandDeps) *cobra.Command {
	var (
		opts     editorOptions
		edits    []string
		fromFile string
		out      string
	)

	cmd := &cobra.Command{
		Use:   "save <name> [transcript]",
		Short: "Save the editor state as a project",
		Long: `Save the editor state as a project.

The canvas is built from the transcript and the editor flags. With --file
an existing save document is stored instead and no transcript is needed.
With --out the document is written to a file and the database is not used.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logger := newLogger(cfg, cmd.ErrOrStderr())
			metrics := newMetrics()

			var doc *export.SaveDocument
			switch {
			case fromFile != "":
				if doc, err = readSaveDocument(fromFile); err != nil {
					return err
				}
				doc.ProjectName = args[0]
			case len(args) == 2:
				src, err := loadSource(args[1])
				if err != nil {
					return err
				}
				ed, _, _, err := openEditor(cfg, src, opts, metrics, logger)
				if err != nil {
					return err
				}
				defer ed.Close()
				if err := editChunks(ed, edits); err != nil {
					return err
				}
				if doc, err = ed.Save(ctx, args[0]); err != nil {
					return err
				}
			default:
				return fmt.Errorf("a transcript or --file is required")
			}

			if out != "" {
				w, done, err := openOutput(cmd, out)
				if err != nil {
					return err
				}
				if err := writeJSON(w, doc); err != nil {
					_ = done()
					return err
				}
				return done()
			}

			store, closeStore, err := deps.OpenProjects(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			p, err := store.Save(ctx, doc)
			if err != nil {
				metrics.RecordProjectSaved(observability.StatusFailed)
				return err
			}
			metrics.RecordProjectSaved(observability.StatusSuccess)

			publishEvent(ctx, deps.ConnectBroker, cfg, logger, func(pub *events.Publisher) error {
				return pub.PublishProjectSaved(ctx, events.ProjectSavedEvent{
					ProjectID:   p.ID.String(),
					ProjectName: p.Name,
					AspectRatio: p.AspectRatio,
					ImageCount:  len(doc.Layers.Images),
				})
			})

			fmt.Fprintf(cmd.OutOrStdout(), "Saved project %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringArrayVar(&edits, "edit", nil, "Replace chunk text: N=TEXT (repeatable)")
	cmd.Flags().StringVar(&fromFile, "file", "", "Store an existing save document")
	cmd.Flags().StringVar(&out, "out", "", "Write the save document to a file instead of the database")
	return cmd
}

func newProjectListCommand(deps *ProjectCommandDeps) *cobra.Command {
	var (
		search string
		limit  int
		offset int
		output string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, closeStore, err := deps.OpenProjects(ctx, cfg, newLogger(cfg, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer closeStore()

			list, err := store.List(ctx, projects.Filter{NameSearch: search, Limit: limit, Offset: offset})
			if err != nil {
				return err
			}
			summaries := make([]projectSummary, 0, len(list))
			for _, p := range list {
				summaries = append(summaries, summarize(p))
			}
			if done, err := writeStructured(cmd.OutOrStdout(), outputFormat(cfg, output), summaries); done {
				return err
			}
			return outputProjectsText(cmd.OutOrStdout(), summaries)
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Filter by name substring")
	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "Maximum number of projects")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of projects to skip")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func newProjectShowCommand(deps *ProjectCommandDeps) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show a saved project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, closeStore, err := deps.OpenProjects(ctx, cfg, newLogger(cfg, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer closeStore()

			p, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if done, err := writeStructured(cmd.OutOrStdout(), outputFormat(cfg, output), p.Document); done {
				return err
			}
			return outputProjectText(cmd.OutOrStdout(), p)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func newProjectDeleteCommand(deps *ProjectCommandDeps) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a saved project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return err
			}
			if !force && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete project %s? (y/N): ", args[0])) {
				fmt.Fprintln(cmd.OutOrStdout(), "Delete cancelled.")
				return nil
			}
			ctx := cmd.Context()
			store, closeStore, err := deps.OpenProjects(ctx, cfg, newLogger(cfg, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation")
	return cmd
}

// projectSummary is the list view of a project.
type projectSummary struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	AspectRatio string    `json:"aspect_ratio" yaml:"aspect_ratio"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

func summarize(p *projects.Project) projectSummary {
	return projectSummary{ID: p.ID.String(), Name: p.Name, AspectRatio: p.AspectRatio, UpdatedAt: p.UpdatedAt}
}

func outputProjectsText(w io.Writer, list []projectSummary) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "No projects found.")
		return nil
	}
	fmt.Fprintln(w, "  ID                                    NAME                            RATIO  UPDATED")
	fmt.Fprintln(w, "  --                                    ----                            -----  -------")
	for _, p := range list {
		fmt.Fprintf(w, "  %-36s  %-30s  %-5s  %s\n",
			p.ID, truncateString(p.Name, 30), p.AspectRatio, p.UpdatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "\nTotal: %d project(s)\n", len(list))
	return nil
}

func outputProjectText(w io.Writer, p *projects.Project) error {
	fmt.Fprintf(w, "Project:  %s\n", p.Name)
	fmt.Fprintf(w, "ID:       %s\n", p.ID)
	fmt.Fprintf(w, "Ratio:    %s\n", p.AspectRatio)
	fmt.Fprintf(w, "Updated:  %s\n", p.UpdatedAt.Format("2006-01-02 15:04:05"))
	if p.Document == nil {
		return nil
	}
	l := p.Document.Layers
	fmt.Fprintf(w, "Canvas:   %.0fx%.0f %s\n", l.Canvas.Width, l.Canvas.Height, l.Canvas.BackgroundColor)
	if l.Title != nil {
		state := "shown"
		if l.Title.Index < 0 {
			state = "hidden"
		}
		fmt.Fprintf(w, "Title:    %q (%s)\n", l.Title.Text, state)
	}
	if l.Video != nil {
		fmt.Fprintf(w, "Video:    %s\n", l.Video.URL)
	}
	fmt.Fprintf(w, "Images:   %d\n", len(l.Images))
	return nil
}

// readSaveDocument decodes a save document from a JSON file.
func readSaveDocument(path string) (*export.SaveDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening save document: %w", err)
	}
	defer f.Close()
	var doc export.SaveDocument
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding save document %s: %w", path, err)
	}
	return &doc, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// publishEvent publishes through the configured event bus. Publishing is
// best effort: failures are logged and never fail the command.
func publishEvent(ctx context.Context, connect func(context.Context, *config.CLIConfig) (events.Broker, func(), error), cfg *config.CLIConfig, logger logging.Logger, fn func(*events.Publisher) error) {
	if connect == nil {
		return
	}
	broker, closeBroker, err := connect(ctx, cfg)
	if err != nil {
		logger.Warn("event bus unavailable", logging.Err(err))
		return
	}
	defer closeBroker()
	if broker == nil {
		return
	}
	if err := fn(events.NewPublisher(broker, logger)); err != nil {
		logger.Warn("event not published", logging.Err(err))
	}
}

// confirm prompts on out and reads a y/N answer from in.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(line), "y")
}
