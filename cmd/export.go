package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/reelkit/client"
	"github.com/otherjamesbrown/reelkit/config"
	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
	"github.com/otherjamesbrown/reelkit/pkg/events"
	"github.com/otherjamesbrown/reelkit/pkg/export"
	"github.com/otherjamesbrown/reelkit/pkg/jobid"
	"github.com/otherjamesbrown/reelkit/pkg/layers"
	"github.com/otherjamesbrown/reelkit/pkg/logging"
	"github.com/otherjamesbrown/reelkit/pkg/observability"
	"github.com/otherjamesbrown/reelkit/pkg/projects"
	"github.com/otherjamesbrown/reelkit/pkg/session"
)

// ExportCommandDeps holds the dependencies for the export command.
type ExportCommandDeps struct {
	Config        *config.CLIConfig
	LoadConfig    func() (*config.CLIConfig, error)
	OpenProjects  func(context.Context, *config.CLIConfig, logging.Logger) (ProjectStore, func(), error)
	ConnectBroker func(context.Context, *config.CLIConfig) (events.Broker, func(), error)
	APIKey        func(*config.CLIConfig) (string, error)
	NewSubmitter  func(context.Context, *config.CLIConfig, string) (client.Submitter, client.Health, client.Closer, error)
	Retry         *client.RetryPolicy
}

// DefaultExportDeps returns the default dependencies for production use.
func DefaultExportDeps() *ExportCommandDeps {
	return &ExportCommandDeps{
		LoadConfig:    config.LoadConfig,
		OpenProjects:  openProjectStore,
		ConnectBroker: connectToBroker,
		APIKey:        loadAPIKey,
		NewSubmitter:  client.NewSubmitter,
	}
}

// ExportResult is printed after a submission.
type ExportResult struct {
	ExportName string             `json:"export_name" yaml:"export_name"`
	RequestID  string             `json:"request_id" yaml:"request_id"`
	Layers     int                `json:"layers" yaml:"layers"`
	Submission *client.Submission `json:"submission" yaml:"submission"`
}

// NewExportCommand creates the export command.
func NewExportCommand(deps *ExportCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultExportDeps()
	}
	var (
		opts    editorOptions
		edits   []string
		project string
		name    string
		font    string
		out     string
		submit  bool
		output  string
	)

	cmd := &cobra.Command{
		Use:   "export <transcript>",
		Short: "Build the render document and optionally submit it",
		Long: `Build the export document the render service consumes.

The canvas comes from the editor flags or, with --project, from a saved
project. Pending chunk edits (--edit) are applied before serializing.

Without --submit the document is printed (or written to --out). With
--submit the document, the video and the image overlays are sent to the
render service over the configured transport (grpc or http). Transient
failures are retried with backoff. When a database is configured the
render job is recorded; when an event bus is configured export and
submission events are published.

Examples:
  # Print the export document
  reelkit export interview.json --preset 9:16 --title "Launch day"

  # Restore a saved project and submit it
  reelkit export interview.json --project launch --video clip.mp4 --submit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := deps.Config
			if cfg == nil {
				var err error
				if cfg, err = deps.LoadConfig(); err != nil {
					return fmt.Errorf("loading configuration: %w", err)
				}
			}
			ctx := cmd.Context()
			logger := newLogger(cfg, cmd.ErrOrStderr())
			metrics := newMetrics()

			src, err := loadSource(args[0])
			if err != nil {
				return err
			}
			ed, _, _, err := openEditor(cfg, src, opts, metrics, logger)
			if err != nil {
				return err
			}
			defer ed.Close()

			var projectRef *projects.Project
			if project != "" {
				if projectRef, err = restoreProject(ctx, deps, cfg, logger, ed, project); err != nil {
					return err
				}
			}
			if err := editChunks(ed, edits); err != nil {
				return err
			}

			video := videoPath(ed)
			exportOpts := export.Options{Name: name}
			if video != "" {
				exportOpts.Src = filepath.Base(video)
			}
			if font != "" {
				exportOpts.Font = layers.Font{Family: font}
			}
			doc, err := ed.Export(ctx, exportOpts)
			if err != nil {
				return err
			}

			publishEvent(ctx, deps.ConnectBroker, cfg, logger, func(pub *events.Publisher) error {
				return pub.PublishExportRequested(ctx, events.ExportRequestedEvent{
					SessionID:   ed.ID(),
					ExportName:  doc.Name,
					AspectRatio: doc.Canvas.AspectRatio,
					Layers:      len(doc.Layers),
					Cues:        len(ed.Subtitles()),
				})
			})

			if !submit {
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

			result, err := submitExport(ctx, deps, cfg, logger, metrics, doc, video, imagePaths(ed), projectRef)
			if err != nil {
				return err
			}
			if done, err := writeStructured(cmd.OutOrStdout(), outputFormat(cfg, output), result); done {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s: job %s (%s via %s)\n",
				result.ExportName, result.Submission.JobID, result.Submission.Status, result.Submission.Transport)
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringArrayVar(&edits, "edit", nil, "Replace chunk text: N=TEXT (repeatable)")
	cmd.Flags().StringVar(&project, "project", "", "Restore a saved project by ID or name")
	cmd.Flags().StringVar(&name, "name", "reel.mp4", "Output file name of the rendered reel")
	cmd.Flags().StringVar(&font, "font", "", "Font family (default: the editor font)")
	cmd.Flags().StringVar(&out, "out", "", "Write the document to a file (default: stdout)")
	cmd.Flags().BoolVar(&submit, "submit", false, "Submit the reel to the render service")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format of the submission: text, json, yaml")
	return cmd
}

// restoreProject loads a saved project and restores it into ed.
func restoreProject(ctx context.Context, deps *ExportCommandDeps, cfg *config.CLIConfig, logger logging.Logger, ed *session.Editor, idOrName string) (*projects.Project, error) {
	store, closeStore, err := deps.OpenProjects(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer closeStore()
	p, err := store.Get(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	if err := ed.Restore(ctx, p.Document); err != nil {
		return nil, fmt.Errorf("restoring project %s: %w", p.Name, err)
	}
	return p, nil
}

// editChunks applies N=TEXT edits through the debounced edit pipeline.
// They commit on the next flush.
func editChunks(ed *session.Editor, edits []string) error {
	for _, e := range edits {
		n, text, err := parseEdit(e)
		if err != nil {
			return err
		}
		if err := ed.Edit(n, text); err != nil {
			return err
		}
	}
	return nil
}

// videoPath returns the local path of the video layer.
func videoPath(ed *session.Editor) string {
	for _, l := range ed.Layers() {
		if l.Kind == layers.KindVideo {
			return l.Media.URL
		}
	}
	return ""
}

// imagePaths maps image layer names to their local files. Images of a
// restored project whose source is not a local file are skipped.
func imagePaths(ed *session.Editor) map[string]string {
	paths := make(map[string]string)
	for _, l := range ed.Layers() {
		if l.Kind != layers.KindImage || l.Media.URL == "" {
			continue
		}
		if isLocalFile(l.Media.URL) {
			paths[l.Name] = l.Media.URL
		}
	}
	return paths
}

// submitExport sends doc to the render service and records the outcome.
func submitExport(ctx context.Context, deps *ExportCommandDeps, cfg *config.CLIConfig, logger logging.Logger, metrics *observability.EditorMetrics, doc *export.Document, video string, images map[string]string, project *projects.Project) (*ExportResult, error) {
	apiKey, err := deps.APIKey(cfg)
	if err != nil {
		logger.Warn("no stored API key", logging.Err(err))
	}
	next, _, closeSubmitter, err := deps.NewSubmitter(ctx, cfg, apiKey)
	if err != nil {
		return nil, rkerrors.ClassifyError(err, "connect")
	}
	defer closeSubmitter()

	submitter := client.Instrument(next, client.InstrumentOptions{
		Retry:   deps.Retry,
		Metrics: metrics,
		Logger:  logger,
	})

	req := &client.Request{Document: doc, RequestID: jobid.New(jobid.KindExport)}
	var files []*os.File
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	if video != "" && !isLocalFile(video) {
		logger.Warn("video is not a local file, submitting by reference", logging.F("video", video))
		video = ""
	}
	if video != "" {
		f, err := os.Open(video)
		if err != nil {
			return nil, fmt.Errorf("opening video: %w", err)
		}
		files = append(files, f)
		req.Video = &export.MediaFile{FileName: filepath.Base(video), Content: f}
	}
	for _, layerName := range sortedKeys(images) {
		path := images[layerName]
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening image %s: %w", layerName, err)
		}
		files = append(files, f)
		req.Images = append(req.Images, export.MediaFile{Name: layerName, FileName: filepath.Base(path), Content: f})
	}

	start := time.Now()
	sub, submitErr := submitter.Submit(ctx, req)
	elapsed := time.Since(start).Seconds()

	job := projects.RenderJob{
		ExportName: doc.Name,
		Transport:  submitter.Transport(),
		Status:     observability.StatusFailed,
	}
	event := events.RenderSubmittedEvent{
		BaseEvent:  events.BaseEvent{CorrelationID: req.RequestID},
		ExportName: doc.Name,
		Transport:  submitter.Transport(),
		Status:     observability.StatusFailed,
		Seconds:    elapsed,
	}
	if submitErr != nil {
		var ee *rkerrors.ExportError
		if errors.As(submitErr, &ee) {
			code := string(ee.Code)
			job.ErrorCode = code
			event.ErrorCode = &code
		}
		job.ID = req.RequestID
	} else {
		job.ID = sub.JobID
		job.Status = sub.Status
		event.JobID = sub.JobID
		event.Status = sub.Status
	}
	if project != nil {
		job.ProjectID = &project.ID
	}

	recordRenderJob(ctx, deps, cfg, logger, job)
	publishEvent(ctx, deps.ConnectBroker, cfg, logger, func(pub *events.Publisher) error {
		return pub.PublishRenderSubmitted(ctx, event)
	})

	if submitErr != nil {
		return nil, submitErr
	}
	return &ExportResult{
		ExportName: doc.Name,
		RequestID:  req.RequestID,
		Layers:     len(doc.Layers),
		Submission: sub,
	}, nil
}

// recordRenderJob stores job when a database is configured. Failures are
// logged; the submission already happened.
func recordRenderJob(ctx context.Context, deps *ExportCommandDeps, cfg *config.CLIConfig, logger logging.Logger, job projects.RenderJob) {
	if !cfg.Database.IsConfigured() || deps.OpenProjects == nil {
		return
	}
	store, closeStore, err := deps.OpenProjects(ctx, cfg, logger)
	if err != nil {
		logger.Warn("render job not recorded", logging.Err(err))
		return
	}
	defer closeStore()
	if err := store.RecordRenderJob(ctx, job); err != nil {
		logger.Warn("render job not recorded", logging.Err(err))
	}
}

func isLocalFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
