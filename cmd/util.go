// Package cmd provides CLI commands for the reelkit tool.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/reelkit/config"
	"github.com/otherjamesbrown/reelkit/credentials"
	"github.com/otherjamesbrown/reelkit/pkg/db"
	"github.com/otherjamesbrown/reelkit/pkg/events"
	"github.com/otherjamesbrown/reelkit/pkg/layers"
	"github.com/otherjamesbrown/reelkit/pkg/layout"
	"github.com/otherjamesbrown/reelkit/pkg/logging"
	"github.com/otherjamesbrown/reelkit/pkg/observability"
	"github.com/otherjamesbrown/reelkit/pkg/session"
	"github.com/otherjamesbrown/reelkit/pkg/timebase"
	"github.com/otherjamesbrown/reelkit/pkg/transcript"
)

// connectToDatabase opens the project store pool. REELKIT_DB_* variables
// seed the settings and the config file's database block overrides them.
func connectToDatabase(ctx context.Context, cfg *config.CLIConfig) (*pgxpool.Pool, error) {
	dbCfg := db.ConfigFromEnv()
	if cfg.Database.IsConfigured() {
		d := cfg.Database
		dbCfg.Apply(d.Host, d.Port, d.Database, d.User, d.Password, d.SSLMode)
	}
	pool, err := db.Connect(ctx, dbCfg)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// connectToBroker dials Redis when it is configured. A nil broker means
// events are not published.
func connectToBroker(ctx context.Context, cfg *config.CLIConfig) (events.Broker, func(), error) {
	if !cfg.Redis.IsConfigured() {
		return nil, func() {}, nil
	}
	client, err := events.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, func() {}, err
	}
	return client, func() { _ = client.Close() }, nil
}

// renderTarget is the credentials key of the configured render service.
func renderTarget(cfg *config.CLIConfig) string {
	if cfg.Transport == config.TransportHTTP {
		return cfg.RenderURL
	}
	return cfg.RenderAddress
}

// loadAPIKey returns the stored API key of the configured render service.
// A missing store is not an error; the request goes out unauthenticated.
func loadAPIKey(cfg *config.CLIConfig) (string, error) {
	store, err := credentials.NewStore()
	if err != nil {
		return "", err
	}
	return store.APIKey(renderTarget(cfg))
}

// newLogger builds the command logger. Debug mode lowers the level.
func newLogger(cfg *config.CLIConfig, stderr io.Writer) logging.Logger {
	lc := logging.DefaultConfig()
	lc.Output = stderr
	lc.Level = logging.LevelWarn
	if cfg.Debug {
		lc.Level = logging.LevelDebug
	}
	return logging.NewLogger(lc)
}

// sessionConfig maps the editor settings onto a session configuration.
func sessionConfig(cfg *config.CLIConfig) (session.Config, error) {
	preset, err := layout.ParsePreset(cfg.Editor.DefaultPreset)
	if err != nil {
		return session.Config{}, err
	}
	build := transcript.DefaultBuildOptions()
	if cfg.Editor.MaxChunkChars > 0 {
		build.MaxChunkChars = cfg.Editor.MaxChunkChars
	}
	if cfg.Editor.MaxChunkWords > 0 {
		build.MaxChunkWords = cfg.Editor.MaxChunkWords
	}
	if cfg.Editor.MaxGap > 0 {
		build.MaxGap = cfg.Editor.MaxGap
	}
	if cfg.Editor.Epsilon > 0 {
		build.Epsilon = cfg.Editor.Epsilon
	}
	return session.Config{
		Preset:     preset,
		Variant:    layout.VariantExport,
		Limits:     layout.Limits{MaxWidth: cfg.Editor.MaxWidth, MaxHeight: cfg.Editor.MaxHeight},
		Build:      build,
		ChunkDelay: cfg.Editor.ChunkDelay,
		TitleDelay: cfg.Editor.TitleDelay,
	}, nil
}

// editorOptions are the session flags shared by preview, export and
// project save.
type editorOptions struct {
	preset    string
	title     string
	video     string
	videoSize string
	images    []string
	imageSize string
	bgColor   string
	noSubs    bool
}

func (o *editorOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.preset, "preset", "", "Aspect ratio preset: 1:1, 16:9, 9:16, 4:5")
	cmd.Flags().StringVar(&o.title, "title", "", "Show the title layer with this text")
	cmd.Flags().StringVar(&o.video, "video", "", "Path of the source video")
	cmd.Flags().StringVar(&o.videoSize, "video-size", "1920x1080", "Intrinsic size of the source video")
	cmd.Flags().StringSliceVar(&o.images, "image", nil, "Image overlay to add (repeatable)")
	cmd.Flags().StringVar(&o.imageSize, "image-size", "", "Intrinsic size of the image overlays")
	cmd.Flags().StringVar(&o.bgColor, "background", "", "Canvas background color")
	cmd.Flags().BoolVar(&o.noSubs, "no-subtitles", false, "Hide the subtitle layer")
}

// openEditor opens a session on a paused clock spanning the transcript.
// The returned image names are the layer names of o.images, in order.
func openEditor(cfg *config.CLIConfig, src *transcript.Source, o editorOptions, metrics *observability.EditorMetrics, logger logging.Logger) (*session.Editor, *timebase.Clock, []string, error) {
	sc, err := sessionConfig(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if o.preset != "" {
		if sc.Preset, err = layout.ParsePreset(o.preset); err != nil {
			return nil, nil, nil, err
		}
	}
	if o.video != "" {
		intrinsic, err := layout.ParseSize(o.videoSize)
		if err != nil {
			return nil, nil, nil, err
		}
		sc.Video = layers.Media{URL: o.video, FileName: filepath.Base(o.video), Intrinsic: intrinsic}
	}
	if o.title != "" {
		sc.TitleEnabled = true
		sc.TitleText = o.title
	}
	sc.Metrics = metrics
	sc.Logger = logger

	clock := timebase.NewClock(sourceDuration(src), 50*time.Millisecond)
	ed, err := session.Open(sc, clock, src)
	if err != nil {
		return nil, nil, nil, err
	}

	var imageNames []string
	if len(o.images) > 0 {
		var intrinsic layout.Size
		if o.imageSize != "" {
			if intrinsic, err = layout.ParseSize(o.imageSize); err != nil {
				_ = ed.Close()
				return nil, nil, nil, err
			}
		}
		for _, path := range o.images {
			name, err := ed.AddImage(filepath.Base(path), layers.Media{URL: path, Intrinsic: intrinsic})
			if err != nil {
				_ = ed.Close()
				return nil, nil, nil, err
			}
			imageNames = append(imageNames, name)
		}
	}
	if o.bgColor != "" {
		if err := ed.SetBackgroundColor(o.bgColor); err != nil {
			_ = ed.Close()
			return nil, nil, nil, err
		}
	}
	if o.noSubs {
		if err := ed.SetSubtitleEnabled(false); err != nil {
			_ = ed.Close()
			return nil, nil, nil, err
		}
	}
	return ed, clock, imageNames, nil
}

// sourceDuration is the end of the last word of src.
func sourceDuration(src *transcript.Source) float64 {
	var end float64
	for _, seg := range src.Segments {
		for _, w := range seg.WordList() {
			end = max(end, w.End)
		}
	}
	return end
}

// newMetrics registers editor metrics on a private registry. A CLI run is
// too short-lived to be scraped.
func newMetrics() *observability.EditorMetrics {
	return observability.NewEditorMetrics(prometheus.NewRegistry())
}

// outputFormat resolves the --output flag against the configured default.
func outputFormat(cfg *config.CLIConfig, flag string) config.OutputFormat {
	if flag != "" {
		return config.OutputFormat(flag)
	}
	return cfg.OutputFormat
}

// writeStructured encodes v as JSON or YAML. It reports false for text
// output so the caller can print its own table.
func writeStructured(w io.Writer, format config.OutputFormat, v any) (bool, error) {
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case config.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return true, enc.Encode(v)
	default:
		return false, nil
	}
}

// openOutput returns stdout for "" or "-", otherwise creates path.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, f.Close, nil
}

// truncateString truncates s to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
