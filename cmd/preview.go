package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/reelkit/config"
	"github.com/otherjamesbrown/reelkit/pkg/layers"
	"github.com/otherjamesbrown/reelkit/pkg/layout"
	"github.com/otherjamesbrown/reelkit/pkg/logging"
	"github.com/otherjamesbrown/reelkit/pkg/session"
	"github.com/otherjamesbrown/reelkit/pkg/transcript"
)

// PreviewCommandDeps holds the dependencies for the preview command.
type PreviewCommandDeps struct {
	Config     *config.CLIConfig
	LoadConfig func() (*config.CLIConfig, error)
}

// DefaultPreviewDeps returns the default dependencies for production use.
func DefaultPreviewDeps() *PreviewCommandDeps {
	return &PreviewCommandDeps{
		LoadConfig: config.LoadConfig,
	}
}

// PreviewEvent is one change observed during headless playback.
type PreviewEvent struct {
	Time float64 `json:"time" yaml:"time"`
	// Kind is "word" for a highlight change and "cue" for a subtitle change.
	Kind string `json:"kind" yaml:"kind"`
	// Word is the global word number, -1 when the highlight cleared.
	Word int    `json:"word" yaml:"word"`
	Text string `json:"text" yaml:"text"`
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand(deps *PreviewCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultPreviewDeps()
	}
	var (
		opts      editorOptions
		from      float64
		to        float64
		step      time.Duration
		realtime  bool
		container string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "preview <transcript>",
		Short: "Play a transcript headlessly and print highlight changes",
		Long: `Play a transcript on a simulated media clock and print what the editor
would show: every change of the highlighted word and of the subtitle text.

Playback is stepped as fast as possible unless --realtime is set. Use --from
and --to to play a range.

Examples:
  reelkit preview interview.json
  reelkit preview interview.json --from 12 --to 20 --output json
  reelkit preview interview.json --preset 9:16 --container 1280x720`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := deps.Config
			if cfg == nil {
				var err error
				if cfg, err = deps.LoadConfig(); err != nil {
					return fmt.Errorf("loading configuration: %w", err)
				}
			}
			src, err := loadSource(args[0])
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())

			var containerSize layout.Size
			if container != "" {
				if containerSize, err = layout.ParseSize(container); err != nil {
					return err
				}
			}
			events, err := runPreview(cmd.Context(), cfg, src, opts, previewRange{
				from: from, to: to, step: step, realtime: realtime, container: containerSize,
			}, logger, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if done, err := writeStructured(cmd.OutOrStdout(), outputFormat(cfg, output), events); done {
				return err
			}
			return outputPreviewText(cmd.OutOrStdout(), events)
		},
	}

	opts.register(cmd)
	cmd.Flags().Float64Var(&from, "from", 0, "Start time in seconds")
	cmd.Flags().Float64Var(&to, "to", 0, "Stop time in seconds (default: end of transcript)")
	cmd.Flags().DurationVar(&step, "step", 50*time.Millisecond, "Clock step")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "Play in real time")
	cmd.Flags().StringVar(&container, "container", "", "Container size, e.g. 1280x720")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

type previewRange struct {
	from, to  float64
	step      time.Duration
	realtime  bool
	container layout.Size
}

// runPreview plays src and collects highlight and subtitle changes.
func runPreview(ctx context.Context, cfg *config.CLIConfig, src *transcript.Source, opts editorOptions, r previewRange, logger logging.Logger, stderr io.Writer) ([]PreviewEvent, error) {
	sc, err := sessionConfig(cfg)
	if err != nil {
		return nil, err
	}
	// resolves word text of the active ref
	words, err := transcript.Build(src, sc.Build)
	if err != nil {
		return nil, err
	}

	var events []PreviewEvent
	ed, clock, _, err := openEditor(cfg, src, opts, nil, logger)
	if err != nil {
		return nil, err
	}
	defer ed.Close()

	if r.container.Valid() {
		tf, err := ed.Resize(r.container)
		if err != nil {
			return nil, err
		}
		canvas := ed.Canvas()
		fmt.Fprintf(stderr, "canvas %.0fx%.0f scaled %.4f to %.1fx%.1f\n",
			canvas.Width, canvas.Height, tf.Scale, tf.BoxWidth, tf.BoxHeight)
	}

	// highlight transitions arrive through a listener registered after the
	// editor's, so the editor has already ticked
	lastCue := ""
	sub := clock.OnTimeChanged(func(t float64) {
		frame, err := ed.Draw(t)
		if err != nil {
			return
		}
		events = appendWordEvent(events, words, t, frame)
		if d, ok := frame.Layer(layers.NameSubtitle); ok && d.Text != lastCue {
			lastCue = d.Text
			events = append(events, PreviewEvent{Time: t, Kind: "cue", Text: d.Text})
		}
	})
	defer sub.Cancel()

	end := r.to
	if end <= 0 || end > words.Duration() {
		end = words.Duration()
	}
	clock.Seek(r.from)
	clock.Play()

	if r.realtime {
		runCtx, cancel := context.WithTimeout(ctx, time.Duration((end-r.from)*float64(time.Second)))
		defer cancel()
		if err := clock.Run(runCtx); err != nil && runCtx.Err() == nil {
			return nil, err
		}
		return events, nil
	}

	step := r.step
	if step <= 0 {
		step = clock.Granularity()
	}
	for clock.CurrentTime() < end && !clock.Paused() {
		if err := ctx.Err(); err != nil {
			return events, err
		}
		clock.Advance(step)
	}
	return events, nil
}

// appendWordEvent records a change of the active word in frame.
func appendWordEvent(events []PreviewEvent, idx *transcript.Index, t float64, frame session.Frame) []PreviewEvent {
	current := -1
	if frame.Active != nil {
		current = idx.WordNumber(*frame.Active)
	}
	previous := -1
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == "word" {
			previous = events[i].Word
			break
		}
	}
	if current == previous {
		return events
	}
	e := PreviewEvent{Time: t, Kind: "word", Word: current}
	if frame.Active != nil {
		if w, ok := idx.Word(*frame.Active); ok {
			e.Text = w.Text
		}
	}
	return append(events, e)
}

func outputPreviewText(w io.Writer, events []PreviewEvent) error {
	if len(events) == 0 {
		fmt.Fprintln(w, "No highlight changes.")
		return nil
	}
	for _, e := range events {
		switch e.Kind {
		case "word":
			if e.Word < 0 {
				fmt.Fprintf(w, "%8.2fs  word  -\n", e.Time)
				continue
			}
			fmt.Fprintf(w, "%8.2fs  word  #%-4d %s\n", e.Time, e.Word, e.Text)
		default:
			fmt.Fprintf(w, "%8.2fs  cue   %s\n", e.Time, e.Text)
		}
	}
	return nil
}
