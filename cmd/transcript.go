package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/reelkit/config"
	"github.com/otherjamesbrown/reelkit/pkg/export"
	"github.com/otherjamesbrown/reelkit/pkg/transcript"
)

// TranscriptCommandDeps holds the dependencies for transcript commands.
type TranscriptCommandDeps struct {
	Config     *config.CLIConfig
	LoadConfig func() (*config.CLIConfig, error)
}

// DefaultTranscriptDeps returns the default dependencies for production use.
func DefaultTranscriptDeps() *TranscriptCommandDeps {
	return &TranscriptCommandDeps{
		LoadConfig: config.LoadConfig,
	}
}

func (d *TranscriptCommandDeps) config() (*config.CLIConfig, error) {
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

// NewTranscriptCommand creates the transcript command with all subcommands.
func NewTranscriptCommand(deps *TranscriptCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultTranscriptDeps()
	}

	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Inspect transcripts and export subtitle tracks",
		Long: `Inspect transcripts and export subtitle tracks.

A transcript is the JSON document produced by the transcription service: a
list of speaker segments, each with timed words. SRT and WebVTT files are
accepted wherever a transcript is expected and are converted on the fly,
one segment per cue.

Words are grouped into subtitle chunks using the editor chunking settings
(editor.max_chunk_chars, editor.max_chunk_words, editor.max_gap). Chunk
text can be replaced before export with --edit N=TEXT, where N is the
zero-based chunk number shown by 'transcript show'.

Examples:
  # Show chunks with their timestamps
  reelkit transcript show interview.json

  # Write an SRT track
  reelkit transcript srt interview.json --out interview.srt

  # Convert an existing subtitle file to a transcript
  reelkit transcript import captions.srt --out interview.json`,
		Aliases: []string{"tr"},
	}

	cmd.AddCommand(newTranscriptShowCommand(deps))
	cmd.AddCommand(newTranscriptSRTCommand(deps))
	cmd.AddCommand(newTranscriptVTTCommand(deps))
	cmd.AddCommand(newTranscriptImportCommand(deps))

	return cmd
}

// loadSource reads a transcript JSON file or imports an SRT/VTT file.
func loadSource(path string) (*transcript.Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".srt", ".vtt":
		return transcript.ImportSubtitles(path)
	default:
		return transcript.LoadFile(path)
	}
}

// buildIndex loads path and chunks it with the configured build options.
func buildIndex(cfg *config.CLIConfig, path string, edits []string) (*transcript.Index, error) {
	src, err := loadSource(path)
	if err != nil {
		return nil, err
	}
	sc, err := sessionConfig(cfg)
	if err != nil {
		return nil, err
	}
	idx, err := transcript.Build(src, sc.Build)
	if err != nil {
		return nil, err
	}
	if err := applyEdits(idx, edits); err != nil {
		return nil, err
	}
	return idx, nil
}

// applyEdits applies N=TEXT chunk edits directly to idx.
func applyEdits(idx *transcript.Index, edits []string) error {
	for _, e := range edits {
		chunk, text, err := parseEdit(e)
		if err != nil {
			return err
		}
		if err := idx.EditChunkText(chunk, text); err != nil {
			return err
		}
	}
	return nil
}

// parseEdit splits an N=TEXT edit flag.
func parseEdit(e string) (int, string, error) {
	n, text, ok := strings.Cut(e, "=")
	if !ok {
		return 0, "", fmt.Errorf("invalid edit %q: expected N=TEXT", e)
	}
	chunk, err := strconv.Atoi(strings.TrimSpace(n))
	if err != nil {
		return 0, "", fmt.Errorf("invalid edit %q: chunk number: %w", e, err)
	}
	return chunk, text, nil
}

func newTranscriptShowCommand(deps *TranscriptCommandDeps) *cobra.Command {
	var output string
	var edits []string

	cmd := &cobra.Command{
		Use:   "show <transcript>",
		Short: "Show subtitle chunks with timestamps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return err
			}
			idx, err := buildIndex(cfg, args[0], edits)
			if err != nil {
				return err
			}
			cues := idx.Subtitles()
			if done, err := writeStructured(cmd.OutOrStdout(), outputFormat(cfg, output), cues); done {
				return err
			}
			return outputCuesText(cmd.OutOrStdout(), idx, cues)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	cmd.Flags().StringArrayVar(&edits, "edit", nil, "Replace chunk text: N=TEXT (repeatable)")
	return cmd
}

func outputCuesText(w io.Writer, idx *transcript.Index, cues []transcript.Cue) error {
	fmt.Fprintf(w, "Segments: %d  Chunks: %d  Words: %d  Duration: %s\n\n",
		len(idx.Segments()), idx.ChunkCount(), idx.WordCount(), transcript.Timestamp(idx.Duration()))
	fmt.Fprintln(w, "  #    START  END    TEXT")
	fmt.Fprintln(w, "  ---  -----  -----  ----")
	for i, c := range cues {
		fmt.Fprintf(w, "  %-3d  %s  %s  %s\n",
			i, transcript.Timestamp(c.Start), transcript.Timestamp(c.End), truncateString(c.Text, 60))
	}
	return nil
}

func newTranscriptSRTCommand(deps *TranscriptCommandDeps) *cobra.Command {
	var out string
	var legacy bool
	var edits []string

	cmd := &cobra.Command{
		Use:   "srt <transcript>",
		Short: "Write the subtitle track as SubRip",
		Long: `Write the subtitle track as SubRip, one entry per chunk.

Timestamps are HH:MM:SS,mmm. Use --legacy-hundredths (or editor.srt_mode:
legacy-hundredths) to reproduce files from earlier editor versions, which
wrote hundredths of a second into the millisecond field.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return err
			}
			mode, ok := export.ParseSRTMode(cfg.Editor.SRTMode)
			if !ok {
				return fmt.Errorf("unknown srt mode %q", cfg.Editor.SRTMode)
			}
			if legacy {
				mode = export.SRTLegacyHundredths
			}
			idx, err := buildIndex(cfg, args[0], edits)
			if err != nil {
				return err
			}
			w, done, err := openOutput(cmd, out)
			if err != nil {
				return err
			}
			if err := export.WriteSRT(w, idx.Subtitles(), mode); err != nil {
				_ = done()
				return err
			}
			return done()
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&legacy, "legacy-hundredths", false, "Write hundredths in the millisecond field")
	cmd.Flags().StringArrayVar(&edits, "edit", nil, "Replace chunk text: N=TEXT (repeatable)")
	return cmd
}

func newTranscriptVTTCommand(deps *TranscriptCommandDeps) *cobra.Command {
	var out string
	var edits []string

	cmd := &cobra.Command{
		Use:   "vtt <transcript>",
		Short: "Write the subtitle track as WebVTT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.config()
			if err != nil {
				return err
			}
			idx, err := buildIndex(cfg, args[0], edits)
			if err != nil {
				return err
			}
			w, done, err := openOutput(cmd, out)
			if err != nil {
				return err
			}
			if err := export.WriteVTT(w, idx.Subtitles()); err != nil {
				_ = done()
				return err
			}
			return done()
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output file (default: stdout)")
	cmd.Flags().StringArrayVar(&edits, "edit", nil, "Replace chunk text: N=TEXT (repeatable)")
	return cmd
}

func newTranscriptImportCommand(deps *TranscriptCommandDeps) *cobra.Command {
	var (
		out     string
		charset string
	)

	cmd := &cobra.Command{
		Use:   "import <file.srt|file.vtt>",
		Short: "Convert a subtitle file into a transcript",
		Long: `Convert an SRT or WebVTT file into a transcript document.

Each cue becomes one segment. Cue time is spread over its words in
proportion to their length, so highlighting is approximate.

Files that are not UTF-8 are read as Windows-1252 unless --charset names
their encoding.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := transcript.ImportSubtitlesCharset(args[0], charset)
			if err != nil {
				return err
			}
			w, done, err := openOutput(cmd, out)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(src); err != nil {
				_ = done()
				return fmt.Errorf("encoding transcript: %w", err)
			}
			return done()
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&charset, "charset", "", "Encoding of the subtitle file, e.g. latin1 or shift_jis")
	return cmd
}
