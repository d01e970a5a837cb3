package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/reelkit/config"
	"github.com/otherjamesbrown/reelkit/pkg/layout"
)

// LayoutCommandDeps holds the dependencies for the layout command.
type LayoutCommandDeps struct {
	Config     *config.CLIConfig
	LoadConfig func() (*config.CLIConfig, error)
}

// DefaultLayoutDeps returns the default dependencies for production use.
func DefaultLayoutDeps() *LayoutCommandDeps {
	return &LayoutCommandDeps{
		LoadConfig: config.LoadConfig,
	}
}

// LayoutResult is the output of the layout command.
type LayoutResult struct {
	Preset    string           `json:"preset" yaml:"preset"`
	Canvas    layout.Size      `json:"canvas" yaml:"canvas"`
	Container layout.Size      `json:"container" yaml:"container"`
	Transform layout.Transform `json:"transform" yaml:"transform"`
}

// NewLayoutCommand creates the layout command.
func NewLayoutCommand(deps *LayoutCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultLayoutDeps()
	}
	var (
		preset    string
		container string
		preview   bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Show canvas sizes and the preview transform",
		Long: `Show the canvas size of each preset and how it scales into a container.

The canvas is scaled uniformly so its longer side fills the matching side of
the container, then clamped to editor.max_height (and editor.max_width for
landscape canvases).

Examples:
  # List the presets
  reelkit layout

  # Transform of a portrait canvas in a 1280x720 window
  reelkit layout --preset 9:16 --container 1280x720`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := deps.Config
			if cfg == nil {
				var err error
				if cfg, err = deps.LoadConfig(); err != nil {
					return fmt.Errorf("loading configuration: %w", err)
				}
			}
			variant := layout.VariantExport
			if preview {
				variant = layout.VariantPreview
			}
			format := outputFormat(cfg, output)

			if preset == "" {
				results := make([]LayoutResult, 0, len(layout.Presets()))
				for _, p := range layout.Presets() {
					size, _ := p.Size(variant)
					results = append(results, LayoutResult{Preset: p.String(), Canvas: size})
				}
				if done, err := writeStructured(cmd.OutOrStdout(), format, results); done {
					return err
				}
				return outputPresetsText(cmd.OutOrStdout(), results)
			}

			p, err := layout.ParsePreset(preset)
			if err != nil {
				return err
			}
			canvas, _ := p.Size(variant)
			result := LayoutResult{Preset: p.String(), Canvas: canvas}
			if container != "" {
				c, err := layout.ParseSize(container)
				if err != nil {
					return err
				}
				result.Container = c
				result.Transform = layout.ComputeTransformWithLimits(canvas, c, layout.Limits{
					MaxWidth:  cfg.Editor.MaxWidth,
					MaxHeight: cfg.Editor.MaxHeight,
				})
			}
			if done, err := writeStructured(cmd.OutOrStdout(), format, result); done {
				return err
			}
			return outputLayoutText(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Aspect ratio preset: 1:1, 16:9, 9:16, 4:5")
	cmd.Flags().StringVar(&container, "container", "", "Container size, e.g. 1280x720")
	cmd.Flags().BoolVar(&preview, "preview", false, "Use the preview canvas sizes")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func outputPresetsText(w io.Writer, results []LayoutResult) error {
	fmt.Fprintln(w, "  PRESET  CANVAS")
	fmt.Fprintln(w, "  ------  ------")
	for _, r := range results {
		fmt.Fprintf(w, "  %-6s  %.0fx%.0f\n", r.Preset, r.Canvas.Width, r.Canvas.Height)
	}
	return nil
}

func outputLayoutText(w io.Writer, r LayoutResult) error {
	fmt.Fprintf(w, "Preset:    %s\n", r.Preset)
	fmt.Fprintf(w, "Canvas:    %.0fx%.0f\n", r.Canvas.Width, r.Canvas.Height)
	if r.Container.Valid() {
		fmt.Fprintf(w, "Container: %.0fx%.0f\n", r.Container.Width, r.Container.Height)
		fmt.Fprintf(w, "Scale:     %.4f\n", r.Transform.Scale)
		fmt.Fprintf(w, "Box:       %.1fx%.1f\n", r.Transform.BoxWidth, r.Transform.BoxHeight)
	}
	return nil
}
