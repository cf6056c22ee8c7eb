package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/scanner"
	"github.com/spf13/cobra"
)

type roiOutput struct {
	Source  geometry.Dimensions  `json:"source"`
	Box     geometry.DisplayRect `json:"box"`
	Fit     geometry.FitPolicy   `json:"fit"`
	Overlay geometry.DisplayRect `json:"overlay"`
	Content geometry.DisplayRect `json:"content"`
	Visible *geometry.SourceRect `json:"visible,omitempty"`
	Region  geometry.SourceRect  `json:"region"`
	Pixels  scanner.PixelRect    `json:"pixels"`
}

// roiCmd represents the roi command.
var roiCmd = &cobra.Command{
	Use:   "roi",
	Short: "Show which part of a frame the scan window covers",
	Long: `Compute the source-pixel rectangle behind the scan window without reading
any image. Useful for checking a layout before pointing a camera at it.

The source size defaults to the configured camera size.

Examples:
  codescan roi
  codescan roi --source 1920x1080 --box 400x300 --overlay 40,112.5,320,75
  codescan roi --fit contain --box-origin 0,56 --overlay 20,150,360,60 --output json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		output, _ := cmd.Flags().GetString("output")
		if err := validateOutputFormat(output); err != nil {
			return err
		}

		source := cfg.CameraDimensions()
		if cmd.Flags().Changed("source") {
			s, _ := cmd.Flags().GetString("source")
			d, err := geometry.ParseDimensions(s)
			if err != nil {
				return err
			}
			source = d
		}

		layout, err := layoutFromFlags(cmd, cfg)
		if err != nil {
			return err
		}

		out, err := computeROI(source, layout)
		if err != nil {
			return err
		}

		if output == outputFormatJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		w := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(w, "Source:  %s\n", out.Source)
		_, _ = fmt.Fprintf(w, "Box:     %s (%s)\n", out.Box, out.Fit)
		_, _ = fmt.Fprintf(w, "Overlay: %s\n", out.Overlay)
		_, _ = fmt.Fprintf(w, "Content: %s\n", out.Content)
		if out.Visible != nil {
			_, _ = fmt.Fprintf(w, "Visible: %s\n", *out.Visible)
		}
		_, _ = fmt.Fprintf(w, "Region:  %s\n", out.Region)
		_, _ = fmt.Fprintf(w, "Pixels:  %d,%d %dx%d\n", out.Pixels.X, out.Pixels.Y, out.Pixels.Width, out.Pixels.Height)
		return nil
	},
}

func computeROI(source geometry.Dimensions, layout geometry.Layout) (*roiOutput, error) {
	content, err := geometry.ComputeContentRect(source, layout.Box.Size(), layout.Fit)
	if err != nil {
		return nil, err
	}
	region, err := layout.Extract(source)
	if err != nil {
		return nil, err
	}

	px := region.PixelRect()
	out := &roiOutput{
		Source:  source,
		Box:     layout.Box,
		Fit:     layout.Fit,
		Overlay: layout.Overlay,
		Content: content,
		Region:  region,
		Pixels:  scanner.PixelRect{X: px.Min.X, Y: px.Min.Y, Width: px.Dx(), Height: px.Dy()},
	}
	if layout.Fit == geometry.Cover {
		visible, err := geometry.VisibleSourceRect(source, layout.Box.Size())
		if err != nil {
			return nil, err
		}
		out.Visible = &visible
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(roiCmd)
	addLayoutFlags(roiCmd)
	roiCmd.Flags().String("source", "", "frame size as WIDTHxHEIGHT (default: camera size from config)")
	roiCmd.Flags().StringP("output", "o", outputFormatText, "output format: text or json")
}
