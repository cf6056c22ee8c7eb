package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/MeKo-Tech/codescan/internal/scanner"
	"github.com/MeKo-Tech/codescan/internal/utils"
	"github.com/spf13/cobra"
)

// scanOutput is the JSON form of a scan.
type scanOutput struct {
	File   string                 `json:"file"`
	Width  int                    `json:"width"`
	Height int                    `json:"height"`
	Result *scanner.CaptureResult `json:"result"`
	Saved  bool                   `json:"saved"`
	Count  int                    `json:"count"`
	ROI    string                 `json:"roi_file,omitempty"`
	Frame  string                 `json:"frame_file,omitempty"`
}

// regionOutline marks the scan window on a saved frame.
var regionOutline = color.NRGBA{R: 255, G: 40, B: 40, A: 255}

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan FRAME",
	Short: "Read a code from the scan window of a camera frame",
	Long: `Map the scan window onto a saved camera frame, recognize the text inside it
and normalize it into a candidate code.

The layout (preview box, fit policy and scan window) comes from the
configuration and can be overridden with flags. --format and --length apply
to this scan only; use "codescan settings set" to change them for good.

Examples:
  codescan scan frame.jpg
  codescan scan frame.jpg --length 12 --confirm
  codescan scan frame.png --box 360x640 --overlay 30,280,300,80 --fit contain
  codescan scan frame.jpg --save-roi roi.png --output json
  codescan scan frame.jpg --save-frame marked.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	output, _ := cmd.Flags().GetString("output")
	if err := validateOutputFormat(output); err != nil {
		return err
	}
	confirm, _ := cmd.Flags().GetBool("confirm")
	roiPath, _ := cmd.Flags().GetString("save-roi")
	framePath, _ := cmd.Flags().GetString("save-frame")

	layout, err := layoutFromFlags(cmd, cfg)
	if err != nil {
		return err
	}
	if _, _, err := settingsFromFlags(cmd, scanner.DefaultSettings()); err != nil {
		return err
	}

	frame, meta, err := utils.LoadImage(args[0])
	if err != nil {
		return err
	}

	sess, err := openSession(ctx, cfg, sessionOptions{
		recognize: true,
		keepROI:   roiPath != "",
		override: func(cur scanner.Settings) scanner.Settings {
			s, _, _ := settingsFromFlags(cmd, cur)
			return s
		},
	})
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	res, err := sess.Capture(ctx, scanner.CaptureRequest{Frame: frame, Layout: layout})
	if err != nil {
		return err
	}

	out := scanOutput{File: args[0], Width: meta.Width, Height: meta.Height, Result: res}
	if roiPath != "" && res.ROI != nil {
		if err := utils.SaveImage(res.ROI, roiPath); err != nil {
			return fmt.Errorf("failed to save region image: %w", err)
		}
		out.ROI = roiPath
	}
	if framePath != "" {
		marked := utils.AnnotateRegion(frame, framePixels(frame, res.Pixels), regionOutline, 3)
		if err := utils.SaveImage(marked, framePath); err != nil {
			return fmt.Errorf("failed to save annotated frame: %w", err)
		}
		out.Frame = framePath
	}

	if confirm && res.Accepted {
		if _, err := sess.Confirm(ctx); err != nil {
			var persistErr *scanner.PersistError
			if !errors.As(err, &persistErr) {
				return err
			}
			// The code is accepted for this run but did not reach the store.
			return fmt.Errorf("code %s was not saved: %w", res.Candidate, err)
		}
		out.Saved = true
	}
	out.Count = len(sess.Codes())

	if output == outputFormatJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	writeScanText(cmd.OutOrStdout(), out, sess.Settings())
	return nil
}

// framePixels converts a region relative to the frame origin back into the
// frame's own coordinates.
func framePixels(frame image.Image, p scanner.PixelRect) image.Rectangle {
	return image.Rect(p.X, p.Y, p.X+p.Width, p.Y+p.Height).Add(frame.Bounds().Min)
}

func writeScanText(w io.Writer, out scanOutput, settings scanner.Settings) {
	res := out.Result
	_, _ = fmt.Fprintf(w, "Frame:     %s (%dx%d)\n", out.File, out.Width, out.Height)
	_, _ = fmt.Fprintf(w, "Region:    %d,%d %dx%d\n", res.Pixels.X, res.Pixels.Y, res.Pixels.Width, res.Pixels.Height)
	_, _ = fmt.Fprintf(w, "Raw:       %q\n", res.Raw)
	if res.Accepted {
		_, _ = fmt.Fprintf(w, "Candidate: %s\n", res.Candidate)
	} else {
		_, _ = fmt.Fprintf(w, "Rejected:  %s (filtered %q, format %s, length %s)\n",
			res.Reason, res.Filtered, settings.Format, describeLength(settings.LengthSpec))
	}
	if out.ROI != "" {
		_, _ = fmt.Fprintf(w, "ROI:       %s\n", out.ROI)
	}
	if out.Frame != "" {
		_, _ = fmt.Fprintf(w, "Marked:    %s\n", out.Frame)
	}
	if out.Saved {
		_, _ = fmt.Fprintf(w, "Saved:     %s (%d codes)\n", res.Candidate, out.Count)
	}
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addLayoutFlags(scanCmd)
	addSettingsFlags(scanCmd, "override the")
	scanCmd.Flags().Bool("confirm", false, "save the candidate to the code list when one is found")
	scanCmd.Flags().String("save-roi", "", "write the extracted region to this file (format from the extension)")
	scanCmd.Flags().String("save-frame", "", "write the frame with the scan window outlined to this file")
	scanCmd.Flags().StringP("output", "o", outputFormatText, "output format: text or json")
}
