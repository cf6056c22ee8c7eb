package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/codescan/internal/config"
	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/testutil"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// frameFixture records what a generated frame should scan as.
type frameFixture struct {
	File   string              `json:"file"`
	Code   string              `json:"code"`
	Source geometry.Dimensions `json:"source"`
	Region geometry.SourceRect `json:"region"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir     = flag.String("out", "testdata/frames", "Directory for generated frames")
		codes      = flag.String("codes", "AB12CD34,7391-2260-55,XK4Q9", "Comma-separated codes to render")
		configFile = flag.String("config", "", "Config file with the layout and camera size")
		manifest   = flag.Bool("manifest", true, "Write manifest.json next to the frames")
		help       = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Render camera frames with a code inside the scan window.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                          # Frames for the default layout\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config codescan.yaml    # Frames for a configured layout\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -codes 1234-5678 -out /tmp/frames\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	cfg, err := config.NewLoader().LoadWithFile(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	layout, err := cfg.ToLayout()
	if err != nil {
		slog.Error("Invalid layout", "error", err)
		os.Exit(1)
	}

	fixtures, err := generateFrames(*outDir, splitCodes(*codes), cfg.CameraDimensions(), layout)
	if err != nil {
		slog.Error("Failed to generate frames", "error", err)
		os.Exit(1)
	}

	if *manifest {
		if err := writeManifest(*outDir, fixtures); err != nil {
			slog.Error("Failed to write manifest", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Frame generation completed", "frames", len(fixtures), "dir", *outDir)
}

func splitCodes(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// generateFrames writes one white frame per code with the code rendered in
// black across the scan window's source region.
func generateFrames(dir string, codes []string, source geometry.Dimensions, layout geometry.Layout) ([]frameFixture, error) {
	if err := testutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create frames directory: %w", err)
	}

	region, err := layout.Extract(source)
	if err != nil {
		return nil, err
	}
	px := region.PixelRect()

	fixtures := make([]frameFixture, 0, len(codes))
	for i, code := range codes {
		frame := testutil.CreateTestImage(int(source.Width), int(source.Height), color.White)
		canvas, ok := frame.(draw.Image)
		if !ok {
			return nil, fmt.Errorf("frame %d is not drawable", i+1)
		}

		cfg := testutil.DefaultTestImageConfig()
		cfg.Text = code
		cfg.Size = testutil.ImageSize{Width: px.Dx(), Height: px.Dy()}
		cfg.Scale = fitScale(code, px)
		text, err := testutil.GenerateTextImage(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to render %q: %w", code, err)
		}
		draw.Draw(canvas, px, text, image.Point{}, draw.Src)

		name := fmt.Sprintf("frame_%d_%s.png", i+1, code)
		if err := saveFrame(filepath.Join(dir, name), canvas); err != nil {
			return nil, err
		}
		slog.Debug("Generated frame", "file", name, "code", code, "region", region.String())

		fixtures = append(fixtures, frameFixture{File: name, Code: code, Source: source, Region: region})
	}
	return fixtures, nil
}

// fitScale is the largest glyph scale that keeps the code within 80% of the
// region.
func fitScale(code string, px image.Rectangle) int {
	face := basicfont.Face7x13
	w := font.MeasureString(face, code).Ceil()
	h := face.Metrics().Height.Ceil()
	if w == 0 || h == 0 {
		return 1
	}
	return max(min(px.Dx()*4/5/w, px.Dy()*4/5/h), 1)
}

func saveFrame(path string, img image.Image) error {
	file, err := os.Create(path) //nolint:gosec // G304: frame paths come from the -out flag
	if err != nil {
		return fmt.Errorf("failed to create frame file: %w", err)
	}
	if err := png.Encode(file, img); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return file.Close()
}

func writeManifest(dir string, fixtures []frameFixture) error {
	data, err := json.MarshalIndent(fixtures, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o600)
}
