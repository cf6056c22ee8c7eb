package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/codescan/internal/config"
	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/normalize"
	"github.com/MeKo-Tech/codescan/internal/recognizer"
	"github.com/MeKo-Tech/codescan/internal/scanner"
	"github.com/MeKo-Tech/codescan/internal/store"
	"github.com/spf13/cobra"
)

type sessionOptions struct {
	// recognize builds the configured OCR backend. Commands that only manage
	// saved codes and settings leave it off.
	recognize bool
	keepROI   bool
	override  func(scanner.Settings) scanner.Settings
}

// openSession builds a scanner session from the configuration. The caller
// owns the session and must close it.
func openSession(ctx context.Context, cfg *config.Config, opts sessionOptions) (*scanner.Session, error) {
	settings, err := cfg.ToScannerSettings()
	if err != nil {
		return nil, err
	}

	rec, err := newRecognizer(cfg, opts.recognize)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.ToStoreConfig())
	if err != nil {
		_ = rec.Close()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}

	sess, err := scanner.NewSession(ctx, scanner.Options{
		Store:      st,
		Recognizer: rec,
		Settings:   settings,
		Override:   opts.override,
		Export:     cfg.ExportOptions(),
		Logger:     slog.Default(),
		KeepROI:    opts.keepROI,
	})
	if err != nil {
		_ = st.Close()
		_ = rec.Close()
		return nil, err
	}
	return sess, nil
}

func newRecognizer(cfg *config.Config, live bool) (*recognizer.Recognizer, error) {
	rc := cfg.ToRecognizerConfig()
	if !live {
		offline := &recognizer.StaticBackend{Err: recognizer.ErrBackendUnavailable}
		return recognizer.NewWithBackend(rc, offline), nil
	}

	rec, err := recognizer.New(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize recognizer: %w", err)
	}
	slog.Debug("recognizer ready", "backend", rc.Backend, "languages", rc.Languages)
	return rec.WithLogger(slog.Default()), nil
}

func addLayoutFlags(c *cobra.Command) {
	c.Flags().String("fit", "", "how the preview fits the frame into the box: cover or contain")
	c.Flags().String("box", "", "preview box size as WIDTHxHEIGHT")
	c.Flags().String("box-origin", "", "preview box top-left corner as X,Y")
	c.Flags().String("overlay", "", "scan window as X,Y,W,H in the same coordinates as the box origin")
}

// layoutFromFlags starts from the configured layout and applies any layout
// flags that were set.
func layoutFromFlags(cmd *cobra.Command, cfg *config.Config) (geometry.Layout, error) {
	layout, err := cfg.ToLayout()
	if err != nil {
		return geometry.Layout{}, err
	}

	if cmd.Flags().Changed("fit") {
		s, _ := cmd.Flags().GetString("fit")
		if layout.Fit, err = geometry.ParseFitPolicy(s); err != nil {
			return geometry.Layout{}, err
		}
	}
	if cmd.Flags().Changed("box") {
		s, _ := cmd.Flags().GetString("box")
		d, err := geometry.ParseDimensions(s)
		if err != nil {
			return geometry.Layout{}, err
		}
		layout.Box.Width, layout.Box.Height = d.Width, d.Height
	}
	if cmd.Flags().Changed("box-origin") {
		s, _ := cmd.Flags().GetString("box-origin")
		p, err := geometry.ParsePoint(s)
		if err != nil {
			return geometry.Layout{}, err
		}
		layout.Box.X, layout.Box.Y = p.X, p.Y
	}
	if cmd.Flags().Changed("overlay") {
		s, _ := cmd.Flags().GetString("overlay")
		if layout.Overlay, err = geometry.ParseDisplayRect(s); err != nil {
			return geometry.Layout{}, err
		}
	}
	return layout, nil
}

func addSettingsFlags(c *cobra.Command, verb string) {
	c.Flags().String("format", "", verb+" code format: alphanumeric or alphanumeric_hyphen")
	c.Flags().String("length", "", verb+` length spec: "12", "8-16", "8-", "-16" or "" for any`)
}

// settingsFromFlags applies --format and --length to base. The second result
// reports whether either flag was set.
func settingsFromFlags(cmd *cobra.Command, base scanner.Settings) (scanner.Settings, bool, error) {
	changed := false
	if cmd.Flags().Changed("format") {
		s, _ := cmd.Flags().GetString("format")
		f, err := normalize.ParseFormatPolicy(s)
		if err != nil {
			return base, false, err
		}
		base.Format = f
		changed = true
	}
	if cmd.Flags().Changed("length") {
		s, _ := cmd.Flags().GetString("length")
		base.LengthSpec = strings.TrimSpace(s)
		changed = true
	}
	return base, changed, nil
}

func validateOutputFormat(format string) error {
	if format != outputFormatText && format != outputFormatJSON {
		return fmt.Errorf("invalid output format %q (must be %s or %s)", format, outputFormatText, outputFormatJSON)
	}
	return nil
}

func describeLength(spec string) string {
	if spec == "" {
		return "any"
	}
	return spec
}
