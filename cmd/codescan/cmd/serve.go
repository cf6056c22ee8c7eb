package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/codescan/internal/config"
	"github.com/MeKo-Tech/codescan/internal/scanner"
	"github.com/MeKo-Tech/codescan/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local device bridge",
	Long: `Start an HTTP and WebSocket server that lets a camera page on this machine
send frames for capture and manage the saved codes.

The server provides the following endpoints:
  POST   /api/v1/capture            - Capture from an uploaded frame
  POST   /api/v1/candidate/confirm  - Save the pending candidate
  DELETE /api/v1/candidate          - Discard the pending candidate
  GET    /api/v1/codes              - List saved codes
  GET    /api/v1/codes/export       - Download the export text
  GET    /api/v1/settings           - Show or change (PUT) the settings
  GET    /ws                        - Live channel for the same commands
  GET    /health, /metrics

Examples:
  codescan serve
  codescan serve --port 8080
  codescan serve --host 0.0.0.0 --port 3000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Configuration from file, environment and defaults, overridden by flags.
		cfg := GetConfig()

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		corsOrigin := cfg.Server.CORSOrigin
		if cmd.Flags().Changed("cors-origin") {
			corsOrigin, _ = cmd.Flags().GetString("cors-origin")
		}

		maxUploadSize := cfg.Server.MaxUploadMB
		if cmd.Flags().Changed("max-upload-size") {
			maxUploadSize, _ = cmd.Flags().GetInt("max-upload-size")
		}

		timeout := cfg.Server.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetInt("timeout")
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if cmd.Flags().Changed("shutdown-timeout") {
			shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}

		watch := cfg.Server.WatchConfig
		if cmd.Flags().Changed("watch-config") {
			watch, _ = cmd.Flags().GetBool("watch-config")
		}

		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}
		if maxUploadSize <= 0 {
			return fmt.Errorf("invalid max upload size: %d (must be > 0)", maxUploadSize)
		}

		layout, err := cfg.ToLayout()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sess, err := openSession(ctx, cfg, sessionOptions{recognize: true})
		if err != nil {
			return err
		}
		defer func() { _ = sess.Close() }()

		bridge, err := server.NewServer(server.Config{
			Host:        host,
			Port:        port,
			CORSOrigin:  corsOrigin,
			MaxUploadMB: int64(maxUploadSize),
			TimeoutSec:  timeout,
			Layout:      layout,
			Logger:      slog.Default(),
		}, sess)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}

		if watch {
			if GetConfigLoader().Watch(reloadHandler(ctx, cfg, sess, bridge)) {
				slog.Info("Watching configuration file", "file", GetConfigLoader().GetConfigFileUsed())
			} else {
				slog.Warn("watch_config is set but no configuration file is in use")
			}
		}

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           bridge.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(timeout) * time.Second,
		}

		go func() {
			slog.Info("Starting device bridge", "host", host, "port", port, "codes", len(sess.Codes()))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

// reloadHandler applies a changed scanner section and the default layout from
// the config file to the running bridge. Settings saved through the API are
// only replaced when the scanner section itself changed. Other sections need
// a restart.
func reloadHandler(ctx context.Context, initial *config.Config, sess *scanner.Session,
	bridge *server.Server,
) func(*config.Config, error) {
	last, _ := initial.ToScannerSettings()

	return func(cfg *config.Config, err error) {
		if err != nil {
			slog.Error("Ignoring invalid configuration change", "error", err)
			return
		}

		if layout, err := cfg.ToLayout(); err == nil {
			bridge.SetLayout(layout)
		}

		settings, err := cfg.ToScannerSettings()
		if err != nil || settings == last {
			return
		}
		last = settings
		if err := sess.UpdateSettings(ctx, settings); err != nil {
			slog.Error("Failed to apply reloaded settings", "error", err)
			return
		}
		slog.Info("Applied reloaded configuration",
			"format", settings.Format.String(), "length_spec", settings.LengthSpec)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "127.0.0.1", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 20, "maximum frame upload size in MB")
	serveCmd.Flags().Int("timeout", 60, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Bool("watch-config", false, "apply scanner settings from the config file when it changes")
}
