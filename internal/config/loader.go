package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "codescan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "CODESCAN"

	// DotEnvFile is read from the working directory before the environment is consulted.
	DotEnvFile = ".env"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so cobra flag
// bindings made in the root command are honored.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on a caller-owned viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from files, environment variables, and defaults,
// then validates it.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithoutValidation is Load without the validation step.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile loads configuration from a specific file path. An empty path
// falls back to the standard search paths.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

// LoadWithFileWithoutValidation is LoadWithFile without the validation step.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile, false)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file: defaults and environment only.
	}

	return l.decode(validate)
}

func (l *Loader) decode(validate bool) (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// Watch re-reads the config file whenever it changes and hands the new,
// validated configuration (or the error) to onChange. It is a no-op when no
// config file was loaded.
func (l *Loader) Watch(onChange func(cfg *Config, err error)) bool {
	if l.v.ConfigFileUsed() == "" {
		return false
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(l.decode(true))
	})
	l.v.WatchConfig()
	return true
}

// loadDotEnv exports the variables in path unless they are already set.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("error reading %s: %w", path, err)
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	// store.redis.url -> CODESCAN_STORE_REDIS_URL
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	l.v.SetDefault("scanner.format", defaults.Scanner.Format)
	l.v.SetDefault("scanner.length_spec", defaults.Scanner.LengthSpec)

	l.v.SetDefault("layout.fit", defaults.Layout.Fit)
	l.v.SetDefault("layout.box_x", defaults.Layout.BoxX)
	l.v.SetDefault("layout.box_y", defaults.Layout.BoxY)
	l.v.SetDefault("layout.box_width", defaults.Layout.BoxWidth)
	l.v.SetDefault("layout.box_height", defaults.Layout.BoxHeight)
	l.v.SetDefault("layout.overlay_x", defaults.Layout.OverlayX)
	l.v.SetDefault("layout.overlay_y", defaults.Layout.OverlayY)
	l.v.SetDefault("layout.overlay_width", defaults.Layout.OverlayWidth)
	l.v.SetDefault("layout.overlay_height", defaults.Layout.OverlayHeight)

	l.v.SetDefault("camera.width", defaults.Camera.Width)
	l.v.SetDefault("camera.height", defaults.Camera.Height)

	l.v.SetDefault("recognizer.backend", defaults.Recognizer.Backend)
	l.v.SetDefault("recognizer.languages", defaults.Recognizer.Languages)
	l.v.SetDefault("recognizer.whitelist", defaults.Recognizer.Whitelist)
	l.v.SetDefault("recognizer.binary_path", defaults.Recognizer.BinaryPath)
	l.v.SetDefault("recognizer.page_seg_mode", defaults.Recognizer.PageSegMode)
	l.v.SetDefault("recognizer.timeout_sec", defaults.Recognizer.TimeoutSec)
	l.v.SetDefault("recognizer.static_text", defaults.Recognizer.StaticText)
	l.v.SetDefault("recognizer.normalize_form", defaults.Recognizer.NormalizeForm)
	l.v.SetDefault("recognizer.preprocess.enabled", defaults.Recognizer.Preprocess.Enabled)
	l.v.SetDefault("recognizer.preprocess.min_height", defaults.Recognizer.Preprocess.MinHeight)
	l.v.SetDefault("recognizer.preprocess.contrast", defaults.Recognizer.Preprocess.Contrast)
	l.v.SetDefault("recognizer.preprocess.sharpen", defaults.Recognizer.Preprocess.Sharpen)

	l.v.SetDefault("store.backend", defaults.Store.Backend)
	l.v.SetDefault("store.slot", defaults.Store.Slot)
	l.v.SetDefault("store.file.path", defaults.Store.File.Path)
	l.v.SetDefault("store.redis.url", defaults.Store.Redis.URL)
	l.v.SetDefault("store.redis.key_prefix", defaults.Store.Redis.KeyPrefix)
	l.v.SetDefault("store.postgres.dsn", defaults.Store.Postgres.DSN)

	l.v.SetDefault("export.header", defaults.Export.Header)
	l.v.SetDefault("export.empty_text", defaults.Export.EmptyText)
	l.v.SetDefault("export.dir", defaults.Export.Dir)

	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	l.v.SetDefault("server.watch_config", defaults.Server.WatchConfig)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]interface{} {
	return l.v.AllSettings()
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile writes the defaults to filename (codescan.yaml
// when empty). The global viper instance is left untouched.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()

	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}

	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are
// searched, in order.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	paths = append(paths, filepath.Join("/etc", ConfigFileName))

	return paths
}

// PrintConfigInfo writes where configuration was looked for and found.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	used := l.GetConfigFileUsed()
	if used == "" {
		used = "(none)"
	}
	_, _ = fmt.Fprintf(w, "Configuration file used: %s\n", used)
	_, _ = fmt.Fprintf(w, "Configuration search paths: %v\n", GetConfigSearchPaths())
	_, _ = fmt.Fprintf(w, "Environment prefix: %s\n", EnvPrefix)
}
