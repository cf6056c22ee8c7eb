//nolint:lll
package config

// Config represents the complete configuration for codescan. It covers every
// command (scan, roi, codes, settings, serve) and is loaded from a config
// file, CODESCAN_* environment variables, a .env file, and flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Default normalization settings, used until settings are saved
	Scanner ScannerConfig `mapstructure:"scanner" yaml:"scanner" json:"scanner"`

	// Display box and scan window geometry
	Layout LayoutConfig `mapstructure:"layout" yaml:"layout" json:"layout"`

	// Camera capture size
	Camera CameraConfig `mapstructure:"camera" yaml:"camera" json:"camera"`

	Recognizer RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`

	Store StoreConfig `mapstructure:"store" yaml:"store" json:"store"`

	Export ExportConfig `mapstructure:"export" yaml:"export" json:"export"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// ScannerConfig holds the default code format and length pattern.
type ScannerConfig struct {
	Format     string `mapstructure:"format" yaml:"format" json:"format"`
	LengthSpec string `mapstructure:"length_spec" yaml:"length_spec" json:"length_spec"`
}

// LayoutConfig places the display box and the scan window in one reference frame.
type LayoutConfig struct {
	Fit           string  `mapstructure:"fit" yaml:"fit" json:"fit"`
	BoxX          float64 `mapstructure:"box_x" yaml:"box_x" json:"box_x"`
	BoxY          float64 `mapstructure:"box_y" yaml:"box_y" json:"box_y"`
	BoxWidth      float64 `mapstructure:"box_width" yaml:"box_width" json:"box_width"`
	BoxHeight     float64 `mapstructure:"box_height" yaml:"box_height" json:"box_height"`
	OverlayX      float64 `mapstructure:"overlay_x" yaml:"overlay_x" json:"overlay_x"`
	OverlayY      float64 `mapstructure:"overlay_y" yaml:"overlay_y" json:"overlay_y"`
	OverlayWidth  float64 `mapstructure:"overlay_width" yaml:"overlay_width" json:"overlay_width"`
	OverlayHeight float64 `mapstructure:"overlay_height" yaml:"overlay_height" json:"overlay_height"`
}

// CameraConfig is the ideal capture resolution.
type CameraConfig struct {
	Width  int `mapstructure:"width" yaml:"width" json:"width"`
	Height int `mapstructure:"height" yaml:"height" json:"height"`
}

// RecognizerConfig contains OCR engine settings.
type RecognizerConfig struct {
	Backend       string           `mapstructure:"backend" yaml:"backend" json:"backend"`
	Languages     string           `mapstructure:"languages" yaml:"languages" json:"languages"`
	Whitelist     string           `mapstructure:"whitelist" yaml:"whitelist" json:"whitelist"`
	BinaryPath    string           `mapstructure:"binary_path" yaml:"binary_path" json:"binary_path"`
	PageSegMode   int              `mapstructure:"page_seg_mode" yaml:"page_seg_mode" json:"page_seg_mode"`
	TimeoutSec    int              `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	StaticText    string           `mapstructure:"static_text" yaml:"static_text" json:"static_text"`
	NormalizeForm string           `mapstructure:"normalize_form" yaml:"normalize_form" json:"normalize_form"`
	Preprocess    PreprocessConfig `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
}

// PreprocessConfig controls image clean-up before recognition.
type PreprocessConfig struct {
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	MinHeight int     `mapstructure:"min_height" yaml:"min_height" json:"min_height"`
	Contrast  float64 `mapstructure:"contrast" yaml:"contrast" json:"contrast"`
	Sharpen   float64 `mapstructure:"sharpen" yaml:"sharpen" json:"sharpen"`
}

// StoreConfig selects where codes and settings are persisted.
type StoreConfig struct {
	Backend  string              `mapstructure:"backend" yaml:"backend" json:"backend"`
	Slot     string              `mapstructure:"slot" yaml:"slot" json:"slot"`
	File     FileStoreConfig     `mapstructure:"file" yaml:"file" json:"file"`
	Redis    RedisStoreConfig    `mapstructure:"redis" yaml:"redis" json:"redis"`
	Postgres PostgresStoreConfig `mapstructure:"postgres" yaml:"postgres" json:"postgres"`
}

type FileStoreConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

type RedisStoreConfig struct {
	URL       string `mapstructure:"url" yaml:"url" json:"url"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix" json:"key_prefix"`
}

type PostgresStoreConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
}

// ExportConfig controls the shareable code list.
type ExportConfig struct {
	Header    string `mapstructure:"header" yaml:"header" json:"header"`
	EmptyText string `mapstructure:"empty_text" yaml:"empty_text" json:"empty_text"`
	Dir       string `mapstructure:"dir" yaml:"dir" json:"dir"`
}

// ServerConfig contains local bridge settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	WatchConfig     bool   `mapstructure:"watch_config" yaml:"watch_config" json:"watch_config"`
}
