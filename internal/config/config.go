package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Archive format names accepted in configuration.
const (
	ArchiveNone     = "none"
	ArchiveZip      = "zip"
	ArchiveSevenZip = "7z"
)

// Config represents the main configuration structure
type Config struct {
	SourceDirectory     string         `mapstructure:"source_directory" validate:"required"`
	OutputDirectory     string         `mapstructure:"output_directory"`
	Recursive           bool           `mapstructure:"recursive"`
	SupportedExtensions []string       `mapstructure:"supported_extensions"`
	Compression         Compression    `mapstructure:"compression"`
	Archive             ArchiveConfig  `mapstructure:"archive"`
	Metadata            MetadataConfig `mapstructure:"metadata"`
	History             HistoryConfig  `mapstructure:"history"`
	Logging             LoggingConfig  `mapstructure:"logging"`
}

// Compression contains settings for the compression pipeline itself
type Compression struct {
	Quality         int  `mapstructure:"quality"`
	Concurrency     int  `mapstructure:"concurrency"` // 0 means auto (host parallelism)
	DeleteOriginals bool `mapstructure:"delete_originals"`
	KeepLarger      bool `mapstructure:"keep_larger"` // keep the encoded file even when it is larger than the source
}

// ArchiveConfig contains settings for the post-compression archive step
type ArchiveConfig struct {
	Format    string `mapstructure:"format"` // none, zip, 7z
	Directory string `mapstructure:"directory"`
	Tool      string `mapstructure:"tool"` // external archiver executable, 7z format only
}

// MetadataConfig contains EXIF handling settings
type MetadataConfig struct {
	PreserveCaptureTime bool `mapstructure:"preserve_capture_time"`
	CopyEXIF            bool `mapstructure:"copy_exif"`
}

// HistoryConfig contains settings for the recent-paths store
type HistoryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	FilePath string `mapstructure:"file_path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Recursive: true,
		SupportedExtensions: []string{
			".jpg", ".jpeg", ".png", ".gif", ".tiff", ".tif", ".bmp",
		},
		Compression: Compression{
			Quality:         80,
			Concurrency:     0, // auto
			DeleteOriginals: false,
			KeepLarger:      false,
		},
		Archive: ArchiveConfig{
			Format: ArchiveNone,
			Tool:   "7z",
		},
		Metadata: MetadataConfig{
			PreserveCaptureTime: true,
			CopyEXIF:            false,
		},
		History: HistoryConfig{
			Enabled:  true,
			FilePath: defaultHistoryPath(),
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "image-compressor.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.image-compressor")
		viper.AddConfigPath("/etc/image-compressor")
	}

	// Enable environment variable support
	viper.SetEnvPrefix("IMAGE_COMPRESSOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration and normalizes derived fields
func (c *Config) Validate() error {
	if c.Compression.Quality < 1 || c.Compression.Quality > 100 {
		return fmt.Errorf("quality must be in range 1..100, got %d", c.Compression.Quality)
	}

	if c.Compression.Concurrency < 0 {
		return fmt.Errorf("concurrency must be zero (auto) or positive, got %d", c.Compression.Concurrency)
	}

	validFormats := map[string]bool{
		ArchiveNone:     true,
		ArchiveZip:      true,
		ArchiveSevenZip: true,
	}
	c.Archive.Format = strings.ToLower(c.Archive.Format)
	if !validFormats[c.Archive.Format] {
		return fmt.Errorf("invalid archive format: %s (valid: none, zip, 7z)", c.Archive.Format)
	}

	c.SupportedExtensions = normalizeExtensions(c.SupportedExtensions)
	if len(c.SupportedExtensions) == 0 {
		return fmt.Errorf("supported_extensions must not be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// Workers returns the effective worker count, resolving the auto setting
// to the host parallelism.
func (c *Config) Workers() int {
	if c.Compression.Concurrency > 0 {
		return c.Compression.Concurrency
	}
	return runtime.NumCPU()
}

// GetOutputDirectory returns the output directory, defaulting to a
// "compressed" subdirectory of the source.
func (c *Config) GetOutputDirectory() string {
	if c.OutputDirectory != "" {
		return c.OutputDirectory
	}
	return filepath.Join(c.SourceDirectory, "compressed")
}

// GetArchiveDirectory returns the directory the archive file is placed in.
// By default the archive lands alongside the output directory.
func (c *Config) GetArchiveDirectory() string {
	if c.Archive.Directory != "" {
		return c.Archive.Directory
	}
	return filepath.Dir(c.GetOutputDirectory())
}

// IsSupportedExtension checks if the extension belongs to a candidate image
func (c *Config) IsSupportedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, supportedExt := range c.SupportedExtensions {
		if ext == supportedExt {
			return true
		}
	}
	return false
}

// Helper functions

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("data", "history.json")
	}
	return filepath.Join(home, ".image-compressor", "history.json")
}

func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[i] = ext
	}
	return normalized
}
