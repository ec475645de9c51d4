package core

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // zone data for minimal container images

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/securecam/internal/backend/imageprocessing"
)

const (
	DefaultPort      = 5000
	DefaultDirectory = "/data/securecam"
	DefaultPrefix    = "cam"
	DefaultTimezone  = "CET"
	DefaultCacheTTL  = 300 * time.Second
	DefaultCacheKey  = "securecam:catalog"
)

// CommandConfig represents a generic command configuration
type CommandConfig struct {
	Name   string         `yaml:"name" validate:"required"`
	Params map[string]any `yaml:",inline"`
}

type Database struct {
	Type             string `yaml:"type" validate:"required,oneof=sqlite"`
	ConnectionString string `yaml:"connectionString" validate:"required"`
}

type CacheConfig struct {
	Type     string        `yaml:"type" validate:"required,oneof=memory redis"`
	TTL      time.Duration `yaml:"ttl" validate:"gt=0"`
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0"`
	Key      string        `yaml:"key" validate:"required"`
}

type ThumbnailConfig struct {
	Enabled  bool            `yaml:"enabled"`
	Commands []CommandConfig `yaml:"commands" validate:"dive"`
}

type TranscodeConfig struct {
	FFmpegPath string   `yaml:"ffmpegPath" validate:"required"`
	Extensions []string `yaml:"extensions" validate:"dive,required"`
	Preset     string   `yaml:"preset" validate:"required"`
	ChunkSize  int      `yaml:"chunkSize" validate:"gt=0"`
}

type ServiceConfig struct {
	Port            int             `yaml:"port" validate:"min=1,max=65535"`
	Directory       string          `yaml:"directory" validate:"required"`
	Prefix          string          `yaml:"prefix" validate:"required"`
	ImageExtensions []string        `yaml:"imageExtensions" validate:"min=1,dive,required"`
	VideoExtensions []string        `yaml:"videoExtensions" validate:"min=1,dive,required"`
	Timezone        string          `yaml:"timezone" validate:"required"`
	Debug           bool            `yaml:"debug"`
	Cache           CacheConfig     `yaml:"cache"`
	Database        Database        `yaml:"database"`
	Thumbnails      ThumbnailConfig `yaml:"thumbnails"`
	Transcode       TranscodeConfig `yaml:"transcode"`

	location *time.Location
}

// DefaultConfig returns the configuration used when no file, environment or flag overrides it
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:            DefaultPort,
		Directory:       DefaultDirectory,
		Prefix:          DefaultPrefix,
		ImageExtensions: []string{".jpg", ".jpeg", ".png"},
		VideoExtensions: []string{".mp4", ".mkv"},
		Timezone:        DefaultTimezone,
		Cache: CacheConfig{
			Type: "memory",
			TTL:  DefaultCacheTTL,
			Key:  DefaultCacheKey,
		},
		Database: Database{
			Type:             "sqlite",
			ConnectionString: ":memory:",
		},
		Thumbnails: ThumbnailConfig{
			Enabled: true,
			Commands: []CommandConfig{
				{Name: imageprocessing.PixelScaleCommandName, Params: map[string]any{"width": 320}},
				{Name: imageprocessing.JpegEncoderCommandName, Params: map[string]any{"quality": 80}},
			},
		},
		Transcode: TranscodeConfig{
			FFmpegPath: "ffmpeg",
			Extensions: []string{".mkv"},
			Preset:     "veryfast",
			ChunkSize:  4096,
		},
	}
}

// LoadConfig loads configuration from the specified YAML file on top of the defaults
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Parse YAML
	config := DefaultConfig()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	// Validate commands
	if err := validateCommands(config.Thumbnails.Commands); err != nil {
		return nil, fmt.Errorf("invalid command configuration: %w", err)
	}

	return config, nil
}

// ApplyEnvironment overrides config values with the SECURECAM_* environment variables
func (config *ServiceConfig) ApplyEnvironment() {
	if dir := os.Getenv("SECURECAM_DIR"); dir != "" {
		config.Directory = dir
	}
	if prefix := os.Getenv("SECURECAM_PREFIX"); prefix != "" {
		config.Prefix = prefix
	}
	if tz := os.Getenv("SECURECAM_TIMEZONE"); tz != "" {
		config.Timezone = tz
	}
	if addr := os.Getenv("SECURECAM_REDIS_ADDR"); addr != "" {
		config.Cache.Type = "redis"
		config.Cache.Address = addr
	}
}

// Validate checks the struct constraints and the values that need more than a tag,
// and resolves the configured time zone.
func (config *ServiceConfig) Validate() error {
	config.ImageExtensions = normalizeExtensions(config.ImageExtensions)
	config.VideoExtensions = normalizeExtensions(config.VideoExtensions)
	config.Transcode.Extensions = normalizeExtensions(config.Transcode.Extensions)

	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if config.Cache.Type == "redis" && config.Cache.Address == "" {
		return errors.New("invalid configuration: redis cache requires an address")
	}

	for _, ext := range append(append(append([]string{}, config.ImageExtensions...), config.VideoExtensions...), config.Transcode.Extensions...) {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("invalid configuration: extension %q must start with a dot", ext)
		}
	}

	if err := validateCommands(config.Thumbnails.Commands); err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}
	for _, cmd := range config.Thumbnails.Commands {
		if !imageprocessing.DefaultRegistry.IsRegistered(cmd.Name) {
			return fmt.Errorf("invalid command configuration: unknown command %s", cmd.Name)
		}
	}

	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return fmt.Errorf("invalid configuration: unknown timezone %s: %w", config.Timezone, err)
	}
	config.location = loc

	return nil
}

// Location returns the time zone used to group files by date
func (config *ServiceConfig) Location() *time.Location {
	if config.location == nil {
		loc, err := time.LoadLocation(config.Timezone)
		if err != nil {
			return time.UTC
		}
		config.location = loc
	}
	return config.location
}

// ImageCommands converts the thumbnail command list for the imageprocessing package
func (config *ServiceConfig) ImageCommands() []imageprocessing.CommandConfig {
	commands := make([]imageprocessing.CommandConfig, 0, len(config.Thumbnails.Commands))
	for _, cmd := range config.Thumbnails.Commands {
		commands = append(commands, imageprocessing.CommandConfig{Name: cmd.Name, Params: cmd.Params})
	}
	return commands
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		// Validate name is not empty
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}

		// Validate name is unique
		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true
	}

	return nil
}

func normalizeExtensions(extensions []string) []string {
	result := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		result = append(result, ext)
	}
	return result
}
