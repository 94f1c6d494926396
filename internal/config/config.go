// Package config loads settings from defaults, a YAML file, the environment
// and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment overrides. Sections are separated by a
// double underscore: STUDYSET_AI__API_KEY sets ai.api_key.
const EnvPrefix = "STUDYSET_"

// DefaultFile is read when --config is not given and the file exists.
const DefaultFile = "studyset.yaml"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	AI       AIConfig       `koanf:"ai"`
	Auth     AuthConfig     `koanf:"auth"`
	Sync     SyncConfig     `koanf:"sync"`
	Limits   LimitsConfig   `koanf:"limits"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Addr           string        `koanf:"addr" validate:"required"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	SessionTTL     time.Duration `koanf:"session_ttl" validate:"min=1m"`
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type AIConfig struct {
	BaseURL            string `koanf:"base_url" validate:"omitempty,url"`
	APIKey             string `koanf:"api_key"`
	ChatModel          string `koanf:"chat_model" validate:"required"`
	TranscriptionModel string `koanf:"transcription_model" validate:"required"`
	MaxUploadBytes     int64  `koanf:"max_upload_bytes" validate:"min=1"`
}

type AuthConfig struct {
	Secret   string        `koanf:"secret" validate:"required_without=DevUID"`
	DevUID   string        `koanf:"dev_uid"`
	TokenTTL time.Duration `koanf:"token_ttl" validate:"min=1m"`
}

type SyncConfig struct {
	ReposDir   string   `koanf:"repos_dir" validate:"required"`
	LocalRoot  string   `koanf:"local_root"`
	Extensions []string `koanf:"extensions" validate:"min=1,dive,startswith=."`
}

type LimitsConfig struct {
	GeneratePerMinute float64 `koanf:"generate_per_minute" validate:"gte=0"`
	GenerateBurst     int     `koanf:"generate_burst" validate:"gte=1"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// listKeys hold comma separated lists when set from the environment.
var listKeys = map[string]bool{
	"server.allowed_origins": true,
	"sync.extensions":        true,
}

// RegisterFlags adds every setting to flags with its default value.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "path to a YAML config file (default "+DefaultFile+" if present)")

	flags.String("server.addr", ":8080", "HTTP listen address")
	flags.StringSlice("server.allowed_origins", []string{"http://localhost:3000"}, "CORS allowed origins")
	flags.Duration("server.session_ttl", 2*time.Hour, "idle time after which review and quiz sessions expire")
	flags.String("database.path", "studyset.db", "path to the SQLite database file")
	flags.String("ai.base_url", "", "OpenAI-compatible API base URL (empty for api.openai.com)")
	flags.String("ai.api_key", "", "API key for the generative model")
	flags.String("ai.chat_model", "gpt-4o-mini", "model used for generation and grading")
	flags.String("ai.transcription_model", "whisper-1", "model used to transcribe audio and video")
	flags.Int64("ai.max_upload_bytes", 20<<20, "largest accepted upload in bytes")
	flags.String("auth.secret", "", "HS256 secret for bearer tokens")
	flags.String("auth.dev_uid", "", "act as this user when no token is sent (development only)")
	flags.Duration("auth.token_ttl", 30*24*time.Hour, "lifetime of issued tokens")
	flags.String("sync.repos_dir", "repos", "directory for git source checkouts")
	flags.String("sync.local_root", "", "directory users may add local sources from (empty disables)")
	flags.StringSlice("sync.extensions", []string{".md", ".txt"}, "file extensions ingested from sources")
	flags.Float64("limits.generate_per_minute", 6, "study set generations allowed per user per minute (0 disables)")
	flags.Int("limits.generate_burst", 3, "generation burst per user")
	flags.String("log.level", "info", "log level: debug, info, warn or error")
	flags.String("log.format", "text", "log format: text or json")
}

// Load parses args into flags (which must have been passed to RegisterFlags)
// and layers the config file, .env, environment and flags over the defaults.
func Load(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	path, _ := flags.GetString("config")
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// .env only fills variables that are not already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Changed flags override everything; defaults only fill missing keys.
	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if listKeys[key] {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return key, parts
	}
	return key, value
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports the first invalid settings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// NewLogger builds the process logger.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
