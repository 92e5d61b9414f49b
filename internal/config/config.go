// Package config loads RepoMind settings from defaults, a YAML file,
// REPOMIND_* environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/repomind/internal/domain"
)

const (
	EnvPrefix   = "REPOMIND_"
	DefaultFile = "repomind.yaml"
)

type Config struct {
	DB     DBConfig     `koanf:"db"`
	Server ServerConfig `koanf:"server"`
	Log    LogConfig    `koanf:"log"`
	Repos  ReposConfig  `koanf:"repos"`
	GitHub GitHubConfig `koanf:"github"`
	AI     AIConfig     `koanf:"ai"`
	Review ReviewConfig `koanf:"review"`
}

type DBConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required,hostname_port"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type ReposConfig struct {
	Dir string `koanf:"dir" validate:"required"`
}

// GitHubConfig holds the token used for private repositories. It is never persisted.
type GitHubConfig struct {
	Token string `koanf:"token"`
}

type AIConfig struct {
	APIKey    string `koanf:"api_key"`
	Model     string `koanf:"model" validate:"required"`
	BaseURL   string `koanf:"base_url" validate:"omitempty,url"`
	MaxTokens int    `koanf:"max_tokens" validate:"gte=1,lte=64000"`
}

type ReviewConfig struct {
	WriteTimeout     time.Duration `koanf:"write_timeout" validate:"required"`
	StudyIdleTimeout time.Duration `koanf:"study_idle_timeout" validate:"gte=0"`
}

var defaults = map[string]any{
	"db.path":                   "repomind.db",
	"server.addr":               "localhost:8080",
	"log.level":                 "info",
	"log.format":                "text",
	"repos.dir":                 "repos",
	"ai.model":                  "claude-sonnet-4-20250514",
	"ai.max_tokens":             1024,
	"review.write_timeout":      "10s",
	"review.study_idle_timeout": "2h",
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"db":           "db.path",
	"addr":         "server.addr",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"repos-dir":    "repos.dir",
	"github-token": "github.token",
}

// RegisterFlags adds the flags understood by Load to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "path to a YAML config file (default "+DefaultFile+" if present)")
	fs.String("db", "", "path to the SQLite database")
	fs.String("addr", "", "HTTP listen address")
	fs.String("log-level", "", "log level (trace, debug, info, warn, error)")
	fs.String("log-format", "", "log format (text, json)")
	fs.String("repos-dir", "", "directory holding repository checkouts")
	fs.String("github-token", "", "GitHub token for private repositories")
}

// Load builds the configuration. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	path := DefaultFile
	explicit := false
	if fs != nil {
		if p, _ := fs.GetString("config"); p != "" {
			path, explicit = p, true
		}
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if fs != nil {
		p := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(p, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := domain.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// envKey maps REPOMIND_AI_MAX_TOKENS to ai.max_tokens.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}
