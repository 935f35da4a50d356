package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// Int parses the value, returning fallback when it is empty or malformed.
func (v ResolvedValue) Int(fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v.Value))
	if err != nil {
		return fallback
	}
	return n
}

// Duration parses the value ("2s", "500ms"), returning fallback when it is
// empty or malformed.
func (v ResolvedValue) Duration(fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(v.Value))
	if err != nil {
		return fallback
	}
	return d
}

type ResolveOptions struct {
	ConfigPath   string
	CLIDBPath    string
	CLILexicon   string
	CLIWorkers   string
	CLILogLevel  string
	CLILogFormat string
	CLIPort      string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath       ResolvedValue `json:"db_path"`
	LexiconPath  ResolvedValue `json:"lexicon_path"`
	Workers      ResolvedValue `json:"workers"`
	BlockTimeout ResolvedValue `json:"block_timeout"`

	LogLevel  ResolvedValue `json:"log_level"`
	LogFormat ResolvedValue `json:"log_format"`

	Port ResolvedValue `json:"port"`
}

type fileConfig struct {
	DBPath       string `yaml:"db_path"`
	LexiconPath  string `yaml:"lexicon_path"`
	Workers      string `yaml:"workers"`
	BlockTimeout string `yaml:"block_timeout"`
	Log          struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	HTTP struct {
		Port string `yaml:"port"`
	} `yaml:"http"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".bahi", "config.yaml")
}

func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".bahi", "bahi.db")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath:   path,
		DBPath:       ResolvedValue{Value: DefaultDBPath(), Source: SourceDefault, From: "built-in default"},
		Workers:      ResolvedValue{Source: SourceDefault, From: "GOMAXPROCS"},
		BlockTimeout: ResolvedValue{Value: "2s", Source: SourceDefault, From: "built-in default"},
		LogLevel:     ResolvedValue{Value: "info", Source: SourceDefault, From: "built-in default"},
		LogFormat:    ResolvedValue{Value: "text", Source: SourceDefault, From: "built-in default"},
		Port:         ResolvedValue{Value: "8080", Source: SourceDefault, From: "built-in default"},
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.LexiconPath, cfg.LexiconPath, SourceConfig, path)
		apply(&out.Workers, cfg.Workers, SourceConfig, path)
		apply(&out.BlockTimeout, cfg.BlockTimeout, SourceConfig, path)
		apply(&out.LogLevel, cfg.Log.Level, SourceConfig, path)
		apply(&out.LogFormat, cfg.Log.Format, SourceConfig, path)
		apply(&out.Port, cfg.HTTP.Port, SourceConfig, path)
	}

	applyEnv(&out.DBPath, "BAHI_DB")
	applyEnv(&out.LexiconPath, "BAHI_LEXICON")
	applyEnv(&out.Workers, "BAHI_WORKERS")
	applyEnv(&out.BlockTimeout, "BAHI_BLOCK_TIMEOUT")
	applyEnv(&out.LogLevel, "BAHI_LOG_LEVEL")
	applyEnv(&out.LogFormat, "BAHI_LOG_FORMAT")
	applyEnv(&out.Port, "BAHI_PORT")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.LexiconPath, opts.CLILexicon, SourceCLI, "--lexicon")
	apply(&out.Workers, opts.CLIWorkers, SourceCLI, "--workers")
	apply(&out.LogLevel, opts.CLILogLevel, SourceCLI, "--log-level")
	apply(&out.LogFormat, opts.CLILogFormat, SourceCLI, "--log-format")
	apply(&out.Port, opts.CLIPort, SourceCLI, "--port")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}
	if out.LexiconPath.Value != "" {
		out.LexiconPath.Value = expandUserPath(out.LexiconPath.Value)
	}

	return out, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
