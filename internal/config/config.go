package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/valyala/fastjson"
)

// Environment variables read by FromEnv.
const (
	EnvLogFile     = "LOG_FILE_PATH"
	EnvWorkerCount = "WORKER_COUNT"
	EnvOutputFile  = "OUTPUT_FILE_PATH"
)

// Defaults.
const (
	DefaultLogFile  = "/data/logs/logs.txt"
	DefaultWorkers  = 4
	DefaultLogLevel = "info"
)

// Config defines optional settings. A nil field means "not set" so that
// layers can be merged.
type Config struct {
	File        *string `json:"file"`
	Workers     *int    `json:"workers"`
	Output      *string `json:"output"`
	Level       *string `json:"level"`
	Service     *string `json:"service"`
	Query       *string `json:"query"`
	MetricsAddr *string `json:"metricsAddr"`
	Summary     *string `json:"summary"`
	LogLevel    *string `json:"logLevel"`
	LogJSON     *bool   `json:"logJSON"`
}

// Settings is a fully resolved configuration.
type Settings struct {
	File        string
	Workers     int
	Output      string
	Level       string
	Service     string
	Query       string
	MetricsAddr string
	Summary     string
	LogLevel    string
	LogJSON     bool
}

// Defaults returns the built-in configuration layer.
func Defaults() *Config {
	return &Config{
		File:     ptr(DefaultLogFile),
		Workers:  ptr(DefaultWorkers),
		Output:   ptr(""),
		LogLevel: ptr(DefaultLogLevel),
		LogJSON:  ptr(false),
	}
}

// Load reads a JSON config file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config not found: %s (create it or use a different --config path)", path)
		}
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a JSON config document. Unknown keys are ignored.
func Parse(data []byte) (*Config, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("expected a JSON object, got %s", v.Type())
	}

	var cfg Config
	for _, f := range []struct {
		key string
		dst **string
	}{
		{"file", &cfg.File},
		{"output", &cfg.Output},
		{"level", &cfg.Level},
		{"service", &cfg.Service},
		{"query", &cfg.Query},
		{"metricsAddr", &cfg.MetricsAddr},
		{"summary", &cfg.Summary},
		{"logLevel", &cfg.LogLevel},
	} {
		if !v.Exists(f.key) {
			continue
		}
		b, err := v.Get(f.key).StringBytes()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = ptr(string(b))
	}

	if v.Exists("workers") {
		n, err := v.Get("workers").Int()
		if err != nil {
			return nil, fmt.Errorf("workers: %w", err)
		}
		cfg.Workers = &n
	}
	if v.Exists("logJSON") {
		b, err := v.Get("logJSON").Bool()
		if err != nil {
			return nil, fmt.Errorf("logJSON: %w", err)
		}
		cfg.LogJSON = &b
	}
	return &cfg, nil
}

// FromEnv builds a config layer from the environment. A WORKER_COUNT that is
// not an integer is ignored; integers below 1 become 1.
func FromEnv(getenv func(string) (string, bool)) *Config {
	var cfg Config
	if v, ok := getenv(EnvLogFile); ok {
		cfg.File = ptr(v)
	}
	if v, ok := getenv(EnvWorkerCount); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = ptr(max(n, 1))
		}
	}
	if v, ok := getenv(EnvOutputFile); ok {
		cfg.Output = ptr(v)
	}
	return &cfg
}

// Merge overlays the set fields of each layer, in order, onto an empty config.
func Merge(layers ...*Config) *Config {
	var out Config
	for _, l := range layers {
		if l == nil {
			continue
		}
		overlay(&out.File, l.File)
		overlay(&out.Workers, l.Workers)
		overlay(&out.Output, l.Output)
		overlay(&out.Level, l.Level)
		overlay(&out.Service, l.Service)
		overlay(&out.Query, l.Query)
		overlay(&out.MetricsAddr, l.MetricsAddr)
		overlay(&out.Summary, l.Summary)
		overlay(&out.LogLevel, l.LogLevel)
		overlay(&out.LogJSON, l.LogJSON)
	}
	return &out
}

// Resolve flattens c into Settings. Workers below 1 are clamped to 1.
func (c *Config) Resolve() Settings {
	s := Settings{
		File:        deref(c.File),
		Workers:     deref(c.Workers),
		Output:      deref(c.Output),
		Level:       deref(c.Level),
		Service:     deref(c.Service),
		Query:       deref(c.Query),
		MetricsAddr: deref(c.MetricsAddr),
		Summary:     deref(c.Summary),
		LogLevel:    deref(c.LogLevel),
		LogJSON:     deref(c.LogJSON),
	}
	if c.Workers == nil {
		s.Workers = DefaultWorkers
	}
	s.Workers = max(s.Workers, 1)
	return s
}

func overlay[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func ptr[T any](v T) *T {
	return &v
}
