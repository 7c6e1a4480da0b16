package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"

	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

type Configuration struct {
	Prompt      string `json:"prompt"`
	Color       string `json:"color" validate:"oneof=auto always never"`
	HistoryFile string `json:"history_file"`
	EventLog    string `json:"event_log"`

	Limits Limits `json:"limits"`
}

// Limits holds the fixed capacities of the shell's bounded containers.
type Limits struct {
	MaxLineLength int `json:"max_line_length" validate:"gte=1"`
	MaxTokens     int `json:"max_tokens" validate:"gte=1"`
	MaxStages     int `json:"max_stages" validate:"gte=1"`
	MaxArgs       int `json:"max_args" validate:"gte=1"`
	MaxJobs       int `json:"max_jobs" validate:"gte=1"`
	HistorySize   int `json:"history_size" validate:"gte=1"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

// ShouldColor reports whether output should be coloured given whether the
// destination is a terminal.
func (c *Configuration) ShouldColor(isTerminal bool) bool {
	switch c.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return isTerminal
	}
}

// Default returns the built in configuration.
func Default() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}

// DefaultPath is ~/.config/pucitshell/config.yaml, or empty if there is no
// home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "pucitshell", ConfigurationName)
}

// Load reads the configuration at path from fsys layered over the defaults.
// A missing file yields the defaults.
func Load(fsys afero.Fs, path string) (*Configuration, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := afero.ReadFile(fsys, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.HistoryFile = expandHome(cfg.HistoryFile)
	cfg.EventLog = expandHome(cfg.EventLog)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// OpenEventLog opens the event log in an append only state, creating its
// directory if needed.
func (c *Configuration) OpenEventLog(fsys afero.Fs) (afero.File, error) {
	if err := fsys.MkdirAll(filepath.Dir(c.EventLog), 0700); err != nil {
		return nil, fmt.Errorf("create event log dir: %w", err)
	}
	return fsys.OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}
