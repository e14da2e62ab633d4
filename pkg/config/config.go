// Package config loads spellbridge settings from TOML or YAML files.
package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/japaniel/spellbridge/pkg/archive"
)

// Config holds the settings shared by the CLI and embedding hosts.
type Config struct {
	// Archive is the default archive path.
	Archive string `toml:"archive" yaml:"archive"`
	// DictDir is searched for <locale>.zhfst when Archive is empty.
	DictDir string `toml:"dict_dir" yaml:"dict_dir"`
	// Source is downloaded when the archive is missing (URL or github:owner/repo).
	Source string `toml:"source" yaml:"source"`
	// Workers is the worker pool size.
	Workers int `toml:"workers" yaml:"workers"`
	// CachePath enables the SQLite suggestion cache.
	CachePath string `toml:"cache_path" yaml:"cache_path"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string                `toml:"log_level" yaml:"log_level"`
	Suggest  archive.SpellerConfig `toml:"suggest" yaml:"suggest"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Workers:  4,
		LogLevel: "info",
		Suggest:  archive.DefaultConfig(),
	}
}

// Decoder is implemented by the toml and yaml decoders.
type Decoder interface {
	Decode(v any) error
}

// DecoderFunc creates a Decoder for a reader.
type DecoderFunc func(r io.Reader) Decoder

// DecoderFor picks a decoder by file extension.
func DecoderFor(path string) (DecoderFunc, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return func(r io.Reader) Decoder { return toml.NewDecoder(r).DisallowUnknownFields() }, nil
	case ".yaml", ".yml":
		return func(r io.Reader) Decoder {
			d := yaml.NewDecoder(r)
			d.KnownFields(true)
			return d
		}, nil
	}
	return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
}

// Load reads path over Default. Fields absent from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := DecoderFor(path)
	if err != nil {
		return cfg, err
	}
	fp, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer fp.Close()
	if err := Read(&cfg, bufio.NewReader(fp), f); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.ExpandPaths(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ExpandPaths replaces a leading ~ in the path settings with the home directory.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.Archive, &c.DictDir, &c.CachePath} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Read decodes v from reader using f.
func Read(v any, reader io.Reader, f DecoderFunc) error {
	err := f(reader).Decode(v)
	if err == io.EOF {
		// empty file
		return nil
	}
	return err
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Suggest.NBest < 0 {
		return fmt.Errorf("suggest.n_best must not be negative, got %d", c.Suggest.NBest)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the configured log level.
func (c Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
