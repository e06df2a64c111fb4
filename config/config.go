// Package config loads the ambient settings this runtime needs outside
// of any single Cmd or Pipeline: a default shell, a default error_level
// policy, and a log level. Grounded on the pack's pervasive use of
// gopkg.in/yaml.v3 for service configuration (declared in both the
// teacher's core/go.mod and runtime/go.mod, and used throughout the
// conduix-conduix example repo).
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config is the set of ambient knobs loaded from a YAML file.
type Config struct {
	LogLevel          string   `yaml:"log_level"`
	DefaultShell      string   `yaml:"default_shell"`
	DefaultErrorLevel *int     `yaml:"default_error_level"`
	EnvPassthrough    []string `yaml:"env_passthrough"`
}

// Default returns the zero-value policy this runtime falls back to when
// no config file is present: info logging, /bin/sh as the default shell,
// no error_level threshold (every exit code is reported rather than
// failing the Cmd), and no environment passthrough allowlist (meaning the
// full parent environment is visible, the existing behaviour of every
// Cmd built without WithEnv).
func Default() Config {
	return Config{
		LogLevel:     "info",
		DefaultShell: "/bin/sh",
	}
}

// Load reads and parses a YAML config file, starting from Default() so
// a partial file only overrides what it mentions.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Logger builds a *slog.Logger at the configured level, writing text to
// stderr — the same handler shape the teacher's lexer/parser build
// (slog.NewTextHandler keyed off a debug flag).
func (c Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// Watch reloads Config from path whenever the file changes and invokes
// onChange with the newly parsed value. It returns a stop function that
// tears down the underlying fsnotify watcher; callers should defer it.
// Parse errors during a reload are logged and skipped rather than
// propagated, so a transient half-written config file (most editors
// write via a temp file + rename, which fsnotify reports as Create) does
// not crash a long-running consumer of this config.
func Watch(path string, onChange func(Config)) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: start watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					slog.Warn("config: reload failed, keeping previous config", "path", path, "err", err)
					continue
				}
				onChange(cfg)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
