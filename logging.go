package sluice

import "log/slog"

// SetLogger installs logger as the default used by every sluice/pump/
// subprocess Debug/Warn/Error call site (they all go through log/slog's
// package-level functions). Call it once at startup; a config.Config's
// Logger() is the usual source, e.g. sluice.SetLogger(cfg.Logger()).
func SetLogger(logger *slog.Logger) {
	slog.SetDefault(logger)
}
