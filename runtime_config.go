package sluice

import (
	"sync/atomic"

	"github.com/sluice-run/sluice/config"
)

// activeConfig holds the process-wide ambient defaults every new Cmd
// consults unless it overrides them explicitly (WithErrorLevel, an
// explicit program name instead of Shell, or an explicit WithEnv).
// Stored by value in an atomic.Value so UseConfig can be called
// concurrently with Cmd construction without a mutex.
var activeConfig atomic.Value // config.Config

func init() {
	activeConfig.Store(config.Default())
}

// UseConfig installs cfg as the ambient defaults for every Cmd built
// afterwards: its DefaultShell backs Shell(), its DefaultErrorLevel
// backs any Cmd that doesn't set WithErrorLevel itself, and its
// EnvPassthrough restricts what of the parent's environment a Cmd
// inherits unless it sets WithEnv. Pair with SetLogger(cfg.Logger())
// to apply a loaded config.Config's full effect in one call.
func UseConfig(cfg config.Config) {
	activeConfig.Store(cfg)
}

func currentConfig() config.Config {
	return activeConfig.Load().(config.Config)
}

// Shell builds a Cmd that runs script through the ambient default shell
// (config.Config.DefaultShell, "/bin/sh" until UseConfig says otherwise)
// — sugar for spec.md:231's `Cmd.sh("-c", script)` worked example, with
// the interpreter itself configurable instead of hardcoded.
func Shell(script string) Cmd {
	return Command(currentConfig().DefaultShell, "-c", script)
}
