// Package subprocess supplies the low-level mechanics a Cmd needs to
// become an operating-system process: argv flattening, launch-option
// validation, environment/working-directory wiring, and the error_level
// exit-code policy. It does not know about streams or pipelines — that
// orchestration lives in the root sluice package's Cmd type, which is
// the only caller of this package.
//
// Grounded on the teacher's core/sdk/executor/command.go (Cmd wrapping
// *exec.Cmd with SetStdout/SetStdin/AppendEnv-style builder methods) and
// core/sdk/executor/transport.go (MergeEnvironment, POSIX exit-code
// constants).
package subprocess

import "fmt"

// Options are the launch options spec §6 recognises. Stdin/Stdout/Stderr
// wiring is deliberately not represented here — the caller (Cmd) decides
// between the fd fast path and a pump based on what upstream actually is,
// which this package has no visibility into.
type Options struct {
	Env               map[string]string
	Cwd               string
	UniversalNewlines bool
	// ErrorLevel is the exit-code threshold from spec §4.6: on reap, a
	// negative (signalled) or >= ErrorLevel return code fails with
	// ChildFailedError. Nil means "no check" — any exit code, including
	// non-zero, is reported back to the caller without an error.
	ErrorLevel *int
	// EnvAllowlist, when non-empty, restricts the parent environment a
	// child inherits to just these names (config.Config's
	// EnvPassthrough, resolved by the caller before Build). Empty means
	// no restriction: the full parent environment is visible, as before
	// this field existed.
	EnvAllowlist []string
}

// AcceptsExit reports whether code satisfies opts' error_level policy.
func AcceptsExit(opts Options, code int) bool {
	if opts.ErrorLevel == nil {
		return true
	}
	if code < 0 {
		return false
	}
	return code < *opts.ErrorLevel
}

// Merge returns a new Options with fields from override replacing the
// corresponding fields of o wherever override sets them. Env maps are
// merged key-by-key (override wins on conflict) rather than replaced
// wholesale, matching the teacher's MergeEnvironment in transport.go.
func (o Options) Merge(override Options) Options {
	out := o
	if override.Cwd != "" {
		out.Cwd = override.Cwd
	}
	if override.UniversalNewlines {
		out.UniversalNewlines = override.UniversalNewlines
	}
	if override.ErrorLevel != nil {
		lvl := *override.ErrorLevel
		out.ErrorLevel = &lvl
	}
	if len(override.EnvAllowlist) > 0 {
		out.EnvAllowlist = override.EnvAllowlist
	}
	if len(override.Env) > 0 {
		merged := make(map[string]string, len(o.Env)+len(override.Env))
		for k, v := range o.Env {
			merged[k] = v
		}
		for k, v := range override.Env {
			merged[k] = v
		}
		out.Env = merged
	}
	return out
}

func (o Options) String() string {
	return fmt.Sprintf("Options{cwd=%q env=%d universal_newlines=%v error_level=%v env_allowlist=%d}",
		o.Cwd, len(o.Env), o.UniversalNewlines, o.ErrorLevel, len(o.EnvAllowlist))
}
