package subprocess

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// POSIX exit-code conventions, mirrored from the teacher's
// core/sdk/executor/transport.go so that ErrorLevel policies and test
// assertions can reference them by name instead of a bare literal.
const (
	ExitSuccess         = 0
	ExitCommandFailed   = 1
	ExitTimeout         = 124
	ExitPermissionDenied = 126
	ExitNotFound        = 127
)

// Build constructs an *exec.Cmd for argv[0] with argv[1:] as its
// arguments, with opts' environment (merged over the parent's) and
// working directory applied. The returned Cmd's Stdin/Stdout/Stderr are
// left unset — wiring them is the caller's job, since only the caller
// knows whether the fd fast path applies.
func Build(ctx context.Context, argv []string, opts Options) (*exec.Cmd, error) {
	if len(argv) == 0 {
		return nil, errors.New("subprocess: empty argv")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = mergeEnviron(filterEnviron(os.Environ(), opts.EnvAllowlist), opts.Env)
	if opts.Cwd != "" {
		cmd.Dir = opts.Cwd
	}
	return cmd, nil
}

// filterEnviron restricts base to the entries named in allowlist. An
// empty allowlist means no restriction: base is returned unchanged, the
// behaviour every Cmd had before config.Config.EnvPassthrough existed.
func filterEnviron(base []string, allowlist []string) []string {
	if len(allowlist) == 0 {
		return base
	}
	keep := make(map[string]struct{}, len(allowlist))
	for _, name := range allowlist {
		keep[name] = struct{}{}
	}
	out := make([]string, 0, len(allowlist))
	for _, kv := range base {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			if _, ok := keep[kv[:idx]]; ok {
				out = append(out, kv)
			}
		}
	}
	return out
}

// mergeEnviron overlays overrides onto base ("KEY=VALUE" entries, as
// returned by os.Environ), matching the teacher's MergeEnvironment in
// core/sdk/executor/transport.go.
func mergeEnviron(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	merged := make(map[string]string, len(base)+len(overrides))
	for _, kv := range base {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			merged[kv[:idx]] = kv[idx+1:]
		}
	}
	for k, v := range overrides {
		merged[k] = v
	}
	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	return out
}

// WrapSpawnError builds a diagnosable error for a process that failed to
// start (as opposed to one that started and exited non-zero). When the
// cause looks like "executable not found", it ranks argv[0] against
// every executable name on $PATH and attaches the closest match.
func WrapSpawnError(argv []string, cause error) error {
	suggestion := ""
	if len(argv) > 0 && looksLikeNotFound(cause) {
		suggestion = suggestExecutable(argv[0])
	}
	return &SpawnError{Argv: argv, Cause: cause, Suggestion: suggestion}
}

// SpawnError is subprocess's internal carrier for a failed Start(); the
// root package copies its suggestion into sluice.SpawnFailedError at the
// Cmd boundary.
type SpawnError struct {
	Argv       []string
	Cause      error
	Suggestion string
}

func (e *SpawnError) Error() string {
	msg := fmt.Sprintf("subprocess: failed to spawn %v: %v", e.Argv, e.Cause)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

func (e *SpawnError) Unwrap() error { return e.Cause }

func looksLikeNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist)
}

// suggestExecutable ranks name against every file on $PATH using the
// same fuzzy.RankFindFold call the teacher's planner uses for unknown
// decorator names (runtime/planner/planner.go).
func suggestExecutable(name string) string {
	var candidates []string
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				candidates = append(candidates, e.Name())
			}
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	matches := fuzzy.RankFindFold(name, candidates)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Target
}
