package sluice

import (
	"context"
	"io"
	"strings"

	"github.com/sluice-run/sluice/subprocess"
)

// Cmd is a curried, immutable subprocess builder (spec §4.6). The
// methods that extend a Cmd — With and Configure — return a new value;
// no method mutates the receiver. This mirrors the teacher's
// executionContext.With* family in the now-superseded
// runtime/executor/context.go, which returns a fresh *executionContext
// from every With method rather than touching the receiver in place.
//
// Cmd participates in all three dataflow protocols: as a Source (used
// first in a pipeline, a Producer), as a Filter (used mid-pipeline, its
// stdin and stdout both wired to neighbours), and as a Sink (used last,
// a Consumer).
type Cmd struct {
	argv   []any
	opts   subprocess.Options
	stdin  any // launch-option override: WithStdin/dynamic "stdin"
	stdout io.Writer
	stderr io.Writer
	err    error // first validation error from With, surfaced by Argv and at spawn time
}

// Command builds a Cmd for name with args appended to its argv. Go has
// no attribute-style sugar for a bare "Cmd.echo" the way a dynamically
// typed host would; Command(name, args...) is the explicit equivalent.
func Command(name string, args ...any) Cmd {
	return Cmd{argv: append([]any{name}, args...)}
}

// Dash converts a snake_case or space_separated name into the
// dash-separated form many CLI tools expect for their argv[0]
// (docker_compose -> docker-compose), matching the attribute-sugar the
// host language's builder used for name lookup.
func Dash(name string) string {
	return strings.ReplaceAll(strings.ReplaceAll(name, "_", "-"), " ", "-")
}

func (c Cmd) clone() Cmd {
	return Cmd{
		argv:   append([]any(nil), c.argv...),
		opts:   c.opts,
		stdin:  c.stdin,
		stdout: c.stdout,
		stderr: c.stderr,
		err:    c.err,
	}
}

// With returns a new Cmd with parts appended. A positional string,
// number, or nested slice appends to argv (flattened lazily at spawn
// time, subprocess.FlattenArgv); a positional map[string]any instead
// merges into launch options, validated immediately against the
// recognised-key schema (subprocess.ValidateDynamicOptions) — an unknown
// key or wrong-shaped value is recorded and surfaced the next time this
// Cmd is realised as a Source/Filter/Sink.
func (c Cmd) With(parts ...any) Cmd {
	next := c.clone()
	for _, p := range parts {
		if m, ok := p.(map[string]any); ok {
			next = next.mergeDynamic(m)
			continue
		}
		next.argv = append(next.argv, p)
	}
	return next
}

func (c Cmd) mergeDynamic(m map[string]any) Cmd {
	if c.err != nil {
		return c
	}
	dyn, err := subprocess.ValidateDynamicOptions(m)
	if err != nil {
		next := c.clone()
		next.err = err
		return next
	}
	next := c.clone()
	next.opts = next.opts.Merge(dyn.Opts)
	if len(dyn.Args) > 0 {
		next.argv = append(next.argv, dyn.Args...)
	}
	if dyn.Stdin != nil {
		next.stdin = dyn.Stdin
	}
	if w, ok := dyn.Stdout.(io.Writer); ok {
		next.stdout = w
	}
	if w, ok := dyn.Stderr.(io.Writer); ok {
		next.stderr = w
	}
	return next
}

// Option is a typed launch-option setter for Cmd.Configure, the
// idiomatic-Go alternative to the dynamic map form (functional options,
// grounded on the pattern pervasive across the example pack's session
// and transport constructors).
type Option func(*Cmd)

func WithEnv(kv map[string]string) Option {
	return func(c *Cmd) { c.opts = c.opts.Merge(subprocess.Options{Env: kv}) }
}

func WithCwd(dir string) Option {
	return func(c *Cmd) { c.opts.Cwd = dir }
}

func WithUniversalNewlines(enabled bool) Option {
	return func(c *Cmd) { c.opts.UniversalNewlines = enabled }
}

// WithErrorLevel sets the exit-code threshold: a returncode that is
// negative (signalled) or >= threshold fails the Cmd with ChildFailedError
// on reap. Unset (the default) means no check — any exit code, including
// non-zero, is simply reported back to the caller.
func WithErrorLevel(threshold int) Option {
	return func(c *Cmd) { c.opts.ErrorLevel = &threshold }
}

func WithStdin(v any) Option {
	return func(c *Cmd) { c.stdin = v }
}

func WithStdout(w io.Writer) Option {
	return func(c *Cmd) { c.stdout = w }
}

func WithStderr(w io.Writer) Option {
	return func(c *Cmd) { c.stderr = w }
}

// Configure returns a new Cmd with opts applied in order.
func (c Cmd) Configure(opts ...Option) Cmd {
	next := c.clone()
	for _, opt := range opts {
		opt(&next)
	}
	return next
}

// Argv returns the flattened argv this Cmd would spawn with, without
// spawning it. Surfaces any deferred validation error from With.
func (c Cmd) Argv() ([]string, error) {
	if c.err != nil {
		return nil, c.err
	}
	return subprocess.FlattenArgv(c.argv)
}

// AsSource implements Source: spawn the command with stdin left unwired
// (devnull, unless a stdin launch option was set) and stdout piped, and
// return that pipe as a Stream of text lines — a Producer.
func (c Cmd) AsSource() (Stream, error) {
	p, err := spawnProcess(context.Background(), c, spawnSpec{
		stdinOverride:  c.stdin,
		wantStdout:     true,
		stderrOverride: c.stderr,
	})
	if err != nil {
		return nil, err
	}
	return p.asStream(), nil
}

// ApplyFilter implements Filter: spawn the command with stdin wired from
// upstream and stdout piped onward to whatever comes next.
func (c Cmd) ApplyFilter(upstream Stream) (Stream, error) {
	p, err := spawnProcess(context.Background(), c, spawnSpec{
		stdin:          upstream,
		stdinOverride:  c.stdin,
		wantStdout:     true,
		stderrOverride: c.stderr,
	})
	if err != nil {
		return nil, err
	}
	return p.asStream(), nil
}

// Feed implements Sink: spawn the command with stdin wired from upstream
// and stdout left connected to the parent's own stdout (unless a stdout
// launch option was set) — a Consumer.
func (c Cmd) Feed(upstream Stream) error {
	p, err := spawnProcess(context.Background(), c, spawnSpec{
		stdin:          upstream,
		stdinOverride:  c.stdin,
		stdoutOverride: c.stdout,
		stderrOverride: c.stderr,
	})
	if err != nil {
		return err
	}
	return p.finish()
}

// Call runs the command in isolation — no pipeline context, stdin left
// at devnull unless overridden, stdout/stderr connected to the parent's
// own unless overridden — and returns its exit code. With error_level
// unset (the default) any exit code is reported back with a nil error,
// which is the realisation behind the worked examples
// `Cmd.true.call() ⇒ 0` and `Cmd.false.call() ⇒ 1`. Setting error_level
// makes Call return a *ChildFailedError once the returncode crosses the
// threshold, alongside the same numeric code.
func (c Cmd) Call() (int, error) {
	p, err := spawnProcess(context.Background(), c, spawnSpec{
		stdinOverride:  c.stdin,
		stdoutOverride: c.stdout,
		stderrOverride: c.stderr,
	})
	if err != nil {
		return -1, err
	}
	if err := p.finish(); err != nil {
		if cf, ok := err.(*ChildFailedError); ok {
			return cf.ExitCode, err
		}
		return -1, err
	}
	return p.ExitCode(), nil
}

// CallContext is Call with an explicit context for cancellation — spec's
// concurrency model requires every blocking operation to accept one.
func (c Cmd) CallContext(ctx context.Context) (int, error) {
	p, err := spawnProcess(ctx, c, spawnSpec{
		stdinOverride:  c.stdin,
		stdoutOverride: c.stdout,
		stderrOverride: c.stderr,
	})
	if err != nil {
		return -1, err
	}
	if err := p.finish(); err != nil {
		if cf, ok := err.(*ChildFailedError); ok {
			return cf.ExitCode, err
		}
		return -1, err
	}
	return p.ExitCode(), nil
}

// Then and Into let a Cmd start a Pipeline fluently without an explicit
// New call, e.g. Command("rev").Then(Command("sort")).Into(&lines).
func (c Cmd) Then(stage any) Pipeline { return New(c, stage) }
func (c Cmd) Into(sink any) error     { return New(c, sink).Run() }
