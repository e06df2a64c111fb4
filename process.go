package sluice

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"golang.org/x/crypto/blake2b"

	"github.com/sluice-run/sluice/invariant"
	"github.com/sluice-run/sluice/pump"
	"github.com/sluice-run/sluice/subprocess"
)

// process is the running-subprocess handle shared by Cmd's three
// realisation modes (Producer/filter/Consumer). It owns whichever pipe
// ends and pump it created and exposes them either as a Stream (for the
// source/filter cases) or as a plain Wait (for the sink case).
//
// Grounded on the teacher's runtime/executor/pipeline_runner.go, which
// wires adjacent commands through os.Pipe() pairs and joins them with a
// sync.WaitGroup; here a single process plays one role at a time so the
// bookkeeping collapses to one pipe pair at most.
type process struct {
	cmd         *exec.Cmd
	argv        []string
	opts        subprocess.Options
	stdoutR     *os.File
	stdoutScan  *lineStream
	stdinPump   *pump.Pump
	fingerprint string
	exitCode    int

	// upstream is set when this process's stdin was wired via the fd
	// fast path from another process's stdout (process.go's wireStdin):
	// that upstream process was started but, since its stdout pipe was
	// handed to us directly, never pulled through its own Stream — so
	// nothing else ever reaps it. finish chains into upstream.finish so
	// every process in a fd-spliced chain is waited on exactly once,
	// however deep the chain (spec §3 invariant 3, §8's "no un-reaped
	// children" requirement).
	upstream *process

	// finished/finishErr latch finish's result: a process reached via the
	// fd fast path is reaped once through the downstream chain but its own
	// processStream may still be Close()d independently by whichever
	// Pipeline stage realised it (e.g. Pipeline.Run's deferred
	// CloseStream on the stream feeding the final sink), so finish must
	// tolerate being called more than once.
	finished  bool
	finishErr error

	// closeAfterStart lists the parent's copies of fds handed directly
	// to the child (the stdout pipe's write end, the stdin pipe's read
	// end). Each must be closed once the child has its own fd table
	// entry, or the parent's dangling copy keeps the other end's EOF
	// from ever being observed.
	closeAfterStart []*os.File
}

// spawnSpec describes how a single process's stdio should be wired,
// decided by the caller (Cmd's AsSource/ApplyFilter/Feed methods) based
// on what upstream actually is.
type spawnSpec struct {
	stdin          Stream // nil: no piped stdin (devnull unless stdinOverride set)
	stdinOverride  any    // set via WithStdin/dynamic "stdin" option
	wantStdout     bool   // true for Producer/filter: caller wants a further Stream
	stdoutOverride io.Writer
	stderrOverride io.Writer
}

// resolveOpts layers the ambient config defaults (UseConfig) under a
// Cmd's own opts: an explicit WithErrorLevel or WithEnv always wins, but
// a Cmd that never set one falls back to the ambient DefaultErrorLevel
// or EnvPassthrough allowlist instead of the library's unconditional
// "no check, full environment" defaults.
func resolveOpts(opts subprocess.Options) subprocess.Options {
	cfg := currentConfig()
	if opts.ErrorLevel == nil && cfg.DefaultErrorLevel != nil {
		lvl := *cfg.DefaultErrorLevel
		opts.ErrorLevel = &lvl
	}
	if len(opts.EnvAllowlist) == 0 && len(cfg.EnvPassthrough) > 0 {
		opts.EnvAllowlist = cfg.EnvPassthrough
	}
	return opts
}

func spawnProcess(ctx context.Context, c Cmd, spec spawnSpec) (*process, error) {
	if c.err != nil {
		return nil, c.err
	}
	argv, err := subprocess.FlattenArgv(c.argv)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, &BadFilterError{Stage: c}
	}

	if spec.stdin != nil && spec.stdinOverride != nil {
		return nil, &StdinOverriddenError{Argv: argv}
	}
	if spec.wantStdout && (spec.stdoutOverride != nil || c.stdout != nil) {
		return nil, &StdoutOverriddenError{Argv: argv}
	}

	opts := resolveOpts(c.opts)
	cmd, err := subprocess.Build(ctx, argv, opts)
	if err != nil {
		return nil, err
	}

	p := &process{cmd: cmd, argv: argv, opts: opts, fingerprint: fingerprintArgv(argv)}

	pendingPumpSrc, pendingPumpW, err := wireStdin(p, cmd, spec)
	if err != nil {
		return nil, err
	}
	wireStdout(p, cmd, spec)
	wireStderr(cmd, spec, c.stderr)

	startErr := cmd.Start()
	for _, f := range p.closeAfterStart {
		f.Close() // parent's copy of an fd now duplicated into the child
	}
	if p.upstream != nil {
		// The child now holds its own dup of the upstream's stdout fd
		// (or failed to start, in which case closing it is still
		// correct); the parent's copy is never read from again.
		p.upstream.stdoutR.Close()
	}
	if startErr != nil {
		if p.stdoutR != nil {
			p.stdoutR.Close()
		}
		if pendingPumpW != nil {
			pendingPumpW.Close()
		}
		if p.upstream != nil {
			p.upstream.finish()
		}
		failed := &SpawnFailedError{Argv: argv, Cause: startErr}
		if se, ok := subprocess.WrapSpawnError(argv, startErr).(*subprocess.SpawnError); ok {
			failed.Suggestion = se.Suggestion
		}
		return nil, failed
	}

	if pendingPumpSrc != nil {
		p.stdinPump = pump.Start(pendingPumpSrc, pendingPumpW, c.opts.UniversalNewlines)
	}
	slog.Debug("sluice: process started", "argv", argv, "fingerprint", p.fingerprint)
	return p, nil
}

// wireStdin decides the child's stdin. It returns a non-nil src/w pair
// when a pump must be started (deferred until after cmd.Start() succeeds,
// so a failed spawn never leaves an orphan pump goroutine writing into a
// pipe nobody reads).
func wireStdin(p *process, cmd *exec.Cmd, spec spawnSpec) (src pump.Source, w *os.File, err error) {
	upstream := spec.stdin
	if upstream == nil && spec.stdinOverride != nil {
		s, err := AsSource(spec.stdinOverride)
		if err != nil {
			return nil, nil, err
		}
		upstream = s
	}
	if upstream == nil {
		return nil, nil, nil // cmd.Stdin left nil: Go reads from the null device
	}

	// fd fast path: upstream is itself backed by a live fd (typically
	// another subprocess's stdout pipe) — hand it to exec.Cmd directly
	// so Go dup2()s it without an intermediate copy goroutine or pump.
	if fdStream, ok := upstream.(FDStream); ok {
		cmd.Stdin = os.NewFile(uintptr(fdStream.FD()), "sluice-stdin")
		slog.Debug("sluice: fd fast path taken for stdin")
		// The upstream process's own Stream is never pulled to
		// exhaustion now (its stdout fd went straight to this child
		// instead), so nothing else will ever wait on it. Chain it so
		// finish reaps it once this process is done.
		if ps, ok := upstream.(*processStream); ok {
			p.upstream = ps.p
		}
		return nil, nil, nil
	}

	r, pw, perr := os.Pipe()
	if perr != nil {
		return nil, nil, perr
	}
	pump.SetCloseOnExec(int(pw.Fd()))
	cmd.Stdin = r
	p.closeAfterStart = append(p.closeAfterStart, r)
	return upstream, pw, nil
}

func wireStdout(p *process, cmd *exec.Cmd, spec spawnSpec) {
	switch {
	case spec.wantStdout:
		r, w, _ := os.Pipe()
		cmd.Stdout = w
		p.stdoutR = r
		p.closeAfterStart = append(p.closeAfterStart, w)
	case spec.stdoutOverride != nil:
		cmd.Stdout = spec.stdoutOverride
	default:
		cmd.Stdout = os.Stdout
	}
}

func wireStderr(cmd *exec.Cmd, spec spawnSpec, cmdStderr io.Writer) {
	switch {
	case spec.stderrOverride != nil:
		cmd.Stderr = spec.stderrOverride
	case cmdStderr != nil:
		cmd.Stderr = cmdStderr
	default:
		cmd.Stderr = os.Stderr
	}
}

// asStream turns the producing/filtering side of a process into a Stream
// by framing the stdout pipe's read end into lines. It closes nothing: the
// parent's copy of the write end was already closed in spawnProcess
// (closeAfterStart), and the read end is closed by processStream.Close.
func (p *process) asStream() Stream {
	invariant.NotNil(p.stdoutR, "stdoutR")
	p.stdoutScan = newLineStream(p.stdoutR)
	return &processStream{p: p}
}

// processStream adapts a running process's stdout pipe into a Stream,
// and on exhaustion waits for the child and translates its exit code
// (and any stashed pump error) into the taxonomy in errors.go.
type processStream struct {
	p      *process
	waited bool
	werr   error
}

func (ps *processStream) Next() (Item, bool, error) {
	item, ok, err := ps.p.stdoutScan.Next()
	if err != nil {
		ps.wait()
		return nil, false, err
	}
	if ok {
		return item, true, nil
	}
	return nil, false, ps.wait()
}

func (ps *processStream) FD() int {
	return int(ps.p.stdoutR.Fd())
}

func (ps *processStream) Close() error {
	ps.p.stdoutScan.Close()
	return ps.wait()
}

func (ps *processStream) wait() error {
	if ps.waited {
		return ps.werr
	}
	ps.waited = true
	ps.werr = ps.p.finish()
	return ps.werr
}

// finish waits for the child, joins any stdin pump, and translates the
// result into the error taxonomy. If this process's stdin was spliced
// directly from an upstream process's stdout fd (the fd fast path in
// wireStdin), that upstream was never otherwise waited on, so finish
// reaps it here too — however many stages deep the splice chain runs.
// Idempotent: a process can be reaped both by the downstream chain and
// by its own processStream being closed independently, so only the
// first call does any real waiting.
func (p *process) finish() error {
	if p.finished {
		return p.finishErr
	}
	p.finished = true
	p.finishErr = p.finishOnce()
	return p.finishErr
}

func (p *process) finishOnce() error {
	invariant.NotNil(p.cmd, "cmd")
	waitErr := p.cmd.Wait()

	var pumpErr error
	if p.stdinPump != nil {
		pumpErr = p.stdinPump.Wait()
	}

	var upstreamErr error
	if p.upstream != nil {
		upstreamErr = p.upstream.finish()
	}

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return waitErr
		}
	}
	p.exitCode = exitCode

	if pumpErr != nil {
		slog.Debug("sluice: process finished with stashed pump error", "argv", p.argv, "err", pumpErr)
		return &PumpSourceFailedError{Cause: pumpErr}
	}
	if !subprocess.AcceptsExit(p.opts, exitCode) {
		return &ChildFailedError{Argv: p.argv, ExitCode: exitCode}
	}
	if upstreamErr != nil {
		return upstreamErr
	}
	return nil
}

// ExitCode returns the child's returncode after finish has run. Valid only
// once finish (directly, or via processStream.wait) has completed.
func (p *process) ExitCode() int {
	return p.exitCode
}

// fingerprintArgv returns a short blake2b digest of argv, logged with the
// "process started" debug line so that concurrent spawns of the same argv
// can be told apart in logs — observability sugar, not an identity or
// equality mechanism.
func fingerprintArgv(argv []string) string {
	h, _ := blake2b.New(8, nil)
	for _, a := range argv {
		h.Write([]byte(a))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	const hextable = "0123456789abcdef"
	out := make([]byte, len(sum)*2)
	for i, b := range sum {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0xf]
	}
	return string(out)
}
