package sluice

import (
	"fmt"

	"github.com/sluice-run/sluice/subprocess"
)

// BadFilterError reports a stage used in filter position that satisfies
// none of the recognised filter protocols (whole-stream, per-item
// callable).
type BadFilterError struct {
	Stage any
}

func (e *BadFilterError) Error() string {
	return fmt.Sprintf("sluice: %T does not implement a recognised filter protocol", e.Stage)
}

// BadSinkError reports a stage used in sink position that satisfies none
// of the recognised sink protocols (whole-stream, per-item callable,
// container, byte-writable).
type BadSinkError struct {
	Stage any
}

func (e *BadSinkError) Error() string {
	return fmt.Sprintf("sluice: %T does not implement a recognised sink protocol", e.Stage)
}

// EmptyPipelineError is returned by Pipeline.Run when the pipeline has
// zero stages. Pipeline.Stream on a zero-stage pipeline returns an empty
// stream instead.
type EmptyPipelineError struct{}

func (e *EmptyPipelineError) Error() string { return "sluice: pipeline has no stages" }

// IncompletePipelineError is returned when a pipeline of filters only is
// realised without a prepended source (Stream) or run without an
// appended sink (Run).
type IncompletePipelineError struct {
	Missing string // "source" or "sink"
	Stage   any
}

func (e *IncompletePipelineError) Error() string {
	return fmt.Sprintf("sluice: pipeline is missing a %s; first usable stage was %T", e.Missing, e.Stage)
}

// ChildFailedError reports a subprocess that exited with a code not
// accepted by its error_level policy.
type ChildFailedError struct {
	Argv     []string
	ExitCode int
}

func (e *ChildFailedError) Error() string {
	return fmt.Sprintf("sluice: command %v exited %d", e.Argv, e.ExitCode)
}

// PumpSourceFailedError wraps an error raised by the upstream Stream while
// a pump goroutine was copying it into a subprocess's stdin. It surfaces
// on Close/Wait of the process the pump was feeding, per spec §4.2's
// stash-and-reraise contract.
type PumpSourceFailedError struct {
	Cause error
}

func (e *PumpSourceFailedError) Error() string {
	return fmt.Sprintf("sluice: pump source failed: %v", e.Cause)
}

func (e *PumpSourceFailedError) Unwrap() error { return e.Cause }

// SpawnFailedError reports a subprocess that could not be started at all
// (executable not found, permission denied, etc).
type SpawnFailedError struct {
	Argv       []string
	Cause      error
	Suggestion string // optional "did you mean" hint, see subprocess.WrapSpawnError
}

func (e *SpawnFailedError) Error() string {
	msg := fmt.Sprintf("sluice: failed to spawn %v: %v", e.Argv, e.Cause)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

func (e *SpawnFailedError) Unwrap() error { return e.Cause }

// StdinOverriddenError reports a Cmd whose stdin launch option was already
// set by With/Configure being used in a position (pipeline filter/sink) that
// would also wire stdin, e.g. two competing stdin sources.
type StdinOverriddenError struct {
	Argv []string
}

func (e *StdinOverriddenError) Error() string {
	return fmt.Sprintf("sluice: stdin for %v is already set by a launch option and cannot also be wired from a pipeline", e.Argv)
}

// StdoutOverriddenError is StdinOverriddenError's counterpart for stdout.
type StdoutOverriddenError struct {
	Argv []string
}

func (e *StdoutOverriddenError) Error() string {
	return fmt.Sprintf("sluice: stdout for %v is already set by a launch option and cannot also be wired from a pipeline", e.Argv)
}

// BadOptionError is re-exported from subprocess for callers that want to
// catch it with errors.As without importing the subprocess package
// directly. Cmd.With records this type verbatim from ValidateDynamicOptions,
// and Cmd.Argv or the Cmd's next realisation returns it.
type BadOptionError = subprocess.BadOptionError
