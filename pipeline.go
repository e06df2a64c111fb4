package sluice

import "log/slog"

// Pipeline is an ordered, flattened tuple of stages: a source, zero or
// more filters, and optionally a sink. It is an immutable value — every
// operation that extends a Pipeline returns a new one (spec §3 invariant
// 2, mirrored by the teacher's executionContext.With* pattern in
// runtime/executor/context.go, which returns a new *executionContext
// rather than mutating the receiver).
type Pipeline struct {
	stages []any
}

// New builds a Pipeline from stages, flattening any Pipeline arguments in
// place so that New(New(a, b), c) and New(a, b, c) produce an identical
// stage tuple (spec §8's flattening property).
func New(stages ...any) Pipeline {
	flat := make([]any, 0, len(stages))
	for _, s := range stages {
		if p, ok := s.(Pipeline); ok {
			flat = append(flat, p.stages...)
		} else {
			flat = append(flat, s)
		}
	}
	return Pipeline{stages: flat}
}

// Stages returns a copy of the flattened stage tuple. Mostly useful for
// Explain (explain.go) and tests.
func (p Pipeline) Stages() []any {
	return append([]any(nil), p.stages...)
}

// Then returns a new Pipeline with stage appended — the chainable
// substitute for the host language's `/` compose operator (Go has no
// operator overloading; REDESIGN FLAGS calls for a method here instead).
func (p Pipeline) Then(stage any) Pipeline {
	return New(append(append([]any(nil), p.stages...), stage)...)
}

// Stream realises the pipeline in iterate mode: the first stage is
// converted to a Stream via AsSource, and every remaining stage is
// applied as the whole-stream Filter protocol of the sub-pipeline holding
// them (spec §4.5 "iterate").
func (p Pipeline) Stream() (Stream, error) {
	if len(p.stages) == 0 {
		return emptyStream{}, nil
	}
	src, err := AsSource(p.stages[0])
	if err != nil {
		if _, ok := p.stages[0].(Source); ok {
			return nil, err // a real source that failed to realise, e.g. a spawn error
		}
		return nil, &IncompletePipelineError{Missing: "source", Stage: p.stages[0]}
	}
	rest := New(p.stages[1:]...)
	slog.Debug("sluice: pipeline stream realised", "stages", len(p.stages))
	return rest.ApplyFilter(src)
}

// ApplyFilter implements the whole-stream Filter protocol for Pipeline
// itself, which is what lets a sub-pipeline of filters be spliced into a
// larger pipeline's filter position. It peels the last stage off,
// realises everything before it (including upstream) as a Stream, then
// applies the last stage as a filter over that — a right-fold that keeps
// adjacent Cmd stages next to each other in the recursion so the fd fast
// path (spec §5) is reachable from either direction.
func (p Pipeline) ApplyFilter(upstream Stream) (Stream, error) {
	if len(p.stages) == 0 {
		return upstream, nil
	}
	last := p.stages[len(p.stages)-1]
	innerStages := append([]any{upstream}, p.stages[:len(p.stages)-1]...)
	inner, err := New(innerStages...).Stream()
	if err != nil {
		return nil, err
	}
	return Filt(last, inner)
}

// Run realises the pipeline in run mode: every stage but the last is
// streamed (iterate), and the last stage consumes that stream via the
// Sink protocol (spec §4.5 "run"). A pipeline with zero stages is
// EmptyPipelineError; a pipeline whose last stage has no sink capability
// is IncompletePipelineError.
func (p Pipeline) Run() error {
	if len(p.stages) == 0 {
		return &EmptyPipelineError{}
	}
	last := p.stages[len(p.stages)-1]
	rest := New(p.stages[:len(p.stages)-1]...)
	upstream, err := rest.Stream()
	if err != nil {
		return err
	}
	defer CloseStream(upstream)
	slog.Debug("sluice: pipeline run", "stages", len(p.stages))
	if err := Feed(last, upstream); err != nil {
		if _, ok := err.(*BadSinkError); ok {
			return &IncompletePipelineError{Missing: "sink", Stage: last}
		}
		return err
	}
	return nil
}

// Into builds New(p, sink) and runs it — the chainable substitute for the
// host language's `>>` run-into operator. Compose (`/`, i.e. Then/New)
// binds tighter than run-into: a caller writes Compose(a, b).Into(sink),
// never a mixed expression that needs operator precedence.
func (p Pipeline) Into(sink any) error {
	return p.Then(sink).Run()
}

// FilterOf returns a Pipeline usable as a standalone Filter: applying it
// to an upstream Stream is equivalent to New(upstream, p.stages...).Stream().
// This is just ApplyFilter exposed as a named operation for callers that
// want to hold a reusable filter value without wrapping it in Pipeline
// boilerplate each time.
func (p Pipeline) FilterOf() Filter { return p }

// Compose flattens stages into a single Pipeline — a free-function form
// of New for call sites that prefer it.
func Compose(stages ...any) Pipeline { return New(stages...) }

// RunInto composes source and sink into a two-stage Pipeline and runs it.
func RunInto(source any, sink any) error { return New(source, sink).Run() }
