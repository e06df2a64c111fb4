package sluice

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/sluice-run/sluice/subprocess"
)

// StageKind classifies a stage for Explain's benefit.
type StageKind string

const (
	StageSource StageKind = "source"
	StageFilter StageKind = "filter"
	StageSink   StageKind = "sink"
	StageCmd    StageKind = "cmd"
)

// StageDescription is one entry of a Pipeline's Explain() snapshot: a
// human label plus, for a Cmd stage, its argv at the time Explain ran.
type StageDescription struct {
	Kind  StageKind `cbor:"kind"`
	Label string    `cbor:"label"`
	Argv  []string  `cbor:"argv,omitempty"`
}

// Explain CBOR-encodes a description of the pipeline's flattened stage
// tuple — a read-only reflection for logging or snapshot-testing a
// pipeline's shape, not a persistent execution graph (this runtime has
// none: every Pipeline value is still realised fresh on Stream/Run).
// Grounded on the teacher's core/planfmt/canonical.go, which CBOR-encodes
// a compiled plan for the same "describe before running" purpose.
func (p Pipeline) Explain() ([]byte, error) {
	descs := make([]StageDescription, 0, len(p.stages))
	for i, s := range p.stages {
		descs = append(descs, describeStage(i, s))
	}
	b, err := cbor.Marshal(descs)
	if err != nil {
		return nil, fmt.Errorf("sluice: encode pipeline explanation: %w", err)
	}
	return b, nil
}

func describeStage(index int, stage any) StageDescription {
	if cmd, ok := stage.(Cmd); ok {
		argv, _ := subprocess.FlattenArgv(cmd.argv)
		return StageDescription{Kind: StageCmd, Label: fmt.Sprintf("stage[%d]", index), Argv: argv}
	}
	switch stage.(type) {
	case Source:
		return StageDescription{Kind: StageSource, Label: fmt.Sprintf("%T", stage)}
	case Sink:
		return StageDescription{Kind: StageSink, Label: fmt.Sprintf("%T", stage)}
	default:
		return StageDescription{Kind: StageFilter, Label: fmt.Sprintf("%T", stage)}
	}
}

// ExplainStages decodes bytes produced by Explain back into the
// described stage tuple, mainly for tests that want to assert a
// pipeline's shape without re-running FlattenArgv themselves.
func ExplainStages(b []byte) ([]StageDescription, error) {
	var out []StageDescription
	if err := cbor.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("sluice: decode pipeline explanation: %w", err)
	}
	return out, nil
}
