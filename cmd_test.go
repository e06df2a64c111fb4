package sluice_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sluice-run/sluice"
)

func TestCallTrueReturnsZero(t *testing.T) {
	code, err := sluice.Command("true").Call()
	require.NoError(t, err)
	require.Equal(t, 0, code)
}

func TestCallFalseReturnsOneWithoutError(t *testing.T) {
	// error_level is unset by default: any exit code, including non-zero,
	// is reported back rather than failing the Cmd.
	code, err := sluice.Command("false").Call()
	require.NoError(t, err)
	require.Equal(t, 1, code)
}

func TestCallWithErrorLevelFailsOnThreshold(t *testing.T) {
	code, err := sluice.Command("false").Configure(sluice.WithErrorLevel(1)).Call()
	require.Error(t, err)
	require.Equal(t, -1, code)

	var cf *sluice.ChildFailedError
	require.ErrorAs(t, err, &cf)
	require.Equal(t, 1, cf.ExitCode)
}

func TestCallWithErrorLevelAboveExitCodeSucceeds(t *testing.T) {
	// error_level=2: only codes >= 2 (or negative/signalled) fail.
	code, err := sluice.Command("false").Configure(sluice.WithErrorLevel(2)).Call()
	require.NoError(t, err)
	require.Equal(t, 1, code)
}

func TestCommandEchoAsSourceProducesStdoutLines(t *testing.T) {
	stream, err := sluice.Command("echo", "Hello, World!").AsSource()
	require.NoError(t, err)
	items, err := sluice.Collect(stream)
	require.NoError(t, err)
	require.Equal(t, []sluice.Item{"Hello, World!\n"}, items)
}

func TestCommandFeedWritesStdinThroughToStdout(t *testing.T) {
	var buf bytes.Buffer
	err := sluice.Command("cat").Configure(sluice.WithStdout(&buf)).Feed(mustSource(t, []string{"alpha\n", "beta\n"}))
	require.NoError(t, err)
	require.Equal(t, "alpha\nbeta\n", buf.String())
}

func TestCommandWithDynamicOptionsMergesEnv(t *testing.T) {
	c := sluice.Command("sh", "-c", "echo $SLUICE_GREETING").With(map[string]any{
		"env": map[string]any{"SLUICE_GREETING": "hi"},
	})
	stream, err := c.AsSource()
	require.NoError(t, err)
	items, err := sluice.Collect(stream)
	require.NoError(t, err)
	require.Equal(t, []sluice.Item{"hi\n"}, items)
}

func TestCommandWithUnknownDynamicOptionDefersError(t *testing.T) {
	c := sluice.Command("true").With(map[string]any{"error_lvl": 1})
	_, err := c.Argv()
	require.Error(t, err)

	var badOpt *sluice.BadOptionError
	require.ErrorAs(t, err, &badOpt)
}

func TestCommandStdinOverriddenConflictsWithPipelineStdin(t *testing.T) {
	c := sluice.Command("cat").Configure(sluice.WithStdin("fixed stdin"))
	err := c.Feed(mustSource(t, []string{"from pipeline"}))
	require.Error(t, err)

	var conflict *sluice.StdinOverriddenError
	require.ErrorAs(t, err, &conflict)
}

func TestDashConvertsUnderscoresAndSpaces(t *testing.T) {
	require.Equal(t, "docker-compose", sluice.Dash("docker_compose"))
	require.Equal(t, "my-cool-tool", sluice.Dash("my cool tool"))
}

func mustSource(t *testing.T, lines []string) sluice.Stream {
	t.Helper()
	s, err := sluice.AsSource(lines)
	require.NoError(t, err)
	return s
}

func TestCommandArgvFlattensNestedSlices(t *testing.T) {
	c := sluice.Command("printf", []any{"%s", "x"})
	argv, err := c.Argv()
	require.NoError(t, err)
	require.Equal(t, []string{"printf", "%s", "x"}, argv)
}

func TestCommandThenBuildsTwoStagePipeline(t *testing.T) {
	var out strings.Builder
	err := sluice.Command("echo", "abc").Then(sluice.Command("rev")).Into(&out)
	require.NoError(t, err)
	require.Equal(t, "cba\n", out.String())
}
