package sluice_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sluice-run/sluice"
	"github.com/sluice-run/sluice/config"
)

// useConfigForTest installs cfg and restores the library default once the
// test finishes, since UseConfig's target is process-wide ambient state.
func useConfigForTest(t *testing.T, cfg config.Config) {
	t.Helper()
	sluice.UseConfig(cfg)
	t.Cleanup(func() { sluice.UseConfig(config.Default()) })
}

func TestShellBuildsCommandFromAmbientDefaultShell(t *testing.T) {
	argv, err := sluice.Shell("echo hi").Argv()
	require.NoError(t, err)
	require.Equal(t, []string{"/bin/sh", "-c", "echo hi"}, argv)
}

func TestShellHonoursUseConfigOverride(t *testing.T) {
	lvl := 0
	useConfigForTest(t, config.Config{DefaultShell: "/bin/bash", DefaultErrorLevel: &lvl})

	argv, err := sluice.Shell("echo hi").Argv()
	require.NoError(t, err)
	require.Equal(t, []string{"/bin/bash", "-c", "echo hi"}, argv)
}

func TestAmbientDefaultErrorLevelFailsCmdWithoutExplicitOverride(t *testing.T) {
	threshold := 1
	useConfigForTest(t, config.Config{DefaultShell: "/bin/sh", DefaultErrorLevel: &threshold})

	code, err := sluice.Command("false").Call()
	require.Error(t, err)
	require.Equal(t, -1, code)

	var cf *sluice.ChildFailedError
	require.ErrorAs(t, err, &cf)
	require.Equal(t, 1, cf.ExitCode)
}

func TestExplicitErrorLevelOverridesAmbientDefault(t *testing.T) {
	threshold := 1
	useConfigForTest(t, config.Config{DefaultShell: "/bin/sh", DefaultErrorLevel: &threshold})

	// WithErrorLevel(2) on the Cmd itself wins over the ambient threshold
	// of 1, so exit code 1 is still accepted.
	code, err := sluice.Command("false").Configure(sluice.WithErrorLevel(2)).Call()
	require.NoError(t, err)
	require.Equal(t, 1, code)
}

func TestAmbientEnvPassthroughRestrictsInheritedEnv(t *testing.T) {
	t.Setenv("SLUICE_RUNTIME_ALLOWED", "yes")
	t.Setenv("SLUICE_RUNTIME_BLOCKED", "no")
	useConfigForTest(t, config.Config{
		DefaultShell:   "/bin/sh",
		EnvPassthrough: []string{"SLUICE_RUNTIME_ALLOWED"},
	})

	var out strings.Builder
	_, err := sluice.Command("sh", "-c", "echo [$SLUICE_RUNTIME_ALLOWED][$SLUICE_RUNTIME_BLOCKED]").
		Configure(sluice.WithStdout(&out)).
		Call()
	require.NoError(t, err)
	require.Equal(t, "[yes][]\n", out.String())
}
