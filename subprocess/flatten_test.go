package subprocess_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sluice-run/sluice/subprocess"
)

func TestFlattenArgvScalarsAndNesting(t *testing.T) {
	argv, err := subprocess.FlattenArgv([]any{
		"git", "commit", []any{"-m", "message"}, 1, 2.5,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"git", "commit", "-m", "message", "1", "2.5"}, argv)
}

func TestFlattenArgvStringSlice(t *testing.T) {
	argv, err := subprocess.FlattenArgv([]any{"echo", []string{"a", "b", "c"}})
	require.NoError(t, err)
	require.Equal(t, []string{"echo", "a", "b", "c"}, argv)
}

// TestFlattenArgvIsTotal exercises spec §8 property 5: flattening never
// fails, even past the depth bound — excess nesting is coerced to its
// textual representation instead of recursed into further.
func TestFlattenArgvIsTotal(t *testing.T) {
	deep := []any{"a", []any{"b", []any{"c", []any{"d", []any{"e", "f"}}}}}
	argv, err := subprocess.FlattenArgv(deep)
	require.NoError(t, err)
	require.Equal(t, "a", argv[0])
	require.Equal(t, "b", argv[1])
	require.Equal(t, "c", argv[2])
	// depth 3 (maxFlattenDepth) stops recursing and stringifies the rest.
	require.Contains(t, argv[3], "d")
}

func TestFlattenArgvCoercesArbitraryValues(t *testing.T) {
	type point struct{ X, Y int }
	argv, err := subprocess.FlattenArgv([]any{"cmd", point{X: 1, Y: 2}})
	require.NoError(t, err)
	require.Equal(t, []string{"cmd", "{1 2}"}, argv)
}

// TestFlattenArgvStripsTrailingNewlineAtDepth2 exercises spec §8 property
// 6: a string's trailing newline is stripped once it's nested two levels
// deep (e.g. spliced in from a command's captured stdout), but left
// untouched at the top level or one level of nesting.
func TestFlattenArgvStripsTrailingNewlineAtDepth2(t *testing.T) {
	argv, err := subprocess.FlattenArgv([]any{
		"echo\n",
		[]any{"one-level\n"},
		[]any{[]any{"two-levels\n"}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"echo\n", "one-level\n", "two-levels"}, argv)
}
