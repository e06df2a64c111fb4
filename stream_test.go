package sluice_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sluice-run/sluice"
)

func TestAsSourceFromStringSlice(t *testing.T) {
	s, err := sluice.AsSource([]string{"a", "b", "c"})
	require.NoError(t, err)
	items, err := sluice.Collect(s)
	require.NoError(t, err)
	require.Equal(t, []sluice.Item{"a", "b", "c"}, items)
}

func TestAsSourceFromSingleString(t *testing.T) {
	s, err := sluice.AsSource("just one line")
	require.NoError(t, err)
	items, err := sluice.Collect(s)
	require.NoError(t, err)
	require.Equal(t, []sluice.Item{"just one line"}, items)
}

func TestAsSourceFromReaderFramesLines(t *testing.T) {
	s, err := sluice.AsSource(strings.NewReader("one\ntwo\nthree\n"))
	require.NoError(t, err)
	items, err := sluice.Collect(s)
	require.NoError(t, err)
	require.Equal(t, []sluice.Item{"one\n", "two\n", "three\n"}, items)
}

func TestAsSourceRejectsUnsupportedType(t *testing.T) {
	_, err := sluice.AsSource(42)
	require.Error(t, err)
}

func TestCollectIsSinglePass(t *testing.T) {
	s, err := sluice.AsSource([]string{"x", "y"})
	require.NoError(t, err)
	first, err := sluice.Collect(s)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// A second Collect over the same exhausted Stream yields nothing —
	// streams are single-pass (spec §8).
	second, err := sluice.Collect(s)
	require.NoError(t, err)
	require.Empty(t, second)
}
