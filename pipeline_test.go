package sluice_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/sluice-run/sluice"
)

// upper is a per-item ItemFilter stage, grounded on spec §8's "rev/float"
// worked examples — a plain function used where the whole-stream Filter
// protocol isn't needed.
func upper(it sluice.Item) (sluice.Item, bool, error) {
	s, _ := it.(string)
	out := ""
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		out += string(r)
	}
	return out, true, nil
}

func drainNames(t *testing.T, p sluice.Pipeline) []sluice.Item {
	t.Helper()
	s, err := p.Stream()
	require.NoError(t, err)
	items, err := sluice.Collect(s)
	require.NoError(t, err)
	return items
}

func TestComposeAssociativity(t *testing.T) {
	a := []string{"one", "two", "three"}
	b := sluice.ItemFilter(upper)
	c := sluice.ItemFilter(func(it sluice.Item) (sluice.Item, bool, error) {
		s, _ := it.(string)
		return s + "!", true, nil
	})

	left := sluice.New(sluice.New(a, b), c)
	right := sluice.New(a, sluice.New(b, c))

	if diff := cmp.Diff(drainNames(t, left), drainNames(t, right)); diff != "" {
		t.Fatalf("compose is not associative (-left +right):\n%s", diff)
	}
}

func TestFlatteningProducesSingleLevelStageTuple(t *testing.T) {
	inner := sluice.New("a", "b")
	outer := sluice.New(inner, "c")
	require.Equal(t, []any{"a", "b", "c"}, outer.Stages())
}

func TestEmptyPipelineIsIdentityFilter(t *testing.T) {
	upstream, err := sluice.AsSource([]string{"x", "y"})
	require.NoError(t, err)

	out, err := sluice.New().ApplyFilter(upstream)
	require.NoError(t, err)
	items, err := sluice.Collect(out)
	require.NoError(t, err)
	require.Equal(t, []sluice.Item{"x", "y"}, items)
}

func TestEmptyPipelineIteratesToEmptyStream(t *testing.T) {
	s, err := sluice.New().Stream()
	require.NoError(t, err)
	items, err := sluice.Collect(s)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestEmptyPipelineRunFailsWithEmptyPipelineError(t *testing.T) {
	err := sluice.New().Run()
	require.Error(t, err)
	var empty *sluice.EmptyPipelineError
	require.ErrorAs(t, err, &empty)
}

func TestFilterOnlyPipelineCannotBeRun(t *testing.T) {
	err := sluice.New(sluice.ItemFilter(upper)).Run()
	require.Error(t, err)
	var incomplete *sluice.IncompletePipelineError
	require.ErrorAs(t, err, &incomplete)
	require.Equal(t, "sink", incomplete.Missing)
}

func TestSinglePassIterationDoesNotReplay(t *testing.T) {
	p := sluice.New([]string{"a", "b"})
	s1, err := p.Stream()
	require.NoError(t, err)
	first, err := sluice.Collect(s1)
	require.NoError(t, err)
	require.Equal(t, []sluice.Item{"a", "b"}, first)

	// Re-iterating the Pipeline value starts a fresh realisation (spec §8
	// property 4's "pipeline may be re-iterated to start a fresh
	// realisation"); the stream object itself never replays.
	s2, err := p.Stream()
	require.NoError(t, err)
	second, err := sluice.Collect(s2)
	require.NoError(t, err)
	require.Equal(t, []sluice.Item{"a", "b"}, second)
}

func TestSinkReplacementOnSequence(t *testing.T) {
	var out []string
	existing := []string{"stale", "data"}
	err := sluice.New([]string{"fresh", "items"}).Into(&existing)
	require.NoError(t, err)
	require.Equal(t, []string{"fresh", "items"}, existing)

	err = sluice.RunInto([]string{"a", "b", "c"}, &out)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, out)
}

func TestSinkReplacementOnSet(t *testing.T) {
	set := map[sluice.Item]struct{}{"stale": {}}
	err := sluice.New([]string{"x", "y", "x"}).Into(set)
	require.NoError(t, err)
	_, hadStale := set["stale"]
	require.False(t, hadStale)
	require.Contains(t, set, sluice.Item("x"))
	require.Contains(t, set, sluice.Item("y"))
}

func TestDiscardSinkDrainsWithoutStoring(t *testing.T) {
	err := sluice.New([]string{"a", "b"}, sluice.Discard).Run()
	require.NoError(t, err)
}

func TestThenChainsFiltersThroughPipeline(t *testing.T) {
	var out []string
	err := sluice.New([]string{"ab", "cd"}).Then(sluice.ItemFilter(upper)).Into(&out)
	require.NoError(t, err)
	require.Equal(t, []string{"AB", "CD"}, out)
}
