package sluice_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sluice-run/sluice"
)

func TestFileSourceYieldsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644))

	s, err := sluice.NewFile(path).AsSource()
	require.NoError(t, err)
	items, err := sluice.Collect(s)
	require.NoError(t, err)
	require.Equal(t, []sluice.Item{"one\n", "two\n", "three\n"}, items)
}

// Sink writes pass string items through unchanged (spec.md:75): a source
// that wants lines in the file supplies its own trailing newline, the way
// a lineStream-sourced string already does.

func TestFileSinkOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o644))

	err := sluice.New([]string{"a\n", "b\n"}, sluice.NewFile(path)).Run()
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "a\nb\n", string(got))
}

func TestFileSinkAppendIsImmutableSibling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	base := sluice.NewFile(path)
	appended := base.Append()

	require.NoError(t, sluice.New([]string{"a\n"}, base).Run())
	require.NoError(t, sluice.New([]string{"b\n"}, appended).Run())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "a\nb\n", string(got))

	// base is unchanged by Append(): using it again still overwrites.
	require.NoError(t, sluice.New([]string{"c\n"}, base).Run())
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "c\n", string(got))
}

func TestFileSinkSerialisesNonStringItemsWithNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	err := sluice.New([]sluice.Item{1, 2, 3}, sluice.NewFile(path)).Run()
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "1\n2\n3\n", string(got))
}

func TestFileAtomicWriteLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	err := sluice.New([]string{"x\n", "y\n"}).Into(sluice.NewFile(path).Atomic())
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "x\ny\n", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "out.txt", entries[0].Name())
}

// TestFileFollowReassemblesLineSplitAcrossWrites guards against a Scanner
// that would treat a temporary EOF as permanent and hand back "hello" and
// "world" as two items instead of waiting for the writer's second write to
// complete the line.
func TestFileFollowReassemblesLineSplitAcrossWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	s, err := sluice.NewFile(path).Follow().AsSource()
	require.NoError(t, err)
	defer sluice.CloseStream(s)

	out, err := os.OpenFile(path, os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer out.Close()

	_, err = out.WriteString("hello")
	require.NoError(t, err)
	require.NoError(t, out.Sync())

	time.Sleep(50 * time.Millisecond)

	_, err = out.WriteString("world\nsecond\n")
	require.NoError(t, err)
	require.NoError(t, out.Sync())

	got := make(chan sluice.Item, 2)
	go func() {
		for i := 0; i < 2; i++ {
			item, ok, err := s.Next()
			if err != nil || !ok {
				return
			}
			got <- item
		}
	}()

	var items []sluice.Item
	for len(items) < 2 {
		select {
		case item := <-got:
			items = append(items, item)
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for followed lines")
		}
	}
	require.Equal(t, []sluice.Item{"helloworld", "second"}, items)
}
