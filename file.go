package sluice

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// File is the path-backed collaborator from spec §6: iterating a File
// yields its lines; feeding a File writes (or appends) each item as a
// line. Write and append are separate immutable sibling values — Append()
// returns a new File rather than flipping a flag on the receiver, so a
// File used as a sink can't accidentally be reused in the other mode.
//
// Grounded on the teacher's core/sdk/execution.go FsPathSink/SinkCaps
// model (Caps/OpenWrite/OpenRead) and core/sdk/executor/transport.go's
// atomicWriter (temp file + rename).
type File struct {
	path     string
	append   bool
	atomic   bool
	follow   bool
}

// NewFile returns a File over path in overwrite mode.
func NewFile(path string) File { return File{path: path} }

// Append returns a sibling File that writes in append mode instead of
// overwrite. The receiver is unchanged.
func (f File) Append() File {
	next := f
	next.append = true
	next.atomic = false
	return next
}

// Atomic returns a sibling File whose writes go through a temp-file +
// rename (grounded on transport.go's atomicWriter) so a reader never
// observes a partially written file. Incompatible with Append (an
// atomic rename can't be combined with appending to existing content);
// calling Atomic on an appending File is a no-op on the append flag —
// the sibling keeps append semantics and atomic is ignored at write time.
func (f File) Atomic() File {
	next := f
	next.atomic = true
	return next
}

// Follow returns a sibling File whose AsSource realisation does not stop
// at EOF: it uses fsnotify to watch for further writes and yields new
// lines as they appear, the shell idiom of piping a log file as it
// grows (SPEC_FULL §3.3). Realising a Follow()-ed File as a sink is
// identical to the base File — Follow only changes source behaviour.
func (f File) Follow() File {
	next := f
	next.follow = true
	return next
}

// AsSource implements Source: open the file for reading and yield its
// lines. A Follow()-ed File keeps watching after EOF until its consumer
// stops pulling or Close is called.
func (f File) AsSource() (Stream, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("sluice: open %s for read: %w", f.path, err)
	}
	if !f.follow {
		return newLineStream(file), nil
	}
	return newFollowStream(file)
}

// Feed implements Sink: write (or append) every item to the file as a
// line. Write mode goes through an atomic temp-file+rename swap when
// Atomic() was set; append mode always opens with O_APPEND.
func (f File) Feed(upstream Stream) error {
	if f.append {
		return f.feedAppend(upstream)
	}
	if f.atomic {
		return f.feedAtomic(upstream)
	}
	out, err := os.Create(f.path)
	if err != nil {
		return fmt.Errorf("sluice: open %s for write: %w", f.path, err)
	}
	defer out.Close()
	return writeLines(out, upstream)
}

func (f File) feedAppend(upstream Stream) error {
	out, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("sluice: open %s for append: %w", f.path, err)
	}
	defer out.Close()
	return writeLines(out, upstream)
}

// feedAtomic writes to a sibling temp file and renames it over f.path,
// so a concurrent reader of f.path never observes a half-written file —
// the same pattern as the teacher's atomicWriter in
// core/sdk/executor/transport.go.
func (f File) feedAtomic(upstream Stream) error {
	tmp, err := os.CreateTemp(dirOf(f.path), ".sluice-tmp-*")
	if err != nil {
		return fmt.Errorf("sluice: create temp file for atomic write to %s: %w", f.path, err)
	}
	tmpPath := tmp.Name()
	if err := writeLines(tmp, upstream); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("sluice: rename temp file into place for %s: %w", f.path, err)
	}
	return nil
}

// writeLines writes each item to w. A string item is written as-is — it
// already carries whatever line terminator its source produced (spec
// §3) — while any other value is formatted and given a trailing newline,
// mirroring feedWriter/pump.writeItem's string-vs-other split.
func writeLines(w *os.File, upstream Stream) error {
	bw := bufio.NewWriter(w)
	for {
		item, ok, err := upstream.Next()
		if err != nil {
			return err
		}
		if !ok {
			return bw.Flush()
		}
		var writeErr error
		if s, ok := item.(string); ok {
			_, writeErr = bw.WriteString(s)
		} else {
			_, writeErr = fmt.Fprintf(bw, "%v\n", item)
		}
		if writeErr != nil {
			return writeErr
		}
	}
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// followStream is the fsnotify-backed realisation of File.Follow(): it
// drains whatever is already in the file, then blocks on a filesystem
// watch for further Write events and keeps draining as they arrive.
//
// It reads the file directly rather than through a bufio.Scanner: a
// Scanner treats the first io.EOF it sees as permanent end of stream and
// will hand back a not-yet-newline-terminated tail as a final token, which
// is wrong here — a writer appending "hello" and later "world\n" in two
// separate writes must still yield one "helloworld" line, not "hello" then
// "world". Unterminated bytes are held in buf across fsnotify wakeups
// instead of being flushed out as a premature item.
type followStream struct {
	file    *os.File
	buf     []byte
	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	chunk   []byte
}

func newFollowStream(file *os.File) (*followStream, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("sluice: start file watcher for %s: %w", file.Name(), err)
	}
	if err := watcher.Add(file.Name()); err != nil {
		watcher.Close()
		file.Close()
		return nil, fmt.Errorf("sluice: watch %s: %w", file.Name(), err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &followStream{
		file:    file,
		watcher: watcher,
		ctx:     ctx,
		cancel:  cancel,
		chunk:   make([]byte, 64*1024),
	}, nil
}

func (s *followStream) Next() (Item, bool, error) {
	for {
		if i := bytes.IndexByte(s.buf, '\n'); i >= 0 {
			line := strings.TrimSuffix(string(s.buf[:i]), "\r")
			s.buf = s.buf[i+1:]
			return line, true, nil
		}

		n, err := s.file.Read(s.chunk)
		if n > 0 {
			s.buf = append(s.buf, s.chunk[:n]...)
			continue
		}
		if err != nil && err != io.EOF {
			return nil, false, err
		}

		select {
		case <-s.ctx.Done():
			return nil, false, nil
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return nil, false, nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				continue
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil, false, nil
			}
			return nil, false, err
		}
	}
}

func (s *followStream) Close() error {
	s.cancel()
	s.watcher.Close()
	return s.file.Close()
}
