// Package pump bridges an in-process item sequence to an OS pipe so a
// subprocess can read it as stdin. It is the Go realisation of spec
// §4.2's IterToPipe: a background goroutine drains the sequence into the
// pipe's write end, formatting each item as a line (or writing raw bytes
// when an item already is one), and stashes the first failure for the
// caller to collect when the pump is closed.
//
// The pattern is grounded on the teacher's shell_worker.go pumpStream
// goroutines (runtime/executor/shell_worker.go in the opal-lang-opal
// teacher repo): one goroutine per stream, a buffer pool, and a
// completion channel the owner waits on during teardown.
package pump

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"syscall"

	"github.com/sluice-run/sluice/invariant"
)

// Source is the minimal shape a pump needs to drain an upstream sequence.
// sluice.Stream satisfies this structurally — pump does not import the
// root package, which would create an import cycle.
type Source interface {
	Next() (item any, ok bool, err error)
}

// Pump owns a background goroutine copying Source into a pipe write end.
type Pump struct {
	w       io.WriteCloser
	done    chan struct{}
	mu      sync.Mutex
	stashed error
	closed  bool
}

// Start launches the pump goroutine and returns immediately. The caller
// retains the read end of the pipe (wired as a child's stdin); w is the
// write end, which the pump closes when src is exhausted or on error.
func Start(src Source, w io.WriteCloser, universalNewlines bool) *Pump {
	invariant.NotNil(src, "src")
	invariant.NotNil(w, "w")
	p := &Pump{w: w, done: make(chan struct{})}
	go p.run(src, universalNewlines)
	return p
}

func (p *Pump) run(src Source, universalNewlines bool) {
	defer close(p.done)
	defer func() {
		if err := p.w.Close(); err != nil && p.stash(err) {
			slog.Debug("sluice/pump: close error after drain", "err", err)
		}
	}()

	for {
		item, ok, err := src.Next()
		if err != nil {
			p.stash(err)
			return
		}
		if !ok {
			return
		}
		if err := writeItem(p.w, item, universalNewlines); err != nil {
			// The reader went away (the child exited or closed stdin): stop
			// quietly, this is not a source failure.
			if !errors.Is(err, syscall.EPIPE) {
				p.stash(err)
			}
			return
		}
	}
}

func writeItem(w io.Writer, item any, universalNewlines bool) error {
	switch v := item.(type) {
	case []byte:
		_, err := w.Write(v)
		return err
	case string:
		line := v
		if universalNewlines {
			_, err := fmt.Fprintln(w, line)
			return err
		}
		_, err := io.WriteString(w, line)
		return err
	default:
		_, err := fmt.Fprintln(w, v)
		return err
	}
}

// stash records the first error seen by the pump goroutine; subsequent
// errors (e.g. a write-after-close on teardown) are dropped. Returns
// whether this call actually recorded err.
func (p *Pump) stash(err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stashed == nil {
		p.stashed = err
		return true
	}
	return false
}

// Wait blocks until the pump goroutine has finished and returns its
// stashed error, if any, as it was recorded (not wrapped): either the
// upstream Source's error or the error from writing or closing w.
func (p *Pump) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stashed
}
