package sluice

import (
	"fmt"
	"io"
)

// Source is the whole-stream source protocol: a value that knows how to
// produce its own Stream (a Cmd acting as a Producer, a File, or any user
// type). Pipeline does not implement Source; use its Stream method.
type Source interface {
	AsSource() (Stream, error)
}

// Filter is the whole-stream filter protocol: a value that transforms an
// entire upstream Stream into a new one. Pipeline implements this so that
// a sub-pipeline can sit inside a larger one (see pipeline.go).
type Filter interface {
	ApplyFilter(upstream Stream) (Stream, error)
}

// ItemFilter is the per-item filter protocol: map a single Item to a
// (possibly different) Item, or reject it by returning keep=false. This is
// the callable-stage case in the dispatch order below.
type ItemFilter func(Item) (out Item, keep bool, err error)

// Sink is the whole-stream sink protocol: a value that consumes an entire
// Stream, e.g. a Cmd acting as a Consumer.
type Sink interface {
	Feed(upstream Stream) error
}

// ItemSink is the per-item sink protocol: invoked once per Item, in
// order, with no return value other than error.
type ItemSink func(Item) error

// discard is the sentinel Sink behind the Discard variable; it drains its
// upstream without keeping anything, the dataflow equivalent of
// redirecting to /dev/null.
type discard struct{}

func (discard) Feed(upstream Stream) error {
	for {
		_, ok, err := upstream.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// Discard is a Sink that consumes and drops every item fed to it.
var Discard Sink = discard{}

// AsSource realises x as a Stream using the first protocol it satisfies,
// tried in this order:
//
//  1. x already implements Source (whole-stream)
//  2. x already is a Stream
//  3. x is a []Item or []string (container)
//  4. x is a single string (treated as one line)
//  5. x implements io.Reader (byte-readable; framed into lines)
//
// Anything else is not a usable source.
func AsSource(x any) (Stream, error) {
	switch v := x.(type) {
	case Source:
		return v.AsSource()
	case Stream:
		return v, nil
	case []Item:
		return newSliceStream(append([]Item(nil), v...)), nil
	case []string:
		items := make([]Item, len(v))
		for i, s := range v {
			items[i] = s
		}
		return newSliceStream(items), nil
	case string:
		return newSliceStream([]Item{v}), nil
	case io.Reader:
		return newLineStream(v), nil
	default:
		return nil, fmt.Errorf("sluice: %T cannot be used as a source", x)
	}
}

// Filt realises filter as a transformation of upstream, trying protocols
// in the normative order: whole-stream Filter first, then per-item
// callable. Anything else is BadFilterError.
func Filt(filter any, upstream Stream) (Stream, error) {
	switch f := filter.(type) {
	case Filter:
		return f.ApplyFilter(upstream)
	case ItemFilter:
		return &mapStream{upstream: upstream, fn: f}, nil
	case func(Item) (Item, bool, error):
		return &mapStream{upstream: upstream, fn: f}, nil
	case func(Item) Item:
		return &mapStream{upstream: upstream, fn: func(it Item) (Item, bool, error) {
			return f(it), true, nil
		}}, nil
	default:
		return nil, &BadFilterError{Stage: filter}
	}
}

// Feed realises sink as a consumer of upstream, trying protocols in the
// normative order: whole-stream Sink, per-item callable, container
// (pointer to a slice or a set), then byte-writable (io.Writer). Anything
// else is BadSinkError.
func Feed(sink any, upstream Stream) error {
	switch s := sink.(type) {
	case Sink:
		return s.Feed(upstream)
	case ItemSink:
		return feedItemSink(s, upstream)
	case func(Item) error:
		return feedItemSink(s, upstream)
	case *[]Item:
		items, err := Collect(upstream)
		*s = items
		return err
	case *[]string:
		return feedStringSlice(s, upstream)
	case map[Item]struct{}:
		return feedSet(s, upstream)
	case io.Writer:
		return feedWriter(s, upstream)
	default:
		return &BadSinkError{Stage: sink}
	}
}

func feedItemSink(fn ItemSink, upstream Stream) error {
	for {
		item, ok, err := upstream.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(item); err != nil {
			return err
		}
	}
}

func feedStringSlice(out *[]string, upstream Stream) error {
	*out = (*out)[:0]
	for {
		item, ok, err := upstream.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		*out = append(*out, fmt.Sprintf("%v", item))
	}
}

func feedSet(set map[Item]struct{}, upstream Stream) error {
	for k := range set {
		delete(set, k)
	}
	for {
		item, ok, err := upstream.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		set[item] = struct{}{}
	}
}

// feedWriter writes each item to w. A string item is written as-is — text
// items already carry whatever line terminator their source produced
// (spec §3) — while any other value is formatted and given a trailing
// newline, the same string-vs-other split pump.writeItem makes.
func feedWriter(w io.Writer, upstream Stream) error {
	for {
		item, ok, err := upstream.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		var writeErr error
		if s, ok := item.(string); ok {
			_, writeErr = io.WriteString(w, s)
		} else {
			_, writeErr = fmt.Fprintf(w, "%v\n", item)
		}
		if writeErr != nil {
			return writeErr
		}
	}
}
