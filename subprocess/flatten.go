package subprocess

import (
	"fmt"
	"strconv"
	"strings"
)

// maxFlattenDepth bounds the argv-tree walk (spec §4.3: "argument
// flattening ... to a bounded depth (default 3)"). A depth of 3 covers
// the realistic cases (a flag paired with a computed slice of values,
// itself built from a slice) without risking runaway recursion on a
// pathological caller-supplied structure. The bound is what makes the
// transform total (spec §8 testable property 5): instead of failing on a
// tree deeper than the bound, flattening coerces whatever remains at
// maximum depth to its textual representation and stops recursing.
const maxFlattenDepth = 3

// FlattenArgv walks tree (a mix of strings, numbers, nested slices, and
// arbitrary values) and produces a flat argv. It never fails: every
// element is either recursed into (nested slices, while depth allows) or
// stringified, so any tree up to maxFlattenDepth+1 levels deep produces
// only strings (spec §8 property 5). The error return exists for
// API-symmetry with callers that chain it against other fallible steps;
// FlattenArgv itself has no failure mode.
func FlattenArgv(tree []any) ([]string, error) {
	var out []string
	for _, v := range tree {
		flattenInto(&out, v, 0)
	}
	return out, nil
}

// flattenInto appends v's flattened textual form(s) to out. depth counts
// how many levels of nested iterable v sits inside the original argv:
// top-level elements are depth 0. Strings are passed through unchanged
// at the top level; at depth >= 2 a string's trailing newlines are
// stripped (spec §8 property 6) so the byte-identical stdout of one
// command can be spliced into another command's argv, mimicking shell
// backticks — the original source's stream-to-argv idiom.
func flattenInto(out *[]string, v any, depth int) {
	switch t := v.(type) {
	case []any:
		if depth >= maxFlattenDepth {
			*out = append(*out, fmt.Sprintf("%v", t))
			return
		}
		for _, elem := range t {
			flattenInto(out, elem, depth+1)
		}
	case []string:
		if depth >= maxFlattenDepth {
			*out = append(*out, fmt.Sprintf("%v", t))
			return
		}
		for _, elem := range t {
			flattenInto(out, elem, depth+1)
		}
	case string:
		*out = append(*out, stripIfNested(t, depth))
	case int:
		*out = append(*out, strconv.Itoa(t))
	case int64:
		*out = append(*out, strconv.FormatInt(t, 10))
	case float64:
		*out = append(*out, strconv.FormatFloat(t, 'g', -1, 64))
	case fmt.Stringer:
		*out = append(*out, stripIfNested(t.String(), depth))
	default:
		*out = append(*out, fmt.Sprintf("%v", t))
	}
}

// stripIfNested trims s's trailing newlines when it appears at depth >= 2
// (spec §4.3), leaving top-level and single-nested strings untouched.
func stripIfNested(s string, depth int) string {
	if depth >= 2 {
		return strings.TrimRight(s, "\n")
	}
	return s
}
