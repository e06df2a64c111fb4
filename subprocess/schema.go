package subprocess

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// optionsSchemaJSON enumerates exactly the dynamic launch-option keys
// spec §6 recognises. stdin/stdout/stderr are typed "true" (accept
// anything) because their Go values are readers/writers/fds that have
// no JSON Schema shape; cwd/env/universal_newlines/error_level get real
// type constraints since they cross into plain data.
const optionsSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "args": {"type": "array"},
    "stdin": true,
    "stdout": true,
    "stderr": true,
    "env": {"type": "object"},
    "cwd": {"type": "string"},
    "universal_newlines": {"type": "boolean"},
    "error_level": {"type": "integer"}
  },
  "additionalProperties": false
}`

var recognisedKeys = []string{
	"args", "stdin", "stdout", "stderr", "env", "cwd",
	"universal_newlines", "error_level",
}

var optionsSchema = mustCompileOptionsSchema()

func mustCompileOptionsSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	const id = "sluice://cmd-options.json"
	if err := compiler.AddResource(id, strings.NewReader(optionsSchemaJSON)); err != nil {
		panic(fmt.Sprintf("subprocess: invalid embedded options schema: %v", err))
	}
	schema, err := compiler.Compile(id)
	if err != nil {
		panic(fmt.Sprintf("subprocess: failed to compile options schema: %v", err))
	}
	return schema
}

// DynamicOptions is the decoded form of a map[string]any passed to
// Cmd.With — the stringly-keyed path spec §4.6 describes as "a positional
// argument that is a mapping merges into options". Stdin/Stdout/Stderr
// are returned as opaque values because only the caller (Cmd) knows how
// to turn them into a Stream/Producer/Consumer wiring.
type DynamicOptions struct {
	Args   []any
	Opts   Options
	Stdin  any
	Stdout any
	Stderr any
}

// ValidateDynamicOptions checks raw against the recognised-key schema
// and, on success, decodes it into DynamicOptions. An unrecognised key
// fails immediately with BadOptionError (carrying a fuzzy "did you mean"
// suggestion) before the schema's type checks ever run, so the caller
// gets the most specific diagnosis available.
func ValidateDynamicOptions(raw map[string]any) (DynamicOptions, error) {
	for key := range raw {
		if !contains(recognisedKeys, key) {
			return DynamicOptions{}, badOptionError(key)
		}
	}

	canonical, err := roundTripThroughJSON(raw)
	if err != nil {
		return DynamicOptions{}, fmt.Errorf("subprocess: options could not be represented as JSON: %w", err)
	}
	if err := optionsSchema.Validate(canonical); err != nil {
		return DynamicOptions{}, fmt.Errorf("subprocess: invalid launch options: %w", err)
	}

	out := DynamicOptions{Stdin: raw["stdin"], Stdout: raw["stdout"], Stderr: raw["stderr"]}
	if args, ok := raw["args"].([]any); ok {
		out.Args = args
	}
	if env, ok := raw["env"].(map[string]string); ok {
		out.Opts.Env = env
	} else if envAny, ok := raw["env"].(map[string]any); ok {
		env := make(map[string]string, len(envAny))
		for k, v := range envAny {
			env[k] = fmt.Sprintf("%v", v)
		}
		out.Opts.Env = env
	}
	if cwd, ok := raw["cwd"].(string); ok {
		out.Opts.Cwd = cwd
	}
	if un, ok := raw["universal_newlines"].(bool); ok {
		out.Opts.UniversalNewlines = un
	}
	if lvl, ok := raw["error_level"]; ok {
		if threshold, ok := toInt(lvl); ok {
			out.Opts.ErrorLevel = &threshold
		}
	}
	return out, nil
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}

func roundTripThroughJSON(raw map[string]any) (any, error) {
	sanitised := make(map[string]any, len(raw))
	for k, v := range raw {
		switch k {
		case "stdin", "stdout", "stderr":
			continue // opaque to JSON Schema; validated structurally above instead
		default:
			sanitised[k] = v
		}
	}
	b, err := json.Marshal(sanitised)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func badOptionError(key string) error {
	suggestion := ""
	if matches := fuzzy.RankFindFold(key, recognisedKeys); len(matches) > 0 {
		suggestion = matches[0].Target
	}
	return &BadOptionError{Key: key, Suggestion: suggestion}
}

// BadOptionError reports an unrecognised dynamic launch-option key.
// Defined here (rather than in the root package's errors.go) because it
// is raised at the point this package validates the map, and the root
// package's Cmd.With simply records and propagates it.
type BadOptionError struct {
	Key        string
	Suggestion string
}

func (e *BadOptionError) Error() string {
	msg := fmt.Sprintf("subprocess: unrecognised launch option %q", e.Key)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
