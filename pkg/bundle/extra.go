package bundle

import (
	"fmt"
	"os"
	"strings"

	"github.com/blacktop/kextforge/internal/errs"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// ReadExtra loads extra Info.plist keys from a YAML file. Keys keep their case.
func ReadExtra(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errs.Wrap(errs.Validation, "bundle", err, "failed to parse %s", path)
	}
	return CoerceExtra(m), nil
}

// ParseExtraPairs turns KEY=VALUE flags into extras; "true"/"false" become bools
func ParseExtraPairs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, errs.New(errs.Validation, "bundle", "extra %q is not KEY=VALUE", p)
		}
		switch v {
		case "true", "false":
			out[k] = v == "true"
		default:
			out[k] = v
		}
	}
	return out, nil
}

// CoerceExtra turns a loosely typed config map (as produced by viper from YAML,
// TOML or env) into plist-encodable extras: nested maps become map[string]any,
// lists become []any and scalars are kept.
func CoerceExtra(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = coerce(v)
	}
	return out
}

func coerce(v any) any {
	switch t := v.(type) {
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = e
		}
		return out
	case map[string]any, map[any]any:
		m := cast.ToStringMap(t)
		out := make(map[string]any, len(m))
		for k, e := range m {
			out[k] = coerce(e)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			out = append(out, coerce(e))
		}
		return out
	case []string:
		out := make([]any, 0, len(t))
		for _, e := range t {
			out = append(out, e)
		}
		return out
	}
	return v
}
