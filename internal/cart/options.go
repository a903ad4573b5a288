package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Options is the canonical form of selected product options:
// lower-cased option name -> value.
type Options map[string]string

const OptionSize = "size"

type namedOption struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// ParseOptions accepts either a flat object ({"size":"M"}) or a list of
// {"name","value"} pairs and returns the canonical map. Empty input and
// JSON null yield an empty map.
func ParseOptions(raw json.RawMessage) (Options, error) {
	out := Options{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, nil
	}

	switch raw[0] {
	case '{':
		var flat map[string]any
		if err := json.Unmarshal(raw, &flat); err != nil {
			return nil, fmt.Errorf("options: %w", err)
		}
		for k, v := range flat {
			if err := out.set(k, v); err != nil {
				return nil, err
			}
		}
	case '[':
		var list []namedOption
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("options: %w", err)
		}
		for _, o := range list {
			if err := out.set(o.Name, o.Value); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("options: expected object or array")
	}
	return out, nil
}

func (o Options) set(name string, v any) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fmt.Errorf("options: empty option name")
	}
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if s := strings.TrimSpace(x); s != "" {
			o[name] = s
		}
	case float64, bool:
		o[name] = fmt.Sprint(x)
	default:
		return fmt.Errorf("options: %s must be a scalar", name)
	}
	return nil
}

func (o Options) Size() string { return o[OptionSize] }

// Key is a stable representation used to decide whether two lines match.
func (o Options) Key() string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.ToLower(o[k]))
	}
	return b.String()
}

func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}
