// Package templating expands dashboard variables such as $service or
// ${env:raw} inside query fields.
package templating

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// ScopedVar is a variable bound for a single query execution.
type ScopedVar struct {
	Text  string `json:"text"`
	Value any    `json:"value"`
}

// ScopedVars maps variable names to per-query bindings. They take precedence
// over globally defined variables.
type ScopedVars map[string]ScopedVar

// Replacer is the interpolation contract used by the data source.
type Replacer interface {
	Replace(target string, scopedVars ScopedVars) string
	ContainsTemplate(target string) bool
}

// $var | [[var]] | [[var:fmt]] | ${var} | ${var:fmt}
var variableRegex = regexp.MustCompile(`\$(\w+)|\[\[(\w+?)(?::(\w+))?\]\]|\$\{(\w+)(?::(\w+))?\}`)

// Interpolator resolves variables from scoped bindings first and from its
// own global set second. Unknown references are left as written.
type Interpolator struct {
	mu      sync.RWMutex
	globals map[string][]string
}

// NewInterpolator creates an Interpolator with the given global variables.
func NewInterpolator(globals map[string][]string) *Interpolator {
	g := make(map[string][]string, len(globals))
	for k, v := range globals {
		g[k] = append([]string(nil), v...)
	}
	return &Interpolator{globals: g}
}

// SetVariable defines or replaces a global variable.
func (i *Interpolator) SetVariable(name string, values ...string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.globals[name] = append([]string(nil), values...)
}

// ContainsTemplate reports whether target references any variable.
func (i *Interpolator) ContainsTemplate(target string) bool {
	return target != "" && variableRegex.MatchString(target)
}

// Replace expands every known variable reference in target.
func (i *Interpolator) Replace(target string, scopedVars ScopedVars) string {
	if target == "" {
		return target
	}

	return variableRegex.ReplaceAllStringFunc(target, func(match string) string {
		sub := variableRegex.FindStringSubmatch(match)
		name, format := sub[1], ""
		switch {
		case sub[2] != "":
			name, format = sub[2], sub[3]
		case sub[4] != "":
			name, format = sub[4], sub[5]
		}

		values, ok := i.lookup(name, scopedVars)
		if !ok {
			return match
		}
		return formatValues(values, format)
	})
}

func (i *Interpolator) lookup(name string, scopedVars ScopedVars) ([]string, bool) {
	if sv, ok := scopedVars[name]; ok {
		return scopedValues(sv), true
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	v, ok := i.globals[name]
	return v, ok
}

func scopedValues(sv ScopedVar) []string {
	switch v := sv.Value.(type) {
	case nil:
		return []string{sv.Text}
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, len(v))
		for idx, item := range v {
			out[idx] = fmt.Sprint(item)
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

func formatValues(values []string, format string) string {
	switch format {
	case "raw", "csv":
		return strings.Join(values, ",")
	case "pipe":
		return strings.Join(values, "|")
	}
	if len(values) == 1 {
		return values[0]
	}
	return "{" + strings.Join(values, ",") + "}"
}
