package template

import (
	"fmt"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/g960059/ttguide/internal/model"
)

// Vars maps placeholder names to the values substituted for them.
type Vars map[string]string

// RedactedValue replaces secret variables in redacted output.
const RedactedValue = "[REDACTED]"

// placeholderPattern matches {{name}} and {{name | quote}}.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*(?:\|\s*(quote)\s*)?\}\}`)

type placeholder struct {
	start, end int
	name       string
	quote      bool
}

func scan(tmpl string) []placeholder {
	locs := placeholderPattern.FindAllStringSubmatchIndex(tmpl, -1)
	out := make([]placeholder, 0, len(locs))
	for _, loc := range locs {
		out = append(out, placeholder{
			start: loc[0],
			end:   loc[1],
			name:  tmpl[loc[2]:loc[3]],
			quote: loc[4] >= 0,
		})
	}
	return out
}

// Variables lists the distinct placeholder names in tmpl in order of first
// appearance.
func Variables(tmpl string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, p := range scan(tmpl) {
		if _, ok := seen[p.name]; ok {
			continue
		}
		seen[p.name] = struct{}{}
		out = append(out, p.name)
	}
	return out
}

// Resolve substitutes every placeholder in tmpl from vars. Values are inserted
// verbatim unless the placeholder asks for quoting. The first missing variable,
// scanning left to right, fails the whole resolution.
func Resolve(tmpl string, vars Vars) (string, error) {
	return resolve(tmpl, vars, nil)
}

// Redact resolves tmpl like Resolve but replaces the values of the named
// secret variables with RedactedValue.
func Redact(tmpl string, vars Vars, secrets []string) (string, error) {
	if len(secrets) == 0 {
		return resolve(tmpl, vars, nil)
	}
	hidden := make(map[string]struct{}, len(secrets))
	for _, s := range secrets {
		hidden[s] = struct{}{}
	}
	return resolve(tmpl, vars, hidden)
}

func resolve(tmpl string, vars Vars, hidden map[string]struct{}) (string, error) {
	placeholders := scan(tmpl)
	if len(placeholders) == 0 {
		return tmpl, nil
	}
	var b strings.Builder
	b.Grow(len(tmpl))
	last := 0
	for _, p := range placeholders {
		value, ok := vars[p.name]
		if !ok {
			return "", &MissingVariableError{Variable: p.name}
		}
		if _, secret := hidden[p.name]; secret {
			value = RedactedValue
		} else if p.quote {
			quoted, err := Quote(value)
			if err != nil {
				return "", fmt.Errorf("quote variable %s: %w", p.name, err)
			}
			value = quoted
		}
		b.WriteString(tmpl[last:p.start])
		b.WriteString(value)
		last = p.end
	}
	b.WriteString(tmpl[last:])
	return b.String(), nil
}

// Quote returns value quoted for bash. Values that need no quoting are
// returned unchanged.
func Quote(value string) (string, error) {
	return syntax.Quote(value, syntax.LangBash)
}

// MissingVariableError reports a placeholder without a value.
type MissingVariableError struct {
	Variable string
	Template string
}

func (e *MissingVariableError) Error() string {
	if e.Template == "" {
		return fmt.Sprintf("%s: missing variable %q", model.ErrMissingVariable, e.Variable)
	}
	return fmt.Sprintf("%s: missing variable %q for operation %s", model.ErrMissingVariable, e.Variable, e.Template)
}

// UnknownOperationError reports a registry lookup miss.
type UnknownOperationError struct {
	Name string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("%s: operation %q not found", model.ErrUnknownOperation, e.Name)
}
