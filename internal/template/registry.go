package template

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/g960059/ttguide/internal/model"
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Template is a named shell command routed to a channel.
type Template struct {
	Name        string
	Command     string
	Channel     model.ChannelID
	Description string
	// Secrets names variables whose values must not appear in logs or history.
	Secrets []string
}

func (t Template) Variables() []string {
	return Variables(t.Command)
}

func (t Template) Resolve(vars Vars) (string, error) {
	out, err := Resolve(t.Command, vars)
	return out, t.annotate(err)
}

func (t Template) Redacted(vars Vars) (string, error) {
	out, err := Redact(t.Command, vars, t.Secrets)
	return out, t.annotate(err)
}

func (t Template) annotate(err error) error {
	var missing *MissingVariableError
	if errors.As(err, &missing) {
		missing.Template = t.Name
	}
	return err
}

// Registry is populated once and only read afterwards.
type Registry struct {
	templates []Template
	byName    map[string]int
}

func NewRegistry(templates ...Template) (*Registry, error) {
	r := &Registry{
		templates: make([]Template, 0, len(templates)),
		byName:    make(map[string]int, len(templates)),
	}
	for _, t := range templates {
		if err := r.add(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func MustNewRegistry(templates ...Template) *Registry {
	r, err := NewRegistry(templates...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) add(t Template) error {
	t.Name = strings.TrimSpace(t.Name)
	t.Channel = model.ChannelID(strings.TrimSpace(string(t.Channel)))
	if !namePattern.MatchString(t.Name) {
		return fmt.Errorf("invalid operation name %q", t.Name)
	}
	if t.Channel == "" {
		return fmt.Errorf("operation %s: channel is required", t.Name)
	}
	if _, exists := r.byName[t.Name]; exists {
		return fmt.Errorf("operation %s already registered", t.Name)
	}
	vars := map[string]struct{}{}
	for _, v := range t.Variables() {
		vars[v] = struct{}{}
	}
	for _, s := range t.Secrets {
		if _, ok := vars[s]; !ok {
			return fmt.Errorf("operation %s: secret %q is not a template variable", t.Name, s)
		}
	}
	t.Secrets = append([]string(nil), t.Secrets...)
	r.byName[t.Name] = len(r.templates)
	r.templates = append(r.templates, t)
	return nil
}

// Overlay returns a new registry where templates replace same-named entries
// in place and unknown names are appended.
func (r *Registry) Overlay(templates ...Template) (*Registry, error) {
	merged := append([]Template(nil), r.templates...)
	for _, t := range templates {
		if idx, ok := r.byName[strings.TrimSpace(t.Name)]; ok {
			merged[idx] = t
			continue
		}
		merged = append(merged, t)
	}
	return NewRegistry(merged...)
}

func (r *Registry) Get(name string) (Template, error) {
	idx, ok := r.byName[name]
	if !ok {
		return Template{}, &UnknownOperationError{Name: name}
	}
	t := r.templates[idx]
	t.Secrets = append([]string(nil), t.Secrets...)
	return t, nil
}

// List returns all templates in declaration order.
func (r *Registry) List() []Template {
	out := make([]Template, len(r.templates))
	for i, t := range r.templates {
		t.Secrets = append([]string(nil), t.Secrets...)
		out[i] = t
	}
	return out
}

// Validate checks that every template targets one of channels and parses as
// bash once its placeholders are filled.
func (r *Registry) Validate(channels []model.ChannelID) error {
	known := make(map[model.ChannelID]struct{}, len(channels))
	for _, c := range channels {
		known[c] = struct{}{}
	}
	var errs []error
	for _, t := range r.templates {
		if _, ok := known[t.Channel]; !ok {
			errs = append(errs, fmt.Errorf("operation %s: unknown channel %q", t.Name, t.Channel))
		}
		if err := checkSyntax(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func checkSyntax(t Template) error {
	sample := Vars{}
	for _, v := range t.Variables() {
		sample[v] = "x"
	}
	cmd, err := t.Resolve(sample)
	if err != nil {
		return err
	}
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	if _, err := parser.Parse(strings.NewReader(cmd), t.Name); err != nil {
		return fmt.Errorf("operation %s: invalid shell syntax: %w", t.Name, err)
	}
	return nil
}
