// Package vars assembles the variable context operations are resolved
// against.
package vars

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"github.com/g960059/ttguide/internal/template"
)

const (
	DefaultModelRepo = "meta-llama/Llama-3.1-8B-Instruct"
	DefaultAPIPort   = "8080"
	DefaultVLLMPort  = "8000"
)

// Sources lists where values come from. Later sources win: defaults, then
// Config, then EnvFile, then Overrides.
type Sources struct {
	Home      string
	Config    map[string]string
	EnvFile   string
	Overrides map[string]string
}

// Defaults returns the home-relative values the walkthrough assumes.
func Defaults(home string) template.Vars {
	modelDir := filepath.Join(home, "models", "Llama-3.1-8B-Instruct")
	return template.Vars{
		"ttMetalPath": filepath.Join(home, "tt-metal"),
		"vllmPath":    filepath.Join(home, "tt-vllm"),
		"modelRepo":   DefaultModelRepo,
		"modelDir":    modelDir,
		"modelPath":   filepath.Join(modelDir, "original"),
		"scriptsDir":  home,
		"apiPort":     DefaultAPIPort,
		"vllmPort":    DefaultVLLMPort,
	}
}

// Build merges all sources into a fresh context. modelPath follows an
// overridden modelDir unless it is set explicitly itself.
func Build(fs afero.Fs, src Sources) (template.Vars, error) {
	out := Defaults(src.Home)
	explicit := map[string]bool{}
	merge := func(m map[string]string) {
		for k, v := range m {
			out[k] = v
			explicit[k] = true
		}
	}

	merge(src.Config)
	if src.EnvFile != "" {
		fileVars, err := ReadEnvFile(fs, src.EnvFile)
		if err != nil {
			return nil, err
		}
		merge(fileVars)
	}
	merge(src.Overrides)

	if explicit["modelDir"] && !explicit["modelPath"] {
		out["modelPath"] = filepath.Join(out["modelDir"], "original")
	}
	return out, nil
}

// ReadEnvFile parses a dotenv file. A missing file yields no values.
func ReadEnvFile(fs afero.Fs, path string) (map[string]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open env file %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck
	values, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse env file %s: %w", path, err)
	}
	return values, nil
}

// ParseAssignments turns "name=value" pairs into a map.
func ParseAssignments(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid variable %q: expected name=value", p)
		}
		out[k] = v
	}
	return out, nil
}

// Missing lists the variables of tmpl that ctx does not provide, in template
// order.
func Missing(tmpl template.Template, ctx template.Vars) []string {
	out := make([]string, 0)
	for _, name := range tmpl.Variables() {
		if _, ok := ctx[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// Names returns the sorted variable names of ctx.
func Names(ctx template.Vars) []string {
	out := make([]string, 0, len(ctx))
	for k := range ctx {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
