package template

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g960059/ttguide/internal/model"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(
		Template{Name: "detect", Command: "tt-smi", Channel: model.ChannelMain},
		Template{Name: "start-server", Command: "serve --model {{model}}", Channel: model.ChannelServer},
		Template{Name: "listdir", Command: "cd {{path}} && ls", Channel: model.ChannelMain},
	)
	require.NoError(t, err)
	return r
}

func TestRegistryGetUnknownOperation(t *testing.T) {
	r := testRegistry(t)
	_, err := r.Get("nonexistent-op")
	var unknown *UnknownOperationError
	require.True(t, errors.As(err, &unknown), "expected UnknownOperationError, got %v", err)
	assert.Equal(t, "nonexistent-op", unknown.Name)
	assert.Contains(t, err.Error(), model.ErrUnknownOperation)
}

func TestRegistryListKeepsDeclarationOrder(t *testing.T) {
	r := testRegistry(t)
	names := make([]string, 0)
	for _, tmpl := range r.List() {
		names = append(names, tmpl.Name)
	}
	assert.Equal(t, []string{"detect", "start-server", "listdir"}, names)
}

func TestRegistryReturnsCopies(t *testing.T) {
	r := MustNewRegistry(Template{Name: "login", Command: "login {{token}}", Channel: model.ChannelMain, Secrets: []string{"token"}})
	got, err := r.Get("login")
	require.NoError(t, err)
	got.Secrets[0] = "mutated"
	list := r.List()
	list[0].Secrets[0] = "mutated"

	again, err := r.Get("login")
	require.NoError(t, err)
	assert.Equal(t, []string{"token"}, again.Secrets)
}

func TestRegistryRejectsInvalidTemplates(t *testing.T) {
	cases := map[string][]Template{
		"duplicate": {
			{Name: "detect", Command: "tt-smi", Channel: model.ChannelMain},
			{Name: "detect", Command: "tt-smi -s", Channel: model.ChannelMain},
		},
		"bad name":       {{Name: "Detect Hardware", Command: "tt-smi", Channel: model.ChannelMain}},
		"no channel":     {{Name: "detect", Command: "tt-smi"}},
		"unknown secret": {{Name: "login", Command: "login", Channel: model.ChannelMain, Secrets: []string{"token"}}},
	}
	for name, templates := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(templates...)
			assert.Error(t, err)
		})
	}
}

func TestTemplateResolveNamesOperation(t *testing.T) {
	r := testRegistry(t)
	tmpl, err := r.Get("listdir")
	require.NoError(t, err)
	_, err = tmpl.Resolve(Vars{})
	var missing *MissingVariableError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "path", missing.Variable)
	assert.Equal(t, "listdir", missing.Template)
}

func TestOverlayReplacesAndAppends(t *testing.T) {
	r := testRegistry(t)
	merged, err := r.Overlay(
		Template{Name: "detect", Command: "tt-smi -s", Channel: model.ChannelMain},
		Template{Name: "reset-board", Command: "tt-smi -r 0", Channel: model.ChannelMain},
	)
	require.NoError(t, err)

	detect, err := merged.Get("detect")
	require.NoError(t, err)
	assert.Equal(t, "tt-smi -s", detect.Command)

	list := merged.List()
	require.Len(t, list, 4)
	assert.Equal(t, "detect", list[0].Name)
	assert.Equal(t, "reset-board", list[3].Name)

	orig, err := r.Get("detect")
	require.NoError(t, err)
	assert.Equal(t, "tt-smi", orig.Command, "overlay must not mutate the base registry")
}

func TestBuiltinsValidate(t *testing.T) {
	r := DefaultRegistry()
	require.NoError(t, r.Validate([]model.ChannelID{model.ChannelMain, model.ChannelServer}))
	assert.NotEmpty(t, r.List())
}

func TestBuiltinsOnlyUseKnownVariables(t *testing.T) {
	known := map[string]bool{
		"ttMetalPath": true, "vllmPath": true, "modelDir": true, "modelPath": true,
		"modelRepo": true, "scriptsDir": true, "apiPort": true, "vllmPort": true, "token": true,
	}
	for _, tmpl := range Builtins() {
		for _, v := range tmpl.Variables() {
			assert.True(t, known[v], "operation %s uses unknown variable %s", tmpl.Name, v)
		}
	}
}

func TestBuiltinSecretsAreQuoted(t *testing.T) {
	r := DefaultRegistry()
	tmpl, err := r.Get("set-hf-token")
	require.NoError(t, err)
	cmd, err := tmpl.Resolve(Vars{"token": "hf_a b"})
	require.NoError(t, err)
	assert.Equal(t, "export HF_TOKEN='hf_a b'", cmd)
	redacted, err := tmpl.Redacted(Vars{"token": "hf_a b"})
	require.NoError(t, err)
	assert.Equal(t, "export HF_TOKEN="+RedactedValue, redacted)
}

func TestValidateReportsUnknownChannelAndSyntax(t *testing.T) {
	r := MustNewRegistry(
		Template{Name: "broken", Command: "echo 'unterminated", Channel: model.ChannelMain},
		Template{Name: "elsewhere", Command: "ls", Channel: "docs"},
	)
	err := r.Validate([]model.ChannelID{model.ChannelMain})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Contains(t, err.Error(), `unknown channel "docs"`)
}

func TestLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	raw := `
operations:
  - name: reset-board
    command: tt-smi -r {{boardIndex}}
    description: Reset a board
  - name: tail-server
    command: tail -f {{logFile | quote}}
    channel: server
`
	require.NoError(t, afero.WriteFile(fs, "/ops.yaml", []byte(raw), 0o600))
	templates, err := LoadFile(fs, "/ops.yaml")
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, model.ChannelMain, templates[0].Channel)
	assert.Equal(t, model.ChannelServer, templates[1].Channel)
	assert.Equal(t, []string{"boardIndex"}, templates[0].Variables())

	missing, err := LoadFile(fs, "/absent.yaml")
	require.NoError(t, err)
	assert.Empty(t, missing)

	require.NoError(t, afero.WriteFile(fs, "/bad.yaml", []byte("operations:\n  - name: x\n"), 0o600))
	_, err = LoadFile(fs, "/bad.yaml")
	assert.Error(t, err)
}
