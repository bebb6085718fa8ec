package vars

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g960059/ttguide/internal/template"
)

func TestDefaultsCoverBuiltins(t *testing.T) {
	ctx := Defaults("/home/dev")
	for _, tmpl := range template.Builtins() {
		missing := Missing(tmpl, ctx)
		for _, m := range missing {
			assert.Equal(t, "token", m, "operation %s lacks a default for %s", tmpl.Name, m)
		}
	}
	assert.Equal(t, "/home/dev/tt-metal", ctx["ttMetalPath"])
	assert.Equal(t, "/home/dev/models/Llama-3.1-8B-Instruct/original", ctx["modelPath"])
}

func TestBuildPrecedence(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/home/dev/.ttguide.env", []byte("apiPort=9090\n# comment\nvllmPort=8100\nexport HF_USER=dev\n"), 0o600))

	ctx, err := Build(fs, Sources{
		Home:      "/home/dev",
		Config:    map[string]string{"apiPort": "7070", "ttMetalPath": "/opt/tt-metal"},
		EnvFile:   "/home/dev/.ttguide.env",
		Overrides: map[string]string{"vllmPort": "8200"},
	})
	require.NoError(t, err)
	assert.Equal(t, "9090", ctx["apiPort"], "env file beats config")
	assert.Equal(t, "8200", ctx["vllmPort"], "overrides beat env file")
	assert.Equal(t, "/opt/tt-metal", ctx["ttMetalPath"])
	assert.Equal(t, "dev", ctx["HF_USER"])
}

func TestBuildModelPathFollowsModelDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx, err := Build(fs, Sources{Home: "/h", Overrides: map[string]string{"modelDir": "/data/llama"}})
	require.NoError(t, err)
	assert.Equal(t, "/data/llama/original", ctx["modelPath"])

	ctx, err = Build(fs, Sources{Home: "/h", Overrides: map[string]string{"modelDir": "/data/llama", "modelPath": "/data/raw"}})
	require.NoError(t, err)
	assert.Equal(t, "/data/raw", ctx["modelPath"])
}

func TestBuildMissingEnvFileIsFine(t *testing.T) {
	ctx, err := Build(afero.NewMemMapFs(), Sources{Home: "/h", EnvFile: "/h/absent.env"})
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIPort, ctx["apiPort"])
}

func TestParseAssignments(t *testing.T) {
	got, err := ParseAssignments([]string{"model=llama", "prompt=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"model": "llama", "prompt": "a=b", "empty": ""}, got)

	_, err = ParseAssignments([]string{"novalue"})
	assert.Error(t, err)
	_, err = ParseAssignments([]string{"=x"})
	assert.Error(t, err)
}

func TestNamesSorted(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Names(template.Vars{"c": "", "a": "", "b": ""}))
}
