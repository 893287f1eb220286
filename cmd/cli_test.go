package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oembedder/internal/oembed"
)

// writeRegistry writes a providers file whose endpoints point at b.
func writeRegistry(t *testing.T, b *picsBackend) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.json")
	content := fmt.Sprintf(`[
  {"provider_name":"Pics","endpoints":[{"url":"%[1]s/oembed","schemes":["https://pics.example/*"]}]},
  {"provider_name":"Photos","endpoints":[{"url":"%[1]s/oembed","schemes":["https://example.com/*.jpg"]}]}
]`, b.srv.URL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// runCLI executes the root command with fresh flag state and returns stdout.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	flagProviders, flagTimeout = "", ""
	flagJSX, flagAsyncImage, flagSyncWidget, flagDiscovery, flagDebug = false, false, false, false, false
	flagOutput, flagOutDir, flagMatch, flagListen = "", "", "", ""

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestRender_Stdin(t *testing.T) {
	registry := writeRegistry(t, newPicsBackend(t))

	out, err := runCLI(t, "[photo](https://example.com/cat.jpg)\n\n[plain](https://other.example/)\n",
		"render", "--providers", registry)
	require.NoError(t, err)

	assert.Contains(t, out, `<img src="https://img.example/full.png" width="800" class="oembed-photo" data-oembed=""/>`)
	assert.Contains(t, out, `<p><a href="https://other.example/">plain</a></p>`)
}

func TestRender_OutDir(t *testing.T) {
	registry := writeRegistry(t, newPicsBackend(t))

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	notes := filepath.Join(src, "notes.md")
	readme := filepath.Join(src, "sub", "..", "sub", "README.markdown")
	require.NoError(t, os.WriteFile(notes, []byte("[pic](https://pics.example/1)\n"), 0o644))
	require.NoError(t, os.WriteFile(readme, []byte("# Readme\n"), 0o644))

	outDir := filepath.Join(t.TempDir(), "site")
	out, err := runCLI(t, "", "render", "--providers", registry, "--out-dir", outDir, notes, readme)
	require.NoError(t, err)
	assert.Empty(t, out)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"notes.html", "README.html"}, names)

	html, err := os.ReadFile(filepath.Join(outDir, "notes.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), `<a href="https://pics.example/1" class="oembed-anchor"`)

	html, err = os.ReadFile(filepath.Join(outDir, "README.html"))
	require.NoError(t, err)
	assert.Equal(t, "<h1>Readme</h1>\n", string(html))
}

func TestRender_StdinToOutDir(t *testing.T) {
	registry := writeRegistry(t, newPicsBackend(t))
	outDir := t.TempDir()

	_, err := runCLI(t, "text\n", "render", "--providers", registry, "--out-dir", outDir, "-")
	require.NoError(t, err)

	html, err := os.ReadFile(filepath.Join(outDir, "stdin.html"))
	require.NoError(t, err)
	assert.Equal(t, "<p>text</p>\n", string(html))
}

func TestRender_Output(t *testing.T) {
	registry := writeRegistry(t, newPicsBackend(t))
	target := filepath.Join(t.TempDir(), "page.html")

	out, err := runCLI(t, "hello\n", "render", "--providers", registry, "--output", target)
	require.NoError(t, err)
	assert.Empty(t, out)

	html, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p>\n", string(html))
}

func TestRender_FlagConflicts(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"output with two inputs", []string{"render", "--output", "x.html", "a.md", "b.md"}, "--output takes a single input"},
		{"output and out-dir", []string{"render", "--output", "x.html", "--out-dir", "site", "a.md"}, "mutually exclusive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolve(t *testing.T) {
	registry := writeRegistry(t, newPicsBackend(t))

	out, err := runCLI(t, "", "resolve", "--providers", registry, "https://pics.example/1")
	require.NoError(t, err)

	var got struct {
		Link       string             `json:"link"`
		Provider   string             `json:"provider"`
		Request    string             `json:"request"`
		Descriptor *oembed.Descriptor `json:"descriptor"`
		Kind       string             `json:"kind"`
		Markup     string             `json:"markup"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "https://pics.example/1", got.Link)
	assert.Equal(t, "Pics", got.Provider)
	assert.Contains(t, got.Request, "format=json")
	require.NotNil(t, got.Descriptor)
	assert.Equal(t, oembed.TypePhoto, got.Descriptor.Type)
	assert.Equal(t, "anchor-image", got.Kind)
	assert.Contains(t, got.Markup, `src="https://img.example/full.png"`)
}

func TestResolve_NoMatch(t *testing.T) {
	registry := writeRegistry(t, newPicsBackend(t))

	_, err := runCLI(t, "", "resolve", "--providers", registry, "https://nobody.example/1")
	require.ErrorIs(t, err, oembed.ErrNoMatch)
}

func TestProviders(t *testing.T) {
	b := newPicsBackend(t)
	registry := writeRegistry(t, b)

	out, err := runCLI(t, "", "providers", "--providers", registry)
	require.NoError(t, err)
	assert.Contains(t, out, "Pics")
	assert.Contains(t, out, "Photos")
	assert.Contains(t, out, b.srv.URL+"/oembed")
	assert.Contains(t, out, "2 providers")

	out, err = runCLI(t, "", "providers", "--providers", registry, "--match", "https://example.com/cat.jpg")
	require.NoError(t, err)
	assert.Contains(t, out, "Photos")
	assert.Contains(t, out, "url=https%3A%2F%2Fexample.com%2Fcat.jpg")

	_, err = runCLI(t, "", "providers", "--providers", registry, "--match", "https://nobody.example/")
	require.ErrorIs(t, err, oembed.ErrNoMatch)
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "oembedder dev\n", out)
}
