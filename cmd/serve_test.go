package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oembedder/internal/metrics"
	"oembedder/internal/oembed"
	"oembedder/internal/rewrite"
)

// picsBackend serves a one-provider registry at /providers.json and the
// provider's oEmbed endpoint at /oembed.
type picsBackend struct {
	srv          *httptest.Server
	registryHits atomic.Int32
	registryDown atomic.Bool
}

func newPicsBackend(t *testing.T) *picsBackend {
	t.Helper()
	b := &picsBackend{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/providers.json":
			b.registryHits.Add(1)
			if b.registryDown.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprintf(w, `[{"provider_name":"Pics","endpoints":[{"url":"%s/oembed","schemes":["https://pics.example/*"]}]}]`, b.srv.URL)
		case "/oembed":
			fmt.Fprint(w, `{"type":"photo","url":"https://img.example/full.png","width":800}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func newTestServer(t *testing.T, b *picsBackend) *httptest.Server {
	t.Helper()
	rec := metrics.NewPrometheusRecorder(nil)
	client := oembed.NewClient(oembed.WithHTTPClient(b.srv.Client()))
	load := func(ctx context.Context) (*rewrite.Rewriter, error) {
		reg, err := client.FetchRegistry(ctx, b.srv.URL+"/providers.json")
		if err != nil {
			return nil, err
		}
		return rewrite.New(client, reg, rewrite.WithRecorder(rec)), nil
	}

	srv := httptest.NewServer(newServeMux(load, rec))
	t.Cleanup(srv.Close)
	return srv
}

func postMarkdown(t *testing.T, srv *httptest.Server, markdown string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/render", "text/markdown", strings.NewReader(markdown))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServe_Render(t *testing.T) {
	srv := newTestServer(t, newPicsBackend(t))

	resp, body := postMarkdown(t, srv, "[pic](https://pics.example/1)\n\n[other](https://other.example/)\n")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "1", resp.Header.Get("X-Oembed-Replaced"))
	assert.Equal(t, "1", resp.Header.Get("X-Oembed-Unchanged"))
	assert.Equal(t, "0", resp.Header.Get("X-Oembed-Failed"))
	assert.Contains(t, body, `<a href="https://pics.example/1" class="oembed-anchor"`)
	assert.Contains(t, body, `src="https://img.example/full.png"`)
	assert.Contains(t, body, `<p><a href="https://other.example/">other</a></p>`)
}

func TestServe_RegistryLoadedPerRequest(t *testing.T) {
	b := newPicsBackend(t)
	srv := newTestServer(t, b)

	for i := 0; i < 2; i++ {
		resp, _ := postMarkdown(t, srv, "[pic](https://pics.example/1)\n")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, int32(2), b.registryHits.Load())

	b.registryDown.Store(true)
	resp, _ := postMarkdown(t, srv, "[pic](https://pics.example/1)\n")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(3), b.registryHits.Load())
}

func TestServe_RenderRejectsGet(t *testing.T) {
	srv := newTestServer(t, newPicsBackend(t))

	resp, err := http.Get(srv.URL + "/render")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServe_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, newPicsBackend(t))

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))

	postMarkdown(t, srv, "[pic](https://pics.example/2)\n")

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `oembedder_embeds_total{outcome="replaced",provider="Pics"} 1`)
}
