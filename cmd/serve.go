package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oembedder/internal/metrics"
	"oembedder/internal/rewrite"
)

// maxRenderBody caps the Markdown accepted by POST /render.
const maxRenderBody = 4 << 20

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve Markdown rendering over HTTP",
	Long: `Serve exposes:
  POST /render   Markdown in, HTML out
  GET  /metrics  Prometheus metrics
  GET  /healthz  liveness probe`,
	Args: cobra.NoArgs,
	RunE: serveRun,
}

func init() {
	serveCmd.Flags().StringVarP(&flagListen, "listen", "l", "", "Listen address (default: 127.0.0.1:8080)")
}

func serveRun(cmd *cobra.Command, args []string) error {
	addr := cfg.Listen
	if flagListen != "" {
		addr = flagListen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := metrics.NewPrometheusRecorder(nil)
	load := func(ctx context.Context) (*rewrite.Rewriter, error) {
		return newRewriter(ctx, rec)
	}

	// Fail fast on a bad registry; requests load their own copy.
	rw, err := load(ctx)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newServeMux(load, rec),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.Int("providers", rw.Registry().Len()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// rewriterFunc builds a rewriter for one run, loading the provider registry.
type rewriterFunc func(ctx context.Context) (*rewrite.Rewriter, error)

func newServeMux(load rewriterFunc, rec *metrics.PrometheusRecorder) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /render", renderHandler(load))
	mux.Handle("GET /metrics", rec.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	return mux
}

// renderHandler treats every request as its own run: the registry is loaded
// again and a registry failure answers 502.
func renderHandler(load rewriterFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRenderBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "reading request body", http.StatusBadRequest)
			return
		}

		rw, err := load(r.Context())
		if err != nil {
			logger.Warn("loading providers failed", zap.Error(err))
			http.Error(w, "loading providers failed", http.StatusBadGateway)
			return
		}

		var buf bytes.Buffer
		report, err := rw.Convert(r.Context(), source, &buf)
		if err != nil {
			logger.Error("render failed", zap.Error(err))
			http.Error(w, "render failed", http.StatusInternalServerError)
			return
		}

		h := w.Header()
		h.Set("Content-Type", "text/html; charset=utf-8")
		h.Set("X-Oembed-Replaced", strconv.Itoa(report.Replaced))
		h.Set("X-Oembed-Unchanged", strconv.Itoa(report.Unchanged))
		h.Set("X-Oembed-Failed", strconv.Itoa(report.Failed))
		_, _ = w.Write(buf.Bytes())
	}
}
