// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"oembedder/internal/config"
	"oembedder/internal/embed"
	"oembedder/internal/httputil"
	"oembedder/internal/metrics"
	"oembedder/internal/oembed"
	"oembedder/internal/rewrite"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagProviders  string
	flagJSX        bool
	flagAsyncImage bool
	flagSyncWidget bool
	flagDiscovery  bool
	flagTimeout    string
	flagDebug      bool
)

// cfg holds the loaded configuration (merged: defaults < config file < flags).
var cfg *config.Config

// logger is built from cfg once flags are merged.
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "oembedder",
	Short: "Replace embeddable links in Markdown with oEmbed markup",
	Long: `oembedder renders Markdown to HTML and swaps every link that points at a
known oEmbed provider (YouTube, Flickr, Twitter and the rest of the
oembed.com registry) for the provider's embed markup.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() {
	defer func() { _ = logger.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagProviders, "providers", "p", "", "Provider registry URL or file (default: oembed.com)")
	rootCmd.PersistentFlags().BoolVar(&flagJSX, "jsx", false, "Wrap markup for JSX consumers")
	rootCmd.PersistentFlags().BoolVar(&flagAsyncImage, "async-image", false, "Defer image loading through data-src")
	rootCmd.PersistentFlags().BoolVar(&flagSyncWidget, "sync-widget", false, "Inline provider HTML instead of using a template")
	rootCmd.PersistentFlags().BoolVar(&flagDiscovery, "discovery", false, "Discover endpoints for links no provider matches")
	rootCmd.PersistentFlags().StringVarP(&flagTimeout, "timeout", "t", "", "HTTP timeout, e.g. 10s (default: 30s)")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if flagProviders != "" {
		cfg.Providers = flagProviders
	}
	if flagTimeout != "" {
		cfg.Timeout = flagTimeout
	}
	if flagJSX {
		cfg.JSX = true
	}
	if flagAsyncImage {
		cfg.AsyncImage = true
	}
	if flagSyncWidget {
		cfg.SyncWidget = true
	}
	if flagDiscovery {
		cfg.Discovery = true
	}
	if flagDebug {
		cfg.Debug = true
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err = newLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	return nil
}

// newLogger logs to stderr: everything in debug mode, warnings and up otherwise.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		zc := zap.NewDevelopmentConfig()
		zc.OutputPaths = []string{"stderr"}
		return zc.Build()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func markupOptions() embed.Options {
	return embed.Options{
		JSX:        cfg.JSX,
		AsyncImage: cfg.AsyncImage,
		SyncWidget: cfg.SyncWidget,
	}
}

// newClient builds the oEmbed client from cfg.
func newClient() (*oembed.Client, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	return oembed.NewClient(
		oembed.WithHTTPClient(httputil.NewClient(timeout)),
		oembed.WithUserAgent(cfg.UserAgent),
		oembed.WithLogger(logger.Named("oembed")),
	), nil
}

// newRewriter loads the registry once and returns a rewriter configured from cfg.
func newRewriter(ctx context.Context, rec metrics.Recorder) (*rewrite.Rewriter, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	reg, err := client.FetchRegistry(ctx, cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("loading providers: %w", err)
	}
	logger.Debug("providers loaded", zap.Int("count", reg.Len()), zap.String("location", cfg.Providers))

	return rewrite.New(client, reg,
		rewrite.WithOptions(markupOptions()),
		rewrite.WithDiscovery(cfg.Discovery),
		rewrite.WithLogger(logger.Named("rewrite")),
		rewrite.WithRecorder(rec),
	), nil
}
