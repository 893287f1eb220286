package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"oembedder/internal/httputil"
	"oembedder/internal/metrics"
	"oembedder/internal/rewrite"
)

var (
	flagOutput string
	flagOutDir string
)

var renderCmd = &cobra.Command{
	Use:   "render [file...]",
	Short: "Render Markdown to HTML with embeddable links replaced",
	Long: `Render reads Markdown from the given files (or stdin when none or "-" is
given) and writes HTML. Links a provider cannot embed are left as they are.`,
	RunE: renderRun,
}

func init() {
	renderCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Write HTML to this file (single input only)")
	renderCmd.Flags().StringVar(&flagOutDir, "out-dir", "", "Write one .html file per input into this directory")
}

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

func renderRun(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"-"}
	}
	if flagOutput != "" && len(args) > 1 {
		return fmt.Errorf("--output takes a single input, got %d; use --out-dir", len(args))
	}
	if flagOutput != "" && flagOutDir != "" {
		return fmt.Errorf("--output and --out-dir are mutually exclusive")
	}

	ctx := cmd.Context()
	rw, err := newRewriter(ctx, metrics.NoopRecorder{})
	if err != nil {
		return err
	}

	var total rewrite.Report
	for _, name := range args {
		source, err := readInput(cmd.InOrStdin(), name)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		report, err := rw.Convert(ctx, source, &buf)
		if err != nil {
			return fmt.Errorf("rendering %s: %w", name, err)
		}
		logger.Debug("rendered", zap.String("input", name),
			zap.Int("replaced", report.Replaced), zap.Int("failed", report.Failed))

		if err := writeOutput(cmd.OutOrStdout(), name, buf.Bytes()); err != nil {
			return err
		}
		total = merge(total, report)
	}

	printSummary(total)
	return nil
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

func writeOutput(stdout io.Writer, name string, html []byte) error {
	var path string
	switch {
	case flagOutput != "":
		path = flagOutput
	case flagOutDir != "":
		if err := os.MkdirAll(flagOutDir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		base := name
		if name == "-" {
			base = "stdin"
		}
		p, err := httputil.SafeOutputPath(flagOutDir, httputil.HTMLName(filepath.Base(base)))
		if err != nil {
			return err
		}
		path = p
	default:
		_, err := stdout.Write(html)
		return err
	}

	if err := os.WriteFile(path, html, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	logger.Debug("wrote output", zap.String("path", path))
	return nil
}

func merge(a, b rewrite.Report) rewrite.Report {
	a.Replaced += b.Replaced
	a.Unchanged += b.Unchanged
	a.Failed += b.Failed
	a.Failures = append(a.Failures, b.Failures...)
	return a
}

// printSummary writes a short report to stderr when it is a terminal.
func printSummary(r rewrite.Report) {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return
	}
	line := fmt.Sprintf("%s %s %s",
		okStyle.Render(fmt.Sprintf("%d embedded", r.Replaced)),
		dimStyle.Render(fmt.Sprintf("%d kept", r.Unchanged)),
		failStyle.Render(fmt.Sprintf("%d failed", r.Failed)))
	fmt.Fprintln(os.Stderr, line)
	for _, f := range r.Failures {
		fmt.Fprintf(os.Stderr, "  %s %s\n", warnStyle.Render(f.Link), dimStyle.Render(f.Err.Error()))
	}
}
