package rewrite

import (
	"context"
	"fmt"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// transformerPriority is shared by the AST transformer and the node renderer.
const transformerPriority = 500

var (
	contextKey = parser.NewContextKey()
	reportKey  = parser.NewContextKey()
)

// WithContext attaches ctx to a parser context so the AST transformer uses it
// for network requests.
func WithContext(pc parser.Context, ctx context.Context) parser.Context {
	pc.Set(contextKey, ctx)
	return pc
}

// ReportFrom returns the report the transformer stored in pc.
func ReportFrom(pc parser.Context) (Report, bool) {
	r, ok := pc.Get(reportKey).(Report)
	return r, ok
}

type oembedExtension struct {
	rw *Rewriter
}

// NewExtension returns a goldmark extension that rewrites embeddable links
// while parsing and renders the resulting Embed nodes.
func NewExtension(rw *Rewriter) goldmark.Extender {
	return &oembedExtension{rw: rw}
}

func (e *oembedExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithASTTransformers(
			util.Prioritized(&astTransformer{rw: e.rw}, transformerPriority),
		),
	)
	m.Renderer().AddOptions(
		renderer.WithNodeRenderers(
			util.Prioritized(&htmlRenderer{}, transformerPriority),
		),
	)
}

type astTransformer struct {
	rw *Rewriter
}

func (a *astTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	ctx, ok := pc.Get(contextKey).(context.Context)
	if !ok || ctx == nil {
		ctx = context.Background()
	}
	report := a.rw.Rewrite(ctx, node, reader.Source())
	pc.Set(reportKey, report)
}

type htmlRenderer struct{}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *htmlRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindEmbed, r.renderEmbed)
}

func (r *htmlRenderer) renderEmbed(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*Embed)
	if err := n.Replacement.Render(w); err != nil {
		return ast.WalkStop, fmt.Errorf("rendering embed for %s: %w", n.Link, err)
	}
	_ = w.WriteByte('\n')
	return ast.WalkSkipChildren, nil
}

// Markdown returns a goldmark instance with GFM and the oEmbed extension.
func (rw *Rewriter) Markdown() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.GFM, NewExtension(rw)))
}

// Convert renders markdown source to HTML with embeddable links replaced.
func (rw *Rewriter) Convert(ctx context.Context, source []byte, w io.Writer) (Report, error) {
	pc := WithContext(parser.NewContext(), ctx)
	if err := rw.Markdown().Convert(source, w, parser.WithContext(pc)); err != nil {
		return Report{}, fmt.Errorf("rendering markdown: %w", err)
	}
	report, _ := ReportFrom(pc)
	return report, nil
}
