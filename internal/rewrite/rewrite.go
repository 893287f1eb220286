// Package rewrite walks a goldmark document and replaces embeddable links
// with oEmbed markup.
//
// Each node is resolved on its own: a node whose first child links somewhere
// a provider accepts is swapped for an *Embed, everything else is kept as is.
// A failure while resolving one node never affects another.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yuin/goldmark/ast"
	"go.uber.org/zap"

	"oembedder/internal/embed"
	"oembedder/internal/httputil"
	"oembedder/internal/metrics"
	"oembedder/internal/oembed"
)

// Outcome is the result of resolving one node.
type Outcome int

const (
	// Unchanged keeps the node: no link, no matching provider, or nothing to build.
	Unchanged Outcome = iota
	// Replaced swaps the node for an *Embed.
	Replaced
	// Failed keeps the node because fetching or building went wrong.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Replaced:
		return "replaced"
	case Failed:
		return "failed"
	default:
		return "unchanged"
	}
}

// Result is what the per-node resolver returns.
type Result struct {
	Outcome  Outcome
	Link     string
	Provider string
	Node     *Embed
	Err      error
}

// Failure records one link that could not be embedded.
type Failure struct {
	Link string
	Err  error
}

// Report summarizes one rewrite. Only nodes that carry a link are counted.
type Report struct {
	Replaced  int
	Unchanged int
	Failed    int
	Failures  []Failure
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithOptions sets the markup options.
func WithOptions(opts embed.Options) Option {
	return func(rw *Rewriter) { rw.opts = opts }
}

// WithDiscovery enables endpoint discovery for links no provider matches.
func WithDiscovery(enabled bool) Option {
	return func(rw *Rewriter) { rw.discovery = enabled }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(rw *Rewriter) {
		if l != nil {
			rw.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(rw *Rewriter) {
		if r != nil {
			rw.recorder = r
		}
	}
}

// OnFailure registers a hook called for every failed link. It may be called
// concurrently.
func OnFailure(fn func(link string, err error)) Option {
	return func(rw *Rewriter) { rw.onFailure = fn }
}

// Rewriter replaces embeddable links using a loaded registry. It holds no
// per-document state and may be shared across goroutines.
type Rewriter struct {
	client    *oembed.Client
	registry  *oembed.Registry
	opts      embed.Options
	discovery bool
	logger    *zap.Logger
	recorder  metrics.Recorder
	onFailure func(link string, err error)
}

// New creates a Rewriter.
func New(client *oembed.Client, registry *oembed.Registry, opts ...Option) *Rewriter {
	if client == nil {
		client = oembed.NewClient()
	}
	rw := &Rewriter{
		client:   client,
		registry: registry,
		logger:   zap.NewNop(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(rw)
	}
	return rw
}

// Registry returns the provider registry in use.
func (rw *Rewriter) Registry() *oembed.Registry {
	return rw.registry
}

// Transform loads the provider registry from location and rewrites doc. A
// registry failure aborts the run; per-link failures never do.
func Transform(ctx context.Context, client *oembed.Client, location string, doc ast.Node, source []byte, opts ...Option) (Report, error) {
	if client == nil {
		client = oembed.NewClient()
	}
	reg, err := client.FetchRegistry(ctx, location)
	if err != nil {
		return Report{}, fmt.Errorf("loading providers: %w", err)
	}
	return New(client, reg, opts...).Rewrite(ctx, doc, source), nil
}

// Rewrite resolves every node of doc depth-first and splices replacements in place.
func (rw *Rewriter) Rewrite(ctx context.Context, doc ast.Node, source []byte) Report {
	start := time.Now()
	w := &walk{rw: rw, source: source}
	w.children(ctx, doc)
	rw.recorder.ObserveRewriteDuration(time.Since(start))

	rw.logger.Debug("document rewritten",
		zap.Int("replaced", w.report.Replaced),
		zap.Int("unchanged", w.report.Unchanged),
		zap.Int("failed", w.report.Failed),
		zap.Duration("elapsed", time.Since(start)))
	return w.report
}

// walk is the state of a single Rewrite call.
type walk struct {
	rw     *Rewriter
	source []byte

	mu     sync.Mutex
	report Report
}

// visit resolves n and then descends into whatever stands at its position.
func (w *walk) visit(ctx context.Context, n ast.Node) ast.Node {
	res := w.rw.Resolve(ctx, n, w.source)
	w.record(res)

	out := n
	if res.Outcome == Replaced {
		out = res.Node
	}
	w.children(ctx, out)
	return out
}

// children resolves the children of n concurrently. n's child list is only
// modified here, after every child goroutine has returned.
func (w *walk) children(ctx context.Context, n ast.Node) {
	kids := make([]ast.Node, 0, n.ChildCount())
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		kids = append(kids, c)
	}
	if len(kids) == 0 {
		return
	}

	results := make([]ast.Node, len(kids))
	if len(kids) == 1 {
		results[0] = w.visit(ctx, kids[0])
	} else {
		var wg sync.WaitGroup
		for i, c := range kids {
			i, c := i, c
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = w.visit(ctx, c)
			}()
		}
		wg.Wait()
	}

	for i, c := range kids {
		if results[i] != c {
			n.ReplaceChild(n, c, results[i])
		}
	}
}

func (w *walk) record(res Result) {
	if res.Link == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	switch res.Outcome {
	case Replaced:
		w.report.Replaced++
	case Failed:
		w.report.Failed++
		w.report.Failures = append(w.report.Failures, Failure{Link: res.Link, Err: res.Err})
	default:
		w.report.Unchanged++
	}
}

// Resolve decides the fate of a single node. It never returns an error:
// failures come back as a Failed result and the node stays where it is.
func (rw *Rewriter) Resolve(ctx context.Context, n ast.Node, source []byte) (res Result) {
	link := LinkTarget(n, source)
	if link == "" {
		return Result{Outcome: Unchanged}
	}
	res = Result{Outcome: Unchanged, Link: link}

	defer func() {
		if p := recover(); p != nil {
			res = Result{Outcome: Failed, Link: link, Err: fmt.Errorf("resolving %s: panic: %v", link, p)}
		}
		rw.observe(res)
	}()

	m, ok := rw.registry.Match(link)
	if !ok && rw.discovery && httputil.ValidateURL(link) == nil {
		dm, found, err := rw.client.Discover(ctx, link)
		if err != nil {
			return Result{Outcome: Failed, Link: link, Err: err}
		}
		m, ok = dm, found
	}
	if !ok {
		return res
	}
	res.Provider = m.Provider

	d, err := rw.client.Fetch(ctx, m)
	if err != nil {
		return Result{Outcome: Failed, Link: link, Provider: m.Provider, Err: err}
	}
	if err := d.Validate(); err != nil {
		return Result{Outcome: Failed, Link: link, Provider: m.Provider, Err: err}
	}

	r, built := embed.Build(embed.Context{Descriptor: d, Href: link, Options: rw.opts})
	if !built {
		return res
	}
	return Result{Outcome: Replaced, Link: link, Provider: m.Provider, Node: NewEmbed(link, r)}
}

func (rw *Rewriter) observe(res Result) {
	switch res.Outcome {
	case Replaced:
		rw.recorder.IncOutcome(res.Provider, metrics.OutcomeReplaced)
		rw.logger.Debug("link embedded", zap.String("link", res.Link), zap.String("provider", res.Provider))
	case Failed:
		rw.recorder.IncOutcome(res.Provider, metrics.OutcomeFailed)
		var fe *oembed.FetchError
		if errors.As(res.Err, &fe) {
			rw.recorder.IncFetchError(fe.StatusCode)
		}
		rw.logger.Warn("oembed resolution failed", zap.String("link", res.Link), zap.Error(res.Err))
		if rw.onFailure != nil {
			rw.onFailure(res.Link, res.Err)
		}
	default:
		rw.recorder.IncOutcome(res.Provider, metrics.OutcomeUnchanged)
	}
}

// LinkTarget returns the destination of n's first child when that child is a
// link, an image or a URL autolink. Only block nodes qualify: an *Embed is a
// block and cannot stand inside a paragraph.
func LinkTarget(n ast.Node, source []byte) string {
	if n.Type() != ast.TypeBlock {
		return ""
	}
	fc := n.FirstChild()
	if fc == nil {
		return ""
	}
	switch c := fc.(type) {
	case *ast.Link:
		return string(c.Destination)
	case *ast.Image:
		return string(c.Destination)
	case *ast.AutoLink:
		if c.AutoLinkType == ast.AutoLinkURL {
			return string(c.URL(source))
		}
	}
	return ""
}
