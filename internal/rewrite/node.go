package rewrite

import (
	"github.com/yuin/goldmark/ast"

	"oembedder/internal/embed"
)

// KindEmbed is the NodeKind of *Embed.
var KindEmbed = ast.NewNodeKind("Oembed")

// Embed is the node that replaces an embeddable link. It has no children.
type Embed struct {
	ast.BaseBlock
	Link        string
	Replacement embed.Replacement
}

// NewEmbed returns a new Embed node.
func NewEmbed(link string, r embed.Replacement) *Embed {
	return &Embed{Link: link, Replacement: r}
}

// Kind implements ast.Node.Kind.
func (n *Embed) Kind() ast.NodeKind {
	return KindEmbed
}

// Dump implements ast.Node.Dump.
func (n *Embed) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Link":        n.Link,
		"Replacement": n.Replacement.Kind.String(),
	}, nil)
}
