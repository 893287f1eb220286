package rewrite

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"oembedder/internal/embed"
)

func TestExtension_ReportInParserContext(t *testing.T) {
	f := newFixture(t)
	md := goldmark.New(goldmark.WithExtensions(NewExtension(f.rewriter())))

	pc := WithContext(parser.NewContext(), context.Background())
	var buf bytes.Buffer
	require.NoError(t, md.Convert([]byte("[photo](https://example.com/a.jpg)\n\n[x](https://broken.example/1)\n"), &buf, parser.WithContext(pc)))

	report, ok := ReportFrom(pc)
	require.True(t, ok)
	assert.Equal(t, 1, report.Replaced)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, buf.String(), `<img src="https://example.com/a.jpg"`)
	assert.Contains(t, buf.String(), `<a href="https://broken.example/1">x</a>`)
}

func TestExtension_WithoutContext(t *testing.T) {
	f := newFixture(t)
	md := f.rewriter().Markdown()

	pc := parser.NewContext()
	doc := md.Parser().Parse(text.NewReader([]byte("[photo](https://example.com/b.jpg)\n")), parser.WithContext(pc))

	n, ok := doc.FirstChild().(*Embed)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/b.jpg", n.Link)
	assert.Equal(t, embed.KindImage, n.Replacement.Kind)

	report, ok := ReportFrom(pc)
	require.True(t, ok)
	assert.Equal(t, 1, report.Replaced)
}

func TestExtension_CancelledContextKeepsLinks(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	report, err := f.rewriter().Convert(ctx, []byte("[clip](https://video.example/v/1)\n"), &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "<p><a href=\"https://video.example/v/1\">clip</a></p>\n", buf.String())
}

func TestReportFrom_Missing(t *testing.T) {
	_, ok := ReportFrom(parser.NewContext())
	assert.False(t, ok)
}
