package embed

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/ettle/strcase"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"oembedder/internal/oembed"
)

// Context is everything the builder needs for one link.
type Context struct {
	Descriptor *oembed.Descriptor
	// Href is the original link target.
	Href string
	Options
}

// Build returns the replacement for a link, or false when the descriptor
// offers neither a usable image nor provider HTML.
func Build(c Context) (Replacement, bool) {
	d := c.Descriptor
	if d == nil || c.Href == "" {
		return Replacement{}, false
	}

	var (
		r  Replacement
		ok bool
	)
	switch {
	case d.Type == oembed.TypePhoto && d.HTML == "":
		r, ok = buildPhoto(c)
	case c.SyncWidget && d.HTML != "":
		r, ok = buildSyncWidget(c)
	default:
		r, ok = buildWidget(c)
	}
	if !ok {
		return Replacement{}, false
	}

	if c.JSX {
		return jsxWrap(r)
	}
	return r, true
}

// buildPhoto handles photo descriptors without HTML. The image stands alone
// when the link itself points at an image.
func buildPhoto(c Context) (Replacement, bool) {
	d := c.Descriptor
	src := d.URL
	if src == "" {
		src = c.Href
	}

	img := newImage(imageAttrs{
		src:    src,
		title:  d.Title,
		width:  d.Width.String(),
		height: d.Height.String(),
		async:  c.AsyncImage,
	})

	if IsImageURL(c.Href) {
		return Replacement{Kind: KindImage, Node: img}, true
	}
	return Replacement{Kind: KindAnchorImage, Node: newAnchor(c.Href, img)}, true
}

func buildSyncWidget(c Context) (Replacement, bool) {
	div := newContainer(c.Descriptor.ProviderName)
	div.AppendChild(rawNode(c.Descriptor.HTML))
	return Replacement{Kind: KindWidget, Node: div}, true
}

// buildWidget produces a container with an anchor-wrapped preview image and
// an inert template holding the provider HTML.
func buildWidget(c Context) (Replacement, bool) {
	d := c.Descriptor
	preview, hasPreview := resolvePreview(d)
	if !hasPreview && d.HTML == "" {
		return Replacement{}, false
	}

	div := newContainer(d.ProviderName)
	if hasPreview {
		preview.title = d.Title
		preview.async = c.AsyncImage
		div.AppendChild(newAnchor(c.Href, newImage(preview)))
	}
	if d.HTML != "" {
		tmpl := newElement(atom.Template, html.Attribute{Key: "data-oembed-template"})
		tmpl.AppendChild(rawNode(d.HTML))
		div.AppendChild(tmpl)
	}
	return Replacement{Kind: KindWidget, Node: div}, true
}

// resolvePreview picks the descriptor's own URL when it is an image, else its
// thumbnail. Declared dimensions win over thumbnail dimensions.
func resolvePreview(d *oembed.Descriptor) (imageAttrs, bool) {
	width, height := d.Width, d.Height
	if width <= 0 {
		width = d.ThumbnailWidth
	}
	if height <= 0 {
		height = d.ThumbnailHeight
	}

	switch {
	case d.URL != "" && IsImageURL(d.URL):
		return imageAttrs{src: d.URL, width: d.Width.String(), height: d.Height.String()}, true
	case d.ThumbnailURL != "":
		return imageAttrs{src: d.ThumbnailURL, width: width.String(), height: height.String()}, true
	default:
		return imageAttrs{}, false
	}
}

// IsImageURL reports whether the URL path has an image MIME type by extension.
func IsImageURL(raw string) bool {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	return strings.HasPrefix(mime.TypeByExtension(ext), "image/")
}

type imageAttrs struct {
	src    string
	title  string
	width  string
	height string
	async  bool
}

func newImage(a imageAttrs) *html.Node {
	attrs := make([]html.Attribute, 0, 7)
	if a.async {
		attrs = append(attrs,
			html.Attribute{Key: "src", Val: EmptyCanvas},
			html.Attribute{Key: "data-src", Val: a.src})
	} else {
		attrs = append(attrs, html.Attribute{Key: "src", Val: a.src})
	}
	if a.title != "" {
		attrs = append(attrs, html.Attribute{Key: "title", Val: a.title})
	}
	if a.width != "" {
		attrs = append(attrs, html.Attribute{Key: "width", Val: a.width})
	}
	if a.height != "" {
		attrs = append(attrs, html.Attribute{Key: "height", Val: a.height})
	}
	attrs = append(attrs,
		html.Attribute{Key: "class", Val: "oembed-photo"},
		html.Attribute{Key: "data-oembed"})
	return newElement(atom.Img, attrs...)
}

func newAnchor(href string, child *html.Node) *html.Node {
	a := newElement(atom.A,
		html.Attribute{Key: "href", Val: href},
		html.Attribute{Key: "class", Val: "oembed-anchor"},
		html.Attribute{Key: "data-oembed"},
		html.Attribute{Key: "rel", Val: "noopener noreferrer nofollow"},
		html.Attribute{Key: "target", Val: "_blank"})
	if child != nil {
		a.AppendChild(child)
	}
	return a
}

func newContainer(provider string) *html.Node {
	class := "oembed-inline"
	if slug := strcase.ToKebab(provider); slug != "" {
		class += " oembed-" + slug
	}
	return newElement(atom.Div,
		html.Attribute{Key: "class", Val: class},
		html.Attribute{Key: "data-oembed"})
}

func newElement(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}

// rawNode carries markup that is written out verbatim and never parsed.
func rawNode(markup string) *html.Node {
	return &html.Node{Type: html.RawNode, Data: markup}
}
