// Package embed builds the HTML that replaces an embeddable link.
//
// A replacement is either a bare image, an image wrapped in an anchor, or a
// widget container. Widget containers keep the provider's raw HTML inside an
// inert <template data-oembed-template> so nothing third-party runs during the
// initial parse; the host page activates it later.
package embed

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// EmptyCanvas is the placeholder image source used when image loading is deferred.
const EmptyCanvas = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAASwAAACWCAYAAABkW7XSAAAEYklEQVR4Xu3UAQkAAAwCwdm/9HI83BLIOdw5AgQIRAQWySkmAQIEzmB5AgIEMgIGK1OVoAQIGCw/QIBARsBgZaoSlAABg+UHCBDICBisTFWCEiBgsPwAAQIZAYOVqUpQAgQMlh8gQCAjYLAyVQlKgIDB8gMECGQEDFamKkEJEDBYfoAAgYyAwcpUJSgBAgbLDxAgkBEwWJmqBCVAwGD5AQIEMgIGK1OVoAQIGCw/QIBARsBgZaoSlAABg+UHCBDICBisTFWCEiBgsPwAAQIZAYOVqUpQAgQMlh8gQCAjYLAyVQlKgIDB8gMECGQEDFamKkEJEDBYfoAAgYyAwcpUJSgBAgbLDxAgkBEwWJmqBCVAwGD5AQIEMgIGK1OVoAQIGCw/QIBARsBgZaoSlAABg+UHCBDICBisTFWCEiBgsPwAAQIZAYOVqUpQAgQMlh8gQCAjYLAyVQlKgIDB8gMECGQEDFamKkEJEDBYfoAAgYyAwcpUJSgBAgbLDxAgkBEwWJmqBCVAwGD5AQIEMgIGK1OVoAQIGCw/QIBARsBgZaoSlAABg+UHCBDICBisTFWCEiBgsPwAAQIZAYOVqUpQAgQMlh8gQCAjYLAyVQlKgIDB8gMECGQEDFamKkEJEDBYfoAAgYyAwcpUJSgBAgbLDxAgkBEwWJmqBCVAwGD5AQIEMgIGK1OVoAQIGCw/QIBARsBgZaoSlAABg+UHCBDICBisTFWCEiBgsPwAAQIZAYOVqUpQAgQMlh8gQCAjYLAyVQlKgIDB8gMECGQEDFamKkEJEDBYfoAAgYyAwcpUJSgBAgbLDxAgkBEwWJmqBCVAwGD5AQIEMgIGK1OVoAQIGCw/QIBARsBgZaoSlAABg+UHCBDICBisTFWCEiBgsPwAAQIZAYOVqUpQAgQMlh8gQCAjYLAyVQlKgIDB8gMECGQEDFamKkEJEDBYfoAAgYyAwcpUJSgBAgbLDxAgkBEwWJmqBCVAwGD5AQIEMgIGK1OVoAQIGCw/QIBARsBgZaoSlAABg+UHCBDICBisTFWCEiBgsPwAAQIZAYOVqUpQAgQMlh8gQCAjYLAyVQlKgIDB8gMECGQEDFamKkEJEDBYfoAAgYyAwcpUJSgBAgbLDxAgkBEwWJmqBCVAwGD5AQIEMgIGK1OVoAQIGCw/QIBARsBgZaoSlAABg+UHCBDICBisTFWCEiBgsPwAAQIZAYOVqUpQAgQMlh8gQCAjYLAyVQlKgIDB8gMECGQEDFamKkEJEDBYfoAAgYyAwcpUJSgBAgbLDxAgkBEwWJmqBCVAwGD5AQIEMgIGK1OVoAQIGCw/QIBARsBgZaoSlAABg+UHCBDICBisTFWCEiBgsPwAAQIZAYOVqUpQAgQMlh8gQCAjYLAyVQlKgIDB8gMECGQEDFamKkEJEDBYfoAAgYyAwcpUJSgBAgbLDxAgkBEwWJmqBCVAwGD5AQIEMgIGK1OVoAQIGCw/QIBARsBgZaoSlAABg+UHCBDICBisTFWCEiBgsPwAAQIZAYOVqUpQAgQMlh8gQCAjYLAyVQlKgIDB8gMECGQEDFamKkEJEDBYfoAAgYyAwcpUJSgBAgbLDxAgkBEwWJmqBCVAwGD5AQIEMgIGK1OVoAQIGCw/QIBARsBgZaoSlACBB1YxAJfjJb2jAAAAAElFTkSuQmCC"

// Options are the caller's per-run rendering switches.
type Options struct {
	// JSX emits a single opaque raw-markup node instead of structured HTML.
	JSX bool
	// AsyncImage puts EmptyCanvas in src and the real URL in data-src.
	AsyncImage bool
	// SyncWidget puts provider HTML directly in the container, without a template.
	SyncWidget bool
}

// Kind tags the shape of a Replacement.
type Kind int

const (
	KindNone Kind = iota
	KindImage
	KindAnchorImage
	KindWidget
	KindRawMarkup
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindAnchorImage:
		return "anchor-image"
	case KindWidget:
		return "widget"
	case KindRawMarkup:
		return "raw-markup"
	default:
		return "none"
	}
}

// Replacement is the markup that stands in for a link.
type Replacement struct {
	Kind Kind
	// Node is the structured markup; nil for KindRawMarkup.
	Node *html.Node
	// Raw is the opaque markup of a KindRawMarkup replacement.
	Raw string
	// Wraps is the kind that was serialized into Raw.
	Wraps Kind
}

// Render writes the replacement's HTML to w.
func (r Replacement) Render(w io.Writer) error {
	if r.Kind == KindRawMarkup {
		_, err := io.WriteString(w, r.Raw)
		return err
	}
	if r.Node == nil {
		return nil
	}
	return html.Render(w, r.Node)
}

// HTML returns the rendered replacement.
func (r Replacement) HTML() (string, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// jsxWrap serializes a structured replacement into a single raw-markup node.
func jsxWrap(r Replacement) (Replacement, bool) {
	out, err := r.HTML()
	if err != nil {
		return Replacement{}, false
	}
	escaped := jsxEscaper.Replace(out)
	return Replacement{
		Kind:  KindRawMarkup,
		Raw:   "<wrapper dangerouslySetInnerHTML={{ __html: `" + escaped + "` }} />",
		Wraps: r.Kind,
	}, true
}

var jsxEscaper = strings.NewReplacer(`\`, `\\`, "`", "\\`", "${", `\${`)
