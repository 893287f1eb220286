package oembed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"oembedder/internal/httputil"
)

// DefaultRegistryURL is the public provider list.
const DefaultRegistryURL = "https://oembed.com/providers.json"

// Client talks to the provider registry and oEmbed endpoints.
type Client struct {
	http      *http.Client
	userAgent string
	logger    *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the hardened default client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:      httputil.NewClient(0),
		userAgent: httputil.DefaultUserAgent,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchRegistry loads the provider list from an http(s) URL or a local file.
func (c *Client) FetchRegistry(ctx context.Context, location string) (*Registry, error) {
	if location == "" {
		location = DefaultRegistryURL
	}

	var data []byte
	if httputil.IsRemote(location) {
		body, err := httputil.GetJSON(ctx, c.http, location, c.userAgent)
		if err != nil {
			return nil, fmt.Errorf("fetching provider registry: %w", asFetchError(err))
		}
		data = body
	} else {
		body, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("reading provider registry: %w", err)
		}
		data = body
	}

	reg, err := DecodeRegistry(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	c.logger.Debug("provider registry loaded",
		zap.String("location", location),
		zap.Int("providers", reg.Len()))
	return reg, nil
}

// Fetch requests the descriptor for a resolved match.
func (c *Client) Fetch(ctx context.Context, m Match) (*Descriptor, error) {
	reqURL, err := m.RequestURL()
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetching oembed", zap.String("provider", m.Provider), zap.String("request", reqURL))

	body, err := httputil.GetJSON(ctx, c.http, reqURL, c.userAgent)
	if err != nil {
		return nil, fmt.Errorf("fetching oembed for %s: %w", m.Link(), asFetchError(err))
	}

	var d Descriptor
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDescriptor, err)
	}
	return &d, nil
}

// Discover looks for an oEmbed endpoint advertised by the page itself through
// <link rel="alternate" type="application/json+oembed">.
func (c *Client) Discover(ctx context.Context, pageURL string) (Match, bool, error) {
	resp, err := httputil.Get(ctx, c.http, pageURL, c.userAgent)
	if err != nil {
		return Match{}, false, fmt.Errorf("discovering oembed for %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Match{}, false, &FetchError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Match{}, false, fmt.Errorf("parsing HTML: %w", err)
	}

	href, ok := discoverHref(doc)
	if !ok {
		return Match{}, false, nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return Match{}, false, fmt.Errorf("parsing page URL: %w", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return Match{}, false, fmt.Errorf("parsing discovered endpoint %q: %w", href, err)
	}

	endpoint := Endpoint{URL: base.ResolveReference(ref).String(), Discovery: true}
	c.logger.Debug("oembed endpoint discovered", zap.String("page", pageURL), zap.String("endpoint", endpoint.URL))
	return newMatch(base.Host, endpoint, pageURL), true, nil
}

// discoverHref returns the first JSON oEmbed link in the document head.
func discoverHref(doc *goquery.Document) (string, bool) {
	var href string
	doc.Find("link[rel~=alternate]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSpace(s.AttrOr("type", "")), "application/json+oembed") {
			return true
		}
		href = strings.TrimSpace(s.AttrOr("href", ""))
		return href == ""
	})
	return href, href != ""
}

func asFetchError(err error) error {
	var se *httputil.StatusError
	if errors.As(err, &se) {
		return &FetchError{URL: se.URL, StatusCode: se.StatusCode}
	}
	return err
}
