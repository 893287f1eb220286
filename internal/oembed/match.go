package oembed

import (
	"fmt"
	"net/url"
	"strings"
)

// Match is a resolved endpoint for a link.
type Match struct {
	Provider string
	Endpoint Endpoint
	// Query holds the request parameters: the link under "url" plus the
	// endpoint's fixed params.
	Query map[string]string
}

// Match returns the first endpoint whose scheme matches link, walking
// providers, then endpoints, then schemes in registry order.
func (r *Registry) Match(link string) (Match, bool) {
	if r == nil || link == "" {
		return Match{}, false
	}
	for p := range r.providers {
		for e := range r.providers[p].Endpoints {
			for _, g := range r.matchers[p][e] {
				if !g.Match(link) {
					continue
				}
				provider := r.providers[p]
				return newMatch(provider.Name, provider.Endpoints[e], link), true
			}
		}
	}
	return Match{}, false
}

func newMatch(provider string, endpoint Endpoint, link string) Match {
	query := make(map[string]string, len(endpoint.Params)+1)
	query["url"] = link
	for k, v := range endpoint.Params {
		query[k] = v
	}
	return Match{Provider: provider, Endpoint: endpoint, Query: query}
}

// Link returns the link the match was resolved for.
func (m Match) Link() string {
	return m.Query["url"]
}

// RequestURL builds the oEmbed request: the endpoint URL with format=json
// and every non-empty query parameter.
func (m Match) RequestURL() (string, error) {
	raw := strings.ReplaceAll(m.Endpoint.URL, "{format}", "json")
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint %q: %w", m.Endpoint.URL, err)
	}

	q := u.Query()
	q.Set("format", "json")
	for k, v := range m.Query {
		if v == "" {
			continue
		}
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
