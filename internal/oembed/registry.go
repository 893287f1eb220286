package oembed

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gobwas/glob"
)

// Registry is a loaded provider list with every scheme precompiled.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	providers []Provider
	// matchers[p][e][s] is the compiled form of providers[p].Endpoints[e].Schemes[s].
	matchers [][][]glob.Glob
}

// NewRegistry compiles the schemes of providers, keeping their order.
func NewRegistry(providers []Provider) *Registry {
	r := &Registry{
		providers: providers,
		matchers:  make([][][]glob.Glob, len(providers)),
	}
	for p, provider := range providers {
		r.matchers[p] = make([][]glob.Glob, len(provider.Endpoints))
		for e, endpoint := range provider.Endpoints {
			compiled := make([]glob.Glob, len(endpoint.Schemes))
			for s, scheme := range endpoint.Schemes {
				compiled[s] = compileScheme(scheme)
			}
			r.matchers[p][e] = compiled
		}
	}
	return r
}

// DecodeRegistry reads a providers.json document.
func DecodeRegistry(rd io.Reader) (*Registry, error) {
	var providers []Provider
	if err := json.NewDecoder(rd).Decode(&providers); err != nil {
		return nil, fmt.Errorf("decoding provider registry: %w", err)
	}
	return NewRegistry(providers), nil
}

// Providers returns the registry entries in registry order.
func (r *Registry) Providers() []Provider {
	if r == nil {
		return nil
	}
	return r.providers
}

// Len returns the number of providers.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.providers)
}

// compileScheme turns a registry scheme into a matcher where '*' matches any
// run of characters. Schemes that do not compile as globs are retried with
// every metacharacter except '*' quoted, so they never fail.
func compileScheme(scheme string) glob.Glob {
	if g, err := glob.Compile(scheme); err == nil {
		return g
	}
	parts := strings.Split(scheme, "*")
	for i, part := range parts {
		parts[i] = glob.QuoteMeta(part)
	}
	return glob.MustCompile(strings.Join(parts, "*"))
}
