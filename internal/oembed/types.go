// Package oembed resolves links against an oEmbed provider registry and
// fetches embed descriptors from the matched endpoints.
package oembed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNoMatch reports that no provider endpoint accepts a link. It is the
	// expected outcome for most links and never a failure.
	ErrNoMatch = errors.New("no oembed provider matches link")

	// ErrMalformedDescriptor reports a descriptor without a usable type.
	ErrMalformedDescriptor = errors.New("malformed oembed descriptor")
)

// FetchError reports a non-success HTTP status from the registry or an oEmbed endpoint.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("oembed: HTTP error status %d from %s", e.StatusCode, e.URL)
}

// Type is the oEmbed resource type.
type Type string

const (
	TypePhoto Type = "photo"
	TypeVideo Type = "video"
	TypeRich  Type = "rich"
	TypeLink  Type = "link"
)

// Provider is one entry of the provider registry.
type Provider struct {
	Name      string     `json:"provider_name"`
	URL       string     `json:"provider_url,omitempty"`
	Endpoints []Endpoint `json:"endpoints"`
}

// UnmarshalJSON accepts "name" as an alias of "provider_name".
func (p *Provider) UnmarshalJSON(data []byte) error {
	type plain Provider
	var aux struct {
		plain
		Alias string `json:"name"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Provider(aux.plain)
	if p.Name == "" {
		p.Name = aux.Alias
	}
	return nil
}

// Endpoint is an API endpoint valid for links matching one of its schemes.
type Endpoint struct {
	URL       string            `json:"url"`
	Schemes   []string          `json:"schemes,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	Formats   []string          `json:"formats,omitempty"`
	Discovery bool              `json:"discovery,omitempty"`
}

// Dimension is a pixel size. Providers send numbers or numeric strings;
// anything unparsable decodes to zero.
type Dimension int

// UnmarshalJSON implements json.Unmarshaler.
func (d *Dimension) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*d = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		*d = 0
		return nil
	}
	*d = Dimension(f)
	return nil
}

// String returns the dimension as an HTML attribute value, empty when unset.
func (d Dimension) String() string {
	if d <= 0 {
		return ""
	}
	return strconv.Itoa(int(d))
}

// Descriptor is an oEmbed response body.
type Descriptor struct {
	Type            Type      `json:"type"`
	Version         string    `json:"version,omitempty"`
	Title           string    `json:"title,omitempty"`
	AuthorName      string    `json:"author_name,omitempty"`
	AuthorURL       string    `json:"author_url,omitempty"`
	ProviderName    string    `json:"provider_name,omitempty"`
	ProviderURL     string    `json:"provider_url,omitempty"`
	CacheAge        Dimension `json:"cache_age,omitempty"`
	URL             string    `json:"url,omitempty"`
	HTML            string    `json:"html,omitempty"`
	Width           Dimension `json:"width,omitempty"`
	Height          Dimension `json:"height,omitempty"`
	ThumbnailURL    string    `json:"thumbnail_url,omitempty"`
	ThumbnailWidth  Dimension `json:"thumbnail_width,omitempty"`
	ThumbnailHeight Dimension `json:"thumbnail_height,omitempty"`
}

// UnmarshalJSON decodes a descriptor. Metadata fields that providers send as
// numbers or booleans (version 1.0, a numeric title) are kept as their text;
// only type and the media fields must have the documented JSON types.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	type plain Descriptor
	var aux struct {
		plain
		Version      looseText `json:"version"`
		Title        looseText `json:"title"`
		AuthorName   looseText `json:"author_name"`
		AuthorURL    looseText `json:"author_url"`
		ProviderName looseText `json:"provider_name"`
		ProviderURL  looseText `json:"provider_url"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*d = Descriptor(aux.plain)
	d.Version = string(aux.Version)
	d.Title = string(aux.Title)
	d.AuthorName = string(aux.AuthorName)
	d.AuthorURL = string(aux.AuthorURL)
	d.ProviderName = string(aux.ProviderName)
	d.ProviderURL = string(aux.ProviderURL)
	return nil
}

// looseText accepts a JSON string, number or boolean. Objects, arrays and
// null decode to the empty string.
type looseText string

func (t *looseText) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "" || raw == "null":
		*t = ""
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = looseText(s)
	case raw[0] == '{' || raw[0] == '[':
		*t = ""
	default:
		*t = looseText(raw)
	}
	return nil
}

// Validate checks that the descriptor names a known resource type.
func (d *Descriptor) Validate() error {
	switch d.Type {
	case TypePhoto, TypeVideo, TypeRich, TypeLink:
		return nil
	case "":
		return fmt.Errorf("%w: missing type", ErrMalformedDescriptor)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedDescriptor, d.Type)
	}
}
