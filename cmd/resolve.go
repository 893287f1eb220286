package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"oembedder/internal/embed"
	"oembedder/internal/oembed"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "Fetch the oEmbed descriptor and markup for one link",
	Args:  cobra.ExactArgs(1),
	RunE:  resolveRun,
}

type resolveOutput struct {
	Link       string             `json:"link"`
	Provider   string             `json:"provider"`
	Request    string             `json:"request"`
	Discovered bool               `json:"discovered,omitempty"`
	Descriptor *oembed.Descriptor `json:"descriptor"`
	Kind       string             `json:"kind"`
	Markup     string             `json:"markup,omitempty"`
}

func resolveRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	link := args[0]

	client, err := newClient()
	if err != nil {
		return err
	}
	reg, err := client.FetchRegistry(ctx, cfg.Providers)
	if err != nil {
		return fmt.Errorf("loading providers: %w", err)
	}

	m, ok := reg.Match(link)
	if !ok && cfg.Discovery {
		m, ok, err = client.Discover(ctx, link)
		if err != nil {
			return err
		}
	}
	if !ok {
		return fmt.Errorf("%w: %s", oembed.ErrNoMatch, link)
	}

	reqURL, err := m.RequestURL()
	if err != nil {
		return err
	}
	d, err := client.Fetch(ctx, m)
	if err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}

	out := resolveOutput{
		Link:       link,
		Provider:   m.Provider,
		Request:    reqURL,
		Discovered: m.Endpoint.Discovery,
		Descriptor: d,
		Kind:       embed.KindNone.String(),
	}
	if r, built := embed.Build(embed.Context{Descriptor: d, Href: link, Options: markupOptions()}); built {
		markup, err := r.HTML()
		if err != nil {
			return fmt.Errorf("rendering markup: %w", err)
		}
		out.Kind = r.Kind.String()
		out.Markup = markup
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
