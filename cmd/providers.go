package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"oembedder/internal/oembed"
)

var flagMatch string

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List registry providers, or show which one handles a link",
	Args:  cobra.NoArgs,
	RunE:  providersRun,
}

func init() {
	providersCmd.Flags().StringVarP(&flagMatch, "match", "m", "", "Show the provider and request URL for this link")
}

func providersRun(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	reg, err := client.FetchRegistry(cmd.Context(), cfg.Providers)
	if err != nil {
		return fmt.Errorf("loading providers: %w", err)
	}

	out := cmd.OutOrStdout()
	if flagMatch != "" {
		m, ok := reg.Match(flagMatch)
		if !ok {
			return fmt.Errorf("%w: %s", oembed.ErrNoMatch, flagMatch)
		}
		reqURL, err := m.RequestURL()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n  endpoint: %s\n  request:  %s\n", okStyle.Render(m.Provider), m.Endpoint.URL, reqURL)
		return nil
	}

	for _, p := range reg.Providers() {
		fmt.Fprintln(out, okStyle.Render(p.Name))
		for _, e := range p.Endpoints {
			schemes := "any link (discovery only)"
			if len(e.Schemes) > 0 {
				schemes = strings.Join(e.Schemes, " ")
			}
			fmt.Fprintf(out, "  %s %s\n", e.URL, dimStyle.Render(schemes))
		}
	}
	fmt.Fprintf(out, "%d providers\n", reg.Len())
	return nil
}
