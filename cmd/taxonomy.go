// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bonial-oss/physec-risk/internal/output"
	"github.com/bonial-oss/physec-risk/internal/taxonomy"
	"github.com/bonial-oss/physec-risk/internal/types"
)

// domainSummary is one line of the domain listing.
type domainSummary struct {
	Domain  types.Domain `json:"domain"`
	Title   string       `json:"title"`
	Threats int          `json:"threats"`
}

func newTaxonomyCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "taxonomy [domain]",
		Short: "List assessment domains or print the threat catalog of one domain",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if format != "json" && format != "table" {
				return &ExitError{Code: 2, Message: fmt.Sprintf("unsupported output format: %s", format)}
			}
			w := c.OutOrStdout()
			if len(args) == 0 {
				return writeDomains(w, format)
			}

			tax, err := taxonomy.Default.Get(types.Domain(args[0]))
			if errors.Is(err, taxonomy.ErrUnknownDomain) {
				return &ExitError{
					Code:    3,
					Message: fmt.Sprintf("unknown domain %q (known: %s)", args[0], knownDomains()),
				}
			}
			if err != nil {
				return fmt.Errorf("loading taxonomy: %w", err)
			}
			if format == "json" {
				return output.WriteJSON(w, output.NewCatalog(tax))
			}
			return output.WriteCatalog(w, tax, output.TableConfig{IsTerminal: output.IsOutputToTerminal(w)})
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "Output format: json, table")

	return cmd
}

func writeDomains(w io.Writer, format string) error {
	var domains []domainSummary
	for _, d := range taxonomy.Domains() {
		tax, err := taxonomy.Default.Get(d)
		if err != nil {
			return fmt.Errorf("loading taxonomy: %w", err)
		}
		domains = append(domains, domainSummary{Domain: d, Title: tax.Title(), Threats: len(tax.Threats())})
	}

	if format == "json" {
		return output.WriteJSON(w, domains)
	}
	for _, d := range domains {
		fmt.Fprintf(w, "%-22s %-40s %d threats\n", d.Domain, d.Title, d.Threats)
	}
	return nil
}
