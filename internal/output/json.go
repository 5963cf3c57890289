// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package output renders run results and taxonomy catalogs as JSON or
// terminal tables.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/bonial-oss/physec-risk/internal/taxonomy"
	"github.com/bonial-oss/physec-risk/internal/types"
)

func WriteJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// CatalogThreat is the JSON view of one threat and its links.
type CatalogThreat struct {
	types.Threat
	Questions []taxonomy.ThreatQuestionLink `json:"questions"`
	Controls  []string                      `json:"controls"`
}

// Catalog is the JSON view of a domain taxonomy.
type Catalog struct {
	Domain     types.Domain       `json:"domain"`
	Title      string             `json:"title"`
	Scale      types.Scale        `json:"scale"`
	Thresholds types.Thresholds   `json:"thresholds"`
	Threats    []CatalogThreat    `json:"threats"`
	Controls   []taxonomy.Control `json:"controls"`
}

// NewCatalog builds the catalog view of tax.
func NewCatalog(tax *taxonomy.Taxonomy) Catalog {
	c := Catalog{
		Domain:     tax.Domain(),
		Title:      tax.Title(),
		Scale:      tax.Scale(),
		Thresholds: tax.Thresholds(),
		Controls:   tax.Controls(),
	}
	for _, t := range tax.Threats() {
		ct := CatalogThreat{Threat: t, Questions: tax.QuestionLinks(t.ID), Controls: []string{}}
		for _, link := range tax.ControlLinks(t.ID) {
			ct.Controls = append(ct.Controls, link.ControlID)
		}
		c.Threats = append(c.Threats, ct)
	}
	return c
}
