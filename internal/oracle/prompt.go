package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sells-group/baseline-cli/internal/mapping"
	"github.com/sells-group/baseline-cli/internal/model"
)

const instructions = `You map the columns of interpreting-service billing spreadsheets onto a fixed schema.

Canonical fields:
- date: when the session happened or was billed (a day, or a year-month period)
- language: the interpreted language
- minutes: billable duration in minutes (may be written MM:SS)
- charge: the total amount billed for the row, not a unit price
- rate: price per minute
- modality: service line such as OPI, VRI or on-site

Rules:
- Use only column names that appear in the input, spelled exactly.
- Map each column to at most one field. Omit fields you cannot find.
- Give each field a confidence between 0 and 1.

Answer with a single JSON object and nothing else.`

// systemPrompt is the cached system text: instructions plus worked examples.
func systemPrompt(examples []mapping.Example) string {
	var b strings.Builder
	b.WriteString(instructions)
	if len(examples) > 0 {
		b.WriteString("\n\nWorked examples:\n")
		for _, ex := range examples {
			cols, _ := json.Marshal(ex.Columns)
			m, _ := json.Marshal(ex.Mapping)
			fmt.Fprintf(&b, "\nVendor: %s\nColumns: %s\nMapping: %s\n", ex.Vendor, cols, m)
		}
	}
	return b.String()
}

type proposePayload struct {
	Vendor    string            `json:"vendor,omitempty"`
	Columns   []string          `json:"columns"`
	SampleRow map[string]string `json:"sample_row,omitempty"`
}

func proposePrompt(req mapping.ProposeRequest) string {
	body, _ := json.MarshalIndent(proposePayload{
		Vendor:    req.Vendor,
		Columns:   req.Columns,
		SampleRow: req.SampleRow,
	}, "", "  ")
	return "Propose a mapping for this table.\n\n" + string(body) + `

Respond as:
{"fields": {"<field>": {"column": "<column name>", "confidence": 0.0}}, "reasoning": "<one sentence>"}`
}

type validatePayload struct {
	Vendor       string                            `json:"vendor,omitempty"`
	Mapping      model.FieldMapping                `json:"mapping"`
	SampleValues map[model.CanonicalField][]string `json:"sample_values"`
}

func validatePrompt(req mapping.ValidateRequest) string {
	body, _ := json.MarshalIndent(validatePayload{
		Vendor:       req.Vendor,
		Mapping:      req.Mapping,
		SampleValues: req.SampleValues,
	}, "", "  ")
	return "Review this mapping against the sample values of each mapped column.\n\n" + string(body) + `

Respond as:
{"fields": {"<field>": {"approve": true, "confidence": 0.0, "reason": "<short>"}}, "overall_ok": true, "overall_confidence": 0.0, "reasoning": "<one sentence>"}`
}
