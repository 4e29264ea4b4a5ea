package mapping

import (
	"context"

	"github.com/sells-group/baseline-cli/internal/model"
)

// Oracle is an optional external classifier consulted for ambiguous
// mappings. Errors are never fatal to resolution.
type Oracle interface {
	Enabled() bool
	Propose(ctx context.Context, req ProposeRequest) (*Proposal, error)
	Validate(ctx context.Context, req ValidateRequest) (*Verdict, error)
}

// Example is a worked column-set to mapping pair shown to the oracle.
type Example struct {
	Vendor  string             `json:"vendor,omitempty"`
	Columns []string           `json:"columns"`
	Mapping model.FieldMapping `json:"mapping"`
}

// ProposeRequest asks the oracle for a mapping of columns.
type ProposeRequest struct {
	Vendor    string
	Columns   []string
	SampleRow map[string]string
	Examples  []Example
}

// FieldProposal is the oracle's suggestion for one canonical field.
type FieldProposal struct {
	Column     string  `json:"column"`
	Confidence float64 `json:"confidence"`
}

// Proposal is the oracle's suggested mapping.
type Proposal struct {
	Fields    map[model.CanonicalField]FieldProposal `json:"fields"`
	Reasoning string                                 `json:"reasoning"`
}

// ValidateRequest asks the oracle to judge a heuristic mapping.
type ValidateRequest struct {
	Vendor       string
	Mapping      model.FieldMapping
	SampleValues map[model.CanonicalField][]string
}

// FieldVerdict is the oracle's judgement of one mapped field.
type FieldVerdict struct {
	Approve    bool    `json:"approve"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// Verdict is the oracle's judgement of a whole mapping.
type Verdict struct {
	Fields            map[model.CanonicalField]FieldVerdict `json:"fields"`
	OverallOK         bool                                  `json:"overall_ok"`
	OverallConfidence float64                               `json:"overall_confidence"`
	Reasoning         string                                `json:"reasoning,omitempty"`
}

// DefaultExamples are the fixed worked examples sent with every proposal.
func DefaultExamples() []Example {
	return []Example{
		{
			Vendor:  "Propio",
			Columns: []string{"Call Date", "Language", "Connect Time (Minutes:Seconds)", "Charges", "Service Line"},
			Mapping: model.FieldMapping{Date: "Call Date", Language: "Language", Minutes: "Connect Time (Minutes:Seconds)", Charge: "Charges", Modality: "Service Line"},
		},
		{
			Vendor:  "LanguageLine",
			Columns: []string{"Invoice Date", "Session ID", "Target Language", "Min Billed", "Unit Price", "Line Total"},
			Mapping: model.FieldMapping{Date: "Invoice Date", Language: "Target Language", Minutes: "Min Billed", Charge: "Line Total", Rate: "Unit Price"},
		},
		{
			Vendor:  "Cyracom",
			Columns: []string{"Year-Month", "Lang", "MinutesWithTPD", "ChargesWithTPD", "Product"},
			Mapping: model.FieldMapping{Date: "Year-Month", Language: "Lang", Minutes: "MinutesWithTPD", Charge: "ChargesWithTPD", Modality: "Product"},
		},
	}
}
