package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// MappingSource records which resolution path produced a mapping.
type MappingSource string

const (
	SourceCache           MappingSource = "cache"
	SourceOracle          MappingSource = "oracle"
	SourceHeuristic       MappingSource = "heuristic"
	SourceHeuristicOracle MappingSource = "heuristic+oracle"
	SourceManual          MappingSource = "manual"
)

// FieldMapping assigns at most one source column to each canonical field.
// An empty slot means the field is unmapped. The zero value is an empty mapping.
type FieldMapping struct {
	Date     string
	Language string
	Minutes  string
	Charge   string
	Rate     string
	Modality string
}

func (m *FieldMapping) slot(f CanonicalField) *string {
	switch f {
	case FieldDate:
		return &m.Date
	case FieldLanguage:
		return &m.Language
	case FieldMinutes:
		return &m.Minutes
	case FieldCharge:
		return &m.Charge
	case FieldRate:
		return &m.Rate
	case FieldModality:
		return &m.Modality
	}
	return nil
}

// Get returns the column mapped to f, or "" when unmapped.
func (m FieldMapping) Get(f CanonicalField) string {
	if p := m.slot(f); p != nil {
		return *p
	}
	return ""
}

// Has reports whether f is mapped.
func (m FieldMapping) Has(f CanonicalField) bool {
	return m.Get(f) != ""
}

// Set assigns column to f. It refuses (returning false) when f is already
// mapped or when column is already assigned to another field.
func (m *FieldMapping) Set(f CanonicalField, column string) bool {
	p := m.slot(f)
	if p == nil || column == "" || *p != "" {
		return false
	}
	if m.Uses(column) {
		return false
	}
	*p = column
	return true
}

// Clear unmaps f.
func (m *FieldMapping) Clear(f CanonicalField) {
	if p := m.slot(f); p != nil {
		*p = ""
	}
}

// Uses reports whether column is assigned to any field.
func (m FieldMapping) Uses(column string) bool {
	if column == "" {
		return false
	}
	for _, f := range allFields {
		if m.Get(f) == column {
			return true
		}
	}
	return false
}

// Fields returns the mapped fields in canonical order.
func (m FieldMapping) Fields() []CanonicalField {
	var out []CanonicalField
	for _, f := range allFields {
		if m.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Columns returns the mapped columns in canonical field order.
func (m FieldMapping) Columns() []string {
	var out []string
	for _, f := range m.Fields() {
		out = append(out, m.Get(f))
	}
	return out
}

// Len returns the number of mapped fields.
func (m FieldMapping) Len() int {
	return len(m.Fields())
}

// Empty reports whether no field is mapped.
func (m FieldMapping) Empty() bool {
	return m.Len() == 0
}

// Merge copies every slot of other into m that m has not filled yet and
// whose column m does not already use. It returns the fields it added.
func (m *FieldMapping) Merge(other FieldMapping) []CanonicalField {
	var added []CanonicalField
	for _, f := range other.Fields() {
		if m.Set(f, other.Get(f)) {
			added = append(added, f)
		}
	}
	return added
}

// Missing returns the fields of want that m leaves unmapped.
func (m FieldMapping) Missing(want ...CanonicalField) []CanonicalField {
	var out []CanonicalField
	for _, f := range want {
		if !m.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Validate checks that no column is assigned twice and, when columns is
// non-nil, that every mapped column exists in it.
func (m FieldMapping) Validate(columns []string) error {
	seen := make(map[string]CanonicalField)
	for _, f := range m.Fields() {
		col := m.Get(f)
		if prev, dup := seen[col]; dup {
			return eris.Errorf("model: column %q assigned to both %s and %s", col, prev, f)
		}
		seen[col] = f
	}
	if columns == nil {
		return nil
	}
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	for _, f := range m.Fields() {
		if !present[m.Get(f)] {
			return eris.Errorf("model: %s mapped to missing column %q", f, m.Get(f))
		}
	}
	return nil
}

// CoveredBy reports whether every mapped column is present in columns.
func (m FieldMapping) CoveredBy(columns []string) bool {
	return m.Validate(columns) == nil
}

// FieldDiff is a single per-field change between two mappings.
type FieldDiff struct {
	Field CanonicalField `json:"field"`
	From  string         `json:"from"`
	To    string         `json:"to"`
}

// Diff lists the fields whose column differs between m and other.
func (m FieldMapping) Diff(other FieldMapping) []FieldDiff {
	var out []FieldDiff
	for _, f := range allFields {
		if m.Get(f) != other.Get(f) {
			out = append(out, FieldDiff{Field: f, From: m.Get(f), To: other.Get(f)})
		}
	}
	return out
}

// MarshalJSON encodes the mapping as a {field: column} object of mapped fields.
func (m FieldMapping) MarshalJSON() ([]byte, error) {
	out := make(map[CanonicalField]string, len(allFields))
	for _, f := range m.Fields() {
		out[f] = m.Get(f)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a {field: column} object. Unknown fields are rejected.
func (m *FieldMapping) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode field mapping")
	}
	*m = FieldMapping{}
	for k, col := range raw {
		f, err := ParseField(k)
		if err != nil {
			return err
		}
		if strings.TrimSpace(col) == "" {
			continue
		}
		if !m.Set(f, col) {
			return eris.Errorf("model: duplicate assignment of %q", col)
		}
	}
	return nil
}

// MappingAssessment scores how trustworthy a mapping is for one table.
type MappingAssessment struct {
	FieldConfidence      float64 `json:"field_confidence"`
	DataConfidence       float64 `json:"data_confidence"`
	CrossFieldConfidence float64 `json:"cross_field_confidence"`
	FinalConfidence      float64 `json:"final_confidence"`
	Sampled              int     `json:"sampled"`
}

// RegistryEntry is an approved mapping keyed by vendor and column signature.
type RegistryEntry struct {
	Vendor           string                     `json:"vendor"`
	Signature        string                     `json:"signature"`
	Columns          []string                   `json:"columns"`
	Mapping          FieldMapping               `json:"mapping"`
	FieldConfidence  float64                    `json:"field_confidence"`
	DataConfidence   float64                    `json:"data_confidence"`
	Source           MappingSource              `json:"source"`
	OracleReasoning  string                     `json:"oracle_reasoning,omitempty"`
	OracleConfidence map[CanonicalField]float64 `json:"oracle_confidence,omitempty"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

// PendingEntry is a mapping awaiting a human decision.
type PendingEntry struct {
	ID string `json:"id"`
	RegistryEntry
	CreatedAt time.Time `json:"created_at"`
}

// CorrectionEntry is an immutable record of a human correction.
type CorrectionEntry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Vendor    string        `json:"vendor"`
	Signature string        `json:"signature"`
	Columns   []string      `json:"columns"`
	Original  FieldMapping  `json:"original"`
	Corrected FieldMapping  `json:"corrected"`
	Source    MappingSource `json:"source"`
	Diffs     []FieldDiff   `json:"diffs"`
}

// SourceStats tallies how often mappings from one source were corrected.
type SourceStats struct {
	Total     int `json:"total"`
	Corrected int `json:"corrected"`
}

// SuccessRate returns (total - corrected) / total, or 1 when nothing was tracked.
func (s SourceStats) SuccessRate() float64 {
	if s.Total <= 0 {
		return 1
	}
	rate := float64(s.Total-s.Corrected) / float64(s.Total)
	if rate < 0 {
		return 0
	}
	return rate
}

// VendorHints are learned per-vendor preferences fed back into resolution.
type VendorHints struct {
	PreferredColumns map[CanonicalField]string   `json:"preferred_columns,omitempty"`
	LearnedKeywords  map[CanonicalField][]string `json:"learned_keywords,omitempty"`
}
