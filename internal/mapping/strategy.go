package mapping

import (
	"strings"
	"unicode"

	"github.com/sells-group/baseline-cli/internal/infer"
	"github.com/sells-group/baseline-cli/internal/model"
)

// Strategy proposes a partial mapping. Strategies run in order; earlier
// strategies win every field and column they claim.
type Strategy interface {
	Name() string
	Propose(in *Input) model.FieldMapping
}

// Input is what a strategy sees: the table's columns, their normalized
// headers and the mapping built by the strategies before it.
type Input struct {
	Columns    []string
	Normalized []string
	Table      *model.RawTable
	SampleRow  map[string]string
	Taken      model.FieldMapping

	excluded map[model.CanonicalField]map[string]bool
}

func newInput(columns []string, table *model.RawTable, sample map[string]string) *Input {
	in := &Input{Columns: columns, Table: table, SampleRow: sample}
	in.Normalized = make([]string, len(columns))
	for i, c := range columns {
		in.Normalized[i] = NormalizeHeader(c)
	}
	return in
}

// exclude stops every strategy from proposing col for f again.
func (in *Input) exclude(f model.CanonicalField, col string) {
	if in.excluded == nil {
		in.excluded = make(map[model.CanonicalField]map[string]bool)
	}
	if in.excluded[f] == nil {
		in.excluded[f] = make(map[string]bool)
	}
	in.excluded[f][col] = true
}

// free reports whether column i can still be claimed by field f.
func (in *Input) free(f model.CanonicalField, i int, partial model.FieldMapping) bool {
	col := in.Columns[i]
	if in.excluded[f][col] {
		return false
	}
	return !in.Taken.Has(f) && !partial.Has(f) && !in.Taken.Uses(col) && !partial.Uses(col)
}

// values returns the column's values from the table, or the sample row value.
func (in *Input) values(col string) []string {
	if in.Table != nil && in.Table.ColumnIndex(col) >= 0 {
		return in.Table.Column(col)
	}
	if v, ok := in.SampleRow[col]; ok {
		return []string{v}
	}
	return nil
}

// VendorPreferred maps fields to the columns a human chose for this vendor.
type VendorPreferred struct {
	Hints model.VendorHints
}

func (VendorPreferred) Name() string { return "vendor_preferred" }

func (s VendorPreferred) Propose(in *Input) model.FieldMapping {
	var out model.FieldMapping
	for _, f := range model.AllFields() {
		want := s.Hints.PreferredColumns[f]
		if want == "" {
			continue
		}
		norm := NormalizeHeader(want)
		for i, col := range in.Columns {
			if (col == want || in.Normalized[i] == norm) && in.free(f, i, out) {
				out.Set(f, col)
				break
			}
		}
	}
	return out
}

// KeywordExact maps a field to the first column whose normalized header
// equals one of its aliases.
type KeywordExact struct {
	Label    string
	Keywords Keywords
}

func (s KeywordExact) Name() string { return s.Label }

func (s KeywordExact) Propose(in *Input) model.FieldMapping {
	var out model.FieldMapping
	for _, f := range model.AllFields() {
		for i, h := range in.Normalized {
			if in.free(f, i, out) && containsString(s.Keywords[f], h) {
				out.Set(f, in.Columns[i])
				break
			}
		}
	}
	return out
}

// KeywordSubstring maps a field to the first column whose normalized header
// contains one of its aliases. Aliases of shortWord characters or fewer must
// match a whole word, optionally plural, so "min" never matches "admin".
type KeywordSubstring struct {
	Label    string
	Keywords Keywords
}

func (s KeywordSubstring) Name() string { return s.Label }

func (s KeywordSubstring) Propose(in *Input) model.FieldMapping {
	var out model.FieldMapping
	for _, f := range model.AllFields() {
	columns:
		for i, h := range in.Normalized {
			if !in.free(f, i, out) {
				continue
			}
			for _, kw := range s.Keywords[f] {
				if headerContains(h, kw) {
					out.Set(f, in.Columns[i])
					break columns
				}
			}
		}
	}
	return out
}

// phraseRule maps field to the first column whose header contains every
// one of all.
type phraseRule struct {
	field model.CanonicalField
	all   []string
}

var ambiguousRules = []phraseRule{
	{field: model.FieldMinutes, all: []string{"connect", "time"}},
	{field: model.FieldMinutes, all: []string{"min billed"}},
	{field: model.FieldCharge, all: []string{"charges"}},
}

// AmbiguousPhrasing covers vendor phrasings the alias lists miss.
type AmbiguousPhrasing struct{}

func (AmbiguousPhrasing) Name() string { return "ambiguous_phrasing" }

func (AmbiguousPhrasing) Propose(in *Input) model.FieldMapping {
	var out model.FieldMapping
	for _, r := range ambiguousRules {
		for i, h := range in.Normalized {
			if in.free(r.field, i, out) && containsAll(h, r.all) {
				out.Set(r.field, in.Columns[i])
				break
			}
		}
	}
	return out
}

// TypeInference maps still-unmapped fields to the free column whose values
// infer as that field with the highest confidence at or above MinConfidence.
type TypeInference struct {
	Engine        *infer.Engine
	MinConfidence float64
}

func (TypeInference) Name() string { return "type_inference" }

func (s TypeInference) Propose(in *Input) model.FieldMapping {
	results := make([]infer.Result, len(in.Columns))
	for i, col := range in.Columns {
		if in.Taken.Uses(col) {
			continue
		}
		results[i] = s.Engine.Infer(in.values(col))
	}

	var out model.FieldMapping
	for _, f := range model.AllFields() {
		best, bestConf := -1, 0.0
		for i, res := range results {
			if res.Type.Field() != f || res.Confidence < s.MinConfidence || !in.free(f, i, out) {
				continue
			}
			if res.Confidence > bestConf {
				best, bestConf = i, res.Confidence
			}
		}
		if best >= 0 {
			out.Set(f, in.Columns[best])
		}
	}
	return out
}

// DefaultStrategies returns the heuristic chain in resolution order.
func DefaultStrategies(hints model.VendorHints, kw Keywords, engine *infer.Engine, minTypeConfidence float64) []Strategy {
	learned := Keywords(hints.LearnedKeywords).Merge(nil)
	return []Strategy{
		VendorPreferred{Hints: hints},
		KeywordExact{Label: "vendor_keyword", Keywords: learned},
		KeywordExact{Label: "keyword_exact", Keywords: kw},
		KeywordSubstring{Label: "keyword_substring", Keywords: kw},
		AmbiguousPhrasing{},
		TypeInference{Engine: engine, MinConfidence: minTypeConfidence},
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

const shortWord = 3

func headerContains(h, kw string) bool {
	if len(kw) > shortWord {
		return strings.Contains(h, kw)
	}
	for _, w := range strings.FieldsFunc(h, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if w == kw || w == kw+"s" {
			return true
		}
	}
	return false
}

func containsAll(h string, parts []string) bool {
	for _, p := range parts {
		if !strings.Contains(h, p) {
			return false
		}
	}
	return true
}
