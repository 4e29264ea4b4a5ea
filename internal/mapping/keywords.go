package mapping

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/baseline-cli/internal/model"
)

// Keywords holds the normalized header aliases for each canonical field.
type Keywords map[model.CanonicalField][]string

var defaultKeywords = Keywords{
	model.FieldDate:     {"date", "call date", "invoice date", "service date", "job date", "start date", "year-month", "month", "period"},
	model.FieldLanguage: {"language", "lang", "source language", "target language"},
	model.FieldMinutes:  {"duration", "minutes", "min", "qty", "quantity", "billable time", "connect time (minutes:seconds)", "minuteswithtpd"},
	model.FieldCharge:   {"total charge", "amount", "total", "line total", "extended price", "chargeswithtpd", "charges", "charge", "cost", "total cost"},
	model.FieldRate:     {"rate", "unit price", "price"},
	model.FieldModality: {"service line", "service type", "modality", "product"},
}

// DefaultKeywords returns a copy of the built-in alias lists.
func DefaultKeywords() Keywords {
	return defaultKeywords.Merge(nil)
}

// Merge returns a new Keywords with other's aliases appended after k's,
// normalized and without duplicates.
func (k Keywords) Merge(other Keywords) Keywords {
	out := make(Keywords, len(defaultKeywords))
	for _, f := range model.AllFields() {
		out[f] = appendUnique(nil, k[f]...)
		out[f] = appendUnique(out[f], other[f]...)
	}
	return out
}

// LoadKeywords reads a YAML file of {field: [alias, ...]} and merges it over
// the built-in lists. An empty path returns the defaults.
func LoadKeywords(path string) (Keywords, error) {
	if path == "" {
		return DefaultKeywords(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "mapping: read keywords file")
	}

	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "mapping: parse keywords file")
	}

	extra := make(Keywords, len(raw))
	for name, aliases := range raw {
		f, err := model.ParseField(name)
		if err != nil {
			return nil, eris.Wrapf(err, "mapping: keywords file %s", path)
		}
		extra[f] = append(extra[f], aliases...)
	}
	return defaultKeywords.Merge(extra), nil
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		n := NormalizeHeader(v)
		if n == "" {
			continue
		}
		dup := false
		for _, d := range dst {
			if d == n {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, n)
		}
	}
	return dst
}
