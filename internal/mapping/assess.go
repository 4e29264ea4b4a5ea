package mapping

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/baseline-cli/internal/infer"
	"github.com/sells-group/baseline-cli/internal/model"
)

// crossFieldTolerance is the relative error allowed between charge and
// minutes x rate.
const crossFieldTolerance = 0.05

// FieldConfidence is the share of date, language, minutes and charge that m maps.
func FieldConfidence(m model.FieldMapping) float64 {
	hits := 0
	for _, f := range model.RequiredFields() {
		if m.Has(f) {
			hits++
		}
	}
	if m.Has(model.FieldCharge) {
		hits++
	}
	return float64(hits) / float64(len(model.RequiredFields())+1)
}

// Assess scores m against the first sampleSize rows of t.
func Assess(t model.RawTable, m model.FieldMapping, sampleSize int) model.MappingAssessment {
	if sampleSize <= 0 {
		sampleSize = infer.DefaultSampleSize
	}
	a := model.MappingAssessment{FieldConfidence: FieldConfidence(m)}

	n := len(t.Rows)
	if n > sampleSize {
		n = sampleSize
	}
	if n == 0 || m.Empty() {
		return a
	}
	a.Sampled = n

	values := func(f model.CanonicalField) []string {
		col := t.Column(m.Get(f))
		if len(col) > n {
			col = col[:n]
		}
		return col
	}

	var rates []float64
	for _, f := range m.Fields() {
		if t.ColumnIndex(m.Get(f)) < 0 {
			continue
		}
		if rate, ok := parseRate(f, values(f)); ok {
			rates = append(rates, rate)
		}
	}
	a.DataConfidence = mean(rates)

	var signals []float64
	if m.Has(model.FieldMinutes) && m.Has(model.FieldCharge) && m.Has(model.FieldRate) {
		if agree, ok := chargeAgreement(values(model.FieldMinutes), values(model.FieldCharge), values(model.FieldRate)); ok {
			signals = append(signals, agree)
		}
	}
	if m.Has(model.FieldDate) {
		if vals := nonBlank(values(model.FieldDate)); len(vals) > 0 {
			signals = append(signals, infer.DateParseRate(vals))
		}
	}
	if m.Has(model.FieldLanguage) {
		if vals := nonBlank(values(model.FieldLanguage)); len(vals) > 0 {
			signals = append(signals, math.Min(1, infer.LanguageMatchRate(vals)+0.5))
		}
	}
	if len(signals) > 0 {
		a.CrossFieldConfidence = mean(signals)
	} else {
		a.CrossFieldConfidence = a.DataConfidence
	}

	a.FinalConfidence = math.Min(a.FieldConfidence, 0.7*a.DataConfidence+0.3*a.CrossFieldConfidence)
	return a
}

// parseRate is the fraction of non-blank values that parse as f. ok is false
// when the column has no non-blank values.
func parseRate(f model.CanonicalField, vals []string) (float64, bool) {
	vals = nonBlank(vals)
	if len(vals) == 0 {
		return 0, false
	}
	hits := 0
	for _, v := range vals {
		switch {
		case f == model.FieldDate:
			if _, ok := infer.ParseDate(v); ok {
				hits++
			}
		case f.Numeric():
			if x, ok := infer.ParseAmount(v); ok && x >= 0 {
				hits++
			}
		default:
			if !infer.IsNull(v) {
				hits++
			}
		}
	}
	return float64(hits) / float64(len(vals)), true
}

// chargeAgreement is the share of rows where charge is within tolerance of
// minutes x rate, over rows where all three parse and the product is positive.
func chargeAgreement(minutes, charges, rates []string) (float64, bool) {
	checked, agree := 0, 0
	for i := range minutes {
		if i >= len(charges) || i >= len(rates) {
			break
		}
		mins, ok1 := infer.ParseAmount(minutes[i])
		charge, ok2 := infer.ParseAmount(charges[i])
		rate, ok3 := infer.ParseAmount(rates[i])
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		want := mins * rate
		if want <= 0 {
			continue
		}
		checked++
		if math.Abs(charge-want) <= crossFieldTolerance*want {
			agree++
		}
	}
	if checked == 0 {
		return 0, false
	}
	return float64(agree) / float64(checked), true
}

func nonBlank(vals []string) []string {
	var out []string
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
