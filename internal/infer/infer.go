// Package infer scores raw column values against the value distributions of
// the canonical fields. Every function is pure and deterministic.
package infer

import (
	"regexp"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/baseline-cli/internal/model"
)

// Type is an inferred semantic column type.
type Type string

const (
	TypeDate     Type = "date"
	TypeLanguage Type = "language"
	TypeMinutes  Type = "minutes"
	TypeCharge   Type = "charge"
	TypeRate     Type = "rate"
	TypeUnknown  Type = "unknown"
)

// scoreOrder is also the tie-break order.
var scoreOrder = []Type{TypeDate, TypeLanguage, TypeMinutes, TypeCharge, TypeRate}

// Field returns the canonical field for t, or "" for unknown.
func (t Type) Field() model.CanonicalField {
	if t == TypeUnknown || t == "" {
		return ""
	}
	return model.CanonicalField(t)
}

const (
	// DefaultSampleSize caps how many non-null values are scored.
	DefaultSampleSize = 100
	// MinConfidence is the score a type must reach to be reported.
	MinConfidence = 0.3
)

// Result is the inference outcome for one column.
type Result struct {
	Type       Type             `json:"type"`
	Confidence float64          `json:"confidence"`
	Scores     map[Type]float64 `json:"scores,omitempty"`
}

// Engine infers column types from sampled values.
type Engine struct {
	SampleSize int
}

// NewEngine returns an Engine sampling at most sampleSize values per column.
func NewEngine(sampleSize int) *Engine {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Engine{SampleSize: sampleSize}
}

// Infer scores values against every candidate type and returns the best one.
func (e *Engine) Infer(values []string) Result {
	sample := NonNull(values, e.sampleSize())
	if len(sample) == 0 {
		return Result{Type: TypeUnknown}
	}

	scores := map[Type]float64{
		TypeDate:     scoreDate(sample),
		TypeLanguage: scoreLanguage(sample),
		TypeMinutes:  scoreMinutes(sample),
		TypeCharge:   scoreCharge(sample),
		TypeRate:     scoreRate(sample),
	}

	best := TypeUnknown
	bestScore := 0.0
	for _, t := range scoreOrder {
		if scores[t] > bestScore {
			best, bestScore = t, scores[t]
		}
	}
	if bestScore < MinConfidence {
		return Result{Type: TypeUnknown, Confidence: bestScore, Scores: scores}
	}
	return Result{Type: best, Confidence: bestScore, Scores: scores}
}

// InferTable runs Infer on every column of t.
func (e *Engine) InferTable(t model.RawTable) map[string]Result {
	out := make(map[string]Result, len(t.Columns))
	for _, col := range t.Columns {
		out[col] = e.Infer(t.Column(col))
	}
	return out
}

func (e *Engine) sampleSize() int {
	if e == nil || e.SampleSize <= 0 {
		return DefaultSampleSize
	}
	return e.SampleSize
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}`),
	regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`),
	regexp.MustCompile(`^\d{2}/\d{2}/\d{4}\s+\d{2}:\d{2}`),
	regexp.MustCompile(`^\d{4}/\d{2}/\d{2}$`),
	regexp.MustCompile(`^\d{4}-\d{2}$`),
	regexp.MustCompile(`^\d{2}-[A-Za-z]{3}-\d{2,4}$`),
	regexp.MustCompile(`^[A-Za-z]{3,9}\s+\d{1,2},?\s+\d{4}$`),
	regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2,4}$`),
}

// MatchesDatePattern reports whether v looks like a date, either whole or by
// its first whitespace-separated token.
func MatchesDatePattern(v string) bool {
	s := strings.TrimSpace(v)
	first := s
	if i := strings.IndexByte(s, ' '); i > 0 {
		first = s[:i]
	}
	for _, re := range datePatterns {
		if re.MatchString(s) || re.MatchString(first) {
			return true
		}
	}
	return false
}

func scoreDate(sample []string) float64 {
	matches := 0
	for _, v := range sample {
		if MatchesDatePattern(v) {
			matches++
		}
	}
	return float64(matches) / float64(len(sample))
}

func scoreLanguage(sample []string) float64 {
	total := 0.0
	for _, v := range sample {
		total += LanguageMatch(v)
	}
	return capOne(total / float64(len(sample)))
}

// numericSample parses values after clean and returns the parsed numbers
// alongside the cleaned strings.
func numericSample(sample []string, clean func(string) string) ([]float64, []string) {
	var nums []float64
	cleaned := make([]string, len(sample))
	for i, v := range sample {
		c := strings.TrimSpace(clean(v))
		cleaned[i] = c
		if f, ok := parseFloat(c); ok {
			nums = append(nums, f)
		}
	}
	return nums, cleaned
}

func meanDecimals(cleaned []string) (float64, bool) {
	var places []float64
	for _, c := range cleaned {
		if n, ok := decimalPlaces(c); ok {
			places = append(places, float64(n))
		}
	}
	if len(places) == 0 {
		return 0, false
	}
	return stat.Mean(places, nil), true
}

func fractionIn(nums []float64, lo, hi float64, n int) float64 {
	in := 0
	for _, f := range nums {
		if f >= lo && f <= hi {
			in++
		}
	}
	return float64(in) / float64(n)
}

var minutesUnitRe = regexp.MustCompile(`(?i)\s*min(utes?)?\s*$`)

func scoreMinutes(sample []string) float64 {
	nums, cleaned := numericSample(sample, func(v string) string {
		return minutesUnitRe.ReplaceAllString(strings.ReplaceAll(v, ",", ""), "")
	})
	if len(nums) == 0 {
		return 0
	}
	score := fractionIn(nums, 0, 300, len(sample))
	mean := stat.Mean(nums, nil)
	switch {
	case mean >= 1 && mean <= 60:
		score = capOne(score + 0.2)
	case mean > 60 && mean <= 120:
		score = capOne(score + 0.1)
	}
	if dec, ok := meanDecimals(cleaned); ok && dec > 2 {
		score *= 0.7
	}
	return score
}

var (
	dollarPrefixRe = regexp.MustCompile(`^\s*\$`)
	currencyWordRe = regexp.MustCompile(`(?i)usd|eur|gbp`)
	currencyMarkRe = regexp.MustCompile(`[$,]`)
)

func scoreCharge(sample []string) float64 {
	marked := 0
	for _, v := range sample {
		if dollarPrefixRe.MatchString(v) {
			marked++
		}
		if currencyWordRe.MatchString(v) {
			marked++
		}
	}
	nums, cleaned := numericSample(sample, func(v string) string {
		return currencyMarkRe.ReplaceAllString(v, "")
	})
	if len(nums) == 0 {
		return 0
	}
	score := fractionIn(nums, 0, 10000, len(sample))
	if float64(marked)/float64(len(sample)) > 0.1 {
		score = capOne(score + 0.3)
	}
	if mean := stat.Mean(nums, nil); mean >= 0.1 && mean <= 500 {
		score = capOne(score + 0.1)
	}
	if dec, ok := meanDecimals(cleaned); ok && dec >= 1.5 && dec <= 2.5 {
		score = capOne(score + 0.1)
	}
	return score
}

func scoreRate(sample []string) float64 {
	nums, _ := numericSample(sample, func(v string) string {
		return currencyMarkRe.ReplaceAllString(v, "")
	})
	if len(nums) == 0 {
		return 0
	}
	score := fractionIn(nums, 0.05, 15, len(sample))
	mean, std := stat.MeanStdDev(nums, nil)
	if len(nums) > 5 && mean > 0 && std/mean < 0.5 {
		score = capOne(score + 0.3)
	}
	if mean >= 0.3 && mean <= 5.0 {
		score = capOne(score + 0.2)
	}
	return score
}

func capOne(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
