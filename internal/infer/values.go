package infer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var nullTokens = map[string]bool{
	"":     true,
	"nan":  true,
	"nat":  true,
	"none": true,
	"null": true,
	"n/a":  true,
}

// IsNull reports whether v is blank or one of the spreadsheet null tokens.
func IsNull(v string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(v))]
}

// NonNull returns the non-null values of vals, trimmed, capped at limit
// (limit <= 0 means no cap).
func NonNull(vals []string, limit int) []string {
	var out []string
	for _, v := range vals {
		if IsNull(v) {
			continue
		}
		out = append(out, strings.TrimSpace(v))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"2006/1/2",
	"2-Jan-06",
	"2-Jan-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"1/2/06",
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
}

var (
	yearMonthRe = regexp.MustCompile(`^\d{4}-\d{2}$`)
	excelEpoch  = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
)

// ParseDate parses the date formats vendors use. A bare YYYY-MM resolves to
// the first of the month and Excel serial day numbers are accepted. Any time
// of day is discarded.
func ParseDate(v string) (time.Time, bool) {
	s := strings.TrimSpace(v)
	if IsNull(s) {
		return time.Time{}, false
	}
	if t, ok := ParseDateTime(s); ok {
		return truncateDay(t), true
	}
	candidates := []string{s}
	if i := strings.IndexAny(s, " T"); i > 0 && !strings.ContainsAny(s[:i], ",") {
		candidates = append(candidates, s[:i])
	}
	for _, c := range candidates {
		if yearMonthRe.MatchString(c) {
			if t, err := time.Parse("2006-01", c); err == nil {
				return t, true
			}
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, c); err == nil {
				return t, true
			}
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 20000 && f <= 80000 {
		return excelEpoch.AddDate(0, 0, int(math.Floor(f))), true
	}
	return time.Time{}, false
}

// ParseDateTime parses values that carry a time of day.
func ParseDateTime(v string) (time.Time, bool) {
	s := strings.TrimSpace(v)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var (
	unitSuffixRe   = regexp.MustCompile(`(?i)\s*(minutes|minute|mins|min)\.?\s*$`)
	currencyCodeRe = regexp.MustCompile(`(?i)\b(usd|eur|gbp)\b`)
)

// ParseAmount parses a duration or currency cell. It strips currency marks,
// thousands separators and a trailing minute unit, and converts MM:SS and
// HH:MM:SS notation into fractional minutes.
func ParseAmount(v string) (float64, bool) {
	s := strings.TrimSpace(v)
	if IsNull(s) {
		return 0, false
	}
	s = currencyCodeRe.ReplaceAllString(s, "")
	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(s)
	s = unitSuffixRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + strings.TrimSpace(s[1:len(s)-1])
	}
	if strings.Contains(s, ":") {
		return parseClock(s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseClock(s string) (float64, bool) {
	parts := strings.Split(s, ":")
	nums := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, false
		}
		nums[i] = f
	}
	switch len(nums) {
	case 2:
		return nums[0] + nums[1]/60, true
	case 3:
		return nums[0]*60 + nums[1] + nums[2]/60, true
	}
	return 0, false
}

// decimalPlaces returns the digit count after the last '.', and whether the
// value has a fractional part at all.
func decimalPlaces(s string) (int, bool) {
	i := strings.LastIndex(s, ".")
	if i < 0 || i == len(s)-1 {
		return 0, false
	}
	for _, r := range s[i+1:] {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	return len(s) - i - 1, true
}
