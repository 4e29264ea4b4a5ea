package standardize

import (
	"regexp"
	"strings"

	"github.com/sells-group/baseline-cli/internal/model"
)

// Canonical modalities.
const (
	ModalityOPI         = "OPI"
	ModalityVRI         = "VRI"
	ModalityOnSite      = "OnSite"
	ModalityTranslation = "Translation"
)

type modalityRule struct {
	name string
	re   *regexp.Regexp
}

// Checked in order; the first match wins.
var modalityRules = []modalityRule{
	{ModalityVRI, regexp.MustCompile(`vri|video|visual|ipad|tablet|remote`)},
	{ModalityOnSite, regexp.MustCompile(`onsite|on-site|face-to-face|f2f|in-person|travel`)},
	{ModalityTranslation, regexp.MustCompile(`translation|document|written|localization|proofread`)},
	{ModalityOPI, regexp.MustCompile(`opi|phone|audio|telephonic|voice|interpretation services`)},
}

// ModalityStats counts records per canonical modality, including UNKNOWN.
type ModalityStats map[string]int

// CanonicalModality maps a vendor service description onto a canonical
// modality, or UNKNOWN when nothing matches.
func CanonicalModality(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	for _, r := range modalityRules {
		if r.re.MatchString(v) {
			return r.name
		}
	}
	return model.ModalityUnknown
}

// RefineModality rewrites each record's modality in place to its canonical
// name. Unrecognized values become UNKNOWN rather than a guessed default.
func RefineModality(records []model.CanonicalRecord) ModalityStats {
	stats := ModalityStats{
		ModalityOPI:           0,
		ModalityVRI:           0,
		ModalityOnSite:        0,
		ModalityTranslation:   0,
		model.ModalityUnknown: 0,
	}
	for i := range records {
		records[i].Modality = CanonicalModality(records[i].Modality)
		stats[records[i].Modality]++
	}
	return stats
}
