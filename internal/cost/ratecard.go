// Package cost checks billed charges. It never invents a charge: records
// without one are annotated for review, and contract rates are only used to
// report how far a billed rate strays from what was agreed.
package cost

import (
	"os"
	"sort"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// anyValue in a rate card CSV matches every vendor, modality or language.
const anyValue = "ANY"

// ContractRate is a verified per-minute rate from a vendor contract. Empty
// Modality or Language match anything.
type ContractRate struct {
	Vendor    string  `yaml:"vendor" mapstructure:"vendor" csv:"Vendor"`
	Modality  string  `yaml:"modality" mapstructure:"modality" csv:"Modality"`
	Language  string  `yaml:"language" mapstructure:"language" csv:"Language"`
	PerMinute float64 `yaml:"per_minute" mapstructure:"per_minute" csv:"Rate_Per_Minute"`
}

type rateKey struct {
	vendor, modality, language string
}

// RateCard looks up verified contract rates.
type RateCard struct {
	rates map[rateKey]float64
}

// NewRateCard builds a card from rates. Later duplicates win.
func NewRateCard(rates []ContractRate) *RateCard {
	c := &RateCard{rates: make(map[rateKey]float64, len(rates))}
	for _, r := range rates {
		c.Add(r)
	}
	return c
}

func key(vendor, modality, language string) rateKey {
	norm := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == strings.ToLower(anyValue) {
			return ""
		}
		return s
	}
	return rateKey{norm(vendor), norm(modality), norm(language)}
}

// Add registers a verified rate. Non-positive rates are ignored.
func (c *RateCard) Add(r ContractRate) {
	if r.PerMinute <= 0 {
		return
	}
	c.rates[key(r.Vendor, r.Modality, r.Language)] = r.PerMinute
}

// Len returns the number of rates on the card.
func (c *RateCard) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rates)
}

// Lookup finds the rate for vendor, modality and language, falling back to
// the vendor and modality with any language. There is no default rate.
func (c *RateCard) Lookup(vendor, modality, language string) (float64, bool) {
	if c.Len() == 0 {
		return 0, false
	}
	if r, ok := c.rates[key(vendor, modality, language)]; ok {
		return r, true
	}
	r, ok := c.rates[key(vendor, modality, "")]
	return r, ok
}

// Rates returns the card sorted by vendor, modality and language.
func (c *RateCard) Rates() []ContractRate {
	if c == nil {
		return nil
	}
	out := make([]ContractRate, 0, len(c.rates))
	for k, v := range c.rates {
		out = append(out, ContractRate{
			Vendor:    orAny(k.vendor),
			Modality:  orAny(k.modality),
			Language:  orAny(k.language),
			PerMinute: v,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Vendor != b.Vendor {
			return a.Vendor < b.Vendor
		}
		if a.Modality != b.Modality {
			return a.Modality < b.Modality
		}
		return a.Language < b.Language
	})
	return out
}

func orAny(s string) string {
	if s == "" {
		return anyValue
	}
	return s
}

// LoadRateCard reads a CSV with Vendor, Modality, Language and
// Rate_Per_Minute columns. ANY is a wildcard.
func LoadRateCard(path string) (*RateCard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "cost: read rate card %s", path)
	}
	var rates []ContractRate
	if err := csvutil.Unmarshal(data, &rates); err != nil {
		return nil, eris.Wrapf(err, "cost: parse rate card %s", path)
	}
	return NewRateCard(rates), nil
}

// WriteRateCard writes the card as CSV.
func WriteRateCard(path string, c *RateCard) error {
	data, err := csvutil.Marshal(c.Rates())
	if err != nil {
		return eris.Wrap(err, "cost: encode rate card")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "cost: write rate card %s", path)
	}
	return nil
}
