package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// CanonicalField is one of the fixed semantic slots every vendor table is mapped into.
type CanonicalField string

const (
	FieldDate     CanonicalField = "date"
	FieldLanguage CanonicalField = "language"
	FieldMinutes  CanonicalField = "minutes"
	FieldCharge   CanonicalField = "charge"
	FieldRate     CanonicalField = "rate"
	FieldModality CanonicalField = "modality"
)

var allFields = []CanonicalField{
	FieldDate,
	FieldLanguage,
	FieldMinutes,
	FieldCharge,
	FieldRate,
	FieldModality,
}

// AllFields returns the canonical fields in their canonical order.
func AllFields() []CanonicalField {
	out := make([]CanonicalField, len(allFields))
	copy(out, allFields)
	return out
}

// RequiredFields are the fields counted by field confidence. Charge counts as
// the fourth slot when present.
func RequiredFields() []CanonicalField {
	return []CanonicalField{FieldDate, FieldLanguage, FieldMinutes}
}

// RecordFields are the fields a row needs before it can become a record.
func RecordFields() []CanonicalField {
	return []CanonicalField{FieldDate, FieldLanguage}
}

// Valid reports whether f is one of the canonical fields.
func (f CanonicalField) Valid() bool {
	for _, c := range allFields {
		if c == f {
			return true
		}
	}
	return false
}

// Numeric reports whether values of f are parsed as numbers.
func (f CanonicalField) Numeric() bool {
	return f == FieldMinutes || f == FieldCharge || f == FieldRate
}

// ParseField resolves a field name, accepting "cost" as an alias for charge.
func ParseField(s string) (CanonicalField, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "cost" {
		return FieldCharge, nil
	}
	f := CanonicalField(name)
	if !f.Valid() {
		return "", eris.Errorf("model: unknown canonical field %q", s)
	}
	return f, nil
}
