package mapping

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// NormalizeHeader canonicalizes a raw column header for keyword matching:
// NFKC, case folded, newlines and runs of whitespace collapsed to one space,
// periods removed.
func NormalizeHeader(h string) string {
	s := norm.NFKC.String(h)
	s = folder.String(s)
	s = strings.ReplaceAll(s, ".", "")
	return strings.Join(strings.Fields(s), " ")
}

// Signature is an order-independent hash of a column set. Names are trimmed,
// lower-cased and de-duplicated before hashing.
func Signature(columns []string) string {
	seen := make(map[string]bool, len(columns))
	names := make([]string, 0, len(columns))
	for _, c := range columns {
		n := strings.ToLower(strings.TrimSpace(c))
		if seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	sort.Strings(names)

	sum := sha256.Sum256([]byte(strings.Join(names, "\x1f")))
	return hex.EncodeToString(sum[:16])
}
