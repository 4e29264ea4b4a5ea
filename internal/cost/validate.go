package cost

import (
	"math"
	"sort"
	"strconv"

	"github.com/sells-group/baseline-cli/internal/model"
)

// Cost status annotations.
const (
	StatusFromFile = "FROM_FILE"
	StatusMissing  = "MISSING"

	// AnnotationContractRate holds the verified rate a record was checked against.
	AnnotationContractRate = "_contract_rate"
)

// Stats summarizes cost validation.
type Stats struct {
	Records            int      `json:"records"`
	WithCost           int      `json:"records_with_cost"`
	MissingCost        int      `json:"records_missing_cost"`
	MissingCostVendors []string `json:"missing_cost_vendors"`
	ContractChecked    int      `json:"contract_checked"`
	ContractVariance   float64  `json:"contract_variance"`
}

// Validate annotates each record's cost status in place. Records with
// billed minutes but no charge are marked MISSING and left at zero. When
// card has a rate for the record, the gap between the billed charge and
// minutes at the contract rate is added to ContractVariance.
func Validate(records []model.CanonicalRecord, card *RateCard) Stats {
	stats := Stats{Records: len(records)}
	vendors := make(map[string]bool)

	for i := range records {
		r := &records[i]
		if r.RawColumns == nil {
			r.RawColumns = map[string]string{}
		}
		switch {
		case r.TotalCharge > 0:
			stats.WithCost++
			r.RawColumns[model.AnnotationCostStatus] = StatusFromFile
		case r.MinutesBilled > 0:
			stats.MissingCost++
			vendors[r.Vendor] = true
			r.RawColumns[model.AnnotationCostStatus] = StatusMissing
		default:
			r.RawColumns[model.AnnotationCostStatus] = StatusFromFile
		}

		if r.TotalCharge <= 0 || r.MinutesBilled <= 0 {
			continue
		}
		if rate, ok := card.Lookup(r.Vendor, r.Modality, r.Language); ok {
			stats.ContractChecked++
			stats.ContractVariance += r.TotalCharge - r.MinutesBilled*rate
			r.RawColumns[AnnotationContractRate] = strconv.FormatFloat(rate, 'f', -1, 64)
		}
	}

	stats.ContractVariance = math.Round(stats.ContractVariance*100) / 100
	for v := range vendors {
		stats.MissingCostVendors = append(stats.MissingCostVendors, v)
	}
	sort.Strings(stats.MissingCostVendors)
	return stats
}
