// Package monitoring watches mapping quality and run health and raises
// alerts when they drift past configured limits.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/baseline-cli/internal/model"
	"github.com/sells-group/baseline-cli/internal/store"
)

// Config holds the alert thresholds.
type Config struct {
	MinSuccessRate    float64 `yaml:"min_success_rate" mapstructure:"min_success_rate"`
	MinSamples        int     `yaml:"min_samples" mapstructure:"min_samples"`
	MaxPending        int     `yaml:"max_pending" mapstructure:"max_pending"`
	LookbackHours     int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	MaxRunFailureRate float64 `yaml:"max_run_failure_rate" mapstructure:"max_run_failure_rate"`
	WebhookURL        string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		MinSuccessRate:    0.8,
		MinSamples:        5,
		MaxPending:        25,
		LookbackHours:     24 * 7,
		MaxRunFailureRate: 0.2,
	}
}

// Snapshot is a point-in-time view of resolver quality and run health.
type Snapshot struct {
	SuccessRates map[model.MappingSource]model.SourceStats `json:"success_rates"`
	PendingDepth int                                       `json:"pending_depth"`
	Corrections  int                                       `json:"corrections"`

	// Runs within the lookback window.
	RunsTotal      int                 `json:"runs_total"`
	RunsComplete   int                 `json:"runs_complete"`
	RunsFailed     int                 `json:"runs_failed"`
	RunFailRate    float64             `json:"run_fail_rate"`
	Reconciliation model.OverallStatus `json:"reconciliation,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RegistryReader is the part of the mapping registry the collector reads.
type RegistryReader interface {
	SuccessRates(ctx context.Context) (map[model.MappingSource]model.SourceStats, error)
	ListPending(ctx context.Context) ([]model.PendingEntry, error)
	CorrectionHistory(ctx context.Context, vendor string, limit int) ([]model.CorrectionEntry, error)
}

// RunLister lists stored runs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers snapshots from the registry and run history.
type Collector struct {
	registry RegistryReader
	runs     RunLister
	now      func() time.Time
}

// NewCollector creates a collector. runs may be nil.
func NewCollector(reg RegistryReader, runs RunLister) *Collector {
	return &Collector{registry: reg, runs: runs, now: func() time.Time { return time.Now().UTC() }}
}

// Collect gathers a snapshot. Corrections and runs are counted over the last
// lookbackHours.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now()
	snap := &Snapshot{LookbackHours: lookbackHours, CollectedAt: now}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	rates, err := c.registry.SuccessRates(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: success rates")
	}
	snap.SuccessRates = rates

	pending, err := c.registry.ListPending(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list pending")
	}
	snap.PendingDepth = len(pending)

	corrections, err := c.registry.CorrectionHistory(ctx, "", 0)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: correction history")
	}
	for _, e := range corrections {
		if !e.Timestamp.Before(cutoff) {
			snap.Corrections++
		}
	}

	if c.runs == nil {
		return snap, nil
	}
	runs, err := c.runs.ListRuns(ctx, store.RunFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}
	// Runs arrive newest first.
	for _, r := range runs {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
			if snap.Reconciliation == "" && r.Summary != nil {
				snap.Reconciliation = r.Summary.Reconciliation
			}
		case model.RunStatusFailed:
			snap.RunsFailed++
		}
	}
	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}
	return snap, nil
}
