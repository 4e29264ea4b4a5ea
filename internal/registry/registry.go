// Package registry keeps approved mappings, the pending approval queue and
// the correction history that feeds vendor hints back into resolution.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/baseline-cli/internal/mapping"
	"github.com/sells-group/baseline-cli/internal/model"
	"github.com/sells-group/baseline-cli/internal/store"
)

var (
	// ErrRejected means a mapping scored below both minimum confidences and
	// must not be used for production records.
	ErrRejected = errors.New("registry: mapping rejected")
	// ErrPendingNotFound means no pending entry matched the given ID.
	ErrPendingNotFound = errors.New("registry: pending entry not found")
	// ErrNoChanges means a correction left the mapping unchanged.
	ErrNoChanges = errors.New("registry: correction changes nothing")
)

// Config holds the approval thresholds.
type Config struct {
	AutoLearn                  bool    `yaml:"auto_learn" mapstructure:"auto_learn"`
	RequireManualApproval      bool    `yaml:"require_manual_approval" mapstructure:"require_manual_approval"`
	MinFieldConfidence         float64 `yaml:"min_field_confidence" mapstructure:"min_field_confidence"`
	MinDataConfidence          float64 `yaml:"min_data_confidence" mapstructure:"min_data_confidence"`
	AutoApproveFieldConfidence float64 `yaml:"auto_approve_field_confidence" mapstructure:"auto_approve_field_confidence"`
	AutoApproveDataConfidence  float64 `yaml:"auto_approve_data_confidence" mapstructure:"auto_approve_data_confidence"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		AutoLearn:                  true,
		MinFieldConfidence:         0.75,
		MinDataConfidence:          0.70,
		AutoApproveFieldConfidence: 0.90,
		AutoApproveDataConfidence:  0.85,
	}
}

// Registry persists mapping state in a store.Store. All read-modify-write
// goes through store.Update.
type Registry struct {
	store store.Store
	cfg   Config
	now   func() time.Time
}

// New creates a Registry over s.
func New(s store.Store, cfg Config) *Registry {
	return &Registry{store: s, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Config returns the registry's thresholds.
func (r *Registry) Config() Config {
	return r.cfg
}

// NormalizeVendor is the vendor part of every key.
func NormalizeVendor(vendor string) string {
	v := strings.ToLower(strings.TrimSpace(vendor))
	if v == "" {
		return "unknown"
	}
	return v
}

// Key is the registry key for a vendor and column signature.
func Key(vendor, signature string) string {
	return NormalizeVendor(vendor) + "|" + signature
}

// Lookup returns the approved entry for vendor and signature, or nil.
func (r *Registry) Lookup(ctx context.Context, vendor, signature string) (*model.RegistryEntry, error) {
	var e model.RegistryEntry
	ok, err := store.GetJSON(ctx, r.store, store.BucketRegistry, Key(vendor, signature), &e)
	if err != nil {
		return nil, eris.Wrap(err, "registry: lookup")
	}
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// Save validates e and overwrites the entry for its vendor and signature.
func (r *Registry) Save(ctx context.Context, e model.RegistryEntry) error {
	if err := e.Mapping.Validate(e.Columns); err != nil {
		return eris.Wrap(err, "registry: save")
	}
	if e.Signature == "" {
		e.Signature = mapping.Signature(e.Columns)
	}
	e.UpdatedAt = r.now()
	if err := store.PutJSON(ctx, r.store, store.BucketRegistry, Key(e.Vendor, e.Signature), e); err != nil {
		return eris.Wrap(err, "registry: save")
	}
	return nil
}

// Entries returns every approved entry ordered by key.
func (r *Registry) Entries(ctx context.Context) ([]model.RegistryEntry, error) {
	docs, err := r.store.List(ctx, store.BucketRegistry, "")
	if err != nil {
		return nil, eris.Wrap(err, "registry: list entries")
	}
	out := make([]model.RegistryEntry, 0, len(docs))
	for _, d := range docs {
		var e model.RegistryEntry
		if err := decode(d, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Decision is the outcome of Confirm.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionPending  Decision = "pending"
	DecisionRejected Decision = "rejected"
)

// ConfirmRequest carries a resolved mapping and its assessment.
type ConfirmRequest struct {
	Vendor           string
	Columns          []string
	Mapping          model.FieldMapping
	FieldConfidence  float64
	DataConfidence   float64
	Source           model.MappingSource
	OracleReasoning  string
	OracleConfidence map[model.CanonicalField]float64
}

// ConfirmResult reports what Confirm did.
type ConfirmResult struct {
	Decision  Decision
	PendingID string
	Entry     model.RegistryEntry
}

// Confirm decides whether a mapping may be used. Mappings below both minimum
// confidences are rejected with ErrRejected. Mappings missing date or
// language are always queued. In manual-approval mode only
// mappings above the auto-approve bar pass; the rest are queued. Approved
// mappings are persisted when auto-learning is on.
func (r *Registry) Confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	if err := req.Mapping.Validate(req.Columns); err != nil {
		return nil, eris.Wrap(err, "registry: confirm")
	}

	entry := model.RegistryEntry{
		Vendor:           req.Vendor,
		Signature:        mapping.Signature(req.Columns),
		Columns:          req.Columns,
		Mapping:          req.Mapping,
		FieldConfidence:  req.FieldConfidence,
		DataConfidence:   req.DataConfidence,
		Source:           req.Source,
		OracleReasoning:  req.OracleReasoning,
		OracleConfidence: req.OracleConfidence,
	}
	log := zap.L().With(
		zap.String("vendor", req.Vendor),
		zap.String("signature", entry.Signature),
		zap.Float64("field_confidence", req.FieldConfidence),
		zap.Float64("data_confidence", req.DataConfidence),
	)

	if req.FieldConfidence < r.cfg.MinFieldConfidence && req.DataConfidence < r.cfg.MinDataConfidence {
		log.Info("registry: mapping rejected")
		return &ConfirmResult{Decision: DecisionRejected, Entry: entry}, ErrRejected
	}

	if req.Source == model.SourceCache {
		return &ConfirmResult{Decision: DecisionApproved, Entry: entry}, nil
	}

	// A mapping without the record fields yields no records, so it is never
	// learned without a human looking at it.
	if missing := req.Mapping.Missing(model.RecordFields()...); len(missing) > 0 {
		id, err := r.enqueue(ctx, entry)
		if err != nil {
			return nil, err
		}
		log.Info("registry: mapping lacks record fields, queued for approval",
			zap.String("pending_id", id), zap.Any("missing", missing))
		return &ConfirmResult{Decision: DecisionPending, PendingID: id, Entry: entry}, nil
	}

	if r.cfg.RequireManualApproval && !r.clearsAutoApprove(req.FieldConfidence, req.DataConfidence) {
		id, err := r.enqueue(ctx, entry)
		if err != nil {
			return nil, err
		}
		log.Info("registry: mapping queued for approval", zap.String("pending_id", id))
		return &ConfirmResult{Decision: DecisionPending, PendingID: id, Entry: entry}, nil
	}

	if r.cfg.AutoLearn {
		if err := r.Save(ctx, entry); err != nil {
			return nil, err
		}
		if err := r.TrackMappingSuccess(ctx, req.Source); err != nil {
			log.Warn("registry: track success failed", zap.Error(err))
		}
	}
	log.Debug("registry: mapping approved", zap.String("source", string(req.Source)))
	return &ConfirmResult{Decision: DecisionApproved, Entry: entry}, nil
}

func (r *Registry) clearsAutoApprove(field, data float64) bool {
	return field >= r.cfg.AutoApproveFieldConfidence && data >= r.cfg.AutoApproveDataConfidence
}

func decode(d store.Document, out any) error {
	if err := json.Unmarshal(d.Value, out); err != nil {
		return eris.Wrapf(err, "registry: decode %s", d.Key)
	}
	return nil
}

func sortByTime[T any](items []T, at func(T) time.Time, newestFirst bool) {
	sort.SliceStable(items, func(i, j int) bool {
		if newestFirst {
			return at(items[i]).After(at(items[j]))
		}
		return at(items[i]).Before(at(items[j]))
	})
}
