package registry

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/baseline-cli/internal/mapping"
	"github.com/sells-group/baseline-cli/internal/model"
	"github.com/sells-group/baseline-cli/internal/store"
)

// CorrectionRequest is a human edit of a mapping.
type CorrectionRequest struct {
	Vendor    string
	Columns   []string
	Original  model.FieldMapping
	Corrected model.FieldMapping
	Source    model.MappingSource
}

// RecordCorrection learns from a human edit: every changed field becomes the
// vendor's preferred column and its normalized name a learned keyword, the
// correction is appended to the history, the original source is charged
// with a correction and the registry entry is overwritten.
func (r *Registry) RecordCorrection(ctx context.Context, req CorrectionRequest) (*model.CorrectionEntry, error) {
	if err := req.Corrected.Validate(req.Columns); err != nil {
		return nil, eris.Wrap(err, "registry: record correction")
	}
	diffs := req.Original.Diff(req.Corrected)
	if len(diffs) == 0 {
		return nil, ErrNoChanges
	}
	vendor := NormalizeVendor(req.Vendor)

	err := store.UpdateJSON(ctx, r.store, store.BucketVendorHints, vendor, func(h *model.VendorHints) error {
		applyDiffs(h, diffs)
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "registry: update vendor hints")
	}

	now := r.now()
	entry := model.CorrectionEntry{
		ID:        uuid.New().String(),
		Timestamp: now,
		Vendor:    req.Vendor,
		Signature: mapping.Signature(req.Columns),
		Columns:   req.Columns,
		Original:  req.Original,
		Corrected: req.Corrected,
		Source:    req.Source,
		Diffs:     diffs,
	}
	key := vendor + "|" + now.Format("20060102T150405.000000000") + "|" + entry.ID
	if err := store.PutJSON(ctx, r.store, store.BucketCorrections, key, entry); err != nil {
		return nil, eris.Wrap(err, "registry: append correction")
	}

	if err := r.tally(ctx, req.Source, true); err != nil {
		return nil, err
	}

	if err := r.Save(ctx, model.RegistryEntry{
		Vendor:          req.Vendor,
		Signature:       entry.Signature,
		Columns:         req.Columns,
		Mapping:         req.Corrected,
		FieldConfidence: mapping.FieldConfidence(req.Corrected),
		DataConfidence:  1,
		Source:          model.SourceManual,
	}); err != nil {
		return nil, err
	}

	zap.L().Info("registry: correction recorded",
		zap.String("vendor", req.Vendor),
		zap.String("source", string(req.Source)),
		zap.Int("changed_fields", len(diffs)),
	)
	return &entry, nil
}

func applyDiffs(h *model.VendorHints, diffs []model.FieldDiff) {
	if h.PreferredColumns == nil {
		h.PreferredColumns = make(map[model.CanonicalField]string)
	}
	if h.LearnedKeywords == nil {
		h.LearnedKeywords = make(map[model.CanonicalField][]string)
	}
	for _, d := range diffs {
		if d.To == "" {
			if h.PreferredColumns[d.Field] == d.From {
				delete(h.PreferredColumns, d.Field)
			}
			continue
		}
		h.PreferredColumns[d.Field] = d.To
		kw := mapping.NormalizeHeader(d.To)
		if !contains(h.LearnedKeywords[d.Field], kw) {
			h.LearnedKeywords[d.Field] = append(h.LearnedKeywords[d.Field], kw)
		}
	}
}

// TrackMappingSuccess credits source with a mapping that needed no correction.
func (r *Registry) TrackMappingSuccess(ctx context.Context, source model.MappingSource) error {
	return r.tally(ctx, source, false)
}

func (r *Registry) tally(ctx context.Context, source model.MappingSource, corrected bool) error {
	key := string(source)
	if key == "" {
		key = "unknown"
	}
	err := store.UpdateJSON(ctx, r.store, store.BucketSourceStats, key, func(s *model.SourceStats) error {
		s.Total++
		if corrected {
			s.Corrected++
		}
		return nil
	})
	return eris.Wrapf(err, "registry: tally source %s", key)
}

// SuccessRates returns the tallies per mapping source.
func (r *Registry) SuccessRates(ctx context.Context) (map[model.MappingSource]model.SourceStats, error) {
	docs, err := r.store.List(ctx, store.BucketSourceStats, "")
	if err != nil {
		return nil, eris.Wrap(err, "registry: list source stats")
	}
	out := make(map[model.MappingSource]model.SourceStats, len(docs))
	for _, d := range docs {
		var s model.SourceStats
		if err := decode(d, &s); err != nil {
			return nil, err
		}
		out[model.MappingSource(d.Key)] = s
	}
	return out, nil
}

// CorrectionHistory returns corrections newest first, optionally filtered by
// vendor. limit <= 0 returns all.
func (r *Registry) CorrectionHistory(ctx context.Context, vendor string, limit int) ([]model.CorrectionEntry, error) {
	prefix := ""
	if strings.TrimSpace(vendor) != "" {
		prefix = NormalizeVendor(vendor) + "|"
	}
	docs, err := r.store.List(ctx, store.BucketCorrections, prefix)
	if err != nil {
		return nil, eris.Wrap(err, "registry: list corrections")
	}
	out := make([]model.CorrectionEntry, 0, len(docs))
	for _, d := range docs {
		var c model.CorrectionEntry
		if err := decode(d, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sortByTime(out, func(c model.CorrectionEntry) time.Time { return c.Timestamp }, true)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// VendorHints returns the learned hints for vendor.
func (r *Registry) VendorHints(ctx context.Context, vendor string) (model.VendorHints, error) {
	var h model.VendorHints
	if _, err := store.GetJSON(ctx, r.store, store.BucketVendorHints, NormalizeVendor(vendor), &h); err != nil {
		return h, eris.Wrap(err, "registry: vendor hints")
	}
	return h, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
