// Package mapping resolves which raw column feeds each canonical field and
// scores how trustworthy the result is.
package mapping

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/baseline-cli/internal/infer"
	"github.com/sells-group/baseline-cli/internal/model"
)

// Cache returns a previously approved mapping for a vendor and signature,
// or nil when none exists.
type Cache interface {
	Lookup(ctx context.Context, vendor, signature string) (*model.RegistryEntry, error)
}

// HintSource returns the learned hints for a vendor.
type HintSource interface {
	VendorHints(ctx context.Context, vendor string) (model.VendorHints, error)
}

// HeuristicValidation controls data-driven pruning of heuristic mappings.
type HeuristicValidation struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	MinTypeConfidence float64 `yaml:"min_type_confidence" mapstructure:"min_type_confidence"`
	MinDateParse      float64 `yaml:"min_date_parse" mapstructure:"min_date_parse"`
	MinNumericRate    float64 `yaml:"min_numeric_rate" mapstructure:"min_numeric_rate"`
	MinLanguageMatch  float64 `yaml:"min_language_match" mapstructure:"min_language_match"`
}

// OracleValidation controls the oracle review of heuristic mappings.
type OracleValidation struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	MinFieldConfidence   float64 `yaml:"min_field_confidence" mapstructure:"min_field_confidence"`
	RequireOverallOK     bool    `yaml:"require_overall_ok" mapstructure:"require_overall_ok"`
	MinOverallConfidence float64 `yaml:"min_overall_confidence" mapstructure:"min_overall_confidence"`
}

// Options tunes a Resolver.
type Options struct {
	SampleSize               int
	OracleMinFieldConfidence float64
	OracleMinFields          int
	Heuristic                HeuristicValidation
	OracleValidation         OracleValidation
	Keywords                 Keywords
	Examples                 []Example
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{
		SampleSize:               infer.DefaultSampleSize,
		OracleMinFieldConfidence: 0.7,
		OracleMinFields:          3,
		Heuristic: HeuristicValidation{
			Enabled:           true,
			MinTypeConfidence: 0.65,
			MinDateParse:      0.6,
			MinNumericRate:    0.6,
			MinLanguageMatch:  0.3,
		},
		OracleValidation: OracleValidation{
			Enabled:              true,
			MinFieldConfidence:   0.6,
			RequireOverallOK:     true,
			MinOverallConfidence: 0.65,
		},
		Keywords: DefaultKeywords(),
		Examples: DefaultExamples(),
	}
}

// Request describes one table to map. Columns defaults to Table.Columns and
// SampleRow to the table's first row.
type Request struct {
	Vendor    string
	Columns   []string
	SampleRow map[string]string
	Table     *model.RawTable
}

// StrategyTrace records what one heuristic strategy contributed.
type StrategyTrace struct {
	Strategy string                 `json:"strategy"`
	Added    []model.CanonicalField `json:"added,omitempty"`
}

// Pruned records a field removed after the heuristic chain.
type Pruned struct {
	Field  model.CanonicalField `json:"field"`
	Column string               `json:"column"`
	Reason string               `json:"reason"`
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Mapping          model.FieldMapping               `json:"mapping"`
	Source           model.MappingSource              `json:"source"`
	Signature        string                           `json:"signature"`
	OracleReasoning  string                           `json:"oracle_reasoning,omitempty"`
	OracleConfidence map[model.CanonicalField]float64 `json:"oracle_confidence,omitempty"`
	Trace            []StrategyTrace                  `json:"trace,omitempty"`
	Pruned           []Pruned                         `json:"pruned,omitempty"`
}

// Resolver produces field mappings. Cache, oracle and hints are optional.
type Resolver struct {
	cache  Cache
	oracle Oracle
	hints  HintSource
	engine *infer.Engine
	opts   Options
}

// NewResolver creates a Resolver. Any dependency may be nil.
func NewResolver(cache Cache, oracle Oracle, hints HintSource, opts Options) *Resolver {
	if opts.Keywords == nil {
		opts.Keywords = DefaultKeywords()
	}
	if opts.OracleMinFields <= 0 {
		opts.OracleMinFields = 3
	}
	return &Resolver{
		cache:  cache,
		oracle: oracle,
		hints:  hints,
		engine: infer.NewEngine(opts.SampleSize),
		opts:   opts,
	}
}

func (r *Resolver) oracleEnabled() bool {
	return r.oracle != nil && r.oracle.Enabled()
}

// Resolve maps req's columns: cache, then oracle proposal, then the
// heuristic chain with pruning and optional oracle review.
func (r *Resolver) Resolve(ctx context.Context, req Request) Resolution {
	columns := req.Columns
	if len(columns) == 0 && req.Table != nil {
		columns = req.Table.Columns
	}
	sample := req.SampleRow
	if sample == nil && req.Table != nil && len(req.Table.Rows) > 0 {
		sample = req.Table.Row(0)
	}
	log := zap.L().With(zap.String("vendor", req.Vendor))

	res := Resolution{Signature: Signature(columns)}

	if hit := r.fromCache(ctx, req.Vendor, res.Signature, columns); hit != nil {
		log.Debug("mapping: cache hit", zap.String("signature", res.Signature))
		res.Mapping = hit.Mapping
		res.Source = model.SourceCache
		res.OracleReasoning = hit.OracleReasoning
		res.OracleConfidence = hit.OracleConfidence
		return res
	}

	if r.oracleEnabled() {
		if m, conf, reasoning, ok := r.propose(ctx, req.Vendor, columns, sample); ok {
			log.Debug("mapping: oracle proposal accepted", zap.Int("fields", m.Len()))
			res.Mapping = m
			res.Source = model.SourceOracle
			res.OracleReasoning = reasoning
			res.OracleConfidence = conf
			return res
		}
	}

	var hints model.VendorHints
	if r.hints != nil && req.Vendor != "" {
		h, err := r.hints.VendorHints(ctx, req.Vendor)
		if err != nil {
			log.Warn("mapping: vendor hints unavailable", zap.Error(err))
		} else {
			hints = h
		}
	}

	strategies := DefaultStrategies(hints, r.opts.Keywords, r.engine, r.opts.Heuristic.MinTypeConfidence)
	in := newInput(columns, req.Table, sample)
	for _, s := range strategies {
		res.Trace = append(res.Trace, StrategyTrace{Strategy: s.Name(), Added: in.apply(s)})
	}
	res.Mapping = in.Taken
	res.Source = model.SourceHeuristic

	if r.opts.Heuristic.Enabled && req.Table != nil {
		// A pruned field is resolved again without the column it lost.
		// Every pass excludes at least one more column, so this ends.
		for {
			pruned := r.prune(req.Table, &res.Mapping)
			if len(pruned) == 0 {
				break
			}
			res.Pruned = append(res.Pruned, pruned...)
			for _, p := range pruned {
				in.exclude(p.Field, p.Column)
			}
			in.Taken = res.Mapping
			for _, s := range strategies {
				if added := in.apply(s); len(added) > 0 {
					res.Trace = append(res.Trace, StrategyTrace{Strategy: s.Name(), Added: added})
				}
			}
			res.Mapping = in.Taken
		}
	}

	if r.oracleEnabled() && r.opts.OracleValidation.Enabled && !res.Mapping.Empty() {
		r.review(ctx, req, &res)
	}

	log.Debug("mapping: heuristic resolution",
		zap.String("source", string(res.Source)),
		zap.Strings("fields", fieldNames(res.Mapping.Fields())),
		zap.Int("pruned", len(res.Pruned)),
	)
	return res
}

// apply runs s against the mapping built so far and merges its proposal.
func (in *Input) apply(s Strategy) []model.CanonicalField {
	return in.Taken.Merge(s.Propose(in))
}

func (r *Resolver) fromCache(ctx context.Context, vendor, sig string, columns []string) *model.RegistryEntry {
	if r.cache == nil {
		return nil
	}
	entry, err := r.cache.Lookup(ctx, vendor, sig)
	if err != nil {
		zap.L().Warn("mapping: registry lookup failed", zap.String("vendor", vendor), zap.Error(err))
		return nil
	}
	if entry == nil || entry.Mapping.Empty() || !entry.Mapping.CoveredBy(columns) {
		return nil
	}
	return entry
}

// propose asks the oracle for a mapping and keeps the fields that clear the
// confidence bar. ok is false when too few fields survive.
func (r *Resolver) propose(ctx context.Context, vendor string, columns []string, sample map[string]string) (model.FieldMapping, map[model.CanonicalField]float64, string, bool) {
	var m model.FieldMapping
	p, err := r.oracle.Propose(ctx, ProposeRequest{
		Vendor:    vendor,
		Columns:   columns,
		SampleRow: sample,
		Examples:  r.opts.Examples,
	})
	if err != nil {
		zap.L().Warn("mapping: oracle proposal failed, falling back to heuristics",
			zap.String("vendor", vendor), zap.Error(err))
		return m, nil, "", false
	}
	if p == nil {
		return m, nil, "", false
	}

	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	conf := make(map[model.CanonicalField]float64)
	for _, f := range model.AllFields() {
		fp, ok := p.Fields[f]
		if !ok || fp.Confidence < r.opts.OracleMinFieldConfidence || !present[fp.Column] {
			continue
		}
		if m.Set(f, fp.Column) {
			conf[f] = fp.Confidence
		}
	}
	if m.Len() < r.opts.OracleMinFields {
		zap.L().Debug("mapping: oracle proposal below field minimum",
			zap.String("vendor", vendor), zap.Int("accepted", m.Len()))
		return model.FieldMapping{}, nil, "", false
	}
	return m, conf, p.Reasoning, true
}

// prune drops fields whose sampled values contradict the field.
func (r *Resolver) prune(t *model.RawTable, m *model.FieldMapping) []Pruned {
	hv := r.opts.Heuristic
	var out []Pruned
	drop := func(f model.CanonicalField, reason string) {
		out = append(out, Pruned{Field: f, Column: m.Get(f), Reason: reason})
		m.Clear(f)
	}

	for _, f := range m.Fields() {
		vals := headValues(t.Column(m.Get(f)), r.engine.SampleSize)
		switch {
		case f == model.FieldDate:
			if infer.DateParseRate(vals) < hv.MinDateParse {
				drop(f, "date parse rate below minimum")
			}
		case f == model.FieldLanguage:
			if infer.LanguageMatchRate(vals) < hv.MinLanguageMatch && r.engine.Infer(vals).Type != infer.TypeLanguage {
				drop(f, "values do not look like language names")
			}
		case f.Numeric():
			if infer.NumericRate(vals) < hv.MinNumericRate {
				drop(f, "numeric rate below minimum")
			}
		}
	}
	return out
}

// review asks the oracle to judge the heuristic mapping and applies its
// confident rejections.
func (r *Resolver) review(ctx context.Context, req Request, res *Resolution) {
	ov := r.opts.OracleValidation
	samples := make(map[model.CanonicalField][]string)
	for _, f := range res.Mapping.Fields() {
		var vals []string
		if req.Table != nil {
			vals = infer.NonNull(req.Table.Column(res.Mapping.Get(f)), 5)
		} else if v, ok := req.SampleRow[res.Mapping.Get(f)]; ok {
			vals = []string{v}
		}
		samples[f] = vals
	}

	v, err := r.oracle.Validate(ctx, ValidateRequest{
		Vendor:       req.Vendor,
		Mapping:      res.Mapping,
		SampleValues: samples,
	})
	if err != nil {
		zap.L().Warn("mapping: oracle validation failed, keeping heuristic mapping",
			zap.String("vendor", req.Vendor), zap.Error(err))
		return
	}
	if v == nil {
		return
	}
	res.OracleReasoning = v.Reasoning

	if ov.RequireOverallOK && !v.OverallOK && v.OverallConfidence >= ov.MinOverallConfidence {
		for _, f := range res.Mapping.Fields() {
			res.Pruned = append(res.Pruned, Pruned{Field: f, Column: res.Mapping.Get(f), Reason: "oracle rejected mapping"})
		}
		res.Mapping = model.FieldMapping{}
		return
	}

	confirmed := false
	conf := make(map[model.CanonicalField]float64)
	for _, f := range res.Mapping.Fields() {
		fv, ok := v.Fields[f]
		if !ok {
			continue
		}
		conf[f] = fv.Confidence
		if !fv.Approve && fv.Confidence >= ov.MinFieldConfidence {
			res.Pruned = append(res.Pruned, Pruned{Field: f, Column: res.Mapping.Get(f), Reason: "oracle rejected field"})
			res.Mapping.Clear(f)
			continue
		}
		if fv.Approve {
			confirmed = true
		}
	}
	if confirmed {
		res.Source = model.SourceHeuristicOracle
		res.OracleConfidence = conf
	}
}

func headValues(vals []string, n int) []string {
	if n > 0 && len(vals) > n {
		return vals[:n]
	}
	return vals
}

func fieldNames(fs []model.CanonicalField) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = string(f)
	}
	return out
}
