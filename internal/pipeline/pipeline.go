// Package pipeline runs a batch of vendor files through mapping,
// standardization, quality checks and reconciliation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/baseline-cli/internal/cost"
	"github.com/sells-group/baseline-cli/internal/ingest"
	"github.com/sells-group/baseline-cli/internal/mapping"
	"github.com/sells-group/baseline-cli/internal/model"
	"github.com/sells-group/baseline-cli/internal/qa"
	"github.com/sells-group/baseline-cli/internal/reconcile"
	"github.com/sells-group/baseline-cli/internal/registry"
	"github.com/sells-group/baseline-cli/internal/standardize"
	"github.com/sells-group/baseline-cli/internal/store"
)

// Config controls a batch run.
type Config struct {
	MaxConcurrentFiles int              `yaml:"max_concurrent_files" mapstructure:"max_concurrent_files"`
	MinFinalConfidence float64          `yaml:"min_final_confidence" mapstructure:"min_final_confidence"`
	SampleSize         int              `yaml:"sample_size" mapstructure:"sample_size"`
	Ingest             ingest.Options   `yaml:"ingest" mapstructure:"ingest"`
	QA                 qa.Config        `yaml:"qa" mapstructure:"qa"`
	Reconcile          reconcile.Config `yaml:"reconcile" mapstructure:"reconcile"`
}

// DefaultConfig returns the stock batch settings.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentFiles: 4,
		MinFinalConfidence: 0.60,
		SampleSize:         100,
		Ingest:             ingest.DefaultOptions(),
		QA:                 qa.DefaultConfig(),
		Reconcile:          reconcile.DefaultConfig(),
	}
}

// LedgerSink receives the clean ledger of a finished run.
type LedgerSink interface {
	WriteLedger(ctx context.Context, runID string, records []model.CanonicalRecord, recon []model.ReconciliationVendorResult) error
}

// Pipeline orchestrates a batch run.
type Pipeline struct {
	cfg      Config
	store    store.Store
	resolver *mapping.Resolver
	registry *registry.Registry
	rateCard *cost.RateCard
	sink     LedgerSink
}

// New creates a Pipeline. rateCard may be nil.
func New(cfg Config, st store.Store, resolver *mapping.Resolver, reg *registry.Registry, rateCard *cost.RateCard) *Pipeline {
	if cfg.MaxConcurrentFiles <= 0 {
		cfg.MaxConcurrentFiles = 1
	}
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		resolver: resolver,
		registry: reg,
		rateCard: rateCard,
	}
}

// WithSink sets where the clean ledger is written after each run.
func (p *Pipeline) WithSink(s LedgerSink) *Pipeline {
	p.sink = s
	return p
}

// Run processes files and returns the run result. Files that cannot be read
// are reported on their FileResult and do not stop the batch. An error is
// returned only when the run itself cannot be recorded or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, files []string) (*Result, error) {
	log := zap.L().With(zap.Int("files", len(files)))
	log.Info("pipeline: starting run")

	run, err := p.store.CreateRun(ctx, files)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log = log.With(zap.String("run_id", run.ID))

	result := &Result{RunID: run.ID, StartedAt: time.Now()}
	reconciler := reconcile.New(p.cfg.Reconcile)

	// Phase 1: per-file mapping and standardization.
	fileResults := make([]FileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrentFiles)
	for i, path := range files {
		g.Go(func() error {
			fileResults[i] = p.processFile(gctx, path, reconciler)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		p.fail(run.ID, err)
		return nil, eris.Wrap(err, "pipeline: run cancelled")
	}
	result.Files = fileResults
	trackPhase(log, "standardize", result.StartedAt)

	// Phase 2: batch checks. QA needs the whole batch for its rate statistics.
	start := time.Now()
	var records []model.CanonicalRecord
	for i := range fileResults {
		records = append(records, fileResults[i].records...)
		result.Standardize.Add(fileResults[i].Standardize)
	}
	result.Modality = standardize.RefineModality(records)
	result.Costs = cost.Validate(records, p.rateCard)
	result.Records, result.QA = qa.New(p.cfg.QA).Process(records)
	trackPhase(log, "qa", start)

	start = time.Now()
	result.Reconciliation = reconciler.Run(result.Records)
	trackPhase(log, "reconcile", start)

	if p.sink != nil {
		if err := p.sink.WriteLedger(ctx, run.ID, result.Records, result.VendorResults()); err != nil {
			p.fail(run.ID, err)
			return nil, eris.Wrap(err, "pipeline: write ledger")
		}
	}

	result.FinishedAt = time.Now()
	summary := result.Summary()
	if err := p.store.CompleteRun(ctx, run.ID, model.RunStatusComplete, &summary); err != nil {
		log.Warn("pipeline: failed to complete run", zap.Error(err))
	}

	log.Info("pipeline: run complete",
		zap.Int("records_in", summary.RecordsIn),
		zap.Int("records_out", summary.RecordsOut),
		zap.Int("sheets_mapped", summary.SheetsMapped),
		zap.Int("files_failed", summary.FilesFailed),
		zap.String("reconciliation", string(summary.Reconciliation)),
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
	)
	return result, nil
}

func (p *Pipeline) fail(runID string, cause error) {
	summary := &model.RunSummary{Error: cause.Error()}
	if err := p.store.CompleteRun(context.Background(), runID, model.RunStatusFailed, summary); err != nil {
		zap.L().Warn("pipeline: failed to record run failure", zap.String("run_id", runID), zap.Error(err))
	}
}

func trackPhase(log *zap.Logger, name string, start time.Time) {
	log.Info("pipeline: phase complete",
		zap.String("phase", name),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}

func (p *Pipeline) processFile(ctx context.Context, path string, reconciler *reconcile.Engine) FileResult {
	fr := FileResult{Path: path, Vendor: ingest.VendorFromFilename(path)}
	log := zap.L().With(zap.String("file", filepath.Base(path)), zap.String("vendor", fr.Vendor))

	f, err := ingest.Load(path, p.cfg.Ingest)
	if err != nil {
		fr.err = err
		fr.Error = err.Error()
		log.Error("pipeline: file unreadable", zap.Error(err))
		return fr
	}
	fr.Diagnostics = f.Diagnostics
	fr.InvoiceFound = reconciler.ExtractTotals(f.Sheets, f.Vendor)

	for _, t := range f.Tables {
		if ctx.Err() != nil {
			break
		}
		audit, recs, stats := p.processTable(ctx, f, t)
		fr.Sheets = append(fr.Sheets, audit)
		fr.records = append(fr.records, recs...)
		fr.Standardize.Add(stats)
	}

	log.Debug("pipeline: file processed",
		zap.Int("tables", len(f.Tables)),
		zap.Int("records", len(fr.records)),
	)
	return fr
}

func (p *Pipeline) processTable(ctx context.Context, f *ingest.File, t ingest.Table) (SheetAudit, []model.CanonicalRecord, standardize.Stats) {
	res := p.resolver.Resolve(ctx, mapping.Request{Vendor: f.Vendor, Table: &t.RawTable})
	a := mapping.Assess(t.RawTable, res.Mapping, p.cfg.SampleSize)

	audit := SheetAudit{
		Sheet:           t.Sheet,
		HeaderRow:       t.HeaderRow,
		Rows:            len(t.Rows),
		Source:          res.Source,
		Signature:       res.Signature,
		Mapping:         res.Mapping,
		Assessment:      a,
		OracleReasoning: res.OracleReasoning,
	}
	log := zap.L().With(
		zap.String("vendor", f.Vendor),
		zap.String("sheet", t.Sheet),
		zap.String("source", string(res.Source)),
		zap.Float64("final_confidence", a.FinalConfidence),
	)

	if a.FinalConfidence < p.cfg.MinFinalConfidence {
		audit.Status = SheetSkipped
		audit.Reason = fmt.Sprintf("low mapping confidence (%.0f%%)", a.FinalConfidence*100)
		log.Info("pipeline: sheet skipped")
		return audit, nil, standardize.Stats{}
	}

	confirmed, err := p.registry.Confirm(ctx, registry.ConfirmRequest{
		Vendor:           f.Vendor,
		Columns:          t.Columns,
		Mapping:          res.Mapping,
		FieldConfidence:  a.FieldConfidence,
		DataConfidence:   a.DataConfidence,
		Source:           res.Source,
		OracleReasoning:  res.OracleReasoning,
		OracleConfidence: res.OracleConfidence,
	})
	switch {
	case errors.Is(err, registry.ErrRejected):
		audit.Status = SheetRejected
		audit.Reason = "mapping below minimum confidence"
		return audit, nil, standardize.Stats{}
	case err != nil:
		audit.Status = SheetFailed
		audit.Reason = err.Error()
		log.Error("pipeline: confirm mapping failed", zap.Error(err))
		return audit, nil, standardize.Stats{}
	case confirmed.Decision == registry.DecisionPending:
		audit.Status = SheetPending
		audit.PendingID = confirmed.PendingID
		audit.Reason = "awaiting approval"
		return audit, nil, standardize.Stats{}
	}

	recs, stats := standardize.Standardize(t.RawTable, res.Mapping, filepath.Base(f.Path), f.Vendor)
	for i := range recs {
		recs[i].Sheet = t.Sheet
	}
	audit.Status = SheetMapped
	audit.Records = stats.Records
	audit.Dropped = stats.Dropped
	log.Info("pipeline: sheet mapped", zap.Int("records", stats.Records), zap.Int("dropped", stats.Dropped))
	return audit, recs, stats
}
