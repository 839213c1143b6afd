// Package pipeline runs the extractors, fuses their candidates and backfills
// gaps for one document at a time.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/kpi-cli/internal/document"
	"github.com/sells-group/kpi-cli/internal/extract"
	"github.com/sells-group/kpi-cli/internal/fusion"
	"github.com/sells-group/kpi-cli/internal/metrics"
	"github.com/sells-group/kpi-cli/internal/model"
	"github.com/sells-group/kpi-cli/internal/store"
)

// Backfiller proposes candidates for KPIs the deterministic extractors missed.
type Backfiller interface {
	Backfill(ctx context.Context, text string, kpis *model.Schema) []model.Candidate
}

// Pipeline is read-only after construction and may run documents concurrently.
type Pipeline struct {
	schema     *model.Schema
	extractors []extract.Extractor
	confidence fusion.ConfidenceModel
	backfiller Backfiller
	store      store.Store
	metrics    *metrics.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithExtractors replaces the default deterministic extractors.
func WithExtractors(ex ...extract.Extractor) Option {
	return func(p *Pipeline) { p.extractors = ex }
}

// WithConfidenceModel sets the candidate scoring strategy.
func WithConfidenceModel(cm fusion.ConfidenceModel) Option {
	return func(p *Pipeline) {
		if cm != nil {
			p.confidence = cm
		}
	}
}

// WithBackfiller enables the oracle backfill step.
func WithBackfiller(b Backfiller) Option {
	return func(p *Pipeline) { p.backfiller = b }
}

// WithStore persists each run.
func WithStore(s store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithMetrics records run counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a pipeline over schema.
func New(schema *model.Schema, opts ...Option) *Pipeline {
	p := &Pipeline{
		schema:     schema,
		extractors: extract.Deterministic(extract.DefaultConfidences(), extract.DefaultGrammarCache()),
		confidence: fusion.Fixed{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Schema returns the schema the pipeline extracts.
func (p *Pipeline) Schema() *model.Schema {
	return p.schema
}

// Run extracts every schema KPI from doc. Only a missing document or an
// empty schema is an error. Extractor and oracle failures leave KPIs
// unresolved; store failures are logged and the run goes unpersisted.
func (p *Pipeline) Run(ctx context.Context, doc *model.Document) (*model.ExtractionReport, error) {
	if doc == nil {
		return nil, eris.New("pipeline: nil document")
	}
	if p.schema == nil || p.schema.Len() == 0 {
		return nil, eris.New("pipeline: empty schema")
	}

	start := time.Now()
	log := zap.L().With(zap.String("document", doc.ID))
	log.Info("pipeline: starting extraction", zap.Int("kpis", p.schema.Len()), zap.Int("pages", len(doc.Pages)))

	report := &model.ExtractionReport{DocumentID: doc.ID}

	var runID string
	if p.store != nil {
		run, err := p.store.CreateRun(ctx, doc.ID)
		if err != nil {
			log.Warn("pipeline: failed to create run, continuing without persistence", zap.Error(err))
		} else {
			runID = run.ID
			report.RunID = runID
			log = log.With(zap.String("run_id", runID))
		}
	}
	setStatus := func(status model.RunStatus) {
		if runID == "" {
			return
		}
		if err := p.store.UpdateRunStatus(ctx, runID, status); err != nil {
			log.Warn("pipeline: failed to update status", zap.Error(err))
		}
	}

	setStatus(model.RunStatusExtracting)
	fuser := fusion.New(p.schema)
	for _, ex := range p.extractors {
		added := 0
		for _, c := range ex.Extract(doc, p.schema) {
			n, ok := p.normalize(c)
			if !ok || !fuser.Add(n) {
				continue
			}
			report.Candidates = append(report.Candidates, n)
			p.metrics.AddCandidate(string(n.Source))
			added++
		}
		log.Debug("pipeline: extractor done", zap.String("source", string(ex.Source())), zap.Int("candidates", added))
	}
	fuser.Resolve()

	if unresolved := fuser.Unresolved(); len(unresolved) > 0 && p.backfiller != nil {
		setStatus(model.RunStatusBackfill)
		report.BackfillRequested = unresolved
		for _, c := range p.backfiller.Backfill(ctx, doc.Text, p.schema.Subset(unresolved)) {
			n, ok := p.normalize(c)
			if !ok || !fuser.Backfill(n) {
				continue
			}
			report.Candidates = append(report.Candidates, n)
			report.BackfillAccepted = append(report.BackfillAccepted, n.KPICode)
			p.metrics.AddCandidate(string(n.Source))
		}
		p.metrics.AddBackfill(len(report.BackfillRequested), len(report.BackfillAccepted))
		log.Info("pipeline: backfill complete",
			zap.Strings("requested", report.BackfillRequested),
			zap.Strings("accepted", report.BackfillAccepted),
		)
	}

	report.Results = fuser.Results()
	report.DurationMs = time.Since(start).Milliseconds()
	for _, r := range report.Results {
		p.metrics.AddResult(string(r.Status))
	}

	if runID != "" {
		if err := p.store.SaveReport(ctx, runID, report); err != nil {
			log.Warn("pipeline: failed to save report", zap.Error(err))
		}
	}
	p.metrics.ObserveRun(string(model.RunStatusComplete), time.Since(start))

	log.Info("pipeline: extraction complete",
		zap.Int("reported", report.Reported()),
		zap.Int("total", len(report.Results)),
		zap.Int64("duration_ms", report.DurationMs),
	)
	return report, nil
}

func (p *Pipeline) normalize(c model.Candidate) (model.Candidate, bool) {
	kpi, ok := p.schema.Get(c.KPICode)
	if !ok {
		return c, false
	}
	return fusion.Normalize(c, kpi, p.confidence)
}

// ReadFunc loads a document from path.
type ReadFunc func(ctx context.Context, path string) (*model.Document, error)

// RunFile reads path and runs it. A read failure is recorded as a failed run
// under the same document ID the readers derive from path.
func (p *Pipeline) RunFile(ctx context.Context, path string, read ReadFunc) (*model.ExtractionReport, error) {
	start := time.Now()
	doc, err := read(ctx, path)
	if err != nil {
		p.metrics.ObserveRun(string(model.RunStatusFailed), time.Since(start))
		if p.store != nil {
			run, cerr := p.store.CreateRun(ctx, document.IDFromPath(path))
			if cerr != nil {
				zap.L().Warn("pipeline: failed to record failed run", zap.String("path", path), zap.Error(cerr))
			} else if ferr := p.store.FailRun(ctx, run.ID, err.Error()); ferr != nil {
				zap.L().Warn("pipeline: failed to record failed run", zap.String("path", path), zap.Error(ferr))
			}
		}
		return nil, eris.Wrapf(err, "pipeline: read %s", path)
	}
	return p.Run(ctx, doc)
}
