package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/traffic-congestion/internal/domain"
	"github.com/couchcryptid/traffic-congestion/internal/observability"
)

// ErrNoDatasets is returned when no configured dataset could be analyzed.
var ErrNoDatasets = errors.New("no dataset could be analyzed")

// TableLoader reads one dataset into memory.
type TableLoader interface {
	Load(ctx context.Context, ds domain.Dataset) (*domain.Table, error)
}

// Analyzer turns a loaded table into its summary.
type Analyzer interface {
	Analyze(ctx context.Context, ds domain.Dataset, tbl *domain.Table) (domain.DatasetSummary, error)
}

// Reporter publishes a finished comparison somewhere.
type Reporter interface {
	Name() string
	Report(ctx context.Context, c domain.Comparison) error
}

// Pipeline orchestrates the load-analyze-report run over all datasets.
type Pipeline struct {
	loader    TableLoader
	analyzer  Analyzer
	reporters []Reporter
	datasets  []domain.Dataset
	threshold float64
	logger    *slog.Logger
	metrics   *observability.Metrics

	ready  atomic.Bool
	mu     sync.RWMutex
	latest *domain.Comparison
}

// New creates a Pipeline with the given stages and observability.
func New(l TableLoader, a Analyzer, reporters []Reporter, datasets []domain.Dataset, threshold float64, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		loader:    l,
		analyzer:  a,
		reporters: reporters,
		datasets:  datasets,
		threshold: threshold,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a run has produced at least one summary,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no dataset summary produced yet")
	}
	return nil
}

// Latest returns the comparison of the last completed run.
func (p *Pipeline) Latest() (domain.Comparison, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return domain.Comparison{}, false
	}
	return *p.latest, true
}

// Run analyzes every dataset in order and hands the comparison to each
// reporter. A dataset that fails to load or analyze is recorded as a failure
// and the run continues. The returned error joins reporter failures, and
// wraps ErrNoDatasets when every dataset failed. Cancellation of ctx aborts
// the run between stages.
func (p *Pipeline) Run(ctx context.Context) (domain.Comparison, error) {
	p.logger.Info("pipeline started", "datasets", len(p.datasets), "threshold", p.threshold)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var (
		summaries []domain.DatasetSummary
		failures  []domain.DatasetFailure
	)
	for _, ds := range p.datasets {
		if err := ctx.Err(); err != nil {
			return domain.Comparison{}, fmt.Errorf("run aborted: %w", err)
		}
		s, err := p.process(ctx, ds)
		if err != nil {
			if ctx.Err() != nil {
				return domain.Comparison{}, fmt.Errorf("run aborted: %w", ctx.Err())
			}
			p.logger.Error("dataset failed", "dataset", ds.Name, "error", err)
			p.metrics.DatasetFailures.WithLabelValues(ds.Name).Inc()
			failures = append(failures, domain.DatasetFailure{Dataset: ds.Name, Error: err.Error()})
			continue
		}
		summaries = append(summaries, s)
	}

	c := domain.NewComparison(p.threshold, summaries, failures)
	p.publish(c)

	errs := p.report(ctx, c)
	if len(summaries) == 0 {
		errs = append([]error{ErrNoDatasets}, errs...)
	}

	p.logger.Info("pipeline finished", "summaries", len(summaries), "failures", len(failures))
	return c, errors.Join(errs...)
}

func (p *Pipeline) process(ctx context.Context, ds domain.Dataset) (domain.DatasetSummary, error) {
	start := time.Now()
	tbl, err := p.loader.Load(ctx, ds)
	p.observe("load", start)
	if err != nil {
		return domain.DatasetSummary{}, err
	}

	start = time.Now()
	s, err := p.analyzer.Analyze(ctx, ds, tbl)
	p.observe("analyze", start)
	if err != nil {
		return domain.DatasetSummary{}, fmt.Errorf("analyze %s: %w", ds.Name, err)
	}

	p.metrics.ReadingsLoaded.WithLabelValues(ds.Name).Add(float64(s.Valid + s.Missing))
	p.metrics.ReadingsMissing.WithLabelValues(ds.Name).Add(float64(s.Missing))
	p.metrics.ReadingsCongested.WithLabelValues(ds.Name).Add(float64(s.Congested))
	p.metrics.CongestionRatio.WithLabelValues(ds.Name).Set(s.OverallRate)
	p.metrics.Sensors.WithLabelValues(ds.Name).Set(float64(s.NumSensors))

	p.logger.Info("dataset analyzed",
		"dataset", ds.Name,
		"sensors", s.NumSensors,
		"rows", s.Rows,
		"overall_rate", domain.FormatRate(s.OverallRate),
	)
	return s, nil
}

func (p *Pipeline) publish(c domain.Comparison) {
	p.mu.Lock()
	p.latest = &c
	p.mu.Unlock()
	if len(c.Summaries) > 0 {
		p.ready.Store(true)
	}
}

// report runs every reporter; one failing does not stop the others.
func (p *Pipeline) report(ctx context.Context, c domain.Comparison) []error {
	var errs []error
	for _, r := range p.reporters {
		start := time.Now()
		err := r.Report(ctx, c)
		p.observe("report", start)
		if err != nil {
			p.logger.Error("reporter failed", "reporter", r.Name(), "error", err)
			p.metrics.SinkErrors.WithLabelValues(r.Name()).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
		}
	}
	return errs
}

func (p *Pipeline) observe(stage string, start time.Time) {
	p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
