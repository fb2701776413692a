package capture

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/voidgazerbly/snapwalk/internal/config"
)

// ReportSink persists the textual outputs of a completed run.
type ReportSink interface {
	// WriteSummary writes the consolidated per-state text report.
	WriteSummary(records []ExtractionRecord) error
	// WriteManifest writes the machine-readable run manifest.
	WriteManifest(result *RunResult) error
}

// RunRecorder persists run history to external storage. Optional.
type RunRecorder interface {
	RecordRun(ctx context.Context, result *RunResult) error
}

// Orchestrator manages the lifecycle of one capture run: navigate, walk the
// configured states in order, collect artifacts per state, then finalize the
// report outputs. It is injected with a Driver and sinks via interfaces, so
// it never touches chromedp directly.
type Orchestrator struct {
	cfg       *config.Config
	logger    *zap.Logger
	driver    Driver
	walker    *Walker
	collector *Collector
	reports   ReportSink
	recorder  RunRecorder
}

// New creates an Orchestrator. recorder may be nil when run history is not
// configured; everything else is required.
func New(cfg *config.Config, logger *zap.Logger, driver Driver, outputDir string, reports ReportSink, recorder RunRecorder) (*Orchestrator, error) {
	if cfg == nil || logger == nil || driver == nil || reports == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	return &Orchestrator{
		cfg:       cfg,
		logger:    logger.Named("orchestrator"),
		driver:    driver,
		walker:    NewWalker(driver, cfg.Target.Selectors.DatasetControl, cfg.Capture.SettleWait, cfg.Capture.InitialSettle, logger),
		collector: NewCollector(driver, cfg.Target.Selectors, outputDir, logger),
		reports:   reports,
		recorder:  recorder,
	}, nil
}

// Run executes one complete capture pass. Screenshot capture and text
// extraction happen in the same visit to each state (single-pass), halving
// the selection and settle work of a per-artifact-type walk. Screenshots go
// through CDP without focusing any element, so taking one cannot perturb the
// extraction that follows it.
//
// Fatal errors abort the run; the caller owns session release and must
// guarantee it on every exit path.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.New().String(),
		TargetURL: o.cfg.Target.URL,
	}
	states := StatesFromLabels(o.cfg.Target.States)

	o.logger.Info("Starting capture run",
		zap.String("run_id", result.RunID),
		zap.String("target", result.TargetURL),
		zap.Int("states", len(states)),
	)

	if err := o.driver.Navigate(ctx, o.cfg.Target.URL); err != nil {
		return nil, fmt.Errorf("cannot reach target: %w", err)
	}

	// Each state owns two sequence slots, reserved even when the region
	// artifact is skipped, so filenames never shift between runs.
	seq := 1
	for _, state := range states {
		if err := o.walker.Visit(ctx, state); err != nil {
			return nil, err
		}

		artifacts, err := o.collector.CaptureImages(ctx, state, seq)
		if err != nil {
			return nil, err
		}
		seq += 2
		result.Artifacts = append(result.Artifacts, artifacts...)

		record, err := o.collector.Extract(ctx, state)
		if err != nil {
			return nil, err
		}
		result.Records = append(result.Records, record)
	}

	// The walk itself is strictly sequential (one page, one session); only
	// the finalization writes are independent of each other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.reports.WriteSummary(result.Records) })
	g.Go(func() error { return o.reports.WriteManifest(result) })
	if o.recorder != nil {
		g.Go(func() error { return o.recorder.RecordRun(gctx, result) })
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to finalize run outputs: %w", err)
	}

	o.logger.Info("Capture run complete",
		zap.String("run_id", result.RunID),
		zap.Int("artifacts", len(result.Artifacts)),
		zap.Int("records", len(result.Records)),
	)
	return result, nil
}
