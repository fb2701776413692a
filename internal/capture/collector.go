package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/voidgazerbly/snapwalk/internal/config"
)

// placeholderText is recorded when an extraction region is absent for a
// state. The run continues: screenshots are the primary deliverable and may
// already be complete for that state.
const placeholderText = "[unavailable]"

// Collector produces the per-state artifacts: a full-page screenshot, a
// bounded sub-region screenshot, and the text extraction record.
type Collector struct {
	driver    Driver
	selectors config.SelectorConfig
	outputDir string
	logger    *zap.Logger
}

// NewCollector builds a Collector writing images under outputDir.
func NewCollector(driver Driver, selectors config.SelectorConfig, outputDir string, logger *zap.Logger) *Collector {
	return &Collector{
		driver:    driver,
		selectors: selectors,
		outputDir: outputDir,
		logger:    logger.Named("collector"),
	}
}

// CaptureImages takes the full-page and region screenshots for the currently
// selected state. seqBase is the 1-based sequence number of the full-page
// artifact; the region artifact takes seqBase+1 whether or not it is written,
// so filenames stay deterministic across runs.
//
// A missing region container skips that state's region artifact and the run
// continues; every other failure is fatal.
func (c *Collector) CaptureImages(ctx context.Context, state AppState, seqBase int) ([]Artifact, error) {
	var artifacts []Artifact

	full, err := c.driver.CaptureFullPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("full-page capture for state %q: %w", state.Label, err)
	}
	fullPath := filepath.Join(c.outputDir, ArtifactFilename(seqBase, state.Label, ScopeFullPage))
	if err := os.WriteFile(fullPath, full, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", fullPath, err)
	}
	artifacts = append(artifacts, Artifact{StateLabel: state.Label, Scope: ScopeFullPage, Path: fullPath})
	c.logger.Info("Captured full page", zap.String("state", state.Label), zap.String("path", fullPath))

	region, err := c.driver.CaptureRegion(ctx, c.selectors.Region)
	if err != nil {
		if errors.Is(err, ErrRegionNotFound) {
			c.logger.Warn("Region container absent; skipping region artifact",
				zap.String("state", state.Label),
				zap.String("selector", c.selectors.Region),
			)
			return artifacts, nil
		}
		return nil, fmt.Errorf("region capture for state %q: %w", state.Label, err)
	}
	regionPath := filepath.Join(c.outputDir, ArtifactFilename(seqBase+1, state.Label, ScopeRegion))
	if err := os.WriteFile(regionPath, region, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", regionPath, err)
	}
	artifacts = append(artifacts, Artifact{StateLabel: state.Label, Scope: ScopeRegion, Path: regionPath})
	c.logger.Info("Captured region", zap.String("state", state.Label), zap.String("path", regionPath))

	return artifacts, nil
}

// Extract reads the interpretation tag and details panel for the currently
// selected state. A missing region yields a placeholder record rather than an
// error; only browser-level failures are returned.
func (c *Collector) Extract(ctx context.Context, state AppState) (ExtractionRecord, error) {
	rec := ExtractionRecord{StateLabel: state.Label}

	interp, ierr := c.driver.Text(ctx, c.selectors.Interpretation)
	if ierr != nil && !errors.Is(ierr, ErrExtraction) {
		return rec, fmt.Errorf("interpretation extraction for state %q: %w", state.Label, ierr)
	}
	details, derr := c.driver.Text(ctx, c.selectors.Details)
	if derr != nil && !errors.Is(derr, ErrExtraction) {
		return rec, fmt.Errorf("details extraction for state %q: %w", state.Label, derr)
	}

	rec.Interpretation = strings.TrimSpace(interp)
	rec.Details = strings.TrimSpace(details)

	if ierr != nil {
		rec.Interpretation = placeholderText
		rec.Placeholder = true
	}
	if derr != nil {
		rec.Details = placeholderText
		rec.Placeholder = true
	}
	if rec.Placeholder {
		c.logger.Warn("Extraction incomplete; placeholder recorded", zap.String("state", state.Label))
	} else {
		c.logger.Info("Extracted results", zap.String("state", state.Label), zap.String("interpretation", rec.Interpretation))
	}
	return rec, nil
}
