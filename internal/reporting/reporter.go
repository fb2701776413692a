package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/voidgazerbly/snapwalk/internal/capture"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	summaryHeader = "Capture Results Summary"
	ruleWidth     = 50
)

// Writer persists the textual outputs of a run into the output directory:
// the consolidated summary report and the machine-readable manifest. Both
// are write-once, produced after all states have been visited.
type Writer struct {
	dir          string
	reportFile   string
	manifestFile string
	logger       *zap.Logger
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir, reportFile, manifestFile string, logger *zap.Logger) *Writer {
	return &Writer{
		dir:          dir,
		reportFile:   reportFile,
		manifestFile: manifestFile,
		logger:       logger.Named("reporting"),
	}
}

// SummaryPath returns the full path of the summary report.
func (w *Writer) SummaryPath() string { return filepath.Join(w.dir, w.reportFile) }

// ManifestPath returns the full path of the run manifest.
func (w *Writer) ManifestPath() string { return filepath.Join(w.dir, w.manifestFile) }

// WriteSummary renders the per-state extraction records in visitation order:
// a fixed header, then one delimited block per state.
func (w *Writer) WriteSummary(records []capture.ExtractionRecord) error {
	path := w.SummaryPath()
	if err := os.WriteFile(path, []byte(FormatSummary(records)), 0o644); err != nil {
		return fmt.Errorf("failed to write summary report %s: %w", path, err)
	}
	w.logger.Info("Summary report written", zap.String("path", path), zap.Int("records", len(records)))
	return nil
}

// FormatSummary builds the report body. The layout is a contract with
// downstream comparison tooling; change it deliberately.
func FormatSummary(records []capture.ExtractionRecord) string {
	var b strings.Builder
	b.WriteString(summaryHeader + "\n")
	b.WriteString(strings.Repeat("=", ruleWidth) + "\n\n")
	for _, rec := range records {
		fmt.Fprintf(&b, "Dataset: %s\n", rec.StateLabel)
		fmt.Fprintf(&b, "Interpretation: %s\n", rec.Interpretation)
		fmt.Fprintf(&b, "Details:\n%s\n", rec.Details)
		b.WriteString(strings.Repeat("-", ruleWidth) + "\n\n")
	}
	return b.String()
}

// WriteManifest serializes the run result as indented JSON.
func (w *Writer) WriteManifest(result *capture.RunResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	path := w.ManifestPath()
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", path, err)
	}
	w.logger.Info("Run manifest written", zap.String("path", path))
	return nil
}
