package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voidgazerbly/snapwalk/internal/config"
)

func testSelectors() config.SelectorConfig {
	return config.SelectorConfig{
		DatasetControl: testControl,
		Region:         `.lg\:col-span-2`,
		Interpretation: `span.px-2.py-1.rounded`,
		Details:        `.space-y-6 > div:nth-child(2)`,
	}
}

func TestCollector_CaptureImagesWritesBothArtifacts(t *testing.T) {
	dir := t.TempDir()
	d := &mockDriver{}
	c := NewCollector(d, testSelectors(), dir, zap.NewNop())

	artifacts, err := c.CaptureImages(context.Background(), AppState{Index: 0, Label: "TRA vs TFA"}, 1)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	assert.Equal(t, filepath.Join(dir, "01_tra_vs_tfa_full.png"), artifacts[0].Path)
	assert.Equal(t, ScopeFullPage, artifacts[0].Scope)
	assert.Equal(t, filepath.Join(dir, "02_tra_vs_tfa_region.png"), artifacts[1].Path)
	assert.Equal(t, ScopeRegion, artifacts[1].Scope)

	for _, a := range artifacts {
		data, err := os.ReadFile(a.Path)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
}

func TestCollector_MissingRegionSkipsRegionArtifact(t *testing.T) {
	dir := t.TempDir()
	d := &mockDriver{
		regionFn: func(selector string, _ int) ([]byte, error) {
			return nil, fmt.Errorf("%w: %s", ErrRegionNotFound, selector)
		},
	}
	c := NewCollector(d, testSelectors(), dir, zap.NewNop())

	artifacts, err := c.CaptureImages(context.Background(), AppState{Index: 1, Label: "Hypothermia"}, 3)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, ScopeFullPage, artifacts[0].Scope)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the full-page image should be on disk")
}

func TestCollector_FullPageFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	d := &mockDriver{
		fullFn: func(_ int) ([]byte, error) {
			return nil, fmt.Errorf("tab crashed")
		},
	}
	c := NewCollector(d, testSelectors(), dir, zap.NewNop())

	_, err := c.CaptureImages(context.Background(), AppState{Index: 0, Label: "TRA vs TFA"}, 1)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCollector_ExtractTrimsAndFillsRecord(t *testing.T) {
	sel := testSelectors()
	d := &mockDriver{
		textFn: func(selector string, _ int) (string, error) {
			if selector == sel.Interpretation {
				return "  Firm evidence  ", nil
			}
			return "\nCumulative Z-score crosses the boundary.\n", nil
		},
	}
	c := NewCollector(d, sel, t.TempDir(), zap.NewNop())

	rec, err := c.Extract(context.Background(), AppState{Index: 2, Label: "COVID-19"})
	require.NoError(t, err)
	assert.Equal(t, "COVID-19", rec.StateLabel)
	assert.Equal(t, "Firm evidence", rec.Interpretation)
	assert.Equal(t, "Cumulative Z-score crosses the boundary.", rec.Details)
	assert.False(t, rec.Placeholder)
}

func TestCollector_ExtractRecordsPlaceholderOnMissingRegion(t *testing.T) {
	sel := testSelectors()
	d := &mockDriver{
		textFn: func(selector string, _ int) (string, error) {
			if selector == sel.Details {
				return "", fmt.Errorf("%w: %s", ErrExtraction, selector)
			}
			return "No effect", nil
		},
	}
	c := NewCollector(d, sel, t.TempDir(), zap.NewNop())

	rec, err := c.Extract(context.Background(), AppState{Index: 1, Label: "Hypothermia"})
	require.NoError(t, err, "missing extraction region must not abort the run")
	assert.True(t, rec.Placeholder)
	assert.Equal(t, "No effect", rec.Interpretation)
	assert.Equal(t, placeholderText, rec.Details)
}

func TestCollector_ExtractBrowserFailureIsFatal(t *testing.T) {
	d := &mockDriver{
		textFn: func(selector string, _ int) (string, error) {
			return "", fmt.Errorf("session is closed")
		},
	}
	c := NewCollector(d, testSelectors(), t.TempDir(), zap.NewNop())

	_, err := c.Extract(context.Background(), AppState{Index: 0, Label: "TRA vs TFA"})
	require.Error(t, err)
}

func TestArtifactFilename(t *testing.T) {
	assert.Equal(t, "01_tra_vs_tfa_full.png", ArtifactFilename(1, "TRA vs TFA", ScopeFullPage))
	assert.Equal(t, "04_hypothermia_region.png", ArtifactFilename(4, "Hypothermia", ScopeRegion))
	assert.Equal(t, "05_covid_19_full.png", ArtifactFilename(5, "COVID-19", ScopeFullPage))
}
