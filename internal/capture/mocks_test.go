package capture

import (
	"context"
	"fmt"
	"sync"
)

// mockDriver is a scriptable Driver for unit tests. Every call is appended
// to ops so tests can assert strict sequencing.
type mockDriver struct {
	mu  sync.Mutex
	ops []string

	selected int

	navigateFn func(url string) error
	selectFn   func(selector string, index int) error
	fullFn     func(selected int) ([]byte, error)
	regionFn   func(selector string, selected int) ([]byte, error)
	textFn     func(selector string, selected int) (string, error)
}

func (m *mockDriver) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op)
}

func (m *mockDriver) Ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ops...)
}

func (m *mockDriver) Navigate(_ context.Context, url string) error {
	m.record("navigate")
	if m.navigateFn != nil {
		return m.navigateFn(url)
	}
	return nil
}

func (m *mockDriver) SelectOption(_ context.Context, selector string, index int) error {
	m.record(fmt.Sprintf("select:%d", index))
	if m.selectFn != nil {
		if err := m.selectFn(selector, index); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.selected = index
	m.mu.Unlock()
	return nil
}

func (m *mockDriver) CaptureFullPage(_ context.Context) ([]byte, error) {
	m.record("full")
	if m.fullFn != nil {
		return m.fullFn(m.selected)
	}
	return []byte("full-png"), nil
}

func (m *mockDriver) CaptureRegion(_ context.Context, selector string) ([]byte, error) {
	m.record("region")
	if m.regionFn != nil {
		return m.regionFn(selector, m.selected)
	}
	return []byte("region-png"), nil
}

func (m *mockDriver) Text(_ context.Context, selector string) (string, error) {
	m.record("text:" + selector)
	if m.textFn != nil {
		return m.textFn(selector, m.selected)
	}
	return fmt.Sprintf("text %d for %s", m.selected, selector), nil
}

// mockSink records finalization calls.
type mockSink struct {
	mu       sync.Mutex
	summary  []ExtractionRecord
	manifest *RunResult

	summaryErr  error
	manifestErr error
}

func (m *mockSink) WriteSummary(records []ExtractionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary = append([]ExtractionRecord(nil), records...)
	return m.summaryErr
}

func (m *mockSink) WriteManifest(result *RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifest = result
	return m.manifestErr
}

// mockRecorder records store calls.
type mockRecorder struct {
	mu     sync.Mutex
	result *RunResult
	err    error
}

func (m *mockRecorder) RecordRun(_ context.Context, result *RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = result
	return m.err
}
