package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/voidgazerbly/snapwalk/internal/config"
)

const launchProbeTimeout = 30 * time.Second

// Manager owns the headless browser process. All sessions derive from its
// allocator context; Shutdown tears the process down and is safe to call on
// every exit path, including after partial initialization.
type Manager struct {
	logger *zap.Logger
	cfg    *config.BrowserConfig

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	// wg tracks open sessions so Shutdown can wait for them.
	wg sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewManager launches the browser process and verifies it is responsive.
func NewManager(ctx context.Context, logger *zap.Logger, cfg *config.BrowserConfig) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}
	if err := m.launch(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return m, nil
}

func (m *Manager) launch(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator",
		zap.Bool("headless", m.cfg.Headless),
		zap.Int("viewport_width", m.cfg.ViewportWidth),
		zap.Int("viewport_height", m.cfg.ViewportHeight),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, m.buildAllocatorOptions()...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	// Probe with a throwaway tab to confirm the process started.
	probeCtx, cancelProbe := context.WithTimeout(allocCtx, launchProbeTimeout)
	probeCtx, cancelProbeCtx := chromedp.NewContext(probeCtx)
	defer cancelProbeCtx()
	defer cancelProbe()

	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocatorCancel()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched successfully and is responsive.")
	return nil
}

// buildAllocatorOptions assembles the flags for the browser instance from
// configuration.
func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("disable-gpu", m.cfg.Headless),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(m.cfg.ViewportWidth, m.cfg.ViewportHeight),
	)

	// Custom arguments from configuration, "--flag" or "--flag=value".
	for _, arg := range m.cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(name, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

// NewSession opens one tab. The orchestrator uses a single session per run;
// the manager still tracks sessions so Shutdown can wait for stragglers.
func (m *Manager) NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("browser manager is shut down")
	}
	m.mu.Unlock()

	s, err := newSession(m.allocatorCtx, cfg, m.logger)
	if err != nil {
		return nil, err
	}

	m.wg.Add(1)
	s.onClose = m.wg.Done
	m.logger.Info("New browser session created.")
	return s, nil
}

// Shutdown closes the browser process. Idempotent; waits for open sessions
// up to the deadline of ctx before forcing teardown.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.logger.Info("Shutting down browser manager.")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for sessions to close; forcing browser shutdown.", zap.Error(ctx.Err()))
	}

	if m.allocatorCancel != nil {
		m.allocatorCancel()
	}
	// Wait for the browser process to be reaped so no child process outlives
	// the run.
	if c := chromedp.FromContext(m.allocatorCtx); c != nil && c.Allocator != nil {
		c.Allocator.Wait()
	}

	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
