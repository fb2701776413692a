package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/voidgazerbly/snapwalk/internal/capture"
)

const (
	actionTimeout = 20 * time.Second
	closeTimeout  = 10 * time.Second

	// FullScreenshot quality 100 selects lossless PNG encoding.
	screenshotQuality = 100
)

// SessionConfig tunes the per-session waits.
type SessionConfig struct {
	NavigationTimeout time.Duration
	NetworkQuiet      time.Duration
}

// Session is one isolated browser tab. It implements capture.Driver: every
// method issues one CDP operation and blocks until it completes or times out.
type Session struct {
	cfg    SessionConfig
	logger *zap.Logger

	sessionCtx    context.Context
	sessionCancel context.CancelFunc
	onClose       func()

	mu     sync.Mutex
	closed bool
}

var _ capture.Driver = (*Session)(nil)

func newSession(allocCtx context.Context, cfg SessionConfig, logger *zap.Logger) (*Session, error) {
	sessionCtx, cancel := chromedp.NewContext(allocCtx)
	return &Session{
		cfg:           cfg,
		logger:        logger.Named("session"),
		sessionCtx:    sessionCtx,
		sessionCancel: cancel,
	}, nil
}

// run executes chromedp actions against this session with a bounded wait.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(s.sessionCtx, timeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads the URL, waits for document readiness and then for the
// network to go quiet. The whole sequence is bounded by the navigation
// timeout; failure is fatal to the run.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))
	err := s.run(ctx, s.cfg.NavigationTimeout,
		network.Enable(),
		waitNetworkQuiet(s.cfg.NetworkQuiet,
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
		),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", capture.ErrNavigation, url, err)
	}
	s.logger.Info("Navigation complete", zap.String("url", url))
	return nil
}

// waitNetworkQuiet runs the wrapped actions while tracking in-flight
// requests, then blocks until no request has been outstanding for the quiet
// window. The listener must be registered before navigation starts or early
// requests would be missed.
func waitNetworkQuiet(quiet time.Duration, actions ...chromedp.Action) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var mu sync.Mutex
		inflight := make(map[network.RequestID]struct{})

		timer := time.NewTimer(quiet)
		defer timer.Stop()

		listenCtx, stopListening := context.WithCancel(ctx)
		defer stopListening()
		chromedp.ListenTarget(listenCtx, func(ev interface{}) {
			mu.Lock()
			defer mu.Unlock()
			switch e := ev.(type) {
			case *network.EventRequestWillBeSent:
				inflight[e.RequestID] = struct{}{}
				timer.Stop()
			case *network.EventLoadingFinished:
				delete(inflight, e.RequestID)
				if len(inflight) == 0 {
					timer.Reset(quiet)
				}
			case *network.EventLoadingFailed:
				delete(inflight, e.RequestID)
				if len(inflight) == 0 {
					timer.Reset(quiet)
				}
			}
		})

		for _, a := range actions {
			if err := a.Do(ctx); err != nil {
				return err
			}
		}

		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// selection outcomes reported by the in-page script.
const (
	selectOK      = "ok"
	selectMissing = "missing"
	selectRange   = "range"
)

// SelectOption sets the <select> matching selector to the given index and
// dispatches input/change events so framework listeners re-render.
func (s *Session) SelectOption(ctx context.Context, selector string, index int) error {
	script := fmt.Sprintf(`(function(sel, idx) {
		const el = document.querySelector(sel);
		if (!el || typeof el.selectedIndex !== "number") return %q;
		if (!el.options || idx < 0 || idx >= el.options.length) return %q;
		el.selectedIndex = idx;
		el.dispatchEvent(new Event("input", { bubbles: true }));
		el.dispatchEvent(new Event("change", { bubbles: true }));
		return %q;
	})(%q, %d)`, selectMissing, selectRange, selectOK, selector, index)

	var outcome string
	if err := s.run(ctx, actionTimeout, chromedp.Evaluate(script, &outcome)); err != nil {
		return fmt.Errorf("selection script failed: %w", err)
	}
	switch outcome {
	case selectOK:
		return nil
	case selectMissing:
		return fmt.Errorf("%w: %s", capture.ErrControlNotFound, selector)
	case selectRange:
		return fmt.Errorf("%w: index %d for %s", capture.ErrSelection, index, selector)
	default:
		return fmt.Errorf("unexpected selection outcome %q", outcome)
	}
}

// CaptureFullPage captures the whole page as PNG.
func (s *Session) CaptureFullPage(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, actionTimeout, chromedp.FullScreenshot(&buf, screenshotQuality)); err != nil {
		return nil, fmt.Errorf("full-page screenshot failed: %w", err)
	}
	return buf, nil
}

// CaptureRegion captures the first element matching selector as PNG.
func (s *Session) CaptureRegion(ctx context.Context, selector string) ([]byte, error) {
	// chromedp.Screenshot blocks until the node appears, so check presence
	// first to fail fast on a genuinely absent container.
	present, err := s.elementPresent(ctx, selector)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, fmt.Errorf("%w: %s", capture.ErrRegionNotFound, selector)
	}

	var buf []byte
	if err := s.run(ctx, actionTimeout, chromedp.Screenshot(selector, &buf, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("region screenshot failed for %s: %w", selector, err)
	}
	return buf, nil
}

// Text returns the text content of the first element matching selector.
func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	script := fmt.Sprintf(`(function(sel) {
		const el = document.querySelector(sel);
		return el ? { found: true, text: el.textContent || "" } : { found: false, text: "" };
	})(%q)`, selector)

	var res struct {
		Found bool   `json:"found"`
		Text  string `json:"text"`
	}
	if err := s.run(ctx, actionTimeout, chromedp.Evaluate(script, &res)); err != nil {
		return "", fmt.Errorf("text extraction script failed: %w", err)
	}
	if !res.Found {
		return "", fmt.Errorf("%w: %s", capture.ErrExtraction, selector)
	}
	return res.Text, nil
}

func (s *Session) elementPresent(ctx context.Context, selector string) (bool, error) {
	script := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	var present bool
	if err := s.run(ctx, actionTimeout, chromedp.Evaluate(script, &present)); err != nil {
		return false, fmt.Errorf("presence check failed for %s: %w", selector, err)
	}
	return present, nil
}

// Close tears down the tab. Idempotent and safe to call after partial
// initialization; always returns the underlying resources to the manager.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if s.sessionCtx != nil {
		done := make(chan struct{})
		go func() {
			// Graceful: asks the browser to close the target.
			_ = chromedp.Cancel(s.sessionCtx)
			close(done)
		}()
		select {
		case <-done:
			s.logger.Debug("Browser session closed gracefully.")
		case <-time.After(closeTimeout):
			s.logger.Warn("Timeout waiting for browser session to close; cancelling.")
			s.sessionCancel()
		case <-ctx.Done():
			s.sessionCancel()
		}
	}

	if s.onClose != nil {
		s.onClose()
	}
	return nil
}
