package capture

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Walker drives the target application through its configured states in
// strict order. After every selection it waits a fixed settle duration so
// asynchronous re-rendering (chart redraw) completes before anything is
// captured; there is no load-completion signal to observe for canvas redraws.
type Walker struct {
	driver          Driver
	controlSelector string
	settleWait      time.Duration
	initialSettle   time.Duration
	logger          *zap.Logger

	// sleep is injectable so tests can observe settle timing without real
	// delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWalker builds a Walker over the given driver. initialSettle applies to
// state 0 only, whose first render includes full asset loading.
func NewWalker(driver Driver, controlSelector string, settleWait, initialSettle time.Duration, logger *zap.Logger) *Walker {
	return &Walker{
		driver:          driver,
		controlSelector: controlSelector,
		settleWait:      settleWait,
		initialSettle:   initialSettle,
		logger:          logger.Named("walker"),
		sleep:           sleepCtx,
	}
}

// Visit selects the given state and blocks until the settle wait has elapsed.
// A state is not ready for capture before Visit returns.
func (w *Walker) Visit(ctx context.Context, state AppState) error {
	w.logger.Debug("Selecting state",
		zap.Int("index", state.Index),
		zap.String("label", state.Label),
	)

	if err := w.driver.SelectOption(ctx, w.controlSelector, state.Index); err != nil {
		return fmt.Errorf("state %q: %w", state.Label, err)
	}

	wait := w.settleWait
	if state.Index == 0 {
		// The first render includes asset loading on top of the chart draw.
		wait = w.initialSettle
	}
	if err := w.sleep(ctx, wait); err != nil {
		return fmt.Errorf("settle wait interrupted for state %q: %w", state.Label, err)
	}

	w.logger.Info("State ready", zap.String("label", state.Label), zap.Duration("settled", wait))
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
