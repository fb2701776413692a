package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/voidgazerbly/snapwalk/internal/capture"
	"github.com/voidgazerbly/snapwalk/internal/config"
)

// End-to-end tests need a local Chrome/Chromium install, so they only run
// when SNAPWALK_E2E=1.
func requireE2E(t *testing.T) {
	t.Helper()
	if os.Getenv("SNAPWALK_E2E") != "1" {
		t.Skip("set SNAPWALK_E2E=1 to run browser integration tests")
	}
}

// fixtureHTML mimics the target app's shape: a labelled dataset select, a
// chart region, an interpretation badge, and a details block that re-render
// on selection.
const fixtureHTML = `<!DOCTYPE html>
<html>
<head><title>fixture</title></head>
<body>
  <select aria-label="Select Dataset">
    <option>TRA vs TFA</option>
    <option>Hypothermia</option>
    <option>COVID-19</option>
  </select>
  <div class="lg:col-span-2">chart region</div>
  <span class="px-2 py-1 rounded" id="interp">Interpretation: TRA vs TFA</span>
  <div class="space-y-6">
    <div>summary block</div>
    <div>Details for TRA vs TFA</div>
  </div>
  <script>
    const sel = document.querySelector('select[aria-label="Select Dataset"]');
    sel.addEventListener('change', () => {
      const label = sel.options[sel.selectedIndex].textContent;
      document.getElementById('interp').textContent = 'Interpretation: ' + label;
      document.querySelector('.space-y-6 > div:nth-child(2)').textContent = 'Details for ' + label;
    });
  </script>
</body>
</html>`

func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(fixtureHTML))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestManager(t *testing.T, ctx context.Context) *Manager {
	t.Helper()
	cfg := &config.BrowserConfig{
		Headless:       true,
		ViewportWidth:  1400,
		ViewportHeight: 900,
	}
	m, err := NewManager(ctx, zaptest.NewLogger(t), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		require.NoError(t, m.Shutdown(shutdownCtx))
	})
	return m
}

func TestSession_DriverOperations(t *testing.T) {
	requireE2E(t)

	ctx := context.Background()
	srv := newFixtureServer(t)
	m := newTestManager(t, ctx)

	session, err := m.NewSession(ctx, SessionConfig{
		NavigationTimeout: 30 * time.Second,
		NetworkQuiet:      200 * time.Millisecond,
	})
	require.NoError(t, err)
	defer session.Close(ctx)

	require.NoError(t, session.Navigate(ctx, srv.URL))

	sel := config.NewDefaultConfig().Target.Selectors

	t.Run("select option re-renders dependent regions", func(t *testing.T) {
		require.NoError(t, session.SelectOption(ctx, sel.DatasetControl, 1))

		text, err := session.Text(ctx, sel.Interpretation)
		require.NoError(t, err)
		assert.Equal(t, "Interpretation: Hypothermia", text)

		details, err := session.Text(ctx, sel.Details)
		require.NoError(t, err)
		assert.Equal(t, "Details for Hypothermia", details)
	})

	t.Run("select errors distinguish missing control from bad index", func(t *testing.T) {
		err := session.SelectOption(ctx, "select#no-such-control", 0)
		assert.ErrorIs(t, err, capture.ErrControlNotFound)

		err = session.SelectOption(ctx, sel.DatasetControl, 99)
		assert.ErrorIs(t, err, capture.ErrSelection)
	})

	t.Run("full page screenshot is a PNG", func(t *testing.T) {
		buf, err := session.CaptureFullPage(ctx)
		require.NoError(t, err)
		require.Greater(t, len(buf), 8)
		assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), buf[:8])
	})

	t.Run("region screenshot targets the configured element", func(t *testing.T) {
		buf, err := session.CaptureRegion(ctx, sel.Region)
		require.NoError(t, err)
		assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), buf[:8])
	})

	t.Run("absent region reports ErrRegionNotFound", func(t *testing.T) {
		_, err := session.CaptureRegion(ctx, ".no-such-region")
		assert.ErrorIs(t, err, capture.ErrRegionNotFound)
	})

	t.Run("absent text element reports ErrExtraction", func(t *testing.T) {
		_, err := session.Text(ctx, "#no-such-element")
		assert.ErrorIs(t, err, capture.ErrExtraction)
	})
}

func TestSession_NavigateFailureWrapsSentinel(t *testing.T) {
	requireE2E(t)

	ctx := context.Background()
	m := newTestManager(t, ctx)

	session, err := m.NewSession(ctx, SessionConfig{
		NavigationTimeout: 5 * time.Second,
		NetworkQuiet:      100 * time.Millisecond,
	})
	require.NoError(t, err)
	defer session.Close(ctx)

	err = session.Navigate(ctx, "http://127.0.0.1:1/unreachable")
	assert.ErrorIs(t, err, capture.ErrNavigation)
}

func TestManager_ShutdownIsIdempotent(t *testing.T) {
	requireE2E(t)

	ctx := context.Background()
	cfg := &config.BrowserConfig{Headless: true, ViewportWidth: 800, ViewportHeight: 600}
	m, err := NewManager(ctx, zaptest.NewLogger(t), cfg)
	require.NoError(t, err)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(shutdownCtx))
	require.NoError(t, m.Shutdown(shutdownCtx))

	_, err = m.NewSession(ctx, SessionConfig{})
	assert.Error(t, err)
}

func TestManager_ShutdownWaitsForOpenSessions(t *testing.T) {
	requireE2E(t)

	ctx := context.Background()
	srv := newFixtureServer(t)
	cfg := &config.BrowserConfig{Headless: true, ViewportWidth: 800, ViewportHeight: 600}
	m, err := NewManager(ctx, zaptest.NewLogger(t), cfg)
	require.NoError(t, err)

	session, err := m.NewSession(ctx, SessionConfig{
		NavigationTimeout: 30 * time.Second,
		NetworkQuiet:      200 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, session.Navigate(ctx, srv.URL))

	closed := make(chan struct{})
	go func() {
		time.Sleep(300 * time.Millisecond)
		_ = session.Close(context.Background())
		close(closed)
	}()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(shutdownCtx))

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("session close should have completed before shutdown returned")
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	// Close never touches the browser process when the tab was never used,
	// so this runs without Chrome.
	sessionCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	released := 0
	s := &Session{
		logger:        zaptest.NewLogger(t),
		sessionCtx:    sessionCtx,
		sessionCancel: cancel,
		onClose:       func() { released++ },
	}

	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 1, released, "resources must be released exactly once")
}
