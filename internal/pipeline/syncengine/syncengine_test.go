package syncengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagid-sheikh/simplify-downloader/internal/clock"
	pipelineerrors "github.com/wagid-sheikh/simplify-downloader/internal/errors"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/sessioncache"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/storeregistry"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/webautomation"
)

// stubAdapter is a bare webautomation.Adapter whose every call returns a
// canned outcome; only the calls the TD/UC flows actually make before
// failing (or succeeding) matter for these tests.
type stubAdapter struct {
	openErr error
	closed  int
}

func (s *stubAdapter) OpenContext(ctx context.Context, state sessioncache.State) error { return s.openErr }
func (s *stubAdapter) Navigate(ctx context.Context, url string) error                  { return nil }
func (s *stubAdapter) Fill(ctx context.Context, selector, value string) error          { return nil }
func (s *stubAdapter) Click(ctx context.Context, selector string) error                { return nil }
func (s *stubAdapter) EnterFrame(ctx context.Context, selector string) error           { return nil }
func (s *stubAdapter) WaitVisible(ctx context.Context, locators ...string) (string, error) {
	return "", nil
}
func (s *stubAdapter) WaitText(ctx context.Context, selector string, pred func(string) bool, poll time.Duration) (string, error) {
	return "", nil
}
func (s *stubAdapter) ExpectDownload(ctx context.Context, action func(ctx context.Context) error) (webautomation.Download, error) {
	return webautomation.Download{}, nil
}
func (s *stubAdapter) CurrentURL(ctx context.Context) (string, error) { return "", nil }
func (s *stubAdapter) SaveState(ctx context.Context) (sessioncache.State, error) {
	return nil, nil
}
func (s *stubAdapter) Close(ctx context.Context) error {
	s.closed++
	return nil
}

func testSyncConfig() storeregistry.SyncConfig {
	return storeregistry.SyncConfig{
		URLs: storeregistry.URLs{
			Login:      "https://example.test/login",
			Home:       "https://example.test/home",
			OrdersLink: "https://example.test/orders",
		},
		LoginSelectors: storeregistry.LoginSelectors{
			Username: "#u",
			Password: "#p",
			Submit:   "#submit",
		},
		Username: "u",
		Password: "p",
	}
}

func testStore() storeregistry.Store {
	return storeregistry.Store{StoreCode: "A668", CostCenter: "CC01", Config: testSyncConfig()}
}

// TestRunTDFlowWithRetryStopsOnNonTransientError verifies the manual
// retry loop never retries past a non-transient failure (login
// rejected mid-flow surfaces as KindAuth, not KindTransport) and that
// the adapter it created is closed exactly once.
func TestRunTDFlowWithRetryStopsOnNonTransientError(t *testing.T) {
	adapter := &stubAdapter{openErr: pipelineerrors.New(pipelineerrors.KindAuth, "td.login", "bad credentials", nil)}
	calls := 0
	engine := &Engine{
		adapters: func() webautomation.Adapter {
			calls++
			return adapter
		},
	}

	_, _, err := engine.runTDFlowWithRetry(context.Background(), testStore(), nil, testWindow())

	require.Error(t, err)
	assert.Equal(t, 1, calls, "a non-transient failure must not be retried")
	assert.Equal(t, 1, adapter.closed)
}

// TestRunTDFlowWithRetryRetriesTransientErrorUpToConfiguredAttempts
// verifies a KindTransport failure is retried until DefaultRetryConfig's
// attempt budget is exhausted, with a fresh adapter built each time.
func TestRunTDFlowWithRetryRetriesTransientErrorUpToConfiguredAttempts(t *testing.T) {
	var built []*stubAdapter
	engine := &Engine{
		adapters: func() webautomation.Adapter {
			a := &stubAdapter{openErr: pipelineerrors.New(pipelineerrors.KindTransport, "td.open", "connection reset", nil)}
			built = append(built, a)
			return a
		},
	}

	start := time.Now()
	_, _, err := engine.runTDFlowWithRetry(context.Background(), testStore(), nil, testWindow())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, pipelineerrors.DefaultRetryConfig().MaxAttempts+1, len(built), "should build one adapter per attempt")
	for _, a := range built {
		assert.Equal(t, 1, a.closed)
	}
	assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond, "backoff delays should have elapsed between attempts")
}

// TestRunTDFlowWithRetryHonorsCancellationDuringBackoff verifies a
// cancelled context interrupts the wait between retries rather than
// blocking for the full backoff delay.
func TestRunTDFlowWithRetryHonorsCancellationDuringBackoff(t *testing.T) {
	engine := &Engine{
		adapters: func() webautomation.Adapter {
			return &stubAdapter{openErr: pipelineerrors.New(pipelineerrors.KindTransport, "td.open", "connection reset", nil)}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, _, err := engine.runTDFlowWithRetry(ctx, testStore(), nil, testWindow())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, pipelineerrors.KindCancelled, pipelineerrors.KindOf(err))
	assert.Less(t, elapsed, time.Second, "cancellation should cut the backoff wait short")
}

func testWindow() clock.Window {
	from := clock.NewDate(2026, time.July, 1)
	return clock.Window{From: from, To: from.AddDays(6)}
}
