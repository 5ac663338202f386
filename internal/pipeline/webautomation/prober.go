package webautomation

import (
	"context"
	"strings"

	"github.com/wagid-sheikh/simplify-downloader/internal/logging"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/sessioncache"
)

// NewAdapterProber builds a sessioncache.Prober backed by factory: it
// opens a throwaway context restoring state, navigates to homeURL, and
// decides the session is still valid only if the adapter lands on
// homeURL rather than being bounced to a login page.
func NewAdapterProber(factory Factory, logger logging.Logger) sessioncache.Prober {
	logger = logging.OrNop(logger)

	return func(ctx context.Context, storeCode string, state sessioncache.State, homeURL string) (sessioncache.Probe, error) {
		adapter := factory()
		defer func() { _ = adapter.Close(ctx) }()

		if err := adapter.OpenContext(ctx, state); err != nil {
			return sessioncache.ProbeExpired, nil
		}
		if err := adapter.Navigate(ctx, homeURL); err != nil {
			return sessioncache.ProbeExpired, nil
		}

		landed, err := adapter.CurrentURL(ctx)
		if err != nil {
			logger.Warn("probe(%s): current_url failed: %v", storeCode, err)
			return sessioncache.ProbeUnknown, nil
		}

		if sameOrigin(landed, homeURL) {
			return sessioncache.ProbeValid, nil
		}
		return sessioncache.ProbeExpired, nil
	}
}

func sameOrigin(landed, home string) bool {
	return strings.HasPrefix(landed, home) || strings.Contains(landed, trimScheme(home))
}

func trimScheme(url string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(url, prefix) {
			return strings.TrimPrefix(url, prefix)
		}
	}
	return url
}
