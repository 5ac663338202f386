package webautomation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	pipelineerrors "github.com/wagid-sheikh/simplify-downloader/internal/errors"
	"github.com/wagid-sheikh/simplify-downloader/internal/logging"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/sessioncache"
)

// chromedpAdapter is the concrete Adapter backed by
// github.com/chromedp/chromedp (pure-Go Chrome DevTools Protocol
// client). Not grounded in any pack repo — see DESIGN.md.
type chromedpAdapter struct {
	headless    bool
	downloadDir string
	logger      logging.Logger

	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	mu        sync.Mutex
	frameNode *cdp.Node // nil means the top-level document
}

// NewChromedpAdapter returns a Factory producing chromedp-backed
// adapters. headless should be true whenever the process has no TTY
// (spec §6: "a non-interactive flag... forces headless browser mode").
func NewChromedpAdapter(headless bool, downloadDir string, logger logging.Logger) Factory {
	return func() Adapter {
		return &chromedpAdapter{
			headless:    headless,
			downloadDir: downloadDir,
			logger:      logging.OrNop(logger),
		}
	}
}

func (a *chromedpAdapter) OpenContext(ctx context.Context, state sessioncache.State) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", a.headless))
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(a.downloadDir).WithEventsEnabled(true).Do(ctx)
	})); err != nil {
		allocCancel()
		cancel()
		return pipelineerrors.New(pipelineerrors.KindTransport, "webautomation.OpenContext",
			"starting browser context", err)
	}

	a.allocCancel = allocCancel
	a.ctx = browserCtx
	a.cancel = cancel

	if state != nil {
		if err := a.restoreState(browserCtx, state); err != nil {
			return err
		}
	}

	return nil
}

func (a *chromedpAdapter) restoreState(ctx context.Context, state sessioncache.State) error {
	cookies, err := decodeCookies(state)
	if err != nil {
		a.logger.Warn("storage state is not a recognized cookie jar, starting fresh: %v", err)
		return nil
	}
	var actions []chromedp.Action
	for _, c := range cookies {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return c.Do(ctx)
		}))
	}
	if len(actions) == 0 {
		return nil
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return pipelineerrors.New(pipelineerrors.KindTransport, "webautomation.restoreState", "restoring cookies", err)
	}
	return nil
}

func (a *chromedpAdapter) Navigate(ctx context.Context, url string) error {
	if err := chromedp.Run(a.ctx, chromedp.Navigate(url)); err != nil {
		return classifyChromeErr("webautomation.Navigate", err)
	}
	return nil
}

func (a *chromedpAdapter) frameOpts() []chromedp.QueryOption {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frameNode == nil {
		return nil
	}
	return []chromedp.QueryOption{chromedp.FromNode(a.frameNode)}
}

func (a *chromedpAdapter) Fill(ctx context.Context, selector, value string) error {
	opts := append([]chromedp.QueryOption{chromedp.ByQuery}, a.frameOpts()...)
	if err := chromedp.Run(a.ctx, chromedp.SetValue(selector, value, opts...)); err != nil {
		return classifyChromeErr("webautomation.Fill", err)
	}
	return nil
}

func (a *chromedpAdapter) Click(ctx context.Context, selector string) error {
	opts := append([]chromedp.QueryOption{chromedp.ByQuery}, a.frameOpts()...)
	if err := chromedp.Run(a.ctx, chromedp.Click(selector, opts...)); err != nil {
		return classifyChromeErr("webautomation.Click", err)
	}
	return nil
}

func (a *chromedpAdapter) EnterFrame(ctx context.Context, selector string) error {
	if selector == "" {
		a.mu.Lock()
		a.frameNode = nil
		a.mu.Unlock()
		return nil
	}

	var nodes []*cdp.Node
	if err := chromedp.Run(a.ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery)); err != nil {
		return pipelineerrors.New(pipelineerrors.KindLayoutDrift, "webautomation.EnterFrame",
			fmt.Sprintf("iframe %q not found", selector), err)
	}
	if len(nodes) == 0 {
		return pipelineerrors.New(pipelineerrors.KindLayoutDrift, "webautomation.EnterFrame",
			fmt.Sprintf("iframe %q matched no elements", selector), nil)
	}

	a.mu.Lock()
	a.frameNode = nodes[0]
	a.mu.Unlock()
	return nil
}

func (a *chromedpAdapter) WaitVisible(ctx context.Context, locators ...string) (string, error) {
	deadline, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	type result struct {
		locator string
		err     error
	}
	results := make(chan result, len(locators))

	for _, loc := range locators {
		loc := loc
		go func() {
			opts := append([]chromedp.QueryOption{chromedp.ByQuery}, a.frameOpts()...)
			err := chromedp.Run(a.ctx, chromedp.WaitVisible(loc, opts...))
			results <- result{locator: loc, err: err}
		}()
	}

	for i := 0; i < len(locators); i++ {
		select {
		case r := <-results:
			if r.err == nil {
				return r.locator, nil
			}
		case <-deadline.Done():
			return "", pipelineerrors.New(pipelineerrors.KindTimeout, "webautomation.WaitVisible",
				fmt.Sprintf("none of %v became visible in time", locators), deadline.Err())
		}
	}
	return "", pipelineerrors.New(pipelineerrors.KindLayoutDrift, "webautomation.WaitVisible",
		fmt.Sprintf("none of %v became visible", locators), nil)
}

func (a *chromedpAdapter) WaitText(ctx context.Context, selector string, pred func(string) bool, poll time.Duration) (string, error) {
	deadline, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		var text string
		opts := append([]chromedp.QueryOption{chromedp.ByQuery}, a.frameOpts()...)
		if err := chromedp.Run(a.ctx, chromedp.Text(selector, &text, opts...)); err == nil && pred(text) {
			return text, nil
		}

		select {
		case <-ticker.C:
			continue
		case <-deadline.Done():
			return "", pipelineerrors.New(pipelineerrors.KindTimeout, "webautomation.WaitText",
				fmt.Sprintf("%q never satisfied the expected condition", selector), deadline.Err())
		case <-ctx.Done():
			return "", pipelineerrors.New(pipelineerrors.KindCancelled, "webautomation.WaitText", "", ctx.Err())
		}
	}
}

func (a *chromedpAdapter) ExpectDownload(ctx context.Context, action func(ctx context.Context) error) (Download, error) {
	done := make(chan string, 1)
	listenCtx, stopListening := context.WithCancel(a.ctx)
	defer stopListening()

	chromedp.ListenTarget(listenCtx, func(ev any) {
		if e, ok := ev.(*page.EventDownloadWillBegin); ok {
			select {
			case done <- e.SuggestedFilename:
			default:
			}
		}
	})

	if err := action(ctx); err != nil {
		return Download{}, err
	}

	select {
	case suggested := <-done:
		deadline := time.Now().Add(60 * time.Second)
		path := filepath.Join(a.downloadDir, suggested)
		for time.Now().Before(deadline) {
			if data, err := os.ReadFile(path); err == nil {
				return Download{Bytes: data, SuggestedName: suggested}, nil
			}
			time.Sleep(250 * time.Millisecond)
		}
		return Download{}, pipelineerrors.New(pipelineerrors.KindDownload, "webautomation.ExpectDownload",
			fmt.Sprintf("download %q never finished writing", suggested), nil)
	case <-ctx.Done():
		return Download{}, pipelineerrors.New(pipelineerrors.KindCancelled, "webautomation.ExpectDownload", "", ctx.Err())
	case <-time.After(60 * time.Second):
		return Download{}, pipelineerrors.New(pipelineerrors.KindDownload, "webautomation.ExpectDownload",
			"no download event observed", nil)
	}
}

func (a *chromedpAdapter) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := chromedp.Run(a.ctx, chromedp.Location(&url)); err != nil {
		return "", classifyChromeErr("webautomation.CurrentURL", err)
	}
	return url, nil
}

func (a *chromedpAdapter) SaveState(ctx context.Context) (sessioncache.State, error) {
	var cookies []*cdpCookie
	if err := chromedp.Run(a.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := listCookies(ctx)
		cookies = raw
		return err
	})); err != nil {
		return nil, pipelineerrors.New(pipelineerrors.KindTransport, "webautomation.SaveState", "reading cookies", err)
	}
	return encodeCookies(cookies)
}

func (a *chromedpAdapter) Close(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.allocCancel != nil {
		a.allocCancel()
	}
	return nil
}

func classifyChromeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if err == context.DeadlineExceeded || err == context.Canceled {
		return pipelineerrors.New(pipelineerrors.KindCancelled, op, "", err)
	}
	return pipelineerrors.New(pipelineerrors.KindTransport, op, "browser automation call failed", err)
}
