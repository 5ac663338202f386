// Package webautomation implements the Web Automation Adapter: a narrow
// capability interface over browser automation, plus the two concrete
// flows (TD orders+sales, UC GST) that drive it per store.
//
// Per spec §9 ("coroutine/async control flow... modeled as a sequential
// state machine whose steps are functions returning outcomes"), the
// adapter interface hides whether the underlying automation library is
// sync or async; the concrete implementation in chromedp_adapter.go
// happens to be backed by a library with callback/channel-based
// eventing (chromedp), translated here into plain blocking calls.
package webautomation

import (
	"context"
	"time"

	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/sessioncache"
)

// Download is a captured file: the bytes plus the name the site
// suggested for it (not necessarily the name under which it is
// ultimately persisted — see BuildFilename).
type Download struct {
	Bytes         []byte
	SuggestedName string
}

// Adapter is the capability set the spec's two flows are written
// against (spec §4.6): open a context from saved session state,
// navigate, fill/click, descend into an iframe, wait for a locator, and
// capture a download triggered by an action. Every method honors ctx
// cancellation at its wait points (spec §4.6: "the adapter must honor a
// cooperative cancel token at every wait point").
type Adapter interface {
	// OpenContext starts a fresh browser context, restoring state if
	// non-nil.
	OpenContext(ctx context.Context, state sessioncache.State) error

	// Navigate loads url in the current context.
	Navigate(ctx context.Context, url string) error

	// Fill sets an input's value.
	Fill(ctx context.Context, selector, value string) error

	// Click clicks an element located by selector.
	Click(ctx context.Context, selector string) error

	// EnterFrame switches the adapter's active frame to the iframe
	// matched by selector. An empty selector returns to the top-level
	// document.
	EnterFrame(ctx context.Context, selector string) error

	// WaitVisible blocks until any of the given locators becomes
	// visible, or ctx/deadline expires.
	WaitVisible(ctx context.Context, locators ...string) (matched string, err error)

	// WaitText blocks until selector's text content satisfies pred, or
	// ctx/deadline expires. Used for polling tables (e.g. the Report
	// Requests table, or the GST row count).
	WaitText(ctx context.Context, selector string, pred func(text string) bool, poll time.Duration) (string, error)

	// ExpectDownload runs action and returns the file it triggers,
	// scoped so only a download starting during action's execution is
	// captured.
	ExpectDownload(ctx context.Context, action func(ctx context.Context) error) (Download, error)

	// CurrentURL returns the active page's URL, used to verify
	// post-login landing.
	CurrentURL(ctx context.Context) (string, error)

	// SaveState serializes the context's current storage state.
	SaveState(ctx context.Context) (sessioncache.State, error)

	// Close tears down the browser context. Safe to call more than
	// once.
	Close(ctx context.Context) error
}

// Factory constructs a fresh Adapter. The sync engine calls it once per
// window attempt, so an adapter is never reused after a failed attempt;
// a window whose attempts keep failing with errors that IsTransient
// accepts builds up to DefaultRetryConfig().MaxAttempts+1 adapters.
type Factory func() Adapter
