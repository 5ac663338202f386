package webautomation

import (
	"context"
	"fmt"
	"strings"

	"github.com/wagid-sheikh/simplify-downloader/internal/clock"
	pipelineerrors "github.com/wagid-sheikh/simplify-downloader/internal/errors"
	"github.com/wagid-sheikh/simplify-downloader/internal/logging"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/sessioncache"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/storeregistry"
)

// uc.go implements the UC GST flow (spec §4.6.2): a single report,
// behind a date-range overlay, with an explicit no-data banner treated
// as a distinct success outcome rather than a failure.

const (
	ucDateRangeOpenButton = "#gstDateRangeOpen"
	ucStartDateInput      = "#gstStartDate"
	ucEndDateInput        = "#gstEndDate"
	ucApplyButton         = "text=Apply"
	ucOverlay             = "#gstDateRangeOverlay"
	ucNoDataBanner        = "#gstNoDataBanner"
	ucResultsTable        = "#gstResultsTable"
	ucExportButton        = "text=Export Report"
)

// UCOutcome distinguishes a successful empty result from an actual
// download, both of which are successes at the flow level.
type UCOutcome struct {
	Download Download
	NoData   bool
}

// RunUCFlow opens a context from state (probing and re-logging in if
// needed), drives the GST export for window, and returns the session
// state captured after the export step, whether or not the export
// succeeded. If opening the context or logging in fails, no state is
// returned.
func RunUCFlow(ctx context.Context, a Adapter, storeCode string, cfg storeregistry.SyncConfig,
	state sessioncache.State, window clock.Window, prober sessioncache.Prober, cache *sessioncache.Cache,
	logger logging.Logger) (UCOutcome, sessioncache.State, error) {

	logger = logging.OrNop(logger)

	if err := a.OpenContext(ctx, state); err != nil {
		return UCOutcome{}, nil, err
	}

	needsLogin := state == nil
	if !needsLogin && cache != nil && prober != nil {
		probe, err := cache.ProbeState(ctx, storeCode, cfg.URLs.Home, prober)
		if err != nil {
			logger.Warn("session probe failed for %s, re-authenticating: %v", storeCode, err)
			needsLogin = true
		} else if probe != sessioncache.ProbeValid {
			needsLogin = true
		}
	}

	if needsLogin {
		if err := ucLogin(ctx, a, storeCode, cfg); err != nil {
			return UCOutcome{}, nil, err
		}
	}

	outcome, err := ucRunExport(ctx, a, cfg.URLs.OrdersLink, window)
	state = ucSaveStateBestEffort(ctx, a, logger)
	if err != nil {
		return UCOutcome{}, state, err
	}
	return outcome, state, nil
}

func ucSaveStateBestEffort(ctx context.Context, a Adapter, logger logging.Logger) sessioncache.State {
	s, err := a.SaveState(ctx)
	if err != nil {
		logger.Warn("could not capture session state after UC flow: %v", err)
		return nil
	}
	return s
}

func ucLogin(ctx context.Context, a Adapter, storeCode string, cfg storeregistry.SyncConfig) error {
	sel := cfg.LoginSelectors

	if err := a.Navigate(ctx, cfg.URLs.Login); err != nil {
		return err
	}
	if err := a.Fill(ctx, sel.Username, cfg.Username); err != nil {
		return pipelineerrors.New(pipelineerrors.KindAuth, "webautomation.ucLogin", "could not fill email", err)
	}
	if err := a.Fill(ctx, sel.Password, cfg.Password); err != nil {
		return pipelineerrors.New(pipelineerrors.KindAuth, "webautomation.ucLogin", "could not fill password", err)
	}
	if err := a.Click(ctx, sel.Submit); err != nil {
		return pipelineerrors.New(pipelineerrors.KindAuth, "webautomation.ucLogin", "could not submit login", err)
	}

	url, err := a.CurrentURL(ctx)
	if err != nil {
		return pipelineerrors.New(pipelineerrors.KindAuth, "webautomation.ucLogin", "could not confirm landing page", err)
	}
	if !strings.Contains(url, storeCode) {
		return pipelineerrors.New(pipelineerrors.KindAuth, "webautomation.ucLogin",
			fmt.Sprintf("landing URL %q does not confirm store %q, login likely rejected", url, storeCode), nil)
	}
	return nil
}

func ucRunExport(ctx context.Context, a Adapter, ordersURL string, window clock.Window) (UCOutcome, error) {
	if err := a.Navigate(ctx, ordersURL); err != nil {
		return UCOutcome{}, err
	}

	if err := a.Click(ctx, ucDateRangeOpenButton); err != nil {
		return UCOutcome{}, pipelineerrors.New(pipelineerrors.KindLayoutDrift, "webautomation.ucRunExport",
			"could not open date range overlay", err)
	}
	if _, err := a.WaitVisible(ctx, ucOverlay); err != nil {
		return UCOutcome{}, err
	}

	if err := a.Fill(ctx, ucStartDateInput, window.From.String()); err != nil {
		return UCOutcome{}, pipelineerrors.New(pipelineerrors.KindLayoutDrift, "webautomation.ucRunExport",
			"could not fill start date", err)
	}
	if err := a.Fill(ctx, ucEndDateInput, window.To.String()); err != nil {
		return UCOutcome{}, pipelineerrors.New(pipelineerrors.KindLayoutDrift, "webautomation.ucRunExport",
			"could not fill end date", err)
	}
	if err := a.Click(ctx, ucApplyButton); err != nil {
		return UCOutcome{}, pipelineerrors.New(pipelineerrors.KindLayoutDrift, "webautomation.ucRunExport",
			"could not apply date range", err)
	}

	settled, err := a.WaitVisible(ctx, ucNoDataBanner, ucResultsTable)
	if err != nil {
		return UCOutcome{}, err
	}
	if settled == ucNoDataBanner {
		return UCOutcome{NoData: true}, nil
	}

	download, err := a.ExpectDownload(ctx, func(ctx context.Context) error {
		return a.Click(ctx, ucExportButton)
	})
	if err != nil {
		return UCOutcome{}, err
	}
	return UCOutcome{Download: download}, nil
}
