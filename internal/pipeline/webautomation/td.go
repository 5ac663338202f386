package webautomation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wagid-sheikh/simplify-downloader/internal/clock"
	pipelineerrors "github.com/wagid-sheikh/simplify-downloader/internal/errors"
	"github.com/wagid-sheikh/simplify-downloader/internal/logging"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/sessioncache"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/storeregistry"
)

// td.go implements the TD Orders+Sales flow: a single logged-in
// context drives two independent report containers (Order Report,
// Sales & Delivery Report), each producing one xlsx download.

const (
	tdOrderReportFrame = "#ifrmReport"

	tdExpandLocator           = "text=Expand"
	tdDownloadHistoricalLink  = "text=Download historical report"
	tdGenerateReportButton    = "text=Generate Report"
	tdFromDateInput           = "#fromDate"
	tdToDateInput             = "#toDate"
	tdRequestReportButton     = "text=Request Report"
	tdReportRequestsTableRow  = "#reportRequestsTable tbody tr:first-child"
)

// TDReportSpec names the single difference between the Orders and
// Sales & Delivery containers: whether the Expand step runs first.
type TDReportSpec struct {
	Kind          ReportKind
	ContainerLink string // nav link clicked from the TD home page
	RequiresExpand bool
}

// TDOrdersSpec and TDSalesSpec are the two containers spec §4.6.1
// drives from a single TD context.
var TDOrdersSpec = TDReportSpec{Kind: ReportTDOrders, ContainerLink: "text=Order Report", RequiresExpand: true}
var TDSalesSpec = TDReportSpec{Kind: ReportTDSales, ContainerLink: "text=Sales & Delivery Report", RequiresExpand: false}

// RunTDFlow opens a context from state and then always performs the
// login sequence, whether or not state was supplied; it does not probe
// whether a restored session is still valid. It then drives each
// container in specs against window, returning one Download per
// container in the same order. It returns the session state to persist
// regardless of per-container failures that occurred after login.
func RunTDFlow(ctx context.Context, a Adapter, storeCode string, cfg storeregistry.SyncConfig,
	state sessioncache.State, window clock.Window, specs []TDReportSpec, logger logging.Logger) ([]Download, sessioncache.State, error) {

	logger = logging.OrNop(logger)

	if err := a.OpenContext(ctx, state); err != nil {
		return nil, nil, err
	}

	if err := tdLogin(ctx, a, storeCode, cfg); err != nil {
		return nil, nil, err
	}

	downloads := make([]Download, 0, len(specs))
	for _, spec := range specs {
		dl, err := tdRunContainer(ctx, a, spec, window, logger)
		if err != nil {
			return downloads, tdSaveStateBestEffort(ctx, a, logger), err
		}
		downloads = append(downloads, dl)
	}

	return downloads, tdSaveStateBestEffort(ctx, a, logger), nil
}

func tdSaveStateBestEffort(ctx context.Context, a Adapter, logger logging.Logger) sessioncache.State {
	state, err := a.SaveState(ctx)
	if err != nil {
		logger.Warn("could not capture session state after TD flow: %v", err)
		return nil
	}
	return state
}

func tdLogin(ctx context.Context, a Adapter, storeCode string, cfg storeregistry.SyncConfig) error {
	sel := cfg.LoginSelectors

	if err := a.Navigate(ctx, cfg.URLs.Login); err != nil {
		return err
	}
	if err := a.Fill(ctx, sel.Username, cfg.Username); err != nil {
		return pipelineerrors.New(pipelineerrors.KindAuth, "webautomation.tdLogin", "could not fill username", err)
	}
	if err := a.Fill(ctx, sel.Password, cfg.Password); err != nil {
		return pipelineerrors.New(pipelineerrors.KindAuth, "webautomation.tdLogin", "could not fill password", err)
	}
	if err := a.Click(ctx, sel.Submit); err != nil {
		return pipelineerrors.New(pipelineerrors.KindAuth, "webautomation.tdLogin", "could not submit login", err)
	}

	url, err := a.CurrentURL(ctx)
	if err != nil {
		return pipelineerrors.New(pipelineerrors.KindAuth, "webautomation.tdLogin", "could not confirm landing page", err)
	}
	if !strings.Contains(url, storeCode) {
		return pipelineerrors.New(pipelineerrors.KindAuth, "webautomation.tdLogin",
			fmt.Sprintf("landing URL %q does not confirm store %q, login likely rejected", url, storeCode), nil)
	}
	return nil
}

func tdRunContainer(ctx context.Context, a Adapter, spec TDReportSpec, window clock.Window, logger logging.Logger) (Download, error) {
	if err := a.Click(ctx, spec.ContainerLink); err != nil {
		return Download{}, pipelineerrors.New(pipelineerrors.KindLayoutDrift, "webautomation.tdRunContainer",
			fmt.Sprintf("could not open container %q", spec.ContainerLink), err)
	}
	if err := a.EnterFrame(ctx, tdOrderReportFrame); err != nil {
		return Download{}, err
	}

	hydrated, err := a.WaitVisible(ctx, tdExpandLocator, tdDownloadHistoricalLink, tdGenerateReportButton)
	if err != nil {
		return Download{}, err
	}

	if spec.RequiresExpand && hydrated == tdExpandLocator {
		if err := a.Click(ctx, tdExpandLocator); err != nil {
			return Download{}, pipelineerrors.New(pipelineerrors.KindLayoutDrift, "webautomation.tdRunContainer",
				"could not click Expand", err)
		}
		if _, err := a.WaitVisible(ctx, tdDownloadHistoricalLink); err != nil {
			return Download{}, err
		}
	}

	if err := a.Click(ctx, tdDownloadHistoricalLink); err != nil {
		return Download{}, pipelineerrors.New(pipelineerrors.KindLayoutDrift, "webautomation.tdRunContainer",
			"could not click Download historical report", err)
	}
	if _, err := a.WaitVisible(ctx, tdGenerateReportButton); err != nil {
		return Download{}, err
	}
	if err := a.Click(ctx, tdGenerateReportButton); err != nil {
		return Download{}, pipelineerrors.New(pipelineerrors.KindLayoutDrift, "webautomation.tdRunContainer",
			"could not click Generate Report", err)
	}

	if err := a.Fill(ctx, tdFromDateInput, window.From.String()); err != nil {
		return Download{}, pipelineerrors.New(pipelineerrors.KindLayoutDrift, "webautomation.tdRunContainer",
			"could not fill from-date", err)
	}
	if err := a.Fill(ctx, tdToDateInput, window.To.String()); err != nil {
		return Download{}, pipelineerrors.New(pipelineerrors.KindLayoutDrift, "webautomation.tdRunContainer",
			"could not fill to-date", err)
	}

	wantLabel := tdWindowLabel(window)
	download, err := a.ExpectDownload(ctx, func(ctx context.Context) error {
		if err := a.Click(ctx, tdRequestReportButton); err != nil {
			return pipelineerrors.New(pipelineerrors.KindLayoutDrift, "webautomation.tdRunContainer",
				"could not click Request Report", err)
		}
		_, err := a.WaitText(ctx, tdReportRequestsTableRow, func(text string) bool {
			return strings.Contains(text, wantLabel)
		}, 3*time.Second)
		return err
	})
	if err != nil {
		return Download{}, err
	}

	_ = a.EnterFrame(ctx, "") // back to top-level document before the next container
	return download, nil
}

// tdWindowLabel renders the "{DD Mon YYYY} - {DD Mon YYYY}" label the
// Report Requests table shows for a submitted window.
func tdWindowLabel(window clock.Window) string {
	from := time.Date(window.From.Year, window.From.Month, window.From.Day, 0, 0, 0, 0, time.UTC)
	to := time.Date(window.To.Year, window.To.Month, window.To.Day, 0, 0, 0, 0, time.UTC)
	return fmt.Sprintf("%s - %s", from.Format("02 Jan 2006"), to.Format("02 Jan 2006"))
}
