package notify

import (
	"context"
	"fmt"

	"github.com/wagid-sheikh/simplify-downloader/internal/logging"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/domain"
	"github.com/wagid-sheikh/simplify-downloader/internal/pipeline/runsummary"
)

// RunContext carries the information about a finished run that the
// dispatcher needs but cannot derive from the database alone.
type RunContext struct {
	RunID        string
	PipelineName string
	Env          string
	From         string // SMTP From address
	RunVars      map[string]string
	PerStoreVars map[string]map[string]string
}

// Dispatcher composes the Store and Transport into the full
// notification-dispatch procedure of one finished run.
type Dispatcher struct {
	store      *Store
	transport  Transport
	runsummary *runsummary.Store
	logger     logging.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store *Store, transport Transport, runsummaryStore *runsummary.Store, logger logging.Logger) *Dispatcher {
	return &Dispatcher{store: store, transport: transport, runsummary: runsummaryStore, logger: logging.OrNop(logger)}
}

// Dispatch sends every eligible plan for rc's run: loads the run's
// documents, walks each active profile bound to rc.PipelineName,
// builds and renders its plans, and sends each one not already
// recorded in notification_dispatch_log. A send failure is recorded
// against that one plan and downgrades the run's overall_status from
// ok to warning; it never aborts the remaining plans or returns an
// error itself, since a notification failure must not make an
// otherwise-successful sync run look failed.
func (d *Dispatcher) Dispatch(ctx context.Context, rc RunContext) error {
	documents, err := d.store.LoadDocumentsForRun(ctx, rc.RunID)
	if err != nil {
		return fmt.Errorf("dispatch(%s): %w", rc.RunID, err)
	}

	profiles, err := d.store.ActiveProfiles(ctx, rc.PipelineName)
	if err != nil {
		return fmt.Errorf("dispatch(%s): %w", rc.RunID, err)
	}

	var anyFailure bool
	for _, profile := range profiles {
		templates, err := d.store.ActiveTemplates(ctx, profile.ID)
		if err != nil {
			d.logger.Warn("dispatch(%s): load templates for profile %d: %v", rc.RunID, profile.ID, err)
			continue
		}
		if len(templates) == 0 {
			continue
		}

		recipients, err := d.store.ActiveRecipients(ctx, profile.ID, rc.Env)
		if err != nil {
			d.logger.Warn("dispatch(%s): load recipients for profile %d: %v", rc.RunID, profile.ID, err)
			continue
		}

		for _, template := range templates {
			plans := BuildPlans(profile, template, recipients, documents, rc.RunVars, rc.PerStoreVars)
			for _, plan := range plans {
				if failed := d.sendPlan(ctx, rc, plan); failed {
					anyFailure = true
				}
			}
		}
	}

	if anyFailure && d.runsummary != nil {
		if err := d.runsummary.DowngradeStatus(ctx, rc.RunID, domain.RunOK, domain.RunWarning); err != nil {
			d.logger.Warn("dispatch(%s): downgrade run status: %v", rc.RunID, err)
		}
	}

	return nil
}

// sendPlan sends one plan unless already recorded, and always records
// the attempt (success or failure) for idempotency. Returns true if the
// send failed.
func (d *Dispatcher) sendPlan(ctx context.Context, rc RunContext, plan Plan) bool {
	done, err := d.store.AlreadyDispatched(ctx, rc.RunID, plan.ProfileID, plan.StoreCode)
	if err != nil {
		d.logger.Warn("dispatch(%s): idempotency check failed for profile %d store %q: %v",
			rc.RunID, plan.ProfileID, plan.StoreCode, err)
		return false
	}
	if done {
		return false
	}

	sendErr := d.transport.Send(ctx, rc.From, plan)
	errMessage := ""
	if sendErr != nil {
		errMessage = sendErr.Error()
		d.logger.Warn("dispatch(%s): send failed for profile %d store %q: %v",
			rc.RunID, plan.ProfileID, plan.StoreCode, sendErr)
	}

	if err := d.store.RecordDispatch(ctx, rc.RunID, plan.ProfileID, plan.StoreCode, errMessage); err != nil {
		d.logger.Warn("dispatch(%s): record dispatch failed for profile %d store %q: %v",
			rc.RunID, plan.ProfileID, plan.StoreCode, err)
	}

	return sendErr != nil
}
