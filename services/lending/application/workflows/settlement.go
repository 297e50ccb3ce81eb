// Package workflows holds the Temporal workflow that drives the lending clock
// under CLOCK_MODE=temporal.
package workflows

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/ghuser/lendingclub/pkg/logger"
	appsvcs "github.com/ghuser/lendingclub/services/lending/application/services"
)

// DailySettlementWorkflowID is the fixed ID of the cron execution, so only
// one schedule exists per namespace however many api replicas start it.
const DailySettlementWorkflowID = "lending-daily-settlement"

// SettlementResult is the serializable outcome of one clock advance.
type SettlementResult struct {
	ClosedDay int     `json:"closed_day"`
	Day       int     `json:"day"`
	Transfers int     `json:"transfers"`
	Credits   float64 `json:"credits"`
	Failure   string  `json:"failure,omitempty"`
}

// Activities wraps the lending clock for Temporal.
type Activities struct {
	Clock appsvcs.DayAdvancer
}

// AdvanceDay settles the closing day. A checkpoint failure is returned as an
// error; the service rolled the day back, so a retry is safe.
func (a *Activities) AdvanceDay(ctx context.Context) (SettlementResult, error) {
	report, err := a.Clock.AdvanceDay(logger.ContextWith(ctx, "clock", "temporal"))
	if err != nil {
		return SettlementResult{}, err
	}
	res := SettlementResult{
		ClosedDay: report.ClosedDay,
		Day:       report.Day,
		Transfers: len(report.Transfers),
		Failure:   report.Failure,
	}
	for _, t := range report.Transfers {
		res.Credits += t.Amount
	}
	activity.GetLogger(ctx).Info("day advanced", "closed_day", res.ClosedDay, "transfers", res.Transfers)
	return res, nil
}

// DailySettlementWorkflow runs one AdvanceDay activity. It is started on a
// cron schedule; each run closes exactly one day.
func DailySettlementWorkflow(ctx workflow.Context) (SettlementResult, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	})

	var a *Activities
	var res SettlementResult
	if err := workflow.ExecuteActivity(ctx, a.AdvanceDay).Get(ctx, &res); err != nil {
		return SettlementResult{}, err
	}
	if res.Failure != "" {
		workflow.GetLogger(ctx).Warn("settlement reported failures",
			"closed_day", res.ClosedDay, "failure", res.Failure)
	}
	return res, nil
}

// Register adds the workflow and its activities to w.
func Register(w worker.Worker, clock appsvcs.DayAdvancer) {
	w.RegisterWorkflow(DailySettlementWorkflow)
	w.RegisterActivity(&Activities{Clock: clock})
}
