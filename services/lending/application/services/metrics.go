package services

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/ghuser/lendingclub/pkg/logger"
)

type lendingMetrics struct {
	day                metric.Int64Gauge
	transfers          metric.Int64Counter
	creditsTransferred metric.Float64Counter
	settlementFailures metric.Int64Counter
	contractsSigned    metric.Int64Counter
	itemsListed        metric.Int64Counter
}

// newLendingMetrics registers the lending instruments on meter. An instrument
// that fails to register falls back to a no-op so the service keeps running.
func newLendingMetrics(meter metric.Meter, log logger.Logger) *lendingMetrics {
	nop := noop.NewMeterProvider().Meter("lending")
	warn := func(name string, err error) {
		log.Warn("metric instrument unavailable", "instrument", name, "error", err)
	}

	m := &lendingMetrics{}
	var err error
	if m.day, err = meter.Int64Gauge("lending.day",
		metric.WithDescription("Current day of the lending clock")); err != nil {
		warn("lending.day", err)
		m.day, _ = nop.Int64Gauge("lending.day")
	}
	if m.transfers, err = meter.Int64Counter("lending.settlement.transfers",
		metric.WithDescription("Daily transfers applied by settlement")); err != nil {
		warn("lending.settlement.transfers", err)
		m.transfers, _ = nop.Int64Counter("lending.settlement.transfers")
	}
	if m.creditsTransferred, err = meter.Float64Counter("lending.settlement.credits",
		metric.WithDescription("Credits moved from lendees to owners")); err != nil {
		warn("lending.settlement.credits", err)
		m.creditsTransferred, _ = nop.Float64Counter("lending.settlement.credits")
	}
	if m.settlementFailures, err = meter.Int64Counter("lending.settlement.failures",
		metric.WithDescription("Settlement runs that reported an error")); err != nil {
		warn("lending.settlement.failures", err)
		m.settlementFailures, _ = nop.Int64Counter("lending.settlement.failures")
	}
	if m.contractsSigned, err = meter.Int64Counter("lending.contracts.signed"); err != nil {
		warn("lending.contracts.signed", err)
		m.contractsSigned, _ = nop.Int64Counter("lending.contracts.signed")
	}
	if m.itemsListed, err = meter.Int64Counter("lending.items.listed"); err != nil {
		warn("lending.items.listed", err)
		m.itemsListed, _ = nop.Int64Counter("lending.items.listed")
	}
	return m
}

func (m *lendingMetrics) recordSettlement(ctx context.Context, r DayReport) {
	m.day.Record(ctx, int64(r.Day))
	m.transfers.Add(ctx, int64(len(r.Transfers)))
	total := 0.0
	for _, t := range r.Transfers {
		total += t.Amount
	}
	m.creditsTransferred.Add(ctx, total)
	if r.Failure != "" {
		m.settlementFailures.Add(ctx, 1)
	}
}
