// Package reconcile propagates confirmed stock deltas to the catalog's
// quantity of record. Dispatch is best effort: failures become warnings and
// never undo the committed document status.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/clients"
)

// Direction selects how line amounts are applied.
type Direction string

const (
	// DirectionIncrease adds each amount.
	DirectionIncrease Direction = "INCREASE"
	// DirectionDecrease subtracts each amount.
	DirectionDecrease Direction = "DECREASE"
	// DirectionDelta applies signed amounts; zero lines are skipped.
	DirectionDelta Direction = "DELTA"
)

// Adjuster issues relative quantity adjustments.
type Adjuster interface {
	IncreaseQuantity(ctx context.Context, productID, amount int64) error
	DecreaseQuantity(ctx context.Context, productID, amount int64) error
}

// Ref identifies the document being dispatched, for logs and metrics.
type Ref struct {
	Family string
	ID     int64
	Code   string
}

// Line is one product delta.
type Line struct {
	ProductID int64
	Amount    int64
}

// Warning records a line whose adjustment did not reach the catalog.
type Warning struct {
	ProductID int64  `json:"productId"`
	Message   string `json:"message"`
}

// Dispatcher applies document lines one by one in order.
type Dispatcher struct {
	adjuster Adjuster
	policy   clients.Policy
	logger   *slog.Logger
	calls    *prometheus.CounterVec
}

// NewDispatcher constructs a dispatcher. A nil registerer skips metrics.
func NewDispatcher(adjuster Adjuster, policy clients.Policy, logger *slog.Logger, registerer prometheus.Registerer) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{adjuster: adjuster, policy: policy, logger: logger}
	if registerer != nil {
		d.calls = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warehouse_reconcile_calls_total",
			Help: "Catalog quantity adjustments partitioned by direction and result.",
		}, []string{"direction", "result"})
		registerer.MustRegister(d.calls)
	}
	return d
}

// Apply pushes every line to the catalog and returns one warning per failed
// line, in line order.
func (d *Dispatcher) Apply(ctx context.Context, ref Ref, lines []Line, direction Direction) []Warning {
	var warnings []Warning
	for _, line := range lines {
		op, amount, ok := resolve(direction, line.Amount)
		if !ok {
			continue
		}
		start := time.Now()
		err := d.policy.Call(ctx, func(ctx context.Context) error {
			if op == DirectionIncrease {
				return d.adjuster.IncreaseQuantity(ctx, line.ProductID, amount)
			}
			return d.adjuster.DecreaseQuantity(ctx, line.ProductID, amount)
		})
		if err != nil {
			reason := err.Error()
			if clients.IsTimeout(err) {
				reason = "timed out"
			}
			msg := fmt.Sprintf("product %d: %s by %d not applied: %s", line.ProductID, verb(op), amount, reason)
			warnings = append(warnings, Warning{ProductID: line.ProductID, Message: msg})
			d.observe(op, "failure")
			d.logger.Warn("reconcile line failed",
				slog.String("family", ref.Family),
				slog.Int64("document_id", ref.ID),
				slog.String("code", ref.Code),
				slog.Int64("product_id", line.ProductID),
				slog.Int64("amount", amount),
				slog.Duration("elapsed", time.Since(start)),
				slog.Any("error", err),
			)
			continue
		}
		d.observe(op, "success")
	}
	return warnings
}

func (d *Dispatcher) observe(op Direction, result string) {
	if d.calls != nil {
		d.calls.WithLabelValues(string(op), result).Inc()
	}
}

// resolve maps a line to a concrete increase or decrease call.
func resolve(direction Direction, amount int64) (Direction, int64, bool) {
	switch direction {
	case DirectionIncrease:
		return DirectionIncrease, amount, amount > 0
	case DirectionDecrease:
		return DirectionDecrease, amount, amount > 0
	case DirectionDelta:
		switch {
		case amount > 0:
			return DirectionIncrease, amount, true
		case amount < 0:
			return DirectionDecrease, -amount, true
		}
	}
	return "", 0, false
}

func verb(op Direction) string {
	if op == DirectionIncrease {
		return "increase"
	}
	return "decrease"
}
