// internal/app/dispatch_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"week_notification_agent/internal/domain/contract"
	"week_notification_agent/internal/domain/messaging"
	"week_notification_agent/internal/domain/notification"
	idb "week_notification_agent/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrStoreFailure marks a tick aborted because persistence was unavailable.
var ErrStoreFailure = errors.New("contract or catalog store unavailable")

// Delivery attempt outcomes reported to DispatchMetrics.
const (
	DeliverySent        = "sent"
	DeliverySinkFailed  = "sink_failed"
	DeliveryStoreFailed = "store_failed"
)

// recordTimeout bounds the ledger write that follows an accepted send.
const recordTimeout = 5 * time.Second

// DispatchService runs reconciliation passes over all active contracts.
type DispatchService interface {
	// Tick delivers every due and not yet delivered notification once.
	Tick(ctx context.Context) (*TickReport, error)
}

// DispatchMetrics receives tick and delivery outcomes.
type DispatchMetrics interface {
	TickFinished(result string, elapsed time.Duration, contracts int)
	DeliveryAttempted(result string)
}

// TickReport summarizes one reconciliation pass.
type TickReport struct {
	TickID      string
	Contracts   int // Active contracts evaluated
	Sent        int
	SinkFailed  int
	StoreFailed int
}

// Dispatcher implements DispatchService.
type Dispatcher struct {
	contracts   contract.Repository
	catalog     notification.Catalog
	ledger      notification.Ledger
	sink        messaging.Sink
	locks       *ContractLocks
	metrics     DispatchMetrics
	logger      *logrus.Entry
	sinkTimeout time.Duration
	now         func() time.Time
}

func NewDispatcher(
	cr contract.Repository,
	catalog notification.Catalog,
	ledger notification.Ledger,
	sink messaging.Sink,
	locks *ContractLocks,
	metrics DispatchMetrics,
	logger *logrus.Entry,
	sinkTimeout time.Duration,
) *Dispatcher {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Dispatcher{
		contracts:   cr,
		catalog:     catalog,
		ledger:      ledger,
		sink:        sink,
		locks:       locks,
		metrics:     metrics,
		logger:      logger,
		sinkTimeout: sinkTimeout,
		now:         time.Now,
	}
}

// InLocation makes the calendar day, and therefore the week, follow loc.
func (d *Dispatcher) InLocation(loc *time.Location) {
	d.now = func() time.Time { return time.Now().In(loc) }
}

// Tick fetches active contracts and the catalog, then evaluates every rule for every contract.
// Failing to read contracts or the catalog aborts the pass before anything is sent.
// Failures of a single pair are logged and leave the pair eligible for the next tick.
func (d *Dispatcher) Tick(ctx context.Context) (*TickReport, error) {
	started := time.Now()
	report := &TickReport{TickID: uuid.NewString()}
	log := d.logger.WithField("tick_id", report.TickID)

	contracts, err := d.contracts.ListActive(ctx)
	if err != nil {
		d.metrics.TickFinished("aborted", time.Since(started), 0)
		return report, fmt.Errorf("%w: list active contracts: %w", ErrStoreFailure, err)
	}
	rules, err := d.catalog.ListRules(ctx)
	if err != nil {
		d.metrics.TickFinished("aborted", time.Since(started), 0)
		return report, fmt.Errorf("%w: list notification rules: %w", ErrStoreFailure, err)
	}
	log.WithFields(logrus.Fields{
		"contracts": len(contracts),
		"rules":     len(rules),
	}).Debug("Reconciliation started")

	today := d.now()
	for _, c := range contracts {
		if err := ctx.Err(); err != nil {
			// Deliveries recorded so far stand; the rest is picked up after restart.
			d.metrics.TickFinished("interrupted", time.Since(started), report.Contracts)
			return report, fmt.Errorf("tick interrupted: %w", err)
		}
		d.reconcileContract(ctx, log, c.ID, rules, today, report)
	}
	if err := ctx.Err(); err != nil {
		d.metrics.TickFinished("interrupted", time.Since(started), report.Contracts)
		return report, fmt.Errorf("tick interrupted: %w", err)
	}

	d.metrics.TickFinished("completed", time.Since(started), report.Contracts)
	log.WithFields(logrus.Fields{
		"contracts":    report.Contracts,
		"sent":         report.Sent,
		"sink_failed":  report.SinkFailed,
		"store_failed": report.StoreFailed,
		"duration":     time.Since(started).String(),
	}).Info("Reconciliation finished")
	return report, nil
}

// reconcileContract evaluates all rules for one contract under its lock.
// The contract is re-read so a concurrent removal or settings change is honored.
func (d *Dispatcher) reconcileContract(ctx context.Context, log *logrus.Entry, contractID int64, rules []*notification.Rule, today time.Time, report *TickReport) {
	unlock := d.locks.Lock(contractID)
	defer unlock()

	log = log.WithField("contract_id", contractID)
	c, err := d.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, idb.ErrContractNotFound) {
			log.Info("Contract removed during tick, skipping")
			return
		}
		log.WithError(err).Error("Failed to reload contract, will retry next tick")
		report.StoreFailed++
		d.metrics.DeliveryAttempted(DeliveryStoreFailed)
		return
	}
	if !c.IsActive() {
		log.Info("Contract lost its start date during tick, skipping")
		return
	}
	report.Contracts++

	elapsed := notification.ElapsedWeeks(c.StartDate.Time, today)
	for _, rule := range rules {
		if ctx.Err() != nil {
			return
		}
		if !rule.AppliesTo(c.Presets) || !rule.IsDue(elapsed) {
			continue
		}
		ruleLog := log.WithFields(logrus.Fields{
			"notification_id": rule.ID,
			"elapsed_weeks":   elapsed,
		})

		delivered, err := d.ledger.Has(ctx, rule.ID, c.ID)
		if err != nil {
			ruleLog.WithError(err).Error("Failed to check delivery ledger, will retry next tick")
			report.StoreFailed++
			d.metrics.DeliveryAttempted(DeliveryStoreFailed)
			continue
		}
		if delivered {
			continue
		}

		if err := d.send(ctx, c.ID, rule); err != nil {
			ruleLog.WithError(err).Warn("Failed to deliver notification, will retry next tick")
			report.SinkFailed++
			d.metrics.DeliveryAttempted(DeliverySinkFailed)
			continue
		}

		if err := d.record(ctx, rule.ID, c.ID); err != nil {
			if errors.Is(err, idb.ErrAlreadyDelivered) {
				ruleLog.Warn("Delivery was already recorded")
				continue
			}
			// The message went out but the pair stays eligible: at-least-once.
			ruleLog.WithError(err).Error("Notification sent but not recorded")
			report.StoreFailed++
			d.metrics.DeliveryAttempted(DeliveryStoreFailed)
			continue
		}
		report.Sent++
		d.metrics.DeliveryAttempted(DeliverySent)
		ruleLog.Info("Notification delivered")
	}
}

func (d *Dispatcher) send(ctx context.Context, contractID int64, rule *notification.Rule) error {
	if d.sinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sinkTimeout)
		defer cancel()
	}
	return d.sink.Send(ctx, contractID, rule.Text, rule.InfoMaterials.String)
}

// record stores an accepted delivery even when ctx was cancelled after the send.
func (d *Dispatcher) record(ctx context.Context, notificationID, contractID int64) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	return d.ledger.Record(ctx, notificationID, contractID)
}

type noopMetrics struct{}

func (noopMetrics) TickFinished(string, time.Duration, int) {}
func (noopMetrics) DeliveryAttempted(string) {}
