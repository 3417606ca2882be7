package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"week_notification_agent/internal/app" // For DispatchService interface
	"week_notification_agent/internal/infra/lease"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const leaseReleaseTimeout = 5 * time.Second

// Alerter forwards operational failures to a human.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// NotificationScheduler drives reconciliation passes from a cron schedule and
// on demand. Passes never overlap: a single worker runs them one after another
// and requests arriving during a pass collapse into one follow-up pass.
type NotificationScheduler struct {
	cronEngine   *cron.Cron
	dispatcher   app.DispatchService
	lease        lease.Lease
	alerter      Alerter // Optional
	logger       *logrus.Entry
	cronSpecTick string
	tickTimeout  time.Duration

	tickMu   sync.Mutex    // Held for the whole pass, including RunOnce callers
	triggers chan struct{} // Capacity 1 so pending requests coalesce
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{} // Closed when the worker exits; nil until Start
}

func NewNotificationScheduler(
	dispatcher app.DispatchService,
	tickLease lease.Lease,
	alerter Alerter,
	logger *logrus.Entry,
	cronSpecTick string, // e.g., "@every 5m"
	tickTimeout time.Duration,
	loc *time.Location,
) *NotificationScheduler {
	if tickLease == nil {
		tickLease = lease.Local{}
	}
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	cronLogger := cron.PrintfLogger(logger.WithField("subsystem", "cron"))
	return &NotificationScheduler{
		cronEngine:   cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger))),
		dispatcher:   dispatcher,
		lease:        tickLease,
		alerter:      alerter,
		logger:       logger,
		cronSpecTick: cronSpecTick,
		tickTimeout:  tickTimeout,
		triggers:     make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start registers the cron job and launches the worker.
func (s *NotificationScheduler) Start() error {
	s.logger.Info("Starting notification scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecTick, func() {
		s.logger.Debug("Cron job triggered reconciliation.")
		s.Trigger()
	})
	if err != nil {
		return fmt.Errorf("could not add reconciliation cron job %q: %w", s.cronSpecTick, err)
	}

	s.done = make(chan struct{})
	go s.worker()

	s.cronEngine.Start()
	s.logger.WithField("cron_spec", s.cronSpecTick).Info("Notification scheduler started.")
	return nil
}

// Trigger requests a pass as soon as the worker is free. It never blocks.
func (s *NotificationScheduler) Trigger() {
	select {
	case s.triggers <- struct{}{}:
	default:
		s.logger.Debug("Reconciliation already pending, trigger coalesced.")
	}
}

func (s *NotificationScheduler) worker() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.triggers:
			_ = s.RunOnce(s.ctx) // Errors are logged inside
		}
	}
}

// RunOnce performs one reconciliation pass, waiting for a running pass to finish first.
// Passes are skipped while another instance holds the lease.
func (s *NotificationScheduler) RunOnce(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	acquired, err := s.lease.Acquire(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Could not acquire reconciliation lease.")
		return err
	}
	if !acquired {
		s.logger.Info("Reconciliation lease held by another instance, skipping pass.")
		return nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), leaseReleaseTimeout)
		defer cancel()
		if err := s.lease.Release(releaseCtx); err != nil {
			s.logger.WithError(err).Warn("Could not release reconciliation lease.")
		}
	}()

	tickCtx, cancel := context.WithTimeout(ctx, s.tickTimeout)
	defer cancel()

	report, err := s.dispatcher.Tick(tickCtx)
	if err != nil {
		entry := s.logger.WithError(err)
		if report != nil {
			entry = entry.WithField("tick_id", report.TickID)
		}
		entry.Error("Reconciliation pass failed.")
		if errors.Is(err, app.ErrStoreFailure) {
			s.alert(fmt.Sprintf("Reconciliation aborted: %v", err))
		}
		return err
	}
	return nil
}

func (s *NotificationScheduler) alert(text string) {
	if s.alerter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.alerter.Alert(ctx, text); err != nil {
		s.logger.WithError(err).Warn("Could not deliver operational alert.")
	}
}

// Stop halts the cron engine, cancels an in-flight pass and waits for the worker.
// Deliveries recorded before cancellation stand.
func (s *NotificationScheduler) Stop() {
	s.logger.Info("Stopping notification scheduler...")
	cronCtx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-cronCtx.Done()
	s.cancel()
	if s.done != nil {
		<-s.done
	}
	s.logger.Info("Notification scheduler gracefully stopped.")
}
