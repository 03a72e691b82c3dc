package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"

	"ridematch/internal/domain"
	"ridematch/internal/redis"
	"ridematch/internal/repository"
)

// ErrDispatcherClosed is returned by Shutdown when called twice.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Dispatcher runs driver searches in the background with bounded
// concurrency. A search communicates with the rest of the system only
// through the stores and the notifier.
type Dispatcher struct {
	matcher   MatchingServiceInterface
	rideRepo  repository.RideRepository
	lockStore redis.LockStoreInterface
	nrApp     *newrelic.Application
	lockTTL   time.Duration
	log       *slog.Logger

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a new Dispatcher running at most workers searches at once.
// nrApp may be nil.
func NewDispatcher(
	matcher MatchingServiceInterface,
	rideRepo repository.RideRepository,
	lockStore redis.LockStoreInterface,
	nrApp *newrelic.Application,
	workers int,
	lockTTL time.Duration,
	log *slog.Logger,
) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		matcher:   matcher,
		rideRepo:  rideRepo,
		lockStore: lockStore,
		nrApp:     nrApp,
		lockTTL:   lockTTL,
		log:       log,
		sem:       make(chan struct{}, workers),
		ctx:       ctx,
		cancel:    cancel,
	}
}

var _ MatchScheduler = (*Dispatcher)(nil)

// Schedule queues a search for ride. It never waits for a worker.
func (d *Dispatcher) Schedule(ride *domain.Ride, initialRadius int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.log.Warn("dispatcher closed, search not scheduled", slog.String("ride_id", ride.ID))
		return
	}

	d.wg.Add(1)
	go func(ride domain.Ride) {
		defer d.wg.Done()

		select {
		case d.sem <- struct{}{}:
		case <-d.ctx.Done():
			return
		}
		defer func() { <-d.sem }()

		d.run(ride, initialRadius)
	}(*ride)
}

// Shutdown stops accepting searches and waits for in-flight ones. When ctx
// expires first, remaining searches are cancelled.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) run(ride domain.Ride, initialRadius int) {
	ctx := d.ctx
	rideID := ride.ID
	var txn *newrelic.Transaction
	if d.nrApp != nil {
		txn = d.nrApp.StartTransaction("match-ride")
		defer txn.End()
		txn.AddAttribute("ride_id", rideID)
		ctx = newrelic.NewContext(ctx, txn)
	}

	log := d.log.With(slog.String("ride_id", rideID))

	token := uuid.New().String()
	acquired, err := d.lockStore.AcquireSearchLock(ctx, rideID, token, d.lockTTL)
	switch {
	case err != nil:
		// The marker only deduplicates work; assignment is still guarded
		// by the conditional updates.
		log.WarnContext(ctx, "search lock unavailable, searching anyway", slog.Any("error", err))
	case !acquired:
		log.InfoContext(ctx, "search already in progress")
		return
	default:
		defer func() {
			if err := d.lockStore.ReleaseSearchLock(context.WithoutCancel(ctx), rideID, token); err != nil {
				log.WarnContext(ctx, "failed to release search lock", slog.Any("error", err))
			}
		}()
	}

	result, err := d.matcher.FindAndAssign(ctx, rideID, ride.Pickup, initialRadius)
	if err == nil {
		log.InfoContext(ctx, "ride matched",
			slog.String("driver_id", result.Driver.DriverID),
			slog.Int("radius_m", result.SearchRadius),
			slog.Bool("fallback", result.FallbackAssignment),
		)
		return
	}

	var exhausted *ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		if err := recordExhaustion(context.WithoutCancel(ctx), d.rideRepo, exhausted); err != nil {
			log.WarnContext(ctx, "failed to record no-drivers event", slog.Any("error", err))
		}
	case errors.Is(err, ErrAssignmentConflict):
		log.InfoContext(ctx, "ride no longer open for matching")
	case errors.Is(err, context.Canceled):
		log.WarnContext(ctx, "search cancelled by shutdown")
	default:
		log.ErrorContext(ctx, "background match failed", slog.Any("error", err))
		if txn != nil {
			txn.NoticeError(err)
		}
	}
}
