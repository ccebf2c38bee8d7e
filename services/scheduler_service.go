package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"auction-system/marketerrors"
	"auction-system/monitoring"
	"auction-system/store"
)

// popDueScript atomically takes every schedule entry whose close time has
// passed, so concurrent sweepers never close the same entry twice.
const popDueScript = `local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for i = 1, #due do
	redis.call('ZREM', KEYS[1], due[i])
end
return due`

// Scheduler guarantees that every listing gets closed at or after its end
// time, exactly once. Listings are registered in a Redis sorted set scored
// by close time; a periodic sweep pops due entries and runs the idempotent
// closure. Each sweep also reconciles against the store, so a listing whose
// schedule entry was lost still closes on the next pass.
type Scheduler struct {
	redis    *redis.Client
	store    store.Store
	auctions *AuctionService
	logger   *slog.Logger

	key      string
	interval time.Duration
	batch    int
	now      func() time.Time
}

func NewScheduler(rdb *redis.Client, st store.Store, auctions *AuctionService, key string, interval time.Duration, batch int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		redis:    rdb,
		store:    st,
		auctions: auctions,
		logger:   logger,
		key:      key,
		interval: interval,
		batch:    batch,
		now:      time.Now,
	}
}

// Schedule registers (or re-registers) a listing's close time.
func (s *Scheduler) Schedule(ctx context.Context, listingID string, endAt time.Time) error {
	return s.redis.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(endAt.Unix()),
		Member: listingID,
	}).Err()
}

// Recover re-registers every active listing after a restart. Listings
// already past their end date get a score in the past and close on the
// first sweep.
func (s *Scheduler) Recover(ctx context.Context) error {
	listings, err := s.store.ActiveListings(ctx)
	if err != nil {
		return err
	}

	for _, l := range listings {
		if err := s.Schedule(ctx, l.ID, l.EndDate); err != nil {
			return err
		}
	}

	s.logger.Info("expiry schedule recovered", "listings", len(listings))
	return nil
}

// Run sweeps until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("expiry scheduler started", "interval", s.interval.String())

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			s.logger.Info("expiry scheduler stopping")
			return
		}
	}
}

// Sweep closes every listing that is due, first from the Redis schedule,
// then from the store reconciliation query.
func (s *Scheduler) Sweep(ctx context.Context) {
	started := s.now()
	defer func() {
		monitoring.ObserveSweep(time.Since(started))
	}()

	due, err := s.popDue(ctx, started)
	if err != nil {
		s.logger.Error("schedule pop failed", "error", err)
	}
	for _, listingID := range due {
		s.close(ctx, listingID)
	}

	stragglers, err := s.store.ExpiredListingIDs(ctx, started)
	if err != nil {
		s.logger.Error("expired listing scan failed", "error", err)
		return
	}
	for _, listingID := range stragglers {
		s.close(ctx, listingID)
	}
}

func (s *Scheduler) popDue(ctx context.Context, now time.Time) ([]string, error) {
	return s.redis.Eval(ctx, popDueScript, []string{s.key}, now.Unix(), s.batch).StringSlice()
}

func (s *Scheduler) close(ctx context.Context, listingID string) {
	err := s.auctions.Close(ctx, listingID, TriggerExpiry)
	switch {
	case err == nil:
	case errors.Is(err, marketerrors.ErrAlreadyClosed):
		// Lost the race against a manual end; nothing to do.
	case errors.Is(err, marketerrors.ErrListingNotFound):
		s.logger.Warn("scheduled listing no longer exists", "listing", listingID)
	default:
		s.logger.Error("scheduled closure failed", "listing", listingID, "error", err)
	}
}
