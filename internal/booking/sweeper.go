package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/agendou/api/internal/model"
	"github.com/agendou/api/internal/outbox"
)

// SweeperStore is the slice of the appointment repository the sweeper
// needs.
type SweeperStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	DiscardExpiredPending(ctx context.Context, tx pgx.Tx, cutoff time.Time) ([]model.Appointment, error)
}

// Sweeper discards pending appointments whose verification window has
// lapsed. Conflict queries already ignore lapsed rows, so this is
// hygiene for storage and listings rather than a correctness guard.
type Sweeper struct {
	appts    SweeperStore
	events   EventStore
	logger   *slog.Logger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

type SweeperConfig struct {
	PendingTTL time.Duration
	Interval   time.Duration
}

func NewSweeper(appts SweeperStore, events EventStore, logger *slog.Logger, cfg SweeperConfig) *Sweeper {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = DefaultPendingTTL
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Sweeper{
		appts:    appts,
		events:   events,
		logger:   logger,
		ttl:      cfg.PendingTTL,
		interval: cfg.Interval,
		now:      time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("pending sweep failed", "err", err)
			}
		}
	}
}

func (s *Sweeper) Sweep(ctx context.Context) error {
	tx, err := s.appts.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	discarded, err := s.appts.DiscardExpiredPending(ctx, tx, s.now().Add(-s.ttl))
	if err != nil {
		return err
	}
	if len(discarded) == 0 {
		return tx.Commit(ctx)
	}

	for _, appt := range discarded {
		evt, err := outbox.AppointmentDiscarded(appt)
		if err != nil {
			return err
		}
		if err := s.events.Insert(ctx, tx, evt); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.logger.Info("expired pending appointments discarded", "count", len(discarded))
	return nil
}
