// Package sweeper releases slots whose claim outlived the configured TTL
// without turning into a visit.
package sweeper

import (
	"context"
	"time"

	"clinicbook/internal/slots/events"
	"clinicbook/pkg/kafka"
	"clinicbook/pkg/logger"

	"github.com/robfig/cron/v3"
)

const (
	sweepBatchSize = 200
	sweepTimeout   = 2 * time.Minute
)

type SlotReleaser interface {
	ReleaseIfHeld(ctx context.Context, userID, slotID string) (bool, error)
}

type Sweeper struct {
	ledger   Ledger
	slots    SlotReleaser
	claimTTL time.Duration
	log      *logger.Logger
	now      func() time.Time
}

func New(ledger Ledger, slots SlotReleaser, claimTTL time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		ledger:   ledger,
		slots:    slots,
		claimTTL: claimTTL,
		log:      log,
		now:      time.Now,
	}
}

// HandleMessage feeds one occupancy event into the ledger. Malformed events
// are permanent failures; ledger errors are retried by the consumer.
func (s *Sweeper) HandleMessage(ctx context.Context, msg kafka.Message) error {
	evt, err := events.Decode(msg)
	if err != nil {
		return err
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = msg.Timestamp
	}

	if err := s.ledger.Record(ctx, evt); err != nil {
		return kafka.NewTransientError("claim ledger unavailable", err)
	}
	return nil
}

// Sweep releases claims older than the TTL whose slot is still held by the
// same user and unbooked. Entries that fail to release stay for the next
// run. Returns the number of slots released.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.claimTTL)
	released := 0

	for {
		entries, err := s.ledger.Stale(ctx, cutoff, sweepBatchSize)
		if err != nil {
			return released, err
		}
		if len(entries) == 0 {
			return released, nil
		}

		done := make([]Entry, 0, len(entries))
		for _, e := range entries {
			ok, err := s.slots.ReleaseIfHeld(ctx, e.UserID, e.SlotID)
			if err != nil {
				s.log.Warn("Failed to release stale claim",
					"slot_id", e.SlotID,
					"user_id", e.UserID,
					"claimed_at", e.ClaimedAt,
					"error", err,
				)
				continue
			}
			if ok {
				released++
				s.log.Info("Released stale claim",
					"slot_id", e.SlotID,
					"user_id", e.UserID,
					"claimed_at", e.ClaimedAt,
				)
			}
			done = append(done, e)
		}

		if err := s.ledger.Remove(ctx, done...); err != nil {
			return released, err
		}
		// Every entry in the batch failed; retry on the next tick.
		if len(done) == 0 || len(entries) < sweepBatchSize {
			return released, nil
		}
	}
}

// Schedule registers Sweep on c under spec. Overlapping runs are skipped.
func (s *Sweeper) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	job := cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		start := s.now()
		released, err := s.Sweep(ctx)
		if err != nil {
			s.log.Error("Sweep failed", "released", released, "error", err)
			return
		}
		s.log.Info("Sweep completed", "released", released, "duration_ms", time.Since(start).Milliseconds())
	})

	return c.AddJob(spec, cron.NewChain(cron.SkipIfStillRunning(CronLogger(s.log))).Then(job))
}

type cronLogger struct {
	log *logger.Logger
}

// CronLogger adapts the service logger to cron's logging interface.
func CronLogger(log *logger.Logger) cron.Logger {
	return cronLogger{log: log}
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
