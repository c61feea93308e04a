package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinicbook/internal/slots/events"
	"clinicbook/pkg/kafka"
	"clinicbook/pkg/logger"
	"clinicbook/pkg/model"

	"github.com/robfig/cron/v3"
)

// ──────────────────────────────────────────────────────────────────────────────
// Mocks
// ──────────────────────────────────────────────────────────────────────────────

type mockReleaser struct {
	releaseFunc func(ctx context.Context, userID, slotID string) (bool, error)
	calls       []string
}

func (m *mockReleaser) ReleaseIfHeld(ctx context.Context, userID, slotID string) (bool, error) {
	m.calls = append(m.calls, slotID)
	return m.releaseFunc(ctx, userID, slotID)
}

type failingLedger struct {
	Ledger
	err error
}

func (l failingLedger) Record(context.Context, model.OccupancyEvent) error { return l.err }

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func claimed(slotID, userID string, at time.Time) model.OccupancyEvent {
	return model.OccupancyEvent{Type: model.SlotClaimed, SlotID: slotID, UserID: userID, OccurredAt: at}
}

func newSweeper(ledger Ledger, releaser SlotReleaser) *Sweeper {
	s := New(ledger, releaser, 15*time.Minute, logger.Discard())
	s.now = func() time.Time { return base.Add(time.Hour) }
	return s
}

// ──────────────────────────────────────────────────────────────────────────────
// Ledger
// ──────────────────────────────────────────────────────────────────────────────

func TestMemoryLedger_RecordAndStale(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	_ = l.Record(ctx, claimed("s2", "u1", base.Add(2*time.Minute)))
	_ = l.Record(ctx, claimed("s1", "u1", base))
	_ = l.Record(ctx, claimed("s3", "u2", base.Add(30*time.Minute)))
	_ = l.Record(ctx, model.OccupancyEvent{Type: model.SlotReleased, SlotID: "s2", UserID: "u1"})

	got, err := l.Stale(ctx, base.Add(10*time.Minute), 10)
	if err != nil {
		t.Fatalf("stale: %v", err)
	}
	if len(got) != 1 || got[0].SlotID != "s1" {
		t.Fatalf("stale = %+v", got)
	}

	got, _ = l.Stale(ctx, base.Add(time.Hour), 1)
	if len(got) != 1 || got[0].SlotID != "s1" {
		t.Errorf("limited stale = %+v", got)
	}
}

func TestParseMember(t *testing.T) {
	e, ok := parseMember("s1|u1", float64(base.UnixMilli()))
	if !ok || e.SlotID != "s1" || e.UserID != "u1" || !e.ClaimedAt.Equal(base) {
		t.Errorf("entry = %+v ok = %v", e, ok)
	}
	if _, ok := parseMember("garbage", 0); ok {
		t.Error("member without separator accepted")
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Consumer handler
// ──────────────────────────────────────────────────────────────────────────────

func TestHandleMessage(t *testing.T) {
	l := NewMemoryLedger()
	s := newSweeper(l, &mockReleaser{})
	ctx := context.Background()

	msg, err := events.NewMessage(claimed("s1", "u1", base))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := s.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got, _ := l.Stale(ctx, base.Add(time.Minute), 10); len(got) != 1 {
		t.Errorf("ledger = %+v", got)
	}

	bad := kafka.Message{Value: []byte(`{"type":"slot.moved","slot_id":"s1"}`)}
	if err := s.HandleMessage(ctx, bad); kafka.ShouldRetry(err, 0, 3) {
		t.Errorf("unknown event type should not be retried: %v", err)
	}

	down := newSweeper(failingLedger{Ledger: l, err: errors.New("connection refused")}, &mockReleaser{})
	if err := down.HandleMessage(ctx, msg); !kafka.ShouldRetry(err, 0, 3) {
		t.Errorf("ledger failure should be retried: %v", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Sweep
// ──────────────────────────────────────────────────────────────────────────────

func TestSweep(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	_ = l.Record(ctx, claimed("stale-held", "u1", base))
	_ = l.Record(ctx, claimed("stale-booked", "u2", base.Add(time.Minute)))
	_ = l.Record(ctx, claimed("stale-flaky", "u3", base.Add(2*time.Minute)))
	_ = l.Record(ctx, claimed("fresh", "u4", base.Add(55*time.Minute)))

	releaser := &mockReleaser{
		releaseFunc: func(_ context.Context, _, slotID string) (bool, error) {
			switch slotID {
			case "stale-held":
				return true, nil
			case "stale-flaky":
				return false, errors.New("slot store unavailable")
			}
			return false, nil
		},
	}
	s := newSweeper(l, releaser)

	released, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if released != 1 {
		t.Errorf("released = %d, want 1", released)
	}
	if len(releaser.calls) != 3 {
		t.Errorf("release calls = %v", releaser.calls)
	}

	left, _ := l.Stale(ctx, base.Add(2*time.Hour), 10)
	if len(left) != 2 || left[0].SlotID != "stale-flaky" || left[1].SlotID != "fresh" {
		t.Errorf("ledger after sweep = %+v", left)
	}
}

func TestSchedule(t *testing.T) {
	s := newSweeper(NewMemoryLedger(), &mockReleaser{})
	c := cron.New()

	if _, err := s.Schedule(c, "@every 1m"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(c.Entries()) != 1 {
		t.Errorf("entries = %d", len(c.Entries()))
	}
	if _, err := s.Schedule(c, "not a schedule"); err == nil {
		t.Error("invalid spec accepted")
	}
}
