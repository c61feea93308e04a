package sweeper

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"clinicbook/pkg/model"

	"github.com/go-redis/redis/v8"
)

const ledgerKey = "sweeper:claims"

// Entry is one open claim: userID took slotID at ClaimedAt.
type Entry struct {
	SlotID    string
	UserID    string
	ClaimedAt time.Time
}

func (e Entry) member() string {
	return e.SlotID + "|" + e.UserID
}

func parseMember(member string, score float64) (Entry, bool) {
	slotID, userID, ok := strings.Cut(member, "|")
	if !ok || slotID == "" || userID == "" {
		return Entry{}, false
	}
	return Entry{SlotID: slotID, UserID: userID, ClaimedAt: time.UnixMilli(int64(score)).UTC()}, true
}

// Ledger tracks open claims ordered by claim time.
type Ledger interface {
	// Record adds a claimed event and drops the matching entry on release.
	Record(ctx context.Context, evt model.OccupancyEvent) error
	// Stale returns up to limit entries claimed before cutoff, oldest first.
	Stale(ctx context.Context, cutoff time.Time, limit int64) ([]Entry, error)
	Remove(ctx context.Context, entries ...Entry) error
}

type redisLedger struct {
	client *redis.Client
}

func NewRedisLedger(client *redis.Client) Ledger {
	return &redisLedger{client: client}
}

func (l *redisLedger) Record(ctx context.Context, evt model.OccupancyEvent) error {
	entry := Entry{SlotID: evt.SlotID, UserID: evt.UserID, ClaimedAt: evt.OccurredAt}

	var err error
	switch evt.Type {
	case model.SlotClaimed:
		err = l.client.ZAdd(ctx, ledgerKey, &redis.Z{
			Score:  float64(entry.ClaimedAt.UnixMilli()),
			Member: entry.member(),
		}).Err()
	case model.SlotReleased:
		err = l.client.ZRem(ctx, ledgerKey, entry.member()).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to record %s for slot %s: %w", evt.Type, evt.SlotID, err)
	}
	return nil
}

func (l *redisLedger) Stale(ctx context.Context, cutoff time.Time, limit int64) ([]Entry, error) {
	members, err := l.client.ZRangeByScoreWithScores(ctx, ledgerKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read claim ledger: %w", err)
	}

	entries := make([]Entry, 0, len(members))
	for _, z := range members {
		member, _ := z.Member.(string)
		if e, ok := parseMember(member, z.Score); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (l *redisLedger) Remove(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	members := make([]any, 0, len(entries))
	for _, e := range entries {
		members = append(members, e.member())
	}
	if err := l.client.ZRem(ctx, ledgerKey, members...).Err(); err != nil {
		return fmt.Errorf("failed to prune claim ledger: %w", err)
	}
	return nil
}

type memoryLedger struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryLedger() Ledger {
	return &memoryLedger{entries: make(map[string]Entry)}
}

func (l *memoryLedger) Record(_ context.Context, evt model.OccupancyEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{SlotID: evt.SlotID, UserID: evt.UserID, ClaimedAt: evt.OccurredAt.UTC()}
	switch evt.Type {
	case model.SlotClaimed:
		l.entries[entry.member()] = entry
	case model.SlotReleased:
		delete(l.entries, entry.member())
	}
	return nil
}

func (l *memoryLedger) Stale(_ context.Context, cutoff time.Time, limit int64) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Entry
	for _, e := range l.entries {
		if e.ClaimedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClaimedAt.Equal(out[j].ClaimedAt) {
			return out[i].member() < out[j].member()
		}
		return out[i].ClaimedAt.Before(out[j].ClaimedAt)
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memoryLedger) Remove(_ context.Context, entries ...Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range entries {
		delete(l.entries, e.member())
	}
	return nil
}
