package sessionlog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is a simple in-process session log for local/dev use.
type InMemoryStore struct {
	mu        sync.RWMutex
	events    map[string][]Event         // keyed by userID, append order
	summaries map[string][]SummaryRecord // keyed by userID
	now       func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events:    make(map[string][]Event),
		summaries: make(map[string][]SummaryRecord),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the store's clock. Test use only.
func (s *InMemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *InMemoryStore) AppendEvent(_ context.Context, event Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	event = fillEvent(event)
	s.events[event.UserID] = append(s.events[event.UserID], event)
	return event, nil
}

func (s *InMemoryStore) RecentSessions(_ context.Context, userID string, limit int) ([]SessionDigest, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type sessionAgg struct {
		events []Event
		latest time.Time
	}
	bySession := make(map[string]*sessionAgg)
	for _, e := range s.events[userID] {
		agg, ok := bySession[e.SessionID]
		if !ok {
			agg = &sessionAgg{}
			bySession[e.SessionID] = agg
		}
		agg.events = append(agg.events, e)
		if e.CreatedAt.After(agg.latest) {
			agg.latest = e.CreatedAt
		}
	}

	ids := make([]string, 0, len(bySession))
	for id := range bySession {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bySession[ids[i]].latest.After(bySession[ids[j]].latest)
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}

	digests := make([]SessionDigest, 0, len(ids))
	for _, id := range ids {
		agg := bySession[id]
		d := SessionDigest{
			SessionID:  id,
			StartTime:  agg.events[0].CreatedAt.UTC().Format(time.RFC3339),
			EventCount: len(agg.events),
		}
		// Latest events first, capped like the postgres store.
		for i := len(agg.events) - 1; i >= 0 && len(d.Events) < digestEventsPerRow; i-- {
			e := agg.events[i]
			d.Events = append(d.Events, EventDigest{
				Role:      e.Role,
				Text:      digestText(e.Text),
				Timestamp: e.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		digests = append(digests, d)
	}
	return digests, nil
}

func (s *InMemoryStore) HasTalkedToday(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	today := s.now().Format("2006-01-02")
	for _, e := range s.events[userID] {
		if e.CreatedAt.UTC().Format("2006-01-02") == today {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) SaveSummary(_ context.Context, record SummaryRecord) (SummaryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	record = fillSummary(record)
	for _, existing := range s.summaries[record.UserID] {
		if existing.ID == record.ID {
			// Summaries are created once and never mutated.
			return existing, nil
		}
	}
	s.summaries[record.UserID] = append(s.summaries[record.UserID], record)
	return record, nil
}

func (s *InMemoryStore) RecentSummaries(_ context.Context, userID string, limit int) ([]SummaryRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.summaries[userID]
	out := make([]SummaryRecord, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *InMemoryStore) SessionEventCount(_ context.Context, userID, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, e := range s.events[userID] {
		if e.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) SessionEvents(_ context.Context, userID, sessionID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []Event
	for _, e := range s.events[userID] {
		if e.SessionID == sessionID {
			events = append(events, e)
		}
	}
	return events, nil
}

func (s *InMemoryStore) DeleteUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := len(s.events[userID])
	delete(s.events, userID)
	delete(s.summaries, userID)
	return deleted, nil
}

func (s *InMemoryStore) Close() error { return nil }
