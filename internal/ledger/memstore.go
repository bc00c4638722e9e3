package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/shenikar/sos_dispatch/internal/models"
)

// ErrUnavailable возвращается MemoryStore, пока хранилище помечено недоступным
var ErrUnavailable = errors.New("store unavailable")

// MemoryStore - хранилище журнала в памяти (STORAGE_DRIVER=memory и тесты)
type MemoryStore struct {
	mu        sync.RWMutex
	incidents map[string]*models.Incident
	events    map[string][]models.IncidentEvent
	all       []models.IncidentEvent
	nextID    int64
	failNext  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		incidents: make(map[string]*models.Incident),
		events:    make(map[string][]models.IncidentEvent),
	}
}

// FailNext заставляет следующие n вызовов вернуть ErrUnavailable
func (s *MemoryStore) FailNext(n int) {
	s.mu.Lock()
	s.failNext = n
	s.mu.Unlock()
}

func (s *MemoryStore) fail() bool {
	if s.failNext > 0 {
		s.failNext--
		return true
	}
	return false
}

func (s *MemoryStore) CreateIncident(_ context.Context, incident *models.Incident, created *models.IncidentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail() {
		return ErrUnavailable
	}
	if _, ok := s.incidents[incident.ID]; ok {
		return ErrDuplicate
	}
	if created.Seq != 1 {
		return ErrSeqConflict
	}
	inc := *incident
	s.incidents[incident.ID] = &inc
	s.appendLocked(created)
	return nil
}

func (s *MemoryStore) GetIncident(_ context.Context, id string) (*models.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail() {
		return nil, ErrUnavailable
	}
	inc, ok := s.incidents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inc
	return &cp, nil
}

func (s *MemoryStore) Events(_ context.Context, incidentID string) ([]models.IncidentEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail() {
		return nil, ErrUnavailable
	}
	evs, ok := s.events[incidentID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]models.IncidentEvent(nil), evs...), nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, ev *models.IncidentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail() {
		return ErrUnavailable
	}
	evs, ok := s.events[ev.IncidentID]
	if !ok {
		return ErrNotFound
	}
	if ev.Seq != int64(len(evs))+1 {
		return ErrSeqConflict
	}
	s.appendLocked(ev)
	return nil
}

func (s *MemoryStore) appendLocked(ev *models.IncidentEvent) {
	s.nextID++
	ev.ID = s.nextID
	s.events[ev.IncidentID] = append(s.events[ev.IncidentID], *ev)
	s.all = append(s.all, *ev)
}

func (s *MemoryStore) ListEvents(_ context.Context, filter models.HistoryFilter, after *Cursor, limit int) ([]models.IncidentEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail() {
		return nil, ErrUnavailable
	}
	out := make([]models.IncidentEvent, 0, limit)
	for _, ev := range s.sortedLocked() {
		if !s.matchLocked(filter, ev) {
			continue
		}
		if after != nil && !after.After(ev) {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) CountEvents(_ context.Context, filter models.HistoryFilter, upTo *Cursor) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail() {
		return 0, ErrUnavailable
	}
	n := 0
	for _, ev := range s.all {
		if !s.matchLocked(filter, ev) {
			continue
		}
		if upTo != nil && upTo.After(ev) {
			continue
		}
		n++
	}
	return n, nil
}

func (s *MemoryStore) sortedLocked() []models.IncidentEvent {
	sorted := append([]models.IncidentEvent(nil), s.all...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].OccurredAt.Equal(sorted[j].OccurredAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].OccurredAt.After(sorted[j].OccurredAt)
	})
	return sorted
}

func (s *MemoryStore) matchLocked(filter models.HistoryFilter, ev models.IncidentEvent) bool {
	if filter.IncidentID != "" && ev.IncidentID != filter.IncidentID {
		return false
	}
	if filter.Kind != "" && ev.Kind != filter.Kind {
		return false
	}
	if filter.UserID != "" {
		inc, ok := s.incidents[ev.IncidentID]
		if !ok || inc.UserID != filter.UserID {
			return false
		}
	}
	return true
}
