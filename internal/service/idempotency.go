package service

import (
	"context"
	"sync"
	"time"

	"github.com/shenikar/sos_dispatch/internal/models"
)

// ErrInProgress - исходная отправка с тем же ключом еще выполняется
var ErrInProgress = models.ErrSubmissionInProgress

// IdempotencyStore хранит результат SOS по ключу (userID, clientIncidentID) в пределах окна.
//
// Begin возвращает сохраненный результат, если он есть; (nil, nil), если ключ
// зарезервирован этим вызовом; ErrInProgress, если ключ уже зарезервирован.
type IdempotencyStore interface {
	Begin(ctx context.Context, userID, key string) (*models.SubmitResult, error)
	Commit(ctx context.Context, userID, key string, result *models.SubmitResult) error
	Abort(ctx context.Context, userID, key string) error
}

type idempotencyEntry struct {
	result  *models.SubmitResult
	expires time.Time
}

// MemoryIdempotencyStore - реализация IdempotencyStore в памяти процесса
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]idempotencyEntry
	now     func() time.Time
}

func NewMemoryIdempotencyStore(window time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		window:  window,
		entries: make(map[string]idempotencyEntry),
		now:     time.Now,
	}
}

func (m *MemoryIdempotencyStore) Begin(_ context.Context, userID, key string) (*models.SubmitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	k := userID + "\x00" + key
	if e, ok := m.entries[k]; ok && now.Before(e.expires) {
		if e.result == nil {
			return nil, ErrInProgress
		}
		res := *e.result
		return &res, nil
	}
	m.entries[k] = idempotencyEntry{expires: now.Add(m.window)}
	m.sweepLocked(now)
	return nil, nil
}

func (m *MemoryIdempotencyStore) Commit(_ context.Context, userID, key string, result *models.SubmitResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := *result
	m.entries[userID+"\x00"+key] = idempotencyEntry{result: &res, expires: m.now().Add(m.window)}
	return nil
}

func (m *MemoryIdempotencyStore) Abort(_ context.Context, userID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := userID + "\x00" + key
	if e, ok := m.entries[k]; ok && e.result == nil {
		delete(m.entries, k)
	}
	return nil
}

func (m *MemoryIdempotencyStore) sweepLocked(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}
