package locator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrNotLoaded - снимок ответчиков еще ни разу не загружен
var ErrNotLoaded = errors.New("responder dataset not loaded")

// Loader - внешний источник справочника ответчиков
type Loader interface {
	ListResponders(ctx context.Context) ([]models.Responder, error)
}

// Snapshot держит последний загруженный Index и периодически его обновляет.
// При ошибке обновления продолжает отдавать предыдущий снимок.
type Snapshot struct {
	loader Loader
	logger *logrus.Logger
	index  atomic.Pointer[Index]
	loaded atomic.Int64
}

func NewSnapshot(loader Loader, logger *logrus.Logger) *Snapshot {
	return &Snapshot{loader: loader, logger: logger}
}

// Refresh загружает справочник и атомарно подменяет индекс
func (s *Snapshot) Refresh(ctx context.Context) (int, error) {
	responders, err := s.loader.ListResponders(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load responders: %w", err)
	}
	s.index.Store(NewIndex(responders))
	s.loaded.Store(time.Now().UnixNano())
	return len(responders), nil
}

// Run обновляет снимок с интервалом до отмены контекста
func (s *Snapshot) Run(ctx context.Context, interval time.Duration) error {
	log := s.logger.WithField("component", "responder_snapshot")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping responder snapshot refresher.")
			return nil
		case <-ticker.C:
			n, err := s.Refresh(ctx)
			if err != nil {
				log.WithError(err).Warn("Responder refresh failed, serving previous snapshot")
				continue
			}
			log.WithField("count", n).Debug("Responder snapshot refreshed")
		}
	}
}

// Candidates реализует Source поверх текущего снимка
func (s *Snapshot) Candidates(ctx context.Context, box Box) ([]models.Responder, error) {
	ix := s.index.Load()
	if ix == nil {
		return nil, ErrNotLoaded
	}
	return ix.Candidates(ctx, box)
}

// Size возвращает число ответчиков в текущем снимке
func (s *Snapshot) Size() int {
	if ix := s.index.Load(); ix != nil {
		return ix.Len()
	}
	return 0
}

// StaticLoader отдает фиксированный набор ответчиков (режим без БД)
type StaticLoader []models.Responder

func (l StaticLoader) ListResponders(context.Context) ([]models.Responder, error) {
	return append([]models.Responder(nil), l...), nil
}

// FileLoader читает справочник ответчиков из JSON-файла при каждом обновлении
type FileLoader string

func (l FileLoader) ListResponders(context.Context) ([]models.Responder, error) {
	raw, err := os.ReadFile(string(l))
	if err != nil {
		return nil, fmt.Errorf("failed to read responders file: %w", err)
	}
	var responders []models.Responder
	if err := json.Unmarshal(raw, &responders); err != nil {
		return nil, fmt.Errorf("failed to decode responders file: %w", err)
	}
	for _, r := range responders {
		if r.ID == "" || !r.Location.Valid() || r.ServiceRadiusKm <= 0 {
			return nil, fmt.Errorf("invalid responder %q in %s", r.ID, string(l))
		}
	}
	return responders, nil
}
