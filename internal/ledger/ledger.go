// Package ledger - журнал событий инцидентов, из которого выводится их текущий статус.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shenikar/sos_dispatch/internal/apperror"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100

	// сколько раз перечитывать журнал при гонке за seq
	maxAppendAttempts = 5
)

type Ledger struct {
	store  Store
	logger *logrus.Logger
	now    func() time.Time
}

func New(store Store, logger *logrus.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger,
		// точность timestamptz в postgres - микросекунды
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Open сохраняет новый инцидент вместе с событием created
func (l *Ledger) Open(ctx context.Context, incident *models.Incident) (*models.IncidentEvent, error) {
	if incident.ID == "" || incident.UserID == "" {
		return nil, apperror.Validation("incident id and user id are required")
	}
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = l.now()
	}
	payload, err := json.Marshal(incident)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal created payload: %w", err)
	}
	ev := &models.IncidentEvent{
		IncidentID: incident.ID,
		Seq:        1,
		Kind:       models.EventCreated,
		Payload:    payload,
		OccurredAt: incident.CreatedAt,
	}
	if err := l.store.CreateIncident(ctx, incident, ev); err != nil {
		if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrSeqConflict) {
			return nil, apperror.Conflict("incident %s already exists", incident.ID)
		}
		return nil, apperror.Transient(err, "ledger: could not open incident")
	}
	return ev, nil
}

// Append добавляет событие kind, если оно допустимо из текущего производного статуса
func (l *Ledger) Append(ctx context.Context, incidentID string, kind models.EventKind, payload any) (*models.IncidentEvent, error) {
	if !kind.Valid() {
		return nil, apperror.Validation("unknown event kind %q", kind)
	}
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		events, err := l.events(ctx, incidentID)
		if err != nil {
			return nil, err
		}
		status, err := Replay(events)
		if err != nil {
			return nil, fmt.Errorf("ledger: corrupt journal: %w", err)
		}
		if !CanTransition(status, kind) {
			return nil, apperror.Conflict("cannot append %s to incident %s in status %s", kind, incidentID, status)
		}

		ev := &models.IncidentEvent{
			IncidentID: incidentID,
			Seq:        events[len(events)-1].Seq + 1,
			Kind:       kind,
			Payload:    raw,
			OccurredAt: l.now(),
		}
		err = l.store.AppendEvent(ctx, ev)
		if err == nil {
			return ev, nil
		}
		if errors.Is(err, ErrSeqConflict) {
			l.logger.WithFields(logrus.Fields{
				"component":   "ledger",
				"incident_id": incidentID,
				"kind":        kind,
				"attempt":     attempt + 1,
			}).Debug("Sequence conflict, re-reading journal")
			continue
		}
		if errors.Is(err, ErrNotFound) {
			return nil, apperror.NotFound("incident %s not found", incidentID)
		}
		return nil, apperror.Transient(err, "ledger: could not append %s", kind)
	}
	return nil, apperror.Conflict("incident %s is being modified concurrently", incidentID)
}

// DeriveStatus сворачивает журнал инцидента в текущий статус
func (l *Ledger) DeriveStatus(ctx context.Context, incidentID string) (models.Status, error) {
	events, err := l.events(ctx, incidentID)
	if err != nil {
		return models.StatusNone, err
	}
	status, err := Replay(events)
	if err != nil {
		return models.StatusNone, fmt.Errorf("ledger: corrupt journal: %w", err)
	}
	return status, nil
}

// View возвращает инцидент, его статус и полный журнал
func (l *Ledger) View(ctx context.Context, incidentID string) (*models.IncidentView, error) {
	incident, err := l.store.GetIncident(ctx, incidentID)
	if err != nil {
		return nil, l.mapReadErr(err, incidentID)
	}
	events, err := l.events(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	status, err := Replay(events)
	if err != nil {
		return nil, fmt.Errorf("ledger: corrupt journal: %w", err)
	}
	return &models.IncidentView{Incident: incident, Status: status, Events: events}, nil
}

// History возвращает страницу журнала по ключу (occurred_at desc, id desc).
// Курсор - ключ последнего выданного события, поэтому вставки между вызовами
// не приводят ни к повтору, ни к пропуску уже существующих событий.
func (l *Ledger) History(ctx context.Context, filter models.HistoryFilter, cursor string, limit int) (*models.HistoryPage, error) {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	after, err := DecodeCursor(cursor)
	if err != nil {
		return nil, apperror.Validation("invalid cursor: %v", err)
	}

	items, err := l.store.ListEvents(ctx, filter, after, limit+1)
	if err != nil {
		return nil, apperror.Transient(err, "ledger: could not list history")
	}
	page := &models.HistoryPage{Limit: limit}
	if len(items) > limit {
		items = items[:limit]
		page.NextCursor = CursorAt(items[len(items)-1]).Encode()
	}
	page.Items = items

	if page.TotalItems, err = l.store.CountEvents(ctx, filter, nil); err != nil {
		return nil, apperror.Transient(err, "ledger: could not count history")
	}
	if after != nil {
		if page.Preceding, err = l.store.CountEvents(ctx, filter, after); err != nil {
			return nil, apperror.Transient(err, "ledger: could not count history")
		}
	}
	return page, nil
}

func (l *Ledger) events(ctx context.Context, incidentID string) ([]models.IncidentEvent, error) {
	events, err := l.store.Events(ctx, incidentID)
	if err != nil {
		return nil, l.mapReadErr(err, incidentID)
	}
	if len(events) == 0 {
		return nil, apperror.NotFound("incident %s not found", incidentID)
	}
	return events, nil
}

func (l *Ledger) mapReadErr(err error, incidentID string) error {
	if errors.Is(err, ErrNotFound) {
		return apperror.NotFound("incident %s not found", incidentID)
	}
	return apperror.Transient(err, "ledger: could not read incident %s", incidentID)
}

func marshalPayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return raw, nil
}
