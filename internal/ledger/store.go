package ledger

import (
	"context"
	"errors"

	"github.com/shenikar/sos_dispatch/internal/models"
)

var (
	ErrNotFound    = errors.New("incident not found")
	ErrDuplicate   = errors.New("incident already exists")
	ErrSeqConflict = errors.New("event sequence conflict")
)

// Store - внешнее хранилище журнала. Ledger владеет порядком и выводом статуса,
// хранилище только сохраняет записи.
type Store interface {
	// CreateIncident атомарно сохраняет инцидент и его событие created (seq 1)
	CreateIncident(ctx context.Context, incident *models.Incident, created *models.IncidentEvent) error
	GetIncident(ctx context.Context, id string) (*models.Incident, error)
	// Events возвращает события инцидента по возрастанию seq
	Events(ctx context.Context, incidentID string) ([]models.IncidentEvent, error)
	// AppendEvent сохраняет событие, если ev.Seq следует сразу за последним; иначе ErrSeqConflict
	AppendEvent(ctx context.Context, ev *models.IncidentEvent) error
	// ListEvents возвращает события по (occurred_at desc, id desc) строго после курсора
	ListEvents(ctx context.Context, filter models.HistoryFilter, after *Cursor, limit int) ([]models.IncidentEvent, error)
	// CountEvents считает события фильтра; при upTo != nil - только выданные до курсора включительно
	CountEvents(ctx context.Context, filter models.HistoryFilter, upTo *Cursor) (int, error)
}
