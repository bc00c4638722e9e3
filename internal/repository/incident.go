package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/sos_dispatch/internal/ledger"
	"github.com/shenikar/sos_dispatch/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	incidentsPkey     = "incidents_pkey"
	incidentEventsSeq = "incident_events_incident_id_seq_key"
)

// EventStore - журнал инцидентов в postgres
type EventStore struct {
	db *pgxpool.Pool
}

func NewEventStore(db *pgxpool.Pool) ledger.Store {
	return &EventStore{db: db}
}

// CreateIncident сохраняет инцидент и событие created в одной транзакции
func (r *EventStore) CreateIncident(ctx context.Context, incident *models.Incident, created *models.IncidentEvent) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		INSERT INTO incidents (id, user_id, emergency_type, latitude, longitude, notes, media_refs, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err = tx.Exec(ctx, query,
		incident.ID,
		incident.UserID,
		incident.EmergencyType,
		incident.Location.Lat,
		incident.Location.Lng,
		incident.Notes,
		mediaRefs(incident.MediaRefs),
		incident.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", mapWriteErr(err))
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO incident_events (incident_id, seq, kind, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id;
	`, created.IncidentID, created.Seq, created.Kind, []byte(created.Payload), created.OccurredAt).Scan(&created.ID)
	if err != nil {
		return fmt.Errorf("failed to create incident event: %w", mapWriteErr(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit incident: %w", err)
	}
	return nil
}

// GetIncident возвращает метаданные инцидента
func (r *EventStore) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	incident := &models.Incident{}
	query := `
		SELECT id, user_id, emergency_type, latitude, longitude, notes, media_refs, created_at
		FROM incidents
		WHERE id = $1;
	`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&incident.ID,
		&incident.UserID,
		&incident.EmergencyType,
		&incident.Location.Lat,
		&incident.Location.Lng,
		&incident.Notes,
		&incident.MediaRefs,
		&incident.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

// Events возвращает журнал инцидента по возрастанию seq
func (r *EventStore) Events(ctx context.Context, incidentID string) ([]models.IncidentEvent, error) {
	query := `
		SELECT id, incident_id, seq, kind, payload, occurred_at
		FROM incident_events
		WHERE incident_id = $1
		ORDER BY seq;
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incident events: %w", err)
	}
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ledger.ErrNotFound
	}
	return events, nil
}

// AppendEvent вставляет событие, только если ev.Seq следует сразу за последним seq инцидента.
// Гонка двух вставок с одинаковым seq разрешается уникальным ключом (incident_id, seq).
func (r *EventStore) AppendEvent(ctx context.Context, ev *models.IncidentEvent) error {
	query := `
		INSERT INTO incident_events (incident_id, seq, kind, payload, occurred_at)
		SELECT $1::text, $2::bigint, $3::text, $4::jsonb, $5::timestamptz
		WHERE EXISTS (SELECT 1 FROM incidents WHERE id = $1)
			AND COALESCE((SELECT MAX(seq) FROM incident_events WHERE incident_id = $1), 0) = $2 - 1
		RETURNING id;
	`
	err := r.db.QueryRow(ctx, query, ev.IncidentID, ev.Seq, ev.Kind, []byte(ev.Payload), ev.OccurredAt).Scan(&ev.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to append incident event: %w", mapWriteErr(err))
	}

	// Ни одной строки: либо инцидента нет, либо seq устарел
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM incidents WHERE id = $1);`, ev.IncidentID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check incident: %w", err)
	}
	if !exists {
		return ledger.ErrNotFound
	}
	return ledger.ErrSeqConflict
}

// ListEvents возвращает страницу журнала по ключу (occurred_at desc, id desc)
func (r *EventStore) ListEvents(ctx context.Context, filter models.HistoryFilter, after *ledger.Cursor, limit int) ([]models.IncidentEvent, error) {
	where, args := historyWhere(filter)
	if after != nil {
		args = append(args, after.OccurredAt, after.ID)
		where = append(where, fmt.Sprintf("(e.occurred_at, e.id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, limit)

	query := `
		SELECT e.id, e.incident_id, e.seq, e.kind, e.payload, e.occurred_at
		FROM incident_events e
		JOIN incidents i ON i.id = e.incident_id` +
		whereClause(where) + fmt.Sprintf(`
		ORDER BY e.occurred_at DESC, e.id DESC
		LIMIT $%d;`, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return scanEvents(rows)
}

// CountEvents считает события фильтра; при upTo != nil - выданные до курсора включительно
func (r *EventStore) CountEvents(ctx context.Context, filter models.HistoryFilter, upTo *ledger.Cursor) (int, error) {
	where, args := historyWhere(filter)
	if upTo != nil {
		args = append(args, upTo.OccurredAt, upTo.ID)
		where = append(where, fmt.Sprintf("(e.occurred_at, e.id) >= ($%d, $%d)", len(args)-1, len(args)))
	}
	query := `
		SELECT COUNT(*)
		FROM incident_events e
		JOIN incidents i ON i.id = e.incident_id` + whereClause(where) + ";"

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return count, nil
}

// historyWhere строит условия фильтра журнала с позиционными параметрами
func historyWhere(filter models.HistoryFilter) ([]string, []any) {
	var where []string
	var args []any
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("i.user_id = $%d", len(args)))
	}
	if filter.IncidentID != "" {
		args = append(args, filter.IncidentID)
		where = append(where, fmt.Sprintf("e.incident_id = $%d", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		where = append(where, fmt.Sprintf("e.kind = $%d", len(args)))
	}
	return where, args
}

func whereClause(where []string) string {
	if len(where) == 0 {
		return ""
	}
	return "\n\t\tWHERE " + strings.Join(where, " AND ")
}

func scanEvents(rows pgx.Rows) ([]models.IncidentEvent, error) {
	defer rows.Close()
	events := make([]models.IncidentEvent, 0)
	for rows.Next() {
		var ev models.IncidentEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.IncidentID, &ev.Seq, &ev.Kind, &payload, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan incident event row: %w", err)
		}
		ev.Payload = payload
		ev.OccurredAt = ev.OccurredAt.UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return events, nil
}

// mapWriteErr переводит нарушения ограничений postgres в ошибки журнала
func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == incidentsPkey {
			return ledger.ErrDuplicate
		}
		if pgErr.ConstraintName == incidentEventsSeq {
			return ledger.ErrSeqConflict
		}
	case pgForeignKeyViolation:
		return ledger.ErrNotFound
	}
	return err
}

func mediaRefs(refs []string) []string {
	if refs == nil {
		return []string{}
	}
	return refs
}
