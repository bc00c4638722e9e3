package ledger

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shenikar/sos_dispatch/internal/models"
)

// Cursor - позиция в журнале по ключу (occurred_at desc, id desc)
type Cursor struct {
	OccurredAt time.Time
	ID         int64
}

// CursorAt возвращает курсор, указывающий на событие ev
func CursorAt(ev models.IncidentEvent) Cursor {
	return Cursor{OccurredAt: ev.OccurredAt, ID: ev.ID}
}

// Encode сериализует курсор в непрозрачную строку
func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.OccurredAt.UnixNano(), 10) + ":" + strconv.FormatInt(c.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor разбирает курсор; пустая строка означает начало журнала
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed cursor")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor time: %w", err)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor id: %w", err)
	}
	return &Cursor{OccurredAt: time.Unix(0, nanos).UTC(), ID: id}, nil
}

// After сообщает, что ev идет в выдаче после курсора (строго старше по ключу)
func (c Cursor) After(ev models.IncidentEvent) bool {
	if ev.OccurredAt.Equal(c.OccurredAt) {
		return ev.ID < c.ID
	}
	return ev.OccurredAt.Before(c.OccurredAt)
}
