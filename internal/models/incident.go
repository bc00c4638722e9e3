package models

import (
	"encoding/json"
	"time"
)

// Location - географическая точка в градусах WGS84
type Location struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// Valid проверяет границы координат
func (l Location) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// Incident - один сигнал SOS. Статус не хранится, а выводится из журнала событий.
type Incident struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	EmergencyType string    `json:"emergency_type"`
	Location      Location  `json:"location"`
	Notes         string    `json:"notes,omitempty"`
	MediaRefs     []string  `json:"media_refs,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type EventKind string

const (
	EventCreated      EventKind = "created"
	EventLocated      EventKind = "located"
	EventDispatched   EventKind = "dispatched"
	EventAcknowledged EventKind = "acknowledged"
	EventResolved     EventKind = "resolved"
	EventCancelled    EventKind = "cancelled"
	EventFailed       EventKind = "failed"
)

// Valid сообщает, входит ли kind в перечисление
func (k EventKind) Valid() bool {
	switch k {
	case EventCreated, EventLocated, EventDispatched, EventAcknowledged,
		EventResolved, EventCancelled, EventFailed:
		return true
	}
	return false
}

// Status - производный статус инцидента
type Status string

const (
	StatusNone         Status = ""
	StatusCreated      Status = "created"
	StatusLocated      Status = "located"
	StatusDispatched   Status = "dispatched"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
	StatusCancelled    Status = "cancelled"
	StatusFailed       Status = "failed"
)

// Terminal сообщает, что из статуса больше нет переходов
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled || s == StatusFailed
}

// IncidentEvent - неизменяемая запись журнала инцидента
type IncidentEvent struct {
	ID         int64           `json:"id"`
	IncidentID string          `json:"incident_id"`
	Seq        int64           `json:"seq"`
	Kind       EventKind       `json:"kind"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// IncidentView - инцидент вместе с производным статусом и историей
type IncidentView struct {
	Incident *Incident       `json:"incident"`
	Status   Status          `json:"status"`
	Events   []IncidentEvent `json:"events"`
}

// LocatedPayload - полезная нагрузка события located
type LocatedPayload struct {
	RadiusKm   float64 `json:"radius_km"`
	Responders []Match `json:"responders"`
}

// DispatchedPayload - полезная нагрузка события dispatched
type DispatchedPayload struct {
	Topic      string `json:"topic"`
	AlertsSent int    `json:"alerts_sent"`
}

// AcknowledgedPayload - полезная нагрузка события acknowledged
type AcknowledgedPayload struct {
	ResponderID string `json:"responder_id"`
}

// ActorPayload - кто выполнил переход (resolve/cancel)
type ActorPayload struct {
	UserID string `json:"user_id,omitempty"`
}

// FailedPayload - причина перевода инцидента в failed
type FailedPayload struct {
	Reason string `json:"reason"`
}
