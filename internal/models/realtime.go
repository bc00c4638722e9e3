package models

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleResponder Role = "responder"
	RoleCivilian  Role = "civilian"
)

func (r Role) Valid() bool {
	return r == RoleResponder || r == RoleCivilian
}

// TopicRespondersActive - все подключенные ответчики
const TopicRespondersActive = "responders:active"

const (
	EventNameConnected    = "connected"
	EventNameNewIncident  = "emergency:new"
	EventNameSOS          = "emergency:sos"
	EventNameSOSConfirmed = "emergency:sos:confirmed"
	EventNameAck          = "emergency:ack"
	EventNameAckConfirmed = "emergency:ack:confirmed"
	EventNameReplay       = "replay"
	EventNameReplayGap    = "replay:gap"
	EventNameError        = "error"
)

// Message - сообщение канала уведомлений. ID уникален, получатели дедуплицируют по нему.
type Message struct {
	ID        string          `json:"id"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"-"`
}

// NewIncidentPayload - рассылка нового инцидента ответчикам
type NewIncidentPayload struct {
	EmergencyID   string    `json:"emergencyId"`
	UserID        string    `json:"userId"`
	EmergencyType string    `json:"emergencyType"`
	Location      Location  `json:"location"`
	Notes         string    `json:"notes,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// AckPayload - уведомление заявителя о том, что ответчик принял вызов
type AckPayload struct {
	EmergencyID    string    `json:"emergencyId"`
	ResponderID    string    `json:"responderId"`
	AcknowledgedAt time.Time `json:"acknowledgedAt"`
}

// Identity - проверенная личность вызывающего
type Identity struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}
