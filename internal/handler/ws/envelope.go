package ws

import "encoding/json"

// envelope - входящий кадр клиента {id, event, data}
type envelope struct {
	ID    string          `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type locationData struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lng *float64 `json:"lng" validate:"required,longitude"`
}

// sosData - данные emergency:sos; emergencyId клиента служит ключом идемпотентности
type sosData struct {
	EmergencyID   string       `json:"emergencyId" validate:"omitempty,max=128"`
	Location      locationData `json:"location" validate:"required"`
	EmergencyType string       `json:"emergencyType" validate:"required,max=64"`
	Notes         string       `json:"notes" validate:"max=2000"`
	Media         []string     `json:"media" validate:"max=10,dive,max=1024"`
}

type ackData struct {
	EmergencyID string `json:"emergencyId" validate:"required"`
}

type replayData struct {
	LastSeenID string `json:"lastSeenId"`
}

type sosConfirmed struct {
	RequestID   string `json:"requestId,omitempty"`
	Success     bool   `json:"success"`
	EmergencyID string `json:"emergencyId"`
	AlertsSent  int    `json:"alertsSent"`
	Message     string `json:"message"`
}

type ackConfirmed struct {
	RequestID   string `json:"requestId,omitempty"`
	Success     bool   `json:"success"`
	EmergencyID string `json:"emergencyId"`
	Seq         int64  `json:"seq"`
}

type errorData struct {
	RequestID string `json:"requestId,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
