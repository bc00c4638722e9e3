package models

import (
	"errors"
	"time"
)

// ErrSubmissionInProgress - исходная отправка с тем же ключом еще выполняется
var ErrSubmissionInProgress = errors.New("submission in progress")

// SubmitRequest - проверенный запрос на создание SOS
type SubmitRequest struct {
	UserID           string
	ClientIncidentID string
	Location         Location
	EmergencyType    string
	Notes            string
	Media            []string
}

// SubmitResult - результат приема SOS; alerts_sent - число попыток, а не доставок
type SubmitResult struct {
	IncidentID        string    `json:"incident_id"`
	Status            Status    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	AlertsSent        int       `json:"alerts_sent"`
	NearestResponders []Match   `json:"nearest_responders"`
}

// HistoryFilter - фильтр журнала событий
type HistoryFilter struct {
	UserID     string
	IncidentID string
	Kind       EventKind
}

// HistoryPage - страница журнала
type HistoryPage struct {
	Items      []IncidentEvent
	NextCursor string
	// Preceding - сколько событий фильтра идут раньше этой страницы
	Preceding  int
	TotalItems int
	Limit      int
}
