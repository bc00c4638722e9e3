package v1

import (
	"encoding/json"
	"time"
)

// LocationDTO - координаты в градусах; указатели отличают отсутствие поля от нуля
// @Description Координаты точки
type LocationDTO struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lng *float64 `json:"lng" validate:"required,longitude"`
}

// SOSRequest DTO для отправки SOS
// @Description DTO для отправки SOS
type SOSRequest struct {
	ClientIncidentID string      `json:"clientIncidentId,omitempty" validate:"omitempty,max=128"`
	Location         LocationDTO `json:"location" validate:"required"`
	EmergencyType    string      `json:"emergencyType" validate:"required,max=64"`
	Notes            string      `json:"notes,omitempty" validate:"max=2000"`
	Media            []string    `json:"media,omitempty" validate:"max=10,dive,max=1024"`
}

// ResponderResponse DTO ближайшего ответчика
// @Description Ближайший ответчик
type ResponderResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	DistanceKm float64 `json:"distanceKm"`
	Distance   string  `json:"distance"`
	Contact    string  `json:"contact,omitempty"`
}

// SOSData DTO результата SOS
// @Description Результат приема SOS
type SOSData struct {
	EmergencyID       string              `json:"emergencyId"`
	Status            string              `json:"status"`
	CreatedAt         time.Time           `json:"createdAt"`
	AlertsSent        int                 `json:"alertsSent"`
	NearestResponders []ResponderResponse `json:"nearestResponders"`
}

// SOSResponse DTO ответа на SOS
// @Description Ответ на SOS
type SOSResponse struct {
	Success bool    `json:"success"`
	Data    SOSData `json:"data"`
	Message string  `json:"message"`
}

// EventResponse DTO записи журнала
// @Description Событие журнала инцидента
type EventResponse struct {
	ID         int64           `json:"id"`
	IncidentID string          `json:"incidentId"`
	Seq        int64           `json:"seq"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload,omitempty" swaggertype:"object"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// IncidentResponse DTO инцидента с производным статусом
// @Description Инцидент с производным статусом и журналом
type IncidentResponse struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	EmergencyType string          `json:"emergencyType"`
	Location      LocationOut     `json:"location"`
	Notes         string          `json:"notes,omitempty"`
	Media         []string        `json:"media,omitempty"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	Events        []EventResponse `json:"events"`
}

// LocationOut - координаты в ответе
type LocationOut struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Pagination DTO пагинации журнала
// @Description Пагинация журнала
type Pagination struct {
	Page         int    `json:"page"`
	TotalPages   int    `json:"totalPages"`
	TotalItems   int    `json:"totalItems"`
	ItemsPerPage int    `json:"itemsPerPage"`
	NextCursor   string `json:"nextCursor,omitempty"`
}

// HistoryData DTO страницы журнала
type HistoryData struct {
	Items      []EventResponse `json:"items"`
	Pagination Pagination      `json:"pagination"`
}

// HistoryResponse DTO ответа журнала
// @Description Страница журнала событий
type HistoryResponse struct {
	Success bool        `json:"success"`
	Data    HistoryData `json:"data"`
}

// TransitionResponse DTO ответа на смену статуса
// @Description Добавленное событие
type TransitionResponse struct {
	Success bool          `json:"success"`
	Data    EventResponse `json:"data"`
}

// ErrorBody DTO ошибки
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// ErrorResponse DTO ответа с ошибкой
// @Description Ошибка
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// StatsResponse DTO для ответа со статистикой
// @Description DTO для ответа со статистикой
type StatsResponse struct {
	Connections    int    `json:"connections"`
	Responders     int    `json:"responders"`
	Attempted      uint64 `json:"deliveriesAttempted"`
	Dropped        uint64 `json:"deliveriesDropped"`
	ReplayBuffered int    `json:"replayBuffered"`
}

// ReloadResponse DTO ответа на перезагрузку справочника
type ReloadResponse struct {
	Responders int `json:"responders"`
}
