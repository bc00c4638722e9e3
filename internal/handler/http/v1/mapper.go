package v1

import (
	"fmt"

	"github.com/shenikar/sos_dispatch/internal/models"
)

// DTOToSubmitRequest преобразует DTO в запрос диспетчеру
func DTOToSubmitRequest(dto SOSRequest, userID string) models.SubmitRequest {
	req := models.SubmitRequest{
		UserID:           userID,
		ClientIncidentID: dto.ClientIncidentID,
		EmergencyType:    dto.EmergencyType,
		Notes:            dto.Notes,
		Media:            dto.Media,
	}
	if dto.Location.Lat != nil && dto.Location.Lng != nil {
		req.Location = models.Location{Lat: *dto.Location.Lat, Lng: *dto.Location.Lng}
	}
	return req
}

// ModelToSOSData преобразует результат SOS в DTO для ответа
func ModelToSOSData(result *models.SubmitResult) SOSData {
	responders := make([]ResponderResponse, len(result.NearestResponders))
	for i, m := range result.NearestResponders {
		responders[i] = ResponderResponse{
			ID:         m.Responder.ID,
			Name:       m.Responder.Name,
			DistanceKm: m.DistanceKm,
			Distance:   fmt.Sprintf("%.1f km", m.DistanceKm),
			Contact:    m.Responder.Phone,
		}
	}
	return SOSData{
		EmergencyID:       result.IncidentID,
		Status:            string(result.Status),
		CreatedAt:         result.CreatedAt,
		AlertsSent:        result.AlertsSent,
		NearestResponders: responders,
	}
}

// ModelToEventResponse преобразует событие журнала в DTO
func ModelToEventResponse(ev models.IncidentEvent) EventResponse {
	return EventResponse{
		ID:         ev.ID,
		IncidentID: ev.IncidentID,
		Seq:        ev.Seq,
		Kind:       string(ev.Kind),
		Payload:    ev.Payload,
		OccurredAt: ev.OccurredAt,
	}
}

// ModelsToEventResponses преобразует слайс событий в слайс DTO
func ModelsToEventResponses(events []models.IncidentEvent) []EventResponse {
	responses := make([]EventResponse, len(events))
	for i, ev := range events {
		responses[i] = ModelToEventResponse(ev)
	}
	return responses
}

// ModelToIncidentResponse преобразует инцидент с журналом в DTO
func ModelToIncidentResponse(view *models.IncidentView) IncidentResponse {
	return IncidentResponse{
		ID:            view.Incident.ID,
		UserID:        view.Incident.UserID,
		EmergencyType: view.Incident.EmergencyType,
		Location:      LocationOut{Lat: view.Incident.Location.Lat, Lng: view.Incident.Location.Lng},
		Notes:         view.Incident.Notes,
		Media:         view.Incident.MediaRefs,
		Status:        string(view.Status),
		CreatedAt:     view.Incident.CreatedAt,
		Events:        ModelsToEventResponses(view.Events),
	}
}

// ModelToHistoryData преобразует страницу журнала; номер страницы выводится из числа
// событий, выданных до курсора
func ModelToHistoryData(page *models.HistoryPage) HistoryData {
	totalPages := 0
	if page.Limit > 0 {
		totalPages = (page.TotalItems + page.Limit - 1) / page.Limit
	}
	current := 1
	if page.Limit > 0 {
		current = page.Preceding/page.Limit + 1
	}
	return HistoryData{
		Items: ModelsToEventResponses(page.Items),
		Pagination: Pagination{
			Page:         current,
			TotalPages:   totalPages,
			TotalItems:   page.TotalItems,
			ItemsPerPage: page.Limit,
			NextCursor:   page.NextCursor,
		},
	}
}
