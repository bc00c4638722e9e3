package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/sos_dispatch/internal/apperror"
	"github.com/shenikar/sos_dispatch/internal/config"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/notify"
	"github.com/shenikar/sos_dispatch/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	civilianToken  = "civilian-token"
	responderToken = "responder-token"
)

var (
	civilian  = models.Identity{UserID: "user-1", Role: models.RoleCivilian}
	responder = models.Identity{UserID: "resp-1", Role: models.RoleResponder}
)

// fakeVerifier сопоставляет токены личностям
type fakeVerifier map[string]models.Identity

func (f fakeVerifier) Verify(token string) (models.Identity, error) {
	id, ok := f[token]
	if !ok {
		return models.Identity{}, apperror.Auth(apperror.CodeInvalidToken, "Invalid or expired token")
	}
	return id, nil
}

type fakeSnapshot struct {
	size int
	err  error
}

func (f *fakeSnapshot) Refresh(context.Context) (int, error) { return f.size, f.err }
func (f *fakeSnapshot) Size() int                            { return f.size }

type fakeCounter int

func (f fakeCounter) Count() int { return int(f) }

type fakeDelivery notify.Stats

func (f fakeDelivery) Stats() notify.Stats { return notify.Stats(f) }

// newTestHandler создает Handler с мокированным сервисом
func newTestHandler(t *testing.T) (*mocks.MockIncidentService, *fakeSnapshot, *gin.Engine) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockIncidentService(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		APIKeys:            []string{"test-api-key"},
		RateLimitPerMinute: 1000,
	}
	snapshot := &fakeSnapshot{size: 4}
	admin := AdminDeps{
		Responders:  snapshot,
		Connections: fakeCounter(2),
		Delivery:    fakeDelivery{Attempted: 10, Dropped: 1, Buffered: 3},
	}
	verifier := fakeVerifier{civilianToken: civilian, responderToken: responder}

	handler := NewHandler(mockService, verifier, admin, logger, cfg)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	return mockService, snapshot, router
}

// makeRequest - вспомогательная функция для выполнения HTTP-запросов
func makeRequest(router *gin.Engine, method, url string, body io.Reader, headers ...map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for key, value := range h {
			req.Header.Set(key, value)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	return resp.Error
}

func TestSubmitSOS_Success(t *testing.T) {
	mockService, _, router := newTestHandler(t)
	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	body := `{"clientIncidentId":"c-1","location":{"lat":40.7128,"lng":-74.006},"emergencyType":"medical","notes":"help"}`

	// Ожидания
	mockService.EXPECT().
		SubmitSOS(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req models.SubmitRequest) (*models.SubmitResult, error) {
			assert.Equal(t, "user-1", req.UserID)
			assert.Equal(t, "c-1", req.ClientIncidentID)
			assert.Equal(t, models.Location{Lat: 40.7128, Lng: -74.006}, req.Location)
			assert.Equal(t, "medical", req.EmergencyType)
			return &models.SubmitResult{
				IncidentID: "inc-1",
				Status:     models.StatusDispatched,
				CreatedAt:  createdAt,
				AlertsSent: 1,
				NearestResponders: []models.Match{
					{Responder: models.Responder{ID: "r-1", Name: "Unit 1", Phone: "+100"}, DistanceKm: 1.26},
				},
			}, nil
		})

	// Действие
	w := makeRequest(router, http.MethodPost, "/api/v1/emergency/sos", strings.NewReader(body), bearer(civilianToken))

	// Проверки
	require.Equal(t, http.StatusCreated, w.Code)
	var resp SOSResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, sosAcceptedMessage, resp.Message)
	assert.Equal(t, "inc-1", resp.Data.EmergencyID)
	assert.Equal(t, "dispatched", resp.Data.Status)
	assert.Equal(t, 1, resp.Data.AlertsSent)
	require.Len(t, resp.Data.NearestResponders, 1)
	assert.Equal(t, "1.3 km", resp.Data.NearestResponders[0].Distance)
	assert.Equal(t, "+100", resp.Data.NearestResponders[0].Contact)
}

func TestSubmitSOS_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"location":`},
		{name: "missing location", body: `{"emergencyType":"fire"}`},
		{name: "missing lng", body: `{"location":{"lat":10},"emergencyType":"fire"}`},
		{name: "latitude out of range", body: `{"location":{"lat":91,"lng":0},"emergencyType":"fire"}`},
		{name: "missing type", body: `{"location":{"lat":0,"lng":0}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, router := newTestHandler(t)

			w := makeRequest(router, http.MethodPost, "/api/v1/emergency/sos", strings.NewReader(tt.body), bearer(civilianToken))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, apperror.CodeValidation, decodeError(t, w).Code)
		})
	}
}

func TestSubmitSOS_ZeroCoordinatesAccepted(t *testing.T) {
	mockService, _, router := newTestHandler(t)
	mockService.EXPECT().SubmitSOS(gomock.Any(), gomock.Any()).
		Return(&models.SubmitResult{IncidentID: "inc-0", Status: models.StatusDispatched}, nil)

	w := makeRequest(router, http.MethodPost, "/api/v1/emergency/sos",
		strings.NewReader(`{"location":{"lat":0,"lng":0},"emergencyType":"fire"}`), bearer(civilianToken))

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestSubmitSOS_Unauthorized(t *testing.T) {
	_, _, router := newTestHandler(t)
	body := `{"location":{"lat":1,"lng":1},"emergencyType":"fire"}`

	t.Run("no token", func(t *testing.T) {
		w := makeRequest(router, http.MethodPost, "/api/v1/emergency/sos", strings.NewReader(body))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, apperror.CodeNoToken, decodeError(t, w).Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		w := makeRequest(router, http.MethodPost, "/api/v1/emergency/sos", strings.NewReader(body), bearer("nope"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, apperror.CodeInvalidToken, decodeError(t, w).Code)
	})

	t.Run("not bearer", func(t *testing.T) {
		w := makeRequest(router, http.MethodPost, "/api/v1/emergency/sos", strings.NewReader(body),
			map[string]string{"Authorization": "Basic abc"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestSubmitSOS_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
		retryable  bool
	}{
		{
			name:       "transient masked",
			err:        apperror.Transient(errors.New("pg: connection refused"), "dispatch failed").WithRetryable(),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   apperror.CodeUnavailable,
			wantMsg:    "service temporarily unavailable",
			retryable:  true,
		},
		{
			name:       "in progress",
			err:        apperror.Transient(nil, "submission in progress").WithCode(apperror.CodeDuplicate).WithRetryable(),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   apperror.CodeDuplicate,
			wantMsg:    "submission in progress",
			retryable:  true,
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   apperror.CodeServer,
			wantMsg:    "internal server error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService, _, router := newTestHandler(t)
			mockService.EXPECT().SubmitSOS(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			w := makeRequest(router, http.MethodPost, "/api/v1/emergency/sos",
				strings.NewReader(`{"location":{"lat":1,"lng":1},"emergencyType":"fire"}`), bearer(civilianToken))

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Message)
			assert.Equal(t, tt.retryable, body.Retryable)
		})
	}
}

func TestHistory_Success(t *testing.T) {
	mockService, _, router := newTestHandler(t)
	occurred := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	// Ожидания
	mockService.EXPECT().
		History(gomock.Any(), civilian, models.HistoryFilter{IncidentID: "inc-1", Kind: models.EventDispatched}, "cur", 2).
		Return(&models.HistoryPage{
			Items: []models.IncidentEvent{
				{ID: 7, IncidentID: "inc-1", Seq: 4, Kind: models.EventDispatched, OccurredAt: occurred},
			},
			NextCursor: "next",
			Preceding:  2,
			TotalItems: 5,
			Limit:      2,
		}, nil)

	// Действие
	w := makeRequest(router, http.MethodGet, "/api/v1/emergency/history?limit=2&cursor=cur&kind=dispatched&incidentId=inc-1", nil, bearer(civilianToken))

	// Проверки
	require.Equal(t, http.StatusOK, w.Code)
	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, "dispatched", resp.Data.Items[0].Kind)
	assert.Equal(t, Pagination{Page: 2, TotalPages: 3, TotalItems: 5, ItemsPerPage: 2, NextCursor: "next"}, resp.Data.Pagination)
}

func TestHistory_BadLimit(t *testing.T) {
	_, _, router := newTestHandler(t)

	w := makeRequest(router, http.MethodGet, "/api/v1/emergency/history?limit=abc", nil, bearer(civilianToken))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistory_InvalidCursor(t *testing.T) {
	mockService, _, router := newTestHandler(t)
	mockService.EXPECT().History(gomock.Any(), civilian, gomock.Any(), "garbage", 0).
		Return(nil, apperror.Validation("invalid cursor"))

	w := makeRequest(router, http.MethodGet, "/api/v1/emergency/history?cursor=garbage", nil, bearer(civilianToken))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid cursor", decodeError(t, w).Message)
}

func TestGetIncident(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mockService, _, router := newTestHandler(t)
		view := &models.IncidentView{
			Incident: &models.Incident{ID: "inc-1", UserID: "user-1", EmergencyType: "fire", Location: models.Location{Lat: 1, Lng: 2}},
			Status:   models.StatusAcknowledged,
			Events: []models.IncidentEvent{
				{ID: 1, IncidentID: "inc-1", Seq: 1, Kind: models.EventCreated},
				{ID: 2, IncidentID: "inc-1", Seq: 2, Kind: models.EventAcknowledged, Payload: json.RawMessage(`{"responderId":"resp-1"}`)},
			},
		}
		mockService.EXPECT().GetIncident(gomock.Any(), "inc-1", civilian).Return(view, nil)

		w := makeRequest(router, http.MethodGet, "/api/v1/emergency/inc-1", nil, bearer(civilianToken))

		require.Equal(t, http.StatusOK, w.Code)
		var resp IncidentResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "acknowledged", resp.Status)
		assert.Equal(t, LocationOut{Lat: 1, Lng: 2}, resp.Location)
		require.Len(t, resp.Events, 2)
		assert.JSONEq(t, `{"responderId":"resp-1"}`, string(resp.Events[1].Payload))
	})

	t.Run("not found", func(t *testing.T) {
		mockService, _, router := newTestHandler(t)
		mockService.EXPECT().GetIncident(gomock.Any(), "missing", civilian).
			Return(nil, apperror.NotFound("incident %s not found", "missing"))

		w := makeRequest(router, http.MethodGet, "/api/v1/emergency/missing", nil, bearer(civilianToken))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperror.CodeNotFound, decodeError(t, w).Code)
	})
}

func TestTransitions(t *testing.T) {
	ev := &models.IncidentEvent{ID: 9, IncidentID: "inc-1", Seq: 5, Kind: models.EventAcknowledged}

	t.Run("acknowledge", func(t *testing.T) {
		mockService, _, router := newTestHandler(t)
		mockService.EXPECT().Acknowledge(gomock.Any(), "inc-1", responder).Return(ev, nil)

		w := makeRequest(router, http.MethodPost, "/api/v1/emergency/inc-1/acknowledge", nil, bearer(responderToken))

		require.Equal(t, http.StatusOK, w.Code)
		var resp TransitionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, int64(5), resp.Data.Seq)
	})

	t.Run("resolve conflict", func(t *testing.T) {
		mockService, _, router := newTestHandler(t)
		mockService.EXPECT().Resolve(gomock.Any(), "inc-1", responder).
			Return(nil, apperror.Conflict("cannot apply resolved to cancelled"))

		w := makeRequest(router, http.MethodPost, "/api/v1/emergency/inc-1/resolve", nil, bearer(responderToken))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, apperror.CodeConflict, decodeError(t, w).Code)
	})

	t.Run("cancel forbidden", func(t *testing.T) {
		mockService, _, router := newTestHandler(t)
		mockService.EXPECT().Cancel(gomock.Any(), "inc-1", responder).
			Return(nil, apperror.Forbidden("only the reporting user can cancel"))

		w := makeRequest(router, http.MethodPost, "/api/v1/emergency/inc-1/cancel", nil, bearer(responderToken))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestAdminRoutes(t *testing.T) {
	apiKey := map[string]string{"X-API-Key": "test-api-key"}

	t.Run("stats", func(t *testing.T) {
		_, _, router := newTestHandler(t)

		w := makeRequest(router, http.MethodGet, "/api/v1/admin/stats", nil, apiKey)

		require.Equal(t, http.StatusOK, w.Code)
		var resp StatsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, StatsResponse{Connections: 2, Responders: 4, Attempted: 10, Dropped: 1, ReplayBuffered: 3}, resp)
	})

	t.Run("stats without key", func(t *testing.T) {
		_, _, router := newTestHandler(t)

		w := makeRequest(router, http.MethodGet, "/api/v1/admin/stats", nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("stats with wrong key", func(t *testing.T) {
		_, _, router := newTestHandler(t)

		w := makeRequest(router, http.MethodGet, "/api/v1/admin/stats", nil, map[string]string{"X-API-Key": "wrong"})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, apperror.CodeInvalidToken, decodeError(t, w).Code)
	})

	t.Run("reload", func(t *testing.T) {
		_, snapshot, router := newTestHandler(t)
		snapshot.size = 7

		w := makeRequest(router, http.MethodPost, "/api/v1/admin/responders/reload", nil, bearer("test-api-key"))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"responders":7}`, w.Body.String())
	})

	t.Run("reload failure", func(t *testing.T) {
		_, snapshot, router := newTestHandler(t)
		snapshot.err = apperror.Transient(errors.New("db down"), "load responders")

		w := makeRequest(router, http.MethodPost, "/api/v1/admin/responders/reload", nil, apiKey)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHealthCheck(t *testing.T) {
	_, _, router := newTestHandler(t)

	w := makeRequest(router, http.MethodGet, "/api/v1/system/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRateLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	cfg := &config.Config{RateLimitPerMinute: 2}
	handler := NewHandler(mocks.NewMockIncidentService(ctrl), fakeVerifier{}, AdminDeps{}, logger, cfg)
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler.RegisterRoutes(router.Group("/api/v1"))

	// Действие
	var codes []int
	for i := 0; i < 3; i++ {
		codes = append(codes, makeRequest(router, http.MethodGet, "/api/v1/system/health", nil).Code)
	}

	// Проверки
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
