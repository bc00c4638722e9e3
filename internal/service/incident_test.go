package service

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shenikar/sos_dispatch/internal/apperror"
	"github.com/shenikar/sos_dispatch/internal/config"
	"github.com/shenikar/sos_dispatch/internal/ledger"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/notify"
	"github.com/shenikar/sos_dispatch/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type testDeps struct {
	store       *ledger.MemoryStore
	ledger      *ledger.Ledger
	locator     *mocks.MockResponderLocator
	notifier    *mocks.MockNotifier
	alerter     *mocks.MockContactAlerter
	idempotency *MemoryIdempotencyStore
}

// newTestIncidentService - вспомогательная функция для создания инстанса сервиса с моками.
// Журнал настоящий, в памяти, чтобы проверять производный статус.
func newTestIncidentService(t *testing.T) (*incidentService, *testDeps) {
	ctrl := gomock.NewController(t)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	store := ledger.NewMemoryStore()
	deps := &testDeps{
		store:       store,
		ledger:      ledger.New(store, logger),
		locator:     mocks.NewMockResponderLocator(ctrl),
		notifier:    mocks.NewMockNotifier(ctrl),
		alerter:     mocks.NewMockContactAlerter(ctrl),
		idempotency: NewMemoryIdempotencyStore(time.Minute),
	}

	cfg := &config.Config{
		LocatorRadiusKm:        50,
		LocatorLimit:           5,
		DispatchRetryAttempts:  3,
		DispatchRetryBaseDelay: time.Millisecond,
		DispatchTimeout:        2 * time.Second,
		FanoutTimeout:          time.Second,
	}

	svc := NewIncidentService(deps.ledger, deps.locator, deps.notifier, deps.idempotency, deps.alerter, cfg, logger)
	return svc.(*incidentService), deps
}

var (
	cebu       = models.Location{Lat: 10.3103, Lng: 123.9494}
	responderA = models.Responder{ID: "A", Name: "Station A", Location: models.Location{Lat: 10.3283, Lng: 123.9494}, ServiceRadiusKm: 50}
)

func sosRequest(key string) models.SubmitRequest {
	return models.SubmitRequest{
		UserID:           "U1",
		ClientIncidentID: key,
		Location:         cebu,
		EmergencyType:    "medical",
		Notes:            "chest pain",
	}
}

// expectFanout ожидает адресную доставку каждому ответчику, рассылку в топик и оповещение контактов
func expectFanout(deps *testDeps, responderIDs ...string) {
	for _, id := range responderIDs {
		deps.notifier.EXPECT().
			Deliver(gomock.Any(), notify.ToUser(id), gomock.Any()).
			Return(1, nil).
			Times(1)
	}
	deps.notifier.EXPECT().
		Deliver(gomock.Any(), notify.ToTopic(models.TopicRespondersActive), gomock.Any()).
		Return(len(responderIDs), nil).
		Times(1)
	deps.alerter.EXPECT().
		SendSOSAlerts(gomock.Any(), gomock.Any()).
		Return(1, nil).
		Times(1)
}

func TestSubmitSOS_Success(t *testing.T) {
	// Подготовка
	service, deps := newTestIncidentService(t)
	ctx := context.Background()
	match := models.Match{Responder: responderA, DistanceKm: 2}

	// Ожидания
	deps.locator.EXPECT().
		Query(gomock.Any(), cebu, 50.0, 5).
		Return([]models.Match{match}, nil).
		Times(1)
	expectFanout(deps, "A")

	// Действие
	result, err := service.SubmitSOS(ctx, sosRequest(""))
	service.Close()

	// Проверки
	require.NoError(t, err)
	assert.NotEmpty(t, result.IncidentID)
	assert.Equal(t, models.StatusDispatched, result.Status)
	assert.Equal(t, 1, result.AlertsSent)
	assert.Equal(t, []models.Match{match}, result.NearestResponders)

	view, err := deps.ledger.View(ctx, result.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDispatched, view.Status)
	require.Len(t, view.Events, 3)
	assert.Equal(t, models.EventCreated, view.Events[0].Kind)
	assert.Equal(t, models.EventLocated, view.Events[1].Kind)
	assert.Equal(t, models.EventDispatched, view.Events[2].Kind)

	var dispatched models.DispatchedPayload
	require.NoError(t, json.Unmarshal(view.Events[2].Payload, &dispatched))
	assert.Equal(t, 1, dispatched.AlertsSent)
}

func TestSubmitSOS_ZeroResponders(t *testing.T) {
	// Подготовка
	service, deps := newTestIncidentService(t)
	ctx := context.Background()

	// Ожидания
	deps.locator.EXPECT().
		Query(gomock.Any(), cebu, 50.0, 5).
		Return([]models.Match{}, nil).
		Times(1)
	expectFanout(deps)

	// Действие
	result, err := service.SubmitSOS(ctx, sosRequest(""))
	service.Close()

	// Проверки
	require.NoError(t, err)
	assert.Zero(t, result.AlertsSent)
	assert.Empty(t, result.NearestResponders)

	status, err := deps.ledger.DeriveStatus(ctx, result.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDispatched, status)
}

func TestSubmitSOS_Validation(t *testing.T) {
	service, _ := newTestIncidentService(t)
	defer service.Close()

	tests := []struct {
		name   string
		mutate func(r *models.SubmitRequest)
	}{
		{name: "latitude out of range", mutate: func(r *models.SubmitRequest) { r.Location.Lat = 91 }},
		{name: "longitude out of range", mutate: func(r *models.SubmitRequest) { r.Location.Lng = -181 }},
		{name: "no emergency type", mutate: func(r *models.SubmitRequest) { r.EmergencyType = " " }},
		{name: "no user", mutate: func(r *models.SubmitRequest) { r.UserID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := sosRequest("")
			tt.mutate(&req)

			_, err := service.SubmitSOS(context.Background(), req)

			assert.True(t, apperror.Is(err, apperror.KindValidation))
		})
	}
}

func TestSubmitSOS_IdempotentWithinWindow(t *testing.T) {
	// Подготовка
	service, deps := newTestIncidentService(t)
	ctx := context.Background()

	// Ожидания: локатор и рассылка вызываются только один раз
	deps.locator.EXPECT().
		Query(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]models.Match{{Responder: responderA, DistanceKm: 2}}, nil).
		Times(1)
	expectFanout(deps, "A")

	// Действие
	first, err := service.SubmitSOS(ctx, sosRequest("K1"))
	require.NoError(t, err)
	second, err := service.SubmitSOS(ctx, sosRequest("K1"))
	service.Close()

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, first.IncidentID, second.IncidentID)
	assert.Equal(t, first.AlertsSent, second.AlertsSent)

	page, err := deps.ledger.History(ctx, models.HistoryFilter{Kind: models.EventCreated}, "", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalItems)
}

func TestSubmitSOS_DuplicateInProgress(t *testing.T) {
	// Подготовка
	ctrl := gomock.NewController(t)
	service, _ := newTestIncidentService(t)
	idem := mocks.NewMockIdempotencyStore(ctrl)
	service.idempotency = idem

	// Ожидания
	idem.EXPECT().
		Begin(gomock.Any(), "U1", "K1").
		Return(nil, models.ErrSubmissionInProgress).
		Times(1)

	// Действие
	_, err := service.SubmitSOS(context.Background(), sosRequest("K1"))

	// Проверки
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindTransient))
	assert.True(t, apperror.IsRetryable(err))
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeDuplicate, appErr.Code)
}

func TestSubmitSOS_RetriesTransientStoreFailure(t *testing.T) {
	// Подготовка
	service, deps := newTestIncidentService(t)
	deps.store.FailNext(1)

	// Ожидания
	deps.locator.EXPECT().
		Query(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil).
		Times(1)
	expectFanout(deps)

	// Действие
	result, err := service.SubmitSOS(context.Background(), sosRequest(""))
	service.Close()

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.StatusDispatched, result.Status)
}

func TestSubmitSOS_ExhaustedRetriesMarkFailed(t *testing.T) {
	// Подготовка
	service, deps := newTestIncidentService(t)
	ctx := context.Background()
	unavailable := apperror.Transient(nil, "dataset unavailable").WithRetryable()

	// Ожидания: три попытки, затем повторная отправка с тем же ключом снова доходит до локатора
	deps.locator.EXPECT().
		Query(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, unavailable).
		Times(3)

	// Действие
	_, err := service.SubmitSOS(ctx, sosRequest("K1"))

	// Проверки
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindTransient))
	assert.True(t, apperror.IsRetryable(err))

	status, err := deps.ledger.DeriveStatus(ctx, "K1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, status)

	// Резерв ключа снят: новая попытка начинается заново
	prev, err := deps.idempotency.Begin(ctx, "U1", "K1")
	require.NoError(t, err)
	assert.Nil(t, prev)
	service.Close()
}

func TestSubmitSOS_ClientIDBecomesIncidentID(t *testing.T) {
	// Подготовка
	service, deps := newTestIncidentService(t)
	ctx := context.Background()

	// Ожидания
	deps.locator.EXPECT().
		Query(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil).
		Times(1)
	expectFanout(deps)

	// Действие
	result, err := service.SubmitSOS(ctx, sosRequest("client-42"))
	service.Close()

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "client-42", result.IncidentID)

	view, err := service.GetIncident(ctx, "client-42", models.Identity{UserID: "U1", Role: models.RoleCivilian})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDispatched, view.Status)
}

func TestSubmitSOS_ResubmitAfterWindowReturnsExistingIncident(t *testing.T) {
	// Подготовка
	service, deps := newTestIncidentService(t)
	ctx := context.Background()
	match := models.Match{Responder: responderA, DistanceKm: 2}

	// Ожидания: локатор и рассылка только для первой отправки
	deps.locator.EXPECT().
		Query(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]models.Match{match}, nil).
		Times(1)
	expectFanout(deps, "A")

	first, err := service.SubmitSOS(ctx, sosRequest("K7"))
	require.NoError(t, err)
	service.fanouts.Wait()

	// окно идемпотентности истекло
	service.idempotency = NewMemoryIdempotencyStore(time.Minute)

	// Действие
	second, err := service.SubmitSOS(ctx, sosRequest("K7"))
	service.Close()

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, first.IncidentID, second.IncidentID)
	assert.Equal(t, models.StatusDispatched, second.Status)
	assert.Equal(t, 1, second.AlertsSent)
	require.Len(t, second.NearestResponders, 1)
	assert.Equal(t, "A", second.NearestResponders[0].Responder.ID)

	page, err := deps.ledger.History(ctx, models.HistoryFilter{Kind: models.EventCreated}, "", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalItems)
}

func TestSubmitSOS_ClientIDTakenByAnotherUser(t *testing.T) {
	// Подготовка
	service, deps := newTestIncidentService(t)
	ctx := context.Background()
	deps.locator.EXPECT().
		Query(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil).
		Times(1)
	expectFanout(deps)
	_, err := service.SubmitSOS(ctx, sosRequest("shared"))
	require.NoError(t, err)

	req := sosRequest("shared")
	req.UserID = "U2"

	// Действие
	_, err = service.SubmitSOS(ctx, req)
	service.Close()

	// Проверки
	assert.True(t, apperror.Is(err, apperror.KindConflict))
	view, err := deps.ledger.View(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, "U1", view.Incident.UserID)
}

func TestSubmitSOS_ResubmitAfterFailureOpensNewIncident(t *testing.T) {
	// Подготовка
	service, deps := newTestIncidentService(t)
	ctx := context.Background()
	service.newID = func() string { return "inc-retry" }
	unavailable := apperror.Transient(nil, "dataset unavailable").WithRetryable()

	// Ожидания: первая отправка исчерпывает повторы, вторая проходит
	gomock.InOrder(
		deps.locator.EXPECT().
			Query(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, unavailable).
			Times(3),
		deps.locator.EXPECT().
			Query(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, nil).
			Times(1),
	)
	expectFanout(deps)

	_, err := service.SubmitSOS(ctx, sosRequest("K9"))
	require.Error(t, err)

	// Действие
	result, err := service.SubmitSOS(ctx, sosRequest("K9"))
	service.Close()

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "inc-retry", result.IncidentID)
	assert.Equal(t, models.StatusDispatched, result.Status)

	status, err := deps.ledger.DeriveStatus(ctx, "K9")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, status)
}

func TestSubmitSOS_ReturnsWithoutWaitingForFanout(t *testing.T) {
	// Подготовка
	service, deps := newTestIncidentService(t)
	release := make(chan struct{})
	deps.locator.EXPECT().
		Query(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]models.Match{{Responder: responderA, DistanceKm: 2}}, nil).
		Times(1)

	// Ожидания: адресная доставка блокируется до конца теста
	deps.notifier.EXPECT().
		Deliver(gomock.Any(), notify.ToUser("A"), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ notify.Target, _ models.Message) (int, error) {
			<-release
			return 1, nil
		}).
		Times(1)
	deps.notifier.EXPECT().
		Deliver(gomock.Any(), notify.ToTopic(models.TopicRespondersActive), gomock.Any()).
		Return(0, nil).
		Times(1)
	deps.alerter.EXPECT().SendSOSAlerts(gomock.Any(), gomock.Any()).Return(1, nil).Times(1)

	// Действие
	done := make(chan *models.SubmitResult, 1)
	go func() {
		result, err := service.SubmitSOS(context.Background(), sosRequest(""))
		assert.NoError(t, err)
		done <- result
	}()

	// Проверки
	select {
	case result := <-done:
		require.NotNil(t, result)
		assert.Equal(t, models.StatusDispatched, result.Status)
	case <-time.After(time.Second):
		t.Fatal("SubmitSOS blocked on fan-out delivery")
	}
	close(release)
	service.Close()
}

func TestSubmitSOS_PermanentErrorNotRetried(t *testing.T) {
	service, deps := newTestIncidentService(t)
	defer service.Close()

	deps.locator.EXPECT().
		Query(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, apperror.Validation("bad radius")).
		Times(1)

	_, err := service.SubmitSOS(context.Background(), sosRequest(""))

	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestSubmitSOS_RejectedAfterClose(t *testing.T) {
	service, _ := newTestIncidentService(t)
	service.Close()

	_, err := service.SubmitSOS(context.Background(), sosRequest(""))

	assert.True(t, apperror.Is(err, apperror.KindTransient))
}

// submitDispatched создает инцидент в статусе dispatched без ответчиков
func submitDispatched(t *testing.T, service *incidentService, deps *testDeps) string {
	t.Helper()
	deps.locator.EXPECT().
		Query(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil).
		Times(1)
	expectFanout(deps)
	result, err := service.SubmitSOS(context.Background(), sosRequest(""))
	require.NoError(t, err)
	service.fanouts.Wait()
	return result.IncidentID
}

func TestCancel_AfterDispatch(t *testing.T) {
	// Подготовка
	service, deps := newTestIncidentService(t)
	ctx := context.Background()
	id := submitDispatched(t, service, deps)
	owner := models.Identity{UserID: "U1", Role: models.RoleCivilian}
	responder := models.Identity{UserID: "A", Role: models.RoleResponder}

	// Действие
	_, err := service.Cancel(ctx, id, models.Identity{UserID: "U2", Role: models.RoleCivilian})
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	ev, err := service.Cancel(ctx, id, owner)
	require.NoError(t, err)
	assert.Equal(t, models.EventCancelled, ev.Kind)

	// Проверки: после отмены подтверждение невозможно
	_, err = service.Acknowledge(ctx, id, responder)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	status, err := service.DeriveStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, status)
}

func TestAcknowledge_NotifiesReporter(t *testing.T) {
	// Подготовка
	service, deps := newTestIncidentService(t)
	ctx := context.Background()
	id := submitDispatched(t, service, deps)

	// Ожидания
	deps.notifier.EXPECT().
		Deliver(gomock.Any(), notify.ToUser("U1"), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ notify.Target, msg models.Message) (int, error) {
			assert.Equal(t, models.EventNameAck, msg.Event)
			var payload models.AckPayload
			require.NoError(t, json.Unmarshal(msg.Data, &payload))
			assert.Equal(t, id, payload.EmergencyID)
			assert.Equal(t, "A", payload.ResponderID)
			return 1, nil
		}).
		Times(1)

	// Действие
	ev, err := service.Acknowledge(ctx, id, models.Identity{UserID: "A", Role: models.RoleResponder})

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.EventAcknowledged, ev.Kind)

	_, err = service.Resolve(ctx, id, models.Identity{UserID: "A", Role: models.RoleResponder})
	require.NoError(t, err)
	status, err := service.DeriveStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, status)
}

func TestAcknowledge_RequiresResponder(t *testing.T) {
	service, _ := newTestIncidentService(t)

	_, err := service.Acknowledge(context.Background(), "any", models.Identity{UserID: "U1", Role: models.RoleCivilian})
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	_, err = service.Resolve(context.Background(), "any", models.Identity{UserID: "U1", Role: models.RoleCivilian})
	assert.True(t, apperror.Is(err, apperror.KindForbidden))
}

func TestAcknowledge_UnknownIncident(t *testing.T) {
	service, _ := newTestIncidentService(t)

	_, err := service.Acknowledge(context.Background(), "missing", models.Identity{UserID: "A", Role: models.RoleResponder})

	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestGetIncident_HidesForeignIncidents(t *testing.T) {
	service, deps := newTestIncidentService(t)
	ctx := context.Background()
	id := submitDispatched(t, service, deps)

	view, err := service.GetIncident(ctx, id, models.Identity{UserID: "U1", Role: models.RoleCivilian})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDispatched, view.Status)

	_, err = service.GetIncident(ctx, id, models.Identity{UserID: "A", Role: models.RoleResponder})
	require.NoError(t, err)

	_, err = service.GetIncident(ctx, id, models.Identity{UserID: "U2", Role: models.RoleCivilian})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestHistory_CiviliansSeeOwnIncidents(t *testing.T) {
	service, deps := newTestIncidentService(t)
	ctx := context.Background()
	submitDispatched(t, service, deps)

	mine, err := service.History(ctx, models.Identity{UserID: "U1", Role: models.RoleCivilian}, models.HistoryFilter{}, "", 10)
	require.NoError(t, err)
	assert.Equal(t, 3, mine.TotalItems)

	// Фильтр по чужому пользователю игнорируется
	other, err := service.History(ctx, models.Identity{UserID: "U2", Role: models.RoleCivilian}, models.HistoryFilter{UserID: "U1"}, "", 10)
	require.NoError(t, err)
	assert.Zero(t, other.TotalItems)

	_, err = service.History(ctx, models.Identity{UserID: "A", Role: models.RoleResponder}, models.HistoryFilter{Kind: "bogus"}, "", 10)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}
