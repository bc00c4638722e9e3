package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch/internal/apperror"
	"github.com/shenikar/sos_dispatch/internal/config"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/notify"
	"github.com/sirupsen/logrus"
)

// IncidentLedger определяет контракт журнала событий инцидентов
type IncidentLedger interface {
	Open(ctx context.Context, incident *models.Incident) (*models.IncidentEvent, error)
	Append(ctx context.Context, incidentID string, kind models.EventKind, payload any) (*models.IncidentEvent, error)
	DeriveStatus(ctx context.Context, incidentID string) (models.Status, error)
	View(ctx context.Context, incidentID string) (*models.IncidentView, error)
	History(ctx context.Context, filter models.HistoryFilter, cursor string, limit int) (*models.HistoryPage, error)
}

// ResponderLocator ищет ближайших ответчиков
type ResponderLocator interface {
	Query(ctx context.Context, loc models.Location, radiusKm float64, limit int) ([]models.Match, error)
}

// Notifier доставляет сообщения живым сессиям
type Notifier interface {
	Deliver(ctx context.Context, target notify.Target, msg models.Message) (int, error)
}

// ContactAlerter оповещает экстренные контакты заявителя (SMS/push шлюз)
type ContactAlerter interface {
	SendSOSAlerts(ctx context.Context, incident *models.Incident) (int, error)
}

// IncidentService определяет контракт диспетчера SOS
type IncidentService interface {
	SubmitSOS(ctx context.Context, req models.SubmitRequest) (*models.SubmitResult, error)
	Acknowledge(ctx context.Context, incidentID string, actor models.Identity) (*models.IncidentEvent, error)
	Resolve(ctx context.Context, incidentID string, actor models.Identity) (*models.IncidentEvent, error)
	Cancel(ctx context.Context, incidentID string, actor models.Identity) (*models.IncidentEvent, error)
	GetIncident(ctx context.Context, incidentID string, viewer models.Identity) (*models.IncidentView, error)
	DeriveStatus(ctx context.Context, incidentID string) (models.Status, error)
	History(ctx context.Context, viewer models.Identity, filter models.HistoryFilter, cursor string, limit int) (*models.HistoryPage, error)
	Close()
}

type incidentService struct {
	ledger      IncidentLedger
	locator     ResponderLocator
	notifier    Notifier
	idempotency IdempotencyStore
	alerter     ContactAlerter
	cfg         *config.Config
	logger      *logrus.Logger

	newID func() string
	now   func() time.Time

	mu      sync.Mutex
	closed  bool
	fanouts sync.WaitGroup
}

// NewIncidentService собирает диспетчер. alerter может быть nil, если шлюз оповещения не настроен.
func NewIncidentService(
	ledger IncidentLedger,
	locator ResponderLocator,
	notifier Notifier,
	idempotency IdempotencyStore,
	alerter ContactAlerter,
	cfg *config.Config,
	logger *logrus.Logger,
) IncidentService {
	return &incidentService{
		ledger:      ledger,
		locator:     locator,
		notifier:    notifier,
		idempotency: idempotency,
		alerter:     alerter,
		cfg:         cfg,
		logger:      logger,
		newID:       uuid.NewString,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SubmitSOS принимает сигнал SOS: открывает инцидент, ищет ответчиков,
// фиксирует located и dispatched и запускает рассылку, не дожидаясь ее.
func (s *incidentService) SubmitSOS(ctx context.Context, req models.SubmitRequest) (*models.SubmitResult, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "SubmitSOS",
		"user_id": req.UserID,
	})

	if err := validateSubmit(req); err != nil {
		log.WithError(err).Warn("Rejected invalid SOS submission")
		return nil, err
	}
	if !s.acquire() {
		return nil, apperror.Transient(nil, "dispatcher is shutting down").WithRetryable()
	}
	defer s.fanouts.Done()

	key := strings.TrimSpace(req.ClientIncidentID)
	if key != "" {
		prev, err := s.idempotency.Begin(ctx, req.UserID, key)
		if errors.Is(err, ErrInProgress) {
			log.WithField("client_incident_id", key).Info("Duplicate submission while original is in progress")
			return nil, apperror.Transient(err, "submission %s is still in progress", key).
				WithCode(apperror.CodeDuplicate).WithRetryable()
		}
		if err != nil {
			log.WithError(err).Error("Idempotency store unavailable")
			return nil, apperror.Transient(err, "could not reserve submission").WithRetryable()
		}
		if prev != nil {
			log.WithFields(logrus.Fields{
				"client_incident_id": key,
				"incident_id":        prev.IncidentID,
			}).Info("Returning result of earlier submission")
			return prev, nil
		}
	}

	// клиентский ключ служит идентификатором инцидента, без него id генерируется
	incident := &models.Incident{
		ID:            key,
		UserID:        req.UserID,
		EmergencyType: req.EmergencyType,
		Location:      req.Location,
		Notes:         req.Notes,
		MediaRefs:     req.Media,
		CreatedAt:     s.now(),
	}
	if incident.ID == "" {
		incident.ID = s.newID()
	}
	log.Info("Attempting to dispatch a new SOS")

	matches, err := s.dispatch(ctx, incident)
	var existing *existingIncidentError
	if errors.As(err, &existing) {
		if existing.view.Status != models.StatusFailed {
			log.WithField("incident_id", incident.ID).Info("Incident already exists, returning its current state")
			result := replayResult(existing.view)
			s.commit(ctx, req.UserID, key, result, log)
			return result, nil
		}
		// failed терминален: повторная отправка открывает новый инцидент
		incident.ID = s.newID()
		log.WithFields(logrus.Fields{
			"client_incident_id": key,
			"incident_id":        incident.ID,
		}).Info("Earlier incident under this key failed, opening a new one")
		matches, err = s.dispatch(ctx, incident)
	}
	log = log.WithField("incident_id", incident.ID)
	if err != nil {
		log.WithError(err).Error("Failed to dispatch SOS")
		if key != "" {
			if abortErr := s.idempotency.Abort(context.WithoutCancel(ctx), req.UserID, key); abortErr != nil {
				log.WithError(abortErr).Warn("Failed to release idempotency reservation")
			}
		}
		if apperror.Is(err, apperror.KindValidation) || apperror.Is(err, apperror.KindConflict) {
			return nil, err
		}
		return nil, apperror.Transient(err, "could not dispatch SOS").WithRetryable()
	}

	result := &models.SubmitResult{
		IncidentID:        incident.ID,
		Status:            models.StatusDispatched,
		CreatedAt:         incident.CreatedAt,
		AlertsSent:        len(matches),
		NearestResponders: matches,
	}
	s.commit(ctx, req.UserID, key, result, log)

	s.fanouts.Add(1)
	go s.fanout(incident, matches)

	log.WithField("alerts_sent", result.AlertsSent).Info("SOS dispatched successfully")
	return result, nil
}

// existingIncidentError - инцидент с таким id уже открыт тем же пользователем
type existingIncidentError struct {
	view *models.IncidentView
}

func (e *existingIncidentError) Error() string {
	return fmt.Sprintf("incident %s already exists with status %s", e.view.Incident.ID, e.view.Status)
}

// replayResult восстанавливает результат приема по журналу существующего инцидента
func replayResult(view *models.IncidentView) *models.SubmitResult {
	result := &models.SubmitResult{
		IncidentID:        view.Incident.ID,
		Status:            view.Status,
		CreatedAt:         view.Incident.CreatedAt,
		NearestResponders: []models.Match{},
	}
	for _, ev := range view.Events {
		switch ev.Kind {
		case models.EventLocated:
			var located models.LocatedPayload
			if json.Unmarshal(ev.Payload, &located) == nil && located.Responders != nil {
				result.NearestResponders = located.Responders
			}
			result.AlertsSent = len(result.NearestResponders)
		case models.EventDispatched:
			var dispatched models.DispatchedPayload
			if json.Unmarshal(ev.Payload, &dispatched) == nil {
				result.AlertsSent = dispatched.AlertsSent
			}
		}
	}
	return result
}

func (s *incidentService) commit(ctx context.Context, userID, key string, result *models.SubmitResult, log *logrus.Entry) {
	if key == "" {
		return
	}
	if err := s.idempotency.Commit(context.WithoutCancel(ctx), userID, key, result); err != nil {
		log.WithError(err).Warn("Failed to store idempotent result")
	}
}

// dispatch проводит путь создания с повторами. Если инцидент уже открыт,
// а повторы исчерпаны, в журнал пишется failed.
func (s *incidentService) dispatch(ctx context.Context, incident *models.Incident) ([]models.Match, error) {
	r := s.newRetrier(ctx)
	defer r.stop()

	if err := r.do("open", func(attempt int) error {
		_, err := s.ledger.Open(r.ctx, incident)
		if !apperror.Is(err, apperror.KindConflict) {
			return err
		}
		view, viewErr := s.ledger.View(r.ctx, incident.ID)
		if viewErr != nil {
			return viewErr
		}
		if view.Incident.UserID != incident.UserID {
			return apperror.Conflict("incident id %s is already in use", incident.ID)
		}
		if attempt > 1 && view.Status == models.StatusCreated {
			// предыдущая попытка успела записать инцидент
			return nil
		}
		return &existingIncidentError{view: view}
	}); err != nil {
		return nil, err
	}

	var matches []models.Match
	err := r.do("locate", func(int) error {
		var err error
		matches, err = s.locator.Query(r.ctx, incident.Location, s.cfg.LocatorRadiusKm, s.cfg.LocatorLimit)
		return err
	})
	if err == nil {
		err = s.appendStep(r, incident.ID, models.EventLocated, models.LocatedPayload{
			RadiusKm:   s.cfg.LocatorRadiusKm,
			Responders: matches,
		})
	}
	if err == nil {
		err = s.appendStep(r, incident.ID, models.EventDispatched, models.DispatchedPayload{
			Topic:      models.TopicRespondersActive,
			AlertsSent: len(matches),
		})
	}
	if err != nil {
		s.markFailed(incident.ID, err)
		return nil, err
	}
	return matches, nil
}

func (s *incidentService) appendStep(r *retrier, incidentID string, kind models.EventKind, payload any) error {
	return r.do(string(kind), func(attempt int) error {
		_, err := s.ledger.Append(r.ctx, incidentID, kind, payload)
		if attempt > 1 && apperror.Is(err, apperror.KindConflict) {
			status, statusErr := s.ledger.DeriveStatus(r.ctx, incidentID)
			if statusErr == nil && status == models.Status(kind) {
				return nil
			}
		}
		return err
	})
}

// markFailed фиксирует failed по возможности; ошибка только логируется
func (s *incidentService) markFailed(incidentID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DispatchTimeout)
	defer cancel()
	_, err := s.ledger.Append(ctx, incidentID, models.EventFailed, models.FailedPayload{Reason: cause.Error()})
	if err != nil && !apperror.Is(err, apperror.KindNotFound) {
		s.logger.WithFields(logrus.Fields{
			"service":     "incident",
			"method":      "markFailed",
			"incident_id": incidentID,
		}).WithError(err).Warn("Could not record failed event")
	}
}

// Acknowledge фиксирует принятие вызова ответчиком и уведомляет заявителя
func (s *incidentService) Acknowledge(ctx context.Context, incidentID string, actor models.Identity) (*models.IncidentEvent, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "Acknowledge",
		"incident_id": incidentID,
		"user_id":     actor.UserID,
	})
	if actor.Role != models.RoleResponder {
		return nil, apperror.Forbidden("only responders can acknowledge incidents")
	}

	ev, err := s.ledger.Append(ctx, incidentID, models.EventAcknowledged, models.AcknowledgedPayload{ResponderID: actor.UserID})
	if err != nil {
		log.WithError(err).Warn("Failed to acknowledge incident")
		return nil, err
	}
	log.Info("Incident acknowledged")

	if view, err := s.ledger.View(ctx, incidentID); err == nil {
		msg, err := notify.NewMessage(models.EventNameAck, models.AckPayload{
			EmergencyID:    incidentID,
			ResponderID:    actor.UserID,
			AcknowledgedAt: ev.OccurredAt,
		})
		if err == nil {
			if _, err := s.notifier.Deliver(ctx, notify.ToUser(view.Incident.UserID), msg); err != nil {
				log.WithError(err).Warn("Failed to notify reporter about acknowledgement")
			}
		}
	}
	return ev, nil
}

// Resolve закрывает инцидент
func (s *incidentService) Resolve(ctx context.Context, incidentID string, actor models.Identity) (*models.IncidentEvent, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "Resolve",
		"incident_id": incidentID,
		"user_id":     actor.UserID,
	})
	if actor.Role != models.RoleResponder {
		return nil, apperror.Forbidden("only responders can resolve incidents")
	}
	ev, err := s.ledger.Append(ctx, incidentID, models.EventResolved, models.ActorPayload{UserID: actor.UserID})
	if err != nil {
		log.WithError(err).Warn("Failed to resolve incident")
		return nil, err
	}
	log.Info("Incident resolved")
	return ev, nil
}

// Cancel отменяет инцидент; доступно только заявителю. Уже доставленные
// оповещения не отзываются.
func (s *incidentService) Cancel(ctx context.Context, incidentID string, actor models.Identity) (*models.IncidentEvent, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "Cancel",
		"incident_id": incidentID,
		"user_id":     actor.UserID,
	})
	view, err := s.ledger.View(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if view.Incident.UserID != actor.UserID {
		log.Warn("Attempted to cancel someone else's incident")
		return nil, apperror.Forbidden("only the reporting user can cancel incident %s", incidentID)
	}
	ev, err := s.ledger.Append(ctx, incidentID, models.EventCancelled, models.ActorPayload{UserID: actor.UserID})
	if err != nil {
		log.WithError(err).Warn("Failed to cancel incident")
		return nil, err
	}
	log.Info("Incident cancelled")
	return ev, nil
}

// GetIncident возвращает инцидент с производным статусом. Гражданские видят только свои инциденты.
func (s *incidentService) GetIncident(ctx context.Context, incidentID string, viewer models.Identity) (*models.IncidentView, error) {
	view, err := s.ledger.View(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if viewer.Role != models.RoleResponder && view.Incident.UserID != viewer.UserID {
		// не раскрываем существование чужого инцидента
		return nil, apperror.NotFound("incident %s not found", incidentID)
	}
	return view, nil
}

func (s *incidentService) DeriveStatus(ctx context.Context, incidentID string) (models.Status, error) {
	return s.ledger.DeriveStatus(ctx, incidentID)
}

// History возвращает страницу журнала; для гражданских фильтр сужается до их инцидентов
func (s *incidentService) History(ctx context.Context, viewer models.Identity, filter models.HistoryFilter, cursor string, limit int) (*models.HistoryPage, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, apperror.Validation("unknown event kind %q", filter.Kind)
	}
	if viewer.Role != models.RoleResponder {
		filter.UserID = viewer.UserID
	}
	page, err := s.ledger.History(ctx, filter, cursor, limit)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"service": "incident",
			"method":  "History",
			"user_id": viewer.UserID,
		}).WithError(err).Error("Failed to list history")
		return nil, err
	}
	return page, nil
}

// Close отклоняет новые SOS и ждет завершения начатых рассылок
func (s *incidentService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.fanouts.Wait()
}

func (s *incidentService) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.fanouts.Add(1)
	return true
}

func validateSubmit(req models.SubmitRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return apperror.Validation("user id is required")
	}
	if strings.TrimSpace(req.EmergencyType) == "" {
		return apperror.Validation("emergency type is required")
	}
	if !req.Location.Valid() {
		return apperror.Validation("location out of bounds: lat=%v lng=%v", req.Location.Lat, req.Location.Lng)
	}
	return nil
}

func incidentPayload(incident *models.Incident) models.NewIncidentPayload {
	return models.NewIncidentPayload{
		EmergencyID:   incident.ID,
		UserID:        incident.UserID,
		EmergencyType: incident.EmergencyType,
		Location:      incident.Location,
		Notes:         incident.Notes,
		OccurredAt:    incident.CreatedAt,
	}
}
