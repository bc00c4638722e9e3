package v1

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shenikar/sos_dispatch/internal/apperror"
	"github.com/shenikar/sos_dispatch/internal/config"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/notify"
	"github.com/shenikar/sos_dispatch/internal/service"
	"github.com/sirupsen/logrus"
)

const sosAcceptedMessage = "SOS alert activated. Help is on the way."

// ResponderSnapshot - снимок справочника ответчиков локатора
type ResponderSnapshot interface {
	Refresh(ctx context.Context) (int, error)
	Size() int
}

// ConnectionCounter - число живых real-time сессий
type ConnectionCounter interface {
	Count() int
}

// DeliveryStats - счетчики канала уведомлений
type DeliveryStats interface {
	Stats() notify.Stats
}

// AdminDeps - источники данных административных маршрутов
type AdminDeps struct {
	Responders  ResponderSnapshot
	Connections ConnectionCounter
	Delivery    DeliveryStats
}

type Handler struct {
	incidentService service.IncidentService
	verifier        TokenVerifier
	admin           AdminDeps
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
}

func NewHandler(incidentService service.IncidentService, verifier TokenVerifier, admin AdminDeps, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		incidentService: incidentService,
		verifier:        verifier,
		admin:           admin,
		logger:          logger,
		validate:        validator.New(),
		cfg:             cfg,
	}
}

// @Summary Trigger SOS
// @Description Accepts an SOS, finds the nearest responders and starts notifying them. A supplied clientIncidentId becomes the incident id; repeating a request with it returns the existing incident instead of opening a new one.
// @Tags Emergency
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sos body SOSRequest true "SOS request"
// @Success 201 {object} SOSResponse
// @Failure 400 {object} ErrorResponse "Invalid request body or validation error"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 503 {object} ErrorResponse "Temporarily unavailable, retry"
// @Router /emergency/sos [post]
func (h *Handler) submitSOS(c *gin.Context) {
	var input SOSRequest
	identity := identityFrom(c)
	log := h.logger.WithFields(logrus.Fields{"method": "submitSOS", "user_id": identity.UserID})

	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, log, "invalid request body")
		return
	}

	if err := h.validate.Struct(input); err != nil {
		badRequest(c, log, err.Error())
		return
	}

	result, err := h.incidentService.SubmitSOS(c.Request.Context(), DTOToSubmitRequest(input, identity.UserID))
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, SOSResponse{
		Success: true,
		Data:    ModelToSOSData(result),
		Message: sosAcceptedMessage,
	})
}

// @Summary Incident history
// @Description Keyset-paginated event log ordered newest first. Civilians only see their own incidents.
// @Tags Emergency
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Items per page" default(20)
// @Param cursor query string false "Opaque cursor from the previous page"
// @Param kind query string false "Event kind filter"
// @Param incidentId query string false "Incident filter"
// @Success 200 {object} HistoryResponse
// @Failure 400 {object} ErrorResponse "Invalid cursor or filter"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 503 {object} ErrorResponse "Storage unavailable"
// @Router /emergency/history [get]
func (h *Handler) history(c *gin.Context) {
	identity := identityFrom(c)
	log := h.logger.WithFields(logrus.Fields{"method": "history", "user_id": identity.UserID})

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			badRequest(c, log, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	filter := models.HistoryFilter{
		IncidentID: c.Query("incidentId"),
		Kind:       models.EventKind(c.Query("kind")),
	}

	page, err := h.incidentService.History(c.Request.Context(), identity, filter, c.Query("cursor"), limit)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{Success: true, Data: ModelToHistoryData(page)})
}

// @Summary Get incident by ID
// @Description Incident with derived status and full event log
// @Tags Emergency
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Router /emergency/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	identity := identityFrom(c)
	id := c.Param("id")
	log := h.logger.WithFields(logrus.Fields{"method": "getIncident", "id": id})

	view, err := h.incidentService.GetIncident(c.Request.Context(), id, identity)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(view))
}

// @Summary Acknowledge incident
// @Description Responder accepts the call
// @Tags Emergency
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} TransitionResponse
// @Failure 403 {object} ErrorResponse "Not a responder"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 409 {object} ErrorResponse "Illegal status transition"
// @Router /emergency/{id}/acknowledge [post]
func (h *Handler) acknowledge(c *gin.Context) {
	h.transition(c, "acknowledge", h.incidentService.Acknowledge)
}

// @Summary Resolve incident
// @Tags Emergency
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} TransitionResponse
// @Failure 403 {object} ErrorResponse "Not a responder"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 409 {object} ErrorResponse "Illegal status transition"
// @Router /emergency/{id}/resolve [post]
func (h *Handler) resolve(c *gin.Context) {
	h.transition(c, "resolve", h.incidentService.Resolve)
}

// @Summary Cancel incident
// @Description Only the reporting user can cancel. Notifications already delivered are not retracted.
// @Tags Emergency
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} TransitionResponse
// @Failure 403 {object} ErrorResponse "Not the reporting user"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 409 {object} ErrorResponse "Illegal status transition"
// @Router /emergency/{id}/cancel [post]
func (h *Handler) cancel(c *gin.Context) {
	h.transition(c, "cancel", h.incidentService.Cancel)
}

type transitionFunc func(ctx context.Context, incidentID string, actor models.Identity) (*models.IncidentEvent, error)

func (h *Handler) transition(c *gin.Context, method string, fn transitionFunc) {
	identity := identityFrom(c)
	id := c.Param("id")
	log := h.logger.WithFields(logrus.Fields{"method": method, "id": id, "user_id": identity.UserID})

	ev, err := fn(c.Request.Context(), id, identity)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, TransitionResponse{Success: true, Data: ModelToEventResponse(*ev)})
}

// @Summary Service statistics
// @Description Live connections, responder snapshot size and delivery counters. Requires API key.
// @Tags Admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} StatsResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /admin/stats [get]
func (h *Handler) getStats(c *gin.Context) {
	var resp StatsResponse
	if h.admin.Connections != nil {
		resp.Connections = h.admin.Connections.Count()
	}
	if h.admin.Responders != nil {
		resp.Responders = h.admin.Responders.Size()
	}
	if h.admin.Delivery != nil {
		stats := h.admin.Delivery.Stats()
		resp.Attempted = stats.Attempted
		resp.Dropped = stats.Dropped
		resp.ReplayBuffered = stats.Buffered
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Reload responders
// @Description Reloads the responder snapshot used by the locator. Requires API key.
// @Tags Admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} ReloadResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 503 {object} ErrorResponse "Responder source unavailable"
// @Router /admin/responders/reload [post]
func (h *Handler) reloadResponders(c *gin.Context) {
	log := h.logger.WithField("method", "reloadResponders")
	if h.admin.Responders == nil {
		badRequest(c, log, "responder snapshot is not configured")
		return
	}
	n, err := h.admin.Responders.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, log, apperror.Transient(err, "failed to reload responders"))
		return
	}
	log.WithField("responders", n).Info("Responder snapshot reloaded")
	c.JSON(http.StatusOK, ReloadResponse{Responders: n})
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
