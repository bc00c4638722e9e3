package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shenikar/sos_dispatch/internal/apperror"
	"github.com/shenikar/sos_dispatch/internal/auth"
	"github.com/shenikar/sos_dispatch/internal/config"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/notify"
	"github.com/shenikar/sos_dispatch/internal/registry"
	"github.com/shenikar/sos_dispatch/internal/service"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10

	sosSentMessage = "SOS alert sent successfully"
)

// TokenVerifier проверяет токен личности при рукопожатии
type TokenVerifier interface {
	Verify(token string) (models.Identity, error)
}

// Replayer повторно доставляет буферизованные сообщения сессии
type Replayer interface {
	Replay(conn *registry.Connection, lastSeenID string) notify.ReplayResult
}

// Handler - адаптер real-time канала поверх websocket
type Handler struct {
	verifier  TokenVerifier
	registry  *registry.Registry
	replayer  Replayer
	incidents service.IncidentService
	logger    *logrus.Logger
	validate  *validator.Validate
	upgrader  websocket.Upgrader

	outboxSize   int
	pingInterval time.Duration
}

func NewHandler(
	verifier TokenVerifier,
	reg *registry.Registry,
	replayer Replayer,
	incidents service.IncidentService,
	logger *logrus.Logger,
	cfg *config.Config,
) *Handler {
	ping := cfg.WSPingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}
	return &Handler{
		verifier:  verifier,
		registry:  reg,
		replayer:  replayer,
		incidents: incidents,
		logger:    logger,
		validate:  validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		outboxSize:   cfg.OutboxSize,
		pingInterval: ping,
	}
}

// RegisterRoutes регистрирует точку подключения real-time канала
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws", h.ServeWS)
}

// ServeWS проверяет личность, поднимает websocket и обслуживает сессию до отключения
func (h *Handler) ServeWS(c *gin.Context) {
	log := h.logger.WithField("component", "ws")

	token := c.Query("token")
	if token == "" {
		if header := c.GetHeader("Authorization"); header != "" {
			token, _ = auth.BearerToken(header)
		}
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication error"})
		return
	}
	identity, err := h.verifier.Verify(token)
	if err != nil {
		log.WithError(err).Warn("Handshake rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	wsConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer wsConn.Close()

	conn := registry.NewConnection(uuid.NewString(), identity.UserID, identity.Role, h.outboxSize)
	log = log.WithFields(logrus.Fields{"socket_id": conn.SocketID, "user_id": conn.UserID})
	if err := h.registry.Register(conn); err != nil {
		log.WithError(err).Warn("Connection rejected")
		_ = wsConn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "unavailable"),
			time.Now().Add(writeWait))
		return
	}
	log.Info("Connection established")

	// приветствие уходит до запуска писателя, поэтому оно всегда первое
	greeting, err := notify.NewMessage(models.EventNameConnected, map[string]any{
		"socketId":  conn.SocketID,
		"userId":    conn.UserID,
		"timestamp": time.Now().UTC(),
	})
	if err == nil {
		_ = wsConn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := wsConn.WriteJSON(greeting); err != nil {
			h.registry.Unregister(conn.SocketID)
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(wsConn, conn, log)
	}()

	h.readPump(ctx, wsConn, conn, identity, log)

	h.registry.Unregister(conn.SocketID)
	<-writerDone
	log.WithField("reason", conn.Reason()).Info("Connection closed")
}

// readPump читает конверты клиента до ошибки чтения или закрытия сокета
func (h *Handler) readPump(ctx context.Context, wsConn *websocket.Conn, conn *registry.Connection, identity models.Identity, log *logrus.Entry) {
	pongWait := 2 * h.pingInterval
	wsConn.SetReadLimit(maxMessageSize)
	_ = wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("Read failed")
			}
			return
		}
		h.handleEnvelope(ctx, conn, identity, raw, log)
		_ = wsConn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// writePump единственный писатель сокета: очередь сессии, пинги и кадр закрытия
func (h *Handler) writePump(wsConn *websocket.Conn, conn *registry.Connection, log *logrus.Entry) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.Outbox.Ready():
			for _, msg := range conn.Outbox.Drain() {
				_ = wsConn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := wsConn.WriteJSON(msg); err != nil {
					log.WithError(err).Debug("Write failed")
					h.registry.Unregister(conn.SocketID)
					_ = wsConn.Close()
					return
				}
			}
		case <-ticker.C:
			if err := wsConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.registry.Unregister(conn.SocketID)
				_ = wsConn.Close()
				return
			}
		case <-conn.Done():
			code := websocket.CloseNormalClosure
			if conn.Reason() == registry.ReasonShutdown {
				code = websocket.CloseGoingAway
			}
			_ = wsConn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, conn.Reason()),
				time.Now().Add(writeWait))
			// разблокирует readPump
			_ = wsConn.Close()
			return
		}
	}
}

func (h *Handler) handleEnvelope(ctx context.Context, conn *registry.Connection, identity models.Identity, raw []byte, log *logrus.Entry) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.replyError(conn, "", apperror.Validation("malformed envelope"), log)
		return
	}

	switch env.Event {
	case models.EventNameSOS:
		h.handleSOS(ctx, conn, identity, env, log)
	case models.EventNameAck:
		h.handleAck(ctx, conn, identity, env, log)
	case models.EventNameReplay:
		var data replayData
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &data); err != nil {
				h.replyError(conn, env.ID, apperror.Validation("malformed replay data"), log)
				return
			}
		}
		h.replayer.Replay(conn, data.LastSeenID)
	default:
		h.replyError(conn, env.ID, apperror.Validation("unknown event %q", env.Event), log)
	}
}

func (h *Handler) handleSOS(ctx context.Context, conn *registry.Connection, identity models.Identity, env envelope, log *logrus.Entry) {
	var data sosData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		h.replyError(conn, env.ID, apperror.Validation("malformed sos data"), log)
		return
	}
	if err := h.validate.Struct(data); err != nil {
		h.replyError(conn, env.ID, apperror.Validation("%s", err.Error()), log)
		return
	}

	result, err := h.incidents.SubmitSOS(ctx, models.SubmitRequest{
		UserID:           identity.UserID,
		ClientIncidentID: data.EmergencyID,
		Location:         models.Location{Lat: *data.Location.Lat, Lng: *data.Location.Lng},
		EmergencyType:    data.EmergencyType,
		Notes:            data.Notes,
		Media:            data.Media,
	})
	if err != nil {
		h.replyError(conn, env.ID, err, log)
		return
	}
	h.reply(conn, models.EventNameSOSConfirmed, sosConfirmed{
		RequestID:   env.ID,
		Success:     true,
		EmergencyID: result.IncidentID,
		AlertsSent:  result.AlertsSent,
		Message:     sosSentMessage,
	}, log)
}

func (h *Handler) handleAck(ctx context.Context, conn *registry.Connection, identity models.Identity, env envelope, log *logrus.Entry) {
	var data ackData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		h.replyError(conn, env.ID, apperror.Validation("malformed ack data"), log)
		return
	}
	if err := h.validate.Struct(data); err != nil {
		h.replyError(conn, env.ID, apperror.Validation("%s", err.Error()), log)
		return
	}

	ev, err := h.incidents.Acknowledge(ctx, data.EmergencyID, identity)
	if err != nil {
		h.replyError(conn, env.ID, err, log)
		return
	}
	h.reply(conn, models.EventNameAckConfirmed, ackConfirmed{
		RequestID:   env.ID,
		Success:     true,
		EmergencyID: ev.IncidentID,
		Seq:         ev.Seq,
	}, log)
}

// reply ставит ответ в очередь сессии; ответы не попадают в буфер повтора
func (h *Handler) reply(conn *registry.Connection, event string, data any, log *logrus.Entry) {
	msg, err := notify.NewMessage(event, data)
	if err != nil {
		log.WithError(err).Error("Failed to encode reply")
		return
	}
	msg.CreatedAt = time.Now().UTC()
	conn.Outbox.Push(msg)
}

func (h *Handler) replyError(conn *registry.Connection, requestID string, err error, log *logrus.Entry) {
	body := errorData{RequestID: requestID, Code: apperror.CodeServer, Message: "internal server error"}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		body.Code = appErr.Code
		body.Message = appErr.Message
		body.Retryable = appErr.Retryable
		if appErr.Kind == apperror.KindTransient && appErr.Code != apperror.CodeDuplicate {
			body.Message = "service temporarily unavailable"
		}
	}
	log.WithError(err).WithField("code", body.Code).Warn("Socket request rejected")
	h.reply(conn, models.EventNameError, body, log)
}
