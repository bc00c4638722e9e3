// Package notify доставляет сообщения живым сессиям через их исходящие очереди.
package notify

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch/internal/apperror"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/registry"
	"github.com/sirupsen/logrus"
)

// Target - адресат доставки: пользователь или топик
type Target struct {
	UserID string
	Topic  string
}

func ToUser(userID string) Target { return Target{UserID: userID} }

func ToTopic(topic string) Target { return Target{Topic: topic} }

func (t Target) valid() bool {
	return (t.UserID == "") != (t.Topic == "")
}

func (t Target) String() string {
	if t.Topic != "" {
		return "topic:" + t.Topic
	}
	return "user:" + t.UserID
}

// Stats - счетчики доставки
type Stats struct {
	Attempted uint64 `json:"attempted"`
	Dropped   uint64 `json:"dropped"`
	Buffered  int    `json:"buffered"`
}

// ReplayResult - результат повторной доставки после переподключения
type ReplayResult struct {
	Messages []models.Message
	Gap      bool
}

// Channel - best-effort доставка at-least-once. Отправитель никогда не блокируется:
// сообщение кладется в очередь сессии, при переполнении вытесняется самое старое.
type Channel struct {
	registry  *registry.Registry
	buffer    *ReplayBuffer
	logger    *logrus.Logger
	attempted atomic.Uint64
	dropped   atomic.Uint64
	now       func() time.Time
}

func New(reg *registry.Registry, buffer *ReplayBuffer, logger *logrus.Logger) *Channel {
	return &Channel{registry: reg, buffer: buffer, logger: logger, now: time.Now}
}

// NewMessage собирает сообщение с уникальным ID
func NewMessage(event string, data any) (models.Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return models.Message{}, err
	}
	return models.Message{ID: uuid.NewString(), Event: event, Data: raw}, nil
}

// Deliver ставит сообщение в очереди всех сессий адресата и возвращает
// количество попыток доставки. Отсутствие получателей не является ошибкой.
func (c *Channel) Deliver(ctx context.Context, target Target, msg models.Message) (int, error) {
	if !target.valid() {
		return 0, apperror.Validation("exactly one of user or topic must be set")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = c.now().UTC()
	}

	var conns []*registry.Connection
	if target.Topic != "" {
		conns = c.registry.MembersOf(target.Topic)
	} else if conn := c.registry.LookupByUser(target.UserID); conn != nil {
		conns = []*registry.Connection{conn}
	}

	if c.buffer != nil {
		c.buffer.add(target, msg)
	}

	for _, conn := range conns {
		c.push(conn, msg)
	}
	c.attempted.Add(uint64(len(conns)))
	return len(conns), nil
}

// Replay повторно ставит в очередь сессии сообщения из буфера, пришедшие после
// lastSeenID. Если lastSeenID в буфере не найден, сессия получает replay:gap
// и весь видимый ей буфер.
func (c *Channel) Replay(conn *registry.Connection, lastSeenID string) ReplayResult {
	if c.buffer == nil {
		return ReplayResult{Gap: lastSeenID != ""}
	}
	visible := c.buffer.visible(conn.UserID, c.registry.Topics(conn.SocketID))

	result := ReplayResult{Messages: visible}
	if lastSeenID != "" {
		result.Gap = true
		for i, m := range visible {
			if m.ID == lastSeenID {
				result.Messages = visible[i+1:]
				result.Gap = false
				break
			}
		}
	}

	if result.Gap {
		gap, err := NewMessage(models.EventNameReplayGap, map[string]any{
			"lastSeenId": lastSeenID,
			"replayed":   len(result.Messages),
		})
		if err == nil {
			gap.CreatedAt = c.now().UTC()
			c.push(conn, gap)
		}
	}
	for _, m := range result.Messages {
		c.push(conn, m)
	}

	c.logger.WithFields(logrus.Fields{
		"component": "notify",
		"socket_id": conn.SocketID,
		"replayed":  len(result.Messages),
		"gap":       result.Gap,
	}).Debug("Replay delivered")
	return result
}

func (c *Channel) Stats() Stats {
	s := Stats{Attempted: c.attempted.Load(), Dropped: c.dropped.Load()}
	if c.buffer != nil {
		s.Buffered = c.buffer.Len()
	}
	return s
}

func (c *Channel) push(conn *registry.Connection, msg models.Message) {
	if conn.Outbox.Push(msg) {
		c.dropped.Add(1)
		c.logger.WithFields(logrus.Fields{
			"component": "notify",
			"socket_id": conn.SocketID,
			"user_id":   conn.UserID,
			"event":     msg.Event,
		}).Warn("Outbound queue full, dropped oldest message")
	}
}
