package registry

import (
	"sync"
	"time"

	"github.com/shenikar/sos_dispatch/internal/models"
)

// Причины отключения
const (
	ReasonSuperseded   = "superseded"
	ReasonDisconnected = "disconnected"
	ReasonShutdown     = "shutdown"
)

// Connection - живая транспортная сессия пользователя
type Connection struct {
	SocketID    string
	UserID      string
	Role        models.Role
	ConnectedAt time.Time
	Outbox      *Queue

	topics map[string]struct{}

	closeOnce sync.Once
	done      chan struct{}
	reason    string
}

// NewConnection создает сессию с исходящей очередью заданной емкости
func NewConnection(socketID, userID string, role models.Role, outboxSize int) *Connection {
	return &Connection{
		SocketID:    socketID,
		UserID:      userID,
		Role:        role,
		ConnectedAt: time.Now().UTC(),
		Outbox:      NewQueue(outboxSize),
		topics:      make(map[string]struct{}),
		done:        make(chan struct{}),
	}
}

// Done закрывается, когда сессия отключена реестром
func (c *Connection) Done() <-chan struct{} { return c.done }

// Reason - причина отключения; пусто, пока сессия жива
func (c *Connection) Reason() string {
	select {
	case <-c.done:
		return c.reason
	default:
		return ""
	}
}

// disconnect выставляет причину и закрывает Done; повторные вызовы игнорируются
func (c *Connection) disconnect(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}
