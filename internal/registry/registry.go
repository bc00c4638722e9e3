// Package registry хранит живые сессии и их подписки на топики.
package registry

import (
	"sort"
	"sync"

	"github.com/shenikar/sos_dispatch/internal/apperror"
	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

// Registry - единственный владелец соответствия сокет <-> пользователь.
// Все мутации проходят под одним мьютексом, поэтому для каждого userID
// существует не более одной текущей сессии.
type Registry struct {
	mu      sync.RWMutex
	sockets map[string]*Connection
	users   map[string]*Connection
	topics  map[string]map[string]*Connection
	closed  bool
	logger  *logrus.Logger
}

func New(logger *logrus.Logger) *Registry {
	return &Registry{
		sockets: make(map[string]*Connection),
		users:   make(map[string]*Connection),
		topics:  make(map[string]map[string]*Connection),
		logger:  logger,
	}
}

// Register делает conn текущей сессией пользователя. Предыдущая сессия
// получает сигнал "superseded" и удаляется. Ответчики автоматически
// подписываются на responders:active.
func (r *Registry) Register(conn *Connection) error {
	if conn.SocketID == "" || conn.UserID == "" {
		return apperror.Validation("socket id and user id are required")
	}
	if !conn.Role.Valid() {
		return apperror.Validation("unknown role %q", conn.Role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return apperror.Transient(nil, "registry is closed")
	}
	if _, ok := r.sockets[conn.SocketID]; ok {
		return apperror.Conflict("socket %s already registered", conn.SocketID)
	}

	if old, ok := r.users[conn.UserID]; ok {
		old.disconnect(ReasonSuperseded)
		r.removeLocked(old)
		r.logger.WithFields(logrus.Fields{
			"component":     "registry",
			"user_id":       conn.UserID,
			"old_socket_id": old.SocketID,
			"new_socket_id": conn.SocketID,
		}).Info("Connection superseded")
	}

	r.sockets[conn.SocketID] = conn
	r.users[conn.UserID] = conn
	if conn.Role == models.RoleResponder {
		r.joinLocked(conn, models.TopicRespondersActive)
	}
	return nil
}

// Unregister удаляет сессию; неизвестный сокет игнорируется
func (r *Registry) Unregister(socketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.sockets[socketID]
	if !ok {
		return
	}
	conn.disconnect(ReasonDisconnected)
	r.removeLocked(conn)
}

// LookupByUser возвращает текущую сессию пользователя или nil
func (r *Registry) LookupByUser(userID string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[userID]
}

// MembersOf возвращает снимок подписчиков топика, упорядоченный по socket id
func (r *Registry) MembersOf(topic string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]*Connection, 0, len(r.topics[topic]))
	for _, c := range r.topics[topic] {
		members = append(members, c)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].SocketID < members[j].SocketID })
	return members
}

// JoinTopic подписывает сессию на топик
func (r *Registry) JoinTopic(socketID, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.sockets[socketID]
	if !ok {
		return apperror.NotFound("connection %s not found", socketID)
	}
	r.joinLocked(conn, topic)
	return nil
}

// LeaveTopic отписывает сессию от топика
func (r *Registry) LeaveTopic(socketID, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.sockets[socketID]
	if !ok {
		return apperror.NotFound("connection %s not found", socketID)
	}
	delete(conn.topics, topic)
	if members := r.topics[topic]; members != nil {
		delete(members, socketID)
		if len(members) == 0 {
			delete(r.topics, topic)
		}
	}
	return nil
}

// Topics возвращает топики, на которые подписана сессия
func (r *Registry) Topics(socketID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.sockets[socketID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(conn.topics))
	for t := range conn.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Count возвращает число живых сессий
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sockets)
}

// Close отключает все сессии с причиной "shutdown"; новые регистрации отклоняются
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.sockets {
		conn.disconnect(ReasonShutdown)
		r.removeLocked(conn)
	}
	r.closed = true
}

func (r *Registry) joinLocked(conn *Connection, topic string) {
	conn.topics[topic] = struct{}{}
	members, ok := r.topics[topic]
	if !ok {
		members = make(map[string]*Connection)
		r.topics[topic] = members
	}
	members[conn.SocketID] = conn
}

func (r *Registry) removeLocked(conn *Connection) {
	delete(r.sockets, conn.SocketID)
	if cur, ok := r.users[conn.UserID]; ok && cur == conn {
		delete(r.users, conn.UserID)
	}
	for topic := range conn.topics {
		if members := r.topics[topic]; members != nil {
			delete(members, conn.SocketID)
			if len(members) == 0 {
				delete(r.topics, topic)
			}
		}
	}
}
