package notify

import (
	"sync"
	"time"

	"github.com/shenikar/sos_dispatch/internal/models"
)

type entry struct {
	target Target
	msg    models.Message
}

// ReplayBuffer хранит последние сообщения: не больше size штук и не старше ttl
type ReplayBuffer struct {
	mu      sync.Mutex
	size    int
	ttl     time.Duration
	entries []entry
	now     func() time.Time
}

func NewReplayBuffer(size int, ttl time.Duration) *ReplayBuffer {
	if size < 1 {
		size = 1
	}
	return &ReplayBuffer{size: size, ttl: ttl, now: time.Now}
}

func (b *ReplayBuffer) add(target Target, msg models.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entry{target: target, msg: msg})
	if over := len(b.entries) - b.size; over > 0 {
		b.entries = append(b.entries[:0], b.entries[over:]...)
	}
	b.expireLocked()
}

// visible возвращает сообщения, адресованные пользователю или его топикам, от старых к новым
func (b *ReplayBuffer) visible(userID string, topics []string) []models.Message {
	subscribed := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		subscribed[t] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked()
	var out []models.Message
	for _, e := range b.entries {
		if e.target.UserID != "" && e.target.UserID == userID {
			out = append(out, e.msg)
			continue
		}
		if _, ok := subscribed[e.target.Topic]; ok && e.target.Topic != "" {
			out = append(out, e.msg)
		}
	}
	return out
}

func (b *ReplayBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked()
	return len(b.entries)
}

func (b *ReplayBuffer) expireLocked() {
	if b.ttl <= 0 {
		return
	}
	cutoff := b.now().Add(-b.ttl)
	i := 0
	for i < len(b.entries) && b.entries[i].msg.CreatedAt.Before(cutoff) {
		i++
	}
	if i > 0 {
		b.entries = append(b.entries[:0], b.entries[i:]...)
	}
}
