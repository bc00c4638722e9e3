package registry

import (
	"sync"

	"github.com/shenikar/sos_dispatch/internal/models"
)

// Queue - ограниченная исходящая очередь соединения. При переполнении
// вытесняется самое старое сообщение, отправитель никогда не блокируется.
type Queue struct {
	mu      sync.Mutex
	buf     []models.Message
	head    int
	size    int
	dropped uint64
	ready   chan struct{}
}

func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		buf:   make([]models.Message, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Push кладет сообщение в очередь и возвращает true, если пришлось вытеснить старое
func (q *Queue) Push(msg models.Message) (dropped bool) {
	q.mu.Lock()
	if q.size == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		q.dropped++
		dropped = true
	}
	q.buf[(q.head+q.size)%len(q.buf)] = msg
	q.size++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return dropped
}

// Drain забирает все накопленные сообщения в порядке поступления
func (q *Queue) Drain() []models.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.Message, q.size)
	for i := 0; i < q.size; i++ {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
		q.buf[(q.head+i)%len(q.buf)] = models.Message{}
	}
	q.head, q.size = 0, 0
	return out
}

// Ready сигналит, что в очереди появились сообщения
func (q *Queue) Ready() <-chan struct{} { return q.ready }

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Dropped - сколько сообщений вытеснено за все время
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
