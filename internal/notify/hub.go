package notify

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"TrinoEventPump/internal/models"
)

// Hub рассылает обновлённые представления запросов подписчикам.
// Publish никогда не блокируется: если буфер подписчика полон,
// сообщение для него отбрасывается.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]chan models.QueryView
	nextID  uint64
	dropped atomic.Int64
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[uint64]chan models.QueryView),
		logger: logger,
	}
}

// Subscribe регистрирует подписчика с буфером buffer.
// Возвращённая функция отменяет подписку и закрывает канал.
func (h *Hub) Subscribe(buffer int) (<-chan models.QueryView, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan models.QueryView, buffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish отправляет view всем подписчикам без ожидания.
func (h *Hub) Publish(view models.QueryView) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- view:
		default:
			h.dropped.Add(1)
			h.logger.Debug("подписчик не успевает, уведомление отброшено",
				zap.Uint64("subscriber", id),
				zap.String("queryId", view.QueryID))
		}
	}
}

// Subscribers — текущее число подписчиков
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped — сколько уведомлений было отброшено с момента запуска
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
