package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dogspots-bxl/data-importer/pkg/model"
)

// EventHandler consumes pipeline lifecycle notifications.
type EventHandler func(model.UpdateEvent)

// EventBus is a small in-process publish/subscribe fan-out. Delivery is
// synchronous and best-effort: a panicking handler is recovered and logged
// without affecting other handlers or the publishing pipeline.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[model.EventType][]EventHandler
	logger   *slog.Logger
}

func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{
		handlers: make(map[model.EventType][]EventHandler),
		logger:   logger,
	}
}

// Subscribe registers a handler for one event type.
func (b *EventBus) Subscribe(t model.EventType, h EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish delivers an event to every handler registered for its type.
func (b *EventBus) Publish(event model.UpdateEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := make([]EventHandler, len(b.handlers[event.Type]))
	copy(handlers, b.handlers[event.Type])
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, event)
	}
}

func (b *EventBus) deliver(h EventHandler, event model.UpdateEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				slog.String("event", string(event.Type)),
				slog.Any("panic", r),
			)
		}
	}()
	h(event)
}
