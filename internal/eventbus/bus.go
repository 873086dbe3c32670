package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

type JobEventType string

const (
	JobEventQueued    JobEventType = "Queued"
	JobEventStarted   JobEventType = "Started"
	JobEventProgress  JobEventType = "Progress"
	JobEventCompleted JobEventType = "Completed"
	JobEventFailed    JobEventType = "Failed"
)

type JobEvent struct {
	Type         JobEventType
	RepositoryID uint
	JobID        uint
	Progress     int
	Message      string
}

type JobEventHandler func(ctx context.Context, event JobEvent) error

type Bus struct {
	mutex       sync.RWMutex
	subscribers map[JobEventType]map[uint64]JobEventHandler
	counter     uint64
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[JobEventType]map[uint64]JobEventHandler),
	}
}

// Subscribe 注册处理器，返回取消订阅函数
func (b *Bus) Subscribe(eventType JobEventType, handler JobEventHandler) func() {
	if handler == nil {
		return func() {}
	}
	id := atomic.AddUint64(&b.counter, 1)
	b.mutex.Lock()
	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[uint64]JobEventHandler)
	}
	b.subscribers[eventType][id] = handler
	b.mutex.Unlock()
	return func() {
		b.mutex.Lock()
		handlers, ok := b.subscribers[eventType]
		if ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(b.subscribers, eventType)
			}
		}
		b.mutex.Unlock()
	}
}

// Publish 同步广播事件，聚合所有处理器错误
func (b *Bus) Publish(ctx context.Context, event JobEvent) error {
	b.mutex.RLock()
	handlersMap := b.subscribers[event.Type]
	handlers := make([]JobEventHandler, 0, len(handlersMap))
	for _, handler := range handlersMap {
		handlers = append(handlers, handler)
	}
	b.mutex.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
