package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dynaprizes/waitlist/pkg/logger"
)

var (
	ErrBusClosed = errors.New("event bus closed")
	ErrQueueFull = errors.New("event queue full")
)

// LocalEventBus delivers events in-process on background workers. Publish
// never blocks: when the queue is full the event is dropped.
type LocalEventBus struct {
	queue chan *Message

	mu       sync.RWMutex
	closed   bool
	handlers map[string][]func(*Message)

	wg sync.WaitGroup
}

func NewLocalEventBus(workers, queueSize int) *LocalEventBus {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	b := &LocalEventBus{
		queue:    make(chan *Message, queueSize),
		handlers: make(map[string][]func(*Message)),
	}
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.run()
	}
	return b
}

func (b *LocalEventBus) run() {
	defer b.wg.Done()
	for msg := range b.queue {
		b.mu.RLock()
		handlers := b.handlers[msg.Subject]
		b.mu.RUnlock()

		for _, h := range handlers {
			b.dispatch(h, msg)
		}
	}
}

func (b *LocalEventBus) dispatch(h func(*Message), msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Event handler panic", "subject", msg.Subject, "panic", r)
		}
	}()
	h(msg)
}

func (b *LocalEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	select {
	case b.queue <- newMessage(subject, payload):
		logger.DebugContext(ctx, "Queued event", "subject", subject)
		return nil
	default:
		return ErrQueueFull
	}
}

func (b *LocalEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	b.handlers[subject] = append(b.handlers[subject], handler)
	return nil
}

// QueueSubscribe is Subscribe: a single process is its own queue group.
func (b *LocalEventBus) QueueSubscribe(subject, _ string, handler func(msg *Message)) error {
	return b.Subscribe(subject, handler)
}

// Close stops accepting events and waits for queued ones to be handled.
func (b *LocalEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
