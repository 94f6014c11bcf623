// Package mediator is an in-process topic bus that decouples the user
// router from the stores answering its requests.
package mediator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrNoSubscriber is returned by Request when nobody answers the topic
var ErrNoSubscriber = errors.New("no subscriber for topic")

// Handler answers a request published on a topic
type Handler func(ctx context.Context, payload any) (any, error)

// Mediator routes requests and events between components by topic
type Mediator struct {
	mu          sync.RWMutex
	logger      *zap.SugaredLogger
	subscribers map[string][]Handler
}

// New creates an empty mediator
func New(logger *zap.SugaredLogger) *Mediator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Mediator{
		logger:      logger,
		subscribers: make(map[string][]Handler),
	}
}

// Subscribe registers h for topic
func (m *Mediator) Subscribe(topic string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subscribers[topic] = append(m.subscribers[topic], h)
	m.logger.Debugw("Subscribed to topic", "topic", topic)
}

// HasSubscriber reports whether topic has at least one handler
func (m *Mediator) HasSubscriber(topic string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.subscribers[topic]) > 0
}

// Request sends payload to the first subscriber of topic and returns its answer
func (m *Mediator) Request(ctx context.Context, topic string, payload any) (any, error) {
	m.mu.RLock()
	handlers := m.subscribers[topic]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSubscriber, topic)
	}

	type result struct {
		value any
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := handlers[0](ctx, payload)
		done <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.value, res.err
	}
}

// Publish delivers payload to every subscriber of topic. Handler errors are
// logged and joined into the returned error.
func (m *Mediator) Publish(ctx context.Context, topic string, payload any) error {
	m.mu.RLock()
	handlers := append([]Handler(nil), m.subscribers[topic]...)
	m.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if _, err := h(ctx, payload); err != nil {
			m.logger.Warnw("Subscriber failed", "topic", topic, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
