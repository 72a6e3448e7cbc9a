// Package feed keeps one live change-feed subscription per watched topic and
// recovers it after transport failures.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/sitekeeper/internal/models"
)

//go:generate moq -out transport_mock.go . Transport Stream

// Transport opens change-feed streams.
type Transport interface {
	// Connect открывает поток событий топика
	Connect(ctx context.Context, topic string) (Stream, error)
}

// Stream is one open connection of the change feed.
type Stream interface {
	// Next блокируется до следующего события или ошибки транспорта
	Next(ctx context.Context) (models.ChangeEvent, error)
	Close() error
}

// ChannelState is the connection state of one topic subscription.
type ChannelState int

const (
	Disconnected ChannelState = iota
	Connecting
	Connected
	Reconnecting
)

func (s ChannelState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Channel is a snapshot of one subscription's connection.
type Channel struct {
	Err        error // Err последняя ошибка транспорта
	Topic      string
	State      ChannelState
	RetryCount int
	Delay      time.Duration // Delay задержка перед следующей попыткой
}

// Callbacks receive everything a subscription produces. They are called from the
// subscription goroutine and stop once the handle is inactive; a callback racing
// with Unsubscribe can still run, so consumers re-check Handle.Active.
type Callbacks struct {
	// OnEvent получает каждое событие ленты
	OnEvent func(h *Handle, ev models.ChangeEvent)
	// OnState получает переходы состояния соединения
	OnState func(h *Handle, ch Channel)
	// OnResync вызывается после каждого (пере)подключения до чтения событий.
	// Ошибка считается неудачной попыткой подключения.
	OnResync func(ctx context.Context, h *Handle) error
}

// Handle identifies one subscription.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	ID     string
	Topic  string
	active atomic.Bool
}

// Active reports whether the subscription has not been cancelled. Results
// produced by a cancelled subscription must be dropped.
func (h *Handle) Active() bool {
	return h.active.Load()
}

// Done is closed when the subscription goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Subscriber manages change-feed subscriptions.
type Subscriber struct {
	transport Transport
	logger    *slog.Logger
	sleep     SleepFunc
	handles   map[string]*Handle
	backoff   BackoffConfig
	mu        sync.Mutex
}

// Option configures a Subscriber.
type Option func(*Subscriber)

// WithSleep replaces the wait between reconnect attempts.
func WithSleep(sleep SleepFunc) Option {
	return func(s *Subscriber) {
		s.sleep = sleep
	}
}

// NewSubscriber creates a subscriber over transport.
func NewSubscriber(transport Transport, backoff BackoffConfig, logger *slog.Logger, opts ...Option) *Subscriber {
	s := &Subscriber{
		transport: transport,
		backoff:   backoff.withDefaults(),
		logger:    logger,
		sleep:     sleepContext,
		handles:   make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe starts a subscription for topic. It runs until Unsubscribe or
// until ctx is cancelled.
func (s *Subscriber) Subscribe(ctx context.Context, topic string, cb Callbacks) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		ID:     uuid.NewString(),
		Topic:  topic,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	h.active.Store(true)

	s.mu.Lock()
	s.handles[h.ID] = h
	s.mu.Unlock()

	s.logger.Debug("Subscribing to change feed", "topic", topic, "handle", h.ID)

	go s.run(ctx, h, cb)

	return h
}

// Unsubscribe stops the subscription. It does not wait for an in-flight
// network call; its late result is dropped because the handle is inactive.
func (s *Subscriber) Unsubscribe(h *Handle) {
	if h == nil {
		return
	}
	h.active.Store(false)
	h.cancel()

	s.mu.Lock()
	delete(s.handles, h.ID)
	s.mu.Unlock()

	s.logger.Debug("Unsubscribed from change feed", "topic", h.Topic, "handle", h.ID)
}

// Close cancels every subscription and waits for their goroutines.
func (s *Subscriber) Close() {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		s.Unsubscribe(h)
		<-h.done
	}
}

func (s *Subscriber) run(ctx context.Context, h *Handle, cb Callbacks) {
	defer close(h.done)

	backoff := s.backoff.newBackoff()
	retries := 0

	s.emit(h, cb, Channel{Topic: h.Topic, State: Connecting})

	for {
		connected, err := s.attempt(ctx, h, cb)
		if ctx.Err() != nil {
			return
		}

		if connected {
			// успешное подключение сбрасывает счетчик и задержку
			retries = 0
			backoff = s.backoff.newBackoff()
		}
		retries++

		delay, _ := backoff.Next()
		ch := Channel{Topic: h.Topic, State: Reconnecting, RetryCount: retries, Err: err, Delay: delay}
		if retries >= s.backoff.DisconnectAfter {
			ch.State = Disconnected
		}

		s.logger.Warn("Change feed connection lost",
			"topic", h.Topic,
			"retry", retries,
			"delay", delay,
			"error", err)
		s.emit(h, cb, ch)

		if err := s.sleep(ctx, delay); err != nil {
			return
		}
	}
}

// attempt connects, resyncs and reads events until the stream fails.
// connected is true if the resync succeeded.
func (s *Subscriber) attempt(ctx context.Context, h *Handle, cb Callbacks) (connected bool, err error) {
	stream, err := s.transport.Connect(ctx, h.Topic)
	if err != nil {
		return false, fmt.Errorf("%w: connect %s: %v", models.ErrTransport, h.Topic, err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			s.logger.Debug("Failed to close feed stream", "topic", h.Topic, "error", cerr)
		}
	}()

	// поток уже открыт, поэтому события, пришедшие во время resync, не теряются
	if cb.OnResync != nil && h.Active() {
		if err := cb.OnResync(ctx, h); err != nil {
			return false, fmt.Errorf("resync %s: %w", h.Topic, err)
		}
	}

	s.emit(h, cb, Channel{Topic: h.Topic, State: Connected})
	s.logger.Info("Change feed connected", "topic", h.Topic)

	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, models.ErrTransport) {
				return true, err
			}
			return true, fmt.Errorf("%w: %v", models.ErrTransport, err)
		}
		if !h.Active() {
			return true, ctx.Err()
		}
		if ev.Topic == "" {
			ev.Topic = h.Topic
		}
		if cb.OnEvent != nil {
			cb.OnEvent(h, ev)
		}
	}
}

func (s *Subscriber) emit(h *Handle, cb Callbacks, ch Channel) {
	if cb.OnState != nil && h.Active() {
		cb.OnState(h, ch)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
