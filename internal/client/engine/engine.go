// Package engine ties snapshot, change feed, reconciler and edit sessions together
// behind one event loop and exposes what an admin screen needs.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iudanet/sitekeeper/internal/client/edit"
	"github.com/iudanet/sitekeeper/internal/client/feed"
	"github.com/iudanet/sitekeeper/internal/client/reconcile"
	"github.com/iudanet/sitekeeper/internal/client/snapshot"
	"github.com/iudanet/sitekeeper/internal/models"
)

// Status is the aggregate connection status shown to the operator.
type Status int32

const (
	StatusDisconnected Status = iota
	StatusSyncing
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusSyncing:
		return "syncing"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Config configures an Engine.
type Config struct {
	Backoff     feed.BackoffConfig
	SaveTimeout time.Duration // SaveTimeout таймаут записи на сервер
	ReadTimeout time.Duration // ReadTimeout таймаут чтения при resync и rebase
	QueueSize   int
}

// DefaultConfig returns the console defaults.
func DefaultConfig() Config {
	return Config{
		Backoff:     feed.DefaultBackoff(),
		SaveTimeout: 10 * time.Second,
		ReadTimeout: 15 * time.Second,
		QueueSize:   256,
	}
}

// SaveResult is the outcome of a successful save.
type SaveResult struct {
	Version int64 // Version версия, назначенная сервером
	// Unconfirmed true, если лента не подключена и подтверждение сохранения
	// не будет видно вживую
	Unconfirmed bool
}

// Engine is the live content reconciliation engine of one console.
// Its methods are safe for concurrent use; all state changes run on its loop.
type Engine struct {
	port       PersistencePort
	subscriber *feed.Subscriber
	loop       *Loop
	logger     *slog.Logger

	// принадлежат циклу
	store      *snapshot.Store
	sessions   *edit.Manager
	reconciler *reconcile.Reconciler
	watches    map[string]*feed.Handle
	channels   map[string]feed.Channel
	observers  []func(Status)
	lastStatus Status

	runCtx   context.Context
	stopLoop context.CancelFunc
	loopDone chan struct{}
	cfg      Config
	status   atomic.Int32
	start    sync.Once
}

// New creates an engine. Call Start before using it.
func New(port PersistencePort, transport feed.Transport, cfg Config, logger *slog.Logger, opts ...feed.Option) *Engine {
	def := DefaultConfig()
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = def.SaveTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}

	store := snapshot.New()
	sessions := edit.NewManager(store)

	return &Engine{
		port:       port,
		subscriber: feed.NewSubscriber(transport, cfg.Backoff, logger, opts...),
		loop:       NewLoop(cfg.QueueSize),
		logger:     logger,
		store:      store,
		sessions:   sessions,
		reconciler: reconcile.New(store, sessions, logger),
		watches:    make(map[string]*feed.Handle),
		channels:   make(map[string]feed.Channel),
		lastStatus: StatusDisconnected,
		loopDone:   make(chan struct{}),
		cfg:        cfg,
	}
}

// Start runs the engine loop until ctx is cancelled or Close is called.
func (e *Engine) Start(ctx context.Context) {
	e.start.Do(func() {
		e.runCtx, e.stopLoop = context.WithCancel(ctx)
		go func() {
			defer close(e.loopDone)
			e.loop.Run(e.runCtx)
		}()
	})
}

// Close stops every subscription and the loop. Must not be called from an observer.
func (e *Engine) Close() {
	e.subscriber.Close()
	e.start.Do(func() {
		close(e.loopDone)
	})
	if e.stopLoop != nil {
		e.stopLoop()
	}
	<-e.loopDone
}

// Watch subscribes to topic and sets its section layout. Watching a topic twice
// only replaces the layout.
func (e *Engine) Watch(ctx context.Context, topic string, layout []string) error {
	return e.loop.Call(ctx, func() {
		if layout != nil {
			e.store.SetLayout(topic, layout)
		}
		if _, ok := e.watches[topic]; ok {
			return
		}

		e.channels[topic] = feed.Channel{Topic: topic, State: feed.Connecting}
		e.watches[topic] = e.subscriber.Subscribe(e.runCtx, topic, feed.Callbacks{
			OnEvent:  e.onFeedEvent,
			OnState:  e.onFeedState,
			OnResync: e.onFeedResync,
		})
		e.notifyStatus()
	})
}

// Unwatch drops the subscription of topic. Records of the topic stay in the snapshot.
func (e *Engine) Unwatch(ctx context.Context, topic string) error {
	return e.loop.Call(ctx, func() {
		h, ok := e.watches[topic]
		if !ok {
			return
		}
		delete(e.watches, topic)
		delete(e.channels, topic)
		e.subscriber.Unsubscribe(h)
		e.notifyStatus()
	})
}

// ConnectionStatus returns the aggregate status of all watched topics.
func (e *Engine) ConnectionStatus() Status {
	return Status(e.status.Load())
}

// Channels returns the connection state of every watched topic.
func (e *Engine) Channels(ctx context.Context) ([]feed.Channel, error) {
	return call(ctx, e.loop, func() ([]feed.Channel, error) {
		out := make([]feed.Channel, 0, len(e.channels))
		for _, ch := range e.channels {
			out = append(out, ch)
		}
		return out, nil
	})
}

// OnStatus registers an observer of aggregate status changes. Observers run on
// the engine loop and must not call back into the engine synchronously.
func (e *Engine) OnStatus(ctx context.Context, fn func(Status)) error {
	return e.loop.Call(ctx, func() {
		e.observers = append(e.observers, fn)
	})
}

// Records returns the snapshot records of topicFilter in display order.
func (e *Engine) Records(ctx context.Context, topicFilter string) ([]*models.ContentRecord, error) {
	return call(ctx, e.loop, func() ([]*models.ContentRecord, error) {
		return e.store.List(topicFilter), nil
	})
}

// Sections returns layout sections of topic including not-yet-created placeholders.
func (e *Engine) Sections(ctx context.Context, topic string) ([]snapshot.Section, error) {
	return call(ctx, e.loop, func() ([]snapshot.Section, error) {
		return e.store.Sections(topic), nil
	})
}

// Get returns the snapshot value of key as seen by non-editing consumers.
func (e *Engine) Get(ctx context.Context, key string) (*models.ContentRecord, error) {
	return call(ctx, e.loop, func() (*models.ContentRecord, error) {
		rec, ok := e.store.Get(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, key)
		}
		return rec, nil
	})
}

// Session returns the edit session of key, nil if there is none.
func (e *Engine) Session(ctx context.Context, key string) (*edit.Session, error) {
	return call(ctx, e.loop, func() (*edit.Session, error) {
		s, ok := e.sessions.Session(key)
		if !ok {
			return nil, nil
		}
		return s, nil
	})
}

// BeginEdit opens an edit session for key and returns the draft.
func (e *Engine) BeginEdit(ctx context.Context, key string) (*models.ContentRecord, error) {
	return call(ctx, e.loop, func() (*models.ContentRecord, error) {
		return e.sessions.BeginEdit(key)
	})
}

// UpdateField sets path of the draft of key to value.
func (e *Engine) UpdateField(ctx context.Context, key, path string, value any) error {
	_, err := call(ctx, e.loop, func() (struct{}, error) {
		return struct{}{}, e.sessions.UpdateField(key, path, value)
	})
	return err
}

// AppendItem appends item to the nested list of the draft of key.
func (e *Engine) AppendItem(ctx context.Context, key, list string, item models.Item) (int, error) {
	return call(ctx, e.loop, func() (int, error) {
		return e.sessions.AppendItem(key, list, item)
	})
}

// Save writes the draft of key to the backend. The snapshot is not updated from
// the result; the change feed delivers it. On any error the session returns to
// Editing with its draft intact.
func (e *Engine) Save(ctx context.Context, key string) (SaveResult, error) {
	req, err := call(ctx, e.loop, func() (edit.SaveRequest, error) {
		return e.sessions.PrepareSave(key)
	})
	if err != nil {
		return SaveResult{}, err
	}

	rec := req.Draft
	rec.Key = req.Key

	writeCtx, cancel := context.WithTimeout(ctx, e.cfg.SaveTimeout)
	version, writeErr := e.port.Write(writeCtx, rec, req.ExpectedVersion)
	if writeErr != nil {
		writeErr = classify(writeCtx, "save", key, writeErr)
	}
	cancel()

	// сессия должна выйти из Saving даже если вызывающий уже ушел
	result, err := call(context.WithoutCancel(ctx), e.loop, func() (SaveResult, error) {
		ended, err := e.sessions.CompleteSave(key, writeErr)
		if err != nil {
			return SaveResult{}, err
		}
		if ended != nil {
			e.reconciler.Release(ended.Staged)
		}
		return SaveResult{
			Version:     version,
			Unconfirmed: e.lastStatus != StatusConnected,
		}, nil
	})
	if writeErr != nil {
		e.logger.Warn("Save failed", "key", key, "expected_version", req.ExpectedVersion, "error", writeErr)
		return SaveResult{}, writeErr
	}
	if err != nil {
		return SaveResult{}, err
	}

	e.logger.Info("Saved record", "key", key, "version", result.Version, "unconfirmed", result.Unconfirmed)
	return result, nil
}

// Cancel discards the session of key. A remote value staged during the edit is
// released into the snapshot, so the next BeginEdit starts from it.
func (e *Engine) Cancel(ctx context.Context, key string) error {
	_, err := call(ctx, e.loop, func() (struct{}, error) {
		ended, err := e.sessions.Cancel(key)
		if err != nil {
			return struct{}{}, err
		}
		e.reconciler.Release(ended.Staged)
		return struct{}{}, nil
	})
	return err
}

// Rebase reloads key from the backend and replays the operator's edits on top
// of it. Used after a version conflict.
func (e *Engine) Rebase(ctx context.Context, key string) error {
	if _, err := call(ctx, e.loop, func() (struct{}, error) {
		if !e.sessions.IsEditing(key) {
			return struct{}{}, fmt.Errorf("%w: %s", models.ErrNotEditing, key)
		}
		return struct{}{}, nil
	}); err != nil {
		return err
	}

	readCtx, cancel := context.WithTimeout(ctx, e.cfg.ReadTimeout)
	latest, err := e.port.Read(readCtx, key)
	if err != nil {
		err = classify(readCtx, "read", key, err)
	}
	cancel()

	if errors.Is(err, models.ErrNotFound) {
		// на сервере записи больше нет
		_, _ = call(ctx, e.loop, func() (struct{}, error) {
			e.sessions.Stage(models.ChangeEvent{
				Op:      models.OpDelete,
				Key:     key,
				Version: e.sessions.KnownVersion(key) + 1,
			})
			return struct{}{}, nil
		})
		return fmt.Errorf("%w: %s", models.ErrRemoteDeleted, key)
	}
	if err != nil {
		return err
	}

	_, err = call(ctx, e.loop, func() (struct{}, error) {
		return struct{}{}, e.sessions.Rebase(key, latest)
	})
	return err
}

// ConfirmResurrect allows saving a session whose record was deleted remotely.
func (e *Engine) ConfirmResurrect(ctx context.Context, key string) error {
	_, err := call(ctx, e.loop, func() (struct{}, error) {
		return struct{}{}, e.sessions.ConfirmResurrect(key)
	})
	return err
}

// CreateSection turns a placeholder into a real record by inserting an empty one.
// The record appears once its insert event arrives.
func (e *Engine) CreateSection(ctx context.Context, topic, key string) (int64, error) {
	rec := models.NewRecord(topic, key)

	writeCtx, cancel := context.WithTimeout(ctx, e.cfg.SaveTimeout)
	defer cancel()

	version, err := e.port.Write(writeCtx, rec, 0)
	if err != nil {
		return 0, classify(writeCtx, "create", key, err)
	}

	e.logger.Info("Created section", "topic", topic, "key", key, "version", version)
	return version, nil
}

// Delete removes key on the backend at its current snapshot version.
// Records under edit cannot be deleted.
func (e *Engine) Delete(ctx context.Context, key string) (int64, error) {
	expected, err := call(ctx, e.loop, func() (int64, error) {
		if e.sessions.IsEditing(key) {
			return 0, fmt.Errorf("%w: %s", models.ErrAlreadyEditing, key)
		}
		rec, ok := e.store.Get(key)
		if !ok {
			return 0, fmt.Errorf("%w: %s", models.ErrNotFound, key)
		}
		return rec.Version, nil
	})
	if err != nil {
		return 0, err
	}

	writeCtx, cancel := context.WithTimeout(ctx, e.cfg.SaveTimeout)
	defer cancel()

	version, err := e.port.Delete(writeCtx, key, expected)
	if err != nil {
		return 0, classify(writeCtx, "delete", key, err)
	}

	e.logger.Info("Deleted record", "key", key, "version", version)
	return version, nil
}

// onFeedEvent is called from a subscription goroutine.
func (e *Engine) onFeedEvent(h *feed.Handle, ev models.ChangeEvent) {
	e.loop.Post(func() {
		if !e.current(h) {
			return
		}
		e.reconciler.OnEvent(ev)
	})
}

// onFeedState is called from a subscription goroutine.
func (e *Engine) onFeedState(h *feed.Handle, ch feed.Channel) {
	e.loop.Post(func() {
		if !e.current(h) {
			return
		}
		e.channels[h.Topic] = ch
		e.notifyStatus()
	})
}

// onFeedResync re-fetches the topic off the loop and merges it on the loop.
func (e *Engine) onFeedResync(ctx context.Context, h *feed.Handle) error {
	readCtx, cancel := context.WithTimeout(ctx, e.cfg.ReadTimeout)
	defer cancel()

	records, err := e.port.ReadAll(readCtx, h.Topic)
	if err != nil {
		return classify(readCtx, "resync", h.Topic, err)
	}

	return e.loop.Call(ctx, func() {
		if !e.current(h) {
			return
		}
		e.reconciler.Resync(h.Topic, records)
	})
}

// current is the stale-response guard: results of a subscription that was
// dropped or replaced are ignored.
func (e *Engine) current(h *feed.Handle) bool {
	return h.Active() && e.watches[h.Topic] == h
}

func (e *Engine) notifyStatus() {
	status := aggregate(e.channels)
	e.status.Store(int32(status))
	if status == e.lastStatus {
		return
	}
	e.logger.Info("Connection status changed", "from", e.lastStatus, "to", status)
	e.lastStatus = status
	for _, fn := range e.observers {
		fn(status)
	}
}

// aggregate folds channel states: any disconnected topic makes the console
// disconnected, any topic still (re)connecting makes it syncing.
func aggregate(channels map[string]feed.Channel) Status {
	if len(channels) == 0 {
		return StatusDisconnected
	}
	status := StatusConnected
	for _, ch := range channels {
		switch ch.State {
		case feed.Disconnected:
			return StatusDisconnected
		case feed.Connecting, feed.Reconnecting:
			status = StatusSyncing
		}
	}
	return status
}

// classify maps a port error to the engine's error kinds.
func classify(ctx context.Context, op, key string, err error) error {
	switch {
	case errors.Is(err, models.ErrVersionConflict), errors.Is(err, models.ErrNotFound):
		return fmt.Errorf("%s %s: %w", op, key, err)
	case errors.Is(err, models.ErrTimeout):
		return fmt.Errorf("%s %s: %w", op, key, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s %s", models.ErrTimeout, op, key)
	case errors.Is(err, models.ErrPersistence):
		return fmt.Errorf("%s %s: %w", op, key, err)
	default:
		return fmt.Errorf("%w: %s %s: %w", models.ErrPersistence, op, key, err)
	}
}
