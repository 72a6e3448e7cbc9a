package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/sitekeeper/internal/client/edit"
	"github.com/iudanet/sitekeeper/internal/client/feed"
	"github.com/iudanet/sitekeeper/internal/client/snapshot"
	"github.com/iudanet/sitekeeper/internal/models"
)

const waitFor = 2 * time.Second

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// createTestRecord создает запись с заголовком
func createTestRecord(topic, key string, version int64, title string) *models.ContentRecord {
	rec := models.NewRecord(topic, key)
	rec.Version = version
	rec.Fields["title"] = title
	return rec
}

// fakeFeed имитирует ленту изменений: события подаются через push,
// drop обрывает текущее соединение
type fakeFeed struct {
	events  chan models.ChangeEvent
	retry   chan struct{}
	records []*models.ContentRecord
	fail    bool
	mu      sync.Mutex
}

func newFakeFeed(records ...*models.ContentRecord) *fakeFeed {
	return &fakeFeed{
		events:  make(chan models.ChangeEvent, 16),
		retry:   make(chan struct{}),
		records: records,
	}
}

func (f *fakeFeed) transport() *feed.TransportMock {
	return &feed.TransportMock{
		ConnectFunc: func(ctx context.Context, topic string) (feed.Stream, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.fail {
				return nil, errors.New("connection refused")
			}
			events := f.events
			return &feed.StreamMock{
				NextFunc: func(ctx context.Context) (models.ChangeEvent, error) {
					select {
					case ev, ok := <-events:
						if !ok {
							return models.ChangeEvent{}, errors.New("connection reset")
						}
						return ev, nil
					case <-ctx.Done():
						return models.ChangeEvent{}, ctx.Err()
					}
				},
				CloseFunc: func() error { return nil },
			}, nil
		},
	}
}

// sleep ждет сигнала retry от теста вместо реальной задержки
func (f *fakeFeed) sleep(ctx context.Context, _ time.Duration) error {
	select {
	case <-f.retry:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeFeed) readAll(_ context.Context, topic string) ([]*models.ContentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.ContentRecord, 0, len(f.records))
	for _, rec := range f.records {
		if models.MatchTopic(topic, rec.Topic) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (f *fakeFeed) push(ev models.ChangeEvent) {
	f.mu.Lock()
	events := f.events
	f.mu.Unlock()
	events <- ev
}

// drop обрывает соединение; failReconnect запрещает новые подключения
func (f *fakeFeed) drop(failReconnect bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.events)
	f.events = make(chan models.ChangeEvent, 16)
	f.fail = failReconnect
}

func (f *fakeFeed) setRecords(records ...*models.ContentRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
}

func setupEngine(t *testing.T, port *PersistencePortMock, ff *fakeFeed, cfg Config) *Engine {
	t.Helper()
	if port.ReadAllFunc == nil {
		port.ReadAllFunc = ff.readAll
	}
	e := New(port, ff.transport(), cfg, setupTestLogger(), feed.WithSleep(ff.sleep))
	e.Start(context.Background())
	t.Cleanup(e.Close)
	return e
}

func watchHome(t *testing.T, e *Engine, layout ...string) {
	t.Helper()
	require.NoError(t, e.Watch(context.Background(), "home", layout))
	require.Eventually(t, func() bool {
		return e.ConnectionStatus() == StatusConnected
	}, waitFor, 5*time.Millisecond)
}

func waitSession(t *testing.T, e *Engine, key string, cond func(s *edit.Session) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, err := e.Session(context.Background(), key)
		return err == nil && s != nil && cond(s)
	}, waitFor, 5*time.Millisecond)
}

func waitRecord(t *testing.T, e *Engine, key string, cond func(rec *models.ContentRecord) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec, err := e.Get(context.Background(), key)
		return err == nil && cond(rec)
	}, waitFor, 5*time.Millisecond)
}

func TestEngine_HeroScenario(t *testing.T) {
	ctx := context.Background()
	ff := newFakeFeed(createTestRecord("home", "hero", 3, "Old"))
	e := setupEngine(t, &PersistencePortMock{}, ff, Config{})
	watchHome(t, e)

	rec, err := e.Get(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Version)

	_, err = e.BeginEdit(ctx, "hero")
	require.NoError(t, err)
	require.NoError(t, e.UpdateField(ctx, "hero", "title", "New"))

	ff.push(models.RecordEvent(models.OpUpdate, createTestRecord("home", "hero", 4, "External Edit")))
	waitSession(t, e, "hero", func(s *edit.Session) bool {
		return s.Staged != nil && s.Staged.Version == 4
	})

	rec, err = e.Get(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Version)
	assert.Equal(t, "Old", rec.Fields["title"])

	s, err := e.Session(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, "New", s.Draft.Fields["title"])

	require.NoError(t, e.Cancel(ctx, "hero"))

	draft, err := e.BeginEdit(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, "External Edit", draft.Fields["title"])
	assert.Equal(t, int64(4), draft.Version)
}

func TestEngine_SaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	ff := newFakeFeed(createTestRecord("home", "hero", 3, "Old"))
	port := &PersistencePortMock{
		WriteFunc: func(ctx context.Context, rec *models.ContentRecord, expectedVersion int64) (int64, error) {
			return expectedVersion + 1, nil
		},
	}
	e := setupEngine(t, port, ff, Config{})
	watchHome(t, e)

	_, err := e.BeginEdit(ctx, "hero")
	require.NoError(t, err)
	require.NoError(t, e.UpdateField(ctx, "hero", "title", "Saved"))

	result, err := e.Save(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, SaveResult{Version: 4}, result)

	require.Len(t, port.WriteCalls(), 1)
	call := port.WriteCalls()[0]
	assert.Equal(t, int64(3), call.ExpectedVersion)
	assert.Equal(t, "hero", call.Rec.Key)
	assert.Equal(t, "home", call.Rec.Topic)
	assert.Equal(t, "Saved", call.Rec.Fields["title"])

	s, err := e.Session(ctx, "hero")
	require.NoError(t, err)
	assert.Nil(t, s)

	// результат сохранения не применяется локально
	rec, err := e.Get(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, "Old", rec.Fields["title"])

	ff.push(models.RecordEvent(models.OpUpdate, createTestRecord("home", "hero", 4, "Saved")))
	waitRecord(t, e, "hero", func(rec *models.ContentRecord) bool {
		return rec.Version == 4 && rec.Fields["title"] == "Saved"
	})
}

func TestEngine_SaveExclusive(t *testing.T) {
	ctx := context.Background()
	ff := newFakeFeed(createTestRecord("home", "hero", 3, "Old"))
	release := make(chan struct{})
	port := &PersistencePortMock{
		WriteFunc: func(ctx context.Context, rec *models.ContentRecord, expectedVersion int64) (int64, error) {
			<-release
			return 4, nil
		},
	}
	e := setupEngine(t, port, ff, Config{})
	watchHome(t, e)

	_, err := e.BeginEdit(ctx, "hero")
	require.NoError(t, err)
	require.NoError(t, e.UpdateField(ctx, "hero", "title", "New"))

	first := make(chan error, 1)
	go func() {
		_, err := e.Save(ctx, "hero")
		first <- err
	}()

	require.Eventually(t, func() bool {
		return len(port.WriteCalls()) == 1
	}, waitFor, 5*time.Millisecond)

	_, err = e.Save(ctx, "hero")
	assert.ErrorIs(t, err, models.ErrSaveInProgress)
	assert.ErrorIs(t, e.UpdateField(ctx, "hero", "title", "Other"), models.ErrSaveInProgress)
	assert.ErrorIs(t, e.Cancel(ctx, "hero"), models.ErrSaveInProgress)

	close(release)
	require.NoError(t, <-first)
	assert.Len(t, port.WriteCalls(), 1)
}

func TestEngine_SaveTimeout(t *testing.T) {
	ctx := context.Background()
	ff := newFakeFeed(createTestRecord("home", "hero", 3, "Old"))
	port := &PersistencePortMock{
		WriteFunc: func(ctx context.Context, rec *models.ContentRecord, expectedVersion int64) (int64, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
	}
	e := setupEngine(t, port, ff, Config{SaveTimeout: 30 * time.Millisecond})
	watchHome(t, e)

	_, err := e.BeginEdit(ctx, "hero")
	require.NoError(t, err)
	require.NoError(t, e.UpdateField(ctx, "hero", "title", "New"))

	_, err = e.Save(ctx, "hero")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTimeout)

	s, err := e.Session(ctx, "hero")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, edit.Editing, s.State)
	assert.True(t, s.Dirty)
	assert.Equal(t, "New", s.Draft.Fields["title"])
}

func TestEngine_SaveErrors(t *testing.T) {
	tests := []struct {
		writeErr error
		wantErr  error
		name     string
	}{
		{
			name:     "version conflict stays distinct",
			writeErr: fmt.Errorf("%w: expected 3, current 5", models.ErrVersionConflict),
			wantErr:  models.ErrVersionConflict,
		},
		{
			name:     "generic failure is a persistence error",
			writeErr: errors.New("disk full"),
			wantErr:  models.ErrPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			ff := newFakeFeed(createTestRecord("home", "hero", 3, "Old"))
			port := &PersistencePortMock{
				WriteFunc: func(ctx context.Context, rec *models.ContentRecord, expectedVersion int64) (int64, error) {
					return 0, tt.writeErr
				},
			}
			e := setupEngine(t, port, ff, Config{})
			watchHome(t, e)

			_, err := e.BeginEdit(ctx, "hero")
			require.NoError(t, err)
			require.NoError(t, e.UpdateField(ctx, "hero", "title", "New"))

			_, err = e.Save(ctx, "hero")
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantErr == models.ErrVersionConflict {
				assert.NotErrorIs(t, err, models.ErrPersistence)
			}

			s, err := e.Session(ctx, "hero")
			require.NoError(t, err)
			require.NotNil(t, s)
			assert.Equal(t, edit.Editing, s.State)
			assert.Equal(t, "New", s.Draft.Fields["title"])
		})
	}
}

func TestEngine_ConflictThenRebase(t *testing.T) {
	ctx := context.Background()
	ff := newFakeFeed(createTestRecord("home", "hero", 3, "Old"))

	var mu sync.Mutex
	writes := 0
	port := &PersistencePortMock{
		WriteFunc: func(ctx context.Context, rec *models.ContentRecord, expectedVersion int64) (int64, error) {
			mu.Lock()
			defer mu.Unlock()
			writes++
			if writes == 1 {
				return 0, fmt.Errorf("%w: stale", models.ErrVersionConflict)
			}
			return expectedVersion + 1, nil
		},
		ReadFunc: func(ctx context.Context, key string) (*models.ContentRecord, error) {
			latest := createTestRecord("home", key, 5, "Theirs")
			latest.Fields["subtitle"] = "Remote subtitle"
			return latest, nil
		},
	}
	e := setupEngine(t, port, ff, Config{})
	watchHome(t, e)

	_, err := e.BeginEdit(ctx, "hero")
	require.NoError(t, err)
	require.NoError(t, e.UpdateField(ctx, "hero", "title", "Mine"))

	_, err = e.Save(ctx, "hero")
	require.ErrorIs(t, err, models.ErrVersionConflict)

	require.NoError(t, e.Rebase(ctx, "hero"))

	s, err := e.Session(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, int64(5), s.BaseVersion)
	assert.Equal(t, "Mine", s.Draft.Fields["title"])
	assert.Equal(t, "Remote subtitle", s.Draft.Fields["subtitle"])

	result, err := e.Save(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, int64(6), result.Version)
	assert.Equal(t, int64(5), port.WriteCalls()[1].ExpectedVersion)
}

func TestEngine_RebaseRemoteDeletedAndResurrect(t *testing.T) {
	ctx := context.Background()
	ff := newFakeFeed(createTestRecord("home", "hero", 3, "Old"))
	port := &PersistencePortMock{
		ReadFunc: func(ctx context.Context, key string) (*models.ContentRecord, error) {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, key)
		},
		WriteFunc: func(ctx context.Context, rec *models.ContentRecord, expectedVersion int64) (int64, error) {
			return 7, nil
		},
	}
	e := setupEngine(t, port, ff, Config{})
	watchHome(t, e)

	_, err := e.BeginEdit(ctx, "hero")
	require.NoError(t, err)
	require.NoError(t, e.UpdateField(ctx, "hero", "title", "Mine"))

	err = e.Rebase(ctx, "hero")
	require.ErrorIs(t, err, models.ErrRemoteDeleted)

	s, err := e.Session(ctx, "hero")
	require.NoError(t, err)
	assert.True(t, s.RemoteDeleted)

	_, err = e.Save(ctx, "hero")
	require.ErrorIs(t, err, models.ErrRemoteDeleted)
	assert.Empty(t, port.WriteCalls())

	require.NoError(t, e.ConfirmResurrect(ctx, "hero"))
	_, err = e.Save(ctx, "hero")
	require.NoError(t, err)
	require.Len(t, port.WriteCalls(), 1)
	assert.Equal(t, int64(0), port.WriteCalls()[0].ExpectedVersion)
}

func TestEngine_DeleteEventWhileEditing(t *testing.T) {
	ctx := context.Background()
	ff := newFakeFeed(createTestRecord("home", "hero", 3, "Old"))
	e := setupEngine(t, &PersistencePortMock{}, ff, Config{})
	watchHome(t, e)

	_, err := e.BeginEdit(ctx, "hero")
	require.NoError(t, err)

	ff.push(models.ChangeEvent{Topic: "home", Op: models.OpDelete, Key: "hero", Version: 4})
	waitSession(t, e, "hero", func(s *edit.Session) bool { return s.RemoteDeleted })

	_, err = e.Get(ctx, "hero")
	require.NoError(t, err, "record under edit stays visible until the session ends")

	require.NoError(t, e.Cancel(ctx, "hero"))
	_, err = e.Get(ctx, "hero")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEngine_UnconfirmedSaveWhileDisconnected(t *testing.T) {
	ctx := context.Background()
	ff := newFakeFeed(createTestRecord("home", "hero", 3, "Old"))
	port := &PersistencePortMock{
		WriteFunc: func(ctx context.Context, rec *models.ContentRecord, expectedVersion int64) (int64, error) {
			return 4, nil
		},
	}
	e := setupEngine(t, port, ff, Config{})
	watchHome(t, e)

	ff.drop(true)
	require.Eventually(t, func() bool {
		return e.ConnectionStatus() != StatusConnected
	}, waitFor, 5*time.Millisecond)

	// редактирование по устаревшему снимку остается возможным
	_, err := e.BeginEdit(ctx, "hero")
	require.NoError(t, err)
	require.NoError(t, e.UpdateField(ctx, "hero", "title", "Offline edit"))

	result, err := e.Save(ctx, "hero")
	require.NoError(t, err)
	assert.True(t, result.Unconfirmed)
	assert.Equal(t, int64(4), result.Version)
}

func TestEngine_ReconnectResyncs(t *testing.T) {
	ff := newFakeFeed(
		createTestRecord("home", "hero", 3, "Old"),
		createTestRecord("home", "cta", 1, "Buy"),
	)
	port := &PersistencePortMock{}
	e := setupEngine(t, port, ff, Config{})
	watchHome(t, e)

	// пока лента лежала, hero изменился, а cta удалили
	ff.setRecords(createTestRecord("home", "hero", 5, "Changed offline"))
	ff.drop(false)
	require.Eventually(t, func() bool {
		return e.ConnectionStatus() == StatusSyncing
	}, waitFor, 5*time.Millisecond)

	ff.retry <- struct{}{}

	waitRecord(t, e, "hero", func(rec *models.ContentRecord) bool {
		return rec.Version == 5 && rec.Fields["title"] == "Changed offline"
	})
	require.Eventually(t, func() bool {
		return e.ConnectionStatus() == StatusConnected
	}, waitFor, 5*time.Millisecond)

	_, err := e.Get(context.Background(), "cta")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Len(t, port.ReadAllCalls(), 2)
}

func TestEngine_SectionsAndCreateSection(t *testing.T) {
	ctx := context.Background()
	ff := newFakeFeed(createTestRecord("home", "hero", 3, "Old"))
	port := &PersistencePortMock{
		WriteFunc: func(ctx context.Context, rec *models.ContentRecord, expectedVersion int64) (int64, error) {
			return 1, nil
		},
	}
	e := setupEngine(t, port, ff, Config{})
	watchHome(t, e, "hero", "features", "cta")

	sections, err := e.Sections(ctx, "home")
	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, snapshot.Present, sections[0].State)
	assert.Equal(t, snapshot.NotCreated, sections[1].State)
	assert.Equal(t, snapshot.NotCreated, sections[2].State)

	version, err := e.CreateSection(ctx, "home", "features")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	require.Len(t, port.WriteCalls(), 1)
	assert.Equal(t, int64(0), port.WriteCalls()[0].ExpectedVersion)
	assert.Equal(t, "features", port.WriteCalls()[0].Rec.Key)
	assert.Equal(t, "home", port.WriteCalls()[0].Rec.Topic)

	sections, err = e.Sections(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, snapshot.NotCreated, sections[1].State, "placeholder turns real only via the feed")

	created := models.NewRecord("home", "features")
	created.Version = 1
	ff.push(models.RecordEvent(models.OpInsert, created))

	require.Eventually(t, func() bool {
		sections, err := e.Sections(ctx, "home")
		return err == nil && sections[1].State == snapshot.Present
	}, waitFor, 5*time.Millisecond)
}

func TestEngine_Delete(t *testing.T) {
	ctx := context.Background()
	ff := newFakeFeed(
		createTestRecord("home", "hero", 3, "Old"),
		createTestRecord("home", "cta", 2, "Buy"),
	)
	port := &PersistencePortMock{
		DeleteFunc: func(ctx context.Context, key string, expectedVersion int64) (int64, error) {
			return expectedVersion + 1, nil
		},
	}
	e := setupEngine(t, port, ff, Config{})
	watchHome(t, e)

	version, err := e.Delete(ctx, "cta")
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)
	require.Len(t, port.DeleteCalls(), 1)
	assert.Equal(t, int64(2), port.DeleteCalls()[0].ExpectedVersion)

	_, err = e.BeginEdit(ctx, "hero")
	require.NoError(t, err)
	_, err = e.Delete(ctx, "hero")
	assert.ErrorIs(t, err, models.ErrAlreadyEditing)

	_, err = e.Delete(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Len(t, port.DeleteCalls(), 1)
}

func TestEngine_StatusObserversAndUnwatch(t *testing.T) {
	ctx := context.Background()
	ff := newFakeFeed(createTestRecord("home", "hero", 3, "Old"))
	e := setupEngine(t, &PersistencePortMock{}, ff, Config{})

	var mu sync.Mutex
	var seen []Status
	require.NoError(t, e.OnStatus(ctx, func(s Status) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	}))

	assert.Equal(t, StatusDisconnected, e.ConnectionStatus())
	watchHome(t, e)

	channels, err := e.Channels(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, feed.Connected, channels[0].State)

	require.NoError(t, e.Unwatch(ctx, "home"))
	assert.Equal(t, StatusDisconnected, e.ConnectionStatus())

	records, err := e.Records(ctx, "home")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusSyncing, StatusConnected, StatusDisconnected}, seen)
}

func TestEngine_StaleResponseAfterUnwatch(t *testing.T) {
	ctx := context.Background()
	ff := newFakeFeed(createTestRecord("home", "hero", 3, "Old"))
	e := setupEngine(t, &PersistencePortMock{}, ff, Config{})
	watchHome(t, e)

	var handle *feed.Handle
	require.NoError(t, e.loop.Call(ctx, func() { handle = e.watches["home"] }))
	require.NoError(t, e.Unwatch(ctx, "home"))

	// запоздавшее событие отписанной подписки игнорируется
	e.onFeedEvent(handle, models.RecordEvent(models.OpUpdate, createTestRecord("home", "hero", 9, "Late")))
	rec, err := e.Get(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Version)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		channels map[string]feed.Channel
		name     string
		want     Status
	}{
		{name: "nothing watched", channels: map[string]feed.Channel{}, want: StatusDisconnected},
		{
			name: "all connected",
			channels: map[string]feed.Channel{
				"home": {State: feed.Connected},
				"blog": {State: feed.Connected},
			},
			want: StatusConnected,
		},
		{
			name: "one reconnecting",
			channels: map[string]feed.Channel{
				"home": {State: feed.Connected},
				"blog": {State: feed.Reconnecting},
			},
			want: StatusSyncing,
		},
		{
			name: "one past retry threshold",
			channels: map[string]feed.Channel{
				"home": {State: feed.Connecting},
				"blog": {State: feed.Disconnected},
			},
			want: StatusDisconnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, aggregate(tt.channels))
		})
	}
}

func TestLoop_CallAfterStop(t *testing.T) {
	l := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	ran := false
	require.NoError(t, l.Call(context.Background(), func() { ran = true }))
	assert.True(t, ran)

	cancel()
	<-done
	assert.ErrorIs(t, l.Call(context.Background(), func() {}), ErrLoopClosed)
	assert.False(t, l.Post(func() {}))
}

// blockLoop занимает цикл движка до закрытия возвращаемого канала
func blockLoop(t *testing.T, e *Engine) chan struct{} {
	t.Helper()
	block := make(chan struct{})
	started := make(chan struct{})
	require.True(t, e.loop.Post(func() {
		close(started)
		<-block
	}))
	<-started
	return block
}

func TestEngine_SaveDeadlineWhileQueued(t *testing.T) {
	ctx := context.Background()
	ff := newFakeFeed(createTestRecord("home", "hero", 3, "Old"))
	port := &PersistencePortMock{
		WriteFunc: func(ctx context.Context, rec *models.ContentRecord, expectedVersion int64) (int64, error) {
			return 4, nil
		},
	}
	e := setupEngine(t, port, ff, Config{})
	watchHome(t, e)

	_, err := e.BeginEdit(ctx, "hero")
	require.NoError(t, err)
	require.NoError(t, e.UpdateField(ctx, "hero", "title", "New"))

	block := blockLoop(t, e)
	saveCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	_, err = e.Save(saveCtx, "hero")
	cancel()
	close(block)

	assert.ErrorIs(t, err, models.ErrTimeout)
	assert.Empty(t, port.WriteCalls())

	s, err := e.Session(ctx, "hero")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, edit.Editing, s.State)
	assert.True(t, s.Dirty)

	// сессия не застряла в Saving, повторное сохранение проходит
	res, err := e.Save(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Version)
}

func TestEngine_BeginEditDeadlineWhileQueued(t *testing.T) {
	ctx := context.Background()
	ff := newFakeFeed(createTestRecord("home", "hero", 3, "Old"))
	e := setupEngine(t, &PersistencePortMock{}, ff, Config{})
	watchHome(t, e)

	block := blockLoop(t, e)
	editCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	_, err := e.BeginEdit(editCtx, "hero")
	cancel()
	close(block)

	assert.ErrorIs(t, err, models.ErrTimeout)
	s, err := e.Session(ctx, "hero")
	require.NoError(t, err)
	assert.Nil(t, s)

	draft, err := e.BeginEdit(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, "Old", draft.Fields["title"])
}

func TestEngine_CancelDeadlineWhileQueuedKeepsDraft(t *testing.T) {
	ctx := context.Background()
	ff := newFakeFeed(createTestRecord("home", "hero", 3, "Old"))
	e := setupEngine(t, &PersistencePortMock{}, ff, Config{})
	watchHome(t, e)

	_, err := e.BeginEdit(ctx, "hero")
	require.NoError(t, err)
	require.NoError(t, e.UpdateField(ctx, "hero", "title", "New"))

	block := blockLoop(t, e)
	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	err = e.Cancel(cancelCtx, "hero")
	cancel()
	close(block)

	assert.ErrorIs(t, err, models.ErrTimeout)
	s, err := e.Session(ctx, "hero")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "New", s.Draft.Fields["title"])
}

func TestLoop_Call(t *testing.T) {
	l := NewLoop(4)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go l.Run(ctx)

	t.Run("abandoned while queued never runs", func(t *testing.T) {
		block := make(chan struct{})
		require.True(t, l.Post(func() { <-block }))

		callCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		var ran atomic.Bool
		err := l.Call(callCtx, func() { ran.Store(true) })
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		close(block)
		require.NoError(t, l.Call(context.Background(), func() {}))
		assert.False(t, ran.Load())
	})

	t.Run("started closure is waited for", func(t *testing.T) {
		callCtx, cancel := context.WithCancel(context.Background())
		var ran atomic.Bool
		err := l.Call(callCtx, func() {
			cancel()
			time.Sleep(10 * time.Millisecond)
			ran.Store(true)
		})
		assert.NoError(t, err)
		assert.True(t, ran.Load())
	})
}
