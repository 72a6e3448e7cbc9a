package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/sitekeeper/internal/client/edit"
	"github.com/iudanet/sitekeeper/internal/client/engine"
	"github.com/iudanet/sitekeeper/internal/client/feed"
	"github.com/iudanet/sitekeeper/internal/client/iocli"
	"github.com/iudanet/sitekeeper/internal/client/snapshot"
	"github.com/iudanet/sitekeeper/internal/client/storage"
	"github.com/iudanet/sitekeeper/internal/models"
	"github.com/iudanet/sitekeeper/pkg/api"
)

// SessionService управляет сессией оператора
type SessionService interface {
	Login(ctx context.Context, username, password string) (*storage.AuthData, error)
	Restore(ctx context.Context) (*storage.AuthData, error)
	Logout(ctx context.Context) error
}

// HealthChecker проверяет доступность сервера
type HealthChecker interface {
	Health(ctx context.Context) (*api.HealthResponse, error)
}

// Console is the engine surface the commands drive. *engine.Engine implements it.
type Console interface {
	Watch(ctx context.Context, topic string, layout []string) error
	ConnectionStatus() engine.Status
	OnStatus(ctx context.Context, fn func(engine.Status)) error
	Channels(ctx context.Context) ([]feed.Channel, error)
	Records(ctx context.Context, topicFilter string) ([]*models.ContentRecord, error)
	Sections(ctx context.Context, topic string) ([]snapshot.Section, error)
	Get(ctx context.Context, key string) (*models.ContentRecord, error)
	Session(ctx context.Context, key string) (*edit.Session, error)
	BeginEdit(ctx context.Context, key string) (*models.ContentRecord, error)
	UpdateField(ctx context.Context, key, path string, value any) error
	AppendItem(ctx context.Context, key, list string, item models.Item) (int, error)
	Save(ctx context.Context, key string) (engine.SaveResult, error)
	Cancel(ctx context.Context, key string) error
	Rebase(ctx context.Context, key string) error
	ConfirmResurrect(ctx context.Context, key string) error
	CreateSection(ctx context.Context, topic, key string) (int64, error)
	Delete(ctx context.Context, key string) (int64, error)
}

// EngineFactory запускает движок после восстановления сессии.
// Возвращаемая функция останавливает его.
type EngineFactory func(ctx context.Context) (Console, func(), error)

// Options настройки консоли
type Options struct {
	Layouts     map[string][]string // Layouts известные секции по топикам
	SyncTimeout time.Duration       // SyncTimeout сколько ждать первичной синхронизации топика
}

// Cli выполняет команды консоли оператора
type Cli struct {
	io          iocli.IO
	auth        SessionService
	health      HealthChecker
	cache       storage.SnapshotCache
	newEngine   EngineFactory
	engine      Console
	stopEngine  func()
	layouts     map[string][]string
	watched     map[string]bool
	now         func() time.Time
	syncTimeout time.Duration
}

// New создает консоль
func New(io iocli.IO, auth SessionService, health HealthChecker, cache storage.SnapshotCache, newEngine EngineFactory, opts Options) *Cli {
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = 15 * time.Second
	}
	if opts.Layouts == nil {
		opts.Layouts = make(map[string][]string)
	}
	return &Cli{
		io:          io,
		auth:        auth,
		health:      health,
		cache:       cache,
		newEngine:   newEngine,
		layouts:     opts.Layouts,
		watched:     make(map[string]bool),
		now:         time.Now,
		syncTimeout: opts.SyncTimeout,
	}
}

// Close останавливает движок, если он был запущен
func (c *Cli) Close() {
	if c.stopEngine != nil {
		c.stopEngine()
		c.stopEngine = nil
	}
	c.engine = nil
}

// console lazily restores the session and starts the engine.
func (c *Cli) console(ctx context.Context) (Console, error) {
	if c.engine != nil {
		return c.engine, nil
	}
	if _, err := c.auth.Restore(ctx); err != nil {
		return nil, err
	}

	eng, stop, err := c.newEngine(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	c.engine = eng
	c.stopEngine = stop
	return eng, nil
}

// openTopic watches topic and waits until its first resync has been applied.
func (c *Cli) openTopic(ctx context.Context, topic string) (Console, error) {
	eng, err := c.console(ctx)
	if err != nil {
		return nil, err
	}

	if !c.watched[topic] {
		if err := eng.Watch(ctx, topic, c.layouts[topic]); err != nil {
			return nil, fmt.Errorf("failed to watch %s: %w", topic, err)
		}
		c.watched[topic] = true
	}

	if err := c.waitConnected(ctx, eng, topic); err != nil {
		return nil, fmt.Errorf("topic %s: %w", topic, err)
	}

	if err := c.saveSnapshot(ctx, eng, topic); err != nil {
		return nil, err
	}
	return eng, nil
}

// waitConnected polls the channel of topic until its resync is applied.
func (c *Cli) waitConnected(ctx context.Context, eng Console, topic string) error {
	waitCtx, cancel := context.WithTimeout(ctx, c.syncTimeout)
	defer cancel()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	var last feed.Channel
	for {
		channels, err := eng.Channels(waitCtx)
		if err == nil {
			for _, ch := range channels {
				if ch.Topic != topic {
					continue
				}
				last = ch
				if ch.State == feed.Connected {
					return nil
				}
			}
		}

		select {
		case <-waitCtx.Done():
			if last.Err != nil {
				return fmt.Errorf("not synced within %s (%s, retry %d): %w",
					c.syncTimeout, last.State, last.RetryCount, last.Err)
			}
			return fmt.Errorf("not synced within %s: %w", c.syncTimeout, models.ErrTransport)
		case <-ticker.C:
		}
	}
}

// saveSnapshot кеширует записи топика для офлайн-просмотра
func (c *Cli) saveSnapshot(ctx context.Context, eng Console, topic string) error {
	if c.cache == nil {
		return nil
	}
	records, err := eng.Records(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to read records: %w", err)
	}
	snap := &storage.CachedSnapshot{Topic: topic, Records: records, SyncedAt: c.now()}
	if err := c.cache.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	return nil
}

// ParseLayouts разбирает описание раскладок вида "home=hero,features,cta;blog=intro"
func ParseLayouts(s string) (map[string][]string, error) {
	layouts := make(map[string][]string)
	if strings.TrimSpace(s) == "" {
		return layouts, nil
	}

	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		topic, keys, ok := strings.Cut(part, "=")
		topic = strings.TrimSpace(topic)
		if !ok || topic == "" {
			return nil, fmt.Errorf("invalid layout %q: expected topic=key1,key2", part)
		}
		var list []string
		for _, key := range strings.Split(keys, ",") {
			if key = strings.TrimSpace(key); key != "" {
				list = append(list, key)
			}
		}
		layouts[topic] = list
	}
	return layouts, nil
}

func PrintUsage() {
	fmt.Println("Sitekeeper Admin Console")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sitekeeper-admin [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version                    Show version information")
	fmt.Println("  --server URL                 Server URL (default: http://localhost:8080)")
	fmt.Println("  --db PATH                    Path to local database (default: sitekeeper-admin.db)")
	fmt.Println("  --layout LAYOUT              Known sections, e.g. 'home=hero,features,cta'")
	fmt.Println("  --log-level LEVEL            debug, info, warn, error (default: warn)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  login                        Login to server")
	fmt.Println("  logout [--keep-cache]        Remove local session and cached snapshots")
	fmt.Println("  status                       Show session and server status")
	fmt.Println("  topics                       List topics cached locally")
	fmt.Println("  list <topic> [--offline]     List sections of a topic")
	fmt.Println("  get <topic> <key>            Show a record")
	fmt.Println("  create <topic> <key>         Create a section that does not exist yet")
	fmt.Println("  edit <topic> <key> EDIT...   Edit and save a record")
	fmt.Println("  delete <topic> <key>         Delete a record")
	fmt.Println("  watch <topic>...             Follow connection status until interrupted")
	fmt.Println("  shell                        Interactive console")
	fmt.Println()
	fmt.Println("Edits:")
	fmt.Println("  path=value                   Set a field: title=Hello, features.0.title=Fast")
	fmt.Println("  list[]={json}                Append an item: features[]={\"title\":\"New\"}")
	fmt.Println("  Values: true/false, null, numbers, \"quoted text\" or plain text")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  sitekeeper-admin login")
	fmt.Println("  sitekeeper-admin --layout 'home=hero,features,cta' list home")
	fmt.Println("  sitekeeper-admin edit home hero title='New Title' features.1.title=Simple")
	fmt.Println("  sitekeeper-admin edit --rebase home hero subtitle=Hello")
	fmt.Println("  sitekeeper-admin --server https://cms.example.com shell")
}
