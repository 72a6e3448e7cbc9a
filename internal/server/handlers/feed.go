package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/sitekeeper/internal/server/feed"
	"github.com/iudanet/sitekeeper/pkg/api"
)

const (
	// DefaultPingInterval период ping фреймов, меньше таймаута чтения клиента
	DefaultPingInterval = 54 * time.Second
	// время ожидания pong от клиента
	feedPongWait = 60 * time.Second
	// таймаут записи одного фрейма
	feedWriteWait = 10 * time.Second
	// клиент ленты ничего не шлет, кроме управляющих фреймов
	feedReadLimit = 512
)

// Subscriptions регистрирует подписчиков ленты изменений
type Subscriptions interface {
	Subscribe(topic string) *feed.Subscriber
	Unsubscribe(sub *feed.Subscriber)
}

// FeedHandler отдает ленту изменений по websocket
type FeedHandler struct {
	logger       *slog.Logger
	hub          Subscriptions
	upgrader     websocket.Upgrader
	pingInterval time.Duration
}

// NewFeedHandler создает handler ленты изменений
func NewFeedHandler(logger *slog.Logger, hub Subscriptions, pingInterval time.Duration) *FeedHandler {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	return &FeedHandler{
		logger:       logger,
		hub:          hub,
		pingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// Feed обрабатывает GET /api/v1/feed?topic=
// Сервер только пишет события; клиент после подключения сам делает полную ресинхронизацию.
func (h *FeedHandler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	topic := r.URL.Query().Get("topic")
	if err := validateTopicFilter(topic); err != nil {
		sendError(w, h.logger, api.ErrCodeBadRequest, err.Error(), http.StatusBadRequest)
		return
	}

	// Подписываемся до upgrade, чтобы не потерять события после рукопожатия
	sub := h.hub.Subscribe(topic)
	if sub == nil {
		sendError(w, h.logger, api.ErrCodeUnavailable, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.hub.Unsubscribe(sub)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.WarnContext(ctx, "websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	h.logger.InfoContext(ctx, "feed subscriber connected",
		slog.String("id", sub.ID),
		slog.String("topic", topic),
		slog.String("operator", operatorName(ctx)))

	done := make(chan struct{})
	go h.readPump(conn, done)

	reason := h.writePump(conn, sub, done)

	h.logger.InfoContext(ctx, "feed subscriber disconnected",
		slog.String("id", sub.ID),
		slog.String("topic", topic),
		slog.String("reason", reason))
}

// readPump читает управляющие фреймы до закрытия соединения
func (h *FeedHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(feedReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// writePump пишет события и ping до отключения; возвращает причину
func (h *FeedHandler) writePump(conn *websocket.Conn, sub *feed.Subscriber, done <-chan struct{}) string {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				code, reason := websocket.CloseGoingAway, "server shutdown"
				if sub.Dropped() {
					code, reason = websocket.CloseTryAgainLater, "slow consumer"
				}
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(code, reason),
					time.Now().Add(feedWriteWait))
				return reason
			}

			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteJSON(api.FromEvent(ev)); err != nil {
				return "write failed: " + err.Error()
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait)); err != nil {
				return "ping failed: " + err.Error()
			}

		case <-done:
			return "client closed"
		}
	}
}
