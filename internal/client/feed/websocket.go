package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/sitekeeper/internal/models"
	"github.com/iudanet/sitekeeper/pkg/api"
)

const (
	// время ожидания следующего ping от сервера
	pongWait = 60 * time.Second
	// таймаут записи управляющих фреймов
	writeWait = 10 * time.Second
	// FeedPath путь websocket-ленты на сервере
	FeedPath = "/api/v1/feed"
)

// TokenSource returns the bearer token for a new connection.
type TokenSource func() string

// WebSocketTransport connects to the backend change feed over websocket.
type WebSocketTransport struct {
	dialer  *websocket.Dialer
	token   TokenSource
	logger  *slog.Logger
	baseURL string
}

// NewWebSocketTransport creates a transport for the server at serverURL (http or https).
func NewWebSocketTransport(serverURL string, token TokenSource, logger *slog.Logger) *WebSocketTransport {
	return &WebSocketTransport{
		baseURL: strings.TrimRight(serverURL, "/"),
		token:   token,
		logger:  logger,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// FeedURL builds the websocket URL of topic's feed.
func FeedURL(serverURL, topic string) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/") + FeedPath)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	q := u.Query()
	q.Set("topic", topic)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the feed of topic.
func (t *WebSocketTransport) Connect(ctx context.Context, topic string) (Stream, error) {
	feedURL, err := FeedURL(t.baseURL, topic)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if t.token != nil {
		if token := t.token(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, resp, err := t.dialer.DialContext(ctx, feedURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial %s: %v (status %d)", models.ErrTransport, topic, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: dial %s: %v", models.ErrTransport, topic, err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	t.logger.Debug("Feed websocket connected", "topic", topic, "url", feedURL)

	return newWSStream(conn), nil
}

// wsStream reads api.ChangeEvent frames from one websocket connection.
type wsStream struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func newWSStream(conn *websocket.Conn) *wsStream {
	return &wsStream{conn: conn}
}

// Next reads the next event. Cancelling ctx closes the connection.
func (s *wsStream) Next(ctx context.Context) (models.ChangeEvent, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = s.Close()
	})
	defer stop()

	var msg api.ChangeEvent
	if err := s.conn.ReadJSON(&msg); err != nil {
		if ctx.Err() != nil {
			return models.ChangeEvent{}, ctx.Err()
		}
		return models.ChangeEvent{}, fmt.Errorf("%w: read: %v", models.ErrTransport, err)
	}

	return msg.Model(), nil
}

func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
