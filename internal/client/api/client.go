package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/iudanet/sitekeeper/internal/models"
	"github.com/iudanet/sitekeeper/pkg/api"
)

// ErrUnauthorized возвращается, если сервер отклонил токен доступа
var ErrUnauthorized = errors.New("unauthorized")

// Client представляет HTTP клиент для взаимодействия с сервером контента.
// Реализует порт хранения движка консоли.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	mu         sync.RWMutex
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// BaseURL возвращает адрес сервера
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken устанавливает access token для последующих запросов
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token возвращает текущий access token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login выполняет аутентификацию оператора
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", req, &resp)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

// Read получает запись по ключу
func (c *Client) Read(ctx context.Context, key string) (*models.ContentRecord, error) {
	var resp api.ContentRecord
	err := c.doRequest(ctx, http.MethodGet, "/api/v1/content/"+url.PathEscape(key), nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return resp.Model(), nil
}

// ReadAll получает все записи топика
func (c *Client) ReadAll(ctx context.Context, topicFilter string) ([]*models.ContentRecord, error) {
	path := "/api/v1/content"
	if topicFilter != "" {
		path += "?topic=" + url.QueryEscape(topicFilter)
	}

	var resp api.ListResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("read topic %s: %w", topicFilter, err)
	}

	records := make([]*models.ContentRecord, 0, len(resp.Records))
	for _, rec := range resp.Records {
		records = append(records, rec.Model())
	}
	return records, nil
}

// Write сохраняет запись с проверкой версии
func (c *Client) Write(ctx context.Context, rec *models.ContentRecord, expectedVersion int64) (int64, error) {
	wire := api.FromRecord(rec)
	req := api.WriteRequest{
		Topic:           wire.Topic,
		Fields:          wire.Fields,
		Nested:          wire.Nested,
		ExpectedVersion: expectedVersion,
	}

	var resp api.WriteResponse
	err := c.doRequest(ctx, http.MethodPut, "/api/v1/content/"+url.PathEscape(rec.Key), req, &resp)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", rec.Key, err)
	}
	return resp.Version, nil
}

// Delete удаляет запись с проверкой версии
func (c *Client) Delete(ctx context.Context, key string, expectedVersion int64) (int64, error) {
	path := "/api/v1/content/" + url.PathEscape(key) + "?expected_version=" + strconv.FormatInt(expectedVersion, 10)

	var resp api.WriteResponse
	if err := c.doRequest(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return 0, fmt.Errorf("delete %s: %w", key, err)
	}
	return resp.Version, nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %w", models.ErrPersistence, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %w", models.ErrPersistence, err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, respBody)
	}

	// Декодируем успешный ответ
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %w", models.ErrPersistence, err)
		}
	}

	return nil
}

// statusError переводит ответ с ошибкой в доменные ошибки
func statusError(status int, body []byte) error {
	message := string(body)
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && (errResp.Message != "" || errResp.Error != "") {
		message = errResp.Message
		if message == "" {
			message = errResp.Error
		}
	}

	switch status {
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", models.ErrVersionConflict, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", models.ErrNotFound, message)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, message)
	default:
		return fmt.Errorf("%w: server error (%d): %s", models.ErrPersistence, status, message)
	}
}
