package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iudanet/sitekeeper/internal/models"
	"github.com/iudanet/sitekeeper/internal/server/storage"
	"github.com/iudanet/sitekeeper/internal/validation"
	"github.com/iudanet/sitekeeper/pkg/api"
)

// maxBodySize ограничение размера тела запроса
const maxBodySize = 1 << 20

// Publisher получает события о закоммиченных изменениях
type Publisher interface {
	Publish(ev models.ChangeEvent)
}

// ContentHandler обрабатывает чтение и запись записей контента
type ContentHandler struct {
	logger    *slog.Logger
	storage   storage.ContentStorage
	publisher Publisher
}

// NewContentHandler создает новый handler контента
func NewContentHandler(logger *slog.Logger, contentStorage storage.ContentStorage, publisher Publisher) *ContentHandler {
	return &ContentHandler{
		logger:    logger,
		storage:   contentStorage,
		publisher: publisher,
	}
}

// List обрабатывает GET /api/v1/content?topic=
func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	topic := r.URL.Query().Get("topic")
	if err := validateTopicFilter(topic); err != nil {
		sendError(w, h.logger, api.ErrCodeBadRequest, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.storage.ListRecords(ctx, topic)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list records", slog.String("topic", topic), slog.Any("error", err))
		sendError(w, h.logger, api.ErrCodeInternal, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.ListResponse{Records: make([]api.ContentRecord, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, api.FromRecord(rec))
	}

	sendJSON(w, h.logger, resp, http.StatusOK)
}

// Get обрабатывает GET /api/v1/content/{key}
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key := r.PathValue("key")
	if err := validation.ValidateKey(key); err != nil {
		sendError(w, h.logger, api.ErrCodeBadRequest, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := h.storage.GetRecord(ctx, key)
	if err != nil {
		h.storageError(w, r, key, err)
		return
	}

	sendJSON(w, h.logger, api.FromRecord(rec), http.StatusOK)
}

// Put обрабатывает PUT /api/v1/content/{key}
// Запись с проверкой ожидаемой версии
func (h *ContentHandler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key := r.PathValue("key")
	if err := validation.ValidateKey(key); err != nil {
		sendError(w, h.logger, api.ErrCodeBadRequest, err.Error(), http.StatusBadRequest)
		return
	}

	var req api.WriteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode write request", slog.Any("error", err))
		sendError(w, h.logger, api.ErrCodeBadRequest, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateTopic(req.Topic); err != nil {
		sendError(w, h.logger, api.ErrCodeBadRequest, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ExpectedVersion < 0 {
		sendError(w, h.logger, api.ErrCodeBadRequest, "expected_version must not be negative", http.StatusBadRequest)
		return
	}

	rec := models.NewRecord(req.Topic, key)
	for name, value := range req.Fields {
		rec.Fields[name] = value
	}
	rec.Nested = api.NestedModel(req.Nested)
	if err := validateContent(rec); err != nil {
		sendError(w, h.logger, api.ErrCodeBadRequest, err.Error(), http.StatusBadRequest)
		return
	}

	ev, err := h.storage.WriteRecord(ctx, rec, req.ExpectedVersion)
	if err != nil {
		h.storageError(w, r, key, err)
		return
	}
	h.publisher.Publish(ev)

	h.logger.InfoContext(ctx, "record written",
		slog.String("key", key),
		slog.String("topic", ev.Topic),
		slog.String("op", string(ev.Op)),
		slog.Int64("version", ev.Version),
		slog.String("operator", operatorName(ctx)))

	sendJSON(w, h.logger, api.WriteResponse{Version: ev.Version}, http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/content/{key}?expected_version=N
func (h *ContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key := r.PathValue("key")
	if err := validation.ValidateKey(key); err != nil {
		sendError(w, h.logger, api.ErrCodeBadRequest, err.Error(), http.StatusBadRequest)
		return
	}

	expected, err := strconv.ParseInt(r.URL.Query().Get("expected_version"), 10, 64)
	if err != nil || expected < 1 {
		sendError(w, h.logger, api.ErrCodeBadRequest, "expected_version must be a positive integer", http.StatusBadRequest)
		return
	}

	ev, err := h.storage.DeleteRecord(ctx, key, expected)
	if err != nil {
		h.storageError(w, r, key, err)
		return
	}
	h.publisher.Publish(ev)

	h.logger.InfoContext(ctx, "record deleted",
		slog.String("key", key),
		slog.String("topic", ev.Topic),
		slog.Int64("version", ev.Version),
		slog.String("operator", operatorName(ctx)))

	sendJSON(w, h.logger, api.WriteResponse{Version: ev.Version}, http.StatusOK)
}

// storageError переводит ошибки хранилища в HTTP ответы
func (h *ContentHandler) storageError(w http.ResponseWriter, r *http.Request, key string, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, storage.ErrVersionConflict):
		h.logger.InfoContext(ctx, "version conflict", slog.String("key", key), slog.Any("error", err))
		sendError(w, h.logger, api.ErrCodeVersionConflict, err.Error(), http.StatusConflict)
	case errors.Is(err, storage.ErrRecordNotFound):
		sendError(w, h.logger, api.ErrCodeNotFound, "record not found", http.StatusNotFound)
	default:
		h.logger.ErrorContext(ctx, "storage failure", slog.String("key", key), slog.Any("error", err))
		sendError(w, h.logger, api.ErrCodeInternal, "internal server error", http.StatusInternalServerError)
	}
}

// validateTopicFilter допускает пустой фильтр, "*" или имя топика
func validateTopicFilter(topic string) error {
	if topic == "" || topic == models.AllTopics {
		return nil
	}
	return validation.ValidateTopic(topic)
}

// validateContent проверяет, что поля и элементы списков содержат только скаляры
func validateContent(rec *models.ContentRecord) error {
	for name, value := range rec.Fields {
		if name == "" {
			return errors.New("field name cannot be empty")
		}
		if !models.IsScalar(value) {
			return fmt.Errorf("field %q: value must be a scalar", name)
		}
	}

	for list, items := range rec.Nested {
		if list == "" {
			return errors.New("list name cannot be empty")
		}
		for i, item := range items {
			for name, value := range item {
				if !models.IsScalar(value) {
					return fmt.Errorf("%s.%d.%s: value must be a scalar", list, i, name)
				}
			}
		}
	}

	return nil
}
