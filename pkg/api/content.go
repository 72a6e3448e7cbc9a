package api

import "time"

// ContentRecord представляет запись контента на проводе
type ContentRecord struct {
	UpdatedAt time.Time                   `json:"updated_at"`
	Fields    map[string]any              `json:"fields"`
	Nested    map[string][]map[string]any `json:"nested,omitempty"`
	Key       string                      `json:"key"`
	Topic     string                      `json:"topic"`
	Version   int64                       `json:"version"`
}

// ListResponse представляет ответ со списком записей топика
type ListResponse struct {
	Records []ContentRecord `json:"records"`
}

// WriteRequest представляет запрос на запись контента.
// ExpectedVersion 0 означает создание новой записи.
type WriteRequest struct {
	Fields          map[string]any              `json:"fields"`
	Nested          map[string][]map[string]any `json:"nested,omitempty"`
	Topic           string                      `json:"topic"`
	ExpectedVersion int64                       `json:"expected_version"`
}

// WriteResponse представляет ответ на запись или удаление
type WriteResponse struct {
	Version int64 `json:"version"` // версия, назначенная сервером
}

// ChangeEvent представляет уведомление из ленты изменений
type ChangeEvent struct {
	Payload *ContentRecord `json:"payload,omitempty"`
	Topic   string         `json:"topic"`
	Op      string         `json:"op"`
	Key     string         `json:"key"`
	Version int64          `json:"version"`
}
