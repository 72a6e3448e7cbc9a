package models

import (
	"time"
)

// ContentRecord представляет одну запись контента сайта (секцию страницы, пост блога и т.д.).
// Key уникален и неизменяем, Version назначается сервером и растет при каждой записи.
type ContentRecord struct {
	UpdatedAt time.Time         `json:"updated_at"` // UpdatedAt время последней записи на сервере (для информации)
	Fields    map[string]any    `json:"fields"`     // Fields скалярные редактируемые атрибуты (title, subtitle, флаги)
	Nested    map[string][]Item `json:"nested"`     // Nested упорядоченные списки структурированных элементов (карточки)
	Key       string            `json:"key"`        // Key стабильный идентификатор секции/сущности
	Topic     string            `json:"topic"`      // Topic таблица или подмножество, к которому относится запись
	Version   int64             `json:"version"`    // Version монотонно растущая версия, единственный арбитр "новее"
}

// Item is one structured sub-item of a nested list, e.g. a feature card.
type Item map[string]any

// IsNewerThan reports whether e carries a strictly higher version than other.
// A nil other is always older.
func (e *ContentRecord) IsNewerThan(other *ContentRecord) bool {
	if other == nil {
		return true
	}
	return e.Version > other.Version
}

// Clone создает глубокую копию записи
func (e *ContentRecord) Clone() *ContentRecord {
	if e == nil {
		return nil
	}

	fields := make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		fields[k] = v
	}

	nested := make(map[string][]Item, len(e.Nested))
	for name, items := range e.Nested {
		copied := make([]Item, len(items))
		for i, item := range items {
			copied[i] = item.Clone()
		}
		nested[name] = copied
	}

	return &ContentRecord{
		Key:       e.Key,
		Topic:     e.Topic,
		Version:   e.Version,
		Fields:    fields,
		Nested:    nested,
		UpdatedAt: e.UpdatedAt,
	}
}

// Clone copies the item. Values are scalars, so a shallow map copy is deep enough.
func (i Item) Clone() Item {
	out := make(Item, len(i))
	for k, v := range i {
		out[k] = v
	}
	return out
}

// IsScalar reports whether v is an accepted field value.
// JSON decoding yields float64 for numbers, so both float and integer kinds are allowed.
func IsScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, float64, float32, int, int32, int64:
		return true
	default:
		return false
	}
}

// NewRecord returns an empty record with initialized maps.
func NewRecord(topic, key string) *ContentRecord {
	return &ContentRecord{
		Key:    key,
		Topic:  topic,
		Fields: make(map[string]any),
		Nested: make(map[string][]Item),
	}
}
