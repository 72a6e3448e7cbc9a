package api

import "github.com/iudanet/sitekeeper/internal/models"

// FromRecord конвертирует модель записи в формат API
func FromRecord(rec *models.ContentRecord) ContentRecord {
	out := ContentRecord{
		Key:       rec.Key,
		Topic:     rec.Topic,
		Version:   rec.Version,
		Fields:    rec.Fields,
		UpdatedAt: rec.UpdatedAt,
	}
	if len(rec.Nested) > 0 {
		out.Nested = make(map[string][]map[string]any, len(rec.Nested))
		for list, items := range rec.Nested {
			converted := make([]map[string]any, len(items))
			for i, item := range items {
				converted[i] = item
			}
			out.Nested[list] = converted
		}
	}
	if out.Fields == nil {
		out.Fields = map[string]any{}
	}
	return out
}

// Model конвертирует запись API в модель
func (r ContentRecord) Model() *models.ContentRecord {
	rec := &models.ContentRecord{
		Key:       r.Key,
		Topic:     r.Topic,
		Version:   r.Version,
		Fields:    make(map[string]any, len(r.Fields)),
		Nested:    NestedModel(r.Nested),
		UpdatedAt: r.UpdatedAt,
	}
	for k, v := range r.Fields {
		rec.Fields[k] = v
	}
	return rec
}

// NestedModel конвертирует вложенные списки API в модель
func NestedModel(nested map[string][]map[string]any) map[string][]models.Item {
	out := make(map[string][]models.Item, len(nested))
	for list, items := range nested {
		converted := make([]models.Item, len(items))
		for i, item := range items {
			converted[i] = models.Item(item)
		}
		out[list] = converted
	}
	return out
}

// FromEvent конвертирует событие модели в формат API
func FromEvent(ev models.ChangeEvent) ChangeEvent {
	out := ChangeEvent{
		Topic:   ev.Topic,
		Op:      string(ev.Op),
		Key:     ev.Key,
		Version: ev.Version,
	}
	if ev.Payload != nil {
		payload := FromRecord(ev.Payload)
		out.Payload = &payload
	}
	return out
}

// Model конвертирует событие API в модель
func (e ChangeEvent) Model() models.ChangeEvent {
	ev := models.ChangeEvent{
		Topic:   e.Topic,
		Op:      models.Op(e.Op),
		Key:     e.Key,
		Version: e.Version,
	}
	if e.Payload != nil {
		ev.Payload = e.Payload.Model()
	}
	return ev
}
