package models

// Op is the kind of change carried by a ChangeEvent.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Valid reports whether op is one of the known operations.
func (o Op) Valid() bool {
	switch o {
	case OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

// ChangeEvent is one notification from the change feed.
// Delivery is at-least-once; events for one topic+key pair arrive in emission order.
// Payload is nil for deletes.
type ChangeEvent struct {
	Payload *ContentRecord `json:"payload,omitempty"`
	Topic   string         `json:"topic"`
	Op      Op             `json:"op"`
	Key     string         `json:"key"`
	Version int64          `json:"version"`
}

// Clone returns a copy of the event with its own payload.
func (e ChangeEvent) Clone() ChangeEvent {
	e.Payload = e.Payload.Clone()
	return e
}

// RecordEvent builds an event that carries rec as payload.
func RecordEvent(op Op, rec *ContentRecord) ChangeEvent {
	return ChangeEvent{
		Topic:   rec.Topic,
		Op:      op,
		Key:     rec.Key,
		Version: rec.Version,
		Payload: rec.Clone(),
	}
}

// AllTopics is the topic filter that matches every topic.
const AllTopics = "*"

// MatchTopic reports whether topic passes filter. An empty filter matches everything.
func MatchTopic(filter, topic string) bool {
	return filter == "" || filter == AllTopics || filter == topic
}
