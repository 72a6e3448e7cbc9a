// Package snapshot holds the console's canonical in-memory table of content records.
package snapshot

import (
	"sort"

	"github.com/iudanet/sitekeeper/internal/models"
)

// SectionState describes whether a layout key has a backend row yet.
type SectionState int

const (
	// Present означает, что запись существует на сервере
	Present SectionState = iota
	// NotCreated означает известный ключ раскладки без записи на сервере
	NotCreated
)

func (s SectionState) String() string {
	if s == NotCreated {
		return "not created"
	}
	return "present"
}

// Section is one row of an admin list: a record or a placeholder for a known key.
type Section struct {
	Record *models.ContentRecord
	Key    string
	Topic  string
	State  SectionState
}

// tombstone remembers the version of a deleted record so that late
// updates with lower versions cannot bring it back.
type tombstone struct {
	topic   string
	version int64
}

// Store is a version-monotonic map of content records keyed by record key.
//
// Store is not safe for concurrent use: it is owned by the engine loop,
// which is the single writer. Readers outside the loop get clones.
type Store struct {
	records    map[string]*models.ContentRecord
	tombstones map[string]tombstone
	layouts    map[string][]string
}

// New создает пустое хранилище снимков.
func New() *Store {
	return &Store{
		records:    make(map[string]*models.ContentRecord),
		tombstones: make(map[string]tombstone),
		layouts:    make(map[string][]string),
	}
}

// Apply merges a change event into the store.
// An event whose version is not strictly greater than the highest version
// seen for its key (live or deleted) is ignored. Applying the same event
// twice is a no-op. Returns true if the store changed.
func (s *Store) Apply(ev models.ChangeEvent) bool {
	if ev.Key == "" || ev.Version <= s.Version(ev.Key) {
		return false
	}

	switch ev.Op {
	case models.OpInsert, models.OpUpdate:
		if ev.Payload == nil {
			return false
		}
		rec := ev.Payload.Clone()
		rec.Key = ev.Key
		rec.Version = ev.Version
		if rec.Topic == "" {
			rec.Topic = ev.Topic
		}
		s.records[ev.Key] = rec
		delete(s.tombstones, ev.Key)
		return true

	case models.OpDelete:
		topic := ev.Topic
		if existing, ok := s.records[ev.Key]; ok && topic == "" {
			topic = existing.Topic
		}
		delete(s.records, ev.Key)
		s.tombstones[ev.Key] = tombstone{topic: topic, version: ev.Version}
		return true
	}

	return false
}

// Version returns the highest version seen for key, 0 if none.
func (s *Store) Version(key string) int64 {
	if rec, ok := s.records[key]; ok {
		return rec.Version
	}
	if ts, ok := s.tombstones[key]; ok {
		return ts.version
	}
	return 0
}

// Get returns a copy of the record for key.
func (s *Store) Get(key string) (*models.ContentRecord, bool) {
	rec, ok := s.records[key]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// SetLayout sets the display order of known section keys for topic.
// Layout keys without a record are reported as NotCreated placeholders.
func (s *Store) SetLayout(topic string, keys []string) {
	layout := make([]string, len(keys))
	copy(layout, keys)
	s.layouts[topic] = layout
}

// Layout returns the section keys configured for topic.
func (s *Store) Layout(topic string) []string {
	layout := s.layouts[topic]
	out := make([]string, len(layout))
	copy(out, layout)
	return out
}

// List returns copies of all live records matching topicFilter,
// in layout order first and by key after that.
func (s *Store) List(topicFilter string) []*models.ContentRecord {
	result := make([]*models.ContentRecord, 0, len(s.records))
	for _, rec := range s.records {
		if models.MatchTopic(topicFilter, rec.Topic) {
			result = append(result, rec.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return s.less(result[i].Topic, result[i].Key, result[j].Topic, result[j].Key)
	})

	return result
}

// Keys returns the keys of live records in topic. Used by resync to find
// records the backend no longer returns.
func (s *Store) Keys(topicFilter string) []string {
	keys := make([]string, 0)
	for key, rec := range s.records {
		if models.MatchTopic(topicFilter, rec.Topic) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Sections returns every layout key of topic in order, records or placeholders,
// followed by records that are not part of the layout.
func (s *Store) Sections(topic string) []Section {
	layout := s.layouts[topic]
	seen := make(map[string]bool, len(layout))
	sections := make([]Section, 0, len(layout))

	for _, key := range layout {
		seen[key] = true
		rec, ok := s.records[key]
		if !ok {
			sections = append(sections, Section{Key: key, Topic: topic, State: NotCreated})
			continue
		}
		sections = append(sections, Section{Key: key, Topic: rec.Topic, State: Present, Record: rec.Clone()})
	}

	for _, rec := range s.List(topic) {
		if seen[rec.Key] {
			continue
		}
		sections = append(sections, Section{Key: rec.Key, Topic: rec.Topic, State: Present, Record: rec})
	}

	return sections
}

// Len возвращает количество живых записей.
func (s *Store) Len() int {
	return len(s.records)
}

func (s *Store) less(topicA, keyA, topicB, keyB string) bool {
	if topicA != topicB {
		return topicA < topicB
	}
	ia, oka := s.layoutIndex(topicA, keyA)
	ib, okb := s.layoutIndex(topicB, keyB)
	switch {
	case oka && okb:
		return ia < ib
	case oka:
		return true
	case okb:
		return false
	}
	return keyA < keyB
}

func (s *Store) layoutIndex(topic, key string) (int, bool) {
	for i, k := range s.layouts[topic] {
		if k == key {
			return i, true
		}
	}
	return 0, false
}
