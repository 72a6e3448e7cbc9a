// Package edit owns the operator's drafts: at most one copy-on-edit buffer per record key.
package edit

import (
	"fmt"

	"github.com/iudanet/sitekeeper/internal/models"
)

// State is the lifecycle state of an edit session.
type State int

const (
	Idle State = iota
	Editing
	Saving
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case Saving:
		return "saving"
	default:
		return "idle"
	}
}

// Source provides the current snapshot value a draft is forked from.
type Source interface {
	Get(key string) (*models.ContentRecord, bool)
}

// Session is an operator's in-progress edit of one record.
type Session struct {
	Draft         *models.ContentRecord // Draft копия записи, которую меняет оператор
	Staged        *models.ChangeEvent   // Staged удаленное изменение, пришедшее во время редактирования
	Key           string
	edits         []edit
	BaseVersion   int64 // BaseVersion версия снимка, от которой создан черновик
	State         State
	Dirty         bool
	RemoteDeleted bool // RemoteDeleted запись удалена на сервере во время редактирования
	resurrect     bool
}

// edit is one recorded draft mutation, replayed by Rebase.
type edit struct {
	value      any
	item       models.Item
	path       Path
	appendTo   string
	appendedAt int
}

// Clone returns an independent copy of the session.
func (s *Session) Clone() *Session {
	out := *s
	out.Draft = s.Draft.Clone()
	if s.Staged != nil {
		staged := s.Staged.Clone()
		out.Staged = &staged
	}
	out.edits = make([]edit, len(s.edits))
	copy(out.edits, s.edits)
	return &out
}

// SaveRequest is what a save sends to the backend.
type SaveRequest struct {
	Draft           *models.ContentRecord
	Key             string
	ExpectedVersion int64
}

// Manager keeps zero or one session per record key.
//
// Manager is not safe for concurrent use; the engine loop owns it.
type Manager struct {
	source   Source
	sessions map[string]*Session
	// pending keeps staged values of cancelled sessions until the next BeginEdit
	pending map[string]models.ChangeEvent
}

// NewManager creates a session manager that forks drafts from source.
func NewManager(source Source) *Manager {
	return &Manager{
		source:   source,
		sessions: make(map[string]*Session),
		pending:  make(map[string]models.ChangeEvent),
	}
}

// IsEditing reports whether a session (editing or saving) exists for key.
func (m *Manager) IsEditing(key string) bool {
	_, ok := m.sessions[key]
	return ok
}

// Session returns a copy of the session for key.
func (m *Manager) Session(key string) (*Session, bool) {
	s, ok := m.sessions[key]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Keys returns the keys of all open sessions.
func (m *Manager) Keys() []string {
	keys := make([]string, 0, len(m.sessions))
	for key := range m.sessions {
		keys = append(keys, key)
	}
	return keys
}

// BeginEdit forks a draft for key from the newest known value: a staged value
// left by a cancelled session or the current snapshot.
func (m *Manager) BeginEdit(key string) (*models.ContentRecord, error) {
	if _, ok := m.sessions[key]; ok {
		return nil, fmt.Errorf("%w: %s", models.ErrAlreadyEditing, key)
	}

	base, ok := m.source.Get(key)

	if pending, has := m.pending[key]; has {
		delete(m.pending, key)
		if pending.Version > versionOf(base) {
			if pending.Op == models.OpDelete || pending.Payload == nil {
				return nil, fmt.Errorf("%w: %s", models.ErrNotFound, key)
			}
			base, ok = pending.Payload.Clone(), true
			base.Version = pending.Version
		}
	}

	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, key)
	}

	s := &Session{
		Key:         key,
		BaseVersion: base.Version,
		Draft:       base.Clone(),
		State:       Editing,
		Dirty:       false,
	}
	if s.Draft.Fields == nil {
		s.Draft.Fields = make(map[string]any)
	}
	if s.Draft.Nested == nil {
		s.Draft.Nested = make(map[string][]models.Item)
	}
	m.sessions[key] = s

	return s.Draft.Clone(), nil
}

// UpdateField sets the value at path in the draft of key.
func (m *Manager) UpdateField(key, path string, value any) error {
	s, err := m.editable(key)
	if err != nil {
		return err
	}

	if !models.IsScalar(value) {
		return fmt.Errorf("%w: %T at %s", models.ErrInvalidValue, value, path)
	}

	p, err := ParsePath(path)
	if err != nil {
		return err
	}

	if err := p.set(s.Draft, value); err != nil {
		return err
	}

	s.edits = append(s.edits, edit{path: p, value: value})
	s.Dirty = true
	return nil
}

// AppendItem appends item to the nested list of the draft and returns its index.
// Items are never removed inside a session, so returned indices stay valid.
func (m *Manager) AppendItem(key, list string, item models.Item) (int, error) {
	s, err := m.editable(key)
	if err != nil {
		return 0, err
	}

	if list == "" {
		return 0, fmt.Errorf("%w: empty list name", models.ErrInvalidPath)
	}
	for field, v := range item {
		if !models.IsScalar(v) {
			return 0, fmt.Errorf("%w: %T at %s.%s", models.ErrInvalidValue, v, list, field)
		}
	}

	index := len(s.Draft.Nested[list])
	s.Draft.Nested[list] = append(s.Draft.Nested[list], item.Clone())
	s.edits = append(s.edits, edit{appendTo: list, item: item.Clone(), appendedAt: index})
	s.Dirty = true

	return index, nil
}

// PrepareSave moves the session to Saving and returns the write to issue.
// A second save while one is in flight is rejected with ErrSaveInProgress.
func (m *Manager) PrepareSave(key string) (SaveRequest, error) {
	s, err := m.editable(key)
	if err != nil {
		return SaveRequest{}, err
	}
	if !s.Dirty {
		return SaveRequest{}, fmt.Errorf("%w: %s", models.ErrNothingToSave, key)
	}
	if s.RemoteDeleted && !s.resurrect {
		return SaveRequest{}, fmt.Errorf("%w: %s", models.ErrRemoteDeleted, key)
	}

	expected := s.BaseVersion
	if s.resurrect {
		// запись удалена на сервере - сохраняем как новую
		expected = 0
	}

	s.State = Saving

	return SaveRequest{
		Key:             key,
		Draft:           s.Draft.Clone(),
		ExpectedVersion: expected,
	}, nil
}

// CompleteSave finishes a save started by PrepareSave.
// On success the session is destroyed and returned so its staged value can be released.
// On failure the session returns to Editing with draft and dirty flag intact.
func (m *Manager) CompleteSave(key string, saveErr error) (*Session, error) {
	s, ok := m.sessions[key]
	if !ok || s.State != Saving {
		return nil, fmt.Errorf("%w: %s", models.ErrNotEditing, key)
	}

	if saveErr != nil {
		s.State = Editing
		return nil, nil
	}

	delete(m.sessions, key)
	s.State = Idle
	return s, nil
}

// Cancel discards the session for key and returns it. A staged remote value is
// kept so the next BeginEdit starts from it.
func (m *Manager) Cancel(key string) (*Session, error) {
	s, err := m.editable(key)
	if err != nil {
		return nil, err
	}

	delete(m.sessions, key)
	if s.Staged != nil {
		m.pending[key] = s.Staged.Clone()
	}
	s.State = Idle
	return s, nil
}

// Stage records a remote change for a key under edit without touching the draft.
// Returns false if no session exists for the key or the event is not newer than
// what the session already knows.
func (m *Manager) Stage(ev models.ChangeEvent) bool {
	s, ok := m.sessions[ev.Key]
	if !ok {
		return false
	}

	known := s.BaseVersion
	if s.Staged != nil && s.Staged.Version > known {
		known = s.Staged.Version
	}
	if ev.Version <= known {
		return false
	}
	if ev.Op == models.OpDelete && s.RemoteDeleted {
		return false
	}

	staged := ev.Clone()
	s.Staged = &staged
	s.RemoteDeleted = ev.Op == models.OpDelete
	if !s.RemoteDeleted {
		s.resurrect = false
	}
	return true
}

// KnownVersion returns the highest version the session for key has seen
// (its base or its staged value), 0 if there is no session.
func (m *Manager) KnownVersion(key string) int64 {
	s, ok := m.sessions[key]
	if !ok {
		return 0
	}
	if s.Staged != nil && s.Staged.Version > s.BaseVersion {
		return s.Staged.Version
	}
	return s.BaseVersion
}

// Rebase re-forks the draft from latest (or the newest staged/snapshot value when
// latest is nil) and replays the operator's edits on top of it. Used to recover
// from a version conflict.
func (m *Manager) Rebase(key string, latest *models.ContentRecord) error {
	s, err := m.editable(key)
	if err != nil {
		return err
	}

	base := latest
	if snap, ok := m.source.Get(key); ok && snap.IsNewerThan(base) {
		base = snap
	}
	if s.Staged != nil && s.Staged.Version > versionOf(base) {
		if s.Staged.Op == models.OpDelete || s.Staged.Payload == nil {
			return fmt.Errorf("%w: %s", models.ErrRemoteDeleted, key)
		}
		base = s.Staged.Payload.Clone()
		base.Version = s.Staged.Version
	}
	if base == nil {
		return fmt.Errorf("%w: %s", models.ErrNotFound, key)
	}

	draft := base.Clone()
	if draft.Fields == nil {
		draft.Fields = make(map[string]any)
	}
	if draft.Nested == nil {
		draft.Nested = make(map[string][]models.Item)
	}

	// индексы добавленных элементов в новой базе могут сдвинуться
	remap := make(map[string]map[int]int)
	for _, e := range s.edits {
		if e.appendTo != "" {
			if remap[e.appendTo] == nil {
				remap[e.appendTo] = make(map[int]int)
			}
			remap[e.appendTo][e.appendedAt] = len(draft.Nested[e.appendTo])
			draft.Nested[e.appendTo] = append(draft.Nested[e.appendTo], e.item.Clone())
			continue
		}

		p := e.path
		if idx, ok := remap[p.List][p.Index]; ok {
			p.Index = idx
		}
		if err := p.set(draft, e.value); err != nil {
			return fmt.Errorf("rebase %s: %w", key, err)
		}
	}

	s.Draft = draft
	s.BaseVersion = base.Version
	if s.Staged != nil && s.Staged.Version <= base.Version {
		s.Staged = nil
	}
	s.RemoteDeleted = false
	s.resurrect = false
	return nil
}

// ConfirmResurrect acknowledges that the record was deleted remotely; the next
// save recreates it instead of failing.
func (m *Manager) ConfirmResurrect(key string) error {
	s, err := m.editable(key)
	if err != nil {
		return err
	}
	if !s.RemoteDeleted {
		return fmt.Errorf("%w: %s", models.ErrNotRemoteDeleted, key)
	}
	s.resurrect = true
	return nil
}

// editable returns the session for key if it is in Editing state.
func (m *Manager) editable(key string) (*Session, error) {
	s, ok := m.sessions[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNotEditing, key)
	}
	if s.State == Saving {
		return nil, fmt.Errorf("%w: %s", models.ErrSaveInProgress, key)
	}
	return s, nil
}

func versionOf(rec *models.ContentRecord) int64 {
	if rec == nil {
		return 0
	}
	return rec.Version
}
