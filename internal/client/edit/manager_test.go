package edit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/sitekeeper/internal/client/snapshot"
	"github.com/iudanet/sitekeeper/internal/models"
)

// heroRecord создает запись hero заданной версии
func heroRecord(version int64, title string) *models.ContentRecord {
	rec := models.NewRecord("home", "hero")
	rec.Version = version
	rec.Fields["title"] = title
	rec.Nested["features"] = []models.Item{
		{"title": "Fast"},
		{"title": "Simple"},
	}
	return rec
}

func newTestManager(t *testing.T, records ...*models.ContentRecord) (*Manager, *snapshot.Store) {
	t.Helper()
	store := snapshot.New()
	for _, rec := range records {
		require.True(t, store.Apply(models.RecordEvent(models.OpInsert, rec)))
	}
	return NewManager(store), store
}

func TestManager_BeginEdit(t *testing.T) {
	m, _ := newTestManager(t, heroRecord(3, "Old"))

	draft, err := m.BeginEdit("hero")
	require.NoError(t, err)
	assert.Equal(t, "Old", draft.Fields["title"])
	assert.Equal(t, int64(3), draft.Version)
	assert.True(t, m.IsEditing("hero"))

	s, ok := m.Session("hero")
	require.True(t, ok)
	assert.Equal(t, Editing, s.State)
	assert.Equal(t, int64(3), s.BaseVersion)
	assert.False(t, s.Dirty)

	_, err = m.BeginEdit("hero")
	assert.ErrorIs(t, err, models.ErrAlreadyEditing)

	_, err = m.BeginEdit("missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.False(t, m.IsEditing("missing"))
	assert.Equal(t, []string{"hero"}, m.Keys())
}

func TestManager_UpdateField(t *testing.T) {
	tests := []struct {
		value   any
		wantErr error
		name    string
		path    string
	}{
		{name: "scalar field", path: "title", value: "New"},
		{name: "new scalar field", path: "subtitle", value: "Sub"},
		{name: "flag", path: "visible", value: false},
		{name: "nested field", path: "features.1.title", value: "Easy"},
		{name: "index out of range", path: "features.2.title", value: "x", wantErr: models.ErrInvalidPath},
		{name: "unknown list", path: "cards.0.title", value: "x", wantErr: models.ErrInvalidPath},
		{name: "malformed path", path: "features.title", value: "x", wantErr: models.ErrInvalidPath},
		{name: "non scalar value", path: "title", value: []string{"x"}, wantErr: models.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store := newTestManager(t, heroRecord(3, "Old"))
			_, err := m.BeginEdit("hero")
			require.NoError(t, err)

			err = m.UpdateField("hero", tt.path, tt.value)
			s, _ := m.Session("hero")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, s.Dirty)
				return
			}

			require.NoError(t, err)
			assert.True(t, s.Dirty)

			p, _ := ParsePath(tt.path)
			got, ok := p.get(s.Draft)
			assert.True(t, ok)
			assert.Equal(t, tt.value, got)

			// снимок не меняется при редактировании черновика
			snap, _ := store.Get("hero")
			assert.Equal(t, "Old", snap.Fields["title"])
			assert.Equal(t, "Simple", snap.Nested["features"][1]["title"])
		})
	}
}

func TestManager_UpdateFieldWithoutSession(t *testing.T) {
	m, _ := newTestManager(t)
	err := m.UpdateField("hero", "title", "x")
	assert.ErrorIs(t, err, models.ErrNotEditing)
}

func TestManager_AppendItem(t *testing.T) {
	m, _ := newTestManager(t, heroRecord(1, "Old"))
	_, err := m.BeginEdit("hero")
	require.NoError(t, err)

	idx, err := m.AppendItem("hero", "features", models.Item{"title": "Secure"})
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	require.NoError(t, m.UpdateField("hero", "features.2.title", "Very secure"))

	idx, err = m.AppendItem("hero", "testimonials", models.Item{"quote": "Great"})
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	_, err = m.AppendItem("hero", "", models.Item{})
	assert.ErrorIs(t, err, models.ErrInvalidPath)

	_, err = m.AppendItem("hero", "features", models.Item{"tags": []string{"a"}})
	assert.ErrorIs(t, err, models.ErrInvalidValue)

	s, _ := m.Session("hero")
	assert.True(t, s.Dirty)
	assert.Equal(t, "Very secure", s.Draft.Nested["features"][2]["title"])
	assert.Equal(t, "Great", s.Draft.Nested["testimonials"][0]["quote"])
}

func TestManager_SaveLifecycle(t *testing.T) {
	m, _ := newTestManager(t, heroRecord(3, "Old"))
	_, err := m.BeginEdit("hero")
	require.NoError(t, err)

	_, err = m.PrepareSave("hero")
	assert.ErrorIs(t, err, models.ErrNothingToSave)

	require.NoError(t, m.UpdateField("hero", "title", "New"))

	req, err := m.PrepareSave("hero")
	require.NoError(t, err)
	assert.Equal(t, "hero", req.Key)
	assert.Equal(t, int64(3), req.ExpectedVersion)
	assert.Equal(t, "New", req.Draft.Fields["title"])

	s, _ := m.Session("hero")
	assert.Equal(t, Saving, s.State)

	// повторное сохранение во время Saving отклоняется
	_, err = m.PrepareSave("hero")
	assert.ErrorIs(t, err, models.ErrSaveInProgress)
	assert.ErrorIs(t, m.UpdateField("hero", "title", "Other"), models.ErrSaveInProgress)
	_, err = m.Cancel("hero")
	assert.ErrorIs(t, err, models.ErrSaveInProgress)

	// неудачная запись возвращает сессию в Editing
	ended, err := m.CompleteSave("hero", errors.New("boom"))
	require.NoError(t, err)
	assert.Nil(t, ended)

	s, _ = m.Session("hero")
	assert.Equal(t, Editing, s.State)
	assert.True(t, s.Dirty)
	assert.Equal(t, "New", s.Draft.Fields["title"])

	// успешная запись удаляет сессию
	_, err = m.PrepareSave("hero")
	require.NoError(t, err)
	ended, err = m.CompleteSave("hero", nil)
	require.NoError(t, err)
	require.NotNil(t, ended)
	assert.Equal(t, Idle, ended.State)
	assert.False(t, m.IsEditing("hero"))

	_, err = m.CompleteSave("hero", nil)
	assert.ErrorIs(t, err, models.ErrNotEditing)
}

func TestManager_StageDoesNotTouchDraft(t *testing.T) {
	m, store := newTestManager(t, heroRecord(3, "Old"))
	_, err := m.BeginEdit("hero")
	require.NoError(t, err)
	require.NoError(t, m.UpdateField("hero", "title", "New"))

	assert.True(t, m.Stage(models.RecordEvent(models.OpUpdate, heroRecord(4, "External Edit"))))

	// более старое или равное событие не заменяет staged
	assert.False(t, m.Stage(models.RecordEvent(models.OpUpdate, heroRecord(4, "Duplicate"))))
	assert.False(t, m.Stage(models.RecordEvent(models.OpUpdate, heroRecord(2, "Ancient"))))
	assert.False(t, m.Stage(models.RecordEvent(models.OpUpdate, &models.ContentRecord{Key: "other", Version: 9})))

	s, _ := m.Session("hero")
	assert.Equal(t, "New", s.Draft.Fields["title"])
	require.NotNil(t, s.Staged)
	assert.Equal(t, int64(4), s.Staged.Version)
	assert.Equal(t, "External Edit", s.Staged.Payload.Fields["title"])

	snap, _ := store.Get("hero")
	assert.Equal(t, int64(3), snap.Version)
	assert.Equal(t, "Old", snap.Fields["title"])
}

func TestManager_CancelThenBeginEditUsesStaged(t *testing.T) {
	m, _ := newTestManager(t, heroRecord(3, "Old"))
	_, err := m.BeginEdit("hero")
	require.NoError(t, err)
	require.NoError(t, m.UpdateField("hero", "title", "New"))
	require.True(t, m.Stage(models.RecordEvent(models.OpUpdate, heroRecord(4, "External Edit"))))

	ended, err := m.Cancel("hero")
	require.NoError(t, err)
	require.NotNil(t, ended.Staged)
	assert.False(t, m.IsEditing("hero"))

	draft, err := m.BeginEdit("hero")
	require.NoError(t, err)
	assert.Equal(t, "External Edit", draft.Fields["title"])
	assert.Equal(t, int64(4), draft.Version)

	s, _ := m.Session("hero")
	assert.Equal(t, int64(4), s.BaseVersion)
}

func TestManager_RemoteDelete(t *testing.T) {
	m, _ := newTestManager(t, heroRecord(3, "Old"))
	_, err := m.BeginEdit("hero")
	require.NoError(t, err)
	require.NoError(t, m.UpdateField("hero", "title", "New"))

	assert.ErrorIs(t, m.ConfirmResurrect("hero"), models.ErrNotRemoteDeleted)
	assert.ErrorIs(t, m.ConfirmResurrect("cta"), models.ErrNotEditing)

	require.True(t, m.Stage(models.ChangeEvent{Topic: "home", Op: models.OpDelete, Key: "hero", Version: 4}))

	s, _ := m.Session("hero")
	assert.True(t, s.RemoteDeleted)
	assert.Equal(t, "New", s.Draft.Fields["title"])

	_, err = m.PrepareSave("hero")
	assert.ErrorIs(t, err, models.ErrRemoteDeleted)

	require.NoError(t, m.ConfirmResurrect("hero"))
	req, err := m.PrepareSave("hero")
	require.NoError(t, err)
	assert.Equal(t, int64(0), req.ExpectedVersion)
}

func TestManager_CancelAfterRemoteDelete(t *testing.T) {
	m, _ := newTestManager(t, heroRecord(3, "Old"))
	_, err := m.BeginEdit("hero")
	require.NoError(t, err)
	require.True(t, m.Stage(models.ChangeEvent{Topic: "home", Op: models.OpDelete, Key: "hero", Version: 4}))

	_, err = m.Cancel("hero")
	require.NoError(t, err)

	_, err = m.BeginEdit("hero")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestManager_Rebase(t *testing.T) {
	m, _ := newTestManager(t, heroRecord(3, "Old"))
	_, err := m.BeginEdit("hero")
	require.NoError(t, err)

	require.NoError(t, m.UpdateField("hero", "title", "Mine"))
	idx, err := m.AppendItem("hero", "features", models.Item{"title": "Appended"})
	require.NoError(t, err)
	require.Equal(t, 2, idx)
	require.NoError(t, m.UpdateField("hero", "features.2.title", "Appended and edited"))

	// на сервере появилась версия 5 с третьей карточкой и новым subtitle
	latest := heroRecord(5, "Theirs")
	latest.Fields["subtitle"] = "Theirs too"
	latest.Nested["features"] = append(latest.Nested["features"], models.Item{"title": "Remote card"})

	require.NoError(t, m.Rebase("hero", latest))

	s, _ := m.Session("hero")
	assert.Equal(t, int64(5), s.BaseVersion)
	assert.Equal(t, "Mine", s.Draft.Fields["title"])
	assert.Equal(t, "Theirs too", s.Draft.Fields["subtitle"])
	require.Len(t, s.Draft.Nested["features"], 4)
	assert.Equal(t, "Remote card", s.Draft.Nested["features"][2]["title"])
	assert.Equal(t, "Appended and edited", s.Draft.Nested["features"][3]["title"])
	assert.True(t, s.Dirty)

	req, err := m.PrepareSave("hero")
	require.NoError(t, err)
	assert.Equal(t, int64(5), req.ExpectedVersion)
}

func TestManager_RebaseFromStaged(t *testing.T) {
	m, _ := newTestManager(t, heroRecord(3, "Old"))
	_, err := m.BeginEdit("hero")
	require.NoError(t, err)
	require.NoError(t, m.UpdateField("hero", "title", "Mine"))
	require.True(t, m.Stage(models.RecordEvent(models.OpUpdate, heroRecord(4, "External"))))

	require.NoError(t, m.Rebase("hero", nil))

	s, _ := m.Session("hero")
	assert.Equal(t, int64(4), s.BaseVersion)
	assert.Nil(t, s.Staged)
	assert.Equal(t, "Mine", s.Draft.Fields["title"])
}

func TestManager_RebaseAfterRemoteDelete(t *testing.T) {
	m, _ := newTestManager(t, heroRecord(3, "Old"))
	_, err := m.BeginEdit("hero")
	require.NoError(t, err)
	require.True(t, m.Stage(models.ChangeEvent{Op: models.OpDelete, Key: "hero", Version: 4}))

	err = m.Rebase("hero", nil)
	assert.ErrorIs(t, err, models.ErrRemoteDeleted)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "editing", Editing.String())
	assert.Equal(t, "saving", Saving.String())
}

func TestManager_KnownVersion(t *testing.T) {
	m, _ := newTestManager(t, heroRecord(3, "Old"))
	assert.Equal(t, int64(0), m.KnownVersion("hero"))

	_, err := m.BeginEdit("hero")
	require.NoError(t, err)
	assert.Equal(t, int64(3), m.KnownVersion("hero"))

	require.True(t, m.Stage(models.RecordEvent(models.OpUpdate, heroRecord(7, "Later"))))
	assert.Equal(t, int64(7), m.KnownVersion("hero"))
}
