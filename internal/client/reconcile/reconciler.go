// Package reconcile decides where every incoming change event goes: straight into the
// snapshot, or aside into the edit session that holds the record.
package reconcile

import (
	"log/slog"

	"github.com/iudanet/sitekeeper/internal/client/snapshot"
	"github.com/iudanet/sitekeeper/internal/models"
)

//go:generate moq -out registry_mock.go . EditRegistry

// EditRegistry is the view of open edit sessions the reconciler consults.
type EditRegistry interface {
	// IsEditing сообщает, открыта ли сессия редактирования для ключа
	IsEditing(key string) bool
	// Stage сохраняет удаленное изменение в сессии, не трогая черновик
	Stage(ev models.ChangeEvent) bool
	// KnownVersion возвращает наибольшую версию, известную сессии
	KnownVersion(key string) int64
}

// Outcome is what happened to one event.
type Outcome int

const (
	// Stale событие не новее текущего состояния
	Stale Outcome = iota
	// Applied событие применено к снимку
	Applied
	// Staged событие отложено в сессию редактирования
	Staged
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Staged:
		return "staged"
	default:
		return "stale"
	}
}

// ResyncResult summarises a full resynchronisation of one topic.
type ResyncResult struct {
	Applied int // записи, обновленные в снимке
	Staged  int // записи, отложенные в сессии редактирования
	Removed int // записи, которых больше нет на сервере
}

// Reconciler is the only writer of the snapshot store.
//
// Not safe for concurrent use; the engine loop owns it.
type Reconciler struct {
	store    *snapshot.Store
	sessions EditRegistry
	logger   *slog.Logger
}

// New creates a reconciler over store that consults sessions.
func New(store *snapshot.Store, sessions EditRegistry, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		sessions: sessions,
		logger:   logger,
	}
}

// OnEvent routes ev. A record under edit never reaches the snapshot: the event
// is staged in its session instead, and a delete marks the session remoteDeleted.
func (r *Reconciler) OnEvent(ev models.ChangeEvent) Outcome {
	if !ev.Op.Valid() || ev.Key == "" {
		r.logger.Warn("Dropping malformed change event", "key", ev.Key, "op", ev.Op)
		return Stale
	}

	if r.sessions.IsEditing(ev.Key) {
		if !r.sessions.Stage(ev) {
			return Stale
		}
		r.logger.Debug("Staged change for record under edit",
			"key", ev.Key,
			"op", ev.Op,
			"version", ev.Version)
		return Staged
	}

	if !r.store.Apply(ev) {
		r.logger.Debug("Ignoring stale change",
			"key", ev.Key,
			"version", ev.Version,
			"current", r.store.Version(ev.Key))
		return Stale
	}

	return Applied
}

// Resync merges the full current state of topic, as re-fetched after a (re)connect.
// Returned records go through OnEvent as updates. Local records of the topic the
// backend did not return were deleted while the feed was down; they get a synthetic
// delete one version above what is known locally.
func (r *Reconciler) Resync(topic string, records []*models.ContentRecord) ResyncResult {
	var result ResyncResult

	returned := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec == nil || rec.Key == "" {
			continue
		}
		returned[rec.Key] = true

		ev := models.RecordEvent(models.OpUpdate, rec)
		if ev.Topic == "" {
			ev.Topic = topic
			ev.Payload.Topic = topic
		}
		r.count(&result, r.OnEvent(ev))
	}

	for _, key := range r.store.Keys(topic) {
		if returned[key] {
			continue
		}

		version := r.store.Version(key)
		if known := r.sessions.KnownVersion(key); known > version {
			version = known
		}

		outcome := r.OnEvent(models.ChangeEvent{
			Topic:   topic,
			Op:      models.OpDelete,
			Key:     key,
			Version: version + 1,
		})
		if outcome == Applied {
			result.Removed++
		} else {
			r.count(&result, outcome)
		}
	}

	r.logger.Info("Topic resynchronised",
		"topic", topic,
		"records", len(records),
		"applied", result.Applied,
		"staged", result.Staged,
		"removed", result.Removed)

	return result
}

// Release flushes the staged value of an ended session into the snapshot.
// Called after cancel and after a successful save.
func (r *Reconciler) Release(staged *models.ChangeEvent) bool {
	if staged == nil {
		return false
	}
	return r.store.Apply(*staged)
}

func (r *Reconciler) count(result *ResyncResult, outcome Outcome) {
	switch outcome {
	case Applied:
		result.Applied++
	case Staged:
		result.Staged++
	}
}
