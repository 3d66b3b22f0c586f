package sync

import (
	"clubsync/internal/domain/record"
)

// Classification результат сравнения локальной и удалённой версий записи
type Classification struct {
	Type           ConflictType
	LocalModified  bool
	RemoteModified bool
	LocalHash      string
	RemoteHash     string
}

// Classify возвращает только тип конфликта.
func Classify(local, remote *record.Record, baseline string) ConflictType {
	return Detect(local, remote, baseline).Type
}

// Detect сравнивает версии по отпечаткам их собственных полей.
func Detect(local, remote *record.Record, baseline string) Classification {
	return DetectWithHashes(local, remote, local.Hash(), remote.Hash(), baseline)
}

// DetectWithHashes сравнивает версии по заранее посчитанным отпечаткам.
// Отпечатки должны быть посчитаны в одном пространстве идентификаторов
// с baseline. nil означает отсутствие версии, пустой baseline означает,
// что согласованного состояния нет.
func DetectWithHashes(local, remote *record.Record, localHash, remoteHash, baseline string) Classification {
	c := Classification{Type: NoConflict, LocalHash: localHash, RemoteHash: remoteHash}

	if local == nil && remote == nil {
		return c
	}

	if local.IsDeleted() {
		if remote == nil || remote.IsDeleted() {
			return c
		}
		// удалённая сторона изменена после локального удаления
		if remote.Meta.UpdatedAt.After(*local.Meta.DeletedAt) {
			c.Type = DeleteModifyConflict
		}
		return c
	}

	if remote.IsDeleted() {
		if local == nil {
			return c
		}
		if local.Meta.UpdatedAt.After(*remote.Meta.DeletedAt) {
			c.Type = DeleteModifyConflict
		}
		return c
	}

	if local == nil || remote == nil {
		return c
	}

	if localHash == remoteHash {
		return c
	}

	c.LocalModified = baseline == "" || localHash != baseline
	c.RemoteModified = baseline == "" || remoteHash != baseline

	if c.LocalModified && c.RemoteModified && local.Meta.SyncVersion != remote.Meta.SyncVersion {
		c.Type = ModifyModifyConflict
	}
	return c
}
