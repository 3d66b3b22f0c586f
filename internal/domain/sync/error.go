package sync

import "errors"

var (
	ErrOffline           = errors.New("remote store is unavailable")
	ErrSyncInProgress    = errors.New("sync already in progress")
	ErrMetadataNotFound  = errors.New("sync metadata not found")
	ErrNotInConflict     = errors.New("record is not in conflict")
	ErrUnknownTable      = errors.New("table is not synced")
	ErrInvalidAction     = errors.New("action cannot be applied manually")
	ErrUnresolvedForeign = errors.New("unresolved foreign key")
)
