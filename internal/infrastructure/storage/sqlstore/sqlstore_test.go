package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"clubsync/internal/domain/audit"
	"clubsync/internal/domain/record"
	"clubsync/internal/domain/schema"
	"clubsync/internal/domain/sync"
	"clubsync/internal/infrastructure/migration"
	"clubsync/internal/infrastructure/storage"
	"clubsync/internal/infrastructure/storage/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newStore(t *testing.T) storage.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "club.db")
	require.NoError(t, migration.NewMigration(migration.DialectSQLite, migration.SQLiteURL(path), nil).Up())

	s, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newMember(email string, at time.Time) *record.Record {
	return record.New(schema.TableMembers, record.Fields{
		"first_name": "Anna",
		"last_name":  "Petrova",
		"email":      email,
		"phone":      nil,
		"joined_on":  "2024-09-01",
		"active":     true,
	}, "device-a", at)
}

func int64p(v int64) *int64 { return &v }

func TestRecords_InsertGet(t *testing.T) {
	ctx := context.Background()
	repo := NewRecords(newStore(t), schema.MustRegistry(schema.Default()))

	rec := newMember("anna@club.org", base)
	id, err := repo.Insert(ctx, rec)
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := repo.Get(ctx, schema.TableMembers, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, rec.Fields, got.Fields)
	assert.Equal(t, rec.Hash(), got.Hash())
	assert.True(t, base.Equal(got.Meta.CreatedAt))
	assert.True(t, base.Equal(got.Meta.UpdatedAt))
	assert.Nil(t, got.Meta.DeletedAt)
	assert.Nil(t, got.Meta.LastSyncAt)
	assert.Equal(t, record.StatusPending, got.Meta.SyncStatus)
	assert.Equal(t, int64(1), got.Meta.SyncVersion)
	assert.Equal(t, "device-a", got.Meta.LastModifiedBy)
}

func TestRecords_TimeColumns(t *testing.T) {
	ctx := context.Background()
	repo := NewRecords(newStore(t), schema.MustRegistry(schema.Default()))

	starts := time.Date(2025, 4, 12, 18, 30, 0, 123456000, time.UTC)
	rec := record.New(schema.TableEvents, record.Fields{
		"title":        "Субботник",
		"description":  nil,
		"location":     "Парк",
		"starts_at":    starts,
		"ends_at":      nil,
		"organizer_id": nil,
	}, "device-a", base)

	id, err := repo.Insert(ctx, rec)
	require.NoError(t, err)

	got, err := repo.Get(ctx, schema.TableEvents, id)
	require.NoError(t, err)
	gotStarts, ok := got.Fields["starts_at"].(time.Time)
	require.True(t, ok)
	assert.True(t, starts.Equal(gotStarts))
	assert.Equal(t, rec.Hash(), got.Hash())
}

func TestRecords_GetNotFound(t *testing.T) {
	repo := NewRecords(newStore(t), schema.MustRegistry(schema.Default()))

	_, err := repo.Get(context.Background(), schema.TableMembers, 404)
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestRecords_UnknownTable(t *testing.T) {
	repo := NewRecords(newStore(t), schema.MustRegistry(schema.Default()))

	_, err := repo.Get(context.Background(), "users; DROP TABLE members", 1)
	assert.ErrorIs(t, err, record.ErrUnknownTable)
}

func TestRecords_UpdateAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewRecords(newStore(t), schema.MustRegistry(schema.Default()))

	first := newMember("a@club.org", base)
	first.ID, _ = repo.Insert(ctx, first)
	second := newMember("b@club.org", base)
	var err error
	second.ID, err = repo.Insert(ctx, second)
	require.NoError(t, err)

	second.MarkDeleted("device-a", base.Add(time.Minute))
	require.NoError(t, repo.Update(ctx, second))

	live, err := repo.List(ctx, schema.TableMembers, false)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, first.ID, live[0].ID)

	all, err := repo.List(ctx, schema.TableMembers, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[1].IsDeleted())
	assert.Equal(t, int64(2), all[1].Meta.SyncVersion)

	missing := newMember("c@club.org", base)
	missing.ID = 999
	assert.ErrorIs(t, repo.Update(ctx, missing), record.ErrNotFound)
}

func TestRecords_PendingAndUpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewRecords(newStore(t), schema.MustRegistry(schema.Default()))

	a := newMember("a@club.org", base)
	a.ID, _ = repo.Insert(ctx, a)
	b := newMember("b@club.org", base)
	b.ID, _ = repo.Insert(ctx, b)

	syncedAt := base.Add(time.Hour)
	require.NoError(t, repo.UpdateStatus(ctx, schema.TableMembers, a.ID, 1, record.StatusSynced, &syncedAt))

	pending, err := repo.Pending(ctx, schema.TableMembers)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)

	got, err := repo.Get(ctx, schema.TableMembers, a.ID)
	require.NoError(t, err)
	assert.Equal(t, record.StatusSynced, got.Meta.SyncStatus)
	require.NotNil(t, got.Meta.LastSyncAt)
	assert.True(t, syncedAt.Equal(*got.Meta.LastSyncAt))

	assert.ErrorIs(t, repo.UpdateStatus(ctx, schema.TableMembers, 999, 1, record.StatusSynced, nil), record.ErrNotFound)
}

func TestRecords_VersionGuard(t *testing.T) {
	ctx := context.Background()
	repo := NewRecords(newStore(t), schema.MustRegistry(schema.Default()))

	rec := newMember("a@club.org", base)
	rec.ID, _ = repo.Insert(ctx, rec)

	// правка пользователя после чтения строки сеансом
	edited := rec.Clone()
	edited.Apply(record.Fields{"first_name": "Edited"}, "device-a", base.Add(time.Minute))
	require.NoError(t, repo.Update(ctx, edited))

	syncedAt := base.Add(time.Hour)
	err := repo.UpdateStatus(ctx, schema.TableMembers, rec.ID, rec.Meta.SyncVersion, record.StatusSynced, &syncedAt)
	assert.ErrorIs(t, err, record.ErrStale)

	stale := rec.Clone()
	stale.Fields["first_name"] = "Remote"
	stale.Meta.SyncStatus = record.StatusSynced
	assert.ErrorIs(t, repo.UpdateIf(ctx, stale, rec.Meta.SyncVersion), record.ErrStale)

	got, err := repo.Get(ctx, schema.TableMembers, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Edited", got.Fields["first_name"])
	assert.Equal(t, record.StatusPending, got.Meta.SyncStatus)
	assert.Equal(t, int64(2), got.Meta.SyncVersion)

	stale.Meta.SyncVersion = 2
	require.NoError(t, repo.UpdateIf(ctx, stale, 2))
	require.NoError(t, repo.UpdateStatus(ctx, schema.TableMembers, rec.ID, 2, record.StatusSynced, &syncedAt))

	missing := rec.Clone()
	missing.ID = 999
	assert.ErrorIs(t, repo.UpdateIf(ctx, missing, 1), record.ErrNotFound)
}

func TestRecords_ServerClock(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	repo := NewRecords(store, schema.MustRegistry(schema.Default()), WithServerClock())

	// часы устройства отстают на сутки
	deviceStamp := time.Now().Add(-24 * time.Hour)
	rec := newMember("a@club.org", deviceStamp)
	rec.Meta.LastSyncAt = &deviceStamp

	before := time.Now().Add(-time.Minute)
	id, err := repo.Insert(ctx, rec)
	require.NoError(t, err)

	got, err := repo.Get(ctx, schema.TableMembers, id)
	require.NoError(t, err)
	require.NotNil(t, got.Meta.LastSyncAt)
	assert.True(t, got.Meta.LastSyncAt.After(before), "stamped by the store, got %s", got.Meta.LastSyncAt)

	rec.ID = id
	rec.Meta.LastSyncAt = &deviceStamp
	require.NoError(t, repo.Update(ctx, rec))
	got, err = repo.Get(ctx, schema.TableMembers, id)
	require.NoError(t, err)
	assert.True(t, got.Meta.LastSyncAt.After(before))

	// отметки хранилища и устройства сравниваются в одном формате
	since := before
	fresh, err := repo.ChangedSince(ctx, schema.TableMembers, &since)
	require.NoError(t, err)
	assert.Len(t, fresh, 1)

	plain := NewRecords(store, schema.MustRegistry(schema.Default()))
	other := newMember("b@club.org", deviceStamp)
	other.Meta.LastSyncAt = &deviceStamp
	otherID, err := plain.Insert(ctx, other)
	require.NoError(t, err)
	got, err = plain.Get(ctx, schema.TableMembers, otherID)
	require.NoError(t, err)
	assert.True(t, deviceStamp.Truncate(time.Microsecond).Equal(*got.Meta.LastSyncAt))
}

func TestRecords_ChangedSince(t *testing.T) {
	ctx := context.Background()
	repo := NewRecords(newStore(t), schema.MustRegistry(schema.Default()))

	// вставлены не по порядку изменения
	late := newMember("late@club.org", base.Add(3*time.Minute))
	late.ID, _ = repo.Insert(ctx, late)
	early := newMember("early@club.org", base.Add(time.Minute))
	early.ID, _ = repo.Insert(ctx, early)
	// отметка репликации важнее времени изменения
	pushed := newMember("pushed@club.org", base)
	pushedAt := base.Add(2*time.Minute + 500*time.Microsecond)
	pushed.Meta.LastSyncAt = &pushedAt
	pushed.ID, _ = repo.Insert(ctx, pushed)

	all, err := repo.ChangedSince(ctx, schema.TableMembers, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{early.ID, pushed.ID, late.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})

	since := base.Add(2*time.Minute + 500*time.Microsecond)
	fresh, err := repo.ChangedSince(ctx, schema.TableMembers, &since)
	require.NoError(t, err)
	require.Len(t, fresh, 2, "boundary row is included")
	assert.Equal(t, pushed.ID, fresh[0].ID)
	assert.Equal(t, late.ID, fresh[1].ID)
}

func TestMetadata_UpsertGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMetadata(newStore(t))

	_, err := repo.Get(ctx, schema.TableMembers, 1)
	assert.ErrorIs(t, err, sync.ErrMetadataNotFound)

	at := base
	md := &sync.Metadata{
		Table:       schema.TableMembers,
		LocalID:     1,
		RemoteID:    int64p(42),
		SyncVersion: 3,
		LocalHash:   "abc",
		RemoteHash:  "abc",
		LastSyncAt:  &at,
		SyncStatus:  record.StatusSynced,
		DeviceID:    "device-a",
	}
	require.NoError(t, repo.Upsert(ctx, md))

	md.SyncStatus = record.StatusConflict
	md.ConflictResolution = "MODIFY_MODIFY_CONFLICT"
	require.NoError(t, repo.Upsert(ctx, md))

	got, err := repo.Get(ctx, schema.TableMembers, 1)
	require.NoError(t, err)
	require.NotNil(t, got.RemoteID)
	assert.Equal(t, int64(42), *got.RemoteID)
	assert.Equal(t, int64(3), got.SyncVersion)
	assert.Equal(t, record.StatusConflict, got.SyncStatus)
	assert.Equal(t, "MODIFY_MODIFY_CONFLICT", got.ConflictResolution)
	assert.Equal(t, "abc", got.Baseline())
	require.NotNil(t, got.LastSyncAt)
	assert.True(t, at.Equal(*got.LastSyncAt))

	conflicts, err := repo.ListByStatus(ctx, record.StatusConflict)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, int64(1), conflicts[0].LocalID)
}

func TestMetadata_RemoteIDMovesToNewRow(t *testing.T) {
	ctx := context.Background()
	repo := NewMetadata(newStore(t))

	require.NoError(t, repo.Upsert(ctx, &sync.Metadata{
		Table: schema.TableMembers, LocalID: 1, RemoteID: int64p(42), SyncStatus: record.StatusSynced,
	}))
	require.NoError(t, repo.Upsert(ctx, &sync.Metadata{
		Table: schema.TableMembers, LocalID: 2, SyncStatus: record.StatusPending,
	}))
	require.NoError(t, repo.Upsert(ctx, &sync.Metadata{
		Table: schema.TableMembers, LocalID: 3, RemoteID: int64p(42), SyncStatus: record.StatusSynced,
	}))
	require.NoError(t, repo.Upsert(ctx, &sync.Metadata{
		Table: schema.TableEvents, LocalID: 1, RemoteID: int64p(42), SyncStatus: record.StatusSynced,
	}))

	maps, err := repo.Mappings(ctx, schema.TableMembers)
	require.NoError(t, err)
	assert.Equal(t, []sync.Mapping{{LocalID: 3, RemoteID: 42}}, maps)

	old, err := repo.Get(ctx, schema.TableMembers, 1)
	require.NoError(t, err)
	assert.Nil(t, old.RemoteID)
}

func TestMirror_Upsert(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	mirror := NewMirror(store)

	require.NoError(t, mirror.Upsert(ctx, &sync.Metadata{Table: schema.TableMembers, LocalID: 1}))

	md := &sync.Metadata{
		Table: schema.TableMembers, LocalID: 1, RemoteID: int64p(7),
		SyncVersion: 1, SyncStatus: record.StatusSynced, DeviceID: "device-a",
	}
	require.NoError(t, mirror.Upsert(ctx, md))
	md.SyncVersion = 2
	require.NoError(t, mirror.Upsert(ctx, md))
	md.DeviceID = "device-b"
	md.LocalID = 5
	require.NoError(t, mirror.Upsert(ctx, md))

	rows, err := store.Query(ctx, "SELECT device_id, local_id, sync_version FROM sync_metadata_mirror ORDER BY device_id")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "device-a", rows[0]["device_id"])
	assert.Equal(t, int64(2), rows[0]["sync_version"])
	assert.Equal(t, int64(5), rows[1]["local_id"])
}

func TestCheckpoints(t *testing.T) {
	ctx := context.Background()
	repo := NewCheckpoints(newStore(t))

	at, err := repo.LastPulled(ctx, schema.TableMembers)
	require.NoError(t, err)
	assert.Nil(t, at)

	require.NoError(t, repo.SetLastPulled(ctx, schema.TableMembers, base))
	require.NoError(t, repo.SetLastPulled(ctx, schema.TableMembers, base.Add(time.Second)))

	at, err = repo.LastPulled(ctx, schema.TableMembers)
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.True(t, base.Add(time.Second).Equal(*at))
}

func TestAudit(t *testing.T) {
	ctx := context.Background()
	repo := NewAudit(newStore(t))

	entries := []audit.Entry{
		{SessionID: "s1", DeviceID: "d", Table: schema.TableMembers, RecordID: 1, RemoteID: int64p(42),
			Operation: audit.OpInsert, Direction: audit.DirectionPush, Status: audit.StatusSuccess, CreatedAt: base},
		{SessionID: "s1", DeviceID: "d", Table: schema.TableEvents, RecordID: 2,
			Operation: audit.OpInsert, Direction: audit.DirectionPush, Status: audit.StatusFailed,
			Error: "deferred: unresolved reference organizer_id", CreatedAt: base.Add(time.Minute)},
		{SessionID: "s2", DeviceID: "d", Table: schema.TableMembers, RecordID: 1, RemoteID: int64p(42),
			Operation: audit.OpUpdate, Direction: audit.DirectionPull, Status: audit.StatusSuccess, CreatedAt: base.Add(48 * time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, repo.Append(ctx, e))
	}

	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "s2", recent[0].SessionID)
	assert.Equal(t, audit.OpUpdate, recent[0].Operation)
	require.NotNil(t, recent[0].RemoteID)
	assert.Equal(t, int64(42), *recent[0].RemoteID)
	assert.Nil(t, recent[1].RemoteID)

	failed, err := repo.Failed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, schema.TableEvents, failed[0].Table)
	assert.Contains(t, failed[0].Error, "deferred")

	removed, err := repo.DeleteBefore(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	left, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.True(t, base.Add(48*time.Hour).Equal(left[0].CreatedAt))
}
