package sync

import (
	"context"
	"sort"
	"testing"
	"time"

	"clubsync/internal/domain/audit"
	"clubsync/internal/domain/record"
	"clubsync/internal/domain/schema"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

// fakeRecords хранилище строк в памяти
type fakeRecords struct {
	rows   map[string]map[int64]*record.Record
	nextID int64
	writes int

	failInsert  map[string]error
	failChanged map[string]error

	// stamp часы хранилища для last_sync_at, как у удалённой стороны
	stamp func() time.Time
	// beforeWrite вызывается перед записью строки, один раз
	beforeWrite func()
}

func newFakeRecords(firstID int64) *fakeRecords {
	return &fakeRecords{
		rows:        make(map[string]map[int64]*record.Record),
		nextID:      firstID,
		failInsert:  make(map[string]error),
		failChanged: make(map[string]error),
	}
}

func (f *fakeRecords) table(name string) map[int64]*record.Record {
	rows, ok := f.rows[name]
	if !ok {
		rows = make(map[int64]*record.Record)
		f.rows[name] = rows
	}
	return rows
}

func (f *fakeRecords) Get(_ context.Context, table string, id int64) (*record.Record, error) {
	rec, ok := f.table(table)[id]
	if !ok {
		return nil, record.ErrNotFound
	}
	return rec.Clone(), nil
}

func (f *fakeRecords) ChangedSince(_ context.Context, table string, since *time.Time) ([]*record.Record, error) {
	if err := f.failChanged[table]; err != nil {
		return nil, err
	}
	var out []*record.Record
	for _, rec := range f.table(table) {
		if since == nil || !replicationStamp(rec).Before(*since) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := replicationStamp(out[i]), replicationStamp(out[j])
		if a.Equal(b) {
			return out[i].ID < out[j].ID
		}
		return a.Before(b)
	})
	return out, nil
}

func (f *fakeRecords) Pending(_ context.Context, table string) ([]*record.Record, error) {
	var out []*record.Record
	for _, rec := range f.table(table) {
		if rec.Meta.SyncStatus == record.StatusPending {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRecords) Insert(_ context.Context, rec *record.Record) (int64, error) {
	f.hook()
	if err := f.failInsert[rec.Table]; err != nil {
		return 0, err
	}
	id := f.nextID
	f.nextID++
	c := f.stamped(rec)
	c.ID = id
	f.table(rec.Table)[id] = c
	f.writes++
	return id, nil
}

func (f *fakeRecords) Update(_ context.Context, rec *record.Record) error {
	f.hook()
	if _, ok := f.table(rec.Table)[rec.ID]; !ok {
		return record.ErrNotFound
	}
	f.table(rec.Table)[rec.ID] = f.stamped(rec)
	f.writes++
	return nil
}

func (f *fakeRecords) UpdateIf(_ context.Context, rec *record.Record, version int64) error {
	f.hook()
	cur, ok := f.table(rec.Table)[rec.ID]
	if !ok {
		return record.ErrNotFound
	}
	if cur.Meta.SyncVersion != version {
		return record.ErrStale
	}
	f.table(rec.Table)[rec.ID] = f.stamped(rec)
	f.writes++
	return nil
}

func (f *fakeRecords) UpdateStatus(_ context.Context, table string, id, version int64, status record.SyncStatus, lastSyncAt *time.Time) error {
	rec, ok := f.table(table)[id]
	if !ok {
		return record.ErrNotFound
	}
	if rec.Meta.SyncVersion != version {
		return record.ErrStale
	}
	rec.Meta.SyncStatus = status
	rec.Meta.LastSyncAt = copyTime(lastSyncAt)
	f.writes++
	return nil
}

func (f *fakeRecords) hook() {
	if fn := f.beforeWrite; fn != nil {
		f.beforeWrite = nil
		fn()
	}
}

func (f *fakeRecords) stamped(rec *record.Record) *record.Record {
	c := rec.Clone()
	if f.stamp != nil {
		at := schema.NormalizeTime(f.stamp())
		c.Meta.LastSyncAt = &at
	}
	return c
}

// put кладёт строку как есть, минуя счётчик записей
func (f *fakeRecords) put(rec *record.Record) {
	f.table(rec.Table)[rec.ID] = rec.Clone()
	if rec.ID >= f.nextID {
		f.nextID = rec.ID + 1
	}
}

type metaKey struct {
	table   string
	localID int64
}

type fakeMetadata struct {
	rows        map[metaKey]*Metadata
	failMapping map[string]error
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{rows: make(map[metaKey]*Metadata), failMapping: make(map[string]error)}
}

func (f *fakeMetadata) Get(_ context.Context, table string, localID int64) (*Metadata, error) {
	md, ok := f.rows[metaKey{table, localID}]
	if !ok {
		return nil, ErrMetadataNotFound
	}
	c := *md
	return &c, nil
}

func (f *fakeMetadata) Mappings(_ context.Context, table string) ([]Mapping, error) {
	if err := f.failMapping[table]; err != nil {
		return nil, err
	}
	var out []Mapping
	for k, md := range f.rows {
		if k.table == table && md.RemoteID != nil {
			out = append(out, Mapping{LocalID: md.LocalID, RemoteID: *md.RemoteID})
		}
	}
	return out, nil
}

func (f *fakeMetadata) Upsert(_ context.Context, md *Metadata) error {
	for k, other := range f.rows {
		if k.table == md.Table && k.localID != md.LocalID && other.RemoteID != nil &&
			md.RemoteID != nil && *other.RemoteID == *md.RemoteID {
			other.RemoteID = nil
		}
	}
	c := *md
	f.rows[metaKey{md.Table, md.LocalID}] = &c
	return nil
}

func (f *fakeMetadata) ListByStatus(_ context.Context, status record.SyncStatus) ([]*Metadata, error) {
	var out []*Metadata
	for _, md := range f.rows {
		if md.SyncStatus == status {
			c := *md
			out = append(out, &c)
		}
	}
	return out, nil
}

// link связывает локальную и удалённую строки, как после прошлой синхронизации
func (f *fakeMetadata) link(table string, localID, remoteID int64, hash string) {
	f.rows[metaKey{table, localID}] = &Metadata{
		Table: table, LocalID: localID, RemoteID: &remoteID,
		LocalHash: hash, RemoteHash: hash, SyncStatus: record.StatusSynced,
	}
}

type fakeMirror struct {
	upserts int
}

func (f *fakeMirror) Upsert(context.Context, *Metadata) error {
	f.upserts++
	return nil
}

type fakeCheckpoints struct {
	at map[string]time.Time
}

func (f *fakeCheckpoints) LastPulled(_ context.Context, table string) (*time.Time, error) {
	t, ok := f.at[table]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeCheckpoints) SetLastPulled(_ context.Context, table string, at time.Time) error {
	f.at[table] = at
	return nil
}

type fakeAudit struct {
	entries []audit.Entry
}

func (f *fakeAudit) Append(_ context.Context, e audit.Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeAudit) failed() []audit.Entry {
	var out []audit.Entry
	for _, e := range f.entries {
		if e.Status == audit.StatusFailed {
			out = append(out, e)
		}
	}
	return out
}

type fakeHealth struct {
	up bool
}

func (f *fakeHealth) Available(context.Context) bool {
	return f.up
}

type harness struct {
	t      *testing.T
	clock  *fakeClock
	remote *fakeRecords
	mirror *fakeMirror
	health *fakeHealth
	// у каждого устройства своё пространство локальных id
	devices int
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		t:      t,
		clock:  &fakeClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)},
		remote: newFakeRecords(100),
		mirror: &fakeMirror{},
		health: &fakeHealth{up: true},
	}
	h.remote.stamp = h.clock.Now
	return h
}

type device struct {
	h           *harness
	name        string
	records     *fakeRecords
	metadata    *fakeMetadata
	checkpoints *fakeCheckpoints
	audit       *fakeAudit
	manager     *Manager
}

func (h *harness) device(name string, configure ...func(*Options)) *device {
	opts := DefaultOptions()
	opts.DeviceID = name
	opts.Clock = h.clock.Now
	for _, fn := range configure {
		fn(&opts)
	}

	d := &device{
		h:           h,
		name:        name,
		records:     newFakeRecords(int64(1 + 1000*h.devices)),
		metadata:    newFakeMetadata(),
		checkpoints: &fakeCheckpoints{at: make(map[string]time.Time)},
		audit:       &fakeAudit{},
	}
	h.devices++
	d.manager = NewManager(
		Local{Records: d.records, Metadata: d.metadata, Checkpoints: d.checkpoints},
		Remote{Records: h.remote, Metadata: h.mirror, Health: h.health},
		d.audit,
		schema.Default(),
		opts,
		slog.Default(),
	)
	return d
}

func (d *device) create(table string, fields record.Fields) *record.Record {
	rec := record.New(table, fields, d.name, d.h.clock.Now())
	id, err := d.records.Insert(context.Background(), rec)
	require.NoError(d.h.t, err)
	rec.ID = id
	return rec
}

func (d *device) edit(table string, id int64, fields record.Fields) {
	rec, err := d.records.Get(context.Background(), table, id)
	require.NoError(d.h.t, err)
	rec.Apply(fields, d.name, d.h.clock.Now())
	require.NoError(d.h.t, d.records.Update(context.Background(), rec))
}

func (d *device) remove(table string, id int64) {
	rec, err := d.records.Get(context.Background(), table, id)
	require.NoError(d.h.t, err)
	rec.MarkDeleted(d.name, d.h.clock.Now())
	require.NoError(d.h.t, d.records.Update(context.Background(), rec))
}

func (d *device) get(table string, id int64) *record.Record {
	rec, err := d.records.Get(context.Background(), table, id)
	require.NoError(d.h.t, err)
	return rec
}

func (d *device) sync() *Result {
	res, err := d.manager.Synchronize(context.Background())
	require.NoError(d.h.t, err)
	return res
}

func (d *device) remoteID(table string, localID int64) int64 {
	md, err := d.metadata.Get(context.Background(), table, localID)
	require.NoError(d.h.t, err)
	require.NotNil(d.h.t, md.RemoteID)
	return *md.RemoteID
}

// localFor ищет локальный id по метаданным устройства
func (d *device) localFor(table string, remoteID int64) (int64, bool) {
	mappings, err := d.metadata.Mappings(context.Background(), table)
	require.NoError(d.h.t, err)
	return NewIDMap(mappings...).Local(remoteID)
}
