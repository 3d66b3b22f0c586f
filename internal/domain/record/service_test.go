package record

import (
	"context"
	"errors"
	"testing"
	"time"

	"clubsync/internal/domain/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Get(ctx context.Context, table string, id int64) (*Record, error) {
	args := m.Called(ctx, table, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Record), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, table string, includeDeleted bool) ([]*Record, error) {
	args := m.Called(ctx, table, includeDeleted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Record), args.Error(1)
}

func (m *MockRepository) Insert(ctx context.Context, rec *Record) (int64, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, rec *Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func newTestService(repo Repository, now time.Time) *Service {
	return NewService(repo, schema.MustRegistry(schema.Default()), "laptop", slog.Default()).
		WithClock(func() time.Time { return now })
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	repo := new(MockRepository)
	service := newTestService(repo, now)

	repo.On("Insert", ctx, mock.MatchedBy(func(r *Record) bool {
		return r.Table == schema.TableMembers &&
			r.Fields["first_name"] == "Ada" &&
			r.Fields["active"] == true &&
			r.Meta.SyncVersion == 1
	})).Return(int64(5), nil)

	rec, err := service.Create(ctx, schema.TableMembers, Fields{"first_name": "Ada", "active": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.ID)
	assert.Equal(t, StatusPending, rec.Meta.SyncStatus)

	// незаданные колонки присутствуют со значением nil
	v, ok := rec.Fields["email"]
	assert.True(t, ok)
	assert.Nil(t, v)

	repo.AssertExpectations(t)
}

func TestService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	service := newTestService(repo, time.Now())

	tests := []struct {
		name    string
		table   string
		fields  Fields
		wantErr error
	}{
		{"unknown table", "invoices", Fields{}, ErrUnknownTable},
		{"unknown column", schema.TableMembers, Fields{"nickname": "x"}, ErrInvalidData},
		{"bad value", schema.TableProjects, Fields{"budget_cents": "lots"}, ErrInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(ctx, tt.table, tt.fields)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestService_UpdateIncrementsVersion(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	repo := new(MockRepository)
	service := newTestService(repo, now)

	existing := &Record{
		ID:     3,
		Table:  schema.TableEvents,
		Fields: Fields{"title": "Old"},
		Meta:   Meta{SyncVersion: 4, SyncStatus: StatusSynced},
	}
	repo.On("Get", ctx, schema.TableEvents, int64(3)).Return(existing, nil)
	repo.On("Update", ctx, mock.AnythingOfType("*record.Record")).Return(nil)

	rec, err := service.Update(ctx, schema.TableEvents, 3, Fields{"title": "New"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.Meta.SyncVersion)
	assert.Equal(t, StatusPending, rec.Meta.SyncStatus)
	assert.Equal(t, "New", rec.Fields["title"])
	assert.Equal(t, now, rec.Meta.UpdatedAt)

	repo.AssertExpectations(t)
}

func TestService_UpdateDeleted(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	service := newTestService(repo, time.Now())

	deletedAt := time.Now()
	repo.On("Get", ctx, schema.TableEvents, int64(3)).
		Return(&Record{ID: 3, Table: schema.TableEvents, Meta: Meta{DeletedAt: &deletedAt}}, nil)

	_, err := service.Update(ctx, schema.TableEvents, 3, Fields{"title": "New"})
	assert.ErrorIs(t, err, ErrRecordDeleted)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	repo := new(MockRepository)
	service := newTestService(repo, now)

	repo.On("Get", ctx, schema.TableMembers, int64(9)).
		Return(&Record{ID: 9, Table: schema.TableMembers, Meta: Meta{SyncVersion: 2}}, nil)
	repo.On("Update", ctx, mock.AnythingOfType("*record.Record")).Return(nil)

	rec, err := service.Delete(ctx, schema.TableMembers, 9)
	require.NoError(t, err)
	require.True(t, rec.IsDeleted())
	assert.Equal(t, now, *rec.Meta.DeletedAt)
	assert.Equal(t, int64(3), rec.Meta.SyncVersion)
}

func TestService_GetNotFound(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	service := newTestService(repo, time.Now())

	repo.On("Get", ctx, schema.TableMembers, int64(1)).Return(nil, ErrNotFound)

	_, err := service.Get(ctx, schema.TableMembers, 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}
