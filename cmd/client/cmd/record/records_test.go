package record

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubsync/cmd/client/cmd/view"
	"clubsync/internal/domain/record"
)

func TestParseFields(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    record.Fields
		wantErr bool
	}{
		{
			name: "plain values",
			args: []string{"first_name=Анна", "active=true"},
			want: record.Fields{"first_name": "Анна", "active": "true"},
		},
		{
			name: "empty value is null",
			args: []string{"phone="},
			want: record.Fields{"phone": nil},
		},
		{
			name: "value may contain equals sign",
			args: []string{"description=a=b"},
			want: record.Fields{"description": "a=b"},
		},
		{
			name:    "missing separator",
			args:    []string{"first_name"},
			wantErr: true,
		},
		{
			name:    "empty column",
			args:    []string{"=x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFields(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, view.IsUsage(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID("12")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	for _, bad := range []string{"", "x", "0", "-3"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestFilterStatus(t *testing.T) {
	recs := []*record.Record{
		{ID: 1, Meta: record.Meta{SyncStatus: record.StatusPending}},
		{ID: 2, Meta: record.Meta{SyncStatus: record.StatusSynced}},
		{ID: 3, Meta: record.Meta{SyncStatus: record.StatusPending}},
	}

	assert.Len(t, filterStatus(recs, ""), 3)
	got := filterStatus(recs, "pending")
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[1].ID)
	assert.Empty(t, filterStatus(recs, "conflict"))
}

func TestPrintRecord(t *testing.T) {
	color.NoColor = true
	deleted := time.Now()
	rec := &record.Record{
		ID:     5,
		Table:  "members",
		Fields: record.Fields{"first_name": "Анна", "active": true},
		Meta: record.Meta{
			SyncStatus:     record.StatusPending,
			SyncVersion:    2,
			LastModifiedBy: "laptop",
			UpdatedAt:      time.Now(),
			DeletedAt:      &deleted,
		},
	}

	var buf bytes.Buffer
	printRecord(&buf, rec)

	out := buf.String()
	assert.Contains(t, out, "members/5")
	assert.Contains(t, out, "Анна")
	assert.Contains(t, out, "true")
	assert.Contains(t, out, "PENDING")
	assert.Contains(t, out, "laptop")
	assert.Contains(t, out, "удалено:")
}
