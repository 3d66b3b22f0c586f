package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r, err := NewRegistry(Default())
	require.NoError(t, err)

	names := make([]string, 0, len(r.Tables()))
	for _, tbl := range r.Tables() {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{
		TableMembers, TableEvents, TableProjects,
		TableEventAttendance, TableProjectMembers, TableExpenses,
	}, names)

	exp, ok := r.Table(TableExpenses)
	require.True(t, ok)
	require.Len(t, exp.Polymorphic, 1)

	target, ok := exp.Polymorphic[0].Target("event")
	assert.True(t, ok)
	assert.Equal(t, TableEvents, target)

	_, ok = exp.Polymorphic[0].Target("INVOICE")
	assert.False(t, ok)
}

func TestNewRegistry_RejectsForwardReference(t *testing.T) {
	child := Table{
		Name:        "child",
		Columns:     []Column{{Name: "parent_id", Kind: KindInt}},
		ForeignKeys: []ForeignKey{{Column: "parent_id", References: "parent"}},
	}
	parent := Table{Name: "parent"}

	_, err := NewRegistry([]Table{child, parent})
	assert.Error(t, err)

	_, err = NewRegistry([]Table{parent, child})
	assert.NoError(t, err)
}

func TestColumn_Normalize(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.FixedZone("MSK", 3*3600))

	tests := []struct {
		name   string
		column Column
		in     any
		want   any
	}{
		{"nil", Column{Name: "c", Kind: KindText}, nil, nil},
		{"bytes to text", Column{Name: "c", Kind: KindText}, []byte("abc"), "abc"},
		{"int32 to int", Column{Name: "c", Kind: KindInt}, int32(7), int64(7)},
		{"string to int", Column{Name: "c", Kind: KindInt}, "42", int64(42)},
		{"int to bool", Column{Name: "c", Kind: KindBool}, int64(1), true},
		{"zero to bool", Column{Name: "c", Kind: KindBool}, int64(0), false},
		{"int to real", Column{Name: "c", Kind: KindReal}, int64(3), float64(3)},
		{"time to utc micro", Column{Name: "c", Kind: KindTime}, ts,
			time.Date(2026, 3, 1, 7, 0, 0, 123456000, time.UTC)},
		{"sqlite time string", Column{Name: "c", Kind: KindTime}, "2026-03-01 07:00:00.5+00:00",
			time.Date(2026, 3, 1, 7, 0, 0, 500000000, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.column.Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColumn_NormalizeRejectsGarbage(t *testing.T) {
	_, err := Column{Name: "amount", Kind: KindInt}.Normalize("twelve")
	assert.Error(t, err)

	_, err = Column{Name: "at", Kind: KindTime}.Normalize(struct{}{})
	assert.Error(t, err)
}
