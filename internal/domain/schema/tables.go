package schema

import "fmt"

// Имена синхронизируемых таблиц
const (
	TableMembers         = "members"
	TableEvents          = "events"
	TableProjects        = "projects"
	TableEventAttendance = "event_attendance"
	TableProjectMembers  = "project_members"
	TableExpenses        = "expenses"
)

// Значения дискриминатора expenses.entity_type
const (
	EntityEvent   = "EVENT"
	EntityProject = "PROJECT"
)

var (
	members = Table{
		Name: TableMembers,
		Columns: []Column{
			{Name: "first_name", Kind: KindText},
			{Name: "last_name", Kind: KindText},
			{Name: "email", Kind: KindText},
			{Name: "phone", Kind: KindText},
			{Name: "joined_on", Kind: KindText},
			{Name: "active", Kind: KindBool},
		},
	}

	events = Table{
		Name: TableEvents,
		Columns: []Column{
			{Name: "title", Kind: KindText},
			{Name: "description", Kind: KindText},
			{Name: "location", Kind: KindText},
			{Name: "starts_at", Kind: KindTime},
			{Name: "ends_at", Kind: KindTime},
			{Name: "organizer_id", Kind: KindInt},
		},
		ForeignKeys: []ForeignKey{
			{Column: "organizer_id", References: TableMembers},
		},
	}

	projects = Table{
		Name: TableProjects,
		Columns: []Column{
			{Name: "name", Kind: KindText},
			{Name: "description", Kind: KindText},
			{Name: "status", Kind: KindText},
			{Name: "budget_cents", Kind: KindInt},
			{Name: "lead_id", Kind: KindInt},
		},
		ForeignKeys: []ForeignKey{
			{Column: "lead_id", References: TableMembers},
		},
	}

	eventAttendance = Table{
		Name: TableEventAttendance,
		Columns: []Column{
			{Name: "event_id", Kind: KindInt},
			{Name: "member_id", Kind: KindInt},
			{Name: "status", Kind: KindText},
		},
		ForeignKeys: []ForeignKey{
			{Column: "event_id", References: TableEvents},
			{Column: "member_id", References: TableMembers},
		},
	}

	projectMembers = Table{
		Name: TableProjectMembers,
		Columns: []Column{
			{Name: "project_id", Kind: KindInt},
			{Name: "member_id", Kind: KindInt},
			{Name: "role", Kind: KindText},
		},
		ForeignKeys: []ForeignKey{
			{Column: "project_id", References: TableProjects},
			{Column: "member_id", References: TableMembers},
		},
	}

	expenses = Table{
		Name: TableExpenses,
		Columns: []Column{
			{Name: "description", Kind: KindText},
			{Name: "amount_cents", Kind: KindInt},
			{Name: "spent_on", Kind: KindText},
			{Name: "paid_by", Kind: KindInt},
			{Name: "entity_type", Kind: KindText},
			{Name: "entity_id", Kind: KindInt},
		},
		ForeignKeys: []ForeignKey{
			{Column: "paid_by", References: TableMembers},
		},
		Polymorphic: []PolymorphicKey{
			{
				Column:        "entity_id",
				Discriminator: "entity_type",
				Targets: map[string]string{
					EntityEvent:   TableEvents,
					EntityProject: TableProjects,
				},
			},
		},
	}
)

// Default возвращает синхронизируемые таблицы в порядке синхронизации:
// родительские таблицы идут раньше ссылающихся на них.
func Default() []Table {
	return []Table{members, events, projects, eventAttendance, projectMembers, expenses}
}

// Registry индекс таблиц по имени
type Registry struct {
	ordered []Table
	byName  map[string]Table
}

// NewRegistry строит индекс и проверяет, что все ссылки указывают
// на объявленные ранее таблицы.
func NewRegistry(tables []Table) (*Registry, error) {
	r := &Registry{
		ordered: tables,
		byName:  make(map[string]Table, len(tables)),
	}

	for _, t := range tables {
		if _, dup := r.byName[t.Name]; dup {
			return nil, fmt.Errorf("table %s declared twice", t.Name)
		}
		for _, fk := range t.ForeignKeys {
			if _, ok := t.Column(fk.Column); !ok {
				return nil, fmt.Errorf("table %s: foreign key column %s is not declared", t.Name, fk.Column)
			}
			if _, ok := r.byName[fk.References]; !ok && fk.References != t.Name {
				return nil, fmt.Errorf("table %s: %s references %s which is not synced before it", t.Name, fk.Column, fk.References)
			}
		}
		for _, pk := range t.Polymorphic {
			if _, ok := t.Column(pk.Discriminator); !ok {
				return nil, fmt.Errorf("table %s: discriminator %s is not declared", t.Name, pk.Discriminator)
			}
			for disc, target := range pk.Targets {
				if _, ok := r.byName[target]; !ok {
					return nil, fmt.Errorf("table %s: %s=%s targets %s which is not synced before it", t.Name, pk.Discriminator, disc, target)
				}
			}
		}
		r.byName[t.Name] = t
	}

	return r, nil
}

// MustRegistry как NewRegistry, но паникует при ошибке.
func MustRegistry(tables []Table) *Registry {
	r, err := NewRegistry(tables)
	if err != nil {
		panic(err)
	}
	return r
}

// Tables возвращает таблицы в порядке синхронизации.
func (r *Registry) Tables() []Table {
	return r.ordered
}

// Table возвращает описание таблицы по имени.
func (r *Registry) Table(name string) (Table, bool) {
	t, ok := r.byName[name]
	return t, ok
}
