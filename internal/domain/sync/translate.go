package sync

import (
	"fmt"

	"clubsync/internal/domain/record"
	"clubsync/internal/domain/schema"
)

type direction int

const (
	// outward локальные идентификаторы в удалённые, для push
	outward direction = iota
	// inward удалённые идентификаторы в локальные, для pull
	inward
)

// translate переводит внешние ключи записи в пространство идентификаторов
// другой стороны. Возвращает копию полей и список ссылок без соответствия.
// При inward такие ссылки обнуляются, при outward остаются как есть.
func translate(maps Mappings, t schema.Table, fields record.Fields, dir direction) (record.Fields, []string) {
	out := fields.Clone()
	var missing []string

	for _, fk := range t.ForeignKeys {
		missing = translateColumn(maps, out, fk.Column, fk.References, dir, missing)
	}

	for _, pk := range t.Polymorphic {
		if out[pk.Column] == nil {
			continue
		}
		disc, _ := out.String(pk.Discriminator)
		target, ok := pk.Target(disc)
		if !ok {
			missing = append(missing, fmt.Sprintf("%s: unknown %s %q", pk.Column, pk.Discriminator, disc))
			if dir == inward {
				out[pk.Column] = nil
			}
			continue
		}
		missing = translateColumn(maps, out, pk.Column, target, dir, missing)
	}

	return out, missing
}

func translateColumn(maps Mappings, out record.Fields, column, target string, dir direction, missing []string) []string {
	v := out[column]
	if v == nil {
		return missing
	}

	id, ok := asID(v)
	if !ok {
		if dir == inward {
			out[column] = nil
		}
		return append(missing, fmt.Sprintf("%s: %v is not an id", column, v))
	}

	ids := maps.For(target)
	var mapped int64
	if dir == outward {
		mapped, ok = ids.Remote(id)
	} else {
		mapped, ok = ids.Local(id)
	}
	if !ok {
		if dir == inward {
			out[column] = nil
		}
		return append(missing, fmt.Sprintf("%s=%d (%s)", column, id, target))
	}

	out[column] = mapped
	return missing
}

func asID(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		if x == float64(int64(x)) {
			return int64(x), true
		}
	}
	return 0, false
}
