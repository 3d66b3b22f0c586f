package sync

// IDMap двунаправленное соответствие локальных и удалённых идентификаторов одной таблицы
type IDMap struct {
	toRemote map[int64]int64
	toLocal  map[int64]int64
}

func NewIDMap(mappings ...Mapping) *IDMap {
	m := &IDMap{
		toRemote: make(map[int64]int64, len(mappings)),
		toLocal:  make(map[int64]int64, len(mappings)),
	}
	for _, mp := range mappings {
		m.Put(mp.LocalID, mp.RemoteID)
	}
	return m
}

// Put связывает пару, удаляя прежние связи обоих идентификаторов.
func (m *IDMap) Put(localID, remoteID int64) {
	if old, ok := m.toRemote[localID]; ok {
		delete(m.toLocal, old)
	}
	if old, ok := m.toLocal[remoteID]; ok {
		delete(m.toRemote, old)
	}
	m.toRemote[localID] = remoteID
	m.toLocal[remoteID] = localID
}

func (m *IDMap) Remote(localID int64) (int64, bool) {
	id, ok := m.toRemote[localID]
	return id, ok
}

func (m *IDMap) Local(remoteID int64) (int64, bool) {
	id, ok := m.toLocal[remoteID]
	return id, ok
}

func (m *IDMap) Len() int {
	return len(m.toRemote)
}

// Mappings соответствия идентификаторов по таблицам
type Mappings map[string]*IDMap

// For возвращает соответствие таблицы, создавая пустое при необходимости.
func (ms Mappings) For(table string) *IDMap {
	m, ok := ms[table]
	if !ok {
		m = NewIDMap()
		ms[table] = m
	}
	return m
}
