package ir

// StaticID identifies a static configuration group. Instances that resolve
// to the same StaticID share one copy of the registers.
type StaticID struct {
	Name   string
	Parent DeclID
}

type StaticData struct {
	Configs []Wire
	Offset  int
}

// StaticTable keeps static groups in insertion order so that offsets derived
// from it are deterministic.
type StaticTable struct {
	keys []StaticID
	data map[StaticID]StaticData
	size int
}

func NewStaticTable() *StaticTable {
	return &StaticTable{data: make(map[StaticID]StaticData)}
}

// InsertIfNotExist adds id and reports whether it was new.
func (t *StaticTable) InsertIfNotExist(id StaticID, d StaticData) bool {
	if _, ok := t.data[id]; ok {
		return false
	}
	t.keys = append(t.keys, id)
	t.data[id] = d
	if end := d.Offset + len(d.Configs); end > t.size {
		t.size = end
	}
	return true
}

func (t *StaticTable) Get(id StaticID) (StaticData, bool) {
	if t == nil {
		return StaticData{}, false
	}
	d, ok := t.data[id]
	return d, ok
}

func (t *StaticTable) Keys() []StaticID {
	if t == nil {
		return nil
	}
	return t.keys
}

func (t *StaticTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Size is the number of registers needed to hold every group.
func (t *StaticTable) Size() int {
	if t == nil {
		return 0
	}
	return t.size
}
