package ir

// Kind is one storage kind with its own arena and offset table.
type Kind int

const (
	KindConfig Kind = iota
	KindState
	KindDelay
	KindOutput
	KindExtraData
	KindExternalMemory
	NumKinds
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindState:
		return "state"
	case KindDelay:
		return "delay"
	case KindOutput:
		return "output"
	case KindExtraData:
		return "extraData"
	case KindExternalMemory:
		return "externalMemory"
	}
	return "unknown"
}

// Window is a contiguous range of one arena.
type Window struct {
	Offset int
	Size   int
}

func (w Window) End() int { return w.Offset + w.Size }

// OffsetTable maps an InstanceID to the first element of its window for one
// kind. -1 marks instances without storage of that kind in the table
// (static configs live in the static arena).
type OffsetTable struct {
	Offsets []int
	Max     int
}

func (t OffsetTable) Of(id InstanceID) int {
	if int(id) >= len(t.Offsets) {
		return -1
	}
	return t.Offsets[id]
}

type Offsets [NumKinds]OffsetTable

// CalculateOffsets assigns every instance of a a contiguous range of kind k,
// in visitation order. Static instances get no config range and members of
// a shared group alias the range of the first member.
func CalculateOffsets(a *Accelerator, k Kind) OffsetTable {
	tab := OffsetTable{Offsets: make([]int, len(a.instances))}
	for i := range tab.Offsets {
		tab.Offsets[i] = -1
	}

	cursor := 0
	if k == KindOutput {
		// The owner's own outputs come first.
		cursor = a.NumOutputs()
	}

	shared := make(map[int]int)
	for _, id := range a.order {
		inst := a.instances[id]
		if k == KindConfig {
			if inst.IsStatic {
				continue
			}
			if inst.SharedEnable {
				if off, ok := shared[inst.SharedIndex]; ok {
					tab.Offsets[id] = off
					continue
				}
				shared[inst.SharedIndex] = cursor
			}
		}
		tab.Offsets[id] = cursor
		cursor += a.Decl(inst).Size(k)
	}
	tab.Max = cursor
	return tab
}

func CalculateAllOffsets(a *Accelerator) Offsets {
	var res Offsets
	for k := Kind(0); k < NumKinds; k++ {
		res[k] = CalculateOffsets(a, k)
	}
	return res
}

type store struct {
	ints  [NumKinds][]int
	extra []byte

	storedOutput []int
	static       []int
}

func newStore(offs Offsets) store {
	var s store
	for k := Kind(0); k < NumKinds; k++ {
		if k == KindExtraData {
			s.extra = make([]byte, offs[k].Max)
			continue
		}
		s.ints[k] = make([]int, offs[k].Max)
	}
	s.storedOutput = make([]int, offs[KindOutput].Max)
	return s
}

// relayout recomputes every window from the current visitation order and
// moves existing values to their new place.
func (a *Accelerator) relayout() {
	offs := CalculateAllOffsets(a)
	next := newStore(offs)

	claimed := make(map[int]bool)
	for _, id := range a.order {
		inst := a.instances[id]
		d := a.Decl(inst)

		if comp := d.Composite(); comp != nil {
			for _, sid := range comp.StaticUnits.Keys() {
				data, _ := comp.StaticUnits.Get(sid)
				if off, fresh := a.allocStatic(sid, data.Configs); fresh {
					copyDefaults(a.store.static[off:off+len(data.Configs)], comp.DefaultStatic, data.Offset)
				}
			}
		}

		for k := Kind(0); k < NumKinds; k++ {
			old := inst.Windows[k]
			if k == KindConfig && inst.IsStatic {
				continue
			}
			nw := Window{Offset: offs[k].Of(id), Size: d.Size(k)}
			if nw.Offset < 0 {
				nw = Window{}
			}
			fill := old.Size == nw.Size && old.Size > 0
			if k == KindConfig && inst.SharedEnable {
				// First member of a shared group keeps its values.
				fill = fill && !claimed[nw.Offset]
				claimed[nw.Offset] = true
			}
			if fill {
				if k == KindExtraData {
					copy(next.extra[nw.Offset:nw.End()], a.store.extra[old.Offset:old.End()])
				} else {
					copy(next.ints[k][nw.Offset:nw.End()], a.store.ints[k][old.Offset:old.End()])
				}
				if k == KindOutput {
					copy(next.storedOutput[nw.Offset:nw.End()], a.store.storedOutput[old.Offset:old.End()])
				}
			}
			inst.Windows[k] = nw
		}
	}
	next.static = a.store.static
	a.store = next
}

func copyDefaults(dst, defaults []int, from int) {
	if from >= len(defaults) {
		return
	}
	copy(dst, defaults[from:])
}

// allocStatic reserves room for a static group. The static arena only grows
// and offsets handed out earlier stay valid; windows hold offsets, so moving
// the backing array is invisible to them.
func (a *Accelerator) allocStatic(id StaticID, wires []Wire) (offset int, fresh bool) {
	if d, ok := a.statics.Get(id); ok {
		return d.Offset, false
	}
	offset = len(a.store.static)
	size := len(wires)
	if offset+size > cap(a.store.static) {
		grown := make([]int, offset, 2*(offset+size))
		copy(grown, a.store.static)
		a.store.static = grown
	}
	a.store.static = a.store.static[:offset+size]
	a.statics.InsertIfNotExist(id, StaticData{Configs: wires, Offset: offset})
	return offset, true
}

func (a *Accelerator) slice(k Kind, w Window, static bool) []int {
	if w.Size == 0 {
		return nil
	}
	if static {
		return a.store.static[w.Offset:w.End():w.End()]
	}
	return a.store.ints[k][w.Offset:w.End():w.End()]
}

func (a *Accelerator) Config(inst *Instance) []int {
	return a.slice(KindConfig, inst.Windows[KindConfig], inst.IsStatic)
}

func (a *Accelerator) State(inst *Instance) []int {
	return a.slice(KindState, inst.Windows[KindState], false)
}

func (a *Accelerator) Delay(inst *Instance) []int {
	return a.slice(KindDelay, inst.Windows[KindDelay], false)
}

func (a *Accelerator) Output(inst *Instance) []int {
	return a.slice(KindOutput, inst.Windows[KindOutput], false)
}

func (a *Accelerator) StoredOutput(inst *Instance) []int {
	w := inst.Windows[KindOutput]
	if w.Size == 0 {
		return nil
	}
	return a.store.storedOutput[w.Offset:w.End():w.End()]
}

func (a *Accelerator) ExtraData(inst *Instance) []byte {
	w := inst.Windows[KindExtraData]
	if w.Size == 0 {
		return nil
	}
	return a.store.extra[w.Offset:w.End():w.End()]
}

func (a *Accelerator) ExternalMemory(inst *Instance) []int {
	return a.slice(KindExternalMemory, inst.Windows[KindExternalMemory], false)
}

// ArenaSize returns the number of elements currently held in the arena of k.
func (a *Accelerator) ArenaSize(k Kind) int {
	if k == KindExtraData {
		return len(a.store.extra)
	}
	return len(a.store.ints[k])
}

func (a *Accelerator) Statics() *StaticTable { return a.statics }

func (a *Accelerator) StaticArena() []int { return a.store.static }

// LatchOutputs ends a cycle: registered consumers read the values produced
// during it from the stored outputs.
func (a *Accelerator) LatchOutputs() {
	copy(a.store.storedOutput, a.store.ints[KindOutput])
}
