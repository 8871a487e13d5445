package ir

// Node is one instance seen from the top level accelerator: the instance
// template plus the windows it resolves to in the top level arenas.
type Node struct {
	Inst   *Instance
	Accel  *Accelerator
	Top    *Accelerator
	Parent *Node
	Level  int
	Done   bool

	name         string
	windows      [NumKinds]Window
	staticConfig bool
}

func (a *Accelerator) topNode(inst *Instance) *Node {
	return &Node{
		Inst:         inst,
		Accel:        a,
		Top:          a,
		name:         inst.Name,
		windows:      inst.Windows,
		staticConfig: inst.IsStatic,
	}
}

// Node returns the top level view of inst.
func (a *Accelerator) Node(inst *Instance) *Node {
	return a.topNode(inst)
}

func (n *Node) child(inst *Instance) *Node {
	d := n.Decl()
	comp := d.Composite()
	c := &Node{
		Inst:         inst,
		Accel:        comp.FixedCircuit,
		Top:          n.Top,
		Parent:       n,
		Level:        n.Level + 1,
		name:         n.name + "." + inst.Name,
		staticConfig: n.staticConfig,
	}
	cd := c.Decl()
	for k := Kind(0); k < NumKinds; k++ {
		off := comp.Offsets[k].Of(inst.ID)
		if off < 0 {
			continue
		}
		c.windows[k] = Window{Offset: n.windows[k].Offset + off, Size: cd.Size(k)}
	}
	if inst.IsStatic {
		owner := d.ID
		if it := d.Iterative(); it != nil {
			// Iterative units reuse the statics of the unit they repeat.
			owner = it.Unit
		}
		if data, ok := n.Top.statics.Get(StaticID{Name: inst.Name, Parent: owner}); ok {
			c.windows[KindConfig] = Window{Offset: data.Offset, Size: len(data.Configs)}
			c.staticConfig = true
		}
	}
	return c
}

func (n *Node) Decl() *Declaration { return n.Accel.Decl(n.Inst) }

// FullName is the dotted path from the top level to this node.
func (n *Node) FullName() string { return n.name }

func (n *Node) Window(k Kind) Window { return n.windows[k] }

// IsStaticConfig reports whether Config aliases the static arena.
func (n *Node) IsStaticConfig() bool { return n.staticConfig }

func (n *Node) Instance() *Instance { return n.Inst }

func (n *Node) Config() []int {
	return n.Top.slice(KindConfig, n.windows[KindConfig], n.staticConfig)
}

func (n *Node) State() []int  { return n.Top.slice(KindState, n.windows[KindState], false) }
func (n *Node) Delay() []int  { return n.Top.slice(KindDelay, n.windows[KindDelay], false) }
func (n *Node) Output() []int { return n.Top.slice(KindOutput, n.windows[KindOutput], false) }

func (n *Node) StoredOutput() []int {
	w := n.windows[KindOutput]
	if w.Size == 0 {
		return nil
	}
	return n.Top.store.storedOutput[w.Offset:w.End():w.End()]
}

func (n *Node) ExtraData() []byte {
	w := n.windows[KindExtraData]
	if w.Size == 0 {
		return nil
	}
	return n.Top.store.extra[w.Offset:w.End():w.End()]
}

func (n *Node) ExternalMemory() []int {
	return n.Top.slice(KindExternalMemory, n.windows[KindExternalMemory], false)
}

func (n *Node) SetDone(done bool) { n.Done = done }

// Below returns an iterator over the circuit nested in n, or nil when n is
// not a composite.
func (n *Node) Below() *Iterator {
	comp := n.Decl().Composite()
	if comp == nil || comp.FixedCircuit == nil {
		return nil
	}
	it := &Iterator{top: n.Top}
	it.push(comp.FixedCircuit, n)
	return it
}

type frame struct {
	accel  *Accelerator
	parent *Node
	pos    int
	node   *Node
}

// Iterator walks an accelerator level by level. Next descends into the
// circuits of composite instances, Skip stays on the current level.
type Iterator struct {
	top   *Accelerator
	stack []frame
}

func (a *Accelerator) Iterate() *Iterator {
	it := &Iterator{top: a}
	it.push(a, nil)
	return it
}

func (it *Iterator) push(accel *Accelerator, parent *Node) bool {
	if accel.Len() == 0 {
		return false
	}
	it.stack = append(it.stack, frame{accel: accel, parent: parent})
	f := &it.stack[len(it.stack)-1]
	f.node = it.makeNode(f)
	return true
}

func (it *Iterator) makeNode(f *frame) *Node {
	inst := f.accel.instances[f.accel.order[f.pos]]
	if f.parent == nil {
		return it.top.topNode(inst)
	}
	return f.parent.child(inst)
}

func (it *Iterator) Current() *Node {
	if len(it.stack) == 0 {
		return nil
	}
	return it.stack[len(it.stack)-1].node
}

// Skip moves to the next sibling, climbing back up when a nested level is
// exhausted. It never goes above the level the iterator started on.
func (it *Iterator) Skip() *Node {
	for len(it.stack) > 0 {
		f := &it.stack[len(it.stack)-1]
		f.pos++
		if f.pos < f.accel.Len() {
			f.node = it.makeNode(f)
			return f.node
		}
		it.stack = it.stack[:len(it.stack)-1]
	}
	return nil
}

// Next moves depth first, entering composite circuits.
func (it *Iterator) Next() *Node {
	cur := it.Current()
	if cur == nil {
		return nil
	}
	if comp := cur.Decl().Composite(); comp != nil && comp.FixedCircuit != nil {
		if it.push(comp.FixedCircuit, cur) {
			return it.Current()
		}
	}
	return it.Skip()
}

// LevelBelow returns a new iterator scoped to the circuit of the current
// composite instance.
func (it *Iterator) LevelBelow() *Iterator {
	cur := it.Current()
	if cur == nil {
		return nil
	}
	return cur.Below()
}

func (it *Iterator) FullName() string {
	if cur := it.Current(); cur != nil {
		return cur.FullName()
	}
	return ""
}

func (it *Iterator) Level() int {
	if cur := it.Current(); cur != nil {
		return cur.Level
	}
	return 0
}

func (it *Iterator) Parent() *Node {
	if cur := it.Current(); cur != nil {
		return cur.Parent
	}
	return nil
}

// Walk visits every node of the hierarchy depth first.
func (a *Accelerator) Walk(fn func(n *Node) error) error {
	it := a.Iterate()
	for n := it.Current(); n != nil; n = it.Next() {
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

// Nodes returns the top level nodes of a indexed by InstanceID.
func (a *Accelerator) Nodes() []*Node {
	res := make([]*Node, len(a.instances))
	for _, inst := range a.instances {
		res[inst.ID] = a.topNode(inst)
	}
	return res
}

// Children returns the nodes of the circuit nested in n indexed by
// InstanceID, nil when n is not a composite.
func (n *Node) Children() []*Node {
	comp := n.Decl().Composite()
	if comp == nil || comp.FixedCircuit == nil {
		return nil
	}
	res := make([]*Node, len(comp.FixedCircuit.instances))
	for _, inst := range comp.FixedCircuit.instances {
		res[inst.ID] = n.child(inst)
	}
	return res
}
