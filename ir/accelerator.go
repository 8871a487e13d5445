package ir

import (
	"fmt"
)

type InstanceID int

type Instance struct {
	ID   InstanceID
	Name string
	Decl DeclID

	// Windows into the arenas of the owning accelerator. The config window
	// points into the static arena when IsStatic is set.
	Windows [NumKinds]Window

	// BaseDelay is the stage at which the instance starts, as computed by
	// delay balancing.
	BaseDelay    int
	BufferAmount int
	PortIndex    int
	Literal      int

	IsStatic           bool
	SharedEnable       bool
	SharedIndex        int
	SavedConfiguration bool
}

type PortRef struct {
	Inst InstanceID
	Port int
}

// Edge connects an output port to an input port. Delay adds cycles on top
// of the producer latency.
type Edge struct {
	Out   PortRef
	In    PortRef
	Delay int
}

type Accelerator struct {
	Name string

	catalog   *Catalog
	owner     DeclID
	instances []*Instance
	order     []InstanceID
	edges     []*Edge

	store   store
	statics *StaticTable
}

func NewAccelerator(cat *Catalog, name string) *Accelerator {
	return &Accelerator{
		Name:    name,
		catalog: cat,
		owner:   NoDecl,
		statics: NewStaticTable(),
	}
}

func (a *Accelerator) Catalog() *Catalog { return a.catalog }

// Owner is the declaration whose circuit this is, NoDecl for a top level
// accelerator.
func (a *Accelerator) Owner() DeclID { return a.owner }

func (a *Accelerator) Decl(inst *Instance) *Declaration {
	return a.catalog.Get(inst.Decl)
}

func (a *Accelerator) Instance(id InstanceID) *Instance {
	if id < 0 || int(id) >= len(a.instances) {
		return nil
	}
	return a.instances[id]
}

// Instances returns the instances in visitation order.
func (a *Accelerator) Instances() []*Instance {
	res := make([]*Instance, len(a.order))
	for i, id := range a.order {
		res[i] = a.instances[id]
	}
	return res
}

func (a *Accelerator) Len() int { return len(a.order) }

func (a *Accelerator) Edges() []*Edge { return a.edges }

func (a *Accelerator) owns(inst *Instance) bool {
	return inst != nil && a.Instance(inst.ID) == inst
}

// CheckValidName reports whether name can be used for an instance.
func CheckValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, ch := range name {
		allowed := (ch >= 'a' && ch <= 'z') ||
			(ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9' && i != 0) ||
			ch == '_' ||
			(ch == '.' && i != 0) ||
			(ch == '/' && i != 0)
		if !allowed {
			return false
		}
	}
	return true
}

// CreateInstance places d inside a, allocates its storage and runs the
// declaration's Init hook.
func (a *Accelerator) CreateInstance(d *Declaration, name string) (*Instance, error) {
	if d == nil || a.catalog.Get(d.ID) != d {
		return nil, Structuralf(name, "", "declaration not registered in this catalog")
	}
	if !CheckValidName(name) {
		return nil, Structuralf(name, d.Name, "invalid instance name")
	}
	inst := &Instance{
		ID:   InstanceID(len(a.instances)),
		Name: name,
		Decl: d.ID,
	}
	a.instances = append(a.instances, inst)
	a.order = append(a.order, inst.ID)
	a.relayout()

	if comp := d.Composite(); comp != nil && len(comp.DefaultConfig) > 0 {
		copy(a.Config(inst), comp.DefaultConfig)
	}
	if d.Behavior.Init != nil {
		d.Behavior.Init(a.topNode(inst))
	}
	return inst, nil
}

func (a *Accelerator) checkPorts(out *Instance, outPort int, in *Instance, inPort int) error {
	if !a.owns(out) || !a.owns(in) {
		return Structuralf(a.Name, "", "connecting instances of a different accelerator")
	}
	outDecl, inDecl := a.Decl(out), a.Decl(in)
	if outPort < 0 || outPort >= outDecl.NumOutputs() {
		return Structuralf(out.Name, outDecl.Name, "output port %d out of range [0,%d)", outPort, outDecl.NumOutputs())
	}
	if inPort < 0 || inPort >= inDecl.NumInputs() {
		return Structuralf(in.Name, inDecl.Name, "input port %d out of range [0,%d)", inPort, inDecl.NumInputs())
	}
	return nil
}

// Connect adds the edge out.outPort -> in.inPort.
func (a *Accelerator) Connect(out *Instance, outPort int, in *Instance, inPort int, delay int) (*Edge, error) {
	if err := a.checkPorts(out, outPort, in, inPort); err != nil {
		return nil, err
	}
	if delay < 0 {
		return nil, Structuralf(in.Name, a.Decl(in).Name, "negative edge delay %d", delay)
	}
	e := &Edge{
		Out:   PortRef{Inst: out.ID, Port: outPort},
		In:    PortRef{Inst: in.ID, Port: inPort},
		Delay: delay,
	}
	a.edges = append(a.edges, e)
	if a.Decl(in).Type() == Special {
		// Outputs of the circuit changed, which moves the output offsets.
		a.relayout()
	}
	return e, nil
}

// ConnectIfNotConnected returns the identical edge when it already exists.
func (a *Accelerator) ConnectIfNotConnected(out *Instance, outPort int, in *Instance, inPort int, delay int) (*Edge, error) {
	if err := a.checkPorts(out, outPort, in, inPort); err != nil {
		return nil, err
	}
	if e := a.FindEdge(out, outPort, in, inPort, delay); e != nil {
		return e, nil
	}
	return a.Connect(out, outPort, in, inPort, delay)
}

func (a *Accelerator) FindEdge(out *Instance, outPort int, in *Instance, inPort int, delay int) *Edge {
	for _, e := range a.edges {
		if e.Out.Inst == out.ID && e.Out.Port == outPort &&
			e.In.Inst == in.ID && e.In.Port == inPort && e.Delay == delay {
			return e
		}
	}
	return nil
}

func (a *Accelerator) RemoveEdge(target *Edge) {
	for i, e := range a.edges {
		if e == target {
			a.edges = append(a.edges[:i], a.edges[i+1:]...)
			return
		}
	}
}

// InputValue returns the value on input port of inst, 0 when unconnected.
func (a *Accelerator) InputValue(inst *Instance, port int) int {
	for _, e := range a.edges {
		if e.In.Inst == inst.ID && e.In.Port == port {
			out := a.Output(a.instances[e.Out.Inst])
			if e.Out.Port < len(out) {
				return out[e.Out.Port]
			}
			return 0
		}
	}
	return 0
}

func (a *Accelerator) isInput(inst *Instance) bool  { return inst.Decl == a.catalog.Input }
func (a *Accelerator) isOutput(inst *Instance) bool { return inst.Decl == a.catalog.Output }

func (a *Accelerator) InputInstance(port int) *Instance {
	for _, id := range a.order {
		inst := a.instances[id]
		if a.isInput(inst) && inst.PortIndex == port {
			return inst
		}
	}
	return nil
}

func (a *Accelerator) OutputInstance() *Instance {
	for _, id := range a.order {
		if inst := a.instances[id]; a.isOutput(inst) {
			return inst
		}
	}
	return nil
}

func (a *Accelerator) CreateOrGetInput(name string, port int) (*Instance, error) {
	if inst := a.InputInstance(port); inst != nil {
		return inst, nil
	}
	inst, err := a.CreateInstance(a.catalog.Get(a.catalog.Input), name)
	if err != nil {
		return nil, err
	}
	inst.PortIndex = port
	return inst, nil
}

func (a *Accelerator) CreateOrGetOutput(name string) (*Instance, error) {
	if inst := a.OutputInstance(); inst != nil {
		return inst, nil
	}
	return a.CreateInstance(a.catalog.Get(a.catalog.Output), name)
}

// NumInputs is the number of input ports the circuit exposes.
func (a *Accelerator) NumInputs() int {
	n := 0
	for _, id := range a.order {
		if inst := a.instances[id]; a.isInput(inst) && inst.PortIndex+1 > n {
			n = inst.PortIndex + 1
		}
	}
	return n
}

// NumOutputs is the number of output ports the circuit exposes: one past the
// highest CircuitOutput port that is driven.
func (a *Accelerator) NumOutputs() int {
	out := a.OutputInstance()
	if out == nil {
		return 0
	}
	n := 0
	for _, e := range a.edges {
		if e.In.Inst == out.ID && e.In.Port+1 > n {
			n = e.In.Port + 1
		}
	}
	return n
}

func (a *Accelerator) SetInputValue(port, value int) error {
	inst := a.InputInstance(port)
	if inst == nil {
		return Structuralf(a.Name, "", "no input for port %d", port)
	}
	a.Output(inst)[0] = value
	a.StoredOutput(inst)[0] = value
	return nil
}

func (a *Accelerator) OutputValue(port int) int {
	out := a.OutputInstance()
	if out == nil {
		return 0
	}
	return a.InputValue(out, port)
}

// SetStatic moves the configuration of inst to the static arena, shared with
// every instance registered under the same static identity.
func (a *Accelerator) SetStatic(inst *Instance) error {
	if !a.owns(inst) {
		return Structuralf(inst.Name, "", "instance not in accelerator %s", a.Name)
	}
	d := a.Decl(inst)
	if inst.SharedEnable {
		return Structuralf(inst.Name, d.Name, "shared instance cannot be static")
	}
	if inst.IsStatic {
		return nil
	}
	old := a.Config(inst)
	off, fresh := a.allocStatic(StaticID{Name: inst.Name, Parent: NoDecl}, d.Configs)
	if fresh {
		copy(a.store.static[off:off+len(d.Configs)], old)
	}
	inst.IsStatic = true
	inst.Windows[KindConfig] = Window{Offset: off, Size: len(d.Configs)}
	a.relayout()
	return nil
}

// ShareConfig makes inst alias the configuration of every other instance
// using the same index.
func (a *Accelerator) ShareConfig(inst *Instance, index int) error {
	if !a.owns(inst) {
		return Structuralf(inst.Name, "", "instance not in accelerator %s", a.Name)
	}
	if inst.IsStatic {
		return Structuralf(inst.Name, a.Decl(inst).Name, "static instance cannot be shared")
	}
	inst.SharedEnable = true
	inst.SharedIndex = index
	a.relayout()
	return nil
}

// SetDefaultConfiguration asks registration to snapshot the current
// configuration of inst as the declaration default.
func (a *Accelerator) SetDefaultConfiguration(inst *Instance) {
	inst.SavedConfiguration = true
}

// Reorder replaces the visitation order. order must be a permutation of the
// instance handles.
func (a *Accelerator) Reorder(order []InstanceID) error {
	if len(order) != len(a.instances) {
		return Internalf("reorder of %s with %d handles, have %d instances", a.Name, len(order), len(a.instances))
	}
	seen := make([]bool, len(a.instances))
	for _, id := range order {
		if a.Instance(id) == nil || seen[id] {
			return Internalf("reorder of %s: bad handle %d", a.Name, id)
		}
		seen[id] = true
	}
	a.order = append(a.order[:0:0], order...)
	a.relayout()
	return nil
}

func (a *Accelerator) String() string {
	return fmt.Sprintf("%s[%d instances, %d edges]", a.Name, len(a.order), len(a.edges))
}
