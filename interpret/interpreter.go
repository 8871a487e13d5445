package interpret

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/fexolm/versat/config"
	"github.com/fexolm/versat/ir"
	"github.com/fexolm/versat/layout"
)

// Interpreter simulates an accelerator one clock cycle at a time. Values
// produced by units with latency become visible to consumers on the next
// cycle.
type Interpreter struct {
	accel  *ir.Accelerator
	logger hclog.Logger
	cycle  int

	orders map[*ir.Accelerator][]ir.InstanceID
	lines  map[string]*delayLine
	done   map[string]bool
	iters  map[string]*iterRuntime
}

type iterRuntime struct {
	initial *Interpreter
	loop    *Interpreter
}

func NewInterpreter(accel *ir.Accelerator, logger hclog.Logger) *Interpreter {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Interpreter{
		accel:  accel,
		logger: logger,
		orders: make(map[*ir.Accelerator][]ir.InstanceID),
		lines:  make(map[string]*delayLine),
		done:   make(map[string]bool),
		iters:  make(map[string]*iterRuntime),
	}
}

func (i *Interpreter) Accelerator() *ir.Accelerator { return i.accel }

func (i *Interpreter) Cycle() int { return i.cycle }

// Start resets every unit and runs its start hook.
func (i *Interpreter) Start() error {
	i.cycle = 0
	i.lines = make(map[string]*delayLine)
	i.done = make(map[string]bool)
	i.iters = make(map[string]*iterRuntime)

	return i.accel.Walk(func(n *ir.Node) error {
		if insideIterative(n) {
			return nil
		}
		d := n.Decl()
		if it := d.Iterative(); it != nil {
			return i.startIterative(n, it)
		}
		if d.Behavior.Start != nil {
			copy(n.Output(), d.Behavior.Start(n))
		}
		if d.ImplementsDone && d.Composite() == nil {
			i.done[n.FullName()] = n.Done
		}
		return nil
	})
}

// Step simulates one cycle.
func (i *Interpreter) Step() error {
	if err := i.runLevel(i.accel, i.accel.Nodes()); err != nil {
		return err
	}
	i.accel.LatchOutputs()
	i.cycle++
	return nil
}

// Done reports whether every unit that signals completion has done so.
func (i *Interpreter) Done() bool {
	for _, d := range i.done {
		if !d {
			return false
		}
	}
	return true
}

// Run starts the accelerator and steps it until it is done, at least once
// and at most maxCycles times. It returns the number of cycles simulated.
func (i *Interpreter) Run(maxCycles int) (int, error) {
	if err := i.Start(); err != nil {
		return 0, err
	}
	for i.cycle < maxCycles {
		if err := i.Step(); err != nil {
			return i.cycle, err
		}
		if i.Done() {
			break
		}
	}
	i.logger.Debug("run finished", "accelerator", i.accel.Name, "cycles", i.cycle, "done", i.Done())
	return i.cycle, nil
}

// order is the evaluation order of one level. Feedback through registered
// outputs is allowed; a loop of zero latency units runs in visitation order.
func (i *Interpreter) order(a *ir.Accelerator) []ir.InstanceID {
	if o, ok := i.orders[a]; ok {
		return o
	}
	o, err := a.CombinationalOrder()
	if err != nil {
		o = nil
		for _, inst := range a.Instances() {
			o = append(o, inst.ID)
		}
	}
	i.orders[a] = o
	return o
}

func (i *Interpreter) runLevel(a *ir.Accelerator, nodes []*ir.Node) error {
	info := a.Info()
	for _, id := range i.order(a) {
		n := nodes[id]
		if err := i.evaluate(n, i.inputs(a, nodes, info[id], n)); err != nil {
			return errors.Wrapf(err, "%s", n.FullName())
		}
	}
	return nil
}

func (i *Interpreter) inputs(a *ir.Accelerator, nodes []*ir.Node, info ir.InstanceInfo, n *ir.Node) []int {
	res := make([]int, len(info.Inputs))
	for port, edges := range info.Inputs {
		for _, e := range edges {
			v := value(nodes[e.Out.Inst], e.Out.Port)
			if e.Delay > 0 {
				key := fmt.Sprintf("%s:%d->%s:%d", nodes[e.Out.Inst].FullName(), e.Out.Port, n.FullName(), port)
				v = i.line(key).shift(v, e.Delay)
			}
			res[port] = v
		}
	}
	return res
}

// value reads an output port. Composite units model their latency inside,
// so only primitive outputs with latency come from the stored outputs.
func value(p *ir.Node, port int) int {
	d := p.Decl()
	if d.Composite() == nil && d.OutputLatencies[port] > 0 {
		return p.StoredOutput()[port]
	}
	return p.Output()[port]
}

func (i *Interpreter) line(key string) *delayLine {
	l, ok := i.lines[key]
	if !ok {
		l = &delayLine{}
		i.lines[key] = l
	}
	return l
}

func (i *Interpreter) evaluate(n *ir.Node, inputs []int) error {
	cat := n.Top.Catalog()
	d := n.Decl()

	switch n.Inst.Decl {
	case cat.Input, cat.Output:
		return nil
	case cat.Buffer, cat.FixedBuffer:
		amount := n.Inst.BufferAmount
		if cfg := n.Config(); len(cfg) > 0 {
			amount = cfg[0]
		}
		n.Output()[0] = i.line(n.FullName()).shift(inputs[0], amount)
		return nil
	}

	if it := d.Iterative(); it != nil {
		return i.runIterative(n, it, inputs)
	}
	if d.Composite() != nil {
		return i.runComposite(n, inputs)
	}

	name := n.FullName()
	n.Done = i.done[name]
	if d.Behavior.Update != nil {
		copy(n.Output(), d.Behavior.Update(n, inputs))
	}
	if d.ImplementsDone {
		i.done[name] = n.Done
	}
	return nil
}

func (i *Interpreter) runComposite(n *ir.Node, inputs []int) error {
	comp := n.Decl().Composite()
	cat := n.Top.Catalog()
	children := n.Children()
	for _, c := range children {
		if c.Inst.Decl == cat.Input && c.Inst.PortIndex < len(inputs) {
			c.Output()[0] = inputs[c.Inst.PortIndex]
		}
	}
	if err := i.runLevel(comp.FixedCircuit, children); err != nil {
		return err
	}
	out := comp.FixedCircuit.OutputInstance()
	if out == nil {
		return nil
	}
	info := comp.FixedCircuit.Info()
	res := i.inputs(comp.FixedCircuit, children, info[out.ID], children[out.ID])
	copy(n.Output(), res[:n.Decl().NumOutputs()])
	return nil
}

// delayLine returns values pushed a fixed number of cycles ago.
type delayLine struct {
	values []int
}

func (l *delayLine) shift(v, amount int) int {
	if amount <= 0 {
		return v
	}
	for len(l.values) < amount {
		l.values = append(l.values, 0)
	}
	l.values = l.values[len(l.values)-amount:]
	out := l.values[0]
	l.values = append(l.values[1:], v)
	return out
}

// UnitWrite writes value at a memory mapped address of the top level
// address space described by v.
func (i *Interpreter) UnitWrite(v layout.Values, addr uint32, value int) error {
	_, err := i.unitAccess(v, addr, value, true)
	return err
}

func (i *Interpreter) UnitRead(v layout.Values, addr uint32) (int, error) {
	return i.unitAccess(v, addr, 0, false)
}

func (i *Interpreter) unitAccess(v layout.Values, addr uint32, value int, write bool) (int, error) {
	a := v.Decode(addr)
	if !a.Memory {
		return 0, errors.Errorf("address %#x is not memory mapped", addr)
	}
	if a.Unit >= len(v.Mapped) {
		return 0, errors.Errorf("address %#x selects unit %d, only %d mapped", addr, a.Unit, len(v.Mapped))
	}
	n := i.accel.Nodes()[v.Mapped[a.Unit].Inst]
	return memAccess(n, a.Offset, value, write)
}

// memAccess routes an access to the unit owning address inside n. Nested
// units are placed by the aligned memory map cursor.
func memAccess(n *ir.Node, address, value int, write bool) (int, error) {
	d := n.Decl()
	comp := d.Composite()
	if comp == nil {
		if d.Behavior.MemAccess == nil {
			return 0, errors.Errorf("%s (%s) has no memory access", n.FullName(), d.Name)
		}
		return d.Behavior.MemAccess(n, address, value, write), nil
	}
	offs, _ := ir.MemoryMapOffsets(comp.FixedCircuit)
	children := n.Children()
	for id, off := range offs {
		if off < 0 {
			continue
		}
		c := children[id]
		if address >= off && address < off+c.Decl().MemoryMapWords() {
			return memAccess(c, address-off, value, write)
		}
	}
	return 0, errors.Errorf("%s (%s): address %#x not mapped", n.FullName(), d.Name, address)
}

// NewFromOptions is NewInterpreter with the logger level taken from opts.
func NewFromOptions(accel *ir.Accelerator, opts config.Options) *Interpreter {
	return NewInterpreter(accel, hclog.New(&hclog.LoggerOptions{Name: "interpret", Level: opts.Level()}))
}
