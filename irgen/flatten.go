package irgen

import (
	"github.com/fexolm/versat/ir"
)

// IsCombinational reports whether every instance of a is a boundary, a zero
// latency operation or a combinational composite.
func IsCombinational(a *ir.Accelerator) bool {
	for _, inst := range a.Instances() {
		d := a.Decl(inst)
		switch {
		case d.Type() == ir.Special:
		case d.IsOperation() && zeroLatency(d):
		case d.Type() == ir.Composite && d.Composite().Combinational:
		default:
			return false
		}
	}
	return true
}

func zeroLatency(d *ir.Declaration) bool {
	for _, l := range d.OutputLatencies {
		if l != 0 {
			return false
		}
	}
	return true
}

type inlined struct {
	circuit *ir.Accelerator
	mapped  map[ir.InstanceID]*ir.Instance
}

type endpoint struct {
	inst  *ir.Instance
	port  int
	delay int
}

type flattener struct {
	src     *ir.Accelerator
	dst     *ir.Accelerator
	mapped  map[ir.InstanceID]*ir.Instance
	inlined map[ir.InstanceID]*inlined
	shared  map[[2]int]int
}

// Flatten returns a copy of a where every combinational composite instance
// is replaced by the contents of its circuit. Inlined instances are named
// "outer.inner" and edge delays through the removed boundaries add up.
func Flatten(a *ir.Accelerator, name string) (*ir.Accelerator, error) {
	f := &flattener{
		src:     a,
		dst:     ir.NewAccelerator(a.Catalog(), name),
		mapped:  make(map[ir.InstanceID]*ir.Instance),
		inlined: make(map[ir.InstanceID]*inlined),
		shared:  make(map[[2]int]int),
	}
	for _, inst := range a.Instances() {
		d := a.Decl(inst)
		comp := d.Composite()
		if d.Type() != ir.Composite || !comp.Combinational {
			n, err := f.place(a, inst, inst.Name, -1)
			if err != nil {
				return nil, err
			}
			f.mapped[inst.ID] = n
			continue
		}

		x := &inlined{circuit: comp.BaseCircuit, mapped: make(map[ir.InstanceID]*ir.Instance)}
		for _, child := range comp.BaseCircuit.Instances() {
			if comp.BaseCircuit.Decl(child).Type() == ir.Special {
				continue
			}
			n, err := f.place(comp.BaseCircuit, child, inst.Name+"."+child.Name, int(inst.ID))
			if err != nil {
				return nil, err
			}
			x.mapped[child.ID] = n
		}
		f.inlined[inst.ID] = x
	}

	for _, inst := range a.Instances() {
		x, ok := f.inlined[inst.ID]
		if !ok {
			continue
		}
		for _, e := range x.circuit.Edges() {
			out, in := x.mapped[e.Out.Inst], x.mapped[e.In.Inst]
			if out == nil || in == nil {
				continue
			}
			if _, err := f.dst.ConnectIfNotConnected(out, e.Out.Port, in, e.In.Port, e.Delay); err != nil {
				return nil, err
			}
		}
	}
	for _, e := range a.Edges() {
		for _, s := range f.sources(e.Out) {
			for _, t := range f.sinks(e.In) {
				if _, err := f.dst.ConnectIfNotConnected(s.inst, s.port, t.inst, t.port, s.delay+e.Delay+t.delay); err != nil {
					return nil, err
				}
			}
		}
	}
	return f.dst, nil
}

// place copies inst of from into the flattened circuit. scope is the id of
// the inlined composite inst comes from, -1 for top level instances.
func (f *flattener) place(from *ir.Accelerator, inst *ir.Instance, name string, scope int) (*ir.Instance, error) {
	n, err := f.dst.CreateInstance(from.Decl(inst), name)
	if err != nil {
		return nil, err
	}
	n.PortIndex = inst.PortIndex
	n.Literal = inst.Literal
	n.BufferAmount = inst.BufferAmount
	n.SavedConfiguration = inst.SavedConfiguration
	copy(f.dst.Config(n), from.Config(inst))
	copy(f.dst.State(n), from.State(inst))

	switch {
	case inst.IsStatic:
		if err := f.dst.SetStatic(n); err != nil {
			return nil, err
		}
	case inst.SharedEnable:
		key := [2]int{scope, inst.SharedIndex}
		idx, ok := f.shared[key]
		if !ok {
			idx = len(f.shared)
			f.shared[key] = idx
		}
		if err := f.dst.ShareConfig(n, idx); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// sources resolves an output port of the original circuit to the ports that
// drive it after flattening.
func (f *flattener) sources(ref ir.PortRef) []endpoint {
	x, ok := f.inlined[ref.Inst]
	if !ok {
		return []endpoint{{inst: f.mapped[ref.Inst], port: ref.Port}}
	}
	out := x.circuit.OutputInstance()
	if out == nil {
		return nil
	}
	var res []endpoint
	for _, e := range x.circuit.Edges() {
		if e.In.Inst != out.ID || e.In.Port != ref.Port {
			continue
		}
		producer := x.circuit.Instance(e.Out.Inst)
		if producer.Decl != f.src.Catalog().Input {
			res = append(res, endpoint{inst: x.mapped[producer.ID], port: e.Out.Port, delay: e.Delay})
			continue
		}
		// Straight from an input of the composite to one of its outputs.
		for _, oe := range f.src.Edges() {
			if oe.In.Inst != ref.Inst || oe.In.Port != producer.PortIndex {
				continue
			}
			for _, s := range f.sources(oe.Out) {
				s.delay += oe.Delay + e.Delay
				res = append(res, s)
			}
		}
	}
	return res
}

// sinks resolves an input port of the original circuit to the ports it
// feeds after flattening.
func (f *flattener) sinks(ref ir.PortRef) []endpoint {
	x, ok := f.inlined[ref.Inst]
	if !ok {
		return []endpoint{{inst: f.mapped[ref.Inst], port: ref.Port}}
	}
	in := x.circuit.InputInstance(ref.Port)
	if in == nil {
		return nil
	}
	var res []endpoint
	for _, e := range x.circuit.Edges() {
		if e.Out.Inst != in.ID {
			continue
		}
		consumer := x.circuit.Instance(e.In.Inst)
		if consumer.Decl != f.src.Catalog().Output {
			res = append(res, endpoint{inst: x.mapped[consumer.ID], port: e.In.Port, delay: e.Delay})
			continue
		}
		for _, oe := range f.src.Edges() {
			if oe.Out.Inst != ref.Inst || oe.Out.Port != e.In.Port {
				continue
			}
			for _, t := range f.sinks(oe.In) {
				t.delay += e.Delay + oe.Delay
				res = append(res, t)
			}
		}
	}
	return res
}
