package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fexolm/versat/ir"
	"github.com/fexolm/versat/layout"
)

type child struct {
	Name         string
	Type         string
	Operation    bool
	Registered   bool
	Expr         string
	Inputs       []string
	Outputs      []string
	Params       string
	Config       string
	Static       string
	State        string
	Delay        string
	Done         bool
	Memory       bool
	MemorySelect string
	MemoryBits   int
}

type assign struct {
	Port int
	Expr string
}

type module struct {
	Name    string
	Inputs  int
	Outputs []assign

	ConfigBits int
	StaticBits int
	StateBits  int
	DelayBits  int
	MemoryBits int

	Children    []child
	Done        []string
	MemoryReads []string

	Iterative *iterative
}

type iterative struct {
	Unit    string
	Latency int
}

func sanitize(name string) string {
	return strings.NewReplacer(".", "_", "/", "_").Replace(name)
}

func slice(bus string, ranges []layout.BitRange, off, n int) string {
	if off < 0 || n == 0 {
		return ""
	}
	return fmt.Sprintf("%s[%d:%d]", bus, ranges[off+n-1].Hi, ranges[off].Lo)
}

// wiresAt lays the wires of every instance at its offset for kind k.
func wiresAt(a *ir.Accelerator, tab ir.OffsetTable, k ir.Kind) []ir.Wire {
	res := make([]ir.Wire, tab.Max)
	for _, inst := range a.Instances() {
		off := tab.Of(inst.ID)
		if off < 0 {
			continue
		}
		d := a.Decl(inst)
		wires := d.Configs
		if k == ir.KindState {
			wires = d.States
		}
		copy(res[off:], wires)
	}
	return res
}

func staticWires(tab *ir.StaticTable) []ir.Wire {
	res := make([]ir.Wire, tab.Size())
	for _, id := range tab.Keys() {
		data, _ := tab.Get(id)
		copy(res[data.Offset:], data.Configs)
	}
	return res
}

func delayRanges(n int) []layout.BitRange {
	res := make([]layout.BitRange, n)
	for i := range res {
		res[i] = layout.BitRange{Lo: i * ir.DelayBitSize, Hi: (i+1)*ir.DelayBitSize - 1}
	}
	return res
}

// buildModule collects everything a template needs to wire the children of
// a to the flat busses of the enclosing unit.
func buildModule(name string, a *ir.Accelerator, offs ir.Offsets, statics *ir.StaticTable, owner ir.DeclID) module {
	cat := a.Catalog()
	configWires := wiresAt(a, offs[ir.KindConfig], ir.KindConfig)
	stateWires := wiresAt(a, offs[ir.KindState], ir.KindState)
	sWires := staticWires(statics)
	configRanges := layout.BitRanges(configWires)
	stateRanges := layout.BitRanges(stateWires)
	staticRanges := layout.BitRanges(sWires)
	delays := delayRanges(offs[ir.KindDelay].Max)
	memOffs, memExtent := ir.MemoryMapOffsets(a)

	m := module{
		Name:       sanitize(name),
		Inputs:     a.NumInputs(),
		ConfigBits: layout.TotalBits(configWires),
		StaticBits: layout.TotalBits(sWires),
		StateBits:  layout.TotalBits(stateWires),
		DelayBits:  offs[ir.KindDelay].Max * ir.DelayBitSize,
		MemoryBits: ir.Log2Ceil(memExtent),
	}

	info := a.Info()
	wire := func(ref ir.PortRef) string {
		p := a.Instance(ref.Inst)
		if p.Decl == cat.Input {
			return fmt.Sprintf("in%d", p.PortIndex)
		}
		return fmt.Sprintf("output_%d_%d", ref.Inst, ref.Port)
	}
	inputs := func(inst *ir.Instance) []string {
		res := make([]string, len(info[inst.ID].Inputs))
		for port, edges := range info[inst.ID].Inputs {
			res[port] = "0"
			if len(edges) > 0 {
				res[port] = wire(edges[0].Out)
			}
		}
		return res
	}

	for _, inst := range a.Instances() {
		d := a.Decl(inst)
		switch inst.Decl {
		case cat.Input:
			continue
		case cat.Output:
			for port, in := range inputs(inst) {
				if len(info[inst.ID].Inputs[port]) > 0 {
					m.Outputs = append(m.Outputs, assign{Port: port, Expr: in})
				}
			}
			continue
		}

		c := child{
			Name:   sanitize(inst.Name),
			Type:   d.Name,
			Inputs: inputs(inst),
			Done:   d.ImplementsDone,
		}
		for port := 0; port < d.NumOutputs(); port++ {
			c.Outputs = append(c.Outputs, fmt.Sprintf("output_%d_%d", inst.ID, port))
		}
		if d.IsOperation() {
			c.Operation = true
			c.Registered = len(d.OutputLatencies) > 0 && d.OutputLatencies[0] > 0
			c.Expr = renderOperation(d.Body.(*ir.PrimitiveBody).Operation, c.Inputs, inst.Literal)
		}
		if inst.Decl == cat.FixedBuffer {
			c.Params = fmt.Sprintf(".AMOUNT(%d)", inst.BufferAmount)
		}

		if inst.IsStatic {
			if data, ok := statics.Get(ir.StaticID{Name: inst.Name, Parent: owner}); ok {
				c.Static = slice("statics", staticRanges, data.Offset, len(data.Configs))
			}
		} else {
			c.Config = slice("configdata", configRanges, offs[ir.KindConfig].Of(inst.ID), len(d.Configs))
		}
		if comp := d.Composite(); comp != nil && comp.StaticUnits.Len() > 0 {
			c.Static = concat(statics, staticRanges, comp.StaticUnits)
		}
		c.State = slice("statedata", stateRanges, offs[ir.KindState].Of(inst.ID), len(d.States))
		c.Delay = slice("delays", delays, offs[ir.KindDelay].Of(inst.ID), d.NumDelays)
		if off := memOffs[inst.ID]; off >= 0 {
			c.Memory = true
			c.MemorySelect = fmt.Sprintf("addr >= %d && addr <= %d", off, off+d.MemoryMapWords()-1)
			c.MemoryBits = d.MemoryMapBits
			m.MemoryReads = append(m.MemoryReads, "rdata_"+c.Name)
		}
		if c.Done {
			m.Done = append(m.Done, "done_"+c.Name)
		}
		m.Children = append(m.Children, c)
	}
	return m
}

// concat renders the parts of the static bus that belong to the groups of
// a nested composite, in the nested composite's own order.
func concat(statics *ir.StaticTable, ranges []layout.BitRange, inner *ir.StaticTable) string {
	var parts []string
	for _, id := range inner.Keys() {
		data, ok := statics.Get(id)
		if !ok || len(data.Configs) == 0 {
			continue
		}
		parts = append([]string{slice("statics", ranges, data.Offset, len(data.Configs))}, parts...)
	}
	if len(parts) == 0 {
		return ""
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// renderOperation fills an operation pattern: {N} is input N, {lit} the
// instance literal.
func renderOperation(pattern string, inputs []string, literal int) string {
	pairs := []string{"{lit}", strconv.Itoa(literal)}
	for i, in := range inputs {
		pairs = append(pairs, "{"+strconv.Itoa(i)+"}", in)
	}
	return strings.NewReplacer(pairs...).Replace(pattern)
}
