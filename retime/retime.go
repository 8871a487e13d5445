package retime

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/fexolm/versat/ir"
)

// Engine balances the pipeline depth of every path through a circuit by
// inserting buffers on the short ones.
type Engine struct {
	Logger hclog.Logger

	// UseFixedBuffers inserts FixedBuffer units, whose amount is a build time
	// parameter instead of a config register.
	UseFixedBuffers bool
}

func New(logger hclog.Logger) *Engine {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Engine{Logger: logger}
}

// latency is the number of cycles between an instance starting and port
// producing its value.
func latency(a *ir.Accelerator, inst *ir.Instance, port int) int {
	lat := a.Decl(inst).OutputLatencies[port]
	if cat := a.Catalog(); inst.Decl == cat.Buffer || inst.Decl == cat.FixedBuffer {
		lat += inst.BufferAmount
	}
	return lat
}

func arrival(a *ir.Accelerator, stages []int, e *ir.Edge) int {
	out := a.Instance(e.Out.Inst)
	return stages[e.Out.Inst] + latency(a, out, e.Out.Port) + e.Delay
}

func expected(a *ir.Accelerator, stages []int, e *ir.Edge) int {
	in := a.Instance(e.In.Inst)
	return stages[e.In.Inst] + a.Decl(in).InputDelays[e.In.Port]
}

// Stages computes, for every instance, the earliest cycle at which all of
// its inputs are available. The result is indexed by InstanceID.
func Stages(a *ir.Accelerator) ([]int, error) {
	order, err := a.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	info := a.Info()
	stages := make([]int, len(order))
	for _, id := range order {
		inst := a.Instance(id)
		d := a.Decl(inst)
		s := 0
		for port, edges := range info[id].Inputs {
			for _, e := range edges {
				if v := arrival(a, stages, e) - d.InputDelays[port]; v > s {
					s = v
				}
			}
		}
		stages[id] = s
	}
	return stages, nil
}

// FixDelays inserts a buffer on every edge that delivers its value before the
// consumer needs it, then records the start stage of each instance in
// BaseDelay. It returns the number of buffers inserted.
func (e *Engine) FixDelays(a *ir.Accelerator) (int, error) {
	stages, err := Stages(a)
	if err != nil {
		return 0, err
	}

	inserted := 0
	edges := append([]*ir.Edge(nil), a.Edges()...)
	for _, edge := range edges {
		slack := expected(a, stages, edge) - arrival(a, stages, edge)
		if slack <= 0 {
			continue
		}
		if err := e.insertBuffer(a, edge, slack); err != nil {
			return inserted, err
		}
		inserted++
	}

	if stages, err = Stages(a); err != nil {
		return inserted, err
	}
	for _, inst := range a.Instances() {
		inst.BaseDelay = stages[inst.ID]
	}
	if err := Verify(a); err != nil {
		return inserted, err
	}
	e.Logger.Debug("delays fixed", "circuit", a.Name, "buffers", inserted)
	return inserted, nil
}

func (e *Engine) insertBuffer(a *ir.Accelerator, edge *ir.Edge, amount int) error {
	cat := a.Catalog()
	decl := cat.Get(cat.Buffer)
	if e.UseFixedBuffers {
		decl = cat.Get(cat.FixedBuffer)
	}

	buf, err := a.CreateInstance(decl, bufferName(a))
	if err != nil {
		return err
	}
	buf.BufferAmount = amount
	if decl.ID == cat.Buffer {
		a.Config(buf)[0] = amount
	}

	out, in := a.Instance(edge.Out.Inst), a.Instance(edge.In.Inst)
	a.RemoveEdge(edge)
	if _, err := a.Connect(out, edge.Out.Port, buf, 0, edge.Delay); err != nil {
		return err
	}
	if _, err := a.Connect(buf, 0, in, edge.In.Port, 0); err != nil {
		return err
	}
	e.Logger.Debug("buffer inserted", "circuit", a.Name, "buffer", buf.Name,
		"from", out.Name, "to", in.Name, "port", edge.In.Port, "amount", amount)
	return nil
}

func bufferName(a *ir.Accelerator) string {
	used := make(map[string]bool)
	for _, inst := range a.Instances() {
		used[inst.Name] = true
	}
	for i := 0; ; i++ {
		if name := fmt.Sprintf("buffer%d", i); !used[name] {
			return name
		}
	}
}

// Verify checks that every input of every instance arrives exactly when the
// instance expects it.
func Verify(a *ir.Accelerator) error {
	stages, err := Stages(a)
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, edge := range a.Edges() {
		got, want := arrival(a, stages, edge), expected(a, stages, edge)
		if got != want {
			in := a.Instance(edge.In.Inst)
			result = multierror.Append(result, ir.Structuralf(in.Name, a.Decl(in).Name,
				"unsatisfiable delay on port %d: arrives at stage %d, needed at %d", edge.In.Port, got, want))
		}
	}
	return result.ErrorOrNil()
}

// SetDelayRecursive programs the delay registers of every unit of the
// hierarchy from the balanced start stages, and the amount register of
// every buffer.
func SetDelayRecursive(a *ir.Accelerator) {
	it := a.Iterate()
	for n := it.Current(); n != nil; n = it.Skip() {
		setDelay(n, 0)
	}
}

func setDelay(n *ir.Node, delay int) {
	cat := n.Top.Catalog()
	switch n.Inst.Decl {
	case cat.Buffer:
		n.Config()[0] = n.Inst.BufferAmount
		return
	case cat.FixedBuffer:
		return
	}

	d := n.Decl()
	total := n.Inst.BaseDelay + delay
	if d.Iterative() != nil && d.NumDelays > 0 {
		n.Delay()[0] = total
	}
	if below := n.Below(); below != nil {
		for c := below.Current(); c != nil; c = below.Skip() {
			setDelay(c, total)
		}
		return
	}
	if d.NumDelays > 0 {
		n.Delay()[0] = total
	}
}
