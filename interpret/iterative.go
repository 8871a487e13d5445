package interpret

import (
	"github.com/fexolm/versat/ir"
)

func insideIterative(n *ir.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Decl().Iterative() != nil {
			return true
		}
	}
	return false
}

// startIterative gives the instance private copies of the initial and loop
// circuits, so that instances of one declaration do not share state.
func (i *Interpreter) startIterative(n *ir.Node, it *ir.IterativeBody) error {
	name := n.FullName()
	initial, err := it.Initial.Copy(name + "_initial")
	if err != nil {
		return err
	}
	loop, err := it.ForLoop.Copy(name + "_loop")
	if err != nil {
		return err
	}
	rt := &iterRuntime{
		initial: NewInterpreter(initial, i.logger.Named(name)),
		loop:    NewInterpreter(loop, i.logger.Named(name)),
	}
	if err := rt.initial.Start(); err != nil {
		return err
	}
	if err := rt.loop.Start(); err != nil {
		return err
	}
	i.iters[name] = rt
	i.done[name] = false
	ir.SetExtraInt(n.ExtraData(), 0, 0)
	return nil
}

// runIterative advances the iteration state machine by one cycle. The
// counter waits for the unit's delay, then the initial circuit runs once
// (priming) and the loop circuit runs, fed back through the data instance,
// until latency runs are done. The counter then parks at -1 and the outputs
// hold.
func (i *Interpreter) runIterative(n *ir.Node, it *ir.IterativeBody, inputs []int) error {
	name := n.FullName()
	rt := i.iters[name]
	counter := ir.ExtraInt(n.ExtraData(), 0)
	delay := 0
	if dl := n.Delay(); len(dl) > 0 {
		delay = dl[0]
	}

	var last *Interpreter
	switch {
	case counter < 0:
		return nil
	case counter < delay:
		counter++
	case counter == delay:
		syncUnit(n, rt.initial.accel, it.Unit)
		setInputs(rt.initial.accel, inputs)
		if err := rt.initial.Step(); err != nil {
			return err
		}
		handoff(rt.initial.accel, rt.loop.accel)
		last = rt.initial
		counter++
	default:
		syncUnit(n, rt.loop.accel, it.Unit)
		setInputs(rt.loop.accel, inputs)
		if err := rt.loop.Step(); err != nil {
			return err
		}
		last = rt.loop
		counter++
	}

	if last != nil && counter == delay+it.Latency {
		out := n.Output()
		for q := 0; q < n.Decl().NumOutputs(); q++ {
			out[q] = last.accel.OutputValue(q)
		}
		i.done[name] = true
		counter = -1
		i.logger.Trace("iterative settled", "unit", name, "cycle", i.cycle)
	}
	ir.SetExtraInt(n.ExtraData(), 0, counter)
	return nil
}

// syncUnit copies the registers programmed for the iterative instance n into
// every instance of the repeated unit inside stage. State stays with the
// stage.
func syncUnit(n *ir.Node, stage *ir.Accelerator, unit ir.DeclID) {
	for _, inst := range stage.Instances() {
		if inst.Decl == unit {
			syncNodes(n.Children(), stage.Node(inst).Children())
		}
	}
}

func syncNodes(from, to []*ir.Node) {
	for id, f := range from {
		if f == nil || id >= len(to) || to[id] == nil {
			continue
		}
		t := to[id]
		copy(t.Config(), f.Config())
		copy(t.Delay(), f.Delay())
		syncNodes(f.Children(), t.Children())
	}
}

func setInputs(a *ir.Accelerator, inputs []int) {
	for port, v := range inputs {
		if a.InputInstance(port) != nil {
			_ = a.SetInputValue(port, v)
		}
	}
}

func instanceNamed(a *ir.Accelerator, name string) *ir.Instance {
	for _, inst := range a.Instances() {
		if inst.Name == name {
			return inst
		}
	}
	return nil
}

// handoff moves the values of the data instance of one stage into the next.
func handoff(from, to *ir.Accelerator) {
	src, dst := instanceNamed(from, ir.DataInstanceName), instanceNamed(to, ir.DataInstanceName)
	if src == nil || dst == nil {
		return
	}
	copy(to.Output(dst), from.Output(src))
	copy(to.StoredOutput(dst), from.Output(src))
}
