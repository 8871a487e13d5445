package ir

import (
	"sort"
)

type NodeTag int

const (
	TagCompute NodeTag = iota
	TagSource
	TagSink
	TagSourceAndSink
)

func (t NodeTag) String() string {
	switch t {
	case TagSource:
		return "source"
	case TagSink:
		return "sink"
	case TagSourceAndSink:
		return "source_and_sink"
	}
	return "compute"
}

// InstanceInfo is the adjacency of one instance derived from the edges.
type InstanceInfo struct {
	Inputs  [][]*Edge
	Outputs []*Edge
	Tag     NodeTag

	// MultipleSamePortInputs is set when an input port is driven by more
	// than one edge. It is reported, not rejected.
	MultipleSamePortInputs bool
}

// Info derives the adjacency of every instance, indexed by InstanceID.
func (a *Accelerator) Info() []InstanceInfo {
	res := make([]InstanceInfo, len(a.instances))
	for id, inst := range a.instances {
		res[id].Inputs = make([][]*Edge, a.Decl(inst).NumInputs())
	}
	for _, e := range a.edges {
		in := &res[e.In.Inst]
		in.Inputs[e.In.Port] = append(in.Inputs[e.In.Port], e)
		if len(in.Inputs[e.In.Port]) > 1 {
			in.MultipleSamePortInputs = true
		}
		res[e.Out.Inst].Outputs = append(res[e.Out.Inst].Outputs, e)
	}
	for id := range res {
		hasIn := false
		for _, port := range res[id].Inputs {
			hasIn = hasIn || len(port) > 0
		}
		hasOut := len(res[id].Outputs) > 0
		switch {
		case !hasIn && !hasOut:
			res[id].Tag = TagSourceAndSink
		case !hasIn:
			res[id].Tag = TagSource
		case !hasOut:
			res[id].Tag = TagSink
		default:
			res[id].Tag = TagCompute
		}
	}
	return res
}

// TopologicalOrder orders instances so that producers come before
// consumers. Ties keep the current visitation order. A cycle is a structural
// error.
func (a *Accelerator) TopologicalOrder() ([]InstanceID, error) {
	return a.topologicalOrder(func(*Edge) bool { return false })
}

// CombinationalOrder is TopologicalOrder over the edges that carry a value
// within the same cycle. Edges leaving a registered output of a primitive
// unit are ignored, so feedback through registers is not a cycle.
func (a *Accelerator) CombinationalOrder() ([]InstanceID, error) {
	return a.topologicalOrder(func(e *Edge) bool {
		d := a.Decl(a.instances[e.Out.Inst])
		return d.Composite() == nil && d.OutputLatencies[e.Out.Port] > 0
	})
}

func (a *Accelerator) topologicalOrder(skip func(e *Edge) bool) ([]InstanceID, error) {
	pos := make([]int, len(a.instances))
	for i, id := range a.order {
		pos[id] = i
	}
	indeg := make([]int, len(a.instances))
	succ := make([][]InstanceID, len(a.instances))
	for _, e := range a.edges {
		if skip(e) {
			continue
		}
		indeg[e.In.Inst]++
		succ[e.Out.Inst] = append(succ[e.Out.Inst], e.In.Inst)
	}

	var ready []InstanceID
	for _, id := range a.order {
		if indeg[id] == 0 {
			ready = append(ready, id)
		}
	}
	res := make([]InstanceID, 0, len(a.instances))
	for len(ready) > 0 {
		sort.SliceStable(ready, func(i, j int) bool { return pos[ready[i]] < pos[ready[j]] })
		id := ready[0]
		ready = ready[1:]
		res = append(res, id)
		for _, s := range succ[id] {
			indeg[s]--
			if indeg[s] == 0 {
				ready = append(ready, s)
			}
		}
	}
	if len(res) != len(a.instances) {
		for _, id := range a.order {
			if indeg[id] > 0 {
				inst := a.instances[id]
				return nil, Structuralf(inst.Name, a.Decl(inst).Name, "instance is part of a cycle in %s", a.Name)
			}
		}
	}
	return res, nil
}

// Reorganize puts the instances in a stable order: circuit inputs by port,
// then every other instance topologically, then the circuit output.
func (a *Accelerator) Reorganize() error {
	topo, err := a.TopologicalOrder()
	if err != nil {
		return err
	}
	var inputs, body, outputs []InstanceID
	for _, id := range topo {
		switch inst := a.instances[id]; {
		case a.isInput(inst):
			inputs = append(inputs, id)
		case a.isOutput(inst):
			outputs = append(outputs, id)
		default:
			body = append(body, id)
		}
	}
	sort.SliceStable(inputs, func(i, j int) bool {
		return a.instances[inputs[i]].PortIndex < a.instances[inputs[j]].PortIndex
	})
	order := append(append(inputs, body...), outputs...)
	return a.Reorder(order)
}
