package irgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/fexolm/versat/ir"
)

// RegisterSubUnit turns circuit into a composite declaration named name and
// adds it to the catalog. circuit itself is left untouched: the declaration
// owns deep copies of it before and after delay balancing.
func (c *Compiler) RegisterSubUnit(name string, circuit *ir.Accelerator) (*ir.Declaration, error) {
	log := c.Logger.Named("register").With("unit", name)
	if err := c.validate(name, circuit); err != nil {
		return nil, err
	}

	comb := IsCombinational(circuit)
	work := circuit
	if comb {
		flat, err := Flatten(circuit, name)
		if err != nil {
			return nil, errors.Wrapf(err, "flatten %s", name)
		}
		log.Debug("flattened", "before", circuit.Len(), "after", flat.Len())
		work = flat
	}

	base, err := work.Copy(name)
	if err != nil {
		return nil, err
	}
	fixed, err := work.Copy(name)
	if err != nil {
		return nil, err
	}
	if err := fixed.Reorganize(); err != nil {
		return nil, err
	}
	buffers, err := c.retime.FixDelays(fixed)
	if err != nil {
		return nil, errors.Wrapf(err, "balance %s", name)
	}
	if err := fixed.Reorganize(); err != nil {
		return nil, err
	}
	warnMultipleInputs(log, fixed)

	id := c.Catalog.NextID()
	val := CalculateAcceleratorValues(fixed)
	statics := staticTable(fixed, id)
	offs := ir.CalculateAllOffsets(fixed)
	if err := checkOffsets(name, offs, val); err != nil {
		return nil, err
	}

	body := &ir.CompositeBody{
		BaseCircuit:   base,
		FixedCircuit:  fixed,
		Offsets:       offs,
		StaticUnits:   statics,
		DefaultConfig: defaultConfig(fixed, offs),
		Combinational: comb,
	}
	if body.DefaultStatic, err = defaultStatic(name, fixed, statics, id); err != nil {
		return nil, err
	}

	configs := configWires(fixed)
	if len(configs) != val.Configs {
		return nil, ir.Internalf("%s: %d config wires for %d config registers", name, len(configs), val.Configs)
	}

	decl, err := c.Catalog.Register(ir.Declaration{
		Name:                name,
		Body:                body,
		InputDelays:         inputDelays(fixed, val.Inputs),
		OutputLatencies:     outputLatencies(fixed, val.Outputs),
		TotalOutputs:        val.TotalOutputs,
		Configs:             configs,
		States:              stateWires(fixed),
		NumDelays:           val.Delays,
		NumStatics:          statics.Size(),
		NumIOs:              val.IOs,
		ExtraDataSize:       val.ExtraData,
		ExternalMemoryWords: val.ExternalMemory,
		IsMemoryMapped:      val.IsMemoryMapped,
		MemoryMapBits:       val.MemoryMappedBits,
		DelayType:           val.DelayType,
		ImplementsDone:      val.ImplementsDone,
	})
	if err != nil {
		return nil, err
	}
	if decl.ID != id {
		return nil, ir.Internalf("%s registered as %d, statics keyed under %d", name, decl.ID, id)
	}
	log.Info("registered", "id", decl.ID, "buffers", buffers, "configs", val.Configs,
		"states", val.States, "delays", val.Delays, "statics", statics.Size(), "combinational", comb)

	if err := c.emit(decl); err != nil {
		return decl, errors.Wrapf(err, "emit %s", name)
	}
	return decl, nil
}

func (c *Compiler) validate(name string, circuit *ir.Accelerator) error {
	var result *multierror.Error
	if !ir.CheckValidName(name) {
		result = multierror.Append(result, ir.Structuralf("", name, "invalid declaration name"))
	}
	if _, err := c.Catalog.Lookup(name); err == nil {
		result = multierror.Append(result, ir.Structuralf("", name, "declaration already registered"))
	}
	if circuit == nil {
		return multierror.Append(result, ir.Structuralf("", name, "no circuit"))
	}
	if circuit.Catalog() != c.Catalog {
		return multierror.Append(result, ir.Structuralf(circuit.Name, name, "circuit built against another catalog"))
	}

	ports := make(map[int]string)
	for _, inst := range circuit.Instances() {
		d := circuit.Decl(inst)
		if d == nil {
			result = multierror.Append(result, ir.Structuralf(inst.Name, "", "unresolved declaration %d", inst.Decl))
			continue
		}
		if inst.Decl != c.Catalog.Input {
			continue
		}
		if other, ok := ports[inst.PortIndex]; ok {
			result = multierror.Append(result, ir.Structuralf(inst.Name, d.Name,
				"input port %d already taken by %s", inst.PortIndex, other))
		}
		ports[inst.PortIndex] = inst.Name
	}
	for _, e := range circuit.Edges() {
		out, in := circuit.Instance(e.Out.Inst), circuit.Instance(e.In.Inst)
		if out == nil || in == nil {
			result = multierror.Append(result, ir.Structuralf(circuit.Name, name, "edge with a dangling endpoint"))
		}
	}
	return result.ErrorOrNil()
}

func warnMultipleInputs(log hclog.Logger, a *ir.Accelerator) {
	for id, info := range a.Info() {
		if info.MultipleSamePortInputs {
			log.Warn("multiple edges drive the same input port", "instance", a.Instance(ir.InstanceID(id)).Name)
		}
	}
}

func checkOffsets(name string, offs ir.Offsets, val UnitValues) error {
	want := [ir.NumKinds]int{
		ir.KindConfig:         val.Configs,
		ir.KindState:          val.States,
		ir.KindDelay:          val.Delays,
		ir.KindOutput:         val.TotalOutputs,
		ir.KindExtraData:      val.ExtraData,
		ir.KindExternalMemory: val.ExternalMemory,
	}
	var result *multierror.Error
	for k := ir.Kind(0); k < ir.NumKinds; k++ {
		if offs[k].Max != want[k] {
			result = multierror.Append(result, ir.Internalf("%s: %s offsets end at %d, aggregate count is %d",
				name, k, offs[k].Max, want[k]))
		}
	}
	return result.ErrorOrNil()
}

func inputDelays(a *ir.Accelerator, n int) []int {
	res := make([]int, n)
	for i := range res {
		if inst := a.InputInstance(i); inst != nil {
			res[i] = inst.BaseDelay
		}
	}
	return res
}

func outputLatencies(a *ir.Accelerator, n int) []int {
	res := make([]int, n)
	if out := a.OutputInstance(); out != nil {
		for i := range res {
			res[i] = out.BaseDelay
		}
	}
	return res
}

// configWires lists the config registers of a in offset order, renamed so
// that names are unique inside the composite.
func configWires(a *ir.Accelerator) []ir.Wire {
	var res []ir.Wire
	shared := make(map[int]bool)
	for _, inst := range a.Instances() {
		if inst.IsStatic {
			continue
		}
		if inst.SharedEnable {
			if shared[inst.SharedIndex] {
				continue
			}
			shared[inst.SharedIndex] = true
		}
		for _, w := range a.Decl(inst).Configs {
			res = append(res, ir.Wire{Name: fmt.Sprintf("%s_%02d", w.Name, len(res)), BitSize: w.BitSize})
		}
	}
	return res
}

func stateWires(a *ir.Accelerator) []ir.Wire {
	var res []ir.Wire
	for _, inst := range a.Instances() {
		for _, w := range a.Decl(inst).States {
			res = append(res, ir.Wire{Name: fmt.Sprintf("%s_%02d", w.Name, len(res)), BitSize: w.BitSize})
		}
	}
	return res
}

// defaultConfig snapshots the config registers when some instance asked for
// it, directly or through a composite that carries defaults of its own.
func defaultConfig(a *ir.Accelerator, offs ir.Offsets) []int {
	saved := false
	for _, inst := range a.Instances() {
		if inst.IsStatic {
			continue
		}
		comp := a.Decl(inst).Composite()
		saved = saved || inst.SavedConfiguration || (comp != nil && len(comp.DefaultConfig) > 0)
	}
	if !saved {
		return nil
	}
	res := make([]int, offs[ir.KindConfig].Max)
	for _, inst := range a.Instances() {
		if off := offs[ir.KindConfig].Of(inst.ID); off >= 0 {
			copy(res[off:], a.Config(inst))
		}
	}
	return res
}

// defaultStatic snapshots static values. Only one source may provide them:
// either one saved static instance or one composite type with static
// defaults.
func defaultStatic(name string, a *ir.Accelerator, tab *ir.StaticTable, owner ir.DeclID) ([]int, error) {
	res := make([]int, tab.Size())
	sources := make(map[string]bool)
	for _, inst := range a.Instances() {
		d := a.Decl(inst)
		if inst.IsStatic && inst.SavedConfiguration {
			data, _ := tab.Get(ir.StaticID{Name: inst.Name, Parent: owner})
			copy(res[data.Offset:data.Offset+len(data.Configs)], a.Config(inst))
			sources[inst.Name] = true
		}
		comp := d.Composite()
		if comp == nil || len(comp.DefaultStatic) == 0 || sources[d.Name] {
			continue
		}
		for _, key := range comp.StaticUnits.Keys() {
			child, _ := comp.StaticUnits.Get(key)
			mine, _ := tab.Get(key)
			if child.Offset < len(comp.DefaultStatic) {
				copy(res[mine.Offset:mine.Offset+len(child.Configs)], comp.DefaultStatic[child.Offset:])
			}
		}
		sources[d.Name] = true
	}

	switch len(sources) {
	case 0:
		return nil, nil
	case 1:
		return res, nil
	}
	names := make([]string, 0, len(sources))
	for s := range sources {
		names = append(names, s)
	}
	sort.Strings(names)
	return nil, ir.Structuralf(name, "", "more than one default static source: %s", strings.Join(names, ", "))
}
