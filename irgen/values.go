package irgen

import (
	"github.com/fexolm/versat/ir"
)

// UnitValues are the aggregate counts of a circuit seen as one unit.
type UnitValues struct {
	Inputs  int
	Outputs int
	// TotalOutputs adds the output slots of every nested unit to Outputs.
	TotalOutputs int

	Configs        int
	States         int
	Delays         int
	Statics        int
	IOs            int
	ExtraData      int
	ExternalMemory int

	IsMemoryMapped   bool
	MemoryMappedBits int

	DelayType      ir.DelayType
	ImplementsDone bool
}

// CalculateAcceleratorValues aggregates the counts of every instance of a.
// Static configs are not counted here, they are accounted for in Statics
// once per static group. Shared configs count once per group.
func CalculateAcceleratorValues(a *ir.Accelerator) UnitValues {
	val := UnitValues{
		Inputs:  a.NumInputs(),
		Outputs: a.NumOutputs(),
	}
	val.TotalOutputs = val.Outputs

	shared := make(map[int]bool)
	for _, inst := range a.Instances() {
		d := a.Decl(inst)
		switch {
		case inst.IsStatic:
		case inst.SharedEnable && shared[inst.SharedIndex]:
		default:
			if inst.SharedEnable {
				shared[inst.SharedIndex] = true
			}
			val.Configs += len(d.Configs)
		}

		val.States += len(d.States)
		val.Delays += d.NumDelays
		val.IOs += d.NumIOs
		val.ExtraData += d.ExtraDataSize
		val.ExternalMemory += d.ExternalMemoryWords
		val.TotalOutputs += d.TotalOutputs

		if d.Type() != ir.Special {
			val.DelayType |= d.DelayType
			val.ImplementsDone = val.ImplementsDone || d.ImplementsDone
		}
	}

	val.Statics = staticTable(a, ir.NoDecl).Size()

	_, extent := ir.MemoryMapOffsets(a)
	if extent > 0 {
		val.IsMemoryMapped = true
		val.MemoryMappedBits = ir.Log2Ceil(extent)
	}
	return val
}

// staticTable merges the static groups of every composite in a, offset
// adjusted, and then the groups of a's own static instances keyed under
// owner.
func staticTable(a *ir.Accelerator, owner ir.DeclID) *ir.StaticTable {
	tab := ir.NewStaticTable()
	for _, inst := range a.Instances() {
		comp := a.Decl(inst).Composite()
		if comp == nil {
			continue
		}
		for _, id := range comp.StaticUnits.Keys() {
			data, _ := comp.StaticUnits.Get(id)
			tab.InsertIfNotExist(id, ir.StaticData{Configs: data.Configs, Offset: tab.Size()})
		}
	}
	for _, inst := range a.Instances() {
		if !inst.IsStatic {
			continue
		}
		id := ir.StaticID{Name: inst.Name, Parent: owner}
		tab.InsertIfNotExist(id, ir.StaticData{Configs: a.Decl(inst).Configs, Offset: tab.Size()})
	}
	return tab
}
