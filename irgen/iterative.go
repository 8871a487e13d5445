package irgen

import (
	"github.com/pkg/errors"

	"github.com/fexolm/versat/ir"
)

// iterativeExtraData is the counter an iterative unit keeps in front of the
// extra data of the unit it repeats.
const iterativeExtraData = 4

type IterativeUnit struct {
	Name     string
	UnitName string

	// Initial runs once with the unit inputs, ForLoop repeats until Latency
	// cycles have passed. Both contain an instance of Unit.
	Initial *ir.Accelerator
	ForLoop *ir.Accelerator
	Unit    *ir.Declaration

	Latency  int
	DataSize int
}

// RegisterIterativeUnit registers a unit that reuses one composite over
// several cycles. The new declaration has the layout of the repeated unit
// plus one delay register and an iteration counter.
func (c *Compiler) RegisterIterativeUnit(u IterativeUnit) (*ir.Declaration, error) {
	if err := c.validateIterative(u); err != nil {
		return nil, err
	}
	combBody := u.Unit.Composite()

	var circuits [4]*ir.Accelerator
	for i, a := range []*ir.Accelerator{combBody.BaseCircuit, combBody.FixedCircuit, u.Initial, u.ForLoop} {
		cp, err := a.Copy(u.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "iterative %s", u.Name)
		}
		circuits[i] = cp
	}

	body := &ir.IterativeBody{
		CompositeBody: ir.CompositeBody{
			BaseCircuit:   circuits[0],
			FixedCircuit:  circuits[1],
			Offsets:       shiftOffsets(combBody.Offsets),
			StaticUnits:   combBody.StaticUnits,
			DefaultConfig: append([]int(nil), combBody.DefaultConfig...),
			DefaultStatic: append([]int(nil), combBody.DefaultStatic...),
		},
		UnitName: u.UnitName,
		Initial:  circuits[2],
		ForLoop:  circuits[3],
		Unit:     u.Unit.ID,
		Latency:  u.Latency,
		DataSize: u.DataSize,
	}

	decl := *u.Unit
	decl.Name = u.Name
	decl.Body = body
	decl.Configs = append([]ir.Wire(nil), u.Unit.Configs...)
	decl.States = append([]ir.Wire(nil), u.Unit.States...)
	decl.NumDelays = 1 + u.Unit.NumDelays
	decl.ExtraDataSize = u.Unit.ExtraDataSize + iterativeExtraData
	decl.InputDelays = make([]int, u.Unit.NumInputs())
	decl.OutputLatencies = make([]int, u.Unit.NumOutputs())
	for i := range decl.OutputLatencies {
		decl.OutputLatencies[i] = u.Latency
	}
	decl.ImplementsDone = true
	decl.Behavior = ir.Behavior{}

	reg, err := c.Catalog.Register(decl)
	if err != nil {
		return nil, err
	}
	c.Logger.Named("register").Info("registered iterative", "unit", u.Name, "repeats", u.Unit.Name, "latency", u.Latency)
	if err := c.emit(reg); err != nil {
		return reg, errors.Wrapf(err, "emit %s", u.Name)
	}
	return reg, nil
}

func (c *Compiler) validateIterative(u IterativeUnit) error {
	if !ir.CheckValidName(u.Name) {
		return ir.Structuralf("", u.Name, "invalid declaration name")
	}
	if u.Unit == nil || u.Unit.Type() != ir.Composite {
		return ir.Structuralf("", u.Name, "iterative unit must repeat a composite")
	}
	if u.Latency < 1 {
		return ir.Structuralf("", u.Name, "latency %d, must be at least 1", u.Latency)
	}
	for _, a := range []*ir.Accelerator{u.Initial, u.ForLoop} {
		if a == nil {
			return ir.Structuralf("", u.Name, "missing initial or loop circuit")
		}
		if !contains(a, u.Unit.ID) {
			return ir.Structuralf(a.Name, u.Name, "no instance of %s", u.Unit.Name)
		}
		if !hasInstance(a, ir.DataInstanceName) {
			return ir.Structuralf(a.Name, u.Name, "no %s instance to carry values between iterations", ir.DataInstanceName)
		}
	}
	return nil
}

func contains(a *ir.Accelerator, id ir.DeclID) bool {
	for _, inst := range a.Instances() {
		if inst.Decl == id {
			return true
		}
	}
	return false
}

func hasInstance(a *ir.Accelerator, name string) bool {
	for _, inst := range a.Instances() {
		if inst.Name == name {
			return true
		}
	}
	return false
}

// shiftOffsets makes room for the iterative unit's own delay register and
// counter at the start of its delay and extra data windows.
func shiftOffsets(offs ir.Offsets) ir.Offsets {
	var res ir.Offsets
	for k := ir.Kind(0); k < ir.NumKinds; k++ {
		shift := 0
		switch k {
		case ir.KindDelay:
			shift = 1
		case ir.KindExtraData:
			shift = iterativeExtraData
		}
		tab := ir.OffsetTable{Offsets: make([]int, len(offs[k].Offsets)), Max: offs[k].Max + shift}
		for i, off := range offs[k].Offsets {
			if off >= 0 {
				off += shift
			}
			tab.Offsets[i] = off
		}
		res[k] = tab
	}
	return res
}
