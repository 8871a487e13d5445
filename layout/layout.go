package layout

import (
	"github.com/fexolm/versat/config"
	"github.com/fexolm/versat/ir"
)

// MaxAddressSize is the width of the bus the accelerator is attached to.
const MaxAddressSize = 32

// byteAddressBits are added to every in unit address when the bus addresses
// bytes instead of words.
const byteAddressBits = 2

type MappedUnit struct {
	Name  string
	Decl  string
	Inst  ir.InstanceID
	Index int
	Bits  int
	Words int
}

// Values is everything about the top level accelerator that generated code
// needs to size and decode its address space.
type Values struct {
	NumberUnits  int
	TotalOutputs int

	Configs        int
	Statics        int
	Delays         int
	States         int
	IOs            int
	ExtraData      int
	ExternalMemory int

	// NumConfigurations and NumStates include the accelerator control
	// register at index 0.
	NumConfigurations int
	NumStates         int

	ConfigBits      int
	StateBits       int
	ConfigStateBits int

	// Widths of the flat config (configs, statics and delays) and state
	// busses.
	ConfigBusBits int
	StateBusBits  int

	Mapped            []MappedUnit
	UnitSelectBits    int
	InUnitBits        int
	MemoryMappingBits int

	// DecisionBit is the top address bit. It is set for memory mapped
	// accesses and clear for config and state accesses.
	DecisionBit int
	AddressSize int

	ByteAddressable bool
}

// Compute derives the global layout of top. It fails with an internal error
// when the arenas of top disagree with its offset tables or when the address
// space does not fit the bus.
func Compute(top *ir.Accelerator, opts config.Options) (Values, error) {
	offs := ir.CalculateAllOffsets(top)
	for k := ir.Kind(0); k < ir.NumKinds; k++ {
		if got := top.ArenaSize(k); got != offs[k].Max {
			return Values{}, ir.Internalf("%s: %s arena holds %d elements, offsets end at %d", top.Name, k, got, offs[k].Max)
		}
	}
	if got := len(top.StaticArena()); got != top.Statics().Size() {
		return Values{}, ir.Internalf("%s: static arena holds %d registers, static groups need %d", top.Name, got, top.Statics().Size())
	}

	v := Values{
		TotalOutputs:    offs[ir.KindOutput].Max,
		Configs:         offs[ir.KindConfig].Max,
		Statics:         top.Statics().Size(),
		Delays:          offs[ir.KindDelay].Max,
		States:          offs[ir.KindState].Max,
		ExtraData:       offs[ir.KindExtraData].Max,
		ExternalMemory:  offs[ir.KindExternalMemory].Max,
		ByteAddressable: opts.ByteAddressable,
	}
	_ = top.Walk(func(n *ir.Node) error {
		d := n.Decl()
		if d.Type() == ir.Single {
			v.NumberUnits++
		}
		if n.Level == 0 {
			v.IOs += d.NumIOs
		}
		return nil
	})

	v.ConfigBusBits, v.StateBusBits = busBits(top)
	v.NumConfigurations = 1 + v.Configs + v.Statics + v.Delays
	v.NumStates = 1 + v.States
	v.ConfigBits = ir.Log2Ceil(v.NumConfigurations)
	v.StateBits = ir.Log2Ceil(v.NumStates)
	v.ConfigStateBits = max(v.ConfigBits, v.StateBits)

	for _, inst := range top.Instances() {
		d := top.Decl(inst)
		if !d.IsMemoryMapped {
			continue
		}
		bits := d.MemoryMapBits
		if opts.ByteAddressable {
			bits += byteAddressBits
		}
		v.Mapped = append(v.Mapped, MappedUnit{
			Name:  inst.Name,
			Decl:  d.Name,
			Inst:  inst.ID,
			Index: len(v.Mapped),
			Bits:  bits,
			Words: d.MemoryMapWords(),
		})
		v.InUnitBits = max(v.InUnitBits, bits)
	}
	if len(v.Mapped) > 0 {
		v.UnitSelectBits = ir.Log2Ceil(len(v.Mapped))
		v.MemoryMappingBits = v.UnitSelectBits + v.InUnitBits
	}

	v.DecisionBit = max(v.ConfigStateBits, v.MemoryMappingBits)
	v.AddressSize = v.DecisionBit + 1
	if v.AddressSize > MaxAddressSize {
		return Values{}, ir.Internalf("%s: address space needs %d bits, bus has %d", top.Name, v.AddressSize, MaxAddressSize)
	}
	return v, nil
}

func busBits(top *ir.Accelerator) (config, state int) {
	shared := make(map[int]bool)
	for _, inst := range top.Instances() {
		d := top.Decl(inst)
		state += TotalBits(d.States)
		config += d.NumDelays * ir.DelayBitSize
		if inst.IsStatic || (inst.SharedEnable && shared[inst.SharedIndex]) {
			continue
		}
		if inst.SharedEnable {
			shared[inst.SharedIndex] = true
		}
		config += TotalBits(d.Configs)
	}
	for _, id := range top.Statics().Keys() {
		data, _ := top.Statics().Get(id)
		config += TotalBits(data.Configs)
	}
	return config, state
}

type Address struct {
	Memory   bool
	Unit     int
	Offset   int
	Register int
}

// EncodeMemory builds the address of word offset inside mapped unit unit.
func (v Values) EncodeMemory(unit, offset int) (uint32, error) {
	if unit < 0 || unit >= len(v.Mapped) {
		return 0, ir.Structuralf("", "", "unit %d out of range [0,%d)", unit, len(v.Mapped))
	}
	if offset < 0 || offset >= 1<<uint(v.InUnitBits) {
		return 0, ir.Structuralf(v.Mapped[unit].Name, v.Mapped[unit].Decl, "offset %d does not fit %d bits", offset, v.InUnitBits)
	}
	return 1<<uint(v.DecisionBit) | uint32(unit)<<uint(v.InUnitBits) | uint32(offset), nil
}

// EncodeRegister builds the address of a config or state register.
func (v Values) EncodeRegister(reg int) (uint32, error) {
	if reg < 0 || reg >= 1<<uint(v.ConfigStateBits) {
		return 0, ir.Structuralf("", "", "register %d does not fit %d bits", reg, v.ConfigStateBits)
	}
	return uint32(reg), nil
}

// Decode splits addr into its fields using only the computed widths.
func (v Values) Decode(addr uint32) Address {
	if addr>>uint(v.DecisionBit)&1 == 1 {
		return Address{
			Memory: true,
			Unit:   int(addr>>uint(v.InUnitBits)) & (1<<uint(v.UnitSelectBits) - 1),
			Offset: int(addr) & (1<<uint(v.InUnitBits) - 1),
		}
	}
	return Address{Register: int(addr) & (1<<uint(v.ConfigStateBits) - 1)}
}

// Range returns the first and last address of a mapped unit.
func (v Values) Range(unit int) (uint32, uint32) {
	m := v.Mapped[unit]
	first, _ := v.EncodeMemory(unit, 0)
	return first, first + uint32(1)<<uint(m.Bits) - 1
}

type BitRange struct {
	Lo int
	Hi int
}

func (r BitRange) Width() int { return r.Hi - r.Lo + 1 }

// BitRanges packs wires one after the other starting at bit 0.
func BitRanges(wires []ir.Wire) []BitRange {
	res := make([]BitRange, len(wires))
	lo := 0
	for i, w := range wires {
		res[i] = BitRange{Lo: lo, Hi: lo + w.BitSize - 1}
		lo += w.BitSize
	}
	return res
}

// TotalBits is the width of the bus that BitRanges packs wires into.
func TotalBits(wires []ir.Wire) int {
	n := 0
	for _, w := range wires {
		n += w.BitSize
	}
	return n
}
