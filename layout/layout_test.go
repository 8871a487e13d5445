package layout_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fexolm/versat/config"
	"github.com/fexolm/versat/ir"
	"github.com/fexolm/versat/layout"
	"github.com/fexolm/versat/units"
)

func memories(t *testing.T) *ir.Accelerator {
	t.Helper()
	cat := ir.NewCatalog()
	if err := units.Register(cat); err != nil {
		t.Fatal(err)
	}
	a := ir.NewAccelerator(cat, "versat")
	for _, u := range []struct{ decl, name string }{
		{units.MemName, "m0"},
		{units.MemName, "m1"},
		{units.ConstName, "k"},
	} {
		if _, err := a.CreateInstance(cat.MustLookup(u.decl), u.name); err != nil {
			t.Fatal(err)
		}
	}
	return a
}

func TestCompute(t *testing.T) {
	v, err := layout.Compute(memories(t), config.Default())
	if err != nil {
		t.Fatal(err)
	}
	type widths struct {
		NumberUnits, Configs, NumConfigurations, NumStates    int
		ConfigBits, StateBits, ConfigStateBits, ConfigBusBits int
		UnitSelectBits, InUnitBits, DecisionBit, AddressSize  int
	}
	got := widths{
		v.NumberUnits, v.Configs, v.NumConfigurations, v.NumStates,
		v.ConfigBits, v.StateBits, v.ConfigStateBits, v.ConfigBusBits,
		v.UnitSelectBits, v.InUnitBits, v.DecisionBit, v.AddressSize,
	}
	want := widths{
		NumberUnits: 3, Configs: 3, NumConfigurations: 4, NumStates: 1,
		ConfigBits: 2, StateBits: 0, ConfigStateBits: 2, ConfigBusBits: 34,
		UnitSelectBits: 1, InUnitBits: 8, DecisionBit: 9, AddressSize: 10,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("layout mismatch (-want +got):\n%s", diff)
	}

	names := make([]string, len(v.Mapped))
	for i, m := range v.Mapped {
		names[i] = m.Name
	}
	if diff := cmp.Diff([]string{"m0", "m1"}, names); diff != "" {
		t.Errorf("mapped units (-want +got):\n%s", diff)
	}
}

func TestComputeByteAddressable(t *testing.T) {
	opts := config.Default()
	opts.ByteAddressable = true
	v, err := layout.Compute(memories(t), opts)
	if err != nil {
		t.Fatal(err)
	}
	if v.InUnitBits != 10 || v.AddressSize != 12 {
		t.Errorf("in unit bits %d, address size %d", v.InUnitBits, v.AddressSize)
	}
}

func TestEncodeDecode(t *testing.T) {
	v, err := layout.Compute(memories(t), config.Default())
	if err != nil {
		t.Fatal(err)
	}

	addr, err := v.EncodeMemory(1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if addr != 773 {
		t.Errorf("EncodeMemory(1, 5) = %d, want 773", addr)
	}
	if diff := cmp.Diff(layout.Address{Memory: true, Unit: 1, Offset: 5}, v.Decode(addr)); diff != "" {
		t.Errorf("decode (-want +got):\n%s", diff)
	}

	reg, err := v.EncodeRegister(3)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(layout.Address{Register: 3}, v.Decode(reg)); diff != "" {
		t.Errorf("decode register (-want +got):\n%s", diff)
	}

	first, last := v.Range(1)
	if first != 768 || last != 1023 {
		t.Errorf("range of unit 1 = %d..%d", first, last)
	}

	for _, bad := range []struct{ unit, offset int }{{2, 0}, {-1, 0}, {0, 256}, {0, -1}} {
		if _, err := v.EncodeMemory(bad.unit, bad.offset); !ir.IsStructural(err) {
			t.Errorf("EncodeMemory(%d, %d): %v", bad.unit, bad.offset, err)
		}
	}
	if _, err := v.EncodeRegister(4); !ir.IsStructural(err) {
		t.Errorf("EncodeRegister(4): %v", err)
	}
}

func TestAddressTooWide(t *testing.T) {
	cat := ir.NewCatalog()
	wide, err := cat.Register(ir.Declaration{
		Name:           "Wide",
		Body:           &ir.PrimitiveBody{},
		IsMemoryMapped: true,
		MemoryMapBits:  32,
	})
	if err != nil {
		t.Fatal(err)
	}
	a := ir.NewAccelerator(cat, "versat")
	if _, err := a.CreateInstance(wide, "w"); err != nil {
		t.Fatal(err)
	}
	if _, err := layout.Compute(a, config.Default()); !ir.IsInternal(err) {
		t.Errorf("expected internal error, got %v", err)
	}
}

func TestBitRanges(t *testing.T) {
	wires := []ir.Wire{{Name: "a", BitSize: 1}, {Name: "b", BitSize: 32}, {Name: "c", BitSize: 8}}
	want := []layout.BitRange{{Lo: 0, Hi: 0}, {Lo: 1, Hi: 32}, {Lo: 33, Hi: 40}}
	if diff := cmp.Diff(want, layout.BitRanges(wires)); diff != "" {
		t.Errorf("ranges (-want +got):\n%s", diff)
	}
	if got := layout.TotalBits(wires); got != 41 {
		t.Errorf("total bits %d", got)
	}
}

func TestWriteMemoryMap(t *testing.T) {
	v, err := layout.Compute(memories(t), config.Default())
	if err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	if err := layout.WriteMemoryMap(&b, v); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	for _, want := range []string{
		"10 bits",
		"DUMMMMMMMM",
		"unit select (2 units)",
		"0x200-0x2ff",
		"0x300-0x3ff",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("memory map lacks %q:\n%s", want, out)
		}
	}
}
