package units_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fexolm/versat/ir"
	"github.com/fexolm/versat/units"
)

func setup(t *testing.T, decl string) (*ir.Declaration, *ir.Node) {
	t.Helper()
	cat := ir.NewCatalog()
	if err := units.Register(cat); err != nil {
		t.Fatal(err)
	}
	a := ir.NewAccelerator(cat, "test")
	d := cat.MustLookup(decl)
	inst, err := a.CreateInstance(d, "u")
	if err != nil {
		t.Fatal(err)
	}
	return d, a.Node(inst)
}

func TestRegisterTwice(t *testing.T) {
	cat := ir.NewCatalog()
	if err := units.Register(cat); err != nil {
		t.Fatal(err)
	}
	if err := units.Register(cat); !ir.IsStructural(err) {
		t.Errorf("expected structural error, got %v", err)
	}
}

func TestOperations(t *testing.T) {
	tests := []struct {
		op   string
		in   []int
		want int
	}{
		{"NOT", []int{0}, -1},
		{"ADD", []int{2, 3}, 5},
		{"SUB", []int{2, 3}, -1},
		{"XOR", []int{6, 3}, 5},
		{"AND", []int{6, 3}, 2},
		{"OR", []int{6, 3}, 7},
		{"SHL", []int{1, 31}, math.MinInt32},
		{"SHR", []int{-1, 28}, 15},
		{"RHR", []int{1, 1}, math.MinInt32},
		{"RHL", []int{math.MinInt32, 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			d, n := setup(t, tt.op)
			if !d.IsOperation() {
				t.Errorf("%s is not an operation", tt.op)
			}
			got := d.Behavior.Update(n, tt.in)
			if diff := cmp.Diff([]int{tt.want}, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
			d.Behavior.Init(n)
			if !n.Done {
				t.Errorf("init did not mark the unit done")
			}
		})
	}
}

func TestLiteralAndConst(t *testing.T) {
	d, n := setup(t, units.LiteralName)
	n.Inst.Literal = 12
	if got := d.Behavior.Update(n, nil); got[0] != 12 {
		t.Errorf("literal = %d", got[0])
	}

	d, n = setup(t, units.ConstName)
	n.Config()[0] = 9
	if got := d.Behavior.Update(n, nil); got[0] != 9 {
		t.Errorf("const = %d", got[0])
	}
}

func TestRegLatchesAtDelay(t *testing.T) {
	d, n := setup(t, units.RegName)
	n.Delay()[0] = 2
	n.State()[0] = 4

	if got := d.Behavior.Start(n); got[0] != 4 {
		t.Errorf("start output = %d, want current value 4", got[0])
	}
	if n.Done {
		t.Fatal("enabled register done before latching")
	}
	var outs []int
	for cycle := 0; cycle < 4; cycle++ {
		outs = append(outs, d.Behavior.Update(n, []int{7 + cycle})[0])
	}
	if diff := cmp.Diff([]int{4, 4, 9, 9}, outs); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}
	if !n.Done {
		t.Errorf("register not done after latching")
	}
}

func TestRegDisabled(t *testing.T) {
	d, n := setup(t, units.RegName)
	n.Config()[0] = 1
	d.Behavior.Start(n)
	if !n.Done {
		t.Errorf("disabled register must be done from the start")
	}
	d.Behavior.Update(n, []int{5})
	if n.State()[0] != 0 {
		t.Errorf("disabled register latched %d", n.State()[0])
	}
}

func TestMem(t *testing.T) {
	d, n := setup(t, units.MemName)
	if !d.IsMemoryMapped || d.MemoryMapWords() != 256 {
		t.Fatalf("Mem maps %d words", d.MemoryMapWords())
	}
	d.Behavior.MemAccess(n, 3, 30, true)
	if got := d.Behavior.MemAccess(n, 3, 0, false); got != 30 {
		t.Errorf("read back %d", got)
	}
	if got := d.Behavior.Update(n, []int{3, 99}); got[0] != 30 {
		t.Errorf("datapath read %d", got[0])
	}

	n.Config()[0] = 1
	d.Behavior.Update(n, []int{256 + 4, 44})
	if got := n.ExternalMemory()[4]; got != 44 {
		t.Errorf("memory[4] = %d, want 44", got)
	}
}
