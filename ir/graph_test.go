package ir_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fexolm/versat/ir"
)

func names(a *ir.Accelerator) []string {
	var res []string
	for _, inst := range a.Instances() {
		res = append(res, inst.Name)
	}
	return res
}

func TestReorganize(t *testing.T) {
	cat := newCatalog(t)
	a := ir.NewAccelerator(cat, "test")
	out, _ := a.CreateOrGetOutput("out")
	add := mustCreate(t, a, "ADD", "add")
	in1, _ := a.CreateOrGetInput("in1", 1)
	in0, _ := a.CreateOrGetInput("in0", 0)
	mustConnect(t, a, in0, 0, add, 0, 0)
	mustConnect(t, a, in1, 0, add, 1, 0)
	mustConnect(t, a, add, 0, out, 0, 0)

	if err := a.Reorganize(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"in0", "in1", "add", "out"}, names(a)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestTopologicalOrderCycle(t *testing.T) {
	cat := newCatalog(t)
	a := ir.NewAccelerator(cat, "loop")
	x := mustCreate(t, a, "NOT", "x")
	y := mustCreate(t, a, "NOT", "y")
	mustConnect(t, a, x, 0, y, 0, 0)
	mustConnect(t, a, y, 0, x, 0, 0)

	if _, err := a.TopologicalOrder(); !ir.IsStructural(err) {
		t.Errorf("expected structural error, got %v", err)
	}
}

func TestInfo(t *testing.T) {
	cat := newCatalog(t)
	a := ir.NewAccelerator(cat, "test")
	src := mustCreate(t, a, "Const", "src")
	alone := mustCreate(t, a, "Const", "alone")
	mid := mustCreate(t, a, "NOT", "mid")
	sink := mustCreate(t, a, "ADD", "sink")
	mustConnect(t, a, src, 0, mid, 0, 0)
	mustConnect(t, a, mid, 0, sink, 0, 0)
	mustConnect(t, a, src, 0, sink, 1, 0)
	mustConnect(t, a, mid, 0, sink, 1, 0)

	info := a.Info()
	tags := []ir.NodeTag{info[src.ID].Tag, info[alone.ID].Tag, info[mid.ID].Tag, info[sink.ID].Tag}
	want := []ir.NodeTag{ir.TagSource, ir.TagSourceAndSink, ir.TagCompute, ir.TagSink}
	if diff := cmp.Diff(want, tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if !info[sink.ID].MultipleSamePortInputs {
		t.Errorf("port 1 of sink has two drivers")
	}
	if info[mid.ID].MultipleSamePortInputs {
		t.Errorf("mid reported multiple inputs")
	}
	if got := len(info[src.ID].Outputs); got != 2 {
		t.Errorf("src has %d output edges", got)
	}
}

func TestGetInstanceByName(t *testing.T) {
	cat := newCatalog(t)
	a := ir.NewAccelerator(cat, "test")
	mustCreate(t, a, "ADD", "x")
	mustCreate(t, a, "NOT", "inner.neg")
	mustCreate(t, a, "Const", "k/konst")

	tests := []struct {
		path []string
		want string
	}{
		{[]string{"x"}, "x"},
		{[]string{"x:ADD"}, "x"},
		{[]string{"inner", "neg"}, "inner.neg"},
		{[]string{"inner.neg:NOT"}, "inner.neg"},
		{[]string{"konst"}, "k/konst"},
		{[]string{"k"}, "k/konst"},
	}
	for _, tt := range tests {
		n, err := a.GetInstanceByName(tt.path...)
		if err != nil {
			t.Errorf("%v: %v", tt.path, err)
			continue
		}
		if n.Inst.Name != tt.want {
			t.Errorf("%v resolved to %s, want %s", tt.path, n.Inst.Name, tt.want)
		}
	}

	for _, bad := range [][]string{{"x:SUB"}, {"y"}, {"inner"}, {"x..y"}} {
		if _, err := a.GetInstanceByName(bad...); !ir.IsStructural(err) {
			t.Errorf("%v: expected structural error, got %v", bad, err)
		}
	}
}

func TestMemoryMapOffsets(t *testing.T) {
	cat := newCatalog(t)
	a := ir.NewAccelerator(cat, "test")
	m0 := mustCreate(t, a, "Mem", "m0")
	mustCreate(t, a, "NOT", "n")
	m1 := mustCreate(t, a, "Mem", "m1")

	offs, extent := ir.MemoryMapOffsets(a)
	if diff := cmp.Diff([]int{0, -1, 256}, offs); diff != "" {
		t.Errorf("offsets mismatch (-want +got):\n%s", diff)
	}
	if extent != 512 {
		t.Errorf("extent = %d, want 512", extent)
	}
	if got := len(a.ExternalMemory(m1)); got != 256 {
		t.Errorf("m1 memory = %d words", got)
	}
	a.ExternalMemory(m0)[3] = 11
	if a.ExternalMemory(m1)[3] != 0 {
		t.Errorf("memories overlap")
	}
}

func TestLog2Ceil(t *testing.T) {
	for n, want := range map[int]int{0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 256: 8, 257: 9} {
		if got := ir.Log2Ceil(n); got != want {
			t.Errorf("Log2Ceil(%d) = %d, want %d", n, got, want)
		}
	}
	if got := ir.AlignBitBoundary(5, 2); got != 8 {
		t.Errorf("AlignBitBoundary(5, 2) = %d", got)
	}
	if got := ir.AlignBitBoundary(8, 2); got != 8 {
		t.Errorf("AlignBitBoundary(8, 2) = %d", got)
	}
}

func TestExtraInt(t *testing.T) {
	data := make([]byte, 8)
	ir.SetExtraInt(data, 1, -3)
	if got := ir.ExtraInt(data, 1); got != -3 {
		t.Errorf("ExtraInt = %d, want -3", got)
	}
	if got := ir.ExtraInt(data, 0); got != 0 {
		t.Errorf("slot 0 touched: %d", got)
	}
}
