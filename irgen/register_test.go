package irgen_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-hclog"

	"github.com/fexolm/versat/ast"
	"github.com/fexolm/versat/config"
	"github.com/fexolm/versat/ir"
	"github.com/fexolm/versat/irgen"
	"github.com/fexolm/versat/units"
)

func newCompiler(t *testing.T) *irgen.Compiler {
	t.Helper()
	cat := ir.NewCatalog()
	if err := units.Register(cat); err != nil {
		t.Fatal(err)
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "test",
		Level:  hclog.Debug,
		Output: hclog.DefaultOutput,
	})
	return irgen.NewCompiler(cat, config.Default(), logger)
}

func compile(t *testing.T, c *irgen.Compiler, src, chip string) *ir.Declaration {
	t.Helper()
	pkg, err := ast.Parse("main", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	d, err := c.GenerateIR([]*ast.Package{pkg}, "main."+chip)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func instantiate(t *testing.T, c *irgen.Compiler, d *ir.Declaration) *ir.Accelerator {
	t.Helper()
	top, err := c.Instantiate(d, "versat")
	if err != nil {
		t.Fatal(err)
	}
	return top
}

func node(t *testing.T, a *ir.Accelerator, path string) *ir.Node {
	t.Helper()
	n, err := a.GetInstanceByName(path)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func adder(t *testing.T, c *irgen.Compiler) *ir.Accelerator {
	t.Helper()
	a := ir.NewAccelerator(c.Catalog, "adder")
	in0, _ := a.CreateOrGetInput("a", 0)
	in1, _ := a.CreateOrGetInput("b", 1)
	add, err := a.CreateInstance(c.Catalog.MustLookup("ADD"), "add")
	if err != nil {
		t.Fatal(err)
	}
	out, _ := a.CreateOrGetOutput("out")
	for _, e := range []struct {
		from   *ir.Instance
		to     *ir.Instance
		toPort int
	}{{in0, add, 0}, {in1, add, 1}, {add, out, 0}} {
		if _, err := a.Connect(e.from, 0, e.to, e.toPort, 0); err != nil {
			t.Fatal(err)
		}
	}
	return a
}

func TestRegisterSubUnitBalanced(t *testing.T) {
	c := newCompiler(t)
	circuit := adder(t, c)
	d, err := c.RegisterSubUnit("Adder", circuit)
	if err != nil {
		t.Fatal(err)
	}

	comp := d.Composite()
	if comp.FixedCircuit.Len() != comp.BaseCircuit.Len() {
		t.Errorf("fixed circuit has %d instances, base %d", comp.FixedCircuit.Len(), comp.BaseCircuit.Len())
	}
	if comp.FixedCircuit.Owner() != d.ID || comp.BaseCircuit.Owner() != d.ID {
		t.Errorf("circuits not owned by the declaration")
	}
	if comp.FixedCircuit == circuit || comp.BaseCircuit == circuit {
		t.Errorf("declaration keeps the caller's circuit")
	}
	if diff := cmp.Diff([]int{0, 0}, d.InputDelays); diff != "" {
		t.Errorf("input delays (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0}, d.OutputLatencies); diff != "" {
		t.Errorf("output latencies (-want +got):\n%s", diff)
	}
	if got, err := c.Catalog.Lookup("Adder"); err != nil || got != d {
		t.Errorf("lookup: %v", err)
	}

	if _, err := c.RegisterSubUnit("Adder", adder(t, c)); !ir.IsStructural(err) {
		t.Errorf("second registration: %v", err)
	}
	if _, err := c.RegisterSubUnit("bad name", adder(t, c)); !ir.IsStructural(err) {
		t.Errorf("invalid name: %v", err)
	}
}

func TestRegisterSubUnitRejectsDuplicatePorts(t *testing.T) {
	c := newCompiler(t)
	a := ir.NewAccelerator(c.Catalog, "dup")
	for _, name := range []string{"x", "y"} {
		inst, err := a.CreateInstance(c.Catalog.Get(c.Catalog.Input), name)
		if err != nil {
			t.Fatal(err)
		}
		inst.PortIndex = 0
	}
	_, err := c.RegisterSubUnit("Dup", a)
	if !ir.IsStructural(err) || !strings.Contains(err.Error(), "already taken by x") {
		t.Errorf("expected duplicate port error, got %v", err)
	}
}

const nested = `
chip Inner(x) {
	r := Reg(x)
	k := Const()
	s := ADD(r, k)
	return s
}

chip Outer(x) {
	p := PipelineRegister(x)
	a := Inner(p)
	b := Inner(x)
	s := ADD(a, b)
	return s
}
`

func TestRegisterNested(t *testing.T) {
	c := newCompiler(t)
	outer := compile(t, c, nested, "Outer")
	inner := c.Catalog.MustLookup("Inner")

	wires := func(ws []ir.Wire) []string {
		var res []string
		for _, w := range ws {
			res = append(res, w.Name)
		}
		return res
	}
	if diff := cmp.Diff([]string{"disabled_00", "constant_01", "amount_02"}, wires(inner.Configs)); diff != "" {
		t.Errorf("inner config wires (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"currentValue_00"}, wires(inner.States)); diff != "" {
		t.Errorf("inner state wires (-want +got):\n%s", diff)
	}
	if inner.NumDelays != 1 || inner.ExtraDataSize != 4 || !inner.ImplementsDone || inner.DelayType != ir.DelaySink {
		t.Errorf("inner aggregates: %d delays, %d extra, done %t, type %d",
			inner.NumDelays, inner.ExtraDataSize, inner.ImplementsDone, inner.DelayType)
	}
	if diff := cmp.Diff([]int{1}, inner.OutputLatencies); diff != "" {
		t.Errorf("inner latency (-want +got):\n%s", diff)
	}

	if got := len(outer.Configs); got != 7 {
		t.Errorf("outer configs = %d, want 7", got)
	}
	if outer.NumDelays != 2 || len(outer.States) != 2 {
		t.Errorf("outer has %d delays and %d states", outer.NumDelays, len(outer.States))
	}
	comp := outer.Composite()
	for k := ir.Kind(0); k < ir.NumKinds; k++ {
		if comp.Offsets[k].Max != outer.Size(k) {
			t.Errorf("%s offsets end at %d, declaration size %d", k, comp.Offsets[k].Max, outer.Size(k))
		}
	}

	top := instantiate(t, c, outer)
	if got := node(t, top, "top.a.r").Delay(); !cmp.Equal(got, []int{1}) {
		t.Errorf("top.a.r delay = %v, want [1]", got)
	}
	if got := node(t, top, "top.b.r").Delay(); !cmp.Equal(got, []int{0}) {
		t.Errorf("top.b.r delay = %v, want [0]", got)
	}
	if got := node(t, top, "top.a.buffer0").Config(); !cmp.Equal(got, []int{1}) {
		t.Errorf("inner buffer amount = %v, want [1]", got)
	}
}

// TestWindowsDisjoint checks that no two leaf units of an instantiated
// hierarchy share storage and that every window lies inside its arena.
func TestWindowsDisjoint(t *testing.T) {
	c := newCompiler(t)
	top := instantiate(t, c, compile(t, c, nested, "Outer"))

	for _, k := range []ir.Kind{ir.KindConfig, ir.KindState, ir.KindDelay, ir.KindOutput, ir.KindExtraData} {
		owner := make([]string, top.ArenaSize(k))
		err := top.Walk(func(n *ir.Node) error {
			w := n.Window(k)
			if n.Decl().Composite() != nil || w.Size == 0 || (k == ir.KindConfig && n.IsStaticConfig()) {
				return nil
			}
			if w.End() > len(owner) {
				t.Errorf("%s %s window %+v past arena of %d", n.FullName(), k, w, len(owner))
				return nil
			}
			for i := w.Offset; i < w.End(); i++ {
				if owner[i] != "" {
					t.Errorf("%s slot %d shared by %s and %s", k, i, owner[i], n.FullName())
				}
				owner[i] = n.FullName()
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

const statics = `
chip Inner(x) {
	k := Const() static config 5 save
	y := ADD(x, k)
	return y
}

chip Outer(x) {
	a := Inner(x)
	b := Inner(x)
	s := ADD(a, b)
	return s
}
`

func TestStaticsShared(t *testing.T) {
	c := newCompiler(t)
	outer := compile(t, c, statics, "Outer")
	inner := c.Catalog.MustLookup("Inner")

	if inner.NumStatics != 1 || outer.NumStatics != 1 {
		t.Errorf("statics: inner %d, outer %d", inner.NumStatics, outer.NumStatics)
	}
	if diff := cmp.Diff([]int{5}, outer.Composite().DefaultStatic); diff != "" {
		t.Errorf("outer default static (-want +got):\n%s", diff)
	}

	top := instantiate(t, c, outer)
	if diff := cmp.Diff([]int{5}, top.StaticArena()); diff != "" {
		t.Errorf("static arena (-want +got):\n%s", diff)
	}
	ka, kb := node(t, top, "top.a.k"), node(t, top, "top.b.k")
	if !ka.IsStaticConfig() || !kb.IsStaticConfig() {
		t.Fatal("static instances not resolved to the static arena")
	}
	if ka.Window(ir.KindConfig) != kb.Window(ir.KindConfig) {
		t.Errorf("windows differ: %+v %+v", ka.Window(ir.KindConfig), kb.Window(ir.KindConfig))
	}
	ka.Config()[0] = 9
	if kb.Config()[0] != 9 {
		t.Errorf("write through top.a.k not seen by top.b.k")
	}
}

func TestDefaultConfig(t *testing.T) {
	c := newCompiler(t)
	d := compile(t, c, `
chip Inner(x) {
	k := Const() config 7 save
	y := ADD(x, k)
	return y
}

chip Outer(x) {
	a := Inner(x)
	b := Inner(a)
	return b
}
`, "Outer")

	if diff := cmp.Diff([]int{7, 7}, d.Composite().DefaultConfig); diff != "" {
		t.Errorf("outer default config (-want +got):\n%s", diff)
	}
	top := instantiate(t, c, d)
	for _, path := range []string{"top.a.k", "top.b.k"} {
		if got := node(t, top, path).Config(); !cmp.Equal(got, []int{7}) {
			t.Errorf("%s config = %v, want [7]", path, got)
		}
	}
}

func TestSharedConfig(t *testing.T) {
	c := newCompiler(t)
	d := compile(t, c, `
chip Pair(x) {
	k0 := Const() shared 0
	k1 := Const() shared 0
	s := ADD(k0, k1)
	t := ADD(s, x)
	return t
}
`, "Pair")

	if got := len(d.Configs); got != 1 {
		t.Errorf("configs = %d, want 1", got)
	}
	top := instantiate(t, c, d)
	node(t, top, "top.k0").Config()[0] = 4
	if got := node(t, top, "top.k1").Config()[0]; got != 4 {
		t.Errorf("shared config not aliased: %d", got)
	}
}

func TestSharedKeepsOwnState(t *testing.T) {
	c := newCompiler(t)
	d := compile(t, c, `
chip Regs(x) {
	r0 := Reg(x) shared 0
	r1 := Reg(x) shared 0
	s := ADD(r0, r1)
	return s
}
`, "Regs")

	if len(d.Configs) != 1 || len(d.States) != 2 || d.NumDelays != 2 {
		t.Errorf("configs %d, states %d, delays %d", len(d.Configs), len(d.States), d.NumDelays)
	}
	top := instantiate(t, c, d)
	r0, r1 := node(t, top, "top.r0"), node(t, top, "top.r1")
	if r0.Window(ir.KindConfig) != r1.Window(ir.KindConfig) {
		t.Errorf("config windows differ: %v %v", r0.Window(ir.KindConfig), r1.Window(ir.KindConfig))
	}
	for _, k := range []ir.Kind{ir.KindState, ir.KindDelay, ir.KindOutput} {
		if r0.Window(k) == r1.Window(k) {
			t.Errorf("%s window shared: %v", k, r0.Window(k))
		}
	}
	r0.State()[0] = 3
	if got := r1.State()[0]; got != 0 {
		t.Errorf("state of r1 = %d, want 0", got)
	}
}

func TestFlattenNames(t *testing.T) {
	c := newCompiler(t)
	d := compile(t, c, `
chip Inc(x) {
	y := ADD(x, #1)
	return y
}

chip Twice(x) {
	a := Inc(x)
	b := Inc(a@2)
	return b
}
`, "Twice")

	fixed := d.Composite().FixedCircuit
	var names []string
	for _, inst := range fixed.Instances() {
		if fixed.Decl(inst).Composite() != nil {
			t.Errorf("%s not inlined", inst.Name)
		}
		names = append(names, inst.Name)
	}
	for _, want := range []string{"a.y", "a.y_lit1", "b.y", "b.y_lit1"} {
		if !contains(names, want) {
			t.Errorf("no instance %s in %v", want, names)
		}
	}

	var delay = -1
	info := fixed.Info()
	for _, inst := range fixed.Instances() {
		if inst.Name == "b.y" {
			for _, e := range info[inst.ID].Inputs[0] {
				delay = e.Delay
			}
		}
	}
	if delay != 2 {
		t.Errorf("edge delay into b.y = %d, want 2", delay)
	}

	top := instantiate(t, c, d)
	if n := node(t, top, "top.b.y:ADD"); n.FullName() != "top.b.y" {
		t.Errorf("resolved %s", n.FullName())
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func TestGenerateIRErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		chip string
		want string
	}{
		{
			"missing chip",
			`chip A(x) { y := NOT(x) return y }`,
			"main.B",
			"chip with required name not found",
		},
		{
			"undefined wire",
			`chip A(x) { y := NOT(z) return y }`,
			"main.A",
			"undefined wire",
		},
		{
			"wire assigned twice",
			`chip A(x) { y := NOT(x) y := NOT(x) return y }`,
			"main.A",
			"wire assigned twice",
		},
		{
			"returned wire missing",
			`chip A(x) { y := NOT(x) return z }`,
			"main.A",
			"returned wire z not initialized",
		},
		{
			"too many config values",
			`chip A(x) { y := Const() config 1, 2 z := ADD(x, y) return z }`,
			"main.A",
			"2 config values for 1 registers",
		},
		{
			"port out of range",
			`chip A(x) { y := NOT(x, x) return y }`,
			"main.A",
			"input port 1 out of range",
		},
		{
			"iterative without data",
			`chip Step(x) { k := Const() y := ADD(x, k) return y }
chip First(x) { s := Step(x) return s }
chip Next(x) { s := Step(x) return s }
iterative L { unit Step initial First loop Next }`,
			"main.L",
			"no data instance to carry values between iterations",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, err := ast.Parse("main", []byte(tt.src))
			if err != nil {
				t.Fatal(err)
			}
			_, err = newCompiler(t).GenerateIR([]*ast.Package{pkg}, tt.chip)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %v, want it to contain %q", err, tt.want)
			}
		})
	}
}
