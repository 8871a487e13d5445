package codegen_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fexolm/versat/ast"
	"github.com/fexolm/versat/codegen"
	"github.com/fexolm/versat/config"
	"github.com/fexolm/versat/ir"
	"github.com/fexolm/versat/irgen"
	"github.com/fexolm/versat/layout"
	"github.com/fexolm/versat/units"
)

const balance = `
chip Balance(a, b) {
	r1 := PipelineRegister(a)
	r2 := PipelineRegister(r1)
	s := ADD(r2, b)
	return s
}
`

type fixture struct {
	gen  *codegen.Generator
	decl *ir.Declaration
	top  *ir.Accelerator
	v    layout.Values
}

func compile(t *testing.T, src, chip, sinkDir string) fixture {
	t.Helper()
	cat := ir.NewCatalog()
	if err := units.Register(cat); err != nil {
		t.Fatal(err)
	}
	opts := config.Default()
	gen := codegen.New(opts, nil)
	c := irgen.NewCompiler(cat, opts, nil)
	if sinkDir != "" {
		c.Sink = &codegen.DirSink{Dir: sinkDir, Gen: gen}
	}
	pkg, err := ast.Parse("main", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	d, err := c.GenerateIR([]*ast.Package{pkg}, "main."+chip)
	if err != nil {
		t.Fatal(err)
	}
	top, err := c.Instantiate(d, "versat")
	if err != nil {
		t.Fatal(err)
	}
	v, err := layout.Compute(top, opts)
	if err != nil {
		t.Fatal(err)
	}
	return fixture{gen: gen, decl: d, top: top, v: v}
}

func containsAll(t *testing.T, what, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("%s lacks %q:\n%s", what, want, out)
		}
	}
}

func TestModule(t *testing.T) {
	f := compile(t, balance, "Balance", "")
	var b strings.Builder
	if err := f.gen.Module(&b, f.decl); err != nil {
		t.Fatal(err)
	}
	containsAll(t, "module", b.String(),
		"module Balance #(parameter DATA_W = 32)",
		"input [DATA_W-1:0] in0,",
		"input [DATA_W-1:0] in1,",
		"always @(posedge clk) r1_reg <= in0;",
		"Buffer buffer0 (",
		".configdata(configdata[7:0]),",
		"assign done = 1'b1;",
	)

	if err := f.gen.Module(&b, f.top.Catalog().MustLookup("ADD")); !ir.IsStructural(err) {
		t.Errorf("primitive module: %v", err)
	}
}

func TestHeader(t *testing.T) {
	f := compile(t, balance, "Balance", "")
	var b strings.Builder
	if err := f.gen.Header(&b, f.v); err != nil {
		t.Fatal(err)
	}
	containsAll(t, "header", b.String(),
		"`define ADDR_W 2",
		"`define NUMBER_UNITS 4",
		"`define nCONFIGS 2",
		"`define CONFIG_W 8",
	)
	if strings.Contains(b.String(), "MEMORY_MAPPED_BITS") {
		t.Errorf("header of an unmapped accelerator defines memory bits")
	}
}

func TestConfigData(t *testing.T) {
	f := compile(t, balance, "Balance", "")
	var b strings.Builder
	if err := f.gen.ConfigData(&b, f.top, f.v); err != nil {
		t.Fatal(err)
	}
	containsAll(t, "config data", b.String(),
		"#define VERSAT_CONFIG_SIZE 1",
		"static int versat_config_data[1] = {\n   2,",
		`"top.buffer0.amount",`,
	)
}

func TestTopMemoryMapped(t *testing.T) {
	f := compile(t, `
chip Pair(addr, v) {
	m0 := Mem(addr, v)
	m1 := Mem(addr, v) config 1
	s := ADD(m0, m1)
	return s
}
`, "Pair", "")
	var b strings.Builder
	if err := f.gen.Top(&b, f.top, f.v); err != nil {
		t.Fatal(err)
	}
	containsAll(t, "top", b.String(),
		"parameter ADDR_W = 10",
		"wire memoryMapped = addr[9];",
		"wire unitSel_top = memoryMapped;",
		"if(unitSel_top) rdata = rdata_top;",
		"1: configdata[0:0] <= wdata[0:0];",
		"2: configdata[1:1] <= wdata[0:0];",
		".valid(valid && unitSel_top),",
	)

	var m strings.Builder
	if err := f.gen.Module(&m, f.decl); err != nil {
		t.Fatal(err)
	}
	containsAll(t, "module", m.String(),
		"input [8:0] addr,",
		".valid(valid && addr >= 256 && addr <= 511),",
		"assign rdata = rdata_m0 | rdata_m1;",
	)
}

func TestWriteAll(t *testing.T) {
	sink := t.TempDir()
	f := compile(t, balance, "Balance", sink)
	if _, err := os.Stat(filepath.Join(sink, "Balance.v")); err != nil {
		t.Errorf("module not emitted on registration: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "src")
	if err := f.gen.WriteAll(dir, f.top, f.v); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{codegen.HeaderFile, codegen.TopFile, codegen.DataFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestConfigDataIterative(t *testing.T) {
	f := compile(t, `
chip Step(x) {
	y := ADD(x, #1)
	return y
}

chip First(x) {
	s := Step(x)
	data := Data(s)
	return s
}

chip Next() {
	s := Step(data)
	data := Data(s)
	return s
}

iterative Count {
	unit Step
	initial First
	loop Next
	latency 3
}

chip Wrap(x) {
	p := PipelineRegister(x)
	c := Count(p)
	return c
}
`, "Wrap", "")
	if got := f.top.MustGetInstanceByName("top.c").Delay(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("delay of top.c = %v, want [1]", got)
	}

	var b strings.Builder
	if err := f.gen.ConfigData(&b, f.top, f.v); err != nil {
		t.Fatal(err)
	}
	containsAll(t, "config data", b.String(),
		"#define VERSAT_CONFIG_SIZE 1",
		"static int versat_config_data[1] = {\n   1,",
		`"top.c.delay0",`,
	)
}
