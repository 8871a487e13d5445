package codegen

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/fexolm/versat/config"
	"github.com/fexolm/versat/ir"
	"github.com/fexolm/versat/layout"
)

const (
	HeaderFile = "versat_defs.vh"
	TopFile    = "versat_instance.v"
	DataFile   = "versat_data.inc"
)

var templates = template.Must(template.New("versat").
	Funcs(sprig.TxtFuncMap()).
	Parse(moduleTemplate + topTemplate + headerTemplate + dataTemplate))

// Generator renders source from a registered catalog and a computed layout.
// It never decides an offset or a width itself.
type Generator struct {
	Options config.Options
	Logger  hclog.Logger
}

func New(opts config.Options, logger hclog.Logger) *Generator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Generator{Options: opts, Logger: logger}
}

// Module renders the module of a composite or iterative declaration.
func (g *Generator) Module(w io.Writer, d *ir.Declaration) error {
	comp := d.Composite()
	if comp == nil {
		return ir.Structuralf("", d.Name, "only composite units have a generated module")
	}
	owner := d.ID
	it := d.Iterative()
	if it != nil {
		owner = it.Unit
	}
	m := buildModule(d.Name, comp.FixedCircuit, comp.Offsets, comp.StaticUnits, owner)
	if it != nil {
		m.Iterative = &iterative{Unit: comp.FixedCircuit.Catalog().Get(it.Unit).Name, Latency: it.Latency}
	}
	return errors.Wrapf(templates.ExecuteTemplate(w, "module", m), "module %s", d.Name)
}

type register struct {
	Index int
	Bus   string
	Hi    int
	Lo    int
}

type mapped struct {
	Name  string
	Index int
}

type topData struct {
	Values  layout.Values
	Module  module
	Configs []register
	States  []register
	Mapped  []mapped
}

func registers(start int, bus string, ranges []layout.BitRange) []register {
	res := make([]register, len(ranges))
	for i, r := range ranges {
		res[i] = register{Index: start + i, Bus: bus, Hi: r.Hi, Lo: r.Lo}
	}
	return res
}

// Top renders the accelerator instance with its address decoder. Register
// 0 is the control register, followed by configs, statics and delays in
// that order; state reads use the same index space.
func (g *Generator) Top(w io.Writer, top *ir.Accelerator, v layout.Values) error {
	offs := ir.CalculateAllOffsets(top)
	m := buildModule("versat_instance", top, offs, top.Statics(), ir.NoDecl)

	selects := make(map[ir.InstanceID]string)
	data := topData{Values: v, Module: m}
	for _, mu := range v.Mapped {
		name := sanitize(mu.Name)
		data.Mapped = append(data.Mapped, mapped{Name: name, Index: mu.Index})
		selects[mu.Inst] = "unitSel_" + name
	}
	for i, c := range data.Module.Children {
		for id, sel := range selects {
			if sanitize(top.Instance(id).Name) == c.Name {
				data.Module.Children[i].MemorySelect = sel
			}
		}
	}

	configs := layout.BitRanges(wiresAt(top, offs[ir.KindConfig], ir.KindConfig))
	statics := layout.BitRanges(staticWires(top.Statics()))
	next := 1
	data.Configs = append(data.Configs, registers(next, "configdata", configs)...)
	next += len(configs)
	data.Configs = append(data.Configs, registers(next, "statics", statics)...)
	next += len(statics)
	data.Configs = append(data.Configs, registers(next, "delays", delayRanges(offs[ir.KindDelay].Max))...)
	data.States = registers(1, "statedata", layout.BitRanges(wiresAt(top, offs[ir.KindState], ir.KindState)))

	return errors.Wrap(templates.ExecuteTemplate(w, "top", data), "top")
}

type headerData struct {
	layout.Values
	ShadowRegisters bool
}

func (g *Generator) Header(w io.Writer, v layout.Values) error {
	return errors.Wrap(templates.ExecuteTemplate(w, "header", headerData{v, g.Options.UseShadowRegisters}), "header")
}

type configData struct {
	Configurations int
	Values         []int
	Words          []string
	Names          []string
}

// ConfigData renders the current register values of top, configs then
// statics then delays, once per configuration slot, plus the name of every
// register.
func (g *Generator) ConfigData(w io.Writer, top *ir.Accelerator, v layout.Values) error {
	values := make([]int, v.Configs+v.Statics+v.Delays)
	names := make([]string, len(values))
	err := top.Walk(func(n *ir.Node) error {
		d := n.Decl()
		switch d.Type() {
		case ir.Composite:
			return nil
		case ir.Iterative:
			// Only the first delay register is the unit's own, the repeated
			// unit's nodes cover the rest of the window.
			if dl := n.Delay(); len(dl) > 0 {
				idx := v.Configs + v.Statics + n.Window(ir.KindDelay).Offset
				values[idx] = dl[0]
				names[idx] = n.FullName() + ".delay0"
			}
			return nil
		}
		base := n.Window(ir.KindConfig).Offset
		if n.IsStaticConfig() {
			base += v.Configs
		}
		for i, c := range n.Config() {
			values[base+i] = c
			if names[base+i] == "" {
				names[base+i] = n.FullName() + "." + d.Configs[i].Name
			}
		}
		for i, dl := range n.Delay() {
			idx := v.Configs + v.Statics + n.Window(ir.KindDelay).Offset + i
			values[idx] = dl
			names[idx] = n.FullName() + ".delay" + strconv.Itoa(i)
		}
		return nil
	})
	if err != nil {
		return err
	}
	words := make([]string, len(values))
	for i, val := range values {
		words[i] = strconv.Itoa(val)
	}
	return errors.Wrap(templates.ExecuteTemplate(w, "data", configData{
		Configurations: g.Options.NumberConfigurations,
		Values:         values,
		Words:          words,
		Names:          names,
	}), "config data")
}

// WriteAll writes the header, the top level instance and the configuration
// data of top into dir.
func (g *Generator) WriteAll(dir string, top *ir.Accelerator, v layout.Values) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	files := []struct {
		name   string
		render func(io.Writer) error
	}{
		{HeaderFile, func(w io.Writer) error { return g.Header(w, v) }},
		{TopFile, func(w io.Writer) error { return g.Top(w, top, v) }},
		{DataFile, func(w io.Writer) error { return g.ConfigData(w, top, v) }},
	}
	for _, f := range files {
		if err := writeFile(filepath.Join(dir, f.name), f.render); err != nil {
			return err
		}
		g.Logger.Debug("wrote", "file", f.name)
	}
	return nil
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

// DirSink writes one module file per registered composite into Dir.
type DirSink struct {
	Dir string
	Gen *Generator
}

func (s *DirSink) Emit(d *ir.Declaration) error {
	if d.Composite() == nil {
		return nil
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", s.Dir)
	}
	return writeFile(filepath.Join(s.Dir, d.Name+".v"), func(w io.Writer) error {
		return s.Gen.Module(w, d)
	})
}
