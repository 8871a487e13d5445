package irgen

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/fexolm/versat/ast"
	"github.com/fexolm/versat/ir"
	"github.com/fexolm/versat/retime"
)

type astUnit struct {
	pkg  string
	chip *ast.Chip
	iter *ast.Iterative
}

type generator struct {
	c     *Compiler
	units map[string]astUnit
}

// GenerateIR registers chipName and every unit it depends on, dependencies
// first, and returns its declaration.
func (c *Compiler) GenerateIR(pkgs []*ast.Package, chipName string) (*ir.Declaration, error) {
	g := &generator{c: c, units: make(map[string]astUnit)}
	for _, pkg := range pkgs {
		for _, ch := range pkg.Chips {
			g.units[ch.Name] = astUnit{pkg: pkg.Name, chip: ch}
		}
		for _, it := range pkg.Iteratives {
			g.units[it.Name] = astUnit{pkg: pkg.Name, iter: it}
		}
	}
	if _, ok := g.units[chipName]; !ok {
		return nil, ir.Structuralf(chipName, "", "chip with required name not found")
	}

	required, err := g.requiredUnits(chipName)
	if err != nil {
		return nil, err
	}
	for _, name := range required {
		if err := g.register(name); err != nil {
			return nil, err
		}
	}
	return c.Catalog.Lookup(shortName(chipName))
}

func shortName(qualified string) string {
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

func qualify(name, pkg string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return pkg + "." + name
}

func (g *generator) chipDeps(pkg string, ch *ast.Chip) []string {
	var res []string
	for _, op := range ch.Impl.Ops {
		if q := qualify(op.ChipName, pkg); g.known(q) {
			res = append(res, q)
		}
	}
	return res
}

func (g *generator) known(name string) bool {
	_, ok := g.units[name]
	return ok
}

func (g *generator) deps(name string) ([]string, error) {
	u := g.units[name]
	if u.chip != nil {
		return g.chipDeps(u.pkg, u.chip), nil
	}
	res := []string{qualify(u.iter.Unit, u.pkg)}
	for _, part := range []string{u.iter.Initial, u.iter.Loop} {
		q := qualify(part, u.pkg)
		ch := g.units[q].chip
		if ch == nil {
			return nil, ir.Structuralf(name, "", "iterative stage %s is not a chip", part)
		}
		res = append(res, g.chipDeps(u.pkg, ch)...)
	}
	return res, nil
}

// requiredUnits orders root and its dependencies so that every unit comes
// after the units it instantiates.
func (g *generator) requiredUnits(root string) ([]string, error) {
	const (
		visiting = 1
		visited  = 2
	)
	state := make(map[string]int)
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return ir.Structuralf(name, "", "unit instantiates itself")
		case visited:
			return nil
		}
		if !g.known(name) {
			return ir.Structuralf(name, "", "chip with required name not found")
		}
		state[name] = visiting
		deps, err := g.deps(name)
		if err != nil {
			return err
		}
		for _, d := range deps {
			if err := visit(d); err != nil {
				return err
			}
		}
		state[name] = visited
		order = append(order, name)
		return nil
	}
	if err := visit(root); err != nil {
		return nil, err
	}
	return order, nil
}

func (g *generator) register(name string) error {
	u := g.units[name]
	if u.chip != nil {
		a, err := g.lowerChip(u.pkg, u.chip)
		if err != nil {
			return err
		}
		_, err = g.c.RegisterSubUnit(shortName(name), a)
		return err
	}

	unit, err := g.c.Catalog.Lookup(shortName(qualify(u.iter.Unit, u.pkg)))
	if err != nil {
		return err
	}
	var stages [2]*ir.Accelerator
	for i, part := range []string{u.iter.Initial, u.iter.Loop} {
		if stages[i], err = g.lowerChip(u.pkg, g.units[qualify(part, u.pkg)].chip); err != nil {
			return err
		}
	}
	latency := u.iter.Latency
	if latency == 0 {
		latency = 1
	}
	_, err = g.c.RegisterIterativeUnit(IterativeUnit{
		Name:     shortName(name),
		UnitName: unit.Name,
		Initial:  stages[0],
		ForLoop:  stages[1],
		Unit:     unit,
		Latency:  latency,
		DataSize: u.iter.Data,
	})
	return err
}

func (g *generator) resolve(pkg, name string) (*ir.Declaration, error) {
	if q := qualify(name, pkg); g.known(q) {
		return g.c.Catalog.Lookup(shortName(q))
	}
	return g.c.Catalog.Lookup(name)
}

// lowerChip builds the circuit of one chip. Every placement becomes an
// instance named after its first result; result i is output port i.
func (g *generator) lowerChip(pkg string, chip *ast.Chip) (*ir.Accelerator, error) {
	a := ir.NewAccelerator(g.c.Catalog, shortName(chip.Name))
	wires := make(map[string]ir.PortRef)
	var result *multierror.Error

	for i, in := range chip.Interface.Inputs {
		inst, err := a.CreateOrGetInput(in.Name, i)
		if err != nil {
			return nil, err
		}
		wires[in.Name] = ir.PortRef{Inst: inst.ID}
	}

	insts := make([]*ir.Instance, len(chip.Impl.Ops))
	for i, op := range chip.Impl.Ops {
		d, err := g.resolve(pkg, op.ChipName)
		if err != nil {
			result = multierror.Append(result, lineError(chip, op, err))
			continue
		}
		inst, err := g.place(a, d, op)
		if err != nil {
			result = multierror.Append(result, lineError(chip, op, err))
			continue
		}
		insts[i] = inst
		for port, r := range op.Results {
			if _, ok := wires[r]; ok {
				result = multierror.Append(result, lineError(chip, op, ir.Structuralf(r, "", "wire assigned twice")))
			}
			wires[r] = ir.PortRef{Inst: inst.ID, Port: port}
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	for i, op := range chip.Impl.Ops {
		for port, arg := range op.Args {
			src, err := g.argSource(a, wires, insts[i], port, arg)
			if err == nil {
				_, err = a.Connect(a.Instance(src.Inst), src.Port, insts[i], port, arg.Delay)
			}
			if err != nil {
				result = multierror.Append(result, lineError(chip, op, err))
			}
		}
	}

	if len(chip.Impl.Results) > 0 {
		out, err := a.CreateOrGetOutput(uniqueName(a, "out"))
		if err != nil {
			return nil, err
		}
		for port, r := range chip.Impl.Results {
			src, ok := wires[r]
			if !ok {
				result = multierror.Append(result, ir.Structuralf(chip.Name, "", "returned wire %s not initialized", r))
				continue
			}
			if _, err := a.Connect(a.Instance(src.Inst), src.Port, out, port, 0); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return a, result.ErrorOrNil()
}

func (g *generator) place(a *ir.Accelerator, d *ir.Declaration, op *ast.ChipOp) (*ir.Instance, error) {
	if len(op.Results) > d.NumOutputs() && d.NumOutputs() > 0 {
		return nil, ir.Structuralf(op.Results[0], d.Name, "%d results for %d outputs", len(op.Results), d.NumOutputs())
	}
	inst, err := a.CreateInstance(d, op.Results[0])
	if err != nil {
		return nil, err
	}
	if len(op.Config) > len(d.Configs) {
		return nil, ir.Structuralf(inst.Name, d.Name, "%d config values for %d registers", len(op.Config), len(d.Configs))
	}
	copy(a.Config(inst), op.Config)
	if op.Save {
		a.SetDefaultConfiguration(inst)
	}
	if op.Shared != nil {
		if err := a.ShareConfig(inst, *op.Shared); err != nil {
			return nil, err
		}
	}
	if op.Static {
		if err := a.SetStatic(inst); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

func (g *generator) argSource(a *ir.Accelerator, wires map[string]ir.PortRef, inst *ir.Instance, port int, arg *ast.Arg) (ir.PortRef, error) {
	if arg.Literal == nil {
		src, ok := wires[arg.Name]
		if !ok {
			return ir.PortRef{}, ir.Structuralf(arg.Name, "", "undefined wire")
		}
		return src, nil
	}
	d, err := g.c.Catalog.Lookup("Literal")
	if err != nil {
		return ir.PortRef{}, err
	}
	lit, err := a.CreateInstance(d, uniqueName(a, fmt.Sprintf("%s_lit%d", inst.Name, port)))
	if err != nil {
		return ir.PortRef{}, err
	}
	lit.Literal = *arg.Literal
	return ir.PortRef{Inst: lit.ID}, nil
}

func lineError(chip *ast.Chip, op *ast.ChipOp, err error) error {
	return errors.Wrapf(err, "%s line %d", chip.Name, op.Line)
}

func uniqueName(a *ir.Accelerator, base string) string {
	used := make(map[string]bool)
	for _, inst := range a.Instances() {
		used[inst.Name] = true
	}
	name := base
	for i := 0; used[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	return name
}

// Instantiate builds a top level accelerator holding one instance of d with
// every port wired to the circuit boundary, balanced and with its delay
// registers programmed.
func (c *Compiler) Instantiate(d *ir.Declaration, name string) (*ir.Accelerator, error) {
	top := ir.NewAccelerator(c.Catalog, name)
	inst, err := top.CreateInstance(d, "top")
	if err != nil {
		return nil, err
	}
	for i := 0; i < d.NumInputs(); i++ {
		in, err := top.CreateOrGetInput(fmt.Sprintf("in%d", i), i)
		if err != nil {
			return nil, err
		}
		if _, err := top.Connect(in, 0, inst, i, 0); err != nil {
			return nil, err
		}
	}
	if d.NumOutputs() > 0 {
		out, err := top.CreateOrGetOutput("out")
		if err != nil {
			return nil, err
		}
		for i := 0; i < d.NumOutputs(); i++ {
			if _, err := top.Connect(inst, i, out, i, 0); err != nil {
				return nil, err
			}
		}
	}
	if _, err := c.retime.FixDelays(top); err != nil {
		return nil, err
	}
	retime.SetDelayRecursive(top)
	return top, nil
}
