// Package inspect renders read-only views of declarations and accelerators.
// Nothing here mutates layout state.
package inspect

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/davecgh/go-spew/spew"
	"github.com/xlab/treeprint"

	"github.com/fexolm/versat/ir"
)

// Tree renders the instance hierarchy of a with the storage windows of every
// node.
func Tree(a *ir.Accelerator) string {
	root := treeprint.NewWithRoot(a.Name)
	addLevel(root, a.Iterate())
	return root.String()
}

func addLevel(t treeprint.Tree, it *ir.Iterator) {
	for n := it.Current(); n != nil; n = it.Skip() {
		label := fmt.Sprintf("%s:%s%s", n.Inst.Name, n.Decl().Name, windows(n))
		if below := n.Below(); below != nil {
			addLevel(t.AddMetaBranch(n.Inst.BaseDelay, label), below)
			continue
		}
		t.AddMetaNode(n.Inst.BaseDelay, label)
	}
}

func windows(n *ir.Node) string {
	var parts []string
	for k := ir.Kind(0); k < ir.NumKinds; k++ {
		w := n.Window(k)
		if w.Size == 0 {
			continue
		}
		prefix := ""
		if k == ir.KindConfig && n.IsStaticConfig() {
			prefix = "static "
		}
		parts = append(parts, fmt.Sprintf("%s%s[%d:%d]", prefix, k, w.Offset, w.End()))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

// pathOf turns a dotted hierarchical name into a slash separated path so
// glob patterns can address levels. Alternative names keep their separator
// out of the way.
func pathOf(name string) string {
	return strings.ReplaceAll(strings.ReplaceAll(name, "/", "|"), ".", "/")
}

// Filter returns the nodes whose full name matches pattern. Pattern levels
// are separated by dots; "*" matches within a level and "**" across levels.
func Filter(a *ir.Accelerator, pattern string) ([]*ir.Node, error) {
	glob := pathOf(pattern)
	if !doublestar.ValidatePattern(glob) {
		return nil, ir.Structuralf(pattern, "", "invalid pattern")
	}
	var res []*ir.Node
	err := a.Walk(func(n *ir.Node) error {
		ok, err := doublestar.Match(glob, pathOf(n.FullName()))
		if err != nil {
			return err
		}
		if ok {
			res = append(res, n)
		}
		return nil
	})
	return res, err
}

var dumper = spew.ConfigState{
	Indent:                  "  ",
	MaxDepth:                3,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

type summary struct {
	Name            string
	Type            string
	InputDelays     []int
	OutputLatencies []int
	TotalOutputs    int
	Configs         []ir.Wire
	States          []ir.Wire
	Delays          int
	Statics         int
	ExtraData       int
	MemoryMapBits   int
	DelayType       ir.DelayType
	ImplementsDone  bool
	Instances       []string
	StaticGroups    []ir.StaticID
}

// DumpDeclaration renders the fields of d without descending into arenas.
func DumpDeclaration(d *ir.Declaration) string {
	s := summary{
		Name:            d.Name,
		Type:            d.Type().String(),
		InputDelays:     d.InputDelays,
		OutputLatencies: d.OutputLatencies,
		TotalOutputs:    d.TotalOutputs,
		Configs:         d.Configs,
		States:          d.States,
		Delays:          d.NumDelays,
		Statics:         d.NumStatics,
		ExtraData:       d.ExtraDataSize,
		MemoryMapBits:   d.MemoryMapBits,
		DelayType:       d.DelayType,
		ImplementsDone:  d.ImplementsDone,
	}
	if comp := d.Composite(); comp != nil {
		for _, inst := range comp.FixedCircuit.Instances() {
			s.Instances = append(s.Instances, fmt.Sprintf("%s:%s", inst.Name, comp.FixedCircuit.Decl(inst).Name))
		}
		s.StaticGroups = comp.StaticUnits.Keys()
	}
	return dumper.Sdump(s)
}
