package ir

import (
	"strings"
)

type nameSegment struct {
	name string
	typ  string
}

// parseHierarchicalName splits "a:T.b.c:U" into segments. Each argument may
// itself be a dotted path.
func parseHierarchicalName(names ...string) ([]nameSegment, error) {
	var res []nameSegment
	for _, full := range names {
		for _, part := range strings.Split(full, ".") {
			seg := nameSegment{name: part}
			if i := strings.IndexByte(part, ':'); i >= 0 {
				seg.name, seg.typ = part[:i], part[i+1:]
			}
			if seg.name == "" {
				return nil, Structuralf(strings.Join(names, "."), "", "empty name segment")
			}
			res = append(res, seg)
		}
	}
	if len(res) == 0 {
		return nil, Structuralf("", "", "empty hierarchical name")
	}
	return res, nil
}

// GetInstanceByName resolves a hierarchical, optionally type qualified
// path such as "top.adder:ADD" starting at the top level of a.
func (a *Accelerator) GetInstanceByName(names ...string) (*Node, error) {
	return lookupPath(a.Iterate(), a.Name, names)
}

// GetSubInstanceByName resolves a path inside the circuit of n.
func GetSubInstanceByName(n *Node, names ...string) (*Node, error) {
	it := n.Below()
	if it == nil {
		return nil, Structuralf(n.FullName(), n.Decl().Name, "not a composite instance")
	}
	return lookupPath(it, n.FullName(), names)
}

// MustGetInstanceByName panics when the path does not resolve.
func (a *Accelerator) MustGetInstanceByName(names ...string) *Node {
	n, err := a.GetInstanceByName(names...)
	if err != nil {
		panic(err)
	}
	return n
}

func lookupPath(it *Iterator, scope string, names []string) (*Node, error) {
	hier, err := parseHierarchicalName(names...)
	if err != nil {
		return nil, err
	}
	if n := lookup(it, hier); n != nil {
		return n, nil
	}
	return nil, Structuralf(strings.Join(names, "."), "", "instance not found in %s", scope)
}

// lookup matches the segments against instance names of the level it walks.
// A flattened instance carries a dotted name and matches several segments at
// once; "/" separates alternative names of one instance. Segments left over
// after a full match continue inside the instance's nested circuit.
func lookup(it *Iterator, hier []nameSegment) *Node {
	for n := it.Current(); n != nil; n = it.Skip() {
		for _, alt := range strings.Split(n.Inst.Name, "/") {
			parts := strings.Split(alt, ".")
			if len(parts) > len(hier) {
				continue
			}
			if !matchParts(parts, hier, n.Decl().Name) {
				continue
			}
			rest := hier[len(parts):]
			if len(rest) == 0 {
				return n
			}
			if below := n.Below(); below != nil {
				if res := lookup(below, rest); res != nil {
					return res
				}
			}
		}
	}
	return nil
}

func matchParts(parts []string, hier []nameSegment, declName string) bool {
	last := len(parts) - 1
	for i, p := range parts {
		if p != hier[i].name {
			return false
		}
		if i == last && hier[i].typ != "" && hier[i].typ != declName {
			return false
		}
	}
	return true
}
