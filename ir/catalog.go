package ir

import (
	"fmt"
	"sort"

	"github.com/agext/levenshtein"
)

const (
	InputName       = "CircuitInput"
	OutputName      = "CircuitOutput"
	BufferName      = "Buffer"
	FixedBufferName = "FixedBuffer"
	DataName        = "Data"
)

// DataInstanceName is the instance of an iterative stage whose outputs carry
// values from one iteration to the next.
const DataInstanceName = "data"

// maxBoundaryPorts bounds the port count of the boundary and Data units.
const maxBoundaryPorts = 50

// Catalog owns every registered Declaration. Declarations are append only
// and addressed by DeclID.
type Catalog struct {
	decls  []*Declaration
	byName map[string]DeclID

	Input       DeclID
	Output      DeclID
	Buffer      DeclID
	FixedBuffer DeclID
	Data        DeclID
}

func NewCatalog() *Catalog {
	c := &Catalog{byName: make(map[string]DeclID)}

	c.Input = c.mustRegister(Declaration{
		Name:            InputName,
		Body:            &BoundaryBody{Input: true},
		OutputLatencies: make([]int, 1),
		DelayType:       DelaySource,
		Behavior:        Behavior{Init: setDone},
	})
	c.Output = c.mustRegister(Declaration{
		Name:        OutputName,
		Body:        &BoundaryBody{},
		InputDelays: make([]int, maxBoundaryPorts),
		DelayType:   DelaySink,
		Behavior:    Behavior{Init: setDone},
	})
	c.Buffer = c.mustRegister(Declaration{
		Name:            BufferName,
		Body:            &PrimitiveBody{},
		InputDelays:     make([]int, 1),
		OutputLatencies: make([]int, 1),
		Configs:         []Wire{{Name: "amount", BitSize: DelayBitSize}},
		Behavior:        Behavior{Init: setDone},
	})
	c.FixedBuffer = c.mustRegister(Declaration{
		Name:            FixedBufferName,
		Body:            &PrimitiveBody{},
		InputDelays:     make([]int, 1),
		OutputLatencies: make([]int, 1),
		Behavior:        Behavior{Init: setDone},
	})
	ones := make([]int, maxBoundaryPorts)
	for i := range ones {
		ones[i] = 1
	}
	c.Data = c.mustRegister(Declaration{
		Name:            DataName,
		Body:            &PrimitiveBody{},
		InputDelays:     make([]int, maxBoundaryPorts),
		OutputLatencies: ones,
		DelayType:       DelaySink,
		Behavior:        Behavior{Init: setDone, Update: passThrough},
	})
	return c
}

func setDone(u Unit) { u.SetDone(true) }

func passThrough(_ Unit, inputs []int) []int {
	out := make([]int, len(inputs))
	copy(out, inputs)
	return out
}

func (c *Catalog) mustRegister(d Declaration) DeclID {
	r, err := c.Register(d)
	if err != nil {
		panic(err)
	}
	return r.ID
}

// NextID is the handle the next registered declaration will get.
func (c *Catalog) NextID() DeclID {
	return DeclID(len(c.decls))
}

// Register appends d to the catalog. Names are unique.
func (c *Catalog) Register(d Declaration) (*Declaration, error) {
	if d.Name == "" {
		return nil, Structuralf("", "", "declaration without a name")
	}
	if _, ok := c.byName[d.Name]; ok {
		return nil, Structuralf("", d.Name, "declaration already registered")
	}
	if t := d.Type(); t == Single || t == Special {
		d.TotalOutputs = len(d.OutputLatencies)
	}
	d.ID = c.NextID()

	decl := new(Declaration)
	*decl = d
	c.decls = append(c.decls, decl)
	c.byName[d.Name] = d.ID

	if comp := decl.Composite(); comp != nil {
		for _, a := range []*Accelerator{comp.BaseCircuit, comp.FixedCircuit} {
			if a != nil {
				a.owner = decl.ID
			}
		}
	}
	return decl, nil
}

// Get resolves a handle. It returns nil for handles this catalog never issued.
func (c *Catalog) Get(id DeclID) *Declaration {
	if id < 0 || int(id) >= len(c.decls) {
		return nil
	}
	return c.decls[id]
}

func (c *Catalog) Lookup(name string) (*Declaration, error) {
	if id, ok := c.byName[name]; ok {
		return c.decls[id], nil
	}
	msg := "unknown declaration"
	if s := c.suggest(name); s != "" {
		msg += fmt.Sprintf(", did you mean %q?", s)
	}
	return nil, Structuralf("", name, "%s", msg)
}

func (c *Catalog) MustLookup(name string) *Declaration {
	d, err := c.Lookup(name)
	if err != nil {
		panic(err)
	}
	return d
}

func (c *Catalog) Declarations() []*Declaration {
	return c.decls
}

func (c *Catalog) suggest(name string) string {
	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	sort.Strings(names)

	best, bestDist := "", 3
	for _, n := range names {
		if d := levenshtein.Distance(name, n, nil); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}

func (c *Catalog) isBuffer(id DeclID) bool {
	return id == c.Buffer || id == c.FixedBuffer
}
