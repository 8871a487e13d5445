package ir

type DeclType int

const (
	Single DeclType = iota
	Composite
	Iterative
	Special
)

func (t DeclType) String() string {
	switch t {
	case Single:
		return "SINGLE"
	case Composite:
		return "COMPOSITE"
	case Iterative:
		return "ITERATIVE"
	case Special:
		return "SPECIAL"
	}
	return "UNKNOWN"
}

// DelayType tells where a unit spends its latency: producing data (source)
// or consuming it (sink).
type DelayType int

const (
	DelaySink DelayType = 1 << iota
	DelaySource
)

// DelayBitSize is the width of one delay register.
const DelayBitSize = 8

type Wire struct {
	Name    string
	BitSize int
}

type DeclID int

const NoDecl DeclID = -1

// Body is the kind-specific part of a Declaration. The set of
// implementations is closed: *PrimitiveBody, *BoundaryBody, *CompositeBody
// and *IterativeBody.
type Body interface {
	declType() DeclType
}

type PrimitiveBody struct {
	// IsOperation marks units rendered inline from Operation instead of
	// being instantiated as a module.
	IsOperation bool
	Operation   string
}

func (*PrimitiveBody) declType() DeclType { return Single }

// BoundaryBody marks CircuitInput and CircuitOutput.
type BoundaryBody struct {
	Input bool
}

func (*BoundaryBody) declType() DeclType { return Special }

type CompositeBody struct {
	BaseCircuit  *Accelerator
	FixedCircuit *Accelerator

	Offsets     Offsets
	StaticUnits *StaticTable

	DefaultConfig []int
	DefaultStatic []int

	// Combinational composites are inlined into their parents.
	Combinational bool
}

func (*CompositeBody) declType() DeclType { return Composite }

type IterativeBody struct {
	CompositeBody

	UnitName string
	Initial  *Accelerator
	ForLoop  *Accelerator
	Unit     DeclID
	Latency  int
	DataSize int
}

func (*IterativeBody) declType() DeclType { return Iterative }

// Unit is the view a behaviour gets of one placed instance. Storage slices
// alias the arenas of the top-level accelerator.
type Unit interface {
	Instance() *Instance
	Config() []int
	State() []int
	Delay() []int
	Output() []int
	ExtraData() []byte
	ExternalMemory() []int
	SetDone(done bool)
}

type Behavior struct {
	Init      func(u Unit)
	Start     func(u Unit) []int
	Update    func(u Unit, inputs []int) []int
	MemAccess func(u Unit, address, value int, write bool) int
}

type Declaration struct {
	ID   DeclID
	Name string
	Body Body

	InputDelays     []int
	OutputLatencies []int
	// TotalOutputs counts every output slot an instance occupies,
	// including the ones of nested units.
	TotalOutputs int

	Configs    []Wire
	States     []Wire
	NumDelays  int
	NumStatics int
	NumIOs     int

	ExtraDataSize       int
	ExternalMemoryWords int

	IsMemoryMapped bool
	MemoryMapBits  int

	DelayType      DelayType
	ImplementsDone bool

	Behavior Behavior
}

func (d *Declaration) Type() DeclType {
	if d.Body == nil {
		return Single
	}
	return d.Body.declType()
}

// Composite returns the nested circuit data of composite and iterative
// declarations, nil otherwise.
func (d *Declaration) Composite() *CompositeBody {
	switch b := d.Body.(type) {
	case *CompositeBody:
		return b
	case *IterativeBody:
		return &b.CompositeBody
	}
	return nil
}

func (d *Declaration) Iterative() *IterativeBody {
	b, _ := d.Body.(*IterativeBody)
	return b
}

func (d *Declaration) IsOperation() bool {
	b, ok := d.Body.(*PrimitiveBody)
	return ok && b.IsOperation
}

func (d *Declaration) NumInputs() int  { return len(d.InputDelays) }
func (d *Declaration) NumOutputs() int { return len(d.OutputLatencies) }

// MemoryMapWords is the power of two footprint of the unit in the memory
// mapped address space, 0 when not mapped.
func (d *Declaration) MemoryMapWords() int {
	if !d.IsMemoryMapped {
		return 0
	}
	return 1 << uint(d.MemoryMapBits)
}

// Size returns how many storage elements of kind k one instance of d takes.
func (d *Declaration) Size(k Kind) int {
	switch k {
	case KindConfig:
		return len(d.Configs)
	case KindState:
		return len(d.States)
	case KindDelay:
		return d.NumDelays
	case KindOutput:
		return d.TotalOutputs
	case KindExtraData:
		return d.ExtraDataSize
	case KindExternalMemory:
		return d.ExternalMemoryWords
	}
	return 0
}
