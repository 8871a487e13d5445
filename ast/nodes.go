package ast

type Package struct {
	Name       string
	Imports    []string
	Chips      []*Chip
	Iteratives []*Iterative
}

func NewPackage(name string, imports []string, chips []*Chip, iteratives []*Iterative) *Package {
	return &Package{Name: name, Imports: imports, Chips: chips, Iteratives: iteratives}
}

type Param struct {
	Name string
}

type ChipSignature struct {
	Inputs []*Param
}

// Arg is one argument of a unit placement: a wire, optionally delayed, or
// a literal value.
type Arg struct {
	Name    string
	Delay   int
	Literal *int
}

type ChipOp struct {
	Results  []string
	ChipName string
	Args     []*Arg

	Static bool
	Save   bool
	Shared *int
	Config []int

	Line int
}

type ChipBody struct {
	Ops     []*ChipOp
	Results []string
}

type Chip struct {
	// Name is qualified with the package name.
	Name      string
	Interface *ChipSignature
	Impl      *ChipBody
}

type Iterative struct {
	Name    string
	Unit    string
	Initial string
	Loop    string
	Latency int
	Data    int
}
