package units

import (
	"github.com/fexolm/versat/ir"
)

const (
	PipelineRegisterName = "PipelineRegister"
	LiteralName          = "Literal"
	ConstName            = "Const"
	RegName              = "Reg"
	MemName              = "Mem"
)

// MemAddressBits is the in unit address width of Mem.
const MemAddressBits = 8

type binaryOp struct {
	name    string
	pattern string
	fn      func(a, b int) int
}

var binaryOps = []binaryOp{
	{"XOR", "{0} ^ {1}", func(a, b int) int { return a ^ b }},
	{"ADD", "{0} + {1}", func(a, b int) int { return a + b }},
	{"SUB", "{0} - {1}", func(a, b int) int { return a - b }},
	{"AND", "{0} & {1}", func(a, b int) int { return a & b }},
	{"OR", "{0} | {1}", func(a, b int) int { return a | b }},
	{"RHR", "({0} >> {1}) | ({0} << (32 - {1}))", rotateRight},
	{"SHR", "{0} >> {1}", func(a, b int) int { return int(uint32(a) >> uint(b&31)) }},
	{"RHL", "({0} << {1}) | ({0} >> (32 - {1}))", rotateLeft},
	{"SHL", "{0} << {1}", func(a, b int) int { return int(int32(uint32(a) << uint(b&31))) }},
}

func rotateRight(a, b int) int {
	v, s := uint32(a), uint(b&31)
	return int(int32(v>>s | v<<(32-s)))
}

func rotateLeft(a, b int) int {
	v, s := uint32(a), uint(b&31)
	return int(int32(v<<s | v>>(32-s)))
}

// Register adds the primitive unit library to cat.
func Register(cat *ir.Catalog) error {
	decls := []ir.Declaration{{
		Name:            "NOT",
		Body:            &ir.PrimitiveBody{IsOperation: true, Operation: "~{0}"},
		InputDelays:     make([]int, 1),
		OutputLatencies: make([]int, 1),
		Behavior: ir.Behavior{
			Init:   setDone,
			Update: func(_ ir.Unit, in []int) []int { return []int{^in[0]} },
		},
	}}
	for _, op := range binaryOps {
		fn := op.fn
		decls = append(decls, ir.Declaration{
			Name:            op.name,
			Body:            &ir.PrimitiveBody{IsOperation: true, Operation: op.pattern},
			InputDelays:     make([]int, 2),
			OutputLatencies: make([]int, 1),
			Behavior: ir.Behavior{
				Init:   setDone,
				Update: func(_ ir.Unit, in []int) []int { return []int{fn(in[0], in[1])} },
			},
		})
	}
	decls = append(decls,
		pipelineRegister(),
		literal(),
		constant(),
		reg(),
		mem(),
	)

	for _, d := range decls {
		if _, err := cat.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func setDone(u ir.Unit) { u.SetDone(true) }

// PipelineRegister delays its input by one cycle. Consumers see the value
// latched at the end of the previous cycle.
func pipelineRegister() ir.Declaration {
	return ir.Declaration{
		Name:            PipelineRegisterName,
		Body:            &ir.PrimitiveBody{IsOperation: true, Operation: "{0}"},
		InputDelays:     make([]int, 1),
		OutputLatencies: []int{1},
		Behavior: ir.Behavior{
			Init: setDone,
			Update: func(_ ir.Unit, in []int) []int {
				return []int{in[0]}
			},
		},
	}
}

func literal() ir.Declaration {
	return ir.Declaration{
		Name:            LiteralName,
		Body:            &ir.PrimitiveBody{IsOperation: true, Operation: "{lit}"},
		OutputLatencies: make([]int, 1),
		Behavior: ir.Behavior{
			Init: setDone,
			Update: func(u ir.Unit, _ []int) []int {
				return []int{u.Instance().Literal}
			},
		},
	}
}

func constant() ir.Declaration {
	return ir.Declaration{
		Name:            ConstName,
		Body:            &ir.PrimitiveBody{},
		OutputLatencies: make([]int, 1),
		Configs:         []ir.Wire{{Name: "constant", BitSize: 32}},
		Behavior: ir.Behavior{
			Init: setDone,
			Update: func(u ir.Unit, _ []int) []int {
				return []int{u.Config()[0]}
			},
		},
	}
}

// Reg latches its input once its delay register is reached and holds it.
func reg() ir.Declaration {
	return ir.Declaration{
		Name:            RegName,
		Body:            &ir.PrimitiveBody{},
		InputDelays:     make([]int, 1),
		OutputLatencies: []int{1},
		Configs:         []ir.Wire{{Name: "disabled", BitSize: 1}},
		States:          []ir.Wire{{Name: "currentValue", BitSize: 32}},
		NumDelays:       1,
		ExtraDataSize:   4,
		DelayType:       ir.DelaySink,
		ImplementsDone:  true,
		Behavior: ir.Behavior{
			Start: func(u ir.Unit) []int {
				ir.SetExtraInt(u.ExtraData(), 0, 0)
				u.SetDone(u.Config()[0] != 0)
				return []int{u.State()[0]}
			},
			Update: func(u ir.Unit, in []int) []int {
				counter := ir.ExtraInt(u.ExtraData(), 0)
				if u.Config()[0] == 0 && counter == u.Delay()[0] {
					u.State()[0] = in[0]
					u.SetDone(true)
				}
				ir.SetExtraInt(u.ExtraData(), 0, counter+1)
				return []int{u.State()[0]}
			},
		},
	}
}

// Mem is a memory mapped single port memory. Port 0 is the address, port 1
// the data written when the write config is set.
func mem() ir.Declaration {
	words := 1 << MemAddressBits
	return ir.Declaration{
		Name:                MemName,
		Body:                &ir.PrimitiveBody{},
		InputDelays:         make([]int, 2),
		OutputLatencies:     []int{1},
		Configs:             []ir.Wire{{Name: "write", BitSize: 1}},
		ExternalMemoryWords: words,
		IsMemoryMapped:      true,
		MemoryMapBits:       MemAddressBits,
		DelayType:           ir.DelaySource,
		Behavior: ir.Behavior{
			Init: setDone,
			Update: func(u ir.Unit, in []int) []int {
				m := u.ExternalMemory()
				addr := in[0] & (words - 1)
				out := m[addr]
				if u.Config()[0] != 0 {
					m[addr] = in[1]
				}
				return []int{out}
			},
			MemAccess: func(u ir.Unit, address, value int, write bool) int {
				m := u.ExternalMemory()
				addr := address & (words - 1)
				if write {
					m[addr] = value
					return 0
				}
				return m[addr]
			},
		},
	}
}
