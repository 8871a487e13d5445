package irgen

import (
	"github.com/hashicorp/go-hclog"

	"github.com/fexolm/versat/config"
	"github.com/fexolm/versat/ir"
	"github.com/fexolm/versat/retime"
)

// Sink receives every declaration right after it is registered.
type Sink interface {
	Emit(d *ir.Declaration) error
}

// Compiler carries everything registration needs. It is not safe for
// concurrent use.
type Compiler struct {
	Catalog *ir.Catalog
	Logger  hclog.Logger
	Options config.Options
	Sink    Sink

	retime *retime.Engine
}

func NewCompiler(cat *ir.Catalog, opts config.Options, logger hclog.Logger) *Compiler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	eng := retime.New(logger.Named("retime"))
	eng.UseFixedBuffers = opts.UseFixedBuffers
	return &Compiler{
		Catalog: cat,
		Logger:  logger,
		Options: opts,
		retime:  eng,
	}
}

func (c *Compiler) emit(d *ir.Declaration) error {
	if c.Sink == nil || !c.Options.EmitSource {
		return nil
	}
	return c.Sink.Emit(d)
}
