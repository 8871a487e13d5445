package command

import (
	"flag"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/cli"
	"github.com/pkg/errors"

	"github.com/fexolm/versat/ast"
	"github.com/fexolm/versat/codegen"
	"github.com/fexolm/versat/config"
	"github.com/fexolm/versat/ir"
	"github.com/fexolm/versat/irgen"
	"github.com/fexolm/versat/layout"
	"github.com/fexolm/versat/units"
)

// Meta holds what every command shares.
type Meta struct {
	Ui cli.Ui

	// Logger, when set, replaces the logger built from the options.
	Logger hclog.Logger

	dir     string
	options string
	level   string
}

func (m *Meta) flagSet(name string) *flag.FlagSet {
	f := flag.NewFlagSet(name, flag.ContinueOnError)
	f.StringVar(&m.dir, "dir", ".", "directory holding the circuit packages")
	f.StringVar(&m.options, "options", "", "path to a YAML options file")
	f.StringVar(&m.level, "log-level", "", "override the log level of the options file")
	f.Usage = func() {}
	return f
}

func (m *Meta) loadOptions() (config.Options, error) {
	opts, err := config.Load(m.options)
	if err != nil {
		return opts, err
	}
	if m.level != "" {
		opts.LogLevel = m.level
		if err := opts.Validate(); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func (m *Meta) logger(opts config.Options) hclog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:  "versat",
		Level: opts.Level(),
	})
}

// build is one compiled accelerator.
type build struct {
	opts     config.Options
	logger   hclog.Logger
	compiler *irgen.Compiler
	decl     *ir.Declaration
	top      *ir.Accelerator
	values   layout.Values
}

// splitChip splits "pkg.Chip" into the package to load and the qualified
// chip name.
func splitChip(arg string) (string, string, error) {
	i := strings.IndexByte(arg, '.')
	if i <= 0 || i == len(arg)-1 {
		return "", "", errors.Errorf("expected <package>.<chip>, got %q", arg)
	}
	return arg[:i], arg, nil
}

// compile loads the package of chip, registers chip and every unit it
// needs, and lays out a top level accelerator holding one instance of it.
func (m *Meta) compile(chip string, opts config.Options) (*build, error) {
	pkg, qualified, err := splitChip(chip)
	if err != nil {
		return nil, err
	}
	log := m.logger(opts)

	cat := ir.NewCatalog()
	if err := units.Register(cat); err != nil {
		return nil, err
	}
	c := irgen.NewCompiler(cat, opts, log)
	gen := codegen.New(opts, log.Named("codegen"))
	if opts.EmitSource {
		c.Sink = &codegen.DirSink{Dir: opts.OutputDir, Gen: gen}
	}

	pkgs, err := ast.LoadPackages(m.dir, pkg)
	if err != nil {
		return nil, err
	}
	decl, err := c.GenerateIR(pkgs, qualified)
	if err != nil {
		return nil, err
	}
	top, err := c.Instantiate(decl, "versat")
	if err != nil {
		return nil, err
	}
	v, err := layout.Compute(top, opts)
	if err != nil {
		return nil, err
	}
	if opts.EmitSource {
		if err := gen.WriteAll(opts.OutputDir, top, v); err != nil {
			return nil, err
		}
	}
	return &build{
		opts:     opts,
		logger:   log,
		compiler: c,
		decl:     decl,
		top:      top,
		values:   v,
	}, nil
}

// showError prints every error of a multierror on its own line.
func (m *Meta) showError(err error) {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			m.Ui.Error(e.Error())
		}
		return
	}
	m.Ui.Error(err.Error())
}

// Commands is the command table of the versat binary.
func Commands(meta Meta) map[string]cli.CommandFactory {
	return map[string]cli.CommandFactory{
		"compile": func() (cli.Command, error) {
			return &CompileCommand{Meta: meta}, nil
		},
		"memmap": func() (cli.Command, error) {
			return &MemmapCommand{Meta: meta}, nil
		},
		"tree": func() (cli.Command, error) {
			return &TreeCommand{Meta: meta}, nil
		},
		"run": func() (cli.Command, error) {
			return &RunCommand{Meta: meta}, nil
		},
	}
}
