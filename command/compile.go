package command

import (
	"fmt"
	"strings"
)

// CompileCommand registers a chip and writes the generated sources.
type CompileCommand struct {
	Meta
}

func (c *CompileCommand) Run(args []string) int {
	var out string
	var noEmit bool
	f := c.flagSet("compile")
	f.StringVar(&out, "out", "", "override the output directory")
	f.BoolVar(&noEmit, "no-emit", false, "only check the chip, write nothing")
	if err := f.Parse(args); err != nil {
		c.Ui.Error(c.Help())
		return 1
	}
	if f.NArg() != 1 {
		c.Ui.Error("compile needs exactly one chip name\n\n" + c.Help())
		return 1
	}

	opts, err := c.loadOptions()
	if err != nil {
		c.showError(err)
		return 1
	}
	if out != "" {
		opts.OutputDir = out
	}
	if noEmit {
		opts.EmitSource = false
	}

	b, err := c.compile(f.Arg(0), opts)
	if err != nil {
		c.showError(err)
		return 1
	}
	v := b.values
	c.Ui.Output(fmt.Sprintf("%s: %d units, %d configs, %d statics, %d delays, %d states, %d address bits",
		b.decl.Name, v.NumberUnits, v.Configs, v.Statics, v.Delays, v.States, v.AddressSize))
	if opts.EmitSource {
		c.Ui.Output("sources written to " + opts.OutputDir)
	}
	return 0
}

func (c *CompileCommand) Help() string {
	helpText := `
Usage: versat compile [options] <package>.<chip>

  Registers the chip and every unit it instantiates, balances its delays,
  lays out the address space and writes the generated sources.

Options:

  -dir=path          Directory holding the circuit packages. Defaults to ".".

  -options=path      YAML options file.

  -log-level=level   Override the log level of the options file.

  -out=path          Override the output directory.

  -no-emit           Only check the chip, write nothing.
`
	return strings.TrimSpace(helpText)
}

func (c *CompileCommand) Synopsis() string {
	return "Compile a chip into an accelerator"
}
