package command

import (
	"strings"

	"github.com/fexolm/versat/layout"
)

// MemmapCommand prints the address space of a compiled chip.
type MemmapCommand struct {
	Meta
}

func (c *MemmapCommand) Run(args []string) int {
	f := c.flagSet("memmap")
	if err := f.Parse(args); err != nil {
		c.Ui.Error(c.Help())
		return 1
	}
	if f.NArg() != 1 {
		c.Ui.Error("memmap needs exactly one chip name\n\n" + c.Help())
		return 1
	}
	opts, err := c.loadOptions()
	if err != nil {
		c.showError(err)
		return 1
	}
	opts.EmitSource = false

	b, err := c.compile(f.Arg(0), opts)
	if err != nil {
		c.showError(err)
		return 1
	}
	var sb strings.Builder
	if err := layout.WriteMemoryMap(&sb, b.values); err != nil {
		c.showError(err)
		return 1
	}
	c.Ui.Output(strings.TrimRight(sb.String(), "\n"))
	return 0
}

func (c *MemmapCommand) Help() string {
	helpText := `
Usage: versat memmap [options] <package>.<chip>

  Prints how the address bits of the accelerator are split between config
  and state registers and the memory mapped units.

Options:

  -dir=path          Directory holding the circuit packages. Defaults to ".".

  -options=path      YAML options file.

  -log-level=level   Override the log level of the options file.
`
	return strings.TrimSpace(helpText)
}

func (c *MemmapCommand) Synopsis() string {
	return "Show the address map of a chip"
}
