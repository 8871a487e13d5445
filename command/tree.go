package command

import (
	"fmt"
	"strings"

	"github.com/fexolm/versat/inspect"
)

// TreeCommand prints the instance hierarchy of a compiled chip.
type TreeCommand struct {
	Meta
}

func (c *TreeCommand) Run(args []string) int {
	var filter string
	var dump bool
	f := c.flagSet("tree")
	f.StringVar(&filter, "filter", "", "only list instances matching a dotted glob")
	f.BoolVar(&dump, "dump", false, "dump the chip declaration")
	if err := f.Parse(args); err != nil {
		c.Ui.Error(c.Help())
		return 1
	}
	if f.NArg() != 1 {
		c.Ui.Error("tree needs exactly one chip name\n\n" + c.Help())
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

	switch {
	case dump:
		c.Ui.Output(inspect.DumpDeclaration(b.decl))
	case filter != "":
		nodes, err := inspect.Filter(b.top, filter)
		if err != nil {
			c.showError(err)
			return 1
		}
		for _, n := range nodes {
			c.Ui.Output(fmt.Sprintf("%s:%s stage %d", n.FullName(), n.Decl().Name, n.Inst.BaseDelay))
		}
	default:
		c.Ui.Output(strings.TrimRight(inspect.Tree(b.top), "\n"))
	}
	return 0
}

func (c *TreeCommand) Help() string {
	helpText := `
Usage: versat tree [options] <package>.<chip>

  Prints every instance of the accelerator with its start stage and the
  storage windows it owns.

Options:

  -dir=path          Directory holding the circuit packages. Defaults to ".".

  -options=path      YAML options file.

  -filter=pattern    Only list instances whose dotted name matches pattern.
                     "*" matches inside one level, "**" across levels.

  -dump              Dump the chip declaration instead.
`
	return strings.TrimSpace(helpText)
}

func (c *TreeCommand) Synopsis() string {
	return "Show the instance hierarchy of a chip"
}
