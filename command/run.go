package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/fexolm/versat/interpret"
)

// RunCommand simulates a compiled chip.
type RunCommand struct {
	Meta
}

func parseInputs(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var res []int
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrapf(err, "input %q", part)
		}
		res = append(res, v)
	}
	return res, nil
}

func (c *RunCommand) Run(args []string) int {
	var inputs string
	var cycles int
	f := c.flagSet("run")
	f.StringVar(&inputs, "inputs", "", "comma separated values of the chip inputs")
	f.IntVar(&cycles, "cycles", 100, "maximum number of cycles to simulate")
	if err := f.Parse(args); err != nil {
		c.Ui.Error(c.Help())
		return 1
	}
	if f.NArg() != 1 {
		c.Ui.Error("run needs exactly one chip name\n\n" + c.Help())
		return 1
	}
	values, err := parseInputs(inputs)
	if err != nil {
		c.showError(err)
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
	if len(values) != b.decl.NumInputs() {
		c.Ui.Error(fmt.Sprintf("%s has %d inputs, got %d values", b.decl.Name, b.decl.NumInputs(), len(values)))
		return 1
	}

	sim := interpret.NewInterpreter(b.top, b.logger.Named("interpret"))
	if err := sim.Start(); err != nil {
		c.showError(err)
		return 1
	}
	for port, v := range values {
		if err := b.top.SetInputValue(port, v); err != nil {
			c.showError(err)
			return 1
		}
	}
	// Values need the full pipeline depth to reach the outputs.
	depth := 0
	if out := b.top.OutputInstance(); out != nil {
		depth = out.BaseDelay
	}
	for sim.Cycle() < cycles && (sim.Cycle() <= depth || !sim.Done()) {
		if err := sim.Step(); err != nil {
			c.showError(err)
			return 1
		}
	}

	outs := make([]string, b.decl.NumOutputs())
	for i := range outs {
		outs[i] = strconv.Itoa(b.top.OutputValue(i))
	}
	c.Ui.Output(fmt.Sprintf("cycles: %d done: %t", sim.Cycle(), sim.Done()))
	c.Ui.Output("outputs: " + strings.Join(outs, ", "))
	return 0
}

func (c *RunCommand) Help() string {
	helpText := `
Usage: versat run [options] <package>.<chip>

  Simulates the accelerator cycle by cycle with the given inputs and prints
  its outputs once every unit is done and the pipeline has filled.

Options:

  -dir=path          Directory holding the circuit packages. Defaults to ".".

  -options=path      YAML options file.

  -inputs=1,2        Values of the chip inputs, in port order.

  -cycles=n          Maximum number of cycles to simulate. Defaults to 100.
`
	return strings.TrimSpace(helpText)
}

func (c *RunCommand) Synopsis() string {
	return "Simulate a chip"
}
