package main

import (
	"os"

	"github.com/mitchellh/cli"
	"github.com/tebeka/atexit"

	"github.com/fexolm/versat/command"
)

const version = "0.1.0"

func main() {
	ui := &cli.BasicUi{
		Reader:      os.Stdin,
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	c := cli.NewCLI("versat", version)
	c.Args = os.Args[1:]
	c.Commands = command.Commands(command.Meta{Ui: ui})

	status, err := c.Run()
	if err != nil {
		atexit.Fatalf("versat: %v", err)
	}
	atexit.Exit(status)
}
