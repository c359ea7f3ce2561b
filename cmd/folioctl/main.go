// Command folioctl operates a stockfolio ledger from the terminal. It opens
// the same databases as the server, configured from the same environment.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var raw = flag.Bool("raw", false, "print plain markdown instead of styled terminal output")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	e := newEnv(openContainer, os.Stdout, os.Stderr)
	for group, cmds := range e.commands() {
		for _, c := range cmds {
			commander.Register(c, group)
		}
	}

	flag.Parse()
	e.raw = *raw
	os.Exit(int(commander.Execute(context.Background())))
}
