package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const usage = `usage: admin <command> [flags] [args]

  rules list    [-config f] [-kind k]
  rules show    [-config f] <kind> <name>
  rules default <kind>
  rules check   [-file f] <kind> [name]     validate a record without saving it
  rules save    [-config f] [-file f] <kind> <name>   record from -file or stdin
  rules delete  [-config f] <kind> <name>
  scores objectives [-config f]
  scores top    [-config f] [-limit n] <objective>
  scores get    [-config f] <objective> <actor>
  scores add    [-config f] [-amount r] [-mode add|remove] [-allow_negative] <objective> <actor>
  range parse   <text>...
  range check   <range> <value>
  events check  <file>...
  snapshot export [-config f] [-out path]
  snapshot import [-config f] <path>
  snapshot info   <path>
`

// usageError exits with status 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	now    func() time.Time
}

func main() {
	c := &cli{in: os.Stdin, out: os.Stdout, errOut: os.Stderr, now: time.Now}
	if err := c.run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func (c *cli) run(args []string) error {
	if len(args) < 2 {
		return usagef("missing command")
	}
	switch args[0] {
	case "rules":
		return c.rulesCmd(args[1], args[2:])
	case "scores":
		return c.scoresCmd(args[1], args[2:])
	case "range":
		return c.rangeCmd(args[1], args[2:])
	case "events":
		return c.eventsCmd(args[1], args[2:])
	case "snapshot":
		return c.snapshotCmd(args[1], args[2:])
	}
	return usagef("unknown command %q", args[0])
}
