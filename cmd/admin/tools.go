package main

import (
	"fmt"
	"strconv"

	"countercraft.ai/internal/counters/rangespec"
	persistlog "countercraft.ai/internal/persistence/log"
	"countercraft.ai/internal/protocol"
)

type rangeRow struct {
	Text    string `json:"text"`
	OK      bool   `json:"ok"`
	Min     int32  `json:"min"`
	Max     int32  `json:"max"`
	Exclude bool   `json:"exclude"`
	Format  string `json:"format"`
}

func (c *cli) rangeCmd(sub string, args []string) error {
	switch sub {
	case "parse":
		if len(args) == 0 {
			return usagef("range parse: want <text>...")
		}
		for _, text := range args {
			s, ok := rangespec.Parse(text)
			row := rangeRow{Text: text, OK: ok}
			if ok {
				row.Min, row.Max, row.Exclude, row.Format = s.Min, s.Max, s.Exclude, rangespec.Format(s)
			}
			if err := c.printJSON(row, false); err != nil {
				return err
			}
		}
		return nil
	case "check":
		if len(args) != 2 {
			return usagef("range check: want <range> <value>")
		}
		s, ok := rangespec.Parse(args[0])
		if !ok {
			return fmt.Errorf("no range in %q", args[0])
		}
		v, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return usagef("bad value %q", args[1])
		}
		fmt.Fprintf(c.out, "%s %d: %v\n", rangespec.Format(s), v, s.Passes(v))
		return nil
	}
	return usagef("unknown range command %q", sub)
}

// eventsCmd validates event files the way counterd reads them.
func (c *cli) eventsCmd(sub string, args []string) error {
	if sub != "check" {
		return usagef("unknown events command %q", sub)
	}
	if len(args) == 0 {
		return usagef("events check: want <file>...")
	}
	var total, bad int
	for _, path := range args {
		err := persistlog.EachLine(path, func(lineNo int, line []byte) error {
			total++
			if _, err := protocol.DecodeEvent(line); err != nil {
				bad++
				fmt.Fprintf(c.out, "%s:%d: %v\n", path, lineNo, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(c.out, "events=%d bad=%d\n", total, bad)
	if bad > 0 {
		return fmt.Errorf("%d malformed event(s)", bad)
	}
	return nil
}
