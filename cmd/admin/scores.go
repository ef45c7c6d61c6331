package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"

	"countercraft.ai/internal/config"
	"countercraft.ai/internal/counters/delta"
	"countercraft.ai/internal/counters/rangespec"
	"countercraft.ai/internal/counters/score"
	"countercraft.ai/internal/persistence/scoredb"
)

func (c *cli) openScores(cfgPath string) (*scoredb.DB, config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfg, err
	}
	db, err := scoredb.OpenSQLite(cfg.ScoresDB)
	if err != nil {
		return nil, cfg, fmt.Errorf("open scores %s: %w", cfg.ScoresDB, err)
	}
	return db, cfg, nil
}

func (c *cli) scoresCmd(sub string, args []string) error {
	var fs *flag.FlagSet
	var cfgPath *string
	switch sub {
	case "objectives", "top", "get", "add":
		fs, cfgPath = c.flags("scores " + sub)
	default:
		return usagef("unknown scores command %q", sub)
	}
	limit := 10
	amount := "1"
	mode := string(delta.Add)
	allowNegative := false
	switch sub {
	case "top":
		fs.IntVar(&limit, "limit", limit, "max rows (0 for all)")
	case "add":
		fs.StringVar(&amount, "amount", amount, "increment range, e.g. 5 or 1..3")
		fs.StringVar(&mode, "mode", mode, "add or remove")
		fs.BoolVar(&allowNegative, "allow_negative", false, "let the score go below zero")
	}
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}

	want := map[string]int{"objectives": 0, "top": 1, "get": 2, "add": 2}[sub]
	if fs.NArg() != want {
		return usagef("scores %s: want %d argument(s)", sub, want)
	}

	var spec delta.Spec
	if sub == "add" {
		r, ok := rangespec.Parse(amount)
		if !ok {
			return usagef("bad -amount %q", amount)
		}
		spec = delta.Spec{Amount: r, Mode: delta.Mode(mode), AllowNegative: allowNegative}
		if spec.Mode != delta.Add && spec.Mode != delta.Remove {
			return usagef("bad -mode %q", mode)
		}
	}

	db, cfg, err := c.openScores(*cfgPath)
	if err != nil {
		return err
	}
	defer db.Close()

	switch sub {
	case "objectives":
		objs, err := db.Objectives()
		if err != nil {
			return err
		}
		for _, o := range objs {
			if err := c.printJSON(o, false); err != nil {
				return err
			}
		}
	case "top":
		es := db.Standings(fs.Arg(0))
		if limit > 0 && len(es) > limit {
			es = es[:limit]
		}
		for i, e := range es {
			row := struct {
				Rank int `json:"rank"`
				score.Entry
			}{Rank: i + 1, Entry: e}
			if err := c.printJSON(row, false); err != nil {
				return err
			}
		}
	case "get":
		// A missing score reads as 0.
		v, _, err := db.Score(fs.Arg(0), fs.Arg(1))
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, strconv.FormatInt(int64(v), 10))
	case "add":
		store := score.NewStore(db, log.New(c.errOut, "[scores] ", 0))
		obj := store.GetOrCreate(fs.Arg(0), "")
		res := delta.New(cfg.Seed, cfg.DeltaRetries).Apply(store, obj.ID, fs.Arg(1), spec)
		if err := c.printJSON(res, false); err != nil {
			return err
		}
	}
	return nil
}
