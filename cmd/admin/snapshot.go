package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"countercraft.ai/internal/config"
	"countercraft.ai/internal/counters/rules"
	"countercraft.ai/internal/persistence/kv"
	"countercraft.ai/internal/persistence/scoredb"
	"countercraft.ai/internal/persistence/snapshot"
)

func (c *cli) snapshotCmd(sub string, args []string) error {
	fs, cfgPath := c.flags("snapshot " + sub)
	out := fs.String("out", "", "output path (export; default <data>/snapshots/<unix>.snap.zst)")
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}

	if sub == "info" {
		if fs.NArg() != 1 {
			return usagef("snapshot info: want <path>")
		}
		h, err := snapshot.ReadHeader(fs.Arg(0))
		if err != nil {
			return err
		}
		return c.printJSON(h, false)
	}
	if sub != "export" && sub != "import" {
		return usagef("unknown snapshot command %q", sub)
	}
	if sub == "import" && fs.NArg() != 1 {
		return usagef("snapshot import: want <path>")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	store, err := kv.OpenSQLite(cfg.RulesDB)
	if err != nil {
		return fmt.Errorf("open rules %s: %w", cfg.RulesDB, err)
	}
	defer store.Close()
	db, err := scoredb.OpenSQLite(cfg.ScoresDB)
	if err != nil {
		return fmt.Errorf("open scores %s: %w", cfg.ScoresDB, err)
	}
	defer db.Close()
	repo := rules.NewRepository(store)

	if sub == "import" {
		snap, err := snapshot.ReadSnapshot(fs.Arg(0))
		if err != nil {
			return err
		}
		if err := snapshot.Restore(snap, repo, db); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "imported rules=%d scores=%d\n", snap.Header.Rules, snap.Header.Scores)
		return nil
	}

	snap, err := snapshot.Capture(repo, db, 0)
	if err != nil {
		return err
	}
	path := strings.TrimSpace(*out)
	if path == "" {
		path = filepath.Join(cfg.DataDir, "snapshots", fmt.Sprintf("%d.snap.zst", c.now().Unix()))
	}
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "exported rules=%d scores=%d to %s\n", snap.Header.Rules, snap.Header.Scores, path)
	return nil
}
