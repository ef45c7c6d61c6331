package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"countercraft.ai/internal/config"
	"countercraft.ai/internal/counters/rules"
	"countercraft.ai/internal/persistence/kv"
)

func (c *cli) flags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	cfgPath := fs.String("config", "", "path to counters.yaml (optional; COUNTERCRAFT_* env overrides)")
	return fs, cfgPath
}

func (c *cli) openBook(cfgPath string) (*rules.Book, func() error, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := kv.OpenSQLite(cfg.RulesDB)
	if err != nil {
		return nil, nil, fmt.Errorf("open rules %s: %w", cfg.RulesDB, err)
	}
	book := rules.NewBook(store, log.New(c.errOut, "[rules] ", 0))
	if err := book.LoadAll(); err != nil {
		fmt.Fprintln(c.errOut, "load:", err)
	}
	return book, store.Close, nil
}

func kindArg(s string) (rules.Kind, error) {
	k, ok := rules.ParseKind(s)
	if !ok {
		return "", usagef("unknown kind %q (want one of %v)", s, rules.Kinds)
	}
	return k, nil
}

// kindAndName reads "<kind> <name>" from the remaining args.
func kindAndName(fs *flag.FlagSet) (rules.Kind, string, error) {
	if fs.NArg() != 2 {
		return "", "", usagef("%s: want <kind> <name>", fs.Name())
	}
	k, err := kindArg(fs.Arg(0))
	if err != nil {
		return "", "", err
	}
	name := strings.TrimSpace(fs.Arg(1))
	if name == "" {
		return "", "", usagef("%s: empty rule name", fs.Name())
	}
	return k, name, nil
}

func (c *cli) readRecord(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" || path == "-" {
		return io.ReadAll(c.in)
	}
	return os.ReadFile(path)
}

func (c *cli) printJSON(v any, indent bool) error {
	enc := json.NewEncoder(c.out)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

type ruleRow struct {
	Kind       string   `json:"kind"`
	Name       string   `json:"name"`
	Enabled    bool     `json:"enabled"`
	Objectives []string `json:"objectives"`
	Amount     string   `json:"amount"`
	Mode       string   `json:"mode"`
}

func (c *cli) rulesCmd(sub string, args []string) error {
	switch sub {
	case "list":
		fs, cfgPath := c.flags("rules list")
		kind := fs.String("kind", "", "only list rules of this kind")
		if err := fs.Parse(args); err != nil {
			return usagef("%v", err)
		}
		kinds := rules.Kinds
		if *kind != "" {
			k, err := kindArg(*kind)
			if err != nil {
				return err
			}
			kinds = []rules.Kind{k}
		}
		book, closeFn, err := c.openBook(*cfgPath)
		if err != nil {
			return err
		}
		defer closeFn()
		for _, k := range kinds {
			for _, r := range book.Registry(k).Rules() {
				row := ruleRow{Kind: string(k), Name: r.Name, Enabled: r.Enabled, Amount: r.AmountText(), Mode: string(r.Increment.Mode)}
				for _, o := range r.Objectives {
					row.Objectives = append(row.Objectives, o.ID)
				}
				if err := c.printJSON(row, false); err != nil {
					return err
				}
			}
		}
		return nil

	case "show":
		fs, cfgPath := c.flags("rules show")
		if err := fs.Parse(args); err != nil {
			return usagef("%v", err)
		}
		kind, name, err := kindAndName(fs)
		if err != nil {
			return err
		}
		book, closeFn, err := c.openBook(*cfgPath)
		if err != nil {
			return err
		}
		defer closeFn()
		r, ok := book.Registry(kind).Get(name)
		if !ok {
			return fmt.Errorf("%s: %w", rules.Key(kind, name), rules.ErrNotFound)
		}
		return c.printJSON(&r, true)

	case "default":
		if len(args) != 1 {
			return usagef("rules default: want <kind>")
		}
		kind, err := kindArg(args[0])
		if err != nil {
			return err
		}
		return c.printJSON(rules.Default(kind), true)

	case "check":
		fs := flag.NewFlagSet("rules check", flag.ContinueOnError)
		fs.SetOutput(c.errOut)
		file := fs.String("file", "", "record file (default stdin)")
		if err := fs.Parse(args); err != nil {
			return usagef("%v", err)
		}
		if fs.NArg() < 1 || fs.NArg() > 2 {
			return usagef("rules check: want <kind> [name]")
		}
		kind, err := kindArg(fs.Arg(0))
		if err != nil {
			return err
		}
		name := "check"
		if fs.NArg() == 2 {
			name = fs.Arg(1)
		}
		raw, err := c.readRecord(*file)
		if err != nil {
			return err
		}
		r, err := rules.Decode(kind, name, raw)
		if err != nil {
			return err
		}
		if err := r.Validate(); err != nil {
			return err
		}
		return c.printJSON(r, true)

	case "save":
		fs, cfgPath := c.flags("rules save")
		file := fs.String("file", "", "record file (default stdin)")
		if err := fs.Parse(args); err != nil {
			return usagef("%v", err)
		}
		kind, name, err := kindAndName(fs)
		if err != nil {
			return err
		}
		raw, err := c.readRecord(*file)
		if err != nil {
			return err
		}
		r, err := rules.Decode(kind, name, raw)
		if err != nil {
			return err
		}
		book, closeFn, err := c.openBook(*cfgPath)
		if err != nil {
			return err
		}
		defer closeFn()
		if err := book.Save(kind, name, *r); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "saved %s\n", rules.Key(kind, name))
		return nil

	case "delete":
		fs, cfgPath := c.flags("rules delete")
		if err := fs.Parse(args); err != nil {
			return usagef("%v", err)
		}
		kind, name, err := kindAndName(fs)
		if err != nil {
			return err
		}
		book, closeFn, err := c.openBook(*cfgPath)
		if err != nil {
			return err
		}
		defer closeFn()
		if err := book.Delete(kind, name); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "deleted %s\n", rules.Key(kind, name))
		return nil
	}
	return usagef("unknown rules command %q", sub)
}
