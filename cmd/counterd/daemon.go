package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"countercraft.ai/internal/config"
	"countercraft.ai/internal/counters/engine"
	"countercraft.ai/internal/counters/notify"
	"countercraft.ai/internal/counters/rules"
	"countercraft.ai/internal/counters/score"
	"countercraft.ai/internal/persistence/kv"
	persistlog "countercraft.ai/internal/persistence/log"
	"countercraft.ai/internal/persistence/scoredb"
	"countercraft.ai/internal/persistence/snapshot"
	"countercraft.ai/internal/protocol"
)

type stats struct {
	Events  int
	Skipped int
	Passed  int
	Changes int
	// Rejected counts skipped lines by decode error code.
	Rejected map[string]int
}

// rejectCode classifies a decode failure. Errors without a known code count
// as bad requests.
func rejectCode(err error) string {
	var de *protocol.DecodeError
	if errors.As(err, &de) && de.Code != "" && protocol.IsKnownCode(de.Code) {
		return de.Code
	}
	return protocol.ErrProtoBadRequest
}

// daemon owns the stores, logs and processor of one counterd run.
type daemon struct {
	log *log.Logger

	store  *kv.SQLite
	db     *scoredb.DB
	outbox *persistlog.OutboxLogger
	ledger *persistlog.CounterLogger

	book   *rules.Book
	source snapshot.Source
	proc   *engine.Processor
}

// openDaemon opens the rule store and loads every rule. Unless dryRun is
// set, scores come from the score database and feedback goes to the outbox
// and counter logs under cfg.LogDir; a dry run keeps scores in memory and
// only prints feedback.
func openDaemon(cfg config.Config, dryRun bool, logger *log.Logger) (*daemon, error) {
	store, err := kv.OpenSQLite(cfg.RulesDB)
	if err != nil {
		return nil, fmt.Errorf("open rules %s: %w", cfg.RulesDB, err)
	}
	d := &daemon{log: logger, store: store}

	d.book = rules.NewBook(store, log.New(logger.Writer(), "[rules] ", logger.Flags()))
	if err := d.book.LoadAll(); err != nil {
		logger.Printf("load rules: %v", err)
	}

	var backend snapshot.Source = score.NewMemory()
	var sink notify.Sink = notify.NewLogger(log.New(logger.Writer(), "[notify] ", logger.Flags()))
	if !dryRun {
		db, err := scoredb.OpenSQLite(cfg.ScoresDB)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("open scores %s: %w", cfg.ScoresDB, err)
		}
		d.db = db
		backend = db
		d.outbox = persistlog.NewOutboxLogger(cfg.LogDir)
		d.ledger = persistlog.NewCounterLogger(cfg.LogDir)
		// The outbox is stamped with the tick of the event being processed.
		sink = notify.Multi{
			&notify.Outbox{W: d.outbox, Tick: func() uint64 { return d.proc.Tick() }},
			notify.Journal{W: d.ledger},
		}
	}
	d.source = backend
	scores := score.NewStore(backend, log.New(logger.Writer(), "[scores] ", logger.Flags()))

	engineLog := log.New(logger.Writer(), "[engine] ", logger.Flags())
	console := engineLog
	if !cfg.ConsoleLog {
		console = log.New(io.Discard, "", 0)
	}
	d.proc = engine.New(d.book, scores, sink, engine.Options{
		Seed:    cfg.Seed,
		Retries: cfg.DeltaRetries,
		Lang:    cfg.Lang,
		Logger:  engineLog,
		Console: console,
		Kinds:   cfg.RuleKinds(),
	})
	return d, nil
}

// eventFiles returns path itself, or the sorted event files in directory path.
func eventFiles(path string) ([]string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return []string{path}, nil
	}
	ents, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".jsonl") || strings.HasSuffix(name, ".jsonl.zst") {
			out = append(out, filepath.Join(path, name))
		}
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil, fmt.Errorf("no event files in %s", path)
	}
	return out, nil
}

// replay feeds every event of files to the processor in order. Malformed
// events are logged and skipped unless strict is set.
func (d *daemon) replay(ctx context.Context, files []string, strict bool) (stats, error) {
	var st stats
	for _, path := range files {
		err := persistlog.EachLine(path, func(lineNo int, line []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			msg, err := protocol.DecodeEvent(line)
			if err != nil {
				if strict {
					return err
				}
				st.Skipped++
				code := rejectCode(err)
				if st.Rejected == nil {
					st.Rejected = make(map[string]int)
				}
				st.Rejected[code]++
				typ := "?"
				if base, berr := protocol.DecodeBase(line); berr == nil && base.Type != "" {
					typ = base.Type
				}
				d.log.Printf("%s:%d: skip type=%s: %v", filepath.Base(path), lineNo, typ, err)
				return nil
			}
			st.Events++
			d.record(d.proc.Process(engine.FromMsg(msg)), &st)
			return nil
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return st, context.Canceled
			}
			return st, err
		}
	}
	return st, nil
}

func (d *daemon) record(outs []engine.Outcome, st *stats) {
	for _, o := range outs {
		if o.Err != "" {
			d.log.Printf("%s: %s", rules.Key(o.Kind, o.Rule), o.Err)
		}
		if !o.Passed {
			continue
		}
		st.Passed++
		for _, r := range o.Results {
			st.Changes++
			if d.ledger == nil {
				continue
			}
			if err := d.ledger.WriteEntry(persistlog.CounterEntry{
				Tick:      o.Tick,
				Kind:      string(o.Kind),
				Rule:      o.Rule,
				ActorID:   r.ActorID,
				Objective: r.Objective,
				Old:       r.Old,
				New:       r.New,
			}); err != nil {
				d.log.Printf("counter log: %v", err)
			}
		}
	}
}

// writeSnapshot saves the current rules and scores to path.
func (d *daemon) writeSnapshot(path string) error {
	snap, err := snapshot.Capture(d.book.Repository(), d.source, d.proc.Tick())
	if err != nil {
		return err
	}
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return err
	}
	d.log.Printf("snapshot %s: rules=%d scores=%d tick=%d", path, snap.Header.Rules, snap.Header.Scores, snap.Header.Tick)
	return nil
}

func (d *daemon) close(ctx context.Context) error {
	var errs []error
	if d.db != nil {
		if err := d.db.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush scores: %w", err))
		}
		st := d.db.Stats()
		if st.WriteErrors > 0 {
			d.log.Printf("score writes: %d ok, %d failed", st.Written, st.WriteErrors)
		}
		errs = append(errs, d.db.Close())
	}
	if d.outbox != nil {
		errs = append(errs, d.outbox.Close())
	}
	if d.ledger != nil {
		errs = append(errs, d.ledger.Close())
	}
	errs = append(errs, d.store.Close())
	return errors.Join(errs...)
}
