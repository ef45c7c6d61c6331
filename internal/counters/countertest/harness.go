package countertest

import (
	"testing"

	"countercraft.ai/internal/counters/engine"
	"countercraft.ai/internal/counters/filter"
	"countercraft.ai/internal/counters/notify"
	"countercraft.ai/internal/counters/rules"
	"countercraft.ai/internal/counters/score"
	"countercraft.ai/internal/persistence/kv"
	"countercraft.ai/internal/protocol"
)

// Harness is a black-box helper for driving the processor through exported
// APIs only:
// - Rule() stores a raw rule record and reloads the book
// - Kill/Break/Place/Open/Walk emit events and return the outcomes
// - Sink records every notification
type Harness struct {
	T      *testing.T
	KV     *kv.Memory
	Book   *rules.Book
	Scores *score.Store
	Sink   *notify.Recorder
	Proc   *engine.Processor

	Dimension string
	tick      uint64
}

func NewHarness(t *testing.T, seed uint64) *Harness {
	t.Helper()
	h := &Harness{
		T:         t,
		KV:        kv.NewMemory(),
		Scores:    score.NewStore(score.NewMemory(), nil),
		Sink:      &notify.Recorder{},
		Dimension: "minecraft:overworld",
	}
	h.Book = rules.NewBook(h.KV, nil)
	h.Proc = engine.New(h.Book, h.Scores, h.Sink, engine.Options{Seed: seed})
	return h
}

// Rule stores raw as the record of kind/name, the way a configuration form
// would, and reloads the kind's registry.
func (h *Harness) Rule(kind rules.Kind, name, raw string) {
	h.T.Helper()
	if err := h.KV.Set(rules.Key(kind, name), raw); err != nil {
		h.T.Fatalf("store rule: %v", err)
	}
	n, err := h.Book.Registry(kind).Load()
	if err != nil {
		h.T.Fatalf("load %s rules: %v", kind, err)
	}
	if _, ok := h.Book.Registry(kind).Get(name); !ok {
		h.T.Fatalf("rule %s was not loaded (%d loaded)", rules.Key(kind, name), n)
	}
}

func (h *Harness) Player(id string, tags ...string) *engine.Snapshot {
	return &engine.Snapshot{
		EntityID:    id,
		DisplayName: id,
		Type:        filter.PlayerType,
		TagList:     tags,
		Dim:         h.Dimension,
	}
}

func (h *Harness) Mob(id, typeID string, families ...string) *engine.Snapshot {
	return &engine.Snapshot{
		EntityID:   id,
		Type:       typeID,
		FamilyList: families,
		Dim:        h.Dimension,
	}
}

func (h *Harness) next() uint64 {
	h.tick++
	return h.tick
}

func (h *Harness) emit(ev engine.Event) []engine.Outcome {
	if ev.Dimension == "" && ev.Subject != nil {
		ev.Dimension = ev.Subject.DimensionID()
	}
	return h.Proc.Process(ev)
}

func (h *Harness) Kill(killer, victim *engine.Snapshot, cause string) []engine.Outcome {
	ev := engine.Event{Type: protocol.TypeEntityDeath, Tick: h.next(), Subject: victim, Location: victim.Pos, Cause: cause}
	if killer != nil {
		ev.Source = killer
	}
	return h.emit(ev)
}

func (h *Harness) Break(p *engine.Snapshot, block string, at filter.Vec3) []engine.Outcome {
	return h.emit(engine.Event{Type: protocol.TypeBlockBreak, Tick: h.next(), Subject: p, Location: at, BlockID: block})
}

func (h *Harness) Place(p *engine.Snapshot, block string, at filter.Vec3) []engine.Outcome {
	return h.emit(engine.Event{Type: protocol.TypeBlockPlace, Tick: h.next(), Subject: p, Location: at, BlockID: block})
}

func (h *Harness) Open(p *engine.Snapshot, block string) []engine.Outcome {
	return h.emit(engine.Event{Type: protocol.TypeContainerOpen, Tick: h.next(), Subject: p, Location: p.Pos, BlockID: block})
}

// Walk moves p to pos and emits one player tick.
func (h *Harness) Walk(p *engine.Snapshot, pos filter.Vec3) []engine.Outcome {
	p.Pos = pos
	return h.emit(engine.Event{Type: protocol.TypePlayerTick, Tick: h.next(), Subject: p, Location: pos})
}

// Idle advances the clock by n ticks without emitting events.
func (h *Harness) Idle(n uint64) { h.tick += n }

func (h *Harness) Score(objective, actorID string) int32 {
	return h.Scores.Score(objective, actorID)
}

func (h *Harness) SetScore(objective, actorID string, v int32) {
	h.Scores.SetScore(objective, actorID, v)
}

// Only returns the outcome of one rule, failing the test when it is absent.
func (h *Harness) Only(outs []engine.Outcome, kind rules.Kind, name string) engine.Outcome {
	h.T.Helper()
	for _, o := range outs {
		if o.Kind == kind && o.Rule == name {
			return o
		}
	}
	h.T.Fatalf("no outcome for %s in %+v", rules.Key(kind, name), outs)
	return engine.Outcome{}
}
