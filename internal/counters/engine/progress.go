package engine

import (
	"math"

	"countercraft.ai/internal/counters/filter"
	"countercraft.ai/internal/counters/rules"
)

type progressKey struct {
	kind  rules.Kind
	rule  string
	actor string
}

type progressState struct {
	owner     *rules.Rule
	pos       filter.Vec3
	dim       string
	tick      uint64
	remainder float64
}

// Tracker keeps per-actor, per-rule continuation state for distance and
// playtime rules across ticks.
type Tracker struct {
	states map[progressKey]*progressState
}

func NewTracker() *Tracker {
	return &Tracker{states: map[progressKey]*progressState{}}
}

// Observe records the actor's latest sample for rule and returns the step
// since the previous one: blocks moved for distance, ticks elapsed for
// playtime. ok is false when tracking (re)starts: first sight, a rule that
// was saved again since the last sample, a dimension change, a
// non-advancing tick, or a step beyond the rule's MaxStep. A restart drops
// the sub-unit remainder.
func (t *Tracker) Observe(rule *rules.Rule, actorID, dim string, pos filter.Vec3, tick uint64) (step float64, ok bool) {
	var cfg rules.Progress
	if rule.Progress != nil {
		cfg = *rule.Progress
	}
	key := progressKey{kind: rule.Kind, rule: rule.Name, actor: actorID}
	fresh := progressState{owner: rule, pos: pos, dim: dim, tick: tick}
	st := t.states[key]
	if st == nil {
		t.states[key] = &fresh
		return 0, false
	}
	reset := func() (float64, bool) {
		*st = fresh
		return 0, false
	}
	if st.owner != rule || !filter.SameID(st.dim, dim) {
		return reset()
	}
	switch rule.Kind {
	case rules.Playtime:
		if tick <= st.tick {
			return reset()
		}
		step = float64(tick - st.tick)
	default:
		d := pos.Sub(st.pos)
		if cfg.IgnoreY {
			d.Y = 0
		}
		step = d.Len()
	}
	if cfg.MaxStep > 0 && step > cfg.MaxStep {
		return reset()
	}
	st.pos = pos
	st.tick = tick
	return step, true
}

// Accrue adds step to the remainder and returns how many whole units of
// every it completes.
func (t *Tracker) Accrue(kind rules.Kind, rule, actorID string, step, every float64) int {
	st := t.states[progressKey{kind: kind, rule: rule, actor: actorID}]
	if st == nil || every <= 0 || step <= 0 {
		return 0
	}
	st.remainder += step
	units := math.Floor(st.remainder / every)
	if units <= 0 {
		return 0
	}
	st.remainder -= units * every
	if units > math.MaxInt32 {
		units = math.MaxInt32
	}
	return int(units)
}

// Remainder is the progress carried toward the next unit.
func (t *Tracker) Remainder(kind rules.Kind, rule, actorID string) float64 {
	if st := t.states[progressKey{kind: kind, rule: rule, actor: actorID}]; st != nil {
		return st.remainder
	}
	return 0
}

// Forget drops every state held for actorID.
func (t *Tracker) Forget(actorID string) {
	for k := range t.states {
		if k.actor == actorID {
			delete(t.states, k)
		}
	}
}

// Reset drops the state of one actor under one rule; the next sample starts
// tracking afresh.
func (t *Tracker) Reset(kind rules.Kind, rule, actorID string) {
	delete(t.states, progressKey{kind: kind, rule: rule, actor: actorID})
}

func (t *Tracker) Len() int { return len(t.states) }
