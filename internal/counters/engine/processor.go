package engine

import (
	"fmt"
	"io"
	"log"
	"strconv"

	"countercraft.ai/internal/counters/delta"
	"countercraft.ai/internal/counters/filter"
	"countercraft.ai/internal/counters/notify"
	"countercraft.ai/internal/counters/rules"
	"countercraft.ai/internal/counters/score"
	"countercraft.ai/internal/protocol"
)

const (
	RoleActor  = "actor"
	RoleTarget = "target"
)

// Outcome reports what one rule did with one event.
type Outcome struct {
	Kind    rules.Kind
	Rule    string
	ActorID string
	Tick    uint64
	Passed  bool
	Failure *filter.Failure
	Units   int
	Results []delta.Result
	Err     string
}

type Options struct {
	Seed    uint64
	Retries int
	// Lang selects digit grouping in notifications; "en" when empty.
	Lang   string
	Logger *log.Logger
	// Console receives the logToConsole lines of rules; Logger when nil.
	Console *log.Logger
	// Kinds limits processing to the listed kinds; all kinds when empty.
	Kinds []rules.Kind
}

// Processor evaluates host events against every loaded rule and applies
// the increments of the rules that pass. It is not safe for concurrent use.
type Processor struct {
	book     *rules.Book
	scores   *score.Store
	applier  *delta.Applier
	sink     notify.Sink
	log      *log.Logger
	console  *log.Logger
	nums     *notify.Numbers
	enabled  map[rules.Kind]bool
	progress *Tracker
	tick     uint64
}

func New(book *rules.Book, scores *score.Store, sink notify.Sink, opts Options) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if sink == nil {
		sink = notify.Discard{}
	}
	console := opts.Console
	if console == nil {
		console = logger
	}
	lang := opts.Lang
	if lang == "" {
		lang = "en"
	}
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = rules.Kinds
	}
	enabled := make(map[rules.Kind]bool, len(kinds))
	for _, k := range kinds {
		enabled[k] = true
	}
	return &Processor{
		book:     book,
		scores:   scores,
		applier:  delta.New(opts.Seed, opts.Retries),
		sink:     sink,
		log:      logger,
		console:  console,
		nums:     notify.NewNumbers(lang),
		enabled:  enabled,
		progress: NewTracker(),
	}
}

// Tick is the tick of the event being, or last, processed.
func (p *Processor) Tick() uint64 { return p.tick }

func (p *Processor) Progress() *Tracker { return p.progress }

// Forget drops the progress state of an actor that left.
func (p *Processor) Forget(actorID string) { p.progress.Forget(actorID) }

// ApplyDelta applies spec to one actor's objective outside of any rule.
func (p *Processor) ApplyDelta(objectiveID, actorID string, spec delta.Spec) delta.Result {
	p.scores.GetOrCreate(objectiveID, "")
	return p.applier.Apply(p.scores, objectiveID, actorID, spec)
}

// binding maps an event onto one rule kind: whose objective moves and who
// the secondary filters look at.
type binding struct {
	kind   rules.Kind
	actor  filter.Actor
	target filter.Actor
	placed bool
}

func bindings(ev Event) []binding {
	if ev.Subject == nil {
		return nil
	}
	switch ev.Type {
	case protocol.TypeEntityDeath:
		var out []binding
		killer, victim := ev.Source, ev.Subject
		if filter.IsPlayer(killer) {
			out = append(out, binding{kind: rules.Kill, actor: killer, target: victim})
			if filter.IsPlayer(victim) {
				out = append(out, binding{kind: rules.PvP, actor: killer, target: victim})
			}
		}
		if filter.IsPlayer(victim) {
			out = append(out, binding{kind: rules.Death, actor: victim, target: killer})
		}
		return out
	case protocol.TypeBlockBreak, protocol.TypeBlockPlace:
		if !filter.IsPlayer(ev.Subject) {
			return nil
		}
		return []binding{{kind: rules.Block, actor: ev.Subject, placed: ev.Type == protocol.TypeBlockPlace}}
	case protocol.TypeContainerOpen:
		if !filter.IsPlayer(ev.Subject) {
			return nil
		}
		return []binding{{kind: rules.Container, actor: ev.Subject}}
	case protocol.TypePlayerTick:
		if !filter.IsPlayer(ev.Subject) {
			return nil
		}
		return []binding{{kind: rules.Distance, actor: ev.Subject}, {kind: rules.Playtime, actor: ev.Subject}}
	}
	return nil
}

// Process runs ev through every kind it concerns, in kind order, and each
// kind's rules in registry order.
func (p *Processor) Process(ev Event) []Outcome {
	p.tick = ev.Tick
	var out []Outcome
	for _, b := range bindings(ev) {
		out = append(out, p.processBinding(b, ev)...)
	}
	return out
}

// ProcessKind runs ev through the rules of a single kind.
func (p *Processor) ProcessKind(kind rules.Kind, ev Event) []Outcome {
	p.tick = ev.Tick
	var out []Outcome
	for _, b := range bindings(ev) {
		if b.kind == kind {
			out = append(out, p.processBinding(b, ev)...)
		}
	}
	return out
}

func (p *Processor) processBinding(b binding, ev Event) []Outcome {
	if !p.enabled[b.kind] || b.actor == nil {
		return nil
	}
	reg := p.book.Registry(b.kind)
	if reg == nil {
		return nil
	}
	rs := reg.Rules()
	out := make([]Outcome, 0, len(rs))
	for _, rule := range rs {
		out = append(out, p.runRule(rule, b, ev))
	}
	return out
}

func (p *Processor) runRule(rule *rules.Rule, b binding, ev Event) (out Outcome) {
	out = Outcome{Kind: b.kind, Rule: rule.Name, ActorID: b.actor.ID(), Tick: ev.Tick}
	defer func() {
		if r := recover(); r != nil {
			out.Passed = false
			out.Err = fmt.Sprint(r)
			p.log.Printf("%s: recovered: %v", rules.Key(b.kind, rule.Name), r)
		}
	}()

	loc, dim := ev.Location, ev.Dimension
	if b.kind.Progressive() {
		loc, dim = b.actor.Location(), b.actor.DimensionID()
	}
	if dim == "" {
		dim = b.actor.DimensionID()
	}

	if !rule.Enabled {
		if b.kind.Progressive() {
			p.progress.Reset(b.kind, rule.Name, b.actor.ID())
		}
		out.Failure = &filter.Failure{Stage: filter.StageEnabled}
		return out
	}
	var step float64
	var stepping bool
	if b.kind.Progressive() {
		step, stepping = p.progress.Observe(rule, b.actor.ID(), dim, loc, ev.Tick)
	}
	if f := p.check(rule, b, ev, loc, dim); f != nil {
		out.Failure = f
		p.reportFailure(rule, b, f)
		return out
	}

	units := 1
	if b.kind.Progressive() {
		units = 0
		if stepping {
			units = p.progress.Accrue(b.kind, rule.Name, b.actor.ID(), step, rule.Progress.Every)
		}
		if units == 0 {
			out.Failure = &filter.Failure{Stage: filter.StageProgress}
			return out
		}
	}

	out.Passed = true
	out.Units = units
	out.Results = p.fire(rule, b, loc, dim, units)
	return out
}

// check runs the filter chain in its fixed order and returns the first
// failure.
func (p *Processor) check(rule *rules.Rule, b binding, ev Event, loc filter.Vec3, dim string) *filter.Failure {
	if !filter.Dimension(rule.Dimensions, dim) {
		return filter.Fail(filter.StageDimension, "", "%s", dim)
	}
	if b.kind == rules.Block && !rule.BlockAction.Allows(b.placed) {
		return filter.Fail(filter.StageGate, "", "block %s", actionName(b.placed))
	}
	if b.kind.HasBlocks() && !filter.MatchID(rule.Blocks, ev.BlockID) {
		return filter.Fail(filter.StageGate, "", "block %s", ev.BlockID)
	}
	if b.kind.HasCauses() && !filter.MatchID(rule.Causes, ev.Cause) {
		return filter.Fail(filter.StageGate, "", "cause %s", ev.Cause)
	}
	if f := rule.Subject.CheckIdentity(RoleActor, b.actor); f != nil {
		return f
	}
	if ok, why := rule.Location.Check(loc); !ok {
		return &filter.Failure{Stage: filter.StageLocation, Detail: why}
	}
	if f := rule.Subject.CheckTraits(RoleActor, b.actor, p.scores); f != nil {
		return f
	}
	if b.kind.HasTarget() && !rule.Target.Empty() {
		if b.target == nil {
			return filter.Fail(filter.StageType, RoleTarget, "none")
		}
		if f := rule.Target.Check(RoleTarget, b.target, p.scores); f != nil {
			return f
		}
	}
	return nil
}

func actionName(placed bool) string {
	if placed {
		return "place"
	}
	return "break"
}

// reportFailure tells the actor why a rule did not count, when the rule asks
// for it. Event-level rejections (disabled, wrong dimension, gates) and
// per-tick kinds stay silent.
func (p *Processor) reportFailure(rule *rules.Rule, b binding, f *filter.Failure) {
	if !rule.Notifications.SendFailureMessages || b.kind.Progressive() {
		return
	}
	switch f.Stage {
	case filter.StageEnabled, filter.StageDimension, filter.StageGate:
		return
	}
	vars := p.baseVars(rule, b, filter.Vec3{}, "")
	vars["reason"] = f.String()
	p.notifyErr(rule, p.sink.SendMessage(b.actor.ID(), notify.Render(notify.DefaultFailureMessage, vars)))
}

// fire applies a passing rule: command, one delta per objective and unit,
// then notifications.
func (p *Processor) fire(rule *rules.Rule, b binding, loc filter.Vec3, dim string, units int) []delta.Result {
	vars := p.baseVars(rule, b, loc, dim)
	if rule.Command != "" {
		cmd := notify.Render(rule.Command, vars)
		for i := 0; i < units; i++ {
			p.notifyErr(rule, p.sink.RunCommand(b.actor.ID(), cmd))
		}
	}

	results := make([]delta.Result, 0, len(rule.Objectives))
	for _, ref := range rule.Objectives {
		obj := p.scores.GetOrCreate(ref.ID, ref.DisplayName)
		if obj.ID == "" {
			continue
		}
		res := p.applier.Apply(p.scores, obj.ID, b.actor.ID(), rule.Increment)
		for i := 1; i < units; i++ {
			next := p.applier.Apply(p.scores, obj.ID, b.actor.ID(), rule.Increment)
			res.New = next.New
		}
		results = append(results, res)
		p.announce(rule, b, vars, obj, res)
	}
	return results
}

func (p *Processor) announce(rule *rules.Rule, b binding, base notify.Vars, obj score.Objective, res delta.Result) {
	vars := make(notify.Vars, len(base)+6)
	for k, v := range base {
		vars[k] = v
	}
	vars["objective"] = obj.ID
	vars["objectiveName"] = obj.DisplayName
	vars["delta"] = p.nums.Signed(res.Delta())
	vars["old"] = p.nums.Int(int64(res.Old))
	vars["score"] = p.nums.Int(int64(res.New))

	n := rule.Notifications
	actorID := b.actor.ID()
	if n.SendMessages {
		tmpl := n.Message
		if tmpl == "" {
			tmpl = notify.DefaultMessage
		}
		p.notifyErr(rule, p.sink.SendMessage(actorID, notify.Render(tmpl, vars)))
	}
	if n.ActionBar {
		p.notifyErr(rule, p.sink.ShowActionBar(actorID, n.ActionBarFormat+notify.Render(notify.DefaultActionBar, vars)))
	}
	if n.LogToMenu {
		p.notifyErr(rule, p.sink.AppendLog(notify.Render(notify.DefaultLogLine, vars)))
	}
	if n.LogToConsole {
		p.console.Print(notify.Render(notify.DefaultLogLine, vars))
	}
}

func (p *Processor) baseVars(rule *rules.Rule, b binding, loc filter.Vec3, dim string) notify.Vars {
	x, y, z := loc.Block()
	vars := notify.Vars{
		"actor":     b.actor.Name(),
		"actorId":   b.actor.ID(),
		"rule":      rule.Name,
		"kind":      string(rule.Kind),
		"x":         strconv.FormatInt(x, 10),
		"y":         strconv.FormatInt(y, 10),
		"z":         strconv.FormatInt(z, 10),
		"dimension": dim,
		"target":    "",
	}
	if b.target != nil {
		vars["target"] = b.target.Name()
	}
	return vars
}

func (p *Processor) notifyErr(rule *rules.Rule, err error) {
	if err != nil {
		p.log.Printf("%s: notify: %v", rules.Key(rule.Kind, rule.Name), err)
	}
}
