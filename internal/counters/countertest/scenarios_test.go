package countertest

import (
	"strings"
	"testing"

	"countercraft.ai/internal/counters/engine"
	"countercraft.ai/internal/counters/filter"
	"countercraft.ai/internal/counters/notify"
	"countercraft.ai/internal/counters/rules"
	"countercraft.ai/internal/protocol"
)

func TestKill_CountsMatchingVictimOnly(t *testing.T) {
	h := NewHarness(t, 1)
	h.Rule(rules.Kill, "zombies", `{"target":{"types":["minecraft:zombie"]},"objectives":[{"id":"zombieKills","displayName":"Zombie Kills"}]}`)
	steve := h.Player("steve")

	o := h.Only(h.Kill(steve, h.Mob("z1", "minecraft:zombie", "monster"), "entity_attack"), rules.Kill, "zombies")
	if !o.Passed || len(o.Results) != 1 || o.Results[0].New != 1 {
		t.Fatalf("zombie kill outcome=%+v", o)
	}
	msgs := h.Sink.Of(protocol.TypeMessage)
	if len(msgs) != 1 || msgs[0].ActorID != "steve" || !strings.Contains(msgs[0].Text, "Zombie Kills +1") {
		t.Fatalf("messages=%+v", msgs)
	}

	o = h.Only(h.Kill(steve, h.Mob("s1", "minecraft:skeleton", "monster"), "entity_attack"), rules.Kill, "zombies")
	if o.Passed || o.Failure.Stage != filter.StageType || o.Failure.Role != engine.RoleTarget {
		t.Fatalf("skeleton kill outcome=%+v failure=%v", o, o.Failure)
	}
	if got := h.Score("zombieKills", "steve"); got != 1 {
		t.Fatalf("zombieKills=%d want 1", got)
	}
}

func TestAddOneFromFive(t *testing.T) {
	h := NewHarness(t, 1)
	h.Rule(rules.Kill, "all", `{"incrementScore":{"amount":{"min":1,"max":1},"mode":"add","allowNegative":false}}`)
	h.SetScore("kills", "steve", 5)
	h.Kill(h.Player("steve"), h.Mob("z", "minecraft:zombie"), "")
	if got := h.Score("kills", "steve"); got != 6 {
		t.Fatalf("kills=%d want 6", got)
	}
}

func TestRemoveNeverGoesNegative(t *testing.T) {
	h := NewHarness(t, 1)
	h.Rule(rules.Death, "penalty", `{"incrementScore":{"amount":{"min":1,"max":1},"mode":"remove"}}`)
	o := h.Only(h.Kill(nil, h.Player("alex"), "fall"), rules.Death, "penalty")
	if !o.Passed || o.Results[0].New != 0 {
		t.Fatalf("outcome=%+v", o)
	}
	if got := h.Score("deaths", "alex"); got != 0 {
		t.Fatalf("deaths=%d want 0", got)
	}
}

func TestScoreExclusionRange(t *testing.T) {
	h := NewHarness(t, 1)
	h.Rule(rules.Kill, "ranked", `{"subject":{"score":{"objective":"rank","exclude":{"min":2,"max":4}}}}`)
	steve := h.Player("steve")

	h.SetScore("rank", "steve", 3)
	o := h.Only(h.Kill(steve, h.Mob("z", "minecraft:zombie"), ""), rules.Kill, "ranked")
	if o.Passed || o.Failure.Stage != filter.StageScore {
		t.Fatalf("score 3 should fail: %+v", o)
	}
	h.SetScore("rank", "steve", 5)
	o = h.Only(h.Kill(steve, h.Mob("z", "minecraft:zombie"), ""), rules.Kill, "ranked")
	if !o.Passed {
		t.Fatalf("score 5 should pass: %v", o.Failure)
	}
}

func TestTagExcludeWinsAndReportsFailure(t *testing.T) {
	h := NewHarness(t, 1)
	h.Rule(rules.Kill, "members", `{"subject":{"tags":["member","!banned"]},"notifications":{"sendPlayersFailureMessages":true}}`)

	o := h.Only(h.Kill(h.Player("alex", "banned"), h.Mob("z", "minecraft:zombie"), ""), rules.Kill, "members")
	if o.Passed || o.Failure.Stage != filter.StageTags {
		t.Fatalf("outcome=%+v", o)
	}
	msgs := h.Sink.Of(protocol.TypeMessage)
	if len(msgs) != 1 || msgs[0].ActorID != "alex" || !strings.Contains(msgs[0].Text, "actor tags") {
		t.Fatalf("failure message=%+v", msgs)
	}
	if got := h.Score("kills", "alex"); got != 0 {
		t.Fatalf("kills=%d", got)
	}
}

func TestDisabledLocationPassesAnywhere(t *testing.T) {
	h := NewHarness(t, 1)
	h.Rule(rules.Kill, "open", `{"location":{"enabled":false,"x":"0..10","y":"0..10","z":"0..10"}}`)
	h.Rule(rules.Kill, "arena", `{"location":{"enabled":true,"x":"0..10","y":"0..10","z":"0..10"},"objectives":[{"id":"arenaKills"}]}`)

	z := h.Mob("z", "minecraft:zombie")
	z.Pos = filter.Vec3{X: 99999, Y: 99999, Z: 99999}
	outs := h.Kill(h.Player("steve"), z, "")
	if o := h.Only(outs, rules.Kill, "open"); !o.Passed {
		t.Fatalf("disabled location should pass: %v", o.Failure)
	}
	if o := h.Only(outs, rules.Kill, "arena"); o.Passed || o.Failure.Stage != filter.StageLocation {
		t.Fatalf("enabled location should fail: %+v", o)
	}
}

func TestDimensionMismatchHasNoSideEffects(t *testing.T) {
	h := NewHarness(t, 1)
	h.Rule(rules.Kill, "nether", `{"dimensionFilter":["nether"],"command":"say hi","notifications":{"sendPlayersFailureMessages":true,"actionBarEnabled":true}}`)

	o := h.Only(h.Kill(h.Player("steve"), h.Mob("z", "minecraft:zombie"), ""), rules.Kill, "nether")
	if o.Passed || o.Failure.Stage != filter.StageDimension {
		t.Fatalf("outcome=%+v", o)
	}
	if es := h.Sink.Entries(); len(es) != 0 {
		t.Fatalf("unexpected notifications %+v", es)
	}
	if objs := h.Scores.Objectives(); len(objs) != 0 {
		t.Fatalf("objective should not be created: %+v", objs)
	}

	h.Dimension = "minecraft:the_nether"
	h.Rule(rules.Kill, "nether", `{"dimensionFilter":["minecraft:the_nether"]}`)
	if o := h.Only(h.Kill(h.Player("steve"), h.Mob("z", "minecraft:zombie"), ""), rules.Kill, "nether"); !o.Passed {
		t.Fatalf("matching dimension should pass: %v", o.Failure)
	}
}

func TestDisabledRuleIsSilent(t *testing.T) {
	h := NewHarness(t, 1)
	h.Rule(rules.Kill, "off", `{"enabled":false}`)
	o := h.Only(h.Kill(h.Player("steve"), h.Mob("z", "minecraft:zombie"), ""), rules.Kill, "off")
	if o.Passed || o.Failure.Stage != filter.StageEnabled || len(h.Sink.Entries()) != 0 {
		t.Fatalf("outcome=%+v entries=%+v", o, h.Sink.Entries())
	}
}

func TestPlayerKillFeedsKillPvPAndDeath(t *testing.T) {
	h := NewHarness(t, 1)
	h.Rule(rules.Kill, "any", `{}`)
	h.Rule(rules.PvP, "duel", `{}`)
	h.Rule(rules.Death, "slain", `{"target":{"types":["minecraft:player"]}}`)
	steve, alex := h.Player("steve"), h.Player("alex")

	outs := h.Kill(steve, alex, "entity_attack")
	if len(outs) != 3 {
		t.Fatalf("outcomes=%+v", outs)
	}
	for _, o := range outs {
		if !o.Passed {
			t.Fatalf("%s/%s failed: %v", o.Kind, o.Rule, o.Failure)
		}
	}
	if h.Score("kills", "steve") != 1 || h.Score("pvpKills", "steve") != 1 || h.Score("deaths", "alex") != 1 {
		t.Fatalf("scores kills=%d pvp=%d deaths=%d", h.Score("kills", "steve"), h.Score("pvpKills", "steve"), h.Score("deaths", "alex"))
	}

	o := h.Only(h.Kill(nil, alex, "fall"), rules.Death, "slain")
	if o.Passed || o.Failure.Role != engine.RoleTarget {
		t.Fatalf("death without killer should fail on target: %+v", o)
	}
}

func TestDeathCauseGate(t *testing.T) {
	h := NewHarness(t, 1)
	h.Rule(rules.Death, "falls", `{"causes":["fall"]}`)
	alex := h.Player("alex")
	if o := h.Only(h.Kill(nil, alex, "lava"), rules.Death, "falls"); o.Passed || o.Failure.Stage != filter.StageGate {
		t.Fatalf("lava outcome=%+v", o)
	}
	if o := h.Only(h.Kill(nil, alex, "fall"), rules.Death, "falls"); !o.Passed {
		t.Fatalf("fall outcome=%v", o.Failure)
	}
}

func TestBlockActionAndIDs(t *testing.T) {
	h := NewHarness(t, 1)
	h.Rule(rules.Block, "ores", `{"blocks":["diamond_ore","minecraft:emerald_ore"]}`)
	h.Rule(rules.Block, "builder", `{"blockAction":"place","objectives":[{"id":"placed"}]}`)
	steve := h.Player("steve")
	at := filter.Vec3{X: 1, Y: 12, Z: 1}

	outs := h.Break(steve, "minecraft:diamond_ore", at)
	if o := h.Only(outs, rules.Block, "ores"); !o.Passed {
		t.Fatalf("diamond break: %v", o.Failure)
	}
	if o := h.Only(outs, rules.Block, "builder"); o.Passed || o.Failure.Stage != filter.StageGate {
		t.Fatalf("builder on break: %+v", o)
	}
	if o := h.Only(h.Break(steve, "minecraft:stone", at), rules.Block, "ores"); o.Passed {
		t.Fatalf("stone should not count")
	}
	outs = h.Place(steve, "minecraft:diamond_ore", at)
	if o := h.Only(outs, rules.Block, "ores"); o.Passed {
		t.Fatalf("placing should not count for a break rule")
	}
	if o := h.Only(outs, rules.Block, "builder"); !o.Passed {
		t.Fatalf("builder on place: %v", o.Failure)
	}
	if h.Score("blocksBroken", "steve") != 1 || h.Score("placed", "steve") != 1 {
		t.Fatalf("blocksBroken=%d placed=%d", h.Score("blocksBroken", "steve"), h.Score("placed", "steve"))
	}
}

func TestContainerBlocks(t *testing.T) {
	h := NewHarness(t, 1)
	h.Rule(rules.Container, "chests", `{"blocks":["minecraft:chest"]}`)
	steve := h.Player("steve")
	if o := h.Only(h.Open(steve, "minecraft:barrel"), rules.Container, "chests"); o.Passed {
		t.Fatalf("barrel should not count")
	}
	if o := h.Only(h.Open(steve, "minecraft:chest"), rules.Container, "chests"); !o.Passed {
		t.Fatalf("chest: %v", o.Failure)
	}
}

func TestDistanceAccumulatesAndGuardsTeleports(t *testing.T) {
	h := NewHarness(t, 1)
	h.Rule(rules.Distance, "walk", `{"progress":{"every":10,"maxStep":64},"notifications":{"sendPlayersMessages":false}}`)
	p := h.Player("steve")
	walk := func(x float64) engine.Outcome {
		return h.Only(h.Walk(p, filter.Vec3{X: x, Y: 64}), rules.Distance, "walk")
	}

	if o := walk(0); o.Passed || o.Failure.Stage != filter.StageProgress {
		t.Fatalf("first sight: %+v", o)
	}
	if o := walk(5); o.Passed {
		t.Fatalf("5 blocks should not complete a unit")
	}
	if o := walk(12); !o.Passed || o.Units != 1 {
		t.Fatalf("12 blocks: %+v", o)
	}
	if got := h.Proc.Progress().Remainder(rules.Distance, "walk", "steve"); got != 2 {
		t.Fatalf("remainder=%v want 2", got)
	}
	if o := walk(1000); o.Passed {
		t.Fatalf("teleport should not count")
	}
	walk(1008)
	if o := walk(1010); !o.Passed {
		t.Fatalf("progress after teleport: %+v", o)
	}
	if got := h.Score("distanceTravelled", "steve"); got != 2 {
		t.Fatalf("distanceTravelled=%d want 2", got)
	}

	h.Proc.Forget("steve")
	if o := walk(1050); o.Passed || h.Proc.Progress().Len() != 1 {
		t.Fatalf("forgotten actor should restart tracking")
	}
}

func TestDisabledDistanceRuleCountsNothingWhileOff(t *testing.T) {
	h := NewHarness(t, 1)
	const walkRule = `{"progress":{"every":10,"maxStep":0},"notifications":{"sendPlayersMessages":false}}`
	h.Rule(rules.Distance, "walk", walkRule)
	p := h.Player("steve")
	walk := func(x float64) engine.Outcome {
		return h.Only(h.Walk(p, filter.Vec3{X: x}), rules.Distance, "walk")
	}

	walk(0)
	walk(5)
	h.Rule(rules.Distance, "walk", `{"enabled":false,"progress":{"every":10,"maxStep":0}}`)
	for x := 6; x <= 500; x++ {
		if o := walk(float64(x)); o.Passed || o.Failure.Stage != filter.StageEnabled {
			t.Fatalf("disabled rule at x=%d: %+v", x, o)
		}
	}
	if n := h.Proc.Progress().Len(); n != 0 {
		t.Fatalf("disabled rule kept %d progress states", n)
	}

	h.Rule(rules.Distance, "walk", walkRule)
	if o := walk(501); o.Passed || o.Units != 0 {
		t.Fatalf("re-enabled rule credited the walk made while off: %+v", o)
	}
	if got := h.Score("distanceTravelled", "steve"); got != 0 {
		t.Fatalf("distanceTravelled=%d want 0", got)
	}
	if o := walk(511); !o.Passed || o.Units != 1 {
		t.Fatalf("tracking should resume from the re-enable point: %+v", o)
	}
}

func TestRecreatedDistanceRuleStartsFresh(t *testing.T) {
	h := NewHarness(t, 1)
	h.Rule(rules.Distance, "walk", `{"progress":{"every":10,"maxStep":0}}`)
	p := h.Player("steve")
	walk := func(x float64) engine.Outcome {
		return h.Only(h.Walk(p, filter.Vec3{X: x}), rules.Distance, "walk")
	}

	walk(0)
	walk(9)
	if err := h.Book.Delete(rules.Distance, "walk"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	r := rules.Default(rules.Distance)
	r.Progress.Every = 10
	r.Progress.MaxStep = 0
	if err := h.Book.Save(rules.Distance, "walk", *r); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if o := walk(10); o.Passed {
		t.Fatalf("re-created rule inherited the old position and remainder: %+v", o)
	}
	if o := walk(20); !o.Passed || o.Units != 1 {
		t.Fatalf("re-created rule should count its own walk: %+v", o)
	}
}

func TestPlaytimeCountsTicksOnline(t *testing.T) {
	h := NewHarness(t, 1)
	h.Rule(rules.Playtime, "online", `{"progress":{"every":20,"maxStep":100}}`)
	p := h.Player("steve")
	tick := func() engine.Outcome {
		return h.Only(h.Walk(p, filter.Vec3{}), rules.Playtime, "online")
	}

	tick()
	h.Idle(19)
	if o := tick(); !o.Passed {
		t.Fatalf("20 ticks: %+v", o)
	}
	h.Idle(499)
	if o := tick(); o.Passed {
		t.Fatalf("offline gap should reset")
	}
	h.Idle(9)
	tick()
	h.Idle(9)
	if o := tick(); !o.Passed {
		t.Fatalf("20 ticks after gap: %+v", o)
	}
	if got := h.Score("playtimeMinutes", "steve"); got != 2 {
		t.Fatalf("playtimeMinutes=%d want 2", got)
	}
}

func TestCommandThenDeltasThenNotifications(t *testing.T) {
	h := NewHarness(t, 1)
	h.Rule(rules.Kill, "rich", `{"command":"give {actor} diamond {x}","incrementScore":{"amount":"1000"},`+
		`"objectives":[{"id":"kills","displayName":"Kills"},{"id":"bounty"}],"notifications":{"actionBarEnabled":true,"logToMenu":true}}`)
	z := h.Mob("z", "minecraft:zombie")
	z.Pos = filter.Vec3{X: 3.7, Y: 64, Z: -0.5}

	o := h.Only(h.Kill(h.Player("steve"), z, ""), rules.Kill, "rich")
	if !o.Passed || len(o.Results) != 2 {
		t.Fatalf("outcome=%+v", o)
	}
	es := h.Sink.Entries()
	if len(es) == 0 || es[0].Kind != protocol.TypeCommand || es[0].Text != "give steve diamond 3" {
		t.Fatalf("command should run first: %+v", es)
	}
	bars := h.Sink.Of(protocol.TypeActionBar)
	if len(bars) != 2 || bars[0].Text != "§aKills: 1,000" || bars[1].Text != "§abounty: 1,000" {
		t.Fatalf("action bars=%+v", bars)
	}
	if n := len(h.Sink.Of(protocol.TypeMessage)); n != 2 {
		t.Fatalf("messages=%d want 2", n)
	}
	if logs := h.Sink.Of(protocol.TypeLog); len(logs) != 2 || !strings.Contains(logs[0].Text, "kills 0 -> 1,000") {
		t.Fatalf("logs=%+v", logs)
	}
}

type explodingSink struct {
	notify.Recorder
}

func (s *explodingSink) SendMessage(actorID, text string) error {
	if strings.Contains(text, "boom") {
		panic("sink exploded")
	}
	return s.Recorder.SendMessage(actorID, text)
}

func TestPanickingRuleDoesNotStopOthers(t *testing.T) {
	h := NewHarness(t, 1)
	h.Rule(rules.Kill, "first", `{"notifications":{"message":"boom"}}`)
	h.Rule(rules.Kill, "second", `{}`)
	h.Proc = engine.New(h.Book, h.Scores, &explodingSink{}, engine.Options{Seed: 1})

	outs := h.Kill(h.Player("steve"), h.Mob("z", "minecraft:zombie"), "")
	if len(outs) != 2 || outs[0].Rule != "first" || outs[0].Err == "" {
		t.Fatalf("first rule should report the panic: %+v", outs)
	}
	if !outs[1].Passed {
		t.Fatalf("second rule should still run: %+v", outs[1])
	}
	if got := h.Score("kills", "steve"); got != 2 {
		t.Fatalf("kills=%d want 2", got)
	}
}
