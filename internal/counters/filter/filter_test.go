package filter

import (
	"encoding/json"
	"testing"

	"countercraft.ai/internal/counters/rangespec"
)

type stubActor struct {
	id       string
	typ      string
	tags     []string
	families []string
	held     string
	pos      Vec3
	dim      string
}

func (a stubActor) ID() string          { return a.id }
func (a stubActor) Name() string        { return a.id }
func (a stubActor) TypeID() string      { return a.typ }
func (a stubActor) Tags() []string      { return a.tags }
func (a stubActor) Families() []string  { return a.families }
func (a stubActor) HeldItemID() string  { return a.held }
func (a stubActor) Location() Vec3      { return a.pos }
func (a stubActor) DimensionID() string { return a.dim }

func scoresOf(m map[string]int32) ScoreReader {
	return ScoreReaderFunc(func(obj, _ string) int32 { return m[obj] })
}

func TestMatchSetExcludeWins(t *testing.T) {
	// Tag filter ["member","!banned"] with actor tags ["banned"].
	if MatchSet(List{"member", "!banned"}, []string{"banned"}, ModeAny) {
		t.Fatalf("exclude hit should fail")
	}
	if MatchSet(List{"vip", "!vip"}, []string{"vip"}, ModeAny) {
		t.Fatalf("token present as include and exclude should fail")
	}
	if MatchSet(List{"vip", "!vip"}, []string{"vip"}, ModeAll) {
		t.Fatalf("exclude should win in all-mode too")
	}
	if MatchID(List{"zombie", "!zombie"}, "minecraft:zombie") {
		t.Fatalf("exclude should win for ids")
	}
	if MatchAnyID(List{"undead", "!undead"}, []string{"mob", "undead"}) {
		t.Fatalf("exclude should win for families")
	}
}

func TestMatchSetModes(t *testing.T) {
	tests := []struct {
		list   List
		actual []string
		mode   Mode
		want   bool
	}{
		{List{}, nil, ModeAny, true},
		{List{"a", "b"}, []string{"b"}, ModeAny, true},
		{List{"a", "b"}, []string{"b"}, ModeAll, false},
		{List{"a", "b"}, []string{"a", "b", "c"}, ModeAll, true},
		{List{"!c"}, []string{"a"}, ModeAll, true},
		{List{"a"}, nil, ModeAny, false},
		{List{" ", "!"}, nil, ModeAny, true},
	}
	for i, tc := range tests {
		if got := MatchSet(tc.list, tc.actual, tc.mode); got != tc.want {
			t.Fatalf("case %d: MatchSet(%v,%v,%s)=%v want %v", i, tc.list, tc.actual, tc.mode, got, tc.want)
		}
	}
}

func TestMatchIDNamespaces(t *testing.T) {
	if !MatchID(List{"zombie"}, "minecraft:zombie") {
		t.Fatalf("bare include should match namespaced id")
	}
	if !MatchID(List{"minecraft:Zombie"}, "minecraft:zombie") {
		t.Fatalf("match should ignore case")
	}
	if MatchID(List{"other:zombie"}, "minecraft:zombie") {
		t.Fatalf("different namespaces must not match")
	}
	if MatchID(List{"minecraft:diamond_sword"}, "") {
		t.Fatalf("empty hand should not satisfy an item include")
	}
	if !MatchID(List{"!minecraft:stick"}, "") {
		t.Fatalf("exclude-only list should pass an empty hand")
	}
}

func TestDimension(t *testing.T) {
	if !Dimension(nil, "minecraft:the_end") {
		t.Fatalf("empty allow list should pass")
	}
	if !Dimension([]string{"overworld"}, "minecraft:overworld") {
		t.Fatalf("bare allow entry should match namespaced dimension")
	}
	if !Dimension([]string{"OverWorld"}, "overworld") {
		t.Fatalf("dimension match should ignore case")
	}
	if Dimension([]string{"nether"}, "overworld") {
		t.Fatalf("unlisted dimension should fail")
	}
}

func TestScoreCheck(t *testing.T) {
	scores := scoresOf(map[string]int32{"kills": 3, "deaths": 12})

	if ok, _ := NoScore().Check("p1", scores); !ok {
		t.Fatalf("none objective should pass")
	}
	s := Score{Objectives: Objectives{"kills"}, Range: rangespec.Excluding(2, 4)}
	if ok, _ := s.Check("p1", scores); ok {
		t.Fatalf("score 3 inside exclusion should fail")
	}
	s.Objectives = Objectives{"kills", "deaths"}
	if ok, _ := s.Check("p1", scores); !ok {
		t.Fatalf("second objective outside exclusion should pass")
	}
	s = Score{Objectives: Objectives{"missing"}, Range: rangespec.Between(0, 0)}
	if ok, _ := s.Check("p1", scores); !ok {
		t.Fatalf("missing score should read as 0")
	}
	s = Score{Objectives: Objectives{"kills"}, Range: rangespec.Between(5, 10)}
	ok, why := s.Check("p1", scores)
	if ok || why == "" {
		t.Fatalf("expected failure with detail, got ok=%v why=%q", ok, why)
	}
}

func TestScoreJSON(t *testing.T) {
	s := NoScore()
	if err := json.Unmarshal([]byte(`{"objective":["a","b"],"min":1}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(s.Objectives) != 2 || s.Range.Min != 1 || s.Range != rangespec.Between(1, rangespec.Full().Max) {
		t.Fatalf("unexpected score filter %+v", s)
	}
	b, err := json.Marshal(Score{Objectives: Objectives{"kills"}, Range: rangespec.Excluding(2, 4)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Score
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Range != rangespec.Excluding(2, 4) || back.Objectives[0] != "kills" {
		t.Fatalf("round trip mismatch: %s -> %+v", b, back)
	}
}

func TestSpatial(t *testing.T) {
	far := Vec3{X: 99999, Y: 99999, Z: 99999}
	s := Spatial{Enabled: false, X: rangespec.Between(0, 10), Y: rangespec.Between(0, 10), Z: rangespec.Between(0, 10)}
	if ok, _ := s.Check(far); !ok {
		t.Fatalf("disabled spatial filter should pass")
	}
	s.Enabled = true
	if ok, _ := s.Check(far); ok {
		t.Fatalf("far location should fail")
	}
	if ok, _ := s.Check(Vec3{X: 5.5, Y: 0, Z: 10.9}); !ok {
		t.Fatalf("inside location should pass")
	}
	s.X = rangespec.Excluding(-5, 5)
	if ok, _ := s.Check(Vec3{X: 0, Y: 1, Z: 1}); ok {
		t.Fatalf("x inside exclusion should fail")
	}
	if ok, _ := s.Check(Vec3{X: -5.5, Y: 1, Z: 1}); !ok {
		t.Fatalf("x=-6 outside exclusion should pass")
	}
}

func TestSubjectOrder(t *testing.T) {
	a := stubActor{
		id:       "p1",
		typ:      "minecraft:player",
		tags:     []string{"banned"},
		families: []string{"player", "mob"},
		held:     "minecraft:stick",
	}
	s := AnySubject()
	s.Items = List{"minecraft:diamond_sword"}
	s.Tags = List{"!banned"}
	f := s.Check("killer", a, nil)
	if f == nil || f.Stage != StageItem || f.Role != "killer" {
		t.Fatalf("expected item failure first, got %v", f)
	}
	s.Items = nil
	f = s.Check("killer", a, nil)
	if f == nil || f.Stage != StageTags {
		t.Fatalf("expected tag failure, got %v", f)
	}
	if !AnySubject().Empty() {
		t.Fatalf("default subject should be empty")
	}
	if f := AnySubject().Check("killer", a, nil); f != nil {
		t.Fatalf("default subject should pass, got %v", f)
	}
}
