package filter

import (
	"fmt"
	"strings"
)

type Stage string

const (
	StageEnabled   Stage = "enabled"
	StageDimension Stage = "dimension"
	StageGate      Stage = "gate"
	StageType      Stage = "type"
	StageFamily    Stage = "family"
	StageItem      Stage = "item"
	StageLocation  Stage = "location"
	StageTags      Stage = "tags"
	StageScore     Stage = "score"
	StageProgress  Stage = "progress"
)

// Failure names the first predicate that rejected an event for a rule.
// Role is the actor role that was being checked ("" for event-level stages).
type Failure struct {
	Stage  Stage
	Role   string
	Detail string
}

func (f *Failure) String() string {
	if f == nil {
		return ""
	}
	var b strings.Builder
	if f.Role != "" {
		b.WriteString(f.Role)
		b.WriteByte(' ')
	}
	b.WriteString(string(f.Stage))
	if f.Detail != "" {
		b.WriteString(": ")
		b.WriteString(f.Detail)
	}
	return b.String()
}

func Fail(stage Stage, role, format string, args ...any) *Failure {
	return &Failure{Stage: stage, Role: role, Detail: fmt.Sprintf(format, args...)}
}

// Subject holds the per-actor filters of a rule. Identity filters (type,
// family, held item) run before the location check, trait filters (tags,
// score) after it.
type Subject struct {
	Types    List  `json:"types"`
	Families List  `json:"families"`
	Items    List  `json:"items"`
	Tags     List  `json:"tags"`
	TagMode  Mode  `json:"tagMode"`
	Score    Score `json:"score"`
}

func AnySubject() Subject {
	return Subject{
		Types:    List{},
		Families: List{},
		Items:    List{},
		Tags:     List{},
		TagMode:  ModeAny,
		Score:    NoScore(),
	}
}

// Empty reports whether s rejects nothing.
func (s Subject) Empty() bool {
	return s.Types.Empty() && s.Families.Empty() && s.Items.Empty() && s.Tags.Empty() && s.Score.Objectives.Disabled()
}

func (s Subject) CheckIdentity(role string, a Actor) *Failure {
	if !MatchID(s.Types, a.TypeID()) {
		return Fail(StageType, role, "%s", a.TypeID())
	}
	if !MatchAnyID(s.Families, a.Families()) {
		return Fail(StageFamily, role, "%s", strings.Join(a.Families(), ","))
	}
	if !MatchID(s.Items, a.HeldItemID()) {
		held := a.HeldItemID()
		if held == "" {
			held = "nothing held"
		}
		return Fail(StageItem, role, "%s", held)
	}
	return nil
}

func (s Subject) CheckTraits(role string, a Actor, scores ScoreReader) *Failure {
	mode := s.TagMode
	if mode == "" {
		mode = ModeAny
	}
	if !MatchSet(s.Tags, a.Tags(), mode) {
		return Fail(StageTags, role, "[%s] vs %s", strings.Join(a.Tags(), ","), strings.Join(s.Tags, ","))
	}
	if ok, why := s.Score.Check(a.ID(), scores); !ok {
		return &Failure{Stage: StageScore, Role: role, Detail: why}
	}
	return nil
}

func (s Subject) Check(role string, a Actor, scores ScoreReader) *Failure {
	if f := s.CheckIdentity(role, a); f != nil {
		return f
	}
	return s.CheckTraits(role, a, scores)
}
