package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"countercraft.ai/internal/counters/delta"
	"countercraft.ai/internal/counters/filter"
	"countercraft.ai/internal/counters/rangespec"
	"countercraft.ai/internal/protocol"
)

type Kind string

const (
	Kill      Kind = "kill"
	Death     Kind = "death"
	PvP       Kind = "pvp"
	Block     Kind = "block"
	Container Kind = "container"
	Distance  Kind = "distance"
	Playtime  Kind = "playtime"
)

// Kinds lists every rule kind in registry load order.
var Kinds = []Kind{Kill, Death, PvP, Block, Container, Distance, Playtime}

func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

func (k Kind) Valid() bool {
	_, ok := ParseKind(string(k))
	return ok
}

// Prefix is the key prefix every record of this kind is stored under.
func (k Kind) Prefix() string { return string(k) + "Counter:" }

// HasTarget reports whether events of this kind carry a second actor.
func (k Kind) HasTarget() bool { return k == Kill || k == PvP || k == Death }

// HasCauses reports whether the damage cause gate applies.
func (k Kind) HasCauses() bool { return k == Kill || k == PvP || k == Death }

// HasBlocks reports whether the block id gate applies.
func (k Kind) HasBlocks() bool { return k == Block || k == Container }

// Progressive kinds accumulate per-tick progress before firing.
func (k Kind) Progressive() bool { return k == Distance || k == Playtime }

func Key(k Kind, name string) string { return k.Prefix() + name }

// ParseKey splits a stored key into its kind and rule name.
func ParseKey(key string) (Kind, string, bool) {
	for _, k := range Kinds {
		if name, ok := strings.CutPrefix(key, k.Prefix()); ok && name != "" {
			return k, name, true
		}
	}
	return "", "", false
}

type BlockAction string

const (
	ActionBreak BlockAction = "break"
	ActionPlace BlockAction = "place"
	ActionBoth  BlockAction = "both"
)

func (a BlockAction) Allows(placed bool) bool {
	switch a {
	case ActionBoth:
		return true
	case ActionPlace:
		return placed
	default:
		return !placed
	}
}

type ObjectiveRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
}

// UnmarshalJSON decodes into a zero value so a slice element reused by
// encoding/json does not keep fields from the default it replaces.
func (o *ObjectiveRef) UnmarshalJSON(data []byte) error {
	type plain ObjectiveRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = ObjectiveRef(p)
	return nil
}

type Notifications struct {
	SendMessages        bool   `json:"sendPlayersMessages"`
	SendFailureMessages bool   `json:"sendPlayersFailureMessages"`
	LogToMenu           bool   `json:"logToMenu"`
	LogToConsole        bool   `json:"logToConsole"`
	ActionBar           bool   `json:"actionBarEnabled"`
	ActionBarFormat     string `json:"actionBarFormat"`
	Message             string `json:"message,omitempty"`
}

// Progress configures distance and playtime rules. Every is blocks travelled
// (distance) or ticks online (playtime) per increment. A single step larger
// than MaxStep resets tracking instead of counting; 0 disables the guard.
type Progress struct {
	Every   float64 `json:"every"`
	MaxStep float64 `json:"maxStep"`
	IgnoreY bool    `json:"ignoreY,omitempty"`
}

// Rule is one named counter configuration. Kind-specific sections are only
// meaningful for the kinds that own them and are cleared for the others.
type Rule struct {
	Name string `json:"-"`
	Kind Kind   `json:"kind"`

	Enabled       bool           `json:"enabled"`
	Dimensions    filter.List    `json:"dimensionFilter"`
	Subject       filter.Subject `json:"subject"`
	Target        filter.Subject `json:"target"`
	Location      filter.Spatial `json:"location"`
	Increment     delta.Spec     `json:"incrementScore"`
	Objectives    []ObjectiveRef `json:"objectives"`
	Notifications Notifications  `json:"notifications"`
	Command       string         `json:"command,omitempty"`

	Blocks      filter.List `json:"blocks,omitempty"`
	BlockAction BlockAction `json:"blockAction,omitempty"`
	Causes      filter.List `json:"causes,omitempty"`
	Progress    *Progress   `json:"progress,omitempty"`
}

var defaultObjectives = map[Kind]ObjectiveRef{
	Kill:      {ID: "kills", DisplayName: "Kills"},
	Death:     {ID: "deaths", DisplayName: "Deaths"},
	PvP:       {ID: "pvpKills", DisplayName: "PvP Kills"},
	Block:     {ID: "blocksBroken", DisplayName: "Blocks Broken"},
	Container: {ID: "containersOpened", DisplayName: "Containers Opened"},
	Distance:  {ID: "distanceTravelled", DisplayName: "Distance Travelled"},
	Playtime:  {ID: "playtimeMinutes", DisplayName: "Playtime (min)"},
}

// Default returns a fresh kind default. Callers may mutate it freely.
func Default(kind Kind) *Rule {
	r := &Rule{
		Kind:       kind,
		Enabled:    true,
		Dimensions: filter.List{},
		Subject:    filter.AnySubject(),
		Target:     filter.AnySubject(),
		Location:   filter.AnyWhere(),
		Increment:  delta.DefaultSpec(),
		Objectives: []ObjectiveRef{defaultObjectives[kind]},
		Notifications: Notifications{
			SendMessages:    true,
			ActionBarFormat: "§a",
		},
	}
	switch kind {
	case Kill, PvP, Death:
		r.Causes = filter.List{}
	case Block:
		r.Blocks = filter.List{}
		r.BlockAction = ActionBreak
	case Container:
		r.Blocks = filter.List{}
	case Distance:
		r.Progress = &Progress{Every: 100, MaxStep: 64}
	case Playtime:
		r.Progress = &Progress{Every: 1200, MaxStep: 100}
	}
	return r
}

// Decode validates a stored record and deep-merges it onto the kind default:
// every field absent from raw keeps its default, nested sections included.
// The kind always comes from the key, never from the record body.
func Decode(kind Kind, name string, raw []byte) (*Rule, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	if err := protocol.ValidateRule(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", Key(kind, name), err)
	}
	r := Default(kind)
	if err := json.Unmarshal(raw, r); err != nil {
		return nil, fmt.Errorf("%s: %w", Key(kind, name), err)
	}
	r.Name = name
	r.Kind = kind
	r.Normalize()
	return r, nil
}

// Encode is the persisted form of r.
func Encode(r *Rule) ([]byte, error) {
	return json.Marshal(r)
}

// Normalize fills zero values left by hand-built rules and clears sections
// that do not belong to the rule's kind.
func (r *Rule) Normalize() {
	if r.Dimensions == nil {
		r.Dimensions = filter.List{}
	}
	normalizeSubject(&r.Subject)
	normalizeSubject(&r.Target)
	if !r.Kind.HasTarget() {
		r.Target = filter.AnySubject()
	}
	if r.Increment.Mode == "" {
		r.Increment.Mode = delta.Add
	}
	r.Increment.Amount.Exclude = false
	if r.Kind.HasCauses() {
		if r.Causes == nil {
			r.Causes = filter.List{}
		}
	} else {
		r.Causes = nil
	}
	if r.Kind.HasBlocks() {
		if r.Blocks == nil {
			r.Blocks = filter.List{}
		}
	} else {
		r.Blocks = nil
	}
	switch {
	case r.Kind != Block:
		r.BlockAction = ""
	case r.BlockAction == "":
		r.BlockAction = ActionBreak
	}
	if r.Kind.Progressive() {
		if r.Progress == nil {
			r.Progress = Default(r.Kind).Progress
		}
	} else {
		r.Progress = nil
	}
}

func normalizeSubject(s *filter.Subject) {
	for _, l := range []*filter.List{&s.Types, &s.Families, &s.Items, &s.Tags} {
		if *l == nil {
			*l = filter.List{}
		}
	}
	if s.TagMode == "" {
		s.TagMode = filter.ModeAny
	}
	if len(s.Score.Objectives) == 0 {
		s.Score.Objectives = filter.Objectives{filter.NoObjective}
	}
}

// Validate reports the first reason r cannot be stored.
func (r *Rule) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("rule name is empty")
	}
	if len(r.Objectives) == 0 {
		return errors.New("at least one objective is required")
	}
	for i, o := range r.Objectives {
		if strings.TrimSpace(o.ID) == "" {
			return fmt.Errorf("objectives[%d]: empty id", i)
		}
	}
	switch r.Increment.Mode {
	case delta.Add, delta.Remove:
	default:
		return fmt.Errorf("incrementScore.mode %q", r.Increment.Mode)
	}
	switch r.BlockAction {
	case "", ActionBreak, ActionPlace, ActionBoth:
	default:
		return fmt.Errorf("blockAction %q", r.BlockAction)
	}
	for _, m := range []filter.Mode{r.Subject.TagMode, r.Target.TagMode} {
		if m != filter.ModeAny && m != filter.ModeAll {
			return fmt.Errorf("tagMode %q", m)
		}
	}
	if r.Kind.Progressive() {
		if r.Progress == nil || r.Progress.Every <= 0 {
			return errors.New("progress.every must be positive")
		}
		if r.Progress.MaxStep < 0 {
			return errors.New("progress.maxStep must not be negative")
		}
	}
	return nil
}

// AmountText is the increment amount in range syntax, for templates.
func (r *Rule) AmountText() string { return rangespec.Format(r.Increment.Amount) }
