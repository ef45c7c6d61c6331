package engine

import (
	"countercraft.ai/internal/counters/filter"
	"countercraft.ai/internal/protocol"
)

// Event is one host event. Subject is the entity the event happened to:
// the dead entity, the player breaking/placing a block or opening a
// container, the ticking player. Source is the killer of an entity_death.
type Event struct {
	Type      string
	Tick      uint64
	Subject   filter.Actor
	Source    filter.Actor
	Location  filter.Vec3
	Dimension string
	Cause     string
	BlockID   string
}

// Snapshot is a frozen filter.Actor.
type Snapshot struct {
	EntityID    string
	DisplayName string
	Type        string
	TagList     []string
	FamilyList  []string
	Held        string
	Pos         filter.Vec3
	Dim         string
}

func (s *Snapshot) ID() string            { return s.EntityID }
func (s *Snapshot) TypeID() string        { return s.Type }
func (s *Snapshot) Tags() []string        { return s.TagList }
func (s *Snapshot) Families() []string    { return s.FamilyList }
func (s *Snapshot) HeldItemID() string    { return s.Held }
func (s *Snapshot) Location() filter.Vec3 { return s.Pos }
func (s *Snapshot) DimensionID() string   { return s.Dim }

func (s *Snapshot) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.EntityID
}

func SnapshotFromMsg(m *protocol.ActorMsg, dimension string) *Snapshot {
	if m == nil {
		return nil
	}
	dim := m.Dimension
	if dim == "" {
		dim = dimension
	}
	return &Snapshot{
		EntityID:    m.ID,
		DisplayName: m.Name,
		Type:        m.TypeID,
		TagList:     m.Tags,
		FamilyList:  m.Families,
		Held:        m.HeldItem,
		Pos:         filter.Vec3{X: m.Pos[0], Y: m.Pos[1], Z: m.Pos[2]},
		Dim:         dim,
	}
}

// FromMsg builds an Event from its wire form. Position and dimension fall
// back to the subject's.
func FromMsg(m protocol.EventMsg) Event {
	ev := Event{
		Type:      m.Type,
		Tick:      m.Tick,
		Dimension: m.Dimension,
		Cause:     m.Cause,
		BlockID:   m.Block,
	}
	subject := SnapshotFromMsg(m.Subject, m.Dimension)
	if subject != nil {
		ev.Subject = subject
		ev.Location = subject.Pos
		if ev.Dimension == "" {
			ev.Dimension = subject.Dim
		}
	}
	if src := SnapshotFromMsg(m.Source, ev.Dimension); src != nil {
		ev.Source = src
	}
	if m.Pos != nil {
		ev.Location = filter.Vec3{X: m.Pos[0], Y: m.Pos[1], Z: m.Pos[2]}
	}
	return ev
}
