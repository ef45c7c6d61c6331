package score

import "sort"

// Memory is an in-process Backend. Objectives are listed in creation order.
type Memory struct {
	order  []string
	objs   map[string]Objective
	scores map[string]map[string]int32
}

func NewMemory() *Memory {
	return &Memory{
		objs:   map[string]Objective{},
		scores: map[string]map[string]int32{},
	}
}

func (m *Memory) Objective(id string) (Objective, bool, error) {
	o, ok := m.objs[id]
	return o, ok, nil
}

func (m *Memory) AddObjective(o Objective) error {
	if _, ok := m.objs[o.ID]; ok {
		return nil
	}
	m.objs[o.ID] = o
	m.order = append(m.order, o.ID)
	return nil
}

func (m *Memory) Objectives() ([]Objective, error) {
	out := make([]Objective, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.objs[id])
	}
	return out, nil
}

func (m *Memory) Score(objectiveID, actorID string) (int32, bool, error) {
	v, ok := m.scores[objectiveID][actorID]
	return v, ok, nil
}

// SetScore creates the objective on first write, as the host scoreboard does.
func (m *Memory) SetScore(objectiveID, actorID string, v int32) error {
	if _, ok := m.objs[objectiveID]; !ok {
		_ = m.AddObjective(Objective{ID: objectiveID, DisplayName: objectiveID})
	}
	byActor := m.scores[objectiveID]
	if byActor == nil {
		byActor = map[string]int32{}
		m.scores[objectiveID] = byActor
	}
	byActor[actorID] = v
	return nil
}

// Standings returns the actors holding a score on objectiveID, highest first.
func (m *Memory) Standings(objectiveID string) []Entry {
	byActor := m.scores[objectiveID]
	out := make([]Entry, 0, len(byActor))
	for actor, v := range byActor {
		out = append(out, Entry{ActorID: actor, Value: v})
	}
	SortEntries(out)
	return out
}

type Entry struct {
	ActorID string `json:"actor_id"`
	Value   int32  `json:"value"`
}

func SortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].Value != es[j].Value {
			return es[i].Value > es[j].Value
		}
		return es[i].ActorID < es[j].ActorID
	})
}
