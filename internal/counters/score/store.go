package score

import (
	"io"
	"log"
	"strings"
)

type Objective struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Backend is the host's scoring subsystem. Any method may fail.
type Backend interface {
	Objective(id string) (Objective, bool, error)
	AddObjective(o Objective) error
	Objectives() ([]Objective, error)
	Score(objectiveID, actorID string) (int32, bool, error)
	SetScore(objectiveID, actorID string, v int32) error
}

// Store is the never-failing facade over a Backend: read errors read as 0,
// write errors are logged and dropped.
type Store struct {
	b   Backend
	log *log.Logger
}

func NewStore(b Backend, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{b: b, log: logger}
}

// GetOrCreate returns the objective id, creating it with displayName when it
// does not exist. An existing objective keeps its display name.
func (s *Store) GetOrCreate(id, displayName string) Objective {
	id = strings.TrimSpace(id)
	if displayName == "" {
		displayName = id
	}
	if id == "" {
		return Objective{}
	}
	o, ok, err := s.b.Objective(id)
	if err != nil {
		s.log.Printf("objective %s: %v", id, err)
	}
	if ok {
		return o
	}
	o = Objective{ID: id, DisplayName: displayName}
	if err := s.b.AddObjective(o); err != nil {
		s.log.Printf("create objective %s: %v", id, err)
	}
	return o
}

func (s *Store) Score(objectiveID, actorID string) int32 {
	if objectiveID == "" || actorID == "" {
		return 0
	}
	v, ok, err := s.b.Score(objectiveID, actorID)
	if err != nil {
		s.log.Printf("read score %s/%s: %v", objectiveID, actorID, err)
		return 0
	}
	if !ok {
		return 0
	}
	return v
}

func (s *Store) SetScore(objectiveID, actorID string, v int32) {
	if objectiveID == "" || actorID == "" {
		return
	}
	if err := s.b.SetScore(objectiveID, actorID, v); err != nil {
		s.log.Printf("write score %s/%s=%d: %v", objectiveID, actorID, v, err)
	}
}

func (s *Store) Objectives() []Objective {
	out, err := s.b.Objectives()
	if err != nil {
		s.log.Printf("list objectives: %v", err)
		return nil
	}
	return out
}
