package score

import (
	"errors"
	"testing"
)

type brokenBackend struct{ *Memory }

var errBroken = errors.New("broken")

func (b brokenBackend) Score(string, string) (int32, bool, error) {
	return 7, true, errBroken
}

func (b brokenBackend) SetScore(string, string, int32) error { return errBroken }

func (b brokenBackend) AddObjective(Objective) error { return errBroken }

func TestGetOrCreateIsIdempotent(t *testing.T) {
	m := NewMemory()
	s := NewStore(m, nil)

	o := s.GetOrCreate("kills", "Kills")
	if o.ID != "kills" || o.DisplayName != "Kills" {
		t.Fatalf("unexpected objective %+v", o)
	}
	o = s.GetOrCreate("kills", "Renamed")
	if o.DisplayName != "Kills" {
		t.Fatalf("display name must not change on existing objective: %+v", o)
	}
	if objs := s.Objectives(); len(objs) != 1 {
		t.Fatalf("expected 1 objective, got %d", len(objs))
	}
	if o := s.GetOrCreate("deaths", ""); o.DisplayName != "deaths" {
		t.Fatalf("empty display name should default to id: %+v", o)
	}
}

func TestScoreDefaultsToZero(t *testing.T) {
	s := NewStore(NewMemory(), nil)
	if v := s.Score("kills", "p1"); v != 0 {
		t.Fatalf("missing score should read 0, got %d", v)
	}
	s.SetScore("kills", "p1", 5)
	if v := s.Score("kills", "p1"); v != 5 {
		t.Fatalf("got %d want 5", v)
	}
	if v := s.Score("", "p1"); v != 0 {
		t.Fatalf("empty objective should read 0")
	}
}

func TestStoreSwallowsBackendErrors(t *testing.T) {
	s := NewStore(brokenBackend{NewMemory()}, nil)
	if v := s.Score("kills", "p1"); v != 0 {
		t.Fatalf("read error should read as 0, got %d", v)
	}
	s.SetScore("kills", "p1", 3)
	if o := s.GetOrCreate("kills", "Kills"); o.ID != "kills" {
		t.Fatalf("GetOrCreate should still describe the objective: %+v", o)
	}
}

func TestStandings(t *testing.T) {
	m := NewMemory()
	_ = m.SetScore("kills", "b", 3)
	_ = m.SetScore("kills", "a", 3)
	_ = m.SetScore("kills", "c", 9)
	got := m.Standings("kills")
	if len(got) != 3 || got[0].ActorID != "c" || got[1].ActorID != "a" || got[2].ActorID != "b" {
		t.Fatalf("unexpected standings %+v", got)
	}
}
