package filter

import "math"

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Block returns the integer block coordinates containing v.
func (v Vec3) Block() (x, y, z int64) {
	return int64(math.Floor(v.X)), int64(math.Floor(v.Y)), int64(math.Floor(v.Z))
}

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Actor is the snapshot of a simulated subject that filters inspect.
// HeldItemID is empty when nothing is held.
type Actor interface {
	ID() string
	Name() string
	TypeID() string
	Tags() []string
	Families() []string
	HeldItemID() string
	Location() Vec3
	DimensionID() string
}

// ScoreReader resolves an actor's current score; missing scores read as 0.
type ScoreReader interface {
	Score(objectiveID, actorID string) int32
}

type ScoreReaderFunc func(objectiveID, actorID string) int32

func (f ScoreReaderFunc) Score(objectiveID, actorID string) int32 { return f(objectiveID, actorID) }

const PlayerType = "minecraft:player"

func IsPlayer(a Actor) bool {
	return a != nil && SameID(a.TypeID(), PlayerType)
}
