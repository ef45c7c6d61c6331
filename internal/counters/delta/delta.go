package delta

import (
	"math"
	"math/rand/v2"

	"countercraft.ai/internal/counters/rangespec"
	"countercraft.ai/internal/counters/score"
)

type Mode string

const (
	Add    Mode = "add"
	Remove Mode = "remove"
)

// Spec describes one increment: a magnitude drawn uniformly from Amount,
// negated for Remove. AllowNegative governs the running total, not the draw.
type Spec struct {
	Amount        rangespec.Spec `json:"amount"`
	Mode          Mode           `json:"mode"`
	AllowNegative bool           `json:"allowNegative"`
}

func DefaultSpec() Spec {
	return Spec{Amount: rangespec.Exact(1), Mode: Add}
}

// DefaultRetries is the total number of draws tried before clamping.
const DefaultRetries = 10

type Applier struct {
	rng     *rand.Rand
	retries int
}

// New seeds a deterministic applier.
func New(seed uint64, retries int) *Applier {
	return NewWithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), retries)
}

func NewWithRand(r *rand.Rand, retries int) *Applier {
	if retries <= 0 {
		retries = DefaultRetries
	}
	return &Applier{rng: r, retries: retries}
}

// Draw returns a uniform value in [amount.Min, amount.Max]. Exclude is ignored.
func (a *Applier) Draw(amount rangespec.Spec) int64 {
	lo, hi := int64(amount.Min), int64(amount.Max)
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo == hi {
		return lo
	}
	return lo + a.rng.Int64N(hi-lo+1)
}

// Next computes the score that follows current under spec without committing it.
// Out-of-range candidates are redrawn; after the retry budget the last
// candidate is clamped into [floor, MaxInt32].
func (a *Applier) Next(current int32, spec Spec) int32 {
	floor := Floor(spec)
	var candidate int64
	for i := 0; i < a.retries; i++ {
		d := a.Draw(spec.Amount)
		if spec.Mode == Remove {
			d = -d
		}
		candidate = int64(current) + d
		if candidate >= floor && candidate <= math.MaxInt32 {
			return int32(candidate)
		}
	}
	if candidate < floor {
		return int32(floor)
	}
	return math.MaxInt32
}

func Floor(spec Spec) int64 {
	if spec.AllowNegative {
		return math.MinInt32
	}
	return 0
}

type Result struct {
	Objective string `json:"objective"`
	ActorID   string `json:"actor_id"`
	Old       int32  `json:"old"`
	New       int32  `json:"new"`
}

func (r Result) Delta() int64 { return int64(r.New) - int64(r.Old) }

// Apply reads the actor's score on objectiveID, computes Next and commits it.
func (a *Applier) Apply(s *score.Store, objectiveID, actorID string, spec Spec) Result {
	old := s.Score(objectiveID, actorID)
	next := a.Next(old, spec)
	s.SetScore(objectiveID, actorID, next)
	return Result{Objective: objectiveID, ActorID: actorID, Old: old, New: next}
}
