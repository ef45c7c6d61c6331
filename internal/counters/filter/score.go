package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"countercraft.ai/internal/counters/rangespec"
)

// NoObjective disables a score filter.
const NoObjective = "none"

// Objectives is persisted either as a single string or as a list of strings.
type Objectives []string

func (o Objectives) MarshalJSON() ([]byte, error) {
	if len(o) == 1 {
		return json.Marshal(o[0])
	}
	return json.Marshal([]string(o))
}

func (o *Objectives) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*o = Objectives{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("objective: %w", err)
	}
	*o = list
	return nil
}

func (o Objectives) Disabled() bool {
	for _, id := range o {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if strings.EqualFold(id, NoObjective) {
			return true
		}
		return false
	}
	return true
}

// Score passes when any of Objectives has an actor score satisfying Range.
type Score struct {
	Objectives Objectives
	Range      rangespec.Spec
}

func NoScore() Score {
	return Score{Objectives: Objectives{NoObjective}, Range: rangespec.Full()}
}

func (s Score) MarshalJSON() ([]byte, error) {
	out := struct {
		Objective Objectives `json:"objective"`
		Min       int32      `json:"min"`
		Max       int32      `json:"max"`
		Exclude   bool       `json:"exclude,omitempty"`
	}{s.Objectives, s.Range.Min, s.Range.Max, s.Range.Exclude}
	return json.Marshal(out)
}

func (s *Score) UnmarshalJSON(data []byte) error {
	var aux struct {
		Objective *Objectives `json:"objective"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("score filter: %w", err)
	}
	if aux.Objective != nil {
		s.Objectives = *aux.Objective
	}
	return s.Range.UnmarshalJSON(data)
}

// Check evaluates the filter for one actor; missing scores read as 0.
func (s Score) Check(actorID string, scores ScoreReader) (bool, string) {
	if s.Objectives.Disabled() {
		return true, ""
	}
	var last string
	for _, id := range s.Objectives {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		var v int32
		if scores != nil {
			v = scores.Score(id, actorID)
		}
		if s.Range.Passes(int64(v)) {
			return true, ""
		}
		last = fmt.Sprintf("%s=%d not in %s", id, v, rangespec.Format(s.Range))
	}
	return false, last
}
