package protocol

// EVENT (host -> core). Pos and Dimension default to the subject's.
type EventMsg struct {
	Type      string      `json:"type"`
	Tick      uint64      `json:"tick,omitempty"`
	Subject   *ActorMsg   `json:"subject"`
	Source    *ActorMsg   `json:"source,omitempty"`
	Pos       *[3]float64 `json:"pos,omitempty"`
	Dimension string      `json:"dimension,omitempty"`
	Cause     string      `json:"cause,omitempty"`
	Block     string      `json:"block,omitempty"`
}

type ActorMsg struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	TypeID    string     `json:"type_id"`
	Tags      []string   `json:"tags,omitempty"`
	Families  []string   `json:"families,omitempty"`
	HeldItem  string     `json:"held_item,omitempty"`
	Pos       [3]float64 `json:"pos"`
	Dimension string     `json:"dimension,omitempty"`
}

// OUTBOX (core -> host): feedback the host delivers to players or runs.
type OutboxMsg struct {
	Type    string `json:"type"`
	Tick    uint64 `json:"tick,omitempty"`
	ActorID string `json:"actor_id,omitempty"`
	Text    string `json:"text"`
}
