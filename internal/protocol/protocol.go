package protocol

import "encoding/json"

const Version = "1.0"

// Event types.
const (
	TypeEntityDeath   = "entity_death"
	TypeBlockBreak    = "block_break"
	TypeBlockPlace    = "block_place"
	TypeContainerOpen = "container_open"
	TypePlayerTick    = "player_tick"
)

// Outbox message types (core -> host).
const (
	TypeMessage   = "MESSAGE"
	TypeActionBar = "ACTION_BAR"
	TypeCommand   = "COMMAND"
	TypeLog       = "LOG"
)

// BaseMessage lets us route unknown JSON lines by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
