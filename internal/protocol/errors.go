package protocol

import "fmt"

const (
	// Line could not be parsed as JSON.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	// JSON parsed but failed schema validation.
	ErrSchema = "E_SCHEMA"
	// Type is not an event this core consumes.
	ErrUnknownType = "E_UNKNOWN_TYPE"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrSchema:          {},
	ErrUnknownType:     {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// DecodeError carries the rejection code for a single input line.
type DecodeError struct {
	Code string
	Err  error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("%s: %v", e.Code, e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }
