package types

import "fmt"

// Protocol-level error codes follow the JSON-RPC convention; engine-level
// codes live in the 1000 range.
const (
	ErrParse          = -32700
	ErrMethodNotFound = -32601

	ErrInvalidRoadID  = 1001
	ErrInvalidCommand = 1002
	ErrConfiguration  = 1003
	ErrActuation      = 1004
	ErrSession        = 1005
)

const (
	ErrTypeParse          = "PARSE_ERROR"
	ErrTypeMethodNotFound = "METHOD_NOT_FOUND"
	ErrTypeInvalidRoadID  = "INVALID_ROAD_ID"
	ErrTypeInvalidCommand = "INVALID_COMMAND"
	ErrTypeConfiguration  = "CONFIGURATION_ERROR"
	ErrTypeActuation      = "ACTUATION_FAILURE"
	ErrTypeSession        = "SESSION_ERROR"
)

// Error is the wire representation of an engine failure. It is returned in
// command responses and implements the error interface so internal layers can
// pass it upward unchanged.
type Error struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Retryable bool   `json:"retryable"`
	Hint      string `json:"hint,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds a typed engine error.
func NewError(code int, message, errType string, retryable bool, hint string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Type:      errType,
		Retryable: retryable,
		Hint:      hint,
	}
}

// InvalidRoadID reports a road id outside the configured [1..N] range.
func InvalidRoadID(road, numRoads int) *Error {
	return &Error{
		Code:    ErrInvalidRoadID,
		Message: fmt.Sprintf("road id %d out of range [1..%d]", road, numRoads),
		Type:    ErrTypeInvalidRoadID,
		Hint:    "road ids are 1-based and must not exceed the configured road count",
	}
}
