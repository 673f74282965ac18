// Package types defines the wire protocol shared by the command server and
// its clients: NDJSON requests and responses plus the notification stream
// that carries phase transitions to observers.
package types

import "github.com/segmentio/encoding/json"

// Request is one NDJSON command line.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response answers exactly one Request.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Notification is an unsolicited server-to-client event. It has no ID and
// expects no reply.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// UpdateParams carries one detection result for one road.
type UpdateParams struct {
	Road      int  `json:"road"`
	Count     int  `json:"count"`
	Emergency bool `json:"emergency"`
}

// RoadStatus is the externally visible state of one road.
type RoadStatus struct {
	ID              int   `json:"id"`
	VehicleCount    int   `json:"vehicleCount"`
	EmergencyActive bool  `json:"emergencyActive"`
	UpdatedAtMS     int64 `json:"updatedAtMs,omitempty"`
}

// StatusResult answers the status command.
type StatusResult struct {
	Running     bool         `json:"running"`
	CurrentRoad *int         `json:"currentRoad"`
	Phase       string       `json:"phase"`
	Roads       []RoadStatus `json:"roads"`
}

// Ack acknowledges a state-changing command.
type Ack struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// PhaseEvent describes one sequencer transition. Road is 0 while all
// approaches are red.
type PhaseEvent struct {
	Phase      string `json:"phase"`
	Road       int    `json:"road,omitempty"`
	DeadlineMS int64  `json:"deadlineMs,omitempty"`
	EventID    string `json:"eventId,omitempty"`
}

// HealthResult answers the health command.
type HealthResult struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	Running         bool   `json:"running"`
	CommandsHandled int64  `json:"commandsHandled"`
	UpdatesApplied  int64  `json:"updatesApplied"`
}
