// api/schemas/events.go
package schemas

// -- Engine Event Schemas --

// EventKind identifies the kind of an engine event.
type EventKind string

const (
	EventLog      EventKind = "log"
	EventData     EventKind = "data"
	EventComplete EventKind = "complete"
	EventFailure  EventKind = "failure"
)

// Terminal reports whether the kind ends a run's event stream.
func (k EventKind) Terminal() bool {
	return k == EventComplete || k == EventFailure
}

// CompletePayload is carried by a complete event.
type CompletePayload struct {
	ItemCount int    `json:"item_count"`
	FileName  string `json:"file_name"`
}

// FailurePayload is carried by a failure event.
type FailurePayload struct {
	Reason string `json:"reason"`
}

// EngineEvent is a single message streamed by the automation engine for a run.
// Exactly one of the payload fields is set, matching Kind.
type EngineEvent struct {
	Kind     EventKind        `json:"kind"`
	RunID    string           `json:"run_id"`
	Log      *LogMessage      `json:"log,omitempty"`
	Item     ResultItem       `json:"item,omitempty"`
	Complete *CompletePayload `json:"complete,omitempty"`
	Failure  *FailurePayload  `json:"failure,omitempty"`
}

// AllEventKinds lists every kind a run consumer subscribes to.
var AllEventKinds = []EventKind{EventLog, EventData, EventComplete, EventFailure}
