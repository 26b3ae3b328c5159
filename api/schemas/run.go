// api/schemas/run.go
package schemas

import (
	"bytes"
	"encoding/json"
	"time"
)

// -- Run Schemas --

// RunState is the lifecycle state of the run controller.
type RunState string

const (
	RunIdle      RunState = "idle"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunError     RunState = "error"
)

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	return s == RunCompleted || s == RunError
}

// LogLevel classifies a run log message.
type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelSuccess LogLevel = "success"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

// LogMessage is one entry of a run's append-only log.
type LogMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Text      string    `json:"text"`
}

// FieldValue is one named value of a ResultItem. A nil Value means the field
// was absent for the record.
type FieldValue struct {
	Name  string
	Value *string
}

// ResultItem is one extracted record, with fields kept in extractor order.
type ResultItem []FieldValue

// Get returns the value for the named field and whether it was present.
func (r ResultItem) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			if f.Value == nil {
				return "", false
			}
			return *f.Value, true
		}
	}
	return "", false
}

// Names returns the field names in order.
func (r ResultItem) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// Clone copies the item, including the value pointers' targets.
func (r ResultItem) Clone() ResultItem {
	out := make(ResultItem, len(r))
	for i, f := range r {
		out[i].Name = f.Name
		if f.Value != nil {
			v := *f.Value
			out[i].Value = &v
		}
	}
	return out
}

// MarshalJSON encodes the item as an object whose keys keep field order.
func (r ResultItem) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if f.Value == nil {
			buf.WriteString("null")
			continue
		}
		val, err := json.Marshal(*f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// StringPtr is a small helper for building ResultItems.
func StringPtr(s string) *string { return &s }

// RunRequest is the start command handed to the automation engine. Profile
// is a value snapshot taken when the run started.
type RunRequest struct {
	RunID    string  `json:"run_id"`
	Profile  Profile `json:"profile"`
	FileName string  `json:"file_name"`
}

// RunSummary describes the outcome of the most recent run.
type RunSummary struct {
	RunID         string    `json:"run_id"`
	State         RunState  `json:"state"`
	FileName      string    `json:"file_name"`
	ItemCount     int       `json:"item_count"`
	FailureReason string    `json:"failure_reason,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at,omitempty"`
}
