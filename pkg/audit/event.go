// Package audit records every write the engine carries out, with the
// transcripts it produced.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/newtron-network/newtcli/pkg/reconcile"
	"github.com/newtron-network/newtcli/pkg/session"
)

// Event is one audited read or write of a configuration node.
type Event struct {
	ID          string                `json:"id"`
	Timestamp   time.Time             `json:"timestamp"`
	User        string                `json:"user"`
	Device      string                `json:"device"`
	Operation   string                `json:"operation"`
	Path        string                `json:"path,omitempty"`
	Variant     string                `json:"variant,omitempty"`
	Decision    *reconcile.Decision   `json:"decision,omitempty"`
	Transcripts []*session.Transcript `json:"transcripts,omitempty"`
	Success     bool                  `json:"success"`
	Error       string                `json:"error,omitempty"`
	DryRun      bool                  `json:"dry_run"`
	Duration    time.Duration         `json:"duration"`
	// Truncated is set when transcript output was cut to fit the log.
	Truncated bool `json:"truncated,omitempty"`
}

// Operations recorded by the CLI.
const (
	OpRead  = "read"
	OpWrite = "write"
	OpPlan  = "plan"
)

// Filter selects events in Query. Zero fields match everything.
type Filter struct {
	ID          string
	Device      string
	User        string
	Operation   string
	Path        string
	Variant     string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event
func NewEvent(user, device, operation string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		User:      user,
		Device:    device,
		Operation: operation,
	}
}

// WithPath sets the configuration path
func (e *Event) WithPath(path string) *Event {
	e.Path = path
	return e
}

// WithDecision records the variant that handled the write and what it
// decided to do.
func (e *Event) WithDecision(variant string, d reconcile.Decision) *Event {
	e.Variant = variant
	e.Decision = &d
	return e
}

// WithTranscripts attaches the session transcripts
func (e *Event) WithTranscripts(trs []*session.Transcript) *Event {
	e.Transcripts = trs
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	e.Error = ""
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// WithDryRun marks events whose commands were recorded but not sent
func (e *Event) WithDryRun(dry bool) *Event {
	e.DryRun = dry
	return e
}

// Matches reports whether the event passes the filter, ignoring Limit
// and Offset.
func (f Filter) Matches(event *Event) bool {
	if f.ID != "" && event.ID != f.ID {
		return false
	}
	if f.Device != "" && event.Device != f.Device {
		return false
	}
	if f.User != "" && event.User != f.User {
		return false
	}
	if f.Operation != "" && event.Operation != f.Operation {
		return false
	}
	if f.Path != "" && event.Path != f.Path {
		return false
	}
	if f.Variant != "" && event.Variant != f.Variant {
		return false
	}
	if !f.StartTime.IsZero() && event.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && event.Timestamp.After(f.EndTime) {
		return false
	}
	if f.SuccessOnly && !event.Success {
		return false
	}
	if f.FailureOnly && event.Success {
		return false
	}
	return true
}

// page applies Offset and Limit.
func (f Filter) page(events []*Event) []*Event {
	if f.Offset > 0 {
		if f.Offset >= len(events) {
			return []*Event{}
		}
		events = events[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(events) {
		events = events[:f.Limit]
	}
	return events
}
