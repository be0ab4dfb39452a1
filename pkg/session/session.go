// Package session runs rendered command text against device sessions,
// one serialized transaction at a time, and records what was exchanged.
package session

import (
	"context"
	"time"
)

// Session is a connected device CLI. Send delivers one payload (possibly
// several newline-separated commands) and returns the combined output.
// Implementations do not retry.
type Session interface {
	Name() string
	Send(ctx context.Context, payload string) (string, error)
	Close() error
}

// Kind distinguishes the two transaction shapes.
type Kind string

const (
	// KindProbe is a single display command.
	KindProbe Kind = "probe"
	// KindApply is a configuration transaction.
	KindApply Kind = "apply"
	// KindResync is a probe run to re-establish session state.
	KindResync Kind = "resync"
)

// Transcript records one transaction.
type Transcript struct {
	ID       string        `json:"id"`
	Session  string        `json:"session"`
	Kind     Kind          `json:"kind"`
	Commands []string      `json:"commands"`
	Output   string        `json:"output"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// Payload returns the commands as sent.
func (t *Transcript) Payload() string {
	return joinCommands(t.Commands)
}
