package app

import (
	"time"

	"github.com/kilianp07/slotanneal/core/anneal"
)

// EventKind tags the payload of an Event.
type EventKind int

const (
	EventState EventKind = iota
	EventProgress
	EventLog
	EventResult
)

// Event carries one engine notification off the engine goroutine.
type Event struct {
	Kind     EventKind
	RunID    string
	Time     time.Time
	State    anneal.State
	Progress anneal.Progress
	Level    anneal.Level
	Message  string
	Result   anneal.Result
}
