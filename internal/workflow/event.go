package workflow

import "time"

// Op names a workflow intent.
type Op string

const (
	OpSubmitInput   Op = "input"
	OpApprove       Op = "approve"
	OpReject        Op = "reject"
	OpEdit          Op = "edit"
	OpGenerateImage Op = "image"
	OpRetry         Op = "retry"
	OpReset         Op = "reset"
)

// Event describes one state transition.
type Event struct {
	Instance string
	Op       Op
	From     StageName
	To       StageName
	Snapshot Snapshot
	At       time.Time
}

// Observer receives transition events in order. Observe is called without
// the workflow lock held but must not invoke workflow intents.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) { f(e) }
