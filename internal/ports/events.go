package ports

import "time"

// Event types pushed to subscribers.
const (
	EventImportReceived = "import.received"
	EventImportAccepted = "import.accepted"
	EventImportExpired  = "import.expired"
	EventTreeChanged    = "tree.changed"
	EventRunFinished    = "run.finished"
)

// Event is a notification fanned out to every subscriber.
type Event struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

// Publisher delivers events. Publish must not block on slow subscribers.
type Publisher interface {
	Publish(ev Event)
}
