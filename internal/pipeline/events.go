package pipeline

// EventType enumerates pipeline progress notifications.
type EventType string

const (
	EventStageStarted  EventType = "stage-started"
	EventStageFinished EventType = "stage-finished"
	EventAgentStarted  EventType = "agent-started"
	EventAgentFinished EventType = "agent-finished"
	EventFileScanned   EventType = "file-scanned"
)

// Stage names used in events.
const (
	StageDetect    = "detect"
	StageAgents    = "agents"
	StageAggregate = "aggregate"
)

// Event is one progress notification. Delivery is best-effort: a slow
// consumer drops events rather than stalling the run.
type Event struct {
	Type     EventType
	Stage    string
	Agent    string
	File     string
	Findings int
	Err      error
}

// Sink receives pipeline events.
type Sink chan<- Event

func (s Sink) send(e Event) {
	if s == nil {
		return
	}
	select {
	case s <- e:
	default:
	}
}
