package blueprint

// EventType discriminates StreamEvent payloads on the wire.
type EventType string

const (
	EventContent  EventType = "content"
	EventComplete EventType = "complete"
	EventDone     EventType = "done"
)

// StreamEvent is one server-sent event. Exactly one terminal event
// (complete or done) ends every successful generation.
type StreamEvent struct {
	Type EventType  `json:"type"`
	Text string     `json:"text,omitempty"`
	Data *Blueprint `json:"data,omitempty"`
}

func ContentEvent(text string) StreamEvent {
	return StreamEvent{Type: EventContent, Text: text}
}

func CompleteEvent(bp Blueprint) StreamEvent {
	return StreamEvent{Type: EventComplete, Data: &bp}
}

func DoneEvent() StreamEvent {
	return StreamEvent{Type: EventDone}
}

// Terminal reports whether the event ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventDone
}
