package chat

// Event is the payload of one transport event. Shapes are discriminated by
// field presence: {content}, {done,fullResponse}, {done,title} or {error}.
type Event struct {
	Content      string  `json:"content,omitempty"`
	Done         bool    `json:"done,omitempty"`
	FullResponse *string `json:"fullResponse,omitempty"`
	Title        *string `json:"title,omitempty"`
	Error        string  `json:"error,omitempty"`
}

func FragmentEvent(content string) Event { return Event{Content: content} }

func ChatDoneEvent(full string) Event { return Event{Done: true, FullResponse: &full} }

func TitleDoneEvent(title string) Event { return Event{Done: true, Title: &title} }

func ErrorEvent(msg string) Event { return Event{Error: msg} }

// Terminal reports whether e ends a session.
func (e Event) Terminal() bool {
	return e.Done || e.Error != ""
}

// Sink receives the ordered events of one session. An error from Emit means the
// transport is gone.
type Sink interface {
	Emit(e Event) error
}

type SinkFunc func(e Event) error

func (f SinkFunc) Emit(e Event) error { return f(e) }

// discardSink is used by sessions nobody is listening to, such as background titles.
type discardSink struct{}

func (discardSink) Emit(Event) error { return nil }
