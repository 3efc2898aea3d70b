// Package events defines the structured progress event emitted at node
// boundaries during a run and the Sink abstraction that delivers it
// (today: an SSE stream; the interface leaves room for more).
package events

import (
	"strconv"
	"time"
)

// Type is one of the seven event kinds spec.md §6 names.
type Type string

const (
	TypeStatus      Type = "status"
	TypeAgentStatus Type = "agent_status"
	TypeReport      Type = "report"
	TypeProgress    Type = "progress"
	TypeReasoning   Type = "reasoning"
	TypeComplete    Type = "complete"
	TypeError       Type = "error"
)

// AgentStatus is the lifecycle value carried by an agent_status event.
type AgentStatus string

const (
	AgentInProgress AgentStatus = "in_progress"
	AgentCompleted  AgentStatus = "completed"
	AgentError      AgentStatus = "error"
)

// Event is one SSE `data:` line's worth of payload. Only the fields
// relevant to Type are populated; json tags control the wire shape so
// the zero-valued ones don't clutter the stream.
type Event struct {
	Type      Type        `json:"type"`
	Message   string      `json:"message,omitempty"`
	Agent     string      `json:"agent,omitempty"`
	Status    AgentStatus `json:"status,omitempty"`
	Section   string      `json:"section,omitempty"`
	Content   string      `json:"content,omitempty"`
	Signal    string      `json:"signal,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func Status(message string) Event {
	return Event{Type: TypeStatus, Message: message, Timestamp: now()}
}

func AgentStatusEvent(agent string, status AgentStatus) Event {
	return Event{Type: TypeAgentStatus, Agent: agent, Status: status, Timestamp: now()}
}

func Report(section, content string) Event {
	return Event{Type: TypeReport, Section: section, Content: content, Timestamp: now()}
}

// Progress reports an aggregate completion percentage in [0, 100].
func Progress(percent int) Event {
	return Event{Type: TypeProgress, Content: clampPercent(percent), Timestamp: now()}
}

func Reasoning(content string) Event {
	return Event{Type: TypeReasoning, Content: content, Timestamp: now()}
}

func Complete(signal string) Event {
	return Event{Type: TypeComplete, Signal: signal, Timestamp: now()}
}

func Error(message string) Event {
	return Event{Type: TypeError, Message: message, Timestamp: now()}
}

func clampPercent(p int) string {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return strconv.Itoa(p)
}

var nowFn = defaultNow

func now() time.Time { return nowFn() }

func defaultNow() time.Time { return time.Now() }
