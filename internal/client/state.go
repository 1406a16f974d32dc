// Package client implements the collaborative session client: the replica
// state machine, the HTTP lifecycle calls, and the websocket event channel.
package client

import (
	"lsat-session-service/internal/domain"
	"lsat-session-service/internal/protocol"
)

// Status is the channel state of a client.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// Overlays is the ephemeral per-view state layered over the document.
type Overlays struct {
	Highlights []domain.Highlight
	Search     string
}

// StateMachine is the replica every client maintains: the document snapshot,
// navigation position, and overlays, advanced one event at a time. Both
// locally originated mutations and inbound channel events go through Apply,
// so a follower replaying the host's events converges on the host's state.
type StateMachine struct {
	Role        domain.Role
	Status      Status
	State       domain.AppState
	NavPosition domain.NavPosition
	Overlays    Overlays
	LastError   string
}

// NewStateMachine starts from the given local application state.
func NewStateMachine(state domain.AppState) *StateMachine {
	if state.Tests == nil {
		state.Tests = make(domain.Tests)
	}
	if state.ViewMode == "" {
		state.ViewMode = domain.ViewHome
	}
	return &StateMachine{
		Role:   domain.RoleTutor,
		Status: StatusDisconnected,
		State:  state,
	}
}

// Apply folds one event into the replica. Events against unknown tests or
// out-of-range indices are silent no-ops; nothing here is fatal.
func (m *StateMachine) Apply(ev protocol.Event) {
	switch e := ev.(type) {
	case protocol.StateEvent:
		// Wholesale replacement, preserving client-local session info.
		info := m.State.SessionInfo
		m.State = domain.CloneState(e.State)
		m.State.SessionInfo = info
		m.NavPosition = e.QuestionIndex
		m.Overlays = Overlays{
			Highlights: append([]domain.Highlight(nil), e.Highlights...),
			Search:     e.Search,
		}
		if e.View != "" {
			m.State.ViewMode = e.View
		}
	case protocol.ViewEvent:
		m.State.ViewMode = e.View
		if e.TestID != nil {
			id := *e.TestID
			m.State.ActiveTestID = &id
		} else {
			m.State.ActiveTestID = nil
		}
		m.Overlays = Overlays{}
	case protocol.QuestionIndexEvent:
		m.NavPosition = e.Index
		m.Overlays = Overlays{}
	case protocol.QuestionUpdateEvent:
		if test, ok := m.State.Tests[e.TestID]; ok {
			if updated, err := domain.SetQuestion(test, e.SectionIndex, e.QuestionIndex, e.Question); err == nil {
				m.State.Tests[e.TestID] = updated
			}
		}
	case protocol.ResetTestEvent:
		if test, ok := m.State.Tests[e.TestID]; ok {
			m.State.Tests[e.TestID] = domain.ResetProgress(test)
		}
	case protocol.SubmitTestEvent:
		if test, ok := m.State.Tests[e.TestID]; ok {
			m.State.Tests[e.TestID] = domain.Submit(test)
		}
	case protocol.HighlightEvent:
		m.Overlays.Highlights = append(m.Overlays.Highlights, e.Highlight)
	case protocol.SearchEvent:
		m.Overlays.Search = e.Term
	case protocol.StateUpdateEvent:
		if updated, err := protocol.ApplyStateUpdate(m.State.Tests, e); err == nil {
			m.State.Tests = updated
		}
	case protocol.ErrorEvent:
		m.LastError = e.Message
	}
}

// Snapshot serializes the replica into a full-state event, the form the host
// broadcasts to reconcile followers.
func (m *StateMachine) Snapshot() protocol.StateEvent {
	highlights := append([]domain.Highlight(nil), m.Overlays.Highlights...)
	if highlights == nil {
		highlights = []domain.Highlight{}
	}
	return protocol.StateEvent{
		State:         domain.CloneState(m.State),
		Highlights:    highlights,
		Search:        m.Overlays.Search,
		View:          m.State.ViewMode,
		QuestionIndex: m.NavPosition,
	}
}
