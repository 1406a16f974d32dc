// Package protocol defines the session wire events. Every frame on the
// session channel is one of the event types below, discriminated by a
// mandatory "type" field. The set is closed: Decode refuses unknown tags and
// receivers drop such frames without closing the channel.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"lsat-session-service/internal/domain"
)

// Type discriminates event payloads on the wire.
type Type string

const (
	TypeState          Type = "state"
	TypeView           Type = "view"
	TypeQuestionIndex  Type = "question_index"
	TypeQuestionUpdate Type = "question_update"
	TypeResetTest      Type = "reset_test"
	TypeSubmitTest     Type = "submit_test"
	TypeHighlight      Type = "highlight"
	TypeSearch         Type = "search"
	TypeStateUpdate    Type = "state_update"
	TypeError          Type = "error"
)

// ErrUnknownEvent is returned by Decode for an unrecognized type tag.
var ErrUnknownEvent = errors.New("unknown event type")

// Event is implemented by every wire event. The set of implementations is
// fixed; adding an operation means adding a type here and a case to every
// switch over events, which the compiler then enforces.
type Event interface {
	EventType() Type
}

// StateEvent carries a full snapshot sufficient to initialize a fresh
// replica: application state plus overlays, view, and navigation position.
type StateEvent struct {
	State         domain.AppState    `json:"state"`
	Highlights    []domain.Highlight `json:"highlights"`
	Search        string             `json:"search"`
	View          domain.ViewMode    `json:"view"`
	QuestionIndex domain.NavPosition `json:"question_index"`
}

// ViewEvent switches every client to the given view, optionally activating a test.
type ViewEvent struct {
	View   domain.ViewMode `json:"view"`
	TestID *string         `json:"testId,omitempty"`
}

// QuestionIndexEvent moves the shared navigation position.
type QuestionIndexEvent struct {
	Index domain.NavPosition `json:"index"`
}

// QuestionUpdateEvent replaces a single question of the named test.
type QuestionUpdateEvent struct {
	TestID        string          `json:"testId"`
	SectionIndex  int             `json:"sectionIndex"`
	QuestionIndex int             `json:"questionIndex"`
	Question      domain.Question `json:"question"`
}

// ResetTestEvent clears progress on the named test.
type ResetTestEvent struct {
	TestID string `json:"testId"`
}

// SubmitTestEvent grades the named test on every client.
type SubmitTestEvent struct {
	TestID string `json:"testId"`
}

// HighlightEvent appends one highlight to the shared overlay set.
type HighlightEvent struct {
	Highlight domain.Highlight `json:"highlight"`
}

// SearchEvent replaces the shared search term.
type SearchEvent struct {
	Term string `json:"term"`
}

// StateUpdateOp names a document operation carried by a StateUpdateEvent.
type StateUpdateOp string

const (
	OpSetName     StateUpdateOp = "set_name"
	OpSetSection  StateUpdateOp = "set_section"
	OpSetSections StateUpdateOp = "set_sections"
)

// StateUpdateEvent is the generic document-patch channel. Each op maps onto
// exactly one document operation; ApplyStateUpdate dispatches exhaustively.
type StateUpdateEvent struct {
	Op           StateUpdateOp    `json:"op"`
	TestID       string           `json:"testId"`
	Name         string           `json:"name,omitempty"`
	SectionIndex int              `json:"sectionIndex"`
	Section      *domain.Section  `json:"section,omitempty"`
	Sections     []domain.Section `json:"sections,omitempty"`
}

// ErrorEvent surfaces a diagnostic; it never alters document state.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (StateEvent) EventType() Type          { return TypeState }
func (ViewEvent) EventType() Type           { return TypeView }
func (QuestionIndexEvent) EventType() Type  { return TypeQuestionIndex }
func (QuestionUpdateEvent) EventType() Type { return TypeQuestionUpdate }
func (ResetTestEvent) EventType() Type      { return TypeResetTest }
func (SubmitTestEvent) EventType() Type     { return TypeSubmitTest }
func (HighlightEvent) EventType() Type      { return TypeHighlight }
func (SearchEvent) EventType() Type         { return TypeSearch }
func (StateUpdateEvent) EventType() Type    { return TypeStateUpdate }
func (ErrorEvent) EventType() Type          { return TypeError }

// Encode serializes an event with its type tag injected alongside the
// payload fields, matching the flat frame layout clients expect.
func Encode(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	tag, err := json.Marshal(ev.EventType())
	if err != nil {
		return nil, err
	}
	fields["type"] = tag
	return json.Marshal(fields)
}

// Decode parses a frame into its concrete event type.
func Decode(data []byte) (Event, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode event header: %w", err)
	}

	var ev Event
	var err error
	switch head.Type {
	case TypeState:
		var e StateEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeView:
		var e ViewEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeQuestionIndex:
		var e QuestionIndexEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeQuestionUpdate:
		var e QuestionUpdateEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeResetTest:
		var e ResetTestEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeSubmitTest:
		var e SubmitTestEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeHighlight:
		var e HighlightEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeSearch:
		var e SearchEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeStateUpdate:
		var e StateUpdateEvent
		err = json.Unmarshal(data, &e)
		ev = e
	case TypeError:
		var e ErrorEvent
		err = json.Unmarshal(data, &e)
		ev = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s event: %w", head.Type, err)
	}
	return ev, nil
}

// ApplyStateUpdate applies a generic patch to the tests mapping and returns
// the updated mapping. Patches against unknown tests are silent no-ops;
// unknown ops are an error so new operations cannot be forgotten here.
func ApplyStateUpdate(tests domain.Tests, ev StateUpdateEvent) (domain.Tests, error) {
	test, ok := tests[ev.TestID]
	if !ok {
		return tests, nil
	}

	var updated domain.Test
	switch ev.Op {
	case OpSetName:
		updated = domain.SetName(test, ev.Name)
	case OpSetSection:
		if ev.Section == nil {
			return tests, nil
		}
		var err error
		updated, err = domain.SetSection(test, ev.SectionIndex, *ev.Section)
		if err != nil {
			return tests, nil
		}
	case OpSetSections:
		updated = domain.SetSections(test, ev.Sections)
	default:
		return tests, fmt.Errorf("unknown state_update op %q", ev.Op)
	}

	out := make(domain.Tests, len(tests))
	for id, t := range tests {
		out[id] = t
	}
	out[ev.TestID] = updated
	return out, nil
}
