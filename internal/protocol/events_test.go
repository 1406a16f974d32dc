package protocol

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"lsat-session-service/internal/domain"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	testID := "t1"
	events := []Event{
		StateEvent{
			State: domain.AppState{
				Tests:        domain.Tests{"t1": {ID: "t1", Name: "One", Type: domain.TestTypeLR}},
				ActiveTestID: &testID,
				ViewMode:     domain.ViewDisplay,
			},
			Highlights:    []domain.Highlight{{ID: "h1", StartIndex: 2, EndIndex: 9, Type: "mark"}},
			Search:        "logic",
			View:          domain.ViewDisplay,
			QuestionIndex: domain.NavPosition{Section: 1, Question: 2},
		},
		ViewEvent{View: domain.ViewEdit, TestID: &testID},
		ViewEvent{View: domain.ViewHome},
		QuestionIndexEvent{Index: domain.NavPosition{Section: 2, Question: 1}},
		QuestionUpdateEvent{
			TestID:       "t1",
			SectionIndex: 0, QuestionIndex: 3,
			Question: domain.Question{Stem: "why", Choices: make([]string, 5), SelectedChoice: domain.Index(4)},
		},
		ResetTestEvent{TestID: "t1"},
		SubmitTestEvent{TestID: "t1"},
		HighlightEvent{Highlight: domain.Highlight{ID: "h2", StartIndex: 0, EndIndex: 4, Type: "underline"}},
		SearchEvent{Term: "assumption"},
		StateUpdateEvent{Op: OpSetName, TestID: "t1", Name: "Renamed"},
		ErrorEvent{Message: "boom"},
	}

	for _, ev := range events {
		frame, err := Encode(ev)
		if err != nil {
			t.Fatalf("encode %T: %v", ev, err)
		}
		decoded, err := Decode(frame)
		if err != nil {
			t.Fatalf("decode %T: %v", ev, err)
		}
		if !reflect.DeepEqual(decoded, ev) {
			t.Fatalf("roundtrip mismatch for %T:\nsent: %+v\ngot:  %+v", ev, ev, decoded)
		}
	}
}

func TestEncodeCarriesTypeTag(t *testing.T) {
	frame, err := Encode(SearchEvent{Term: "flaw"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(frame, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["type"] != "search" || raw["term"] != "flaw" {
		t.Fatalf("unexpected frame shape: %v", raw)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"mystery"}`))
	if !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed frame")
	}
}

func TestApplyStateUpdateOps(t *testing.T) {
	tests := domain.Tests{"t1": {ID: "t1", Name: "Old", Type: domain.TestTypeRC, Sections: []domain.Section{{Passage: "p"}}}}

	renamed, err := ApplyStateUpdate(tests, StateUpdateEvent{Op: OpSetName, TestID: "t1", Name: "New"})
	if err != nil {
		t.Fatalf("set_name: %v", err)
	}
	if renamed["t1"].Name != "New" {
		t.Fatalf("expected rename, got %q", renamed["t1"].Name)
	}
	if tests["t1"].Name != "Old" {
		t.Fatalf("input mapping mutated")
	}

	section := domain.Section{Passage: "updated"}
	patched, err := ApplyStateUpdate(tests, StateUpdateEvent{Op: OpSetSection, TestID: "t1", SectionIndex: 0, Section: &section})
	if err != nil {
		t.Fatalf("set_section: %v", err)
	}
	if patched["t1"].Sections[0].Passage != "updated" {
		t.Fatalf("section not replaced")
	}

	replaced, err := ApplyStateUpdate(tests, StateUpdateEvent{
		Op:       OpSetSections,
		TestID:   "t1",
		Sections: []domain.Section{{Passage: "a"}, {Passage: "b"}},
	})
	if err != nil {
		t.Fatalf("set_sections: %v", err)
	}
	if len(replaced["t1"].Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(replaced["t1"].Sections))
	}
}

func TestApplyStateUpdateUnknownTestIsNoop(t *testing.T) {
	tests := domain.Tests{}
	out, err := ApplyStateUpdate(tests, StateUpdateEvent{Op: OpSetName, TestID: "ghost", Name: "X"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no-op, got %+v", out)
	}
}

func TestApplyStateUpdateUnknownOpErrors(t *testing.T) {
	tests := domain.Tests{"t1": {ID: "t1"}}
	if _, err := ApplyStateUpdate(tests, StateUpdateEvent{Op: "explode", TestID: "t1"}); err == nil {
		t.Fatalf("expected error for unknown op")
	}
}
