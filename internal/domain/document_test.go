package domain

import (
	"reflect"
	"testing"
)

func TestResetProgressIdempotent(t *testing.T) {
	test := sampleTest()
	once := ResetProgress(test)
	twice := ResetProgress(once)

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("reset not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
	for _, s := range once.Sections {
		for _, q := range s.Questions {
			if q.SelectedChoice != nil || q.RevealedIncorrectChoice != nil || q.EliminatedChoices != nil {
				t.Fatalf("expected progress cleared, got %+v", q)
			}
			if q.CorrectChoice == nil {
				t.Fatalf("expected answer key untouched")
			}
		}
	}
}

func TestResetProgressDoesNotMutateInput(t *testing.T) {
	test := sampleTest()
	before := CloneTest(test)
	_ = ResetProgress(test)
	if !reflect.DeepEqual(test, before) {
		t.Fatalf("input test mutated by ResetProgress")
	}
}

func TestSetQuestionBounds(t *testing.T) {
	test := sampleTest()
	for _, tc := range []struct{ section, question int }{
		{-1, 0}, {0, -1}, {5, 0}, {0, 99},
	} {
		got, err := SetQuestion(test, tc.section, tc.question, NewEmptyQuestion())
		if err != ErrIndexOutOfRange {
			t.Fatalf("expected ErrIndexOutOfRange for (%d,%d), got %v", tc.section, tc.question, err)
		}
		if !reflect.DeepEqual(got, test) {
			t.Fatalf("out-of-range update corrupted test")
		}
	}
}

func TestSetQuestionCopiesPath(t *testing.T) {
	test := sampleTest()
	replacement := NewEmptyQuestion()
	replacement.Stem = "replaced"

	updated, err := SetQuestion(test, 0, 1, replacement)
	if err != nil {
		t.Fatalf("set question: %v", err)
	}
	if updated.Sections[0].Questions[1].Stem != "replaced" {
		t.Fatalf("question not replaced")
	}
	if test.Sections[0].Questions[1].Stem == "replaced" {
		t.Fatalf("original test aliased the updated question")
	}
	// Untouched section shares nothing observable but stays equal.
	if !reflect.DeepEqual(test.Sections[1], updated.Sections[1]) {
		t.Fatalf("unrelated section changed")
	}
}

func TestToggleEliminatedInitializes(t *testing.T) {
	q := NewEmptyQuestion()
	toggled, err := ToggleEliminated(q, 2)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	want := []bool{false, false, true, false, false}
	if !reflect.DeepEqual(toggled.EliminatedChoices, want) {
		t.Fatalf("expected %v, got %v", want, toggled.EliminatedChoices)
	}
	if q.EliminatedChoices != nil {
		t.Fatalf("input question mutated")
	}

	back, err := ToggleEliminated(toggled, 2)
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if back.EliminatedChoices[2] {
		t.Fatalf("expected flag flipped back")
	}

	if _, err := ToggleEliminated(q, 99); err != ErrIndexOutOfRange {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestNewTestShape(t *testing.T) {
	test := NewTest("Practice 1", TestTypeRC)
	if test.ID == "" {
		t.Fatalf("expected generated id")
	}
	if len(test.Sections) != 1 || len(test.Sections[0].Questions) != 1 {
		t.Fatalf("expected one section with one question, got %+v", test.Sections)
	}
	q := test.Sections[0].Questions[0]
	if q.Stem != "" || len(q.Choices) != DefaultChoiceCount {
		t.Fatalf("expected empty question with %d choices, got %+v", DefaultChoiceCount, q)
	}
}

func TestNormalizeSectionsHealsEmptySection(t *testing.T) {
	test := Test{ID: "t", Type: TestTypeLR, Sections: []Section{{Passage: "p"}}}
	healed := NormalizeSections(test)
	if len(healed.Sections[0].Questions) != 1 {
		t.Fatalf("expected one healed question, got %d", len(healed.Sections[0].Questions))
	}
	q := healed.Sections[0].Questions[0]
	if q.Stem != "" || len(q.Choices) != DefaultChoiceCount {
		t.Fatalf("expected empty question, got %+v", q)
	}

	again := NormalizeSections(healed)
	if !reflect.DeepEqual(healed, again) {
		t.Fatalf("normalize not idempotent")
	}
}

func TestScoreAndSubmitScenario(t *testing.T) {
	// Two questions: keys 1 and 0; student selects 1 and 2.
	test := Test{
		ID:   "t",
		Type: TestTypeLR,
		Sections: []Section{{
			Questions: []Question{
				{Choices: make([]string, 5), SelectedChoice: Index(1), CorrectChoice: Index(1)},
				{Choices: make([]string, 5), SelectedChoice: Index(2), CorrectChoice: Index(0)},
			},
		}},
	}

	correct, total := Score(test)
	if correct != 1 || total != 2 {
		t.Fatalf("expected score (1,2), got (%d,%d)", correct, total)
	}

	graded := Submit(test)
	q0 := graded.Sections[0].Questions[0]
	if !reflect.DeepEqual(q0.EliminatedChoices, []bool{true, false, true, true, true}) {
		t.Fatalf("q0 eliminations wrong: %v", q0.EliminatedChoices)
	}
	if q0.RevealedIncorrectChoice != nil {
		t.Fatalf("q0 was correct, expected no revealed choice")
	}

	q1 := graded.Sections[0].Questions[1]
	if !reflect.DeepEqual(q1.EliminatedChoices, []bool{false, true, true, true, true}) {
		t.Fatalf("q1 eliminations wrong: %v", q1.EliminatedChoices)
	}
	if q1.RevealedIncorrectChoice == nil || *q1.RevealedIncorrectChoice != 2 {
		t.Fatalf("expected revealed incorrect choice 2, got %v", q1.RevealedIncorrectChoice)
	}
}

func TestSubmitWithoutAnswerKeyEliminatesAll(t *testing.T) {
	test := Test{
		ID:       "t",
		Type:     TestTypeLR,
		Sections: []Section{{Questions: []Question{{Choices: make([]string, 5)}}}},
	}
	graded := Submit(test)
	for _, eliminated := range graded.Sections[0].Questions[0].EliminatedChoices {
		if !eliminated {
			t.Fatalf("expected all choices eliminated without a key")
		}
	}
}

func sampleTest() Test {
	return Test{
		ID:   "test-1",
		Name: "Sample",
		Type: TestTypeRC,
		Sections: []Section{
			{
				Passage: "First passage",
				Questions: []Question{
					{Stem: "Q1", Choices: make([]string, 5), SelectedChoice: Index(0), CorrectChoice: Index(1)},
					{Stem: "Q2", Choices: make([]string, 5), CorrectChoice: Index(2), EliminatedChoices: []bool{true, false, false, false, false}},
				},
			},
			{
				Passage: "Second passage",
				Questions: []Question{
					{Stem: "Q3", Choices: make([]string, 5), CorrectChoice: Index(0), RevealedIncorrectChoice: Index(3)},
				},
			},
		},
	}
}
