package domain

import (
	"strconv"
	"time"
)

// DefaultChoiceCount is the conventional number of answer choices per question.
const DefaultChoiceCount = 5

// NewEmptyQuestion builds a question with an empty stem, five empty choices,
// and no progress fields.
func NewEmptyQuestion() Question {
	return Question{
		Stem:    "",
		Choices: make([]string, DefaultChoiceCount),
	}
}

// NewTest creates a test with one empty section containing one empty
// question. The id is derived from the current time in milliseconds, which
// matches the original tool; collisions under rapid creation are a known
// weakness, not corrected here.
func NewTest(name string, typ TestType) Test {
	return Test{
		ID:   strconv.FormatInt(time.Now().UnixMilli(), 10),
		Name: name,
		Type: typ,
		Sections: []Section{
			{Passage: "", Questions: []Question{NewEmptyQuestion()}},
		},
	}
}

// SetQuestion replaces one question, returning a new test. The input test is
// never mutated; out-of-range indices yield ErrIndexOutOfRange and the
// original test unchanged.
func SetQuestion(t Test, sectionIndex, questionIndex int, q Question) (Test, error) {
	if sectionIndex < 0 || sectionIndex >= len(t.Sections) {
		return t, ErrIndexOutOfRange
	}
	section := t.Sections[sectionIndex]
	if questionIndex < 0 || questionIndex >= len(section.Questions) {
		return t, ErrIndexOutOfRange
	}

	out := t
	out.Sections = append([]Section(nil), t.Sections...)
	newSection := section
	newSection.Questions = append([]Question(nil), section.Questions...)
	newSection.Questions[questionIndex] = CloneQuestion(q)
	out.Sections[sectionIndex] = newSection
	return out, nil
}

// SetSection replaces one section wholesale.
func SetSection(t Test, sectionIndex int, s Section) (Test, error) {
	if sectionIndex < 0 || sectionIndex >= len(t.Sections) {
		return t, ErrIndexOutOfRange
	}
	out := t
	out.Sections = append([]Section(nil), t.Sections...)
	out.Sections[sectionIndex] = CloneSection(s)
	return out, nil
}

// SetSections replaces the whole section list; used by reordering.
func SetSections(t Test, sections []Section) Test {
	out := t
	out.Sections = make([]Section, len(sections))
	for i, s := range sections {
		out.Sections[i] = CloneSection(s)
	}
	return out
}

// SetName renames the test.
func SetName(t Test, name string) Test {
	out := t
	out.Name = name
	return out
}

// ResetProgress clears per-user progress on every question: selection,
// revealed choice, and eliminations. Answer keys survive. Idempotent.
func ResetProgress(t Test) Test {
	out := t
	out.Sections = make([]Section, len(t.Sections))
	for i, s := range t.Sections {
		ns := CloneSection(s)
		for j := range ns.Questions {
			ns.Questions[j].SelectedChoice = nil
			ns.Questions[j].RevealedIncorrectChoice = nil
			ns.Questions[j].EliminatedChoices = nil
		}
		out.Sections[i] = ns
	}
	return out
}

// ToggleEliminated flips one elimination flag, initializing the array to
// all-false if it was absent.
func ToggleEliminated(q Question, choiceIndex int) (Question, error) {
	if choiceIndex < 0 || choiceIndex >= len(q.Choices) {
		return q, ErrIndexOutOfRange
	}
	out := CloneQuestion(q)
	if out.EliminatedChoices == nil {
		out.EliminatedChoices = make([]bool, len(out.Choices))
	}
	out.EliminatedChoices[choiceIndex] = !out.EliminatedChoices[choiceIndex]
	return out, nil
}

// NormalizeSections heals the transient invalid state of a section with no
// questions by inserting one empty question, and guarantees a test has at
// least one section. Tests that are already well-formed come back unchanged.
func NormalizeSections(t Test) Test {
	out := CloneTest(t)
	if len(out.Sections) == 0 {
		out.Sections = []Section{{}}
	}
	for i := range out.Sections {
		if len(out.Sections[i].Questions) == 0 {
			out.Sections[i].Questions = []Question{NewEmptyQuestion()}
		}
	}
	return out
}

// Score counts questions whose selection matches a defined answer key.
func Score(t Test) (correct, total int) {
	for _, s := range t.Sections {
		for _, q := range s.Questions {
			total++
			if q.SelectedChoice != nil && q.CorrectChoice != nil && *q.SelectedChoice == *q.CorrectChoice {
				correct++
			}
		}
	}
	return correct, total
}

// Submit grades the test in place of the student finishing it: every
// question's eliminations collapse to "all but the correct choice" (all of
// them when no key is defined), and a wrong selection is recorded as the
// revealed incorrect choice.
func Submit(t Test) Test {
	out := CloneTest(t)
	for i := range out.Sections {
		for j := range out.Sections[i].Questions {
			q := &out.Sections[i].Questions[j]
			eliminated := make([]bool, len(q.Choices))
			for k := range eliminated {
				eliminated[k] = true
			}
			if q.CorrectChoice != nil && *q.CorrectChoice >= 0 && *q.CorrectChoice < len(eliminated) {
				eliminated[*q.CorrectChoice] = false
			}
			q.EliminatedChoices = eliminated
			if q.SelectedChoice != nil && q.CorrectChoice != nil && *q.SelectedChoice != *q.CorrectChoice {
				q.RevealedIncorrectChoice = cloneIndex(q.SelectedChoice)
			}
		}
	}
	return out
}
