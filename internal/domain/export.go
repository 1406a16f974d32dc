package domain

import (
	"encoding/json"
	"io"
)

// Exported tests carry only the answer key: per-user progress fields
// (selectedChoice, eliminatedChoices, revealedIncorrectChoice) are stripped
// so a downloaded test can be shared without leaking anyone's answers.

type exportQuestion struct {
	Stem          string   `json:"stem"`
	Choices       []string `json:"choices"`
	CorrectChoice *int     `json:"correctChoice,omitempty"`
}

type exportSection struct {
	Passage   string           `json:"passage"`
	Questions []exportQuestion `json:"questions"`
}

type exportTest struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Type     TestType        `json:"type"`
	Sections []exportSection `json:"sections"`
}

// ExportTests writes the tests as a progress-free JSON array.
func ExportTests(w io.Writer, tests []Test) error {
	out := make([]exportTest, len(tests))
	for i, t := range tests {
		out[i] = toExport(t)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ImportTests reads either a single test object or an array of tests.
func ImportTests(r io.Reader) ([]Test, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var many []exportTest
	if err := json.Unmarshal(data, &many); err == nil {
		tests := make([]Test, len(many))
		for i, et := range many {
			tests[i] = fromExport(et)
		}
		return tests, nil
	}
	var one exportTest
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, err
	}
	return []Test{fromExport(one)}, nil
}

func toExport(t Test) exportTest {
	et := exportTest{ID: t.ID, Name: t.Name, Type: t.Type, Sections: make([]exportSection, len(t.Sections))}
	for i, s := range t.Sections {
		es := exportSection{Passage: s.Passage, Questions: make([]exportQuestion, len(s.Questions))}
		for j, q := range s.Questions {
			es.Questions[j] = exportQuestion{
				Stem:          q.Stem,
				Choices:       append([]string(nil), q.Choices...),
				CorrectChoice: cloneIndex(q.CorrectChoice),
			}
		}
		et.Sections[i] = es
	}
	return et
}

func fromExport(et exportTest) Test {
	t := Test{ID: et.ID, Name: et.Name, Type: et.Type, Sections: make([]Section, len(et.Sections))}
	if t.Type == "" {
		t.Type = TestTypeLR
	}
	for i, es := range et.Sections {
		s := Section{Passage: es.Passage, Questions: make([]Question, len(es.Questions))}
		for j, eq := range es.Questions {
			s.Questions[j] = Question{
				Stem:          eq.Stem,
				Choices:       append([]string(nil), eq.Choices...),
				CorrectChoice: cloneIndex(eq.CorrectChoice),
			}
		}
		t.Sections[i] = s
	}
	return t
}
