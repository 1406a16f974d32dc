package domain

// ViewMode identifies which top-level view a client is showing.
type ViewMode string

const (
	ViewHome    ViewMode = "home"
	ViewEdit    ViewMode = "edit"
	ViewDisplay ViewMode = "display"
)

// TestType governs how "add" behaves in the editor: RC tests grow questions
// inside a section, LR tests always grow a new section.
type TestType string

const (
	TestTypeRC TestType = "RC"
	TestTypeLR TestType = "LR"
)

// Role distinguishes the authoritative host from follower clients.
type Role string

const (
	RoleTutor   Role = "tutor"
	RoleStudent Role = "student"
)

// Question models a single multiple-choice question. All index fields, when
// present, are within [0, len(Choices)).
type Question struct {
	Stem                    string   `json:"stem"`
	Choices                 []string `json:"choices"`
	SelectedChoice          *int     `json:"selectedChoice,omitempty"`
	CorrectChoice           *int     `json:"correctChoice,omitempty"`
	RevealedIncorrectChoice *int     `json:"revealedIncorrectChoice,omitempty"`
	EliminatedChoices       []bool   `json:"eliminatedChoices,omitempty"`
}

// Section pairs a passage with its questions.
type Section struct {
	Passage   string     `json:"passage"`
	Questions []Question `json:"questions"`
}

// Test is the shared document. ID and Type are immutable after creation.
type Test struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Sections []Section `json:"sections"`
	Type     TestType  `json:"type"`
}

// Tests maps test id to test; keys are unique, order is irrelevant.
type Tests map[string]Test

// AppState is the full client-side application state. While a session is
// active the host's copy is authoritative and followers hold replicas.
type AppState struct {
	Tests        Tests                 `json:"tests"`
	ActiveTestID *string               `json:"activeTestId"`
	ViewMode     ViewMode              `json:"viewMode"`
	SessionInfo  *CollaborativeSession `json:"sessionInfo,omitempty"`
}

// CollaborativeSession is the ephemeral per-session record a client keeps
// while connected. It is never persisted across restarts for participants.
type CollaborativeSession struct {
	SessionID      string   `json:"sessionId"`
	Token          string   `json:"token"`
	Role           Role     `json:"role"`
	ConnectedUsers []string `json:"connectedUsers"`
	LastSynced     int64    `json:"lastSynced"`
	SharedTestID   string   `json:"sharedTestId"`
}

// Highlight is an ephemeral text overlay, not part of the persisted test.
type Highlight struct {
	ID         string `json:"id"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
	Type       string `json:"type"`
}

// NavPosition identifies the currently displayed question.
type NavPosition struct {
	Section  int `json:"section"`
	Question int `json:"question"`
}

// CloneQuestion returns a deep copy; the result shares no mutable structure
// with the input.
func CloneQuestion(q Question) Question {
	out := q
	out.Choices = append([]string(nil), q.Choices...)
	if q.EliminatedChoices != nil {
		out.EliminatedChoices = append([]bool(nil), q.EliminatedChoices...)
	}
	out.SelectedChoice = cloneIndex(q.SelectedChoice)
	out.CorrectChoice = cloneIndex(q.CorrectChoice)
	out.RevealedIncorrectChoice = cloneIndex(q.RevealedIncorrectChoice)
	return out
}

// CloneSection returns a deep copy of a section.
func CloneSection(s Section) Section {
	out := Section{Passage: s.Passage, Questions: make([]Question, len(s.Questions))}
	for i, q := range s.Questions {
		out.Questions[i] = CloneQuestion(q)
	}
	return out
}

// CloneTest returns a deep copy of a test.
func CloneTest(t Test) Test {
	out := t
	out.Sections = make([]Section, len(t.Sections))
	for i, s := range t.Sections {
		out.Sections[i] = CloneSection(s)
	}
	return out
}

// CloneState deep-copies the tests mapping and active id. SessionInfo is
// client-local and left to the caller.
func CloneState(st AppState) AppState {
	out := st
	out.Tests = make(Tests, len(st.Tests))
	for id, t := range st.Tests {
		out.Tests[id] = CloneTest(t)
	}
	if st.ActiveTestID != nil {
		id := *st.ActiveTestID
		out.ActiveTestID = &id
	}
	return out
}

func cloneIndex(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Index is a convenience for building optional index fields.
func Index(i int) *int {
	return &i
}
