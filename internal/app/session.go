package app

import (
	"sync"
	"time"

	"lsat-session-service/internal/domain"
	"lsat-session-service/internal/protocol"
)

// Session is the server-side relay state for one collaborative session. It
// tracks the host's document snapshot plus the shared overlays so that any
// client attaching (or re-attaching) can be initialized with a single
// full-state frame, with no dependency on events it missed.
type Session struct {
	id        string
	hostToken string
	now       func() time.Time

	mu            sync.RWMutex
	participants  map[string]struct{}
	subscribers   map[string]chan []byte
	state         domain.AppState
	highlights    []domain.Highlight
	search        string
	view          domain.ViewMode
	questionIndex domain.NavPosition
	createdAt     time.Time
	lastActive    time.Time
}

// NewSession seeds a relay session from the host's application state.
func NewSession(id, hostToken string, state domain.AppState) *Session {
	return NewSessionWithClock(id, hostToken, state, time.Now)
}

// NewSessionWithClock is for deterministic timestamps in tests.
func NewSessionWithClock(id, hostToken string, state domain.AppState, now func() time.Time) *Session {
	// Session info is client-local; never relay one client's credentials.
	state.SessionInfo = nil
	created := now()
	return &Session{
		id:           id,
		hostToken:    hostToken,
		now:          now,
		participants: make(map[string]struct{}),
		subscribers:  make(map[string]chan []byte),
		state:        domain.CloneState(state),
		view:         state.ViewMode,
		createdAt:    created,
		lastActive:   created,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// AddParticipant registers a freshly issued participant token.
func (s *Session) AddParticipant(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[token] = struct{}{}
	s.lastActive = s.now()
}

// RemoveParticipant discards a token; unknown tokens are a no-op.
func (s *Session) RemoveParticipant(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants, token)
	s.lastActive = s.now()
}

// Authorized reports whether a token belongs to the host or a participant.
func (s *Session) Authorized(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if token == s.hostToken {
		return true
	}
	_, ok := s.participants[token]
	return ok
}

// IsEmpty reports whether the session has no participants and no open channels.
func (s *Session) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants) == 0 && len(s.subscribers) == 0
}

// Expired applies the lifetime policy: a hard cap from creation, and an idle
// timeout that only starts once every channel has closed.
func (s *Session) Expired(maxAge, idleTimeout time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	if now.Sub(s.createdAt) > maxAge {
		return true
	}
	if len(s.subscribers) == 0 && now.Sub(s.lastActive) > idleTimeout {
		return true
	}
	return false
}

// Snapshot builds the full-state event that initializes a replica.
func (s *Session) Snapshot() protocol.StateEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() protocol.StateEvent {
	highlights := append([]domain.Highlight(nil), s.highlights...)
	if highlights == nil {
		highlights = []domain.Highlight{}
	}
	return protocol.StateEvent{
		State:         domain.CloneState(s.state),
		Highlights:    highlights,
		Search:        s.search,
		View:          s.view,
		QuestionIndex: s.questionIndex,
	}
}

// State returns a copy of the relayed application state.
func (s *Session) State() domain.AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneState(s.state)
}

// Attach registers an outbound frame channel for a connected client and
// returns it along with a cancel function. The first frame a caller should
// write to its client is the Snapshot taken right after attaching.
func (s *Session) Attach(token string) (<-chan []byte, func()) {
	ch := make(chan []byte, 16)

	s.mu.Lock()
	s.subscribers[token] = ch
	s.lastActive = s.now()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if existing, ok := s.subscribers[token]; ok && existing == ch {
			delete(s.subscribers, token)
			close(ch)
		}
		s.lastActive = s.now()
		s.mu.Unlock()
	}
	return ch, cancel
}

// CloseAll tears down every subscriber channel, forcing connected clients off.
func (s *Session) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, ch := range s.subscribers {
		delete(s.subscribers, token)
		close(ch)
	}
}

// Apply folds one inbound event into the relay state, then broadcasts the
// already-encoded frame to every attached client, the originator included:
// all peers converge by applying the same events in the same per-channel
// order.
func (s *Session) Apply(ev protocol.Event, frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()

	switch e := ev.(type) {
	case protocol.HighlightEvent:
		s.highlights = append(s.highlights, e.Highlight)
	case protocol.SearchEvent:
		s.search = e.Term
	case protocol.ViewEvent:
		s.view = e.View
		s.state.ViewMode = e.View
		s.highlights = nil
		s.search = ""
		if e.TestID != nil {
			id := *e.TestID
			s.state.ActiveTestID = &id
		} else {
			s.state.ActiveTestID = nil
		}
	case protocol.QuestionIndexEvent:
		s.questionIndex = e.Index
		s.highlights = nil
		s.search = ""
	case protocol.QuestionUpdateEvent:
		s.applyQuestionUpdateLocked(e)
	case protocol.ResetTestEvent:
		if test, ok := s.state.Tests[e.TestID]; ok {
			s.state.Tests[e.TestID] = domain.ResetProgress(test)
		}
	case protocol.SubmitTestEvent:
		if test, ok := s.state.Tests[e.TestID]; ok {
			s.state.Tests[e.TestID] = domain.Submit(test)
		}
	case protocol.StateEvent:
		s.state = domain.CloneState(e.State)
		s.state.SessionInfo = nil
		s.highlights = append([]domain.Highlight(nil), e.Highlights...)
		s.search = e.Search
		s.view = e.View
		s.questionIndex = e.QuestionIndex
	case protocol.StateUpdateEvent:
		if updated, err := protocol.ApplyStateUpdate(s.state.Tests, e); err == nil {
			s.state.Tests = updated
		}
	case protocol.ErrorEvent:
		// diagnostics only
	}

	s.broadcastLocked(frame)
}

// applyQuestionUpdateLocked grows the document as needed before placing the
// question, mirroring how the relay tolerates updates that race ahead of the
// replica it seeded from.
func (s *Session) applyQuestionUpdateLocked(e protocol.QuestionUpdateEvent) {
	if e.SectionIndex < 0 || e.QuestionIndex < 0 {
		return
	}
	if s.state.Tests == nil {
		s.state.Tests = make(domain.Tests)
	}
	test, ok := s.state.Tests[e.TestID]
	if !ok {
		test = domain.Test{ID: e.TestID, Type: domain.TestTypeLR}
	}
	for len(test.Sections) <= e.SectionIndex {
		test.Sections = append(test.Sections, domain.Section{})
	}
	section := test.Sections[e.SectionIndex]
	for len(section.Questions) <= e.QuestionIndex {
		section.Questions = append(section.Questions, domain.Question{})
	}
	section.Questions[e.QuestionIndex] = domain.CloneQuestion(e.Question)
	test.Sections[e.SectionIndex] = section
	s.state.Tests[e.TestID] = test
}

func (s *Session) broadcastLocked(frame []byte) {
	for _, ch := range s.subscribers {
		select {
		case ch <- frame:
		default:
			// Drop the oldest pending frame rather than block the session on
			// a slow client; a later full-state frame heals whatever it missed.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- frame:
			default:
			}
		}
	}
}
