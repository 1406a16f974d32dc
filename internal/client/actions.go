package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lsat-session-service/internal/domain"
	"lsat-session-service/internal/protocol"
)

// originate is the single path for locally originated mutations: optimistic
// local apply, then a fire-and-forget frame on the channel if a session is
// active. No acknowledgment, no retry; a later full-state frame heals gaps.
func (c *Client) originate(ev protocol.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sm.Apply(ev)

	if c.sm.State.SessionInfo == nil || c.conn == nil {
		return
	}
	frame, err := protocol.Encode(ev)
	if err != nil {
		c.log.Warn("encode event", zap.Error(err))
		return
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.log.Warn("send event", zap.Error(err))
		return
	}
	c.pendingEcho = append(c.pendingEcho, frame)
	if len(c.pendingEcho) > 64 {
		c.pendingEcho = c.pendingEcho[1:]
	}
}

// UpdateQuestion replaces one question of a test.
func (c *Client) UpdateQuestion(testID string, sectionIndex, questionIndex int, q domain.Question) {
	c.originate(protocol.QuestionUpdateEvent{
		TestID:        testID,
		SectionIndex:  sectionIndex,
		QuestionIndex: questionIndex,
		Question:      q,
	})
}

// SelectChoice records an answer selection on the current test.
func (c *Client) SelectChoice(testID string, sectionIndex, questionIndex, choiceIndex int) {
	c.mu.Lock()
	test, ok := c.sm.State.Tests[testID]
	if !ok || sectionIndex < 0 || sectionIndex >= len(test.Sections) {
		c.mu.Unlock()
		return
	}
	questions := test.Sections[sectionIndex].Questions
	if questionIndex < 0 || questionIndex >= len(questions) {
		c.mu.Unlock()
		return
	}
	q := domain.CloneQuestion(questions[questionIndex])
	c.mu.Unlock()

	if choiceIndex < 0 || choiceIndex >= len(q.Choices) {
		return
	}
	q.SelectedChoice = domain.Index(choiceIndex)
	c.UpdateQuestion(testID, sectionIndex, questionIndex, q)
}

// EliminateChoice toggles a choice elimination on the current test.
func (c *Client) EliminateChoice(testID string, sectionIndex, questionIndex, choiceIndex int) {
	c.mu.Lock()
	test, ok := c.sm.State.Tests[testID]
	if !ok || sectionIndex < 0 || sectionIndex >= len(test.Sections) {
		c.mu.Unlock()
		return
	}
	questions := test.Sections[sectionIndex].Questions
	if questionIndex < 0 || questionIndex >= len(questions) {
		c.mu.Unlock()
		return
	}
	q := questions[questionIndex]
	c.mu.Unlock()

	updated, err := domain.ToggleEliminated(q, choiceIndex)
	if err != nil {
		return
	}
	c.UpdateQuestion(testID, sectionIndex, questionIndex, updated)
}

// Navigate moves the shared navigation position.
func (c *Client) Navigate(section, question int) {
	c.originate(protocol.QuestionIndexEvent{
		Index: domain.NavPosition{Section: section, Question: question},
	})
}

// AddHighlight appends a highlight overlay.
func (c *Client) AddHighlight(h domain.Highlight) {
	c.originate(protocol.HighlightEvent{Highlight: h})
}

// SetSearch replaces the shared search term.
func (c *Client) SetSearch(term string) {
	c.originate(protocol.SearchEvent{Term: term})
}

// RenameTest renames a test through the generic patch channel.
func (c *Client) RenameTest(testID, name string) {
	c.originate(protocol.StateUpdateEvent{Op: protocol.OpSetName, TestID: testID, Name: name})
}

// UpdateSection replaces one section wholesale.
func (c *Client) UpdateSection(testID string, sectionIndex int, section domain.Section) {
	c.originate(protocol.StateUpdateEvent{
		Op:           protocol.OpSetSection,
		TestID:       testID,
		SectionIndex: sectionIndex,
		Section:      &section,
	})
}

// ReorderSections replaces the section list, as drag-reordering does.
func (c *Client) ReorderSections(testID string, sections []domain.Section) {
	c.originate(protocol.StateUpdateEvent{Op: protocol.OpSetSections, TestID: testID, Sections: sections})
}

// SubmitTest grades the active test everywhere.
func (c *Client) SubmitTest(testID string) {
	c.originate(protocol.SubmitTestEvent{TestID: testID})
}

// ResetTest clears progress on a test everywhere.
func (c *Client) ResetTest(testID string) {
	c.originate(protocol.ResetTestEvent{TestID: testID})
}

// BroadcastState pushes the host's full state down the channel, reconciling
// every follower regardless of what they missed.
func (c *Client) BroadcastState() {
	c.mu.Lock()
	snapshot := c.sm.Snapshot()
	c.mu.Unlock()
	c.originate(snapshot)
}

// CreateTest makes a new test locally and opens it for editing.
func (c *Client) CreateTest(name string, typ domain.TestType) string {
	test := domain.NewTest(name, typ)
	c.mu.Lock()
	c.sm.State.Tests[test.ID] = test
	c.mu.Unlock()
	c.EnterEditView(test.ID)
	return test.ID
}

// EnterEditView opens a test for editing, healing any empty section so the
// editor always has at least one question to show.
func (c *Client) EnterEditView(testID string) {
	c.mu.Lock()
	if test, ok := c.sm.State.Tests[testID]; ok {
		c.sm.State.Tests[testID] = domain.NormalizeSections(test)
	}
	c.teardownDone = false
	c.mu.Unlock()
	id := testID
	c.originate(protocol.ViewEvent{View: domain.ViewEdit, TestID: &id})
}

// EnterDisplayView opens a test for taking.
func (c *Client) EnterDisplayView(testID string) {
	c.mu.Lock()
	c.teardownDone = false
	c.mu.Unlock()
	id := testID
	c.originate(protocol.ViewEvent{View: domain.ViewDisplay, TestID: &id})
}

// ExitTestView leaves the test-taking view: progress on the active test is
// reset everywhere, at most once per view entry even if teardown fires
// twice, and every client returns home.
func (c *Client) ExitTestView() {
	c.mu.Lock()
	if c.teardownDone {
		c.mu.Unlock()
		return
	}
	c.teardownDone = true
	activeID := c.sm.State.ActiveTestID
	c.mu.Unlock()

	if activeID != nil {
		c.ResetTest(*activeID)
	}
	c.originate(protocol.ViewEvent{View: domain.ViewHome})
}

// LoadLibrary seeds the local tests mapping from the relay's durable library.
func (c *Client) LoadLibrary(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tests", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("load library: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("load library: unexpected status %d", resp.StatusCode)
	}
	var tests []domain.Test
	if err := json.NewDecoder(resp.Body).Decode(&tests); err != nil {
		return fmt.Errorf("load library: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, test := range tests {
		c.sm.State.Tests[test.ID] = test
	}
	return nil
}

// SaveTest persists one test to the relay's durable library.
func (c *Client) SaveTest(ctx context.Context, testID string) error {
	c.mu.Lock()
	test, ok := c.sm.State.Tests[testID]
	c.mu.Unlock()
	if !ok {
		return domain.ErrTestNotFound
	}

	body, err := json.Marshal(test)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/tests/"+url.PathEscape(testID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("save test: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("save test: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// State returns a copy of the replica's application state.
func (c *Client) State() domain.AppState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := domain.CloneState(c.sm.State)
	if c.sm.State.SessionInfo != nil {
		info := *c.sm.State.SessionInfo
		out.SessionInfo = &info
	}
	return out
}

// NavPosition returns the current navigation position.
func (c *Client) NavPosition() domain.NavPosition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sm.NavPosition
}

// Overlays returns a copy of the current overlays.
func (c *Client) Overlays() Overlays {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Overlays{
		Highlights: append([]domain.Highlight(nil), c.sm.Overlays.Highlights...),
		Search:     c.sm.Overlays.Search,
	}
}

// Status returns the channel status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sm.Status
}

// Role returns the client's session role.
func (c *Client) Role() domain.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sm.Role
}
