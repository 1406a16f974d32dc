package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lsat-session-service/internal/domain"
	"lsat-session-service/internal/protocol"
)

// Client drives one side of a collaborative session. It owns the websocket
// connection exclusively; every mutation is applied to the local replica
// first and then, while a session is active, emitted on the channel without
// waiting for acknowledgment. Outside a session mutations stay local.
type Client struct {
	baseURL string
	httpc   *http.Client
	dialer  *websocket.Dialer
	log     *zap.Logger
	cache   *FileCache

	mu           sync.Mutex
	sm           *StateMachine
	conn         *websocket.Conn
	cachedTests  domain.Tests
	pendingEcho  [][]byte
	teardownDone bool
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithFileCache persists the pre-join tests snapshot to disk so a participant
// restarted mid-session still has something to fall back to.
func WithFileCache(path string) Option {
	return func(c *Client) { c.cache = NewFileCache(path) }
}

// New builds a client seeded with the given local application state.
// baseURL is the http(s) origin of the relay, e.g. "http://127.0.0.1:8080".
func New(baseURL string, state domain.AppState, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 15 * time.Second},
		dialer:  websocket.DefaultDialer,
		log:     zap.NewNop(),
		sm:      NewStateMachine(state),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	HostToken string `json:"host_token"`
}

type joinSessionResponse struct {
	ParticipantToken string             `json:"participant_token"`
	SessionID        string             `json:"session_id"`
	State            domain.AppState    `json:"state"`
	Highlights       []domain.Highlight `json:"highlights"`
	Search           string             `json:"search"`
	View             domain.ViewMode    `json:"view"`
	QuestionIndex    domain.NavPosition `json:"question_index"`
}

// CreateSession registers a session seeded with this client's state and
// makes the client its host.
func (c *Client) CreateSession(ctx context.Context) error {
	c.mu.Lock()
	body, err := json.Marshal(c.sm.State)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	var resp createSessionResponse
	if err := c.postJSON(ctx, "/sessions", body, &resp); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sm.Role = domain.RoleTutor
	c.sm.State.SessionInfo = &domain.CollaborativeSession{
		SessionID:    resp.SessionID,
		Token:        resp.HostToken,
		Role:         domain.RoleTutor,
		LastSynced:   time.Now().UnixMilli(),
		SharedTestID: derefOr(c.sm.State.ActiveTestID, ""),
	}
	return nil
}

// JoinSession captures the local tests as the fallback snapshot, then adopts
// the session's current state wholesale. The replica starts no older than
// the join response; the channel delivers everything after that.
func (c *Client) JoinSession(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	c.cachedTests = domain.CloneState(c.sm.State).Tests
	c.mu.Unlock()
	if c.cache != nil {
		if err := c.cache.Save(c.cachedTests); err != nil {
			c.log.Warn("saving local tests cache failed", zap.Error(err))
		}
	}

	var resp joinSessionResponse
	if err := c.postJSON(ctx, "/sessions/"+url.PathEscape(sessionID)+"/join", []byte("{}"), &resp); err != nil {
		return fmt.Errorf("join session: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sm.Role = domain.RoleStudent
	c.sm.Apply(protocol.StateEvent{
		State:         resp.State,
		Highlights:    resp.Highlights,
		Search:        resp.Search,
		View:          resp.View,
		QuestionIndex: resp.QuestionIndex,
	})
	c.sm.State.SessionInfo = &domain.CollaborativeSession{
		SessionID:    resp.SessionID,
		Token:        resp.ParticipantToken,
		Role:         domain.RoleStudent,
		LastSynced:   time.Now().UnixMilli(),
		SharedTestID: derefOr(c.sm.State.ActiveTestID, ""),
	}
	return nil
}

// AutoJoin joins when the URL carries a session query parameter. It reports
// whether a join was attempted.
func (c *Client) AutoJoin(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, err
	}
	sessionID := u.Query().Get("session")
	if sessionID == "" {
		return false, nil
	}
	return true, c.JoinSession(ctx, sessionID)
}

// Connect opens the event channel. The relay's first frame is always a full
// state snapshot; Connect applies it before returning, so after every
// connect (first or re-) the replica is reconciled, never left to catch up
// from incremental events alone.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	info := c.sm.State.SessionInfo
	if info == nil {
		c.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	c.sm.Status = StatusConnecting
	sessionID, token := info.SessionID, info.Token
	c.mu.Unlock()

	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") +
		"/ws/" + url.PathEscape(sessionID) + "?token=" + url.QueryEscape(token)
	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		c.mu.Lock()
		c.sm.Status = StatusDisconnected
		c.mu.Unlock()
		return fmt.Errorf("dial session channel: %w", err)
	}

	_, frame, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		c.mu.Lock()
		c.sm.Status = StatusDisconnected
		c.mu.Unlock()
		return fmt.Errorf("read initial snapshot: %w", err)
	}
	ev, err := protocol.Decode(frame)
	if err != nil {
		conn.Close()
		c.mu.Lock()
		c.sm.Status = StatusDisconnected
		c.mu.Unlock()
		return fmt.Errorf("decode initial snapshot: %w", err)
	}

	c.mu.Lock()
	c.sm.Apply(ev)
	c.markSyncedLocked()
	c.sm.Status = StatusConnected
	c.conn = conn
	c.pendingEcho = nil
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// readLoop is the only reader of the connection. It never mutates the
// replica directly off the wire: frames are decoded and applied under the
// state lock, one at a time, in arrival order.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn)
			return
		}

		c.mu.Lock()
		if c.dropEchoLocked(frame) {
			c.mu.Unlock()
			continue
		}
		ev, err := protocol.Decode(frame)
		if err != nil {
			// Malformed frames are dropped; the channel stays open.
			c.log.Warn("dropping bad frame", zap.Error(err))
			c.mu.Unlock()
			continue
		}
		c.sm.Apply(ev)
		c.markSyncedLocked()
		c.mu.Unlock()
	}
}

// dropEchoLocked filters the relay's echo of this client's own frames. The
// originator already applied the mutation optimistically; applying the echo
// would double non-idempotent effects such as highlight appends.
func (c *Client) dropEchoLocked(frame []byte) bool {
	for i, pending := range c.pendingEcho {
		if bytes.Equal(pending, frame) {
			c.pendingEcho = append(c.pendingEcho[:i], c.pendingEcho[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Client) handleDisconnect(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	c.conn = nil
	c.sm.Status = StatusDisconnected
	c.restoreCachedLocked()
}

// restoreCachedLocked returns a participant to its pre-join document; the
// host is the source of truth and keeps its in-memory state.
func (c *Client) restoreCachedLocked() {
	if c.sm.Role != domain.RoleStudent {
		return
	}
	tests := c.cachedTests
	if tests == nil && c.cache != nil {
		if loaded, err := c.cache.Load(); err == nil {
			tests = loaded
		}
	}
	if tests == nil {
		return
	}
	restored := make(domain.Tests, len(tests))
	for id, t := range tests {
		restored[id] = domain.CloneTest(t)
	}
	c.sm.State.Tests = restored
}

// Disconnect closes the channel without ending the session server-side.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.sm.Status = StatusDisconnected
	c.restoreCachedLocked()
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// EndSession leaves (or, for the host, ends) the session. Ending a session
// that is already gone is not a fatal client error.
func (c *Client) EndSession(ctx context.Context) error {
	c.mu.Lock()
	info := c.sm.State.SessionInfo
	c.mu.Unlock()
	if info == nil {
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"session_id": info.SessionID,
		"token":      info.Token,
	})
	if err != nil {
		return err
	}
	if err := c.postJSON(ctx, "/sessions/leave", body, nil); err != nil {
		// The session may already be gone; that is the outcome we wanted.
		c.log.Debug("leave session", zap.Error(err))
	}

	c.Disconnect()
	c.mu.Lock()
	c.sm.State.SessionInfo = nil
	c.mu.Unlock()
	return nil
}

func (c *Client) markSyncedLocked() {
	if c.sm.State.SessionInfo != nil {
		c.sm.State.SessionInfo.LastSynced = time.Now().UnixMilli()
	}
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrSessionNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func derefOr(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}
