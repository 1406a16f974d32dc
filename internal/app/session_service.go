package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lsat-session-service/internal/domain"
	"lsat-session-service/internal/protocol"
)

// SessionRepository abstracts how live sessions are tracked (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Insert(session *Session)
	Get(sessionID string) (*Session, bool)
	Remove(sessionID string)
	Snapshot() []*Session
}

// SessionCredentials are returned to the host on session creation.
type SessionCredentials struct {
	SessionID string
	HostToken string
}

// JoinResult is returned to a participant: a fresh token plus the full state
// at the moment of joining, so the replica starts no older than the join.
type JoinResult struct {
	ParticipantToken string
	Snapshot         protocol.StateEvent
}

// SessionService owns the collaborative session lifecycle: creation, join,
// leave, event relay, and expiry sweeping.
type SessionService struct {
	sessions    SessionRepository
	log         *zap.Logger
	maxAge      time.Duration
	idleTimeout time.Duration
	newID       func() string
}

func NewSessionService(sessions SessionRepository, log *zap.Logger, maxAge, idleTimeout time.Duration) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionService{
		sessions:    sessions,
		log:         log,
		maxAge:      maxAge,
		idleTimeout: idleTimeout,
		newID:       func() string { return uuid.NewString() },
	}
}

// Create registers a new session seeded with the caller's application state
// and returns host credentials.
func (s *SessionService) Create(_ context.Context, state domain.AppState) SessionCredentials {
	creds := SessionCredentials{
		SessionID: s.newID(),
		HostToken: s.newID(),
	}
	s.sessions.Insert(NewSession(creds.SessionID, creds.HostToken, state))
	s.log.Info("session created", zap.String("session_id", creds.SessionID))
	return creds
}

// Join issues a participant token and returns the current full state.
func (s *SessionService) Join(_ context.Context, sessionID string) (JoinResult, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return JoinResult{}, err
	}
	token := s.newID()
	session.AddParticipant(token)
	s.log.Info("participant joined", zap.String("session_id", sessionID))
	return JoinResult{ParticipantToken: token, Snapshot: session.Snapshot()}, nil
}

// Leave drops a participant token and removes the session once nothing
// references it. Leaving twice, or leaving an already-removed session, is
// not an error worth failing a client over; the handler maps
// ErrSessionNotFound to a 404 the client treats as success.
func (s *SessionService) Leave(_ context.Context, sessionID, token string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.RemoveParticipant(token)
	if session.IsEmpty() {
		s.sessions.Remove(sessionID)
		s.log.Info("session removed", zap.String("session_id", sessionID))
	}
	return nil
}

// Attach validates the token and registers an outbound channel for a
// websocket connection. The returned snapshot must be delivered as the first
// frame; every connect therefore begins with a full-state reconciliation.
func (s *SessionService) Attach(sessionID, token string) (protocol.StateEvent, <-chan []byte, func(), error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return protocol.StateEvent{}, nil, nil, err
	}
	if !session.Authorized(token) {
		return protocol.StateEvent{}, nil, nil, domain.ErrInvalidToken
	}
	ch, cancel := session.Attach(token)
	return session.Snapshot(), ch, cancel, nil
}

// Detach mirrors the original teardown: the connection's token stops being a
// participant once its channel closes, and empty sessions are dropped.
func (s *SessionService) Detach(sessionID, token string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.RemoveParticipant(token)
	if session.IsEmpty() {
		s.sessions.Remove(sessionID)
	}
}

// Handle relays one raw inbound frame: malformed or unknown frames are
// dropped without closing the channel, everything else mutates the relay
// state and fans out to all attached clients.
func (s *SessionService) Handle(sessionID string, frame []byte) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	ev, err := protocol.Decode(frame)
	if err != nil {
		s.log.Warn("dropping bad frame", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	session.Apply(ev, frame)
}

// Sweep removes expired sessions and closes their channels.
func (s *SessionService) Sweep() {
	for _, session := range s.sessions.Snapshot() {
		if session.Expired(s.maxAge, s.idleTimeout) {
			s.sessions.Remove(session.ID())
			session.CloseAll()
			s.log.Info("session expired", zap.String("session_id", session.ID()))
		}
	}
}

// StartCleanup runs the expiry sweep on an interval until ctx is canceled.
func (s *SessionService) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *SessionService) lookup(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if session.Expired(s.maxAge, s.idleTimeout) {
		s.sessions.Remove(sessionID)
		session.CloseAll()
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}
