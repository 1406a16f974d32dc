package http_test

import (
	"bytes"
	"encoding/json"
	nethttp "net/http"
	"strings"
	"testing"

	"lsat-session-service/internal/domain"
)

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	sessionID, hostToken := createSession(t, srv, demoState())
	if sessionID == "" || hostToken == "" {
		t.Fatalf("missing credentials")
	}

	resp, err := nethttp.Post(srv.URL+"/sessions/"+sessionID+"/join", "application/json", nil)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("join status %d", resp.StatusCode)
	}
	var join struct {
		ParticipantToken string             `json:"participant_token"`
		SessionID        string             `json:"session_id"`
		State            domain.AppState    `json:"state"`
		Highlights       []domain.Highlight `json:"highlights"`
		View             domain.ViewMode    `json:"view"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&join); err != nil {
		t.Fatalf("decode join: %v", err)
	}
	if join.SessionID != sessionID || join.ParticipantToken == "" {
		t.Fatalf("unexpected join response: %+v", join)
	}
	if _, ok := join.State.Tests["t1"]; !ok {
		t.Fatalf("join response missing host tests")
	}
	if join.State.SessionInfo != nil {
		t.Fatalf("join response leaked host session info")
	}

	leaveBody, _ := json.Marshal(map[string]string{
		"session_id": sessionID,
		"token":      join.ParticipantToken,
	})
	resp, err = nethttp.Post(srv.URL+"/sessions/leave", "application/json", bytes.NewReader(leaveBody))
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != nethttp.StatusNoContent {
		t.Fatalf("leave status %d", resp.StatusCode)
	}

	// The session was removed once empty; a second leave is a 404.
	resp, err = nethttp.Post(srv.URL+"/sessions/leave", "application/json", bytes.NewReader(leaveBody))
	if err != nil {
		t.Fatalf("second leave: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != nethttp.StatusNotFound {
		t.Fatalf("expected 404 for removed session, got %d", resp.StatusCode)
	}
}

func TestJoinUnknownSessionReturns404(t *testing.T) {
	srv := newTestServer(t)
	resp, err := nethttp.Post(srv.URL+"/sessions/missing/join", "application/json", nil)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != nethttp.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCreateSessionRejectsBadBody(t *testing.T) {
	srv := newTestServer(t)
	resp, err := nethttp.Post(srv.URL+"/sessions", "application/json", strings.NewReader("{bad"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != nethttp.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := nethttp.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
