package http

import "net/http"

// NewRouter assembles the HTTP surface: session lifecycle, the websocket
// relay, the test library, and a health probe.
func NewRouter(sessions *SessionHandler, ws *WSHandler, library *LibraryHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", sessions.Create)
	mux.HandleFunc("POST /sessions/{id}/join", sessions.Join)
	mux.HandleFunc("POST /sessions/leave", sessions.Leave)
	mux.HandleFunc("POST /sessions/{id}/leave", sessions.Leave)
	mux.HandleFunc("GET /ws/{id}", ws.ServeWS)
	if library != nil {
		mux.HandleFunc("GET /tests", library.List)
		mux.HandleFunc("GET /tests/{id}", library.Get)
		mux.HandleFunc("PUT /tests/{id}", library.Put)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return mux
}
