package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"lsat-session-service/internal/app"
	"lsat-session-service/internal/domain"
	"go.uber.org/zap"
)

// LibraryHandler exposes the durable test library so a host client can seed
// its tests mapping on startup and persist edits between sessions.
type LibraryHandler struct {
	library app.LibraryRepository
	log     *zap.Logger
}

func NewLibraryHandler(library app.LibraryRepository, log *zap.Logger) *LibraryHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LibraryHandler{library: library, log: log}
}

// List handles GET /tests.
func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	tests, err := h.library.ListTests(r.Context())
	if err != nil {
		h.log.Error("list tests", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list tests"})
		return
	}
	if tests == nil {
		tests = []domain.Test{}
	}
	writeJSON(w, http.StatusOK, tests)
}

// Get handles GET /tests/{id}.
func (h *LibraryHandler) Get(w http.ResponseWriter, r *http.Request) {
	test, err := h.library.GetTest(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrTestNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "test not found"})
			return
		}
		h.log.Error("get test", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load test"})
		return
	}
	writeJSON(w, http.StatusOK, test)
}

// Put handles PUT /tests/{id}. The path id wins over whatever the body says.
func (h *LibraryHandler) Put(w http.ResponseWriter, r *http.Request) {
	var test domain.Test
	if err := json.NewDecoder(r.Body).Decode(&test); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid test body"})
		return
	}
	test.ID = r.PathValue("id")
	if test.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing test id"})
		return
	}
	if err := h.library.PutTest(r.Context(), test); err != nil {
		h.log.Error("store test", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to store test"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
