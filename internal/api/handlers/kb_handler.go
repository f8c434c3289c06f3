package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	middleware "github.com/corpora-app/corpora/internal/api/middlewares"
	"github.com/corpora-app/corpora/internal/registry"
)

type KnowledgeBaseHandler struct {
	registry *registry.Service
}

func NewKnowledgeBaseHandler(reg *registry.Service) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{registry: reg}
}

// CreateKnowledgeBase registers a knowledge base with an immutable
// embedding and chunking configuration.
func (h *KnowledgeBaseHandler) CreateKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	var in registry.KnowledgeBaseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	in.UserID = userID

	kb, err := h.registry.CreateKnowledgeBase(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, kb)
}

func (h *KnowledgeBaseHandler) GetKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	kb, err := h.registry.GetKnowledgeBase(r.Context(), userID, chi.URLParam(r, "kb_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kb)
}

func (h *KnowledgeBaseHandler) ListKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	kbs, err := h.registry.ListKnowledgeBases(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kbs)
}

// DeleteKnowledgeBase cascades: documents, their chunks and their backing
// blobs all go.
func (h *KnowledgeBaseHandler) DeleteKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	if err := h.registry.DeleteKnowledgeBase(r.Context(), userID, chi.URLParam(r, "kb_id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
