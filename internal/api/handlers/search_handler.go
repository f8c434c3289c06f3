package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	middleware "github.com/corpora-app/corpora/internal/api/middlewares"
	"github.com/corpora-app/corpora/internal/search"
)

type SearchHandler struct {
	searcher *search.Service
}

func NewSearchHandler(searcher *search.Service) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// Search runs a similarity query against one knowledge base.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.KnowledgeBaseID = chi.URLParam(r, "kb_id")

	resp, err := h.searcher.Search(r.Context(), userID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
