package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/corpora-app/corpora/internal/core"
	"github.com/corpora-app/corpora/pkg/logging"
)

var log = logging.NewLogger("http")

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Error("response encode failed", "err", err)
		}
	}
}

// writeError maps the service error taxonomy onto HTTP status codes.
// Anything unrecognized is a 500 with the detail kept out of the body.
func writeError(w http.ResponseWriter, err error) {
	var (
		validation *core.ValidationError
		notFound   *core.NotFoundError
		denied     *core.AccessDeniedError
		conflict   *core.ConflictError
		extraction *core.ExtractionError
		embedding  *core.EmbeddingError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: validation.Error()})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: notFound.Error()})
	case errors.As(err, &denied):
		writeJSON(w, http.StatusForbidden, errorBody{Error: denied.Error()})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: conflict.Error()})
	case errors.As(err, &extraction):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: extraction.Error()})
	case errors.As(err, &embedding):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "embedding provider error"})
	default:
		log.Error("internal error", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}
