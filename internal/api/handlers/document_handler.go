package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	middleware "github.com/corpora-app/corpora/internal/api/middlewares"
	"github.com/corpora-app/corpora/internal/core"
	"github.com/corpora-app/corpora/internal/extract"
	"github.com/corpora-app/corpora/internal/ingest"
	"github.com/corpora-app/corpora/internal/models"
	"github.com/corpora-app/corpora/internal/registry"
)

const maxUploadBytes = 52 << 20 // 52 MB

type DocumentHandler struct {
	registry *registry.Service
	blobs    core.ObjectClient
	ingestor ingest.Ingestor
}

func NewDocumentHandler(reg *registry.Service, blobs core.ObjectClient, ing ingest.Ingestor) *DocumentHandler {
	return &DocumentHandler{registry: reg, blobs: blobs, ingestor: ing}
}

type enqueueResponse struct {
	Document *models.Document `json:"document"`
	RunID    string           `json:"run_id"`
}

// UploadDocument stores the uploaded file in blob storage, registers the
// document as pending and schedules ingestion.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}
	kbID := chi.URLParam(r, "kb_id")
	if _, err := h.registry.GetKnowledgeBase(r.Context(), userID, kbID); err != nil {
		writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	cleanFilename := filepath.Base(header.Filename)
	fileType := strings.ToLower(strings.TrimPrefix(filepath.Ext(cleanFilename), "."))
	if !extract.IsSupportedFileType(fileType) {
		writeError(w, &core.ValidationError{
			Field:  "file",
			Reason: fmt.Sprintf("unsupported file type %q; supported types are %s", fileType, strings.Join(extract.SupportedFileTypes, ", ")),
		})
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = cleanFilename
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("%s/%s/%s", userID, uuid.NewString(), cleanFilename)

	uploadCtx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if err := h.blobs.Upload(uploadCtx, key, file, contentType); err != nil {
		writeError(w, fmt.Errorf("upload failed: %w", err))
		return
	}

	size := header.Size
	doc, err := h.registry.Create(uploadCtx, registry.CreateInput{
		KnowledgeBaseID: kbID,
		Name:            name,
		SourceType:      models.SourceFile,
		FilePath:        &key,
		FileType:        fileType,
		FileSize:        &size,
	})
	if err != nil {
		// the blob is orphaned otherwise
		_ = h.blobs.DeleteBlob(context.WithoutCancel(uploadCtx), key)
		writeError(w, err)
		return
	}

	runID, err := h.ingestor.Enqueue(doc.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, enqueueResponse{Document: doc, RunID: runID})
}

type submitURLRequest struct {
	Name      string `json:"name"`
	SourceURL string `json:"source_url"`
}

// SubmitURL registers a web page as a document and schedules ingestion.
// The content is fetched during processing, not here.
func (h *DocumentHandler) SubmitURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}
	kbID := chi.URLParam(r, "kb_id")
	if _, err := h.registry.GetKnowledgeBase(r.Context(), userID, kbID); err != nil {
		writeError(w, err)
		return
	}

	var req submitURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		req.Name = req.SourceURL
	}

	doc, err := h.registry.Create(r.Context(), registry.CreateInput{
		KnowledgeBaseID: kbID,
		Name:            req.Name,
		SourceType:      models.SourceURL,
		SourceURL:       &req.SourceURL,
		FileType:        "html",
	})
	if err != nil {
		writeError(w, err)
		return
	}

	runID, err := h.ingestor.Enqueue(doc.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, enqueueResponse{Document: doc, RunID: runID})
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}
	kbID := chi.URLParam(r, "kb_id")
	if _, err := h.registry.GetKnowledgeBase(r.Context(), userID, kbID); err != nil {
		writeError(w, err)
		return
	}

	docs, err := h.registry.List(r.Context(), kbID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ReprocessDocument resets a ready or failed document to pending and
// schedules a fresh ingestion run. Pending and processing documents
// conflict.
func (h *DocumentHandler) ReprocessDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}

	doc, err := h.registry.Reprocess(r.Context(), doc.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	runID, err := h.ingestor.Enqueue(doc.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, enqueueResponse{Document: doc, RunID: runID})
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}

	if err := h.registry.Delete(r.Context(), doc.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedDocument loads the document from the path and enforces that the
// caller owns its knowledge base. On failure the response is already
// written.
func (h *DocumentHandler) ownedDocument(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return nil, false
	}

	doc, err := h.registry.Get(r.Context(), chi.URLParam(r, "document_id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if _, err := h.registry.GetKnowledgeBase(r.Context(), userID, doc.KnowledgeBaseID); err != nil {
		writeError(w, err)
		return nil, false
	}
	return doc, true
}
