package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/corpora-app/corpora/internal/api/handlers"
	appMiddleware "github.com/corpora-app/corpora/internal/api/middlewares"
	"github.com/corpora-app/corpora/internal/config"
	"github.com/corpora-app/corpora/internal/core"
	"github.com/corpora-app/corpora/internal/ingest"
	"github.com/corpora-app/corpora/internal/registry"
	"github.com/corpora-app/corpora/internal/search"
	"github.com/corpora-app/corpora/pkg/logging"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *logging.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, reg *registry.Service, blobs core.ObjectClient, ing ingest.Ingestor, searcher *search.Service) *Server {
	kbHandler := handlers.NewKnowledgeBaseHandler(reg)
	docHandler := handlers.NewDocumentHandler(reg, blobs, ing)
	searchHandler := handlers.NewSearchHandler(searcher)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware)

			protected.Post("/knowledge-bases", kbHandler.CreateKnowledgeBase)
			protected.Get("/knowledge-bases", kbHandler.ListKnowledgeBases)
			protected.Get("/knowledge-bases/{kb_id}", kbHandler.GetKnowledgeBase)
			protected.Delete("/knowledge-bases/{kb_id}", kbHandler.DeleteKnowledgeBase)

			protected.Post("/knowledge-bases/{kb_id}/documents/upload", docHandler.UploadDocument)
			protected.Post("/knowledge-bases/{kb_id}/documents/url", docHandler.SubmitURL)
			protected.Get("/knowledge-bases/{kb_id}/documents", docHandler.ListDocuments)
			protected.Get("/documents/{document_id}", docHandler.GetDocument)
			protected.Post("/documents/{document_id}/reprocess", docHandler.ReprocessDocument)
			protected.Delete("/documents/{document_id}", docHandler.DeleteDocument)

			protected.Post("/knowledge-bases/{kb_id}/search", searchHandler.Search)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, logger: logging.NewLogger("server")}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
