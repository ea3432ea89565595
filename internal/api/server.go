// Package api serves the article record store over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"BlogEnricher/internal/domain"
	"BlogEnricher/internal/metrics"
	"BlogEnricher/internal/ports"
)

// Server exposes CRUD routes over a ports.ArticleStore.
type Server struct {
	store ports.ArticleStore
	log   *slog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

// New builds the server; use Handler to mount it.
func New(store ports.ArticleStore, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{store: store, log: log}
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/articles", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleGet)
		r.Put("/{id}", s.handleUpdate)
		r.Delete("/{id}", s.handleDelete)
	})
	return r
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api server starting", slog.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "BlogEnricher API is running"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	articles, err := s.store.ListArticles(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	article, err := s.store.GetArticle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var patch domain.ArticlePatch
	if err := decode(w, r, &patch); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}

	// Missing fields default to empty values.
	article := patch.Apply(domain.Article{Citations: []string{}})
	article.Enriched = false

	created, err := s.store.CreateArticle(r.Context(), article)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch domain.ArticlePatch
	if err := decode(w, r, &patch); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}

	updated, err := s.store.UpdateArticle(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteArticle(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// fail maps domain.ErrNotFound to 404 and everything else to status.
func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
		return
	}
	s.log.Warn("request failed", "status", status, "error", err)
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// decode reads a JSON body; an empty body decodes to the zero value.
func decode(w http.ResponseWriter, r *http.Request, out any) error {
	defer r.Body.Close()
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 10<<20)).Decode(out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
