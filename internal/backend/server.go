// ABOUTME: HTTP server implementing the widget's config and chat endpoints for development
// ABOUTME: Routes with chi, answers duplicate Idempotency-Key turns from the dedupe cache

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/2389/coven-widget/internal/dedupe"
)

// maxUploadBytes bounds multipart bodies. The widget itself rejects files
// over 10 MiB, so this leaves room for the form fields.
const maxUploadBytes = 12 << 20

// Options configures a Server.
type Options struct {
	Tenants        *Tenants
	Replier        Replier
	Dedupe         *dedupe.Cache // nil disables idempotency handling
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server is the development backend.
type Server struct {
	tenants *Tenants
	replier Replier
	dedupe  *dedupe.Cache
	logger  *slog.Logger
	router  chi.Router
}

// New creates a Server. A nil Replier echoes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	replier := opts.Replier
	if replier == nil {
		replier = EchoReplier{}
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		tenants: opts.Tenants,
		replier: replier,
		dedupe:  opts.Dedupe,
		logger:  logger.With("component", "backend"),
	}
	s.router = s.buildRouter(origins)
	return s
}

func (s *Server) buildRouter(origins []string) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Cache-Control", "Pragma", "Idempotency-Key"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/widget/config", s.handleConfig)
		r.Post("/gemini-chat", s.handleChat)
	})

	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	logger := s.logger.With("tenant_key", key)

	if s.tenants == nil {
		writeError(w, http.StatusNotFound, "no tenants configured")
		return
	}

	doc, err := s.tenants.Document(key)
	switch {
	case errors.Is(err, ErrInvalidKey):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrUnknownTenant):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		logger.Error("loading tenant document", "error", err)
		writeError(w, http.StatusInternalServerError, "tenant document unavailable")
		return
	}

	logger.Debug("served tenant config", "bust", r.URL.Query().Get("_t") != "")
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, doc)
}

type chatRequest struct {
	Message   string `json:"message"`
	PublicKey string `json:"public_key"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	turn, err := readTurn(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(turn.Message) == "" && turn.Upload == nil {
		writeError(w, http.StatusBadRequest, "message or file is required")
		return
	}

	logger := s.logger.With("tenant_key", turn.TenantKey)
	idemKey := r.Header.Get("Idempotency-Key")

	if s.dedupe != nil && idemKey != "" {
		switch reply, state := s.dedupe.Claim(idemKey); state {
		case dedupe.Answered:
			logger.Debug("answering duplicate turn from cache", "idempotency_key", idemKey)
			writeJSON(w, http.StatusOK, map[string]string{"content": reply})
			return
		case dedupe.InFlight:
			writeError(w, http.StatusConflict, "turn already in progress")
			return
		}
	}

	reply, err := s.replier.Reply(r.Context(), turn)
	if err != nil {
		if s.dedupe != nil && idemKey != "" {
			s.dedupe.Release(idemKey)
		}
		logger.Error("generating reply", "error", err)
		writeError(w, http.StatusBadGateway, "reply unavailable")
		return
	}

	if s.dedupe != nil && idemKey != "" {
		s.dedupe.Complete(idemKey, reply)
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": reply})
}

// readTurn accepts either a JSON body or a multipart form with a file part.
func readTurn(w http.ResponseWriter, r *http.Request) (Turn, error) {
	ct := r.Header.Get("Content-Type")

	if strings.HasPrefix(ct, "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return Turn{}, fmt.Errorf("parsing multipart form: %w", err)
		}
		turn := Turn{
			TenantKey: r.FormValue("public_key"),
			Message:   r.FormValue("message"),
		}
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()
			mimeType := header.Header.Get("Content-Type")
			if mimeType == "" {
				mimeType = "application/octet-stream"
			}
			turn.Upload = &Upload{Name: header.Filename, MimeType: mimeType, Size: header.Size}
		} else if !errors.Is(err, http.ErrMissingFile) {
			return Turn{}, fmt.Errorf("reading file part: %w", err)
		}
		return turn, nil
	}

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		return Turn{}, fmt.Errorf("decoding request: %w", err)
	}
	return Turn{TenantKey: req.PublicKey, Message: req.Message}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
