// ABOUTME: HTTP server for previewing the widget in a browser
// ABOUTME: Serves the page, pushes markup over websocket and forwards clicks to the runtime

package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/2389/coven-widget/internal/eventbus"
	"github.com/2389/coven-widget/internal/input"
)

// maxUploadBytes bounds browser uploads. Files between this and the widget's
// own limit still reach the runtime so the visitor sees the size notice.
const maxUploadBytes = 4 * input.MaxAttachmentBytes

// Controller is the runtime surface the preview page drives.
type Controller interface {
	Open()
	Close()
	Toggle()
	Back() bool
	EnterConversation() bool
	SendMessage(text string) bool
	SelectOption(optionID string) bool
	ToggleMute() bool
	StartVoice() bool
	StageAttachment(name, mimeType string, data []byte) error
	ClearAttachment()
	DismissNotice()
	TenantKey() string
	APIBase() string
}

// Options configures a Server.
type Options struct {
	Controller     Controller
	Host           *Host
	Hub            *Hub
	Bus            *eventbus.Bus
	AllowedOrigins []string
	Title          string
	Logger         *slog.Logger
}

// Server serves the preview page and its API.
type Server struct {
	ctrl     Controller
	host     *Host
	hub      *Hub
	bus      *eventbus.Bus
	title    string
	page     *template.Template
	upgrader websocket.Upgrader
	logger   *slog.Logger
	router   chi.Router
}

type pageData struct {
	Title     string
	TenantKey string
	APIBase   string
	Widget    template.HTML
}

// New creates a Server. Controller, Host, Hub and Bus are required.
func New(opts Options) (*Server, error) {
	if opts.Controller == nil || opts.Host == nil || opts.Hub == nil || opts.Bus == nil {
		return nil, errors.New("preview: controller, host, hub and bus are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	title := opts.Title
	if title == "" {
		title = "Coven widget preview"
	}

	page, err := template.ParseFS(templateFS, "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("parsing page template: %w", err)
	}

	origins := opts.AllowedOrigins
	s := &Server{
		ctrl:   opts.Controller,
		host:   opts.Host,
		hub:    opts.Hub,
		bus:    opts.Bus,
		title:  title,
		page:   page,
		logger: logger.With("component", "preview"),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return originAllowed(origins, r) },
	}
	s.router = s.buildRouter(origins)
	return s, nil
}

func (s *Server) buildRouter(origins []string) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/", s.handlePage)
	r.Get("/widget", s.handleWidget)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Post("/open", s.action(func() { s.ctrl.Open() }))
		r.Post("/close", s.action(func() { s.ctrl.Close() }))
		r.Post("/toggle", s.action(func() { s.ctrl.Toggle() }))
		r.Post("/back", s.action(func() { s.ctrl.Back() }))
		r.Post("/shortcut", s.action(func() { s.ctrl.EnterConversation() }))
		r.Post("/mute", s.action(func() { s.ctrl.ToggleMute() }))
		r.Post("/voice", s.action(func() { s.ctrl.StartVoice() }))
		r.Post("/send", s.handleSend)
		r.Post("/option", s.handleOption)
		r.Post("/attach", s.handleAttach)
		r.Post("/detach", s.action(func() { s.ctrl.ClearAttachment() }))
		r.Post("/dismiss", s.action(func() { s.ctrl.DismissNotice() }))
		r.Post("/signal", s.action(func() { s.publish(eventbus.Event{Name: eventbus.ConfigUpdated}) }))
		r.Post("/exit-intent", s.action(func() { s.publish(eventbus.Event{Name: eventbus.ExitIntent}) }))
		r.Post("/visibility", s.handleVisibility)
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

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title:     s.title,
		TenantKey: s.ctrl.TenantKey(),
		APIBase:   s.ctrl.APIBase(),
		// Produced by render.HTML, which escapes all tenant and user text.
		Widget: template.HTML(s.host.HTML()),
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		s.logger.Error("rendering page", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	markup := s.host.HTML()
	if markup == "" {
		http.Error(w, "widget not mounted", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, markup)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.hub.serve(conn, s.host.frame)
}

type sendRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": s.ctrl.SendMessage(req.Text)})
}

type optionRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleOption(w http.ResponseWriter, r *http.Request) {
	var req optionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "option id is required"})
		return
	}
	if !s.ctrl.SelectOption(req.ID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown option"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reading file"})
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = input.DetectMIME(header.Filename, data)
	}

	// Oversize and unreadable files are reported to the visitor as a notice.
	if err := s.ctrl.StageAttachment(header.Filename, mimeType, data); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	s.publish(eventbus.Event{Name: eventbus.VisibilityChange, Visible: req.Visible})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) action(fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn()
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func (s *Server) publish(ev eventbus.Event) {
	ev.At = time.Now()
	s.logger.Debug("publishing host event", "event", ev.Name)
	s.bus.Publish(ev)
}

// originAllowed accepts same-origin requests and any configured origin.
// Origins ending in ":*" match any port.
func originAllowed(allowed []string, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
		if len(a) > 2 && a[len(a)-2:] == ":*" {
			prefix := a[:len(a)-1]
			if len(origin) > len(prefix) && origin[:len(prefix)] == prefix {
				return true
			}
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
