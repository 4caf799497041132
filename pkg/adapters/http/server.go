// Package http exposes supervised instances over a REST surface.
package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arborlabs/arbor/internal/logging"
	"github.com/arborlabs/arbor/internal/presentation/graph"
	"github.com/arborlabs/arbor/pkg/domain"
	"github.com/arborlabs/arbor/pkg/supervise"
)

// Server routes instance operations to a Supervisor.
type Server struct {
	super  *supervise.Supervisor
	logger *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewHandler builds the HTTP handler for a supervisor.
func NewHandler(super *supervise.Supervisor, opts ...Option) http.Handler {
	s := &Server{super: super, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Route("/instances", func(r chi.Router) {
		r.Get("/", s.listInstances)
		r.Post("/", s.spawnInstance)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getInstance)
			r.Delete("/", s.closeInstance)
			r.Post("/update", s.updateInstance)
			r.Post("/traps/{name}", s.sendTrap)
			r.Get("/render", s.renderInstance)
			r.Get("/graph", s.graphInstance)
		})
	})
	return r
}

type spawnRequest struct {
	ID         string `json:"id,omitempty"`
	Definition string `json:"definition"`
	Args       []any  `json:"args,omitempty"`
}

type instanceResponse struct {
	ID         string `json:"id"`
	Definition string `json:"definition"`
	State      string `json:"state"`
	Output     any    `json:"output,omitempty"`
}

type argsRequest struct {
	Args []any `json:"args,omitempty"`
}

// decodeArgs parses an optional args body; an empty body means no args.
func decodeArgs(r *http.Request) (argsRequest, error) {
	var body argsRequest
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil && !errors.Is(err, io.EOF) {
		return body, fmt.Errorf("invalid request body: %w", err)
	}
	return body, nil
}

func (s *Server) spawnInstance(w http.ResponseWriter, r *http.Request) {
	var body spawnRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if body.Definition == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("definition is required"))
		return
	}
	id := body.ID
	if id == "" {
		id = body.Definition + "-" + randomSuffix()
	}

	h, err := s.super.LoadOrSpawn(r.Context(), id, body.Definition, body.Args...)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	out, err := h.Render()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, instanceResponse{
		ID:         h.ID(),
		Definition: h.Definition(),
		State:      string(h.State()),
		Output:     out,
	})
}

func (s *Server) listInstances(w http.ResponseWriter, r *http.Request) {
	ids, err := s.super.List(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"instances": ids})
}

func (s *Server) getInstance(w http.ResponseWriter, r *http.Request) {
	h, err := s.super.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, instanceResponse{
		ID:         h.ID(),
		Definition: h.Definition(),
		State:      string(h.State()),
	})
}

func (s *Server) updateInstance(w http.ResponseWriter, r *http.Request) {
	body, err := decodeArgs(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.super.Update(r.Context(), id, body.Args...); err != nil {
		s.writeDomainError(w, err)
		return
	}

	out, err := s.super.Render(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"output": out})
}

func (s *Server) sendTrap(w http.ResponseWriter, r *http.Request) {
	body, err := decodeArgs(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	id := chi.URLParam(r, "id")
	trap := chi.URLParam(r, "name")
	result, err := s.super.Send(r.Context(), id, trap, body.Args...)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	// Deferred observers resolve before the response is written.
	if fut, ok := result.(*domain.Future); ok {
		result, err = fut.Await(r.Context())
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) renderInstance(w http.ResponseWriter, r *http.Request) {
	out, err := s.super.Render(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if fut, ok := out.(*domain.Future); ok {
		out, err = fut.Await(r.Context())
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"output": out})
}

func (s *Server) graphInstance(w http.ResponseWriter, r *http.Request) {
	h, err := s.super.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	info, err := h.Inspect()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "mermaid" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(graph.GenerateMermaid(info, nil)))
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) closeInstance(w http.ResponseWriter, r *http.Request) {
	if err := s.super.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeDomainError maps domain error taxonomy to HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInstanceNotFound),
		errors.Is(err, domain.ErrDefinitionNotFound),
		errors.Is(err, domain.ErrNoSuchTrap):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrInvalidState):
		s.writeError(w, http.StatusConflict, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	} else {
		s.logger.Warn("request rejected", "status", status, "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "err", err)
	}
}

func randomSuffix() string {
	var buf [6]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}
