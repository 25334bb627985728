// Package server exposes the task workflow over HTTP as a small JSON API.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/planora/planora/internal/log"
	"github.com/planora/planora/internal/store"
	"github.com/planora/planora/internal/todo"
)

// Server is the HTTP front of the application.
type Server struct {
	svc    *todo.Service
	logger log.Logger
}

// New builds the server around the task workflow service.
func New(svc *todo.Service, logger log.Logger) *Server {
	if logger == nil {
		logger = log.Noop
	}
	return &Server{svc: svc, logger: logger.WithValues(log.Kv{"svc": "server"})}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/todos", s.handleCreateTodo)
	mux.HandleFunc("GET /api/todos", s.handleListTodos)
	mux.HandleFunc("GET /api/todos/{id}", s.handleGetTodo)
	mux.HandleFunc("PATCH /api/todos/{id}", s.handleUpdateTodo)
	mux.HandleFunc("DELETE /api/todos/{id}", s.handleDeleteTodo)
	mux.HandleFunc("GET /api/todos/{id}/subtasks", s.handleListSubtasks)

	mux.HandleFunc("POST /api/plan/optimal-time", s.handleOptimalTime)

	mux.HandleFunc("POST /api/reminders", s.handleCreateReminder)
	mux.HandleFunc("GET /api/reminders", s.handleListReminders)
	mux.HandleFunc("PATCH /api/reminders/{id}", s.handleUpdateReminder)
	mux.HandleFunc("DELETE /api/reminders/{id}", s.handleDeleteReminder)
	mux.HandleFunc("DELETE /api/reminders", s.handleDeleteAllReminders)

	return s.logRequests(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var in todo.CreateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	task, err := s.svc.CreateTask(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.ListTasks(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleGetTodo(w http.ResponseWriter, r *http.Request) {
	task, err := s.svc.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// timeWindow is a full replacement for a task's schedule. Null members clear.
type timeWindow struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body struct {
		Text   *string     `json:"text"`
		Toggle bool        `json:"toggle"`
		Times  *timeWindow `json:"times"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	ctx := r.Context()
	if body.Text != nil {
		if err := s.svc.UpdateTaskText(ctx, id, *body.Text); err != nil {
			s.writeServiceError(w, err)
			return
		}
	}
	if body.Times != nil {
		if err := s.svc.UpdateTaskTimes(ctx, id, body.Times.StartTime, body.Times.EndTime); err != nil {
			s.writeServiceError(w, err)
			return
		}
	}
	if body.Toggle {
		if err := s.svc.ToggleTask(ctx, id); err != nil {
			s.writeServiceError(w, err)
			return
		}
	}

	task, err := s.svc.GetTask(ctx, id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListSubtasks(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.svc.GetTask(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	subs, err := s.svc.Subtasks(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleOptimalTime(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text            string    `json:"text"`
		DurationMinutes int       `json:"duration_minutes"`
		Note            string    `json:"note"`
		TargetDate      time.Time `json:"target_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if body.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if body.DurationMinutes <= 0 {
		writeError(w, http.StatusBadRequest, "duration_minutes must be positive")
		return
	}

	// The scheduling engine never errors; a null interval means no slot was
	// found and the client falls back to manual scheduling.
	interval := s.svc.DetermineOptimalTime(r.Context(), body.Text, body.DurationMinutes, body.Note, body.TargetDate)
	writeJSON(w, http.StatusOK, map[string]any{"interval": interval})
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	reminder, err := s.svc.AddReminder(r.Context(), body.Text)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reminder)
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := s.svc.ListReminders(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reminders)
}

func (s *Server) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Completed bool `json:"completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if err := s.svc.ToggleReminder(r.Context(), r.PathValue("id"), body.Completed); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteReminder(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleDeleteAllReminders(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteAllReminders(r.Context()); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// writeServiceError maps workflow errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, todo.ErrEmptyText):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Errorf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusRecorder captures the response code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debugf("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
