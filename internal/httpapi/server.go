// Package httpapi is the surface produced to the external UI layer: it
// accepts raw reminder text for registration and exposes listing, snooze,
// deletion, and health.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"remindd/internal/commands"
	"remindd/internal/dispatch"
	"remindd/internal/model"
	"remindd/internal/parse"
	"remindd/internal/storage"
)

type Server struct {
	parser *parse.Parser
	store  storage.Repository
	clk    clock.Clock
	loc    *time.Location
	log    *zap.Logger
	health *dispatch.Health
}

func New(parser *parse.Parser, store storage.Repository, clk clock.Clock, loc *time.Location, log *zap.Logger, health *dispatch.Health) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{parser: parser, store: store, clk: clk, loc: loc, log: log, health: health}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /reminders", s.handleCreate)
	mux.HandleFunc("GET /reminders", s.handleList)
	mux.HandleFunc("POST /reminders/{id}/snooze", s.handleSnooze)
	mux.HandleFunc("DELETE /reminders/{id}", s.handleDelete)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

type createRequest struct {
	OwnerID   string `json:"owner_id"`
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

type reminderResponse struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	TriggerAt string `json:"trigger_at"`
	Repeat    string `json:"repeat,omitempty"`
	Remaining string `json:"remaining"`
	Active    bool   `json:"active"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerID == "" || req.ChannelID == "" || req.Text == "" {
		httpError(w, http.StatusBadRequest, "owner_id, channel_id and text are required")
		return
	}

	// 一覧/リスト/確認 ask for the list instead of registering.
	if cmd, ok := commands.Recognize(req.Text); ok && cmd == commands.TypeList {
		s.writeOwnerList(w, r, req.OwnerID)
		return
	}

	parsed, err := s.parser.ParseReminderInput(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, parse.ErrUnresolved) {
			httpError(w, http.StatusUnprocessableEntity, "解析できませんでした。「明日18時に歯医者」のような形式でお試しください。")
			return
		}
		s.log.Error("parse failed", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := s.clk.Now().In(s.loc)
	rem := model.Reminder{
		ID:         uuid.NewString(),
		OwnerID:    req.OwnerID,
		ChannelID:  req.ChannelID,
		Message:    parsed.Message,
		TriggerAt:  parsed.TriggerAt,
		Recurrence: parsed.Recurrence,
		CreatedAt:  now,
		Active:     true,
	}
	if rem.Message == "" {
		rem.Message = parsed.RawText
	}
	if err := s.store.Insert(r.Context(), rem); err != nil {
		s.log.Error("insert failed", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to store reminder")
		return
	}

	s.log.Info("reminder registered",
		zap.String("id", rem.ID),
		zap.String("owner", rem.OwnerID),
		zap.Time("trigger_at", rem.TriggerAt))
	writeJSON(w, http.StatusCreated, s.toResponse(rem, now))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		httpError(w, http.StatusBadRequest, "owner_id is required")
		return
	}
	s.writeOwnerList(w, r, ownerID)
}

func (s *Server) writeOwnerList(w http.ResponseWriter, r *http.Request, ownerID string) {
	items, err := s.store.ListByOwner(r.Context(), ownerID, false)
	if err != nil {
		s.log.Error("list failed", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to list reminders")
		return
	}
	now := s.clk.Now().In(s.loc)
	out := make([]reminderResponse, 0, len(items))
	for _, item := range items {
		out = append(out, s.toResponse(item, now))
	}
	writeJSON(w, http.StatusOK, out)
}

type snoozeRequest struct {
	Minutes int `json:"minutes"`
}

func (s *Server) handleSnooze(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req snoozeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Minutes < 1 {
		httpError(w, http.StatusBadRequest, "minutes must be positive")
		return
	}

	until := s.clk.Now().In(s.loc).Add(time.Duration(req.Minutes) * time.Minute)
	if err := s.store.Snooze(r.Context(), id, until); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "reminder not found")
			return
		}
		s.log.Error("snooze failed", zap.String("id", id), zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to snooze reminder")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "snoozed",
		"trigger_at": until.Format(time.RFC3339),
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		httpError(w, http.StatusBadRequest, "owner_id is required")
		return
	}
	if err := s.store.DeactivateOwned(r.Context(), id, ownerID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "reminder not found")
			return
		}
		s.log.Error("delete failed", zap.String("id", id), zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to delete reminder")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil && s.health.Degraded() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) toResponse(rem model.Reminder, now time.Time) reminderResponse {
	return reminderResponse{
		ID:        rem.ID,
		Message:   rem.Message,
		TriggerAt: rem.TriggerAt.In(s.loc).Format(time.RFC3339),
		Repeat:    rem.Recurrence.Label(),
		Remaining: model.FormatRemaining(now, rem.TriggerAt),
		Active:    rem.Active,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
