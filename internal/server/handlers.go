package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aristath/folios/internal/domain"
	"github.com/aristath/folios/internal/orchestration"
	"github.com/aristath/folios/internal/providers"
	"github.com/aristath/folios/internal/storage"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var unsupported *providers.UnsupportedModeError
	var invalid *orchestration.InvalidTransitionError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &unsupported), errors.As(err, &invalid):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	plugins := s.registry.List()
	summaries := make([]map[string]any, 0, len(plugins))
	for _, plugin := range plugins {
		summaries = append(summaries, plugin.CapabilitySummary())
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"providers": summaries})
}

type createStrategyRequest struct {
	Name          string                 `json:"name"`
	Prompt        string                 `json:"prompt"`
	Tickers       []string               `json:"tickers"`
	ResearchDay   int                    `json:"research_day"`
	RuntimeWeight float64                `json:"runtime_weight"`
	RiskControls  *domain.RiskControls   `json:"risk_controls"`
	Screener      *domain.ScreenerConfig `json:"screener"`
}

func (s *Server) handleCreateStrategy(w http.ResponseWriter, r *http.Request) {
	var body createStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Name == "" || body.Prompt == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("name and prompt are required"))
		return
	}

	strategy := &domain.Strategy{
		ID:            uuid.New(),
		Name:          body.Name,
		Prompt:        body.Prompt,
		Tickers:       body.Tickers,
		Status:        domain.StrategyActive,
		RiskControls:  body.RiskControls,
		Screener:      body.Screener,
		ResearchDay:   body.ResearchDay,
		RuntimeWeight: body.RuntimeWeight,
	}
	if err := s.store.Strategies.Save(r.Context(), strategy); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusCreated, strategy)
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	strategies, err := s.store.Strategies.List(r.Context())
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"strategies": strategies})
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	strategy, err := s.store.Strategies.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, strategy)
}

type enqueueRequestBody struct {
	StrategyID   string     `json:"strategy_id"`
	Provider     string     `json:"provider"`
	Mode         string     `json:"mode"`
	RequestType  string     `json:"request_type"`
	Priority     string     `json:"priority"`
	ScheduledFor *time.Time `json:"scheduled_for"`
}

func (s *Server) handleEnqueueRequest(w http.ResponseWriter, r *http.Request) {
	var body enqueueRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	strategyID, err := uuid.Parse(body.StrategyID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("strategy_id must be a uuid"))
		return
	}

	request, task, err := s.orch.EnqueueRequest(r.Context(), orchestration.EnqueueParams{
		StrategyID:   strategyID,
		ProviderID:   domain.ProviderID(body.Provider),
		Mode:         domain.ExecutionMode(body.Mode),
		RequestType:  domain.RequestType(body.RequestType),
		Priority:     domain.RequestPriority(body.Priority),
		ScheduledFor: body.ScheduledFor,
	})
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"request": request, "task": task})
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	var (
		requests []*domain.Request
		err      error
	)
	if state := r.URL.Query().Get("state"); state != "" {
		requests, err = s.store.Requests.ListByState(r.Context(), domain.LifecycleState(state))
	} else {
		requests, err = s.store.Requests.ListRecent(r.Context(), 100)
	}
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	request, err := s.store.Requests.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, request)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	tasks, err := s.store.Tasks.ListByRequest(r.Context(), id)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleRequestLog(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	entries, err := s.store.Log.ListByRequest(r.Context(), id)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"log": entries})
}

func (s *Server) handleRequestResults(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	results, err := s.results.ListByRequest(r.Context(), id)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
