package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"spinshot/internal/domain"
	"spinshot/internal/pipeline"
)

// App bundles the handler dependencies.
type App struct {
	Pipeline *pipeline.Runner
	Store    domain.JobStore
	Logger   zerolog.Logger
	validate *validator.Validate
}

// NewApp creates the handler container.
func NewApp(runner *pipeline.Runner, store domain.JobStore, logger zerolog.Logger) *App {
	return &App{
		Pipeline: runner,
		Store:    store,
		Logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Stage   string `json:"stage,omitempty"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type errorResponse struct {
	JobID string    `json:"job_id,omitempty"`
	Error errorBody `json:"error"`
}

func (a *App) error(w http.ResponseWriter, code int, reason, message string) {
	a.json(w, code, errorResponse{Error: errorBody{Reason: reason, Message: message}})
}
