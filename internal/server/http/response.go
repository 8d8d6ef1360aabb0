package httpserver

import (
	"time"

	"github.com/helixir/profile-service/internal/domain"
)

type acceptedResponse struct {
	Status  string `json:"status"`
	Signal  string `json:"signal"`
	Message string `json:"message,omitempty"`
}

type durableStartedResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
}

type durableCancelResponse struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
}

type outcomeResponse struct {
	ID         string    `json:"id"`
	Outcome    string    `json:"outcome"`
	Attempt    int       `json:"attempt"`
	Reason     string    `json:"reason"`
	Error      string    `json:"error,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Duration   string    `json:"duration"`
	CreatedAt  time.Time `json:"created_at"`
}

type historyResponse struct {
	SessionID string            `json:"session_id"`
	Outcomes  []outcomeResponse `json:"outcomes"`
}

func domainOutcomeToResponse(o *domain.RefreshOutcome) outcomeResponse {
	return outcomeResponse{
		ID:         o.ID.String(),
		Outcome:    o.Outcome,
		Attempt:    o.Attempt,
		Reason:     o.Reason,
		Error:      o.Error,
		StatusCode: o.StatusCode,
		Duration:   o.Duration.String(),
		CreatedAt:  o.CreatedAt,
	}
}
