package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/temporal"
	"github.com/helixir/profile-service/internal/view"
)

// Request limits.
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	maxRequestBodySize  = 1 << 16 // 64 KB limit for request bodies
)

// putSessionRequest is the JSON request body for storing the session token.
type putSessionRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}

// putSession handles PUT /session.
func (s *Server) putSession(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req putSessionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if err := s.validate.Struct(req); err != nil {
		writeDomainError(w, validationError(err))
		return
	}

	if err := s.deps.Sessions.Set(r.Context(), s.deps.SessionID, domain.SessionToken(req.Token), s.deps.SessionTTL); err != nil {
		s.logger.Error().Err(err).Msg("failed to store session token")
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deleteSession handles DELETE /session. The store is told the session
// expired so the screen reflects it.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Delete(r.Context(), s.deps.SessionID); err != nil {
		s.logger.Error().Err(err).Msg("failed to delete session token")
		writeDomainError(w, err)
		return
	}
	s.deps.Store.Dispatch(r.Context(), domain.SessionExpired())
	w.WriteHeader(http.StatusNoContent)
}

// getProfile handles GET /profile and returns the rendered screen.
func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, view.Render(s.deps.Store.Snapshot()))
}

// refreshProfile handles POST /profile/refresh.
func (s *Server) refreshProfile(w http.ResponseWriter, r *http.Request) {
	s.accept(w, r, domain.ProfileRefreshRequested(1, domain.RefreshReasonUser))
}

// refreshDeletionStatus handles POST /profile/deletion-status/refresh.
func (s *Server) refreshDeletionStatus(w http.ResponseWriter, r *http.Request) {
	s.accept(w, r, domain.UserDataLoadRequest(domain.UserDataProcessingDelete))
}

// performAction handles POST /profile/actions/{action}.
func (s *Server) performAction(w http.ResponseWriter, r *http.Request) {
	sig, err := view.ActionSignal(view.Action(chi.URLParam(r, "action")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.accept(w, r, sig)
}

func (s *Server) accept(w http.ResponseWriter, r *http.Request, sig domain.Signal) {
	s.deps.Store.Dispatch(r.Context(), sig)
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", Signal: string(sig.Type)})
}

// startDurableRefresh handles POST /profile/refresh/durable.
func (s *Server) startDurableRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Durable == nil {
		writeError(w, http.StatusNotImplemented, "durable refresh is not enabled")
		return
	}

	workflowID, runID, err := s.deps.Durable.StartRefresh(r.Context(), temporal.RefreshWorkflowInput{
		SessionID: s.deps.SessionID,
		Attempt:   1,
		Reason:    domain.RefreshReasonUser,
		Retry:     s.deps.Retry,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to start durable refresh")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, durableStartedResponse{
		WorkflowID: workflowID,
		RunID:      runID,
		Status:     "started",
	})
}

// durableRefreshStatus handles GET /profile/refresh/durable.
func (s *Server) durableRefreshStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Durable == nil {
		writeError(w, http.StatusNotImplemented, "durable refresh is not enabled")
		return
	}

	status, err := s.deps.Durable.QueryStatus(r.Context(), s.deps.SessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// cancelDurableRefresh handles DELETE /profile/refresh/durable.
func (s *Server) cancelDurableRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Durable == nil {
		writeError(w, http.StatusNotImplemented, "durable refresh is not enabled")
		return
	}

	if err := s.deps.Durable.CancelRefresh(r.Context(), s.deps.SessionID); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cancel durable refresh")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, durableCancelResponse{
		WorkflowID: temporal.WorkflowID(s.deps.SessionID),
		Status:     "cancel_requested",
	})
}

// describeDurableRefresh handles GET /profile/refresh/durable/execution. It
// answers for closed runs too, where the status query may not.
func (s *Server) describeDurableRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Durable == nil {
		writeError(w, http.StatusNotImplemented, "durable refresh is not enabled")
		return
	}

	desc, err := s.deps.Durable.DescribeRefresh(r.Context(), s.deps.SessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

// refreshHistory handles GET /profile/refresh/history.
func (s *Server) refreshHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Outcomes == nil {
		writeError(w, http.StatusNotImplemented, "refresh history is not enabled")
		return
	}

	outcomes, err := s.deps.Outcomes.ListRecent(r.Context(), s.deps.SessionID, parseLimit(r))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list refresh outcomes")
		writeDomainError(w, err)
		return
	}

	resp := historyResponse{SessionID: s.deps.SessionID, Outcomes: make([]outcomeResponse, 0, len(outcomes))}
	for _, o := range outcomes {
		resp.Outcomes = append(resp.Outcomes, domainOutcomeToResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeDomainError maps domain and temporal errors to appropriate HTTP status codes
// and writes a JSON error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrNoCredential):
		writeError(w, http.StatusUnauthorized, "no session credential")
	case errors.Is(err, temporal.ErrWorkflowNotFound):
		writeError(w, http.StatusNotFound, "workflow not found")
	case errors.Is(err, temporal.ErrWorkflowAlreadyStarted):
		writeError(w, http.StatusConflict, "workflow already started")
	case errors.Is(err, temporal.ErrConnectionFailed), errors.Is(err, temporal.ErrClientClosed):
		writeError(w, http.StatusServiceUnavailable, "workflow service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// validationError converts the first validator failure into a ValidationError.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return domain.NewValidationError(strings.ToLower(fe.Field()), fmt.Sprintf("failed on %q", fe.Tag()))
	}
	return domain.NewValidationError("body", err.Error())
}

// parseLimit reads the limit query parameter, applying default and maximum bounds.
func parseLimit(r *http.Request) int {
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit
}
