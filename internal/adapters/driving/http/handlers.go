package http

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/custodia-labs/patron-bridge/internal/core/domain"
	"github.com/custodia-labs/patron-bridge/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid state token"`
}

// SweepResponse reports how many sessions a sweep removed
type SweepResponse struct {
	Removed int `json:"removed" example:"3"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the bridge
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleVersion godoc
// @Summary      Get bridge version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// OAuth flow endpoints

// handleBegin godoc
// @Summary      Start an authorization flow
// @Description  Creates a pending session and redirects to the provider's
// @Description  authorization page. With redirect=false the authorization
// @Description  URL and state token are returned as JSON instead.
// @Tags         OAuth
// @Param        redirect  query  string  false  "Set to false for a JSON response"
// @Success      302
// @Success      200  {object}  driving.BeginResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /oauth/begin [get]
func (s *Server) handleBegin(w http.ResponseWriter, r *http.Request) {
	resp, err := s.flowService.Begin(r.Context(), driving.BeginRequest{
		UserAgent:  r.UserAgent(),
		RemoteAddr: clientAddr(r),
	})
	if err != nil {
		s.logger.Error("begin flow failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start authorization")
		return
	}

	if r.URL.Query().Get("redirect") == "false" {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	http.Redirect(w, r, resp.AuthorizationURL, http.StatusFound)
}

// handleCallback godoc
// @Summary      Provider redirect callback
// @Description  Finalizes the session and renders an HTML confirmation
// @Description  page. The machine-readable result is fetched via poll.
// @Tags         OAuth
// @Param        state  query  string  true   "State token"
// @Param        code   query  string  false  "Authorization code"
// @Param        error  query  string  false  "Provider error code"
// @Produce      html
// @Success      200
// @Router       /oauth/callback [get]
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := s.flowService.Complete(r.Context(), driving.CompleteRequest{
		State:            q.Get("state"),
		Code:             q.Get("code"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})
	if err != nil {
		s.logger.Warn("callback rejected", "error", err)
		renderErrorPage(w, callbackErrorStatus(err), callbackErrorMessage(err))
		return
	}

	switch {
	case resp.Status == domain.StatusCompleted:
		renderSuccessPage(w)
	case resp.Reason == driving.ReasonExchangeFailed:
		// Our exchange failed, not the user's authorization. The session
		// carries the detail for the polling client.
		renderErrorPage(w, http.StatusOK, "Authorization succeeded, but the bridge could not finish the token exchange. You can close this window and retry from the plugin.")
	default:
		// The provider reported an error; the session carries it for the
		// polling client, the browser gets a human explanation.
		renderErrorPage(w, http.StatusOK, "Patreon reported an error. You can close this window and retry from the plugin.")
	}
}

// handlePoll godoc
// @Summary      Poll authorization status
// @Description  Returns the session status. The first poll observing a
// @Description  terminal status receives the payload exactly once; the
// @Description  record is deleted on delivery.
// @Tags         OAuth
// @Param        state  query  string  true  "State token"
// @Produce      json
// @Success      200  {object}  driving.PollResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /oauth/poll [get]
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	resp, err := s.flowService.Poll(r.Context(), r.URL.Query().Get("state"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidState):
			writeError(w, http.StatusBadRequest, "invalid state token")
		default:
			s.logger.Error("poll failed", "error", err)
			writeError(w, http.StatusInternalServerError, "poll failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh godoc
// @Summary      Refresh an access token
// @Tags         OAuth
// @Param        refresh_token  query  string  true  "Refresh token"
// @Produce      json
// @Success      200  {object}  domain.TokenBundle
// @Failure      400  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Router       /oauth/refresh [get]
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := r.URL.Query().Get("refresh_token")
	if refreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing refresh_token")
		return
	}

	bundle, err := s.flowService.Refresh(r.Context(), refreshToken)
	if err != nil {
		var exchangeErr *domain.ExchangeError
		switch {
		case errors.As(err, &exchangeErr):
			writeError(w, http.StatusBadGateway, exchangeErr.Error())
		case errors.Is(err, domain.ErrMalformedResponse):
			writeError(w, http.StatusBadGateway, "provider returned an unusable response")
		default:
			s.logger.Error("refresh failed", "error", err)
			writeError(w, http.StatusInternalServerError, "refresh failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

// Maintenance endpoints

// handleSweep godoc
// @Summary      Purge expired sessions
// @Tags         Maintenance
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  SweepResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /admin/sweep [post]
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	removed, err := s.flowService.Sweep(r.Context())
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, SweepResponse{Removed: removed})
}

// callbackErrorStatus maps completion errors to HTTP statuses for the
// HTML error page.
func callbackErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrStaleState),
		errors.Is(err, domain.ErrMissingCode):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// callbackErrorMessage picks the human-readable explanation for the HTML
// error page. Internal detail stays in the logs.
func callbackErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrStaleState):
		return "This authorization link is invalid or has expired. Please restart the flow from the plugin."
	case errors.Is(err, domain.ErrMissingCode):
		return "Patreon did not return an authorization code. Please restart the flow from the plugin."
	case errors.Is(err, domain.ErrNotFound):
		return "This authorization session has expired. Please restart the flow from the plugin."
	default:
		return "Something went wrong while completing the authorization. Please try again."
	}
}

// clientAddr strips the port from RemoteAddr for diagnostics.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
