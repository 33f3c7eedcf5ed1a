package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/auditmos/dianoia/claims"
	"github.com/auditmos/dianoia/logging"
)

type GenerateRequest struct {
	Action string `json:"action"`
	Claim  string `json:"claim"`
}

type GenerateResponse struct {
	Claim string `json:"claim"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.claims == nil {
		writeJSONError(w, "claim generation not configured", http.StatusServiceUnavailable)
		return
	}

	if ok, retryAfter := s.limiter.Allow(clientKey(r)); !ok {
		logging.FromContext(r.Context()).WithData(logging.Fields{"retryAfter": retryAfter}).
			Warn("dashboard", "rate_limit", "Claim generation rate limit exceeded")
		writeRateLimitExceeded(w, retryAfter)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		logging.FromContext(r.Context()).TrackError(
			logging.WrapErrorWithType("decode request", err, "ValidationError"),
			"dashboard", "generate", nil)
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	out, err := s.claims.Generate(r.Context(), claims.Action(req.Action), req.Claim)
	switch {
	case errors.Is(err, claims.ErrUnknownAction), errors.Is(err, claims.ErrEmptyClaim):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		writeJSONError(w, "failed to generate claim", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{Claim: out})
}
