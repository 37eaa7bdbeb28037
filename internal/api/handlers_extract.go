package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ppiankov/certverify/internal/llm"
)

type extractRequest struct {
	RawText string `json:"rawText"`
}

// handleExtract is the extraction relay: raw OCR text in, field record out
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if s.deps.Provider == nil {
		unavailable(w, "extraction provider")
		return
	}

	var req extractRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RawText == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Missing rawText in request body"})
		return
	}

	resp, err := s.deps.Provider.ExtractFields(r.Context(), llm.ExtractRequest{RawText: req.RawText})
	if err != nil {
		if errors.Is(err, llm.ErrMalformedResponse) {
			s.log.Warn("malformed extraction response", "provider", s.deps.Provider.Name(), "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Invalid AI response format"})
			return
		}
		s.log.Error("extraction failed", "provider", s.deps.Provider.Name(), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Server error", "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"fields": resp.Fields})
}
