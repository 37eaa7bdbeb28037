package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ppiankov/certverify/internal/storage"
)

type ingestRequest struct {
	ZipBase64    string `json:"zipBase64"`
	Organization string `json:"organization"`
}

func (s *Server) handleListCertificates(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registry == nil {
		unavailable(w, "certificate registry")
		return
	}

	records, err := s.deps.Registry.List(r.Context())
	if err != nil {
		s.log.Error("list certificates failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to fetch certificates",
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// handleIngestCertificates accepts a zip archive either as the raw request
// body or as base64 in a JSON body, and stores every PDF in it
func (s *Server) handleIngestCertificates(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingester == nil {
		unavailable(w, "certificate storage")
		return
	}

	// base64 inflates by a third
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadLimit()*4/3+1024)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, "failed to read body: "+err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	archive := body
	organization := r.URL.Query().Get("organization")
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req ingestRequest
		if err := json.Unmarshal(body, &req); err != nil || req.ZipBase64 == "" {
			jsonError(w, "Missing zipBase64 in request body", http.StatusBadRequest)
			return
		}
		archive, err = base64.StdEncoding.DecodeString(req.ZipBase64)
		if err != nil {
			jsonError(w, "zipBase64 is not valid base64", http.StatusBadRequest)
			return
		}
		if req.Organization != "" {
			organization = req.Organization
		}
	}

	results, err := s.deps.Ingester.IngestZip(r.Context(), archive, organization)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidArchive) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error("ingest failed", "error", err, "stored", len(results))
		jsonError(w, "Upload failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"files": results})
}
