package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ppiankov/certverify/internal/model"
	"github.com/ppiankov/certverify/internal/pipeline"
)

// handleVerify runs one verification over two uploaded certificates.
// With ?stream=1 every state transition is sent as a server-sent event
// before the final report.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if s.deps.Verifier == nil {
		unavailable(w, "verification pipeline")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 2*s.uploadLimit()+1024*1024) // two files plus form overhead

	// A request that is not multipart carries no files; validation names the first one
	err := r.ParseMultipartForm(32 << 20)
	switch {
	case err == nil:
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	case errors.Is(err, http.ErrNotMultipart):
	default:
		jsonError(w, "invalid multipart form: "+err.Error(), uploadErrorStatus(err))
		return
	}

	var req pipeline.Request
	if r.MultipartForm != nil {
		for i, field := range []string{"file1", "file2"} {
			doc, err := s.readDocument(r, field)
			if err != nil {
				jsonError(w, err.Error(), uploadErrorStatus(err))
				return
			}
			req.Documents[i] = doc
		}
		req.Year = r.FormValue("year")
		req.Organization = r.FormValue("organization")
		req.Kind = r.FormValue("type")
	}

	if err := req.Validate(s.now()); err != nil {
		writeValidationError(w, err)
		return
	}

	if r.URL.Query().Get("stream") == "1" {
		s.streamVerify(w, r, req)
		return
	}

	res, err := s.deps.Verifier.Verify(r.Context(), req)
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		writeValidationError(w, err)
		return
	}

	writeJSON(w, reportStatus(res), res.Report(req))
}

func (s *Server) streamVerify(w http.ResponseWriter, r *http.Request, req pipeline.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Observers run on this goroutine, so writes are not interleaved
	observe := func(e pipeline.Event) {
		writeEvent(w, "state", e)
		flusher.Flush()
	}

	res, _ := s.deps.Verifier.Verify(r.Context(), req, observe)
	writeEvent(w, "report", res.Report(req))
	flusher.Flush()
}

func writeEvent(w io.Writer, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// errUploadTooLarge marks an uploaded file over the configured size limit
var errUploadTooLarge = errors.New("upload too large")

// uploadErrorStatus is 413 for oversized bodies or files, 400 otherwise
func uploadErrorStatus(err error) int {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || errors.Is(err, errUploadTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// readDocument reads one uploaded file. A missing file yields an empty
// document so validation can name the field.
func (s *Server) readDocument(r *http.Request, field string) (model.Document, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return model.Document{}, nil
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("read %s: %w", field, err)
	}
	defer func() { _ = file.Close() }()

	limit := s.uploadLimit()
	content, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return model.Document{}, fmt.Errorf("read %s: %w", field, err)
	}
	if int64(len(content)) > limit {
		return model.Document{}, fmt.Errorf("%w: %s exceeds max size (%d bytes)", errUploadTooLarge, field, limit)
	}

	return model.Document{
		Name:        sanitizeFilename(header.Filename),
		Content:     content,
		ContentType: header.Header.Get("Content-Type"),
	}, nil
}

func writeValidationError(w http.ResponseWriter, err error) {
	var validationErr *model.ValidationError
	if !errors.As(err, &validationErr) {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": validationErr.Error(),
		"field": validationErr.Field,
	})
}

// reportStatus maps the terminal state to an HTTP status. A failed stage is
// an upstream service failure; the report still carries earlier results.
func reportStatus(res *pipeline.Result) int {
	switch res.State {
	case pipeline.StateCompleted:
		return http.StatusOK
	case pipeline.StateCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
