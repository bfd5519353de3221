package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"budgetbeacon/internal/log"
)

func (s *Server) handleExportBackup(w http.ResponseWriter, r *http.Request) {
	body, err := s.service.ExportBackup(r.Context())
	if err != nil {
		s.fail(w, r, err, log.OpExport)
		return
	}
	filename := fmt.Sprintf("budgetbeacon-backup-%s.json", s.service.Today())
	NewJSONResponse().Attachment("application/json; charset=utf-8", filename, body).Write(w)
}

// handleImportBackup replaces the State with the backup document in the
// body. An unreadable document leaves the State untouched.
func (s *Server) handleImportBackup(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readRaw(w, r)
	if !ok {
		return
	}

	result, err := s.service.ImportBackup(r.Context(), body)
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Backup import failed",
			log.FieldOperation, log.OpImport,
			log.FieldError, err.Error())
		s.fail(w, r, err, log.OpImport)
		return
	}
	NewJSONResponse().Message(result.Message(), map[string]int{
		"entries":        result.Report.Entries,
		"recurringRules": result.Report.RecurringRules,
		"dropped":        result.Report.Dropped(),
		"added":          result.Added,
	}).Write(w)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.service.ExportCSV(&buf); err != nil {
		s.fail(w, r, err, log.OpExport)
		return
	}
	filename := fmt.Sprintf("budgetbeacon-entries-%s.csv", s.service.Today())
	NewJSONResponse().Attachment("text/csv; charset=utf-8", filename, buf.Bytes()).Write(w)
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readRaw(w, r)
	if !ok {
		return
	}

	result, err := s.service.ImportCSV(r.Context(), bytes.NewReader(body))
	if err != nil {
		s.fail(w, r, err, log.OpImport)
		return
	}
	NewJSONResponse().Message(result.Message(), result).Write(w)
}

// readRaw reads the whole body up to the size limit.
func (s *Server) readRaw(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "Request body is too large.").Write(w)
			return nil, false
		}
		BadRequestError("Could not read request body.").Write(w)
		return nil, false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		BadRequestError("Request body is empty.").Write(w)
		return nil, false
	}
	return body, true
}
