package http

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"pocketbook/internal/core"
	"pocketbook/internal/log"
)

const defaultHistoryLimit = 20

// handleImport stores the rows of an uploaded bank CSV export. The file is
// read from the multipart field "file".
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxImportBytes {
		ErrorResponse(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload exceeds %d bytes", s.maxImportBytes)).Write(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxImportBytes)
	if err := r.ParseMultipartForm(s.maxImportBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			ErrorResponse(http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit)).Write(w)
			return
		}
		writeError(w, r, log.OpImport, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, log.OpImport, fmt.Errorf("%w: multipart field \"file\" is required", errBadRequest))
		return
	}
	defer file.Close()

	filename := sanitizeInput(filepath.Base(header.Filename))
	res, err := s.imports.Import(r.Context(), filename, file)
	if err != nil {
		writeError(w, r, log.OpImport, err)
		return
	}
	if res.Inserted > 0 {
		s.invalidateRollups(r.Context())
	}
	NewJSONResponse().Status(http.StatusCreated).Body(res).Write(w)
}

// handleImportHistory lists recent imports. Query: limit (default 20).
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := ParseIntParam(r.URL.Query(), "limit", defaultHistoryLimit)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	history, err := s.imports.History(r.Context(), limit)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if history == nil {
		history = []core.ImportRecord{}
	}
	NewJSONResponse().Body(map[string]any{"imports": history}).Write(w)
}
