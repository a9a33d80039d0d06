package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// multipartOverhead covers boundaries and part headers around the file.
const multipartOverhead = 64 << 10

func (s *Server) handlePinFile(w http.ResponseWriter, r *http.Request) {
	if !s.acquireLimiter(s.uploadLimiter, w, r, "upload") {
		return
	}
	defer s.releaseLimiter(s.uploadLimiter)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(s.multipartMem); err != nil {
		s.writeError(w, r, classifyMultipartError(err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, badRequestCode(fmt.Errorf("file is required"), ErrCodeMissingRequired))
		return
	}
	defer file.Close()
	if header.Size > s.maxUpload {
		s.writeError(w, r, tooLarge(fmt.Errorf("file exceeds %d bytes", s.maxUpload)))
		return
	}

	resp, err := s.pins.Pin(r.Context(), header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.log().Info("blob pinned", "cid", resp.IpfsHash, "size", resp.PinSize, "name", header.Filename)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	rc, size, err := s.pins.Open(r.Context(), r.PathValue("cid"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.log().Error("stream blob", "method", r.Method, "path", r.URL.Path, "error", err)
	}
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		return tooLarge(fmt.Errorf("request body too large"))
	}
	return badRequestCode(err, ErrCodeInvalidMultipart)
}
