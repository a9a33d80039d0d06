package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/klauspost/pgzip"

	"bfile/internal/api"
	"bfile/internal/models"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	compressed, err := queryBool(r, "gzip")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.acquireLimiter(s.exportLimiter, w, r, "export") {
		return
	}
	defer s.releaseLimiter(s.exportLimiter)

	var out io.Writer = w
	w.Header().Set("Content-Type", "application/x-ndjson")
	if compressed {
		w.Header().Set("Content-Type", "application/gzip")
		gz := pgzip.NewWriter(w)
		defer func() {
			if err := gz.Close(); err != nil {
				s.log().Error("export close gzip", "method", r.Method, "path", r.URL.Path, "error", err)
			}
		}()
		out = gz
	}
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(out)
	count := 0
	err = s.store.EachTransfer(r.Context(), func(t models.Transfer) error {
		record := api.ExportRecord{
			TxHash:         t.TxHash,
			Sender:         t.Sender,
			Recipient:      t.Recipient,
			Index:          t.Index,
			StorageAddress: t.StorageAddress,
			Key:            t.KeyWords,
			FileName:       t.FileName,
			CreatedAt:      t.CreatedAt,
		}
		if err := enc.Encode(record); err != nil {
			return err
		}
		count++
		if !compressed {
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
		return nil
	})
	if err != nil {
		s.log().Error("export transfers", "method", r.Method, "path", r.URL.Path, "written", count, "error", err)
		return
	}
	s.log().Debug("export complete", "records", count, "gzip", compressed)
}
