package server

import (
	"net/http"

	"bfile/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInfo reports directory counts. With ?blobs=true it also walks the
// blob backend, which is proportional to the number of stored blobs.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	withBlobs, err := queryBool(r, "blobs")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	info, err := s.store.StoreInfo(r.Context())
	if err != nil {
		s.writeError(w, r, storeFailure(err))
		return
	}
	resp := api.InfoResponse{
		SchemaVersion:  info.SchemaVersion,
		BlobBackend:    s.pins.Backend(),
		TotalTransfers: info.TotalTransfers,
		Senders:        info.Senders,
		Recipients:     info.Recipients,
		Pins:           info.Pins,
		PinnedBytes:    info.PinnedBytes,
		GatewayURL:     s.gatewayURL,
	}

	if withBlobs {
		stats, ok, err := s.pins.Stats(r.Context())
		if err != nil {
			s.writeError(w, r, blobFailure(err))
			return
		}
		if ok {
			resp.BlobStore = &api.BlobStoreStats{Blobs: stats.Blobs, Bytes: stats.Bytes}
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}
