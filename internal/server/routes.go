package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)

	// Blob pinning and gateway.
	mux.HandleFunc("POST /pinning/pinFileToIPFS", s.handlePinFile)
	mux.HandleFunc("GET /ipfs/{cid}", s.handleGetBlob)

	// Directory writes.
	mux.HandleFunc("POST /v1/transfers", s.handleCreateTransfer)

	// Directory reads per recipient.
	mux.HandleFunc("GET /v1/accounts/{account}/received", s.handleReceived)
	mux.HandleFunc("GET /v1/accounts/{account}/senders", s.handleListSenders)
	mux.HandleFunc("GET /v1/accounts/{account}/senders/{sender}/records", s.handleListRecords)

	// Export.
	mux.HandleFunc("GET /v1/export", s.handleExport)

	return mux
}
