package server

import (
	"net/http"

	"bfile/internal/api"
)

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req api.TransferCreateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	receipt, err := s.transfers.Register(r.Context(), r.Header.Get(api.AccountHeader), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.log().Info("transfer registered",
		"tx_hash", receipt.TxHash,
		"sender", receipt.Sender,
		"recipient", receipt.Recipient,
		"index", receipt.Index,
	)
	s.writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) handleReceived(w http.ResponseWriter, r *http.Request) {
	account, ok := s.pathAccount(w, r, "account")
	if !ok {
		return
	}
	received, err := s.transfers.Received(r.Context(), account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ReceivedResponse{Received: received})
}

func (s *Server) handleListSenders(w http.ResponseWriter, r *http.Request) {
	account, ok := s.pathAccount(w, r, "account")
	if !ok {
		return
	}
	senders, err := s.transfers.Senders(r.Context(), account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SendersResponse{Senders: senders})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	account, ok := s.pathAccount(w, r, "account")
	if !ok {
		return
	}
	sender, ok := s.pathAccount(w, r, "sender")
	if !ok {
		return
	}
	fields, err := s.transfers.RecordFields(r.Context(), account, sender)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordFieldsResponse{Fields: fields})
}
