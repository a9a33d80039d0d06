package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"

	"bfile/internal/api"
	"bfile/internal/blobstore"
	"bfile/internal/store"
)

const (
	alice = "0x00000000000000000000000000000000000000a1"
	bob   = "0x00000000000000000000000000000000000000b2"
	carol = "0x00000000000000000000000000000000000000c3"

	helloCID = "bafkreibm6jg3ux5qumhcn2b3flc3tyu6dmlb4xa7u5bf44yegnrjhc4yeq"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	t.Setenv(apiTokenEnvKey, "")

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	blobs, err := blobstore.NewLocalCAS(t.TempDir(), blobstore.LocalCASOptions{MaxBlobBytes: opts.MaxUploadBytes})
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	return New("127.0.0.1:0", st, blobs, opts, nil)
}

func doJSON(t *testing.T, srv *Server, method, path, account string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if account != "" {
		req.Header.Set(api.AccountHeader, account)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func pinRequest(t *testing.T, name string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/pinning/pinFileToIPFS", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var errResp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v (%s)", err, w.Body.String())
	}
	return errResp.ErrorCode
}

func registerTransfer(t *testing.T, srv *Server, sender, recipient, name string) api.TransferReceipt {
	t.Helper()
	w := doJSON(t, srv, http.MethodPost, "/v1/transfers", sender, api.TransferCreateRequest{
		Recipient:      recipient,
		StorageAddress: "http://127.0.0.1:7434/ipfs/" + helloCID,
		Key:            [4]string{"1", "2", "3", "4"},
		FileName:       name,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var receipt api.TransferReceipt
	if err := json.Unmarshal(w.Body.Bytes(), &receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	return receipt
}

func TestPinAndFetchBlob(t *testing.T) {
	srv := newTestServer(t, Options{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, pinRequest(t, "hello.txt", []byte("hello")))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var pin api.PinResponse
	if err := json.Unmarshal(w.Body.Bytes(), &pin); err != nil {
		t.Fatalf("decode pin response: %v", err)
	}
	if pin.IpfsHash != helloCID || pin.PinSize != 5 {
		t.Fatalf("unexpected pin response: %#v", pin)
	}
	if pin.Timestamp.IsZero() {
		t.Fatal("expected pin timestamp")
	}

	get := httptest.NewRecorder()
	srv.Handler().ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/ipfs/"+helloCID, nil))
	if get.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", get.Code, get.Body.String())
	}
	if get.Body.String() != "hello" {
		t.Fatalf("unexpected blob body %q", get.Body.String())
	}
	if get.Header().Get("Content-Length") != "5" {
		t.Fatalf("unexpected content length %q", get.Header().Get("Content-Length"))
	}

	// CIDv0 of the same bytes resolves to the same blob.
	v0 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(v0, httptest.NewRequest(http.MethodGet, "/ipfs/QmRN6wdp1S2A5EtjW9A3M1vKSBuQQGcgvuhoMUoEz4iiT5", nil))
	if v0.Code != http.StatusOK || v0.Body.String() != "hello" {
		t.Fatalf("expected v0 lookup to succeed, got %d (%s)", v0.Code, v0.Body.String())
	}
}

func TestGetBlobErrors(t *testing.T) {
	srv := newTestServer(t, Options{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ipfs/not-a-cid", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if code := decodeErrorCode(t, w); code != ErrCodeInvalidCID {
		t.Fatalf("expected error_code %d, got %d", ErrCodeInvalidCID, code)
	}

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ipfs/"+helloCID, nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if code := decodeErrorCode(t, w); code != ErrCodeBlobNotFound {
		t.Fatalf("expected error_code %d, got %d", ErrCodeBlobNotFound, code)
	}
}

func TestPinFileRejections(t *testing.T) {
	srv := newTestServer(t, Options{MaxUploadBytes: 16})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, pinRequest(t, "big.bin", bytes.Repeat([]byte("x"), 64)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d (%s)", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/pinning/pinFileToIPFS", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestCreateTransferAndReadBack(t *testing.T) {
	srv := newTestServer(t, Options{})

	first := registerTransfer(t, srv, alice, bob, "one.txt")
	second := registerTransfer(t, srv, alice, bob, "two.txt")
	registerTransfer(t, srv, carol, bob, "three.txt")

	if first.Index != 0 || second.Index != 1 {
		t.Fatalf("unexpected indexes %d, %d", first.Index, second.Index)
	}
	if first.Sender != alice || first.Recipient != bob {
		t.Fatalf("unexpected receipt parties: %#v", first)
	}

	w := doJSON(t, srv, http.MethodGet, "/v1/accounts/"+bob+"/received", "", nil)
	var received api.ReceivedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &received); err != nil || !received.Received {
		t.Fatalf("expected received=true, got %s (err=%v)", w.Body.String(), err)
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/accounts/"+alice+"/received", "", nil)
	received = api.ReceivedResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), &received); err != nil || received.Received {
		t.Fatalf("expected received=false, got %s (err=%v)", w.Body.String(), err)
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/accounts/"+bob+"/senders", "", nil)
	var senders api.SendersResponse
	if err := json.Unmarshal(w.Body.Bytes(), &senders); err != nil {
		t.Fatalf("decode senders: %v", err)
	}
	if strings.Join(senders.Senders, ",") != alice+","+carol {
		t.Fatalf("unexpected senders: %v", senders.Senders)
	}

	// Path segments must be full addresses.
	w = doJSON(t, srv, http.MethodGet, "/v1/accounts/"+strings.ToUpper(bob[2:])+"/senders", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected missing 0x prefix to be rejected, got %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/accounts/"+bob+"/senders/"+alice+"/records", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var records api.RecordFieldsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records.Fields) != 18 {
		t.Fatalf("expected 2 groups plus sentinel (18 fields), got %d", len(records.Fields))
	}
	if records.Fields[5] != "one.txt" || records.Fields[11] != "two.txt" {
		t.Fatalf("unexpected record order: %v", records.Fields)
	}
	for _, field := range records.Fields[12:] {
		if field != "" {
			t.Fatalf("expected empty sentinel group, got %v", records.Fields[12:])
		}
	}
}

func TestRecordsForUnknownSenderIsSentinelOnly(t *testing.T) {
	srv := newTestServer(t, Options{})

	w := doJSON(t, srv, http.MethodGet, "/v1/accounts/"+bob+"/senders/"+alice+"/records", "", nil)
	var records api.RecordFieldsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records.Fields) != 6 {
		t.Fatalf("expected sentinel only, got %v", records.Fields)
	}
}

func TestCreateTransferValidation(t *testing.T) {
	srv := newTestServer(t, Options{})
	valid := api.TransferCreateRequest{
		Recipient:      bob,
		StorageAddress: "http://gw/ipfs/" + helloCID,
		Key:            [4]string{"1", "2", "3", "4"},
		FileName:       "a.txt",
	}

	tests := []struct {
		name     string
		account  string
		mutate   func(*api.TransferCreateRequest)
		wantCode int
	}{
		{"missing sender", "", func(*api.TransferCreateRequest) {}, ErrCodeMissingRequired},
		{"bad sender", "nope", func(*api.TransferCreateRequest) {}, ErrCodeInvalidAddress},
		{"bad recipient", alice, func(r *api.TransferCreateRequest) { r.Recipient = "not-an-address" }, ErrCodeInvalidAddress},
		{"uppercase prefix", alice, func(r *api.TransferCreateRequest) { r.Recipient = "0X" + bob[2:] }, ErrCodeInvalidAddress},
		{"self send mixed case", alice, func(r *api.TransferCreateRequest) { r.Recipient = "0x00000000000000000000000000000000000000A1" }, ErrCodeSelfTransfer},
		{"empty address", alice, func(r *api.TransferCreateRequest) { r.StorageAddress = "" }, ErrCodeMissingRequired},
		{"bad key", alice, func(r *api.TransferCreateRequest) { r.Key[2] = "x" }, ErrCodeInvalidKey},
		{"empty file name", alice, func(r *api.TransferCreateRequest) { r.FileName = "" }, ErrCodeMissingRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			w := doJSON(t, srv, http.MethodPost, "/v1/transfers", tt.account, req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%s)", w.Code, w.Body.String())
			}
			if code := decodeErrorCode(t, w); code != tt.wantCode {
				t.Fatalf("expected error_code %d, got %d", tt.wantCode, code)
			}
		})
	}

	w := doJSON(t, srv, http.MethodGet, "/v1/accounts/"+bob+"/received", "", nil)
	var received api.ReceivedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &received); err != nil || received.Received {
		t.Fatalf("rejected writes must not reach the directory: %s", w.Body.String())
	}
}

func TestCreateTransferInvalidJSON(t *testing.T) {
	srv := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/v1/transfers", strings.NewReader("{"))
	req.Header.Set(api.AccountHeader, alice)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if code := decodeErrorCode(t, w); code != ErrCodeInvalidJSON {
		t.Fatalf("expected error_code %d, got %d", ErrCodeInvalidJSON, code)
	}
}

func TestInfo(t *testing.T) {
	srv := newTestServer(t, Options{Backend: "local_cas", GatewayURL: "http://gw.example/"})
	registerTransfer(t, srv, alice, bob, "one.txt")

	w := doJSON(t, srv, http.MethodGet, "/v1/info", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var info api.InfoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.TotalTransfers != 1 || info.BlobBackend != "local_cas" || info.GatewayURL != "http://gw.example" {
		t.Fatalf("unexpected info: %#v", info)
	}
}

func TestExport(t *testing.T) {
	srv := newTestServer(t, Options{})
	registerTransfer(t, srv, alice, bob, "one.txt")
	registerTransfer(t, srv, carol, bob, "two.txt")

	w := doJSON(t, srv, http.MethodGet, "/v1/export", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	plain := readExport(t, w.Body)
	if len(plain) != 2 || plain[0].FileName != "one.txt" || plain[1].Sender != carol {
		t.Fatalf("unexpected export: %#v", plain)
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/export?gzip=true", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	gz, err := pgzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("open gzip: %v", err)
	}
	defer gz.Close()
	compressed := readExport(t, gz)
	if len(compressed) != 2 || compressed[1].FileName != "two.txt" {
		t.Fatalf("unexpected gzip export: %#v", compressed)
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/export?gzip=maybe", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid gzip flag, got %d", w.Code)
	}
}

func readExport(t *testing.T, r io.Reader) []api.ExportRecord {
	t.Helper()
	var out []api.ExportRecord
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var rec api.ExportRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("decode export line: %v", err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan export: %v", err)
	}
	return out
}

func TestInfoBlobStats(t *testing.T) {
	srv := newTestServer(t, Options{})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, pinRequest(t, "hello.txt", []byte("hello")))
	if w.Code != http.StatusOK {
		t.Fatalf("pin: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var info api.InfoResponse
	plain := doJSON(t, srv, http.MethodGet, "/v1/info", "", nil)
	if err := json.Unmarshal(plain.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.BlobStore != nil {
		t.Fatalf("blob stats reported without ?blobs=true: %#v", info.BlobStore)
	}

	withBlobs := doJSON(t, srv, http.MethodGet, "/v1/info?blobs=true", "", nil)
	if withBlobs.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", withBlobs.Code, withBlobs.Body.String())
	}
	info = api.InfoResponse{}
	if err := json.Unmarshal(withBlobs.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.BlobStore == nil || info.BlobStore.Blobs != 1 || info.BlobStore.Bytes != 5 {
		t.Fatalf("unexpected blob stats: %#v", info.BlobStore)
	}

	bad := doJSON(t, srv, http.MethodGet, "/v1/info?blobs=maybe", "", nil)
	if bad.Code != http.StatusBadRequest || decodeErrorCode(t, bad) != ErrCodeInvalidQuery {
		t.Fatalf("expected invalid query, got %d (%s)", bad.Code, bad.Body.String())
	}
}

func TestHandlerRequiresTokenWhenConfigured(t *testing.T) {
	srv := newTestServer(t, Options{})
	srv.apiToken = "token"

	w := doJSON(t, srv, http.MethodGet, "/v1/info", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	w = doJSON(t, srv, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected health to stay open, got %d", w.Code)
	}
}
