package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func TestDecodeErrorCarriesStatusAndCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"recipient is invalid","code":"invalid_argument","error_code":1001}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.HasReceived(context.Background(), "0xabc")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Code != "invalid_argument" || apiErr.ErrorCode != 1001 {
		t.Fatalf("unexpected api error: %#v", apiErr)
	}
	if !apiErr.IsClientError() {
		t.Fatal("expected client error")
	}
	if apiErr.Error() != "invalid_argument: recipient is invalid" {
		t.Fatalf("unexpected message %q", apiErr.Error())
	}
}

func TestDecodeErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FetchBlob(context.Background(), "bafkreimissing")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRegisterTransferSendsAccountHeader(t *testing.T) {
	t.Setenv(apiTokenEnvKey, "secret")
	var gotAccount, gotAuth string
	var got TransferCreateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/transfers" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAccount = r.Header.Get(AccountHeader)
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"tx_hash":"0x01","sender":"0xa","recipient":"0xb","index":2}`))
	}))
	defer srv.Close()

	receipt, err := NewClient(srv.URL).RegisterTransfer(context.Background(), "0xa", TransferCreateRequest{
		Recipient:      "0xb",
		StorageAddress: "http://gw/ipfs/bafk",
		Key:            [4]string{"1", "2", "3", "4"},
		FileName:       "a.txt",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if gotAccount != "0xa" || gotAuth != "Bearer secret" {
		t.Fatalf("unexpected headers: account=%q auth=%q", gotAccount, gotAuth)
	}
	if got.FileName != "a.txt" || got.Key[3] != "4" {
		t.Fatalf("unexpected body: %#v", got)
	}
	if receipt.TxHash != "0x01" || receipt.Index != 2 {
		t.Fatalf("unexpected receipt: %#v", receipt)
	}
}

func TestPinFileStreamsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "blob.txt" || string(data) != "payload" {
			t.Errorf("unexpected upload %q %q", header.Filename, data)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"IpfsHash":"bafkpayload","PinSize":7}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).PinFile(context.Background(), "blob.txt", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("pin: %v", err)
	}
	if resp.IpfsHash != "bafkpayload" || resp.PinSize != 7 {
		t.Fatalf("unexpected pin response: %#v", resp)
	}
}

func TestFetchBlobAcceptsURLOrCID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ipfs/bafkblob" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("blob-bytes"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	for _, address := range []string{"bafkblob", srv.URL + "/ipfs/bafkblob"} {
		data, err := client.FetchBlob(context.Background(), address)
		if err != nil {
			t.Fatalf("fetch %q: %v", address, err)
		}
		if string(data) != "blob-bytes" {
			t.Fatalf("unexpected data for %q: %q", address, data)
		}
	}
}
