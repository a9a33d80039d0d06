package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "BFILE_HTTP_TIMEOUT"
	apiTokenEnvKey     = "BFILE_API_TOKEN"

	// AccountHeader names the account a directory write is made on behalf of.
	AccountHeader = "X-Account"
)

// Client is a simple HTTP client for the bfile API.
type Client struct {
	baseURL   string
	http      *http.Client
	blobHTTP  *http.Client
	authToken string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
		// Blob transfers are bounded by the caller's context only.
		blobHTTP:  &http.Client{},
		authToken: strings.TrimSpace(os.Getenv(apiTokenEnvKey)),
	}
}

// BaseURL returns the server root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil, nil)
}

func (c *Client) GetInfo(ctx context.Context, withBlobs bool) (InfoResponse, error) {
	var resp InfoResponse
	var query url.Values
	if withBlobs {
		query = url.Values{"blobs": {"true"}}
	}
	err := c.do(ctx, http.MethodGet, "/v1/info", query, nil, nil, &resp)
	return resp, err
}

// PinFile uploads r as multipart field "file" and returns the content id the
// server assigned. The body is streamed.
func (c *Client) PinFile(ctx context.Context, name string, r io.Reader) (PinResponse, error) {
	var resp PinResponse

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pinning/pinFileToIPFS", pr)
	if err != nil {
		_ = pr.Close()
		return resp, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setAuthHeader(req)

	httpResp, err := c.blobHTTP.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		return resp, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

// FetchBlob downloads the blob at address, which is either a full URL or a
// bare content id served by this client's server.
func (c *Client) FetchBlob(ctx context.Context, address string) ([]byte, error) {
	endpoint := address
	if !strings.Contains(address, "://") {
		endpoint = c.baseURL + "/ipfs/" + url.PathEscape(address)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(endpoint, c.baseURL+"/") {
		c.setAuthHeader(req)
	}

	resp, err := c.blobHTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

// RegisterTransfer appends a record on behalf of sender.
func (c *Client) RegisterTransfer(ctx context.Context, sender string, req TransferCreateRequest) (TransferReceipt, error) {
	var resp TransferReceipt
	headers := http.Header{}
	headers.Set(AccountHeader, sender)
	err := c.do(ctx, http.MethodPost, "/v1/transfers", nil, headers, req, &resp)
	return resp, err
}

func (c *Client) HasReceived(ctx context.Context, account string) (bool, error) {
	var resp ReceivedResponse
	err := c.do(ctx, http.MethodGet, accountPath(account)+"/received", nil, nil, nil, &resp)
	return resp.Received, err
}

func (c *Client) ListSenders(ctx context.Context, account string) ([]string, error) {
	var resp SendersResponse
	err := c.do(ctx, http.MethodGet, accountPath(account)+"/senders", nil, nil, nil, &resp)
	return resp.Senders, err
}

// RecordsFrom returns the flat field groups sender registered for account.
func (c *Client) RecordsFrom(ctx context.Context, account, sender string) ([]string, error) {
	var resp RecordFieldsResponse
	path := accountPath(account) + "/senders/" + url.PathEscape(sender) + "/records"
	err := c.do(ctx, http.MethodGet, path, nil, nil, nil, &resp)
	return resp.Fields, err
}

// Export streams NDJSON export to a writer. With compressed set the server
// gzips the stream and w receives the compressed bytes.
func (c *Client) Export(ctx context.Context, w io.Writer, compressed bool) error {
	endpoint := c.baseURL + "/v1/export"
	if compressed {
		endpoint += "?gzip=true"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.setAuthHeader(req)
	resp, err := c.blobHTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, headers http.Header, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	c.setAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Code
		apiErr.ErrorCode = errResp.ErrorCode
		apiErr.Message = errResp.Error
		return apiErr
	}
	apiErr.Message = fmt.Sprintf("api error: %s", resp.Status)
	return apiErr
}

func (c *Client) setAuthHeader(req *http.Request) {
	if c.authToken == "" || req == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
}

func accountPath(account string) string {
	return "/v1/accounts/" + url.PathEscape(account)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
