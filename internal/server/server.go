package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"bfile/internal/blobstore"
	"bfile/internal/store"
)

const (
	apiTokenEnvKey         = "BFILE_API_TOKEN"
	allowRemoteEnvKey      = "BFILE_ALLOW_REMOTE"
	readHeaderTimeout      = 5 * time.Second
	readTimeout            = 15 * time.Minute
	writeTimeout           = 15 * time.Minute
	idleTimeout            = 60 * time.Second
	shutdownTimeout        = 10 * time.Second
	exportConcurrencyLimit = 2
	uploadConcurrencyLimit = 4

	defaultMaxUploadBytes     = 2 << 30 // 2 GiB
	defaultMultipartMaxMemory = 8 << 20 // 8 MiB
)

// Store is the persistence the server needs: the transfer directory and the
// pin ledger.
type Store interface {
	store.DirectoryStore
	store.PinStore
}

// Options tunes blob handling. Zero values select defaults.
type Options struct {
	Backend            string
	GatewayURL         string
	MaxUploadBytes     int64
	MultipartMaxMemory int64
}

// Server wraps HTTP handlers for the bfile API.
type Server struct {
	addr          string
	store         Store
	transfers     *TransferService
	pins          *PinService
	gatewayURL    string
	logger        *slog.Logger
	apiToken      string
	maxUpload     int64
	multipartMem  int64
	exportLimiter chan struct{}
	uploadLimiter chan struct{}
}

// New creates a new server instance.
func New(addr string, st Store, blobs blobstore.BlobStore, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.MultipartMaxMemory <= 0 {
		opts.MultipartMaxMemory = defaultMultipartMaxMemory
	}

	return &Server{
		addr:          addr,
		store:         st,
		transfers:     NewTransferService(st),
		pins:          NewPinService(blobs, st, opts.Backend),
		gatewayURL:    strings.TrimRight(opts.GatewayURL, "/"),
		logger:        logger,
		apiToken:      strings.TrimSpace(os.Getenv(apiTokenEnvKey)),
		maxUpload:     opts.MaxUploadBytes,
		multipartMem:  opts.MultipartMaxMemory,
		exportLimiter: make(chan struct{}, exportConcurrencyLimit),
		uploadLimiter: make(chan struct{}, uploadConcurrencyLimit),
	}
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.withAuth(s.routes()))
}

// ListenAndServe starts the HTTP server and blocks until ctx is done or the
// listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr, "blob_backend", s.pins.Backend())
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server", "addr", s.addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		s.writeError(w, r, statusError(http.StatusTooManyRequests, 0, fmt.Errorf("too many concurrent %s requests", name)))
		return false
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}
