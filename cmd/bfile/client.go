package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"bfile/internal/api"
	"bfile/internal/config"
	"bfile/internal/remote"
	"bfile/internal/session"
)

const (
	serverStartTimeout = 3 * time.Second
	serverPollInterval = 100 * time.Millisecond
	pingTimeout        = 500 * time.Millisecond
)

var (
	errNoAccount    = errors.New("no account configured")
	errServerExited = errors.New("local server exited")
)

// withClient runs fn against the configured server, starting a local one
// for the duration of fn when none is listening.
func withClient(ctx context.Context, cfg *config.Config, fn func(*api.Client) error) error {
	client := api.NewClient(cfg.APIURL)
	stop, err := ensureServer(ctx, cfg, client)
	if err != nil {
		return err
	}
	defer stop()
	return fn(client)
}

func ensureServer(ctx context.Context, cfg *config.Config, client *api.Client) (func(), error) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := client.Ping(pingCtx)
	cancel()
	if err == nil {
		return func() {}, nil
	}
	if !isLoopbackURL(cfg.APIURL) || !isDialError(err) {
		return nil, err
	}

	child, err := startServer(cfg)
	if err != nil {
		return nil, fmt.Errorf("start local server: %w", err)
	}
	if err := child.waitReady(ctx, client); err != nil {
		child.stop()
		return nil, err
	}
	slog.Debug("started local server", "pid", child.cmd.Process.Pid, "api_url", cfg.APIURL)
	return child.stop, nil
}

// serverChild is a `bfile srv` process started on behalf of one command.
type serverChild struct {
	cmd    *exec.Cmd
	stderr *tailBuffer
	exited chan error
	once   sync.Once
}

func startServer(cfg *config.Config) (*serverChild, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(exe, "srv")
	cmd.Env = append(os.Environ(),
		"BFILE_DB="+cfg.DBPath,
		"BFILE_API_URL="+cfg.APIURL,
		"BFILE_BLOBS="+cfg.Blobs.Root,
	)
	child := &serverChild{cmd: cmd, stderr: &tailBuffer{max: 4 << 10}, exited: make(chan error, 1)}
	cmd.Stderr = child.stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	go func() { child.exited <- cmd.Wait() }()
	return child, nil
}

// waitReady polls until the child answers, exits, or the start timeout
// passes.
func (c *serverChild) waitReady(ctx context.Context, client *api.Client) error {
	deadline := time.NewTimer(serverStartTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(serverPollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return errors.New("server did not start in time")
		case err := <-c.exited:
			c.exited <- err
			if last := c.stderr.lastLine(); last != "" {
				return fmt.Errorf("%w: %s", errServerExited, last)
			}
			return fmt.Errorf("%w: %v", errServerExited, err)
		case <-tick.C:
			pingCtx, cancel := context.WithTimeout(ctx, 2*serverPollInterval)
			err := client.Ping(pingCtx)
			cancel()
			if err == nil {
				return nil
			}
			if !isDialError(err) {
				// Something else owns the port.
				return err
			}
		}
	}
}

func (c *serverChild) stop() {
	c.once.Do(func() {
		_ = c.cmd.Process.Kill()
		<-c.exited
	})
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) lastLine() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	trimmed := bytes.TrimSpace(b.buf)
	if i := bytes.LastIndexByte(trimmed, '\n'); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return string(trimmed)
}

func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func isLoopbackURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// newSession wires a session for account to the service behind client.
func newSession(cfg *config.Config, client *api.Client, account string, opts session.Options) *session.Session {
	opts.ChunkSize = cfg.ChunkSize
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "session")
	}
	blobs := remote.NewBlobs(client, cfg.GatewayURL())
	dir := remote.NewDirectory(client)
	return session.New(account, blobs, dir, opts)
}

func requireAccount(cfg *config.Config) (string, error) {
	if cfg.Account == "" {
		return "", errNoAccount
	}
	return cfg.Account, nil
}
