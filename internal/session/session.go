package session

import (
	"context"
	"log/slog"
	"sync"

	"bfile/internal/transfer"
)

// Options configures a Session.
type Options struct {
	ChunkSize    int
	Logger       *slog.Logger
	OnTransition func(from, to Status)
	OnProgress   func(percent int)
}

// Session ties the send and receive paths to one acting account and keeps
// them in step with wallet events.
type Session struct {
	Sender *Sender
	Inbox  *Inbox

	logger *slog.Logger

	mu          sync.Mutex
	unsubscribe func()
}

// New returns a Session for account backed by blobs and dir.
func New(account string, blobs BlobStore, dir Directory, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		Sender: NewSender(account, blobs, dir, SenderOptions{
			ChunkSize:    opts.ChunkSize,
			Logger:       logger,
			OnTransition: opts.OnTransition,
			OnProgress:   opts.OnProgress,
		}),
		Inbox:  NewInbox(account, blobs, dir, InboxOptions{ChunkSize: opts.ChunkSize, Logger: logger}),
		logger: logger,
	}
}

// Account returns the acting account, or "" when disconnected.
func (s *Session) Account() string {
	return s.Sender.Account()
}

// Bind subscribes the session to n. A previous binding is dropped.
func (s *Session) Bind(n Notifier) {
	unsubscribe := n.Subscribe(s.HandleEvent)
	s.mu.Lock()
	prev := s.unsubscribe
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Close drops the event binding.
func (s *Session) Close() {
	s.mu.Lock()
	prev := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// HandleEvent applies a wallet event. An account change resets the send
// path and empties the inbox; a chain change does the same without
// changing the account.
func (s *Session) HandleEvent(ev Event) {
	switch ev.Kind {
	case AccountsChanged:
		account := ""
		if len(ev.Accounts) > 0 {
			account = transfer.NormalizeAddress(ev.Accounts[0])
		}
		if account == s.Account() {
			return
		}
		s.logger.Info("account changed", "account", account)
		s.Sender.SetAccount(account)
		s.Inbox.SetAccount(account)
	case ChainChanged:
		account := s.Account()
		s.logger.Info("chain changed, resetting session", "account", account)
		s.Sender.Reset()
		s.Inbox.SetAccount(account)
	default:
		s.logger.Warn("ignoring unknown event", "kind", ev.Kind.String())
	}
}

// Refresh reloads the inbox.
func (s *Session) Refresh(ctx context.Context) error {
	return s.Inbox.Refresh(ctx)
}
