package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bfile/internal/transfer"
)

var (
	// ErrBusy is returned when an encode, upload or register is already in
	// flight.
	ErrBusy = errors.New("a transfer is already in progress")
	// ErrCancelled is returned by a Submit or Encode whose work was abandoned
	// by Cancel or a reset.
	ErrCancelled = errors.New("transfer cancelled")
	// ErrInvalidState is returned when an operation does not apply to the
	// current status.
	ErrInvalidState = errors.New("operation not allowed in current state")
)

// Snapshot is a point-in-time view of the send path.
type Snapshot struct {
	Status     Status
	Account    string
	FileName   string
	KeyWords   []string
	BlobSize   int
	Progress   int
	UploadTime time.Duration
	Err        error
}

// SenderOptions configures a Sender.
type SenderOptions struct {
	ChunkSize    int
	Logger       *slog.Logger
	OnTransition func(from, to Status)
	OnProgress   func(percent int)
}

// Sender is the send path state machine. Callers are expected to serialize
// SelectFile, Encode and Submit; Cancel may be called concurrently with an
// in-flight Submit. Callbacks run without the lock held and may call back
// into the Sender.
type Sender struct {
	blobs   BlobStore
	dir     Directory
	encoder transfer.Encoder
	logger  *slog.Logger

	onTransition func(from, to Status)
	onProgress   func(percent int)

	mu       sync.Mutex
	pending  []func() // run by unlock, after mu is released
	account  string
	status   Status
	fileName string
	source   io.Reader
	key      transfer.Key
	blob     transfer.EncryptedBlob
	encoded  bool
	elapsed  time.Duration
	err      error
	cancel   context.CancelFunc
	// gen changes whenever in-flight work is abandoned.
	gen uint64

	progress atomic.Int32
}

// NewSender returns an idle Sender acting for account.
func NewSender(account string, blobs BlobStore, dir Directory, opts SenderOptions) *Sender {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		blobs:        blobs,
		dir:          dir,
		encoder:      transfer.Encoder{ChunkSize: opts.ChunkSize},
		logger:       logger.With("component", "sender"),
		onTransition: opts.OnTransition,
		onProgress:   opts.OnProgress,
		account:      transfer.NormalizeAddress(account),
		status:       StatusIdle,
	}
}

// Status returns the current status.
func (s *Sender) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Progress returns upload progress in percent.
func (s *Sender) Progress() int {
	return int(s.progress.Load())
}

// Snapshot returns the current state.
func (s *Sender) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Status:     s.status,
		Account:    s.account,
		FileName:   s.fileName,
		BlobSize:   len(s.blob),
		Progress:   s.Progress(),
		UploadTime: s.elapsed,
		Err:        s.err,
	}
	if !s.key.IsZero() {
		words := s.key.Words()
		snap.KeyWords = words[:]
	}
	return snap
}

// SelectFile stages a file for sending, replacing any staged file that has
// not been submitted yet.
func (s *Sender) SelectFile(name string, r io.Reader) error {
	if r == nil {
		return &transfer.ValidationError{Field: "file", Err: errors.New("no file selected")}
	}
	s.mu.Lock()
	defer s.unlock()
	if s.status.Active() {
		return ErrBusy
	}
	if s.status != StatusIdle && !CanTransition(s.status, StatusFileSelected) {
		return fmt.Errorf("%w: select file while %s", ErrInvalidState, s.status)
	}
	s.clearLocked()
	s.fileName = strings.TrimSpace(name)
	s.source = r
	s.setStatusLocked(StatusFileSelected)
	return nil
}

// Encode encrypts the staged file with a fresh key.
func (s *Sender) Encode(ctx context.Context) error {
	s.mu.Lock()
	if s.status.Active() {
		s.unlock()
		return ErrBusy
	}
	if s.status != StatusFileSelected {
		s.unlock()
		return &transfer.ValidationError{Field: "file", Err: errors.New("no file selected")}
	}
	src, name, gen := s.source, s.fileName, s.gen
	s.setStatusLocked(StatusEncoding)
	s.unlock()

	start := time.Now()
	key, blob, err := s.encoder.Encode(ctx, src)

	s.mu.Lock()
	defer s.unlock()
	if gen != s.gen {
		return ErrCancelled
	}
	s.source = nil
	if err != nil {
		s.logger.Error("encode file failed", "file", name, "error", err)
		s.failLocked(err)
		return err
	}
	s.key, s.blob, s.encoded = key, blob, true
	s.logger.Debug("file encoded", "file", name, "blob_bytes", len(blob), "duration_ms", time.Since(start).Milliseconds())
	s.setStatusLocked(StatusAwaitingRecipient)
	return nil
}

// Submit validates recipient, uploads the encoded blob and registers the
// transfer. On success the sender is back to idle. Cancelling ctx during the
// upload behaves like Cancel; once registration starts it runs to completion.
func (s *Sender) Submit(ctx context.Context, recipient string) (Receipt, error) {
	recipient = strings.TrimSpace(recipient)

	s.mu.Lock()
	if s.status.Active() {
		s.unlock()
		return Receipt{}, ErrBusy
	}
	if !s.encoded || (s.status != StatusAwaitingRecipient && s.status != StatusError) {
		s.unlock()
		return Receipt{}, &transfer.ValidationError{Field: "file", Err: errors.New("no file selected")}
	}
	if err := transfer.ValidateRecipient(recipient, s.account); err != nil {
		s.unlock()
		return Receipt{}, err
	}
	if ctx.Err() != nil {
		s.unlock()
		return Receipt{}, ErrCancelled
	}

	uploadCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.err = nil
	s.elapsed = 0
	s.setProgressLocked(0)
	s.setStatusLocked(StatusUploading)
	blob, name, key, account, gen := s.blob, s.fileName, s.key, s.account, s.gen
	s.unlock()

	start := time.Now()
	reader := &progressReader{r: bytes.NewReader(blob), total: int64(len(blob)), report: s.reportProgress}
	address, err := s.blobs.Put(uploadCtx, name, reader, int64(len(blob)))
	cancel()

	s.mu.Lock()
	s.cancel = nil
	if gen != s.gen {
		s.unlock()
		return Receipt{}, ErrCancelled
	}
	if err != nil && ctx.Err() != nil {
		s.logger.Info("upload cancelled", "file", name)
		s.abandonLocked()
		s.unlock()
		return Receipt{}, ErrCancelled
	}
	if err != nil {
		uploadErr := asUploadError(err)
		s.logger.Error("upload failed", "file", name, "error", uploadErr)
		s.failLocked(uploadErr)
		s.unlock()
		return Receipt{}, uploadErr
	}
	s.elapsed = time.Since(start)
	s.setProgressLocked(100)
	s.logger.Info("blob stored", "file", name, "address", address, "bytes", len(blob), "duration_ms", s.elapsed.Milliseconds())
	s.setStatusLocked(StatusRegistering)
	s.unlock()

	receipt, err := s.dir.Register(context.WithoutCancel(ctx), account, transfer.NormalizeAddress(recipient), address, key, name)

	s.mu.Lock()
	defer s.unlock()
	if err != nil {
		registerErr := asRegisterError(err)
		s.logger.Error("register transfer failed", "file", name, "recipient", recipient, "error", registerErr)
		if gen == s.gen {
			s.failLocked(registerErr)
		}
		return Receipt{}, registerErr
	}
	s.logger.Info("transfer registered", "file", name, "recipient", recipient, "tx_hash", receipt.TxHash)
	if gen == s.gen {
		s.setStatusLocked(StatusConfirmed)
		s.clearLocked()
		s.setStatusLocked(StatusIdle)
	}
	return receipt, nil
}

// Cancel abandons an in-flight upload and returns the sender to idle,
// discarding the staged file. It reports whether anything was cancelled.
func (s *Sender) Cancel() bool {
	s.mu.Lock()
	defer s.unlock()
	if s.status != StatusUploading {
		return false
	}
	s.abandonLocked()
	return true
}

func (s *Sender) abandonLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.setStatusLocked(StatusCancelled)
	s.clearLocked()
	s.setStatusLocked(StatusIdle)
}

// RemoveFile discards a staged or encoded file that has not been submitted.
func (s *Sender) RemoveFile() error {
	s.mu.Lock()
	defer s.unlock()
	if s.status.Active() {
		return ErrBusy
	}
	s.clearLocked()
	s.setStatusLocked(StatusIdle)
	return nil
}

// Reset abandons any in-flight work and returns to idle. Registrations that
// already reached the directory are not affected.
func (s *Sender) Reset() {
	s.mu.Lock()
	defer s.unlock()
	s.resetLocked()
}

// SetAccount switches the acting account and resets the send path.
func (s *Sender) SetAccount(account string) {
	s.mu.Lock()
	defer s.unlock()
	s.account = transfer.NormalizeAddress(account)
	s.resetLocked()
}

// Account returns the acting account.
func (s *Sender) Account() string {
	s.mu.Lock()
	defer s.unlock()
	return s.account
}

func (s *Sender) resetLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.clearLocked()
	s.setStatusLocked(StatusIdle)
}

func (s *Sender) clearLocked() {
	s.fileName = ""
	s.source = nil
	s.key = transfer.Key{}
	s.blob = nil
	s.encoded = false
	s.elapsed = 0
	s.err = nil
	s.setProgressLocked(0)
}

func (s *Sender) failLocked(err error) {
	s.err = err
	s.setProgressLocked(0)
	s.setStatusLocked(StatusError)
}

func (s *Sender) setStatusLocked(to Status) {
	from := s.status
	if from == to && to == StatusIdle {
		return
	}
	s.status = to
	if s.onTransition != nil {
		s.pending = append(s.pending, func() { s.onTransition(from, to) })
	}
}

// unlock releases the lock and then runs queued callbacks in order.
func (s *Sender) unlock() {
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

func (s *Sender) setProgressLocked(percent int) {
	old := s.progress.Swap(int32(percent))
	if s.onProgress != nil && int(old) != percent {
		s.pending = append(s.pending, func() { s.onProgress(percent) })
	}
}

// reportProgress is called from the upload reader, outside the lock.
func (s *Sender) reportProgress(percent int) {
	old := s.progress.Swap(int32(percent))
	if s.onProgress != nil && int(old) != percent {
		s.onProgress(percent)
	}
}

func asUploadError(err error) error {
	var uploadErr *transfer.TransferUploadError
	if errors.As(err, &uploadErr) {
		return err
	}
	return &transfer.TransferUploadError{Err: err}
}

func asRegisterError(err error) error {
	var registerErr *transfer.TransferRegisterError
	if errors.As(err, &registerErr) {
		return err
	}
	return &transfer.TransferRegisterError{Err: err}
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report func(percent int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 && p.report != nil {
		p.report(int(p.read * 100 / p.total))
	}
	return n, err
}
