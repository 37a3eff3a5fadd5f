package upload

import (
	"fmt"
	"lms-media/internal/core/domain"
	"sync"
	"sync/atomic"
)

// Session is a live upload: the session record, its chunk plan and the controls of the running transfer.
// Pause, Resume and Cancel may be called from any goroutine.
type Session struct {
	mu   sync.Mutex
	cond *sync.Cond

	info   domain.UploadSession
	chunks []domain.Chunk
	keys   []string

	cursor           atomic.Int64
	bytesTransferred int64
	paused           bool
	cancelled        bool
	failed           bool
	running          bool
	transferred      bool
	// strays are chunks that finished after the run had already failed
	strays []int
}

func newSession(info domain.UploadSession, chunks []domain.Chunk, keys []string) *Session {
	s := &Session{info: info, chunks: chunks, keys: keys}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Info returns a copy of the session record
func (s *Session) Info() domain.UploadSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Status returns the current status
func (s *Session) Status() domain.UploadSessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info.Status
}

// Chunks returns a copy of the chunk plan with its current flags
func (s *Session) Chunks() []domain.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// BytesTransferred is the sum of the sizes of chunks marked uploaded
func (s *Session) BytesTransferred() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesTransferred
}

// Pause stops workers from claiming new chunks. In-flight chunks finish.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info.Status.IsTerminal() {
		return fmt.Errorf("%w: cannot pause a %s session", domain.ErrInvalidSessionState, s.info.Status)
	}
	s.paused = true
	s.info.Status = domain.UploadSessionStatusPaused
	return nil
}

// Resume lets idle workers claim chunks again
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info.Status != domain.UploadSessionStatusPaused {
		return fmt.Errorf("%w: cannot resume a %s session", domain.ErrInvalidSessionState, s.info.Status)
	}
	s.paused = false
	s.info.Status = domain.UploadSessionStatusUploading
	s.cond.Broadcast()
	return nil
}

// Cancel stops claiming and makes the running transfer end with domain.ErrUploadCancelled.
// Uploaded chunks are deleted by the manager once the workers have stopped.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info.Status.IsTerminal() {
		return
	}
	s.cancelled = true
	s.paused = true
	s.cond.Broadcast()
}

// Cancelled reports whether Cancel was called
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// awaitClaim blocks while the session is paused. It returns false when no more chunks must be claimed.
func (s *Session) awaitClaim(done func() bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.cancelled || s.failed || done() {
			return false
		}
		if !s.paused {
			return true
		}
		s.cond.Wait()
	}
}

// claim returns the next unclaimed chunk index
func (s *Session) claim() (int, bool) {
	idx := s.cursor.Add(1) - 1
	if idx >= int64(len(s.chunks)) {
		return 0, false
	}
	return int(idx), true
}

func (s *Session) chunk(idx int) (domain.Chunk, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks[idx], s.keys[idx]
}

// markUploaded accounts a successful chunk. It reports false when the run already failed.
func (s *Session) markUploaded(idx, attempts int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[idx].RetryCount = attempts - 1
	if s.failed {
		s.strays = append(s.strays, idx)
		return false
	}
	s.chunks[idx].Uploaded = true
	s.bytesTransferred += s.chunks[idx].Size()
	return true
}

func (s *Session) markFailed(idx, attempts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attempts > 0 {
		s.chunks[idx].RetryCount = attempts - 1
	}
	s.failed = true
	s.cond.Broadcast()
}

func (s *Session) wake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *Session) setStatus(status domain.UploadSessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info.Status = status
}

// start moves a pending session to uploading, keeping a pause requested before the transfer
func (s *Session) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.info.Status {
	case domain.UploadSessionStatusPending:
		s.info.Status = domain.UploadSessionStatusUploading
	case domain.UploadSessionStatusPaused:
		if s.running || s.transferred || s.cursor.Load() > 0 {
			return fmt.Errorf("%w: transfer already ran", domain.ErrInvalidSessionState)
		}
	default:
		return fmt.Errorf("%w: cannot transfer a %s session", domain.ErrInvalidSessionState, s.info.Status)
	}
	s.running = true
	return nil
}

// finish records the end of the transfer; ok marks every chunk as stored
func (s *Session) finish(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.transferred = ok
}

func (s *Session) state() (running, transferred bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, s.transferred
}

// uploadedKeys returns the keys of chunks marked uploaded, in index order, and the keys of strays
func (s *Session) uploadedKeys() ([]string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var uploaded []string
	for i, c := range s.chunks {
		if c.Uploaded {
			uploaded = append(uploaded, s.keys[i])
		}
	}
	strays := make([]string, 0, len(s.strays))
	for _, idx := range s.strays {
		strays = append(strays, s.keys[idx])
	}
	return uploaded, strays
}

func (s *Session) allUploaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chunks {
		if !c.Uploaded {
			return false
		}
	}
	return true
}
