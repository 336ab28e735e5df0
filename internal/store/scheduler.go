package store

import (
	"log"
	"sync"
	"time"

	"github.com/juju/clock"
)

type SchedulerConfig struct {
	// Window is the debounce window: a write executes once no new
	// Schedule call has arrived for this long
	Window time.Duration

	// MaxDelay is the backstop: even under continuous edits a scheduled
	// write flushes at most this long after it was first scheduled
	MaxDelay time.Duration

	Clock clock.Clock
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Window:   2 * time.Second,
		MaxDelay: 20 * time.Second,
		Clock:    clock.WallClock,
	}
}

// Scheduler owns one client's debounced writes to the room store. At most
// one pending write exists per room. Cancel and Flush are deliberately
// distinct operations: Cancel discards the pending write without executing
// it, Flush executes it now. A client abandoning a room must Cancel, never
// Flush, since the pending payload may belong to the room it is leaving.
type Scheduler struct {
	store *Store
	cfg   SchedulerConfig

	// gate reports whether writes may execute at all; wired to the
	// logout coordinator's suspend flag
	gate func() bool

	// onWriteError surfaces persistent write failures to the save
	// status indicator
	onWriteError func(roomID string, err error)

	mu      sync.Mutex
	pending map[string]*pendingWrite
}

type pendingWrite struct {
	roomID    string
	key       Key
	content   []byte
	timer     clock.Timer
	deadline  time.Time
	cancelled bool
}

func NewScheduler(store *Store, cfg SchedulerConfig) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	return &Scheduler{
		store:   store,
		cfg:     cfg,
		pending: make(map[string]*pendingWrite),
	}
}

// SetWriteGate installs the writes-allowed check. A nil gate allows all
// writes.
func (s *Scheduler) SetWriteGate(gate func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = gate
}

// SetWriteErrorHandler installs the persistent-failure callback
func (s *Scheduler) SetWriteErrorHandler(fn func(roomID string, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onWriteError = fn
}

// Schedule enqueues a debounced write of content under the room's key,
// replacing any payload already pending for that room. The debounce timer
// resets on every call, but never past the backstop deadline.
func (s *Scheduler) Schedule(roomID string, key Key, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload := make([]byte, len(content))
	copy(payload, content)

	now := s.cfg.Clock.Now()

	if pw, ok := s.pending[roomID]; ok {
		pw.key = key
		pw.content = payload
		delay := s.cfg.Window
		if remaining := pw.deadline.Sub(now); remaining < delay {
			delay = remaining
		}
		if delay < 0 {
			delay = 0
		}
		pw.timer.Reset(delay)
		return
	}

	pw := &pendingWrite{
		roomID:   roomID,
		key:      key,
		content:  payload,
		deadline: now.Add(s.cfg.MaxDelay),
	}
	pw.timer = s.cfg.Clock.AfterFunc(s.cfg.Window, func() {
		s.fire(roomID)
	})
	s.pending[roomID] = pw
}

// Cancel silently discards the room's pending write without executing it.
// A no-op if nothing is pending.
func (s *Scheduler) Cancel(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pw, ok := s.pending[roomID]; ok {
		pw.cancelled = true
		pw.timer.Stop()
		delete(s.pending, roomID)
	}
}

// Flush executes the room's pending write immediately. A no-op if nothing
// is pending.
func (s *Scheduler) Flush(roomID string) error {
	s.mu.Lock()
	pw, ok := s.pending[roomID]
	if ok {
		pw.timer.Stop()
		delete(s.pending, roomID)
	}
	gate := s.gate
	s.mu.Unlock()

	if !ok {
		return nil
	}
	if gate != nil && !gate() {
		log.Printf("Writes suspended, dropping flush for room %s", pw.roomID)
		return nil
	}
	return s.store.FlushNow(pw.roomID, pw.key, pw.content)
}

// PendingCount reports how many rooms have a scheduled write
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) fire(roomID string) {
	s.mu.Lock()
	pw, ok := s.pending[roomID]
	if !ok || pw.cancelled {
		s.mu.Unlock()
		return
	}
	delete(s.pending, roomID)
	gate := s.gate
	onErr := s.onWriteError
	s.mu.Unlock()

	if gate != nil && !gate() {
		log.Printf("Writes suspended, dropping scheduled save for room %s", pw.roomID)
		return
	}

	if err := s.store.FlushNow(pw.roomID, pw.key, pw.content); err != nil {
		log.Printf("Scheduled save failed for room %s: %v", pw.roomID, err)
		if onErr != nil {
			onErr(pw.roomID, err)
		}
	}
}
