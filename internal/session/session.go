package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/easelhq/easel/internal/store"
)

// State is a session's position in its lifecycle
type State int

const (
	StateIdle State = iota
	StateJoining
	StateOpen
	StateLeaving
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StateOpen:
		return "open"
	case StateLeaving:
		return "leaving"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// JoinMode selects how local content and the room's persisted snapshot
// reconcile on join
type JoinMode int

const (
	// NewRoom seeds the room from the current local content
	NewRoom JoinMode = iota

	// ExistingRoom is an explicit share-link join: local state is
	// cleared before the fetched snapshot is applied, never merged
	ExistingRoom

	// AutoCollab is an implicit join via collection membership: local
	// content may be stale or empty, so it never seeds the room, and
	// all outgoing writes stay blocked until the fetch lands
	AutoCollab
)

// ErrNotIdle is returned by Join on a session that already joined a room
var ErrNotIdle = errors.New("session has already joined a room")

// Dialer opens the relay channel for a room
type Dialer func(ctx context.Context, roomID string) (Relay, error)

type Config struct {
	ClientID  string
	Store     *store.Store
	Scheduler *store.Scheduler
	Dial      Dialer
	Surface   EditSurface

	// WritesSuspended is the logout coordinator's view; while it
	// reports true no write path executes
	WritesSuspended func() bool
}

// Session is one client's live connection to a room: a state machine
// moving Idle -> Joining -> Open -> Leaving -> Closed. Broadcasting and
// persisting are permitted only while Open.
type Session struct {
	clientID string
	store    *store.Store
	sched    *store.Scheduler
	dial     Dialer
	surface  EditSurface

	writesSuspended func() bool

	mu            sync.Mutex
	state         State
	roomID        string
	key           store.Key
	contentLoaded bool
	relay         Relay
	done          chan struct{}
}

func New(cfg Config) *Session {
	suspended := cfg.WritesSuspended
	if suspended == nil {
		suspended = func() bool { return false }
	}
	return &Session{
		clientID:        cfg.ClientID,
		store:           cfg.Store,
		sched:           cfg.Scheduler,
		dial:            cfg.Dial,
		surface:         cfg.Surface,
		writesSuspended: suspended,
		state:           StateIdle,
		done:            make(chan struct{}),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RoomID returns the joined room's id, empty while Idle
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// ContentLoaded reports whether the room's content has been applied to
// the edit surface
func (s *Session) ContentLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contentLoaded
}

// Join connects the session to a room. A session joins at most one room;
// a second Join returns ErrNotIdle. On failure the session returns to
// Idle so the caller can retry.
func (s *Session) Join(ctx context.Context, roomID string, key store.Key, mode JoinMode) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrNotIdle
	}
	s.state = StateJoining
	s.roomID = roomID
	s.key = key
	s.contentLoaded = false
	s.mu.Unlock()

	relay, err := s.dial(ctx, roomID)
	if err != nil {
		s.reset()
		return fmt.Errorf("join room %s: %w", roomID, err)
	}

	switch mode {
	case NewRoom:
		// Local content is the room's seed
		s.setLoaded(relay)
		s.sched.Schedule(roomID, key, s.surface.LocalContent())

	case ExistingRoom:
		// Drop the local draft before applying fetched content; a
		// stranger's room must never absorb it
		s.surface.Clear()
		if err := s.fetchAndApply(roomID, key); err != nil {
			relay.Close()
			s.reset()
			return err
		}
		s.setLoaded(relay)

	case AutoCollab:
		// No seeding: local content may be stale or empty here, and
		// outgoing writes stay blocked until the fetch is applied
		if err := s.fetchAndApply(roomID, key); err != nil {
			relay.Close()
			s.reset()
			return err
		}
		s.setLoaded(relay)

	default:
		relay.Close()
		s.reset()
		return fmt.Errorf("unknown join mode %d", mode)
	}

	go s.pump(roomID, key, relay)
	return nil
}

func (s *Session) fetchAndApply(roomID string, key store.Key) error {
	snap, err := s.store.Get(roomID, key)
	if errors.Is(err, store.ErrNotFound) {
		// Room exists but was never persisted; nothing to apply
		return nil
	}
	if err != nil {
		return fmt.Errorf("load room %s: %w", roomID, err)
	}
	s.surface.ApplyContent(snap.Content)
	return nil
}

func (s *Session) setLoaded(relay Relay) {
	s.mu.Lock()
	s.contentLoaded = true
	s.relay = relay
	s.state = StateOpen
	s.mu.Unlock()
}

func (s *Session) reset() {
	s.mu.Lock()
	s.state = StateIdle
	s.roomID = ""
	s.key = store.Key{}
	s.relay = nil
	s.mu.Unlock()
}

// canWrite is the single write guard: Open, content loaded, and writes
// not suspended by the logout coordinator
func (s *Session) canWrite() (Relay, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen || !s.contentLoaded || s.writesSuspended() {
		return nil, false
	}
	return s.relay, true
}

// Broadcast sends a delta to the room. Silently ignored unless the
// session is Open with content loaded and writes allowed; this guard is
// what keeps transition windows and the logout sequence write-free.
func (s *Session) Broadcast(delta []byte) {
	relay, ok := s.canWrite()
	if !ok {
		return
	}
	if err := relay.Broadcast(delta); err != nil {
		log.Printf("Broadcast to room %s failed: %v", s.RoomID(), err)
	}
}

// PersistChange schedules a debounced save of content. Ignored under the
// same guard as Broadcast.
func (s *Session) PersistChange(content []byte) {
	if _, ok := s.canWrite(); !ok {
		return
	}
	s.mu.Lock()
	roomID, key := s.roomID, s.key
	s.mu.Unlock()
	s.sched.Schedule(roomID, key, content)
}

// Leave disconnects from the room. The ordering here is the correctness
// mechanism that keeps one room's content out of another's snapshot:
//
//  1. capture local content synchronously, before any asynchronous step,
//     and only if the room's content was actually loaded;
//  2. cancel (never flush) the pending debounced save, since its payload
//     may belong to the room being abandoned;
//  3. flush the captured copy in the background so switching rooms never
//     blocks the caller; errors are logged, not awaited.
//
// Leave on a session that never opened is a no-op.
func (s *Session) Leave() {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return
	}
	s.state = StateLeaving
	roomID, key := s.roomID, s.key

	var captured []byte
	if s.contentLoaded {
		content := s.surface.LocalContent()
		captured = make([]byte, len(content))
		copy(captured, content)
	}
	relay := s.relay
	s.mu.Unlock()

	s.sched.Cancel(roomID)

	if captured != nil && !s.writesSuspended() {
		go func() {
			if err := s.store.FlushNow(roomID, key, captured); err != nil {
				log.Printf("Final save for room %s failed: %v", roomID, err)
			}
		}()
	}

	close(s.done)
	if relay != nil {
		relay.Close()
	}

	s.mu.Lock()
	s.state = StateClosed
	s.relay = nil
	s.mu.Unlock()
}

// pump applies incoming relay traffic to the edit surface while the
// session is Open
func (s *Session) pump(roomID string, key store.Key, relay Relay) {
	for {
		select {
		case <-s.done:
			return

		case delta, ok := <-relay.Updates():
			if !ok {
				return
			}
			s.applyIncoming(delta)

		case _, ok := <-relay.Reconnected():
			if !ok {
				return
			}
			// Never trust a locally cached copy across an outage;
			// re-fetch the canonical snapshot
			snap, err := s.store.Get(roomID, key)
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					log.Printf("Re-fetch after reconnect failed for room %s: %v", roomID, err)
				}
				continue
			}
			s.applyIncoming(snap.Content)
		}
	}
}

func (s *Session) applyIncoming(content []byte) {
	s.mu.Lock()
	open := s.state == StateOpen && !s.writesSuspended()
	s.mu.Unlock()
	if open {
		s.surface.ApplyContent(content)
	}
}
