package scene

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/easelhq/easel/internal/access"
	"github.com/easelhq/easel/internal/session"
	"github.com/easelhq/easel/internal/store"
)

// DisplayState is the synchronizer's view of what the surface shows
type DisplayState int

const (
	NoScene DisplayState = iota
	Loading
	Ready
)

func (s DisplayState) String() string {
	switch s {
	case NoScene:
		return "no-scene"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("display(%d)", int(s))
}

// EntryKind is how the actor reached the scene
type EntryKind int

const (
	// EntryCollection: the scene was opened from a collection listing;
	// collaboration, when permitted, is implicit (auto-collab)
	EntryCollection EntryKind = iota

	// EntryLink: the actor followed an explicit share link
	EntryLink
)

// ErrAccessDenied is returned when the actor may not view the scene
var ErrAccessDenied = errors.New("access denied")

// OwnerStore is the external scene-owner store, consulted only for
// scenes the actor cannot collaborate on
type OwnerStore interface {
	Get(ctx context.Context, sceneID string) ([]byte, error)
	Put(ctx context.Context, sceneID string, content []byte) error
}

// Request asks the synchronizer to display a scene
type Request struct {
	SceneID string
	ActorID string
	Context access.SceneContext
	Entry   EntryKind
}

type Config struct {
	ClientID    string
	Store       *store.Store
	Scheduler   *store.Scheduler
	Directory   *Directory
	Owner       OwnerStore
	Surface     session.EditSurface
	Dial        session.Dialer
	Coordinator *Coordinator
}

// Synchronizer orchestrates scene open and scene switch: it resolves
// permissions, drives a room session or falls back to the scene-owner
// store, and owns the loading gate. The current scene and room are a
// read-only view derived from its single current session value.
type Synchronizer struct {
	clientID string
	store    *store.Store
	sched    *store.Scheduler
	dir      *Directory
	owner    OwnerStore
	surface  session.EditSurface
	dial     session.Dialer
	coord    *Coordinator

	mu       sync.Mutex
	state    DisplayState
	sceneID  string
	sess     *session.Session
	readOnly bool
}

func NewSynchronizer(cfg Config) *Synchronizer {
	s := &Synchronizer{
		clientID: cfg.ClientID,
		store:    cfg.Store,
		sched:    cfg.Scheduler,
		dir:      cfg.Directory,
		owner:    cfg.Owner,
		surface:  cfg.Surface,
		dial:     cfg.Dial,
		coord:    cfg.Coordinator,
		state:    NoScene,
	}
	// All scheduled saves obey the suspend flag through a single gate
	cfg.Scheduler.SetWriteGate(func() bool {
		return !s.coord.WritesSuspended()
	})
	return s
}

func (s *Synchronizer) State() DisplayState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SceneID returns the scene currently displayed (or loading)
func (s *Synchronizer) SceneID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sceneID
}

// RoomID is derived from the current session; empty outside collaboration
func (s *Synchronizer) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return ""
	}
	return s.sess.RoomID()
}

// Coordinator exposes the logout coordinator owning the suspend flag
func (s *Synchronizer) Coordinator() *Coordinator {
	return s.coord
}

// ShowScene displays a scene, switching away from the current one if
// needed. On a load failure the display stays in Loading and the error is
// returned so the caller can retry; an empty canvas is never presented as
// authoritative content.
func (s *Synchronizer) ShowScene(ctx context.Context, req Request) error {
	s.mu.Lock()
	prev := s.sess
	s.sess = nil
	s.state = Loading
	s.sceneID = req.SceneID
	s.mu.Unlock()

	// Block edits while loading. Visible content is left alone to avoid
	// a blank frame; it is replaced when the new scene's content lands.
	s.surface.SetEditsBlocked(true)

	// Leave captures the old room's content synchronously and cancels
	// its pending save before returning; only its final flush runs in
	// the background. The surface is therefore safe to reuse below.
	if prev != nil {
		prev.Leave()
	}

	desc := access.Resolve(req.ActorID, req.Context)
	if !desc.CanView {
		s.mu.Lock()
		s.state = NoScene
		s.sceneID = ""
		s.mu.Unlock()
		return ErrAccessDenied
	}

	if desc.CanCollaborate {
		return s.joinRoom(ctx, req, desc)
	}
	return s.loadFromOwner(ctx, req, desc)
}

func (s *Synchronizer) joinRoom(ctx context.Context, req Request, desc access.Descriptor) error {
	ref, found, err := s.dir.Lookup(req.SceneID)
	if err != nil {
		return err
	}

	mode := session.AutoCollab
	if !found {
		ref, err = s.provisionRoom(ctx, req.SceneID)
		if err != nil {
			return err
		}
		mode = session.NewRoom
	} else if req.Entry == EntryLink {
		mode = session.ExistingRoom
	} else {
		persistedAt, err := s.store.LastPersistedAt(ref.RoomID)
		if err != nil {
			return err
		}
		if persistedAt.IsZero() {
			// A binding whose room has no snapshot means the seed save
			// never landed, e.g. a logout cancelled it inside the
			// debounce window. Re-stage the scene's content so the room
			// seeds from it rather than from an empty canvas.
			if err := s.stageSceneContent(ctx, req.SceneID); err != nil {
				return err
			}
			mode = session.NewRoom
		}
	}

	sess := session.New(session.Config{
		ClientID:        s.clientID,
		Store:           s.store,
		Scheduler:       s.sched,
		Dial:            s.dial,
		Surface:         s.surface,
		WritesSuspended: s.coord.WritesSuspended,
	})

	if err := sess.Join(ctx, ref.RoomID, ref.Key, mode); err != nil {
		// Stay in Loading; the caller may retry
		return err
	}

	s.mu.Lock()
	s.sess = sess
	s.readOnly = !desc.CanEdit
	s.state = Ready
	s.mu.Unlock()

	s.surface.SetEditsBlocked(!desc.CanEdit)
	log.Printf("Scene %s ready (room %s, mode %d)", req.SceneID, ref.RoomID, mode)
	return nil
}

// provisionRoom lazily creates a room for a scene that has none: fresh id
// and key, the scene's own content staged as the seed, association
// persisted. A new room must never be seeded with another scene's content.
func (s *Synchronizer) provisionRoom(ctx context.Context, sceneID string) (RoomRef, error) {
	key, err := store.NewKey()
	if err != nil {
		return RoomRef{}, err
	}
	ref := RoomRef{RoomID: uuid.NewString(), Key: key}

	// Stage first: if the scene's content cannot be fetched, no binding
	// is left behind and the whole open can be retried cleanly
	if err := s.stageSceneContent(ctx, sceneID); err != nil {
		return RoomRef{}, err
	}

	if err := s.store.CreateRoom(ref.RoomID); err != nil {
		return RoomRef{}, err
	}
	if err := s.dir.Bind(sceneID, ref); err != nil {
		return RoomRef{}, err
	}

	log.Printf("Provisioned room %s for scene %s", ref.RoomID, sceneID)
	return ref, nil
}

// stageSceneContent puts the scene's own content on the surface so it
// becomes the room's seed, replacing whatever the surface still shows
func (s *Synchronizer) stageSceneContent(ctx context.Context, sceneID string) error {
	content, err := s.owner.Get(ctx, sceneID)
	if err != nil {
		return fmt.Errorf("stage scene %s content: %w", sceneID, err)
	}
	s.surface.Clear()
	if len(content) > 0 {
		s.surface.ApplyContent(content)
	}
	return nil
}

func (s *Synchronizer) loadFromOwner(ctx context.Context, req Request, desc access.Descriptor) error {
	content, err := s.owner.Get(ctx, req.SceneID)
	if err != nil {
		// Stay in Loading; never present an empty canvas as if it
		// were the scene's content
		return fmt.Errorf("load scene %s: %w", req.SceneID, err)
	}

	s.surface.ApplyContent(content)

	s.mu.Lock()
	s.readOnly = !desc.CanEdit
	s.state = Ready
	s.mu.Unlock()

	s.surface.SetEditsBlocked(!desc.CanEdit)
	return nil
}

// Broadcast forwards a delta to the current room session, if any
func (s *Synchronizer) Broadcast(delta []byte) {
	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()
	if sess != nil {
		sess.Broadcast(delta)
	}
}

// PersistChange routes a content change to the room's debounced save, or
// to the owner-store autosave path outside collaboration. Both paths
// refuse while writes are suspended.
func (s *Synchronizer) PersistChange(ctx context.Context, content []byte) {
	s.mu.Lock()
	sess := s.sess
	sceneID := s.sceneID
	state := s.state
	readOnly := s.readOnly
	s.mu.Unlock()

	if sess != nil {
		sess.PersistChange(content)
		return
	}

	if state != Ready || readOnly || s.coord.WritesSuspended() {
		return
	}
	if err := s.owner.Put(ctx, sceneID, content); err != nil {
		log.Printf("Autosave for scene %s failed: %v", sceneID, err)
	}
}

// CloseScene leaves the current room, if any, and returns to NoScene
func (s *Synchronizer) CloseScene() {
	s.mu.Lock()
	sess := s.sess
	s.sess = nil
	s.sceneID = ""
	s.state = NoScene
	s.mu.Unlock()

	if sess != nil {
		sess.Leave()
	}
	s.surface.SetEditsBlocked(true)
}
