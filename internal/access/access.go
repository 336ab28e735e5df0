package access

// WorkspaceKind distinguishes a user's personal workspace from a shared one
type WorkspaceKind int

const (
	WorkspacePersonal WorkspaceKind = iota
	WorkspaceShared
)

// CollectionKind distinguishes private collections from team-accessible ones
type CollectionKind int

const (
	CollectionPrivate CollectionKind = iota
	CollectionTeam
)

// Level is the access level granted on a team collection
type Level int

const (
	LevelNone Level = iota
	LevelView
	LevelEdit
)

// Role is the actor's role within the workspace
type Role int

const (
	RoleMember Role = iota
	RoleAdmin
)

// SceneContext carries everything needed to decide access for one scene
type SceneContext struct {
	OwnerID    string
	Workspace  WorkspaceKind
	Collection CollectionKind
	Level      Level
	Role       Role
}

// Descriptor is the permission triple for an actor over a scene.
// CanCollaborate implies CanView; CanEdit is independent of CanCollaborate.
type Descriptor struct {
	CanView        bool
	CanEdit        bool
	CanCollaborate bool
}

// Denied is the deny-by-default descriptor
var Denied = Descriptor{}

// Resolve computes the access descriptor for an actor over a scene.
// Rules are evaluated in precedence order; first match wins. It is pure:
// same inputs always produce the same descriptor, and it never touches
// storage, so calling it on every scene open is fine.
func Resolve(actorID string, sc SceneContext) Descriptor {
	// Unresolvable context denies everything
	if actorID == "" {
		return Denied
	}

	isOwner := actorID == sc.OwnerID

	// Rule 1: personal workspace, owner-only, never collaborative
	if sc.Workspace == WorkspacePersonal {
		return Descriptor{CanView: isOwner, CanEdit: isOwner}
	}

	if sc.Workspace != WorkspaceShared {
		return Denied
	}

	// Rule 2: private collection inside a shared workspace behaves like
	// a personal scene
	if sc.Collection == CollectionPrivate {
		return Descriptor{CanView: isOwner, CanEdit: isOwner}
	}

	if sc.Collection != CollectionTeam {
		return Denied
	}

	// Rules 3 and 4: team collection, level decides. Admins get edit
	// regardless of the granted level.
	level := sc.Level
	if sc.Role == RoleAdmin {
		level = LevelEdit
	}

	switch level {
	case LevelEdit:
		return Descriptor{CanView: true, CanEdit: true, CanCollaborate: true}
	case LevelView:
		return Descriptor{CanView: true}
	}

	// Rule 5: deny by default
	return Denied
}
