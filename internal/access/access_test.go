package access

import "testing"

func TestPersonalWorkspace(t *testing.T) {
	sc := SceneContext{
		OwnerID:   "alice",
		Workspace: WorkspacePersonal,
	}

	d := Resolve("alice", sc)
	if !d.CanView || !d.CanEdit {
		t.Errorf("Owner should view and edit own personal scene, got %+v", d)
	}
	if d.CanCollaborate {
		t.Error("Personal scenes are never collaborative")
	}

	d = Resolve("bob", sc)
	if d != Denied {
		t.Errorf("Non-owner should be denied on personal scene, got %+v", d)
	}
}

func TestPrivateCollectionInSharedWorkspace(t *testing.T) {
	sc := SceneContext{
		OwnerID:    "alice",
		Workspace:  WorkspaceShared,
		Collection: CollectionPrivate,
		// Even an edit grant on the surrounding team must not leak in
		Level: LevelEdit,
	}

	d := Resolve("alice", sc)
	if !d.CanView || !d.CanEdit || d.CanCollaborate {
		t.Errorf("Owner of private collection scene: got %+v", d)
	}

	d = Resolve("bob", sc)
	if d != Denied {
		t.Errorf("Private collection should deny non-owner, got %+v", d)
	}
}

func TestTeamCollectionEditAccess(t *testing.T) {
	sc := SceneContext{
		OwnerID:    "alice",
		Workspace:  WorkspaceShared,
		Collection: CollectionTeam,
		Level:      LevelEdit,
	}

	d := Resolve("bob", sc)
	if !d.CanView || !d.CanEdit || !d.CanCollaborate {
		t.Errorf("Editor on team collection should get full access, got %+v", d)
	}
}

func TestTeamCollectionAdminImpliesEdit(t *testing.T) {
	sc := SceneContext{
		OwnerID:    "alice",
		Workspace:  WorkspaceShared,
		Collection: CollectionTeam,
		Level:      LevelView,
		Role:       RoleAdmin,
	}

	d := Resolve("carol", sc)
	if !d.CanView || !d.CanEdit || !d.CanCollaborate {
		t.Errorf("Admin should collaborate even with a view grant, got %+v", d)
	}
}

func TestTeamCollectionViewerOnly(t *testing.T) {
	sc := SceneContext{
		OwnerID:    "alice",
		Workspace:  WorkspaceShared,
		Collection: CollectionTeam,
		Level:      LevelView,
	}

	d := Resolve("bob", sc)
	if !d.CanView {
		t.Error("Viewer should be able to view")
	}
	if d.CanEdit || d.CanCollaborate {
		t.Errorf("Viewer must not edit or collaborate, got %+v", d)
	}
}

func TestDenyByDefault(t *testing.T) {
	cases := []struct {
		name  string
		actor string
		sc    SceneContext
	}{
		{"empty actor", "", SceneContext{OwnerID: "alice", Workspace: WorkspaceShared, Collection: CollectionTeam, Level: LevelEdit}},
		{"no level on team collection", "bob", SceneContext{OwnerID: "alice", Workspace: WorkspaceShared, Collection: CollectionTeam}},
		{"unknown workspace kind", "bob", SceneContext{OwnerID: "alice", Workspace: WorkspaceKind(99)}},
		{"unknown collection kind", "bob", SceneContext{OwnerID: "alice", Workspace: WorkspaceShared, Collection: CollectionKind(99)}},
	}

	for _, tc := range cases {
		if d := Resolve(tc.actor, tc.sc); d != Denied {
			t.Errorf("%s: expected deny-by-default, got %+v", tc.name, d)
		}
	}
}

func TestCollaborateImpliesView(t *testing.T) {
	// Sweep the context space; any descriptor with CanCollaborate must
	// also carry CanView.
	actors := []string{"", "alice", "bob"}
	for _, actor := range actors {
		for ws := WorkspacePersonal; ws <= WorkspaceShared; ws++ {
			for col := CollectionPrivate; col <= CollectionTeam; col++ {
				for lvl := LevelNone; lvl <= LevelEdit; lvl++ {
					for role := RoleMember; role <= RoleAdmin; role++ {
						sc := SceneContext{OwnerID: "alice", Workspace: ws, Collection: col, Level: lvl, Role: role}
						d := Resolve(actor, sc)
						if d.CanCollaborate && !d.CanView {
							t.Fatalf("CanCollaborate without CanView for actor=%q ctx=%+v", actor, sc)
						}
					}
				}
			}
		}
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	sc := SceneContext{OwnerID: "alice", Workspace: WorkspaceShared, Collection: CollectionTeam, Level: LevelEdit}
	first := Resolve("bob", sc)
	for i := 0; i < 100; i++ {
		if d := Resolve("bob", sc); d != first {
			t.Fatalf("Resolve not deterministic: %+v vs %+v", d, first)
		}
	}
}
