package metadata

import "testing"

func TestRegistry_LoadReplacesWholesale(t *testing.T) {
	reg := NewRegistry()
	reg.Load(
		[]*Entity{{ID: "e1", Name: "Invoice"}},
		[]*Property{{ID: "p1", EntityID: "e1", Name: "amount", Type: TypeNumber}},
	)

	if reg.GetEntity("e1") == nil || reg.GetProperty("p1") == nil {
		t.Fatal("expected loaded entries resolvable")
	}

	reg.Load(
		[]*Entity{{ID: "e2", Name: "Customer"}},
		[]*Property{{ID: "p2", EntityID: "e2", Name: "name", Type: TypeText}},
	)
	if reg.GetEntity("e1") != nil || reg.GetProperty("p1") != nil {
		t.Fatal("expected previous load fully replaced")
	}
	if reg.GetEntity("e2") == nil {
		t.Fatal("expected new entries resolvable")
	}
}

func TestRegistry_KeepsSoftDeletedProperties(t *testing.T) {
	reg := NewRegistry()
	reg.Load(nil, []*Property{{ID: "p1", EntityID: "e1", Name: "old", Type: TypeText, IsDeleted: true}})

	p := reg.GetProperty("p1")
	if p == nil {
		t.Fatal("soft-deleted property must stay resolvable")
	}
	if !p.IsDeleted {
		t.Fatal("expected IsDeleted flag preserved")
	}
}

func TestRegistry_PropertiesForKeepsLoadOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Load(nil, []*Property{
		{ID: "p1", EntityID: "e1", Name: "b", Type: TypeText},
		{ID: "p2", EntityID: "e1", Name: "a", Type: TypeText},
		{ID: "p3", EntityID: "e2", Name: "c", Type: TypeText},
	})

	props := reg.PropertiesFor("e1")
	if len(props) != 2 || props[0].ID != "p1" || props[1].ID != "p2" {
		t.Fatalf("expected load order preserved, got %v", props)
	}
}

func TestPropertyType_Valid(t *testing.T) {
	for _, pt := range []PropertyType{TypeText, TypeNumber, TypeBoolean, TypeDate, TypeDateTime, TypeTime, TypeEntity} {
		if !pt.Valid() {
			t.Fatalf("expected %s valid", pt)
		}
	}
	if PropertyType("blob").Valid() {
		t.Fatal("expected unknown type invalid")
	}
}

func TestUserContext_Roles(t *testing.T) {
	def := &UserContext{ID: "u1", Roles: []string{RoleDefault}}
	cm := &UserContext{ID: "u2", Roles: []string{RoleContentManager}}
	admin := &UserContext{ID: "u3", Roles: []string{RoleAdmin}}

	if def.CanEditContent() {
		t.Fatal("default role must not edit content")
	}
	if !cm.CanEditContent() || !admin.CanEditContent() {
		t.Fatal("content managers and admins edit content")
	}
	if cm.IsAdmin() {
		t.Fatal("content manager is not admin")
	}
	if !admin.IsAdmin() {
		t.Fatal("admin is admin")
	}
}
