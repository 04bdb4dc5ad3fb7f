package domain

import "testing"

func TestRoleKindNamesRoundTrip(t *testing.T) {
	seen := map[string]bool{}
	for _, kind := range AllRoleKinds() {
		name := kind.String()
		if name == "Unknown" {
			t.Fatalf("kind %d has no name", kind)
		}
		if seen[name] {
			t.Fatalf("name %q used by two kinds", name)
		}
		seen[name] = true

		parsed, ok := ParseRoleKind(name)
		if !ok || parsed != kind {
			t.Errorf("ParseRoleKind(%q) = %v, %v; want %v, true", name, parsed, ok, kind)
		}
		if !kind.Valid() {
			t.Errorf("%v.Valid() = false", kind)
		}
	}
	if len(seen) != 5 {
		t.Errorf("got %d role kinds, want 5", len(seen))
	}
}

func TestParseRoleKindRejectsUnknownNames(t *testing.T) {
	for _, name := range []string{"", "theatreowner", "Admin", "TheatreOwner "} {
		if kind, ok := ParseRoleKind(name); ok {
			t.Errorf("ParseRoleKind(%q) = %v, true; want false", name, kind)
		}
	}
	if RoleKind(0).Valid() || RoleKind(99).Valid() {
		t.Error("out of range kind reported valid")
	}
}
