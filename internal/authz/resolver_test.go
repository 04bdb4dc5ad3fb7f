package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/spec-kit/theatre-service/internal/domain"
	"github.com/spec-kit/theatre-service/internal/testutil"
	apperrors "github.com/spec-kit/theatre-service/pkg/util/errorutil"
)

type fixture struct {
	store    *testutil.Store
	resolver *Resolver
	theatre  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore()
	catalog := NewCatalog(store.Roles(), nil)
	return &fixture{
		store:    store,
		resolver: NewResolver(catalog, store.Assignments()),
		theatre:  store.AddTheatre("Odeon").ID,
	}
}

func TestSuperuserAlwaysAllowed(t *testing.T) {
	f := newFixture(t)
	su := f.store.AddUser(domain.User{IsSuperUser: true})
	ctx := context.Background()

	scopes := []uuid.UUID{f.theatre, uuid.New(), uuid.Nil}
	for _, scope := range scopes {
		if err := f.resolver.AuthorizeAny(ctx, su, scope, domain.RoleTheatreOwner); err != nil {
			t.Errorf("AuthorizeAny(superuser, %s): %v", scope, err)
		}
		if err := f.resolver.AuthorizeAll(ctx, su, scope, domain.AllRoleKinds()...); err != nil {
			t.Errorf("AuthorizeAll(superuser, %s): %v", scope, err)
		}
		if err := f.resolver.AuthorizeAny(ctx, su, scope); err != nil {
			t.Errorf("AuthorizeAny(superuser, %s, no roles): %v", scope, err)
		}
	}
}

func TestAnyVersusAll(t *testing.T) {
	f := newFixture(t)
	user := f.store.AddUser(domain.User{IsActivated: true})
	f.store.Grant(user.ID, domain.RoleTicketChecker, f.theatre)
	ctx := context.Background()

	if err := f.resolver.AuthorizeAny(ctx, user, f.theatre, domain.RoleTheatreOwner, domain.RoleTicketChecker); err != nil {
		t.Fatalf("AuthorizeAny: %v, want allowed", err)
	}
	err := f.resolver.AuthorizeAll(ctx, user, f.theatre, domain.RoleTheatreOwner, domain.RoleTicketChecker)
	if !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("AuthorizeAll: got %v, want ErrForbidden", err)
	}

	f.store.Grant(user.ID, domain.RoleTheatreOwner, f.theatre)
	if err := f.resolver.AuthorizeAll(ctx, user, f.theatre, domain.RoleTheatreOwner, domain.RoleTicketChecker); err != nil {
		t.Fatalf("AuthorizeAll with both roles: %v", err)
	}
}

func TestRolesAreTheatreScoped(t *testing.T) {
	f := newFixture(t)
	other := f.store.AddTheatre("Rex").ID
	user := f.store.AddUser(domain.User{IsActivated: true})
	f.store.Grant(user.ID, domain.RoleTheatreOwner, other)

	err := f.resolver.AuthorizeAny(context.Background(), user, f.theatre, domain.RoleTheatreOwner)
	if !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("role from another theatre: got %v, want ErrForbidden", err)
	}
}

func TestMissingRoleRecordIsNoMatch(t *testing.T) {
	f := newFixture(t)
	user := f.store.AddUser(domain.User{IsActivated: true})
	f.store.Grant(user.ID, domain.RoleTicketManager, f.theatre)
	f.store.RemoveRole(domain.RoleTheatreOwner)
	ctx := context.Background()

	if err := f.resolver.AuthorizeAny(ctx, user, f.theatre, domain.RoleTheatreOwner, domain.RoleTicketManager); err != nil {
		t.Fatalf("AuthorizeAny with one unseeded kind: %v, want allowed", err)
	}
	err := f.resolver.AuthorizeAny(ctx, user, f.theatre, domain.RoleTheatreOwner)
	if !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("AuthorizeAny with only unseeded kind: got %v, want ErrForbidden", err)
	}
	if errors.Is(err, apperrors.ErrServer) {
		t.Fatal("unseeded kind surfaced as server error")
	}
}

func TestAuthorizeEdgeCases(t *testing.T) {
	f := newFixture(t)
	deleted := f.store.AddUser(domain.User{IsDeleted: true})
	f.store.Grant(deleted.ID, domain.RoleTheatreOwner, f.theatre)
	plain := f.store.AddUser(domain.User{})
	f.store.Grant(plain.ID, domain.RoleTheatreOwner, f.theatre)
	ctx := context.Background()

	tests := []struct {
		name  string
		user  *domain.User
		scope uuid.UUID
		kinds []domain.RoleKind
		want  error
	}{
		{"nil user", nil, f.theatre, []domain.RoleKind{domain.RoleTheatreOwner}, apperrors.ErrNoAuth},
		{"deleted user", deleted, f.theatre, []domain.RoleKind{domain.RoleTheatreOwner}, apperrors.ErrForbidden},
		{"no scope", plain, uuid.Nil, []domain.RoleKind{domain.RoleTheatreOwner}, apperrors.ErrForbidden},
		{"empty role set", plain, f.theatre, nil, apperrors.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, mode := range []Combinator{Any, All} {
				err := f.resolver.Authorize(ctx, tt.user, tt.scope, mode, tt.kinds...)
				if !errors.Is(err, tt.want) {
					t.Errorf("mode %d: got %v, want %v", mode, err, tt.want)
				}
			}
		})
	}
}

type countingCache struct {
	entries map[string]domain.RoleRecord
	hits    int
}

func (c *countingCache) Get(_ context.Context, name string) (*domain.RoleRecord, bool) {
	role, ok := c.entries[name]
	if ok {
		c.hits++
	}
	return &role, ok
}

func (c *countingCache) Set(_ context.Context, role domain.RoleRecord) error {
	c.entries[role.Name] = role
	return nil
}

func TestCatalogLookupUsesCache(t *testing.T) {
	store := testutil.NewStore()
	cache := &countingCache{entries: map[string]domain.RoleRecord{}}
	catalog := NewCatalog(store.Roles(), cache)
	ctx := context.Background()

	first, ok, err := catalog.Lookup(ctx, domain.RoleTicketChecker)
	if err != nil || !ok {
		t.Fatalf("Lookup: %v, %v", ok, err)
	}
	second, ok, err := catalog.Lookup(ctx, domain.RoleTicketChecker)
	if err != nil || !ok {
		t.Fatalf("second Lookup: %v, %v", ok, err)
	}
	if first.ID != second.ID || first.ID != store.RoleID(domain.RoleTicketChecker) {
		t.Errorf("cached id %s differs from stored %s", second.ID, first.ID)
	}
	if cache.hits != 1 {
		t.Errorf("cache hits = %d, want 1", cache.hits)
	}

	if _, ok, err := catalog.Lookup(ctx, domain.RoleKind(42)); ok || err != nil {
		t.Errorf("Lookup(invalid kind) = %v, %v; want false, nil", ok, err)
	}
}

func TestCatalogKindOfAndAvailable(t *testing.T) {
	store := testutil.NewStore()
	catalog := NewCatalog(store.Roles(), nil)
	ctx := context.Background()

	kind, ok, err := catalog.KindOf(ctx, store.RoleID(domain.RoleUserManager))
	if err != nil || !ok || kind != domain.RoleUserManager {
		t.Fatalf("KindOf = %v, %v, %v; want UserManager", kind, ok, err)
	}
	if _, ok, err := catalog.KindOf(ctx, uuid.New()); ok || err != nil {
		t.Fatalf("KindOf(unknown id) = %v, %v; want false, nil", ok, err)
	}

	roles, err := catalog.Available(ctx)
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if len(roles) != len(domain.AllRoleKinds()) {
		t.Fatalf("Available returned %d roles, want %d", len(roles), len(domain.AllRoleKinds()))
	}
}
