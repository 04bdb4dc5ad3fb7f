package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/theatre-service/internal/auth"
	"github.com/spec-kit/theatre-service/internal/authz"
	"github.com/spec-kit/theatre-service/internal/domain"
	"github.com/spec-kit/theatre-service/internal/events"
	"github.com/spec-kit/theatre-service/internal/mailer"
	"github.com/spec-kit/theatre-service/internal/testutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type captureQueue struct {
	mu   sync.Mutex
	msgs []mailer.Message
}

func (q *captureQueue) Enqueue(_ context.Context, msg mailer.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *captureQueue) Sent() []mailer.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]mailer.Message(nil), q.msgs...)
}

type env struct {
	store      *testutil.Store
	clock      *testutil.Clock
	tokens     *auth.TokenCodec
	dispatcher events.Dispatcher
	mail       *captureQueue

	auth   *AuthService
	ledger *TicketLedger
	roles  *RoleService
	users  *UserService

	theatre    *domain.Theatre
	screening  *domain.Screening
	ticketType *domain.TicketType
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := testutil.NewStore()
	clock := testutil.NewClock(epoch)
	tokens, err := auth.NewTokenCodec(auth.TokenSecrets{
		User:   []byte("user-secret"),
		Email:  []byte("email-secret"),
		Ticket: []byte("ticket-secret"),
	}, auth.TokenTTLs{User: 48 * time.Hour, Email: 24 * time.Hour}, clock.Now)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	catalog := authz.NewCatalog(store.Roles(), nil)
	resolver := authz.NewResolver(catalog, store.Assignments())
	dispatcher := events.NewInMemoryDispatcher()
	mail := &captureQueue{}
	NewNotificationService(dispatcher, mail, tokens, zap.NewNop(), "https://tickets.example").RegisterHandlers()

	ledger := NewTicketLedger(TicketDependencies{
		TicketRepo:     store.Tickets(),
		ScreeningRepo:  store.Screenings(),
		TheatreRepo:    store.Theatres(),
		UserRepo:       store.Users(),
		Resolver:       resolver,
		Tokens:         tokens,
		Dispatcher:     dispatcher,
		Expiry:         ValidAfterStart(3 * time.Hour),
		SelfIssueLimit: 3,
		Now:            clock.Now,
	})

	theatre := store.AddTheatre("Odeon")
	return &env{
		store:      store,
		clock:      clock,
		tokens:     tokens,
		dispatcher: dispatcher,
		mail:       mail,
		auth: NewAuthService(AuthDependencies{
			UserRepo:   store.Users(),
			Tokens:     tokens,
			Passwords:  auth.NewPasswords(4),
			Dispatcher: dispatcher,
			Now:        clock.Now,
		}),
		ledger: ledger,
		roles: NewRoleService(RoleDependencies{
			TheatreRepo:    store.Theatres(),
			UserRepo:       store.Users(),
			AssignmentRepo: store.Assignments(),
			Catalog:        catalog,
			Resolver:       resolver,
		}),
		users:      NewUserService(store.Users(), ledger),
		theatre:    theatre,
		screening:  store.AddScreening(theatre.ID, epoch.Add(2*time.Hour)),
		ticketType: store.AddTicketType(theatre.ID),
	}
}

func (e *env) user(t *testing.T, roles ...domain.RoleKind) *domain.User {
	t.Helper()
	u := e.store.AddUser(domain.User{IsActivated: true})
	for _, kind := range roles {
		e.store.Grant(u.ID, kind, e.theatre.ID)
	}
	return u
}

func (e *env) input(owner *uuid.UUID) IssueInput {
	return IssueInput{
		TheatreID:    e.theatre.ID,
		OwnerID:      owner,
		ScreeningID:  e.screening.ID,
		TicketTypeID: e.ticketType.ID,
		SeatRow:      4,
		SeatColumn:   7,
	}
}

func wantErr(t *testing.T, what string, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("%s: got %v, want %v", what, err, target)
	}
}
