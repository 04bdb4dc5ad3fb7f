// Package testutil provides in-memory implementations of the repository
// interfaces for tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/theatre-service/internal/domain"
	"github.com/spec-kit/theatre-service/internal/repository"
)

// Store holds every table in memory behind one mutex.
type Store struct {
	mu          sync.Mutex
	users       map[uuid.UUID]domain.User
	roles       []domain.RoleRecord
	assignments map[domain.UserTheatreRole]struct{}
	theatres    map[uuid.UUID]domain.Theatre
	screenings  map[uuid.UUID]domain.Screening
	ticketTypes map[uuid.UUID]domain.TicketType
	tickets     map[uuid.UUID]domain.Ticket
	ticketOrder []uuid.UUID
}

// NewStore returns a store with every RoleKind seeded.
func NewStore() *Store {
	s := &Store{
		users:       map[uuid.UUID]domain.User{},
		assignments: map[domain.UserTheatreRole]struct{}{},
		theatres:    map[uuid.UUID]domain.Theatre{},
		screenings:  map[uuid.UUID]domain.Screening{},
		ticketTypes: map[uuid.UUID]domain.TicketType{},
		tickets:     map[uuid.UUID]domain.Ticket{},
	}
	for _, kind := range domain.AllRoleKinds() {
		s.roles = append(s.roles, domain.RoleRecord{ID: uuid.New(), Name: kind.String()})
	}
	return s
}

// RemoveRole drops the seeded record for kind.
func (s *Store) RemoveRole(kind domain.RoleKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.roles[:0]
	for _, role := range s.roles {
		if role.Name != kind.String() {
			kept = append(kept, role)
		}
	}
	s.roles = kept
}

// RoleID returns the seeded id for kind, or uuid.Nil.
func (s *Store) RoleID(kind domain.RoleKind) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range s.roles {
		if role.Name == kind.String() {
			return role.ID
		}
	}
	return uuid.Nil
}

// AddUser inserts u, assigning an id when it has none.
func (s *Store) AddUser(u domain.User) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Username == "" {
		u.Username = u.ID.String()
	}
	if u.Email == "" {
		u.Email = u.ID.String() + "@example.com"
	}
	s.users[u.ID] = u
	return &u
}

// User returns the raw row, including soft-deleted users.
func (s *Store) User(id uuid.UUID) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

// AddTheatre inserts a theatre.
func (s *Store) AddTheatre(name string) *domain.Theatre {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := domain.Theatre{ID: uuid.New(), Name: name}
	s.theatres[t.ID] = t
	return &t
}

// DeleteTheatre soft-deletes the theatre.
func (s *Store) DeleteTheatre(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.theatres[id]
	t.IsDeleted = true
	s.theatres[id] = t
}

// AddScreening inserts a screening in theatreID starting at start.
func (s *Store) AddScreening(theatreID uuid.UUID, start time.Time) *domain.Screening {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := domain.Screening{ID: uuid.New(), TheatreID: theatreID, HallID: uuid.New(), MovieID: uuid.New(), StartingTime: start}
	s.screenings[sc.ID] = sc
	return &sc
}

// AddTicketType inserts a ticket type sold by theatreID.
func (s *Store) AddTicketType(theatreID uuid.UUID) *domain.TicketType {
	s.mu.Lock()
	defer s.mu.Unlock()
	tt := domain.TicketType{ID: uuid.New(), TheatreID: theatreID, Name: "adult", Currency: "EUR", PriceMinor: 1200}
	s.ticketTypes[tt.ID] = tt
	return &tt
}

// Grant assigns kind to userID within theatreID.
func (s *Store) Grant(userID uuid.UUID, kind domain.RoleKind, theatreID uuid.UUID) {
	roleID := s.RoleID(kind)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[domain.UserTheatreRole{UserID: userID, RoleID: roleID, TheatreID: theatreID}] = struct{}{}
}

// Ticket returns the stored ticket.
func (s *Store) Ticket(id uuid.UUID) (domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	return t, ok
}

// Users returns the UserRepository view.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// Roles returns the RoleRepository view.
func (s *Store) Roles() repository.RoleRepository { return roleRepo{s} }

// Assignments returns the UserTheatreRoleRepository view.
func (s *Store) Assignments() repository.UserTheatreRoleRepository { return assignmentRepo{s} }

// Theatres returns the TheatreRepository view.
func (s *Store) Theatres() repository.TheatreRepository { return theatreRepo{s} }

// Screenings returns the ScreeningRepository view.
func (s *Store) Screenings() repository.ScreeningRepository { return screeningRepo{s} }

// Tickets returns the TicketRepository view.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, user.Email) || existing.Username == user.Username {
			return repository.ErrConflict
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.IsActivated = false
	user.IsDeleted = false
	r.s.users[user.ID] = *user
	return nil
}

func (r userRepo) find(match func(domain.User) bool) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if !u.IsDeleted && match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.ID == id })
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r userRepo) Activate(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok || u.IsDeleted {
		return false, pgx.ErrNoRows
	}
	if u.IsActivated {
		return false, nil
	}
	u.IsActivated = true
	r.s.users[id] = u
	return true, nil
}

func (r userRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok || u.IsDeleted {
		return pgx.ErrNoRows
	}
	u.IsDeleted = true
	r.s.users[id] = u
	return nil
}

type roleRepo struct{ s *Store }

func (r roleRepo) GetByName(_ context.Context, name string) (*domain.RoleRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, role := range r.s.roles {
		if role.Name == name {
			found := role
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r roleRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.RoleRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, role := range r.s.roles {
		if role.ID == id {
			found := role
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r roleRepo) List(_ context.Context) ([]domain.RoleRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := append([]domain.RoleRecord(nil), r.s.roles...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type assignmentRepo struct{ s *Store }

func (r assignmentRepo) Exists(_ context.Context, userID, roleID, theatreID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.assignments[domain.UserTheatreRole{UserID: userID, RoleID: roleID, TheatreID: theatreID}]
	return ok, nil
}

func (r assignmentRepo) ListByTheatre(_ context.Context, theatreID uuid.UUID) ([]domain.UserTheatreRole, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.UserTheatreRole
	for a := range r.s.assignments {
		if a.TheatreID == theatreID && !r.s.users[a.UserID].IsDeleted {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID.String() < out[j].UserID.String()
		}
		return out[i].RoleID.String() < out[j].RoleID.String()
	})
	return out, nil
}

func (r assignmentRepo) ApplyBatch(_ context.Context, grants, revokes []domain.UserTheatreRole) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range grants {
		r.s.assignments[g] = struct{}{}
	}
	for _, rv := range revokes {
		delete(r.s.assignments, rv)
	}
	return nil
}

type theatreRepo struct{ s *Store }

func (r theatreRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Theatre, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.theatres[id]
	if !ok || t.IsDeleted {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

type screeningRepo struct{ s *Store }

func (r screeningRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Screening, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sc, ok := r.s.screenings[id]
	if !ok || r.s.theatres[sc.TheatreID].IsDeleted {
		return nil, pgx.ErrNoRows
	}
	return &sc, nil
}

func (r screeningRepo) GetTicketType(_ context.Context, id uuid.UUID) (*domain.TicketType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tt, ok := r.s.ticketTypes[id]
	if !ok || tt.IsDeleted {
		return nil, pgx.ErrNoRows
	}
	return &tt, nil
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) CreateCapped(_ context.Context, ticket *domain.Ticket, limit int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if limit > 0 {
		owned := 0
		for _, t := range r.s.tickets {
			if t.OwnerID == ticket.OwnerID && t.ScreeningID == ticket.ScreeningID {
				owned++
			}
		}
		if owned >= limit {
			return repository.ErrLimitReached
		}
	}
	ticket.ID = uuid.New()
	ticket.Used = false
	r.s.tickets[ticket.ID] = *ticket
	r.s.ticketOrder = append(r.s.ticketOrder, ticket.ID)
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (r ticketRepo) GetInTheatre(_ context.Context, id, theatreID uuid.UUID) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	sc := r.s.screenings[t.ScreeningID]
	if sc.TheatreID != theatreID || r.s.theatres[theatreID].IsDeleted {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (r ticketRepo) SetUsed(_ context.Context, id uuid.UUID, used bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	previous := t.Used
	t.Used = used
	r.s.tickets[id] = t
	return previous, nil
}

func (r ticketRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Ticket
	for i := len(r.s.ticketOrder) - 1; i >= 0; i-- {
		t := r.s.tickets[r.s.ticketOrder[i]]
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r ticketRepo) ListWithFilter(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	eq := func(want *uuid.UUID, got uuid.UUID) bool { return want == nil || *want == got }

	var out []domain.Ticket
	for i := len(r.s.ticketOrder) - 1; i >= 0; i-- {
		t := r.s.tickets[r.s.ticketOrder[i]]
		sc := r.s.screenings[t.ScreeningID]
		if sc.TheatreID != f.TheatreID {
			continue
		}
		if !eq(f.OwnerID, t.OwnerID) || !eq(f.IssuerID, t.IssuerID) || !eq(f.ScreeningID, t.ScreeningID) ||
			!eq(f.TicketTypeID, t.TicketTypeID) || !eq(f.HallID, sc.HallID) || !eq(f.MovieID, sc.MovieID) {
			continue
		}
		if f.Used != nil && *f.Used != t.Used {
			continue
		}
		out = append(out, t)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
