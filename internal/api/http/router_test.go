package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/theatre-service/internal/api/http/handlers"
	"github.com/spec-kit/theatre-service/internal/auth"
	"github.com/spec-kit/theatre-service/internal/authz"
	"github.com/spec-kit/theatre-service/internal/domain"
	"github.com/spec-kit/theatre-service/internal/events"
	"github.com/spec-kit/theatre-service/internal/mailer"
	"github.com/spec-kit/theatre-service/internal/observability"
	"github.com/spec-kit/theatre-service/internal/service"
	"github.com/spec-kit/theatre-service/internal/testutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type inbox struct {
	mu   sync.Mutex
	msgs []mailer.Message
}

func (b *inbox) Enqueue(_ context.Context, msg mailer.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
	return nil
}

func (b *inbox) last(t *testing.T) mailer.Message {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.msgs) == 0 {
		t.Fatal("no mail queued")
	}
	return b.msgs[len(b.msgs)-1]
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type limiter struct{ allow bool }

func (l limiter) Allow(context.Context, string) (bool, error) { return l.allow, nil }

type server struct {
	app     *fiber.App
	store   *testutil.Store
	clock   *testutil.Clock
	tokens  *auth.TokenCodec
	mail    *inbox
	metrics *observability.Metrics
	theatre *domain.Theatre
}

func newServer(t *testing.T, redisErr error, allowLogin bool) *server {
	t.Helper()
	store := testutil.NewStore()
	clock := testutil.NewClock(epoch)
	tokens, err := auth.NewTokenCodec(auth.TokenSecrets{
		User:   []byte("u"),
		Email:  []byte("e"),
		Ticket: []byte("t"),
	}, auth.TokenTTLs{User: 48 * time.Hour, Email: 24 * time.Hour}, clock.Now)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	catalog := authz.NewCatalog(store.Roles(), nil)
	resolver := authz.NewResolver(catalog, store.Assignments())
	dispatcher := events.NewInMemoryDispatcher()
	mail := &inbox{}
	service.NewNotificationService(dispatcher, mail, tokens, zap.NewNop(), "http://localhost:8080").RegisterHandlers()

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:   store.Users(),
		Tokens:     tokens,
		Passwords:  auth.NewPasswords(4),
		Dispatcher: dispatcher,
		Now:        clock.Now,
	})
	ledger := service.NewTicketLedger(service.TicketDependencies{
		TicketRepo:    store.Tickets(),
		ScreeningRepo: store.Screenings(),
		TheatreRepo:   store.Theatres(),
		UserRepo:      store.Users(),
		Resolver:      resolver,
		Tokens:        tokens,
		Dispatcher:    dispatcher,
		Now:           clock.Now,
	})
	roles := service.NewRoleService(service.RoleDependencies{
		TheatreRepo:    store.Theatres(),
		UserRepo:       store.Users(),
		AssignmentRepo: store.Assignments(),
		Catalog:        catalog,
		Resolver:       resolver,
	})

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("theatre-service", "test", map[string]handlers.Pinger{
			"postgres": pinger{},
			"redis":    pinger{err: redisErr},
		}),
		Auth:           handlers.NewAuthHandler(authService, limiter{allow: allowLogin}, zap.NewNop()),
		Users:          handlers.NewUserHandler(service.NewUserService(store.Users(), ledger)),
		Roles:          handlers.NewRoleHandler(roles),
		Tickets:        handlers.NewTicketHandler(ledger),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users()),
	})

	return &server{
		app:     app,
		store:   store,
		clock:   clock,
		tokens:  tokens,
		mail:    mail,
		metrics: metrics,
		theatre: store.AddTheatre("Odeon"),
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *server) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, env
}

func (s *server) userToken(t *testing.T, roles ...domain.RoleKind) (*domain.User, string) {
	t.Helper()
	u := s.store.AddUser(domain.User{IsActivated: true})
	for _, kind := range roles {
		s.store.Grant(u.ID, kind, s.theatre.ID)
	}
	token, _, err := s.tokens.IssueUser(u.ID)
	if err != nil {
		t.Fatalf("IssueUser: %v", err)
	}
	return u, token
}

func wantStatus(t *testing.T, what string, got int, env envelope, want int, code string) {
	t.Helper()
	if got != want {
		t.Fatalf("%s: status %d (%+v), want %d", what, got, env.Error, want)
	}
	if code == "" {
		return
	}
	if env.Error == nil || env.Error.Code != code {
		t.Fatalf("%s: error %+v, want code %s", what, env.Error, code)
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t, nil, true)
	status, _ := s.do(t, http.MethodGet, "/health/live", "", nil)
	wantStatus(t, "live", status, envelope{}, http.StatusOK, "")
	status, _ = s.do(t, http.MethodGet, "/health/ready", "", nil)
	wantStatus(t, "ready", status, envelope{}, http.StatusOK, "")

	down := newServer(t, errors.New("connection refused"), true)
	status, env := down.do(t, http.MethodGet, "/health/ready", "", nil)
	wantStatus(t, "ready with redis down", status, env, http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE")
	if env.Error.Details["redis"] != "connection refused" || env.Error.Details["postgres"] != "ok" {
		t.Fatalf("details = %+v", env.Error.Details)
	}
}

func TestRegisterVerifyLogin(t *testing.T) {
	s := newServer(t, nil, true)

	status, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"first_name": "Ana", "last_name": "Lima", "email": "ana@example.com",
		"username": "ana", "password": "correct horse",
	})
	wantStatus(t, "register", status, env, http.StatusCreated, "")

	status, env = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"login": "ana", "password": "correct horse"})
	wantStatus(t, "login before verify", status, env, http.StatusUnauthorized, "EMAIL_NOT_VERIFIED")

	body := s.mail.last(t).Body
	link := strings.Fields(body[strings.Index(body, "http://"):])[0]
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse %q: %v", link, err)
	}
	status, env = s.do(t, http.MethodGet, u.RequestURI(), "", nil)
	wantStatus(t, "verify", status, env, http.StatusOK, "")

	status, env = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"login": "ana@example.com", "password": "correct horse"})
	wantStatus(t, "login", status, env, http.StatusOK, "")
	var login struct {
		Auth struct {
			Token string `json:"token"`
		} `json:"auth"`
	}
	if err := json.Unmarshal(env.Data, &login); err != nil || login.Auth.Token == "" {
		t.Fatalf("login data %s: %v", env.Data, err)
	}

	status, env = s.do(t, http.MethodGet, "/api/v1/user/@me", login.Auth.Token, nil)
	wantStatus(t, "me", status, env, http.StatusOK, "")
	var me struct {
		Username    string `json:"username"`
		IsActivated bool   `json:"is_activated"`
	}
	if err := json.Unmarshal(env.Data, &me); err != nil || me.Username != "ana" || !me.IsActivated {
		t.Fatalf("me = %s, %v", env.Data, err)
	}

	status, env = s.do(t, http.MethodDelete, "/api/v1/user/@me", login.Auth.Token, nil)
	wantStatus(t, "delete me", status, env, http.StatusNoContent, "")
	status, env = s.do(t, http.MethodGet, "/api/v1/user/@me", login.Auth.Token, nil)
	wantStatus(t, "me after delete", status, env, http.StatusUnauthorized, "NO_AUTH")
}

func TestRegisterValidationEnvelope(t *testing.T) {
	s := newServer(t, nil, true)
	status, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"email": "nope"})
	wantStatus(t, "register invalid", status, env, http.StatusBadRequest, "VALIDATION_FAILED")
	if _, ok := env.Error.Details["password"]; !ok {
		t.Fatalf("details %+v missing password", env.Error.Details)
	}
	_, counted := s.metrics.Snapshot()
	var total int64
	for key, n := range counted {
		if strings.HasSuffix(key, "|POST|VALIDATION_FAILED") {
			total += n
		}
	}
	if total != 1 {
		t.Fatalf("validation error counter = %d, want 1 (%v)", total, counted)
	}
}

func TestLoginRateLimited(t *testing.T) {
	s := newServer(t, nil, false)
	status, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"login": "ana", "password": "x"})
	wantStatus(t, "limited login", status, env, http.StatusTooManyRequests, "RATE_LIMITED")
}

func TestTicketEndpoints(t *testing.T) {
	s := newServer(t, nil, true)
	screening := s.store.AddScreening(s.theatre.ID, epoch.Add(time.Hour))
	ticketType := s.store.AddTicketType(s.theatre.ID)
	_, buyer := s.userToken(t)
	_, checker := s.userToken(t, domain.RoleTicketChecker)
	_, manager := s.userToken(t, domain.RoleTicketManager)
	base := "/api/v1/theatre/" + s.theatre.ID.String() + "/ticket"

	issue := map[string]any{
		"theatre_screening_id": screening.ID.String(),
		"ticket_type_id":       ticketType.ID.String(),
		"seat_row":             2,
		"seat_column":          9,
	}
	status, env := s.do(t, http.MethodPost, base+"/issue", buyer, issue)
	wantStatus(t, "issue", status, env, http.StatusCreated, "")
	var issued struct {
		Ticket struct {
			ID   string `json:"id"`
			Used bool   `json:"used"`
		} `json:"ticket"`
		TicketJWT string `json:"ticket_jwt"`
	}
	if err := json.Unmarshal(env.Data, &issued); err != nil || issued.TicketJWT == "" {
		t.Fatalf("issue data %s: %v", env.Data, err)
	}
	q := "?ticket_jwt=" + url.QueryEscape(issued.TicketJWT)

	status, env = s.do(t, http.MethodGet, base+"/validate"+q, buyer, nil)
	wantStatus(t, "validate by holder", status, env, http.StatusForbidden, "INSUFFICIENT_PERMISSION")
	status, env = s.do(t, http.MethodGet, base+"/validate"+q, checker, nil)
	wantStatus(t, "validate by checker", status, env, http.StatusOK, "")

	status, env = s.do(t, http.MethodPost, base+"/consume"+q, checker, nil)
	wantStatus(t, "consume", status, env, http.StatusOK, "")
	status, env = s.do(t, http.MethodPost, base+"/consume"+q, checker, nil)
	wantStatus(t, "consume again", status, env, http.StatusConflict, "CONFLICT")

	status, env = s.do(t, http.MethodPut, base+"/mark"+q+"&used=false", checker, nil)
	wantStatus(t, "mark unused", status, env, http.StatusOK, "")
	status, env = s.do(t, http.MethodPut, base+"/mark"+q, checker, nil)
	wantStatus(t, "mark without used", status, env, http.StatusBadRequest, "VALIDATION_FAILED")

	status, env = s.do(t, http.MethodGet, base+"/query?used=false", manager, nil)
	wantStatus(t, "query", status, env, http.StatusOK, "")
	var listed []json.RawMessage
	if err := json.Unmarshal(env.Data, &listed); err != nil || len(listed) != 1 {
		t.Fatalf("query data %s: %v", env.Data, err)
	}

	status, env = s.do(t, http.MethodGet, base+"/validate?ticket_jwt=garbage", checker, nil)
	wantStatus(t, "garbage ticket", status, env, http.StatusBadRequest, "INVALID")
	status, env = s.do(t, http.MethodGet, base+"/validate"+q, "", nil)
	wantStatus(t, "anonymous", status, env, http.StatusUnauthorized, "NO_AUTH")
	status, env = s.do(t, http.MethodGet, "/api/v1/theatre/not-a-uuid/ticket/validate"+q, checker, nil)
	wantStatus(t, "bad theatre id", status, env, http.StatusBadRequest, "VALIDATION_FAILED")

	status, env = s.do(t, http.MethodGet, "/api/v1/user/@me/tickets", buyer, nil)
	wantStatus(t, "my tickets", status, env, http.StatusOK, "")

	s.clock.Set(screening.StartingTime.Add(3*time.Hour + time.Second))
	status, env = s.do(t, http.MethodGet, base+"/validate"+q, checker, nil)
	wantStatus(t, "expired ticket", status, env, http.StatusUnauthorized, "EXPIRED")
}

func TestRoleEndpoints(t *testing.T) {
	s := newServer(t, nil, true)
	_, owner := s.userToken(t, domain.RoleTheatreOwner)
	_, checker := s.userToken(t, domain.RoleTicketChecker)
	staff, _ := s.userToken(t)
	base := "/api/v1/theatre/" + s.theatre.ID.String() + "/role"

	status, env := s.do(t, http.MethodGet, "/api/v1/role/available", "", nil)
	wantStatus(t, "available", status, env, http.StatusOK, "")

	update := map[string]any{"changes": []map[string]string{{
		"action":          "create",
		"user_id":         staff.ID.String(),
		"theatre_role_id": s.store.RoleID(domain.RoleTicketChecker).String(),
	}}}
	status, env = s.do(t, http.MethodPut, base+"/update", checker, update)
	wantStatus(t, "update by checker", status, env, http.StatusForbidden, "INSUFFICIENT_PERMISSION")
	status, env = s.do(t, http.MethodPut, base+"/update", owner, update)
	wantStatus(t, "update by owner", status, env, http.StatusNoContent, "")

	status, env = s.do(t, http.MethodGet, base+"/all", owner, nil)
	wantStatus(t, "list", status, env, http.StatusOK, "")
	var rows []struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		t.Fatalf("list data %s: %v", env.Data, err)
	}
	found := false
	for _, r := range rows {
		if r.UserID == staff.ID.String() && r.Role == domain.RoleTicketChecker.String() {
			found = true
		}
	}
	if !found {
		t.Fatalf("granted role missing from %s", env.Data)
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newServer(t, nil, true)
	status, env := s.do(t, http.MethodGet, "/api/v1/nowhere", "", nil)
	wantStatus(t, "unknown route", status, env, http.StatusNotFound, "NOT_FOUND")
}
