package service

import (
	"context"
	"testing"

	"github.com/spec-kit/theatre-service/internal/domain"
	"github.com/spec-kit/theatre-service/internal/events"
	apperrors "github.com/spec-kit/theatre-service/pkg/util/errorutil"
)

func TestMeAndDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := e.user(t, domain.RoleTheatreOwner)

	me, err := e.users.Me(ctx, user)
	if err != nil || me.ID != user.ID {
		t.Fatalf("Me = %v, %v", me, err)
	}

	if err := e.users.SoftDelete(ctx, user); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	_, err = e.users.Me(ctx, user)
	wantErr(t, "Me after delete", err, apperrors.ErrNotFound)
	err = e.users.SoftDelete(ctx, user)
	wantErr(t, "second delete", err, apperrors.ErrNotFound)

	row, _ := e.store.User(user.ID)
	if !row.IsDeleted {
		t.Fatal("user row not flagged deleted")
	}
	deleted := row
	err = e.ledger.resolver.AuthorizeAny(ctx, &deleted, e.theatre.ID, domain.RoleTheatreOwner)
	wantErr(t, "deleted user authorize", err, apperrors.ErrForbidden)
}

func TestNotificationRejectsForeignPayload(t *testing.T) {
	e := newEnv(t)
	err := e.dispatcher.Publish(context.Background(), events.Event{Type: events.EventUserRegistered, Payload: "nope"})
	if err == nil {
		t.Fatal("publish with wrong payload: got nil error")
	}
	if n := len(e.mail.Sent()); n != 0 {
		t.Fatalf("mails sent = %d, want 0", n)
	}
}
