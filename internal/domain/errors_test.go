package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"typed validation", Validation("bad"), KindValidation},
		{"typed not found", NotFound("missing"), KindNotFound},
		{"wrapped typed", fmt.Errorf("ctx: %w", Configuration("no secret")), KindConfiguration},
		{"sentinel not found", fmt.Errorf("repo: %w", ErrNotFound), KindNotFound},
		{"sentinel invalid id", ErrInvalidID, KindValidation},
		{"sentinel unauthorized", ErrUnauthorized, KindAuthorization},
		{"unknown", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNotFoundWrapsSentinel(t *testing.T) {
	if !errors.Is(NotFound("conversation not found"), ErrNotFound) {
		t.Fatalf("expected NotFound to wrap ErrNotFound")
	}
}

func TestIdentityContext(t *testing.T) {
	if _, ok := IdentityFrom(context.Background()); ok {
		t.Fatalf("expected no identity in empty context")
	}
	if _, ok := IdentityFrom(WithIdentity(context.Background(), User{})); ok {
		t.Fatalf("expected empty user to count as anonymous")
	}
	user, ok := IdentityFrom(WithIdentity(context.Background(), User{ID: "u1", Name: "Ada"}))
	if !ok || user.ID != "u1" {
		t.Fatalf("unexpected identity: %+v", user)
	}
}
