package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/directchat/internal/media"
	"github.com/vovakirdan/directchat/internal/store/sqlite"
)

func newTestJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
}

func newTestAuthService(t *testing.T) (*Service, *sqlite.SQLiteStore) {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return NewService(st, newTestJWTConfig(), media.NewImages(nil, 0)), st
}

func TestSignup_Validation(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		fullName string
		email    string
		password string
		want     error
	}{
		{"empty name", "  ", "a@example.com", "password123", ErrInvalidFullName},
		{"short password", "Alice", "a@example.com", "12345", ErrInvalidPassword},
		{"bad email", "Alice", "alice@nowhere", "password123", ErrInvalidEmail},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := svc.Signup(ctx, tc.fullName, tc.email, tc.password); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSignup_NormalizesEmailAndRejectsDuplicates(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	user, token, err := svc.Signup(ctx, " Alice ", " Alice@Example.com ", "password123")
	if err != nil {
		t.Fatalf("expected signup success, got %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	if user.FullName != "Alice" || user.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, _, err := svc.Signup(ctx, "Alice", "alice@example.com", "password123"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	created, _, err := svc.Signup(ctx, "Bob", "bob@example.com", "secret42")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, _, err := svc.Login(ctx, "bob@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "secret42"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	user, token, err := svc.Login(ctx, "BOB@example.com", "secret42")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("logged in as %d, want %d", user.ID, created.ID)
	}

	claims, err := ParseToken(newTestJWTConfig(), token)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.UserID != created.ID {
		t.Fatalf("token bound to %d, want %d", claims.UserID, created.ID)
	}
}

func TestUpdateProfilePic(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	user, _, err := svc.Signup(ctx, "Carol", "carol@example.com", "secret42")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := svc.UpdateProfilePic(ctx, user.ID, ""); !errors.Is(err, ErrProfilePicRequired) {
		t.Fatalf("expected ErrProfilePicRequired, got %v", err)
	}
	if _, err := svc.UpdateProfilePic(ctx, user.ID, "data:image/png;base64,aGk="); !errors.Is(err, media.ErrUploadsDisabled) {
		t.Fatalf("expected ErrUploadsDisabled, got %v", err)
	}

	updated, err := svc.UpdateProfilePic(ctx, user.ID, "https://example.com/me.png")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ProfilePic != "https://example.com/me.png" {
		t.Fatalf("unexpected profile pic %q", updated.ProfilePic)
	}
}
