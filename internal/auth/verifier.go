package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vovakirdan/directchat/internal/store"
)

var (
	// ErrMissingCredential is returned when the handshake carries no token.
	ErrMissingCredential = errors.New("missing credential")
	// ErrInvalidCredential is returned when the token is malformed, badly signed or expired.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrUnknownIdentity is returned when a valid token points at an account that no longer exists.
	ErrUnknownIdentity = errors.New("unknown identity")
)

// DefaultCookieName is the cookie the session credential travels in.
const DefaultCookieName = "jwt"

// Identity is the resolved owner of a session credential. It never carries secrets.
type Identity struct {
	UserID     int64
	FullName   string
	Email      string
	ProfilePic string
}

// IdentityResolver looks up accounts by id.
type IdentityResolver interface {
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
}

// Verifier turns a raw session credential into an Identity.
// It is shared by the HTTP middleware and the live connection handshake.
type Verifier struct {
	jwt   *JWTConfig
	users IdentityResolver
}

// NewVerifier builds a credential verifier.
func NewVerifier(jwtConfig *JWTConfig, users IdentityResolver) *Verifier {
	return &Verifier{jwt: jwtConfig, users: users}
}

// Verify validates rawToken and resolves it to the current account.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return Identity{}, ErrMissingCredential
	}

	claims, err := ParseToken(v.jwt, rawToken)
	if err != nil {
		return Identity{}, err
	}

	user, err := v.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: user %d", ErrUnknownIdentity, claims.UserID)
		}
		return Identity{}, fmt.Errorf("resolve identity: %w", err)
	}

	return IdentityFromUser(user), nil
}

// IdentityFromUser strips an account down to its identity fields.
func IdentityFromUser(user *store.User) Identity {
	return Identity{
		UserID:     user.ID,
		FullName:   user.FullName,
		Email:      user.Email,
		ProfilePic: user.ProfilePic,
	}
}

// IsAuthError reports whether err belongs to the credential failure taxonomy.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrUnknownIdentity)
}

// TokenFromRequest extracts the session credential from handshake metadata:
// the named cookie first, then an "Authorization: Bearer" header.
// Query parameters and bodies are never consulted.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
