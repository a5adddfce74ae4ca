package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vovakirdan/directchat/internal/store"
)

var (
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to sign up with a registered email.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidFullName is returned when the display name is empty.
	ErrInvalidFullName = errors.New("full name is required")
	// ErrInvalidEmail is returned when the email is malformed.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("password must be at least 6 characters")
	// ErrProfilePicRequired is returned when a profile update carries no picture.
	ErrProfilePicRequired = errors.New("profile picture is required")
)

const (
	bcryptCost        = 10
	minPasswordLength = 6
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ImageResolver turns an image payload into a stored reference.
type ImageResolver interface {
	Resolve(ctx context.Context, prefix, payload string) (string, error)
}

// Service provides account operations: the identity authority behind the session cookie.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
	images    ImageResolver
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig, images ImageResolver) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
		images:    images,
	}
}

// Signup creates a new account and returns it together with a session credential.
func (s *Service) Signup(ctx context.Context, fullName, email, password string) (*store.User, string, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" {
		return nil, "", ErrInvalidFullName
	}
	if len(password) < minPasswordLength {
		return nil, "", ErrInvalidPassword
	}
	if !emailPattern.MatchString(email) {
		return nil, "", ErrInvalidEmail
	}

	if existing, err := s.store.GetUserByEmail(ctx, email); err == nil && existing != nil {
		return nil, "", ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, fullName, email, string(hash))
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, "", ErrUserExists
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and returns the account with a fresh session credential.
func (s *Service) Login(ctx context.Context, email, password string) (*store.User, string, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}

	if errPwd := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); errPwd != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return user, token, nil
}

// UpdateProfilePic stores a new profile picture for the user.
func (s *Service) UpdateProfilePic(ctx context.Context, userID int64, payload string) (*store.User, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, ErrProfilePicRequired
	}

	ref, err := s.images.Resolve(ctx, fmt.Sprintf("avatars/%d", userID), payload)
	if err != nil {
		return nil, err
	}

	user, err := s.store.UpdateProfilePic(ctx, userID, ref)
	if err != nil {
		return nil, fmt.Errorf("update profile pic: %w", err)
	}
	return user, nil
}

// TokenTTLSeconds reports the credential lifetime, used as the cookie max-age.
func (s *Service) TokenTTLSeconds() int {
	return int(s.jwtConfig.TTL.Seconds())
}
