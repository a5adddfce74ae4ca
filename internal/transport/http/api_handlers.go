package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/directchat/internal/auth"
	"github.com/vovakirdan/directchat/internal/core"
	"github.com/vovakirdan/directchat/internal/media"
	"github.com/vovakirdan/directchat/internal/store"
)

// APIHandlers provides the account endpoints.
type APIHandlers struct {
	authService  *auth.Service
	users        store.UserStore
	cookieName   string
	cookieSecure bool
	log          *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, users store.UserStore, cookieName string, cookieSecure bool, logger *zerolog.Logger) *APIHandlers {
	if cookieName == "" {
		cookieName = auth.DefaultCookieName
	}
	return &APIHandlers{
		authService:  authService,
		users:        users,
		cookieName:   cookieName,
		cookieSecure: cookieSecure,
		log:          logger,
	}
}

// SignupRequest represents the signup request body.
type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest represents the profile update body.
type UpdateProfileRequest struct {
	ProfilePic string `json:"profilePic"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

var errUnauthorized = ErrorResponse{Code: core.ErrCodeUnauthorized, Message: "unauthorized"}

// Signup handles account creation.
// POST /api/auth/signup
func (h *APIHandlers) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid signup request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	user, token, err := h.authService.Signup(c.Request.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, ErrorResponse{Message: "email already exists"})
		case errors.Is(err, auth.ErrInvalidFullName),
			errors.Is(err, auth.ErrInvalidEmail),
			errors.Is(err, auth.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		default:
			h.log.Error().Err(err).Str("email", req.Email).Msg("failed to sign up user")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
		}
		return
	}

	h.setSessionCookie(c, token, h.authService.TokenTTLSeconds())
	h.log.Info().Int64("user_id", user.ID).Msg("user signed up")
	c.JSON(http.StatusCreated, userDTO(user))
}

// Login handles user login.
// POST /api/auth/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Msg("failed to log in user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
		return
	}

	h.setSessionCookie(c, token, h.authService.TokenTTLSeconds())
	h.log.Info().Int64("user_id", user.ID).Msg("user logged in")
	c.JSON(http.StatusOK, userDTO(user))
}

// Logout clears the session cookie.
// POST /api/auth/logout
func (h *APIHandlers) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, ErrorResponse{Message: "logged out successfully"})
}

// Check returns the authenticated user.
// GET /api/auth/check
func (h *APIHandlers) Check(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, errUnauthorized)
			return
		}
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to load user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, userDTO(user))
}

// UpdateProfile replaces the profile picture.
// PUT /api/auth/update-profile
func (h *APIHandlers) UpdateProfile(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	user, err := h.authService.UpdateProfilePic(c.Request.Context(), uid, req.ProfilePic)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrProfilePicRequired):
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "profile pic is required"})
		case errors.Is(err, media.ErrInvalidImage),
			errors.Is(err, media.ErrImageTooLarge),
			errors.Is(err, media.ErrUploadsDisabled):
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		default:
			h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to update profile")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
		}
		return
	}
	c.JSON(http.StatusOK, userDTO(user))
}

func (h *APIHandlers) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookieName, value, maxAge, "/", "", h.cookieSecure, true)
}
