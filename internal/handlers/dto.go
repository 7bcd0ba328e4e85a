package handlers

import (
	"time"

	"github.com/BradenHooton/lantern/internal/models"
)

// UserResponse represents a user in HTTP responses
type UserResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	Group       string     `json:"group"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// IdentityResponse describes the caller as resolved for this request
type IdentityResponse struct {
	User       UserResponse `json:"user"`
	AuthMethod string       `json:"auth_method"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Group:       u.Group,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}
