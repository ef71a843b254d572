package api

import (
	"github.com/fawzii0x3/breath-school-api/internal/identity"
	"github.com/fawzii0x3/breath-school-api/internal/models"
)

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Envelope is the response shape of the user endpoints.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Created *bool  `json:"created,omitempty"`
	Message string `json:"message,omitempty"`
}

// AuthResponse is returned by POST /auth/firebase.
type AuthResponse struct {
	User   *models.User     `json:"user"`
	Claims *identity.Claims `json:"claims"`
}

func success[T any](data T) Envelope[T] {
	return Envelope[T]{Success: true, Data: data}
}
