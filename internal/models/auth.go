package models

import "github.com/golang-jwt/jwt/v5"

// Principal is the identity extracted from a verified token.
type Principal struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// JWTClaims is the access-token payload. Role is resolved from the users
// collection, not trusted from the token, except for tokens this service
// issued itself.
type JWTClaims struct {
	UID         string   `json:"uid"`
	Email       string   `json:"email"`
	DisplayName string   `json:"name"`
	PhotoURL    string   `json:"picture,omitempty"`
	Role        UserRole `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// LoginRequest carries the bootstrap admin credential.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	User        User   `json:"user"`
}
