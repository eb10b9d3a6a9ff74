package service

import "errors"

// Common service errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

// Session engine specific errors
var (
	ErrNoSessionAvailable = errors.New("no session available")
	ErrSessionNotFound    = errors.New("session not found")
)

// Identity / account specific errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role name")
)
