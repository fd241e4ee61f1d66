package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidConfig = errors.New("invalid configuration value")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrNoImages      = errors.New("no alert images available")
)
