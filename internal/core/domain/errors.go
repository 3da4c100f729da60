package domain

import "errors"

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidToken    = errors.New("invalid token")
	ErrDeviceNotFound  = errors.New("device not found")
	ErrDeviceInactive  = errors.New("device inactive")
	ErrInvalidUserID   = errors.New("invalid user id")
	ErrInvalidDeviceID = errors.New("invalid device id")
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrContentTooLarge = errors.New("content too large")
	ErrClientClosed    = errors.New("client closed")
	ErrSendTimeout     = errors.New("send timeout")
)
