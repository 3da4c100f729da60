package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
	"github.com/riyakasaudhan20/sync-clip/pkg/logging"
)

// AuthService validates a device bearer credential against the token issuer
// and the device records written at device registration.
type AuthService struct {
	log     *slog.Logger
	tokens  *TokenService
	devices domain.DeviceRepository
}

func NewAuthService(log *slog.Logger, tokens *TokenService, devices domain.DeviceRepository) *AuthService {
	return &AuthService{log: log, tokens: tokens, devices: devices}
}

// Authenticate returns the principal behind token. Every failure wraps
// domain.ErrUnauthorized.
func (a *AuthService) Authenticate(ctx context.Context, token string) (domain.Principal, error) {
	if token == "" {
		return domain.Principal{}, fmt.Errorf("%w: missing token", domain.ErrUnauthorized)
	}
	claims, err := a.tokens.ValidateToken(token)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	if claims.DeviceID == "" {
		return domain.Principal{}, fmt.Errorf("%w: no device_id in token", domain.ErrUnauthorized)
	}
	device, err := a.devices.GetDeviceByID(ctx, claims.DeviceID)
	switch {
	case errors.Is(err, domain.ErrDeviceNotFound), errors.Is(err, domain.ErrInvalidDeviceID):
		return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	case err != nil:
		a.log.ErrorContext(ctx, "auth - authenticate - device lookup failed", logging.Device(claims.DeviceID), logging.Err(err))
		return domain.Principal{}, err
	}
	if device.UserID != claims.Subject {
		return domain.Principal{}, fmt.Errorf("%w: device not owned by subject", domain.ErrUnauthorized)
	}
	if !device.IsActive {
		return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, domain.ErrDeviceInactive)
	}
	return domain.Principal{UserID: claims.Subject, DeviceID: device.ID}, nil
}
