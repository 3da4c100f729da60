package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
	"github.com/riyakasaudhan20/sync-clip/internal/testutil"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuthenticate(t *testing.T) {
	tokens := NewTokenService("secret", time.Hour)
	devices := testutil.NewDevices(
		&domain.Device{ID: "dev-a", UserID: "user-1", IsActive: true},
		&domain.Device{ID: "dev-off", UserID: "user-1", IsActive: false},
		&domain.Device{ID: "dev-other", UserID: "user-2", IsActive: true},
	)
	auth := NewAuthService(discard(), tokens, devices)
	token := func(user, device string) string {
		s, err := tokens.GenerateToken(user, device)
		require.NoError(t, err)
		return s
	}

	t.Run("valid device", func(t *testing.T) {
		p, err := auth.Authenticate(context.Background(), token("user-1", "dev-a"))
		require.NoError(t, err)
		assert.Equal(t, domain.Principal{UserID: "user-1", DeviceID: "dev-a"}, p)
	})

	rejected := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"bad token", "nope"},
		{"no device claim", token("user-1", "")},
		{"unknown device", token("user-1", "dev-missing")},
		{"inactive device", token("user-1", "dev-off")},
		{"device of another user", token("user-1", "dev-other")},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Authenticate(context.Background(), tt.token)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}

	t.Run("storage failure is not an auth failure", func(t *testing.T) {
		broken := testutil.NewDevices()
		broken.Err = errors.New("connection refused")
		a := NewAuthService(discard(), tokens, broken)

		_, err := a.Authenticate(context.Background(), token("user-1", "dev-a"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrUnauthorized)
	})
}
