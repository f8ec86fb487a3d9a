package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/repository/memory"
	apperrors "github.com/acme/crm-pro/pkg/errors"
)

func newService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := memory.NewSeeded("212")
	require.NoError(t, err)
	return NewService(store.Users(), client, time.Hour, nil), mr
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	session, err := svc.Login(ctx, "admin", "1234")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, domain.RoleAdmin, session.User.Role)
	assert.Empty(t, session.User.Password)

	user, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
	assert.Equal(t, "Super Admin", user.Name)
	assert.Empty(t, user.Password)
}

func TestLoginRejects(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := map[string][2]string{
		"wrong password": {"admin", "nope"},
		"unknown user":   {"ghost", "1234"},
		"empty password": {"manager1", ""},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Login(ctx, c[0], c[1])
			assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		})
	}
}

func TestSessionExpires(t *testing.T) {
	svc, mr := newService(t)
	ctx := context.Background()

	session, err := svc.Login(ctx, "agent1", "1234")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)
	_, err = svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogout(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	session, err := svc.Login(ctx, "agent2", "1234")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, session.Token))

	_, err = svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.NoError(t, svc.Logout(ctx, "unknown"))
}
