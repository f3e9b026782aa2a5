package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habitflow/internal/repository/repotest"
)

func TestRegisterAndLogin(t *testing.T) {
	store := repotest.New()
	svc := NewAuthService(store, nil, "secret", zap.NewNop())
	ctx := context.Background()

	u, err := svc.Register(ctx, "  Ana@Example.com ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	_, err = svc.Register(ctx, "ana@example.com", "another password")
	assert.ErrorIs(t, err, ErrEmailExists)

	token, err := svc.Login(ctx, "ANA@example.com", "correct horse")
	require.NoError(t, err)

	id, err := svc.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	_, err = svc.Login(ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "bob@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_Validation(t *testing.T) {
	svc := NewAuthService(repotest.New(), nil, "secret", zap.NewNop())

	_, err := svc.Register(context.Background(), "not-an-email", "long enough")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = svc.Register(context.Background(), "Ana <ana@example.com>", "long enough")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = svc.Register(context.Background(), "ana@example.com", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestAuthenticate_RejectsForeignToken(t *testing.T) {
	a := NewAuthService(repotest.New(), nil, "one", zap.NewNop())
	b := NewAuthService(repotest.New(), nil, "two", zap.NewNop())
	ctx := context.Background()

	_, err := a.Register(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)
	token, err := a.Login(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)

	_, err = b.Authenticate(token)
	assert.Error(t, err)
}
