package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndVerifyPIN(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{
		Name:             "Ada",
		Email:            "ada@example.com",
		PIN:              "4321",
		NGNAccountNumber: "2001234567",
	})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)

	assert.NoError(t, svc.VerifyPIN(ctx, u.ID, "4321"))
	assert.ErrorIs(t, svc.VerifyPIN(ctx, u.ID, "0000"), ErrInvalidPIN)
}

func TestRegisterRejectsShortPIN(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	_, err := svc.Register(context.Background(), RegisterInput{Name: "Ada", PIN: "12"})
	assert.Error(t, err)
}

func TestByNGNAccountNumber(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Name: "Ada", PIN: "4321", NGNAccountNumber: "2001234567"})
	require.NoError(t, err)

	found, err := svc.ByNGNAccountNumber(ctx, "2001234567")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = svc.ByNGNAccountNumber(ctx, "0000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}
