package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeco/backoffice/internal/infrastructure/config"
)

func newTestService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-for-jwt-unit-tests",
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "backoffice-test",
	})
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	service := newTestService()
	userID := uuid.New()

	token, expiresAt, err := service.GenerateToken(GenerateTokenInput{
		UserID:   userID,
		Username: "maria.pop",
		Roles:    []string{RoleAccountant},
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "maria.pop", claims.Username)
	assert.Equal(t, "backoffice-test", claims.Issuer)

	parsed, err := claims.GetUserUUID()
	require.NoError(t, err)
	assert.Equal(t, userID, parsed)
}

func TestJWTService_ValidateToken_Errors(t *testing.T) {
	service := newTestService()

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := service.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects a token signed with a different secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{
			Secret:                "a-completely-different-secret-key",
			AccessTokenExpiration: 15 * time.Minute,
			Issuer:                "backoffice-test",
		})
		token, _, err := other.GenerateToken(GenerateTokenInput{
			UserID:   uuid.New(),
			Username: "intruder",
		})
		require.NoError(t, err)

		_, err = service.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		expired := NewJWTService(config.JWTConfig{
			Secret:                "test-secret-key-for-jwt-unit-tests",
			AccessTokenExpiration: -time.Minute,
			Issuer:                "backoffice-test",
		})
		token, _, err := expired.GenerateToken(GenerateTokenInput{
			UserID:   uuid.New(),
			Username: "maria.pop",
		})
		require.NoError(t, err)

		_, err = service.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}

func TestClaims_HasRole(t *testing.T) {
	claims := &Claims{Roles: []string{RoleAccountant}}
	assert.True(t, claims.HasRole(RoleAccountant))
	assert.False(t, claims.HasRole(RoleAdmin))

	empty := &Claims{}
	assert.False(t, empty.HasRole(RoleAccountant))
}
