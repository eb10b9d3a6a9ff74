package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_GenerateAndVerify(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	token, err := manager.Generate("user-1", "alice", RoleServer)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, RoleServer, claims.Role)
}

func TestJWTManager_VerifyRejectsTamperedSecret(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	other := NewJWTManager("other-secret", time.Hour)

	token, err := manager.Generate("user-1", "alice", RoleClient)
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_VerifyRejectsExpired(t *testing.T) {
	manager := NewJWTManager("test-secret", -time.Minute)

	token, err := manager.Generate("user-1", "alice", RoleClient)
	require.NoError(t, err)

	_, err = manager.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTManager_Authorize(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	serverToken, err := manager.Generate("user-1", "gs-01", RoleServer)
	require.NoError(t, err)
	clientToken, err := manager.Generate("user-2", "alice", RoleClient)
	require.NoError(t, err)
	adminToken, err := manager.Generate("user-3", "ops", RoleWildcard)
	require.NoError(t, err)
	expiredToken, err := NewJWTManager("test-secret", -time.Minute).Generate("user-4", "bob", RoleClient)
	require.NoError(t, err)

	tests := []struct {
		name         string
		token        string
		requiredRole string
		want         Decision
	}{
		{"server token on server op", serverToken, RoleServer, Authorized},
		{"client token on client op", clientToken, RoleClient, Authorized},
		{"wildcard token on server op", adminToken, RoleServer, Authorized},
		{"wildcard token on client op", adminToken, RoleClient, Authorized},
		{"client token on wildcard op", clientToken, RoleWildcard, Authorized},
		{"client token on server op", clientToken, RoleServer, Forbidden},
		{"server token on client op", serverToken, RoleClient, Forbidden},
		{"missing token", "", RoleServer, Unauthenticated},
		{"garbage token", "not.a.jwt", RoleServer, Unauthenticated},
		{"expired token", expiredToken, RoleClient, Unauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, claims := manager.Authorize(tt.token, tt.requiredRole)
			assert.Equal(t, tt.want, decision)
			if tt.want == Authorized {
				assert.NotNil(t, claims)
			} else {
				assert.Nil(t, claims)
			}
		})
	}
}
