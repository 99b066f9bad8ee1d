package jwt

import (
	"testing"
	"time"

	"DBAdminDO/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	caller := &models.Caller{Username: "ops", TeamID: 7, Role: "admin"}

	token, err := GenerateToken(caller, "secret", "dbadmin", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, caller, claims.Caller())
	assert.Equal(t, "dbadmin", claims.Issuer)
}

func TestValidateToken_Rejects(t *testing.T) {
	caller := &models.Caller{Username: "ops", TeamID: 7, Role: "admin"}

	token, err := GenerateToken(caller, "secret", "", time.Hour)
	require.NoError(t, err)
	_, err = ValidateToken(token, "other-secret")
	assert.Error(t, err)

	expired, err := GenerateToken(caller, "secret", "", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(expired, "secret")
	assert.Error(t, err)

	teamless, err := GenerateToken(&models.Caller{Username: "x"}, "secret", "", time.Hour)
	require.NoError(t, err)
	_, err = ValidateToken(teamless, "secret")
	assert.Error(t, err)
}
