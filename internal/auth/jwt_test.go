package auth_test

import (
	"testing"
	"time"

	"ledger_system/internal/auth"
	"ledger_system/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	admin := domain.Actor{ID: 12, Role: domain.RoleAdministrator}
	token, err := auth.IssueToken(admin, "secret", time.Now())
	require.NoError(t, err)

	got, err := auth.ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, admin, got)
	assert.True(t, got.IsAdmin())
}

func TestParseRejectsBadTokens(t *testing.T) {
	token, err := auth.IssueToken(domain.Actor{ID: 1, Role: domain.RoleOwner}, "secret", time.Now())
	require.NoError(t, err)
	_, err = auth.ParseToken(token, "other-secret")
	assert.Error(t, err)

	expired, err := auth.IssueToken(domain.Actor{ID: 1, Role: domain.RoleOwner}, "secret", time.Now().Add(-48*time.Hour))
	require.NoError(t, err)
	_, err = auth.ParseToken(expired, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = auth.ParseToken("not-a-token", "secret")
	assert.Error(t, err)

	weird, err := auth.IssueToken(domain.Actor{ID: 1, Role: "root"}, "secret", time.Now())
	require.NoError(t, err)
	_, err = auth.ParseToken(weird, "secret")
	assert.Error(t, err)
}

func TestMissingRoleDefaultsToOwner(t *testing.T) {
	token, err := auth.IssueToken(domain.Actor{ID: 5}, "secret", time.Now())
	require.NoError(t, err)
	got, err := auth.ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, got.Role)
}
