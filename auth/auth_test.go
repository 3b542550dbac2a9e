// ABOUTME: Tests for JWT verification and the authorizer
// ABOUTME: Permission records live in an in-memory store
package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/harperreed/taxdesk/db"
	"github.com/harperreed/taxdesk/kv"
	"github.com/harperreed/taxdesk/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifierRoundTrip(t *testing.T) {
	v := NewJWTVerifier("super-secret")
	token, err := v.Sign("user-1", "a@example.com", time.Hour)
	require.NoError(t, err)

	p, err := v.Verify(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, "a@example.com", p.Email)
}

func TestJWTVerifierRejects(t *testing.T) {
	v := NewJWTVerifier("super-secret")
	ctx := context.Background()

	_, err := v.Verify(ctx, "")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	other, err := NewJWTVerifier("other-secret").Sign("user-1", "a@example.com", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(ctx, other)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	expired, err := v.Sign("user-1", "a@example.com", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(ctx, expired)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(ctx, none)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = NewJWTVerifier("").Verify(ctx, other)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func setupAuthorizer(t *testing.T, admins ...string) (*Authorizer, *db.UserRepository) {
	t.Helper()
	users := db.NewUserRepository(kv.NewTestStore(t))
	return NewAuthorizer(users, admins), users
}

func TestAuthorizerRoles(t *testing.T) {
	az, users := setupAuthorizer(t, "Boss@Example.com")
	ctx := context.Background()

	require.NoError(t, users.PutPermissions(ctx, &models.UserPermissions{UserID: "staff", Role: models.RoleStaff, Modules: []string{models.ModuleCRM}}))
	require.NoError(t, users.PutPermissions(ctx, &models.UserPermissions{UserID: "admin", Role: models.RoleAdmin}))
	require.NoError(t, users.PutPermissions(ctx, &models.UserPermissions{UserID: "client", Role: models.RoleClient, Modules: []string{models.ModuleUsers}}))

	boss := Principal{UserID: "boss", Email: "boss@example.COM"}
	ok, err := az.IsAdmin(ctx, boss)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = az.IsAdmin(ctx, Principal{UserID: "admin", Email: "someone@example.com"})
	require.NoError(t, err)
	assert.True(t, ok)

	staff := Principal{UserID: "staff", Email: "s@example.com"}
	ok, err = az.CanAccess(ctx, staff, models.ModuleCRM)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = az.CanAccess(ctx, staff, models.ModuleInvoices)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, az.RequireAdmin(ctx, staff), models.ErrForbidden)

	// Clients never get modules, even if the record lists some
	ok, err = az.CanAccess(ctx, Principal{UserID: "client"}, models.ModuleUsers)
	require.NoError(t, err)
	assert.False(t, ok)

	access, err := az.Access(ctx, Principal{UserID: "nobody", Email: "n@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleClient, access.Role)
	assert.Empty(t, access.Modules)
	assert.ErrorIs(t, az.RequireModule(ctx, Principal{UserID: "nobody"}, models.ModuleCRM), models.ErrForbidden)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{UserID: "u"})
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "u", p.UserID)
}
