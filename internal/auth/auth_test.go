package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/helpdesk-intake/pkg/util/errorutil"
)

func newProtectedApp(tokens *TokenManager) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	app.Get("/admin", NewAuthMiddleware(tokens).Handle, RequireRole(RoleAdmin), func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return c.SendStatus(http.StatusInternalServerError)
		}
		return c.SendString(principal.SubjectID + "@" + principal.OrganizationID)
	})
	return app
}

func call(t *testing.T, app *fiber.App, authorization string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokenManager("secret", 5)
	token, expiresAt, err := tokens.GenerateToken("ops-1", "org_42", RoleAdmin)
	require.NoError(t, err)
	assert.False(t, expiresAt.IsZero())

	claims, err := tokens.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-1", claims.SubjectID)
	assert.Equal(t, "org_42", claims.OrganizationID)
	assert.Equal(t, RoleAdmin, claims.Role)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestAdminRouteAccess(t *testing.T) {
	tokens := NewTokenManager("secret", 5)
	app := newProtectedApp(tokens)

	admin, _, err := tokens.GenerateToken("ops-1", "org_42", RoleAdmin)
	require.NoError(t, err)
	agent, _, err := tokens.GenerateToken("agent-1", "org_42", RoleAgent)
	require.NoError(t, err)

	status, body := call(t, app, "Bearer "+admin)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ops-1@org_42", body)

	status, _ = call(t, app, "Bearer "+agent)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = call(t, app, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, app, "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, app, "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPrincipalCanManage(t *testing.T) {
	assert.True(t, (&Principal{OrganizationID: ""}).CanManage("org_42"))
	assert.True(t, (&Principal{OrganizationID: "org_42"}).CanManage("org_42"))
	assert.False(t, (&Principal{OrganizationID: "org_43"}).CanManage("org_42"))
}
