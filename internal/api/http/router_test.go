package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-intake/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-intake/internal/auth"
	"github.com/spec-kit/helpdesk-intake/internal/domain"
	"github.com/spec-kit/helpdesk-intake/internal/events"
	"github.com/spec-kit/helpdesk-intake/internal/observability"
	"github.com/spec-kit/helpdesk-intake/internal/persistence"
	"github.com/spec-kit/helpdesk-intake/internal/repository/memory"
	"github.com/spec-kit/helpdesk-intake/internal/service"
)

const jwtSecret = "router-test-secret"

type capturingSender struct {
	mu   sync.Mutex
	sent []domain.OutboundMessage
}

func (s *capturingSender) SendMessage(ctx context.Context, org *domain.Organization, msg domain.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *capturingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type testServer struct {
	app    *fiber.App
	store  *memory.Store
	sender *capturingSender
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	validate := validator.New()

	store := memory.NewStore()
	store.PutOrganization(domain.Organization{
		ID:     "org_42",
		Name:   "Acme",
		Status: domain.OrganizationStatusActive,
		WhatsApp: domain.WhatsAppSettings{
			AccountSID:     "AC42",
			AuthToken:      "auth-token",
			BusinessNumber: "+19999999999",
		},
		Email: domain.EmailSettings{
			SupportAlias: "help@acme.io",
			InboundToken: "mail-token-0123456789",
		},
	})
	store.PutOrganization(domain.Organization{
		ID:       "org_43",
		Name:     "Globex",
		Status:   domain.OrganizationStatusActive,
		WhatsApp: domain.WhatsAppSettings{AccountSID: "AC43", BusinessNumber: "+18888888888"},
	})

	sender := &capturingSender{}
	intake := service.NewIntakeService(service.IntakeDependencies{
		Tenants:          service.NewTenantResolver(store.Organizations()),
		Identities:       service.NewIdentityResolver(service.IdentityDependencies{UserRepo: store.Users()}),
		Threads:          service.NewThreadSelector(store.Tickets()),
		TicketRepo:       store.Tickets(),
		ConversationRepo: store.Conversations(),
		Sender:           sender,
		Dispatcher:       events.NewInMemoryDispatcher(logger),
		Validator:        validate,
		Logger:           logger,
		Metrics:          metrics,
		AckTimeout:       time.Second,
	})
	tokens := auth.NewTokenManager(jwtSecret, 5)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-intake", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Metrics:        handlers.NewMetricsHandler(metrics),
		WhatsApp:       handlers.NewWhatsAppHandler(intake, validate),
		Email:          handlers.NewEmailHandler(intake, validate),
		Admin:          handlers.NewAdminHandler(service.NewOrganizationService(store.Organizations(), logger), validate),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &testServer{app: app, store: store, sender: sender, tokens: tokens}
}

type envelope struct {
	Data  map[string]any `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body envelope
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func whatsappRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func whatsappForm(to, sid, messageSid, body string) url.Values {
	return url.Values{
		"From":        {"whatsapp:+10000000001"},
		"To":          {"whatsapp:" + to},
		"Body":        {body},
		"ProfileName": {"Ana"},
		"AccountSid":  {sid},
		"MessageSid":  {messageSid},
	}
}

func withoutField(form url.Values, field string) url.Values {
	form.Del(field)
	return form
}

func TestWhatsAppWebhookOpensThenAppends(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, whatsappRequest(whatsappForm("+19999999999", "AC42", "SM1", "hello")))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "new_ticket", body.Data["status"])
	assert.Equal(t, "org_42", body.Data["organization_id"])
	assert.Equal(t, true, body.Data["acknowledged"])
	ticketID, _ := body.Data["ticket_id"].(string)
	require.NotEmpty(t, ticketID)
	assert.Equal(t, 1, srv.sender.count())

	status, body = srv.do(t, whatsappRequest(whatsappForm("+19999999999", "AC42", "SM2", "any update?")))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "appended", body.Data["status"])
	assert.Equal(t, ticketID, body.Data["ticket_id"])
	assert.NotEmpty(t, body.Data["entry_id"])
	assert.Equal(t, 1, srv.sender.count())
}

func TestWhatsAppWebhookRejections(t *testing.T) {
	cases := []struct {
		name   string
		form   url.Values
		status int
		code   string
		reason string
	}{
		{
			name:   "unknown destination",
			form:   whatsappForm("+17777777777", "AC42", "SM1", "hello"),
			status: http.StatusNotFound,
			code:   "CONFIGURATION_ERROR",
			reason: "unconfigured_destination",
		},
		{
			name:   "credential of another tenant",
			form:   whatsappForm("+19999999999", "AC43", "SM1", "hello"),
			status: http.StatusForbidden,
			code:   "AUTHORIZATION_ERROR",
			reason: "credential_mismatch",
		},
		{
			name:   "missing account credential",
			form:   withoutField(whatsappForm("+19999999999", "AC42", "SM1", "hello"), "AccountSid"),
			status: http.StatusBadRequest,
			code:   "VALIDATION_FAILED",
			reason: "malformed_payload",
		},
		{
			name:   "empty body",
			form:   whatsappForm("+19999999999", "AC42", "SM1", "   "),
			status: http.StatusBadRequest,
			code:   "VALIDATION_FAILED",
			reason: "malformed_payload",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t)
			status, body := srv.do(t, whatsappRequest(tc.form))
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, body.Error.Code)
			assert.Equal(t, tc.reason, body.Error.Details["reason"])
			assert.Empty(t, srv.store.TicketsSnapshot())
			assert.Empty(t, srv.store.UsersSnapshot())
			assert.Zero(t, srv.sender.count())
		})
	}
}

const rawEmail = "From: Ana Silva <ana@example.com>\r\n" +
	"To: help@acme.io\r\n" +
	"Subject: Printer is on fire\r\n" +
	"Message-ID: <m1@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"It started smoking this morning.\r\n"

func emailRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email", strings.NewReader(rawEmail))
	req.Header.Set("Content-Type", "message/rfc822")
	if token != "" {
		req.Header.Set("X-Intake-Token", token)
	}
	return req
}

func TestEmailWebhookOpensTicket(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, emailRequest("mail-token-0123456789"))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "new_ticket", body.Data["status"])

	tickets := srv.store.TicketsSnapshot()
	require.Len(t, tickets, 1)
	assert.Equal(t, "Printer is on fire", tickets[0].Title)
	assert.Equal(t, 1, srv.sender.count())
}

func TestEmailWebhookAcceptsQueryToken(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email?token=mail-token-0123456789", strings.NewReader(rawEmail))

	status, body := srv.do(t, req)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "new_ticket", body.Data["status"])
}

func TestEmailWebhookRejectsBadToken(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, emailRequest("wrong-token"))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "credential_mismatch", body.Error.Details["reason"])

	assert.Empty(t, srv.store.TicketsSnapshot())
}

func TestEmailWebhookRejectsMissingToken(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, emailRequest(""))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	assert.Equal(t, "malformed_payload", body.Error.Details["reason"])
	assert.Equal(t, "token", body.Error.Details["fields"])
	assert.Empty(t, srv.store.TicketsSnapshot())
	assert.Zero(t, srv.sender.count())
}

func TestEmailWebhookRejectsEmptyBody(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email", nil)
	req.Header.Set("X-Intake-Token", "mail-token-0123456789")

	status, body := srv.do(t, req)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
}

func adminRequest(t *testing.T, srv *testServer, method, orgID, orgClaim string, role auth.Role, payload string) *http.Request {
	t.Helper()
	token, _, err := srv.tokens.GenerateToken("ops-1", orgClaim, role)
	require.NoError(t, err)

	var reader io.Reader
	if payload != "" {
		reader = strings.NewReader(payload)
	}
	req := httptest.NewRequest(method, "/admin/organizations/"+orgID+"/channels", reader)
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func TestAdminChannelSettings(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, adminRequest(t, srv, http.MethodGet, "org_42", "org_42", auth.RoleAdmin, ""))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "+19999999999", body.Data["whatsapp"].(map[string]any)["business_number"])
	assert.Equal(t, true, body.Data["whatsapp"].(map[string]any)["auth_token_set"])
	assert.NotContains(t, body.Data["whatsapp"], "auth_token")

	status, body = srv.do(t, adminRequest(t, srv, http.MethodPut, "org_42", "", auth.RoleAdmin,
		`{"whatsapp":{"business_number":"+1 (555) 000-1111"},"ack_template":"Hello {name}, ticket {ticket}"}`))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "+15550001111", body.Data["whatsapp"].(map[string]any)["business_number"])
	assert.Equal(t, "Hello {name}, ticket {ticket}", body.Data["ack_template"])

	status, body = srv.do(t, whatsappRequest(whatsappForm("+15550001111", "AC42", "SM9", "hello")))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "org_42", body.Data["organization_id"])
}

func TestAdminChannelSettingsAccessControl(t *testing.T) {
	srv := newTestServer(t)

	status, _ := srv.do(t, adminRequest(t, srv, http.MethodGet, "org_42", "org_43", auth.RoleAdmin, ""))
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = srv.do(t, adminRequest(t, srv, http.MethodGet, "org_42", "org_42", auth.RoleAgent, ""))
	assert.Equal(t, http.StatusForbidden, status)

	req := httptest.NewRequest(http.MethodGet, "/admin/organizations/org_42/channels", nil)
	status, body := srv.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
}

func TestAdminChannelSettingsErrors(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, adminRequest(t, srv, http.MethodPut, "org_43", "", auth.RoleAdmin,
		`{"whatsapp":{"business_number":"+19999999999"}}`))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", body.Error.Code)

	status, body = srv.do(t, adminRequest(t, srv, http.MethodPut, "org_42", "", auth.RoleAdmin,
		`{"email":{"inbound_token":"short"}}`))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)

	status, _ = srv.do(t, adminRequest(t, srv, http.MethodGet, "org_99", "", auth.RoleAdmin, ""))
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = srv.do(t, adminRequest(t, srv, http.MethodPut, "org_42", "", auth.RoleAdmin, `{"whatsapp":`))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	srv := newTestServer(t)

	status, _ := srv.do(t, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, status)

	resp, err := srv.app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil), -1)
	require.NoError(t, err)
	var ready map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "disabled", ready["dependencies"].(map[string]any)["postgres"])
	assert.Equal(t, "disabled", ready["dependencies"].(map[string]any)["redis"])

	srv.do(t, whatsappRequest(whatsappForm("+19999999999", "AC42", "SM1", "hello")))

	resp, err = srv.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `helpdesk_intake_messages_total{channel="whatsapp",outcome="new_ticket"} 1`)
}

func TestUnknownRouteRendersDomainError(t *testing.T) {
	srv := newTestServer(t)
	status, body := srv.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}
