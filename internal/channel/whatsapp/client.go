package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-intake/internal/domain"
)

// ErrMissingCredentials is returned when the tenant has no provider account configured.
var ErrMissingCredentials = errors.New("whatsapp provider credentials not configured")

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp provider returned %d: %s", e.StatusCode, e.Body)
}

// Client sends messages through the provider's REST API using each tenant's own account.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client whose calls are bounded by timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SendMessage implements channel.Sender.
func (c *Client) SendMessage(ctx context.Context, org *domain.Organization, msg domain.OutboundMessage) error {
	sid := org.WhatsApp.AccountSID
	token := org.WhatsApp.AuthToken
	if sid == "" || token == "" {
		return ErrMissingCredentials
	}

	form := url.Values{}
	form.Set("From", withScheme(msg.From))
	form.Set("To", withScheme(msg.To))
	form.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(sid))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build whatsapp request: %w", err)
	}
	req.SetBasicAuth(sid, token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
