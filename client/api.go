package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	miniauth "github.com/velora-app/miniapp-session"
)

// ExchangeAPI is the server surface the orchestrator talks to.
type ExchangeAPI interface {
	Exchange(ctx context.Context, identity miniauth.ExternalIdentity) (*ExchangeResponse, error)
	CheckHealth(ctx context.Context) error
}

// ExchangeUser is the slice of the user record the client acts on.
type ExchangeUser struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"first_name"`
	Role       string `json:"role,omitempty"`
	CityID     *int64 `json:"city_id,omitempty"`
	DistrictID *int64 `json:"district_id,omitempty"`
	IsNewUser  bool   `json:"isNewUser"`
}

// ExchangeResponse mirrors the exchange endpoint's 200 body.
type ExchangeResponse struct {
	Success bool         `json:"success"`
	User    ExchangeUser `json:"user"`
	Token   string       `json:"token"`
}

type apiError struct {
	Error   string `json:"error"`
	Details any    `json:"details"`
}

// APIClient calls the auth endpoints over HTTP, tagging every request with
// the native-client marker header.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     miniauth.Logger
	now        func() time.Time
}

var _ ExchangeAPI = (*APIClient)(nil)

// APIClientOption customizes API client construction.
type APIClientOption func(*APIClient)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) APIClientOption {
	return func(c *APIClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithAPILogger overrides the logger.
func WithAPILogger(logger miniauth.Logger) APIClientOption {
	return func(c *APIClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAPIClock injects a custom clock (useful for tests).
func WithAPIClock(clock func() time.Time) APIClientOption {
	return func(c *APIClient) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewAPIClient returns a client rooted at baseURL.
func NewAPIClient(baseURL string, opts ...APIClientOption) *APIClient {
	c := &APIClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     noopLogger{},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Exchange posts the identity to the auth-exchange endpoint and returns the
// issued credential. 400 responses surface as ErrExchangeRejected, everything
// else as ErrExchangeUnavailable.
func (c *APIClient) Exchange(ctx context.Context, identity miniauth.ExternalIdentity) (*ExchangeResponse, error) {
	authDate := identity.AuthDate
	if authDate == 0 {
		authDate = c.now().Unix()
	}

	payload := miniauth.ExchangePayload{
		ID:         identity.TelegramID,
		FirstName:  identity.FirstName,
		LastName:   identity.LastName,
		Username:   identity.Username,
		PhotoURL:   identity.PhotoURL,
		AuthDate:   authDate,
		ClientType: miniauth.ClientTypeMiniApp,
		IsPremium:  identity.IsPremium,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not encode exchange payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/telegram", bytes.NewReader(body))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not build exchange request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(miniauth.HeaderMiniApp, "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("exchange transport failure: %v", err)
		return nil, goerrors.Wrap(err, ErrExchangeUnavailable.Category, ErrExchangeUnavailable.Message).
			WithTextCode("EXCHANGE_UNAVAILABLE")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		result := &ExchangeResponse{}
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not decode exchange response")
		}
		if !result.Success || result.Token == "" {
			return nil, ErrExchangeUnavailable
		}
		return result, nil

	case resp.StatusCode == http.StatusBadRequest:
		apiErr := apiError{}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		c.logger.Error("exchange rejected: %s", apiErr.Error)
		return nil, ErrExchangeRejected

	default:
		c.logger.Error("exchange server failure: status %d", resp.StatusCode)
		return nil, ErrExchangeUnavailable
	}
}

// CheckHealth probes backend reachability after host initialization.
func (c *APIClient) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/telegram/check", nil)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not build health request")
	}
	req.Header.Set(miniauth.HeaderMiniApp, "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerrors.Wrap(err, ErrExchangeUnavailable.Category, "health check failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return goerrors.New("health check returned non-ok status", goerrors.CategoryOperation)
	}
	return nil
}
