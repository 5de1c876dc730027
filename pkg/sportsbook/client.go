package sportsbook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// Rate limits applied to upstream calls
	defaultRateLimit = 10.0 // requests per second
	defaultBurst     = 5
)

// Client is an upstream sports API client. It authenticates once via a
// generated session token and replays it on every request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	userID  string
	userKey string
	token   string
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit sets custom rate limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCredentials sets the user identity used for balance lookups.
func WithCredentials(userID, userKey string) ClientOption {
	return func(c *Client) {
		c.userID = userID
		c.userKey = userKey
	}
}

// NewClient creates a new sports API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		userID:  "1",
		userKey: "1",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Authenticate requests a session token. It is called lazily by the
// other methods when no token is held.
func (c *Client) Authenticate(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/generate_token", nil)
	if err != nil {
		return fmt.Errorf("creating auth request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("auth endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decoding auth response: %w", err)
	}
	if payload.Token == "" {
		return fmt.Errorf("auth response missing token")
	}

	c.token = payload.Token
	return nil
}

// GetFixtures fetches all fixtures for a sport.
func (c *Client) GetFixtures(ctx context.Context, sportID string) ([]FixtureRecord, error) {
	params := url.Values{}
	params.Set("sportId", sportID)

	var resp FixturesResponse
	if err := c.get(ctx, "/sports/sports-fixtures", params, &resp); err != nil {
		return nil, fmt.Errorf("fetching fixtures: %w", err)
	}
	return resp.Data, nil
}

// GetTournaments fetches all tournaments for a sport.
func (c *Client) GetTournaments(ctx context.Context, sportID string) ([]TournamentRecord, error) {
	params := url.Values{}
	params.Set("language", "en")
	params.Set("sport_id", sportID)
	params.Set("with_active_fixtures", "false")

	var tournaments []TournamentRecord
	if err := c.get(ctx, "/sports/tournaments", params, &tournaments); err != nil {
		return nil, fmt.Errorf("fetching tournaments: %w", err)
	}
	return tournaments, nil
}

// GetOdds fetches the raw odds payload for one fixture. The tournament
// and sport ids are required for the upstream to report an Active status.
func (c *Client) GetOdds(ctx context.Context, fixtureID, tournamentID, sportID string) (*RawOdds, error) {
	params := url.Values{}
	params.Set("fixtureId", fixtureID)
	params.Set("tournamentId", tournamentID)
	params.Set("sportId", sportID)
	params.Set("amount", "1")

	var odds RawOdds
	if err := c.get(ctx, "/sports/odds", params, &odds); err != nil {
		return nil, fmt.Errorf("fetching odds for fixture %s: %w", fixtureID, err)
	}
	return &odds, nil
}

// GetUserBalance fetches the configured user's balance.
func (c *Client) GetUserBalance(ctx context.Context) (*BalanceResponse, error) {
	params := url.Values{}
	params.Set("userId", c.userID)
	params.Set("userKey", c.userKey)

	var balance BalanceResponse
	if err := c.get(ctx, "/auth/get_user_balance", params, &balance); err != nil {
		return nil, fmt.Errorf("fetching user balance: %w", err)
	}
	return &balance, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if c.token == "" {
		if err := c.Authenticate(ctx); err != nil {
			return err
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
