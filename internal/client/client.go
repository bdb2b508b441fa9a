// Package client is a Go SDK for the PlayChrono HTTP API. Responses are
// checked before they are returned; a malformed response is a ValidationError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"playchrono/internal/calendar"
	"playchrono/internal/domain"
	"playchrono/internal/feed"
	"playchrono/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const groundsCacheKey = "playchrono:client:grounds"

// Client calls the public endpoints. Authenticated calls go through a Session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

// New builds a client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// UseRedisCache caches the ground list, which only changes with server
// configuration. Availability is never cached.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// Grounds lists the configured grounds.
func (c *Client) Grounds(ctx context.Context) ([]models.Ground, error) {
	var wrap struct {
		Grounds []models.Ground `json:"grounds"`
	}
	if c.readCache(ctx, groundsCacheKey, &wrap) {
		return wrap.Grounds, nil
	}

	if err := c.doGet(ctx, "/api/grounds", "", &wrap); err != nil {
		return nil, err
	}
	for _, g := range wrap.Grounds {
		if g.ID == "" {
			return nil, invalidResponse("grounds", "ground id is missing")
		}
	}
	c.writeCache(ctx, groundsCacheKey, wrap)
	return wrap.Grounds, nil
}

// Availability resolves the grounds serving sport on date. Every listing is
// checked for unique slot ids and a matching available count.
func (c *Client) Availability(ctx context.Context, sport string, date calendar.Date) ([]models.GroundAvailability, error) {
	if strings.TrimSpace(sport) == "" {
		return nil, domain.ValidationError{Field: "sport", Msg: "is required"}
	}
	q := url.Values{}
	q.Set("sport", sport)
	q.Set("date", date.String())

	var wrap struct {
		Grounds *[]models.GroundAvailability `json:"grounds"`
	}
	if err := c.doGet(ctx, "/api/bookings/available?"+q.Encode(), "", &wrap); err != nil {
		return nil, err
	}
	if wrap.Grounds == nil {
		return nil, invalidResponse("grounds", "grounds are missing")
	}
	grounds := *wrap.Grounds
	if err := validateAvailability(grounds); err != nil {
		return nil, err
	}
	if grounds == nil {
		grounds = []models.GroundAvailability{}
	}
	return grounds, nil
}

// TodayBookings lists bookings dated today on the server.
func (c *Client) TodayBookings(ctx context.Context) ([]models.Booking, error) {
	return c.bookings(ctx, "/api/bookings/today", "")
}

// Notices lists announcements, newest first.
func (c *Client) Notices(ctx context.Context) ([]models.Notice, error) {
	var wrap struct {
		Notices []models.Notice `json:"notices"`
	}
	if err := c.doGet(ctx, "/api/notices", "", &wrap); err != nil {
		return nil, err
	}
	for _, n := range wrap.Notices {
		if n.ID == "" {
			return nil, invalidResponse("notices", "notice id is missing")
		}
	}
	if wrap.Notices == nil {
		wrap.Notices = []models.Notice{}
	}
	return wrap.Notices, nil
}

// Feed fetches notices and today's bookings concurrently and merges them.
// A failed source is reported in Result.Failed; both failing is an error.
func (c *Client) Feed(ctx context.Context) (feed.Result, error) {
	agg := feed.NewAggregator(c.Notices, c.TodayBookings, c.logger)
	return agg.Aggregate(ctx)
}

// CheckEmail reports whether an account already uses email.
func (c *Client) CheckEmail(ctx context.Context, email string) (bool, error) {
	var resp struct {
		Exists *bool `json:"exists"`
	}
	if err := c.doPost(ctx, "/api/users/check-email", "", map[string]string{"email": email}, &resp); err != nil {
		return false, err
	}
	if resp.Exists == nil {
		return false, invalidResponse("check-email", "exists flag is missing")
	}
	return *resp.Exists, nil
}

// RegisterRequest is the body of an account registration.
type RegisterRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	SportType    string `json:"sport,omitempty"`
	TeamName     string `json:"teamName,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	var resp struct {
		User *models.User `json:"user"`
	}
	if err := c.doPost(ctx, "/api/auth/register", "", req, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil || resp.User.ID == "" {
		return nil, invalidResponse("register", "user id is missing")
	}
	return resp.User, nil
}

// Login opens a session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp struct {
		Token     string       `json:"token"`
		ExpiresAt time.Time    `json:"expiresAt"`
		User      *models.User `json:"user"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.doPost(ctx, "/api/auth/login", "", body, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, invalidResponse("login", "token is missing")
	}
	if resp.User == nil || resp.User.ID == "" {
		return nil, invalidResponse("login", "user id is missing")
	}
	return &Session{client: c, token: resp.Token, user: *resp.User, expiresAt: resp.ExpiresAt}, nil
}

func (c *Client) bookings(ctx context.Context, path, token string) ([]models.Booking, error) {
	var wrap struct {
		Bookings []models.Booking `json:"bookings"`
	}
	if err := c.doGet(ctx, path, token, &wrap); err != nil {
		return nil, err
	}
	for i := range wrap.Bookings {
		if err := validateBooking(&wrap.Bookings[i]); err != nil {
			return nil, err
		}
	}
	if wrap.Bookings == nil {
		wrap.Bookings = []models.Booking{}
	}
	return wrap.Bookings, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("client cache write failed")
	}
}

func (c *Client) doGet(ctx context.Context, path, token string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) doPost(ctx context.Context, path, token string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, token, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) doDelete(ctx context.Context, path, token string, out any) error {
	req, err := c.newRequest(ctx, http.MethodDelete, path, token, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// doRaw returns the body of a successful response as is.
func (c *Client) doRaw(ctx context.Context, path, token, wantType string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, responseError(req, resp)
	}
	if ct := resp.Header.Get("Content-Type"); wantType != "" && !strings.HasPrefix(ct, wantType) {
		return nil, invalidResponse(req.URL.Path, fmt.Sprintf("unexpected content type %q", ct))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.TransportError{Op: op(req), Err: err}
	}
	return data, nil
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.TransportError{Op: op(req), Err: err}
	}
	return resp, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return responseError(req, resp)
	}

	var envelope struct {
		Success *bool `json:"success"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.TransportError{Op: op(req), Status: resp.StatusCode, Err: err}
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return invalidResponse(req.URL.Path, err.Error())
	}
	if envelope.Success != nil && !*envelope.Success {
		return invalidResponse(req.URL.Path, "success is false")
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.ValidationError{Field: req.URL.Path, Msg: "malformed response", Err: err}
	}
	return nil
}

// errorBody is the server's error envelope.
type errorBody struct {
	Error            string   `json:"error"`
	ConflictingSlots []string `json:"conflictingSlots"`
}

// responseError maps a non-2xx response onto the domain error taxonomy.
func responseError(req *http.Request, resp *http.Response) error {
	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &body)
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return domain.ValidationError{Msg: msg}
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrForbidden, msg)
	case resp.StatusCode == http.StatusNotFound:
		return domain.NotFoundError{Resource: req.URL.Path, Err: errors.New(msg)}
	case resp.StatusCode == http.StatusConflict:
		return domain.ConflictError{Msg: msg, Slots: body.ConflictingSlots}
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	default:
		return domain.TransportError{Op: op(req), Status: resp.StatusCode, Err: errors.New(msg)}
	}
}

func op(req *http.Request) string {
	return req.Method + " " + req.URL.Path
}

func invalidResponse(field, msg string) error {
	return domain.ValidationError{Field: field, Msg: "invalid response: " + msg}
}
