// Package backend provides the client for the remote profile backend.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/observability"
)

const (
	// SourceName identifies the backend in errors and metrics.
	SourceName = "profile backend"

	// EndpointProfile is the metrics label of the get-profile operation.
	EndpointProfile = "profile"

	// EndpointUserDataProcessing is the metrics label of the data request operation.
	EndpointUserDataProcessing = "user_data_processing"

	profilePath            = "/api/v1/profile"
	userDataProcessingPath = "/api/v1/user-data-processing/"

	// maxBodyBytes bounds how much of a response body is read.
	maxBodyBytes = 1 << 20
)

// Config holds configuration for the backend client.
type Config struct {
	// APIURLPrefix is the scheme and host every path is appended to.
	APIURLPrefix string

	// Timeout bounds a single call. Zero means no timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// UserAgent is sent with every request.
	UserAgent string
}

// ProfileResponse is the raw outcome of one get-profile call.
// Profile is set only when StatusCode is 200.
type ProfileResponse struct {
	StatusCode int
	Profile    *domain.Profile
}

// UserDataProcessingResponse is the raw outcome of one data request call.
// UserData is set only when StatusCode is 200.
type UserDataProcessingResponse struct {
	StatusCode int
	UserData   *domain.UserDataProcessing
}

// Client calls the remote profile backend.
type Client struct {
	baseURL    string
	httpClient *HTTPClient
	validate   *validator.Validate
	metrics    *observability.Metrics
}

// New creates a new backend client with the given configuration.
func New(cfg Config, metrics *observability.Metrics) *Client {
	return NewWithHTTPClient(cfg, NewHTTPClient(HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: cfg.UserAgent,
	}), metrics)
}

// NewWithHTTPClient creates a new backend client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *HTTPClient, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.APIURLPrefix, "/"),
		httpClient: httpClient,
		validate:   newValidator(),
		metrics:    metrics,
	}
}

// GetProfile performs exactly one get-profile call with the given token.
//
// Any response status is returned without error; only a 200 body is decoded.
// A 200 body that cannot be decoded or validated yields a *domain.DecodeError.
// A failure to obtain a response yields an error wrapping domain.ErrTransport,
// or the context error when ctx was cancelled.
func (c *Client) GetProfile(ctx context.Context, token domain.SessionToken) (*ProfileResponse, error) {
	resp, err := c.get(ctx, EndpointProfile, c.baseURL+profilePath, token)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	out := &ProfileResponse{StatusCode: resp.StatusCode}
	if resp.StatusCode != http.StatusOK {
		return out, nil
	}

	var profile domain.Profile
	if err := c.decode(resp.Body, &profile); err != nil {
		return out, err
	}
	out.Profile = &profile
	return out, nil
}

// GetUserDataProcessing performs exactly one call for the citizen's data
// request of the given choice. Status handling matches GetProfile.
func (c *Client) GetUserDataProcessing(ctx context.Context, token domain.SessionToken, choice domain.UserDataProcessingChoice) (*UserDataProcessingResponse, error) {
	if !choice.IsValid() {
		return nil, domain.NewValidationError("choice", fmt.Sprintf("unknown choice %q", choice))
	}

	endpoint := c.baseURL + userDataProcessingPath + url.PathEscape(string(choice))
	resp, err := c.get(ctx, EndpointUserDataProcessing, endpoint, token)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	out := &UserDataProcessingResponse{StatusCode: resp.StatusCode}
	if resp.StatusCode != http.StatusOK {
		return out, nil
	}

	var udp domain.UserDataProcessing
	if err := c.decode(resp.Body, &udp); err != nil {
		return out, err
	}
	out.UserData = &udp
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint, rawURL string, token domain.SessionToken) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req, token)
	if err != nil {
		c.metrics.RecordBackendRequest(endpoint, 0, time.Since(start).Seconds())
		return nil, err
	}
	c.metrics.RecordBackendRequest(endpoint, resp.StatusCode, time.Since(start).Seconds())
	return resp, nil
}

// decode reads a JSON body into v and validates it.
func (c *Client) decode(body io.Reader, v interface{}) error {
	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(v); err != nil {
		return domain.NewDecodeError(SourceName, []string{describeDecodeError(err)}, err)
	}
	if err := c.validate.Struct(v); err != nil {
		return domain.NewDecodeError(SourceName, readableReport(err), err)
	}
	return nil
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("value of type %s at %s is not a %s", typeErr.Value, typeErr.Field, typeErr.Type)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Sprintf("malformed JSON at offset %d: %s", syntaxErr.Offset, syntaxErr.Error())
	}
	if errors.Is(err, io.EOF) {
		return "empty response body"
	}
	return err.Error()
}

// drain discards the rest of the body so the connection can be reused.
func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	resp.Body.Close()
}
