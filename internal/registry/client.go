package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (

	// Default registry API endpoint (Docker Hub).
	DefaultRegistry = "https://index.docker.io"

	// Default token endpoint (Docker Hub).
	DefaultAuthURL = "https://auth.docker.io/token"

	// Default service name sent to the token endpoint.
	DefaultService = "registry.docker.io"

	// Default target platform for multi-platform images.
	DefaultPlatform = "linux/amd64"

	// Default bound on connecting and receiving response headers.
	DefaultTimeout = 30 * time.Second

	// Default number of retries after the first attempt.
	DefaultRetryMax = 3

	defaultRetryWaitMin = 500 * time.Millisecond
	defaultRetryWaitMax = 5 * time.Second

	// Upper bound on manifest, index, config and error bodies read into memory.
	maxDocumentSize = 4 << 20

	// Portion of an error response body quoted in error messages.
	maxErrorBody = 512
)

// Holds registry client configuration.
//
// Empty strings and zero durations fall back to the package defaults.
// RetryMax is used as given, so zero disables retries.
type Config struct {
	Registry     string        // Registry API base URL, without the /v2 suffix.
	AuthURL      string        // Token endpoint URL.
	Service      string        // Service parameter for the token endpoint.
	Platform     string        // Target platform, e.g. "linux/amd64" or "linux/arm64/v8".
	Timeout      time.Duration // Bound on connecting and receiving headers, per attempt.
	RetryMax     int           // Retries after the first attempt for transient failures.
	RetryWaitMin time.Duration // Minimum backoff between attempts.
	RetryWaitMax time.Duration // Maximum backoff between attempts.
	Logger       *slog.Logger  // Logger for pull progress. Nil uses slog.Default().
}

// Talks to one registry on behalf of one target platform.
type Client struct {
	http     *retryablehttp.Client // Retrying HTTP client.
	registry string                // Registry API base URL.
	authURL  string                // Token endpoint URL.
	service  string                // Token service parameter.
	platform ocispec.Platform      // Normalized target platform.
	variant  bool                  // Whether the platform named a variant.
	logger   *slog.Logger
}

// Creates a registry client from the given configuration.
//
// Fails with [ErrRegistry] if the platform cannot be parsed or an endpoint
// is not an absolute URL.
func New(cfg Config) (*Client, error) {
	registry := strings.TrimSuffix(orDefault(cfg.Registry, DefaultRegistry), "/")
	authURL := orDefault(cfg.AuthURL, DefaultAuthURL)

	for _, endpoint := range []string{registry, authURL} {
		u, err := url.Parse(endpoint)
		if err != nil || !u.IsAbs() {
			return nil, fmt.Errorf("%w: invalid endpoint %q", ErrRegistry, endpoint)
		}
	}

	specifier := orDefault(cfg.Platform, DefaultPlatform)
	platform, err := platforms.Parse(specifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistry, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		http:     newHTTPClient(cfg, logger),
		registry: registry,
		authURL:  authURL,
		service:  orDefault(cfg.Service, DefaultService),
		platform: platform,
		variant:  strings.Count(specifier, "/") == 2,
		logger:   logger,
	}, nil
}

// Returns the target platform in "os/arch[/variant]" form.
func (c *Client) Platform() string {
	return platforms.Format(c.platform)
}

// Builds the retrying HTTP client.
//
// The timeout bounds dialing and waiting for response headers rather than
// the whole exchange, so large layer downloads are not cut off while they
// are still streaming. The passthrough error handler hands the last response
// back after retries run out, so its status can be classified.
func newHTTPClient(cfg Config, logger *slog.Logger) *retryablehttp.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := cleanhttp.DefaultPooledTransport()
	transport.ResponseHeaderTimeout = timeout
	transport.TLSHandshakeTimeout = timeout

	hc := retryablehttp.NewClient()
	hc.HTTPClient = &http.Client{Transport: transport}
	hc.RetryMax = max(cfg.RetryMax, 0)
	hc.RetryWaitMin = durationOr(cfg.RetryWaitMin, defaultRetryWaitMin)
	hc.RetryWaitMax = durationOr(cfg.RetryWaitMax, defaultRetryWaitMax)
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	hc.Logger = logger
	return hc
}

// Token endpoint response. Docker Hub sets both fields; other registries
// may set only access_token.
type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

// Obtains a bearer token scoped to pulling the given repository.
func (c *Client) authenticate(ctx context.Context, repository string) (string, error) {
	u, err := url.Parse(c.authURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	q := u.Query()
	q.Set("service", c.service)
	q.Set("scope", "repository:"+repository+":pull")
	u.RawQuery = q.Encode()

	resp, err := c.get(ctx, u.String(), "")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentSize)).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decode token response: %w", ErrAuth, err)
	}

	token := tr.Token
	if token == "" {
		token = tr.AccessToken
	}
	if token == "" {
		return "", fmt.Errorf("%w: token endpoint returned no token", ErrAuth)
	}

	c.logger.Debug("obtained registry token", "repository", repository)
	return token, nil
}

// Issues a GET with optional bearer authentication and Accept headers.
//
// Responses outside 2xx are closed and reported as an error classified with
// an errdefs class. The caller owns the returned body.
func (c *Client) get(ctx context.Context, rawURL, token string, accept ...string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, mediaType := range accept {
		req.Header.Add("Accept", mediaType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(rawURL, resp)
	}

	return resp, nil
}

// Converts a non-2xx response into an error carrying an errdefs class.
func statusError(rawURL string, resp *http.Response) error {
	var class error
	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized:
		class = errdefs.ErrUnauthenticated
	case code == http.StatusForbidden:
		class = errdefs.ErrPermissionDenied
	case code == http.StatusNotFound:
		class = errdefs.ErrNotFound
	case code == http.StatusTooManyRequests:
		class = errdefs.ErrResourceExhausted
	case code >= 500:
		class = errdefs.ErrUnavailable
	default:
		class = errdefs.ErrUnknown
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("%w: GET %s: %s: %s", class, rawURL, resp.Status, msg)
	}
	return fmt.Errorf("%w: GET %s: %s", class, rawURL, resp.Status)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
