// Package veo provides the HTTP client for the video-synthesis service.
// Generation is an asynchronous long-running operation: Submit returns an
// operation name, Poll observes it until done, Download fetches the clip.
package veo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Generation parameters matching the product defaults: single 8-second
// 16:9 sample with on-screen text suppressed.
const (
	defaultAspectRatio      = "16:9"
	defaultDurationSeconds  = 8
	defaultSampleCount      = 1
	defaultNegativePrompt   = "text,text overlay,text on screen"
	defaultPersonGeneration = "allow_adult"
)

// Static errors for video-synthesis client operations.
var (
	// ErrModelRequired is returned when the model name is not provided.
	ErrModelRequired = errors.New("veo: model is required")
	// ErrAPIKeyNotSet is returned when no API key is provided and the
	// GENAI_API_KEY environment variable is not set.
	ErrAPIKeyNotSet = errors.New("veo: GENAI_API_KEY environment variable is not set")
	// ErrOperationNameRequired is returned when the operation name is not provided.
	ErrOperationNameRequired = errors.New("veo: operation name is required")
	// ErrNoOperationReturned is returned when the submit response contains no operation name.
	ErrNoOperationReturned = errors.New("veo: submit failed: no operation returned")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("veo: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("veo: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("veo: request failed")
	// ErrDownloadFailed is returned when the clip download fails.
	ErrDownloadFailed = errors.New("veo: download failed")
)

// Client defines the interface for interacting with the video-synthesis service.
type Client interface {
	// Submit starts a generation operation and returns its operation name.
	Submit(ctx context.Context, req SubmitRequest) (operationName string, err error)

	// Poll checks the status of an operation and returns the result.
	Poll(ctx context.Context, operationName string) (PollResult, error)

	// Download fetches a generated clip from its URI into destPath.
	Download(ctx context.Context, uri, destPath string) error
}

// HTTPClient is the HTTP implementation of the Client interface.
type HTTPClient struct {
	apiKey      string
	model       string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the video-synthesis API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = url
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new video-synthesis HTTP client.
// The API key can be set via the WithAPIKey option. If not provided,
// it is read from the environment variable GENAI_API_KEY.
// The model name must be provided.
func NewClient(model string, opts ...ClientOption) (*HTTPClient, error) {
	if model == "" {
		return nil, ErrModelRequired
	}

	c := &HTTPClient{
		model:       model,
		baseURL:     "https://generativelanguage.googleapis.com",
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("GENAI_API_KEY")
	}

	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// Submit starts a generation operation and returns its operation name.
func (c *HTTPClient) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	instance := predictInstance{Prompt: req.Prompt}
	if len(req.ImageBytes) > 0 {
		mimeType := req.ImageMIMEType
		if mimeType == "" {
			mimeType = "image/png"
		}
		instance.Image = &predictImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(req.ImageBytes),
			MIMEType:           mimeType,
		}
	}

	reqBody := predictRequest{
		Instances: []predictInstance{instance},
		Parameters: predictParameters{
			AspectRatio:      defaultAspectRatio,
			DurationSeconds:  defaultDurationSeconds,
			SampleCount:      defaultSampleCount,
			NegativePrompt:   defaultNegativePrompt,
			PersonGeneration: defaultPersonGeneration,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("veo: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:predictLongRunning", c.baseURL, c.model)

	var resp operationResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, url, bodyBytes, &resp); err != nil {
		return "", err
	}

	if resp.Name == "" {
		if resp.Error != nil {
			return "", fmt.Errorf("%w: %s", ErrRequestFailed, resp.Error.Message)
		}
		return "", ErrNoOperationReturned
	}

	return resp.Name, nil
}

// Poll checks the status of an operation and returns the result.
func (c *HTTPClient) Poll(ctx context.Context, operationName string) (PollResult, error) {
	if operationName == "" {
		return PollResult{}, ErrOperationNameRequired
	}

	url := fmt.Sprintf("%s/v1beta/%s", c.baseURL, operationName)

	var resp operationResponse
	if err := c.doRequestWithRetry(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return PollResult{}, err
	}

	result := PollResult{Done: resp.Done}
	if !resp.Done {
		return result, nil
	}

	if resp.Error != nil {
		result.Error = resp.Error.Message
		return result, nil
	}
	if resp.Response != nil && resp.Response.GenerateVideoResponse != nil {
		samples := resp.Response.GenerateVideoResponse.GeneratedSamples
		if len(samples) > 0 {
			result.VideoURI = samples[0].Video.URI
		}
	}

	return result, nil
}

// Download fetches a generated clip from its URI into destPath.
func (c *HTTPClient) Download(ctx context.Context, uri, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return fmt.Errorf("veo: create download request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	out, err := os.Create(destPath) // #nosec G304 - destPath is built by trusted internal code
	if err != nil {
		return fmt.Errorf("veo: create output file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(destPath)
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("veo: close output file: %w", err)
	}

	return nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("veo: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, method, url, body, result)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("veo: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("veo: create request: %w", err)
	}

	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("veo: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("veo: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == 429 {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("veo: unmarshal response: %w", err)
		}
	}

	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
