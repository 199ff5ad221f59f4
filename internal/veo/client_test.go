package veo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("returns error when model is empty", func(t *testing.T) {
		_, err := NewClient("", WithAPIKey("test-key"))
		assert.ErrorIs(t, err, ErrModelRequired)
	})

	t.Run("returns error when no API key available", func(t *testing.T) {
		t.Setenv("GENAI_API_KEY", "")
		_, err := NewClient("veo-2.0-generate-001")
		assert.ErrorIs(t, err, ErrAPIKeyNotSet)
	})

	t.Run("reads API key from environment", func(t *testing.T) {
		t.Setenv("GENAI_API_KEY", "env-key")
		c, err := NewClient("veo-2.0-generate-001")
		require.NoError(t, err)
		assert.Equal(t, "env-key", c.apiKey)
	})

	t.Run("options override defaults", func(t *testing.T) {
		c, err := NewClient("veo-2.0-generate-001",
			WithAPIKey("test-key"),
			WithBaseURL("http://localhost:9999"),
			WithMaxRetries(5),
			WithBaseBackoff(10*time.Millisecond),
		)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:9999", c.baseURL)
		assert.Equal(t, 5, c.maxRetries)
		assert.Equal(t, 10*time.Millisecond, c.baseBackoff)
	})
}

func TestHTTPClient_Submit(t *testing.T) {
	t.Run("returns operation name on success", func(t *testing.T) {
		var gotBody predictRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Contains(t, r.URL.Path, "veo-2.0-generate-001:predictLongRunning")
			assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name": "models/veo-2.0-generate-001/operations/op-123"}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		name, err := client.Submit(context.Background(), SubmitRequest{Prompt: "a calm lake at dawn"})
		require.NoError(t, err)
		assert.Equal(t, "models/veo-2.0-generate-001/operations/op-123", name)

		require.Len(t, gotBody.Instances, 1)
		assert.Equal(t, "a calm lake at dawn", gotBody.Instances[0].Prompt)
		assert.Nil(t, gotBody.Instances[0].Image)
		assert.Equal(t, "16:9", gotBody.Parameters.AspectRatio)
		assert.Equal(t, 8, gotBody.Parameters.DurationSeconds)
		assert.Equal(t, 1, gotBody.Parameters.SampleCount)
		assert.Equal(t, "text,text overlay,text on screen", gotBody.Parameters.NegativePrompt)
		assert.Equal(t, "allow_adult", gotBody.Parameters.PersonGeneration)
	})

	t.Run("encodes reference image when provided", func(t *testing.T) {
		var gotBody predictRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			_, _ = w.Write([]byte(`{"name": "operations/op-456"}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		_, err := client.Submit(context.Background(), SubmitRequest{
			Prompt:     "continue the scene",
			ImageBytes: []byte("fake-png-bytes"),
		})
		require.NoError(t, err)

		require.Len(t, gotBody.Instances, 1)
		require.NotNil(t, gotBody.Instances[0].Image)
		assert.Equal(t, "ZmFrZS1wbmctYnl0ZXM=", gotBody.Instances[0].Image.BytesBase64Encoded)
		assert.Equal(t, "image/png", gotBody.Instances[0].Image.MIMEType)
	})

	t.Run("returns error when no operation name in response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		_, err := client.Submit(context.Background(), SubmitRequest{Prompt: "test"})
		assert.ErrorIs(t, err, ErrNoOperationReturned)
	})

	t.Run("retries on server error", func(t *testing.T) {
		attempts := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			if attempts < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(`{"name": "operations/op-789"}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		name, err := client.Submit(context.Background(), SubmitRequest{Prompt: "test"})
		require.NoError(t, err)
		assert.Equal(t, "operations/op-789", name)
		assert.Equal(t, 3, attempts)
	})

	t.Run("does not retry on client error", func(t *testing.T) {
		attempts := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": {"message": "invalid prompt"}}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		_, err := client.Submit(context.Background(), SubmitRequest{Prompt: "test"})
		assert.ErrorIs(t, err, ErrRequestFailed)
		assert.Equal(t, 1, attempts)
	})

	t.Run("fails after max retries", func(t *testing.T) {
		attempts := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		_, err := client.Submit(context.Background(), SubmitRequest{Prompt: "test"})
		assert.ErrorIs(t, err, ErrServerError)
		assert.Equal(t, 3, attempts)
	})
}

func TestHTTPClient_Poll(t *testing.T) {
	t.Run("returns error when operation name is empty", func(t *testing.T) {
		client := newTestClient(t, "http://unused")
		_, err := client.Poll(context.Background(), "")
		assert.ErrorIs(t, err, ErrOperationNameRequired)
	})

	t.Run("reports pending operation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/v1beta/operations/op-123", r.URL.Path)
			_, _ = w.Write([]byte(`{"name": "operations/op-123", "done": false}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		result, err := client.Poll(context.Background(), "operations/op-123")
		require.NoError(t, err)
		assert.False(t, result.Done)
		assert.Empty(t, result.VideoURI)
	})

	t.Run("returns video URI when done", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{
				"name": "operations/op-123",
				"done": true,
				"response": {
					"generateVideoResponse": {
						"generatedSamples": [
							{"video": {"uri": "https://example.com/clip.mp4"}}
						]
					}
				}
			}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		result, err := client.Poll(context.Background(), "operations/op-123")
		require.NoError(t, err)
		assert.True(t, result.Done)
		assert.Equal(t, "https://example.com/clip.mp4", result.VideoURI)
		assert.Empty(t, result.Error)
	})

	t.Run("surfaces operation error when done with failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{
				"name": "operations/op-123",
				"done": true,
				"error": {"code": 3, "message": "content policy violation"}
			}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		result, err := client.Poll(context.Background(), "operations/op-123")
		require.NoError(t, err)
		assert.True(t, result.Done)
		assert.Empty(t, result.VideoURI)
		assert.Equal(t, "content policy violation", result.Error)
	})

	t.Run("reports done with no samples as done without URI", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{
				"name": "operations/op-123",
				"done": true,
				"response": {"generateVideoResponse": {"generatedSamples": []}}
			}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		result, err := client.Poll(context.Background(), "operations/op-123")
		require.NoError(t, err)
		assert.True(t, result.Done)
		assert.Empty(t, result.VideoURI)
	})
}

func TestHTTPClient_Download(t *testing.T) {
	t.Run("writes clip to destination", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
			_, _ = w.Write([]byte("clip-bytes"))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		dest := filepath.Join(t.TempDir(), "scene_1.mp4")
		err := client.Download(context.Background(), server.URL+"/clip.mp4", dest)
		require.NoError(t, err)

		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "clip-bytes", string(data))
	})

	t.Run("returns error on non-2xx status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		dest := filepath.Join(t.TempDir(), "scene_1.mp4")
		err := client.Download(context.Background(), server.URL+"/missing.mp4", dest)
		assert.ErrorIs(t, err, ErrDownloadFailed)
		assert.NoFileExists(t, dest)
	})
}

func newTestClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	client, err := NewClient("veo-2.0-generate-001",
		WithAPIKey("test-key"),
		WithBaseURL(baseURL),
		WithMaxRetries(2),
		WithBaseBackoff(1*time.Millisecond),
	)
	require.NoError(t, err)
	return client
}
