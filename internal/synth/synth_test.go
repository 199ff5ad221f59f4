package synth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sceneweave/sceneweave-api/internal/veo"
)

type mockVeoClient struct {
	mock.Mock
}

func (m *mockVeoClient) Submit(ctx context.Context, req veo.SubmitRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockVeoClient) Poll(ctx context.Context, operationName string) (veo.PollResult, error) {
	args := m.Called(ctx, operationName)
	return args.Get(0).(veo.PollResult), args.Error(1)
}

func (m *mockVeoClient) Download(ctx context.Context, uri, destPath string) error {
	args := m.Called(ctx, uri, destPath)
	return args.Error(0)
}

func TestService_Synthesize(t *testing.T) {
	t.Run("submits, polls until done, downloads clip", func(t *testing.T) {
		client := new(mockVeoClient)
		dest := filepath.Join(t.TempDir(), "scene_1.mp4")

		client.On("Submit", mock.Anything, mock.MatchedBy(func(req veo.SubmitRequest) bool {
			return req.Prompt == "a calm lake at dawn" && req.ImageBytes == nil
		})).Return("operations/op-1", nil)
		client.On("Poll", mock.Anything, "operations/op-1").
			Return(veo.PollResult{Done: false}, nil).Twice()
		client.On("Poll", mock.Anything, "operations/op-1").
			Return(veo.PollResult{Done: true, VideoURI: "https://example.com/clip.mp4"}, nil).Once()
		client.On("Download", mock.Anything, "https://example.com/clip.mp4", dest).Return(nil)

		svc := New(client, 1*time.Millisecond, nil)

		err := svc.Synthesize(context.Background(), Request{
			SequenceNumber: 1,
			Prompt:         "a calm lake at dawn",
			DestPath:       dest,
		})
		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("passes reference image bytes when path is set", func(t *testing.T) {
		refPath := filepath.Join(t.TempDir(), "scene_1_ref.png")
		require.NoError(t, os.WriteFile(refPath, []byte("png-bytes"), 0o644))

		client := new(mockVeoClient)
		client.On("Submit", mock.Anything, mock.MatchedBy(func(req veo.SubmitRequest) bool {
			return string(req.ImageBytes) == "png-bytes" && req.ImageMIMEType == "image/png"
		})).Return("operations/op-2", nil)
		client.On("Poll", mock.Anything, "operations/op-2").
			Return(veo.PollResult{Done: true, VideoURI: "https://example.com/clip.mp4"}, nil)
		client.On("Download", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		svc := New(client, 1*time.Millisecond, nil)

		err := svc.Synthesize(context.Background(), Request{
			SequenceNumber:     2,
			Prompt:             "continue the scene",
			ReferenceImagePath: refPath,
			DestPath:           filepath.Join(t.TempDir(), "scene_2.mp4"),
		})
		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("returns error when reference image is unreadable", func(t *testing.T) {
		client := new(mockVeoClient)
		svc := New(client, 1*time.Millisecond, nil)

		err := svc.Synthesize(context.Background(), Request{
			SequenceNumber:     2,
			Prompt:             "continue the scene",
			ReferenceImagePath: filepath.Join(t.TempDir(), "missing.png"),
			DestPath:           filepath.Join(t.TempDir(), "scene_2.mp4"),
		})
		require.Error(t, err)
		client.AssertNotCalled(t, "Submit")
	})

	t.Run("returns ErrNoVideoProduced when done without clip", func(t *testing.T) {
		client := new(mockVeoClient)
		client.On("Submit", mock.Anything, mock.Anything).Return("operations/op-3", nil)
		client.On("Poll", mock.Anything, "operations/op-3").
			Return(veo.PollResult{Done: true}, nil)

		svc := New(client, 1*time.Millisecond, nil)

		err := svc.Synthesize(context.Background(), Request{
			SequenceNumber: 3,
			Prompt:         "test",
			DestPath:       filepath.Join(t.TempDir(), "scene_3.mp4"),
		})
		assert.ErrorIs(t, err, ErrNoVideoProduced)
		client.AssertNotCalled(t, "Download")
	})

	t.Run("returns ErrOperationFailed when operation reports an error", func(t *testing.T) {
		client := new(mockVeoClient)
		client.On("Submit", mock.Anything, mock.Anything).Return("operations/op-4", nil)
		client.On("Poll", mock.Anything, "operations/op-4").
			Return(veo.PollResult{Done: true, Error: "content policy violation"}, nil)

		svc := New(client, 1*time.Millisecond, nil)

		err := svc.Synthesize(context.Background(), Request{
			SequenceNumber: 4,
			Prompt:         "test",
			DestPath:       filepath.Join(t.TempDir(), "scene_4.mp4"),
		})
		assert.ErrorIs(t, err, ErrOperationFailed)
		assert.Contains(t, err.Error(), "content policy violation")
	})

	t.Run("stops polling when context deadline is exceeded", func(t *testing.T) {
		client := new(mockVeoClient)
		client.On("Submit", mock.Anything, mock.Anything).Return("operations/op-5", nil)
		client.On("Poll", mock.Anything, "operations/op-5").
			Return(veo.PollResult{Done: false}, nil)

		svc := New(client, 5*time.Millisecond, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := svc.Synthesize(ctx, Request{
			SequenceNumber: 5,
			Prompt:         "test",
			DestPath:       filepath.Join(t.TempDir(), "scene_5.mp4"),
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("propagates submit failure", func(t *testing.T) {
		client := new(mockVeoClient)
		client.On("Submit", mock.Anything, mock.Anything).Return("", assert.AnError)

		svc := New(client, 1*time.Millisecond, nil)

		err := svc.Synthesize(context.Background(), Request{
			SequenceNumber: 6,
			Prompt:         "test",
			DestPath:       filepath.Join(t.TempDir(), "scene_6.mp4"),
		})
		assert.ErrorIs(t, err, assert.AnError)
	})
}
