package analysis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domain "github.com/bryanwahyu/motionspec/internal/domain/analysis"
)

// fakeProvider scripts Generate/Stream responses per call and records every
// request it saw.
type fakeProvider struct {
	mu            sync.Mutex
	remoteSupport bool
	generate      func(call int, req domain.GenerateRequest) (string, error)
	stream        func(call int, req domain.GenerateRequest) ([]domain.Fragment, error)

	calls   []domain.GenerateRequest
	uploads int
	deletes int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()
	if f.generate == nil {
		return "**Overview:** ok.\n\n```css\n.a{}\n```\n", nil
	}
	return f.generate(n, req)
}

func (f *fakeProvider) Stream(ctx context.Context, req domain.GenerateRequest) (<-chan domain.Fragment, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()

	frags, err := f.stream(n, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan domain.Fragment, len(frags))
	for _, fr := range frags {
		ch <- fr
	}
	close(ch)
	return ch, nil
}

func (f *fakeProvider) SupportsRemoteFiles() bool { return f.remoteSupport }

func (f *fakeProvider) UploadVideo(ctx context.Context, data []byte, mimeType string) (domain.VideoPart, error) {
	f.mu.Lock()
	f.uploads++
	f.mu.Unlock()
	return domain.RemotePart("https://files.example/abc", "files/abc", mimeType), nil
}

func (f *fakeProvider) DeleteFile(ctx context.Context, remoteName string) error {
	f.mu.Lock()
	f.deletes++
	f.mu.Unlock()
	return nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProvider) call(i int) domain.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func (f *fakeProvider) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes
}

func testRequest(size int) Request {
	return Request{
		Video: make([]byte, size),
		Meta:  &domain.VideoMetadata{MimeType: "video/mp4", SizeBytes: int64(size)},
		Cfg: domain.Config{
			Format:  domain.FormatCSS,
			Quality: domain.QualityFast,
			Trigger: domain.TriggerHover,
		},
	}
}

func TestAnalyzeOnce_InlineAtThreshold(t *testing.T) {
	f := &fakeProvider{remoteSupport: true}
	svc := NewService(f, nil, DefaultLimits(), zap.NewNop())

	res, err := svc.AnalyzeOnce(context.Background(), testRequest(20<<20))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, 0, f.uploads)
	require.Equal(t, 1, f.callCount())
	assert.False(t, f.call(0).Video.IsRemote())
	assert.Len(t, f.call(0).Video.Inline, 20<<20)
}

func TestAnalyzeOnce_RemoteOverThreshold(t *testing.T) {
	f := &fakeProvider{remoteSupport: true}
	svc := NewService(f, nil, DefaultLimits(), zap.NewNop())

	_, err := svc.AnalyzeOnce(context.Background(), testRequest(20<<20+1))
	require.NoError(t, err)

	assert.Equal(t, 1, f.uploads)
	require.Equal(t, 1, f.callCount())
	assert.True(t, f.call(0).Video.IsRemote())
	assert.Equal(t, "https://files.example/abc", f.call(0).Video.RemoteURI)

	// upload cleanup is asynchronous
	require.Eventually(t, func() bool { return f.deleteCount() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestAnalyzeOnce_InlineWhenRemoteUnsupported(t *testing.T) {
	f := &fakeProvider{remoteSupport: false}
	svc := NewService(f, nil, DefaultLimits(), zap.NewNop())

	_, err := svc.AnalyzeOnce(context.Background(), testRequest(20<<20+1))
	require.NoError(t, err)
	assert.Equal(t, 0, f.uploads)
	assert.False(t, f.call(0).Video.IsRemote())
}

func TestAnalyzeOnce_UpgradeRetryOnTransport(t *testing.T) {
	f := &fakeProvider{remoteSupport: true}
	f.generate = func(call int, req domain.GenerateRequest) (string, error) {
		if call == 1 {
			return "", fmt.Errorf("%w: connection reset", domain.ErrTransport)
		}
		return "**Overview:** ok.\n\n```css\n.a{}\n```\n", nil
	}
	svc := NewService(f, nil, DefaultLimits(), zap.NewNop())

	res, err := svc.AnalyzeOnce(context.Background(), testRequest(100))
	require.NoError(t, err)
	require.NotNil(t, res)

	require.Equal(t, 2, f.callCount())
	assert.Equal(t, DefaultTable()[domain.QualityFast].Single, f.call(0).Params)
	assert.Equal(t, DefaultTable()[domain.QualityPro].Single, f.call(1).Params)
}

func TestAnalyzeOnce_NoRetryOnProviderRejection(t *testing.T) {
	f := &fakeProvider{remoteSupport: true}
	f.generate = func(call int, req domain.GenerateRequest) (string, error) {
		return "", fmt.Errorf("%w: unsafe content", domain.ErrProviderRejection)
	}
	svc := NewService(f, nil, DefaultLimits(), zap.NewNop())

	_, err := svc.AnalyzeOnce(context.Background(), testRequest(100))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderRejection)
	assert.Equal(t, 1, f.callCount())
}

func TestAnalyzeOnce_NoRetryOnProTier(t *testing.T) {
	f := &fakeProvider{remoteSupport: true}
	f.generate = func(call int, req domain.GenerateRequest) (string, error) {
		return "", fmt.Errorf("%w: connection reset", domain.ErrTransport)
	}
	svc := NewService(f, nil, DefaultLimits(), zap.NewNop())

	req := testRequest(100)
	req.Cfg.Quality = domain.QualityPro
	_, err := svc.AnalyzeOnce(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, 1, f.callCount())
}

func TestAnalyzeOnce_Validation(t *testing.T) {
	f := &fakeProvider{remoteSupport: true}
	svc := NewService(f, nil, DefaultLimits(), zap.NewNop())

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"empty video", func(r *Request) { r.Video = nil }},
		{"unknown format", func(r *Request) { r.Cfg.Format = "svelte" }},
		{"unknown quality", func(r *Request) { r.Cfg.Quality = "ultra" }},
		{"unknown trigger", func(r *Request) { r.Cfg.Trigger = "shake" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(100)
			tt.mutate(&req)
			_, err := svc.AnalyzeOnce(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Equal(t, 0, f.callCount())
		})
	}
}

func TestAnalyzeOnceStream_SeparatesThinking(t *testing.T) {
	f := &fakeProvider{remoteSupport: true}
	f.stream = func(call int, req domain.GenerateRequest) ([]domain.Fragment, error) {
		return []domain.Fragment{
			{Kind: domain.FragmentThinking, Text: "let me look at the easing"},
			{Kind: domain.FragmentOutput, Text: "**Overview:** ok.\n"},
			{Kind: domain.FragmentOutput, Text: "```css\n.a{}\n```"},
		}, nil
	}
	svc := NewService(f, nil, DefaultLimits(), zap.NewNop())

	frags, err := svc.AnalyzeOnceStream(context.Background(), testRequest(100))
	require.NoError(t, err)

	var thinking, output string
	for fr := range frags {
		require.NoError(t, fr.Err)
		if fr.Kind == domain.FragmentThinking {
			thinking += fr.Text
		} else {
			output += fr.Text
		}
	}
	assert.Equal(t, "let me look at the easing", thinking)
	assert.Equal(t, "**Overview:** ok.\n```css\n.a{}\n```", output)
	assert.NotContains(t, output, "easing")
}
