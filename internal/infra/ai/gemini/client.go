// Package gemini adapts the Gemini family to the VisionProvider port.
// Videos travel either as inline bytes or as Files API references; streamed
// candidates are decoded into the thinking/output fragment union at this
// boundary so nothing upstream sees provider shapes.
package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/bryanwahyu/motionspec/internal/domain/analysis"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultReadyTimeout = 60 * time.Second
)

type Client struct {
	client       *genai.Client
	logger       *zap.Logger
	pollInterval time.Duration
	readyTimeout time.Duration
}

// Option tunes the client. Tests shorten the readiness poll.
type Option func(*Client)

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

func WithReadyTimeout(d time.Duration) Option {
	return func(c *Client) { c.readyTimeout = d }
}

func NewClient(ctx context.Context, apiKey string, logger *zap.Logger, opts ...Option) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client init: %w", err)
	}
	c := &Client{
		client:       gc,
		logger:       logger,
		pollInterval: defaultPollInterval,
		readyTimeout: defaultReadyTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) SupportsRemoteFiles() bool { return true }

func (c *Client) Generate(ctx context.Context, req analysis.GenerateRequest) (string, error) {
	contents := buildContents(req)
	resp, err := c.client.Models.GenerateContent(ctx, req.Params.Model, contents, buildConfig(req.Params))
	if err != nil {
		return "", mapError(err)
	}
	text := collectOutput(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty response from %s", analysis.ErrProviderRejection, req.Params.Model)
	}
	return text, nil
}

func (c *Client) Stream(ctx context.Context, req analysis.GenerateRequest) (<-chan analysis.Fragment, error) {
	contents := buildContents(req)

	ch := make(chan analysis.Fragment)
	go func() {
		defer close(ch)
		sawOutput := false
		for resp, err := range c.client.Models.GenerateContentStream(ctx, req.Params.Model, contents, buildConfig(req.Params)) {
			if err != nil {
				send(ctx, ch, analysis.Fragment{Err: mapError(err)})
				return
			}
			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if part.Text == "" {
						continue
					}
					frag := analysis.Fragment{Kind: analysis.FragmentOutput, Text: part.Text}
					if part.Thought {
						frag.Kind = analysis.FragmentThinking
					} else {
						sawOutput = true
					}
					if !send(ctx, ch, frag) {
						return
					}
				}
			}
		}
		if !sawOutput {
			send(ctx, ch, analysis.Fragment{Err: fmt.Errorf("%w: stream produced no output text", analysis.ErrProviderRejection)})
		}
	}()
	return ch, nil
}

// UploadVideo pushes bytes to the Files API and polls the processing state
// until the file is active. An unready or failed file is never returned.
func (c *Client) UploadVideo(ctx context.Context, data []byte, mimeType string) (analysis.VideoPart, error) {
	file, err := c.client.Files.Upload(ctx, bytes.NewReader(data), &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		return analysis.VideoPart{}, mapError(err)
	}

	deadline := time.Now().Add(c.readyTimeout)
	for file.State == genai.FileStateProcessing {
		if time.Now().After(deadline) {
			return analysis.VideoPart{}, fmt.Errorf("%w: file %s not ready after %s", analysis.ErrTimeout, file.Name, c.readyTimeout)
		}
		select {
		case <-ctx.Done():
			return analysis.VideoPart{}, fmt.Errorf("%w: %v", analysis.ErrTimeout, ctx.Err())
		case <-time.After(c.pollInterval):
		}
		file, err = c.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return analysis.VideoPart{}, mapError(err)
		}
	}
	if file.State == genai.FileStateFailed {
		return analysis.VideoPart{}, fmt.Errorf("%w: file %s entered failed state", analysis.ErrProviderRejection, file.Name)
	}

	c.logger.Debug("video uploaded",
		zap.String("file", file.Name),
		zap.String("mime", mimeType),
		zap.Int("bytes", len(data)))
	return analysis.RemotePart(file.URI, file.Name, mimeType), nil
}

func (c *Client) DeleteFile(ctx context.Context, remoteName string) error {
	_, err := c.client.Files.Delete(ctx, remoteName, nil)
	return err
}

func buildContents(req analysis.GenerateRequest) []*genai.Content {
	parts := []*genai.Part{{Text: req.Prompt}}

	if req.Video.IsRemote() {
		parts = append(parts, &genai.Part{FileData: &genai.FileData{
			FileURI:  req.Video.RemoteURI,
			MIMEType: req.Video.MimeType,
		}})
	} else {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{
			MIMEType: req.Video.MimeType,
			Data:     req.Video.Inline,
		}})
	}

	if req.Image != nil {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{
			MIMEType: req.Image.MimeType,
			Data:     req.Image.Data,
		}})
	}

	return []*genai.Content{{Role: "user", Parts: parts}}
}

func buildConfig(p analysis.GenerateParams) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.Temperature),
		MaxOutputTokens: p.MaxOutputTokens,
	}
	if p.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(p.ThinkingBudget),
		}
	}
	return cfg
}

// collectOutput joins the answer text, skipping thought parts.
func collectOutput(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.Thought {
				continue
			}
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", analysis.ErrRateLimited, apiErr.Message)
		case http.StatusBadRequest, http.StatusForbidden:
			return fmt.Errorf("%w: %s", analysis.ErrProviderRejection, apiErr.Message)
		default:
			return fmt.Errorf("%w: %s", analysis.ErrTransport, apiErr.Message)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", analysis.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", analysis.ErrTransport, err)
}

// send delivers a fragment unless the consumer is gone.
func send(ctx context.Context, ch chan<- analysis.Fragment, f analysis.Fragment) bool {
	select {
	case ch <- f:
		return true
	case <-ctx.Done():
		return false
	}
}
