// Package openai adapts any OpenAI-compatible vision backend to the
// VisionProvider port. The backend takes video only as a base64 data-URI
// content part, so every call uses inline transport.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/bryanwahyu/motionspec/internal/domain/analysis"
)

type Client struct {
	client *openai.Client
	logger *zap.Logger
}

func NewClient(apiKey, baseURL string, logger *zap.Logger) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{client: openai.NewClientWithConfig(cfg), logger: logger}
}

func (c *Client) Name() string { return "openai" }

func (c *Client) SupportsRemoteFiles() bool { return false }

func (c *Client) UploadVideo(ctx context.Context, data []byte, mimeType string) (analysis.VideoPart, error) {
	return analysis.VideoPart{}, fmt.Errorf("%w: backend has no remote file store", analysis.ErrInvalidInput)
}

func (c *Client) DeleteFile(ctx context.Context, remoteName string) error { return nil }

func (c *Client) Generate(ctx context.Context, req analysis.GenerateRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req, false))
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty response from %s", analysis.ErrProviderRejection, req.Params.Model)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) Stream(ctx context.Context, req analysis.GenerateRequest) (<-chan analysis.Fragment, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(req, true))
	if err != nil {
		return nil, mapError(err)
	}

	ch := make(chan analysis.Fragment)
	go func() {
		defer close(ch)
		defer stream.Close()
		sawOutput := false
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				send(ctx, ch, analysis.Fragment{Err: mapError(err)})
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.ReasoningContent != "" {
					if !send(ctx, ch, analysis.Fragment{Kind: analysis.FragmentThinking, Text: choice.Delta.ReasoningContent}) {
						return
					}
				}
				if choice.Delta.Content != "" {
					sawOutput = true
					if !send(ctx, ch, analysis.Fragment{Kind: analysis.FragmentOutput, Text: choice.Delta.Content}) {
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

func (c *Client) buildRequest(req analysis.GenerateRequest, stream bool) openai.ChatCompletionRequest {
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
		{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: dataURI(req.Video.MimeType, req.Video.Inline),
			},
		},
	}
	if req.Image != nil {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: dataURI(req.Image.MimeType, req.Image.Data),
			},
		})
	}

	out := openai.ChatCompletionRequest{
		Model:       req.Params.Model,
		Temperature: req.Params.Temperature,
		Stream:      stream,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	}
	// Reasoning models (o1/o3/o4/gpt-5*) take MaxCompletionTokens instead of MaxTokens
	model := req.Params.Model
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		out.MaxCompletionTokens = int(req.Params.MaxOutputTokens)
	} else {
		out.MaxTokens = int(req.Params.MaxOutputTokens)
	}
	return out
}

func dataURI(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
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

func send(ctx context.Context, ch chan<- analysis.Fragment, f analysis.Fragment) bool {
	select {
	case ch <- f:
		return true
	case <-ctx.Done():
		return false
	}
}
