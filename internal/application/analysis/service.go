// Package analysis implements the analysis use-cases: transport selection,
// the single-call analyzer, the 4-pass agentic pipeline, and the output
// parser. One Service instance is shared across requests; all per-request
// state lives on the stack of the request's goroutine.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/motionspec/internal/domain/analysis"
	"github.com/bryanwahyu/motionspec/internal/infra/ai/prompt"
)

// Limits are the tunable cost-control constants. The per-pass context caps
// bound prompt growth across the pipeline; they are tuning values, not
// contracts.
type Limits struct {
	InlineMaxBytes  int64
	PipelineTimeout time.Duration
	Pass1ContextMax int
	Pass2ContextMax int
	Pass3ContextMax int
}

// DefaultLimits: 20 MiB inline threshold, 10 minute pipeline ceiling,
// 4000/5000/6000 character forwarding caps.
func DefaultLimits() Limits {
	return Limits{
		InlineMaxBytes:  20 << 20,
		PipelineTimeout: 10 * time.Minute,
		Pass1ContextMax: 4000,
		Pass2ContextMax: 5000,
		Pass3ContextMax: 6000,
	}
}

type Service struct {
	provider domain.VisionProvider
	quality  Table
	limits   Limits
	logger   *zap.Logger
}

func NewService(provider domain.VisionProvider, quality Table, limits Limits, logger *zap.Logger) *Service {
	if quality == nil {
		quality = DefaultTable()
	}
	if limits == (Limits{}) {
		limits = DefaultLimits()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{provider: provider, quality: quality, limits: limits, logger: logger}
}

// Request is one analysis invocation.
type Request struct {
	Video []byte
	Meta  *domain.VideoMetadata
	Image *domain.Image
	Cfg   domain.Config
}

func (s *Service) validate(req Request) error {
	if len(req.Video) == 0 {
		return fmt.Errorf("%w: no video data", domain.ErrInvalidInput)
	}
	if _, err := domain.ParseFormat(string(req.Cfg.Format)); err != nil {
		return err
	}
	if _, err := domain.ParseQuality(string(req.Cfg.Quality)); err != nil {
		return err
	}
	if req.Cfg.Trigger != "" {
		if _, err := domain.ParseTrigger(string(req.Cfg.Trigger)); err != nil {
			return err
		}
	}
	return nil
}

// selectTransport applies the inline-size threshold: at or under it the
// bytes go inline; over it the video is uploaded to the provider's file
// store and referenced by URI. The returned cleanup schedules best-effort
// deletion of any provider-side file and never fails the request.
func (s *Service) selectTransport(ctx context.Context, video []byte, mimeType string) (domain.VideoPart, func(), error) {
	noop := func() {}
	if int64(len(video)) <= s.limits.InlineMaxBytes || !s.provider.SupportsRemoteFiles() {
		return domain.InlinePart(video, mimeType), noop, nil
	}

	part, err := s.provider.UploadVideo(ctx, video, mimeType)
	if err != nil {
		return domain.VideoPart{}, noop, err
	}

	cleanup := func() {
		go func() {
			bg, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.provider.DeleteFile(bg, part.RemoteName); err != nil {
				s.logger.Warn("remote file cleanup failed",
					zap.String("file", part.RemoteName), zap.Error(err))
			}
		}()
	}
	return part, cleanup, nil
}

func mimeTypeOf(req Request) string {
	if req.Meta != nil && req.Meta.MimeType != "" {
		return req.Meta.MimeType
	}
	return "video/mp4"
}

// AnalyzeOnce runs the blocking single-call fast path and parses the
// response into a structured result.
//
// Policy: on the cheapest tier only, a transport failure is retried exactly
// once at the next-higher tier's parameters. Provider rejections and rate
// limits are never retried.
func (s *Service) AnalyzeOnce(ctx context.Context, req Request) (*domain.Result, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	profile, err := s.quality.Profile(req.Cfg.Quality)
	if err != nil {
		return nil, err
	}

	part, cleanup, err := s.selectTransport(ctx, req.Video, mimeTypeOf(req))
	if err != nil {
		return nil, err
	}
	defer cleanup()

	text := ""
	gen := domain.GenerateRequest{
		Video:  part,
		Image:  req.Image,
		Prompt: prompt.Build(req.Cfg.Format, req.Cfg.Trigger, req.Meta, req.Cfg.Quality, req.Image),
		Params: profile.Single,
	}
	text, err = s.provider.Generate(ctx, gen)
	if err != nil && profile.UpgradeTo != "" && errors.Is(err, domain.ErrTransport) {
		upgraded, perr := s.quality.Profile(profile.UpgradeTo)
		if perr == nil {
			s.logger.Info("retrying at higher tier after transport failure",
				zap.String("from", string(req.Cfg.Quality)),
				zap.String("to", string(profile.UpgradeTo)))
			gen.Params = upgraded.Single
			text, err = s.provider.Generate(ctx, gen)
		}
	}
	if err != nil {
		return nil, err
	}

	return ParseOutput(text, req.Cfg.Format)
}

// AnalyzeOnceStream is the incremental variant: fragments arrive in provider
// order, thinking and output already separated. No tier-upgrade retry on the
// streaming path.
func (s *Service) AnalyzeOnceStream(ctx context.Context, req Request) (<-chan domain.Fragment, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	profile, err := s.quality.Profile(req.Cfg.Quality)
	if err != nil {
		return nil, err
	}

	part, cleanup, err := s.selectTransport(ctx, req.Video, mimeTypeOf(req))
	if err != nil {
		return nil, err
	}

	inner, err := s.provider.Stream(ctx, domain.GenerateRequest{
		Video:  part,
		Image:  req.Image,
		Prompt: prompt.Build(req.Cfg.Format, req.Cfg.Trigger, req.Meta, req.Cfg.Quality, req.Image),
		Params: profile.Single,
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	out := make(chan domain.Fragment)
	go func() {
		defer close(out)
		defer cleanup()
		for frag := range inner {
			select {
			case out <- frag:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
