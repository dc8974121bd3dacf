package analysis

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/motionspec/internal/domain/analysis"
	"github.com/bryanwahyu/motionspec/internal/infra/ai/prompt"
)

// The agentic pipeline: four strictly sequential passes over the same video,
// each pass one complete streamed model call whose full text feeds the next
// pass's prompt. No branching, no skipping, no retry across passes; any pass
// failing aborts the whole run.

const totalPasses = 4

var passNames = [totalPasses]string{"decompose", "deep-analysis", "generate", "verify"}

// PipelineOutcome carries the accumulated pass texts of a completed run.
// Deliverable is pass 3's artifact; Verification is pass 4's raw JSON text.
type PipelineOutcome struct {
	PassTexts    [totalPasses]string
	Deliverable  string
	Verification string
}

// Raw concatenates the pass outputs the way downstream parsing expects:
// deliverable first, verification JSON trailing.
func (o PipelineOutcome) Raw() string {
	return o.Deliverable + "\n\n```json\n" + o.Verification + "\n```\n"
}

// RunPipeline starts the 4-pass run and returns its event stream plus a
// one-shot outcome channel. The events channel closes when the run ends;
// the outcome channel receives a value only on full success. InvalidInput is
// reported synchronously, never as a stream event.
func (s *Service) RunPipeline(ctx context.Context, req Request) (<-chan domain.PipelineEvent, <-chan PipelineOutcome, error) {
	if err := s.validate(req); err != nil {
		return nil, nil, err
	}
	// Tier lookup happens again per pass; here it only rejects unknown
	// tiers before any channel is handed out.
	if _, err := s.quality.Profile(req.Cfg.Quality); err != nil {
		return nil, nil, err
	}

	events := make(chan domain.PipelineEvent)
	outcome := make(chan PipelineOutcome, 1)

	go func() {
		defer close(events)
		defer close(outcome)

		ctx, cancel := context.WithTimeout(ctx, s.limits.PipelineTimeout)
		defer cancel()

		part, cleanup, err := s.selectTransport(ctx, req.Video, mimeTypeOf(req))
		if err != nil {
			s.emitError(ctx, events, 1, err)
			return
		}
		defer cleanup()

		var texts [totalPasses]string
		for pass := 0; pass < totalPasses; pass++ {
			if !emit(ctx, events, domain.PipelineEvent{
				Type: domain.EventPassStart, Pass: pass + 1,
				PassName: passNames[pass], TotalPasses: totalPasses,
			}) {
				return
			}

			text, err := s.runPass(ctx, events, pass, part, req, texts)
			if err != nil {
				s.logger.Warn("pipeline pass failed",
					zap.Int("pass", pass+1),
					zap.String("name", passNames[pass]),
					zap.Error(err))
				s.emitError(ctx, events, pass+1, err)
				return
			}
			texts[pass] = text

			if !emit(ctx, events, domain.PipelineEvent{
				Type: domain.EventPassComplete, Pass: pass + 1,
				PassName: passNames[pass], TotalPasses: totalPasses,
				Text: text,
			}) {
				return
			}
		}

		outcome <- PipelineOutcome{
			PassTexts:    texts,
			Deliverable:  texts[2],
			Verification: texts[3],
		}
	}()

	return events, outcome, nil
}

// runPass issues one streamed model call, forwarding fragments as pipeline
// events and accumulating the output text. Thinking fragments are routed to
// their own event type and never reach the accumulated text.
func (s *Service) runPass(ctx context.Context, events chan<- domain.PipelineEvent, pass int, part domain.VideoPart, req Request, texts [totalPasses]string) (string, error) {
	frags, err := s.provider.Stream(ctx, domain.GenerateRequest{
		Video:  part,
		Image:  req.Image,
		Prompt: s.passPrompt(pass, req, texts),
		Params: s.passParams(pass, req.Cfg.Quality),
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for frag := range frags {
		if frag.Err != nil {
			return "", frag.Err
		}
		evType := domain.EventChunk
		if frag.Kind == domain.FragmentThinking {
			evType = domain.EventThinking
		} else {
			b.WriteString(frag.Text)
		}
		if !emit(ctx, events, domain.PipelineEvent{
			Type: evType, Pass: pass + 1,
			PassName: passNames[pass], TotalPasses: totalPasses,
			Text: frag.Text,
		}) {
			return "", ctx.Err()
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("%w: pass %d produced no output", domain.ErrProviderRejection, pass+1)
	}
	return b.String(), nil
}

// passPrompt builds the pass's instruction, forwarding prior pass text under
// the configured caps.
func (s *Service) passPrompt(pass int, req Request, texts [totalPasses]string) string {
	switch pass {
	case 0:
		return prompt.BuildDecompose(req.Cfg.Trigger, req.Meta)
	case 1:
		return prompt.BuildDeepAnalysis(truncate(texts[0], s.limits.Pass1ContextMax), req.Meta)
	case 2:
		return prompt.BuildGenerate(req.Cfg.Format,
			truncate(texts[0], s.limits.Pass1ContextMax),
			truncate(texts[1], s.limits.Pass2ContextMax))
	default:
		return prompt.BuildVerify(
			truncate(texts[2], s.limits.Pass3ContextMax),
			truncate(texts[0], s.limits.Pass1ContextMax))
	}
}

func (s *Service) passParams(pass int, q domain.QualityLevel) domain.GenerateParams {
	profile, _ := s.quality.Profile(q) // validated before the run started
	return profile.Passes[pass]
}

func (s *Service) emitError(ctx context.Context, events chan<- domain.PipelineEvent, pass int, err error) {
	emit(ctx, events, domain.PipelineEvent{
		Type: domain.EventError, Pass: pass,
		PassName: passNames[pass-1], TotalPasses: totalPasses,
		Text: err.Error(),
	})
}

func emit(ctx context.Context, ch chan<- domain.PipelineEvent, ev domain.PipelineEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// truncate caps s at max bytes without splitting a rune.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
