package claims

import (
	"context"
	"errors"
	"fmt"

	"github.com/auditmos/dianoia/logging"
)

var ErrEmptyCompletion = errors.New("model returned an empty claim")

// Service turns an action and a claim into a generated claim.
type Service struct {
	gen    Generator
	logger logging.Logger
}

// NewService builds a Service. A nil logger defers to the logger carried by
// each request context.
func NewService(gen Generator, logger logging.Logger) *Service {
	return &Service{gen: gen, logger: logger}
}

func (s *Service) log(ctx context.Context) logging.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.FromContext(ctx)
}

func (s *Service) Generate(ctx context.Context, action Action, claim string) (string, error) {
	logger := s.log(ctx).WithContext(logging.Fields{"claimAction": string(action)})

	action, err := ParseAction(string(action))
	if err != nil {
		logger.TrackError(err, "claims", "build_prompt", logging.Fields{"claim": claim})
		return "", err
	}
	prompt, err := BuildPrompt(action, claim)
	if err != nil {
		logger.TrackError(err, "claims", "build_prompt", logging.Fields{"claim": claim})
		return "", err
	}
	logger.WithData(logging.Fields{"promptLength": len(prompt)}).Debug("claims", "build_prompt", "Prompt ready")

	timer := logger.StartTimer("claim_generation", logging.Fields{"action": string(action)})
	out, err := s.gen.Complete(ctx, prompt)
	logger.EndTimer(timer, logging.Fields{"success": err == nil})
	if err != nil {
		err = logging.WrapErrorWithType("generate claim", err, "CompletionError")
		logger.TrackError(err, "claims", "generate", nil)
		return "", err
	}
	if out == "" {
		err = logging.WrapErrorWithType("generate claim", ErrEmptyCompletion, "CompletionError")
		logger.TrackError(err, "claims", "generate", nil)
		return "", err
	}

	logger.WithData(logging.Fields{"length": len(out)}).
		Info("claims", "generate", fmt.Sprintf("Generated %s claim", action))
	return out, nil
}
