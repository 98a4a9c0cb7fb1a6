package assist

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fastygo/taskflow/domain"
	"github.com/fastygo/taskflow/internal/ai"
	appLogger "github.com/fastygo/taskflow/pkg/logger"
)

type Suggester interface {
	Suggest(ctx context.Context, taskContext string) (string, error)
}

type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (*string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio ai.Audio) (string, error)
}

// UseCase forwards validated input to the AI providers and classifies their
// failures. Nothing is retried.
type UseCase struct {
	suggester   Suggester
	images      ImageGenerator
	transcriber Transcriber
	logger      *zap.Logger
}

func New(suggester Suggester, images ImageGenerator, transcriber Transcriber, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		suggester:   suggester,
		images:      images,
		transcriber: transcriber,
		logger:      logger,
	}
}

func (uc *UseCase) Suggest(ctx context.Context, taskContext string) (string, error) {
	if uc.suggester == nil {
		return "", domain.NewError(domain.ErrCodeMisconfigured, "Missing OpenAI API key")
	}
	text, err := uc.suggester.Suggest(ctx, taskContext)
	if err != nil {
		if errors.Is(err, ai.ErrMissingCredentials) {
			return "", domain.WrapError(domain.ErrCodeMisconfigured, "Missing OpenAI API key", err)
		}
		appLogger.FromContext(ctx, uc.logger).Warn("suggestion provider failed", zap.Error(err))
		return "", domain.WrapError(domain.ErrCodeUpstream, "AI suggestion failed", err)
	}
	return text, nil
}

// GenerateImage returns the first image URL, or nil when none was produced.
func (uc *UseCase) GenerateImage(ctx context.Context, prompt string) (*string, error) {
	if uc.images == nil {
		return nil, domain.NewError(domain.ErrCodeMisconfigured, "Missing FAL_KEY")
	}
	url, err := uc.images.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, ai.ErrMissingCredentials) {
			return nil, domain.WrapError(domain.ErrCodeMisconfigured, "Missing FAL_KEY", err)
		}
		appLogger.FromContext(ctx, uc.logger).Warn("image provider failed", zap.Error(err))
		return nil, domain.WrapError(domain.ErrCodeUpstream, err.Error(), err)
	}
	return url, nil
}

// Transcribe returns the recognized text. Provider failures surface the
// provider's response body as the message.
func (uc *UseCase) Transcribe(ctx context.Context, audio ai.Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", domain.NewError(domain.ErrCodeInvalid, "No audio provided")
	}
	if uc.transcriber == nil {
		return "", domain.NewError(domain.ErrCodeMisconfigured, "Missing ElevenLabs API key")
	}
	text, err := uc.transcriber.Transcribe(ctx, audio)
	if err != nil {
		if errors.Is(err, ai.ErrMissingCredentials) {
			return "", domain.WrapError(domain.ErrCodeMisconfigured, "Missing ElevenLabs API key", err)
		}
		appLogger.FromContext(ctx, uc.logger).Warn("transcription provider failed", zap.Error(err))
		message := err.Error()
		var pe *ai.ProviderError
		if errors.As(err, &pe) {
			message = pe.Body
		}
		return "", domain.WrapError(domain.ErrCodeUpstream, message, err)
	}
	return text, nil
}
