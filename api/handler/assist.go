package handler

import (
	"io"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskflow/api/transport"
	"github.com/fastygo/taskflow/api/validation"
	"github.com/fastygo/taskflow/domain"
	"github.com/fastygo/taskflow/internal/ai"
	"github.com/fastygo/taskflow/pkg/httpcontext"
	assistUC "github.com/fastygo/taskflow/usecase/assist"
)

const (
	msgRateLimited    = "Rate limit exceeded. Please wait and try again."
	msgInvalidContext = "Invalid input: 'context' is required and must be a string (1-1000 chars)."
	msgInvalidPrompt  = "Invalid input: 'prompt' is required and must be a string (1-300 chars)."
	msgNoAudio        = "No audio provided"
)

// Limiters groups the budgets of the AI endpoints.
type Limiters struct {
	Suggest RateLimiter
	Image   RateLimiter
	Voice   RateLimiter
}

// AssistHandler serves the AI helper endpoints. Its adapter should carry the
// upstream timeout, not the CRUD one.
type AssistHandler struct {
	baseHandler
	uc       *assistUC.UseCase
	limiters Limiters
}

func NewAssistHandler(uc *assistUC.UseCase, limiters Limiters, adapter *httpcontext.Adapter, logger *zap.Logger, production bool) *AssistHandler {
	return &AssistHandler{
		baseHandler: newBaseHandler(adapter, logger, production),
		uc:          uc,
		limiters:    limiters,
	}
}

// @Summary Suggest tasks
// @Tags ai
// @Router /api/ai-suggest [post]
func (h *AssistHandler) Suggest(ctx *fasthttp.RequestCtx) {
	id, ok := h.identity(ctx)
	if !ok {
		return
	}
	if !h.allow(ctx, h.limiters.Suggest, id.UserID, msgRateLimited) {
		return
	}
	raw, ok := h.decodeBody(ctx)
	if !ok {
		return
	}
	taskContext, err := validation.SuggestContext(raw)
	if err != nil {
		h.respondInvalid(ctx, msgInvalidContext, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	text, err := h.uc.Suggest(stdCtx, taskContext)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.SuggestResponse{Suggestions: text})
}

// @Summary Generate image
// @Tags ai
// @Router /api/fal-image [post]
func (h *AssistHandler) Image(ctx *fasthttp.RequestCtx) {
	id, ok := h.identity(ctx)
	if !ok {
		return
	}
	if !h.allow(ctx, h.limiters.Image, id.UserID, msgRateLimited) {
		return
	}
	raw, ok := h.decodeBody(ctx)
	if !ok {
		return
	}
	prompt, err := validation.ImagePrompt(raw)
	if err != nil {
		h.respondInvalid(ctx, msgInvalidPrompt, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	url, err := h.uc.GenerateImage(stdCtx, prompt)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.ImageResponse{ImageURL: url})
}

// @Summary Transcribe audio
// @Tags ai
// @Accept multipart/form-data
// @Router /api/voice-to-text [post]
func (h *AssistHandler) Voice(ctx *fasthttp.RequestCtx) {
	id, ok := h.identity(ctx)
	if !ok {
		return
	}
	if !h.allow(ctx, h.limiters.Voice, id.UserID, msgRateLimited) {
		return
	}
	audio, ok := h.readAudio(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	text, err := h.uc.Transcribe(stdCtx, audio)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.TranscriptResponse{Transcript: text})
}

func (h *AssistHandler) readAudio(ctx *fasthttp.RequestCtx) (ai.Audio, bool) {
	header, err := ctx.FormFile("audio")
	if err != nil {
		h.respondError(ctx, domain.NewError(domain.ErrCodeInvalid, msgNoAudio))
		return ai.Audio{}, false
	}
	f, err := header.Open()
	if err != nil {
		h.respondError(ctx, domain.WrapError(domain.ErrCodeInvalid, msgNoAudio, err))
		return ai.Audio{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil || len(data) == 0 {
		h.respondError(ctx, domain.NewError(domain.ErrCodeInvalid, msgNoAudio))
		return ai.Audio{}, false
	}
	return ai.Audio{Data: data, ContentType: header.Header.Get("Content-Type")}, true
}
