package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskflow/api/transport"
	"github.com/fastygo/taskflow/api/validation"
	"github.com/fastygo/taskflow/domain"
	"github.com/fastygo/taskflow/pkg/httpcontext"
)

const internalErrorMessage = "Internal server error"

// RateLimiter is the per-identity budget consulted before a handler does work.
type RateLimiter interface {
	Allow(identity string) bool
	Window() time.Duration
}

type baseHandler struct {
	adapter    *httpcontext.Adapter
	logger     *zap.Logger
	production bool
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger, production bool) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if adapter == nil {
		adapter = httpcontext.NewAdapter(0)
	}
	return baseHandler{adapter: adapter, logger: logger, production: production}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	return h.adapter.Attach(ctx)
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
		status = http.StatusInternalServerError
		body = []byte(`{"error":"` + internalErrorMessage + `"}`)
	}
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

// respondError converts err into the JSON error body. Unclassified errors are
// logged and replaced by a generic message.
func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, err error) {
	code := domain.CodeOf(err)
	status := statusFor(code)

	message := internalErrorMessage
	var dErr *domain.Error
	if code != domain.ErrCodeInternal && errors.As(err, &dErr) {
		message = dErr.Message
	}

	log := h.log(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		log.Error("request failed", zap.String("code", string(code)), zap.Error(err))
	default:
		log.Debug("request rejected", zap.String("code", string(code)), zap.Error(err))
	}

	h.respondJSON(ctx, status, transport.NewError(string(code), message, nil))
}

// respondInvalid answers 400 with message. Field details are attached outside
// production.
func (h baseHandler) respondInvalid(ctx *fasthttp.RequestCtx, message string, err error) {
	var details interface{}
	var fe validation.FieldErrors
	if !h.production && errors.As(err, &fe) {
		details = fe
	}
	h.log(ctx).Debug("validation failed", zap.Error(err))
	h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), message, details))
}

// identity returns the authenticated caller or answers 401.
func (h baseHandler) identity(ctx *fasthttp.RequestCtx) (httpcontext.Identity, bool) {
	id, ok := httpcontext.IdentityFrom(ctx)
	if !ok {
		h.respondError(ctx, domain.ErrUnauthorized)
	}
	return id, ok
}

// allow consults limiter for userID and answers 429 with message when the
// budget is spent.
func (h baseHandler) allow(ctx *fasthttp.RequestCtx, limiter RateLimiter, userID, message string) bool {
	if limiter == nil || limiter.Allow(userID) {
		return true
	}
	if secs := int(limiter.Window().Seconds()); secs > 0 {
		ctx.Response.Header.Set("Retry-After", strconv.Itoa(secs))
	}
	h.respondError(ctx, domain.NewError(domain.ErrCodeRateLimited, message))
	return false
}

// decodeBody parses the request body as a JSON object or answers 400.
func (h baseHandler) decodeBody(ctx *fasthttp.RequestCtx) (map[string]json.RawMessage, bool) {
	raw, err := validation.DecodeObject(ctx.PostBody())
	if err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return nil, false
	}
	return raw, true
}

func (h baseHandler) log(ctx *fasthttp.RequestCtx) *zap.Logger {
	fields := []zap.Field{zap.String("request_id", httpcontext.RequestID(ctx))}
	if id, ok := httpcontext.IdentityFrom(ctx); ok {
		fields = append(fields, zap.String("user_id", id.UserID))
	}
	return h.logger.With(fields...)
}

func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrCodeInvalid:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// pathID returns the {id} route parameter.
// queryUint reads an optional non-negative integer query argument. An absent
// key yields 0.
func queryUint(args *fasthttp.Args, key string) (int, bool) {
	if !args.Has(key) {
		return 0, true
	}
	n, err := args.GetUint(key)
	return n, err == nil
}

func pathID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	return id
}
