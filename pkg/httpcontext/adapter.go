package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/taskflow/pkg/logger"
)

const (
	identityKey  = "taskflow.identity"
	requestIDKey = "taskflow.request_id"
)

// Identity is the authenticated caller as asserted by the identity provider.
type Identity struct {
	UserID    string
	SessionID string
	Email     string
	Name      string
	ImageURL  string
}

// SetIdentity stores the authenticated caller on the request.
func SetIdentity(ctx *fasthttp.RequestCtx, id Identity) {
	ctx.SetUserValue(identityKey, id)
}

// IdentityFrom returns the authenticated caller, if the request has one.
func IdentityFrom(ctx *fasthttp.RequestCtx) (Identity, bool) {
	id, ok := ctx.UserValue(identityKey).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

// RequestID returns the request's ID, assigning one on first use and echoing
// it in the X-Request-ID response header.
func RequestID(ctx *fasthttp.RequestCtx) string {
	if id, ok := ctx.UserValue(requestIDKey).(string); ok && id != "" {
		return id
	}
	id := string(ctx.Request.Header.Peek("X-Request-ID"))
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	ctx.SetUserValue(requestIDKey, id)
	ctx.Response.Header.Set("X-Request-ID", id)
	return id
}

// Adapter converts fasthttp.RequestCtx into a stdlib context with deadlines and metadata.
type Adapter struct {
	timeout time.Duration
}

// NewAdapter constructs a new Adapter using the provided timeout.
func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{
		timeout: timeout,
	}
}

// Timeout returns the deadline applied to attached contexts.
func (a *Adapter) Timeout() time.Duration {
	return a.timeout
}

// Attach derives a context bounded by the adapter timeout that carries the
// request and user ids for logging.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	stdCtx = appLogger.ContextWithRequestID(stdCtx, RequestID(ctx))
	if id, ok := IdentityFrom(ctx); ok {
		stdCtx = appLogger.ContextWithUserID(stdCtx, id.UserID)
	}

	return stdCtx, cancel
}
