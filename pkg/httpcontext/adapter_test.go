package httpcontext

import (
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/taskflow/pkg/logger"
)

func newCtx() *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.SetRequestURI("/api/tasks")
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	return ctx
}

func TestAttachCarriesRequestIDAndDeadline(t *testing.T) {
	ctx := newCtx()
	ctx.Request.Header.Set("X-Request-ID", "abc")

	stdCtx, cancel := NewAdapter(time.Second).Attach(ctx)
	defer cancel()

	if got := appLogger.RequestID(stdCtx); got != "abc" {
		t.Errorf("request id = %q, want abc", got)
	}
	if got := string(ctx.Response.Header.Peek("X-Request-ID")); got != "abc" {
		t.Errorf("response header = %q, want abc", got)
	}
	if _, ok := stdCtx.Deadline(); !ok {
		t.Error("expected deadline")
	}
}

func TestRequestIDGeneratedOnce(t *testing.T) {
	ctx := newCtx()
	first := RequestID(ctx)
	if first == "" {
		t.Fatal("expected generated id")
	}
	if second := RequestID(ctx); second != first {
		t.Errorf("RequestID changed: %q then %q", first, second)
	}
}

func TestIdentity(t *testing.T) {
	ctx := newCtx()
	if _, ok := IdentityFrom(ctx); ok {
		t.Fatal("fresh request should have no identity")
	}
	SetIdentity(ctx, Identity{UserID: "user_1"})
	id, ok := IdentityFrom(ctx)
	if !ok || id.UserID != "user_1" {
		t.Fatalf("IdentityFrom() = %+v, %v", id, ok)
	}
}

func TestNewAdapterDefaultTimeout(t *testing.T) {
	if got := NewAdapter(0).Timeout(); got != 5*time.Second {
		t.Errorf("Timeout() = %v", got)
	}
}
