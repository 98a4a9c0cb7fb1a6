package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskflow/api/handler"
	"github.com/fastygo/taskflow/api/transport"
	"github.com/fastygo/taskflow/domain"
	"github.com/fastygo/taskflow/pkg/httpcontext"
)

type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

type Handlers struct {
	Health  *apiHandler.HealthHandler
	Profile *apiHandler.ProfileHandler
	Task    *apiHandler.TaskHandler
	Assist  *apiHandler.AssistHandler
}

func New(handlers Handlers, authMiddleware Middleware, logger *zap.Logger) *router.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := router.New()
	r.PanicHandler = panicHandler(logger)

	r.GET("/health", handlers.Health.Check)

	api := r.Group("/api")
	api.GET("/me", authMiddleware(handlers.Profile.Me))

	api.GET("/tasks", authMiddleware(handlers.Task.List))
	api.POST("/tasks", authMiddleware(handlers.Task.Create))
	api.PATCH("/tasks", authMiddleware(handlers.Task.Patch))
	api.DELETE("/tasks", authMiddleware(handlers.Task.Remove))
	api.GET("/tasks/{id}", authMiddleware(handlers.Task.Get))
	api.PUT("/tasks/{id}", authMiddleware(handlers.Task.Replace))
	api.DELETE("/tasks/{id}", authMiddleware(handlers.Task.Delete))

	api.POST("/ai-suggest", authMiddleware(handlers.Assist.Suggest))
	api.POST("/fal-image", authMiddleware(handlers.Assist.Image))
	api.POST("/voice-to-text", authMiddleware(handlers.Assist.Voice))

	return r
}

func panicHandler(logger *zap.Logger) func(*fasthttp.RequestCtx, interface{}) {
	return func(ctx *fasthttp.RequestCtx, rcv interface{}) {
		logger.Error("panic recovered",
			zap.String("request_id", httpcontext.RequestID(ctx)),
			zap.ByteString("path", ctx.Path()),
			zap.Any("panic", rcv))

		ctx.ResetBody()
		ctx.Response.Header.SetContentType("application/json")
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(transport.NewError(string(domain.ErrCodeInternal), "Internal server error", nil).String())
	}
}
