package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskflow/api/transport"
	"github.com/fastygo/taskflow/api/validation"
	"github.com/fastygo/taskflow/domain"
	"github.com/fastygo/taskflow/pkg/httpcontext"
	taskUC "github.com/fastygo/taskflow/usecase/task"
)

const (
	msgTaskCreateLimited = "Task creation rate limit exceeded. Please wait and try again."
	msgInvalidTask       = "Invalid input: Please provide valid task fields."
	msgInvalidPatch      = "Invalid update fields."
)

type TaskHandler struct {
	baseHandler
	uc            *taskUC.UseCase
	createLimiter RateLimiter
}

func NewTaskHandler(uc *taskUC.UseCase, createLimiter RateLimiter, adapter *httpcontext.Adapter, logger *zap.Logger, production bool) *TaskHandler {
	return &TaskHandler{
		baseHandler:   newBaseHandler(adapter, logger, production),
		uc:            uc,
		createLimiter: createLimiter,
	}
}

// @Summary List tasks
// @Tags tasks
// @Router /api/tasks [get]
func (h *TaskHandler) List(ctx *fasthttp.RequestCtx) {
	id, ok := h.identity(ctx)
	if !ok {
		return
	}
	args := ctx.QueryArgs()
	limit, okLimit := queryUint(args, "limit")
	offset, okOffset := queryUint(args, "offset")
	if !okLimit || !okOffset {
		h.respondError(ctx, domain.ErrInvalidPage)
		return
	}
	query := taskUC.ListQuery{
		Status: domain.NormalizeStatus(string(args.Peek("status"))),
		Limit:  limit,
		Offset: offset,
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.ListTasks(stdCtx, id.UserID, query)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, tasks)
}

// @Summary Create task
// @Tags tasks
// @Router /api/tasks [post]
func (h *TaskHandler) Create(ctx *fasthttp.RequestCtx) {
	id, ok := h.identity(ctx)
	if !ok {
		return
	}
	if !h.allow(ctx, h.createLimiter, id.UserID, msgTaskCreateLimited) {
		return
	}
	raw, ok := h.decodeBody(ctx)
	if !ok {
		return
	}
	fields, err := validation.Task(raw)
	if err != nil {
		h.respondInvalid(ctx, msgInvalidTask, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.CreateTask(stdCtx, id.UserID, fields)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, created)
}

// @Summary Get task
// @Tags tasks
// @Router /api/tasks/{id} [get]
func (h *TaskHandler) Get(ctx *fasthttp.RequestCtx) {
	id, ok := h.identity(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.GetTask(stdCtx, id.UserID, pathID(ctx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, task)
}

// @Summary Replace task
// @Tags tasks
// @Router /api/tasks/{id} [put]
func (h *TaskHandler) Replace(ctx *fasthttp.RequestCtx) {
	id, ok := h.identity(ctx)
	if !ok {
		return
	}
	raw, ok := h.decodeBody(ctx)
	if !ok {
		return
	}
	fields, err := validation.Task(raw)
	if err != nil {
		h.respondInvalid(ctx, msgInvalidTask, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.ReplaceTask(stdCtx, id.UserID, pathID(ctx), fields)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, updated)
}

// @Summary Patch task, id in body
// @Tags tasks
// @Router /api/tasks [patch]
func (h *TaskHandler) Patch(ctx *fasthttp.RequestCtx) {
	id, ok := h.identity(ctx)
	if !ok {
		return
	}
	raw, ok := h.decodeBody(ctx)
	if !ok {
		return
	}
	taskID, ok := validation.TaskID(raw)
	if !ok {
		h.respondError(ctx, domain.ErrTaskIDRequired)
		return
	}
	patch, err := validation.TaskPatch(raw)
	if err != nil {
		h.respondInvalid(ctx, msgInvalidPatch, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.PatchTask(stdCtx, id.UserID, taskID, patch)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, updated)
}

// Remove deletes the task named by the body's "id". Ownership is confirmed by
// a read before the delete, so a foreign or missing id answers 404 without
// issuing a DELETE.
//
// @Summary Delete task, id in body
// @Tags tasks
// @Router /api/tasks [delete]
func (h *TaskHandler) Remove(ctx *fasthttp.RequestCtx) {
	id, ok := h.identity(ctx)
	if !ok {
		return
	}
	raw, ok := h.decodeBody(ctx)
	if !ok {
		return
	}
	taskID, ok := validation.TaskID(raw)
	if !ok {
		h.respondError(ctx, domain.ErrTaskIDRequired)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.RemoveTask(stdCtx, id.UserID, taskID); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.SuccessResponse{Success: true})
}

// Delete deletes the task named in the path with a single owner-scoped
// statement; zero affected rows answers 404.
//
// @Summary Delete task
// @Tags tasks
// @Router /api/tasks/{id} [delete]
func (h *TaskHandler) Delete(ctx *fasthttp.RequestCtx) {
	id, ok := h.identity(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.DeleteTask(stdCtx, id.UserID, pathID(ctx)); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.SuccessResponse{Success: true})
}
