package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskflow/pkg/httpcontext"
	identityUC "github.com/fastygo/taskflow/usecase/identity"
)

type ProfileHandler struct {
	baseHandler
	uc *identityUC.UseCase
}

func NewProfileHandler(uc *identityUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		baseHandler: newBaseHandler(adapter, logger, false),
		uc:          uc,
	}
}

// @Summary Get the caller's mirrored profile
// @Tags profile
// @Router /api/me [get]
func (h *ProfileHandler) Me(ctx *fasthttp.RequestCtx) {
	id, ok := h.identity(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.uc.GetProfile(stdCtx, id.UserID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, user)
}
