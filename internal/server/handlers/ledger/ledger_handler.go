package ledger

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/sitesync/internal/ledger"
	"github.com/openmined/sitesync/internal/server/handlers/api"
)

// Backend is the ledger the handlers serve.
type Backend interface {
	ledger.Ledger
	Site(ctx context.Context, siteID string) (*ledger.SiteState, error)
}

type LedgerHandler struct {
	backend Backend
}

func New(backend Backend) *LedgerHandler {
	return &LedgerHandler{backend: backend}
}

func (h *LedgerHandler) CreateSite(ctx *gin.Context) {
	var req ledger.CreateSiteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, ledger.CodeInvalidRequest, fmt.Errorf("bind json: %w", err))
		return
	}

	siteID, err := h.backend.CreateSite(ctx.Request.Context(), req.Name)
	if err != nil {
		api.AbortWithLedgerError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusCreated, &ledger.CreateSiteResponse{SiteID: siteID})
}

func (h *LedgerHandler) GetSite(ctx *gin.Context) {
	state, err := h.backend.Site(ctx.Request.Context(), ctx.Param("site_id"))
	if err != nil {
		api.AbortWithLedgerError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, state)
}

func (h *LedgerHandler) Submit(ctx *gin.Context) {
	var req ledger.SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, ledger.CodeInvalidRequest, fmt.Errorf("bind json: %w", err))
		return
	}

	siteID := ctx.Param("site_id")
	b := req.Batch()
	if err := h.backend.Submit(ctx.Request.Context(), siteID, b); err != nil {
		api.AbortWithLedgerError(ctx, err)
		return
	}

	resp := &ledger.SubmitResponse{Applied: b.Len()}
	if state, err := h.backend.Site(ctx.Request.Context(), siteID); err == nil {
		resp.Revision = state.Revision
	}
	ctx.PureJSON(http.StatusOK, resp)
}
