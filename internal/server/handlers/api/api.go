// Package api holds the error envelope shared by all ledger server handlers.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/sitesync/internal/ledger"
)

var codeStatus = map[string]int{
	ledger.CodeInvalidRequest: http.StatusBadRequest,
	ledger.CodeInvalidKind:    http.StatusBadRequest,
	ledger.CodeSiteNotFound:   http.StatusNotFound,
	ledger.CodePathConflict:   http.StatusConflict,
	ledger.CodeBatchTooLarge:  http.StatusRequestEntityTooLarge,
	ledger.CodeBudgetExceeded: http.StatusPaymentRequired,
	ledger.CodeRateLimited:    http.StatusTooManyRequests,
	ledger.CodeInjectedFault:  http.StatusServiceUnavailable,
}

// StatusFor maps a ledger error code to its HTTP status.
func StatusFor(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	ctx.Abort()
	_ = ctx.Error(err)
	ctx.PureJSON(status, ledger.APIError{
		Code:    code,
		Message: err.Error(),
	})
}

// AbortWithLedgerError keeps the code of a *ledger.APIError and reports anything else as internal.
func AbortWithLedgerError(ctx *gin.Context, err error) {
	var apiErr *ledger.APIError
	if errors.As(err, &apiErr) {
		ctx.Abort()
		_ = ctx.Error(err)
		ctx.PureJSON(StatusFor(apiErr.Code), apiErr)
		return
	}
	AbortWithError(ctx, http.StatusInternalServerError, ledger.CodeInternalError, err)
}
