package ledger

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	ErrNoLedgerURL = errors.New("ledger: url missing")
	ErrNoSiteID    = errors.New("ledger: site id missing")
)

const (
	CodeInvalidRequest = "E_INVALID_REQUEST"
	CodeRateLimited    = "E_RATE_LIMITED"
	CodeInternalError  = "E_INTERNAL_ERROR"
	CodeUnknownError   = "E_UNKNOWN_ERR"

	CodeSiteNotFound   = "E_SITE_NOT_FOUND"   // no site with this id
	CodeInvalidKind    = "E_INVALID_KIND"     // batch kind is not Add, Update or Delete
	CodeBatchTooLarge  = "E_BATCH_TOO_LARGE"  // more operations than the ledger accepts at once
	CodeBudgetExceeded = "E_BUDGET_EXCEEDED"  // the batch costs more than its budget
	CodePathConflict   = "E_PATH_CONFLICT"    // operation does not match the site's current resources
	CodeInjectedFault  = "E_INJECTED_FAULT"   // failure injected by a test ledger
)

// APIError is a structured failure reported by the ledger.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func NewAPIError(code, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger error: %s - %s", e.Code, e.Message)
}

// IsCode reports whether err carries an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s: %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		if err, ok := resp.ErrorResult().(*APIError); ok && err.Code != "" {
			return fmt.Errorf("%s: %w", operation, err)
		}
		return fmt.Errorf("%s: %w", operation, NewAPIError(CodeUnknownError, resp.Status))
	}

	return nil
}
