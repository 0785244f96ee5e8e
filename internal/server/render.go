package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"vibetrust/internal/ratelimit"
	appErrors "vibetrust/pkg/errors"
	"vibetrust/pkg/logger"

	"github.com/gin-gonic/gin"
)

var statusByCode = map[appErrors.Code]int{
	appErrors.CodeInvalidArgument:    http.StatusBadRequest,
	appErrors.CodeNotFound:           http.StatusNotFound,
	appErrors.CodeAlreadyExists:      http.StatusConflict,
	appErrors.CodePermissionDenied:   http.StatusForbidden,
	appErrors.CodeUnauthenticated:    http.StatusUnauthorized,
	appErrors.CodeFailedPrecondition: http.StatusConflict,
	appErrors.CodeResourceExhausted:  http.StatusTooManyRequests,
	appErrors.CodeUnavailable:        http.StatusServiceUnavailable,
	appErrors.CodeDeadlineExceeded:   http.StatusGatewayTimeout,
	appErrors.CodeInternal:           http.StatusInternalServerError,
}

type errorBody struct {
	Code    appErrors.Code   `json:"code"`
	Reason  appErrors.Reason `json:"reason"`
	Message string           `json:"message"`
	Details map[string]any   `json:"details,omitempty"`
}

type errorResponse struct {
	RequestID string    `json:"request_id"`
	Error     errorBody `json:"error"`
}

// writeError renders err as the standard error envelope. Errors that are not
// application errors are logged and reported as internal.
func writeError(c *gin.Context, log logger.Logger, err error) {
	ae, ok := appErrors.As(err)
	if !ok {
		log.Error("unhandled error", "request_id", requestID(c), "err", err)
		ae = appErrors.Newr(appErrors.CodeInternal, appErrors.ReasonInternal, "internal server error")
	}

	status, ok := statusByCode[ae.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError && ae.Cause != nil {
		log.Error("request failed", "request_id", requestID(c), "reason", ae.Reason, "err", ae.Cause)
	}

	if ae.Code == appErrors.CodeResourceExhausted {
		for detail, header := range map[string]string{
			"limit":       "X-RateLimit-Limit",
			"remaining":   "X-RateLimit-Remaining",
			"reset_epoch": "X-RateLimit-Reset",
			"retry_after": "Retry-After",
		} {
			if v, ok := ae.Details[detail]; ok {
				c.Header(header, fmt.Sprint(v))
			}
		}
	}

	reason := ae.Reason
	if reason == appErrors.ReasonNone {
		reason = appErrors.Reason(strings.ToLower(string(ae.Code)))
	}
	c.AbortWithStatusJSON(status, errorResponse{
		RequestID: requestID(c),
		Error: errorBody{
			Code:    ae.Code,
			Reason:  reason,
			Message: ae.Message,
			Details: ae.Details,
		},
	})
}

func setRateLimitHeaders(c *gin.Context, res ratelimit.Result) {
	if res.Limit == 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetEpoch, 10))
}
