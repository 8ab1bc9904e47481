package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/glaze-storefront/internal/apperr"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:      http.StatusBadRequest,
	apperr.KindCredential:      http.StatusUnauthorized,
	apperr.KindUnauthenticated: http.StatusUnauthorized,
	apperr.KindForbidden:       http.StatusForbidden,
	apperr.KindNotFound:        http.StatusNotFound,
	apperr.KindConflict:        http.StatusConflict,
	apperr.KindLocked:          http.StatusLocked,
	apperr.KindNotConfigured:   http.StatusServiceUnavailable,
	apperr.KindIntegration:     http.StatusBadGateway,
}

// writeError renders err as {"error": code, "msg": message}. Unclassified
// errors are logged and reported as internal_error without detail.
func (a *api) writeError(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	status, known := statusByKind[apperr.KindOf(err)]
	if !ok || !known {
		a.logger.Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "msg": "something went wrong"})
		return
	}
	if e.Err != nil {
		a.logger.Warn("request failed upstream", "path", c.FullPath(), "code", e.Code, "err", e.Err)
	}
	body := gin.H{"error": e.Code, "msg": e.Msg}
	if len(e.Fields) > 0 {
		body["fields"] = e.Fields
	}
	c.JSON(status, body)
}

// bind decodes and validates the JSON body into out. On failure it writes
// the error response and reports false.
func (a *api) bind(c *gin.Context, out any) bool {
	if err := validation.Bind(c, out, a.v); err != nil {
		a.writeError(c, err)
		return false
	}
	return true
}
