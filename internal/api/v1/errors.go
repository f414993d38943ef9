package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lightspeed/jobforge/internal/jferr"
)

// statusForKind maps the taxonomy to the HTTP status codes spec.md §7
// prescribes; anything not listed (the Stage.* kinds, Timeout, Cancelled,
// System) surfaces as an internal error since a client only ever sees
// those embedded inside a terminal job record, never as a direct response.
func statusForKind(kind jferr.Kind) int {
	switch kind {
	case jferr.Validation:
		return http.StatusBadRequest
	case jferr.Auth:
		return http.StatusUnauthorized
	case jferr.Forbidden:
		return http.StatusForbidden
	case jferr.NotFound:
		return http.StatusNotFound
	case jferr.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as the wire error shape, picking the status code
// from its jferr.Kind (defaulting to 500 for an error that never went
// through the taxonomy).
func writeError(c *gin.Context, err error) {
	kind := jferr.KindOf(err)
	message := err.Error()
	if je, ok := err.(*jferr.Error); ok {
		message = je.Message()
	}
	c.JSON(statusForKind(kind), gin.H{"error": message, "errorType": string(kind)})
}
