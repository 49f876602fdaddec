package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/service"
)

const (
	RequestIDHeader = "X-Request-ID"

	ctxRequestID = "request_id"
	ctxCaller    = "caller"
)

// RequestIDFrom returns the id assigned by RequestID, or "".
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}

// CallerFrom returns the principal stored by Authenticate.
func CallerFrom(c *gin.Context) (service.Caller, bool) {
	v, ok := c.Get(ctxCaller)
	if !ok {
		return service.Caller{}, false
	}
	caller, ok := v.(service.Caller)
	return caller, ok
}
