package handlers

import (
	"net/http"

	"DBAdminDO/internal/api/middleware"
	"DBAdminDO/internal/gateway"

	"github.com/gin-gonic/gin"
)

// Respond writes a gateway result with the status matching its outcome.
// Failed reads stay 200 because the {available:false} envelope is the answer.
func Respond(c *gin.Context, r gateway.Result) {
	c.JSON(StatusFor(r), r.Body)
}

// StatusFor maps a result outcome to an HTTP status
func StatusFor(r gateway.Result) int {
	switch r.Outcome {
	case gateway.OutcomeOK, gateway.OutcomeUnsupported:
		return http.StatusOK
	case gateway.OutcomeNotFound:
		return http.StatusNotFound
	case gateway.OutcomeForbidden:
		return http.StatusForbidden
	case gateway.OutcomeInvalid:
		return http.StatusUnprocessableEntity
	default:
		if _, isRead := r.Body["available"]; isRead {
			return http.StatusOK
		}
		return http.StatusInternalServerError
	}
}

// request builds the gateway request for the :uuid route parameter
func request(c *gin.Context) gateway.Request {
	return gateway.Request{
		Caller: middleware.GetCaller(c),
		UUID:   c.Param("uuid"),
	}
}

// bindRead binds query parameters for the read op. Malformed parameters are
// reported only after the gateway has resolved and authorized the request.
func (h *DatabaseHandler) bindRead(c *gin.Context, op string, dst any) bool {
	err := c.ShouldBindQuery(dst)
	if err == nil {
		return true
	}
	if outcome, message, ok := h.gw.Admit(c.Request.Context(), request(c), op); !ok {
		Respond(c, gateway.Unavailable(outcome, message))
		return false
	}
	badRead(c, err)
	return false
}

// bindWrite binds the JSON body for the write op, resolving and authorizing
// the request before a malformed body is reported
func (h *DatabaseHandler) bindWrite(c *gin.Context, op string, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	if outcome, message, ok := h.gw.Admit(c.Request.Context(), request(c), op); !ok {
		Respond(c, gateway.Failed(outcome, message))
		return false
	}
	badWrite(c, err)
	return false
}

// badRead rejects malformed read parameters
func badRead(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"available": false, "error": bindingMessage(err)})
}

// badWrite rejects a malformed write body
func badWrite(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": bindingMessage(err)})
}
