package api

import (
	"github.com/gin-gonic/gin"

	"github.com/zbgw/gatewayd/internal/status"
)

func respondOK(c *gin.Context, data any) {
	c.JSON(200, Envelope{Status: "ok", Data: data})
}

func respondErr(c *gin.Context, err error) {
	kind := status.KindOf(err)
	c.JSON(status.HTTPCode(kind), Envelope{
		Status: "error",
		Error:  &ErrorBody{Code: kind.String(), Message: err.Error()},
	})
}
