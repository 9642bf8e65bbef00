package apiresp

import (
	"net/http"

	"PShop/logger"
	"PShop/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrBody is the JSON body of every failed request.
type ErrBody struct {
	StatusCode int    `json:"statusCode"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
}

// HandlerFunc is a gin handler that reports failure by returning it.
type HandlerFunc func(c *gin.Context) error

// Wrap adapts h to gin, rendering a returned error as ErrBody.
func Wrap(h HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h(c); err != nil {
			Fail(c, err)
		}
	}
}

func Fail(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	body := ErrBody{StatusCode: status, Code: errs.ServerInternalError, Message: "internal server error"}
	if ce, ok := errs.AsCode(err); ok {
		body.Code, body.Message, body.Detail = ce.Code, ce.Msg, ce.Detail
	}
	if status >= http.StatusInternalServerError {
		logger.Error("[api] request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		body.Detail = ""
	}
	c.AbortWithStatusJSON(status, body)
}

func OK(c *gin.Context, data any) error {
	c.JSON(http.StatusOK, data)
	return nil
}

func Created(c *gin.Context, data any) error {
	c.JSON(http.StatusCreated, data)
	return nil
}

// Bind decodes the JSON body into v.
func Bind(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return errs.ErrArgs.WrapMsg("invalid body", "err", err)
	}
	return nil
}
