package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应体
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Success 200 响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Data: data})
}

// BadRequest 400 响应
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{Error: message})
}

// NotFound 404 响应
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Response{Error: message})
}

// InternalError 500 响应
func InternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Response{Error: message})
}
