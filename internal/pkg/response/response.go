package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/lk2023060901/coldvault-backend/internal/pkg/errors"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// Response is the envelope for dashboard API responses
type Response struct {
	Code    int         `json:"code"` // 0 on success
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data"`
}

// Success writes a 200 envelope
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, apperrors.Success, "", data)
}

// Created writes a 201 envelope
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, apperrors.Success, "", data)
}

// Accepted writes a 202 envelope, used when work continues asynchronously
func Accepted(c *gin.Context, data interface{}) {
	write(c, http.StatusAccepted, apperrors.Success, "", data)
}

// Error writes an envelope with an explicit HTTP status
func Error(c *gin.Context, httpStatus int, message string) {
	write(c, httpStatus, httpStatus, message, nil)
}

// BadRequest 400
func BadRequest(c *gin.Context, message string) {
	ErrorWithCode(c, apperrors.ErrBadRequest, message)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, message string) {
	ErrorWithCode(c, apperrors.ErrUnauthorized, message)
}

// HandleError maps err to its business code and HTTP status
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	code := apperrors.ExtractCode(err)
	message := apperrors.GetMessage(code)
	// Internal details stay in the logs.
	if code != apperrors.ErrInternalServer {
		message = apperrors.FormatError(code, apperrors.GetDetails(err))
	} else {
		logger.FromContext(c.Request.Context()).Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	write(c, apperrors.GetHTTPStatus(code), code, message, nil)
}

// ErrorWithCode writes the envelope for a business code
func ErrorWithCode(c *gin.Context, code int, details ...string) {
	write(c, apperrors.GetHTTPStatus(code), code, apperrors.FormatError(code, details...), nil)
}

func write(c *gin.Context, status, code int, message string, data interface{}) {
	if data == nil {
		data = struct{}{}
	}
	c.JSON(status, Response{Code: code, Message: message, Data: data})
}
