package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes for different modules
const (
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer = 1000
	ErrInvalidParams  = 1001
	ErrNotFound       = 1002
	ErrUnauthorized   = 1003
	ErrForbidden      = 1004
	ErrConflict       = 1005
	ErrBadRequest     = 1007
	ErrServiceUnavail = 1008

	// Auth errors (2000-2999)
	ErrAuthInvalidToken = 2006
	ErrAuthTokenExpired = 2007

	// File errors (3000-3999)
	ErrFileNotFound      = 3000
	ErrFileNotRestorable = 3001

	// Retrieval errors (4000-4999)
	ErrRetrievalNotFound      = 4000
	ErrRetrievalAlreadyActive = 4001
	ErrRetrievalInvalidTier   = 4002
	ErrRetrievalNotReady      = 4003
	ErrRetrievalNotCancelable = 4004
	ErrRetrievalRestoreFailed = 4005

	// Webhook errors (5000-5999)
	ErrWebhookEventNotFound  = 5000
	ErrWebhookEventNotFailed = 5001
)

var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	ErrInternalServer: {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:  {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:       {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrUnauthorized:   {ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	ErrForbidden:      {ErrForbidden, http.StatusForbidden, "Forbidden"},
	ErrConflict:       {ErrConflict, http.StatusConflict, "Resource conflict"},
	ErrBadRequest:     {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail: {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	ErrAuthInvalidToken: {ErrAuthInvalidToken, http.StatusUnauthorized, "Invalid or expired token"},
	ErrAuthTokenExpired: {ErrAuthTokenExpired, http.StatusUnauthorized, "Token expired"},

	ErrFileNotFound:      {ErrFileNotFound, http.StatusNotFound, "File not found"},
	ErrFileNotRestorable: {ErrFileNotRestorable, http.StatusUnprocessableEntity, "File is not in an archival tier or not available"},

	ErrRetrievalNotFound:      {ErrRetrievalNotFound, http.StatusNotFound, "Retrieval not found"},
	ErrRetrievalAlreadyActive: {ErrRetrievalAlreadyActive, http.StatusConflict, "A retrieval is already active for this file"},
	ErrRetrievalInvalidTier:   {ErrRetrievalInvalidTier, http.StatusBadRequest, "Invalid restore tier"},
	ErrRetrievalNotReady:      {ErrRetrievalNotReady, http.StatusConflict, "Retrieval is not ready for download"},
	ErrRetrievalNotCancelable: {ErrRetrievalNotCancelable, http.StatusConflict, "Only pending retrievals can be cancelled"},
	ErrRetrievalRestoreFailed: {ErrRetrievalRestoreFailed, http.StatusBadGateway, "Storage provider rejected the restore request"},

	ErrWebhookEventNotFound:  {ErrWebhookEventNotFound, http.StatusNotFound, "Webhook event not found"},
	ErrWebhookEventNotFailed: {ErrWebhookEventNotFailed, http.StatusConflict, "Only failed webhook events can be replayed"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// FormatError formats an error message with optional detail
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
