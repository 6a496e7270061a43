package biz

import "errors"

// File errors
var (
	ErrFileNotFound      = errors.New("file not found")
	ErrFileNotRestorable = errors.New("file is not in an archival tier or not available")
)

// Retrieval errors
var (
	ErrRetrievalNotFound      = errors.New("retrieval not found")
	ErrRetrievalAlreadyActive = errors.New("file already has an active retrieval")
	ErrRetrievalNotReady      = errors.New("retrieval is not ready for download")
	ErrRetrievalNotCancelable = errors.New("retrieval can no longer be cancelled")
	ErrInvalidRestoreTier     = errors.New("restore tier not allowed for this file")
	ErrRestoreRequestFailed   = errors.New("storage provider rejected the restore request")
)

// ErrForbidden is returned when the caller does not own the resource
var ErrForbidden = errors.New("forbidden")
