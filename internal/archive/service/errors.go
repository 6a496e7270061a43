package service

import (
	"errors"

	"github.com/lk2023060901/coldvault-backend/internal/archive/biz"
	apperrors "github.com/lk2023060901/coldvault-backend/internal/pkg/errors"
)

var bizErrorCodes = []struct {
	err  error
	code int
}{
	{biz.ErrFileNotFound, apperrors.ErrFileNotFound},
	{biz.ErrFileNotRestorable, apperrors.ErrFileNotRestorable},
	{biz.ErrRetrievalNotFound, apperrors.ErrRetrievalNotFound},
	{biz.ErrRetrievalAlreadyActive, apperrors.ErrRetrievalAlreadyActive},
	{biz.ErrInvalidRestoreTier, apperrors.ErrRetrievalInvalidTier},
	{biz.ErrRetrievalNotReady, apperrors.ErrRetrievalNotReady},
	{biz.ErrRetrievalNotCancelable, apperrors.ErrRetrievalNotCancelable},
	{biz.ErrRestoreRequestFailed, apperrors.ErrRetrievalRestoreFailed},
	{biz.ErrForbidden, apperrors.ErrForbidden},
}

// toAppError attaches the business code of a domain error
func toAppError(err error) error {
	for _, m := range bizErrorCodes {
		if errors.Is(err, m.err) {
			return apperrors.Wrap(err, m.code)
		}
	}
	return apperrors.Wrap(err, apperrors.ErrInternalServer)
}
