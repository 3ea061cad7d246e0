package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrihub-davao/chat-backend/internal/convkey"
	"github.com/agrihub-davao/chat-backend/internal/services"
)

// Error codes returned in ErrorResponse.Code. store_unavailable (503)
// guarantees nothing was written, so the request may be retried as is.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeStoreUnavailable = "store_unavailable"

	// Domain-specific:
	ErrCodeEmptyBody          = "empty_body"
	ErrCodeBodyTooLong        = "body_too_long"
	ErrCodeInvalidParticipant = "invalid_participant"
	ErrCodeInvalidRole        = "invalid_role"
	ErrCodeSendFailed         = "send_failed"
	ErrCodeListFailed         = "list_failed"

	// Written by middleware before a handler runs.
	ErrCodeBadIdempotencyKey = "bad_idempotency_key"
)

// failService maps a service error onto the response envelope. fallback is
// the code used for unclassified 500s.
func failService(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, convkey.ErrEmptyParticipant),
		errors.Is(err, convkey.ErrSelfConversation),
		errors.Is(err, convkey.ErrSeparatorInID),
		errors.Is(err, services.ErrNotParticipant):
		fail(c, http.StatusBadRequest, ErrCodeInvalidParticipant, err.Error())
	case errors.Is(err, services.ErrEmptyBody):
		fail(c, http.StatusBadRequest, ErrCodeEmptyBody, err.Error())
	case errors.Is(err, services.ErrBodyTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBodyTooLong, err.Error())
	case errors.Is(err, services.ErrInvalidRole):
		fail(c, http.StatusBadRequest, ErrCodeInvalidRole, err.Error())
	case errors.Is(err, services.ErrInvalidSession):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	case errors.Is(err, services.ErrConversationNotFound),
		errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrStoreUnavailable):
		failWithCause(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "store unavailable", err)
	default:
		failWithCause(c, http.StatusInternalServerError, fallback, "internal server error", err)
	}
}
