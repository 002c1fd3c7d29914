package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"user-api/internal/application/dto"
	domainErrors "user-api/internal/domain/errors"
	"user-api/internal/infrastructure/telemetry"
)

// writeJSONResponse writes a JSON response
func writeJSONResponse(ctx context.Context, w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written
		telemetry.Log(ctx, telemetry.LevelError, "Failed to encode JSON response", err)
	}
}

// writeErrorResponse writes an error response
func writeErrorResponse(ctx context.Context, w http.ResponseWriter, message string, statusCode int, code string) {
	errorResp := dto.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    code,
		Message: message,
	}
	writeJSONResponse(ctx, w, errorResp, statusCode)
}

// statusForCode maps a domain error code to its HTTP status
func statusForCode(code domainErrors.ErrorCode) int {
	switch code {
	case domainErrors.ErrCodeUserNotFound:
		return http.StatusNotFound
	case domainErrors.ErrCodeUserAlreadyExists, domainErrors.ErrCodeVersionConflict:
		return http.StatusConflict
	case domainErrors.ErrCodeValidationFailed,
		domainErrors.ErrCodeInvalidUserData,
		domainErrors.ErrCodeInvalidEmail,
		domainErrors.ErrCodeInvalidName,
		domainErrors.ErrCodeInvalidID,
		domainErrors.ErrCodeInvalidDate,
		domainErrors.ErrCodeAgeIneligible,
		domainErrors.ErrCodeInvalidDateRange,
		domainErrors.ErrCodeMissingBirthDate,
		domainErrors.ErrCodeInvalidVersion:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeErrorResponseFromDomainError writes an error response from a domain
// error. Anything that maps to 500 is logged and answered with an opaque body.
func writeErrorResponseFromDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	domainErr, ok := domainErrors.AsDomainError(err)
	if ok {
		statusCode = statusForCode(domainErr.Code)
	}

	if statusCode == http.StatusInternalServerError {
		telemetry.Log(ctx, telemetry.LevelError, "Request failed with internal error", err,
			attribute.Int("http.status_code", statusCode),
		)
		writeErrorResponse(ctx, w, "An internal error occurred", statusCode, string(domainErrors.ErrCodeInternalError))
		return
	}

	writeJSONResponse(ctx, w, dto.ErrorResponse{
		Error:   domainErr.Error(),
		Code:    string(domainErr.Code),
		Message: domainErr.Message,
		Context: domainErr.Context,
	}, statusCode)
}
