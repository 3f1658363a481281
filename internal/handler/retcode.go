package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"blog-service/internal/service"
	"blog-service/internal/verification"
)

// RetCode is the business status code carried in every JSON response. The
// codes are kept wire-compatible with the legacy frontend.
type RetCode string

const (
	CodeOK             RetCode = "0"
	CodeImageCodeErr   RetCode = "4001"
	CodeThrottlingErr  RetCode = "4002"
	CodeNecessaryParam RetCode = "4003"
	CodeUserErr        RetCode = "4004"
	CodePwdErr         RetCode = "4005"
	CodeMobileErr      RetCode = "4007"
	CodeSmsCodeErr     RetCode = "4008"
	CodeSessionErr     RetCode = "4101"
	CodeDBErr          RetCode = "5000"
)

// Response is the standard API envelope
type Response struct {
	Code   RetCode     `json:"code"`
	Errmsg string      `json:"errmsg"`
	Data   interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Code: CodeOK, Errmsg: "ok", Data: data})
}

func writeError(w http.ResponseWriter, status int, code RetCode, errmsg string) {
	writeJSON(w, status, Response{Code: code, Errmsg: errmsg})
}

// writeServiceError maps domain errors onto the legacy code table. Anything
// unmapped is reported as a storage-layer failure.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, verification.ErrMissingParameter):
		writeError(w, http.StatusBadRequest, CodeNecessaryParam, "missing required parameter")
	case errors.Is(err, verification.ErrInvalidFormat):
		writeError(w, http.StatusBadRequest, CodeMobileErr, "invalid mobile number")
	case errors.Is(err, verification.ErrImageChallengeExpired):
		writeError(w, http.StatusBadRequest, CodeImageCodeErr, "image code expired")
	case errors.Is(err, verification.ErrImageChallengeMismatch):
		writeError(w, http.StatusBadRequest, CodeImageCodeErr, "image code incorrect")
	case errors.Is(err, verification.ErrTooFrequent):
		writeError(w, http.StatusBadRequest, CodeThrottlingErr, "sms requested too frequently")
	case errors.Is(err, verification.ErrSmsChallengeExpired):
		writeError(w, http.StatusBadRequest, CodeSmsCodeErr, "sms code expired")
	case errors.Is(err, verification.ErrSmsChallengeMismatch):
		writeError(w, http.StatusBadRequest, CodeSmsCodeErr, "sms code incorrect")
	case errors.Is(err, verification.ErrUpstreamUnavailable):
		writeError(w, http.StatusInternalServerError, CodeDBErr, "verification store unavailable")
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, CodeNecessaryParam, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, CodePwdErr, "mobile number or password is incorrect")
	case errors.Is(err, service.ErrUserAlreadyExists):
		writeError(w, http.StatusConflict, CodeUserErr, "mobile number already registered")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, CodeUserErr, "user not found")
	case errors.Is(err, service.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, CodeSessionErr, "authentication required")
	case errors.Is(err, service.ErrCategoryNotFound):
		writeError(w, http.StatusNotFound, CodeNecessaryParam, "category not found")
	case errors.Is(err, service.ErrArticleNotFound):
		writeError(w, http.StatusNotFound, CodeNecessaryParam, "article not found")
	case errors.Is(err, service.ErrEmptyPage):
		writeError(w, http.StatusNotFound, CodeNecessaryParam, "page out of range")
	default:
		writeError(w, http.StatusInternalServerError, CodeDBErr, "internal server error")
	}
}
