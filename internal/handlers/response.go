package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"landrace-threat/internal/errs"
	"landrace-threat/internal/middleware"
	"landrace-threat/pkg/validator"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Reconcile bool   `json:"reconcile,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondWithError(w http.ResponseWriter, code int, kind, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: kind, Message: message})
}

// statusFor maps a workflow error kind to an HTTP status
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindInvalidTransition, errs.KindDuplicateMember, errs.KindConflict:
		return http.StatusConflict
	case errs.KindDependencyFailure:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError writes a workflow error. Unclassified errors are
// logged and hidden from the client.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	kind := errs.KindOf(err)
	if kind == "" {
		slog.Error("Unhandled error", "method", r.Method, "path", r.URL.Path, "error", err)
		respondWithError(w, code, "internal_error", ErrMsgInternal)
		return
	}
	if code >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	respondWithJSON(w, code, ErrorResponse{
		Error:     string(kind),
		Message:   errs.Message(err),
		Reconcile: errs.NeedsReconcile(err),
	})
}

// decodeJSON reads a JSON body into dst and checks its validate tags. An empty
// body leaves dst unchanged when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		respondWithError(w, http.StatusBadRequest, string(errs.KindValidation), ErrMsgInvalidRequestBody+": "+strings.TrimPrefix(err.Error(), "json: "))
		return false
	}
	if err := validator.ValidateStruct(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, string(errs.KindValidation), err.Error())
		return false
	}
	return true
}

// currentUser returns the authenticated user id or writes 401
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserID(r)
	if !ok || userID == "" {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", ErrMsgUnauthorized)
		return "", false
	}
	return userID, true
}
