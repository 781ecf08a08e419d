// internal/app/system/httpapi/httpapi.go

// Package httpapi holds the JSON response conventions shared by every
// feature handler: one envelope for errors, one status code per fault
// kind.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/virtualstudy/studypoint/internal/domain/faults"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Respond writes v as JSON with the given status.
func Respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error maps err onto the API's status scheme and writes the error
// envelope:
//
//	ValidationError                  422
//	AccessDeniedError                403
//	TimeoutError                     504
//	RemoteRead/RemoteWrite/Upload    502
//	anything else                    500
func Error(w http.ResponseWriter, log *zap.Logger, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("kind", kind), zap.Error(err))
	} else {
		log.Debug("request rejected", zap.String("kind", kind), zap.Error(err))
	}
	Respond(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func classify(err error) (int, string) {
	var (
		validation *faults.ValidationError
		denied     *faults.AccessDeniedError
		timeout    *faults.TimeoutError
		readErr    *faults.RemoteReadError
		writeErr   *faults.RemoteWriteError
		upErr      *faults.UploadError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity, "validation"
	case errors.As(err, &denied):
		return http.StatusForbidden, "access_denied"
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &readErr), errors.As(err, &writeErr), errors.As(err, &upErr):
		return http.StatusBadGateway, "remote"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// Decode parses the request body as JSON into v, surfacing malformed
// bodies as ValidationErrors so they map to 422 like any other bad
// input.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &faults.ValidationError{Field: "body", Reason: "malformed json"}
	}
	return nil
}
