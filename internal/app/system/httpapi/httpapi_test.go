// internal/app/system/httpapi/httpapi_test.go

package httpapi_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/virtualstudy/studypoint/internal/app/system/httpapi"
	"github.com/virtualstudy/studypoint/internal/domain/faults"
)

func TestError_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{&faults.ValidationError{Field: "title", Reason: "required"}, http.StatusUnprocessableEntity, "validation"},
		{&faults.AccessDeniedError{UserID: "u1", GroupID: "english"}, http.StatusForbidden, "access_denied"},
		{&faults.TimeoutError{Op: "blob upload"}, http.StatusGatewayTimeout, "timeout"},
		{&faults.RemoteReadError{Path: "p", Err: errors.New("x")}, http.StatusBadGateway, "remote"},
		{&faults.RemoteWriteError{Path: "p", Err: errors.New("x")}, http.StatusBadGateway, "remote"},
		{&faults.UploadError{Err: errors.New("x")}, http.StatusBadGateway, "remote"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		httpapi.Error(rec, zap.NewNop(), tc.err)
		if rec.Code != tc.status {
			t.Errorf("%T: status = %d, want %d", tc.err, rec.Code, tc.status)
		}
		var body struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%T: body not json: %v", tc.err, err)
		}
		if body.Kind != tc.kind || body.Error == "" {
			t.Errorf("%T: body = %+v, want kind %q", tc.err, body, tc.kind)
		}
	}
}

func TestDecode_MalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{nope"))
	var v map[string]any
	err := httpapi.Decode(req, &v)
	var verr *faults.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestRespond(t *testing.T) {
	rec := httptest.NewRecorder()
	httpapi.Respond(rec, http.StatusCreated, map[string]string{"id": "m-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["id"] != "m-1" {
		t.Fatalf("body = %q err = %v", rec.Body.String(), err)
	}
}
