// Package respond centralizes the JSON envelopes returned by every handler:
// {"msg":"success","data":...} on success and {"errors":[{"msg","param"}]}
// on failure. Unexpected errors are logged server-side and surface as an
// opaque 500.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/openclinic/telemed-portal/pkg/logging"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Msg   string `json:"msg"`
	Param string `json:"param"`
}

type errorBody struct {
	Errors []FieldError `json:"errors"`
}

type successBody struct {
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Success writes the standard success envelope. A nil data omits the field.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, successBody{Msg: "success", Data: data})
}

// Created writes the success envelope with a 201 status.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, successBody{Msg: "success", Data: data})
}

// ValidationErrors writes a 400 with the offending fields.
func ValidationErrors(w http.ResponseWriter, errs []FieldError) {
	JSON(w, http.StatusBadRequest, errorBody{Errors: errs})
}

// FieldFailure writes a 400 for a single rejected field.
func FieldFailure(w http.ResponseWriter, msg, param string) {
	ValidationErrors(w, []FieldError{{Msg: msg, Param: param}})
}

// Unauthorized writes the generic 401 body. Missing resources that do not
// belong to the caller use this too, so existence is never leaked.
func Unauthorized(w http.ResponseWriter) {
	JSON(w, http.StatusUnauthorized, errorBody{Errors: []FieldError{{Msg: "Unauthorized", Param: "notifications"}}})
}

// ServerError logs err and writes an opaque 500 body.
func ServerError(w http.ResponseWriter, logger *logging.Logger, err error) {
	if logger == nil {
		logger = logging.Default()
	}
	if err != nil {
		logger.Error("internal error", "error", err)
	}
	JSON(w, http.StatusInternalServerError, errorBody{Errors: []FieldError{{Msg: "Server Error", Param: "notifications"}}})
}

// Timeout writes a 504 for store operations that exceeded their deadline.
func Timeout(w http.ResponseWriter) {
	JSON(w, http.StatusGatewayTimeout, errorBody{Errors: []FieldError{{Msg: "Operation timed out", Param: "notifications"}}})
}
