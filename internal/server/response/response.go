// Package response writes the API's JSON envelope. Every endpoint answers
// with {"data": ..., "error": null} on success and
// {"data": null, "error": {...}} on failure.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/agentstation/recon/pkg/errors"
)

// StatusClientClosedRequest is written when the caller went away before
// the work finished.
const StatusClientClosedRequest = 499

// Code is the machine-readable error code in the envelope.
type Code string

const (
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeNotFound           Code = "NOT_FOUND"
	CodeMethodNotAllowed   Code = "METHOD_NOT_ALLOWED"
	CodePayloadTooLarge    Code = "PAYLOAD_TOO_LARGE"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeCanceled           Code = "CANCELED"
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeTimeout            Code = "TIMEOUT"
)

var statuses = map[Code]int{
	CodeBadRequest:         http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeMethodNotAllowed:   http.StatusMethodNotAllowed,
	CodePayloadTooLarge:    http.StatusRequestEntityTooLarge,
	CodeRateLimited:        http.StatusTooManyRequests,
	CodeCanceled:           StatusClientClosedRequest,
	CodeInternal:           http.StatusInternalServerError,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
	CodeTimeout:            http.StatusGatewayTimeout,
}

// Status returns the HTTP status written with c.
func (c Code) Status() int {
	if s, ok := statuses[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Response is the API envelope.
type Response struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
}

// Error is the error half of the envelope.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are sent; an encoding failure can only be dropped.
	_ = json.NewEncoder(w).Encode(resp)
}

// OK writes data with status 200.
func OK(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, Response{Data: data})
}

// Fail writes an error envelope with the status that belongs to code.
func Fail(w http.ResponseWriter, code Code, message, details string) {
	write(w, code.Status(), Response{Error: &Error{Code: code, Message: message, Details: details}})
}

func BadRequest(w http.ResponseWriter, message, details string) {
	Fail(w, CodeBadRequest, message, details)
}

func NotFound(w http.ResponseWriter, message, details string) {
	Fail(w, CodeNotFound, message, details)
}

func MethodNotAllowed(w http.ResponseWriter, method string) {
	Fail(w, CodeMethodNotAllowed, "Method not allowed", "Method "+method+" is not supported for this endpoint")
}

func PayloadTooLarge(w http.ResponseWriter, message, details string) {
	Fail(w, CodePayloadTooLarge, message, details)
}

func RateLimited(w http.ResponseWriter, details string) {
	Fail(w, CodeRateLimited, "Rate limit exceeded", details)
}

// InternalError writes a 500. The cause is never exposed to the client.
func InternalError(w http.ResponseWriter, _ error) {
	Fail(w, CodeInternal, "Internal server error", "An unexpected error occurred")
}

func ServiceUnavailable(w http.ResponseWriter, details string) {
	Fail(w, CodeServiceUnavailable, "Service unavailable", details)
}

// CodeFor classifies err by the sentinel it matches.
func CodeFor(err error) Code {
	switch {
	case errors.IsValidationError(err):
		return CodeBadRequest
	case errors.IsBatchTooLarge(err):
		return CodePayloadTooLarge
	case errors.IsNotFound(err):
		return CodeNotFound
	case errors.IsTimeout(err):
		return CodeTimeout
	case errors.IsCanceled(err):
		return CodeCanceled
	default:
		return CodeInternal
	}
}

// StatusFor returns the status ErrorFromType writes for err.
func StatusFor(err error) int {
	return CodeFor(err).Status()
}

// ErrorFromType writes the error envelope for err.
func ErrorFromType(w http.ResponseWriter, err error) {
	switch code := CodeFor(err); code {
	case CodeInternal:
		InternalError(w, err)
	case CodeTimeout:
		Fail(w, code, "Reconciliation timed out", err.Error())
	case CodeCanceled:
		Fail(w, code, "Request canceled", err.Error())
	default:
		Fail(w, code, err.Error(), "")
	}
}
