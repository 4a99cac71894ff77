// Package response writes status server responses.
package response

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/avydash/avydash/internal/api/middleware"
	"github.com/avydash/avydash/internal/api/models"
)

// ContentTypeMsgPack is sent for ?format=msgpack responses.
const ContentTypeMsgPack = "application/msgpack"

func setRequestID(w http.ResponseWriter, r *http.Request) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set(middleware.RequestIDHeader, requestID)
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Formatted writes data as JSON, or as MessagePack when the request asks for
// format=msgpack.
func Formatted(w http.ResponseWriter, r *http.Request, status int, data any) {
	if r.URL.Query().Get("format") != "msgpack" {
		JSON(w, r, status, data)
		return
	}

	body, err := msgpack.Marshal(data)
	if err != nil {
		InternalError(w, r, "encoding response failed")
		return
	}
	setRequestID(w, r)
	w.Header().Set("Content-Type", ContentTypeMsgPack)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Blob writes an already encoded body.
func Blob(w http.ResponseWriter, r *http.Request, contentType string, body []byte) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Error writes a problem response.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), detail))
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(middleware.GetRequestID(r.Context()), detail))
}

// ServiceUnavailable writes a 503 Service Unavailable error response.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(middleware.GetRequestID(r.Context()), detail))
}
