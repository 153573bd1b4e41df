package render

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"

	"artistsync/internal/models"
	"artistsync/internal/services"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

// BadRequest responds 400 with a message
func BadRequest(c *gin.Context, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}

// Unauthorized responds 401 with the NotAuthenticated kind
func Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
		Error: message,
		Kind:  services.Kind(services.ErrNotAuthenticated),
	})
}

// ServiceError responds with a status derived from the error's kind
func ServiceError(c *gin.Context, message string, err error) {
	kind := services.Kind(err)
	status := StatusForKind(kind)
	var platformErr *services.PlatformError
	if status == http.StatusInternalServerError && errors.As(err, &platformErr) {
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		slog.Error(message, "path", c.FullPath(), "kind", kind, "error", err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Kind: kind, Details: err.Error()})
}

// StatusForKind maps a failure kind to an HTTP status
func StatusForKind(kind string) int {
	switch kind {
	case "NotAuthenticated":
		return http.StatusUnauthorized
	case "NoMatchFound":
		return http.StatusNotFound
	case "Cancelled":
		return http.StatusGatewayTimeout
	case "Internal":
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// NDJSONSink streams events to the client as newline-delimited JSON,
// flushing after every event
type NDJSONSink struct {
	c  *gin.Context
	mu sync.Mutex
}

// NewNDJSONSink writes the stream headers and returns a sink for c
func NewNDJSONSink(c *gin.Context) *NDJSONSink {
	c.Header("Content-Type", "application/x-ndjson; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	return &NDJSONSink{c: c}
}

// OnEvent implements models.EventSink
func (s *NDJSONSink) OnEvent(event models.LogEvent) {
	line, err := json.Marshal(event)
	if err != nil {
		slog.Warn("Failed to encode stream event", "type", event.Type, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.c.Writer.Write(append(line, '\n')); err != nil {
		slog.Debug("Stream client went away", "error", err)
		return
	}
	s.c.Writer.Flush()
}

// CollectingSink keeps log messages for responses that are not streamed
type CollectingSink struct {
	Messages []string
}

// OnEvent implements models.EventSink
func (s *CollectingSink) OnEvent(event models.LogEvent) {
	if event.Type == models.EventTypeLog {
		s.Messages = append(s.Messages, event.Message)
	}
}
