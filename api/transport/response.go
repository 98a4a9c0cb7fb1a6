package transport

import (
	"encoding/json"
	"time"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// NewError returns an error body with optional details.
func NewError(code, message string, details interface{}) ErrorResponse {
	return ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	}
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e ErrorResponse) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type SuggestResponse struct {
	Suggestions string `json:"suggestions"`
}

// ImageResponse serializes a missing image as "imageUrl": null.
type ImageResponse struct {
	ImageURL *string `json:"imageUrl"`
}

type TranscriptResponse struct {
	Transcript string `json:"transcript"`
}

type QueueHealth struct {
	Online  bool `json:"online"`
	Pending int  `json:"pending"`
}

type ServicesHealth struct {
	PostgreSQL bool        `json:"postgresql"`
	Redis      *bool       `json:"redis,omitempty"`
	SyncQueue  QueueHealth `json:"sync_queue"`
}

type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	LastCheck time.Time      `json:"last_check"`
	Services  ServicesHealth `json:"services"`
}
