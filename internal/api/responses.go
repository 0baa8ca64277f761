// Package api holds the response envelopes and request validation shared by
// every HTTP handler.
package api

// ErrorResponse is the envelope for all error payloads in the swagger docs.
type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}
