package api

import (
	"github.com/danielgtaylor/huma/v2"
)

// envelopeVersion is the wire version of the response envelope. The
// extension client switches its parser on this field.
const envelopeVersion = 1

// Envelope is the uniform response wrapper for every API response.
// Success responses carry data; error responses carry a flat error string
// plus the structured code/message/details triple.
type Envelope struct {
	V       int    `json:"v"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// EnvelopeTransformer wraps every huma response body in an Envelope.
// Registered on the huma config before route registration.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if apiErr, ok := v.(*APIError); ok {
		return &Envelope{
			V:       envelopeVersion,
			Success: false,
			Error:   apiErr.Message,
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		}, nil
	}

	if len(status) > 0 && status[0] != '2' {
		msg := "request failed"
		if err, ok := v.(error); ok {
			msg = err.Error()
		}
		return &Envelope{
			V:       envelopeVersion,
			Success: false,
			Error:   msg,
			Message: msg,
		}, nil
	}

	return &Envelope{
		V:       envelopeVersion,
		Success: true,
		Data:    v,
	}, nil
}
