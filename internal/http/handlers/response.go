// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response utilities shared by all endpoints. Success
// bodies are written by ok(); every non-2xx response goes through
// apierr.Abort so the envelope and the code→status table live in one place.
//
// Example success response:
//
//	HTTP/1.1 200 OK
//	X-Correlation-ID: 1b4e28ba-2fa1-11d2-883f-0016d3cca427
//	{ "smiles": "CC(C)CC", "source": "demo" }
//
// Example validation failure:
//
//	HTTP/1.1 422 Unprocessable Entity
//	{
//	  "error_code": "VALIDATION_ERROR",
//	  "message": "Request validation failed",
//	  "details": { "errors": [ { "field": "name", "rule": "required", "param": "" } ] },
//	  "correlation_id": "1b4e28ba-2fa1-11d2-883f-0016d3cca427"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/tbourn/chemvision-backend/internal/apierr"
)

// FieldError describes one failed input constraint.
type FieldError struct {
	// JSON field (or multipart part) that failed
	Field string `json:"field" example:"name"`
	// Constraint that failed (required, notblank, max, json, ...)
	Rule string `json:"rule" example:"max"`
	// Constraint parameter, empty when the rule takes none
	Param string `json:"param" example:"500"`
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// invalid aborts with VALIDATION_ERROR and the given field errors.
func invalid(c *gin.Context, errs ...FieldError) {
	apierr.Abort(c, apierr.CodeValidation, msgValidation, map[string]any{"errors": errs})
}

// bindFailed maps a Gin binding error to the right envelope: an oversized
// body is 413, everything else (malformed JSON, failed tags) is 422.
func bindFailed(c *gin.Context, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		tooLarge(c, mbe.Limit)
		return
	}
	invalid(c, fieldErrors(err)...)
}

// tooLarge aborts with PAYLOAD_TOO_LARGE.
func tooLarge(c *gin.Context, limit int64) {
	apierr.Abort(c, apierr.CodePayloadTooLarge, msgTooLarge, map[string]any{"limit_bytes": limit})
}

// fieldErrors flattens validator errors; any other error (syntax, type
// mismatch, empty body) is reported against the body itself.
func fieldErrors(err error) []FieldError {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return []FieldError{{Field: "body", Rule: "json"}}
	}
	out := make([]FieldError, 0, len(ves))
	for _, fe := range ves {
		out = append(out, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}
