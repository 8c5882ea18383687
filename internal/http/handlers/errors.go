package handlers

import "github.com/tbourn/chemvision-backend/internal/domain"

// Caller-facing messages. Fault details are logged, never returned.
const (
	msgValidation       = "Request validation failed"
	msgTooLarge         = "Request body exceeds the upload limit"
	msgInvalidImageType = "Only PNG and JPEG images are supported"
)

// notImplementedMessage is the 501 message for op.
func notImplementedMessage(op domain.Operation) string {
	return op.Title() + " is not yet implemented"
}

// failureMessage is the generic 500 message for op.
func failureMessage(op domain.Operation) string {
	switch op {
	case domain.OpNameToStructure:
		return "Failed to convert name to structure"
	case domain.OpStructureToName:
		return "Failed to convert structure to name"
	case domain.OpImageToStructure:
		return "Failed to convert image to structure"
	}
	return "Conversion failed"
}
