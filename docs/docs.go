// Package docs holds the OpenAPI document served by the Swagger UI.
// Regenerate with `swag init -g cmd/server/main.go -o docs` after changing
// handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/image-to-structure": {
            "post": {
                "description": "Accepts a PNG or JPEG upload in the \"image\" part. The declared part Content-Type is checked; bytes are not sniffed.\nNo recognition model is available yet; valid uploads answer 501 NOT_IMPLEMENTED.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["Conversion"],
                "summary": "Recognize a structure from an image (OCSR)",
                "operationId": "imageToStructure",
                "parameters": [
                    {"type": "string", "description": "Correlation id (generated when absent)", "name": "X-Correlation-ID", "in": "header"},
                    {"type": "file", "description": "Structure image (PNG or JPEG)", "name": "image", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.StructureResponse"}},
                    "400": {"description": "Invalid image type", "schema": {"$ref": "#/definitions/apierr.Envelope"}},
                    "413": {"description": "Upload too large", "schema": {"$ref": "#/definitions/apierr.Envelope"}},
                    "422": {"description": "Missing image part", "schema": {"$ref": "#/definitions/apierr.Envelope"}},
                    "500": {"description": "Conversion error", "schema": {"$ref": "#/definitions/apierr.Envelope"}},
                    "501": {"description": "Not implemented", "schema": {"$ref": "#/definitions/apierr.Envelope"}}
                }
            }
        },
        "/api/name-to-structure": {
            "post": {
                "description": "Looks the name up (trimmed, case-insensitive) in the provenance-tagged mapping table.\nNames outside the table answer 501 NOT_IMPLEMENTED.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Conversion"],
                "summary": "Convert a chemical name to SMILES",
                "operationId": "nameToStructure",
                "parameters": [
                    {"type": "string", "description": "Correlation id (generated when absent)", "name": "X-Correlation-ID", "in": "header"},
                    {"description": "Chemical name", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.NameToStructureRequest"}}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/handlers.StructureResponse"},
                        "headers": {"X-Correlation-ID": {"type": "string", "description": "Correlation id"}}
                    },
                    "422": {"description": "Validation error", "schema": {"$ref": "#/definitions/apierr.Envelope"}},
                    "500": {"description": "Conversion error", "schema": {"$ref": "#/definitions/apierr.Envelope"}},
                    "501": {"description": "Not implemented", "schema": {"$ref": "#/definitions/apierr.Envelope"}}
                }
            }
        },
        "/api/structure-to-name": {
            "post": {
                "description": "No naming engine is available yet; well-formed requests answer 501 NOT_IMPLEMENTED.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Conversion"],
                "summary": "Convert SMILES to a chemical name",
                "operationId": "structureToName",
                "parameters": [
                    {"type": "string", "description": "Correlation id (generated when absent)", "name": "X-Correlation-ID", "in": "header"},
                    {"description": "SMILES string", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.StructureToNameRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.NameResponse"}},
                    "422": {"description": "Validation error", "schema": {"$ref": "#/definitions/apierr.Envelope"}},
                    "500": {"description": "Conversion error", "schema": {"$ref": "#/definitions/apierr.Envelope"}},
                    "501": {"description": "Not implemented", "schema": {"$ref": "#/definitions/apierr.Envelope"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness probe",
                "operationId": "health",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "apierr.Envelope": {
            "type": "object",
            "properties": {
                "correlation_id": {"description": "Correlates server logs and client errors", "type": "string", "example": "1b4e28ba-2fa1-11d2-883f-0016d3cca427"},
                "details": {"description": "Optional structured context, null when absent", "type": "object", "additionalProperties": {}},
                "error_code": {"description": "Stable, machine-readable code", "type": "string", "example": "NOT_IMPLEMENTED"},
                "message": {"description": "Human-readable message (safe to show to users)", "type": "string", "example": "Structure to name conversion is not yet implemented"}
            }
        },
        "handlers.NameResponse": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "example": "2-methylbutane"},
                "source": {"type": "string", "enum": ["demo", "ml", "tool"], "example": "ml"}
            }
        },
        "handlers.NameToStructureRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"description": "Chemical name, 1–500 characters, not blank.", "type": "string", "maxLength": 500, "example": "isopentane"}
            }
        },
        "handlers.StructureResponse": {
            "type": "object",
            "properties": {
                "smiles": {"type": "string", "example": "CC(C)CC"},
                "source": {"type": "string", "enum": ["demo", "ml", "tool"], "example": "demo"}
            }
        },
        "handlers.StructureToNameRequest": {
            "type": "object",
            "required": ["smiles"],
            "properties": {
                "smiles": {"description": "SMILES string, 1–1000 characters, not blank.", "type": "string", "maxLength": 1000, "example": "CC(C)CC"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "ChemVision API",
	Description:      "Chemical structure conversion: name to SMILES, SMILES to name, and image recognition (OCSR).",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
