// Package docs registers the OpenAPI document of the run API.
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
        "/runs": {
            "get": {
                "description": "Get the most recent runs with their status and summary",
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "List runs",
                "parameters": [
                    {"type": "integer", "default": 50, "description": "Maximum number of runs", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "List of runs", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.RunRecord"}}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}}
                }
            },
            "post": {
                "description": "Validate the options and start an extraction run in the background",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Start an extraction run",
                "parameters": [
                    {"description": "Run configuration", "name": "run", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.RunRequest"}}
                ],
                "responses": {
                    "202": {"description": "Run accepted", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Invalid request payload", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/runs/{id}": {
            "get": {
                "description": "Retrieve options, status and summary of a run",
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get run",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Run details", "schema": {"$ref": "#/definitions/model.RunRecord"}},
                    "400": {"description": "Invalid run ID", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Run not found", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/runs/{id}/errors": {
            "get": {
                "description": "Retrieve the errors recorded while a run executed",
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get run errors",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Run errors", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Invalid run ID", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Run not found", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/runs/{id}/cancel": {
            "patch": {
                "description": "Cancel an in-flight run; rows already produced are still written",
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Cancel run",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Cancellation requested", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Run is not running", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Run not found", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "model.RunRequest": {
            "type": "object",
            "properties": {
                "tool": {"type": "string", "enum": ["fields", "affiliations", "related"]},
                "options": {"$ref": "#/definitions/model.Options"},
                "timeout": {"type": "string", "example": "30m"}
            }
        },
        "model.Options": {
            "type": "object",
            "properties": {
                "tool": {"type": "string"},
                "input_dir": {"type": "string"},
                "output": {"type": "string"},
                "output_file_name": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "jsonl"]},
                "paths": {"type": "array", "items": {"type": "string"}},
                "suffixes": {"type": "array", "items": {"type": "string"}},
                "raw_values": {"type": "boolean"},
                "filter": {"$ref": "#/definitions/model.FilterSpec"},
                "organize": {"type": "boolean"},
                "max_open_files": {"type": "integer"},
                "batch_size": {"type": "integer"},
                "workers": {"type": "integer"},
                "max_line_bytes": {"type": "integer"},
                "stats_interval": {"type": "integer", "description": "nanoseconds"},
                "doi_list_file": {"type": "string"},
                "relation_types": {"type": "array", "items": {"type": "string"}},
                "upload_container": {"type": "string"}
            }
        },
        "model.FilterSpec": {
            "type": "object",
            "properties": {
                "providers": {"type": "array", "items": {"type": "string"}},
                "clients": {"type": "array", "items": {"type": "string"}},
                "resource_types": {"type": "array", "items": {"type": "string"}},
                "states": {"type": "array", "items": {"type": "string"}},
                "required_fields": {"type": "array", "items": {"type": "string"}},
                "absent_fields": {"type": "array", "items": {"type": "string"}},
                "value_constraints": {"type": "array", "items": {"$ref": "#/definitions/model.ValueConstraint"}},
                "require_all_fields": {"type": "boolean"}
            }
        },
        "model.ValueConstraint": {
            "type": "object",
            "properties": {
                "path": {"type": "string"},
                "expected": {"type": "string"}
            }
        },
        "model.RunRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "tool": {"type": "string"},
                "status": {"type": "string"},
                "options": {"$ref": "#/definitions/model.Options"},
                "summary": {"$ref": "#/definitions/model.RunSummary"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "model.RunSummary": {
            "type": "object",
            "properties": {
                "run_id": {"type": "string"},
                "tool": {"type": "string"},
                "started_at": {"type": "string"},
                "duration": {"type": "integer"},
                "workers": {"type": "integer"},
                "files_seen": {"type": "integer"},
                "files_processed": {"type": "integer"},
                "file_errors": {"type": "integer"},
                "records_seen": {"type": "integer"},
                "records_matched": {"type": "integer"},
                "records_skipped": {"type": "integer"},
                "parse_errors": {"type": "integer"},
                "decode_errors": {"type": "integer"},
                "rows_emitted": {"type": "integer"},
                "rows_dropped": {"type": "integer"},
                "destination_errors": {"type": "integer"},
                "providers": {"type": "integer"},
                "clients": {"type": "integer"},
                "outputs": {"type": "array", "items": {"type": "string"}},
                "aborted": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Metadata Extractor API",
	Description:      "Submit and inspect field-extraction runs over DataCite metadata dumps.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
