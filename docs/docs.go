// Package docs holds the OpenAPI document served at /swagger/ when the
// gateway is built with -tags=swagger. Regenerate with swag init.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {"name": "llmgate maintainers"},
        "license": {"name": "MIT", "url": "https://opensource.org/licenses/MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/models": {
            "get": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List registered models",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}}
            }
        },
        "/v1/chat/completions": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json", "text/event-stream"],
                "tags": ["completions"],
                "summary": "Chat completion, streamed as server-sent events by default",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.ChatCompletionRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.CompletionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/completions": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json", "text/event-stream"],
                "tags": ["completions"],
                "summary": "Text completion, streamed as server-sent events by default",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.CompletionRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.CompletionResponse"}}}
            }
        },
        "/admin/models/load": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Register a backend model",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.ModelSpec"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelStatus"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/admin/models/unload": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Unregister a model, draining in-flight requests",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.UnloadModelRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.UnloadModelResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Gateway status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}
            }
        },
        "/version": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Build version",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.VersionResponse"}}}
            }
        }
    },
    "definitions": {
        "types.Message": {"type": "object", "properties": {"role": {"type": "string", "example": "user"}, "content": {"type": "string", "example": "Write a haiku about the ocean."}}},
        "types.ChatCompletionRequest": {"type": "object", "properties": {"model": {"type": "string", "example": "m1"}, "messages": {"type": "array", "items": {"$ref": "#/definitions/types.Message"}}, "stream": {"type": "boolean"}, "max_tokens": {"type": "integer"}, "temperature": {"type": "number"}, "top_p": {"type": "number"}, "stop": {"type": "array", "items": {"type": "string"}}, "seed": {"type": "integer"}}},
        "types.CompletionRequest": {"type": "object", "properties": {"model": {"type": "string"}, "prompt": {"type": "string"}, "stream": {"type": "boolean"}, "max_tokens": {"type": "integer"}, "temperature": {"type": "number"}, "top_p": {"type": "number"}, "stop": {"type": "array", "items": {"type": "string"}}, "seed": {"type": "integer"}}},
        "types.CompletionResponse": {"type": "object", "properties": {"id": {"type": "string"}, "object": {"type": "string"}, "created": {"type": "integer"}, "model": {"type": "string"}, "choices": {"type": "array", "items": {"type": "object"}}, "usage": {"type": "object", "properties": {"completion_tokens": {"type": "integer"}}}}},
        "types.ModelSpec": {"type": "object", "properties": {"name": {"type": "string"}, "endpoint": {"type": "string"}, "max_concurrency": {"type": "integer"}, "backend": {"type": "string"}, "context_length": {"type": "integer"}, "api_key": {"type": "string"}}},
        "types.ModelStatus": {"type": "object", "properties": {"name": {"type": "string"}, "state": {"type": "string"}, "active": {"type": "integer"}, "max_concurrency": {"type": "integer"}, "backend": {"type": "string"}, "endpoint": {"type": "string"}}},
        "types.ModelsResponse": {"type": "object", "properties": {"object": {"type": "string"}, "data": {"type": "array", "items": {"$ref": "#/definitions/types.ModelStatus"}}}},
        "types.UnloadModelRequest": {"type": "object", "properties": {"name": {"type": "string"}}},
        "types.UnloadModelResponse": {"type": "object", "properties": {"name": {"type": "string"}, "state": {"type": "string"}}},
        "types.StatusResponse": {"type": "object", "properties": {"models": {"type": "array", "items": {"$ref": "#/definitions/types.ModelStatus"}}, "requests_total": {"type": "integer"}, "tokens_total": {"type": "integer"}, "active_requests": {"type": "integer"}, "models_loaded": {"type": "integer"}, "admission_policy": {"type": "string"}, "uptime_seconds": {"type": "integer"}, "server_time_unix": {"type": "integer"}, "draining_count": {"type": "integer"}}},
        "types.VersionResponse": {"type": "object", "properties": {"version": {"type": "string"}}},
        "types.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "code": {"type": "integer"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "llmgate API",
	Description:      "OpenAI-compatible gateway in front of self-hosted LLM backends.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
