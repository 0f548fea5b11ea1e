// Package docs registers the gateway's OpenAPI document with swag so the
// Swagger UI at /swagger/ can serve it. Regenerate with
// `swag init -g main.go -o internal/docs` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handlers.HealthResponse"}}
                }
            }
        },
        "/webhooks/{webhookId}/{endpointPath}": {
            "post": {
                "description": "Admits a delivery for a registered endpoint and starts its workflow",
                "consumes": ["application/json", "text/plain"],
                "produces": ["application/json"],
                "tags": ["delivery"],
                "summary": "Deliver a webhook",
                "parameters": [
                    {"type": "string", "description": "Webhook ID", "name": "webhookId", "in": "path", "required": true},
                    {"type": "string", "description": "Endpoint path", "name": "endpointPath", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.DeliveryResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "410": {"description": "Gone", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/webhooks": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "List webhook endpoints",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/webhooks.Webhook"}}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Create webhook endpoint",
                "parameters": [
                    {"description": "Endpoint configuration", "name": "webhook", "in": "body", "required": true, "schema": {"$ref": "#/definitions/webhooks.CreateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/webhooks.Webhook"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/webhooks/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Get webhook endpoint",
                "parameters": [{"type": "string", "description": "Webhook ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/webhooks.Webhook"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Update webhook endpoint",
                "parameters": [
                    {"type": "string", "description": "Webhook ID", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "webhook", "in": "body", "required": true, "schema": {"$ref": "#/definitions/webhooks.UpdateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/webhooks.Webhook"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["webhooks"],
                "summary": "Delete webhook endpoint",
                "parameters": [{"type": "string", "description": "Webhook ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/webhooks/{id}/logs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Webhook audit log",
                "parameters": [
                    {"type": "string", "description": "Webhook ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "Maximum entries (default 100, max 1000)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.AuditLogEntry"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/keys": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["api-keys"],
                "summary": "List API keys",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.APIKey"}}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["api-keys"],
                "summary": "Create API key",
                "parameters": [
                    {"description": "Key settings", "name": "key", "in": "body", "schema": {"$ref": "#/definitions/apikeys.CreateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/apikeys.Created"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/keys/{id}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["api-keys"],
                "summary": "Revoke API key",
                "parameters": [{"type": "string", "description": "API key ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SuccessResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "code": {"type": "string"}}
        },
        "handlers.SuccessResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "message": {"type": "string"}}
        },
        "handlers.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "service": {"type": "string"},
                "timestamp": {"type": "string"},
                "checks": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "handlers.DeliveryResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "webhookId": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "models.Authentication": {
            "type": "object",
            "properties": {
                "method": {"type": "string", "enum": ["none", "bearer_token", "api_key", "hmac"]},
                "token": {"type": "string"},
                "apiKey": {"type": "string"},
                "secret": {"type": "string"},
                "headerName": {"type": "string"},
                "signatureHeader": {"type": "string"}
            }
        },
        "models.RateLimit": {
            "type": "object",
            "properties": {
                "requests": {"type": "integer"},
                "period": {"type": "string", "enum": ["second", "minute", "hour", "day"]}
            }
        },
        "models.Security": {
            "type": "object",
            "properties": {
                "ipWhitelist": {"type": "array", "items": {"type": "string"}},
                "rateLimit": {"$ref": "#/definitions/models.RateLimit"},
                "sslRequired": {"type": "boolean"}
            }
        },
        "models.WorkflowConfig": {
            "type": "object",
            "properties": {
                "workflowId": {"type": "string"},
                "triggerType": {"type": "string"},
                "topic": {"type": "string"},
                "metadata": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "webhooks.SecurityInput": {
            "type": "object",
            "properties": {
                "ipWhitelist": {"type": "array", "items": {"type": "string"}},
                "rateLimit": {"$ref": "#/definitions/models.RateLimit"},
                "sslRequired": {"type": "boolean"}
            }
        },
        "webhooks.CreateRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "endpointPath": {"type": "string"},
                "isActive": {"type": "boolean"},
                "authentication": {"$ref": "#/definitions/models.Authentication"},
                "security": {"$ref": "#/definitions/webhooks.SecurityInput"},
                "workflowConfig": {"$ref": "#/definitions/models.WorkflowConfig"}
            }
        },
        "webhooks.UpdateRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "endpointPath": {"type": "string"},
                "isActive": {"type": "boolean"},
                "authentication": {"$ref": "#/definitions/models.Authentication"},
                "security": {"$ref": "#/definitions/webhooks.SecurityInput"},
                "workflowConfig": {"$ref": "#/definitions/models.WorkflowConfig"}
            }
        },
        "webhooks.Webhook": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "endpointPath": {"type": "string"},
                "fullUrl": {"type": "string"},
                "isActive": {"type": "boolean"},
                "authentication": {"$ref": "#/definitions/models.Authentication"},
                "security": {"$ref": "#/definitions/models.Security"},
                "workflowConfig": {"$ref": "#/definitions/models.WorkflowConfig"},
                "totalRequests": {"type": "integer"},
                "errorCount": {"type": "integer"},
                "lastTriggered": {"type": "string"},
                "createdBy": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "models.AuditLogEntry": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "webhookId": {"type": "string"},
                "timestamp": {"type": "string"},
                "status": {"type": "string", "enum": ["success", "error"]},
                "ipAddress": {"type": "string"},
                "error": {"type": "string"},
                "responseTime": {"type": "integer"},
                "userAgent": {"type": "string"},
                "payload": {"type": "object"}
            }
        },
        "models.APIKey": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "keyPrefix": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "userId": {"type": "string"},
                "permissions": {"type": "array", "items": {"type": "string"}},
                "isActive": {"type": "boolean"},
                "rateLimit": {"$ref": "#/definitions/models.RateLimit"},
                "webhookIds": {"type": "array", "items": {"type": "string"}},
                "createdAt": {"type": "string"},
                "lastUsed": {"type": "string"},
                "revokedAt": {"type": "string"}
            }
        },
        "apikeys.CreateRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "permissions": {"type": "array", "items": {"type": "string"}},
                "rateLimit": {"$ref": "#/definitions/models.RateLimit"},
                "webhookIds": {"type": "array", "items": {"type": "string"}}
            }
        },
        "apikeys.Created": {
            "type": "object",
            "properties": {
                "apiKey": {"type": "string"},
                "key": {"$ref": "#/definitions/models.APIKey"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "ID token as \"Bearer <token>\"",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Webhook Gateway API",
	Description:      "Admits inbound webhooks for registered endpoints and starts their workflows.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
