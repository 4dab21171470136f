package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "PulseGov Pipeline API",
    "description": "SLA tracking and resolution intelligence for routed civic complaints",
    "version": "1.0"
  },
  "basePath": "/",
  "paths": {
    "/healthz": {
      "get": {"tags": ["health"], "summary": "Health check", "produces": ["application/json"],
        "responses": {"200": {"description": "OK"}, "503": {"description": "Dependency unavailable"}}}
    },
    "/api/sla/active": {
      "get": {"tags": ["sla"], "summary": "Deadlines due soon", "produces": ["application/json"],
        "parameters": [
          {"name": "within", "in": "query", "type": "string", "description": "Look-ahead window, e.g. 24h"},
          {"name": "limit", "in": "query", "type": "integer"}
        ],
        "responses": {"200": {"description": "OK"}}}
    },
    "/api/sla/{complaintId}": {
      "get": {"tags": ["sla"], "summary": "SLA status", "produces": ["application/json"],
        "parameters": [{"name": "complaintId", "in": "path", "required": true, "type": "integer"}],
        "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid id"}}}
    },
    "/api/sla/sweep": {
      "post": {"tags": ["sla"], "summary": "Run an SLA sweep now", "produces": ["application/json"],
        "parameters": [{"name": "X-Admin-Key", "in": "header", "type": "string"}],
        "responses": {"200": {"description": "Sweep report"}, "401": {"description": "Invalid admin key"}, "409": {"description": "Sweep already running"}}}
    },
    "/api/suggestions/{complaintId}": {
      "get": {"tags": ["intelligence"], "summary": "Resolution suggestions", "produces": ["application/json"],
        "parameters": [{"name": "complaintId", "in": "path", "required": true, "type": "integer"}],
        "responses": {"200": {"description": "OK"}}}
    },
    "/api/network/{categoryId}": {
      "get": {"tags": ["intelligence"], "summary": "Similarity network", "produces": ["application/json"],
        "parameters": [{"name": "categoryId", "in": "path", "required": true, "type": "integer"}],
        "responses": {"200": {"description": "OK"}}}
    }
  }
}`

func init() {
	swag.Register(swag.Name, &s{})
}

type s struct{}

func (s *s) ReadDoc() string {
	return docTemplate
}
