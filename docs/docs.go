// Package docs holds the OpenAPI document for the REST API, registered with swag.
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
        "/api/users": {
            "get": {
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "List users",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.User"}}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Create a user",
                "parameters": [
                    {"description": "user", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.CreateUserRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.User"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/api/rooms": {
            "get": {
                "produces": ["application/json"],
                "tags": ["rooms"],
                "summary": "List rooms",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Room"}}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["rooms"],
                "summary": "Create a room",
                "parameters": [
                    {"description": "room", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.CreateRoomRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.Room"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/api/rooms/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["rooms"],
                "summary": "Get a room",
                "parameters": [
                    {"type": "string", "description": "room id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Room"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["rooms"],
                "summary": "Delete a room",
                "parameters": [
                    {"type": "string", "description": "room id", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "owner id", "name": "userId", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.MessageResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/api/rooms/{id}/join": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["rooms"],
                "summary": "Join a room",
                "parameters": [
                    {"type": "string", "description": "room id", "name": "id", "in": "path", "required": true},
                    {"description": "user", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.MembershipRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Room"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/api/rooms/{id}/leave": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["rooms"],
                "summary": "Leave a room",
                "parameters": [
                    {"type": "string", "description": "room id", "name": "id", "in": "path", "required": true},
                    {"description": "user", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.MembershipRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Room"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/api/rooms/{id}/messages": {
            "get": {
                "produces": ["application/json"],
                "tags": ["rooms"],
                "summary": "Chat history of a room",
                "parameters": [
                    {"type": "string", "description": "room id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Message"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.CreateRoomRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "example": "Sprint 42"},
                "ownerId": {"type": "string"},
                "researchMode": {"type": "boolean"}
            }
        },
        "handler.CreateUserRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "example": "Alice"}
            }
        },
        "handler.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "room not found"}
            }
        },
        "handler.MembershipRequest": {
            "type": "object",
            "properties": {
                "userId": {"type": "string"}
            }
        },
        "handler.MessageResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "Room deleted"}
            }
        },
        "model.Message": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "roomId": {"type": "string"},
                "roundId": {"type": "string"},
                "userId": {"type": "string"},
                "userName": {"type": "string"},
                "text": {"type": "string"},
                "createdAt": {"type": "string"}
            }
        },
        "model.Room": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "ownerId": {"type": "string"},
                "participants": {"type": "array", "items": {"type": "string"}},
                "researchMode": {"type": "boolean"},
                "rounds": {"type": "array", "items": {"$ref": "#/definitions/model.Round"}},
                "team_performance": {"type": "number"},
                "reliance": {"type": "number"},
                "createdAt": {"type": "string"}
            }
        },
        "model.Round": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "task": {"type": "string"},
                "status": {"type": "string", "enum": ["cognitive_load", "voting", "voting_discussion", "recommendation", "recommendation_discussion", "final_voting", "teamEffectiveness", "completed"]},
                "votes": {"type": "object", "additionalProperties": {"type": "integer"}},
                "votes2": {"type": "object", "additionalProperties": {"type": "integer"}},
                "votes3": {"type": "object", "additionalProperties": {"type": "integer"}},
                "cognitiveLoad": {"type": "object", "additionalProperties": {"type": "integer"}},
                "average_cognitive_load": {"type": "number"},
                "teamEffectiveness": {"type": "object", "additionalProperties": {"type": "integer"}},
                "recommendation": {"type": "string"},
                "role": {"type": "string"},
                "recommendationVotes": {"type": "object", "additionalProperties": {"type": "boolean"}},
                "chosenIndex": {"type": "integer"},
                "targetUserId": {"type": "string"},
                "loadingRecommendation": {"type": "boolean"},
                "startedAt": {"type": "string"},
                "completedAt": {"type": "string"}
            }
        },
        "model.User": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Estimation Rooms API",
	Description:      "Users, rooms and chat history for real-time estimation sessions. Round actions use the WebSocket at /rooms/{id}.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
