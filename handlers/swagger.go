package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers the Swagger/OpenAPI endpoints of the blog API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>blog-api Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// OpenAPI document for the blog routes.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "blog-api", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "Comment": { "type": "object", "properties": { "id": {"type":"string"}, "author": {"type":"string"}, "authorId": {"type":"string"}, "text": {"type":"string"}, "postedAt": {"type":"string","format":"date-time"} } },
      "Post": { "type": "object", "properties": { "id": {"type":"string"}, "title": {"type":"string"}, "description": {"type":"string"}, "author": {"type":"string"}, "active": {"type":"boolean"}, "images": {"type":"array","items":{"type":"string"}}, "comments": {"type":"array","items":{"$ref":"#/components/schemas/Comment"}}, "createdAt": {"type":"string","example":"31/12/2024"}, "updatedAt": {"type":"string","example":"31/12/2024"} } },
      "PostInput": { "type": "object", "properties": { "title": {"type":"string"}, "description": {"type":"string"}, "author": {"type":"string"}, "active": {"type":"boolean"} } },
      "Error": { "type": "object", "properties": { "error": {"type":"string"} } }
    }
  },
  "paths": {
    "/": { "get": { "summary": "Banner", "responses": { "200": { "description": "API DE POSTS!" } } } },
    "/posts": {
      "get": { "summary": "List active posts (comments omitted)", "responses": { "200": { "description": "posts" } } },
      "post": { "summary": "Create a post; timestamps are rejected", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/PostInput"} } } }, "responses": { "201": { "description": "created" }, "400": { "description": "invalid input" } } }
    },
    "/posts/professor": { "get": { "summary": "List every post", "security": [{"bearer": []}], "responses": { "200": { "description": "posts" }, "401": { "description": "unauthenticated" }, "403": { "description": "not a professor" } } } },
    "/posts/busca": { "get": { "summary": "Search by title OR description", "parameters": [ {"name":"titulo","in":"query","schema":{"type":"string"}}, {"name":"descricao","in":"query","schema":{"type":"string"}} ], "responses": { "200": { "description": "posts" } } } },
    "/posts/{id}": {
      "get": { "summary": "Get a post", "responses": { "200": { "description": "post" }, "404": { "description": "not found" } } },
      "put": { "summary": "Update a post; timestamps are rejected", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/PostInput"} } } }, "responses": { "200": { "description": "updated" }, "400": { "description": "invalid input" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete a post and its comments", "responses": { "200": { "description": "deleted" } } }
    },
    "/posts/{id}/comentarios": {
      "get": { "summary": "List comments in insertion order", "responses": { "200": { "description": "comments" }, "404": { "description": "not found" } } },
      "post": { "summary": "Add a comment as the authenticated user", "security": [{"bearer": []}], "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"text":{"type":"string"}}} } } }, "responses": { "201": { "description": "comment" }, "400": { "description": "empty text" }, "401": { "description": "unauthenticated" }, "404": { "description": "not found" } } }
    },
    "/posts/{id}/comentarios/{commentId}": {
      "put": { "summary": "Edit own comment", "security": [{"bearer": []}], "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"newText":{"type":"string"}}} } } }, "responses": { "200": { "description": "edited" }, "403": { "description": "not the author" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete a comment (author or professor)", "security": [{"bearer": []}], "responses": { "200": { "description": "deleted" }, "403": { "description": "forbidden" }, "404": { "description": "not found" } } }
    },
    "/posts/{id}/moderacao": { "get": { "summary": "Comment deletions recorded for a post", "security": [{"bearer": []}], "responses": { "200": { "description": "deletion records, oldest first" }, "401": { "description": "unauthenticated" }, "403": { "description": "not a professor" }, "404": { "description": "not found" } } } },
    "/posts/{id}/imagens": {
      "get": { "summary": "Presigned image URLs", "responses": { "200": { "description": "urls" }, "503": { "description": "storage not configured" } } },
      "post": { "summary": "Upload an image (multipart field image)", "responses": { "201": { "description": "post" }, "400": { "description": "invalid image" }, "503": { "description": "storage not configured" } } }
    },
    "/auth/registrar": {
      "post": { "summary": "Register a user", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"name":{"type":"string"},"email":{"type":"string"},"password":{"type":"string"},"role":{"type":"string","enum":["aluno","professor"]}}}}}}, "responses": { "201": { "description": "created" }, "400": { "description": "invalid input or email taken" } } }
    },
    "/auth/login": {
      "post": { "summary": "Login with email and password", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "200": { "description": "token, refreshToken, name, role, expiresIn" }, "401": { "description": "invalid credentials" } } }
    },
    "/auth/refresh": {
      "post": { "summary": "Rotate a refresh token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refreshToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "new token pair" }, "401": { "description": "invalid refresh" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Logout, blacklist the bearer token and drop the refresh session", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refreshToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "logged out" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
