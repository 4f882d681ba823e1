// Package docs registers the OpenAPI document served under /swagger. It is
// maintained by hand alongside the swag annotations on the handlers.
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
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Login",
                "parameters": [
                    {"description": "Login credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.loginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"allOf": [{"$ref": "#/definitions/handler.Envelope"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/handler.authResponse"}}}]}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.Envelope"}}
                }
            }
        },
        "/auth/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a new user",
                "parameters": [
                    {"description": "User registration details", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.registerRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"allOf": [{"$ref": "#/definitions/handler.Envelope"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/handler.authResponse"}}}]}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.Envelope"}}
                }
            }
        },
        "/cart": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Lines in insertion order. product is null for products that no longer exist.",
                "produces": ["application/json"],
                "tags": ["cart"],
                "summary": "List the cart",
                "responses": {
                    "200": {"description": "OK", "schema": {"allOf": [{"$ref": "#/definitions/handler.Envelope"}, {"type": "object", "properties": {"data": {"type": "array", "items": {"$ref": "#/definitions/handler.cartLineResponse"}}}}]}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.Envelope"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Adds quantity (default 1, at most 10000) of a product. Adding a product that is already in the cart increases the quantity of its line. Reusing an Idempotency-Key for a different product or quantity is rejected with 400.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["cart"],
                "summary": "Add a product to the cart",
                "parameters": [
                    {"type": "string", "description": "Replays the first result for repeated requests", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Product and quantity", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.addToCartRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"allOf": [{"$ref": "#/definitions/handler.Envelope"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/handler.cartLineResponse"}}}]}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.Envelope"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["cart"],
                "summary": "Empty the cart",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.Envelope"}}
                }
            }
        },
        "/cart/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["cart"],
                "summary": "Get a cart line",
                "parameters": [{"type": "string", "description": "Cart line id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"allOf": [{"$ref": "#/definitions/handler.Envelope"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/handler.cartLineResponse"}}}]}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.Envelope"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["cart"],
                "summary": "Set the quantity of a cart line",
                "parameters": [
                    {"type": "string", "description": "Cart line id", "name": "id", "in": "path", "required": true},
                    {"description": "New quantity", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.updateCartLineRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"allOf": [{"$ref": "#/definitions/handler.Envelope"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/handler.cartLineResponse"}}}]}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.Envelope"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["cart"],
                "summary": "Remove a cart line",
                "parameters": [{"type": "string", "description": "Cart line id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.Envelope"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness check",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.Envelope"}}}
            }
        },
        "/health/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"allOf": [{"$ref": "#/definitions/handler.Envelope"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/handler.readinessResponse"}}}]}},
                    "503": {"description": "Service Unavailable", "schema": {"allOf": [{"$ref": "#/definitions/handler.Envelope"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/handler.readinessResponse"}}}]}}
                }
            }
        },
        "/products": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "List products",
                "parameters": [{"type": "string", "description": "Only products of this category", "name": "category", "in": "query"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"allOf": [{"$ref": "#/definitions/handler.Envelope"}, {"type": "object", "properties": {"data": {"type": "array", "items": {"$ref": "#/definitions/handler.productResponse"}}}}]}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.Envelope"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Create a product",
                "parameters": [{"description": "Product", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.productRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"allOf": [{"$ref": "#/definitions/handler.Envelope"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/handler.productResponse"}}}]}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.Envelope"}}
                }
            }
        },
        "/products/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Get a product",
                "parameters": [{"type": "string", "description": "Product id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"allOf": [{"$ref": "#/definitions/handler.Envelope"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/handler.productResponse"}}}]}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.Envelope"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "description": "Replaces the editable fields of a product. Carts that hold it see the new values.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Update a product",
                "parameters": [
                    {"type": "string", "description": "Product id", "name": "id", "in": "path", "required": true},
                    {"description": "Product", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.productRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"allOf": [{"$ref": "#/definitions/handler.Envelope"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/handler.productResponse"}}}]}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.Envelope"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Delete a product",
                "parameters": [{"type": "string", "description": "Product id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.Envelope"}}
                }
            }
        }
    },
    "definitions": {
        "domain.User": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "email": {"type": "string"},
                "id": {"type": "string"},
                "role": {"type": "string"},
                "updated_at": {"type": "string"},
                "username": {"type": "string"}
            }
        },
        "handler.Envelope": {
            "type": "object",
            "properties": {
                "data": {},
                "message": {"type": "string"},
                "success": {"type": "boolean"}
            }
        },
        "handler.addToCartRequest": {
            "type": "object",
            "properties": {
                "productId": {"type": "string"},
                "quantity": {"description": "Quantity defaults to 1 when omitted.", "type": "integer"}
            }
        },
        "handler.authResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "user": {"$ref": "#/definitions/domain.User"}
            }
        },
        "handler.cartLineResponse": {
            "type": "object",
            "properties": {
                "createdAt": {"type": "string"},
                "id": {"type": "string"},
                "product": {"$ref": "#/definitions/handler.cartProductResponse"},
                "productId": {"type": "string"},
                "quantity": {"type": "integer"},
                "updatedAt": {"type": "string"}
            }
        },
        "handler.cartProductResponse": {
            "type": "object",
            "properties": {
                "category": {"type": "string"},
                "id": {"type": "string"},
                "image": {"type": "string"},
                "name": {"type": "string"},
                "price": {"type": "string", "example": "12.50"}
            }
        },
        "handler.productRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "category": {"type": "string"},
                "description": {"type": "string"},
                "image": {"type": "string"},
                "name": {"type": "string"},
                "price": {"type": "string", "example": "12.50"}
            }
        },
        "handler.dependencyStatus": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "handler.loginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "handler.productResponse": {
            "type": "object",
            "properties": {
                "category": {"type": "string"},
                "createdAt": {"type": "string"},
                "description": {"type": "string"},
                "id": {"type": "string"},
                "image": {"type": "string"},
                "name": {"type": "string"},
                "price": {"type": "string", "example": "12.50"}
            }
        },
        "handler.readinessResponse": {
            "type": "object",
            "properties": {
                "dependencies": {"type": "object", "additionalProperties": {"$ref": "#/definitions/handler.dependencyStatus"}},
                "status": {"type": "string"}
            }
        },
        "handler.registerRequest": {
            "type": "object",
            "required": ["email", "password", "username"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string", "minLength": 6},
                "username": {"type": "string"}
            }
        },
        "handler.updateCartLineRequest": {
            "type": "object",
            "properties": {
                "quantity": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the token.",
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
	Title:            "Storefront API",
	Description:      "Storefront backend: catalog, accounts and a per-user shopping cart.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
