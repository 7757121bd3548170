// Package docs registers the OpenAPI description served at /swagger in dev mode.
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
				"tags": [
					"auth"
				],
				"summary": "Log in and receive a bearer token",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/auth/register": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Self-register an account pending approval",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/auth/logout": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Revoke the current session",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/auth/me": {
			"get": {
				"tags": [
					"auth"
				],
				"summary": "Current user profile",
				"produces": [
					"application/json"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/auth/password": {
			"put": {
				"tags": [
					"auth"
				],
				"summary": "Change password and revoke other sessions",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/users": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "List users (admin)",
				"produces": [
					"application/json"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			},
			"post": {
				"tags": [
					"users"
				],
				"summary": "Create a user (admin)",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/users/pending": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "List accounts awaiting approval (admin)",
				"produces": [
					"application/json"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/users/{id}": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "Get a user (admin)",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			},
			"patch": {
				"tags": [
					"users"
				],
				"summary": "Update a user (admin)",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			},
			"delete": {
				"tags": [
					"users"
				],
				"summary": "Deactivate a user (admin)",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/users/{id}/approve": {
			"post": {
				"tags": [
					"users"
				],
				"summary": "Approve a pending account (admin)",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/equipment": {
			"get": {
				"tags": [
					"equipment"
				],
				"summary": "List equipment",
				"produces": [
					"application/json"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			},
			"post": {
				"tags": [
					"equipment"
				],
				"summary": "Create equipment (staff)",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/equipment/{id}": {
			"get": {
				"tags": [
					"equipment"
				],
				"summary": "Get equipment",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			},
			"patch": {
				"tags": [
					"equipment"
				],
				"summary": "Update equipment (staff)",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			},
			"delete": {
				"tags": [
					"equipment"
				],
				"summary": "Retire equipment (admin)",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/equipment/{id}/availability": {
			"get": {
				"tags": [
					"equipment"
				],
				"summary": "Units available over a window",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/equipment/{id}/maintenance": {
			"get": {
				"tags": [
					"equipment"
				],
				"summary": "List maintenance logs",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			},
			"post": {
				"tags": [
					"equipment"
				],
				"summary": "Open a maintenance log (staff)",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/equipment/{id}/maintenance/{logId}/complete": {
			"post": {
				"tags": [
					"equipment"
				],
				"summary": "Complete a maintenance log (staff)",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"type": "string",
						"name": "logId",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/classes": {
			"get": {
				"tags": [
					"classes"
				],
				"summary": "List classes",
				"produces": [
					"application/json"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			},
			"post": {
				"tags": [
					"classes"
				],
				"summary": "Create a class (staff or faculty)",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/classes/{id}": {
			"get": {
				"tags": [
					"classes"
				],
				"summary": "Get a class",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			},
			"patch": {
				"tags": [
					"classes"
				],
				"summary": "Update a class",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			},
			"delete": {
				"tags": [
					"classes"
				],
				"summary": "Delete a class (staff)",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/classes/{id}/enrollments": {
			"get": {
				"tags": [
					"classes"
				],
				"summary": "List enrolled students",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			},
			"post": {
				"tags": [
					"classes"
				],
				"summary": "Enroll students",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/classes/{id}/enrollments/{userId}": {
			"delete": {
				"tags": [
					"classes"
				],
				"summary": "Remove a student from a class",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"type": "string",
						"name": "userId",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/borrows": {
			"get": {
				"tags": [
					"borrows"
				],
				"summary": "List borrows visible to the caller",
				"produces": [
					"application/json"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			},
			"post": {
				"tags": [
					"borrows"
				],
				"summary": "Request a borrow",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/borrows/bulk": {
			"post": {
				"tags": [
					"borrows"
				],
				"summary": "Request several items as one group",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/borrows/bulk/{action}": {
			"post": {
				"tags": [
					"borrows"
				],
				"summary": "Apply an action to a group or id list",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "action",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/borrows/mark-overdue": {
			"post": {
				"tags": [
					"borrows"
				],
				"summary": "Mark past-due active borrows OVERDUE (staff)",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/borrows/groups/{groupId}": {
			"get": {
				"tags": [
					"borrows"
				],
				"summary": "Get a borrow group",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "groupId",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/borrows/{id}": {
			"get": {
				"tags": [
					"borrows"
				],
				"summary": "Get a borrow",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/borrows/{id}/{action}": {
			"post": {
				"tags": [
					"borrows"
				],
				"summary": "Apply an action to one borrow",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"type": "string",
						"name": "action",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/deficiencies": {
			"get": {
				"tags": [
					"deficiencies"
				],
				"summary": "List deficiencies",
				"produces": [
					"application/json"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			},
			"post": {
				"tags": [
					"deficiencies"
				],
				"summary": "Tag a deficiency (staff)",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/deficiencies/{id}": {
			"get": {
				"tags": [
					"deficiencies"
				],
				"summary": "Get a deficiency",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/deficiencies/{id}/resolve": {
			"post": {
				"tags": [
					"deficiencies"
				],
				"summary": "Resolve a deficiency (staff)",
				"produces": [
					"application/json"
				],
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"schema": {
							"type": "object"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/reports/dashboard": {
			"get": {
				"tags": [
					"reports"
				],
				"summary": "Dashboard counters (staff)",
				"produces": [
					"application/json"
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		},
		"/reports/{type}": {
			"get": {
				"tags": [
					"reports"
				],
				"summary": "Generate a report as json, csv or pdf (staff)",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "type",
						"in": "path",
						"required": true
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/apierr.Envelope"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"apierr.APIError": {
			"type": "object",
			"properties": {
				"code": {
					"type": "string"
				},
				"message": {
					"type": "string"
				}
			}
		},
		"apierr.Envelope": {
			"type": "object",
			"properties": {
				"error": {
					"$ref": "#/definitions/apierr.APIError"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
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
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "equipborrow API",
	Description:      "Equipment borrowing backend for teaching laboratories.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
